package nntp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/papercut-news/go-papercut/internal/storage"
)

// articleRef is a resolved article argument: the backend authoritative for
// the reply plus the article's group and number.
type articleRef struct {
	backend storage.Backend
	group   string
	number  int
}

// resolveArticleRef resolves the optional argument shared by ARTICLE, HEAD,
// BODY and STAT: nothing (current article), an article number, or a
// message-ID looked up across all backends. On failure the protocol error
// has already been sent and the returned ref is nil.
func (c *ClientConnection) resolveArticleRef(args []string) (*articleRef, error) {
	if c.currentGroup == "" {
		return nil, c.sendResponse(412, "no newsgroup has been selected")
	}
	if len(args) > 1 {
		return nil, c.sendResponse(501, "command syntax error (or un-implemented option)")
	}

	if len(args) == 0 {
		if c.currentArticle == 0 {
			return nil, c.sendResponse(420, "no current article has been selected")
		}
		return &articleRef{c.currentBackend, c.currentGroup, c.currentArticle}, nil
	}

	if strings.Contains(args[0], "<") {
		backend, group, number, err := c.server.Router.ResolveMessageID(args[0])
		if err != nil {
			return nil, c.sendResponse(423, "no such article in this group")
		}
		return &articleRef{backend, group, number}, nil
	}

	number, err := strconv.Atoi(args[0])
	if err != nil || number < 1 {
		return nil, c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	c.currentArticle = number
	ok, err := c.currentBackend.Stat(c.currentGroup, number)
	if err != nil {
		return nil, c.programError(err)
	}
	if !ok {
		return nil, c.sendResponse(423, "no such article in this group")
	}
	return &articleRef{c.currentBackend, c.currentGroup, number}, nil
}

// messageID returns the message-ID for a resolved reference, falling back
// to an empty string so a cache inconsistency cannot kill the reply.
func (ref *articleRef) messageID() string {
	mid, err := ref.backend.MessageID(ref.group, ref.number)
	if err != nil {
		return ""
	}
	return mid
}

// parseRange parses the overview range syntax: "n", "n-", or "n-m".
// last == 0 means "through the end of the group".
func parseRange(arg string) (first, last int, err error) {
	dash := strings.Index(arg, "-")
	if dash < 0 {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("bad range %q", arg)
		}
		return n, n, nil
	}

	first, err = strconv.Atoi(arg[:dash])
	if err != nil || first < 1 {
		return 0, 0, fmt.Errorf("bad range %q", arg)
	}
	if dash == len(arg)-1 {
		return first, 0, nil
	}
	last, err = strconv.Atoi(arg[dash+1:])
	if err != nil || last < 1 {
		return 0, 0, fmt.Errorf("bad range %q", arg)
	}
	return first, last, nil
}

// articleSize sums the payload bytes of a multi-line reply for the served
// article metrics.
func articleSize(lines []string) int64 {
	var size int64
	for _, line := range lines {
		size += int64(len(line)) + 2
	}
	return size
}
