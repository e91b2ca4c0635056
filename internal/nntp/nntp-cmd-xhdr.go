package nntp

import (
	"fmt"
	"strings"

	"github.com/papercut-news/go-papercut/internal/storage"
)

// validHeader reports whether XHDR/XPAT may ask for the header: the
// overview set plus Xref.
func validHeader(header string) bool {
	if strings.EqualFold(header, "Xref") {
		return true
	}
	for _, h := range overviewHeaders {
		if strings.EqualFold(h, header) {
			return true
		}
	}
	return false
}

// headerRange resolves the optional range-or-message-ID argument of XHDR
// and XPAT to a backend, group and numeric range. On failure the reply has
// been sent and the returned backend is nil.
func (c *ClientConnection) headerRange(arg string) (storage.Backend, string, int, int, error) {
	if strings.Contains(arg, "<") {
		backend, group, number, err := c.server.Router.ResolveMessageID(arg)
		if err != nil {
			return nil, "", 0, 0, c.sendResponse(430, "no such article")
		}
		return backend, group, number, number, nil
	}

	if c.currentGroup == "" {
		return nil, "", 0, 0, c.sendResponse(412, "no newsgroup has been selected")
	}
	if arg == "" {
		if c.currentArticle == 0 {
			return nil, "", 0, 0, c.sendResponse(420, "no current article has been selected")
		}
		return c.currentBackend, c.currentGroup, c.currentArticle, c.currentArticle, nil
	}
	first, last, err := parseRange(arg)
	if err != nil {
		return nil, "", 0, 0, c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	return c.currentBackend, c.currentGroup, first, last, nil
}

// handleXHdr handles XHDR header [range|<message-id>] (and HDR / XROVER
// via alias).
func (c *ClientConnection) handleXHdr(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	header := args[0]
	if !validHeader(header) {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	rangeArg := ""
	if len(args) == 2 {
		rangeArg = args[1]
	}

	backend, group, first, last, err := c.headerRange(rangeArg)
	if backend == nil {
		return err
	}

	values, err := backend.Headers(group, header, first, last)
	if err != nil {
		return c.programError(err)
	}
	lines := make([]string, 0, len(values))
	for _, v := range values {
		lines = append(lines, fmt.Sprintf("%d %s", v.Number, v.Value))
	}
	return c.sendMultiline("221 Header follows", lines)
}

// handleXPat handles XPAT header range|<message-id> pat [pat...]: XHDR
// filtered by wildcard patterns; an article matches when any pattern
// matches its header value.
func (c *ClientConnection) handleXPat(args []string) error {
	if len(args) < 3 {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	header := args[0]
	if !validHeader(header) {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	patterns := args[2:]

	backend, group, first, last, err := c.headerRange(args[1])
	if backend == nil {
		return err
	}

	var values []storage.HeaderValue
	if len(patterns) == 1 {
		values, err = backend.HeadersMatching(group, header, patterns[0], first, last)
		if err != nil {
			return c.programError(err)
		}
	} else {
		all, err := backend.Headers(group, header, first, last)
		if err != nil {
			return c.programError(err)
		}
		for _, v := range all {
			for _, pat := range patterns {
				if storage.MatchWildcard(pat, v.Value) {
					values = append(values, v)
					break
				}
			}
		}
	}

	lines := make([]string, 0, len(values))
	for _, v := range values {
		lines = append(lines, fmt.Sprintf("%d %s", v.Number, v.Value))
	}
	return c.sendMultiline("221 Header follows", lines)
}
