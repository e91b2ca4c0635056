package nntp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/papercut-news/go-papercut/internal/storage"
)

// handleGroup handles the GROUP command: select a newsgroup. The current
// article pointer is left untouched.
func (c *ClientConnection) handleGroup(args []string) error {
	if len(args) != 1 {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	group := args[0]

	backend := c.server.Router.BackendFor(group)
	if backend == nil {
		return c.sendResponse(411, "no such news group")
	}
	stats, err := backend.GroupStats(group)
	if err != nil {
		if errors.Is(err, storage.ErrNoSuchGroup) {
			return c.sendResponse(411, "no such news group")
		}
		return c.programError(err)
	}

	c.currentGroup = group
	c.currentBackend = backend
	return c.sendResponse(211, "%d %d %d %s group selected",
		stats.Count, stats.First, stats.Last, group)
}

// handleListGroup handles LISTGROUP [group]: select the group and return
// its article numbers. The article pointer moves to the first number, or
// becomes unset for an empty group.
func (c *ClientConnection) handleListGroup(args []string) error {
	if len(args) > 1 {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}

	group := c.currentGroup
	backend := c.currentBackend
	if len(args) == 1 {
		group = args[0]
		backend = c.server.Router.BackendFor(group)
		if backend == nil {
			return c.sendResponse(411, "no such news group")
		}
		ok, err := backend.GroupExists(group)
		if err != nil {
			return c.programError(err)
		}
		if !ok {
			return c.sendResponse(411, "no such news group")
		}
	}
	if group == "" {
		return c.sendResponse(412, "no newsgroup has been selected")
	}

	stats, err := backend.GroupStats(group)
	if err != nil {
		if errors.Is(err, storage.ErrNoSuchGroup) {
			return c.sendResponse(411, "no such news group")
		}
		return c.programError(err)
	}
	numbers, err := backend.ListArticleNumbers(group)
	if err != nil {
		return c.programError(err)
	}

	c.currentGroup = group
	c.currentBackend = backend
	if len(numbers) > 0 {
		c.currentArticle = numbers[0]
	} else {
		c.currentArticle = 0
	}

	lines := make([]string, 0, len(numbers))
	for _, n := range numbers {
		lines = append(lines, fmt.Sprintf("%d", n))
	}
	status := fmt.Sprintf("211 %d %d %d %s Article numbers follow",
		stats.Count, stats.First, stats.Last, group)
	return c.sendMultiline(status, lines)
}

// handleNext handles NEXT: advance the article pointer. A session that has
// a group but no article yet starts at the first article.
func (c *ClientConnection) handleNext() error {
	if c.currentGroup == "" {
		return c.sendResponse(412, "no newsgroup has been selected")
	}
	var (
		number int
		err    error
	)
	if c.currentArticle == 0 {
		number, err = c.currentBackend.FirstArticle(c.currentGroup)
	} else {
		number, err = c.currentBackend.Next(c.currentGroup, c.currentArticle)
	}
	if err != nil {
		return c.sendResponse(421, "no next article in this group")
	}
	c.currentArticle = number
	mid, err := c.currentBackend.MessageID(c.currentGroup, number)
	if err != nil {
		return c.programError(err)
	}
	return c.sendResponse(223, "%d %s article retrieved - request text separately", number, mid)
}

// handleLast handles LAST: step the article pointer back.
func (c *ClientConnection) handleLast() error {
	if c.currentGroup == "" {
		return c.sendResponse(412, "no newsgroup has been selected")
	}
	if c.currentArticle == 0 {
		return c.sendResponse(420, "no current article has been selected")
	}
	number, err := c.currentBackend.Last(c.currentGroup, c.currentArticle)
	if err != nil {
		return c.sendResponse(422, "no previous article in this group")
	}
	c.currentArticle = number
	mid, err := c.currentBackend.MessageID(c.currentGroup, number)
	if err != nil {
		return c.programError(err)
	}
	return c.sendResponse(223, "%d %s article retrieved - request text separately", number, mid)
}

// handleNewGroups handles NEWGROUPS date time [GMT].
func (c *ClientConnection) handleNewGroups(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	gmt := len(args) == 3 && strings.EqualFold(args[2], "GMT")
	since, err := parseNNTPTimestamp(args[0], args[1], gmt)
	if err != nil {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}

	var lines []string
	for _, backend := range c.server.Router.Backends() {
		groups, err := backend.NewGroups(since)
		if err != nil {
			return c.programError(err)
		}
		for _, g := range groups {
			lines = append(lines, fmt.Sprintf("%s %d %d %s", g.Name, g.High, g.Low, g.Flag))
		}
	}
	return c.sendMultiline("231 list of new newsgroups follows", lines)
}

// handleNewNews handles NEWNEWS wildmat date time [GMT] [<distribution>].
// A pattern without wildcard or comma is an exact group name that must
// exist; the optional distribution argument is accepted and ignored.
func (c *ClientConnection) handleNewNews(args []string) error {
	if len(args) < 3 || len(args) > 5 {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	pattern := args[0]
	gmt := len(args) > 3 && strings.EqualFold(args[3], "GMT")
	since, err := parseNNTPTimestamp(args[1], args[2], gmt)
	if err != nil {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}

	var backends []storage.Backend
	if !strings.ContainsAny(pattern, "*,") {
		backend := c.server.Router.BackendWithGroup(pattern)
		if backend == nil {
			return c.sendResponse(411, "no such news group")
		}
		backends = []storage.Backend{backend}
	} else {
		backends = c.server.Router.Backends()
	}

	var lines []string
	for _, backend := range backends {
		mids, err := backend.NewNews(pattern, since)
		if err != nil {
			return c.programError(err)
		}
		lines = append(lines, mids...)
	}
	return c.sendMultiline("230 list of new articles by message-id follows", lines)
}
