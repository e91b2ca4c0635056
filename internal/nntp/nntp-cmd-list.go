package nntp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/papercut-news/go-papercut/internal/storage"
)

// overviewHeaders is the fixed LIST OVERVIEW.FMT header order, which is
// also the XOVER column order.
var overviewHeaders = []string{
	"Subject", "From", "Date", "Message-ID", "References", "Bytes", "Lines",
}

// extensions advertised by LIST EXTENSIONS: everything beyond the base
// RFC 977 command set.
var extensions = []string{
	"XOVER", "XPAT", "LISTGROUP",
	"XGTITLE", "XHDR", "MODE",
	"OVER", "HDR", "AUTHINFO",
	"XROVER", "XVERSION",
}

// handleList handles LIST and its variants: bare LIST, LIST OVERVIEW.FMT,
// LIST EXTENSIONS and LIST NEWSGROUPS [wildmat].
func (c *ClientConnection) handleList(args []string) error {
	if len(args) > 0 {
		switch strings.ToUpper(args[0]) {
		case "OVERVIEW.FMT":
			lines := make([]string, 0, len(overviewHeaders)+1)
			for _, h := range overviewHeaders {
				lines = append(lines, h+":")
			}
			lines = append(lines, "Xref:full")
			return c.sendMultiline("215 information follows", lines)

		case "EXTENSIONS":
			return c.sendMultiline("215 Extensions supported by server.", extensions)

		case "NEWSGROUPS":
			pattern := "*"
			if len(args) > 1 {
				pattern = args[1]
			}
			lines, _, err := c.groupTitleLines(pattern)
			if err != nil {
				return c.programError(err)
			}
			return c.sendMultiline("215 information follows", lines)

		default:
			return c.sendResponse(503, "program error, function not performed")
		}
	}

	// Bare LIST: concatenate every backend's group summaries.
	var lines []string
	for _, backend := range c.server.Router.Backends() {
		groups, err := backend.ListGroups()
		if err != nil {
			return c.programError(err)
		}
		for _, g := range groups {
			lines = append(lines, fmt.Sprintf("%s %d %d %s", g.Name, g.High, g.Low, g.Flag))
		}
	}
	return c.sendMultiline("215 list of newsgroups follows", lines)
}

// handleXGTitle handles XGTITLE [wildmat]. Without a pattern the selected
// group is described, matching the historical behavior. When no backend
// keeps descriptions at all the reply is 481.
func (c *ClientConnection) handleXGTitle(args []string) error {
	if len(args) > 1 {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	pattern := ""
	if len(args) == 1 {
		pattern = args[0]
	} else {
		if c.currentGroup == "" {
			return c.sendResponse(412, "no newsgroup has been selected")
		}
		pattern = c.currentGroup
	}
	lines, capable, err := c.groupTitleLines(pattern)
	if err != nil {
		return c.programError(err)
	}
	if !capable {
		return c.sendResponse(481, "Groups and descriptions unavailable")
	}
	return c.sendMultiline("282 list of groups and descriptions follows", lines)
}

// groupTitleLines collects "group description" lines from every backend.
// Backends without description support are skipped; capable reports
// whether at least one backend had any.
func (c *ClientConnection) groupTitleLines(pattern string) (lines []string, capable bool, err error) {
	for _, backend := range c.server.Router.Backends() {
		titles, err := backend.GroupTitles(pattern)
		if errors.Is(err, storage.ErrNotCapable) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		capable = true
		for _, t := range titles {
			lines = append(lines, fmt.Sprintf("%s %s", t.Name, t.Description))
		}
	}
	return lines, capable, nil
}
