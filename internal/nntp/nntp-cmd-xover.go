package nntp

import (
	"fmt"
)

// handleXOver handles XOVER [range] (and OVER via alias): tab-separated
// overview rows for the range, or for the current article when no range is
// given. Ranges past the end of the group are truncated.
func (c *ClientConnection) handleXOver(args []string) error {
	if c.currentGroup == "" {
		return c.sendResponse(412, "no newsgroup has been selected")
	}
	if len(args) > 1 {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}

	var first, last int
	if len(args) == 0 {
		if c.currentArticle == 0 {
			return c.sendResponse(420, "no current article has been selected")
		}
		first, last = c.currentArticle, c.currentArticle
	} else {
		var err error
		first, last, err = parseRange(args[0])
		if err != nil {
			return c.sendResponse(501, "command syntax error (or un-implemented option)")
		}
	}

	rows, err := c.currentBackend.Overview(c.currentGroup, first, last)
	if err != nil {
		return c.programError(err)
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("%d\t%s\t%s\t%s\t%s\t%s\t%d\t%d\tXref: %s",
			row.Number, row.Subject, row.From, row.Date, row.MessageID,
			row.References, row.Bytes, row.Lines, row.Xref))
	}
	return c.sendMultiline("224 Overview information follows", lines)
}
