package nntp

import (
	"strings"
	"time"
)

// handleHelp handles HELP.
func (c *ClientConnection) handleHelp() error {
	helpLines := []string{
		"Commands supported:",
		"  ARTICLE [<msgid>|<num>] - Full article",
		"  AUTHINFO USER|PASS|SASL - Authenticate",
		"  BODY [<msgid>|<num>] - Article body",
		"  DATE - Server date and time",
		"  GROUP <group> - Select newsgroup",
		"  HEAD [<msgid>|<num>] - Article headers",
		"  LAST - Previous article",
		"  LIST [OVERVIEW.FMT|EXTENSIONS|NEWSGROUPS] - List groups",
		"  LISTGROUP [<group>] - List articles in group",
		"  MODE READER - Switch to reader mode",
		"  NEWGROUPS date time [GMT] - New groups",
		"  NEWNEWS wildmat date time [GMT] - New articles",
		"  NEXT - Following article",
		"  POST - Post an article",
		"  STAT [<msgid>|<num>] - Article status",
		"  XGTITLE [wildmat] - Group descriptions",
		"  XHDR <header> [<range>] - Header information",
		"  XOVER [<range>] - Article overview",
		"  XPAT <header> <range> <pat> - Pattern-matched headers",
		"  QUIT - Close connection",
	}
	return c.sendMultiline("100 help text follows", helpLines)
}

// handleQuit handles QUIT: say goodbye and end the session.
func (c *ClientConnection) handleQuit() error {
	err := c.sendResponse(205, "closing connection - goodbye!")
	c.terminated = true
	return err
}

// handleMode handles MODE READER; MODE STREAM is refused, this server does
// not peer.
func (c *ClientConnection) handleMode(args []string) error {
	if len(args) == 0 {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	if strings.ToUpper(args[0]) == "READER" {
		if c.server.Config.ReadOnly() {
			return c.sendResponse(201, "Hello, you can't post")
		}
		return c.sendResponse(200, "Hello, you can post")
	}
	return c.sendResponse(500, "Command not understood")
}

// handleSlave handles SLAVE, a no-op kept for RFC 977 compatibility.
func (c *ClientConnection) handleSlave() error {
	return c.sendResponse(202, "slave status noted")
}

// handleDate handles DATE: server time in UTC.
func (c *ClientConnection) handleDate() error {
	return c.sendResponse(111, "%s", time.Now().UTC().Format("20060102150405"))
}

// handleIHave handles IHAVE: transfers are always refused.
func (c *ClientConnection) handleIHave(args []string) error {
	if len(args) != 1 {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	return c.sendResponse(435, "article not wanted - do not send it")
}

// handleXVersion reports the server version.
func (c *ClientConnection) handleXVersion() error {
	return c.sendResponse(200, "Papercut %s", Version)
}
