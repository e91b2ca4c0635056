package nntp

import (
	"strings"
)

// handlePost handles POST: refuse on read-only servers, otherwise switch
// the session into posting mode until the client sends a sole dot.
func (c *ClientConnection) handlePost() error {
	if c.server.Config.ReadOnly() {
		return c.sendResponse(440, "Posting not allowed")
	}
	if c.server.Config.AuthEnabled() && c.username == "" {
		return c.sendResponse(480, "Authentication required")
	}

	c.posting = true
	c.articleLines = nil
	return c.sendResponse(340, "Send article to be posted")
}

// finishPost runs when the terminating dot arrives: route the article by
// its Newsgroups header and hand it to the owning backend. The line buffer
// is released whatever the outcome.
func (c *ClientConnection) finishPost() error {
	lines := c.articleLines
	c.posting = false
	c.articleLines = nil

	group := postTargetGroup(lines)
	if group == "" {
		c.server.Events.Printf("Posting from %s failed: no Newsgroups header", c.remoteHost)
		return c.sendResponse(441, "Posting failed")
	}

	backend := c.server.Router.BackendFor(group)
	if backend == nil {
		c.server.Events.Printf("Posting from %s failed: no backend for group %s", c.remoteHost, group)
		c.server.Metrics.ArticlePosted(group, false)
		return c.sendResponse(441, "Posting failed")
	}
	ok, err := backend.GroupExists(group)
	if err != nil || !ok {
		c.server.Events.Printf("Posting from %s failed: no such group %s", c.remoteHost, group)
		c.server.Metrics.ArticlePosted(group, false)
		return c.sendResponse(441, "Posting failed")
	}

	if err := backend.Post(group, lines, c.remoteHost, c.username); err != nil {
		c.server.Events.Printf("Posting from %s to %s failed: %v", c.remoteHost, group, err)
		c.server.Metrics.ArticlePosted(group, false)
		return c.sendResponse(441, "Posting failed")
	}

	c.server.Metrics.ArticlePosted(group, true)
	return c.sendResponse(240, "Article received ok")
}

// postTargetGroup extracts the first group named by the article's
// Newsgroups header. Header search stops at the blank line separating
// headers from body.
func postTargetGroup(lines []string) string {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			break
		}
		if len(line) > 11 && strings.EqualFold(line[:11], "Newsgroups:") {
			value := strings.TrimSpace(line[11:])
			if comma := strings.Index(value, ","); comma >= 0 {
				value = value[:comma]
			}
			return strings.TrimSpace(value)
		}
	}
	return ""
}
