package nntp

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
)

// handleAuthInfo handles AUTHINFO USER/PASS and AUTHINFO SASL PLAIN.
// With authentication disabled any credential pair is accepted.
func (c *ClientConnection) handleAuthInfo(args []string) error {
	if len(args) < 1 {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}

	switch strings.ToUpper(args[0]) {
	case "USER":
		if len(args) < 2 {
			return c.sendResponse(501, "command syntax error (or un-implemented option)")
		}
		if !c.server.Config.AuthEnabled() {
			return c.sendResponse(281, "Authentication accepted")
		}
		c.authUsername = args[1]
		return c.sendResponse(381, "More authentication information required")

	case "PASS":
		if len(args) < 2 {
			return c.sendResponse(501, "command syntax error (or un-implemented option)")
		}
		if !c.server.Config.AuthEnabled() {
			return c.sendResponse(281, "Authentication accepted")
		}
		if c.authUsername == "" {
			return c.sendResponse(381, "More authentication information required")
		}
		return c.verifyLogin(c.authUsername, args[1])

	case "SASL":
		return c.handleAuthInfoSASL(args[1:])

	default:
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
}

// verifyLogin checks a credential pair against the authenticator and
// settles the session's authenticated username.
func (c *ClientConnection) verifyLogin(username, password string) error {
	ok, err := c.server.Auth.IsValidUser(username, password)
	if err != nil {
		c.server.Metrics.AuthAttempt(false)
		return c.programError(fmt.Errorf("auth backend: %w", err))
	}
	if !ok {
		c.username = ""
		c.authUsername = ""
		c.server.Stats.AuthFailure()
		c.server.Metrics.AuthAttempt(false)
		return c.sendResponse(502, "No permission")
	}
	c.username = username
	c.server.Stats.AuthSuccess()
	c.server.Metrics.AuthAttempt(true)
	return c.sendResponse(281, "Authentication accepted")
}

// handleAuthInfoSASL runs the RFC 4643 SASL PLAIN exchange: an optional
// initial response, otherwise an empty challenge answered on the next
// line. "*" cancels the exchange.
func (c *ClientConnection) handleAuthInfoSASL(args []string) error {
	if len(args) < 1 || !strings.EqualFold(args[0], sasl.Plain) {
		return c.sendResponse(501, "command syntax error (or un-implemented option)")
	}
	if !c.server.Config.AuthEnabled() {
		return c.sendResponse(281, "Authentication accepted")
	}

	var authedUser string
	c.saslServer = sasl.NewPlainServer(func(identity, username, password string) error {
		if identity != "" && identity != username {
			return fmt.Errorf("authorization identity does not match")
		}
		ok, err := c.server.Auth.IsValidUser(username, password)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("invalid credentials")
		}
		authedUser = username
		return nil
	})
	defer func() { c.saslServer = nil }()

	var response []byte
	if len(args) >= 2 {
		decoded, err := base64.StdEncoding.DecodeString(args[1])
		if err != nil {
			return c.sendResponse(501, "command syntax error (or un-implemented option)")
		}
		response = decoded
	} else {
		// Empty server challenge, then read the client response line.
		if err := c.textConn.PrintfLine("383 ="); err != nil {
			return err
		}
		c.conn.SetReadDeadline(time.Now().Add(c.server.idleTimeout()))
		line, err := c.textConn.ReadLine()
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "*" {
			return c.sendResponse(501, "command syntax error (or un-implemented option)")
		}
		decoded, err := base64.StdEncoding.DecodeString(line)
		if err != nil {
			return c.sendResponse(501, "command syntax error (or un-implemented option)")
		}
		response = decoded
	}

	_, done, err := c.saslServer.Next(response)
	if err != nil || !done {
		c.username = ""
		c.server.Stats.AuthFailure()
		c.server.Metrics.AuthAttempt(false)
		return c.sendResponse(502, "No permission")
	}

	c.username = authedUser
	c.server.Stats.AuthSuccess()
	c.server.Metrics.AuthAttempt(true)
	return c.sendResponse(281, "Authentication accepted")
}
