package nntp

import (
	"bufio"
	"errors"
	"io"
	"log"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/emersion/go-sasl"

	"github.com/papercut-news/go-papercut/internal/eventlog"
	"github.com/papercut-news/go-papercut/internal/storage"
)

// maxBlankLines is the broken-client sentinel: this many consecutive empty
// command lines terminate the session.
const maxBlankLines = 10

// ClientConnection represents one client session on the NNTP server. Only
// the handling goroutine touches its fields.
type ClientConnection struct {
	conn       net.Conn
	textConn   *textproto.Conn
	server     *Server
	remoteHost string

	// Reader state
	currentGroup   string
	currentBackend storage.Backend
	currentArticle int // 0 = no article selected

	// Posting state
	posting      bool
	articleLines []string

	// Auth state
	authUsername string // from AUTHINFO USER, not yet verified
	username     string // accepted username, empty until 281
	saslServer   sasl.Server

	terminated bool
	blankLines int
	created    time.Time
}

// NewClientConnection wraps an accepted connection.
func NewClientConnection(conn net.Conn, server *Server) *ClientConnection {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	return &ClientConnection{
		conn:       conn,
		textConn:   textproto.NewConn(conn),
		server:     server,
		remoteHost: host,
		created:    time.Now(),
	}
}

// Handle runs the session: greeting, then the command loop until QUIT,
// timeout, EOF or the blank-line sentinel.
func (c *ClientConnection) Handle() {
	if err := c.sendWelcome(); err != nil {
		return
	}

	for !c.terminated {
		c.conn.SetReadDeadline(time.Now().Add(c.server.idleTimeout()))
		line, err := c.textConn.ReadLine()
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				c.server.Events.Printf("Connection timed out from %s", c.remoteHost)
				c.server.Metrics.ConnectionTimedOut()
			} else if !errors.Is(err, io.EOF) {
				log.Printf("read error from %s: %v", c.remoteHost, err)
			}
			return
		}

		// While receiving an article the line goes into the buffer
		// verbatim; a sole dot ends the post.
		if c.posting {
			if line == DOT {
				if err := c.finishPost(); err != nil {
					return
				}
			} else {
				c.articleLines = append(c.articleLines, line)
			}
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			c.blankLines++
			if c.blankLines >= maxBlankLines {
				c.server.Events.Printf("Closing connection to broken client %s (%d blank lines)", c.remoteHost, c.blankLines)
				return
			}
			continue
		}
		c.blankLines = 0

		if eventlog.SensitiveCommand(line) {
			c.server.Events.Printf("AUTHINFO PASS from %s", c.remoteHost)
		} else {
			c.server.Events.Printf("%s from %s", line, c.remoteHost)
		}

		if err := c.handleCommand(line); err != nil {
			return
		}
	}
}

// sendWelcome greets the client per server type.
func (c *ClientConnection) sendWelcome() error {
	if c.server.Config.ReadOnly() {
		return c.sendResponse(201, "%s Papercut %s server ready (no posting allowed)", c.server.Config.Hostname, Version)
	}
	return c.sendResponse(200, "%s Papercut %s server ready (posting allowed)", c.server.Config.Hostname, Version)
}

// handleCommand tokenizes and dispatches one command line. The returned
// error is a connection-level write failure; protocol errors are replied
// to in-band and keep the session alive.
func (c *ClientConnection) handleCommand(line string) error {
	parts := strings.Fields(line)
	verb := strings.ToUpper(parts[0])
	args := parts[1:]

	c.server.Stats.CommandExecuted(verb)
	c.server.Metrics.CommandProcessed(verb)

	// Aliases: OVER is XOVER, HDR is XHDR, XROVER is XHDR REFERENCES.
	switch verb {
	case "OVER":
		verb = "XOVER"
	case "HDR":
		verb = "XHDR"
	case "XROVER":
		verb = "XHDR"
		args = append([]string{"REFERENCES"}, args...)
	}

	if !knownCommands[verb] {
		return c.sendResponse(500, "command not recognized")
	}

	// Authentication gate: an unauthenticated session may only negotiate.
	if c.server.Config.AuthEnabled() && c.username == "" && verb != "AUTHINFO" && verb != "MODE" {
		return c.sendResponse(480, "Authentication required")
	}

	switch verb {
	case "ARTICLE", "BODY", "HEAD", "STAT":
		return c.handleArticlePart(verb, args)
	case "GROUP":
		return c.handleGroup(args)
	case "LIST":
		return c.handleList(args)
	case "POST":
		return c.handlePost()
	case "HELP":
		return c.handleHelp()
	case "LAST":
		return c.handleLast()
	case "NEXT":
		return c.handleNext()
	case "NEWGROUPS":
		return c.handleNewGroups(args)
	case "NEWNEWS":
		return c.handleNewNews(args)
	case "QUIT":
		return c.handleQuit()
	case "MODE":
		return c.handleMode(args)
	case "XOVER":
		return c.handleXOver(args)
	case "XPAT":
		return c.handleXPat(args)
	case "LISTGROUP":
		return c.handleListGroup(args)
	case "XGTITLE":
		return c.handleXGTitle(args)
	case "XHDR":
		return c.handleXHdr(args)
	case "SLAVE":
		return c.handleSlave()
	case "DATE":
		return c.handleDate()
	case "IHAVE":
		return c.handleIHave(args)
	case "AUTHINFO":
		return c.handleAuthInfo(args)
	case "XVERSION":
		return c.handleXVersion()
	}
	return c.sendResponse(500, "command not recognized")
}

// knownCommands is the supported verb set after alias rewriting.
var knownCommands = map[string]bool{
	"ARTICLE": true, "BODY": true, "HEAD": true, "STAT": true,
	"GROUP": true, "LIST": true, "POST": true, "HELP": true,
	"LAST": true, "NEWGROUPS": true, "NEWNEWS": true, "NEXT": true,
	"QUIT": true, "MODE": true, "XOVER": true, "XPAT": true,
	"LISTGROUP": true, "XGTITLE": true, "XHDR": true, "SLAVE": true,
	"DATE": true, "IHAVE": true, "AUTHINFO": true, "XVERSION": true,
}

// sendResponse sends a single status line.
func (c *ClientConnection) sendResponse(code int, format string, args ...any) error {
	return c.textConn.PrintfLine("%d "+format, append([]any{code}, args...)...)
}

// sendMultiline sends a status line followed by a dot-terminated block.
// The DotWriter handles dot-stuffing and the closing ".".
func (c *ClientConnection) sendMultiline(statusLine string, lines []string) error {
	if err := c.textConn.PrintfLine("%s", statusLine); err != nil {
		return err
	}
	dw := c.textConn.DotWriter()
	writer := bufio.NewWriter(dw)
	for _, line := range lines {
		if _, err := writer.WriteString(line + CRLF); err != nil {
			dw.Close()
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		dw.Close()
		return err
	}
	return dw.Close()
}

// programError logs an unexpected backend failure and reports it to the
// client without dropping the session.
func (c *ClientConnection) programError(err error) error {
	log.Printf("command error from %s: %v", c.remoteHost, err)
	return c.sendResponse(503, "program error, function not performed")
}

// RemoteAddr returns the remote address of the connection.
func (c *ClientConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
