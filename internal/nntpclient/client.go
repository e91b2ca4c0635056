// Package nntpclient is a small textproto-based NNTP client used by the
// forwarding proxy backend and the health-check tool.
package nntpclient

import (
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Response codes the client cares about.
const (
	WelcomeCodeMin = 200
	WelcomeCodeMax = 201
	MoreInfoCode   = 381
	AuthSuccess    = 281

	GroupSelected   = 211
	ListFollows     = 215
	ArticleFollows  = 220
	HeadFollows     = 221
	BodyFollows     = 222
	ArticleExists   = 223
	OverviewFollows = 224
	NewNewsFollows  = 230
	NewGroupsFollow = 231
	PostReceived    = 240
	SendArticle     = 340
)

// DefaultConnectTimeout bounds the TCP dial.
var DefaultConnectTimeout = 30 * time.Second

// Config holds the settings for one upstream NNTP server.
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// Group is the parsed GROUP response.
type Group struct {
	Name  string
	Count int
	First int
	Last  int
}

// Conn is a connection to an upstream NNTP server. Commands serialize
// under the connection mutex.
type Conn struct {
	config    Config
	mu        sync.Mutex
	conn      net.Conn
	text      *textproto.Conn
	connected bool
}

// New returns an unconnected client.
func New(config Config) *Conn {
	return &Conn{config: config}
}

// Connect dials the upstream server, reads the greeting and authenticates
// when credentials are configured.
func (c *Conn) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Conn) connectLocked() error {
	if c.connected {
		return nil
	}
	timeout := c.config.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	c.conn = conn
	c.text = textproto.NewConn(conn)

	code, message, err := c.text.ReadCodeLine(WelcomeCodeMin)
	if err != nil && (code < WelcomeCodeMin || code > WelcomeCodeMax) {
		c.closeLocked()
		return fmt.Errorf("unexpected welcome %d %s: %w", code, message, err)
	}
	c.connected = true

	if c.config.Username != "" {
		if err := c.authenticateLocked(); err != nil {
			c.closeLocked()
			return fmt.Errorf("authentication failed: %w", err)
		}
	}
	return nil
}

func (c *Conn) authenticateLocked() error {
	code, message, err := c.cmdLocked(MoreInfoCode, "AUTHINFO USER %s", c.config.Username)
	if err != nil && code != AuthSuccess {
		return fmt.Errorf("AUTHINFO USER: %d %s: %w", code, message, err)
	}
	if code == AuthSuccess {
		return nil
	}
	code, message, err = c.cmdLocked(AuthSuccess, "AUTHINFO PASS %s", c.config.Password)
	if err != nil {
		return fmt.Errorf("AUTHINFO PASS: %d %s: %w", code, message, err)
	}
	return nil
}

// Close sends QUIT and drops the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.cmdLocked(205, "QUIT")
	return c.closeLocked()
}

func (c *Conn) closeLocked() error {
	c.connected = false
	if c.text != nil {
		c.text.Close()
		c.text = nil
		c.conn = nil
		return nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// cmdLocked sends one command and reads its status line.
func (c *Conn) cmdLocked(expectCode int, format string, args ...any) (int, string, error) {
	if !c.connected {
		if err := c.connectLocked(); err != nil {
			return 0, "", err
		}
	}
	id, err := c.text.Cmd(format, args...)
	if err != nil {
		c.closeLocked()
		return 0, "", fmt.Errorf("failed to send command: %w", err)
	}
	c.text.StartResponse(id)
	defer c.text.EndResponse(id)
	code, message, err := c.text.ReadCodeLine(expectCode)
	if code == 0 {
		c.closeLocked()
	}
	return code, message, err
}

// multilineLocked reads the dot-terminated block after a successful status
// line. Dot-unstuffing is handled by textproto.
func (c *Conn) multilineLocked() ([]string, error) {
	lines, err := c.text.ReadDotLines()
	if err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("failed to read multiline response: %w", err)
	}
	return lines, nil
}

// Group selects a newsgroup and returns its stats.
func (c *Conn) Group(name string) (Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	code, message, err := c.cmdLocked(GroupSelected, "GROUP %s", name)
	if err != nil {
		return Group{}, fmt.Errorf("GROUP %s: %d %s: %w", name, code, message, err)
	}
	fields := strings.Fields(message)
	if len(fields) < 4 {
		return Group{}, fmt.Errorf("GROUP %s: malformed response %q", name, message)
	}
	count, _ := strconv.Atoi(fields[0])
	first, _ := strconv.Atoi(fields[1])
	last, _ := strconv.Atoi(fields[2])
	return Group{Name: fields[3], Count: count, First: first, Last: last}, nil
}

// List returns the raw LIST lines ("group high low flag").
func (c *Conn) List() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, message, err := c.cmdLocked(ListFollows, "LIST"); err != nil {
		return nil, fmt.Errorf("LIST: %s: %w", message, err)
	}
	return c.multilineLocked()
}

// ListNewsgroups returns the raw LIST NEWSGROUPS lines.
func (c *Conn) ListNewsgroups(pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if pattern == "" || pattern == "*" {
		_, _, err = c.cmdLocked(ListFollows, "LIST NEWSGROUPS")
	} else {
		_, _, err = c.cmdLocked(ListFollows, "LIST NEWSGROUPS %s", pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("LIST NEWSGROUPS: %w", err)
	}
	return c.multilineLocked()
}

// ListGroup returns the article numbers of a group.
func (c *Conn) ListGroup(group string) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, _, err := c.cmdLocked(GroupSelected, "LISTGROUP %s", group); err != nil {
		return nil, fmt.Errorf("LISTGROUP %s: %w", group, err)
	}
	lines, err := c.multilineLocked()
	if err != nil {
		return nil, err
	}
	numbers := make([]int, 0, len(lines))
	for _, line := range lines {
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil {
			numbers = append(numbers, n)
		}
	}
	return numbers, nil
}

// Stat checks an article by number or message-ID and returns its number
// and message-ID.
func (c *Conn) Stat(spec string) (int, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	code, message, err := c.cmdLocked(ArticleExists, "STAT %s", spec)
	if err != nil {
		return 0, "", fmt.Errorf("STAT %s: %d %s: %w", spec, code, message, err)
	}
	fields := strings.Fields(message)
	if len(fields) < 2 {
		return 0, "", fmt.Errorf("STAT %s: malformed response %q", spec, message)
	}
	number, _ := strconv.Atoi(fields[0])
	return number, fields[1], nil
}

// Article retrieves a full article.
func (c *Conn) Article(spec string) ([]string, error) {
	return c.fetch("ARTICLE", ArticleFollows, spec)
}

// Head retrieves the header block.
func (c *Conn) Head(spec string) ([]string, error) {
	return c.fetch("HEAD", HeadFollows, spec)
}

// Body retrieves the body.
func (c *Conn) Body(spec string) ([]string, error) {
	return c.fetch("BODY", BodyFollows, spec)
}

func (c *Conn) fetch(verb string, expect int, spec string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	code, message, err := c.cmdLocked(expect, "%s %s", verb, spec)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %d %s: %w", verb, spec, code, message, err)
	}
	return c.multilineLocked()
}

// Over returns the raw XOVER lines for an inclusive range.
func (c *Conn) Over(first, last int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, _, err := c.cmdLocked(OverviewFollows, "XOVER %d-%d", first, last); err != nil {
		return nil, fmt.Errorf("XOVER %d-%d: %w", first, last, err)
	}
	return c.multilineLocked()
}

// XHdr returns the raw XHDR lines ("number value") for a range.
func (c *Conn) XHdr(header string, first, last int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, _, err := c.cmdLocked(HeadFollows, "XHDR %s %d-%d", header, first, last); err != nil {
		return nil, fmt.Errorf("XHDR %s %d-%d: %w", header, first, last, err)
	}
	return c.multilineLocked()
}

// NewNews returns message-IDs of articles newer than the timestamp in
// groups matching the wildmat.
func (c *Conn) NewNews(pattern string, since time.Time) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stamp := since.UTC().Format("20060102 150405")
	if _, _, err := c.cmdLocked(NewNewsFollows, "NEWNEWS %s %s GMT", pattern, stamp); err != nil {
		return nil, fmt.Errorf("NEWNEWS %s: %w", pattern, err)
	}
	return c.multilineLocked()
}

// NewGroups returns the raw NEWGROUPS lines for groups created since the
// timestamp.
func (c *Conn) NewGroups(since time.Time) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stamp := since.UTC().Format("20060102 150405")
	if _, _, err := c.cmdLocked(NewGroupsFollow, "NEWGROUPS %s GMT", stamp); err != nil {
		return nil, fmt.Errorf("NEWGROUPS: %w", err)
	}
	return c.multilineLocked()
}

// Post uploads an article. Dot-stuffing is handled by the DotWriter.
func (c *Conn) Post(lines []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	code, message, err := c.cmdLocked(SendArticle, "POST")
	if err != nil {
		return fmt.Errorf("POST: %d %s: %w", code, message, err)
	}
	dw := c.text.DotWriter()
	for _, line := range lines {
		if _, err := fmt.Fprintf(dw, "%s\r\n", line); err != nil {
			dw.Close()
			c.closeLocked()
			return fmt.Errorf("POST: write article: %w", err)
		}
	}
	if err := dw.Close(); err != nil {
		c.closeLocked()
		return fmt.Errorf("POST: finish article: %w", err)
	}
	code, message, err = c.text.ReadCodeLine(PostReceived)
	if err != nil {
		return fmt.Errorf("POST: %d %s: %w", code, message, err)
	}
	return nil
}
