// Package proxy implements the forwarding backend: every operation is
// delegated to an upstream NNTP server through the nntpclient package, so
// a hierarchy can be served from another news server transparently.
package proxy

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercut-news/go-papercut/internal/nntpclient"
	"github.com/papercut-news/go-papercut/internal/storage"
)

// modifiedByHeader is inserted into relayed posts so loops are visible on
// the upstream server.
const modifiedByHeader = "X-Modified-By: Papercut's forwarding backend"

// Config carries the upstream settings from the hierarchy configuration.
type Config struct {
	// Host is "hostname" or "hostname:port"; the port defaults to 119.
	Host     string
	Username string
	Password string
}

// Backend forwards every storage operation to an upstream NNTP server.
type Backend struct {
	client *nntpclient.Conn
}

// New creates a forwarding backend for the upstream host.
func New(cfg Config) (*Backend, error) {
	host := cfg.Host
	port := 119
	if h, p, err := splitHostPort(host); err == nil {
		host, port = h, p
	}
	if host == "" {
		return nil, fmt.Errorf("forwarding backend needs a host")
	}
	return &Backend{
		client: nntpclient.New(nntpclient.Config{
			Host:     host,
			Port:     port,
			Username: cfg.Username,
			Password: cfg.Password,
		}),
	}, nil
}

func splitHostPort(addr string) (string, int, error) {
	colon := strings.LastIndex(addr, ":")
	if colon < 0 {
		return addr, 119, nil
	}
	port, err := strconv.Atoi(addr[colon+1:])
	if err != nil {
		return "", 0, fmt.Errorf("bad port in %q", addr)
	}
	return addr[:colon], port, nil
}

// Capabilities: the upstream resolves full message-IDs for us.
func (b *Backend) Capabilities() storage.Capabilities {
	return storage.Capabilities{MessageID: true}
}

// GroupExists probes the upstream with GROUP.
func (b *Backend) GroupExists(group string) (bool, error) {
	_, err := b.client.Group(group)
	return err == nil, nil
}

// ListGroups relays the upstream LIST output.
func (b *Backend) ListGroups() ([]storage.GroupSummary, error) {
	lines, err := b.client.List()
	if err != nil {
		return nil, err
	}
	var out []storage.GroupSummary
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		high, _ := strconv.Atoi(fields[1])
		low, _ := strconv.Atoi(fields[2])
		out = append(out, storage.GroupSummary{
			Name: fields[0], High: high, Low: low, Flag: fields[3],
		})
	}
	return out, nil
}

// GroupStats relays GROUP.
func (b *Backend) GroupStats(group string) (storage.GroupStats, error) {
	g, err := b.client.Group(group)
	if err != nil {
		return storage.GroupStats{}, storage.ErrNoSuchGroup
	}
	return storage.GroupStats{Count: g.Count, First: g.First, Last: g.Last}, nil
}

// ListArticleNumbers relays LISTGROUP.
func (b *Backend) ListArticleNumbers(group string) ([]int, error) {
	numbers, err := b.client.ListGroup(group)
	if err != nil {
		return nil, storage.ErrNoSuchGroup
	}
	return numbers, nil
}

// FirstArticle returns the upstream group's first article number.
func (b *Backend) FirstArticle(group string) (int, error) {
	g, err := b.client.Group(group)
	if err != nil || g.Count == 0 {
		return 0, storage.ErrNoSuchArticle
	}
	return g.First, nil
}

// Next steps forward within the upstream group's number range.
func (b *Backend) Next(group string, current int) (int, error) {
	g, err := b.client.Group(group)
	if err != nil || current >= g.Last {
		return 0, storage.ErrNoSuchArticle
	}
	return current + 1, nil
}

// Last steps backward within the upstream group's number range.
func (b *Backend) Last(group string, current int) (int, error) {
	g, err := b.client.Group(group)
	if err != nil || current <= g.First {
		return 0, storage.ErrNoSuchArticle
	}
	return current - 1, nil
}

// Stat relays STAT for a number within the group.
func (b *Backend) Stat(group string, number int) (bool, error) {
	if _, err := b.client.Group(group); err != nil {
		return false, nil
	}
	_, _, err := b.client.Stat(strconv.Itoa(number))
	return err == nil, nil
}

// MessageID asks the upstream for the message-ID of an article number.
func (b *Backend) MessageID(group string, number int) (string, error) {
	if _, err := b.client.Group(group); err != nil {
		return "", storage.ErrNoSuchGroup
	}
	_, mid, err := b.client.Stat(strconv.Itoa(number))
	if err != nil {
		return "", storage.ErrNoSuchArticle
	}
	return mid, nil
}

// ArticleLocation resolves a message-ID upstream: STAT for the number,
// then the article's own Newsgroups header for the group.
func (b *Backend) ArticleLocation(messageID string) (string, int, error) {
	number, _, err := b.client.Stat(messageID)
	if err != nil {
		return "", 0, storage.ErrNoSuchArticle
	}
	head, err := b.client.Head(messageID)
	if err != nil {
		return "", 0, storage.ErrNoSuchArticle
	}
	for _, line := range head {
		if len(line) > 11 && strings.EqualFold(line[:11], "Newsgroups:") {
			group := strings.TrimSpace(line[11:])
			if comma := strings.Index(group, ","); comma >= 0 {
				group = group[:comma]
			}
			return strings.TrimSpace(group), number, nil
		}
	}
	return "", 0, storage.ErrNoSuchArticle
}

// fetchLines selects the group and retrieves one article part.
func (b *Backend) fetchLines(group string, number int, fetch func(string) ([]string, error)) ([]string, error) {
	if _, err := b.client.Group(group); err != nil {
		return nil, storage.ErrNoSuchGroup
	}
	lines, err := fetch(strconv.Itoa(number))
	if err != nil {
		return nil, storage.ErrNoSuchArticle
	}
	return lines, nil
}

// Article retrieves the full article and splits it at the first blank line.
func (b *Backend) Article(group string, number int) (*storage.Article, error) {
	lines, err := b.fetchLines(group, number, b.client.Article)
	if err != nil {
		return nil, err
	}
	article := &storage.Article{}
	inHead := true
	for _, line := range lines {
		if inHead && line == "" {
			inHead = false
			continue
		}
		if inHead {
			article.Head = append(article.Head, line)
		} else {
			article.Body = append(article.Body, line)
		}
	}
	return article, nil
}

// Head relays HEAD.
func (b *Backend) Head(group string, number int) ([]string, error) {
	return b.fetchLines(group, number, b.client.Head)
}

// Body relays BODY.
func (b *Backend) Body(group string, number int) ([]string, error) {
	return b.fetchLines(group, number, b.client.Body)
}

// Overview relays XOVER and reparses the tab-separated rows.
func (b *Backend) Overview(group string, first, last int) ([]storage.Overview, error) {
	g, err := b.client.Group(group)
	if err != nil {
		return nil, storage.ErrNoSuchGroup
	}
	if last == 0 || last > g.Last {
		last = g.Last
	}
	if first > last {
		return nil, nil
	}
	lines, err := b.client.Over(first, last)
	if err != nil {
		return nil, err
	}
	var rows []storage.Overview
	for _, line := range lines {
		fields := strings.Split(line, "\t")
		if len(fields) < 8 {
			continue
		}
		number, _ := strconv.Atoi(fields[0])
		bytes, _ := strconv.Atoi(fields[6])
		count, _ := strconv.Atoi(fields[7])
		row := storage.Overview{
			Number:     number,
			Subject:    fields[1],
			From:       fields[2],
			Date:       fields[3],
			MessageID:  fields[4],
			References: fields[5],
			Bytes:      bytes,
			Lines:      count,
		}
		if len(fields) > 8 {
			row.Xref = strings.TrimSpace(strings.TrimPrefix(fields[8], "Xref:"))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Headers relays XHDR.
func (b *Backend) Headers(group, header string, first, last int) ([]storage.HeaderValue, error) {
	g, err := b.client.Group(group)
	if err != nil {
		return nil, storage.ErrNoSuchGroup
	}
	if last == 0 || last > g.Last {
		last = g.Last
	}
	if first > last {
		return nil, nil
	}
	lines, err := b.client.XHdr(header, first, last)
	if err != nil {
		return nil, err
	}
	var values []storage.HeaderValue
	for _, line := range lines {
		number, value, found := strings.Cut(line, " ")
		if !found {
			continue
		}
		n, err := strconv.Atoi(number)
		if err != nil {
			continue
		}
		values = append(values, storage.HeaderValue{Number: n, Value: value})
	}
	return values, nil
}

// HeadersMatching filters the relayed XHDR lines by the wildcard locally;
// not every upstream supports XPAT.
func (b *Backend) HeadersMatching(group, header, pattern string, first, last int) ([]storage.HeaderValue, error) {
	values, err := b.Headers(group, header, first, last)
	if err != nil {
		return nil, err
	}
	var out []storage.HeaderValue
	for _, v := range values {
		if storage.MatchWildcard(pattern, v.Value) {
			out = append(out, v)
		}
	}
	return out, nil
}

// NewGroups relays NEWGROUPS.
func (b *Backend) NewGroups(since time.Time) ([]storage.GroupSummary, error) {
	lines, err := b.client.NewGroups(since)
	if err != nil {
		return nil, err
	}
	var out []storage.GroupSummary
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		high, _ := strconv.Atoi(fields[1])
		low, _ := strconv.Atoi(fields[2])
		out = append(out, storage.GroupSummary{
			Name: fields[0], High: high, Low: low, Flag: fields[3],
		})
	}
	return out, nil
}

// NewNews relays NEWNEWS.
func (b *Backend) NewNews(pattern string, since time.Time) ([]string, error) {
	return b.client.NewNews(pattern, since)
}

// GroupTitles relays LIST NEWSGROUPS.
func (b *Backend) GroupTitles(pattern string) ([]storage.GroupTitle, error) {
	lines, err := b.client.ListNewsgroups(pattern)
	if err != nil {
		return nil, err
	}
	var out []storage.GroupTitle
	for _, line := range lines {
		name, description, _ := strings.Cut(strings.TrimSpace(line), " ")
		if name == "" {
			continue
		}
		out = append(out, storage.GroupTitle{
			Name:        name,
			Description: strings.TrimSpace(description),
		})
	}
	return out, nil
}

// Post relays the article upstream with the trace header inserted at the
// top of the header block.
func (b *Backend) Post(group string, lines []string, remoteAddr, username string) error {
	relay := make([]string, 0, len(lines)+1)
	relay = append(relay, modifiedByHeader)
	relay = append(relay, lines...)
	if err := b.client.Post(relay); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrPostingFailed, err)
	}
	return nil
}

// Close shuts down the upstream connection.
func (b *Backend) Close() error {
	return b.client.Close()
}
