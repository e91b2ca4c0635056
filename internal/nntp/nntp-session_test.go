package nntp

import (
	"fmt"
	"net"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/papercut-news/go-papercut/internal/auth"
	"github.com/papercut-news/go-papercut/internal/config"
	"github.com/papercut-news/go-papercut/internal/eventlog"
	"github.com/papercut-news/go-papercut/internal/storage"
)

// fakeArticle is one stored article for the in-memory test backend.
type fakeArticle struct {
	mid     string
	subject string
	from    string
	date    string
	body    []string
}

func (a *fakeArticle) head() []string {
	return []string{
		"From: " + a.from,
		"Subject: " + a.subject,
		"Date: " + a.date,
		"Message-ID: " + a.mid,
	}
}

// fakeBackend is an in-memory storage.Backend with dense 1-based
// numbering, mirroring the maildir contract.
type fakeBackend struct {
	mu     sync.Mutex
	groups map[string][]*fakeArticle
	posted [][]string
}

func newFakeBackend(groups ...string) *fakeBackend {
	b := &fakeBackend{groups: make(map[string][]*fakeArticle)}
	for _, g := range groups {
		b.groups[g] = nil
	}
	return b
}

func (b *fakeBackend) add(group string, a *fakeArticle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.groups[group] = append(b.groups[group], a)
}

func (b *fakeBackend) article(group string, number int) *fakeArticle {
	b.mu.Lock()
	defer b.mu.Unlock()
	articles := b.groups[group]
	if number < 1 || number > len(articles) {
		return nil
	}
	return articles[number-1]
}

func (b *fakeBackend) Capabilities() storage.Capabilities {
	return storage.Capabilities{MessageID: true}
}

func (b *fakeBackend) GroupExists(group string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.groups[group]
	return ok, nil
}

func (b *fakeBackend) ListGroups() ([]storage.GroupSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []storage.GroupSummary
	for name, articles := range b.groups {
		out = append(out, storage.GroupSummary{Name: name, High: len(articles), Low: 1, Flag: "y"})
	}
	return out, nil
}

func (b *fakeBackend) GroupStats(group string) (storage.GroupStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	articles, ok := b.groups[group]
	if !ok {
		return storage.GroupStats{}, storage.ErrNoSuchGroup
	}
	return storage.GroupStats{Count: len(articles), First: 1, Last: len(articles)}, nil
}

func (b *fakeBackend) ListArticleNumbers(group string) ([]int, error) {
	stats, err := b.GroupStats(group)
	if err != nil {
		return nil, err
	}
	numbers := make([]int, 0, stats.Count)
	for n := 1; n <= stats.Count; n++ {
		numbers = append(numbers, n)
	}
	return numbers, nil
}

func (b *fakeBackend) FirstArticle(group string) (int, error) {
	stats, err := b.GroupStats(group)
	if err != nil || stats.Count == 0 {
		return 0, storage.ErrNoSuchArticle
	}
	return 1, nil
}

func (b *fakeBackend) Next(group string, current int) (int, error) {
	stats, _ := b.GroupStats(group)
	if current >= stats.Count {
		return 0, storage.ErrNoSuchArticle
	}
	return current + 1, nil
}

func (b *fakeBackend) Last(group string, current int) (int, error) {
	if current <= 1 {
		return 0, storage.ErrNoSuchArticle
	}
	return current - 1, nil
}

func (b *fakeBackend) Stat(group string, number int) (bool, error) {
	return b.article(group, number) != nil, nil
}

func (b *fakeBackend) MessageID(group string, number int) (string, error) {
	a := b.article(group, number)
	if a == nil {
		return "", storage.ErrNoSuchArticle
	}
	return a.mid, nil
}

func (b *fakeBackend) ArticleLocation(mid string) (string, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for group, articles := range b.groups {
		for i, a := range articles {
			if a.mid == mid {
				return group, i + 1, nil
			}
		}
	}
	return "", 0, storage.ErrNoSuchArticle
}

func (b *fakeBackend) Article(group string, number int) (*storage.Article, error) {
	a := b.article(group, number)
	if a == nil {
		return nil, storage.ErrNoSuchArticle
	}
	return &storage.Article{Head: a.head(), Body: a.body}, nil
}

func (b *fakeBackend) Head(group string, number int) ([]string, error) {
	a := b.article(group, number)
	if a == nil {
		return nil, storage.ErrNoSuchArticle
	}
	return a.head(), nil
}

func (b *fakeBackend) Body(group string, number int) ([]string, error) {
	a := b.article(group, number)
	if a == nil {
		return nil, storage.ErrNoSuchArticle
	}
	return a.body, nil
}

func (b *fakeBackend) Overview(group string, first, last int) ([]storage.Overview, error) {
	stats, err := b.GroupStats(group)
	if err != nil {
		return nil, err
	}
	if last == 0 || last > stats.Count {
		last = stats.Count
	}
	if first < 1 {
		first = 1
	}
	var rows []storage.Overview
	for n := first; n <= last; n++ {
		a := b.article(group, n)
		rows = append(rows, storage.Overview{
			Number:    n,
			Subject:   a.subject,
			From:      a.from,
			Date:      a.date,
			MessageID: a.mid,
			Bytes:     100,
			Lines:     len(a.body),
			Xref:      fmt.Sprintf("news.test %s:%d", group, n),
		})
	}
	return rows, nil
}

func (b *fakeBackend) Headers(group, header string, first, last int) ([]storage.HeaderValue, error) {
	rows, err := b.Overview(group, first, last)
	if err != nil {
		return nil, err
	}
	var out []storage.HeaderValue
	for _, row := range rows {
		var value string
		switch strings.ToUpper(header) {
		case "SUBJECT":
			value = row.Subject
		case "FROM":
			value = row.From
		case "MESSAGE-ID":
			value = row.MessageID
		case "REFERENCES":
			value = row.References
		}
		if value != "" {
			out = append(out, storage.HeaderValue{Number: row.Number, Value: value})
		}
	}
	return out, nil
}

func (b *fakeBackend) HeadersMatching(group, header, pattern string, first, last int) ([]storage.HeaderValue, error) {
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

func (b *fakeBackend) NewGroups(since time.Time) ([]storage.GroupSummary, error) { return nil, nil }

func (b *fakeBackend) NewNews(pattern string, since time.Time) ([]string, error) { return nil, nil }

func (b *fakeBackend) GroupTitles(pattern string) ([]storage.GroupTitle, error) {
	return nil, storage.ErrNotCapable
}

func (b *fakeBackend) Post(group string, lines []string, addr, user string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.groups[group]; !ok {
		return storage.ErrNoSuchGroup
	}
	b.posted = append(b.posted, lines)
	a := &fakeArticle{}
	inHead := true
	for _, line := range lines {
		if inHead && line == "" {
			inHead = false
			continue
		}
		if !inHead {
			a.body = append(a.body, line)
			continue
		}
		if name, value, ok := strings.Cut(line, ":"); ok {
			switch strings.ToLower(name) {
			case "message-id":
				a.mid = strings.TrimSpace(value)
			case "subject":
				a.subject = strings.TrimSpace(value)
			case "from":
				a.from = strings.TrimSpace(value)
			}
		}
	}
	b.groups[group] = append(b.groups[group], a)
	return nil
}

// fakeAuth accepts one credential pair.
type fakeAuth struct {
	user, pass string
}

func (a *fakeAuth) IsValidUser(username, password string) (bool, error) {
	return username == a.user && password == a.pass, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Hostname = "news.test"
	cfg.ServerType = "read-write"
	cfg.Auth = "no"
	return cfg
}

func testServer(t *testing.T, cfg *config.Config, backend storage.Backend, authenticator auth.Authenticator) *Server {
	t.Helper()
	router := storage.NewRouter()
	if err := router.Register(storage.DefaultHierarchy, backend); err != nil {
		t.Fatalf("register backend: %v", err)
	}
	events := eventlog.New(filepath.Join(t.TempDir(), "events.log"))
	srv, err := NewServer(cfg, router, authenticator, events, nil, &sync.WaitGroup{})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

// startSession runs one ClientConnection over a pipe and returns the
// client side.
func startSession(t *testing.T, srv *Server) (*textproto.Conn, func()) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer serverConn.Close()
		NewClientConnection(serverConn, srv).Handle()
	}()
	client := textproto.NewConn(clientConn)
	cleanup := func() {
		clientConn.Close()
		<-done
	}
	return client, cleanup
}

// expectLine reads one reply line and checks its prefix.
func expectLine(t *testing.T, client *textproto.Conn, prefix string) string {
	t.Helper()
	line, err := client.ReadLine()
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if !strings.HasPrefix(line, prefix) {
		t.Fatalf("got %q, want prefix %q", line, prefix)
	}
	return line
}

func threeArticleBackend() *fakeBackend {
	backend := newFakeBackend("papercut.test")
	for i, subject := range []string{"A", "B", "C"} {
		backend.add("papercut.test", &fakeArticle{
			mid:     fmt.Sprintf("<m%d@test>", i+1),
			subject: subject,
			from:    "x@y",
			date:    "Mon, 02 Jan 2006 15:04:05 GMT",
			body:    []string{"body " + subject},
		})
	}
	return backend
}

func TestGreetingAndQuit(t *testing.T) {
	srv := testServer(t, testConfig(t), newFakeBackend("papercut.test"), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	greeting := expectLine(t, client, "200 ")
	if !strings.Contains(greeting, "news.test Papercut") || !strings.Contains(greeting, "(posting allowed)") {
		t.Errorf("unexpected greeting %q", greeting)
	}

	client.PrintfLine("QUIT")
	expectLine(t, client, "205 ")
}

func TestReadOnlyServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.ServerType = "read-only"
	srv := testServer(t, cfg, newFakeBackend("papercut.test"), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "201 ")

	client.PrintfLine("MODE READER")
	expectLine(t, client, "201 Hello, you can't post")

	client.PrintfLine("POST")
	expectLine(t, client, "440 ")
}

func TestUnknownCommand(t *testing.T) {
	srv := testServer(t, testConfig(t), newFakeBackend("papercut.test"), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")
	client.PrintfLine("FROBNICATE")
	expectLine(t, client, "500 command not recognized")
}

func TestGroupSelection(t *testing.T) {
	srv := testServer(t, testConfig(t), threeArticleBackend(), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")

	client.PrintfLine("GROUP nonexistent.group")
	expectLine(t, client, "411 ")

	client.PrintfLine("GROUP papercut.test")
	expectLine(t, client, "211 3 1 3 papercut.test")
}

func TestEmptyGroup(t *testing.T) {
	srv := testServer(t, testConfig(t), newFakeBackend("papercut.empty"), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")
	client.PrintfLine("GROUP papercut.empty")
	expectLine(t, client, "211 0 1 0 papercut.empty")

	// No article was ever selected in the empty group.
	client.PrintfLine("ARTICLE")
	expectLine(t, client, "420 ")
}

func TestStatRoundTrip(t *testing.T) {
	srv := testServer(t, testConfig(t), threeArticleBackend(), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")
	client.PrintfLine("GROUP papercut.test")
	expectLine(t, client, "211 ")

	client.PrintfLine("STAT 2")
	expectLine(t, client, "223 2 <m2@test>")

	client.PrintfLine("STAT <m2@test>")
	expectLine(t, client, "223 2 <m2@test>")

	client.PrintfLine("STAT 9")
	expectLine(t, client, "423 ")
}

func TestArticleEqualsHeadPlusBody(t *testing.T) {
	srv := testServer(t, testConfig(t), threeArticleBackend(), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")
	client.PrintfLine("GROUP papercut.test")
	expectLine(t, client, "211 ")

	client.PrintfLine("HEAD 1")
	expectLine(t, client, "221 1 ")
	head, err := client.ReadDotLines()
	if err != nil {
		t.Fatalf("read head: %v", err)
	}

	client.PrintfLine("BODY 1")
	expectLine(t, client, "222 1 ")
	body, err := client.ReadDotLines()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	client.PrintfLine("ARTICLE 1")
	expectLine(t, client, "220 1 ")
	article, err := client.ReadDotLines()
	if err != nil {
		t.Fatalf("read article: %v", err)
	}

	want := append(append(append([]string{}, head...), ""), body...)
	if strings.Join(article, "\n") != strings.Join(want, "\n") {
		t.Errorf("ARTICLE != HEAD + blank + BODY:\ngot  %q\nwant %q", article, want)
	}
}

func TestNextLastBoundaries(t *testing.T) {
	srv := testServer(t, testConfig(t), threeArticleBackend(), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")

	client.PrintfLine("NEXT")
	expectLine(t, client, "412 ")

	client.PrintfLine("GROUP papercut.test")
	expectLine(t, client, "211 ")

	// A virgin session steps onto article 1 first.
	client.PrintfLine("NEXT")
	expectLine(t, client, "223 1 ")
	client.PrintfLine("NEXT")
	expectLine(t, client, "223 2 ")
	client.PrintfLine("NEXT")
	expectLine(t, client, "223 3 ")
	client.PrintfLine("NEXT")
	expectLine(t, client, "421 ")

	client.PrintfLine("LAST")
	expectLine(t, client, "223 2 ")
	client.PrintfLine("LAST")
	expectLine(t, client, "223 1 ")
	client.PrintfLine("LAST")
	expectLine(t, client, "422 ")
}

func TestXOver(t *testing.T) {
	srv := testServer(t, testConfig(t), threeArticleBackend(), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")

	client.PrintfLine("XOVER")
	expectLine(t, client, "412 ")

	client.PrintfLine("GROUP papercut.test")
	expectLine(t, client, "211 ")

	client.PrintfLine("XOVER 1-3")
	expectLine(t, client, "224 ")
	rows, err := client.ReadDotLines()
	if err != nil {
		t.Fatalf("read overview: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for i, row := range rows {
		fields := strings.Split(row, "\t")
		if len(fields) != 9 {
			t.Fatalf("row %d has %d fields: %q", i, len(fields), row)
		}
		if fields[0] != fmt.Sprintf("%d", i+1) {
			t.Errorf("row %d number = %s", i, fields[0])
		}
		if !strings.HasPrefix(fields[8], "Xref: news.test papercut.test:") {
			t.Errorf("row %d xref = %q", i, fields[8])
		}
	}
	if got := strings.Split(rows[1], "\t")[1]; got != "B" {
		t.Errorf("row 2 subject = %q, want B", got)
	}

	// Range past the end of the group yields only the terminator.
	client.PrintfLine("XOVER 5-")
	expectLine(t, client, "224 ")
	rows, err = client.ReadDotLines()
	if err != nil {
		t.Fatalf("read empty overview: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows for range past end, want 0", len(rows))
	}

	// OVER is an alias.
	client.PrintfLine("OVER 1")
	expectLine(t, client, "224 ")
	if rows, _ = client.ReadDotLines(); len(rows) != 1 {
		t.Errorf("OVER 1: got %d rows, want 1", len(rows))
	}
}

func TestXHdrAndXPat(t *testing.T) {
	srv := testServer(t, testConfig(t), threeArticleBackend(), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")
	client.PrintfLine("GROUP papercut.test")
	expectLine(t, client, "211 ")

	client.PrintfLine("XHDR subject 1-3")
	expectLine(t, client, "221 ")
	lines, err := client.ReadDotLines()
	if err != nil {
		t.Fatalf("read xhdr: %v", err)
	}
	if len(lines) != 3 || lines[0] != "1 A" || lines[2] != "3 C" {
		t.Errorf("XHDR subject = %q", lines)
	}

	client.PrintfLine("XHDR X-Nonsense 1-3")
	expectLine(t, client, "501 ")

	client.PrintfLine("XPAT subject 1-3 [AB]")
	expectLine(t, client, "221 ")
	lines, _ = client.ReadDotLines()
	if len(lines) != 0 {
		t.Errorf("XPAT with literal pattern matched %q", lines)
	}

	client.PrintfLine("XPAT subject 1-3 A C")
	expectLine(t, client, "221 ")
	lines, _ = client.ReadDotLines()
	if len(lines) != 2 || lines[0] != "1 A" || lines[1] != "3 C" {
		t.Errorf("XPAT multi-pattern = %q", lines)
	}

	// HDR aliases XHDR.
	client.PrintfLine("HDR from 1")
	expectLine(t, client, "221 ")
	lines, _ = client.ReadDotLines()
	if len(lines) != 1 || lines[0] != "1 x@y" {
		t.Errorf("HDR from = %q", lines)
	}
}

func TestListGroup(t *testing.T) {
	srv := testServer(t, testConfig(t), threeArticleBackend(), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")

	client.PrintfLine("LISTGROUP papercut.test")
	expectLine(t, client, "211 3 1 3 papercut.test")
	numbers, err := client.ReadDotLines()
	if err != nil {
		t.Fatalf("read listgroup: %v", err)
	}
	if len(numbers) != 3 || numbers[0] != "1" || numbers[2] != "3" {
		t.Errorf("LISTGROUP numbers = %q", numbers)
	}

	// The article pointer moved to the first listed number.
	client.PrintfLine("STAT")
	expectLine(t, client, "223 1 ")
}

func TestListVariants(t *testing.T) {
	srv := testServer(t, testConfig(t), threeArticleBackend(), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")

	client.PrintfLine("LIST")
	expectLine(t, client, "215 list of newsgroups follows")
	groups, err := client.ReadDotLines()
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	if len(groups) != 1 || !strings.HasPrefix(groups[0], "papercut.test 3 1 ") {
		t.Errorf("LIST = %q", groups)
	}

	client.PrintfLine("LIST OVERVIEW.FMT")
	expectLine(t, client, "215 ")
	fmtLines, _ := client.ReadDotLines()
	want := []string{"Subject:", "From:", "Date:", "Message-ID:", "References:", "Bytes:", "Lines:", "Xref:full"}
	if strings.Join(fmtLines, ",") != strings.Join(want, ",") {
		t.Errorf("LIST OVERVIEW.FMT = %q", fmtLines)
	}

	client.PrintfLine("LIST EXTENSIONS")
	expectLine(t, client, "215 Extensions supported by server.")
	ext, _ := client.ReadDotLines()
	found := false
	for _, e := range ext {
		if e == "XOVER" {
			found = true
		}
	}
	if !found {
		t.Errorf("LIST EXTENSIONS missing XOVER: %q", ext)
	}
}

func TestXGTitle(t *testing.T) {
	srv := testServer(t, testConfig(t), threeArticleBackend(), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")

	client.PrintfLine("XGTITLE")
	expectLine(t, client, "412 ")

	// The maildir-style backend keeps no descriptions.
	client.PrintfLine("XGTITLE papercut.*")
	expectLine(t, client, "481 ")

	// LIST NEWSGROUPS stays 215 even so.
	client.PrintfLine("LIST NEWSGROUPS")
	expectLine(t, client, "215 information follows")
	if lines, err := client.ReadDotLines(); err != nil || len(lines) != 0 {
		t.Errorf("LIST NEWSGROUPS = %q, %v", lines, err)
	}
}

func TestAuthGate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth = "yes"
	cfg.AuthBackend = "sqlite"
	srv := testServer(t, cfg, threeArticleBackend(), &fakeAuth{user: "alice", pass: "s3cret"})
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")

	client.PrintfLine("LIST")
	expectLine(t, client, "480 Authentication required")

	client.PrintfLine("MODE READER")
	expectLine(t, client, "200 ")

	client.PrintfLine("AUTHINFO USER alice")
	expectLine(t, client, "381 ")

	client.PrintfLine("AUTHINFO PASS wrong")
	expectLine(t, client, "502 ")

	client.PrintfLine("AUTHINFO USER alice")
	expectLine(t, client, "381 ")
	client.PrintfLine("AUTHINFO PASS s3cret")
	expectLine(t, client, "281 ")

	client.PrintfLine("LIST")
	expectLine(t, client, "215 ")
	if _, err := client.ReadDotLines(); err != nil {
		t.Fatalf("read list after auth: %v", err)
	}
}

func TestAuthDisabledAcceptsAnything(t *testing.T) {
	srv := testServer(t, testConfig(t), threeArticleBackend(), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")
	client.PrintfLine("AUTHINFO USER whoever")
	expectLine(t, client, "281 ")
	client.PrintfLine("AUTHINFO PASS whatever")
	expectLine(t, client, "281 ")
}

func TestPostAndReRead(t *testing.T) {
	backend := threeArticleBackend()
	srv := testServer(t, testConfig(t), backend, nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")
	client.PrintfLine("GROUP papercut.test")
	expectLine(t, client, "211 3 1 3 papercut.test")

	client.PrintfLine("POST")
	expectLine(t, client, "340 ")

	for _, line := range []string{
		"From: u@e",
		"Newsgroups: papercut.test",
		"Subject: hello",
		"Message-ID: <a@b>",
		"",
		"body line",
		".",
	} {
		if err := client.PrintfLine("%s", line); err != nil {
			t.Fatalf("send post line: %v", err)
		}
	}
	expectLine(t, client, "240 ")

	client.PrintfLine("STAT <a@b>")
	expectLine(t, client, "223 4 <a@b>")

	client.PrintfLine("GROUP papercut.test")
	expectLine(t, client, "211 4 1 4 papercut.test")

	if len(backend.posted) != 1 {
		t.Fatalf("backend recorded %d posts, want 1", len(backend.posted))
	}
}

func TestPostUnroutableGroup(t *testing.T) {
	backend := threeArticleBackend()
	srv := testServer(t, testConfig(t), backend, nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")

	client.PrintfLine("POST")
	expectLine(t, client, "340 ")
	for _, line := range []string{"Newsgroups: alt.nowhere", "", "x", "."} {
		client.PrintfLine("%s", line)
	}
	expectLine(t, client, "441 ")

	if len(backend.posted) != 0 {
		t.Errorf("backend recorded %d posts for unroutable group", len(backend.posted))
	}
}

func TestBlankLineSentinel(t *testing.T) {
	srv := testServer(t, testConfig(t), newFakeBackend("papercut.test"), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")
	for i := 0; i < 10; i++ {
		if err := client.PrintfLine(""); err != nil {
			t.Fatalf("send blank line %d: %v", i, err)
		}
	}
	if _, err := client.ReadLine(); err == nil {
		t.Error("expected connection close after 10 blank lines")
	}
}

func TestIdleTimeout(t *testing.T) {
	srv := testServer(t, testConfig(t), newFakeBackend("papercut.test"), nil)
	srv.IdleTimeout = 50 * time.Millisecond
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")
	if _, err := client.ReadLine(); err == nil {
		t.Error("expected connection close after idle timeout")
	}
}

func TestBasicCommands(t *testing.T) {
	srv := testServer(t, testConfig(t), newFakeBackend("papercut.test"), nil)
	client, cleanup := startSession(t, srv)
	defer cleanup()

	expectLine(t, client, "200 ")

	client.PrintfLine("DATE")
	date := expectLine(t, client, "111 ")
	if len(date) != len("111 ")+14 {
		t.Errorf("DATE reply %q is not YYYYMMDDhhmmss", date)
	}

	client.PrintfLine("SLAVE")
	expectLine(t, client, "202 ")

	client.PrintfLine("IHAVE <x@y>")
	expectLine(t, client, "435 ")

	client.PrintfLine("MODE STREAM")
	expectLine(t, client, "500 Command not understood")

	client.PrintfLine("XVERSION")
	expectLine(t, client, "200 Papercut ")

	client.PrintfLine("HELP")
	expectLine(t, client, "100 ")
	if _, err := client.ReadDotLines(); err != nil {
		t.Fatalf("read help: %v", err)
	}
}
