// Package maildir implements the filesystem article store. Each newsgroup
// is a directory under the configured root with the maildir new/, cur/ and
// tmp/ subdirectories; article numbers are positions in the cur/ listing
// ordered by the numeric timestamp prefix of each filename. Parsed header
// metadata is kept in an in-memory cache shared by all sessions using the
// backend.
package maildir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/papercut-news/go-papercut/internal/storage"
)

// Config carries the backend settings from the hierarchy configuration.
type Config struct {
	// Path is the maildir root containing one directory per group.
	Path string
	// Hostname appears in synthesized Path and Xref headers.
	Hostname string
	// ReadOnly controls the posting flag advertised by LIST.
	ReadOnly bool
}

// Backend serves articles from maildir directories.
type Backend struct {
	root     string
	hostname string
	readOnly bool
	procHost string // hostname of this process, used in post filenames
	cache    *headerCache
	postSeq  atomic.Int64
}

// New opens the maildir root and warms the header cache for every group
// found there.
func New(cfg Config) (*Backend, error) {
	fi, err := os.Stat(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("maildir root %s: %w", cfg.Path, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("maildir root %s is not a directory", cfg.Path)
	}
	procHost, err := os.Hostname()
	if err != nil || procHost == "" {
		procHost = "papercut"
	}
	b := &Backend{
		root:     cfg.Path,
		hostname: cfg.Hostname,
		readOnly: cfg.ReadOnly,
		procHost: procHost,
		cache:    newHeaderCache(cfg.Path, procHost),
	}
	b.cache.warm()
	return b, nil
}

// Capabilities reports native message-ID support: on-disk Message-ID
// headers are preserved and resolvable.
func (b *Backend) Capabilities() storage.Capabilities {
	return storage.Capabilities{MessageID: true}
}

// validGroup rejects names that would escape the maildir root.
func validGroup(group string) bool {
	if group == "" || strings.Contains(group, "..") {
		return false
	}
	return !strings.ContainsAny(group, "/\\")
}

func (b *Backend) groupDir(group string) string {
	return filepath.Join(b.root, group)
}

// groupNames enumerates the group directories under the root, sorted.
func (b *Backend) groupNames() []string {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// GroupExists matches the group name case-insensitively against the
// directories under the root.
func (b *Backend) GroupExists(group string) (bool, error) {
	if !validGroup(group) {
		return false, nil
	}
	for _, name := range b.groupNames() {
		if strings.EqualFold(name, group) {
			return true, nil
		}
	}
	return false, nil
}

// ListGroups returns one summary per group directory. The low water mark is
// always 1; numbering is dense from the directory listing.
func (b *Backend) ListGroups() ([]storage.GroupSummary, error) {
	flag := "y"
	if b.readOnly {
		flag = "n"
	}
	var out []storage.GroupSummary
	for _, name := range b.groupNames() {
		b.cache.refresh(name)
		out = append(out, storage.GroupSummary{
			Name: name,
			High: b.cache.count(name),
			Low:  1,
			Flag: flag,
		})
	}
	return out, nil
}

// GroupStats returns dense 1-based numbering: first is always 1 and last
// equals the count, so an empty group yields (0, 1, 0).
func (b *Backend) GroupStats(group string) (storage.GroupStats, error) {
	ok, err := b.GroupExists(group)
	if err != nil {
		return storage.GroupStats{}, err
	}
	if !ok {
		return storage.GroupStats{}, storage.ErrNoSuchGroup
	}
	b.cache.refresh(group)
	count := b.cache.count(group)
	return storage.GroupStats{Count: count, First: 1, Last: count}, nil
}

// ListArticleNumbers returns 1..count for the group.
func (b *Backend) ListArticleNumbers(group string) ([]int, error) {
	ok, err := b.GroupExists(group)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.ErrNoSuchGroup
	}
	b.cache.refresh(group)
	count := b.cache.count(group)
	numbers := make([]int, 0, count)
	for n := 1; n <= count; n++ {
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// FirstArticle returns 1 for any non-empty group.
func (b *Backend) FirstArticle(group string) (int, error) {
	b.cache.refresh(group)
	if b.cache.count(group) == 0 {
		return 0, storage.ErrNoSuchArticle
	}
	return 1, nil
}

// Next returns the following article number, or ErrNoSuchArticle at the end
// of the group.
func (b *Backend) Next(group string, current int) (int, error) {
	b.cache.refresh(group)
	if current >= b.cache.count(group) {
		return 0, storage.ErrNoSuchArticle
	}
	return current + 1, nil
}

// Last returns the preceding article number, or ErrNoSuchArticle at the
// start of the group.
func (b *Backend) Last(group string, current int) (int, error) {
	if current <= 1 {
		return 0, storage.ErrNoSuchArticle
	}
	return current - 1, nil
}

// Stat reports whether the article number is within the group.
func (b *Backend) Stat(group string, number int) (bool, error) {
	b.cache.refresh(group)
	return number >= 1 && number <= b.cache.count(group), nil
}

// MessageID returns the cached message-ID for an article number.
func (b *Backend) MessageID(group string, number int) (string, error) {
	b.cache.refresh(group)
	meta := b.cache.byNumber(group, number)
	if meta == nil {
		return "", storage.ErrNoSuchArticle
	}
	return meta.headers["message-id"], nil
}

// ArticleLocation resolves a message-ID back to its group and current
// article number.
func (b *Backend) ArticleLocation(messageID string) (string, int, error) {
	meta, number := b.cache.byMessageID(messageID)
	if meta == nil || number == 0 {
		return "", 0, storage.ErrNoSuchArticle
	}
	return meta.group, number, nil
}

// readArticle loads an article file and splits it at the first empty line.
func (b *Backend) readArticle(group string, number int) (*articleMeta, []string, []string, error) {
	b.cache.refresh(group)
	meta := b.cache.byNumber(group, number)
	if meta == nil {
		return nil, nil, nil, storage.ErrNoSuchArticle
	}
	data, err := os.ReadFile(meta.filename)
	if err != nil {
		return nil, nil, nil, storage.ErrNoSuchArticle
	}
	text := strings.TrimSuffix(string(data), "\n")
	var head, body []string
	inHead := true
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if inHead && line == "" {
			inHead = false
			continue
		}
		if inHead {
			head = append(head, line)
		} else {
			body = append(body, line)
		}
	}
	return meta, head, body, nil
}

// synthesizedHead builds the header block served for HEAD: a fixed set of
// headers derived from the cached metadata rather than the raw on-disk
// block.
func (b *Backend) synthesizedHead(meta *articleMeta, group string, number int) []string {
	return []string{
		"Path: " + b.hostname,
		"From: " + meta.headers["from"],
		"Newsgroups: " + group,
		"Date: " + meta.headers["date"],
		"Subject: " + meta.headers["subject"],
		fmt.Sprintf("Message-ID: <%d@%s>", number, group),
		fmt.Sprintf("Xref: %s %s:%d", b.hostname, group, number),
	}
}

// Head returns the synthesized header block.
func (b *Backend) Head(group string, number int) ([]string, error) {
	b.cache.refresh(group)
	meta := b.cache.byNumber(group, number)
	if meta == nil {
		return nil, storage.ErrNoSuchArticle
	}
	return b.synthesizedHead(meta, group, number), nil
}

// Body returns the article body as bare lines.
func (b *Backend) Body(group string, number int) ([]string, error) {
	_, _, body, err := b.readArticle(group, number)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Article returns the synthesized header block and the body, so that
// ARTICLE output is exactly HEAD, an empty line, then BODY.
func (b *Backend) Article(group string, number int) (*storage.Article, error) {
	meta, _, body, err := b.readArticle(group, number)
	if err != nil {
		return nil, err
	}
	return &storage.Article{
		Head: b.synthesizedHead(meta, group, number),
		Body: body,
	}, nil
}

// Overview returns XOVER rows for the range. A last of 0 or past the end is
// truncated to the group's high water mark.
func (b *Backend) Overview(group string, first, last int) ([]storage.Overview, error) {
	b.cache.refresh(group)
	metas := b.cache.snapshot(group)
	if last == 0 || last > len(metas) {
		last = len(metas)
	}
	if first < 1 {
		first = 1
	}
	var rows []storage.Overview
	for n := first; n <= last; n++ {
		meta := metas[n-1]
		rows = append(rows, storage.Overview{
			Number:     n,
			Subject:    overviewSafe(meta.headers["subject"]),
			From:       overviewSafe(meta.headers["from"]),
			Date:       overviewSafe(meta.headers["date"]),
			MessageID:  meta.headers["message-id"],
			References: overviewSafe(meta.headers["references"]),
			Bytes:      meta.bytes,
			Lines:      meta.lines,
			Xref:       fmt.Sprintf("%s %s:%d", b.hostname, group, n),
		})
	}
	return rows, nil
}

// overviewSafe keeps header values single-line and tab-free for the
// tab-separated overview format.
func overviewSafe(value string) string {
	return strings.ReplaceAll(value, "\t", " ")
}

// headerValue serves one overview header for XHDR. Unknown headers yield
// empty values, which the caller drops.
func (b *Backend) headerValue(meta *articleMeta, group, header string, number int) string {
	switch strings.ToUpper(header) {
	case "MESSAGE-ID":
		return meta.headers["message-id"]
	case "XREF":
		return fmt.Sprintf("%s %s:%d", b.hostname, group, number)
	case "BYTES":
		return fmt.Sprintf("%d", meta.bytes)
	case "LINES":
		return fmt.Sprintf("%d", meta.lines)
	default:
		return meta.headers[strings.ToLower(header)]
	}
}

// Headers returns XHDR lines over the range, skipping articles where the
// header is absent.
func (b *Backend) Headers(group, header string, first, last int) ([]storage.HeaderValue, error) {
	return b.headersFiltered(group, header, "", first, last)
}

// HeadersMatching is Headers restricted to values matching the wildcard.
func (b *Backend) HeadersMatching(group, header, pattern string, first, last int) ([]storage.HeaderValue, error) {
	return b.headersFiltered(group, header, pattern, first, last)
}

func (b *Backend) headersFiltered(group, header, pattern string, first, last int) ([]storage.HeaderValue, error) {
	b.cache.refresh(group)
	metas := b.cache.snapshot(group)
	if last == 0 || last > len(metas) {
		last = len(metas)
	}
	if first < 1 {
		first = 1
	}
	var out []storage.HeaderValue
	for n := first; n <= last; n++ {
		value := b.headerValue(metas[n-1], group, header, n)
		if value == "" {
			continue
		}
		if pattern != "" && !storage.MatchWildcard(pattern, value) {
			continue
		}
		out = append(out, storage.HeaderValue{Number: n, Value: value})
	}
	return out, nil
}

// NewGroups returns nothing: maildir keeps no group creation history.
func (b *Backend) NewGroups(since time.Time) ([]storage.GroupSummary, error) {
	return nil, nil
}

// NewNews returns message-IDs of articles whose file modification time is
// at or after the timestamp, in groups matching the comma-separated
// wildcard list.
func (b *Backend) NewNews(pattern string, since time.Time) ([]string, error) {
	matched := make(map[string]bool)
	names := b.groupNames()
	for _, token := range strings.Split(pattern, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		for _, name := range names {
			if storage.MatchWildcard(token, name) {
				matched[name] = true
			}
		}
	}

	var groups []string
	for name := range matched {
		groups = append(groups, name)
	}
	sort.Strings(groups)

	var mids []string
	for _, group := range groups {
		b.cache.refresh(group)
		curdir := filepath.Join(b.groupDir(group), "cur")
		for i, name := range b.cache.filenames(group) {
			fi, err := os.Stat(filepath.Join(curdir, name))
			if err != nil || fi.ModTime().Before(since) {
				continue
			}
			if meta := b.cache.byNumber(group, i+1); meta != nil {
				mids = append(mids, meta.headers["message-id"])
			}
		}
	}
	return mids, nil
}

// GroupTitles reports ErrNotCapable: maildir keeps no group descriptions.
func (b *Backend) GroupTitles(pattern string) ([]storage.GroupTitle, error) {
	return nil, storage.ErrNotCapable
}

// Post writes the article to tmp/ and renames it into new/, then refreshes
// the cache so the delivery is promoted to cur/ and becomes visible. The
// basename encodes time, pid and a per-process sequence number.
func (b *Backend) Post(group string, lines []string, remoteAddr, username string) error {
	ok, err := b.GroupExists(group)
	if err != nil {
		return err
	}
	if !ok {
		return storage.ErrNoSuchGroup
	}

	seq := b.postSeq.Add(1)
	now := time.Now()
	basename := fmt.Sprintf("%d.M%dP%dQ%d.%s",
		now.Unix(), now.Nanosecond()/int(time.Millisecond), os.Getpid(), seq, b.procHost)

	tmpPath := filepath.Join(b.groupDir(group), "tmp", basename)
	newPath := filepath.Join(b.groupDir(group), "new", basename)

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrPostingFailed, err)
	}
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", storage.ErrPostingFailed, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", storage.ErrPostingFailed, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", storage.ErrPostingFailed, err)
	}
	if err := os.Rename(tmpPath, newPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", storage.ErrPostingFailed, err)
	}

	b.cache.refresh(group)
	return nil
}
