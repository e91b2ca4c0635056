package maildir

import (
	"bufio"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// articleMeta is the cached metadata for one on-disk article. Header values
// have embedded newlines stripped; absent headers are empty strings. The
// message-id entry is never empty: it is synthesized from the filename when
// the article lacks one.
type articleMeta struct {
	filename string // absolute path under <group>/cur
	cachedAt time.Time
	lines    int
	bytes    int
	group    string
	headers  map[string]string // date, from, message-id, subject, references
}

// headerCache co-indexes article metadata by filename, message-ID and
// (group, position). All access goes through mu; the directory snapshot per
// group ("dircache") doubles as the article-number-to-filename mapping.
type headerCache struct {
	mu       sync.Mutex
	root     string
	hostname string // fallback host for synthesized message-IDs

	byFile   map[string]*articleMeta
	byMID    map[string]string   // message-id → filename
	dircache map[string][]string // group → sorted basenames under cur/
}

func newHeaderCache(root, hostname string) *headerCache {
	return &headerCache{
		root:     root,
		hostname: hostname,
		byFile:   make(map[string]*articleMeta),
		byMID:    make(map[string]string),
		dircache: make(map[string][]string),
	}
}

// warm builds the initial snapshot for every group directory under root.
func (hc *headerCache) warm() {
	entries, err := os.ReadDir(hc.root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			hc.refresh(e.Name())
		}
	}
}

// refresh promotes freshly delivered articles and reconciles the in-memory
// snapshot of one group with the directory contents. New files are parsed
// and indexed, vanished files are evicted together with their message-ID
// entries. A missing group directory leaves the cache untouched.
func (hc *headerCache) refresh(group string) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.refreshLocked(group)
}

func (hc *headerCache) refreshLocked(group string) {
	groupdir := filepath.Join(hc.root, group)
	if fi, err := os.Stat(groupdir); err != nil || !fi.IsDir() {
		return
	}

	promoteNewToCur(groupdir)

	curdir := filepath.Join(groupdir, "cur")
	entries, err := os.ReadDir(curdir)
	if err != nil {
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sortMaildirNames(names)

	old := hc.dircache[group]
	hc.dircache[group] = names

	current := make(map[string]bool, len(names))
	for _, name := range names {
		current[name] = true
		filename := filepath.Join(curdir, name)
		if _, cached := hc.byFile[filename]; !cached {
			hc.insertLocked(filename, group)
		}
	}

	for _, name := range old {
		if current[name] {
			continue
		}
		filename := filepath.Join(curdir, name)
		meta, cached := hc.byFile[filename]
		if !cached {
			continue
		}
		delete(hc.byFile, filename)
		delete(hc.byMID, meta.headers["message-id"])
	}
}

func (hc *headerCache) insertLocked(filename, group string) {
	meta := readMessage(filename, group, hc.hostname)
	if meta == nil {
		return
	}
	hc.byFile[filename] = meta
	hc.byMID[meta.headers["message-id"]] = filename
}

// count returns the number of articles in the group snapshot.
func (hc *headerCache) count(group string) int {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return len(hc.dircache[group])
}

// byNumber returns the metadata of the 1-based article number in the group,
// or nil when the number is out of range.
func (hc *headerCache) byNumber(group string, number int) *articleMeta {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.byNumberLocked(group, number)
}

func (hc *headerCache) byNumberLocked(group string, number int) *articleMeta {
	names := hc.dircache[group]
	if number < 1 || number > len(names) {
		return nil
	}
	filename := filepath.Join(hc.root, group, "cur", names[number-1])
	return hc.byFile[filename]
}

// byMessageID returns the metadata and current article number for a
// message-ID, or nil and 0 when unknown or no longer on disk.
func (hc *headerCache) byMessageID(messageID string) (*articleMeta, int) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	filename, ok := hc.byMID[messageID]
	if !ok {
		return nil, 0
	}
	meta := hc.byFile[filename]
	if meta == nil {
		return nil, 0
	}
	hc.refreshLocked(meta.group)
	base := filepath.Base(filename)
	for i, name := range hc.dircache[meta.group] {
		if name == base {
			return meta, i + 1
		}
	}
	return nil, 0
}

// snapshot returns the group's article metadata in number order under a
// single lock acquisition, so range commands see one consistent view.
// Metadata records are immutable once cached.
func (hc *headerCache) snapshot(group string) []*articleMeta {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	names := hc.dircache[group]
	out := make([]*articleMeta, 0, len(names))
	for _, name := range names {
		filename := filepath.Join(hc.root, group, "cur", name)
		if meta := hc.byFile[filename]; meta != nil {
			out = append(out, meta)
		}
	}
	return out
}

// filenames returns a copy of the group's ordered basename snapshot.
func (hc *headerCache) filenames(group string) []string {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	names := hc.dircache[group]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// promoteNewToCur moves delivered articles from new/ to cur/, appending the
// maildir "seen" suffix. Rename failures mean another process won the race
// and are ignored.
func promoteNewToCur(groupdir string) {
	newdir := filepath.Join(groupdir, "new")
	entries, err := os.ReadDir(newdir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		from := filepath.Join(newdir, e.Name())
		to := filepath.Join(groupdir, "cur", e.Name()+":2,")
		_ = os.Rename(from, to)
	}
}

// sortMaildirNames orders basenames by the integer formed from the digits
// preceding the first dot, with the full name as tie-break.
func sortMaildirNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		a, b := maildirSortKey(names[i]), maildirSortKey(names[j])
		if a != b {
			return a < b
		}
		return names[i] < names[j]
	})
}

func maildirSortKey(name string) int64 {
	prefix := name
	if dot := strings.Index(name, "."); dot >= 0 {
		prefix = name[:dot]
	}
	digits := filterDigits(prefix)
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// filterDigits reduces a string to its decimal digits.
func filterDigits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// readMessage parses one article file into metadata. The whole file is read
// once for the line and byte counts; headers are then parsed from the
// in-memory copy. A corrupt header block produces empty header values with
// correct counts rather than an error.
func readMessage(filename, group, fallbackHost string) *articleMeta {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil
	}

	meta := &articleMeta{
		filename: filename,
		cachedAt: time.Now(),
		bytes:    len(data),
		group:    group,
		headers: map[string]string{
			"date":       "",
			"from":       "",
			"message-id": "",
			"subject":    "",
			"references": "",
		},
	}

	text := string(data)
	meta.lines = strings.Count(text, "\n")
	if len(text) > 0 && !strings.HasSuffix(text, "\n") {
		meta.lines++
	}

	reader := textproto.NewReader(bufio.NewReader(strings.NewReader(text)))
	mimeHeader, _ := reader.ReadMIMEHeader()
	for key := range meta.headers {
		value := mimeHeader.Get(key)
		value = strings.ReplaceAll(value, "\n", "")
		value = strings.ReplaceAll(value, "\r", "")
		meta.headers[key] = value
	}
	meta.headers["subject"] = decodeHeader(meta.headers["subject"])
	meta.headers["from"] = decodeHeader(meta.headers["from"])

	if meta.headers["message-id"] == "" {
		meta.headers["message-id"] = synthesizeMessageID(filepath.Base(filename), fallbackHost)
	}
	return meta
}

// synthesizeMessageID derives a deterministic message-ID from a maildir
// basename. The host is taken from the third dot-delimited component up to
// the first comma, falling back to the given host; the remainder of the
// basename is reduced to alphanumerics.
func synthesizeMessageID(basename, fallbackHost string) string {
	host := fallbackHost
	parts := strings.Split(basename, ".")
	if len(parts) > 2 {
		if h := strings.SplitN(parts[2], ",", 2)[0]; h != "" {
			host = h
		}
	}
	local := strings.ReplaceAll(basename, host, "")
	local = filterAlnum(local)
	return "<" + local + "@" + host + ">"
}

func filterAlnum(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
