// Package cached wraps a storage backend with a badger-backed result
// cache: read operations are memoized with a TTL keyed by method and
// arguments, so expensive backends (forwarding proxies, slow spools) are
// not hit for every command. Posting passes through and invalidates the
// affected group's entries.
package cached

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/papercut-news/go-papercut/internal/storage"
)

// Config carries the cache settings.
type Config struct {
	// Path is the badger database directory.
	Path string
	// TTL is how long a memoized result stays valid.
	TTL time.Duration
}

// Backend decorates another backend with the result cache.
type Backend struct {
	inner storage.Backend
	db    *badger.DB
	ttl   time.Duration
}

// New opens the cache database and wraps the backend.
func New(inner storage.Backend, cfg Config) (*Backend, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open result cache %s: %w", cfg.Path, err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 3 * time.Hour
	}
	return &Backend{inner: inner, db: db, ttl: ttl}, nil
}

// Close releases the cache database. The inner backend is not touched.
func (b *Backend) Close() error {
	return b.db.Close()
}

// cacheKey builds "group|method|digest". The group segment leads so one
// group's entries can be dropped by prefix scan after a post.
func cacheKey(group, method string, args ...any) []byte {
	h := fnv.New64a()
	fmt.Fprint(h, args...)
	return []byte(fmt.Sprintf("%s|%s|%x", group, method, h.Sum64()))
}

// fetch returns the cached value for key or loads, stores and returns it.
// Cache failures degrade to the inner backend, never to an error.
func fetch[T any](b *Backend, key []byte, load func() (T, error)) (T, error) {
	var cached T
	found := false
	b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := gob.NewDecoder(bytes.NewReader(val)).Decode(&cached); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if found {
		return cached, nil
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err == nil {
		b.db.Update(func(txn *badger.Txn) error {
			return txn.SetEntry(badger.NewEntry(key, buf.Bytes()).WithTTL(b.ttl))
		})
	}
	return value, nil
}

// invalidate drops every cached entry for the group, plus the global
// (group-less) entries such as LIST output.
func (b *Backend) invalidate(group string) {
	for _, prefix := range [][]byte{[]byte(group + "|"), []byte("|")} {
		b.db.Update(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil &&
					!errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			}
			return nil
		})
	}
}

// Capabilities passes through.
func (b *Backend) Capabilities() storage.Capabilities {
	return b.inner.Capabilities()
}

// GroupExists passes through: it gates visibility of new groups and must
// stay fresh.
func (b *Backend) GroupExists(group string) (bool, error) {
	return b.inner.GroupExists(group)
}

// ListGroups is memoized globally.
func (b *Backend) ListGroups() ([]storage.GroupSummary, error) {
	return fetch(b, cacheKey("", "ListGroups"), b.inner.ListGroups)
}

// GroupStats is memoized per group.
func (b *Backend) GroupStats(group string) (storage.GroupStats, error) {
	return fetch(b, cacheKey(group, "GroupStats"), func() (storage.GroupStats, error) {
		return b.inner.GroupStats(group)
	})
}

// ListArticleNumbers is memoized per group.
func (b *Backend) ListArticleNumbers(group string) ([]int, error) {
	return fetch(b, cacheKey(group, "ListArticleNumbers"), func() ([]int, error) {
		return b.inner.ListArticleNumbers(group)
	})
}

// FirstArticle passes through; it is a trivial read on every backend.
func (b *Backend) FirstArticle(group string) (int, error) {
	return b.inner.FirstArticle(group)
}

// Next passes through.
func (b *Backend) Next(group string, current int) (int, error) {
	return b.inner.Next(group, current)
}

// Last passes through.
func (b *Backend) Last(group string, current int) (int, error) {
	return b.inner.Last(group, current)
}

// Stat passes through.
func (b *Backend) Stat(group string, number int) (bool, error) {
	return b.inner.Stat(group, number)
}

// MessageID is memoized per article.
func (b *Backend) MessageID(group string, number int) (string, error) {
	return fetch(b, cacheKey(group, "MessageID", number), func() (string, error) {
		return b.inner.MessageID(group, number)
	})
}

// articleLocation carries the two ArticleLocation results through gob.
type articleLocation struct {
	Group  string
	Number int
}

// ArticleLocation is memoized globally; message-ID to article bindings are
// stable for the life of the article.
func (b *Backend) ArticleLocation(messageID string) (string, int, error) {
	loc, err := fetch(b, cacheKey("", "ArticleLocation", messageID), func() (articleLocation, error) {
		group, number, err := b.inner.ArticleLocation(messageID)
		return articleLocation{Group: group, Number: number}, err
	})
	if err != nil {
		return "", 0, err
	}
	return loc.Group, loc.Number, nil
}

// Article is memoized per article.
func (b *Backend) Article(group string, number int) (*storage.Article, error) {
	article, err := fetch(b, cacheKey(group, "Article", number), func() (storage.Article, error) {
		a, err := b.inner.Article(group, number)
		if err != nil {
			return storage.Article{}, err
		}
		return *a, nil
	})
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// Head is memoized per article.
func (b *Backend) Head(group string, number int) ([]string, error) {
	return fetch(b, cacheKey(group, "Head", number), func() ([]string, error) {
		return b.inner.Head(group, number)
	})
}

// Body is memoized per article.
func (b *Backend) Body(group string, number int) ([]string, error) {
	return fetch(b, cacheKey(group, "Body", number), func() ([]string, error) {
		return b.inner.Body(group, number)
	})
}

// Overview is memoized per range.
func (b *Backend) Overview(group string, first, last int) ([]storage.Overview, error) {
	return fetch(b, cacheKey(group, "Overview", first, last), func() ([]storage.Overview, error) {
		return b.inner.Overview(group, first, last)
	})
}

// Headers is memoized per header and range.
func (b *Backend) Headers(group, header string, first, last int) ([]storage.HeaderValue, error) {
	return fetch(b, cacheKey(group, "Headers", header, first, last), func() ([]storage.HeaderValue, error) {
		return b.inner.Headers(group, header, first, last)
	})
}

// HeadersMatching is memoized per header, pattern and range.
func (b *Backend) HeadersMatching(group, header, pattern string, first, last int) ([]storage.HeaderValue, error) {
	return fetch(b, cacheKey(group, "HeadersMatching", header, pattern, first, last), func() ([]storage.HeaderValue, error) {
		return b.inner.HeadersMatching(group, header, pattern, first, last)
	})
}

// NewGroups passes through: the answer depends on the client timestamp.
func (b *Backend) NewGroups(since time.Time) ([]storage.GroupSummary, error) {
	return b.inner.NewGroups(since)
}

// NewNews passes through for the same reason.
func (b *Backend) NewNews(pattern string, since time.Time) ([]string, error) {
	return b.inner.NewNews(pattern, since)
}

// GroupTitles is memoized per pattern.
func (b *Backend) GroupTitles(pattern string) ([]storage.GroupTitle, error) {
	return fetch(b, cacheKey("", "GroupTitles", pattern), func() ([]storage.GroupTitle, error) {
		return b.inner.GroupTitles(pattern)
	})
}

// Post passes through and drops the group's cached results so the new
// article is visible immediately.
func (b *Backend) Post(group string, lines []string, remoteAddr, username string) error {
	if err := b.inner.Post(group, lines, remoteAddr, username); err != nil {
		return err
	}
	b.invalidate(group)
	return nil
}
