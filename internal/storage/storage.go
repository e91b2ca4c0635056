// Package storage defines the contract between the NNTP front-end and the
// article stores behind it. Each backend owns one or more newsgroup
// hierarchies and is registered with a Router that resolves group names by
// longest prefix.
package storage

import (
	"errors"
	"time"
)

// Sentinel errors shared by all backends. The protocol layer maps these onto
// NNTP status codes.
var (
	ErrNoSuchGroup   = errors.New("no such news group")
	ErrNoSuchArticle = errors.New("no such article")
	ErrNotCapable    = errors.New("operation not supported by backend")
	ErrPostingFailed = errors.New("posting failed")
)

// Capabilities describes optional behaviors a backend advertises.
type Capabilities struct {
	// MessageID reports whether the backend resolves full RFC 822
	// message-IDs. When false, callers strip an ID down to its local part
	// before handing it to the backend.
	MessageID bool
}

// GroupSummary is one LIST line: group name, high and low water marks and
// the posting flag ("y", "n" or "m").
type GroupSummary struct {
	Name string
	High int
	Low  int
	Flag string
}

// GroupStats mirrors the GROUP response: estimated article count plus the
// first and last article numbers.
type GroupStats struct {
	Count int
	First int
	Last  int
}

// Overview is one XOVER row. Bytes counts newlines; Xref is the full
// "host group:number" tail without the "Xref: " prefix.
type Overview struct {
	Number     int
	Subject    string
	From       string
	Date       string
	MessageID  string
	References string
	Bytes      int
	Lines      int
	Xref       string
}

// HeaderValue is one XHDR result line.
type HeaderValue struct {
	Number int
	Value  string
}

// GroupTitle is one XGTITLE / LIST NEWSGROUPS line. Description may be
// empty for stores that keep no group metadata.
type GroupTitle struct {
	Name        string
	Description string
}

// Article is a full article split at the first empty line.
type Article struct {
	Head []string
	Body []string
}

// Backend is the capability set every article store implements.
//
// Article numbers are 1-based and dense within a group. Range arguments
// follow the overview convention: last == 0 means "through the end of the
// group". Implementations return ErrNoSuchGroup and ErrNoSuchArticle for
// misses and ErrNotCapable for operations they cannot serve.
type Backend interface {
	Capabilities() Capabilities

	// GroupExists reports whether the backend carries the group. Group
	// names compare case-insensitively.
	GroupExists(group string) (bool, error)

	// ListGroups returns one summary per group for LIST.
	ListGroups() ([]GroupSummary, error)

	// GroupStats returns the GROUP numbers for one group.
	GroupStats(group string) (GroupStats, error)

	// ListArticleNumbers returns every valid article number in the group,
	// ascending, for LISTGROUP.
	ListArticleNumbers(group string) ([]int, error)

	// FirstArticle returns the number of the first article in the group.
	FirstArticle(group string) (int, error)

	// Next and Last step the article pointer and return ErrNoSuchArticle
	// at the group boundary.
	Next(group string, current int) (int, error)
	Last(group string, current int) (int, error)

	// Stat reports whether the article number exists in the group.
	Stat(group string, number int) (bool, error)

	// MessageID returns the message-ID of an article number.
	MessageID(group string, number int) (string, error)

	// ArticleLocation resolves a message-ID (or its local part, per
	// Capabilities) to a group and article number.
	ArticleLocation(messageID string) (group string, number int, err error)

	// Article, Head and Body return the corresponding parts as bare lines
	// without CRLF or dot-stuffing.
	Article(group string, number int) (*Article, error)
	Head(group string, number int) ([]string, error)
	Body(group string, number int) ([]string, error)

	// Overview returns XOVER rows for the range, truncated to the group's
	// high water mark.
	Overview(group string, first, last int) ([]Overview, error)

	// Headers returns XHDR lines for one header over the range. Header
	// names are matched case-insensitively.
	Headers(group, header string, first, last int) ([]HeaderValue, error)

	// HeadersMatching is Headers filtered by a wildcard pattern
	// ('*' and '?') applied to the header value.
	HeadersMatching(group, header, pattern string, first, last int) ([]HeaderValue, error)

	// NewGroups returns groups created since the timestamp. Stores without
	// creation history return an empty slice.
	NewGroups(since time.Time) ([]GroupSummary, error)

	// NewNews returns message-IDs of articles received since the timestamp
	// in groups matched by the wildcard.
	NewNews(pattern string, since time.Time) ([]string, error)

	// GroupTitles returns group descriptions matching the wildcard.
	GroupTitles(pattern string) ([]GroupTitle, error)

	// Post stores a complete article (headers, empty line, body) in the
	// group. The remote address and authenticated username are available
	// for trace headers and audit logs.
	Post(group string, lines []string, remoteAddr, username string) error
}
