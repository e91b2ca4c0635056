package storage

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultHierarchy is the reserved prefix for the global backend. Hierarchy
// names beginning with it are rejected at configuration time for all other
// backends.
const DefaultHierarchy = "papercut"

// Router maps hierarchy prefixes to backends. It is populated once at
// startup and treated as read-only afterwards, so lookups take no lock.
type Router struct {
	backends map[string]Backend
	order    []string
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{backends: make(map[string]Backend)}
}

// Register binds a hierarchy prefix to a backend.
func (r *Router) Register(hierarchy string, backend Backend) error {
	if hierarchy == "" {
		return fmt.Errorf("empty hierarchy name")
	}
	if _, dup := r.backends[hierarchy]; dup {
		return fmt.Errorf("hierarchy %q already registered", hierarchy)
	}
	r.backends[hierarchy] = backend
	r.order = append(r.order, hierarchy)
	sort.Strings(r.order)
	return nil
}

// BackendFor resolves a group name to the backend owning the longest
// matching hierarchy prefix, or nil when no prefix matches.
func (r *Router) BackendFor(group string) Backend {
	var match string
	found := false
	for hierarchy := range r.backends {
		if !strings.HasPrefix(group, hierarchy) {
			continue
		}
		if !found || len(hierarchy) > len(match) {
			match = hierarchy
			found = true
		}
	}
	if !found {
		return nil
	}
	return r.backends[match]
}

// BackendWithGroup scans every backend for one that actually carries the
// group, regardless of prefix. Used by NEWNEWS with an exact group name.
func (r *Router) BackendWithGroup(group string) Backend {
	for _, hierarchy := range r.order {
		b := r.backends[hierarchy]
		ok, err := b.GroupExists(group)
		if err == nil && ok {
			return b
		}
	}
	return nil
}

// Backends returns every registered backend in stable (hierarchy name)
// order for fan-out commands.
func (r *Router) Backends() []Backend {
	out := make([]Backend, 0, len(r.order))
	for _, hierarchy := range r.order {
		out = append(out, r.backends[hierarchy])
	}
	return out
}

// Hierarchies returns the registered prefixes in stable order.
func (r *Router) Hierarchies() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ResolveMessageID fans a message-ID lookup out across all backends and
// returns the first hit. Backends without native message-ID support are
// given only the local part of the ID.
func (r *Router) ResolveMessageID(messageID string) (Backend, string, int, error) {
	for _, hierarchy := range r.order {
		b := r.backends[hierarchy]
		group, number, err := b.ArticleLocation(BackendMessageID(b, messageID))
		if err != nil {
			continue
		}
		return b, group, number, nil
	}
	return nil, "", 0, ErrNoSuchArticle
}

// BackendMessageID adapts a message-ID to what the backend can resolve:
// the ID itself, or its local part when the backend lacks the message-id
// capability.
func BackendMessageID(b Backend, messageID string) string {
	if b.Capabilities().MessageID {
		return messageID
	}
	return LocalPart(messageID)
}

// LocalPart strips the angle brackets and host from "<local@host>".
func LocalPart(messageID string) string {
	id := strings.TrimPrefix(messageID, "<")
	if at := strings.Index(id, "@"); at >= 0 {
		id = id[:at]
	}
	return strings.TrimSuffix(id, ">")
}
