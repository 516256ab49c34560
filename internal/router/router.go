package router

import (
	"errors"
	"strings"

	"github.com/vyrodovalexey/loangw/internal/config"
)

// ErrRouteNotFound is returned when no entry matches a path.
var ErrRouteNotFound = errors.New("route not found")

// apiPrefix is stripped from paths before they are forwarded.
const apiPrefix = "/api"

// Entry maps a path prefix to a service name.
type Entry struct {
	Prefix  string
	Service string
}

// Table is an immutable, ordered route table. It is safe for concurrent use.
type Table struct {
	entries []Entry
}

// New builds a table from entries. The slice is copied, so later changes to
// entries do not affect the table.
func New(entries []Entry) *Table {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Table{entries: cp}
}

// FromConfig builds a table from configured routes in declaration order.
func FromConfig(routes []config.RouteConfig) *Table {
	entries := make([]Entry, 0, len(routes))
	for _, r := range routes {
		entries = append(entries, Entry{Prefix: r.Prefix, Service: r.Service})
	}
	return New(entries)
}

// Match returns the first entry whose prefix starts path.
func (t *Table) Match(path string) (Entry, bool) {
	for _, e := range t.entries {
		if strings.HasPrefix(path, e.Prefix) {
			return e, true
		}
	}
	return Entry{}, false
}

// Resolve returns the service for path or ErrRouteNotFound.
func (t *Table) Resolve(path string) (string, error) {
	e, ok := t.Match(path)
	if !ok {
		return "", ErrRouteNotFound
	}
	return e.Service, nil
}

// Entries returns a copy of the table in declaration order.
func (t *Table) Entries() []Entry {
	cp := make([]Entry, len(t.entries))
	copy(cp, t.entries)
	return cp
}

// TargetURL builds the backend URL for path. A leading "/api" is dropped
// when followed by "/" and the remainder is appended to base unchanged.
func TargetURL(base, path string) string {
	if strings.HasPrefix(path, apiPrefix+"/") {
		path = path[len(apiPrefix):]
	}
	return base + path
}
