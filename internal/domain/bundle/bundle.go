// Package bundle holds the per-source output of one fetch cycle.
package bundle

import "github.com/kailas-cloud/suggest/internal/domain/query"

// Entry is the item list produced for a single origin.
type Entry struct {
	Origin string
	Items  []query.Item
}

// Bundle lists entries in source declaration order.
type Bundle []Entry

// Get returns the entry for origin.
func (b Bundle) Get(origin string) (Entry, bool) {
	for _, e := range b {
		if e.Origin == origin {
			return e, true
		}
	}
	return Entry{}, false
}

// Origins returns the origin ids in bundle order.
func (b Bundle) Origins() []string {
	out := make([]string, len(b))
	for i, e := range b {
		out[i] = e.Origin
	}
	return out
}
