// Package query holds the unit of work sent to a search backend and what comes back.
package query

import (
	"errors"
	"maps"
)

// Params are backend options passed through verbatim.
type Params map[string]string

// Clone returns an independent copy. Nil stays nil.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// Item is a single suggestion record.
type Item map[string]any

// SubQuery is one logical query against a backend collection.
type SubQuery struct {
	Collection string
	Text       string
	Params     Params
	// Vector switches the sub-query to KNN when set.
	Vector []float32
}

// Validate checks the sub-query is addressable.
func (q *SubQuery) Validate() error {
	if q.Collection == "" {
		return errors.New("collection is required")
	}
	return nil
}

// WithParam returns a copy of q with key set to value. q itself is left untouched.
func (q SubQuery) WithParam(key, value string) SubQuery {
	params := make(Params, len(q.Params)+1)
	for k, v := range q.Params {
		params[k] = v
	}
	params[key] = value
	q.Params = params
	return q
}

// Response is the backend answer to a single sub-query.
type Response struct {
	Collection string
	Text       string
	// Params echoes what the backend received. Nil means the backend has no echo channel.
	Params Params
	Hits   []Item
	Total  int
}
