// Package source holds the concrete autocomplete sources.
package source

import (
	"context"
	"errors"

	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/domain/query"
	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
)

// Template is one sub-query a search source issues per cycle.
type Template struct {
	Collection string
	Params     query.Params
}

// Search asks a backend for one sub-query per template.
type Search struct {
	id              string
	backend         description.Backend
	templates       []Template
	transform       description.Transform
	skipEmpty       bool
	contextQueryKey string
}

// NewSearch creates a search source. Templates are issued in order.
func NewSearch(id string, backend description.Backend, templates ...Template) (*Search, error) {
	if id == "" {
		return nil, errors.New("source id is required")
	}
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if len(templates) == 0 {
		return nil, errors.New("at least one query template is required")
	}
	return &Search{id: id, backend: backend, templates: templates}, nil
}

// WithTransform sets how responses become items.
func (s *Search) WithTransform(t description.Transform) *Search {
	s.transform = t
	return s
}

// WithSkipEmpty makes the source return no items for an empty query.
func (s *Search) WithSkipEmpty(skip bool) *Search {
	s.skipEmpty = skip
	return s
}

// WithContextQuery makes the source search for the context value under key
// instead of the typed query when that value is set.
func (s *Search) WithContextQuery(key string) *Search {
	s.contextQueryKey = key
	return s
}

// ID implements autocomplete.Source.
func (s *Search) ID() string { return s.id }

// Describe implements autocomplete.Source.
func (s *Search) Describe(_ context.Context, in autocomplete.Input) (description.Description, error) {
	text := in.Query
	if s.contextQueryKey != "" {
		if v := in.State.Context[s.contextQueryKey]; v != "" {
			text = v
		}
	}
	if text == "" && s.skipEmpty {
		return &description.Resolved{Source: s.id, Items: []query.Item{}}, nil
	}

	queries := make([]query.SubQuery, len(s.templates))
	for i, t := range s.templates {
		queries[i] = query.SubQuery{
			Collection: t.Collection,
			Text:       text,
			Params:     t.Params.Clone(),
		}
	}
	return &description.SearchBatch{
		Source:    s.id,
		Backend:   s.backend,
		Queries:   queries,
		Transform: s.transform,
	}, nil
}
