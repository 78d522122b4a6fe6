package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/domain/query"
	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
)

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Semantic searches one collection by vector similarity to the query.
type Semantic struct {
	id         string
	backend    description.Backend
	embedder   Embedder
	collection string
	params     query.Params
	transform  description.Transform
}

// NewSemantic creates a semantic source over collection.
func NewSemantic(
	id string, backend description.Backend, embedder Embedder, collection string,
) (*Semantic, error) {
	switch {
	case id == "":
		return nil, errors.New("source id is required")
	case backend == nil:
		return nil, errors.New("backend is required")
	case embedder == nil:
		return nil, errors.New("embedder is required")
	case collection == "":
		return nil, errors.New("collection is required")
	}
	return &Semantic{id: id, backend: backend, embedder: embedder, collection: collection}, nil
}

// WithParams sets backend params sent with every sub-query.
func (s *Semantic) WithParams(p query.Params) *Semantic {
	s.params = p
	return s
}

// WithTransform sets how responses become items.
func (s *Semantic) WithTransform(t description.Transform) *Semantic {
	s.transform = t
	return s
}

// ID implements autocomplete.Source.
func (s *Semantic) ID() string { return s.id }

// Describe implements autocomplete.Source. Empty queries are not embedded.
func (s *Semantic) Describe(ctx context.Context, in autocomplete.Input) (description.Description, error) {
	if in.Query == "" {
		return &description.Resolved{Source: s.id, Items: []query.Item{}}, nil
	}

	vec, err := s.embedder.Embed(ctx, in.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	return &description.SearchBatch{
		Source:  s.id,
		Backend: s.backend,
		Queries: []query.SubQuery{{
			Collection: s.collection,
			Text:       in.Query,
			Params:     s.params.Clone(),
			Vector:     vec,
		}},
		Transform: s.transform,
	}, nil
}
