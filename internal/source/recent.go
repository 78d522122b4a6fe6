package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/domain/query"
	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
)

// DefaultRecentLimit is how many recent searches are shown when no limit is set.
const DefaultRecentLimit = 5

// RecentStore persists submitted queries.
type RecentStore interface {
	Add(ctx context.Context, q string) error
	List(ctx context.Context, prefix string, limit int) ([]string, error)
}

// Recent suggests previously submitted queries, newest first.
type Recent struct {
	id    string
	store RecentStore
	limit int
}

// NewRecent creates a recent-searches source.
func NewRecent(id string, store RecentStore) (*Recent, error) {
	if id == "" {
		return nil, errors.New("source id is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	return &Recent{id: id, store: store, limit: DefaultRecentLimit}, nil
}

// WithLimit caps the number of suggestions.
func (r *Recent) WithLimit(n int) *Recent {
	if n > 0 {
		r.limit = n
	}
	return r
}

// ID implements autocomplete.Source.
func (r *Recent) ID() string { return r.id }

// Describe implements autocomplete.Source.
func (r *Recent) Describe(ctx context.Context, in autocomplete.Input) (description.Description, error) {
	queries, err := r.store.List(ctx, in.Query, r.limit)
	if err != nil {
		return nil, fmt.Errorf("list recent searches: %w", err)
	}
	items := make([]query.Item, len(queries))
	for i, q := range queries {
		items[i] = query.Item{DefaultLabelField: q}
	}
	return &description.Resolved{Source: r.id, Items: items}, nil
}

// Record implements autocomplete.Recorder.
func (r *Recent) Record(ctx context.Context, q string) error {
	if err := r.store.Add(ctx, q); err != nil {
		return fmt.Errorf("add recent search: %w", err)
	}
	return nil
}
