// Package description models what a source wants fetched for one fetch cycle.
//
// A Description is a closed sum type: SearchBatch asks a backend for one or more
// sub-queries, Resolved carries items the source already has. The unexported marker
// method keeps other packages from adding variants.
package description

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/query"
)

// Kind is the description discriminant.
type Kind string

// Description kinds.
const (
	KindSearchBatch Kind = "search-batch"
	KindResolved    Kind = "resolved"
)

// Backend is a search client that answers several sub-queries in one call.
// Descriptions are grouped by Backend equality, so implementations must be comparable
// (pointer receivers).
type Backend interface {
	Name() string
	MultiSearch(ctx context.Context, queries []query.SubQuery) ([]query.Response, error)
}

// Description is either a SearchBatch or a Resolved.
type Description interface {
	Origin() string
	Kind() Kind
	isDescription()
}

// SearchBatch asks Backend for Queries on behalf of the origin source.
type SearchBatch struct {
	Source    string
	Backend   Backend
	Queries   []query.SubQuery
	Transform Transform
}

// Origin returns the requesting source id.
func (d *SearchBatch) Origin() string { return d.Source }

// Kind returns KindSearchBatch.
func (d *SearchBatch) Kind() Kind { return KindSearchBatch }

func (*SearchBatch) isDescription() {}

// Resolved carries items that need no backend call.
type Resolved struct {
	Source string
	Items  []query.Item
}

// Origin returns the requesting source id.
func (d *Resolved) Origin() string { return d.Source }

// Kind returns KindResolved.
func (d *Resolved) Kind() Kind { return KindResolved }

func (*Resolved) isDescription() {}

// Validate checks the structural invariants of a single description.
// Errors wrap domain.ErrInvariantViolation or domain.ErrUnknownDescription.
func Validate(d Description) error {
	switch v := d.(type) {
	case nil:
		return fmt.Errorf("%w: description is nil", domain.ErrInvariantViolation)
	case *SearchBatch:
		if v == nil {
			return fmt.Errorf("%w: search batch is nil", domain.ErrInvariantViolation)
		}
		if v.Source == "" {
			return fmt.Errorf("%w: search batch without origin", domain.ErrInvariantViolation)
		}
		if v.Backend == nil {
			return fmt.Errorf("%w: search batch %q has no backend", domain.ErrInvariantViolation, v.Source)
		}
		if !v.Transform.IsValid() {
			return fmt.Errorf("%w: search batch %q: unknown transform %q",
				domain.ErrInvariantViolation, v.Source, v.Transform)
		}
		for i := range v.Queries {
			if err := v.Queries[i].Validate(); err != nil {
				return fmt.Errorf("%w: search batch %q: query %d: %w",
					domain.ErrInvariantViolation, v.Source, i, err)
			}
		}
	case *Resolved:
		if v == nil {
			return fmt.Errorf("%w: resolved is nil", domain.ErrInvariantViolation)
		}
		if v.Source == "" {
			return fmt.Errorf("%w: resolved without origin", domain.ErrInvariantViolation)
		}
		if v.Items == nil {
			return fmt.Errorf("%w: source %q must return a list of items, got nil",
				domain.ErrInvariantViolation, v.Source)
		}
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownDescription, d)
	}
	return nil
}
