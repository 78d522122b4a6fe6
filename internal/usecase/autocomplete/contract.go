package autocomplete

import (
	"context"

	"github.com/kailas-cloud/suggest/internal/domain/bundle"
	"github.com/kailas-cloud/suggest/internal/domain/description"
)

// Input is what a source sees when asked for its items.
type Input struct {
	Query string
	State State
}

// Source is a logical provider of suggestions, identified by a stable id.
type Source interface {
	ID() string
	Describe(ctx context.Context, in Input) (description.Description, error)
}

// Recorder is implemented by sources that remember submitted queries.
type Recorder interface {
	Record(ctx context.Context, query string) error
}

// Resolver executes the descriptions of one fetch cycle.
type Resolver interface {
	Resolve(ctx context.Context, descs []description.Description) (bundle.Bundle, error)
}

// SourcesFunc picks the sources for a cycle.
type SourcesFunc func(ctx context.Context, in Input) ([]Source, error)

// StaticSources always returns the same sources.
func StaticSources(sources ...Source) SourcesFunc {
	return func(context.Context, Input) ([]Source, error) {
		return sources, nil
	}
}
