package suggest

import (
	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/domain/query"
	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
)

// Item is a single suggestion record.
type Item = query.Item

// Params are backend-specific sub-query parameters.
type Params = query.Params

// SubQuery is one query against a backend collection.
type SubQuery = query.SubQuery

// Response is the backend answer to one SubQuery.
type Response = query.Response

// Backend answers several sub-queries in one call. Implementations must be
// comparable because sub-queries are grouped by backend.
type Backend = description.Backend

// Source is a logical suggestion provider.
type Source = autocomplete.Source

// Input is what a Source sees for one fetch cycle.
type Input = autocomplete.Input

// Description is what a Source asks to have fetched.
type Description = description.Description

// SearchBatch asks a Backend for sub-queries on behalf of a source.
type SearchBatch = description.SearchBatch

// Resolved carries items a source already has.
type Resolved = description.Resolved

// Transform turns backend responses into items.
type Transform = description.Transform

// State is the published autocomplete state of a session.
type State = autocomplete.State

// Status is the fetch-cycle status.
type Status = autocomplete.Status

// Collection is the item list of one source.
type Collection = autocomplete.Collection

// Query is one sub-query template of a search source.
type Query struct {
	Collection string
	Params     map[string]string
}

// Transforms.
const (
	Hits    = description.Hits
	Results = description.Results
)
