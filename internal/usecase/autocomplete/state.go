package autocomplete

import (
	"maps"
	"time"

	"github.com/kailas-cloud/suggest/internal/domain/query"
)

// Status is the fetch-cycle status.
type Status string

// Fetch-cycle statuses.
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusStalled Status = "stalled"
)

// DefaultStallThreshold is how long a cycle may load before it is reported stalled.
const DefaultStallThreshold = 300 * time.Millisecond

// Collection is the published item list of one source.
type Collection struct {
	Source string
	Items  []query.Item
}

// State is the autocomplete state published to the UI.
type State struct {
	Query        string
	Status       Status
	Collections  []Collection
	IsOpen       bool
	ActiveItemID *int
	Context      map[string]string
	Err          string
}

// ItemCount returns the number of items across all collections.
func (s *State) ItemCount() int {
	n := 0
	for _, c := range s.Collections {
		n += len(c.Items)
	}
	return n
}

// clone copies the slices and maps the session mutates.
func (s *State) clone() State {
	out := *s
	out.Collections = append([]Collection(nil), s.Collections...)
	out.Context = maps.Clone(s.Context)
	if s.ActiveItemID != nil {
		id := *s.ActiveItemID
		out.ActiveItemID = &id
	}
	return out
}

// Options configure a session.
type Options struct {
	StallThreshold      time.Duration
	OpenOnFocus         bool
	DefaultActiveItemID *int
	ShouldPanelOpen     func(State) bool
	GetSources          SourcesFunc
}

func (o *Options) applyDefaults() {
	if o.StallThreshold <= 0 {
		o.StallThreshold = DefaultStallThreshold
	}
	if o.ShouldPanelOpen == nil {
		o.ShouldPanelOpen = func(s State) bool { return s.ItemCount() > 0 }
	}
	if o.GetSources == nil {
		o.GetSources = StaticSources()
	}
}
