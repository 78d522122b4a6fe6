package suggest

import (
	"context"
	"time"

	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
)

// Session is one autocomplete input with its own fetch cycles.
// A result is published only by the latest cycle; older ones return ErrStaleCycle.
type Session struct {
	s   *autocomplete.Session
	obs *observer
}

// ID returns the session id.
func (s *Session) ID() string { return s.s.ID() }

// State returns a snapshot of the published state.
func (s *Session) State() State { return s.s.State() }

// SetContext merges values that sources may read on later cycles.
func (s *Session) SetContext(values map[string]string) { s.s.SetContext(values) }

// Input runs a fetch cycle for q and returns the state it published.
func (s *Session) Input(ctx context.Context, q string) (State, error) {
	start := time.Now()
	err := s.s.OnInput(ctx, q)
	s.obs.observe("input", start, err)
	return s.s.State(), err
}

// Submit closes the panel and lets recording sources remember q.
func (s *Session) Submit(ctx context.Context, q string) error {
	start := time.Now()
	err := s.s.OnSubmit(ctx, q)
	s.obs.observe("submit", start, err)
	return err
}
