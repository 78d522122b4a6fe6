// Package autocomplete owns the fetch cycle: it turns an input event into a published
// state, tracking the idle/loading/stalled status of the cycle in flight.
package autocomplete

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/metrics"
)

// Session is the state of one autocomplete input.
//
// At most one cycle is current. Starting a cycle stops the previous cycle's stall
// timer but lets its backend calls finish; their results are discarded when they
// arrive after a newer cycle started.
type Session struct {
	id       string
	opts     Options
	resolver Resolver
	logger   *zap.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	stallTimer *time.Timer
	lastActive time.Time
}

// NewSession creates an idle session.
func NewSession(id string, resolver Resolver, opts Options, logger *zap.Logger) *Session {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:         id,
		opts:       opts,
		resolver:   resolver,
		logger:     logger.With(zap.String("session_id", id)),
		state:      State{Status: StatusIdle},
		lastActive: time.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// SetContext merges values into the state context that sources can read.
func (s *Session) SetContext(values map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Context == nil {
		s.state.Context = make(map[string]string, len(values))
	}
	for k, v := range values {
		s.state.Context[k] = v
	}
	s.lastActive = time.Now()
}

// OnInput runs a fetch cycle for query and publishes its result.
// It returns domain.ErrStaleCycle when a newer cycle started before this one finished.
func (s *Session) OnInput(ctx context.Context, q string) error {
	start := time.Now()

	s.mu.Lock()
	s.stopStallTimerLocked()
	s.generation++
	gen := s.generation
	s.lastActive = start
	s.state.Query = q
	s.state.ActiveItemID = copyID(s.opts.DefaultActiveItemID)
	s.state.Err = ""

	if q == "" && !s.opts.OpenOnFocus {
		s.state.Status = StatusIdle
		for i := range s.state.Collections {
			s.state.Collections[i].Items = nil
		}
		s.state.IsOpen = s.opts.ShouldPanelOpen(s.state.clone())
		s.mu.Unlock()
		metrics.CyclesTotal.WithLabelValues("empty").Inc()
		return nil
	}

	s.state.Status = StatusLoading
	s.stallTimer = time.AfterFunc(s.opts.StallThreshold, func() { s.markStalled(gen) })
	in := Input{Query: q, State: s.state.clone()}
	s.mu.Unlock()

	collections, err := s.fetch(ctx, in)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		metrics.CyclesTotal.WithLabelValues("stale").Inc()
		s.logger.Debug("Discarding stale fetch cycle",
			zap.Uint64("generation", gen),
			zap.Uint64("current", s.generation),
			zap.String("query", q),
		)
		return fmt.Errorf("cycle %d: %w", gen, domain.ErrStaleCycle)
	}

	s.stopStallTimerLocked()
	s.state.Status = StatusIdle
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		s.state.Err = err.Error()
		s.logger.Warn("Fetch cycle failed", zap.String("query", q), zap.Error(err))
		return fmt.Errorf("fetch cycle: %w", err)
	}

	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	s.state.Collections = collections
	s.state.IsOpen = s.opts.ShouldPanelOpen(s.state.clone())
	if id := s.state.ActiveItemID; id != nil && *id >= s.state.ItemCount() {
		s.state.ActiveItemID = nil
	}
	return nil
}

// OnSubmit closes the panel and lets recording sources remember the query.
func (s *Session) OnSubmit(ctx context.Context, q string) error {
	s.mu.Lock()
	s.stopStallTimerLocked()
	s.generation++
	s.state.Query = q
	s.state.Status = StatusIdle
	s.state.IsOpen = false
	s.state.ActiveItemID = nil
	s.lastActive = time.Now()
	in := Input{Query: q, State: s.state.clone()}
	s.mu.Unlock()

	if q == "" {
		return nil
	}

	sources, err := s.opts.GetSources(ctx, in)
	if err != nil {
		return fmt.Errorf("get sources: %w", err)
	}
	var errs []error
	for _, src := range sources {
		rec, ok := src.(Recorder)
		if !ok {
			continue
		}
		if err := rec.Record(ctx, q); err != nil {
			errs = append(errs, fmt.Errorf("record %q: %w", src.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// fetch asks every source for its description and resolves them as one batch.
func (s *Session) fetch(ctx context.Context, in Input) ([]Collection, error) {
	sources, err := s.opts.GetSources(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("get sources: %w", err)
	}

	descs := make([]description.Description, len(sources))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, src := range sources {
		eg.Go(func() error {
			d, err := src.Describe(egCtx, in)
			if err != nil {
				return fmt.Errorf("source %q: %w", src.ID(), err)
			}
			if d != nil && d.Origin() != src.ID() {
				return fmt.Errorf("%w: source %q described itself as %q",
					domain.ErrInvariantViolation, src.ID(), d.Origin())
			}
			descs[i] = d
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	b, err := s.resolver.Resolve(ctx, descs)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	collections := make([]Collection, len(b))
	for i, e := range b {
		collections[i] = Collection{Source: e.Origin, Items: e.Items}
	}
	return collections, nil
}

func (s *Session) markStalled(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state.Status != StatusLoading {
		return
	}
	s.state.Status = StatusStalled
	metrics.StalledCyclesTotal.Inc()
}

func (s *Session) stopStallTimerLocked() {
	if s.stallTimer != nil {
		s.stallTimer.Stop()
		s.stallTimer = nil
	}
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func copyID(id *int) *int {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
