// Package fetch batches the sub-queries of a fetch cycle into one call per backend and
// reassembles the responses per source.
package fetch

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/bundle"
	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/domain/query"
	"github.com/kailas-cloud/suggest/internal/metrics"
)

// Service is the source executor and response demultiplexer.
type Service struct {
	strict bool
	logger *zap.Logger
}

// New creates a fetch service. A nil logger disables logging.
func New(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// WithStrict makes responses attributed to an unknown origin fail the cycle
// instead of being dropped.
func (s *Service) WithStrict(strict bool) *Service {
	s.strict = strict
	return s
}

// slot addresses one declared sub-query: the description it belongs to and its
// position within that description.
type slot struct {
	desc int
	seq  int
}

// group is every sub-query headed for the same backend, flattened in declaration order.
type group struct {
	backend description.Backend
	queries []query.SubQuery
	slots   []slot
}

// plan is the grouped, tagged form of one cycle's descriptions.
type plan struct {
	descs   []description.Description
	origins map[string]int
	groups  []*group
}

// Resolve executes descriptions and returns one bundle entry per description, in
// input order. Any backend failure fails the whole call; no partial bundle is returned.
func (s *Service) Resolve(
	ctx context.Context, descs []description.Description,
) (bundle.Bundle, error) {
	p, err := newPlan(descs)
	if err != nil {
		return nil, err
	}

	responses, err := s.dispatch(ctx, p)
	if err != nil {
		return nil, err
	}

	return s.demux(p, responses)
}

// newPlan validates descriptions, groups search batches by backend identity, and tags
// every sub-query with its origin.
func newPlan(descs []description.Description) (*plan, error) {
	p := &plan{
		descs:   descs,
		origins: make(map[string]int, len(descs)),
	}
	byBackend := make(map[description.Backend]int)

	for i, d := range descs {
		if err := description.Validate(d); err != nil {
			return nil, fmt.Errorf("description %d: %w", i, err)
		}
		origin := d.Origin()
		if prev, dup := p.origins[origin]; dup {
			return nil, fmt.Errorf("%w: origin %q declared by descriptions %d and %d",
				domain.ErrInvariantViolation, origin, prev, i)
		}
		p.origins[origin] = i

		batch, ok := d.(*description.SearchBatch)
		if !ok {
			continue
		}

		if !reflect.TypeOf(batch.Backend).Comparable() {
			return nil, fmt.Errorf("%w: backend %T of %q cannot be grouped by identity",
				domain.ErrInvariantViolation, batch.Backend, origin)
		}
		gi, found := byBackend[batch.Backend]
		if !found {
			gi = len(p.groups)
			byBackend[batch.Backend] = gi
			p.groups = append(p.groups, &group{backend: batch.Backend})
		}
		g := p.groups[gi]
		for seq, q := range batch.Queries {
			tag := Tag{Origin: origin, Seq: seq}
			g.queries = append(g.queries, q.WithParam(TagParam, tag.String()))
			g.slots = append(g.slots, slot{desc: i, seq: seq})
		}
	}
	return p, nil
}

// dispatch issues exactly one backend call per group, concurrently.
func (s *Service) dispatch(ctx context.Context, p *plan) ([][]query.Response, error) {
	responses := make([][]query.Response, len(p.groups))

	eg, egCtx := errgroup.WithContext(ctx)
	for gi, g := range p.groups {
		if len(g.queries) == 0 {
			continue
		}
		eg.Go(func() error {
			resps, err := s.call(egCtx, g)
			if err != nil {
				return err
			}
			responses[gi] = resps
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

func (s *Service) call(ctx context.Context, g *group) ([]query.Response, error) {
	name := g.backend.Name()
	start := time.Now()

	resps, err := g.backend.MultiSearch(ctx, g.queries)

	duration := time.Since(start)
	metrics.BackendCallDuration.WithLabelValues(name).Observe(duration.Seconds())
	metrics.BackendBatchSize.WithLabelValues(name).Observe(float64(len(g.queries)))

	if err != nil {
		metrics.BackendCallsTotal.WithLabelValues(name, "error").Inc()
		s.logger.Warn("Backend call failed",
			zap.String("backend", name),
			zap.Int("queries", len(g.queries)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("backend %s: %w", name, err)
	}

	metrics.BackendCallsTotal.WithLabelValues(name, "success").Inc()
	s.logger.Debug("Backend call completed",
		zap.String("backend", name),
		zap.Int("queries", len(g.queries)),
		zap.Int("responses", len(resps)),
		zap.Duration("duration", duration),
	)
	return resps, nil
}
