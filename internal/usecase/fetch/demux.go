package fetch

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/bundle"
	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/domain/query"
	"github.com/kailas-cloud/suggest/internal/metrics"
)

// Drop reasons reported on suggest_dropped_responses_total.
const (
	dropTag    = "tag"
	dropOrigin = "origin"
)

// demux attributes every response to its origin and assembles the bundle.
// Items of one origin are concatenated in sub-query declaration order, whatever
// order the backend answered in.
func (s *Service) demux(p *plan, responses [][]query.Response) (bundle.Bundle, error) {
	// perSeq[desc][seq] holds the items of one sub-query.
	perSeq := make([][][]query.Item, len(p.descs))
	for i, d := range p.descs {
		if batch, ok := d.(*description.SearchBatch); ok {
			perSeq[i] = make([][]query.Item, len(batch.Queries))
		}
	}

	for gi, resps := range responses {
		g := p.groups[gi]
		for ri := range resps {
			resp := &resps[ri]
			sl, ok, err := s.attribute(p, g, ri, resp)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			batch := p.descs[sl.desc].(*description.SearchBatch)
			shaped := *resp
			shaped.Params = withoutTag(resp.Params)
			perSeq[sl.desc][sl.seq] = append(perSeq[sl.desc][sl.seq], batch.Transform.Apply(&shaped)...)
		}
	}

	out := make(bundle.Bundle, len(p.descs))
	for i, d := range p.descs {
		switch v := d.(type) {
		case *description.Resolved:
			out[i] = bundle.Entry{Origin: v.Source, Items: v.Items}
		case *description.SearchBatch:
			items := make([]query.Item, 0)
			for _, seqItems := range perSeq[i] {
				items = append(items, seqItems...)
			}
			out[i] = bundle.Entry{Origin: v.Source, Items: items}
		}
	}
	return out, nil
}

// attribute finds the sub-query a response answers. ok is false when the response
// must be dropped.
func (s *Service) attribute(p *plan, g *group, pos int, resp *query.Response) (slot, bool, error) {
	// No echo channel: fall back to the dispatch order.
	if resp.Params == nil {
		if pos >= len(g.slots) {
			s.drop(dropTag, g, "response beyond dispatched sub-queries", zap.Int("position", pos))
			return slot{}, false, nil
		}
		return g.slots[pos], true, nil
	}

	raw, found := resp.Params[TagParam]
	if !found {
		s.drop(dropTag, g, "response without caller tag", zap.Int("position", pos))
		return slot{}, false, nil
	}
	tag, err := ParseTag(raw)
	if err != nil {
		s.drop(dropTag, g, "undecodable caller tag", zap.Int("position", pos), zap.Error(err))
		return slot{}, false, nil
	}

	di, known := p.origins[tag.Origin]
	var batch *description.SearchBatch
	if known {
		batch, known = p.descs[di].(*description.SearchBatch)
	}
	if !known || tag.Seq >= len(batch.Queries) || batch.Backend != g.backend {
		if s.strict {
			return slot{}, false, fmt.Errorf("%w: backend %s answered for %q",
				domain.ErrUnknownOrigin, g.backend.Name(), raw)
		}
		s.drop(dropOrigin, g, "response for unknown origin", zap.String("tag", raw))
		return slot{}, false, nil
	}
	return slot{desc: di, seq: tag.Seq}, true, nil
}

func (s *Service) drop(reason string, g *group, msg string, fields ...zap.Field) {
	metrics.DroppedResponsesTotal.WithLabelValues(reason).Inc()
	s.logger.Warn(msg, append(fields, zap.String("backend", g.backend.Name()))...)
}

// withoutTag hides the caller tag from what sources publish.
func withoutTag(params query.Params) query.Params {
	if _, ok := params[TagParam]; !ok {
		return params
	}
	out := make(query.Params, len(params)-1)
	for k, v := range params {
		if k != TagParam {
			out[k] = v
		}
	}
	return out
}
