package description

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/suggest/internal/domain"
	"github.com/kailas-cloud/suggest/internal/domain/query"
)

type stubBackend struct{}

func (*stubBackend) Name() string { return "stub" }

func (*stubBackend) MultiSearch(_ context.Context, _ []query.SubQuery) ([]query.Response, error) {
	return nil, nil
}

// foreign satisfies Description by embedding, but is not a known variant.
type foreign struct {
	*Resolved
}

func TestValidate(t *testing.T) {
	b := &stubBackend{}
	tests := []struct {
		name    string
		d       Description
		wantErr error
	}{
		{"nil", nil, domain.ErrInvariantViolation},
		{"batch ok", &SearchBatch{Source: "a", Backend: b, Queries: []query.SubQuery{{Collection: "c"}}}, nil},
		{"batch no origin", &SearchBatch{Backend: b}, domain.ErrInvariantViolation},
		{"batch no backend", &SearchBatch{Source: "a"}, domain.ErrInvariantViolation},
		{"batch bad transform", &SearchBatch{Source: "a", Backend: b, Transform: "facets"}, domain.ErrInvariantViolation},
		{"batch bad query", &SearchBatch{Source: "a", Backend: b, Queries: []query.SubQuery{{}}}, domain.ErrInvariantViolation},
		{"resolved ok", &Resolved{Source: "a", Items: []query.Item{}}, nil},
		{"resolved nil items", &Resolved{Source: "a"}, domain.ErrInvariantViolation},
		{"resolved no origin", &Resolved{Items: []query.Item{}}, domain.ErrInvariantViolation},
		{"foreign variant", foreign{&Resolved{Source: "a", Items: []query.Item{}}}, domain.ErrUnknownDescription},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.d)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestTransform_Apply(t *testing.T) {
	resp := &query.Response{
		Collection: "products",
		Text:       "phone",
		Total:      2,
		Hits:       []query.Item{{"id": "1"}, {"id": "2"}},
	}

	hits := Hits.Apply(resp)
	if len(hits) != 2 || hits[0]["id"] != "1" {
		t.Errorf("Hits.Apply = %v", hits)
	}

	results := Results.Apply(resp)
	if len(results) != 1 {
		t.Fatalf("Results.Apply len = %d, want 1", len(results))
	}
	if results[0]["total"] != 2 || results[0]["collection"] != "products" {
		t.Errorf("Results.Apply = %v", results[0])
	}
}

func TestTransform_Apply_EmptyHits(t *testing.T) {
	var empty Transform
	items := empty.Apply(&query.Response{})
	if items == nil || len(items) != 0 {
		t.Errorf("items = %#v, want empty non-nil slice", items)
	}
}
