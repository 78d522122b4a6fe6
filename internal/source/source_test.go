package source

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/domain/query"
	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
)

// --- Mocks ---

type mockBackend struct{}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) MultiSearch(_ context.Context, qs []query.SubQuery) ([]query.Response, error) {
	return make([]query.Response, len(qs)), nil
}

type mockEmbedder struct {
	vec  []float32
	err  error
	seen []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.seen = append(m.seen, text)
	return m.vec, m.err
}

type mockStore struct {
	added []string
	err   error
}

func (m *mockStore) Add(_ context.Context, q string) error {
	if m.err != nil {
		return m.err
	}
	m.added = append([]string{q}, m.added...)
	return nil
}

func (m *mockStore) List(_ context.Context, prefix string, limit int) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []string
	for _, q := range m.added {
		if strings.HasPrefix(q, prefix) && len(out) < limit {
			out = append(out, q)
		}
	}
	return out, nil
}

func input(q string) autocomplete.Input {
	return autocomplete.Input{Query: q}
}

// --- Search ---

func TestSearch_OneSubQueryPerTemplate(t *testing.T) {
	b := &mockBackend{}
	tpl := Template{Collection: "products", Params: query.Params{"hitsPerPage": "4"}}
	src, err := NewSearch("products", b, Template{Collection: "suggestions"}, tpl)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, err := src.Describe(context.Background(), input("sho"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	batch, ok := d.(*description.SearchBatch)
	if !ok {
		t.Fatalf("got %T, want *SearchBatch", d)
	}
	if batch.Backend != b || len(batch.Queries) != 2 {
		t.Fatalf("batch = %+v", batch)
	}
	if batch.Queries[0].Collection != "suggestions" || batch.Queries[1].Text != "sho" {
		t.Errorf("queries = %+v", batch.Queries)
	}

	batch.Queries[1].Params["hitsPerPage"] = "99"
	if tpl.Params["hitsPerPage"] != "4" {
		t.Error("template params must not be shared with sub-queries")
	}
}

func TestSearch_SkipEmpty(t *testing.T) {
	src, _ := NewSearch("s", &mockBackend{}, Template{Collection: "c"})
	src.WithSkipEmpty(true)

	d, err := src.Describe(context.Background(), input(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, ok := d.(*description.Resolved)
	if !ok || r.Items == nil || len(r.Items) != 0 {
		t.Fatalf("got %#v, want empty Resolved", d)
	}
}

func TestSearch_ContextQueryOverride(t *testing.T) {
	src, _ := NewSearch("s", &mockBackend{}, Template{Collection: "c"})
	src.WithContextQuery("productQuery")

	in := input("typed")
	in.State.Context = map[string]string{"productQuery": "picked"}
	d, _ := src.Describe(context.Background(), in)
	if got := d.(*description.SearchBatch).Queries[0].Text; got != "picked" {
		t.Errorf("Text = %q, want picked", got)
	}
}

func TestNewSearch_Validation(t *testing.T) {
	if _, err := NewSearch("", &mockBackend{}, Template{}); err == nil {
		t.Error("expected error for empty id")
	}
	if _, err := NewSearch("s", nil, Template{}); err == nil {
		t.Error("expected error for nil backend")
	}
	if _, err := NewSearch("s", &mockBackend{}); err == nil {
		t.Error("expected error for no templates")
	}
}

// --- Semantic ---

func TestSemantic_EmbedsQuery(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{0.1, 0.2}}
	src, err := NewSemantic("sem", &mockBackend{}, emb, "products")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, err := src.Describe(context.Background(), input("warm jacket"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q := d.(*description.SearchBatch).Queries[0]
	if q.Collection != "products" || len(q.Vector) != 2 {
		t.Errorf("sub-query = %+v", q)
	}
	if len(emb.seen) != 1 || emb.seen[0] != "warm jacket" {
		t.Errorf("embedded %v", emb.seen)
	}
}

func TestSemantic_EmptyQuerySkipsEmbedding(t *testing.T) {
	emb := &mockEmbedder{}
	src, _ := NewSemantic("sem", &mockBackend{}, emb, "products")

	d, err := src.Describe(context.Background(), input(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := d.(*description.Resolved); !ok {
		t.Errorf("got %T, want *Resolved", d)
	}
	if len(emb.seen) != 0 {
		t.Error("empty query must not be embedded")
	}
}

func TestSemantic_EmbedError(t *testing.T) {
	boom := errors.New("quota")
	src, _ := NewSemantic("sem", &mockBackend{}, &mockEmbedder{err: boom}, "products")
	if _, err := src.Describe(context.Background(), input("x")); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

// --- Static ---

func labels(d description.Description) []string {
	var out []string
	for _, it := range d.(*description.Resolved).Items {
		out = append(out, it[DefaultLabelField].(string))
	}
	return out
}

func TestStatic_Match(t *testing.T) {
	src, _ := NewStatic("cat", []query.Item{
		{"label": "Running shoes"},
		{"label": "Rain jacket"},
		{"label": "The runner's guide"},
		{"label": "Sandals"},
	})

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty matches all", "", []string{"Running shoes", "Rain jacket", "The runner's guide", "Sandals"}},
		{"raw prefix", "rai", []string{"Rain jacket"}},
		{"stemmed", "runs", []string{"Running shoes", "The runner's guide"}},
		{"all terms", "run shoe", []string{"Running shoes"}},
		{"stop words dropped", "the sandals", []string{"Sandals"}},
		{"only stop words", "the", []string{"The runner's guide"}},
		{"no match", "boots", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := src.Describe(context.Background(), input(tt.query))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := labels(d); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatic_ItemsNeverNil(t *testing.T) {
	src, _ := NewStatic("cat", nil)
	d, _ := src.Describe(context.Background(), input("x"))
	if d.(*description.Resolved).Items == nil {
		t.Error("Items must be non-nil")
	}
}

func TestStatic_LabelFieldAndLimit(t *testing.T) {
	src, _ := NewStatic("cat", []query.Item{
		{"name": "apple"}, {"name": "apricot"}, {"name": "avocado"},
	})
	src.WithLabelField("name").WithLimit(1)

	d, _ := src.Describe(context.Background(), input("ap"))
	items := d.(*description.Resolved).Items
	if len(items) != 1 || items[0]["name"] != "apple" {
		t.Errorf("items = %v", items)
	}
}

// --- Recent ---

func TestRecent_RecordThenDescribe(t *testing.T) {
	store := &mockStore{}
	src, err := NewRecent("recent", store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	for _, q := range []string{"shoes", "shirt", "jacket"} {
		if err := src.Record(ctx, q); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	d, err := src.Describe(ctx, input("sh"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := labels(d); !slices.Equal(got, []string{"shirt", "shoes"}) {
		t.Errorf("got %v", got)
	}
}

func TestRecent_StoreError(t *testing.T) {
	boom := errors.New("disk")
	src, _ := NewRecent("recent", &mockStore{err: boom})
	if _, err := src.Describe(context.Background(), input("")); !errors.Is(err, boom) {
		t.Errorf("Describe err = %v", err)
	}
	if err := src.Record(context.Background(), "q"); !errors.Is(err, boom) {
		t.Errorf("Record err = %v", err)
	}
}

func TestRecent_IsRecorder(t *testing.T) {
	var _ autocomplete.Recorder = (*Recent)(nil)
}
