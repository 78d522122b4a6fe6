package app

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/config"
	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/source"
	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
)

type memRecent struct{ added []string }

func (m *memRecent) Add(_ context.Context, q string) error {
	m.added = append(m.added, q)
	return nil
}

func (m *memRecent) List(_ context.Context, _ string, _ int) ([]string, error) {
	return m.added, nil
}

func TestBuildBackends_Algolia(t *testing.T) {
	set, err := BuildBackends(map[string]config.BackendConfig{
		"hosted": {Driver: config.DriverAlgolia, BaseURL: "http://127.0.0.1:1", AppID: "app", APIKey: "key"},
	})
	if err != nil {
		t.Fatalf("BuildBackends: %v", err)
	}
	defer set.Close()

	b, ok := set.ByName["hosted"]
	if !ok {
		t.Fatal("hosted backend missing")
	}
	if b.Name() != "hosted" {
		t.Errorf("Name() = %q, want hosted", b.Name())
	}
	if len(set.Conns) != 0 {
		t.Errorf("algolia must not be a pooled connection, got %d conns", len(set.Conns))
	}
}

func TestBuildBackends_UnknownDriver(t *testing.T) {
	_, err := BuildBackends(map[string]config.BackendConfig{"x": {Driver: "mysql"}})
	if err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}

func TestBuildSources_OrderAndTypes(t *testing.T) {
	set, err := BuildBackends(map[string]config.BackendConfig{
		"hosted": {Driver: config.DriverAlgolia, BaseURL: "http://127.0.0.1:1", AppID: "app", APIKey: "key"},
	})
	if err != nil {
		t.Fatalf("BuildBackends: %v", err)
	}
	store := &memRecent{}

	cfgs := []config.SourceConfig{
		{ID: "recent", Type: config.SourceRecent, Limit: 3},
		{
			ID: "products", Type: config.SourceSearch, Backend: "hosted", Transform: "hits",
			Queries: []config.QueryConfig{{Collection: "products", Params: map[string]string{"hitsPerPage": "5"}}},
		},
		{
			ID: "categories", Type: config.SourceStatic,
			Items: []map[string]any{{"label": "Shoes"}, {"label": "Shirts"}},
		},
	}
	sources, err := BuildSources(cfgs, SourceDeps{Backends: set.ByName, Recent: store})
	if err != nil {
		t.Fatalf("BuildSources: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("got %d sources, want 3", len(sources))
	}
	for i, want := range []string{"recent", "products", "categories"} {
		if sources[i].ID() != want {
			t.Errorf("sources[%d].ID() = %q, want %q", i, sources[i].ID(), want)
		}
	}
	if _, ok := sources[0].(autocomplete.Recorder); !ok {
		t.Error("recent source must record submitted queries")
	}

	desc, err := sources[2].Describe(context.Background(), autocomplete.Input{Query: "shi"})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	resolved, ok := desc.(*description.Resolved)
	if !ok {
		t.Fatalf("static source returned %T", desc)
	}
	if len(resolved.Items) != 1 || resolved.Items[0]["label"] != "Shirts" {
		t.Errorf("items = %v, want [Shirts]", resolved.Items)
	}
}

func TestBuildSources_MissingDeps(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SourceConfig
		deps SourceDeps
		want string
	}{
		{
			name: "semantic without embedder",
			cfg:  config.SourceConfig{ID: "similar", Type: config.SourceSemantic, Backend: "catalog", Collection: "products"},
			want: "no embedder",
		},
		{
			name: "recent without store",
			cfg:  config.SourceConfig{ID: "recent", Type: config.SourceRecent},
			want: "no recent-search store",
		},
		{
			name: "unknown type",
			cfg:  config.SourceConfig{ID: "x", Type: "graph"},
			want: "unknown source type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildSources([]config.SourceConfig{tt.cfg}, tt.deps)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
			if !strings.Contains(err.Error(), tt.cfg.ID) {
				t.Errorf("error %q should name the source", err)
			}
		})
	}
}

func TestNewEmbedder(t *testing.T) {
	set, err := BuildBackends(map[string]config.BackendConfig{
		"hosted": {Driver: config.DriverAlgolia, BaseURL: "http://127.0.0.1:1", AppID: "app", APIKey: "key"},
	})
	if err != nil {
		t.Fatalf("BuildBackends: %v", err)
	}
	cfg := config.EmbeddingConfig{Provider: "openai", APIKey: "k", Model: "text-embedding-3-small"}

	emb, provider, err := NewEmbedder(cfg, set, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	if emb != source.Embedder(provider) {
		t.Error("without a cache backend the provider is used directly")
	}

	cfg.CacheBackend = "hosted"
	if _, _, err := NewEmbedder(cfg, set, zap.NewNop()); err == nil {
		t.Error("expected error for a non-valkey cache backend")
	}
}

func TestNeeds(t *testing.T) {
	cfgs := []config.SourceConfig{{Type: config.SourceSearch}, {Type: config.SourceStatic}}
	if !Needs(cfgs, config.SourceStatic) {
		t.Error("Needs(static) = false")
	}
	if Needs(cfgs, config.SourceSemantic) {
		t.Error("Needs(semantic) = true")
	}
}

var _ source.RecentStore = (*memRecent)(nil)
