// Package app builds backends and sources from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/config"
	"github.com/kailas-cloud/suggest/internal/db"
	dbValkey "github.com/kailas-cloud/suggest/internal/db/valkey"
	"github.com/kailas-cloud/suggest/internal/domain/description"
	"github.com/kailas-cloud/suggest/internal/domain/query"
	"github.com/kailas-cloud/suggest/internal/metrics"
	"github.com/kailas-cloud/suggest/internal/repository/embcache"
	"github.com/kailas-cloud/suggest/internal/source"
	"github.com/kailas-cloud/suggest/internal/transport/algolia"
	openaiEmb "github.com/kailas-cloud/suggest/internal/transport/openai"
	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
)

// Backends holds every configured backend by name.
type Backends struct {
	ByName map[string]description.Backend
	Conns  map[string]db.Conn
}

// BuildBackends creates every configured backend. Connection-backed ones are also kept in Conns.
func BuildBackends(cfgs map[string]config.BackendConfig) (*Backends, error) {
	set := &Backends{
		ByName: make(map[string]description.Backend, len(cfgs)),
		Conns:  make(map[string]db.Conn),
	}
	for name, c := range cfgs {
		switch c.Driver {
		case config.DriverValkey, config.DriverRedis:
			b, err := dbValkey.NewBackend(dbValkey.Config{
				Name:     name,
				Addrs:    c.Addrs,
				Username: c.Username,
				Password: c.Password,
				DB:       c.DB,
			})
			if err != nil {
				set.Close()
				return nil, fmt.Errorf("backend %s: %w", name, err)
			}
			set.ByName[name] = b
			set.Conns[name] = b
		case config.DriverAlgolia:
			b, err := algolia.New(algolia.Config{
				Name:    name,
				BaseURL: c.BaseURL,
				AppID:   c.AppID,
				APIKey:  c.APIKey,
				Timeout: time.Duration(c.TimeoutMs) * time.Millisecond,
			})
			if err != nil {
				set.Close()
				return nil, fmt.Errorf("backend %s: %w", name, err)
			}
			set.ByName[name] = b
		default:
			set.Close()
			return nil, fmt.Errorf("backend %s: unknown driver %q", name, c.Driver)
		}
	}
	return set, nil
}

// WaitForReady blocks until every connection-backed backend answers PING.
func (s *Backends) WaitForReady(
	ctx context.Context, cfgs map[string]config.BackendConfig, logger *zap.Logger,
) error {
	for name, conn := range s.Conns {
		timeout := time.Duration(cfgs[name].ReadinessTimeout) * time.Second
		if err := conn.WaitForReady(ctx, timeout); err != nil {
			return fmt.Errorf("backend %s: %w", name, err)
		}
		logger.Info("Connected to backend", zap.String("backend", name))
	}
	return nil
}

// Close closes every connection-backed backend.
func (s *Backends) Close() {
	for _, c := range s.Conns {
		c.Close()
	}
}

// NewEmbedder creates the query embedder for semantic sources. When a cache backend is
// configured the returned embedder reads through it; provider is always the uncached one.
func NewEmbedder(
	cfg config.EmbeddingConfig, backends *Backends, logger *zap.Logger,
) (emb source.Embedder, provider *openaiEmb.Embedder, err error) {
	provider = openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Logger:     logger,
	})
	if cfg.CacheBackend == "" {
		return provider, provider, nil
	}

	kv, ok := backends.ByName[cfg.CacheBackend].(*dbValkey.Backend)
	if !ok {
		return nil, nil, fmt.Errorf("embedding cache backend %q is not a valkey backend", cfg.CacheBackend)
	}
	cached := embcache.New(provider, kv, cfg.Model, metrics.EmbeddingCacheTotal, logger).
		WithTTL(cfg.CacheTTL())
	return cached, provider, nil
}

// SourceDeps are the shared dependencies sources may need.
type SourceDeps struct {
	Backends map[string]description.Backend
	Embedder source.Embedder
	Recent   source.RecentStore
}

// BuildSources creates sources in declaration order; that order is the bundle order.
func BuildSources(cfgs []config.SourceConfig, deps SourceDeps) ([]autocomplete.Source, error) {
	out := make([]autocomplete.Source, 0, len(cfgs))
	for _, c := range cfgs {
		src, err := buildSource(c, deps)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", c.ID, err)
		}
		out = append(out, src)
	}
	return out, nil
}

func buildSource(c config.SourceConfig, deps SourceDeps) (autocomplete.Source, error) {
	transform := description.Transform(c.Transform)

	switch c.Type {
	case config.SourceSearch:
		templates := make([]source.Template, len(c.Queries))
		for i, q := range c.Queries {
			templates[i] = source.Template{Collection: q.Collection, Params: query.Params(q.Params)}
		}
		s, err := source.NewSearch(c.ID, deps.Backends[c.Backend], templates...)
		if err != nil {
			return nil, err
		}
		return s.WithTransform(transform).WithSkipEmpty(c.SkipEmpty).WithContextQuery(c.ContextQueryKey), nil

	case config.SourceSemantic:
		if deps.Embedder == nil {
			return nil, fmt.Errorf("no embedder configured")
		}
		s, err := source.NewSemantic(c.ID, deps.Backends[c.Backend], deps.Embedder, c.Collection)
		if err != nil {
			return nil, err
		}
		return s.WithParams(query.Params(c.Params)).WithTransform(transform), nil

	case config.SourceStatic:
		items := make([]query.Item, len(c.Items))
		for i, it := range c.Items {
			items[i] = query.Item(it)
		}
		s, err := source.NewStatic(c.ID, items)
		if err != nil {
			return nil, err
		}
		return s.WithLabelField(c.LabelField).WithLimit(c.Limit), nil

	case config.SourceRecent:
		if deps.Recent == nil {
			return nil, fmt.Errorf("no recent-search store configured")
		}
		s, err := source.NewRecent(c.ID, deps.Recent)
		if err != nil {
			return nil, err
		}
		return s.WithLimit(c.Limit), nil
	}
	return nil, fmt.Errorf("unknown source type %q", c.Type)
}

// Needs reports whether any source has the given type.
func Needs(cfgs []config.SourceConfig, typ string) bool {
	for _, c := range cfgs {
		if c.Type == typ {
			return true
		}
	}
	return false
}
