package suggest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/app"
	"github.com/kailas-cloud/suggest/internal/config"
	recentrepo "github.com/kailas-cloud/suggest/internal/repository/recent"
	openaiEmb "github.com/kailas-cloud/suggest/internal/transport/openai"
	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
	"github.com/kailas-cloud/suggest/internal/usecase/fetch"
	healthuc "github.com/kailas-cloud/suggest/internal/usecase/health"
)

const (
	defaultReadinessTimeoutSec = 10
	defaultEvictInterval       = time.Minute
)

// sessionManager is the internal interface for session bookkeeping.
type sessionManager interface {
	Create() *autocomplete.Session
	Ephemeral() *autocomplete.Session
	Get(id string) (*autocomplete.Session, error)
	Delete(id string)
}

// Client is the suggest SDK entry point.
type Client struct {
	backends *app.Backends
	recent   *recentrepo.Repo
	sessions sessionManager
	health   healthUseCase
	obs      *observer
	stop     context.CancelFunc
}

// New creates a Client, connects to its backends and builds its sources.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}
	if len(cfg.sources) == 0 {
		return nil, errors.New("suggest: at least one source required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	obs, err := newObserver(logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	backends, backendCfgs, err := createBackends(cfg.backends)
	if err != nil {
		return nil, err
	}
	if err := backends.WaitForReady(ctx, backendCfgs, logger); err != nil {
		backends.Close()
		return nil, fmt.Errorf("suggest: backend not ready: %w", err)
	}

	c := &Client{backends: backends, obs: obs}
	health := healthuc.New()
	for name, conn := range backends.Conns {
		health.WithCheck(name, conn)
	}
	c.health = health

	deps := app.SourceDeps{Backends: backends.ByName, Embedder: cfg.embedder}
	if cfg.embedder == nil && cfg.openai != nil {
		emb := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:   cfg.openai.APIKey,
			BaseURL:  cfg.openai.BaseURL,
			Model:    cfg.openai.Model,
			Provider: cfg.openai.Provider,
			Logger:   logger,
		})
		deps.Embedder = emb
		health.WithCheck("embedding", emb)
	}
	if cfg.recentPath != "" {
		repo, err := recentrepo.Open(cfg.recentPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("suggest: open recent store: %w", err)
		}
		c.recent = repo.WithMaxEntries(cfg.recentMax)
		deps.Recent = c.recent
	}

	sources, err := createSources(cfg.sources, deps)
	if err != nil {
		c.Close()
		return nil, err
	}

	manager := autocomplete.NewManager(
		fetch.New(logger).WithStrict(cfg.strict),
		autocomplete.Options{
			StallThreshold:      cfg.stallThreshold,
			OpenOnFocus:         cfg.openOnFocus,
			DefaultActiveItemID: cfg.defaultActiveItemID,
			GetSources:          autocomplete.StaticSources(sources...),
		},
		logger,
	).WithTTL(cfg.sessionTTL)

	runCtx, stop := context.WithCancel(context.Background())
	go manager.Run(runCtx, defaultEvictInterval)
	c.sessions = manager
	c.stop = stop

	return c, nil
}

func createBackends(specs []backendSpec) (*app.Backends, map[string]config.BackendConfig, error) {
	cfgs := make(map[string]config.BackendConfig, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, b := range specs {
		if seen[b.name] {
			return nil, nil, fmt.Errorf("suggest: duplicate backend %q", b.name)
		}
		seen[b.name] = true
		if b.impl == nil {
			bc := b.cfg
			bc.ReadinessTimeout = defaultReadinessTimeoutSec
			cfgs[b.name] = bc
		}
	}

	backends, err := app.BuildBackends(cfgs)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest: %w", err)
	}
	for _, b := range specs {
		if b.impl != nil {
			backends.ByName[b.name] = b.impl
		}
	}
	return backends, cfgs, nil
}

// createSources builds sources in option order; that order is the collection order.
func createSources(specs []sourceSpec, deps app.SourceDeps) ([]autocomplete.Source, error) {
	out := make([]autocomplete.Source, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		src := spec.impl
		if src == nil {
			built, err := app.BuildSources([]config.SourceConfig{spec.cfg}, deps)
			if err != nil {
				return nil, fmt.Errorf("suggest: %w", err)
			}
			src = built[0]
		}
		if seen[src.ID()] {
			return nil, fmt.Errorf("suggest: duplicate source id %q", src.ID())
		}
		seen[src.ID()] = true
		out = append(out, src)
	}
	return out, nil
}

// Close stops session eviction and releases all resources.
func (c *Client) Close() {
	if c.stop != nil {
		c.stop()
	}
	if c.backends != nil {
		c.backends.Close()
	}
	if c.recent != nil {
		_ = c.recent.Close()
	}
}

// Suggest runs one fetch cycle for q outside any session.
func (c *Client) Suggest(ctx context.Context, q string) (_ []Collection, err error) {
	defer func(start time.Time) { c.obs.observe("suggest", start, err) }(time.Now())

	s := c.sessions.Ephemeral()
	if err := s.OnInput(ctx, q); err != nil {
		return nil, err
	}
	return s.State().Collections, nil
}

// NewSession starts a tracked session.
func (c *Client) NewSession() *Session {
	return &Session{s: c.sessions.Create(), obs: c.obs}
}

// Session returns a tracked session by id.
func (c *Client) Session(id string) (*Session, error) {
	s, err := c.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return &Session{s: s, obs: c.obs}, nil
}

// CloseSession forgets a tracked session.
func (c *Client) CloseSession(id string) {
	c.sessions.Delete(id)
}
