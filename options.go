package suggest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/config"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type backendSpec struct {
	name string
	cfg  config.BackendConfig
	impl Backend
}

type sourceSpec struct {
	cfg  config.SourceConfig
	impl Source
}

type clientConfig struct {
	backends []backendSpec
	sources  []sourceSpec

	embedder   Embedder
	openai     *config.EmbeddingConfig
	recentPath string
	recentMax  int

	stallThreshold      time.Duration
	openOnFocus         bool
	strict              bool
	defaultActiveItemID *int
	sessionTTL          time.Duration

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithValkey adds a named Valkey search backend.
func WithValkey(name, addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backends = append(c.backends, backendSpec{name: name, cfg: config.BackendConfig{
			Driver: config.DriverValkey, Addrs: []string{addr}, Password: password,
		}})
	})
}

// WithRedis adds a named Redis (with search module) backend.
func WithRedis(name, addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backends = append(c.backends, backendSpec{name: name, cfg: config.BackendConfig{
			Driver: config.DriverRedis, Addrs: []string{addr}, Password: password,
		}})
	})
}

// WithAlgolia adds a named Algolia-compatible multi-query backend.
func WithAlgolia(name, baseURL, appID, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backends = append(c.backends, backendSpec{name: name, cfg: config.BackendConfig{
			Driver: config.DriverAlgolia, BaseURL: baseURL, AppID: appID, APIKey: apiKey,
		}})
	})
}

// WithBackend registers a custom backend under b.Name().
func WithBackend(b Backend) Option {
	return optionFunc(func(c *clientConfig) {
		c.backends = append(c.backends, backendSpec{name: b.Name(), impl: b})
	})
}

// WithSearchSource adds a source that sends the query text to every template.
func WithSearchSource(id, backend string, queries ...Query) Option {
	return optionFunc(func(c *clientConfig) {
		qs := make([]config.QueryConfig, len(queries))
		for i, q := range queries {
			qs[i] = config.QueryConfig{Collection: q.Collection, Params: q.Params}
		}
		c.sources = append(c.sources, sourceSpec{cfg: config.SourceConfig{
			ID: id, Type: config.SourceSearch, Backend: backend, Transform: string(Hits), Queries: qs,
		}})
	})
}

// WithSemanticSource adds a KNN source over collection. Requires an embedder.
func WithSemanticSource(id, backend, collection string) Option {
	return optionFunc(func(c *clientConfig) {
		c.sources = append(c.sources, sourceSpec{cfg: config.SourceConfig{
			ID: id, Type: config.SourceSemantic, Backend: backend, Transform: string(Hits), Collection: collection,
		}})
	})
}

// WithStaticSource adds a source that filters a fixed item list locally.
func WithStaticSource(id string, items []Item) Option {
	return optionFunc(func(c *clientConfig) {
		raw := make([]map[string]any, len(items))
		for i, it := range items {
			raw[i] = it
		}
		c.sources = append(c.sources, sourceSpec{cfg: config.SourceConfig{
			ID: id, Type: config.SourceStatic, Items: raw,
		}})
	})
}

// WithRecentSource adds a source listing recently submitted queries.
// Requires WithRecentStore.
func WithRecentSource(id string, limit int) Option {
	return optionFunc(func(c *clientConfig) {
		c.sources = append(c.sources, sourceSpec{cfg: config.SourceConfig{
			ID: id, Type: config.SourceRecent, Limit: limit,
		}})
	})
}

// WithSource adds a custom source.
func WithSource(s Source) Option {
	return optionFunc(func(c *clientConfig) {
		c.sources = append(c.sources, sourceSpec{impl: s})
	})
}

// WithEmbedder sets the query embedder used by semantic sources.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithOpenAI embeds semantic queries with an OpenAI-compatible API.
// An empty baseURL uses the OpenAI default.
func WithOpenAI(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openai = &config.EmbeddingConfig{Provider: "openai", APIKey: apiKey, BaseURL: baseURL, Model: model}
	})
}

// WithRecentStore persists submitted queries in a LevelDB directory at path.
// maxEntries <= 0 keeps the store default.
func WithRecentStore(path string, maxEntries int) Option {
	return optionFunc(func(c *clientConfig) {
		c.recentPath = path
		c.recentMax = maxEntries
	})
}

// WithStallThreshold sets how long a cycle may load before it is reported stalled.
// Default: 300ms.
func WithStallThreshold(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.stallThreshold = d
	})
}

// WithOpenOnFocus fetches suggestions for the empty query.
func WithOpenOnFocus() Option {
	return optionFunc(func(c *clientConfig) {
		c.openOnFocus = true
	})
}

// WithStrict fails a cycle on responses that cannot be attributed to a source
// instead of dropping them.
func WithStrict() Option {
	return optionFunc(func(c *clientConfig) {
		c.strict = true
	})
}

// WithDefaultActiveItem highlights item i after every cycle.
func WithDefaultActiveItem(i int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultActiveItemID = &i
	})
}

// WithSessionTTL sets how long an untouched session is kept. Default: 30m.
func WithSessionTTL(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.sessionTTL = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
