package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend drivers.
const (
	DriverValkey  = "valkey"
	DriverRedis   = "redis"
	DriverAlgolia = "algolia"
)

// Source types.
const (
	SourceSearch   = "search"
	SourceSemantic = "semantic"
	SourceStatic   = "static"
	SourceRecent   = "recent"
)

// Config holds the suggest service configuration.
type Config struct {
	HTTP         HTTPConfig               `yaml:"http"`
	Logging      LoggingConfig            `yaml:"logging"`
	Auth         AuthConfig               `yaml:"auth"`
	Backends     map[string]BackendConfig `yaml:"backends"`
	Embedding    EmbeddingConfig          `yaml:"embedding"`
	Recent       RecentConfig             `yaml:"recent"`
	Autocomplete AutocompleteConfig       `yaml:"autocomplete"`
	Sources      []SourceConfig           `yaml:"sources"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// BackendConfig holds one named search backend.
type BackendConfig struct {
	Driver string `yaml:"driver"` // valkey, redis, algolia (default: valkey)

	// valkey, redis
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`

	// algolia
	BaseURL   string `yaml:"base_url"`
	AppID     string `yaml:"app_id"`
	APIKey    string `yaml:"api_key"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// EmbeddingConfig holds the query embedding provider used by semantic sources.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`

	// CacheBackend names a valkey/redis backend that caches query vectors. Empty disables the cache.
	CacheBackend string `yaml:"cache_backend"`
	CacheTTLSec  int    `yaml:"cache_ttl_sec"`
}

// RecentConfig holds the recent-searches store.
type RecentConfig struct {
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
}

// AutocompleteConfig holds fetch-cycle settings.
type AutocompleteConfig struct {
	StallThresholdMs    int  `yaml:"stall_threshold_ms"`
	OpenOnFocus         bool `yaml:"open_on_focus"`
	Strict              bool `yaml:"strict"`
	DefaultActiveItemID *int `yaml:"default_active_item_id"`
	SessionTTLSec       int  `yaml:"session_ttl_sec"`
	EvictIntervalSec    int  `yaml:"evict_interval_sec"`
}

// QueryConfig is one sub-query template of a search source.
type QueryConfig struct {
	Collection string            `yaml:"collection"`
	Params     map[string]string `yaml:"params"`
}

// SourceConfig declares one autocomplete source.
type SourceConfig struct {
	ID        string `yaml:"id"`
	Type      string `yaml:"type"` // search, semantic, static, recent
	Backend   string `yaml:"backend"`
	Transform string `yaml:"transform"` // hits (default), results

	// search
	Queries         []QueryConfig `yaml:"queries"`
	SkipEmpty       bool          `yaml:"skip_empty"`
	ContextQueryKey string        `yaml:"context_query_key"`

	// semantic
	Collection string            `yaml:"collection"`
	Params     map[string]string `yaml:"params"`

	// static
	Items      []map[string]any `yaml:"items"`
	LabelField string           `yaml:"label_field"`

	// static, recent
	Limit int `yaml:"limit"`
}

// StallThreshold returns the stall threshold as a duration.
func (c AutocompleteConfig) StallThreshold() time.Duration {
	return time.Duration(c.StallThresholdMs) * time.Millisecond
}

// CacheTTL returns the query embedding cache TTL as a duration.
func (c EmbeddingConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// SessionTTL returns the idle session lifetime.
func (c AutocompleteConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSec) * time.Second
}

// EvictInterval returns how often idle sessions are evicted.
func (c AutocompleteConfig) EvictInterval() time.Duration {
	return time.Duration(c.EvictIntervalSec) * time.Second
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, substitutes ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	for name, b := range c.Backends {
		if b.Driver == "" {
			b.Driver = DriverValkey
		}
		if b.ReadinessTimeout <= 0 {
			b.ReadinessTimeout = 10
		}
		if b.TimeoutMs <= 0 {
			b.TimeoutMs = 2000
		}
		c.Backends[name] = b
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 86400
	}
	if c.Recent.MaxEntries <= 0 {
		c.Recent.MaxEntries = 100
	}
	if c.Autocomplete.StallThresholdMs <= 0 {
		c.Autocomplete.StallThresholdMs = 300
	}
	if c.Autocomplete.SessionTTLSec <= 0 {
		c.Autocomplete.SessionTTLSec = 1800
	}
	if c.Autocomplete.EvictIntervalSec <= 0 {
		c.Autocomplete.EvictIntervalSec = 60
	}
	for i := range c.Sources {
		if c.Sources[i].Transform == "" {
			c.Sources[i].Transform = "hits"
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	for name, b := range c.Backends {
		if err := b.validate(name); err != nil {
			return err
		}
	}
	if name := c.Embedding.CacheBackend; name != "" {
		b, ok := c.Backends[name]
		if !ok {
			return fmt.Errorf("embedding.cache_backend %q is not defined", name)
		}
		if b.Driver != DriverValkey && b.Driver != DriverRedis {
			return fmt.Errorf("embedding.cache_backend %q must be a valkey or redis backend", name)
		}
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.ID == "" {
			return fmt.Errorf("sources[%d].id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("sources[%d].id %q is duplicated", i, s.ID)
		}
		seen[s.ID] = true
		if err := c.validateSource(s); err != nil {
			return err
		}
	}
	return nil
}

func (b BackendConfig) validate(name string) error {
	switch b.Driver {
	case DriverValkey, DriverRedis:
		if len(b.Addrs) == 0 {
			return fmt.Errorf("backends.%s.addrs is required", name)
		}
	case DriverAlgolia:
		if b.BaseURL == "" {
			return fmt.Errorf("backends.%s.base_url is required", name)
		}
	default:
		return fmt.Errorf("backends.%s.driver must be valkey, redis or algolia, got %q", name, b.Driver)
	}
	return nil
}

func (c *Config) validateSource(s SourceConfig) error {
	switch s.Transform {
	case "hits", "results":
	default:
		return fmt.Errorf("sources.%s.transform must be \"hits\" or \"results\", got %q", s.ID, s.Transform)
	}

	switch s.Type {
	case SourceSearch:
		if err := c.requireBackend(s); err != nil {
			return err
		}
		if len(s.Queries) == 0 {
			return fmt.Errorf("sources.%s.queries is required", s.ID)
		}
		for j, q := range s.Queries {
			if q.Collection == "" {
				return fmt.Errorf("sources.%s.queries[%d].collection is required", s.ID, j)
			}
		}
	case SourceSemantic:
		if err := c.requireBackend(s); err != nil {
			return err
		}
		if s.Collection == "" {
			return fmt.Errorf("sources.%s.collection is required", s.ID)
		}
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required by semantic source %s", s.ID)
		}
	case SourceStatic:
	case SourceRecent:
		if c.Recent.Path == "" {
			return fmt.Errorf("recent.path is required by recent source %s", s.ID)
		}
	default:
		return fmt.Errorf("sources.%s.type must be search, semantic, static or recent, got %q", s.ID, s.Type)
	}
	return nil
}

func (c *Config) requireBackend(s SourceConfig) error {
	if s.Backend == "" {
		return fmt.Errorf("sources.%s.backend is required", s.ID)
	}
	if _, ok := c.Backends[s.Backend]; !ok {
		return fmt.Errorf("sources.%s.backend %q is not defined", s.ID, s.Backend)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
