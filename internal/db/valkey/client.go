// Package valkey implements a search backend over Valkey/Redis FT.SEARCH.
package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/suggest/internal/db"
	"github.com/kailas-cloud/suggest/internal/domain/description"
)

// Compile-time checks.
var (
	_ description.Backend = (*Backend)(nil)
	_ db.Conn             = (*Backend)(nil)
)

// DefaultHitsPerPage is used when a sub-query does not set hitsPerPage.
const DefaultHitsPerPage = 10

// Config holds connection parameters.
type Config struct {
	Name     string
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Backend sends every sub-query of a group in one pipelined round-trip.
type Backend struct {
	name   string
	client rueidis.Client
}

// NewBackend connects to Valkey or Redis 8+ via rueidis.
func NewBackend(cfg Config) (*Backend, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Backend{name: nameOrDefault(cfg.Name), client: client}, nil
}

// Name implements description.Backend.
func (b *Backend) Name() string { return b.name }

// Ping checks connectivity.
func (b *Backend) Ping(ctx context.Context) error {
	cmd := b.client.B().Ping().Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (b *Backend) Close() {
	b.client.Close()
}

// WaitForReady polls Ping until the backend responds or timeout expires.
func (b *Backend) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s: %w", b.name, ctx.Err())
		case <-ticker.C:
			if err := b.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func nameOrDefault(name string) string {
	if name == "" {
		return "valkey"
	}
	return name
}
