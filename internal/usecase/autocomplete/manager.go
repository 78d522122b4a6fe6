package autocomplete

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/domain"
)

// DefaultSessionTTL is how long an untouched session is kept.
const DefaultSessionTTL = 30 * time.Minute

// Manager keeps the live sessions of a server.
type Manager struct {
	resolver Resolver
	opts     Options
	ttl      time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. Every session shares resolver and opts.
func NewManager(resolver Resolver, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		resolver: resolver,
		opts:     opts,
		ttl:      DefaultSessionTTL,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// WithTTL overrides the idle session TTL.
func (m *Manager) WithTTL(ttl time.Duration) *Manager {
	if ttl > 0 {
		m.ttl = ttl
	}
	return m
}

// Create registers a new session under a random id.
func (m *Manager) Create() *Session {
	s := m.Ephemeral()

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

// Ephemeral returns a session that is not registered, for one-shot cycles.
func (m *Manager) Ephemeral() *Session {
	return NewSession(uuid.NewString(), m.resolver, m.opts, m.logger)
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, domain.ErrSessionNotFound)
	}
	return s, nil
}

// Delete drops a session. Unknown ids are ignored.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Evict drops sessions idle for longer than the TTL and returns how many were dropped.
func (m *Manager) Evict(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.ttl {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run evicts idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Evict(now); n > 0 {
				m.logger.Debug("Evicted idle sessions", zap.Int("count", n), zap.Int("live", m.Len()))
			}
		}
	}
}
