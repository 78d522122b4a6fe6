package valkey

import "github.com/redis/rueidis"

// NewBackendForTest creates a Backend with the provided rueidis client (test-only).
func NewBackendForTest(name string, c rueidis.Client) *Backend {
	return &Backend{name: nameOrDefault(name), client: c}
}
