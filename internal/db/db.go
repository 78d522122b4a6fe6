// Package db holds the contracts shared by the storage-backed search backends.
package db

import (
	"context"
	"time"
)

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Conn is the lifecycle of a backend connection.
type Conn interface {
	Pinger
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}
