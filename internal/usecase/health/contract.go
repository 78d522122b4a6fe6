package health

import "context"

// Pinger checks the availability of one dependency (backend, embedder, store).
type Pinger interface {
	Ping(ctx context.Context) error
}
