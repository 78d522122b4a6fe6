package suggest

import "context"

// Embedder converts query text to a vector for semantic sources.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
