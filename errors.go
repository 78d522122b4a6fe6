package suggest

import "github.com/kailas-cloud/suggest/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvariantViolation     = domain.ErrInvariantViolation
	ErrUnknownDescription     = domain.ErrUnknownDescription
	ErrUnknownOrigin          = domain.ErrUnknownOrigin
	ErrBackendUnavailable     = domain.ErrBackendUnavailable
	ErrSessionNotFound        = domain.ErrSessionNotFound
	ErrStaleCycle             = domain.ErrStaleCycle
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
