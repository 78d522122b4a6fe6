package domain

import "errors"

var (
	// ErrInvariantViolation signals a malformed source output or description.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrUnknownDescription signals a description variant the executor does not handle.
	ErrUnknownDescription = errors.New("unknown description type")
	// ErrUnknownOrigin signals a response attributed to a source that was never dispatched.
	ErrUnknownOrigin = errors.New("unknown origin")
	// ErrBackendUnavailable signals a failed backend call (network, auth, rate limit).
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrSessionNotFound signals a missing autocomplete session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStaleCycle signals that a newer fetch cycle superseded this one.
	ErrStaleCycle = errors.New("stale fetch cycle")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
