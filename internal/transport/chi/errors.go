package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/domain"
	logpkg "github.com/kailas-cloud/suggest/internal/logger"
)

// ErrorCode is the machine-readable error code in API error bodies.
type ErrorCode string

// API error codes.
const (
	ErrorCodeBadRequest             ErrorCode = "bad_request"
	ErrorCodeUnauthorized           ErrorCode = "unauthorized"
	ErrorCodeSessionNotFound        ErrorCode = "session_not_found"
	ErrorCodeStaleCycle             ErrorCode = "stale_cycle"
	ErrorCodeBackendUnavailable     ErrorCode = "backend_unavailable"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, ErrorCodeSessionNotFound),
	sentinelHandler(domain.ErrStaleCycle, http.StatusConflict, ErrorCodeStaleCycle),
	sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
	sentinelHandler(domain.ErrBackendUnavailable, http.StatusBadGateway, ErrorCodeBackendUnavailable),
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler maps a sentinel to a status. The sentinel text is the client message
// so wrapped internals never reach the response.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// requestLogger prefers the request-scoped logger so entries keep request_id.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return logpkg.FromContextOr(r.Context(), s.logger)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.requestLogger(r)
	for _, h := range errorHandlers {
		if h(w, err) {
			logger.Warn("domain error", zap.Error(err))
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
