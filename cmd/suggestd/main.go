package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/suggest/internal/app"
	"github.com/kailas-cloud/suggest/internal/config"
	logpkg "github.com/kailas-cloud/suggest/internal/logger"
	"github.com/kailas-cloud/suggest/internal/metrics"
	recentrepo "github.com/kailas-cloud/suggest/internal/repository/recent"
	chiTransport "github.com/kailas-cloud/suggest/internal/transport/chi"
	"github.com/kailas-cloud/suggest/internal/usecase/autocomplete"
	"github.com/kailas-cloud/suggest/internal/usecase/fetch"
	healthuc "github.com/kailas-cloud/suggest/internal/usecase/health"
	"github.com/kailas-cloud/suggest/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting suggest API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Int("backends", len(cfg.Backends)),
		zap.Int("sources", len(cfg.Sources)),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterFetchMetrics()
	metrics.RegisterEmbeddingMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := app.BuildBackends(cfg.Backends)
	if err != nil {
		logger.Fatal("Failed to create backends", zap.Error(err))
	}
	defer backends.Close()

	if err := backends.WaitForReady(ctx, cfg.Backends, logger); err != nil {
		logger.Fatal("Backend not ready", zap.Error(err))
	}

	health := healthuc.New()
	for name, conn := range backends.Conns {
		health.WithCheck(name, conn)
	}

	deps := app.SourceDeps{Backends: backends.ByName}

	if app.Needs(cfg.Sources, config.SourceSemantic) {
		emb, provider, err := app.NewEmbedder(cfg.Embedding, backends, logger)
		if err != nil {
			logger.Fatal("Failed to create query embedder", zap.Error(err))
		}
		deps.Embedder = emb
		health.WithCheck("embedding", provider)
		logger.Info("Query embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.String("cache_backend", cfg.Embedding.CacheBackend),
		)
	}

	if app.Needs(cfg.Sources, config.SourceRecent) {
		repo, err := recentrepo.Open(cfg.Recent.Path)
		if err != nil {
			logger.Fatal("Failed to open recent-search store", zap.Error(err))
		}
		defer func() { _ = repo.Close() }()
		deps.Recent = repo.WithMaxEntries(cfg.Recent.MaxEntries)
	}

	sources, err := app.BuildSources(cfg.Sources, deps)
	if err != nil {
		logger.Fatal("Failed to create sources", zap.Error(err))
	}

	fetcher := fetch.New(logger).WithStrict(cfg.Autocomplete.Strict)
	sessions := autocomplete.NewManager(fetcher, autocomplete.Options{
		StallThreshold:      cfg.Autocomplete.StallThreshold(),
		OpenOnFocus:         cfg.Autocomplete.OpenOnFocus,
		DefaultActiveItemID: cfg.Autocomplete.DefaultActiveItemID,
		GetSources:          autocomplete.StaticSources(sources...),
	}, logger).WithTTL(cfg.Autocomplete.SessionTTL())
	go sessions.Run(ctx, cfg.Autocomplete.EvictInterval())

	server := chiTransport.NewServer(sessions, health, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line: one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.Query().Get("q")),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
