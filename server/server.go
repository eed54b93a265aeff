// Package server exposes the admin HTTP API: a health check, a dry-run
// rewrite endpoint, and the rewrite counters.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/linktrim/linktrim/rewrite"
	"github.com/linktrim/linktrim/stats"
)

// Config holds configuration for the admin server.
type Config struct {
	// RedisURL for rate limiting (optional, uses in-memory if empty)
	RedisURL string
	// RateLimitRequests is the number of requests allowed per window (default: 60)
	RateLimitRequests int
	// RateLimitWindow is the time window for rate limiting (default: 1 minute)
	RateLimitWindow time.Duration
}

// Server is the HTTP server for the admin API.
type Server struct {
	handler     *Handler
	logger      *slog.Logger
	router      *chi.Mux
	rateLimiter *RateLimiter
}

// New creates the admin server with its chi router and middleware stack.
func New(pipeline *rewrite.Pipeline, store stats.Store, log *slog.Logger, cfg *Config) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg == nil {
		cfg = &Config{}
	}

	handler := NewHandler(pipeline, store, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(log))
	r.Use(chimiddleware.Recoverer)

	rateLimiter, err := RateLimit(RateLimitConfig{
		RequestLimit:   cfg.RateLimitRequests,
		WindowDuration: cfg.RateLimitWindow,
		RedisURL:       cfg.RedisURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}
	r.Use(rateLimiter.Handler)

	r.Get("/health", handler.HandleHealth)
	r.Post("/v1/rewrite", handler.HandleRewrite)
	r.Get("/v1/stats", handler.HandleStats)

	return &Server{
		handler:     handler,
		logger:      log,
		router:      r,
		rateLimiter: rateLimiter,
	}, nil
}

// StartWithShutdown starts the HTTP server and shuts it down gracefully when
// the context is cancelled.
func (s *Server) StartWithShutdown(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting admin server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down admin server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases resources held by the server (e.g., Redis connections).
func (s *Server) Close() error {
	if s.rateLimiter != nil {
		return s.rateLimiter.Close()
	}
	return nil
}
