// Package core provides the HTTP chassis for the Nourish webhook processor.
// It creates a chi router compatible with both standard HTTP (local dev) and
// AWS Lambda Proxy Integration, and enforces cross-cutting concerns --
// recovery, request IDs, logging, security headers -- before requests reach
// the webhook handler.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nourish/internal/config"
)

// Server encapsulates the router and its cross-cutting dependencies,
// allowing injection during testing and distinct wiring per environment.
type Server struct {
	Config *config.Config
	Logger *slog.Logger

	// Webhook is the provider-facing handler mounted at the webhook path.
	// It owns its own method and auth gatekeeping, so it is registered for
	// every HTTP method.
	Webhook http.Handler

	// HealthProbes are checked by GET /health.
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer initializes the router and prepares the server for route
// mounting. The caller mounts routes via MountRoutes after construction;
// the separation lets tests customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger, webhook http.Handler) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if webhook == nil {
		return nil, fmt.Errorf("webhook handler must not be nil")
	}

	return &Server{
		Config:  cfg,
		Logger:  logger,
		Webhook: webhook,
		router:  chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler for the router. Used by
// http.ListenAndServe (local) and the Lambda proxy adapter.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	s.Logger.Info("server shutdown complete")
	return nil
}
