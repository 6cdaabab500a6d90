// Package ops serves the operational HTTP surface: health, readiness,
// Prometheus metrics, and archived report retrieval.
package ops

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Components are the backing services the ops surface reports on.
// Any of them may be nil; health checks skip what is not configured.
type Components struct {
	Archive domain.Archive
	Cache   domain.Cache
	Bus     domain.EventBus
}

// Server is the operational HTTP server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.OpsConfig
}

// NewServer creates the ops server. metricsHandler is the Prometheus
// exposition handler; nil leaves /metrics unregistered.
func NewServer(cfg domain.OpsConfig, comps Components, metricsHandler http.Handler, version string) *Server {
	handler := NewHandler(comps, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	if metricsHandler != nil {
		router.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	// Archived report retrieval
	router.Get("/reports", handler.ListReports)
	router.Get("/reports/{id}", handler.GetReport)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
