// Package api provides the HTTP interface to the engagement engine.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/engine"
	"github.com/opensource-finance/heron/internal/filter"
	"github.com/opensource-finance/heron/internal/report"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, filters *filter.Engine, reports *report.Service, version string) *Server {
	handler := NewHandler(repo, cache, bus, eng, filters, reports, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no tenant required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (tenant required)
	router.Route("/", func(r chi.Router) {
		r.Use(TenantMiddleware)

		// Payment ingest
		r.Post("/payments", handler.RecordPayment)
		r.Post("/payments/batch", handler.RecordPaymentBatch)

		// Analysis
		r.Post("/analyze", handler.Analyze)
		r.Get("/customers", handler.ListCustomers)
		r.Get("/customers/{id}", handler.GetCustomer)

		// Report snapshots
		r.Get("/reports", handler.ListReports)
		r.Get("/reports/current", handler.GetCurrentReport)
		r.Get("/reports/{id}", handler.GetReport)

		// Outreach filter management
		r.Get("/filters", handler.ListFilters)
		r.Get("/filters/{id}", handler.GetFilter)
		r.Post("/filters", handler.CreateFilter)
		r.Delete("/filters/{id}", handler.DeleteFilter)
		r.Post("/filters/reload", handler.ReloadFilters)
		r.Get("/filters/{id}/matches", handler.MatchFilter)
	})

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

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
