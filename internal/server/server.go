// Package server exposes the platform's HTTP API: document upload and
// lifecycle on the write side, search and suggestions on the read side,
// plus health probes.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rs-vn/document-search-platform/internal/coordinator"
	"github.com/rs-vn/document-search-platform/internal/query"
	"github.com/rs-vn/document-search-platform/pkg/config"
	"github.com/rs-vn/document-search-platform/pkg/health"
	"github.com/rs-vn/document-search-platform/pkg/metrics"
	"github.com/rs-vn/document-search-platform/pkg/middleware"
)

// Server is the HTTP front of the document platform.
type Server struct {
	coordinator *coordinator.Coordinator
	query       *query.Engine
	health      *health.Checker
	cfg         config.ServerConfig
	searchCfg   config.SearchConfig
	metrics     *metrics.Metrics
	logger      *slog.Logger
	httpServer  *http.Server
}

// New creates a Server wired to its collaborators.
func New(coord *coordinator.Coordinator, engine *query.Engine, checker *health.Checker, cfg config.ServerConfig, searchCfg config.SearchConfig, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		coordinator: coord,
		query:       engine,
		health:      checker,
		cfg:         cfg,
		searchCfg:   searchCfg,
		metrics:     m,
		logger:      logger.With("component", "server"),
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler builds the full middleware-wrapped route tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/documents/upload", s.handleUpload)
	mux.HandleFunc("GET /api/v1/documents/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/documents/suggest", s.handleSuggest)
	mux.HandleFunc("GET /api/v1/documents", s.handleList)
	mux.HandleFunc("GET /api/v1/documents/{id}", s.handleGet)
	mux.HandleFunc("GET /api/v1/documents/{id}/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/documents/{id}/download", s.handleDownload)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", s.handleDelete)

	mux.HandleFunc("GET /health/live", s.health.LiveHandler())
	mux.HandleFunc("GET /health/ready", s.health.ReadyHandler())

	var handler http.Handler = mux
	handler = middleware.Metrics(s.metrics)(handler)
	if s.cfg.RequestTimeout > 0 {
		handler = middleware.Timeout(s.cfg.RequestTimeout)(handler)
	}
	handler = middleware.RequestID(handler)
	return handler
}

// Start begins serving and blocks until the listener fails or is closed.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
