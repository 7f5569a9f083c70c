// Package server provides the HTTP API for Maane.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/maane-ai/maane/internal/config"
	"github.com/maane-ai/maane/internal/ingest"
	"github.com/maane-ai/maane/internal/ledger"
	"github.com/maane-ai/maane/internal/pipeline"
	"github.com/maane-ai/maane/internal/vector"
)

// Server is the HTTP server for the Maane API.
type Server struct {
	ingestor *ingest.Service
	pipeline *pipeline.Pipeline
	ledger   *ledger.Ledger
	handle   *vector.Handle
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	ingestor *ingest.Service,
	pl *pipeline.Pipeline,
	ldg *ledger.Ledger,
	handle *vector.Handle,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingestor: ingestor,
		pipeline: pl,
		ledger:   ldg,
		handle:   handle,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/documents", s.handleIngest)
	r.Post("/api/v1/questions", s.handleQuestion)
	r.Get("/api/v1/answers/{id}", s.handleGetAnswer)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
