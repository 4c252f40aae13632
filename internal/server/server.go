// Package server provides the HTTP API for the retrieval service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/builder"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/config"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/metadata"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/registry"
	"github.com/mk-mkone/multimodal-retrieval-system/internal/search"
	"go.uber.org/zap"
)

// Server is the HTTP server for the retrieval API.
type Server struct {
	executor *search.Executor
	builder  *builder.Builder
	registry *registry.Registry
	store    metadata.FilterStore
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	executor *search.Executor,
	bld *builder.Builder,
	reg *registry.Registry,
	store metadata.FilterStore,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		executor: executor,
		builder:  bld,
		registry: reg,
		store:    store,
		config:   cfg,
		logger:   logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/build", s.handleBuild)
	r.Get("/api/v1/indices", s.handleIndices)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
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
