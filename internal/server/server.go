// Package server provides the HTTP API over the vector store.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/careervec/internal/config"
	"github.com/hyperjump/careervec/internal/indexer"
	"github.com/hyperjump/careervec/internal/storage"
	"github.com/hyperjump/careervec/internal/store"
	"go.uber.org/zap"
)

// Server is the HTTP server for the careervec API. The store is single-threaded,
// so every handler that touches it holds mu.
type Server struct {
	mu      sync.Mutex
	store   *store.VectorStore
	indexer *indexer.Indexer
	catalog storage.Catalog
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithCatalog adds the document count to status responses.
func WithCatalog(c storage.Catalog) ServerOption {
	return func(s *Server) { s.catalog = c }
}

// NewServer creates a server with the given dependencies. idx may be nil, in
// which case ingestion is not offered.
func NewServer(vs *store.VectorStore, idx *indexer.Indexer, cfg *config.Config, logger *zap.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:   vs,
		indexer: idx,
		config:  cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/documents", s.handleAddDocuments)
		r.Post("/save", s.handleSave)
		r.Post("/ingest", s.handleIngest)
		r.Delete("/index", s.handleClear)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Ingest runs the ingestion pipeline over the configured data directory while
// holding the store lock. The watcher calls it from outside the HTTP path.
func (s *Server) Ingest(ctx context.Context) (*indexer.Report, error) {
	if s.indexer == nil {
		return nil, errIngestDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexer.Run(ctx, s.config.Data.Directory)
}
