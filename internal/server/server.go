// Package server serves the generated site over HTTP for local previews.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/folio/internal/config"
	"github.com/hyperjump/folio/internal/models"
	"go.uber.org/zap"
)

// BuildHistory reports the most recent build.
type BuildHistory interface {
	LastBuild(ctx context.Context) (*models.BuildRecord, error)
}

// BuildFunc rebuilds the site.
type BuildFunc func(ctx context.Context) (*models.BuildReport, error)

// Server serves an output directory.
type Server struct {
	root    string
	config  *config.ServerConfig
	logger  *zap.Logger
	history BuildHistory
	rebuild BuildFunc

	mu     sync.Mutex
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithHistory exposes the last build at GET /_folio/status.
func WithHistory(h BuildHistory) Option {
	return func(s *Server) { s.history = h }
}

// WithRebuild enables POST /_folio/build.
func WithRebuild(fn BuildFunc) Option {
	return func(s *Server) { s.rebuild = fn }
}

// NewServer returns a server for the files under root.
func NewServer(root string, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{root: root, config: cfg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)

	r.Get("/_folio/health", s.handleHealth)
	r.Get("/_folio/status", s.handleStatus)
	r.Post("/_folio/build", s.handleBuild)
	r.Get("/*", s.handleFile)
	r.Head("/*", s.handleFile)
	return r
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Stop is called. It returns nil after a
// clean shutdown.
func (s *Server) Serve(l net.Listener) error {
	srv := &http.Server{Handler: s.Handler()}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()
	s.logger.Info("serving site", zap.String("addr", l.Addr().String()), zap.String("root", s.root))
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
