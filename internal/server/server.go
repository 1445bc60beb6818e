// Package server exposes the command dispatcher over a small JSON HTTP API.
//
// Routes:
//
//	GET  /api/health
//	GET  /api/registries
//	GET  /api/registries/{id}
//	POST /api/registries/{id}                        create
//	POST /api/registries/{id}/links                  {"link": "..."}
//	POST /api/registries/{id}/links/{index}/votes    {"delta": 1}
//
// The caller identity is taken from the X-Linkboard-Identity header. It is
// trusted as given; authenticating it is the job of whatever sits in front.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/linkboard/internal/ir"
)

// IdentityHeader carries the caller identity on mutating requests.
const IdentityHeader = "X-Linkboard-Identity"

// Dispatcher is the subset of *engine.Engine the API needs.
type Dispatcher interface {
	Create(ctx context.Context, registryID string, owner ir.Address) error
	AddLink(ctx context.Context, registryID string, submitter ir.Address, link string) (uint64, error)
	Vote(ctx context.Context, registryID string, caller ir.Address, index uint64, delta int64) (int64, error)
	FetchState(registryID string) ir.State
	Registries() []string
}

// Pinger reports whether the backing database is reachable.
// Implemented by *store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option configures a Server.
type Option func(*Server)

// WithHealthCheck makes GET /api/health ping p and answer 503 when it fails.
func WithHealthCheck(p Pinger) Option {
	return func(s *Server) {
		s.health = p
	}
}

// Server serves the JSON API.
type Server struct {
	bind       string
	logger     *slog.Logger
	dispatcher Dispatcher
	health     Pinger

	listener net.Listener
	server   *http.Server
}

// New builds a server bound to bind. A nil logger uses slog.Default().
func New(bind string, d Dispatcher, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		bind:       strings.TrimSpace(bind),
		logger:     logger.With("component", "api-server"),
		dispatcher: d,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/registries", s.handleList)
	mux.HandleFunc("GET /api/registries/{id}", s.handleFetch)
	mux.HandleFunc("POST /api/registries/{id}", s.handleCreate)
	mux.HandleFunc("POST /api/registries/{id}/links", s.handleAddLink)
	mux.HandleFunc("POST /api/registries/{id}/links/{index}/votes", s.handleVote)
	return mux
}

// Start listens on the bind address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", "address", listener.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting up to five seconds for open requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown", "error", err)
	}
}
