// Package api provides the HTTP control plane for the sitesentry connector
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rcavanagh/sitesentry/internal/commands"
	"github.com/rcavanagh/sitesentry/internal/config"
	"github.com/rcavanagh/sitesentry/internal/guard"
	"github.com/rcavanagh/sitesentry/internal/host"
	"github.com/rcavanagh/sitesentry/internal/hub"
	"github.com/rcavanagh/sitesentry/internal/logging"
	"github.com/rcavanagh/sitesentry/internal/snapshot"
)

// Prober captures vitals snapshots for the forced-capture endpoint.
type Prober interface {
	Capture(ctx context.Context, trigger string) *snapshot.Snapshot
}

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	addr       string

	cfg         *config.Config
	site        host.Site
	prober      Prober
	snaps       *snapshot.Store
	events      *guard.EventLog
	coordinator *guard.Coordinator
	processor   *commands.Processor
	hubClient   *hub.Client
}

// Options carries the wired subsystems the server exposes.
type Options struct {
	Site        host.Site
	Prober      Prober
	Snapshots   *snapshot.Store
	EventLog    *guard.EventLog
	Coordinator *guard.Coordinator
	Processor   *commands.Processor
	HubClient   *hub.Client
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, addr string, opts Options) *Server {
	s := &Server{
		addr:        addr,
		cfg:         cfg,
		site:        opts.Site,
		prober:      opts.Prober,
		snaps:       opts.Snapshots,
		events:      opts.EventLog,
		coordinator: opts.Coordinator,
		processor:   opts.Processor,
		hubClient:   opts.HubClient,
	}

	r := chi.NewRouter()
	r.Use(withLogging)
	s.registerRoutes(r)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // forced captures probe with 15s per-check timeouts
	}

	return s
}

func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/health", s.handleHealth)

	// Update guard surface. Operator capability required.
	r.Route("/update-guard", func(r chi.Router) {
		r.Use(s.requireOperator)
		r.Post("/snapshot", s.handleForceSnapshot)
		r.Get("/status", s.handleGuardStatus)
		r.Post("/verify", s.handleForceVerify)
		r.Get("/log", s.handleGuardLog)
	})

	// Command queue surface. Tenant-authenticated the same way.
	r.Route("/commands", func(r chi.Router) {
		r.Use(s.requireOperator)
		r.Get("/poll", s.handleCommandsPoll)
		r.Post("/{id}/execute", s.handleCommandExecute)
		r.Post("/{id}/result", s.handleCommandResult)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logging.Infof("Starting sitesentry API server on %s", s.addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server's listen address
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
