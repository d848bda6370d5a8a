// Package server exposes the orchestration core over a JSON HTTP API,
// with server-sent events for streamed runs. The server is a thin
// transport: all semantics live in the coordinator and its components.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hexstrike/hexstrike/internal/cache"
	"github.com/hexstrike/hexstrike/internal/catalog"
	"github.com/hexstrike/hexstrike/internal/coordinator"
	"github.com/hexstrike/hexstrike/internal/decision"
	"github.com/hexstrike/hexstrike/internal/orchestrator"
	"github.com/hexstrike/hexstrike/internal/profiler"
	"github.com/hexstrike/hexstrike/internal/types"
)

// Config controls the HTTP listener.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns production listener defaults. WriteTimeout is
// zero because SSE responses stay open for the length of a run.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8888",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP front end over the orchestration core.
type Server struct {
	cfg      Config
	coord    *coordinator.Coordinator
	profiler *profiler.Profiler
	engine   *decision.Engine
	catalog  *catalog.Catalog
	cache    *cache.Cache
	orch     *orchestrator.Orchestrator
	logger   *slog.Logger

	httpSrv *http.Server
}

// New assembles the server over already-constructed components.
func New(
	cfg Config,
	coord *coordinator.Coordinator,
	p *profiler.Profiler,
	e *decision.Engine,
	cat *catalog.Catalog,
	c *cache.Cache,
	o *orchestrator.Orchestrator,
	logger *slog.Logger,
) *Server {
	s := &Server{
		cfg:      cfg,
		coord:    coord,
		profiler: p,
		engine:   e,
		catalog:  cat,
		cache:    c,
		orch:     o,
		logger:   logger,
	}
	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// routes builds the API mux. Method-qualified patterns give 405s for
// free.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/analyze-target", s.handleAnalyzeTarget)
	mux.HandleFunc("POST /api/v1/select-tools", s.handleSelectTools)
	mux.HandleFunc("POST /api/v1/run", s.handleRun)
	mux.HandleFunc("GET /api/v1/processes", s.handleListProcesses)
	mux.HandleFunc("GET /api/v1/processes/{id}", s.handleProcessStatus)
	mux.HandleFunc("POST /api/v1/processes/{id}/terminate", s.handleTerminate)
	mux.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", s.handleCacheInvalidate)
	mux.HandleFunc("GET /api/v1/tools", s.handleListTools)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	return s.logRequests(mux)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// logRequests is the access-log middleware.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "cannot bind listener", err)
	}
	s.logger.Info("api listening", "addr", ln.Addr().String())

	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	return s.httpSrv.Shutdown(ctx)
}
