// Package server exposes box fitting, box queries and scene scripts over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chazu/boxfit/pkg/config"
	"github.com/chazu/boxfit/pkg/engine"
	"github.com/chazu/boxfit/pkg/obb"
	"github.com/chazu/boxfit/pkg/store"
	"github.com/gorilla/mux"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 4 << 20

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 15 * time.Second

// Server serves the HTTP API.
type Server struct {
	cfg     config.Config
	store   store.Store
	engine  *engine.Engine
	log     *slog.Logger
	router  *mux.Router
	fitOpts []obb.FitOption

	mu      sync.Mutex
	engines map[string]*engine.Engine // one per scene name
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a Server over st and eng.
func New(cfg config.Config, st store.Store, eng *engine.Engine, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		engine:  eng,
		log:     slog.Default(),
		router:  mux.NewRouter(),
		engines: make(map[string]*engine.Engine),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.Fit.AccumulateCenter {
		s.fitOpts = append(s.fitOpts, obb.WithAccumulatedCenter())
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/fit", s.handleFit).Methods(http.MethodPost)
	v1.HandleFunc("/clamp", s.handleClamp).Methods(http.MethodPost)
	v1.HandleFunc("/contains", s.handleContains).Methods(http.MethodPost)
	v1.HandleFunc("/intersects", s.handleIntersects).Methods(http.MethodPost)
	v1.HandleFunc("/scenes/{name}", s.handlePutScene).Methods(http.MethodPost)
	v1.HandleFunc("/scenes/{name}", s.handleGetScene).Methods(http.MethodGet)
	v1.HandleFunc("/scenes/{name}/query", s.handleQueryScene).Methods(http.MethodPost)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.Eval.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// sceneEngine returns the engine that evaluates scripts for the named scene.
func (s *Server) sceneEngine(name string) *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engines[name]
	if !ok {
		e = s.engine.Fork()
		s.engines[name] = e
	}
	return e
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
