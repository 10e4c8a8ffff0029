// Package server exposes a sync engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/ganttd/ganttd/internal/gantt/feed"
	"github.com/ganttd/ganttd/internal/gantt/metrics"
	gsync "github.com/ganttd/ganttd/internal/gantt/sync"
)

// Defaults applied by New.
const (
	DefaultAddr            = ":1337"
	DefaultMaxBodyBytes    = 10 << 20
	DefaultShutdownTimeout = 10 * time.Second
)

// DefaultAllowedOrigins is the development client.
var DefaultAllowedOrigins = []string{"http://localhost:5173"}

// Config holds server configuration
type Config struct {
	Addr            string
	AllowedOrigins  []string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration

	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger

	// Metrics, when set, instruments every route and serves /metrics.
	Metrics *metrics.Metrics

	// Feed, when set, is served at /api/feed.
	Feed *feed.Hub

	// Health, when set, backs /health.
	Health func(context.Context) error
}

// Server routes HTTP requests to a sync engine.
type Server struct {
	engine  gsync.Engine
	cfg     Config
	log     logrus.FieldLogger
	handler http.Handler
}

// New builds the router and middleware chain.
func New(engine gsync.Engine, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = DefaultAllowedOrigins
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	s := &Server{
		engine: engine,
		cfg:    cfg,
		log:    cfg.Logger.WithField("component", "http"),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()

	// Route-scoped so the metrics label is the path template.
	if s.cfg.Metrics != nil {
		router.Use(s.cfg.Metrics.Middleware)
		router.Handle("/metrics", s.cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	// Registered on the root router: a method mismatch inside a subrouter
	// surfaces as 404 instead of 405.
	router.HandleFunc("/api/load", s.handleLoad).Methods(http.MethodGet)
	router.HandleFunc("/api/sync", s.handleSync).Methods(http.MethodPost)
	if s.cfg.Feed != nil {
		router.Handle("/api/feed", s.cfg.Feed).Methods(http.MethodGet)
	}

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	var h http.Handler = router
	h = corsMiddleware(s.cfg.AllowedOrigins, s.log)(h)
	h = loggingMiddleware(s.log)(h)
	h = requestIDMiddleware(h)
	return h
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully within
// the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", ln.Addr().String()).Info("server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	<-errCh
	s.log.Info("server stopped")
	return nil
}
