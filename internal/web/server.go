// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package web exposes the authentication core over HTTP. It is a thin
// dispatcher: handlers translate core results to status codes and JSON
// bodies and hold no state of their own.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"github.com/keyfold/keyfold/internal/auth"
	"github.com/keyfold/keyfold/internal/observability"
)

// Server serves the authentication HTTP API.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	svc        *auth.Service
	metrics    *observability.Metrics
	logger     *slog.Logger
	running    atomic.Bool
}

// NewServer creates a web server around the authentication service.
// metrics may be nil, in which case no counters are recorded.
func NewServer(addr string, svc *auth.Service, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("WEB_BAD_DEPENDENCY").Errorf("auth service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		svc:     svc,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Router builds the HTTP handler. Exposed separately from Start so
// tests can drive it with httptest.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/", s.handleWelcome)
	r.Post("/users", s.handleRegister)
	r.Post("/sessions", s.handleLogin)
	r.Delete("/sessions", s.handleLogout)
	r.Get("/profile", s.handleProfile)

	return r
}

// Start begins serving the API. It returns an error channel that
// receives any error from the HTTP server after startup; the channel is
// closed on graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("web server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("web server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("web server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_web_server").Wrap(err)
		}
	}

	s.logger.Info("web server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
