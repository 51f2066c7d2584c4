package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rover-control/rover/internal/auth"
)

// Server represents the HTTP API server.
type Server struct {
	httpServer     *http.Server
	telemetryHub   TelemetryPort
	orchestrator   OrchestratorPort
	authMiddleware *auth.Middleware
	startTime      time.Time
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

// NewServer creates a new API server.
func NewServer(telemetryHub TelemetryPort, orchestrator OrchestratorPort, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	return &Server{
		telemetryHub: telemetryHub,
		orchestrator: orchestrator,
		startTime:    time.Now(),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
		idleTimeout:  idleTimeout,
	}
}

// NewServerWithAuth creates a new API server with authentication middleware.
func NewServerWithAuth(telemetryHub TelemetryPort, orchestrator OrchestratorPort, authMiddleware *auth.Middleware, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	s := NewServer(telemetryHub, orchestrator, readTimeout, writeTimeout, idleTimeout)
	s.authMiddleware = authMiddleware
	return s
}

// Start starts the HTTP server. The WebSocket endpoint carries long-lived
// connections, so the write timeout is not applied server-wide; REST
// handlers are bounded by the read timeout and the per-command timeouts.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: s.readTimeout,
		IdleTimeout: s.idleTimeout,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
