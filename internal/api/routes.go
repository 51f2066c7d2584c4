package api

import (
	"net/http"
	"time"

	"github.com/rover-control/rover/internal/auth"
)

// RegisterRoutes registers all v1 endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"

	// Health endpoint (no auth required)
	mux.HandleFunc(apiV1+"/health", s.handleHealth)

	// If no auth middleware, register routes without protection
	if s.authMiddleware == nil {
		mux.HandleFunc(apiV1+"/status", s.handleStatus)
		mux.HandleFunc(apiV1+"/stop", s.handleStop)
		mux.HandleFunc(apiV1+"/ws", s.handleWebSocket)
		return
	}

	// Status endpoint (read scope)
	mux.HandleFunc(apiV1+"/status", s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeRead)(s.handleStatus)))

	// Emergency stop endpoint (control scope)
	mux.HandleFunc(apiV1+"/stop", s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeControl)(s.handleStop)))

	// WebSocket endpoint (read scope to connect; control commands are
	// re-checked per message against the connection's claims)
	mux.HandleFunc(apiV1+"/ws", s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeRead)(s.handleWebSocket)))
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	uptime := 0.0
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Seconds()
	}

	subsystems := s.checkSubsystemHealth()

	overallStatus := "ok"
	if !subsystems["telemetry"] || !subsystems["orchestrator"] {
		overallStatus = "degraded"
	}

	health := map[string]interface{}{
		"status":     overallStatus,
		"uptimeSec":  uptime,
		"version":    "1.0.0",
		"subsystems": subsystems,
	}

	if overallStatus == "ok" {
		WriteSuccess(w, health)
	} else {
		WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
			"One or more subsystems are unavailable", health)
	}
}

// handleStatus handles GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	if s.orchestrator == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Control service not available", nil)
		return
	}

	WriteSuccess(w, s.orchestrator.Status(r.Context()))
}

// handleStop handles POST /stop, the out-of-band emergency stop. It takes
// no body; any client with control scope can halt the rover.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only POST method is allowed", nil)
		return
	}

	if s.orchestrator == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Control service not available", nil)
		return
	}

	status, err := s.orchestrator.Stop(r.Context())
	if err != nil {
		statusCode, body := ToAPIError(err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(statusCode)
		_, _ = w.Write(body)
		return
	}

	WriteSuccess(w, status)
}

// checkSubsystemHealth checks the health of all subsystems.
func (s *Server) checkSubsystemHealth() map[string]bool {
	subsystems := make(map[string]bool)

	subsystems["telemetry"] = s.telemetryHub != nil
	subsystems["orchestrator"] = s.orchestrator != nil

	// Auth is optional, so always considered healthy
	subsystems["auth"] = true

	return subsystems
}
