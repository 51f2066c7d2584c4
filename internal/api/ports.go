// Package api defines ports (interfaces) for API server dependencies.
package api

import (
	"context"

	"github.com/rover-control/rover/internal/command"
	"github.com/rover-control/rover/internal/drive"
	"github.com/rover-control/rover/internal/telemetry"
)

// OrchestratorPort defines the minimal interface the API needs from the orchestrator.
type OrchestratorPort interface {
	Drive(ctx context.Context, left, right float64) error
	Stop(ctx context.Context) (drive.Status, error)
	SetSpeedLimit(ctx context.Context, v float64) error
	SetTrim(ctx context.Context, side drive.Side, v float64) error
	ServoSet(ctx context.Context, req drive.ServoRequest) (drive.ServoStatus, error)
	Status(ctx context.Context) drive.Status
}

// TelemetryPort defines the minimal interface the API needs from the telemetry hub.
type TelemetryPort interface {
	Attach() *telemetry.Viewer
	Detach(id string)
	ViewerCount() int
}

// Compile-time assertions for port conformance
var _ OrchestratorPort = (*command.Orchestrator)(nil)
var _ TelemetryPort = (*telemetry.Hub)(nil)
