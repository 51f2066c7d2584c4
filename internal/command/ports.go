// Package command routes validated control intents to the actuation
// controller. It owns per-command timeouts, audit logging and event
// publication; it does no arbitration between connections, so the last write
// wins globally.
package command

import (
	"context"
	"time"

	"github.com/rover-control/rover/internal/drive"
	"github.com/rover-control/rover/internal/telemetry"
)

// Controller is the actuation surface the orchestrator drives.
type Controller interface {
	SetIntent(left, right float64) error
	Stop(ctx context.Context) (drive.Status, error)
	SetSpeedLimit(v float64) error
	SetTrim(side drive.Side, v float64) error
	ServoSet(ctx context.Context, req drive.ServoRequest) (drive.ServoStatus, error)
	Snapshot() drive.Status
}

// EventPublisher is the minimal hub surface the orchestrator publishes to.
type EventPublisher interface {
	Publish(ev telemetry.Event)
}

// AuditLogger records every control action.
type AuditLogger interface {
	LogAction(ctx context.Context, action, outcome string, latency time.Duration)
}

// OrchestratorPort is the minimal interface transports need.
type OrchestratorPort interface {
	Drive(ctx context.Context, left, right float64) error
	Stop(ctx context.Context) (drive.Status, error)
	SetSpeedLimit(ctx context.Context, v float64) error
	SetTrim(ctx context.Context, side drive.Side, v float64) error
	ServoSet(ctx context.Context, req drive.ServoRequest) (drive.ServoStatus, error)
	Status(ctx context.Context) drive.Status
}
