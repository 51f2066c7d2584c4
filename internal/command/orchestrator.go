package command

import (
	"context"
	"errors"
	"time"

	"github.com/rover-control/rover/internal/drive"
	"github.com/rover-control/rover/internal/driver"
	"github.com/rover-control/rover/internal/telemetry"
)

// Timeouts are the per-command deadline classes.
type Timeouts struct {
	Drive  time.Duration
	Stop   time.Duration
	Config time.Duration
}

// Orchestrator routes validated intents to the controller.
type Orchestrator struct {
	controller Controller
	hub        EventPublisher
	audit      AuditLogger
	timeouts   Timeouts
}

// Compile-time assertion that Orchestrator implements OrchestratorPort.
var _ OrchestratorPort = (*Orchestrator)(nil)

// Compile-time assertion that drive.Controller satisfies the Controller port.
var _ Controller = (*drive.Controller)(nil)

// NewOrchestrator creates an orchestrator. hub and audit may be nil.
func NewOrchestrator(controller Controller, hub EventPublisher, timeouts Timeouts) *Orchestrator {
	return &Orchestrator{
		controller: controller,
		hub:        hub,
		timeouts:   timeouts,
	}
}

// SetAuditLogger sets the audit logger.
func (o *Orchestrator) SetAuditLogger(logger AuditLogger) {
	o.audit = logger
}

// Drive publishes a new drive intent. Validation failures leave the prior
// intent untouched and return synchronously.
func (o *Orchestrator) Drive(ctx context.Context, left, right float64) error {
	start := time.Now()

	if err := o.controller.SetIntent(left, right); err != nil {
		o.logAudit(ctx, "drive", outcomeFor(err), time.Since(start))
		return err
	}

	o.logAudit(ctx, "drive", "SUCCESS", time.Since(start))
	return nil
}

// Stop performs the braked stop and returns the settled state.
func (o *Orchestrator) Stop(ctx context.Context) (drive.Status, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Stop)
	defer cancel()

	status, err := o.controller.Stop(ctx)
	latency := time.Since(start)

	if err != nil {
		o.logAudit(ctx, "stop", outcomeFor(err), latency)
		o.publishFault(err, "braked stop failed")
		return drive.Status{}, err
	}

	o.logAudit(ctx, "stop", "SUCCESS", latency)
	o.publishStatus(status)
	return status, nil
}

// SetSpeedLimit sets the global speed limit.
func (o *Orchestrator) SetSpeedLimit(ctx context.Context, v float64) error {
	start := time.Now()

	if err := o.controller.SetSpeedLimit(v); err != nil {
		o.logAudit(ctx, "set_speed_limit", outcomeFor(err), time.Since(start))
		return err
	}

	o.logAudit(ctx, "set_speed_limit", "SUCCESS", time.Since(start))
	o.publishStatus(o.controller.Snapshot())
	return nil
}

// SetTrim sets one side's trim correction.
func (o *Orchestrator) SetTrim(ctx context.Context, side drive.Side, v float64) error {
	start := time.Now()

	if err := o.controller.SetTrim(side, v); err != nil {
		o.logAudit(ctx, "set_trim", outcomeFor(err), time.Since(start))
		return err
	}

	o.logAudit(ctx, "set_trim", "SUCCESS", time.Since(start))
	o.publishStatus(o.controller.Snapshot())
	return nil
}

// ServoSet positions the servo.
func (o *Orchestrator) ServoSet(ctx context.Context, req drive.ServoRequest) (drive.ServoStatus, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, o.timeouts.Config)
	defer cancel()

	status, err := o.controller.ServoSet(ctx, req)
	latency := time.Since(start)

	if err != nil {
		o.logAudit(ctx, "servo_set", outcomeFor(err), latency)
		if !errors.Is(err, driver.ErrInvalidRange) {
			o.publishFault(err, "servo write failed")
		}
		return drive.ServoStatus{}, err
	}

	o.logAudit(ctx, "servo_set", "SUCCESS", latency)
	return status, nil
}

// Status returns the full controller snapshot.
func (o *Orchestrator) Status(ctx context.Context) drive.Status {
	return o.controller.Snapshot()
}

func (o *Orchestrator) publishStatus(status drive.Status) {
	if o.hub == nil {
		return
	}
	o.hub.Publish(telemetry.Event{Type: "status", Data: status})
}

func (o *Orchestrator) publishFault(err error, message string) {
	if o.hub == nil {
		return
	}
	o.hub.Publish(telemetry.Event{
		Type: "fault",
		Data: map[string]interface{}{
			"code":    outcomeFor(err),
			"message": message,
			"ts":      time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (o *Orchestrator) logAudit(ctx context.Context, action, outcome string, latency time.Duration) {
	if o.audit != nil {
		o.audit.LogAction(ctx, action, outcome, latency)
	}
}

// outcomeFor maps an error to its audit outcome code.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "SUCCESS"
	case errors.Is(err, driver.ErrInvalidRange):
		return "INVALID_RANGE"
	case errors.Is(err, driver.ErrBusy):
		return "BUSY"
	case errors.Is(err, driver.ErrUnavailable):
		return "UNAVAILABLE"
	default:
		return "ERROR"
	}
}
