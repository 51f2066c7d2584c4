// Package drive owns the actuation core: the last commanded intent, the
// actuator calibration, the per-tick transfer function that turns intent into
// H-bridge outputs, and the servo position. All mutable state lives behind
// one Controller lock; command handlers publish into it and the apply loop
// consumes from it without ever observing a torn intent.
package drive

import (
	"time"

	"github.com/rover-control/rover/internal/driver"
)

// Side identifies a logical drive side.
type Side string

const (
	SideLeft  Side = "L"
	SideRight Side = "R"
)

var sides = [...]Side{SideLeft, SideRight}

// SideValues holds one float per drive side.
type SideValues struct {
	L float64 `json:"L" yaml:"L"`
	R float64 `json:"R" yaml:"R"`
}

func (v SideValues) value(s Side) float64 {
	if s == SideLeft {
		return v.L
	}
	return v.R
}

func (v *SideValues) set(s Side, x float64) {
	if s == SideLeft {
		v.L = x
	} else {
		v.R = x
	}
}

// Intent is the last commanded drive setpoint. It is overwritten wholesale
// by each drive command; there is exactly one authoritative intent at any
// instant (last writer wins, no per-client ownership).
type Intent struct {
	Left  float64
	Right float64
	Stamp time.Time
}

// MotorOutput is the output state of one side as last written by the apply
// loop. Duty is 0 exactly when Dir is Coast; otherwise Duty lies in
// [DutyMin, DutyMax].
type MotorOutput struct {
	Dir  driver.Direction `json:"dir"`
	Duty float64          `json:"duty"`
}

// ServoStatus reports the servo position and the pulse width it maps to.
type ServoStatus struct {
	AngleDeg float64 `json:"angle"`
	PulseUS  int     `json:"pulse"`
	MinDeg   float64 `json:"min_deg"`
	MaxDeg   float64 `json:"max_deg"`
	TrimUS   int     `json:"trim_us"`
}

// ServoRequest sets the servo by absolute angle or relative delta, and may
// adjust the pulse trim. At least one field must be present.
type ServoRequest struct {
	AngleDeg *float64
	DeltaDeg *float64
	TrimUS   *int
}

// Status is the full controller snapshot returned by status queries and
// pushed by the periodic broadcast.
type Status struct {
	Left       MotorOutput `json:"left"`
	Right      MotorOutput `json:"right"`
	PWMFreqHz  int         `json:"pwm_hz"`
	DutyMin    float64     `json:"duty_min"`
	DutyMax    float64     `json:"duty_max"`
	SpeedLimit float64     `json:"speed_limit"`
	Trim       SideValues  `json:"trim"`
	Polarity   SideValues  `json:"polarity"`
	Servo      ServoStatus `json:"servo"`
}
