package drive

import "time"

// ServoCalibration maps servo angles to pulse widths. The pulse is computed
// over a 180 degree span even when the usable angle range is narrower, so a
// [0,90] range sweeps only the lower half of the pulse band.
type ServoCalibration struct {
	MinDeg     float64       `yaml:"min_deg"`
	MaxDeg     float64       `yaml:"max_deg"`
	MinUS      int           `yaml:"min_us"`
	MaxUS      int           `yaml:"max_us"`
	TrimUS     int           `yaml:"trim_us"`
	DefaultDeg float64       `yaml:"default_deg"`
	SetTimeout time.Duration `yaml:"-"`
}

// Calibration is the actuator tuning table. It is mutated only by explicit
// configuration commands and read by the apply loop on every tick.
type Calibration struct {
	// Per-side forward polarity, +1 or -1.
	Polarity SideValues `yaml:"polarity"`

	// Per-side multiplicative correction, clamped to [0,2] on use.
	Trim SideValues `yaml:"trim"`

	// Global scale on commanded magnitude, clamped to [0,1] on use.
	SpeedLimit float64 `yaml:"speed_limit"`

	// Duty window: outputs below DutyMin stall the motor, so any nonzero
	// command lands in [DutyMin, DutyMax].
	DutyMin float64 `yaml:"duty_min"`
	DutyMax float64 `yaml:"duty_max"`

	// Motor PWM carrier frequency.
	PWMFreqHz int `yaml:"pwm_hz"`

	// Power-law reshaping of the commanded magnitude; <1 favors fine
	// control at low speed.
	Gamma float64 `yaml:"gamma"`

	// Stop-to-move kick: hold max(target, KickDuty) for KickDuration to
	// break static friction, then settle to the target duty.
	KickDuty     float64       `yaml:"kick_duty"`
	KickDuration time.Duration `yaml:"kick_duration"`

	// Active brake hold on explicit stop.
	BrakeDuration time.Duration `yaml:"brake_duration"`

	Servo ServoCalibration `yaml:"servo"`
}

// DefaultCalibration matches the reference chassis tuning.
func DefaultCalibration() Calibration {
	return Calibration{
		Polarity:      SideValues{L: -1, R: 1},
		Trim:          SideValues{L: 1, R: 1},
		SpeedLimit:    0.30,
		DutyMin:       0.12,
		DutyMax:       1.00,
		PWMFreqHz:     22000,
		Gamma:         0.7,
		KickDuty:      0.6,
		KickDuration:  70 * time.Millisecond,
		BrakeDuration: 60 * time.Millisecond,
		Servo: ServoCalibration{
			MinDeg:     0,
			MaxDeg:     90,
			MinUS:      500,
			MaxUS:      2400,
			TrimUS:     0,
			DefaultDeg: 90,
		},
	}
}
