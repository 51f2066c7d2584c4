package config

import (
	"fmt"
	"math"

	"github.com/rover-control/rover/internal/drive"
)

// Validate enforces the configuration invariants before the daemon starts.
func Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if config.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if config.Driver != "fake" && config.Driver != "rpio" {
		return fmt.Errorf("driver must be \"fake\" or \"rpio\", got %q", config.Driver)
	}

	if err := validateTiming(config); err != nil {
		return fmt.Errorf("timing validation failed: %w", err)
	}
	if err := validateVideo(config); err != nil {
		return fmt.Errorf("video validation failed: %w", err)
	}
	if err := validateCalibration(&config.Calibration); err != nil {
		return fmt.Errorf("calibration validation failed: %w", err)
	}

	return nil
}

// validateTiming validates loop, watchdog and timeout parameters.
func validateTiming(config *Config) error {
	if config.TickPeriod <= 0 {
		return fmt.Errorf("tick period must be positive, got %v", config.TickPeriod)
	}

	// Watchdog of 0 disables staleness neutralization; a nonzero window
	// shorter than one tick can never be observed as fresh.
	if config.WatchdogWindow < 0 {
		return fmt.Errorf("watchdog window must be non-negative, got %v", config.WatchdogWindow)
	}
	if config.WatchdogWindow > 0 && config.WatchdogWindow < config.TickPeriod {
		return fmt.Errorf("watchdog window %v must be >= tick period %v", config.WatchdogWindow, config.TickPeriod)
	}

	if config.StatusInterval <= 0 {
		return fmt.Errorf("status interval must be positive, got %v", config.StatusInterval)
	}
	if config.EventBufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", config.EventBufferSize)
	}

	if config.CommandTimeoutDrive <= 0 {
		return fmt.Errorf("drive command timeout must be positive, got %v", config.CommandTimeoutDrive)
	}
	if config.CommandTimeoutStop <= 0 {
		return fmt.Errorf("stop command timeout must be positive, got %v", config.CommandTimeoutStop)
	}
	if config.CommandTimeoutServo <= 0 {
		return fmt.Errorf("servo command timeout must be positive, got %v", config.CommandTimeoutServo)
	}

	if config.HTTPReadTimeout <= 0 || config.HTTPWriteTimeout <= 0 || config.HTTPIdleTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}

	return nil
}

// validateVideo validates the frame pipeline parameters.
func validateVideo(config *Config) error {
	if config.FramePeriod <= 0 {
		return fmt.Errorf("frame period must be positive, got %v", config.FramePeriod)
	}
	if config.JPEGQuality < 1 || config.JPEGQuality > 100 {
		return fmt.Errorf("JPEG quality must be in [1,100], got %d", config.JPEGQuality)
	}
	if config.FrameWidth <= 0 || config.FrameHeight <= 0 {
		return fmt.Errorf("frame dimensions must be positive, got %dx%d", config.FrameWidth, config.FrameHeight)
	}
	return nil
}

// validateCalibration validates the actuator tuning table.
func validateCalibration(cal *drive.Calibration) error {
	for _, p := range []float64{cal.Polarity.L, cal.Polarity.R} {
		if p != 1 && p != -1 {
			return fmt.Errorf("polarity must be +1 or -1, got %v", p)
		}
	}
	for _, t := range []float64{cal.Trim.L, cal.Trim.R} {
		if t < 0 || t > 2 || math.IsNaN(t) {
			return fmt.Errorf("trim must be in [0,2], got %v", t)
		}
	}

	if cal.SpeedLimit < 0 || cal.SpeedLimit > 1 {
		return fmt.Errorf("speed limit must be in [0,1], got %v", cal.SpeedLimit)
	}
	if cal.DutyMin < 0 || cal.DutyMax > 1 || cal.DutyMin > cal.DutyMax {
		return fmt.Errorf("duty window [%v,%v] must satisfy 0 <= min <= max <= 1", cal.DutyMin, cal.DutyMax)
	}
	if cal.PWMFreqHz <= 0 {
		return fmt.Errorf("PWM frequency must be positive, got %d", cal.PWMFreqHz)
	}
	if cal.Gamma <= 0 {
		return fmt.Errorf("gamma must be positive, got %v", cal.Gamma)
	}
	if cal.KickDuty < 0 || cal.KickDuty > 1 {
		return fmt.Errorf("kick duty must be in [0,1], got %v", cal.KickDuty)
	}
	if cal.KickDuration < 0 || cal.BrakeDuration < 0 {
		return fmt.Errorf("kick and brake durations must be non-negative")
	}

	servo := cal.Servo
	if servo.MinDeg >= servo.MaxDeg {
		return fmt.Errorf("servo angle range [%v,%v] must satisfy min < max", servo.MinDeg, servo.MaxDeg)
	}
	if servo.MinUS <= 0 || servo.MinUS >= servo.MaxUS {
		return fmt.Errorf("servo pulse range [%d,%d] must satisfy 0 < min < max", servo.MinUS, servo.MaxUS)
	}
	if servo.DefaultDeg < servo.MinDeg || servo.DefaultDeg > servo.MaxDeg {
		return fmt.Errorf("servo default angle %v outside range [%v,%v]", servo.DefaultDeg, servo.MinDeg, servo.MaxDeg)
	}

	return nil
}
