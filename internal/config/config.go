// Package config assembles the daemon configuration from baked defaults,
// ROVER_* environment overrides and an optional YAML file, in that order.
package config

import (
	"time"

	"github.com/rover-control/rover/internal/drive"
)

// Config is the full daemon configuration.
type Config struct {
	// Transport
	ListenAddr       string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Actuation
	Driver         string // "fake" or "rpio"
	TickPeriod     time.Duration
	WatchdogWindow time.Duration // 0 disables the staleness watchdog

	// Telemetry
	StatusInterval  time.Duration
	EventBufferSize int

	// Video
	FramePeriod time.Duration
	JPEGQuality int
	FrameWidth  int
	FrameHeight int

	// Command timeouts
	CommandTimeoutDrive time.Duration
	CommandTimeoutStop  time.Duration
	CommandTimeoutServo time.Duration

	// Optional integrations
	MQTTBroker string // empty disables the status mirror
	MQTTTopic  string
	AuthSecret string // empty disables bearer auth

	// Logging
	LogDir string

	Calibration drive.Calibration
}

// DefaultConfig returns the baked-in defaults: a 120 Hz apply loop, a 300 ms
// watchdog, 12 fps video at JPEG quality 40, and the reference chassis
// calibration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       ":8080",
		HTTPReadTimeout:  10 * time.Second,
		HTTPWriteTimeout: 10 * time.Second,
		HTTPIdleTimeout:  60 * time.Second,

		Driver:         "fake",
		TickPeriod:     time.Second / 120,
		WatchdogWindow: 300 * time.Millisecond,

		StatusInterval:  300 * time.Millisecond,
		EventBufferSize: 32,

		FramePeriod: time.Second / 12,
		JPEGQuality: 40,
		FrameWidth:  640,
		FrameHeight: 480,

		CommandTimeoutDrive: 250 * time.Millisecond,
		CommandTimeoutStop:  time.Second,
		CommandTimeoutServo: 500 * time.Millisecond,

		MQTTTopic: "rover/status",

		LogDir: "logs",

		Calibration: drive.DefaultCalibration(),
	}
}
