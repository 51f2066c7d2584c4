package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/rover-control/rover/internal/drive"
)

// Load merges DefaultConfig() + ROVER_* env overrides + an optional YAML
// file (ROVER_CONFIG path, falling back to ./config.yaml), then validates.
func Load() (*Config, error) {
	config := DefaultConfig()

	applyEnvOverrides(config)

	path := os.Getenv("ROVER_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := applyFile(config, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies ROVER_* environment variables to the config.
// Unparseable values are ignored in favor of the current value.
func applyEnvOverrides(config *Config) {
	if val := os.Getenv("ROVER_LISTEN_ADDR"); val != "" {
		config.ListenAddr = val
	}
	if val := os.Getenv("ROVER_DRIVER"); val != "" {
		config.Driver = val
	}
	if val := os.Getenv("ROVER_LOG_DIR"); val != "" {
		config.LogDir = val
	}

	if val := os.Getenv("ROVER_TICK_PERIOD"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.TickPeriod = duration
		}
	}
	if val := os.Getenv("ROVER_WATCHDOG_WINDOW"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.WatchdogWindow = duration
		}
	}
	if val := os.Getenv("ROVER_STATUS_INTERVAL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.StatusInterval = duration
		}
	}
	if val := os.Getenv("ROVER_FRAME_PERIOD"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.FramePeriod = duration
		}
	}

	if val := os.Getenv("ROVER_JPEG_QUALITY"); val != "" {
		if quality, err := strconv.Atoi(val); err == nil {
			config.JPEGQuality = quality
		}
	}
	if val := os.Getenv("ROVER_EVENT_BUFFER_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.EventBufferSize = size
		}
	}

	if val := os.Getenv("ROVER_SPEED_LIMIT"); val != "" {
		if limit, err := strconv.ParseFloat(val, 64); err == nil {
			config.Calibration.SpeedLimit = limit
		}
	}

	if val := os.Getenv("ROVER_MQTT_BROKER"); val != "" {
		config.MQTTBroker = val
	}
	if val := os.Getenv("ROVER_MQTT_TOPIC"); val != "" {
		config.MQTTTopic = val
	}
	if val := os.Getenv("ROVER_AUTH_SECRET"); val != "" {
		config.AuthSecret = val
	}
}

// fileConfig mirrors Config for YAML decoding. Durations are strings in
// time.ParseDuration syntax; pointer fields distinguish absent from zero.
type fileConfig struct {
	ListenAddr      *string          `yaml:"listen_addr"`
	Driver          *string          `yaml:"driver"`
	LogDir          *string          `yaml:"log_dir"`
	TickPeriod      *string          `yaml:"tick_period"`
	WatchdogWindow  *string          `yaml:"watchdog_window"`
	StatusInterval  *string          `yaml:"status_interval"`
	FramePeriod     *string          `yaml:"frame_period"`
	JPEGQuality     *int             `yaml:"jpeg_quality"`
	FrameWidth      *int             `yaml:"frame_width"`
	FrameHeight     *int             `yaml:"frame_height"`
	EventBufferSize *int             `yaml:"event_buffer_size"`
	MQTTBroker      *string          `yaml:"mqtt_broker"`
	MQTTTopic       *string          `yaml:"mqtt_topic"`
	AuthSecret      *string          `yaml:"auth_secret"`
	Calibration     *fileCalibration `yaml:"calibration"`
}

type fileCalibration struct {
	Polarity      *drive.SideValues       `yaml:"polarity"`
	Trim          *drive.SideValues       `yaml:"trim"`
	SpeedLimit    *float64                `yaml:"speed_limit"`
	DutyMin       *float64                `yaml:"duty_min"`
	DutyMax       *float64                `yaml:"duty_max"`
	PWMFreqHz     *int                    `yaml:"pwm_hz"`
	Gamma         *float64                `yaml:"gamma"`
	KickDuty      *float64                `yaml:"kick_duty"`
	KickDuration  *string                 `yaml:"kick_duration"`
	BrakeDuration *string                 `yaml:"brake_duration"`
	Servo         *drive.ServoCalibration `yaml:"servo"`
}

// applyFile overlays a YAML file onto the config.
func applyFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return fmt.Errorf("malformed YAML: %w", err)
	}

	if fc.ListenAddr != nil {
		config.ListenAddr = *fc.ListenAddr
	}
	if fc.Driver != nil {
		config.Driver = *fc.Driver
	}
	if fc.LogDir != nil {
		config.LogDir = *fc.LogDir
	}
	if err := overlayDuration(&config.TickPeriod, fc.TickPeriod, "tick_period"); err != nil {
		return err
	}
	if err := overlayDuration(&config.WatchdogWindow, fc.WatchdogWindow, "watchdog_window"); err != nil {
		return err
	}
	if err := overlayDuration(&config.StatusInterval, fc.StatusInterval, "status_interval"); err != nil {
		return err
	}
	if err := overlayDuration(&config.FramePeriod, fc.FramePeriod, "frame_period"); err != nil {
		return err
	}
	if fc.JPEGQuality != nil {
		config.JPEGQuality = *fc.JPEGQuality
	}
	if fc.FrameWidth != nil {
		config.FrameWidth = *fc.FrameWidth
	}
	if fc.FrameHeight != nil {
		config.FrameHeight = *fc.FrameHeight
	}
	if fc.EventBufferSize != nil {
		config.EventBufferSize = *fc.EventBufferSize
	}
	if fc.MQTTBroker != nil {
		config.MQTTBroker = *fc.MQTTBroker
	}
	if fc.MQTTTopic != nil {
		config.MQTTTopic = *fc.MQTTTopic
	}
	if fc.AuthSecret != nil {
		config.AuthSecret = *fc.AuthSecret
	}

	if fc.Calibration != nil {
		if err := applyFileCalibration(&config.Calibration, fc.Calibration); err != nil {
			return err
		}
	}

	return nil
}

func applyFileCalibration(cal *drive.Calibration, fc *fileCalibration) error {
	if fc.Polarity != nil {
		cal.Polarity = *fc.Polarity
	}
	if fc.Trim != nil {
		cal.Trim = *fc.Trim
	}
	if fc.SpeedLimit != nil {
		cal.SpeedLimit = *fc.SpeedLimit
	}
	if fc.DutyMin != nil {
		cal.DutyMin = *fc.DutyMin
	}
	if fc.DutyMax != nil {
		cal.DutyMax = *fc.DutyMax
	}
	if fc.PWMFreqHz != nil {
		cal.PWMFreqHz = *fc.PWMFreqHz
	}
	if fc.Gamma != nil {
		cal.Gamma = *fc.Gamma
	}
	if fc.KickDuty != nil {
		cal.KickDuty = *fc.KickDuty
	}
	if err := overlayDuration(&cal.KickDuration, fc.KickDuration, "calibration.kick_duration"); err != nil {
		return err
	}
	if err := overlayDuration(&cal.BrakeDuration, fc.BrakeDuration, "calibration.brake_duration"); err != nil {
		return err
	}
	if fc.Servo != nil {
		cal.Servo = *fc.Servo
	}
	return nil
}

func overlayDuration(dst *time.Duration, src *string, field string) error {
	if src == nil {
		return nil
	}
	duration, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	*dst = duration
	return nil
}
