// Package main implements the rover control daemon entry point.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rover-control/rover/internal/api"
	"github.com/rover-control/rover/internal/audit"
	"github.com/rover-control/rover/internal/auth"
	"github.com/rover-control/rover/internal/command"
	"github.com/rover-control/rover/internal/config"
	"github.com/rover-control/rover/internal/drive"
	"github.com/rover-control/rover/internal/driver"
	"github.com/rover-control/rover/internal/driver/fake"
	rpiodriver "github.com/rover-control/rover/internal/driver/rpio"
	"github.com/rover-control/rover/internal/stream"
	"github.com/rover-control/rover/internal/telemetry"
)

const Version = "1.0.0"

func main() {
	log.Printf("Starting rover control daemon v%s", Version)

	// Local .env is optional; absence is not an error.
	_ = godotenv.Load()

	// Step 1: Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully")

	// Step 2: Initialize audit logger
	auditLogger, err := audit.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to initialize audit logger: %v", err)
	}
	log.Printf("Audit logger initialized (%s)", auditLogger.FilePath())

	// Step 3: Select the actuator driver
	motor, err := newMotorDriver(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s driver: %v", cfg.Driver, err)
	}
	log.Printf("Actuator driver initialized (%s)", cfg.Driver)

	// Step 4: Create the actuation controller and park the servo
	controller := drive.NewController(motor, cfg.Calibration, cfg.TickPeriod, cfg.WatchdogWindow)
	if err := controller.ResetServo(context.Background()); err != nil {
		log.Fatalf("Failed to park servo: %v", err)
	}

	// Step 5: Initialize telemetry hub
	hub := telemetry.NewHub(controller, cfg.StatusInterval, cfg.EventBufferSize)
	if cfg.MQTTBroker != "" {
		mirror, err := telemetry.NewMQTTMirror(cfg.MQTTBroker, "roverd", cfg.MQTTTopic)
		if err != nil {
			log.Printf("MQTT mirror disabled: %v", err)
		} else {
			hub.SetMirror(mirror)
			defer mirror.Close()
			log.Printf("MQTT status mirror publishing to %s", cfg.MQTTTopic)
		}
	}
	log.Println("Telemetry hub initialized")

	// Step 6: Create command orchestrator
	orchestrator := command.NewOrchestrator(controller, hub, command.Timeouts{
		Drive:  cfg.CommandTimeoutDrive,
		Stop:   cfg.CommandTimeoutStop,
		Config: cfg.CommandTimeoutServo,
	})
	orchestrator.SetAuditLogger(auditLogger)

	// Step 7: Create the frame producer
	source := stream.NewTestPattern(cfg.FrameWidth, cfg.FrameHeight)
	producer := stream.NewProducer(source, hub, cfg.FramePeriod, cfg.JPEGQuality)

	// Step 8: Create API server
	server := newServer(cfg, hub, orchestrator)
	log.Println("API server created")

	// Step 9: Run the loops
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 3)
	go func() {
		if err := controller.Run(runCtx); err != nil {
			errs <- fmt.Errorf("actuation loop failed: %w", err)
		}
	}()
	go func() { _ = hub.Run(runCtx) }()
	go func() { _ = producer.Run(runCtx) }()
	go func() {
		if err := server.Start(cfg.ListenAddr); err != nil {
			errs <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	log.Printf("Rover control daemon started on %s", cfg.ListenAddr)
	log.Printf("Health endpoint: http://localhost%s/api/v1/health", cfg.ListenAddr)

	// Wait for shutdown signal or a fatal loop error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-errs:
		log.Printf("Fatal error: %v", err)
	}

	// Graceful shutdown. Cancelling the run context makes the actuation
	// loop issue its final neutral stop before returning.
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	} else {
		log.Println("HTTP server stopped gracefully")
	}

	// The loop may still be mid-tick; give it a moment to settle the
	// actuators before the driver closes.
	time.Sleep(2 * cfg.TickPeriod)

	if err := motor.Close(); err != nil {
		log.Printf("Error closing actuator driver: %v", err)
	}
	if err := auditLogger.Close(); err != nil {
		log.Printf("Error closing audit logger: %v", err)
	}

	log.Println("Rover control daemon shutdown complete")
}

// newMotorDriver selects the actuator backend from configuration.
func newMotorDriver(cfg *config.Config) (driver.Motor, error) {
	switch cfg.Driver {
	case "rpio":
		return rpiodriver.New(rpiodriver.DefaultPins(), cfg.Calibration.PWMFreqHz)
	default:
		return fake.New(), nil
	}
}

// newServer builds the API server, with bearer auth when a secret is set.
func newServer(cfg *config.Config, hub *telemetry.Hub, orchestrator *command.Orchestrator) *api.Server {
	if cfg.AuthSecret == "" {
		return api.NewServer(hub, orchestrator, cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout, cfg.HTTPIdleTimeout)
	}

	verifier, err := auth.NewVerifier(cfg.AuthSecret)
	if err != nil {
		log.Fatalf("Failed to initialize auth verifier: %v", err)
	}
	log.Println("Bearer authentication enabled")
	return api.NewServerWithAuth(hub, orchestrator, auth.NewMiddleware(verifier), cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout, cfg.HTTPIdleTimeout)
}
