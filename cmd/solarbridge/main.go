// solarbridge - Solar Assistant MQTT aggregation bridge
//
// This is the main entry point for the solarbridge application.
// solarbridge sits between a Solar Assistant source broker and a
// destination broker:
//   - Aggregates high-frequency telemetry into per-interval min/max/avg/count
//   - Transforms inbound load through the battery-priority load modifier
//   - Samples calculation records to daily-rotated CSV files
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sunpath/solarbridge/internal/algolog"
	"github.com/sunpath/solarbridge/internal/bridge"
	"github.com/sunpath/solarbridge/internal/infrastructure/config"
	"github.com/sunpath/solarbridge/internal/infrastructure/logging"
	"github.com/sunpath/solarbridge/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Load .env for local development; a missing file is not an error.
	_ = godotenv.Load()

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting solarbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Connect the source session (inbound telemetry)
	sourceClient, err := connectBroker(cfg, "source", cfg.MQTT.Source, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("disconnecting source session")
		if closeErr := sourceClient.Close(); closeErr != nil {
			log.Error("error closing source session", "error", closeErr)
		}
	}()

	// Connect the destination session (outbound aggregates and modified load)
	destClient, err := connectBroker(cfg, "destination", cfg.MQTT.Destination, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("disconnecting destination session")
		if closeErr := destClient.Close(); closeErr != nil {
			log.Error("error closing destination session", "error", closeErr)
		}
	}()

	// Start the algorithm log sink (optional)
	var sink bridge.Sink
	if cfg.AlgoLog.Enabled {
		writer, writerErr := algolog.NewWriter(algolog.Config{
			LogEveryN:  cfg.AlgoLog.LogEveryN,
			Directory:  cfg.AlgoLog.LogDirectory,
			MaxAgeDays: cfg.AlgoLog.MaxAgeDays,
		}, log.With("component", "algolog"))
		if writerErr != nil {
			return fmt.Errorf("starting algorithm log: %w", writerErr)
		}
		defer func() {
			log.Info("closing algorithm log")
			if closeErr := writer.Close(); closeErr != nil {
				log.Error("error closing algorithm log", "error", closeErr)
			}
		}()
		sink = writer
		log.Info("algorithm log enabled",
			"directory", cfg.AlgoLog.LogDirectory,
			"log_every_n", cfg.AlgoLog.LogEveryN,
		)
	} else {
		log.Info("algorithm log disabled")
	}

	// Create and start the bridge
	b, err := bridge.New(bridge.Options{
		Config:      cfg,
		Source:      &mqttBridgeAdapter{client: sourceClient},
		Destination: &mqttBridgeAdapter{client: destClient},
		Sink:        sink,
		Logger:      log.With("component", "bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		b.Stop()
	}()

	// Verify both sessions are healthy
	if err := healthCheck(ctx, sourceClient, destClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. Bridge (stop scheduler)
	// 2. Algorithm log (drain and close file)
	// 3. Destination session
	// 4. Source session

	log.Info("solarbridge stopped")
	return nil
}

// connectBroker establishes one broker session and wires its logging
// callbacks.
//
// Parameters:
//   - cfg: Application configuration (shared QoS and reconnect bounds)
//   - role: "source" or "destination"
//   - broker: Connection details for this session
//   - log: Logger instance
//
// Returns:
//   - *mqtt.Client: Connected session
//   - error: If the initial connection fails
func connectBroker(cfg *config.Config, role string, broker config.BrokerConfig, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(mqtt.Config{
		Broker:    broker,
		Role:      role,
		QoS:       cfg.MQTT.QoS,
		Reconnect: cfg.MQTT.Reconnect,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting %s broker: %w", role, err)
	}

	sessionLog := log.With("session", role)
	client.SetLogger(sessionLog)
	client.SetOnConnect(func() {
		sessionLog.Info("MQTT session established")
	})
	client.SetOnDisconnect(func(err error) {
		sessionLog.Warn("MQTT session lost", "error", err)
	})

	log.Info("MQTT connected",
		"session", role,
		"broker", fmt.Sprintf("%s:%d", broker.Host, broker.Port),
		"client_id", broker.ClientID,
	)
	return client, nil
}

// getConfigPath returns the configuration file path.
// Uses SOLARBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SOLARBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies both broker sessions are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - source: Source session to check
//   - dest: Destination session to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, source, dest *mqtt.Client) error {
	if err := source.HealthCheck(ctx); err != nil {
		return fmt.Errorf("source session: %w", err)
	}
	if err := dest.HealthCheck(ctx); err != nil {
		return fmt.Errorf("destination session: %w", err)
	}
	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The Subscribe handler parameter is a plain func
// type on the bridge side and a named MessageHandler type on the
// infrastructure side, so the method sets differ even though the
// signatures are shape-identical.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return a.client.Subscribe(topic, qos, mqtt.MessageHandler(handler))
}

// IsConnected implements bridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
