package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("SOLARBRIDGE_CONFIG")
	defer os.Setenv("SOLARBRIDGE_CONFIG", originalEnv)

	os.Setenv("SOLARBRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidQoS verifies run fails config validation before any
// broker connection is attempted.
func TestRun_InvalidQoS(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
mqtt:
  source_broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-source"
  destination_broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-dest"
  qos: 7

topics:
  source:
    load: "solar_assistant/inverter_1/load_power/state"
  load_metric: load

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("SOLARBRIDGE_CONFIG")
	defer os.Setenv("SOLARBRIDGE_CONFIG", originalEnv)
	os.Setenv("SOLARBRIDGE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with qos out of range")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("SOLARBRIDGE_CONFIG")
	defer os.Setenv("SOLARBRIDGE_CONFIG", originalEnv)

	os.Unsetenv("SOLARBRIDGE_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("SOLARBRIDGE_CONFIG")
	defer os.Setenv("SOLARBRIDGE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("SOLARBRIDGE_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_SuccessfulStartupAndShutdown tests full startup with running services.
// Requires MQTT broker at 127.0.0.1:1883.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	logDir := filepath.Join(tmpDir, "logs")

	configContent := `
mqtt:
  source_broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-solarbridge-source"
  destination_broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-solarbridge-dest"
  qos: 0
  reconnect:
    initial_delay: 1
    max_delay: 5

topics:
  source:
    load: "solar_assistant/inverter_1/load_power/state"
    battery_soc: "solar_assistant/battery_1/state_of_charge/state"
    ev_battery_soc: "ev_charger/battery_soc/state"
  load_metric: load
  house_soc_metric: battery_soc
  ev_soc_metric: ev_battery_soc
  destination:
    aggregated_prefix: "solarbridge/aggregated"
    modified_load: "evse/load/modified"

aggregation:
  interval_seconds: 5
  buffer_max_age_seconds: 60

load_modification:
  enabled: true
  high_frequency_updates: true

algorithm_logging:
  enabled: true
  log_every_n_calculations: 10
  log_directory: "` + logDir + `"
  max_age_days: 7

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("SOLARBRIDGE_CONFIG")
	defer os.Setenv("SOLARBRIDGE_CONFIG", originalEnv)
	os.Setenv("SOLARBRIDGE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := run(ctx)

	if err != nil {
		t.Logf("run() returned error: %v (may be due to missing MQTT broker)", err)
	}
}
