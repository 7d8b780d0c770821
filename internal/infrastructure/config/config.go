package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for solarbridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Topics      TopicsConfig      `yaml:"topics"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	LoadMod     LoadModConfig     `yaml:"load_modification"`
	AlgoLog     AlgoLogConfig     `yaml:"algorithm_logging"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// MQTTConfig contains settings for both broker sessions.
//
// Source and destination may point at the same physical broker; they are
// always two independent sessions with independent subscription state.
type MQTTConfig struct {
	Source      BrokerConfig    `yaml:"source_broker"`
	Destination BrokerConfig    `yaml:"destination_broker"`
	QoS         int             `yaml:"qos"`
	Reconnect   ReconnectConfig `yaml:"reconnect"`
}

// BrokerConfig contains connection details for a single MQTT broker.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ReconnectConfig contains reconnection backoff settings, in seconds.
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// TopicsConfig contains the inbound topic table and outbound topic settings.
type TopicsConfig struct {
	// Source maps a metric name (e.g. "power") to the broker topic that
	// carries it (e.g. "solar_assistant/inverter_1/total_power/state").
	Source map[string]string `yaml:"source"`

	// LoadMetric names the entry in Source that carries instantaneous
	// load. Messages on it additionally drive the load modifier.
	LoadMetric string `yaml:"load_metric"`

	// HouseSoCMetric names the entry in Source that carries the house
	// battery state of charge. Messages on it additionally update the
	// battery state store.
	HouseSoCMetric string `yaml:"house_soc_metric"`

	// EVSoCMetric names the entry in Source that carries the EV battery
	// state of charge. It only updates the state store and is never
	// buffered for aggregation.
	EVSoCMetric string `yaml:"ev_soc_metric"`

	Destination DestinationConfig `yaml:"destination"`
}

// DestinationConfig contains outbound topic settings.
type DestinationConfig struct {
	// AggregatedPrefix is the base for aggregate topics:
	// <prefix>/<metric>/{min,max,avg,count} and <prefix>/combined.
	AggregatedPrefix string `yaml:"aggregated_prefix"`

	// ModifiedLoad is the topic the modified load value is published to.
	ModifiedLoad string `yaml:"modified_load"`
}

// AggregationConfig contains buffering and flush scheduling settings.
type AggregationConfig struct {
	IntervalSeconds     int  `yaml:"interval_seconds"`
	BufferMaxAgeSeconds int  `yaml:"buffer_max_age_seconds"`
	PublishIndividual   bool `yaml:"publish_individual_topics"`

	// RoundDecimals is the number of decimal places used when publishing
	// statistics. Tunable because the downstream consumer's precision
	// requirements are not fixed.
	RoundDecimals int `yaml:"round_decimals"`
}

// LoadModConfig contains load modification formula settings.
type LoadModConfig struct {
	Enabled                  bool    `yaml:"enabled"`
	HighFrequencyUpdates     bool    `yaml:"high_frequency_updates"`
	EVPriorityThreshold      float64 `yaml:"ev_priority_threshold"`
	HousePriorityThreshold   float64 `yaml:"house_priority_threshold"`
	ChargeModifierMultiplier float64 `yaml:"charge_modifier_multiplier"`
	LoadModifierBase         float64 `yaml:"load_modifier_base"`
}

// AlgoLogConfig contains algorithm calculation logging settings.
type AlgoLogConfig struct {
	Enabled      bool   `yaml:"enabled"`
	LogEveryN    int    `yaml:"log_every_n_calculations"`
	LogDirectory string `yaml:"log_directory"`
	MaxAgeDays   int    `yaml:"max_age_days"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SOLARBRIDGE_SECTION_KEY
// For example: SOLARBRIDGE_SOURCE_HOST, SOLARBRIDGE_DEST_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
//
// The load modification constants default to the values the downstream
// EVSE integration was tuned against; they remain configurable so tuning
// runs are reproducible.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Source: BrokerConfig{
				Port:     1883,
				ClientID: "solarbridge-source",
			},
			Destination: BrokerConfig{
				Port:     1883,
				ClientID: "solarbridge-dest",
			},
			QoS: 0,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Topics: TopicsConfig{
			LoadMetric:     "load",
			HouseSoCMetric: "battery_soc",
			EVSoCMetric:    "ev_battery_soc",
		},
		Aggregation: AggregationConfig{
			IntervalSeconds:     30,
			BufferMaxAgeSeconds: 300,
			PublishIndividual:   true,
			RoundDecimals:       2,
		},
		LoadMod: LoadModConfig{
			Enabled:                  true,
			HighFrequencyUpdates:     true,
			EVPriorityThreshold:      50,
			HousePriorityThreshold:   50,
			ChargeModifierMultiplier: 2.0,
			LoadModifierBase:         10000.0,
		},
		AlgoLog: AlgoLogConfig{
			Enabled:      false,
			LogEveryN:    10,
			LogDirectory: "data/algorithm_logs",
			MaxAgeDays:   30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SOLARBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Source broker
	if v := os.Getenv("SOLARBRIDGE_SOURCE_HOST"); v != "" {
		cfg.MQTT.Source.Host = v
	}
	if v := os.Getenv("SOLARBRIDGE_SOURCE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Source.Port = port
		}
	}
	if v := os.Getenv("SOLARBRIDGE_SOURCE_USERNAME"); v != "" {
		cfg.MQTT.Source.Username = v
	}
	if v := os.Getenv("SOLARBRIDGE_SOURCE_PASSWORD"); v != "" {
		cfg.MQTT.Source.Password = v
	}

	// Destination broker
	if v := os.Getenv("SOLARBRIDGE_DEST_HOST"); v != "" {
		cfg.MQTT.Destination.Host = v
	}
	if v := os.Getenv("SOLARBRIDGE_DEST_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Destination.Port = port
		}
	}
	if v := os.Getenv("SOLARBRIDGE_DEST_USERNAME"); v != "" {
		cfg.MQTT.Destination.Username = v
	}
	if v := os.Getenv("SOLARBRIDGE_DEST_PASSWORD"); v != "" {
		cfg.MQTT.Destination.Password = v
	}

	// Algorithm logging
	if v := os.Getenv("SOLARBRIDGE_ALGOLOG_DIR"); v != "" {
		cfg.AlgoLog.LogDirectory = v
	}
}

// Validate checks the configuration for errors.
//
// Configuration errors are the only fatal error class in the system: a
// process with an invalid configuration must never enter its run loop.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Broker validation
	if c.MQTT.Source.Host == "" {
		errs = append(errs, "mqtt.source_broker.host is required")
	}
	if c.MQTT.Destination.Host == "" {
		errs = append(errs, "mqtt.destination_broker.host is required")
	}
	if c.MQTT.Source.Port < 1 || c.MQTT.Source.Port > 65535 {
		errs = append(errs, "mqtt.source_broker.port must be between 1 and 65535")
	}
	if c.MQTT.Destination.Port < 1 || c.MQTT.Destination.Port > 65535 {
		errs = append(errs, "mqtt.destination_broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Topic table validation
	if len(c.Topics.Source) == 0 {
		errs = append(errs, "topics.source must contain at least one topic")
	}
	for metric, topic := range c.Topics.Source {
		if topic == "" {
			errs = append(errs, fmt.Sprintf("topics.source.%s must not be empty", metric))
		}
	}
	if c.LoadMod.Enabled {
		if _, ok := c.Topics.Source[c.Topics.LoadMetric]; !ok {
			errs = append(errs, fmt.Sprintf("topics.source.%s is required when load_modification is enabled", c.Topics.LoadMetric))
		}
		// The formula needs both SoC feeds; without them every load
		// message passes through unmodified.
		if _, ok := c.Topics.Source[c.Topics.HouseSoCMetric]; !ok {
			errs = append(errs, fmt.Sprintf("topics.source.%s is required when load_modification is enabled", c.Topics.HouseSoCMetric))
		}
		if _, ok := c.Topics.Source[c.Topics.EVSoCMetric]; !ok {
			errs = append(errs, fmt.Sprintf("topics.source.%s is required when load_modification is enabled", c.Topics.EVSoCMetric))
		}
		if c.Topics.Destination.ModifiedLoad == "" {
			errs = append(errs, "topics.destination.modified_load is required when load_modification is enabled")
		}
	}
	if c.Topics.Destination.AggregatedPrefix == "" {
		errs = append(errs, "topics.destination.aggregated_prefix is required")
	}

	// Aggregation validation
	if c.Aggregation.IntervalSeconds < 1 {
		errs = append(errs, "aggregation.interval_seconds must be at least 1")
	}
	if c.Aggregation.BufferMaxAgeSeconds < 1 {
		errs = append(errs, "aggregation.buffer_max_age_seconds must be at least 1")
	}
	if c.Aggregation.RoundDecimals < 0 {
		errs = append(errs, "aggregation.round_decimals must not be negative")
	}

	// Algorithm logging validation
	if c.AlgoLog.Enabled {
		if c.AlgoLog.LogEveryN < 1 {
			errs = append(errs, "algorithm_logging.log_every_n_calculations must be at least 1")
		}
		if c.AlgoLog.LogDirectory == "" {
			errs = append(errs, "algorithm_logging.log_directory is required when algorithm_logging is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// AggregationInterval returns the flush interval as a Duration.
func (c *Config) AggregationInterval() time.Duration {
	return time.Duration(c.Aggregation.IntervalSeconds) * time.Second
}

// BufferMaxAge returns the sample retention window as a Duration.
func (c *Config) BufferMaxAge() time.Duration {
	return time.Duration(c.Aggregation.BufferMaxAgeSeconds) * time.Second
}
