// Package config provides configuration loading for solarbridge.
//
// Configuration is loaded from a YAML file with environment variable
// overrides for deployment-specific and secret values:
//
//  1. Hardcoded defaults
//  2. YAML file (configs/config.yaml by default)
//  3. SOLARBRIDGE_* environment variables
//
// # Sections
//
//   - mqtt: source and destination broker sessions, QoS, reconnect backoff
//   - topics: inbound topic table, control metric names, outbound topics
//   - aggregation: flush interval, buffer window, publication settings
//   - load_modification: EVSE load formula thresholds and constants
//   - algorithm_logging: CSV calculation log sampling and retention
//   - logging: level, format, output
//
// # Validation
//
// Load validates the result and fails hard on missing broker addresses,
// an empty topic table, or nonsensical intervals. A misconfigured process
// must never enter its run loop; every other error class in the system is
// non-fatal.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
