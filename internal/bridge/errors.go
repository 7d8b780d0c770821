package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrConfigRequired is returned when New is called without configuration.
	ErrConfigRequired = errors.New("bridge: config is required")

	// ErrClientRequired is returned when New is called without both
	// broker sessions.
	ErrClientRequired = errors.New("bridge: source and destination clients are required")
)
