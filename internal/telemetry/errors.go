package telemetry

import "errors"

// Domain errors for the telemetry package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, telemetry.ErrUnparseablePayload) {
//	    // drop the message with a diagnostic
//	}
var (
	// ErrUnknownMetric is returned when recording to a metric the buffer
	// set was not created with.
	ErrUnknownMetric = errors.New("telemetry: unknown metric")

	// ErrUnparseablePayload is returned when a payload holds no numeric value.
	ErrUnparseablePayload = errors.New("telemetry: unparseable payload")
)
