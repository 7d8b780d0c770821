// Package bridge wires the source-broker message path to the
// destination-broker publishers.
//
// It owns the application's moving parts: the topic router, the rolling
// telemetry buffers, the battery state store, the load modifier, and the
// aggregation scheduler. Transport sessions and the algorithm log sink
// are injected through small interfaces so the package is testable
// without a broker or a disk.
//
// # Message flow
//
// Every inbound message is routed by exact topic match, parsed to a
// numeric value, then dispatched by kind: plain metrics are buffered;
// the house SoC metric is buffered and written to the battery state; the
// EV SoC metric only updates battery state; the load metric is buffered
// and additionally drives the load modification path, which publishes a
// modified load value per inbound message.
//
// # Aggregation
//
// A ticker fires at the configured interval. Each tick computes min, max,
// avg and count per metric over the retained window, publishes individual
// statistic topics when enabled, and publishes one combined JSON document
// covering every metric that had data.
package bridge
