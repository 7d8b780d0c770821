// Package telemetry provides the per-metric rolling sample windows and
// payload parsing for solarbridge.
//
// A Set holds one append-ordered sample window per configured metric.
// Writers (the transport callback path) append via Record; the
// aggregation scheduler drains via ComputeAndClear, which prunes samples
// older than the retention window, computes min/max/avg/count over what
// remains, and clears the window unconditionally.
//
// # Invariants
//
//   - All samples inspected by a statistics computation are younger than
//     the retention window; pruning is lazy, performed at computation time.
//   - A sample aged exactly the retention window is retained (the boundary
//     rule is fixed and tested).
//   - After ComputeAndClear the window is empty whether or not a result
//     was produced.
//   - min ≤ avg ≤ max for every produced Aggregate; Count is the number
//     of surviving samples, not the lifetime count.
//
// # Concurrency
//
// One coarse mutex guards the buffer map. Operations are O(window size)
// and windows are small (seconds of high-frequency telemetry), so the
// lock is held only briefly on both the callback and scheduler paths.
package telemetry
