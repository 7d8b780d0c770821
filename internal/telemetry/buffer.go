package telemetry

import (
	"sort"
	"sync"
	"time"
)

// Sample is a single observed metric value. Immutable once created and
// owned exclusively by the buffer holding it until pruned or flushed.
type Sample struct {
	Value      float64
	ObservedAt time.Time
}

// Aggregate is the summary of one metric's buffered samples over the
// retention window. Derived on demand, never stored beyond one publish
// cycle.
type Aggregate struct {
	Metric    string
	Min       float64
	Max       float64
	Avg       float64
	Count     int
	WindowEnd time.Time
}

// Set holds the per-metric rolling sample windows.
//
// A Set is created once at process start for the configured metric names
// and shared between the transport-callback domain (writers, via Record)
// and the scheduler domain (reader/clearer, via ComputeAndClear). A single
// coarse lock guards the whole map: operations are O(window size) and
// windows are small, so finer locking buys nothing.
type Set struct {
	mu      sync.Mutex
	buffers map[string][]Sample
	metrics []string
	maxAge  time.Duration
}

// NewSet creates buffers for the given metric names.
//
// Parameters:
//   - metrics: Metric names to buffer; duplicates are collapsed
//   - maxAge: Retention window; samples older than this are pruned before
//     each statistics computation
//
// Returns:
//   - *Set: Ready buffer set with a stable metric iteration order
func NewSet(metrics []string, maxAge time.Duration) *Set {
	buffers := make(map[string][]Sample, len(metrics))
	for _, m := range metrics {
		buffers[m] = nil
	}

	// Stable flush order: lexicographic over metric names. Deterministic
	// regardless of map iteration or YAML decoding order.
	ordered := make([]string, 0, len(buffers))
	for m := range buffers {
		ordered = append(ordered, m)
	}
	sort.Strings(ordered)

	return &Set{
		buffers: buffers,
		metrics: ordered,
		maxAge:  maxAge,
	}
}

// Metrics returns the metric names in stable flush order.
func (s *Set) Metrics() []string {
	out := make([]string, len(s.metrics))
	copy(out, s.metrics)
	return out
}

// Record appends a sample to a metric's window.
//
// Parameters:
//   - metric: Name of the metric, must be one the Set was created with
//   - value: Observed value
//   - at: Observation timestamp (arrival time)
//
// Returns:
//   - error: ErrUnknownMetric if the metric was not configured
func (s *Set) Record(metric string, value float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buffers[metric]; !ok {
		return ErrUnknownMetric
	}

	s.buffers[metric] = append(s.buffers[metric], Sample{Value: value, ObservedAt: at})
	return nil
}

// Len returns the current number of buffered samples for a metric,
// without pruning. Zero for unknown metrics.
func (s *Set) Len(metric string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers[metric])
}

// ComputeAndClear prunes stale samples, computes statistics over what
// remains, and clears the metric's window.
//
// Pruning removes samples strictly older than maxAge relative to now; a
// sample aged exactly maxAge is retained. The window is cleared whether or
// not a result is produced, so a tick consumes everything it inspected.
// Count is the number of unpruned samples at computation time, not the
// lifetime count.
//
// Parameters:
//   - metric: Name of the metric to summarise
//   - now: Computation time; also becomes the aggregate's WindowEnd
//
// Returns:
//   - Aggregate: Statistics over surviving samples
//   - bool: false when no samples survived pruning (callers must not
//     publish anything for such a result)
func (s *Set) ComputeAndClear(metric string, now time.Time) (Aggregate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	samples, ok := s.buffers[metric]
	if !ok {
		return Aggregate{}, false
	}

	// Clear unconditionally; the caller consumes this window.
	s.buffers[metric] = nil

	cutoff := now.Add(-s.maxAge)
	agg := Aggregate{Metric: metric, WindowEnd: now}
	var sum float64

	for _, sample := range samples {
		if sample.ObservedAt.Before(cutoff) {
			continue
		}
		if agg.Count == 0 || sample.Value < agg.Min {
			agg.Min = sample.Value
		}
		if agg.Count == 0 || sample.Value > agg.Max {
			agg.Max = sample.Value
		}
		sum += sample.Value
		agg.Count++
	}

	if agg.Count == 0 {
		return Aggregate{}, false
	}

	agg.Avg = sum / float64(agg.Count)
	return agg, true
}
