package battery

import "sync"

// State is the process-wide holder of the latest battery state-of-charge
// values.
//
// Each field is single-writer-per-field: the most recent message on its
// topic overwrites it. No history is retained, last write wins. Fields
// start unset; readers must check the ok flags before computing with the
// values, because a default of zero would distort the load formula.
//
// Thread Safety:
//   - Written from the transport-callback domain, read synchronously by
//     the load modifier on every load event. All methods are safe for
//     concurrent use.
type State struct {
	mu       sync.RWMutex
	houseSoC float64
	evSoC    float64
	houseSet bool
	evSet    bool
}

// New returns a State with both fields unset.
func New() *State {
	return &State{}
}

// SetHouseSoC records the latest house battery state of charge.
func (s *State) SetHouseSoC(v float64) {
	s.mu.Lock()
	s.houseSoC = v
	s.houseSet = true
	s.mu.Unlock()
}

// SetEVSoC records the latest EV battery state of charge.
func (s *State) SetEVSoC(v float64) {
	s.mu.Lock()
	s.evSoC = v
	s.evSet = true
	s.mu.Unlock()
}

// HouseSoC returns the latest house battery SoC and whether one has been
// received.
func (s *State) HouseSoC() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.houseSoC, s.houseSet
}

// EVSoC returns the latest EV battery SoC and whether one has been
// received.
func (s *State) EVSoC() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evSoC, s.evSet
}

// Snapshot returns both SoC values atomically. ok is true only when both
// fields have been set at least once.
func (s *State) Snapshot() (houseSoC, evSoC float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.houseSoC, s.evSoC, s.houseSet && s.evSet
}
