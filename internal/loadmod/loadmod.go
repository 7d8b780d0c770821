package loadmod

import "time"

// evFullReference is the EV state of charge treated as "full" by the
// priority score: an EV below it contributes its shortfall to the score.
const evFullReference = 80.0

// Priority is the advisory charging priority label attached to each
// calculation. It is diagnostic only and never feeds back into the
// formula.
type Priority string

const (
	// PriorityEV means the EV battery is low while the house battery is
	// comfortable; charging the EV wins.
	PriorityEV Priority = "EV_PRIORITY"

	// PriorityHouse means the house battery is low while the EV battery is
	// comfortable; the house wins.
	PriorityHouse Priority = "HOUSE_PRIORITY"

	// PriorityBalanced covers every other combination.
	PriorityBalanced Priority = "BALANCED"
)

// Config holds the formula thresholds and constants.
//
// The multiplier and base ship with fixed defaults but stay configurable
// so tuning runs are reproducible.
type Config struct {
	EVPriorityThreshold      float64
	HousePriorityThreshold   float64
	ChargeModifierMultiplier float64
	LoadModifierBase         float64
}

// Result is the outcome of one load modification calculation.
type Result struct {
	PriorityScore float64
	LoadMod       float64
	ModifiedLoad  float64
	Priority      Priority
}

// Record is one complete calculation record handed to the algorithm log
// sink. Immutable once created; ownership transfers to the sink when
// sampled.
type Record struct {
	Timestamp     time.Time
	HouseSoC      float64
	EVSoC         float64
	OriginalLoad  float64
	ModifiedLoad  float64
	LoadDiff      float64
	PriorityScore float64
	Priority      Priority
}

// Compute applies the load modification formula.
//
// Pure and deterministic given its inputs; no I/O, no clock, no state.
//
//	priority_score = house_soc + (80 − ev_soc)
//	if priority_score > house_priority_threshold:
//	    charge_mod = (priority_score − house_priority_threshold) × multiplier
//	    load_mod   = base × charge_mod / 100
//	else:
//	    load_mod = 0
//	modified_load = original_load − load_mod + base
//
// Parameters:
//   - cfg: Thresholds and constants
//   - houseSoC: House battery state of charge, percent
//   - evSoC: EV battery state of charge, percent
//   - load: Raw load value, watts
//
// Returns:
//   - Result: Score, applied modifier, modified load, and priority label
func Compute(cfg Config, houseSoC, evSoC, load float64) Result {
	score := houseSoC + (evFullReference - evSoC)

	var loadMod float64
	if score > cfg.HousePriorityThreshold {
		chargeMod := (score - cfg.HousePriorityThreshold) * cfg.ChargeModifierMultiplier
		loadMod = cfg.LoadModifierBase * chargeMod / 100
	}

	return Result{
		PriorityScore: score,
		LoadMod:       loadMod,
		ModifiedLoad:  load - loadMod + cfg.LoadModifierBase,
		Priority:      classify(cfg, houseSoC, evSoC),
	}
}

// classify derives the advisory charging priority label.
func classify(cfg Config, houseSoC, evSoC float64) Priority {
	switch {
	case evSoC < cfg.EVPriorityThreshold && houseSoC > cfg.HousePriorityThreshold:
		return PriorityEV
	case houseSoC < cfg.HousePriorityThreshold && evSoC > cfg.EVPriorityThreshold:
		return PriorityHouse
	default:
		return PriorityBalanced
	}
}

// NewRecord builds the calculation record for one Compute invocation.
func NewRecord(at time.Time, houseSoC, evSoC, load float64, res Result) Record {
	return Record{
		Timestamp:     at,
		HouseSoC:      houseSoC,
		EVSoC:         evSoC,
		OriginalLoad:  load,
		ModifiedLoad:  res.ModifiedLoad,
		LoadDiff:      res.ModifiedLoad - load,
		PriorityScore: res.PriorityScore,
		Priority:      res.Priority,
	}
}
