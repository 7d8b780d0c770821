// Package algolog is the algorithm calculation log sink.
//
// Every load modification calculation produces a record; the sink writes
// every Nth one (the configured sampling stride) to a daily-rotated CSV
// file with a fixed column order:
//
//	timestamp, house_battery_soc, ev_battery_soc, original_load,
//	modified_load, load_difference, battery_priority_score,
//	charging_priority
//
// The column order and ISO-8601 timestamps are an external contract with
// the tuning tooling that consumes the files; do not reorder.
//
// # Isolation
//
// The sink must never delay message processing. Records cross a bounded
// queue to a dedicated writer goroutine; a full queue drops the record
// with a warning, and disk errors are logged and swallowed there.
//
// # Retention
//
// Files older than max_age_days are deleted at rotation time. Rotation
// and retention are this package's responsibility; the bridge only emits
// records.
package algolog
