package mqtt

import "fmt"

// Topic prefixes for topics the bridge itself owns. Aggregate and
// modified-load topics are configuration-driven and built via the
// Aggregate* helpers below.
const (
	// TopicPrefixSystem is the base for bridge status topics.
	TopicPrefixSystem = "solarbridge/system"
)

// Statistic name segments for aggregate topics.
const (
	StatMin   = "min"
	StatMax   = "max"
	StatAvg   = "avg"
	StatCount = "count"
)

// Topics provides builders for solarbridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	avgTopic := topics.AggregateStat("solar_assistant_agg", "power", mqtt.StatAvg)
//	// Returns: "solar_assistant_agg/power/avg"
type Topics struct{}

// SystemStatus returns the status topic for a broker session role.
//
// Example: solarbridge/system/status/source
func (Topics) SystemStatus(role string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefixSystem, role)
}

// AggregateStat returns the topic for one statistic of one metric.
//
// Example: solar_assistant_agg/power/min
func (Topics) AggregateStat(prefix, metric, stat string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, metric, stat)
}

// AggregateCombined returns the topic carrying the per-tick combined
// JSON document covering all metrics that produced a result.
//
// Example: solar_assistant_agg/combined
func (Topics) AggregateCombined(prefix string) string {
	return fmt.Sprintf("%s/combined", prefix)
}
