package router

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter() *Router {
	return New(map[string]string{
		"power":          "solar_assistant/inverter_1/total_power/state",
		"load":           "solar_assistant/inverter_1/load_power/state",
		"voltage":        "solar_assistant/battery_1/voltage/state",
		"battery_soc":    "solar_assistant/battery_1/state_of_charge/state",
		"ev_battery_soc": "hubitat/ev_battery_soc",
	}, "load", "battery_soc", "ev_battery_soc")
}

func TestRoute_Kinds(t *testing.T) {
	r := testRouter()

	tests := []struct {
		topic      string
		wantMetric string
		wantKind   Kind
	}{
		{"solar_assistant/inverter_1/total_power/state", "power", KindMetric},
		{"solar_assistant/battery_1/voltage/state", "voltage", KindMetric},
		{"solar_assistant/inverter_1/load_power/state", "load", KindLoad},
		{"solar_assistant/battery_1/state_of_charge/state", "battery_soc", KindHouseSoC},
		{"hubitat/ev_battery_soc", "ev_battery_soc", KindEVSoC},
	}

	for _, tt := range tests {
		route, ok := r.Route(tt.topic)
		require.True(t, ok, "topic %s", tt.topic)
		assert.Equal(t, tt.wantMetric, route.Metric)
		assert.Equal(t, tt.wantKind, route.Kind)
	}
}

func TestRoute_UnknownTopicDropped(t *testing.T) {
	r := testRouter()

	_, ok := r.Route("zigbee2mqtt/some_light/state")
	assert.False(t, ok)

	// Prefix of a known topic is still unknown: exact match only.
	_, ok = r.Route("solar_assistant/inverter_1/total_power")
	assert.False(t, ok)
}

func TestTopics(t *testing.T) {
	r := testRouter()

	topics := r.Topics()
	sort.Strings(topics)
	assert.Equal(t, []string{
		"hubitat/ev_battery_soc",
		"solar_assistant/battery_1/state_of_charge/state",
		"solar_assistant/battery_1/voltage/state",
		"solar_assistant/inverter_1/load_power/state",
		"solar_assistant/inverter_1/total_power/state",
	}, topics)
}

func TestBufferedMetrics_ExcludesEVSoC(t *testing.T) {
	r := testRouter()

	metrics := r.BufferedMetrics()
	sort.Strings(metrics)
	assert.Equal(t, []string{"battery_soc", "load", "power", "voltage"}, metrics)
}

func TestNew_SkipsEmptyTopics(t *testing.T) {
	r := New(map[string]string{
		"power":       "solar_assistant/inverter_1/total_power/state",
		"temperature": "",
	}, "load", "battery_soc", "ev_battery_soc")

	assert.Len(t, r.Topics(), 1)
	_, ok := r.Route("")
	assert.False(t, ok)
}
