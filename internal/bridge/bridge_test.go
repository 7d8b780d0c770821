package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunpath/solarbridge/internal/infrastructure/config"
	"github.com/sunpath/solarbridge/internal/loadmod"
)

type published struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

// fakeClient records publishes and subscriptions in memory.
type fakeClient struct {
	mu           sync.Mutex
	published    []published
	handlers     map[string]func(topic string, payload []byte) error
	publishErr   error
	subscribeErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]func(string, []byte) error)}
}

func (c *fakeClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, published{topic, string(payload), qos, retained})
	return nil
}

func (c *fakeClient) Subscribe(topic string, qos byte, handler func(string, []byte) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.handlers[topic] = handler
	return nil
}

func (c *fakeClient) IsConnected() bool { return true }

func (c *fakeClient) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]published, len(c.published))
	copy(out, c.published)
	return out
}

func (c *fakeClient) messagesOn(topic string) []published {
	var out []published
	for _, msg := range c.messages() {
		if msg.topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// fakeSink counts records handed to it.
type fakeSink struct {
	mu      sync.Mutex
	records []loadmod.Record
}

func (s *fakeSink) Record(rec loadmod.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *fakeSink) all() []loadmod.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]loadmod.Record, len(s.records))
	copy(out, s.records)
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		MQTT: config.MQTTConfig{QoS: 0},
		Topics: config.TopicsConfig{
			Source: map[string]string{
				"load":           "solar_assistant/inverter_1/load_power/state",
				"pv_power":       "solar_assistant/inverter_1/pv_power/state",
				"battery_soc":    "solar_assistant/battery_1/state_of_charge/state",
				"ev_battery_soc": "ev_charger/battery_soc/state",
			},
			LoadMetric:     "load",
			HouseSoCMetric: "battery_soc",
			EVSoCMetric:    "ev_battery_soc",
			Destination: config.DestinationConfig{
				AggregatedPrefix: "solarbridge/aggregated",
				ModifiedLoad:     "evse/load/modified",
			},
		},
		Aggregation: config.AggregationConfig{
			IntervalSeconds:     30,
			BufferMaxAgeSeconds: 300,
			PublishIndividual:   true,
			RoundDecimals:       2,
		},
		LoadMod: config.LoadModConfig{
			Enabled:                  true,
			HighFrequencyUpdates:     true,
			EVPriorityThreshold:      50,
			HousePriorityThreshold:   50,
			ChargeModifierMultiplier: 2.0,
			LoadModifierBase:         10000.0,
		},
	}
}

func testBridge(t *testing.T, cfg *config.Config) (*Bridge, *fakeClient, *fakeClient, *fakeSink) {
	t.Helper()
	source := newFakeClient()
	dest := newFakeClient()
	sink := &fakeSink{}

	b, err := New(Options{Config: cfg, Source: source, Destination: dest, Sink: sink})
	require.NoError(t, err)
	b.now = func() time.Time {
		return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	}
	return b, source, dest, sink
}

func TestNew_RequiresOptions(t *testing.T) {
	_, err := New(Options{Source: newFakeClient(), Destination: newFakeClient()})
	assert.ErrorIs(t, err, ErrConfigRequired)

	_, err = New(Options{Config: testConfig()})
	assert.ErrorIs(t, err, ErrClientRequired)

	_, err = New(Options{Config: testConfig(), Source: newFakeClient()})
	assert.ErrorIs(t, err, ErrClientRequired)
}

func TestStart_SubscribesToAllSourceTopics(t *testing.T) {
	b, source, _, _ := testBridge(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.Start(ctx))
	defer b.Stop()

	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Len(t, source.handlers, 4)
	assert.Contains(t, source.handlers, "solar_assistant/inverter_1/load_power/state")
	assert.Contains(t, source.handlers, "ev_charger/battery_soc/state")
}

func TestStart_SubscribeFailureIsFatal(t *testing.T) {
	b, source, _, _ := testBridge(t, testConfig())
	source.subscribeErr = errors.New("broker gone")

	err := b.Start(context.Background())
	require.Error(t, err)
	b.Stop()
}

func TestHandleMessage_BuffersMetric(t *testing.T) {
	b, _, _, _ := testBridge(t, testConfig())

	err := b.handleMessage("solar_assistant/inverter_1/pv_power/state", []byte("1234.5"))
	require.NoError(t, err)
	assert.Equal(t, 1, b.buffers.Len("pv_power"))
}

func TestHandleMessage_IgnoresUnknownTopic(t *testing.T) {
	b, _, dest, _ := testBridge(t, testConfig())

	err := b.handleMessage("some/other/topic", []byte("42"))
	require.NoError(t, err)
	assert.Empty(t, dest.messages())
}

func TestHandleMessage_DropsUnparseablePayload(t *testing.T) {
	b, _, dest, sink := testBridge(t, testConfig())

	err := b.handleMessage("solar_assistant/inverter_1/load_power/state", []byte("not a number"))
	require.NoError(t, err)

	assert.Equal(t, 0, b.buffers.Len("load"))
	assert.Empty(t, dest.messages())
	assert.Empty(t, sink.all())
}

func TestHandleMessage_NonFinitePayloadDoesNotPoisonFlush(t *testing.T) {
	b, _, dest, _ := testBridge(t, testConfig())

	require.NoError(t, b.handleMessage("solar_assistant/inverter_1/pv_power/state", []byte("NaN")))
	require.NoError(t, b.handleMessage("solar_assistant/inverter_1/load_power/state", []byte("1500")))

	assert.Equal(t, 0, b.buffers.Len("pv_power"), "non-finite sample must be dropped")

	b.flush(time.Date(2026, 8, 24, 12, 0, 30, 0, time.UTC))

	// The healthy metric still gets its combined document.
	combined := dest.messagesOn("solarbridge/aggregated/combined")
	require.Len(t, combined, 1)

	var doc map[string]combinedStats
	require.NoError(t, json.Unmarshal([]byte(combined[0].payload), &doc))
	assert.Contains(t, doc, "load")
	assert.NotContains(t, doc, "pv_power")
}

func TestHandleMessage_EVSoCUpdatesStateWithoutBuffering(t *testing.T) {
	b, _, _, _ := testBridge(t, testConfig())

	err := b.handleMessage("ev_charger/battery_soc/state", []byte("55"))
	require.NoError(t, err)

	ev, ok := b.battery.EVSoC()
	require.True(t, ok)
	assert.Equal(t, 55.0, ev)
	assert.NotContains(t, b.buffers.Metrics(), "ev_battery_soc")
}

func TestHandleMessage_HouseSoCBuffersAndUpdatesState(t *testing.T) {
	b, _, _, _ := testBridge(t, testConfig())

	err := b.handleMessage("solar_assistant/battery_1/state_of_charge/state", []byte("85"))
	require.NoError(t, err)

	house, ok := b.battery.HouseSoC()
	require.True(t, ok)
	assert.Equal(t, 85.0, house)
	assert.Equal(t, 1, b.buffers.Len("battery_soc"))
}

func TestHandleMessage_LoadPassesThroughUntilBatteryStateKnown(t *testing.T) {
	b, _, dest, sink := testBridge(t, testConfig())

	require.NoError(t, b.handleMessage("solar_assistant/inverter_1/load_power/state", []byte("5000")))

	msgs := dest.messagesOn("evse/load/modified")
	require.Len(t, msgs, 1)
	assert.Equal(t, "5000", msgs[0].payload)
	assert.Empty(t, sink.all(), "no calculation record without battery state")
}

func TestHandleMessage_LoadModificationWithKnownState(t *testing.T) {
	b, _, dest, sink := testBridge(t, testConfig())

	require.NoError(t, b.handleMessage("solar_assistant/battery_1/state_of_charge/state", []byte("85")))
	require.NoError(t, b.handleMessage("ev_charger/battery_soc/state", []byte("20")))
	require.NoError(t, b.handleMessage("solar_assistant/inverter_1/load_power/state", []byte("5000")))

	// score = 85 + (80 - 20) = 145
	// load_mod = 10000 * ((145 - 50) * 2) / 100 = 19000
	// modified = 5000 - 19000 + 10000 = -4000
	msgs := dest.messagesOn("evse/load/modified")
	require.Len(t, msgs, 1)
	assert.Equal(t, "-4000", msgs[0].payload)

	recs := sink.all()
	require.Len(t, recs, 1)
	assert.Equal(t, 145.0, recs[0].PriorityScore)
	assert.Equal(t, loadmod.PriorityEV, recs[0].Priority)
	assert.Equal(t, -4000.0, recs[0].ModifiedLoad)
}

func TestHandleMessage_LoadModDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.LoadMod.Enabled = false
	b, _, dest, sink := testBridge(t, cfg)

	require.NoError(t, b.handleMessage("solar_assistant/inverter_1/load_power/state", []byte("5000")))

	assert.Empty(t, dest.messages())
	assert.Empty(t, sink.all())
	assert.Equal(t, 1, b.buffers.Len("load"), "load is still buffered for aggregation")
}

func TestHandleMessage_HighFrequencyUpdatesOff(t *testing.T) {
	cfg := testConfig()
	cfg.LoadMod.HighFrequencyUpdates = false
	b, _, dest, _ := testBridge(t, cfg)

	require.NoError(t, b.handleMessage("solar_assistant/inverter_1/load_power/state", []byte("5000")))
	assert.Empty(t, dest.messages())
}

func TestHandleMessage_PublishFailureDoesNotAbort(t *testing.T) {
	b, _, dest, sink := testBridge(t, testConfig())
	dest.publishErr = errors.New("broker down")

	require.NoError(t, b.handleMessage("solar_assistant/battery_1/state_of_charge/state", []byte("85")))
	require.NoError(t, b.handleMessage("ev_charger/battery_soc/state", []byte("20")))
	require.NoError(t, b.handleMessage("solar_assistant/inverter_1/load_power/state", []byte("5000")))

	// The calculation still happened and was recorded.
	assert.Len(t, sink.all(), 1)
	assert.Equal(t, 1, b.buffers.Len("load"))
}

func TestStop_IsIdempotent(t *testing.T) {
	b, _, _, _ := testBridge(t, testConfig())
	require.NoError(t, b.Start(context.Background()))

	b.Stop()
	b.Stop()
}
