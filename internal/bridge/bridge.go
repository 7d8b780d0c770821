package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sunpath/solarbridge/internal/battery"
	"github.com/sunpath/solarbridge/internal/infrastructure/config"
	"github.com/sunpath/solarbridge/internal/loadmod"
	"github.com/sunpath/solarbridge/internal/router"
	"github.com/sunpath/solarbridge/internal/telemetry"
)

// MQTTClient is the interface the bridge needs from a broker session.
// The infrastructure client is adapted to it in cmd/solarbridge.
type MQTTClient interface {
	// Publish sends a message. Best-effort; the bridge logs failures and
	// moves on.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for an exact-match topic.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error

	// IsConnected reports whether the session is currently established.
	IsConnected() bool
}

// Sink receives one calculation record per load modifier invocation.
// Implementations must never block the caller.
type Sink interface {
	Record(rec loadmod.Record)
}

// Logger is the interface for bridge diagnostics.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all diagnostics.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Bridge.
type Options struct {
	// Config is the full application configuration.
	Config *config.Config

	// Source is the session messages arrive on.
	Source MQTTClient

	// Destination is the session aggregates and modified load go out on.
	Destination MQTTClient

	// Sink receives sampled calculation records (may be nil when
	// algorithm logging is disabled).
	Sink Sink

	// Logger receives diagnostics (may be nil).
	Logger Logger
}

// Bridge wires the inbound message path to the outbound publishers.
//
// Inbound handling runs synchronously inside the transport callback that
// received the message: route, parse, then an exhaustive dispatch on the
// route kind (buffer record, battery state write, load modification).
// There is no queued hand-off, so everything on this path is fast. The
// only potentially slow consumer, the algorithm log sink, is decoupled
// behind its own queue.
//
// The aggregation scheduler runs in its own goroutine started by Start.
type Bridge struct {
	cfg     *config.Config
	routes  *router.Router
	buffers *telemetry.Set
	battery *battery.State
	source  MQTTClient
	dest    MQTTClient
	sink    Sink
	log     Logger

	// now is the clock; replaced in tests.
	now func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Bridge from validated configuration.
//
// Buffers are created for every configured metric except the EV SoC
// control metric, which only feeds the battery state store.
//
// Returns:
//   - *Bridge: Ready bridge; call Start to begin processing
//   - error: If a required option is missing
func New(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		return nil, ErrConfigRequired
	}
	if opts.Source == nil || opts.Destination == nil {
		return nil, ErrClientRequired
	}
	log := opts.Logger
	if log == nil {
		log = noopLogger{}
	}

	topics := opts.Config.Topics
	routes := router.New(topics.Source, topics.LoadMetric, topics.HouseSoCMetric, topics.EVSoCMetric)

	return &Bridge{
		cfg:     opts.Config,
		routes:  routes,
		buffers: telemetry.NewSet(routes.BufferedMetrics(), opts.Config.BufferMaxAge()),
		battery: battery.New(),
		source:  opts.Source,
		dest:    opts.Destination,
		sink:    opts.Sink,
		log:     log,
		now:     time.Now,
		stop:    make(chan struct{}),
	}, nil
}

// Start subscribes to every configured source topic and starts the
// aggregation scheduler.
//
// Parameters:
//   - ctx: Cancels the scheduler on shutdown
//
// Returns:
//   - error: If any initial subscription fails
func (b *Bridge) Start(ctx context.Context) error {
	qos := byte(b.cfg.MQTT.QoS)

	for _, topic := range b.routes.Topics() {
		if err := b.source.Subscribe(topic, qos, b.handleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		b.log.Info("subscribed", "topic", topic)
	}

	b.wg.Add(1)
	go b.runScheduler(ctx)

	return nil
}

// Stop halts the aggregation scheduler. Buffered samples are lost, which
// is acceptable: nothing downstream depends on a final flush.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	b.wg.Wait()
}

// handleMessage is the inbound dispatch path, invoked by the source
// session for every message on a subscribed topic.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	route, ok := b.routes.Route(topic)
	if !ok {
		// Shared broker, unrelated traffic. Not an error.
		return nil
	}

	value, err := telemetry.ParseValue(payload)
	if err != nil {
		// Dropped with a diagnostic, never fatal.
		b.log.Warn("dropping unparseable payload",
			"topic", topic,
			"metric", route.Metric,
			"error", err,
		)
		return nil
	}

	at := b.now()

	switch route.Kind {
	case router.KindMetric:
		b.record(route.Metric, value, at)

	case router.KindHouseSoC:
		b.record(route.Metric, value, at)
		b.battery.SetHouseSoC(value)

	case router.KindEVSoC:
		b.battery.SetEVSoC(value)

	case router.KindLoad:
		b.record(route.Metric, value, at)
		b.handleLoad(value, at)
	}

	b.log.Debug("received", "metric", route.Metric, "value", value)
	return nil
}

// record appends a sample to the metric's buffer.
func (b *Bridge) record(metric string, value float64, at time.Time) {
	if err := b.buffers.Record(metric, value, at); err != nil {
		b.log.Error("recording sample", "metric", metric, "error", err)
	}
}

// handleLoad runs the load modifier for one inbound load value and
// publishes the result.
//
// When either battery SoC is still unknown the raw load passes through
// unmodified (computing against a default of zero would distort the
// formula) and no calculation record is emitted.
func (b *Bridge) handleLoad(value float64, at time.Time) {
	lm := b.cfg.LoadMod
	if !lm.Enabled || !lm.HighFrequencyUpdates {
		return
	}

	houseSoC, evSoC, ok := b.battery.Snapshot()
	if !ok {
		b.log.Debug("battery state incomplete, passing load through", "load", value)
		b.publishModifiedLoad(value)
		return
	}

	res := loadmod.Compute(loadmod.Config{
		EVPriorityThreshold:      lm.EVPriorityThreshold,
		HousePriorityThreshold:   lm.HousePriorityThreshold,
		ChargeModifierMultiplier: lm.ChargeModifierMultiplier,
		LoadModifierBase:         lm.LoadModifierBase,
	}, houseSoC, evSoC, value)

	if b.sink != nil {
		b.sink.Record(loadmod.NewRecord(at, houseSoC, evSoC, value, res))
	}

	b.publishModifiedLoad(res.ModifiedLoad)

	b.log.Debug("modified load",
		"house_soc", houseSoC,
		"ev_soc", evSoC,
		"score", res.PriorityScore,
		"original", value,
		"modified", res.ModifiedLoad,
		"priority", res.Priority,
	)
}

// publishModifiedLoad sends the load value to the EVSE topic.
func (b *Bridge) publishModifiedLoad(value float64) {
	topic := b.cfg.Topics.Destination.ModifiedLoad
	if topic == "" {
		return
	}

	payload := b.formatValue(value)
	if err := b.dest.Publish(topic, []byte(payload), byte(b.cfg.MQTT.QoS), false); err != nil {
		b.log.Warn("publishing modified load failed", "topic", topic, "error", err)
	}
}
