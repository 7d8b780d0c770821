package bridge

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/sunpath/solarbridge/internal/infrastructure/mqtt"
)

// combinedStats is one metric's entry in the combined aggregate document.
type combinedStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// runScheduler fires the aggregation flush at the configured interval
// until the context is cancelled or Stop is called.
func (b *Bridge) runScheduler(ctx context.Context) {
	defer b.wg.Done()

	interval := b.cfg.AggregationInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.log.Info("aggregation scheduler started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return
		case now := <-ticker.C:
			b.flush(now)
		}
	}
}

// flush computes and publishes aggregates for every buffered metric.
//
// Metrics are visited in the buffer set's stable order so identical input
// always yields identical publish order. A metric whose buffer is empty
// after pruning publishes nothing and is absent from the combined
// document; when no metric has data the combined document is not
// published at all.
//
// Publish failures are logged per topic and never abort the cycle: one
// bad publish must not cost the remaining metrics their aggregates.
func (b *Bridge) flush(now time.Time) {
	prefix := b.cfg.Topics.Destination.AggregatedPrefix
	qos := byte(b.cfg.MQTT.QoS)
	topics := mqtt.Topics{}

	combined := make(map[string]combinedStats)

	for _, metric := range b.buffers.Metrics() {
		agg, ok := b.buffers.ComputeAndClear(metric, now)
		if !ok {
			continue
		}

		stats := combinedStats{
			Min:   b.round(agg.Min),
			Max:   b.round(agg.Max),
			Avg:   b.round(agg.Avg),
			Count: agg.Count,
		}
		combined[metric] = stats

		if !b.cfg.Aggregation.PublishIndividual {
			continue
		}

		b.publishStat(topics.AggregateStat(prefix, metric, mqtt.StatMin), stats.Min, qos)
		b.publishStat(topics.AggregateStat(prefix, metric, mqtt.StatMax), stats.Max, qos)
		b.publishStat(topics.AggregateStat(prefix, metric, mqtt.StatAvg), stats.Avg, qos)
		b.publishCount(topics.AggregateStat(prefix, metric, mqtt.StatCount), stats.Count, qos)
	}

	if len(combined) == 0 {
		b.log.Debug("aggregation window empty, nothing published")
		return
	}

	payload, err := json.Marshal(combined)
	if err != nil {
		b.log.Error("encoding combined aggregate document", "error", err)
		return
	}

	topic := topics.AggregateCombined(prefix)
	if err := b.dest.Publish(topic, payload, qos, false); err != nil {
		b.log.Warn("publishing combined aggregates failed", "topic", topic, "error", err)
	}

	b.log.Debug("published aggregates", "metrics", len(combined))
}

// publishStat sends one rounded statistic value.
func (b *Bridge) publishStat(topic string, value float64, qos byte) {
	if err := b.dest.Publish(topic, []byte(b.formatValue(value)), qos, false); err != nil {
		b.log.Warn("publishing aggregate failed", "topic", topic, "error", err)
	}
}

// publishCount sends one sample count.
func (b *Bridge) publishCount(topic string, count int, qos byte) {
	if err := b.dest.Publish(topic, []byte(strconv.Itoa(count)), qos, false); err != nil {
		b.log.Warn("publishing aggregate failed", "topic", topic, "error", err)
	}
}

// round applies the configured decimal precision.
func (b *Bridge) round(v float64) float64 {
	pow := math.Pow10(b.cfg.Aggregation.RoundDecimals)
	return math.Round(v*pow) / pow
}

// formatValue renders a float at the configured precision without
// trailing zero padding beyond it.
func (b *Bridge) formatValue(v float64) string {
	return strconv.FormatFloat(b.round(v), 'f', -1, 64)
}
