package router

// Kind is the dispatch target for an inbound message. The bridge matches
// it exhaustively; each kind receives different handling.
type Kind int

const (
	// KindMetric is an ordinary telemetry metric: buffered for aggregation.
	KindMetric Kind = iota

	// KindLoad is the load metric: buffered AND fed to the load modifier.
	KindLoad

	// KindHouseSoC is the house battery SoC metric: buffered AND written
	// to the battery state store.
	KindHouseSoC

	// KindEVSoC is the EV battery SoC control topic: written to the
	// battery state store only, never buffered.
	KindEVSoC
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindLoad:
		return "load"
	case KindHouseSoC:
		return "house_soc"
	case KindEVSoC:
		return "ev_soc"
	default:
		return "metric"
	}
}

// Route is the resolved dispatch descriptor for an inbound topic.
type Route struct {
	// Metric is the configured metric name (e.g. "power").
	Metric string

	// Kind selects the handling path.
	Kind Kind
}

// Router maps inbound topic strings to dispatch descriptors.
//
// Lookup is exact-match against the topic table built at startup.
// Unrecognised topics are not an error: a shared broker carries unrelated
// traffic, and the bridge silently ignores it.
type Router struct {
	routes map[string]Route
}

// New builds a Router from the configured topic table.
//
// Parameters:
//   - sourceTopics: metric name → broker topic
//   - loadMetric: metric name treated as the load signal
//   - houseSoCMetric: metric name treated as house battery SoC
//   - evSoCMetric: metric name treated as EV battery SoC
//
// A control metric name absent from the table simply produces no route
// for its kind; validation of required names happens at config load.
func New(sourceTopics map[string]string, loadMetric, houseSoCMetric, evSoCMetric string) *Router {
	routes := make(map[string]Route, len(sourceTopics))
	for metric, topic := range sourceTopics {
		if topic == "" {
			continue
		}
		kind := KindMetric
		switch metric {
		case loadMetric:
			kind = KindLoad
		case houseSoCMetric:
			kind = KindHouseSoC
		case evSoCMetric:
			kind = KindEVSoC
		}
		routes[topic] = Route{Metric: metric, Kind: kind}
	}
	return &Router{routes: routes}
}

// Route resolves an inbound topic.
//
// Returns:
//   - Route: Dispatch descriptor
//   - bool: false when the topic is not in the table (caller drops the
//     message silently)
func (r *Router) Route(topic string) (Route, bool) {
	route, ok := r.routes[topic]
	return route, ok
}

// Topics returns every topic the router recognises. The bridge subscribes
// to exactly this set.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.routes))
	for t := range r.routes {
		topics = append(topics, t)
	}
	return topics
}

// BufferedMetrics returns the metric names that participate in
// aggregation: everything except the EV SoC control metric.
func (r *Router) BufferedMetrics() []string {
	metrics := make([]string, 0, len(r.routes))
	for _, route := range r.routes {
		if route.Kind == KindEVSoC {
			continue
		}
		metrics = append(metrics, route.Metric)
	}
	return metrics
}
