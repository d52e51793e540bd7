package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Skip reasons recorded for events that were not committed.
const (
	ReasonTopic     = "topic"
	ReasonMalformed = "malformed"
	ReasonStore     = "store"
)

// Metrics holds the collectors for the sync and display pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	eventsCommitted prometheus.Counter
	eventsSkipped   *prometheus.CounterVec
	batchesDropped  prometheus.Counter
	queueDepth      prometheus.Gauge
	redraws         *prometheus.CounterVec
	renderFailures  prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weatherface",
			Subsystem: "sync",
			Name:      "events_committed_total",
			Help:      "Weather events committed to the persisted store.",
		}),
		eventsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weatherface",
			Subsystem: "sync",
			Name:      "events_skipped_total",
			Help:      "Events that were not committed, by reason.",
		}, []string{"reason"}),
		batchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weatherface",
			Subsystem: "sync",
			Name:      "batches_dropped_total",
			Help:      "Batches dropped because no connection could be acquired.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "weatherface",
			Subsystem: "sync",
			Name:      "queue_depth",
			Help:      "Batches waiting in the inbound queue.",
		}),
		redraws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weatherface",
			Subsystem: "display",
			Name:      "redraws_total",
			Help:      "Redraw requests, by trigger.",
		}, []string{"trigger"}),
		renderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "weatherface",
			Subsystem: "display",
			Name:      "render_failures_total",
			Help:      "Render calls that returned an error.",
		}),
	}

	reg.MustRegister(
		m.eventsCommitted,
		m.eventsSkipped,
		m.batchesDropped,
		m.queueDepth,
		m.redraws,
		m.renderFailures,
	)
	return m
}

func (m *Metrics) EventCommitted() {
	if m == nil {
		return
	}
	m.eventsCommitted.Inc()
}

func (m *Metrics) EventSkipped(reason string) {
	if m == nil {
		return
	}
	m.eventsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) BatchDropped() {
	if m == nil {
		return
	}
	m.batchesDropped.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) Redraw(trigger string) {
	if m == nil {
		return
	}
	m.redraws.WithLabelValues(trigger).Inc()
}

func (m *Metrics) RenderFailed() {
	if m == nil {
		return
	}
	m.renderFailures.Inc()
}
