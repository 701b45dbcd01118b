package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the queue's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	length    prometheus.Gauge
	actions   *prometheus.CounterVec
	execution prometheus.Histogram
}

// Outcome labels for the actions counter.
const (
	outcomeQueued    = "queued"
	outcomeDuplicate = "duplicate"
	outcomeDone      = "done"
	outcomeFailed    = "failed"
	outcomeRemoved   = "removed"
	outcomeDiscarded = "discarded"
)

// NewMetrics creates the queue collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		length: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "klingwallet",
			Subsystem: "queue",
			Name:      "length",
			Help:      "Number of actions tracked by the queue.",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klingwallet",
			Subsystem: "queue",
			Name:      "actions_total",
			Help:      "Queue action events by action type and outcome.",
		}, []string{"type", "outcome"}),
		execution: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "klingwallet",
			Subsystem: "queue",
			Name:      "execution_seconds",
			Help:      "Time spent executing a single action.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.length, m.actions, m.execution)
	}
	return m
}

func (m *Metrics) setLength(n int) {
	if m == nil {
		return
	}
	m.length.Set(float64(n))
}

func (m *Metrics) count(meta Meta, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(string(meta.Type), outcome).Inc()
}

func (m *Metrics) observe(seconds float64) {
	if m == nil {
		return
	}
	m.execution.Observe(seconds)
}
