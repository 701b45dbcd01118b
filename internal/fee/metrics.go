package fee

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts fee estimates. A nil *Metrics records nothing.
type Metrics struct {
	estimates *prometheus.CounterVec
}

// NewMetrics creates the estimator collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		estimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klingwallet",
			Subsystem: "fee",
			Name:      "estimates_total",
			Help:      "Fee estimates by path (deploy, invoke) and result.",
		}, []string{"path", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.estimates)
	}
	return m
}

func (m *Metrics) count(path, result string) {
	if m == nil {
		return
	}
	m.estimates.WithLabelValues(path, result).Inc()
}
