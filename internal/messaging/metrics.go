package messaging

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts routed messages. A nil *Metrics records nothing.
type Metrics struct {
	messages *prometheus.CounterVec
}

// NewMetrics creates the router collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klingwallet",
			Subsystem: "router",
			Name:      "messages_total",
			Help:      "Inbound messages by type and handling result.",
		}, []string{"type", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.messages)
	}
	return m
}

func (m *Metrics) count(t Type, result string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(string(t), result).Inc()
}
