package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outbox dispatch results.
const (
	DispatchPublished = "published"
	DispatchRetry     = "retry"
	DispatchDLQ       = "dlq"
)

// OutboxMetrics counts outbox rows by dispatch result and event type.
type OutboxMetrics struct {
	dispatched *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	dispatched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_dispatched_total",
		Help:      "Outbox rows handled by the publisher.",
	}, []string{"event_type", "result"})
	reg.MustRegister(dispatched)
	return &OutboxMetrics{dispatched: dispatched}
}

// IncDispatched records one handled row.
func (m *OutboxMetrics) IncDispatched(eventType, result string) {
	if m == nil || m.dispatched == nil {
		return
	}
	m.dispatched.WithLabelValues(normalizeLabel(eventType), result).Inc()
}
