package metrics

import "github.com/prometheus/client_golang/prometheus"

// AlertSinkMetrics tracks delivery of raised alerts to external sinks.
type AlertSinkMetrics struct {
	Deliveries   *prometheus.CounterVec
	BreakerState *prometheus.GaugeVec
}

func NewAlertSinkMetrics(reg prometheus.Registerer) *AlertSinkMetrics {
	m := &AlertSinkMetrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert_sink",
			Name:      "deliveries_total",
			Help:      "Alert batches handed to a sink, by sink and result.",
		}, []string{"sink", "result"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alert_sink",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per sink (0=closed, 1=half-open, 2=open).",
		}, []string{"sink"}),
	}

	reg.MustRegister(m.Deliveries, m.BreakerState)
	return m
}
