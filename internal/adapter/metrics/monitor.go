package metrics

import "github.com/prometheus/client_golang/prometheus"

// MonitorMetrics covers the simulation tick, alerts and persistence.
type MonitorMetrics struct {
	TicksTotal         prometheus.Counter
	TickDuration       prometheus.Histogram
	Simulations        *prometheus.CounterVec
	AlertsRaised       *prometheus.CounterVec
	AlertsAcknowledged prometheus.Counter
	Persistence        *prometheus.CounterVec
	BedsMonitored      prometheus.Gauge
}

func NewMonitorMetrics(reg prometheus.Registerer) *MonitorMetrics {
	m := &MonitorMetrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Total number of scheduler ticks processed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one simulate-and-broadcast tick.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		Simulations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "simulations_total",
			Help:      "Simulation steps, by trigger.",
		}, []string{"trigger"}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "alerts_raised_total",
			Help:      "Alerts raised, by alert type.",
		}, []string{"type"}),
		AlertsAcknowledged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "alerts_acknowledged_total",
			Help:      "Successful alert acknowledgements.",
		}),
		Persistence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "persist_total",
			Help:      "Snapshot writes, by result.",
		}, []string{"result"}),
		BedsMonitored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "beds",
			Help:      "Number of beds currently monitored.",
		}),
	}

	reg.MustRegister(
		m.TicksTotal, m.TickDuration, m.Simulations, m.AlertsRaised,
		m.AlertsAcknowledged, m.Persistence, m.BedsMonitored,
	)
	return m
}
