package metrics

import "github.com/prometheus/client_golang/prometheus"

// Eviction and rejection reasons.
const (
	ReasonSlow        = "slow"
	ReasonWriteFailed = "write_failed"
	ReasonGlobalLimit = "global_limit"
	ReasonPerIPLimit  = "per_ip_limit"
	ReasonRateLimit   = "rate_limit"
	ReasonOrigin      = "origin"
)

// WebSocketMetrics holds Prometheus metrics for the subscription broadcaster.
type WebSocketMetrics struct {
	ActiveSubscribers   prometheus.Gauge
	MessagesSent        prometheus.Counter
	BroadcastsTotal     prometheus.Counter
	Evictions           *prometheus.CounterVec
	Rejections          *prometheus.CounterVec
	BroadcastDuration   prometheus.Histogram
	CommandChannelDepth prometheus.Gauge
	StopTimeouts        prometheus.Counter
	Panics              prometheus.Counter
}

func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_subscribers",
			Help:      "Number of live vital-signs subscribers.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Total number of messages written to subscribers.",
		}),
		BroadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "broadcasts_total",
			Help:      "Total number of broadcast sweeps.",
		}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "evictions_total",
			Help:      "Subscribers removed by the broadcaster, by reason.",
		}, []string{"reason"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rejections_total",
			Help:      "Subscription attempts refused before upgrade, by reason.",
		}, []string{"reason"}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "broadcast_duration_seconds",
			Help:      "Time spent enqueuing one broadcast for every subscriber.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		CommandChannelDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "command_channel_depth",
			Help:      "Pending commands in the broadcaster queue.",
		}),
		StopTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "stop_timeouts_total",
			Help:      "Broadcaster shutdowns that exceeded the stop timeout.",
		}),
		Panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "broadcaster_panics_total",
			Help:      "Panics recovered in the broadcaster loop.",
		}),
	}

	reg.MustRegister(
		m.ActiveSubscribers, m.MessagesSent, m.BroadcastsTotal, m.Evictions, m.Rejections,
		m.BroadcastDuration, m.CommandChannelDepth, m.StopTimeouts, m.Panics,
	)
	return m
}
