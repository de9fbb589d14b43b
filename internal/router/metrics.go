package router

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts router requests by outcome.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

// NewMetrics registers the router collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keycore",
			Subsystem: "router",
			Name:      "requests_total",
			Help:      "Requests handled, by network, operation and result code.",
		}, []string{"network", "type", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keycore",
			Subsystem: "router",
			Name:      "request_duration_seconds",
			Help:      "Request latency, by operation.",
			Buckets:   []float64{.001, .005, .025, .1, .5, 1, 5, 15, 45},
		}, []string{"type"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "keycore",
			Subsystem: "router",
			Name:      "requests_in_flight",
			Help:      "Requests currently being handled.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.inflight)
	return m
}

func (m *Metrics) begin() func(network string, op OpType, code string) {
	if m == nil {
		return func(string, OpType, string) {}
	}
	start := time.Now()
	m.inflight.Inc()
	return func(network string, op OpType, code string) {
		m.inflight.Dec()
		if code == "" {
			code = "OK"
		}
		m.requests.WithLabelValues(network, string(op), code).Inc()
		m.duration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	}
}
