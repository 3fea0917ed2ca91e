package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports payment events and operation latencies under
// the x402 namespace. Events are keyed by event type and network, latencies
// by operation and network.
type PrometheusRecorder struct {
	events  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewPrometheusRecorder builds a recorder and registers its collectors with
// the default registry. Call it at most once per process; a second call
// panics on duplicate registration.
func NewPrometheusRecorder() Recorder {
	r := &PrometheusRecorder{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "x402",
			Name:      "events_total",
			Help:      "Payment events by type and network.",
		}, []string{"type", "network"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "x402",
			Name:      "latency_seconds",
			Help:      "Payment operation latency by operation and network.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "network"}),
	}
	prometheus.MustRegister(r.events, r.latency)
	return r
}

// IncCounter implements Recorder. Only the network label is read from
// labels; other keys are ignored.
func (r *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	r.events.WithLabelValues(name, labels["network"]).Inc()
}

// ObserveLatency implements Recorder.
func (r *PrometheusRecorder) ObserveLatency(name string, duration time.Duration, labels map[string]string) {
	r.latency.WithLabelValues(name, labels["network"]).Observe(duration.Seconds())
}
