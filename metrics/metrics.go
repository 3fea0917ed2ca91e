// Package metrics defines the instrumentation surface for payment
// operations. NoopRecorder is the default; NewPrometheusRecorder wires the
// counters into the default prometheus registry.
package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
