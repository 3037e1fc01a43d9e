// Package metrics exposes Prometheus instruments for orchestrated operations
// and backend calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "restgate"
	subsystem = "core"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operations_total",
			Help:      "Orchestrated operations by backend kind, operation, and outcome",
		},
		[]string{"backend", "operation", "outcome"},
	)

	itemFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "item_failures_total",
			Help:      "Bulk items recorded in multistatus, by backend kind and error category",
		},
		[]string{"backend", "category"},
	)

	backendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backend_call_duration_seconds",
			Help:      "Latency of individual backend calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "call"},
	)
)

// Outcomes recorded by RecordOperation.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// RecordOperation counts one orchestrated operation.
func RecordOperation(backend, operation, outcome string) {
	operationsTotal.WithLabelValues(backend, operation, outcome).Inc()
}

// RecordItemFailure counts one multistatus row.
func RecordItemFailure(backend, category string) {
	itemFailuresTotal.WithLabelValues(backend, category).Inc()
}

// ObserveBackendCall records the latency of one backend call.
func ObserveBackendCall(backend, call string, d time.Duration) {
	backendCallDuration.WithLabelValues(backend, call).Observe(d.Seconds())
}

// Timer measures a backend call. Use as
//
//	defer metrics.StartTimer(kind, "find").Stop()
type Timer struct {
	backend string
	call    string
	start   time.Time
}

// StartTimer starts timing a backend call.
func StartTimer(backend, call string) Timer {
	return Timer{backend: backend, call: call, start: time.Now()}
}

// Stop records the elapsed time.
func (t Timer) Stop() {
	ObserveBackendCall(t.backend, t.call, time.Since(t.start))
}
