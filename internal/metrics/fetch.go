package metrics

import "github.com/prometheus/client_golang/prometheus"

// Fetch cycle Prometheus metrics.
var (
	BackendCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suggest",
			Name:      "backend_calls_total",
			Help:      "Batched backend calls by backend and status",
		},
		[]string{"backend", "status"},
	)

	BackendCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "suggest",
			Name:      "backend_call_duration_seconds",
			Help:      "Batched backend call duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"backend"},
	)

	BackendBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "suggest",
			Name:      "backend_batch_size",
			Help:      "Sub-queries carried by a single backend call",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16, 32},
		},
		[]string{"backend"},
	)

	DroppedResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suggest",
			Name:      "dropped_responses_total",
			Help:      "Backend responses that could not be attributed to a source",
		},
		[]string{"reason"}, // "tag" / "origin"
	)

	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "suggest",
			Name:      "cycles_total",
			Help:      "Completed fetch cycles by outcome",
		},
		[]string{"outcome"}, // "ok" / "error" / "stale" / "empty"
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "suggest",
			Name:      "cycle_duration_seconds",
			Help:      "Fetch cycle duration from input to published state",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	StalledCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "suggest",
			Name:      "stalled_cycles_total",
			Help:      "Fetch cycles that crossed the stall threshold",
		},
	)
)

var fetchMetricsRegistered bool

// RegisterFetchMetrics registers fetch cycle metrics. Must be called once from main.
func RegisterFetchMetrics() {
	if fetchMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackendCallsTotal)
	prometheus.MustRegister(BackendCallDuration)
	prometheus.MustRegister(BackendBatchSize)
	prometheus.MustRegister(DroppedResponsesTotal)
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(StalledCyclesTotal)
	fetchMetricsRegistered = true
}
