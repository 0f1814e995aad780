package flow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics collection for
// workflow execution monitoring.
//
// Metrics exposed (all namespaced with "agentflow_"):
//
//  1. primitives_total (counter): primitives executed, labelled by type and
//     status (success/error).
//  2. primitive_latency_ms (histogram): primitive execution duration in
//     milliseconds, labelled by type.
//  3. cognition_retries_total (counter): cognition schema-retry attempts.
//  4. iterations_total (counter): iterate loop bodies executed.
//  5. active_runs (gauge): workflow runs currently executing.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewPrometheusMetrics(registry)
//	exec := flow.NewExecutor(wf, flow.WithMetrics(metrics))
//
//	// Expose via HTTP for scraping:
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type PrometheusMetrics struct {
	primitivesTotal  *prometheus.CounterVec
	primitiveLatency *prometheus.HistogramVec
	cognitionRetries prometheus.Counter
	iterations       prometheus.Counter
	activeRuns       prometheus.Gauge
}

// NewPrometheusMetrics registers the engine's metrics with the given
// registerer. Pass prometheus.DefaultRegisterer for the global registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		primitivesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentflow_primitives_total",
			Help: "Primitives executed, by type and status.",
		}, []string{"type", "status"}),
		primitiveLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentflow_primitive_latency_ms",
			Help:    "Primitive execution duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"type"}),
		cognitionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentflow_cognition_retries_total",
			Help: "Cognition retry attempts triggered by schema or parse failures.",
		}),
		iterations: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentflow_iterations_total",
			Help: "Iterate loop bodies executed.",
		}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agentflow_active_runs",
			Help: "Workflow runs currently executing.",
		}),
	}
}

// observePrimitive records one primitive execution.
func (m *PrometheusMetrics) observePrimitive(primitiveType string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.primitivesTotal.WithLabelValues(primitiveType, status).Inc()
	m.primitiveLatency.WithLabelValues(primitiveType).Observe(float64(elapsed.Milliseconds()))
}

// observeCognitionRetry records one cognition retry attempt.
func (m *PrometheusMetrics) observeCognitionRetry() {
	m.cognitionRetries.Inc()
}

// observeIteration records one iterate body execution.
func (m *PrometheusMetrics) observeIteration() {
	m.iterations.Inc()
}

// runStarted marks a run as active.
func (m *PrometheusMetrics) runStarted() {
	m.activeRuns.Inc()
}

// runFinished marks a run as complete.
func (m *PrometheusMetrics) runFinished() {
	m.activeRuns.Dec()
}
