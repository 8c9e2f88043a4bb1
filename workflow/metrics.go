package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus metrics for workflow execution monitoring.
//
// Metrics exposed (all namespaced with "maestro_"):
//
//   - active_workflows (gauge): workflows currently PENDING, RUNNING, or
//     AWAITING_CHECKPOINT.
//   - pending_checkpoints (gauge): checkpoints awaiting human resolution.
//   - status_transitions_total (counter): status changes, labeled from/to.
//   - checkpoint_resolutions_total (counter): resolutions, labeled by
//     resulting status (approved/rejected/edited).
//   - worker_latency_ms (histogram): agent call duration, labeled by worker
//     kind and outcome.
//   - worker_failures_total (counter): failed agent calls, labeled by
//     worker kind.
//
// A nil *Metrics is valid and records nothing, so callers never need nil
// checks at call sites.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := workflow.NewMetrics(registry)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type Metrics struct {
	activeWorkflows    prometheus.Gauge
	pendingCheckpoints prometheus.Gauge
	transitions        *prometheus.CounterVec
	resolutions        *prometheus.CounterVec
	workerLatency      *prometheus.HistogramVec
	workerFailures     *prometheus.CounterVec
}

// NewMetrics creates and registers all workflow metrics with the given
// registry. A nil registry uses the default global registerer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		activeWorkflows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "maestro",
			Name:      "active_workflows",
			Help:      "Number of workflows in a non-terminal status.",
		}),
		pendingCheckpoints: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "maestro",
			Name:      "pending_checkpoints",
			Help:      "Number of checkpoints awaiting human resolution.",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maestro",
			Name:      "status_transitions_total",
			Help:      "Workflow status transitions.",
		}, []string{"from", "to"}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maestro",
			Name:      "checkpoint_resolutions_total",
			Help:      "Checkpoint resolutions by resulting status.",
		}, []string{"status"}),
		workerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "maestro",
			Name:      "worker_latency_ms",
			Help:      "Agent call duration in milliseconds.",
			Buckets:   []float64{100, 500, 1000, 5000, 10000, 30000, 60000, 300000},
		}, []string{"kind", "outcome"}),
		workerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maestro",
			Name:      "worker_failures_total",
			Help:      "Failed agent calls.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) workflowStarted() {
	if m == nil {
		return
	}
	m.activeWorkflows.Inc()
}

func (m *Metrics) workflowFinished() {
	if m == nil {
		return
	}
	m.activeWorkflows.Dec()
}

func (m *Metrics) checkpointCreated() {
	if m == nil {
		return
	}
	m.pendingCheckpoints.Inc()
}

func (m *Metrics) checkpointResolved(status string) {
	if m == nil {
		return
	}
	m.pendingCheckpoints.Dec()
	m.resolutions.WithLabelValues(status).Inc()
}

func (m *Metrics) transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) workerCall(kind string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.workerFailures.WithLabelValues(kind).Inc()
	}
	m.workerLatency.WithLabelValues(kind, outcome).Observe(float64(elapsed.Milliseconds()))
}
