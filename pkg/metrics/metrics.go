// Package metrics provides Prometheus-based metrics recording for workflow
// execution. All Recorder methods are nil-safe so callers never guard.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records workflow execution metrics.
type Recorder struct {
	workflowsTotal     *prometheus.CounterVec
	iterationsTotal    prometheus.Counter
	invocationsTotal   *prometheus.CounterVec
	validationRetries  *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	workflowDuration   *prometheus.HistogramVec
}

// NewRecorder creates a Recorder registered on the default registry.
func NewRecorder() *Recorder {
	return &Recorder{
		workflowsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devteam_workflows_total",
				Help: "Total number of workflows by terminal status",
			},
			[]string{"status", "failure_reason"},
		),
		iterationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "devteam_iterations_total",
				Help: "Total number of routing iterations across all workflows",
			},
		),
		invocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devteam_invocations_total",
				Help: "Total number of specialist invocations by role and status",
			},
			[]string{"role", "status"},
		),
		validationRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devteam_validation_retries_total",
				Help: "Total number of structured output validation retries by role",
			},
			[]string{"role"},
		),
		invocationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devteam_invocation_duration_seconds",
				Help:    "Duration of specialist invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"role"},
		),
		workflowDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devteam_workflow_duration_seconds",
				Help:    "End to end workflow duration in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
	}
}

// ObserveWorkflow records a workflow reaching a terminal status.
func (r *Recorder) ObserveWorkflow(status, failureReason string, duration time.Duration) {
	if r == nil {
		return
	}
	r.workflowsTotal.WithLabelValues(status, failureReason).Inc()
	r.workflowDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveIteration records one routing loop pass.
func (r *Recorder) ObserveIteration() {
	if r == nil {
		return
	}
	r.iterationsTotal.Inc()
}

// ObserveInvocation records a specialist invocation outcome.
func (r *Recorder) ObserveInvocation(role string, success bool, duration time.Duration) {
	if r == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	r.invocationsTotal.WithLabelValues(role, status).Inc()
	r.invocationDuration.WithLabelValues(role).Observe(duration.Seconds())
}

// ObserveValidationRetry records one structured output re-prompt.
func (r *Recorder) ObserveValidationRetry(role string) {
	if r == nil {
		return
	}
	r.validationRetries.WithLabelValues(role).Inc()
}
