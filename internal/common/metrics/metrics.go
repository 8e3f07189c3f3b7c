// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkflowRunsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_runs_started_total",
			Help: "Total number of workflow runs started",
		},
		[]string{"path"},
	)

	WorkflowRunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_runs_completed_total",
			Help: "Total number of workflow runs finished, by outcome",
		},
		[]string{"path", "outcome"},
	)

	WorkflowStepFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_step_failures_total",
			Help: "Total number of step failures, by step and error code",
		},
		[]string{"step", "error_code"},
	)

	WorkflowStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workflow_step_duration_seconds",
			Help:    "Duration of individual workflow steps in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"step"},
	)

	WorkflowRunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "workflow_runs_active",
			Help: "Number of workflow runs currently in flight",
		},
	)

	StatusWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "status_write_failures_total",
			Help: "Total number of best-effort status snapshot writes that failed",
		},
	)
)
