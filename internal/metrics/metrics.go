package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Orchestration metrics
	OrchestrationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openfleet_orchestrations_started_total",
			Help: "Total number of orchestration runs started",
		},
	)

	OrchestrationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfleet_orchestrations_completed_total",
			Help: "Total number of orchestration runs completed",
		},
		[]string{"status"},
	)

	OrchestrationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "openfleet_orchestration_duration_seconds",
			Help:    "End-to-end orchestration duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Subtask metrics
	SubtaskExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfleet_subtask_executions_total",
			Help: "Total number of subtask executions",
		},
		[]string{"status"},
	)

	SubtaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "openfleet_subtask_duration_ms",
			Help:    "Subtask execution duration in milliseconds",
			Buckets: []float64{100, 500, 1000, 2000, 5000, 10000, 30000},
		},
	)

	SchedulerWaves = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "openfleet_scheduler_waves",
			Help:    "Number of waves needed to drain a subtask graph",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)

	SchedulingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfleet_scheduling_failures_total",
			Help: "Total number of fatal scheduling failures",
		},
		[]string{"kind"},
	)

	// Analysis metrics
	AnalysisFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openfleet_analysis_fallbacks_total",
			Help: "Total number of task analyses that fell back to defaults",
		},
	)

	DecompositionFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openfleet_decomposition_fallbacks_total",
			Help: "Total number of decompositions that fell back to a single subtask",
		},
	)

	DecompositionSubtasks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "openfleet_decomposition_subtasks",
			Help:    "Number of subtasks produced per decomposition",
			Buckets: []float64{1, 2, 3, 5, 8, 13},
		},
	)

	// Selection metrics
	SelectionMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openfleet_selection_misses_total",
			Help: "Total number of subtasks no worker could be selected for",
		},
	)

	// Worker invocation metrics
	WorkerInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfleet_worker_invocations_total",
			Help: "Total number of worker invocations",
		},
		[]string{"stage", "status"},
	)

	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openfleet_sessions_created_total",
			Help: "Total number of orchestration sessions created",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "openfleet_sessions_active",
			Help: "Number of sessions currently preparing or executing",
		},
	)
)

// RecordOrchestration records metrics for a completed orchestration run
func RecordOrchestration(status string, durationSeconds float64) {
	OrchestrationsCompleted.WithLabelValues(status).Inc()
	OrchestrationDuration.Observe(durationSeconds)
}

// RecordSubtask records metrics for a settled subtask
func RecordSubtask(status string, durationMs float64) {
	SubtaskExecutions.WithLabelValues(status).Inc()
	SubtaskDuration.Observe(durationMs)
}

// RecordInvocation records a worker invocation by pipeline stage
func RecordInvocation(stage string, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	WorkerInvocations.WithLabelValues(stage, status).Inc()
}
