// Package metrics exposes the process's Prometheus instrumentation:
// queue depth and task state, pipeline throughput, gateway request
// outcomes, and persister batch latency. Register these against a
// promhttp handler to serve /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Task queue metrics
var (
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "biasbench_queue_depth",
			Help: "Number of tasks currently in the queue by status",
		},
		[]string{"status"},
	)

	TasksRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "biasbench_tasks_running",
			Help: "Number of tasks currently executing (0 or 1, single in-flight worker)",
		},
	)

	TasksFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biasbench_tasks_finished_total",
			Help: "Total number of tasks that reached a terminal state, by task type and status",
		},
		[]string{"task_type", "status"},
	)

	TaskOrphansRecoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "biasbench_task_orphans_recovered_total",
			Help: "Total number of tasks reset from running to queued on executor startup",
		},
	)
)

// Benchmark run / pipeline metrics
var (
	RunsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "biasbench_runs_active",
			Help: "Number of benchmark runs currently in flight by status",
		},
		[]string{"status"},
	)

	ItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biasbench_items_processed_total",
			Help: "Total number of work items processed by outcome (success, retry, max_attempts_exceeded)",
		},
		[]string{"outcome"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "biasbench_batch_duration_seconds",
			Help:    "Duration of one whole pipeline run (first dispatch through final persist)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	RunsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biasbench_runs_finished_total",
			Help: "Total number of benchmark runs that reached a terminal status",
		},
		[]string{"status"},
	)
)

// Gateway (LLM client) metrics
var (
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "biasbench_gateway_request_duration_seconds",
			Help:    "Duration of gateway completion requests by outcome",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biasbench_gateway_requests_total",
			Help: "Total number of gateway completion requests by outcome",
		},
		[]string{"outcome"},
	)

	GatewayErrorKindTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biasbench_gateway_error_kind_total",
			Help: "Total number of gateway/pipeline failures by classified error kind",
		},
		[]string{"kind"},
	)
)

// Persister metrics
var (
	PersistBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "biasbench_persist_batch_duration_seconds",
			Help:    "Duration of one persister batch write (results + fail log)",
			Buckets: prometheus.DefBuckets,
		},
	)

	PersistRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biasbench_persist_rows_total",
			Help: "Total number of rows written by the persister, by table",
		},
		[]string{"table"},
	)
)

// RecordItemOutcome increments the per-item outcome counter.
func RecordItemOutcome(outcome string) {
	ItemsProcessedTotal.WithLabelValues(outcome).Inc()
}

// RecordBatchDuration observes one whole pipeline run's wall-clock duration,
// labeled by whether it completed normally or was cancelled.
func RecordBatchDuration(outcome string, d time.Duration) {
	BatchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordGatewayRequest records a gateway call's duration, outcome, and
// (if it failed) the classified error kind.
func RecordGatewayRequest(outcome string, d time.Duration, errKind string) {
	GatewayRequestDuration.WithLabelValues(outcome).Observe(d.Seconds())
	GatewayRequestsTotal.WithLabelValues(outcome).Inc()
	if errKind != "" {
		GatewayErrorKindTotal.WithLabelValues(errKind).Inc()
	}
}

// RecordPersistBatch records one persister flush: its duration and how
// many rows landed in each table.
func RecordPersistBatch(d time.Duration, resultRows, failRows int) {
	PersistBatchDuration.Observe(d.Seconds())
	if resultRows > 0 {
		PersistRowsTotal.WithLabelValues("benchmark_results").Add(float64(resultRows))
	}
	if failRows > 0 {
		PersistRowsTotal.WithLabelValues("fail_log").Add(float64(failRows))
	}
}

// SetQueueDepth sets the queue depth gauge for one status bucket.
func SetQueueDepth(status string, n int) {
	QueueDepth.WithLabelValues(status).Set(float64(n))
}

// SetRunStatus updates the active-runs gauge when a run moves from one
// status to another. oldStatus may be empty for a brand new run.
func SetRunStatus(oldStatus, newStatus string) {
	if oldStatus != "" {
		RunsActive.WithLabelValues(oldStatus).Dec()
	}
	if newStatus != "" {
		RunsActive.WithLabelValues(newStatus).Inc()
	}
}

// RecordRunFinished increments the terminal-run counter for a run's final
// status (done, partial, failed, cancelled).
func RecordRunFinished(status string) {
	RunsFinishedTotal.WithLabelValues(status).Inc()
}

// RecordTaskFinished increments the terminal-task counter for a task type
// and its final status.
func RecordTaskFinished(taskType, status string) {
	TasksFinishedTotal.WithLabelValues(taskType, status).Inc()
}
