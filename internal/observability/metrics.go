package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce                sync.Once
	httpRequestsTotal           *prometheus.CounterVec
	httpLatencySeconds          *prometheus.HistogramVec
	httpErrorsTotal             *prometheus.CounterVec
	auditEntriesTotal           *prometheus.CounterVec
	workflowInstancesStarted    *prometheus.CounterVec
	workflowInstancesCompleted  *prometheus.CounterVec
	scheduledTaskRunsTotal      *prometheus.CounterVec
	scheduledTaskDurationSecond *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors for the API and the
// compliance engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "isms_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "isms_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "isms_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		auditEntriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "isms_audit_entries_total",
			Help: "Total number of audit trail entries recorded per entity kind and action.",
		}, []string{"entity_type", "action"})

		workflowInstancesStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "isms_workflow_instances_started_total",
			Help: "Total number of workflow instances started per entity kind and workflow.",
		}, []string{"entity_type", "workflow"})

		workflowInstancesCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "isms_workflow_instances_completed_total",
			Help: "Total number of workflow instances reaching a terminal state.",
		}, []string{"entity_type", "status"})

		scheduledTaskRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "isms_scheduled_task_runs_total",
			Help: "Total number of scheduled compliance task executions per task and outcome.",
		}, []string{"task", "outcome"})

		scheduledTaskDurationSecond = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "isms_scheduled_task_duration_seconds",
			Help:    "Duration distribution of scheduled compliance task executions.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}, []string{"task"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			auditEntriesTotal,
			workflowInstancesStarted,
			workflowInstancesCompleted,
			scheduledTaskRunsTotal,
			scheduledTaskDurationSecond,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// AuditEntries exposes the counter for recorded audit trail entries.
func AuditEntries() *prometheus.CounterVec {
	RegisterMetrics()
	return auditEntriesTotal
}

// WorkflowInstancesStarted exposes the counter for started workflow instances.
func WorkflowInstancesStarted() *prometheus.CounterVec {
	RegisterMetrics()
	return workflowInstancesStarted
}

// WorkflowInstancesCompleted exposes the counter for completed workflow instances.
func WorkflowInstancesCompleted() *prometheus.CounterVec {
	RegisterMetrics()
	return workflowInstancesCompleted
}

// ScheduledTaskRuns exposes the counter for scheduled task executions.
func ScheduledTaskRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return scheduledTaskRunsTotal
}

// ScheduledTaskDuration exposes the duration histogram for scheduled tasks.
func ScheduledTaskDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return scheduledTaskDurationSecond
}
