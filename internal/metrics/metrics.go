package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsDispatched counts jobs pushed onto a queue
	JobsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_jobs_dispatched_total",
			Help: "Jobs dispatched by queue",
		},
		[]string{"queue"},
	)

	// QueueDepth tracks buffered messages per queue
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "overseer_queue_depth",
			Help: "Messages waiting in each queue buffer",
		},
		[]string{"queue"},
	)

	// JobsRunning tracks in-flight executions per queue
	JobsRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "overseer_jobs_running",
			Help: "Jobs currently executing by queue",
		},
		[]string{"queue"},
	)

	// JobsFinished counts terminal job transitions
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_jobs_finished_total",
			Help: "Jobs reaching a terminal status by job type and status",
		},
		[]string{"job_type", "status"},
	)

	// JobDuration tracks execution time per job type
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "overseer_job_duration_seconds",
			Help:    "Job execution time in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"job_type"},
	)

	// ClaimRefusals counts dequeued jobs that could not start
	ClaimRefusals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_job_claim_refusals_total",
			Help: "Dequeued jobs refused at claim time by reason",
		},
		[]string{"reason"},
	)

	// TriggerDecisions counts scheduler fire decisions
	TriggerDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_trigger_decisions_total",
			Help: "Trigger fire decisions by trigger and outcome",
		},
		[]string{"trigger_id", "decision"},
	)

	// ComponentStatus is the latest severity per component (0 healthy .. 3 failed)
	ComponentStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "overseer_component_status",
			Help: "Latest health severity per component (0=healthy, 1=warning, 2=critical, 3=failed)",
		},
		[]string{"component"},
	)

	// HealingOutcomes counts components leaving the healing loop
	HealingOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_healing_outcomes_total",
			Help: "Healing results per component (resolved or unresolved)",
		},
		[]string{"component", "outcome"},
	)

	// RetryResults counts retry sweep outcomes
	RetryResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_retry_results_total",
			Help: "Failed jobs examined by the retry sweep by outcome",
		},
		[]string{"outcome"},
	)

	// RecordsPurged counts records removed by retention cleanup
	RecordsPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_records_purged_total",
			Help: "Records deleted by retention cleanup by kind",
		},
		[]string{"kind"},
	)

	// SystemUsage tracks host utilization samples
	SystemUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "overseer_system_usage_percent",
			Help: "Host utilization percent by resource",
		},
		[]string{"resource"},
	)

	// HTTPRequests counts API requests by route, method and status code
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "code"},
	)

	// HTTPDuration tracks API latency per route
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "overseer_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// SoftLimitWarnings counts jobs that ran past the soft time limit
	SoftLimitWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_job_soft_limit_warnings_total",
			Help: "Jobs that exceeded the soft time limit by job type",
		},
		[]string{"job_type"},
	)

	// WorkflowSuccessRate is the success percentage per job type over the last review window
	WorkflowSuccessRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "overseer_workflow_success_rate_percent",
			Help: "Workflow success rate over the performance review window",
		},
		[]string{"job_type"},
	)

	// WorkflowAvgDuration is the mean completed run time per job type over the last review window
	WorkflowAvgDuration = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "overseer_workflow_avg_duration_seconds",
			Help: "Average completed run duration over the performance review window",
		},
		[]string{"job_type"},
	)

	// PerformanceAlerts counts workflow performance alerts by rule
	PerformanceAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "overseer_workflow_performance_alerts_total",
			Help: "Workflow performance alerts raised by rule",
		},
		[]string{"type"},
	)

	// StaleJobs counts running jobs failed by the stale job sweep
	StaleJobs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "overseer_stale_jobs_total",
			Help: "Running jobs marked failed after outliving the hard time limit",
		},
	)
)
