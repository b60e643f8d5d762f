package models

import (
	"time"
)

// StatsPeriod names a standard reporting window
type StatsPeriod string

const (
	PeriodLastHour  StatsPeriod = "last_hour"
	PeriodLast24h   StatsPeriod = "last_24h"
	PeriodLastWeek  StatsPeriod = "last_week"
	PeriodLastMonth StatsPeriod = "last_month"
)

// AllPeriods lists the standard periods, shortest first
var AllPeriods = []StatsPeriod{PeriodLastHour, PeriodLast24h, PeriodLastWeek, PeriodLastMonth}

// Duration returns the window length for the period, false if unknown
func (p StatsPeriod) Duration() (time.Duration, bool) {
	switch p {
	case PeriodLastHour:
		return time.Hour, true
	case PeriodLast24h:
		return 24 * time.Hour, true
	case PeriodLastWeek:
		return 7 * 24 * time.Hour, true
	case PeriodLastMonth:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Statistics aggregates job outcomes created within a period
type Statistics struct {
	Period       StatsPeriod `json:"period"`
	Since        time.Time   `json:"since"`
	TotalJobs    int         `json:"total_jobs"`
	SuccessCount int         `json:"success_count"`
	FailureCount int         `json:"failure_count"`
	RunningCount int         `json:"running_count"`
	TotalResults int         `json:"total_results"`
	SuccessRate  float64     `json:"success_rate"` // Percent of finished jobs that completed
}

// WorkflowStatus summarises one job type across its history
type WorkflowStatus struct {
	JobType      string     `json:"job_type"`
	Queue        QueueName  `json:"queue"`
	TriggerID    string     `json:"trigger_id,omitempty"`
	Schedule     string     `json:"schedule,omitempty"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastStatus   JobStatus  `json:"last_status,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
	TotalRuns    int        `json:"total_runs"`
	SuccessRate  float64    `json:"success_rate"`
	TotalResults int        `json:"total_results"`

	// Recent window figures from the performance review
	Recent *WorkflowPerformance `json:"recent,omitempty"`
	Alerts []PerformanceAlert   `json:"alerts,omitempty"`
}

// PerformanceAlertType names a workflow performance rule
type PerformanceAlertType string

const (
	AlertLowSuccessRate  PerformanceAlertType = "low_success_rate"
	AlertSlowPerformance PerformanceAlertType = "slow_performance"
)

// PerformanceAlert is one workflow breaking a performance threshold
type PerformanceAlert struct {
	Type      PerformanceAlertType `json:"type"`
	JobType   string               `json:"job_type"`
	Value     float64              `json:"value"`
	Threshold float64              `json:"threshold"`
	Severity  string               `json:"severity"`
}

// WorkflowPerformance is one job type's figures over a review window
type WorkflowPerformance struct {
	JobType            string  `json:"job_type"`
	TotalRuns          int     `json:"total_runs"`
	SuccessfulRuns     int     `json:"successful_runs"`
	FailedRuns         int     `json:"failed_runs"`
	TotalResults       int     `json:"total_results"`
	SuccessRate        float64 `json:"success_rate"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// PerformanceReport is the outcome of one workflow performance review
type PerformanceReport struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Since       time.Time             `json:"since"`
	TotalJobs   int                   `json:"total_jobs"`
	Workflows   []WorkflowPerformance `json:"workflows"`
	Alerts      []PerformanceAlert    `json:"alerts"`
}

// RetryReport is the outcome of one retry sweep
type RetryReport struct {
	Window    time.Duration `json:"window"`
	Scanned   int           `json:"scanned"`
	Retried   []string      `json:"retried"`
	Exhausted int           `json:"exhausted"`
	Skipped   int           `json:"skipped"`
	Errors    []string      `json:"errors,omitempty"`
}

// PurgeReport is the outcome of one cleanup run
type PurgeReport struct {
	Cutoff                 time.Time `json:"cutoff"`
	JobsDeleted            int       `json:"jobs_deleted"`
	HealthChecksDeleted    int       `json:"health_checks_deleted"`
	HealingAttemptsDeleted int       `json:"healing_attempts_deleted"`
}

// Total returns the number of records removed
func (r PurgeReport) Total() int {
	return r.JobsDeleted + r.HealthChecksDeleted + r.HealingAttemptsDeleted
}
