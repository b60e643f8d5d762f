package status

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
	"github.com/ternarybob/overseer/internal/services/health"
	"github.com/ternarybob/overseer/internal/services/performance"
	"github.com/ternarybob/overseer/internal/services/scheduler"
)

// TriggerLister exposes the registered triggers and their bookkeeping
type TriggerLister interface {
	Triggers() []models.TriggerStatus
}

// PerformanceSummarizer computes recent per-workflow figures and alerts
type PerformanceSummarizer interface {
	Summary(ctx context.Context, window time.Duration) (*models.PerformanceReport, error)
}

// Service answers manual trigger requests and status queries.
// Queries always read the store, never an in-memory cache.
type Service struct {
	submitter  interfaces.JobSubmitter
	jobs       interfaces.JobStorage
	health     interfaces.HealthStorage
	dispatcher interfaces.JobDispatcher
	triggers   TriggerLister
	perf       PerformanceSummarizer
	perfWindow time.Duration
	jobTypes   []string
	clock      common.Clock
	logger     arbor.ILogger
}

// NewService creates the status service. jobTypes are the routed job types reported by WorkflowStatuses.
// perf may be nil, in which case workflow statuses carry no recent window figures.
func NewService(submitter interfaces.JobSubmitter, jobs interfaces.JobStorage, healthStorage interfaces.HealthStorage, dispatcher interfaces.JobDispatcher, triggers TriggerLister, perf PerformanceSummarizer, perfWindow time.Duration, jobTypes []string, clk common.Clock, logger arbor.ILogger) *Service {
	types := append([]string(nil), jobTypes...)
	sort.Strings(types)

	return &Service{
		submitter:  submitter,
		jobs:       jobs,
		health:     healthStorage,
		dispatcher: dispatcher,
		triggers:   triggers,
		perf:       perf,
		perfWindow: perfWindow,
		jobTypes:   types,
		clock:      clk,
		logger:     logger,
	}
}

// TriggerJob creates and dispatches a manual job.
// Returns ErrJobActive if a job of the same type is scheduled or running and ErrUnroutable for unknown types.
func (s *Service) TriggerJob(ctx context.Context, jobType string, params map[string]interface{}) (string, error) {
	jobType = strings.TrimSpace(jobType)
	if jobType == "" {
		return "", fmt.Errorf("job type is required")
	}

	job, err := s.submitter.Submit(ctx, models.JobRequest{
		JobType:    jobType,
		Parameters: params,
		Source:     models.JobSourceManual,
	})
	if err != nil {
		return "", err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", jobType).
		Msg("Manual job triggered")
	return job.ID, nil
}

// GetJob returns one job record
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// ListRecentJobs returns the newest jobs first
func (s *Service) ListRecentJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.jobs.ListRecentJobs(ctx, limit)
}

// GetLatestHealth returns the latest check per component
func (s *Service) GetLatestHealth(ctx context.Context) ([]*models.HealthCheck, error) {
	return s.health.LatestHealthChecks(ctx)
}

// HealthReport derives the overall health level from the latest checks
func (s *Service) HealthReport(ctx context.Context) (*models.HealthReport, error) {
	checks, err := s.health.LatestHealthChecks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest health checks: %w", err)
	}
	return health.BuildReport(checks, s.clock.Now()), nil
}

// GetStatistics aggregates jobs created within period. An empty period returns every standard period.
func (s *Service) GetStatistics(ctx context.Context, period models.StatsPeriod) ([]models.Statistics, error) {
	periods := models.AllPeriods
	if period != "" {
		if _, ok := period.Duration(); !ok {
			return nil, fmt.Errorf("unknown statistics period %q", period)
		}
		periods = []models.StatsPeriod{period}
	}

	now := s.clock.Now()
	stats := make([]models.Statistics, 0, len(periods))
	for _, p := range periods {
		d, _ := p.Duration()
		since := now.Add(-d)

		jobs, err := s.jobs.ListJobsSince(ctx, since)
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs for %s: %w", p, err)
		}
		stats = append(stats, aggregate(p, since, jobs))
	}
	return stats, nil
}

func aggregate(period models.StatsPeriod, since time.Time, jobs []*models.Job) models.Statistics {
	stats := models.Statistics{Period: period, Since: since, TotalJobs: len(jobs)}
	for _, job := range jobs {
		switch job.Status {
		case models.JobStatusCompleted:
			stats.SuccessCount++
			stats.TotalResults += job.ResultCount
		case models.JobStatusFailed:
			stats.FailureCount++
		case models.JobStatusRunning:
			stats.RunningCount++
		}
	}
	stats.SuccessRate = performance.SuccessRate(stats.SuccessCount, stats.TotalJobs)
	return stats
}

// WorkflowStatuses summarises every routed job type: last and next run, run count, success rate,
// plus recent window figures and alerts when a performance summarizer is configured
func (s *Service) WorkflowStatuses(ctx context.Context) ([]models.WorkflowStatus, error) {
	byType := make(map[string]models.TriggerStatus)
	for _, ts := range s.triggers.Triggers() {
		if _, seen := byType[ts.Trigger.JobType]; !seen {
			byType[ts.Trigger.JobType] = ts
		}
	}

	recent := make(map[string]models.WorkflowPerformance)
	alerts := make(map[string][]models.PerformanceAlert)
	if s.perf != nil {
		report, err := s.perf.Summary(ctx, s.perfWindow)
		if err != nil {
			return nil, fmt.Errorf("failed to summarise workflow performance: %w", err)
		}
		for _, wp := range report.Workflows {
			recent[wp.JobType] = wp
		}
		for _, alert := range report.Alerts {
			alerts[alert.JobType] = append(alerts[alert.JobType], alert)
		}
	}

	statuses := make([]models.WorkflowStatus, 0, len(s.jobTypes))
	for _, jobType := range s.jobTypes {
		ws := models.WorkflowStatus{JobType: jobType}
		if queue, err := s.dispatcher.Route(jobType); err == nil {
			ws.Queue = queue
		}

		if ts, ok := byType[jobType]; ok {
			ws.TriggerID = ts.Trigger.ID
			ws.Schedule = scheduler.DescribeSchedule(ts.Trigger)
			if ts.Trigger.Enabled && !ts.State.NextFireAt.IsZero() {
				next := ts.State.NextFireAt
				ws.NextRun = &next
			}
		}

		jobs, err := s.jobs.ListJobsByType(ctx, jobType, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs of type %s: %w", jobType, err)
		}

		var succeeded int
		for i, job := range jobs {
			if i == 0 {
				last := job.CreatedAt
				if job.StartedAt != nil {
					last = *job.StartedAt
				}
				ws.LastRun = &last
				ws.LastStatus = job.Status
			}
			if job.Status == models.JobStatusCompleted {
				succeeded++
				ws.TotalResults += job.ResultCount
			}
		}
		ws.TotalRuns = len(jobs)
		ws.SuccessRate = performance.SuccessRate(succeeded, len(jobs))

		if wp, ok := recent[jobType]; ok {
			wp := wp
			ws.Recent = &wp
		}
		ws.Alerts = alerts[jobType]
		statuses = append(statuses, ws)
	}
	return statuses, nil
}

// WorkflowPerformance returns the recent window review without recording it
func (s *Service) WorkflowPerformance(ctx context.Context) (*models.PerformanceReport, error) {
	if s.perf == nil {
		return nil, fmt.Errorf("workflow performance review is not configured")
	}
	return s.perf.Summary(ctx, s.perfWindow)
}

// Triggers returns every registered trigger with its bookkeeping
func (s *Service) Triggers() []models.TriggerStatus {
	return s.triggers.Triggers()
}
