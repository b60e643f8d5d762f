package performance

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/metrics"
	"github.com/ternarybob/overseer/internal/models"
)

const alertSeverity = "warning"

// Thresholds are the alert rules applied to each workflow
type Thresholds struct {
	MinSuccessRate float64 // percent
	MaxAvgDuration time.Duration
}

// ThresholdsFrom reads the alert rules from config
func ThresholdsFrom(cfg common.PerformanceConfig) Thresholds {
	return Thresholds{
		MinSuccessRate: cfg.SuccessFloor(),
		MaxAvgDuration: cfg.SlowAfter(),
	}
}

// SuccessRate is completed runs as a percentage of all runs, rounded to one decimal.
// Runs still scheduled or running count against the rate.
func SuccessRate(succeeded, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(succeeded)/float64(total)*1000) / 10
}

// Summarize groups jobs by type and applies the alert rules. Workflows are sorted by job type.
// The average duration covers completed runs only.
func Summarize(jobs []*models.Job, thresholds Thresholds) ([]models.WorkflowPerformance, []models.PerformanceAlert) {
	byType := make(map[string]*models.WorkflowPerformance)
	durations := make(map[string]time.Duration)

	for _, job := range jobs {
		wp, ok := byType[job.JobType]
		if !ok {
			wp = &models.WorkflowPerformance{JobType: job.JobType}
			byType[job.JobType] = wp
		}
		wp.TotalRuns++

		switch job.Status {
		case models.JobStatusCompleted:
			wp.SuccessfulRuns++
			wp.TotalResults += job.ResultCount
			if job.StartedAt != nil && job.CompletedAt != nil {
				durations[job.JobType] += job.CompletedAt.Sub(*job.StartedAt)
			}
		case models.JobStatusFailed:
			wp.FailedRuns++
		}
	}

	workflows := make([]models.WorkflowPerformance, 0, len(byType))
	for jobType, wp := range byType {
		wp.SuccessRate = SuccessRate(wp.SuccessfulRuns, wp.TotalRuns)
		if wp.SuccessfulRuns > 0 {
			avg := durations[jobType].Seconds() / float64(wp.SuccessfulRuns)
			wp.AvgDurationSeconds = math.Round(avg*10) / 10
		}
		workflows = append(workflows, *wp)
	}
	sort.Slice(workflows, func(i, j int) bool { return workflows[i].JobType < workflows[j].JobType })

	var alerts []models.PerformanceAlert
	for _, wp := range workflows {
		// A window holding only in-flight runs says nothing about success yet
		if wp.FailedRuns > 0 && wp.SuccessRate < thresholds.MinSuccessRate {
			alerts = append(alerts, models.PerformanceAlert{
				Type:      models.AlertLowSuccessRate,
				JobType:   wp.JobType,
				Value:     wp.SuccessRate,
				Threshold: thresholds.MinSuccessRate,
				Severity:  alertSeverity,
			})
		}
		if limit := thresholds.MaxAvgDuration.Seconds(); limit > 0 && wp.AvgDurationSeconds > limit {
			alerts = append(alerts, models.PerformanceAlert{
				Type:      models.AlertSlowPerformance,
				JobType:   wp.JobType,
				Value:     wp.AvgDurationSeconds,
				Threshold: limit,
				Severity:  alertSeverity,
			})
		}
	}
	return workflows, alerts
}

// Analyzer reviews recent job history per workflow
type Analyzer struct {
	jobs         interfaces.JobStorage
	thresholds   Thresholds
	clock        common.Clock
	eventService interfaces.EventService
	logger       arbor.ILogger
}

// NewAnalyzer creates an analyzer. eventService may be nil.
func NewAnalyzer(jobs interfaces.JobStorage, thresholds Thresholds, clk common.Clock, eventService interfaces.EventService, logger arbor.ILogger) *Analyzer {
	return &Analyzer{
		jobs:         jobs,
		thresholds:   thresholds,
		clock:        clk,
		eventService: eventService,
		logger:       logger,
	}
}

// Summary computes per-workflow figures for jobs created within window without side effects
func (a *Analyzer) Summary(ctx context.Context, window time.Duration) (*models.PerformanceReport, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}

	now := a.clock.Now()
	since := now.Add(-window)
	jobs, err := a.jobs.ListJobsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs since %s: %w", since.Format(time.RFC3339), err)
	}

	workflows, alerts := Summarize(jobs, a.thresholds)
	if alerts == nil {
		alerts = []models.PerformanceAlert{}
	}
	return &models.PerformanceReport{
		GeneratedAt: now,
		Since:       since,
		TotalJobs:   len(jobs),
		Workflows:   workflows,
		Alerts:      alerts,
	}, nil
}

// Review runs Summary and records the outcome: gauges per workflow, a warning per alert
// and a review event
func (a *Analyzer) Review(ctx context.Context, window time.Duration) (*models.PerformanceReport, error) {
	report, err := a.Summary(ctx, window)
	if err != nil {
		return nil, err
	}

	for _, wp := range report.Workflows {
		metrics.WorkflowSuccessRate.WithLabelValues(wp.JobType).Set(wp.SuccessRate)
		metrics.WorkflowAvgDuration.WithLabelValues(wp.JobType).Set(wp.AvgDurationSeconds)
	}
	for _, alert := range report.Alerts {
		metrics.PerformanceAlerts.WithLabelValues(string(alert.Type)).Inc()
		a.logger.Warn().
			Str("alert", string(alert.Type)).
			Str("job_type", alert.JobType).
			Float64("value", alert.Value).
			Float64("threshold", alert.Threshold).
			Msg("Workflow performance alert")
	}

	a.logger.Info().
		Int("jobs", report.TotalJobs).
		Int("workflows", len(report.Workflows)).
		Int("alerts", len(report.Alerts)).
		Msg("Workflow performance review completed")

	if a.eventService != nil {
		event := interfaces.Event{
			Type: interfaces.EventPerformanceReview,
			Payload: map[string]interface{}{
				"since":     report.Since.Format(time.RFC3339),
				"jobs":      report.TotalJobs,
				"workflows": len(report.Workflows),
				"alerts":    report.Alerts,
				"timestamp": report.GeneratedAt.Format(time.RFC3339),
			},
		}
		if err := a.eventService.Publish(context.Background(), event); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to publish performance review event")
		}
	}

	return report, nil
}
