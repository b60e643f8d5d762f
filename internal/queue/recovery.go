package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
)

// InterruptedError is recorded on jobs found running when the process starts
const InterruptedError = "interrupted: service restarted while job was running"

// RecoveryReport summarises startup recovery
type RecoveryReport struct {
	Interrupted  int
	Redispatched int
	Unroutable   int
}

// Recover repairs job state left behind by a previous process.
// Running jobs are failed, since their executor is gone, and become eligible for retry.
// Scheduled jobs are dispatched again without blocking the caller.
func Recover(ctx context.Context, jobs interfaces.JobStorage, dispatcher interfaces.JobDispatcher, now time.Time, logger arbor.ILogger) (RecoveryReport, error) {
	var report RecoveryReport

	running, err := jobs.ListJobsByStatus(ctx, models.JobStatusRunning)
	if err != nil {
		return report, fmt.Errorf("failed to list running jobs: %w", err)
	}
	for _, job := range running {
		if err := jobs.FailJob(ctx, job.ID, InterruptedError, now); err != nil {
			logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mark interrupted job as failed")
			continue
		}
		report.Interrupted++
		logger.Warn().
			Str("job_id", job.ID).
			Str("job_type", job.JobType).
			Msg("Marked interrupted job as failed")
	}

	scheduled, err := jobs.ListJobsByStatus(ctx, models.JobStatusScheduled)
	if err != nil {
		return report, fmt.Errorf("failed to list scheduled jobs: %w", err)
	}
	for _, job := range scheduled {
		if _, err := dispatcher.Route(job.JobType); err != nil {
			if errors.Is(err, interfaces.ErrUnroutable) {
				report.Unroutable++
				if ferr := jobs.FailJob(ctx, job.ID, err.Error(), now); ferr != nil {
					logger.Warn().Err(ferr).Str("job_id", job.ID).Msg("Failed to mark unroutable job as failed")
				}
				continue
			}
			return report, err
		}
		dispatcher.DispatchAfter(ctx, job, 0)
		report.Redispatched++
	}

	if report.Interrupted > 0 || report.Redispatched > 0 || report.Unroutable > 0 {
		logger.Info().
			Int("interrupted", report.Interrupted).
			Int("redispatched", report.Redispatched).
			Int("unroutable", report.Unroutable).
			Msg("Job recovery completed")
	}

	return report, nil
}

// StaleErrorPrefix tags jobs failed by FailStale
const StaleErrorPrefix = "stale:"

// FailStale fails jobs that have been running longer than staleAfter. A worker always
// records an outcome by its hard limit, so such a job has lost its terminal write and
// would otherwise hold its type's no-overlap slot until restart.
// Returns the jobs it failed; write errors are logged and the job is left for the next sweep.
func FailStale(ctx context.Context, jobs interfaces.JobStorage, now time.Time, staleAfter time.Duration, logger arbor.ILogger) ([]*models.Job, error) {
	running, err := jobs.ListJobsByStatus(ctx, models.JobStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to list running jobs: %w", err)
	}

	var failed []*models.Job
	for _, job := range running {
		started := job.CreatedAt
		if job.StartedAt != nil {
			started = *job.StartedAt
		}
		age := now.Sub(started)
		if age <= staleAfter {
			continue
		}

		reason := fmt.Sprintf("%s job running for %s without recording an outcome (limit %s)", StaleErrorPrefix, age.Round(time.Second), staleAfter)
		if err := jobs.FailJob(ctx, job.ID, reason, now); err != nil {
			logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to mark stale job as failed")
			continue
		}

		logger.Warn().
			Str("job_id", job.ID).
			Str("job_type", job.JobType).
			Dur("running_for", age).
			Msg("Marked stale job as failed")
		job.Status = models.JobStatusFailed
		job.LastError = reason
		failed = append(failed, job)
	}
	return failed, nil
}
