// -----------------------------------------------------------------------
// Retry Manager - bounded re-dispatch of recently failed jobs
// -----------------------------------------------------------------------

package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/metrics"
	"github.com/ternarybob/overseer/internal/models"
	"golang.org/x/time/rate"
)

// RetryManager moves failed jobs back to scheduled and re-dispatches them after a delay
type RetryManager struct {
	jobs         interfaces.JobStorage
	dispatcher   interfaces.JobDispatcher
	clock        common.Clock
	delay        time.Duration
	limiter      *rate.Limiter
	eventService interfaces.EventService
	logger       arbor.ILogger
}

// NewRetryManager creates a retry manager. A non-positive rate limit disables pacing.
func NewRetryManager(jobs interfaces.JobStorage, dispatcher interfaces.JobDispatcher, clk common.Clock, config common.RetryConfig, eventService interfaces.EventService, logger arbor.ILogger) *RetryManager {
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	return &RetryManager{
		jobs:         jobs,
		dispatcher:   dispatcher,
		clock:        clk,
		delay:        config.DelayDuration(),
		limiter:      rate.NewLimiter(limit, 1),
		eventService: eventService,
		logger:       logger,
	}
}

// RetryFailed re-dispatches failed jobs started within window whose retry count is below
// maxRetries. A job whose type is already active is skipped until a later sweep.
func (r *RetryManager) RetryFailed(ctx context.Context, window time.Duration, maxRetries int) (models.RetryReport, error) {
	report := models.RetryReport{Window: window, Retried: []string{}}

	since := r.clock.Now().Add(-window)
	failed, err := r.jobs.FailedJobsStartedSince(ctx, since)
	if err != nil {
		return report, fmt.Errorf("failed to list failed jobs: %w", err)
	}
	report.Scanned = len(failed)

	for _, job := range failed {
		if job.RetryCount >= maxRetries {
			report.Exhausted++
			metrics.RetryResults.WithLabelValues("exhausted").Inc()
			continue
		}

		active, err := r.jobs.HasActiveJob(ctx, job.JobType)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", job.ID, err))
			continue
		}
		if active {
			report.Skipped++
			metrics.RetryResults.WithLabelValues("skipped").Inc()
			r.logger.Debug().
				Str("job_id", job.ID).
				Str("job_type", job.JobType).
				Msg("Retry skipped: job of this type is active")
			continue
		}

		if err := r.limiter.Wait(ctx); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("retry sweep interrupted: %v", err))
			break
		}

		retried, err := r.jobs.MarkForRetry(ctx, job.ID, maxRetries)
		switch {
		case errors.Is(err, interfaces.ErrRetryCeiling):
			report.Exhausted++
			metrics.RetryResults.WithLabelValues("exhausted").Inc()
			continue
		case errors.Is(err, interfaces.ErrJobActive), errors.Is(err, interfaces.ErrNotRetryable):
			report.Skipped++
			metrics.RetryResults.WithLabelValues("skipped").Inc()
			continue
		case err != nil:
			r.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark job for retry")
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", job.ID, err))
			metrics.RetryResults.WithLabelValues("error").Inc()
			continue
		}

		r.dispatcher.DispatchAfter(ctx, retried, r.delay)
		report.Retried = append(report.Retried, retried.ID)
		metrics.RetryResults.WithLabelValues("retried").Inc()

		r.logger.Info().
			Str("job_id", retried.ID).
			Str("job_type", retried.JobType).
			Int("retry_count", retried.RetryCount).
			Int("max_retries", maxRetries).
			Dur("delay", r.delay).
			Msg("Job scheduled for retry")
	}

	r.logger.Info().
		Int("scanned", report.Scanned).
		Int("retried", len(report.Retried)).
		Int("exhausted", report.Exhausted).
		Int("skipped", report.Skipped).
		Int("errors", len(report.Errors)).
		Msg("Retry sweep completed")

	if r.eventService != nil {
		event := interfaces.Event{
			Type: interfaces.EventRetrySweepDone,
			Payload: map[string]interface{}{
				"scanned":   report.Scanned,
				"retried":   len(report.Retried),
				"exhausted": report.Exhausted,
				"skipped":   report.Skipped,
				"timestamp": r.clock.Now().Format(time.RFC3339),
			},
		}
		if err := r.eventService.Publish(context.Background(), event); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to publish retry sweep event")
		}
	}

	return report, nil
}
