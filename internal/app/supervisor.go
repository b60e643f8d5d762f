package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/metrics"
	"github.com/ternarybob/overseer/internal/models"
	"github.com/ternarybob/overseer/internal/queue"
)

// cadence is one periodic loop. Loops with a jobType submit that system job;
// the rest call run directly.
type cadence struct {
	name     string
	jobType  string
	schedule cron.Schedule
	run      func(ctx context.Context)
}

// cadences returns the enabled system loops
func (a *App) cadences() ([]cadence, error) {
	cfg := a.Config
	var loops []cadence

	if cfg.Health.Enabled {
		loops = append(loops, cadence{name: "health", jobType: common.JobTypeHealthCheck, schedule: common.EverySchedule(cfg.Health.SweepInterval())})
	}
	if cfg.Retry.Enabled {
		loops = append(loops, cadence{name: "retry", jobType: common.JobTypeRetryFailed, schedule: common.EverySchedule(cfg.Retry.SweepInterval())})
	}
	if cfg.Cleanup.Enabled {
		schedule, err := common.CronParser.Parse(cfg.Cleanup.Schedule)
		if err != nil {
			return nil, fmt.Errorf("cleanup schedule: %w", err)
		}
		loops = append(loops, cadence{name: "cleanup", jobType: common.JobTypeCleanup, schedule: schedule})
	}
	if cfg.Metrics.Enabled {
		loops = append(loops, cadence{name: "metrics", jobType: common.JobTypeSystemMetrics, schedule: common.EverySchedule(cfg.Metrics.SampleInterval())})
	}
	if cfg.Performance.Enabled {
		loops = append(loops, cadence{name: "performance", jobType: common.JobTypeWorkflowPerformance, schedule: common.EverySchedule(cfg.Performance.ReviewInterval())})
	}

	// The stale sweep repairs store state, so it must not wait behind the queues it unblocks
	loops = append(loops, cadence{name: "stale", schedule: common.EverySchedule(cfg.Workers.StaleInterval()), run: a.failStaleJobs})
	return loops, nil
}

// startLoops runs every cadence under one errgroup. Loops end only when ctx is cancelled.
func (a *App) startLoops(ctx context.Context) *errgroup.Group {
	g, gctx := errgroup.WithContext(ctx)

	loops, err := a.cadences()
	if err != nil {
		// Config validation parses the same schedule, so this only fires for hand-built configs
		a.Logger.Error().Err(err).Msg("Supervisor loops not started")
		return g
	}

	for _, loop := range loops {
		loop := loop
		a.Logger.Info().
			Str("loop", loop.name).
			Str("job_type", loop.jobType).
			Msg("Starting supervisor loop")

		run := loop.run
		if run == nil {
			jobType := loop.jobType
			run = func(ctx context.Context) { a.submitSystemJob(ctx, jobType) }
		}

		g.Go(func() error {
			return Supervise(gctx, a.Clock, "loop:"+loop.name, a.Logger, func(ctx context.Context) error {
				return common.RunOnSchedule(ctx, a.Clock, loop.schedule, run)
			})
		})
	}
	return g
}

// submitSystemJob goes through the same no-overlap path as manual triggers
func (a *App) submitSystemJob(ctx context.Context, jobType string) {
	job, err := a.Submitter.Submit(ctx, models.JobRequest{JobType: jobType, Source: models.JobSourceTrigger})
	switch {
	case err == nil:
		a.Logger.Info().
			Str("job_id", job.ID).
			Str("job_type", jobType).
			Msg("System job submitted")
	case errors.Is(err, interfaces.ErrJobActive):
		a.Logger.Info().Str("job_type", jobType).Msg("System job still active, skipping this cadence")
	case ctx.Err() != nil:
	default:
		a.Logger.Error().Err(err).Str("job_type", jobType).Msg("Failed to submit system job")
	}
}

// failStaleJobs fails jobs whose worker never recorded an outcome and announces them
func (a *App) failStaleJobs(ctx context.Context) {
	failed, err := queue.FailStale(ctx, a.StorageManager.JobStorage(), a.Clock.Now(), a.Config.Workers.StaleAfter(), a.Logger)
	if err != nil {
		a.Logger.Error().Err(err).Msg("Stale job detection failed")
		return
	}

	for _, job := range failed {
		metrics.StaleJobs.Inc()
		if err := a.EventService.Publish(ctx, interfaces.Event{
			Type: interfaces.EventJobStatusChanged,
			Payload: map[string]interface{}{
				"job_id":       job.ID,
				"job_type":     job.JobType,
				"queue":        string(job.Queue),
				"status":       string(models.JobStatusFailed),
				"result_count": 0,
				"timestamp":    a.Clock.Now().Format(time.RFC3339),
				"error":        job.LastError,
			},
		}); err != nil {
			a.Logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to publish stale job event")
		}
	}
}

// Supervise runs fn until ctx is cancelled. If fn panics or returns early it is restarted
// after an exponential backoff measured on clk; siblings are unaffected.
func Supervise(ctx context.Context, clk common.Clock, name string, logger arbor.ILogger, fn func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0

	for {
		err := common.SafeCall(name, func() error { return fn(ctx) })
		if ctx.Err() != nil {
			return nil
		}

		delay := bo.NextBackOff()
		event := logger.Error().Str("loop", name).Dur("restart_in", delay)
		var panicErr *common.PanicError
		if errors.As(err, &panicErr) {
			event = event.Str("panic", fmt.Sprintf("%v", panicErr.Value)).Str("stack", panicErr.Stack)
		} else if err != nil {
			event = event.Err(err)
		}
		event.Msg("Supervisor loop stopped unexpectedly, restarting")

		if err := common.Sleep(ctx, clk, delay); err != nil {
			return nil
		}
	}
}
