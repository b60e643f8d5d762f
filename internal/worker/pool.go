package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/metrics"
	"github.com/ternarybob/overseer/internal/models"
)

// terminalWriteTimeout bounds the store write that records a job's outcome
const terminalWriteTimeout = 30 * time.Second

// Source is the queue side a pool consumes from
type Source interface {
	Receive(ctx context.Context, queue models.QueueName) (models.QueueMessage, error)
	DispatchAfter(ctx context.Context, job *models.Job, delay time.Duration)
}

// Limits are the per-job execution limits of a pool
type Limits struct {
	Soft         time.Duration // Warning logged once after this long
	Hard         time.Duration // Execution abandoned and the job failed after this long
	RequeueDelay time.Duration // Wait before retrying a job blocked by a running sibling
}

// LimitsFrom reads pool limits from application config
func LimitsFrom(workers common.WorkersConfig) Limits {
	return Limits{
		Soft:         workers.SoftLimit(),
		Hard:         workers.HardLimit(),
		RequeueDelay: workers.RequeueDelay(),
	}
}

// WorkerPool manages the workers draining one queue
type WorkerPool struct {
	queue        models.QueueName
	source       Source
	jobs         interfaces.JobStorage
	executors    map[string]interfaces.JobExecutor
	eventService interfaces.EventService
	clock        common.Clock
	limits       Limits
	logger       arbor.ILogger
	numWorkers   int
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorkerPool creates a pool for queue. eventService may be nil.
func NewWorkerPool(queue models.QueueName, source Source, jobs interfaces.JobStorage, eventService interfaces.EventService, clk common.Clock, limits Limits, logger arbor.ILogger, numWorkers int) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if numWorkers < 1 {
		numWorkers = 1
	}

	return &WorkerPool{
		queue:        queue,
		source:       source,
		jobs:         jobs,
		executors:    make(map[string]interfaces.JobExecutor),
		eventService: eventService,
		clock:        clk,
		limits:       limits,
		logger:       logger,
		numWorkers:   numWorkers,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// RegisterExecutor registers an executor for a job type. Call before Start.
func (wp *WorkerPool) RegisterExecutor(jobType string, executor interfaces.JobExecutor) {
	wp.executors[jobType] = executor
	wp.logger.Debug().
		Str("queue", string(wp.queue)).
		Str("job_type", jobType).
		Msg("Executor registered")
}

// Start starts the worker pool
func (wp *WorkerPool) Start() {
	wp.logger.Info().
		Str("queue", string(wp.queue)).
		Int("num_workers", wp.numWorkers).
		Msg("Starting worker pool")

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop stops intake and waits for in-flight jobs to finish or reach their hard limit
func (wp *WorkerPool) Stop() {
	wp.logger.Info().Str("queue", string(wp.queue)).Msg("Stopping worker pool...")
	wp.cancel()
	wp.wg.Wait()
	wp.logger.Info().Str("queue", string(wp.queue)).Msg("Worker pool stopped")
}

// worker is the main worker loop
func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	wp.logger.Debug().
		Str("queue", string(wp.queue)).
		Int("worker_id", workerID).
		Msg("Worker started")

	for {
		msg, err := wp.source.Receive(wp.ctx, wp.queue)
		if err != nil {
			if wp.ctx.Err() != nil {
				wp.logger.Debug().
					Str("queue", string(wp.queue)).
					Int("worker_id", workerID).
					Msg("Worker stopping")
				return
			}
			wp.logger.Error().Err(err).Str("queue", string(wp.queue)).Msg("Failed to receive from queue")
			return
		}

		if err := common.SafeCall("worker:"+string(wp.queue), func() error {
			wp.processMessage(workerID, msg)
			return nil
		}); err != nil {
			wp.logger.Error().Err(err).Str("job_id", msg.JobID).Msg("Worker recovered from panic")
		}
	}
}

// processMessage claims, executes and records one job
func (wp *WorkerPool) processMessage(workerID int, msg models.QueueMessage) {
	job, ok := wp.claim(msg)
	if !ok {
		return
	}

	wp.logger.Info().
		Int("worker_id", workerID).
		Str("job_id", job.ID).
		Str("job_type", job.JobType).
		Str("queue", string(wp.queue)).
		Msg("Processing job")
	wp.publishStatus(job, models.JobStatusRunning, "", 0)

	metrics.JobsRunning.WithLabelValues(string(wp.queue)).Inc()
	defer metrics.JobsRunning.WithLabelValues(string(wp.queue)).Dec()

	started := wp.clock.Now()
	resultCount, execErr := wp.execute(job)
	finished := wp.clock.Now()
	metrics.JobDuration.WithLabelValues(job.JobType).Observe(finished.Sub(started).Seconds())

	// Terminal writes must land even while the pool is shutting down
	writeCtx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()

	if execErr != nil {
		wp.logger.Error().
			Err(execErr).
			Str("job_id", job.ID).
			Str("job_type", job.JobType).
			Msg("Job failed")

		if err := wp.jobs.FailJob(writeCtx, job.ID, execErr.Error(), finished); err != nil {
			wp.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record job failure")
			return
		}
		metrics.JobsFinished.WithLabelValues(job.JobType, string(models.JobStatusFailed)).Inc()
		wp.publishStatus(job, models.JobStatusFailed, execErr.Error(), 0)
		return
	}

	if err := wp.jobs.CompleteJob(writeCtx, job.ID, resultCount, finished); err != nil {
		wp.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record job completion")
		return
	}

	wp.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", job.JobType).
		Int("result_count", resultCount).
		Dur("duration", finished.Sub(started)).
		Msg("Job completed successfully")
	metrics.JobsFinished.WithLabelValues(job.JobType, string(models.JobStatusCompleted)).Inc()
	wp.publishStatus(job, models.JobStatusCompleted, "", resultCount)
}

// claim moves the job to running. A job blocked by a running sibling is requeued after a delay.
func (wp *WorkerPool) claim(msg models.QueueMessage) (*models.Job, bool) {
	job, err := wp.jobs.ClaimJob(context.Background(), msg.JobID, wp.clock.Now())
	if err == nil {
		return job, true
	}

	switch {
	case errors.Is(err, interfaces.ErrJobActive):
		metrics.ClaimRefusals.WithLabelValues("active").Inc()
		wp.logger.Info().
			Str("job_id", msg.JobID).
			Str("job_type", msg.JobType).
			Dur("requeue_in", wp.limits.RequeueDelay).
			Msg("Job blocked by running job of same type, requeueing")
		wp.source.DispatchAfter(context.Background(), &models.Job{ID: msg.JobID, JobType: msg.JobType, Queue: msg.Queue}, wp.limits.RequeueDelay)
	case errors.Is(err, interfaces.ErrNotClaimable), errors.Is(err, interfaces.ErrJobNotFound):
		metrics.ClaimRefusals.WithLabelValues("stale").Inc()
		wp.logger.Debug().Err(err).Str("job_id", msg.JobID).Msg("Dropping stale queue message")
	default:
		metrics.ClaimRefusals.WithLabelValues("error").Inc()
		wp.logger.Error().Err(err).Str("job_id", msg.JobID).Msg("Failed to claim job, requeueing")
		wp.source.DispatchAfter(context.Background(), &models.Job{ID: msg.JobID, JobType: msg.JobType, Queue: msg.Queue}, wp.limits.RequeueDelay)
	}
	return nil, false
}

type execResult struct {
	count int
	err   error
}

// execute runs the executor under the soft and hard limits.
// The execution context is detached from pool shutdown; only the hard limit cancels it.
func (wp *WorkerPool) execute(job *models.Job) (int, error) {
	executor, ok := wp.executors[job.JobType]
	if !ok {
		return 0, fmt.Errorf("no executor registered for job type: %s", job.JobType)
	}

	execCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan execResult, 1)
	go func() {
		var count int
		err := common.SafeCall("executor:"+job.JobType, func() error {
			var execErr error
			count, execErr = executor.Execute(execCtx, job.JobType, job.Parameters)
			return execErr
		})
		done <- execResult{count: count, err: err}
	}()

	soft := wp.clock.Timer(wp.limits.Soft)
	defer soft.Stop()
	hard := wp.clock.Timer(wp.limits.Hard)
	defer hard.Stop()

	for {
		select {
		case result := <-done:
			return result.count, result.err
		case <-soft.C:
			metrics.SoftLimitWarnings.WithLabelValues(job.JobType).Inc()
			wp.logger.Warn().
				Str("job_id", job.ID).
				Str("job_type", job.JobType).
				Dur("soft_limit", wp.limits.Soft).
				Msg("Job exceeded soft time limit")
		case <-hard.C:
			cancel()
			return 0, fmt.Errorf("timeout: job exceeded hard time limit of %s", wp.limits.Hard)
		}
	}
}

func (wp *WorkerPool) publishStatus(job *models.Job, status models.JobStatus, errMsg string, resultCount int) {
	if wp.eventService == nil {
		return
	}

	payload := map[string]interface{}{
		"job_id":       job.ID,
		"job_type":     job.JobType,
		"queue":        string(wp.queue),
		"status":       string(status),
		"result_count": resultCount,
		"timestamp":    wp.clock.Now().Format(time.RFC3339),
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}

	if err := wp.eventService.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventJobStatusChanged,
		Payload: payload,
	}); err != nil {
		wp.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to publish job status event")
	}
}
