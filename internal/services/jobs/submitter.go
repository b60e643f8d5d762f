package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
)

// Submitter is the single entry point that creates jobs. Scheduler fires, manual triggers and
// the supervisor's system jobs all pass through it, so the active check and the insert are
// never interleaved within this process.
type Submitter struct {
	jobs       interfaces.JobStorage
	dispatcher interfaces.JobDispatcher
	clock      common.Clock
	logger     arbor.ILogger
	mu         sync.Mutex
}

var _ interfaces.JobSubmitter = (*Submitter)(nil)

// NewSubmitter creates a job submitter
func NewSubmitter(jobs interfaces.JobStorage, dispatcher interfaces.JobDispatcher, clk common.Clock, logger arbor.ILogger) *Submitter {
	return &Submitter{
		jobs:       jobs,
		dispatcher: dispatcher,
		clock:      clk,
		logger:     logger,
	}
}

// IsActive reports whether a job of this type is scheduled or running
func (s *Submitter) IsActive(ctx context.Context, jobType string) (bool, error) {
	return s.jobs.HasActiveJob(ctx, jobType)
}

// Submit persists a scheduled job and dispatches it.
// A job whose dispatch fails is marked failed so it never blocks its type.
func (s *Submitter) Submit(ctx context.Context, req models.JobRequest) (*models.Job, error) {
	queue, err := s.dispatcher.Route(req.JobType)
	if err != nil {
		return nil, err
	}

	job, err := s.create(ctx, req, queue)
	if err != nil {
		return nil, err
	}

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("job_type", job.JobType).
			Msg("Failed to dispatch job")
		if ferr := s.jobs.FailJob(context.Background(), job.ID, fmt.Sprintf("dispatch failed: %v", err), s.clock.Now()); ferr != nil {
			s.logger.Error().Err(ferr).Str("job_id", job.ID).Msg("Failed to mark undispatched job as failed")
		}
		return nil, fmt.Errorf("failed to dispatch job %s: %w", job.ID, err)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", job.JobType).
		Str("queue", string(queue)).
		Str("source", string(req.Source)).
		Msg("Job submitted")

	return job, nil
}

func (s *Submitter) create(ctx context.Context, req models.JobRequest, queue models.QueueName) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.jobs.HasActiveJob(ctx, req.JobType)
	if err != nil {
		return nil, fmt.Errorf("failed to check active jobs: %w", err)
	}
	if active {
		return nil, fmt.Errorf("job type %s: %w", req.JobType, interfaces.ErrJobActive)
	}

	job := models.NewJob(req.JobType, queue, copyParams(req.Parameters), req.Source, s.clock.Now())
	job.TriggerID = req.TriggerID

	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func copyParams(params map[string]interface{}) map[string]interface{} {
	copied := make(map[string]interface{}, len(params))
	for k, v := range params {
		copied[k] = v
	}
	return copied
}
