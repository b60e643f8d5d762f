package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger

	// claimMu serialises transitions that check for a running sibling of the same job type
	claimMu sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) CreateJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if job.JobType == "" {
		return fmt.Errorf("job type is required")
	}

	return s.db.retryWrite(ctx, "create job", func() error {
		return s.db.Store().Upsert(job.ID, job)
	})
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", jobID, interfaces.ErrJobNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) ListRecentJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	return s.find(query, "list recent jobs")
}

func (s *JobStorage) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	return s.find(badgerhold.Where("Status").Eq(status).SortBy("CreatedAt"), "list jobs by status")
}

func (s *JobStorage) ListJobsByType(ctx context.Context, jobType string, limit int) ([]*models.Job, error) {
	query := badgerhold.Where("JobType").Eq(jobType).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	return s.find(query, "list jobs by type")
}

func (s *JobStorage) ListJobsSince(ctx context.Context, since time.Time) ([]*models.Job, error) {
	return s.find(badgerhold.Where("CreatedAt").Ge(since).SortBy("CreatedAt").Reverse(), "list jobs since")
}

func (s *JobStorage) HasActiveJob(ctx context.Context, jobType string) (bool, error) {
	count, err := s.db.Store().Count(&models.Job{}, activeQuery(jobType))
	if err != nil {
		return false, fmt.Errorf("failed to count active jobs: %w", err)
	}
	return count > 0, nil
}

func (s *JobStorage) ClaimJob(ctx context.Context, jobID string, now time.Time) (*models.Job, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	var claimed models.Job
	err := s.update(ctx, "claim job", func(txn *badgerdb.Txn) error {
		job, err := s.txGet(txn, jobID)
		if err != nil {
			return err
		}
		if job.Status != models.JobStatusScheduled {
			return fmt.Errorf("job %s is %s: %w", jobID, job.Status, interfaces.ErrNotClaimable)
		}

		var running []models.Job
		if err := s.db.Store().TxFind(txn, &running, badgerhold.Where("JobType").Eq(job.JobType).And("Status").Eq(models.JobStatusRunning)); err != nil {
			return err
		}
		for _, r := range running {
			if r.ID != jobID {
				return fmt.Errorf("job %s blocked by running job %s: %w", jobID, r.ID, interfaces.ErrJobActive)
			}
		}

		started := now
		job.Status = models.JobStatusRunning
		job.StartedAt = &started
		job.CompletedAt = nil
		claimed = *job
		return s.db.Store().TxUpdate(txn, jobID, job)
	})
	if err != nil {
		return nil, err
	}
	return &claimed, nil
}

func (s *JobStorage) CompleteJob(ctx context.Context, jobID string, resultCount int, now time.Time) error {
	return s.update(ctx, "complete job", func(txn *badgerdb.Txn) error {
		job, err := s.txGet(txn, jobID)
		if err != nil {
			return err
		}
		if job.Status != models.JobStatusRunning {
			return fmt.Errorf("complete job %s from %s: %w", jobID, job.Status, interfaces.ErrInvalidTransition)
		}

		completed := now
		job.Status = models.JobStatusCompleted
		job.CompletedAt = &completed
		job.ResultCount = resultCount
		job.LastError = ""
		return s.db.Store().TxUpdate(txn, jobID, job)
	})
}

// FailJob marks a running or scheduled job failed. Scheduled jobs fail when they can never be dispatched.
func (s *JobStorage) FailJob(ctx context.Context, jobID string, errMsg string, now time.Time) error {
	return s.update(ctx, "fail job", func(txn *badgerdb.Txn) error {
		job, err := s.txGet(txn, jobID)
		if err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			return fmt.Errorf("fail job %s from %s: %w", jobID, job.Status, interfaces.ErrInvalidTransition)
		}

		completed := now
		if job.StartedAt == nil {
			job.StartedAt = &completed
		}
		job.Status = models.JobStatusFailed
		job.CompletedAt = &completed
		job.LastError = errMsg
		return s.db.Store().TxUpdate(txn, jobID, job)
	})
}

func (s *JobStorage) MarkForRetry(ctx context.Context, jobID string, maxRetries int) (*models.Job, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	var retried models.Job
	err := s.update(ctx, "mark job for retry", func(txn *badgerdb.Txn) error {
		job, err := s.txGet(txn, jobID)
		if err != nil {
			return err
		}
		if job.Status != models.JobStatusFailed {
			return fmt.Errorf("job %s is %s: %w", jobID, job.Status, interfaces.ErrNotRetryable)
		}
		if job.RetryCount >= maxRetries {
			return fmt.Errorf("job %s retried %d of %d times: %w", jobID, job.RetryCount, maxRetries, interfaces.ErrRetryCeiling)
		}

		var active []models.Job
		if err := s.db.Store().TxFind(txn, &active, activeQuery(job.JobType)); err != nil {
			return err
		}
		if len(active) > 0 {
			return fmt.Errorf("job %s blocked by active job %s: %w", jobID, active[0].ID, interfaces.ErrJobActive)
		}

		job.RetryCount++
		job.Status = models.JobStatusScheduled
		job.StartedAt = nil
		job.CompletedAt = nil
		retried = *job
		return s.db.Store().TxUpdate(txn, jobID, job)
	})
	if err != nil {
		return nil, err
	}
	return &retried, nil
}

func (s *JobStorage) FailedJobsStartedSince(ctx context.Context, since time.Time) ([]*models.Job, error) {
	failed, err := s.find(badgerhold.Where("Status").Eq(models.JobStatusFailed).SortBy("CreatedAt"), "list failed jobs")
	if err != nil {
		return nil, err
	}

	// StartedAt is a pointer, so the window is applied here rather than in the query
	result := make([]*models.Job, 0, len(failed))
	for _, job := range failed {
		if job.StartedAt != nil && !job.StartedAt.Before(since) {
			result = append(result, job)
		}
	}
	return result, nil
}

func (s *JobStorage) DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := badgerhold.Where("CreatedAt").Lt(cutoff)

	count, err := s.db.Store().Count(&models.Job{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired jobs: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.retryWrite(ctx, "delete expired jobs", func() error {
		return s.db.Store().DeleteMatching(&models.Job{}, badgerhold.Where("CreatedAt").Lt(cutoff))
	}); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *JobStorage) update(ctx context.Context, op string, fn func(txn *badgerdb.Txn) error) error {
	return s.db.retryWrite(ctx, op, func() error {
		return s.db.Store().Badger().Update(fn)
	})
}

func (s *JobStorage) txGet(txn *badgerdb.Txn, jobID string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().TxGet(txn, jobID, &job); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", jobID, interfaces.ErrJobNotFound)
		}
		return nil, err
	}
	return &job, nil
}

func (s *JobStorage) find(query *badgerhold.Query, op string) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func activeQuery(jobType string) *badgerhold.Query {
	return badgerhold.Where("JobType").Eq(jobType).And("Status").In(models.JobStatusScheduled, models.JobStatusRunning)
}
