package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/overseer/internal/models"
)

// JobStorage - interface for job record persistence.
// Every status transition is a single atomic update of one record.
type JobStorage interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*models.Job, error)
	ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error)
	ListJobsByType(ctx context.Context, jobType string, limit int) ([]*models.Job, error)
	ListJobsSince(ctx context.Context, since time.Time) ([]*models.Job, error)

	// HasActiveJob reports whether a job of this type is scheduled or running
	HasActiveJob(ctx context.Context, jobType string) (bool, error)

	// ClaimJob moves a scheduled job to running.
	// Returns ErrNotClaimable if the job is no longer scheduled and ErrJobActive if another
	// job of the same type is already running.
	ClaimJob(ctx context.Context, jobID string, now time.Time) (*models.Job, error)
	CompleteJob(ctx context.Context, jobID string, resultCount int, now time.Time) error
	FailJob(ctx context.Context, jobID string, errMsg string, now time.Time) error

	// MarkForRetry moves a failed job back to scheduled and increments its retry count.
	// Returns ErrRetryCeiling when retryCount has already reached maxRetries.
	MarkForRetry(ctx context.Context, jobID string, maxRetries int) (*models.Job, error)

	// FailedJobsStartedSince returns failed jobs whose startedAt is at or after since
	FailedJobsStartedSince(ctx context.Context, since time.Time) ([]*models.Job, error)
	DeleteJobsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// HealthStorage - interface for health check and healing attempt persistence.
// Health checks are append-only.
type HealthStorage interface {
	SaveHealthCheck(ctx context.Context, check *models.HealthCheck) error
	LatestHealthCheck(ctx context.Context, component string) (*models.HealthCheck, error)
	LatestHealthChecks(ctx context.Context) ([]*models.HealthCheck, error)
	ListHealthChecks(ctx context.Context, component string, since time.Time) ([]*models.HealthCheck, error)
	SaveHealingAttempt(ctx context.Context, attempt *models.HealingAttempt) error
	ListHealingAttempts(ctx context.Context, sweepID string) ([]*models.HealingAttempt, error)
	DeleteHealthChecksBefore(ctx context.Context, cutoff time.Time) (int, error)
	DeleteHealingAttemptsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// TriggerStorage - interface for trigger bookkeeping persistence
type TriggerStorage interface {
	SaveTriggerState(ctx context.Context, state *models.TriggerState) error
	GetTriggerState(ctx context.Context, triggerID string) (*models.TriggerState, error)
	ListTriggerStates(ctx context.Context) ([]*models.TriggerState, error)
}

// StorageManager - interface for managing all storage backends
type StorageManager interface {
	JobStorage() JobStorage
	HealthStorage() HealthStorage
	TriggerStorage() TriggerStorage
	Close() error
}
