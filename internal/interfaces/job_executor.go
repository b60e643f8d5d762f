// -----------------------------------------------------------------------
// Job Executor Interface - the work behind one job type
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/overseer/internal/models"
)

// JobExecutor performs the actual work for one job type.
// Implementations must return promptly once ctx is cancelled.
type JobExecutor interface {
	Execute(ctx context.Context, jobType string, params map[string]interface{}) (resultCount int, err error)
}

// JobExecutorFunc adapts a function to JobExecutor
type JobExecutorFunc func(ctx context.Context, jobType string, params map[string]interface{}) (int, error)

// Execute calls f
func (f JobExecutorFunc) Execute(ctx context.Context, jobType string, params map[string]interface{}) (int, error) {
	return f(ctx, jobType, params)
}

// JobDispatcher routes jobs to their queue
type JobDispatcher interface {
	// Route returns the queue for a job type, ErrUnroutable if none
	Route(jobType string) (models.QueueName, error)

	// Dispatch pushes the job onto its queue, blocking while the queue is full
	Dispatch(ctx context.Context, job *models.Job) error

	// DispatchAfter dispatches the job once delay has elapsed, without blocking the caller
	DispatchAfter(ctx context.Context, job *models.Job, delay time.Duration)
}

// JobSubmitter creates and dispatches jobs under the one-active-job-per-type rule
type JobSubmitter interface {
	// Submit persists a scheduled job and dispatches it.
	// Returns ErrJobActive if a job of the same type is scheduled or running.
	Submit(ctx context.Context, req models.JobRequest) (*models.Job, error)

	// IsActive reports whether a job of this type is scheduled or running
	IsActive(ctx context.Context, jobType string) (bool, error)
}
