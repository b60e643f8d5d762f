// -----------------------------------------------------------------------
// Job - one execution of a workflow or system task
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a Job.
// scheduled -> running -> {completed | failed}; failed -> scheduled only via the retry manager.
type JobStatus string

const (
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status is completed or failed
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsActive reports whether the status is scheduled or running
func (s JobStatus) IsActive() bool {
	return s == JobStatusScheduled || s == JobStatusRunning
}

// JobSource records what created a Job
type JobSource string

const (
	JobSourceTrigger JobSource = "trigger"
	JobSourceManual  JobSource = "manual"
)

// Job is one scheduled or manually triggered unit of work.
// Records are owned by the job store; callers hold copies only while acting on them.
type Job struct {
	ID          string                 `json:"id"`
	JobType     string                 `json:"job_type" badgerhold:"index"`
	Queue       QueueName              `json:"queue"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Status      JobStatus              `json:"status" badgerhold:"index"`
	TriggerID   string                 `json:"trigger_id,omitempty"` // Empty for manual jobs
	Source      JobSource              `json:"source"`
	CreatedAt   time.Time              `json:"created_at"` // Record timestamp used for retention
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ResultCount int                    `json:"result_count"`
	RetryCount  int                    `json:"retry_count"`
	LastError   string                 `json:"last_error,omitempty"`
}

// NewJob creates a scheduled job with a fresh ID
func NewJob(jobType string, queue QueueName, params map[string]interface{}, source JobSource, now time.Time) *Job {
	if params == nil {
		params = make(map[string]interface{})
	}
	return &Job{
		ID:         uuid.New().String(),
		JobType:    jobType,
		Queue:      queue,
		Parameters: params,
		Status:     JobStatusScheduled,
		Source:     source,
		CreatedAt:  now,
	}
}

// Duration returns the run time of a finished job, or zero
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// JobRequest asks for a new job of one type
type JobRequest struct {
	JobType    string                 `json:"job_type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Source     JobSource              `json:"source"`
	TriggerID  string                 `json:"trigger_id,omitempty"`
}
