package interfaces

import "errors"

var (
	// ErrJobNotFound is returned when no job record has the requested ID
	ErrJobNotFound = errors.New("job not found")

	// ErrJobActive is returned when a job of the same type is already scheduled or running
	ErrJobActive = errors.New("job of this type is already active")

	// ErrNotClaimable is returned when a worker tries to start a job that is no longer scheduled
	ErrNotClaimable = errors.New("job is not in scheduled state")

	// ErrInvalidTransition is returned when a status change does not follow the job lifecycle
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrRetryCeiling is returned when a job has used all of its retries
	ErrRetryCeiling = errors.New("job has reached its retry ceiling")

	// ErrNotRetryable is returned when a retry is requested for a job that is not failed
	ErrNotRetryable = errors.New("job is not in failed state")

	// ErrUnroutable is returned when no queue is configured for a job type
	ErrUnroutable = errors.New("no queue route for job type")

	// ErrDuplicateTrigger is returned when a different trigger is registered under an existing ID
	ErrDuplicateTrigger = errors.New("trigger already registered with a different definition")

	// ErrNotFound is returned by health and trigger storage lookups with no match
	ErrNotFound = errors.New("record not found")
)
