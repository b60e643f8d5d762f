package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventJobStatusChanged   EventType = "job_status_changed"
	EventTriggerFired       EventType = "trigger_fired"
	EventHealthSweepDone    EventType = "health_sweep_completed"
	EventHealingDone        EventType = "healing_completed"
	EventRetrySweepDone     EventType = "retry_sweep_completed"
	EventPurgeDone          EventType = "purge_completed"
	EventSystemMetricsTaken EventType = "system_metrics_sampled"
	EventPerformanceReview  EventType = "workflow_performance_reviewed"
)

// AllEventTypes lists every event type published by the core
var AllEventTypes = []EventType{
	EventJobStatusChanged,
	EventTriggerFired,
	EventHealthSweepDone,
	EventHealingDone,
	EventRetrySweepDone,
	EventPurgeDone,
	EventSystemMetricsTaken,
	EventPerformanceReview,
}

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
