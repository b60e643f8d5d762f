package models

import (
	"time"
)

// TriggerKind selects how a trigger computes its fire times
type TriggerKind string

const (
	TriggerKindInterval TriggerKind = "interval"
	TriggerKindCron     TriggerKind = "cron"
)

// Trigger is a scheduling rule bound to exactly one job type
type Trigger struct {
	ID                  string                 `toml:"id" json:"trigger_id" validate:"required"`
	JobType             string                 `toml:"job_type" json:"job_type" validate:"required"`
	Kind                TriggerKind            `toml:"kind" json:"kind" validate:"required,oneof=interval cron"`
	IntervalSeconds     int                    `toml:"interval_seconds" json:"interval_seconds,omitempty" validate:"required_if=Kind interval,gte=0"`
	CronExpression      string                 `toml:"cron" json:"cron_expression,omitempty" validate:"required_if=Kind cron"`
	MisfireGraceSeconds int                    `toml:"misfire_grace_seconds" json:"misfire_grace_seconds" validate:"gte=0"`
	Coalesce            bool                   `toml:"coalesce" json:"coalesce"`
	MaxInstances        int                    `toml:"max_instances" json:"max_instances" validate:"gte=0,lte=1"`
	Parameters          map[string]interface{} `toml:"parameters" json:"parameters,omitempty"`
	Enabled             bool                   `toml:"enabled" json:"enabled"`
}

// MisfireGrace returns the grace period as a duration
func (t Trigger) MisfireGrace() time.Duration {
	return time.Duration(t.MisfireGraceSeconds) * time.Second
}

// FireDecision is the outcome of one due trigger evaluation
type FireDecision string

const (
	FireDecisionFired     FireDecision = "fired"
	FireDecisionCoalesced FireDecision = "coalesced"
	FireDecisionMisfired  FireDecision = "misfired"
	FireDecisionSkipped   FireDecision = "skipped"
	FireDecisionError     FireDecision = "error"
)

// TriggerState is the persisted bookkeeping for one trigger
type TriggerState struct {
	TriggerID    string       `json:"trigger_id"`
	JobType      string       `json:"job_type"`
	LastFiredAt  *time.Time   `json:"last_fired_at,omitempty"`
	LastJobID    string       `json:"last_job_id,omitempty"`
	NextFireAt   time.Time    `json:"next_fire_at"`
	LastDecision FireDecision `json:"last_decision,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TriggerStatus is the read model returned to API callers
type TriggerStatus struct {
	Trigger Trigger      `json:"trigger"`
	State   TriggerState `json:"state"`
}
