// -----------------------------------------------------------------------
// Health records - sweep snapshots and healing bookkeeping
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/google/uuid"
)

// HealthStatus is the four-state verdict for one component
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusCritical HealthStatus = "critical"
	HealthStatusFailed   HealthStatus = "failed"
)

// Severity orders statuses so the worst can be picked
func (s HealthStatus) Severity() int {
	switch s {
	case HealthStatusHealthy:
		return 0
	case HealthStatusWarning:
		return 1
	case HealthStatusCritical:
		return 2
	case HealthStatusFailed:
		return 3
	default:
		return 3
	}
}

// ProbeKind tells the monitor how to classify a probe result
type ProbeKind string

const (
	ProbeKindVerdict      ProbeKind = "verdict"      // Prober decided the status itself
	ProbeKindUtilization  ProbeKind = "utilization"  // Percent readings per resource
	ProbeKindConnectivity ProbeKind = "connectivity" // Reachable / attempted endpoints
	ProbeKindIssues       ProbeKind = "issues"       // Count of findings
)

// ProbeResult is the raw output of one probe
type ProbeResult struct {
	Kind        ProbeKind          `json:"kind"`
	Status      HealthStatus       `json:"status,omitempty"`
	Details     string             `json:"details,omitempty"`
	Utilization map[string]float64 `json:"utilization,omitempty"`
	Succeeded   int                `json:"succeeded,omitempty"`
	Attempted   int                `json:"attempted,omitempty"`
	Issues      int                `json:"issues,omitempty"`
}

// HealthCheck is one point-in-time verdict for one component. Never mutated once stored.
type HealthCheck struct {
	ID         string             `json:"id"`
	SweepID    string             `json:"sweep_id"`
	Component  string             `json:"component" badgerhold:"index"`
	Status     HealthStatus       `json:"status"`
	Details    string             `json:"details"`
	Timestamp  time.Time          `json:"timestamp"`
	FixApplied bool               `json:"fix_applied"`
	FixDetails string             `json:"fix_details,omitempty"`
	ErrorCount int                `json:"error_count"`
	Unresolved bool               `json:"unresolved,omitempty"` // Healing gave up on this component in this sweep
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// NewHealthCheck creates a check record with a fresh ID
func NewHealthCheck(sweepID, component string, status HealthStatus, details string, now time.Time) *HealthCheck {
	return &HealthCheck{
		ID:        uuid.New().String(),
		SweepID:   sweepID,
		Component: component,
		Status:    status,
		Details:   details,
		Timestamp: now,
	}
}

// IsHealthy reports whether the check needs no remediation
func (c *HealthCheck) IsHealthy() bool {
	return c.Status == HealthStatusHealthy
}

// HealingAttempt is the bookkeeping for one remediation cycle on one component
type HealingAttempt struct {
	ID          string    `json:"id"`
	SweepID     string    `json:"sweep_id"`
	Component   string    `json:"component" badgerhold:"index"`
	CycleNumber int       `json:"cycle_number"`
	ActionTaken string    `json:"action_taken"`
	ActionError string    `json:"action_error,omitempty"`
	Succeeded   bool      `json:"succeeded"`
	RecheckedAt time.Time `json:"rechecked_at"`
}

// HealthLevel is the overall verdict across all components
type HealthLevel string

const (
	HealthLevelOptimal     HealthLevel = "optimal"
	HealthLevelGood        HealthLevel = "good"
	HealthLevelAttention   HealthLevel = "attention"
	HealthLevelMaintenance HealthLevel = "maintenance"
)

// HealthReport summarises the latest check of every component
type HealthReport struct {
	Level       HealthLevel          `json:"level"`
	GeneratedAt time.Time            `json:"generated_at"`
	Counts      map[HealthStatus]int `json:"counts"`
	Unhealthy   []string             `json:"unhealthy,omitempty"`
	Unresolved  []string             `json:"unresolved,omitempty"`
	Checks      []*HealthCheck       `json:"checks"`
}
