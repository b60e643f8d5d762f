package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/metrics"
	"github.com/ternarybob/overseer/internal/models"
)

// CleanupManager purges records older than the retention window
type CleanupManager struct {
	jobs         interfaces.JobStorage
	health       interfaces.HealthStorage
	clock        common.Clock
	eventService interfaces.EventService
	logger       arbor.ILogger
}

// NewCleanupManager creates a cleanup manager. eventService may be nil.
func NewCleanupManager(jobs interfaces.JobStorage, health interfaces.HealthStorage, clk common.Clock, eventService interfaces.EventService, logger arbor.ILogger) *CleanupManager {
	return &CleanupManager{
		jobs:         jobs,
		health:       health,
		clock:        clk,
		eventService: eventService,
		logger:       logger,
	}
}

// Purge deletes jobs, health checks and healing attempts stamped before now minus retention,
// regardless of status. Each record kind is purged independently.
func (c *CleanupManager) Purge(ctx context.Context, retention time.Duration) (models.PurgeReport, error) {
	if retention <= 0 {
		return models.PurgeReport{}, fmt.Errorf("retention must be positive, got %s", retention)
	}

	cutoff := c.clock.Now().Add(-retention)
	report := models.PurgeReport{Cutoff: cutoff}

	var errs []error
	purge := func(kind string, fn func(context.Context, time.Time) (int, error), target *int) {
		n, err := fn(ctx, cutoff)
		if err != nil {
			c.logger.Error().Err(err).Str("kind", kind).Msg("Failed to purge records")
			errs = append(errs, fmt.Errorf("purge %s: %w", kind, err))
			return
		}
		*target = n
		metrics.RecordsPurged.WithLabelValues(kind).Add(float64(n))
	}

	purge("jobs", c.jobs.DeleteJobsBefore, &report.JobsDeleted)
	purge("health_checks", c.health.DeleteHealthChecksBefore, &report.HealthChecksDeleted)
	purge("healing_attempts", c.health.DeleteHealingAttemptsBefore, &report.HealingAttemptsDeleted)

	c.logger.Info().
		Str("cutoff", cutoff.Format(time.RFC3339)).
		Int("jobs", report.JobsDeleted).
		Int("health_checks", report.HealthChecksDeleted).
		Int("healing_attempts", report.HealingAttemptsDeleted).
		Msg("Retention cleanup completed")

	if c.eventService != nil {
		event := interfaces.Event{
			Type: interfaces.EventPurgeDone,
			Payload: map[string]interface{}{
				"cutoff":    cutoff.Format(time.RFC3339),
				"deleted":   report.Total(),
				"timestamp": c.clock.Now().Format(time.RFC3339),
			},
		}
		if err := c.eventService.Publish(context.Background(), event); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to publish purge event")
		}
	}

	return report, errors.Join(errs...)
}
