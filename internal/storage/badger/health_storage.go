package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// HealthStorage implements the HealthStorage interface for Badger.
// Health checks are inserted once and never updated.
type HealthStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHealthStorage creates a new HealthStorage instance
func NewHealthStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HealthStorage {
	return &HealthStorage{
		db:     db,
		logger: logger,
	}
}

func (s *HealthStorage) SaveHealthCheck(ctx context.Context, check *models.HealthCheck) error {
	if check.ID == "" {
		return fmt.Errorf("health check ID is required")
	}
	if check.Component == "" {
		return fmt.Errorf("health check component is required")
	}

	return s.db.retryWrite(ctx, "save health check", func() error {
		return s.db.Store().Upsert(check.ID, check)
	})
}

func (s *HealthStorage) LatestHealthCheck(ctx context.Context, component string) (*models.HealthCheck, error) {
	var checks []models.HealthCheck
	query := badgerhold.Where("Component").Eq(component).SortBy("Timestamp").Reverse().Limit(1)
	if err := s.db.Store().Find(&checks, query); err != nil {
		return nil, fmt.Errorf("failed to get latest health check: %w", err)
	}
	if len(checks) == 0 {
		return nil, fmt.Errorf("health check for %s: %w", component, interfaces.ErrNotFound)
	}
	return &checks[0], nil
}

// LatestHealthChecks returns the newest check of every component, ordered by component name
func (s *HealthStorage) LatestHealthChecks(ctx context.Context) ([]*models.HealthCheck, error) {
	var checks []models.HealthCheck
	if err := s.db.Store().Find(&checks, badgerhold.Where("ID").Ne("").SortBy("Component", "Timestamp").Reverse()); err != nil {
		return nil, fmt.Errorf("failed to list health checks: %w", err)
	}

	result := make([]*models.HealthCheck, 0)
	seen := make(map[string]bool)
	for i := range checks {
		if seen[checks[i].Component] {
			continue
		}
		seen[checks[i].Component] = true
		result = append(result, &checks[i])
	}

	// Restore ascending component order
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}

func (s *HealthStorage) ListHealthChecks(ctx context.Context, component string, since time.Time) ([]*models.HealthCheck, error) {
	var checks []models.HealthCheck
	query := badgerhold.Where("Component").Eq(component).And("Timestamp").Ge(since).SortBy("Timestamp")
	if err := s.db.Store().Find(&checks, query); err != nil {
		return nil, fmt.Errorf("failed to list health checks: %w", err)
	}

	result := make([]*models.HealthCheck, len(checks))
	for i := range checks {
		result[i] = &checks[i]
	}
	return result, nil
}

func (s *HealthStorage) SaveHealingAttempt(ctx context.Context, attempt *models.HealingAttempt) error {
	if attempt.ID == "" {
		return fmt.Errorf("healing attempt ID is required")
	}

	return s.db.retryWrite(ctx, "save healing attempt", func() error {
		return s.db.Store().Upsert(attempt.ID, attempt)
	})
}

func (s *HealthStorage) ListHealingAttempts(ctx context.Context, sweepID string) ([]*models.HealingAttempt, error) {
	var attempts []models.HealingAttempt
	if err := s.db.Store().Find(&attempts, badgerhold.Where("SweepID").Eq(sweepID).SortBy("CycleNumber", "Component")); err != nil {
		return nil, fmt.Errorf("failed to list healing attempts: %w", err)
	}

	result := make([]*models.HealingAttempt, len(attempts))
	for i := range attempts {
		result[i] = &attempts[i]
	}
	return result, nil
}

func (s *HealthStorage) DeleteHealthChecksBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return s.deleteBefore(ctx, &models.HealthCheck{}, "Timestamp", cutoff, "delete expired health checks")
}

func (s *HealthStorage) DeleteHealingAttemptsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return s.deleteBefore(ctx, &models.HealingAttempt{}, "RecheckedAt", cutoff, "delete expired healing attempts")
}

func (s *HealthStorage) deleteBefore(ctx context.Context, dataType interface{}, field string, cutoff time.Time, op string) (int, error) {
	count, err := s.db.Store().Count(dataType, badgerhold.Where(field).Lt(cutoff))
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.retryWrite(ctx, op, func() error {
		return s.db.Store().DeleteMatching(dataType, badgerhold.Where(field).Lt(cutoff))
	}); err != nil {
		return 0, err
	}
	return int(count), nil
}
