package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// TriggerStorage implements the TriggerStorage interface for Badger
type TriggerStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTriggerStorage creates a new TriggerStorage instance
func NewTriggerStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TriggerStorage {
	return &TriggerStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TriggerStorage) SaveTriggerState(ctx context.Context, state *models.TriggerState) error {
	if state.TriggerID == "" {
		return fmt.Errorf("trigger ID is required")
	}

	return s.db.retryWrite(ctx, "save trigger state", func() error {
		return s.db.Store().Upsert(state.TriggerID, state)
	})
}

func (s *TriggerStorage) GetTriggerState(ctx context.Context, triggerID string) (*models.TriggerState, error) {
	var state models.TriggerState
	if err := s.db.Store().Get(triggerID, &state); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("trigger state %s: %w", triggerID, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get trigger state: %w", err)
	}
	return &state, nil
}

func (s *TriggerStorage) ListTriggerStates(ctx context.Context) ([]*models.TriggerState, error) {
	var states []models.TriggerState
	if err := s.db.Store().Find(&states, badgerhold.Where("TriggerID").Ne("").SortBy("TriggerID")); err != nil {
		return nil, fmt.Errorf("failed to list trigger states: %w", err)
	}

	result := make([]*models.TriggerState, len(states))
	for i := range states {
		result[i] = &states[i]
	}
	return result, nil
}
