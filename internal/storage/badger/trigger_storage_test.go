package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
)

func TestTriggerStorage_SaveAndList(t *testing.T) {
	storage := NewTriggerStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	_, err := storage.GetTriggerState(ctx, "event_scout_cron")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	fired := baseTime
	require.NoError(t, storage.SaveTriggerState(ctx, &models.TriggerState{
		TriggerID:    "event_scout_cron",
		JobType:      "event_scout",
		LastFiredAt:  &fired,
		LastJobID:    "job-1",
		NextFireAt:   baseTime.Add(24 * time.Hour),
		LastDecision: models.FireDecisionFired,
		UpdatedAt:    baseTime,
	}))
	require.NoError(t, storage.SaveTriggerState(ctx, &models.TriggerState{
		TriggerID:    "event_scout_cron",
		JobType:      "event_scout",
		LastFiredAt:  &fired,
		LastJobID:    "job-1",
		NextFireAt:   baseTime.Add(24 * time.Hour),
		LastDecision: models.FireDecisionCoalesced,
		UpdatedAt:    baseTime.Add(time.Minute),
	}))
	require.NoError(t, storage.SaveTriggerState(ctx, &models.TriggerState{
		TriggerID:  "finance_data_collector_interval",
		JobType:    "finance_data_collector",
		NextFireAt: baseTime.Add(30 * time.Minute),
		UpdatedAt:  baseTime,
	}))

	state, err := storage.GetTriggerState(ctx, "event_scout_cron")
	require.NoError(t, err)
	assert.Equal(t, models.FireDecisionCoalesced, state.LastDecision)
	require.NotNil(t, state.LastFiredAt)
	assert.True(t, state.LastFiredAt.Equal(baseTime))

	states, err := storage.ListTriggerStates(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "event_scout_cron", states[0].TriggerID)
	assert.Nil(t, states[1].LastFiredAt)
}
