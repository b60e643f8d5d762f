package badger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
)

func TestHealthStorage_LatestPerComponent(t *testing.T) {
	storage := NewHealthStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	sweep1, sweep2 := uuid.New().String(), uuid.New().String()
	require.NoError(t, storage.SaveHealthCheck(ctx, models.NewHealthCheck(sweep1, "mongodb", models.HealthStatusFailed, "connection refused", baseTime)))
	require.NoError(t, storage.SaveHealthCheck(ctx, models.NewHealthCheck(sweep1, "backend_api", models.HealthStatusHealthy, "ok", baseTime)))
	require.NoError(t, storage.SaveHealthCheck(ctx, models.NewHealthCheck(sweep2, "mongodb", models.HealthStatusHealthy, "ok", baseTime.Add(30*time.Minute))))

	latest, err := storage.LatestHealthCheck(ctx, "mongodb")
	require.NoError(t, err)
	assert.Equal(t, models.HealthStatusHealthy, latest.Status)
	assert.Equal(t, sweep2, latest.SweepID)

	_, err = storage.LatestHealthCheck(ctx, "nginx_proxy")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	all, err := storage.LatestHealthChecks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "backend_api", all[0].Component)
	assert.Equal(t, "mongodb", all[1].Component)
	assert.Equal(t, models.HealthStatusHealthy, all[1].Status)

	history, err := storage.ListHealthChecks(ctx, "mongodb", baseTime)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.HealthStatusFailed, history[0].Status)
}

func TestHealthStorage_HealingAttempts(t *testing.T) {
	storage := NewHealthStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	sweepID := uuid.New().String()
	for cycle := 1; cycle <= 3; cycle++ {
		require.NoError(t, storage.SaveHealingAttempt(ctx, &models.HealingAttempt{
			ID:          uuid.New().String(),
			SweepID:     sweepID,
			Component:   "mongodb",
			CycleNumber: cycle,
			ActionTaken: "restart_mongodb",
			Succeeded:   cycle == 3,
			RecheckedAt: baseTime.Add(time.Duration(cycle) * 30 * time.Second),
		}))
	}
	require.NoError(t, storage.SaveHealingAttempt(ctx, &models.HealingAttempt{
		ID:          uuid.New().String(),
		SweepID:     uuid.New().String(),
		Component:   "nginx_proxy",
		CycleNumber: 1,
		RecheckedAt: baseTime,
	}))

	attempts, err := storage.ListHealingAttempts(ctx, sweepID)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, 1, attempts[0].CycleNumber)
	assert.True(t, attempts[2].Succeeded)
}

func TestHealthStorage_DeleteBefore(t *testing.T) {
	storage := NewHealthStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	cutoff := baseTime.Add(-30 * 24 * time.Hour)
	require.NoError(t, storage.SaveHealthCheck(ctx, models.NewHealthCheck("s1", "mongodb", models.HealthStatusHealthy, "ok", cutoff.Add(-time.Minute))))
	require.NoError(t, storage.SaveHealthCheck(ctx, models.NewHealthCheck("s2", "mongodb", models.HealthStatusHealthy, "ok", cutoff.Add(time.Minute))))
	require.NoError(t, storage.SaveHealingAttempt(ctx, &models.HealingAttempt{
		ID: uuid.New().String(), SweepID: "s1", Component: "mongodb", CycleNumber: 1, RecheckedAt: cutoff.Add(-time.Minute),
	}))

	checks, err := storage.DeleteHealthChecksBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, checks)

	attempts, err := storage.DeleteHealingAttemptsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)

	remaining, err := storage.LatestHealthChecks(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "s2", remaining[0].SweepID)
}
