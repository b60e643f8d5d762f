package queue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/models"
	"github.com/ternarybob/overseer/internal/storage/badger"
)

func TestRecover_FailsRunningAndRedispatchesScheduled(t *testing.T) {
	logger := arbor.NewLogger()
	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir() + "/db"})
	require.NoError(t, err)
	defer storage.Close()

	jobs := storage.JobStorage()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	running := models.NewJob("event_scout", models.QueueScraping, nil, models.JobSourceTrigger, now)
	require.NoError(t, jobs.CreateJob(ctx, running))
	_, err = jobs.ClaimJob(ctx, running.ID, now)
	require.NoError(t, err)

	scheduled := models.NewJob(common.JobTypeHealthCheck, models.QueueMonitoring, nil, models.JobSourceTrigger, now)
	require.NoError(t, jobs.CreateJob(ctx, scheduled))

	orphan := models.NewJob("retired_workflow", models.QueueScraping, nil, models.JobSourceTrigger, now)
	require.NoError(t, jobs.CreateJob(ctx, orphan))

	m := newTestManager(clock.NewMock(), 4)
	defer m.Close()

	report, err := Recover(ctx, jobs, m, now.Add(time.Minute), logger)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Interrupted)
	assert.Equal(t, 1, report.Redispatched)
	assert.Equal(t, 1, report.Unroutable)

	interrupted, err := jobs.GetJob(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, interrupted.Status)
	assert.Equal(t, InterruptedError, interrupted.LastError)

	require.Eventually(t, func() bool {
		return m.Depth(models.QueueMonitoring) == 1
	}, 2*time.Second, 5*time.Millisecond)

	failed, err := jobs.GetJob(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, failed.Status)
}

func TestFailStale_FailsOnlyJobsPastTheLimit(t *testing.T) {
	logger := arbor.NewLogger()
	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir() + "/db"})
	require.NoError(t, err)
	defer storage.Close()

	jobs := storage.JobStorage()
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	staleAfter := 15 * time.Minute

	stuck := models.NewJob("event_scout", models.QueueScraping, nil, models.JobSourceTrigger, start)
	require.NoError(t, jobs.CreateJob(ctx, stuck))
	_, err = jobs.ClaimJob(ctx, stuck.ID, start)
	require.NoError(t, err)

	recent := models.NewJob("seo_opportunity_finder", models.QueueScraping, nil, models.JobSourceTrigger, start)
	require.NoError(t, jobs.CreateJob(ctx, recent))
	_, err = jobs.ClaimJob(ctx, recent.ID, start.Add(10*time.Minute))
	require.NoError(t, err)

	waiting := models.NewJob(common.JobTypeHealthCheck, models.QueueMonitoring, nil, models.JobSourceTrigger, start)
	require.NoError(t, jobs.CreateJob(ctx, waiting))

	now := start.Add(staleAfter + time.Minute)
	failed, err := FailStale(ctx, jobs, now, staleAfter, logger)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, stuck.ID, failed[0].ID)

	got, err := jobs.GetJob(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.True(t, strings.HasPrefix(got.LastError, StaleErrorPrefix), got.LastError)

	active, err := jobs.HasActiveJob(ctx, "event_scout")
	require.NoError(t, err)
	assert.False(t, active)

	got, err = jobs.GetJob(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, got.Status)

	got, err = jobs.GetJob(ctx, waiting.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusScheduled, got.Status)

	// A second sweep at the same instant finds nothing new
	failed, err = FailStale(ctx, jobs, now, staleAfter, logger)
	require.NoError(t, err)
	assert.Empty(t, failed)
}
