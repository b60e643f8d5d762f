package queue

import (
	"context"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
)

func newTestManager(clk common.Clock, buffer int) *Manager {
	router := NewRouter(common.RoutingConfig{}.Table())
	configs := []Config{
		{Name: models.QueueScraping, Concurrency: 1, Buffer: buffer},
		{Name: models.QueueMonitoring, Concurrency: 1, Buffer: buffer},
		{Name: models.QueueMaintenance, Concurrency: 1, Buffer: buffer},
	}
	return NewManager(router, configs, clk, arbor.NewLogger())
}

func TestRouter_DefaultTable(t *testing.T) {
	router := NewRouter(common.RoutingConfig{}.Table())

	cases := map[string]models.QueueName{
		"google_maps_scraper":       models.QueueScraping,
		"seo_opportunity_finder":    models.QueueScraping,
		common.JobTypeHealthCheck:   models.QueueMonitoring,
		common.JobTypeSystemMetrics: models.QueueMonitoring,
		common.JobTypeCleanup:       models.QueueMaintenance,
		common.JobTypeRetryFailed:   models.QueueMaintenance,
	}
	for jobType, want := range cases {
		got, err := router.Route(jobType)
		require.NoError(t, err, jobType)
		assert.Equal(t, want, got, jobType)
	}

	_, err := router.Route("unknown_job")
	assert.ErrorIs(t, err, interfaces.ErrUnroutable)

	assert.Len(t, router.JobTypes(models.QueueScraping), 11)
	assert.Equal(t, []string{common.JobTypeCleanup, common.JobTypeRetryFailed}, router.JobTypes(models.QueueMaintenance))
}

func TestManager_DispatchAndReceive(t *testing.T) {
	m := newTestManager(clock.NewMock(), 4)
	defer m.Close()
	ctx := context.Background()

	job := models.NewJob(common.JobTypeHealthCheck, models.QueueMonitoring, nil, models.JobSourceTrigger, time.Now())
	require.NoError(t, m.Dispatch(ctx, job))
	assert.Equal(t, 1, m.Depth(models.QueueMonitoring))
	assert.Equal(t, 0, m.Depth(models.QueueScraping))

	msg, err := m.Receive(ctx, models.QueueMonitoring)
	require.NoError(t, err)
	assert.Equal(t, job.ID, msg.JobID)
	assert.Equal(t, models.QueueMonitoring, msg.Queue)
	assert.Equal(t, 0, m.Depth(models.QueueMonitoring))
}

func TestManager_DispatchRejectsUnknownJobType(t *testing.T) {
	m := newTestManager(clock.NewMock(), 1)
	defer m.Close()

	job := models.NewJob("unknown_job", models.QueueScraping, nil, models.JobSourceManual, time.Now())
	err := m.Dispatch(context.Background(), job)
	assert.ErrorIs(t, err, interfaces.ErrUnroutable)
}

func TestManager_DispatchBlocksWhileFull(t *testing.T) {
	m := newTestManager(clock.NewMock(), 1)
	defer m.Close()

	first := models.NewJob("event_scout", models.QueueScraping, nil, models.JobSourceManual, time.Now())
	require.NoError(t, m.Dispatch(context.Background(), first))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	second := models.NewJob("finance_data_collector", models.QueueScraping, nil, models.JobSourceManual, time.Now())
	err := m.Dispatch(ctx, second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, m.Depth(models.QueueScraping))
}

func TestManager_ReceiveHonoursContext(t *testing.T) {
	m := newTestManager(clock.NewMock(), 1)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Receive(ctx, models.QueueMaintenance)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_DispatchAfterWaitsOnClock(t *testing.T) {
	mock := clock.NewMock()
	m := newTestManager(mock, 2)
	defer m.Close()

	job := models.NewJob("event_scout", models.QueueScraping, nil, models.JobSourceManual, mock.Now())
	m.DispatchAfter(context.Background(), job, 5*time.Minute)

	mock.Wait(clock.Calls{Timer: 1})
	assert.Equal(t, 0, m.Depth(models.QueueScraping))

	mock.Add(5 * time.Minute)
	require.Eventually(t, func() bool {
		return m.Depth(models.QueueScraping) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManager_CloseCancelsDelayedDispatch(t *testing.T) {
	mock := clock.NewMock()
	m := newTestManager(mock, 2)

	job := models.NewJob("event_scout", models.QueueScraping, nil, models.JobSourceManual, mock.Now())
	m.DispatchAfter(context.Background(), job, time.Hour)
	mock.Wait(clock.Calls{Timer: 1})

	m.Close()
	assert.Equal(t, 0, m.Depth(models.QueueScraping))
}
