package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
	"github.com/ternarybob/overseer/internal/queue"
	"github.com/ternarybob/overseer/internal/storage/badger"
)

func newTestSubmitter(t *testing.T, buffer int) (*Submitter, interfaces.JobStorage, *queue.Manager) {
	t.Helper()
	logger := arbor.NewLogger()

	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir() + "/db"})
	require.NoError(t, err)

	mock := clock.NewMock()
	configs := []queue.Config{
		{Name: models.QueueScraping, Concurrency: 1, Buffer: buffer},
		{Name: models.QueueMonitoring, Concurrency: 1, Buffer: buffer},
		{Name: models.QueueMaintenance, Concurrency: 1, Buffer: buffer},
	}
	qm := queue.NewManager(queue.NewRouter(common.RoutingConfig{}.Table()), configs, mock, logger)

	t.Cleanup(func() {
		qm.Close()
		storage.Close()
	})

	return NewSubmitter(storage.JobStorage(), qm, mock, logger), storage.JobStorage(), qm
}

func TestSubmitter_SubmitPersistsAndDispatches(t *testing.T) {
	submitter, jobs, qm := newTestSubmitter(t, 10)
	ctx := context.Background()

	job, err := submitter.Submit(ctx, models.JobRequest{
		JobType:    "google_maps_scraper",
		Parameters: map[string]interface{}{"city": "Berlin"},
		Source:     models.JobSourceTrigger,
		TriggerID:  "google_maps_scraper_interval",
	})
	require.NoError(t, err)

	stored, err := jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusScheduled, stored.Status)
	assert.Equal(t, models.QueueScraping, stored.Queue)
	assert.Equal(t, "google_maps_scraper_interval", stored.TriggerID)
	assert.Equal(t, "Berlin", stored.Parameters["city"])
	assert.Equal(t, 1, qm.Depth(models.QueueScraping))

	active, err := submitter.IsActive(ctx, "google_maps_scraper")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestSubmitter_RefusesActiveType(t *testing.T) {
	submitter, _, qm := newTestSubmitter(t, 10)
	ctx := context.Background()

	_, err := submitter.Submit(ctx, models.JobRequest{JobType: common.JobTypeHealthCheck, Source: models.JobSourceManual})
	require.NoError(t, err)

	_, err = submitter.Submit(ctx, models.JobRequest{JobType: common.JobTypeHealthCheck, Source: models.JobSourceManual})
	assert.ErrorIs(t, err, interfaces.ErrJobActive)
	assert.Equal(t, 1, qm.Depth(models.QueueMonitoring))
}

func TestSubmitter_ConcurrentSubmitsAdmitOne(t *testing.T) {
	submitter, _, qm := newTestSubmitter(t, 20)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := submitter.Submit(ctx, models.JobRequest{JobType: "event_scout", Source: models.JobSourceManual}); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, qm.Depth(models.QueueScraping))
}

func TestSubmitter_RejectsUnroutable(t *testing.T) {
	submitter, jobs, _ := newTestSubmitter(t, 10)

	_, err := submitter.Submit(context.Background(), models.JobRequest{JobType: "not_a_workflow", Source: models.JobSourceManual})
	assert.ErrorIs(t, err, interfaces.ErrUnroutable)

	recent, err := jobs.ListRecentJobs(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestSubmitter_FailsJobWhenDispatchIsCancelled(t *testing.T) {
	submitter, jobs, _ := newTestSubmitter(t, 1)

	_, err := submitter.Submit(context.Background(), models.JobRequest{JobType: "event_scout", Source: models.JobSourceManual})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = submitter.Submit(ctx, models.JobRequest{JobType: "finance_data_collector", Source: models.JobSourceManual})
	require.Error(t, err)

	failed, err := jobs.ListJobsByStatus(context.Background(), models.JobStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "finance_data_collector", failed[0].JobType)
	assert.Contains(t, failed[0].LastError, "dispatch failed")

	active, err := submitter.IsActive(context.Background(), "finance_data_collector")
	require.NoError(t, err)
	assert.False(t, active)
}
