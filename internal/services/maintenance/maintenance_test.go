package maintenance

import (
	"context"
	"path/filepath"
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

type maintenanceFixture struct {
	storage interfaces.StorageManager
	queues  *queue.Manager
	clock   *clock.Mock
	retry   *RetryManager
	cleanup *CleanupManager
}

func newMaintenanceFixture(t *testing.T) *maintenanceFixture {
	t.Helper()
	logger := arbor.NewLogger()

	storage, err := badger.NewManager(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)

	mock := clock.NewMock()
	mock.Add(100 * 24 * time.Hour)

	config := common.NewDefaultConfig()
	qm := queue.NewManager(queue.NewRouter(config.Routing.Table()), queue.ConfigsFrom(config.Queues), mock, logger)

	t.Cleanup(func() {
		qm.Close()
		storage.Close()
	})

	retryConfig := config.Retry
	retryConfig.RateLimit = 0

	return &maintenanceFixture{
		storage: storage,
		queues:  qm,
		clock:   mock,
		retry:   NewRetryManager(storage.JobStorage(), qm, mock, retryConfig, nil, logger),
		cleanup: NewCleanupManager(storage.JobStorage(), storage.HealthStorage(), mock, nil, logger),
	}
}

// failedJob creates a job that ran and failed at startedAt
func (f *maintenanceFixture) failedJob(t *testing.T, jobType string, startedAt time.Time) *models.Job {
	t.Helper()
	ctx := context.Background()
	jobs := f.storage.JobStorage()

	job := models.NewJob(jobType, models.QueueScraping, nil, models.JobSourceTrigger, startedAt.Add(-time.Minute))
	require.NoError(t, jobs.CreateJob(ctx, job))
	_, err := jobs.ClaimJob(ctx, job.ID, startedAt)
	require.NoError(t, err)
	require.NoError(t, jobs.FailJob(ctx, job.ID, "upstream returned 503", startedAt.Add(time.Minute)))
	return job
}

// failAgain runs a retried job to failure again
func (f *maintenanceFixture) failAgain(t *testing.T, jobID string) {
	t.Helper()
	ctx := context.Background()
	jobs := f.storage.JobStorage()

	_, err := jobs.ClaimJob(ctx, jobID, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, jobs.FailJob(ctx, jobID, "upstream returned 503", f.clock.Now()))
}

func TestRetryManager_RetriesWithinWindowAndDelaysDispatch(t *testing.T) {
	f := newMaintenanceFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	recent := f.failedJob(t, "google_maps_scraper", now.Add(-time.Hour))
	f.failedJob(t, "linkedin_extractor", now.Add(-7*time.Hour))

	report, err := f.retry.RetryFailed(ctx, 6*time.Hour, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, []string{recent.ID}, report.Retried)

	job, err := f.storage.JobStorage().GetJob(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusScheduled, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Nil(t, job.StartedAt)

	// Nothing reaches the queue until the retry delay passes
	assert.Equal(t, 0, f.queues.Depth(models.QueueScraping))
	f.clock.Wait(clock.Calls{Timer: 1})
	f.clock.Add(5 * time.Minute)
	assert.Eventually(t, func() bool {
		return f.queues.Depth(models.QueueScraping) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRetryManager_RespectsRetryCeiling(t *testing.T) {
	f := newMaintenanceFixture(t)
	ctx := context.Background()

	job := f.failedJob(t, "real_estate_analyzer", f.clock.Now().Add(-time.Minute))

	for attempt := 1; attempt <= 3; attempt++ {
		report, err := f.retry.RetryFailed(ctx, 6*time.Hour, 3)
		require.NoError(t, err)
		require.Equal(t, []string{job.ID}, report.Retried, "attempt %d", attempt)
		f.failAgain(t, job.ID)
	}

	report, err := f.retry.RetryFailed(ctx, 6*time.Hour, 3)
	require.NoError(t, err)
	assert.Empty(t, report.Retried)
	assert.Equal(t, 1, report.Exhausted)

	got, err := f.storage.JobStorage().GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)
}

func TestRetryManager_SkipsWhenTypeIsActive(t *testing.T) {
	f := newMaintenanceFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	first := f.failedJob(t, "restaurant_analyzer", now.Add(-2*time.Hour))
	second := f.failedJob(t, "restaurant_analyzer", now.Add(-time.Hour))

	report, err := f.retry.RetryFailed(ctx, 6*time.Hour, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, []string{first.ID}, report.Retried)
	assert.Equal(t, 1, report.Skipped)

	got, err := f.storage.JobStorage().GetJob(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, 0, got.RetryCount)
}

func TestCleanupManager_PurgesOnlyExpiredRecords(t *testing.T) {
	f := newMaintenanceFixture(t)
	ctx := context.Background()
	now := f.clock.Now()
	retention := 30 * 24 * time.Hour
	cutoff := now.Add(-retention)

	jobs := f.storage.JobStorage()
	health := f.storage.HealthStorage()

	old := models.NewJob("event_scout", models.QueueScraping, nil, models.JobSourceTrigger, cutoff.Add(-time.Second))
	old.Status = models.JobStatusCompleted
	boundary := models.NewJob("event_scout", models.QueueScraping, nil, models.JobSourceTrigger, cutoff)
	fresh := models.NewJob("event_scout", models.QueueScraping, nil, models.JobSourceManual, now.Add(-time.Hour))
	for _, j := range []*models.Job{old, boundary, fresh} {
		require.NoError(t, jobs.CreateJob(ctx, j))
	}

	require.NoError(t, health.SaveHealthCheck(ctx, models.NewHealthCheck("s1", "mongodb", models.HealthStatusFailed, "down", cutoff.Add(-time.Hour))))
	require.NoError(t, health.SaveHealthCheck(ctx, models.NewHealthCheck("s2", "mongodb", models.HealthStatusHealthy, "ok", now)))
	require.NoError(t, health.SaveHealingAttempt(ctx, &models.HealingAttempt{ID: "a1", SweepID: "s1", Component: "mongodb", CycleNumber: 1, RecheckedAt: cutoff.Add(-time.Minute)}))
	require.NoError(t, health.SaveHealingAttempt(ctx, &models.HealingAttempt{ID: "a2", SweepID: "s2", Component: "mongodb", CycleNumber: 1, RecheckedAt: now}))

	report, err := f.cleanup.Purge(ctx, retention)
	require.NoError(t, err)
	assert.True(t, report.Cutoff.Equal(cutoff))
	assert.Equal(t, 1, report.JobsDeleted)
	assert.Equal(t, 1, report.HealthChecksDeleted)
	assert.Equal(t, 1, report.HealingAttemptsDeleted)
	assert.Equal(t, 3, report.Total())

	_, err = jobs.GetJob(ctx, old.ID)
	assert.ErrorIs(t, err, interfaces.ErrJobNotFound)
	_, err = jobs.GetJob(ctx, boundary.ID)
	assert.NoError(t, err)
	_, err = jobs.GetJob(ctx, fresh.ID)
	assert.NoError(t, err)

	attempts, err := health.ListHealingAttempts(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, attempts)

	// Second run has nothing left to delete
	report, err = f.cleanup.Purge(ctx, retention)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total())
}

func TestCleanupManager_RejectsNonPositiveRetention(t *testing.T) {
	f := newMaintenanceFixture(t)
	_, err := f.cleanup.Purge(context.Background(), 0)
	assert.Error(t, err)
}
