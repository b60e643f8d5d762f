package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
	"github.com/ternarybob/overseer/internal/storage/badger"
)

// fakeSubmitter records submissions and lets tests mark job types active
type fakeSubmitter struct {
	mu        sync.Mutex
	active    map[string]bool
	submitted []models.JobRequest
	panicOn   string
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{active: make(map[string]bool)}
}

func (f *fakeSubmitter) IsActive(ctx context.Context, jobType string) (bool, error) {
	if jobType == f.panicOn {
		panic("active check exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[jobType], nil
}

func (f *fakeSubmitter) Submit(ctx context.Context, req models.JobRequest) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active[req.JobType] {
		return nil, fmt.Errorf("job type %s: %w", req.JobType, interfaces.ErrJobActive)
	}
	f.active[req.JobType] = true
	f.submitted = append(f.submitted, req)
	return &models.Job{ID: uuid.New().String(), JobType: req.JobType, TriggerID: req.TriggerID}, nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func (f *fakeSubmitter) finish(jobType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[jobType] = false
}

type schedulerFixture struct {
	service   *Service
	submitter *fakeSubmitter
	storage   interfaces.StorageManager
	clock     *clock.Mock
}

func newFixture(t *testing.T) *schedulerFixture {
	t.Helper()

	storage, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	f := &schedulerFixture{
		submitter: newFakeSubmitter(),
		storage:   storage,
		clock:     clock.NewMock(),
	}
	f.service = f.newService()
	return f
}

func (f *schedulerFixture) newService() *Service {
	config := common.SchedulerConfig{Enabled: true, Resolution: "1s", DefaultMisfireGrace: 300}
	return NewService(f.submitter, f.storage.TriggerStorage(), nil, f.clock, config, arbor.NewLogger())
}

func intervalTrigger(id, jobType string, seconds int) models.Trigger {
	return models.Trigger{
		ID:              id,
		JobType:         jobType,
		Kind:            models.TriggerKindInterval,
		IntervalSeconds: seconds,
		Coalesce:        true,
		MaxInstances:    1,
		Enabled:         true,
	}
}

func (f *schedulerFixture) status(t *testing.T, id string) models.TriggerStatus {
	t.Helper()
	for _, s := range f.service.Triggers() {
		if s.Trigger.ID == id {
			return s
		}
	}
	t.Fatalf("trigger %s not registered", id)
	return models.TriggerStatus{}
}

func TestScheduler_IntervalTriggerFiresWhenDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := f.clock.Now()

	trigger := intervalTrigger("maps_interval", "google_maps_scraper", 60)
	trigger.Parameters = map[string]interface{}{"city": "Berlin"}
	require.NoError(t, f.service.RegisterTrigger(trigger))

	f.service.evaluate(ctx, start.Add(30*time.Second))
	assert.Equal(t, 0, f.submitter.count(), "not due yet")

	f.clock.Add(60 * time.Second)
	f.service.evaluate(ctx, f.clock.Now())

	require.Equal(t, 1, f.submitter.count())
	req := f.submitter.submitted[0]
	assert.Equal(t, "google_maps_scraper", req.JobType)
	assert.Equal(t, "maps_interval", req.TriggerID)
	assert.Equal(t, models.JobSourceTrigger, req.Source)
	assert.Equal(t, "Berlin", req.Parameters["city"])

	status := f.status(t, "maps_interval")
	assert.Equal(t, models.FireDecisionFired, status.State.LastDecision)
	require.NotNil(t, status.State.LastFiredAt)
	assert.True(t, status.State.LastFiredAt.Equal(start.Add(60*time.Second)))
	assert.True(t, status.State.NextFireAt.Equal(start.Add(120*time.Second)))

	saved, err := f.storage.TriggerStorage().GetTriggerState(ctx, "maps_interval")
	require.NoError(t, err)
	assert.Equal(t, models.FireDecisionFired, saved.LastDecision)
	assert.Equal(t, status.State.LastJobID, saved.LastJobID)
}

func TestScheduler_CoalescesWhileJobActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.RegisterTrigger(intervalTrigger("maps_interval", "google_maps_scraper", 60)))
	f.submitter.active["google_maps_scraper"] = true

	f.clock.Add(60 * time.Second)
	f.service.evaluate(ctx, f.clock.Now())

	assert.Equal(t, 0, f.submitter.count())
	status := f.status(t, "maps_interval")
	assert.Equal(t, models.FireDecisionCoalesced, status.State.LastDecision)
	assert.Nil(t, status.State.LastFiredAt)
	assert.True(t, status.State.NextFireAt.Equal(f.clock.Now().Add(60*time.Second)))

	// Once the previous run finishes the next slot fires normally
	f.submitter.finish("google_maps_scraper")
	f.clock.Add(60 * time.Second)
	f.service.evaluate(ctx, f.clock.Now())
	assert.Equal(t, 1, f.submitter.count())
}

func TestScheduler_SkipsWhenNotCoalescing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trigger := intervalTrigger("finance_interval", "finance_data_collector", 60)
	trigger.Coalesce = false
	require.NoError(t, f.service.RegisterTrigger(trigger))
	f.submitter.active["finance_data_collector"] = true

	f.clock.Add(60 * time.Second)
	f.service.evaluate(ctx, f.clock.Now())

	assert.Equal(t, 0, f.submitter.count())
	assert.Equal(t, models.FireDecisionSkipped, f.status(t, "finance_interval").State.LastDecision)
}

func TestScheduler_DropsMisfiredSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trigger := intervalTrigger("events_interval", "event_scout", 60)
	trigger.MisfireGraceSeconds = 10
	require.NoError(t, f.service.RegisterTrigger(trigger))

	// Due at 60s, evaluated 30s late
	f.clock.Add(90 * time.Second)
	f.service.evaluate(ctx, f.clock.Now())

	assert.Equal(t, 0, f.submitter.count())
	status := f.status(t, "events_interval")
	assert.Equal(t, models.FireDecisionMisfired, status.State.LastDecision)
	assert.True(t, status.State.NextFireAt.Equal(f.clock.Now().Add(60*time.Second)))
}

func TestScheduler_MissedFiresCollapse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trigger := intervalTrigger("seo_interval", "seo_opportunity_finder", 60)
	trigger.MisfireGraceSeconds = 3600
	require.NoError(t, f.service.RegisterTrigger(trigger))

	// Ten slots pass while the loop is paused
	f.clock.Add(10*time.Minute + 5*time.Second)
	now := f.clock.Now()
	f.service.evaluate(ctx, now)
	f.submitter.finish("seo_opportunity_finder")
	f.service.evaluate(ctx, now)

	assert.Equal(t, 1, f.submitter.count())
	assert.True(t, f.status(t, "seo_interval").State.NextFireAt.After(now))
}

func TestScheduler_DisabledTriggerNeverFires(t *testing.T) {
	f := newFixture(t)

	trigger := intervalTrigger("vehicles_interval", "vehicle_market_intel", 60)
	trigger.Enabled = false
	require.NoError(t, f.service.RegisterTrigger(trigger))

	f.clock.Add(5 * time.Minute)
	f.service.evaluate(context.Background(), f.clock.Now())

	assert.Equal(t, 0, f.submitter.count())
	assert.Empty(t, f.status(t, "vehicles_interval").State.LastDecision)
}

func TestScheduler_RegisterIsIdempotent(t *testing.T) {
	f := newFixture(t)

	trigger := intervalTrigger("maps_interval", "google_maps_scraper", 60)
	require.NoError(t, f.service.RegisterTrigger(trigger))
	require.NoError(t, f.service.RegisterTrigger(trigger))
	assert.Len(t, f.service.Triggers(), 1)

	changed := trigger
	changed.IntervalSeconds = 120
	err := f.service.RegisterTrigger(changed)
	assert.ErrorIs(t, err, interfaces.ErrDuplicateTrigger)
	assert.Equal(t, 60, f.status(t, "maps_interval").Trigger.IntervalSeconds)
}

func TestScheduler_RegisterRejectsInvalidTriggers(t *testing.T) {
	f := newFixture(t)

	bad := models.Trigger{ID: "bad_cron", JobType: "event_scout", Kind: models.TriggerKindCron, CronExpression: "61 * * * *", Enabled: true}
	assert.Error(t, f.service.RegisterTrigger(bad))

	missing := intervalTrigger("", "event_scout", 60)
	assert.Error(t, f.service.RegisterTrigger(missing))

	assert.Empty(t, f.service.Triggers())
}

func TestScheduler_AppliesDefaultMisfireGrace(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.service.RegisterTrigger(intervalTrigger("maps_interval", "google_maps_scraper", 60)))
	assert.Equal(t, 300, f.status(t, "maps_interval").Trigger.MisfireGraceSeconds)
}

func TestScheduler_CronTriggerNextFire(t *testing.T) {
	f := newFixture(t)

	trigger := models.Trigger{
		ID:             "cleanup_cron",
		JobType:        "job_market_intelligence",
		Kind:           models.TriggerKindCron,
		CronExpression: "0 2 * * *",
		Coalesce:       true,
		MaxInstances:   1,
		Enabled:        true,
	}
	require.NoError(t, f.service.RegisterTrigger(trigger))

	next := f.status(t, "cleanup_cron").State.NextFireAt
	assert.Equal(t, 2, next.Hour())
	assert.Equal(t, 0, next.Minute())
	assert.True(t, next.After(f.clock.Now()))
	assert.True(t, next.Sub(f.clock.Now()) <= 24*time.Hour)
}

func TestScheduler_RestartDoesNotRefireHandledSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := f.clock.Now()

	trigger := intervalTrigger("maps_interval", "google_maps_scraper", 60)
	require.NoError(t, f.service.RegisterTrigger(trigger))

	f.clock.Add(60 * time.Second)
	f.service.evaluate(ctx, f.clock.Now())
	require.Equal(t, 1, f.submitter.count())
	f.submitter.finish("google_maps_scraper")

	// A fresh process comes up 30s later
	f.clock.Add(30 * time.Second)
	restarted := f.newService()
	require.NoError(t, restarted.RegisterTrigger(trigger))
	require.NoError(t, restarted.Start(ctx))
	require.NoError(t, restarted.Stop())

	statuses := restarted.Triggers()
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].State.NextFireAt.Equal(start.Add(120*time.Second)))
	assert.Equal(t, models.FireDecisionFired, statuses[0].State.LastDecision)

	restarted.evaluate(ctx, f.clock.Now())
	assert.Equal(t, 1, f.submitter.count(), "slot already fired before restart")
}

func TestScheduler_PanicIsolatedToTrigger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.RegisterTrigger(intervalTrigger("broken_interval", "linkedin_extractor", 60)))
	require.NoError(t, f.service.RegisterTrigger(intervalTrigger("maps_interval", "google_maps_scraper", 60)))
	f.submitter.panicOn = "linkedin_extractor"

	f.clock.Add(60 * time.Second)
	assert.NotPanics(t, func() { f.service.evaluate(ctx, f.clock.Now()) })

	assert.Equal(t, 1, f.submitter.count())
	assert.Equal(t, "google_maps_scraper", f.submitter.submitted[0].JobType)

	broken := f.status(t, "broken_interval")
	assert.Equal(t, models.FireDecisionError, broken.State.LastDecision)
	assert.True(t, broken.State.NextFireAt.After(f.clock.Now()))
}

func TestScheduler_StartTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.service.Start(ctx))
	assert.True(t, f.service.IsRunning())
	assert.Error(t, f.service.Start(ctx))

	require.NoError(t, f.service.Stop())
	assert.False(t, f.service.IsRunning())
	require.NoError(t, f.service.Stop())
}

func TestDescribeSchedule(t *testing.T) {
	assert.Equal(t, "every 1h0m0s", DescribeSchedule(intervalTrigger("a", "b", 3600)))
	assert.Equal(t, "cron 0 9 * * *", DescribeSchedule(models.Trigger{Kind: models.TriggerKindCron, CronExpression: "0 9 * * *"}))
}
