package scheduler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/metrics"
	"github.com/ternarybob/overseer/internal/models"
)

// stateWriteTimeout bounds the write that records a fire decision
const stateWriteTimeout = 10 * time.Second

// triggerEntry represents a registered trigger with its compiled schedule
type triggerEntry struct {
	trigger  models.Trigger
	schedule cron.Schedule
	state    models.TriggerState
}

// schedulerState is owned by the scheduler; every field is guarded by Service.mu
type schedulerState struct {
	triggers map[string]*triggerEntry
	order    []string
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// Service evaluates triggers on a clock-driven loop and submits due jobs
type Service struct {
	submitter    interfaces.JobSubmitter
	states       interfaces.TriggerStorage
	eventService interfaces.EventService
	clock        common.Clock
	resolution   time.Duration
	defaultGrace int
	validate     *validator.Validate
	logger       arbor.ILogger

	mu    sync.Mutex
	state schedulerState
}

// NewService creates a scheduler. eventService may be nil.
func NewService(submitter interfaces.JobSubmitter, states interfaces.TriggerStorage, eventService interfaces.EventService, clk common.Clock, config common.SchedulerConfig, logger arbor.ILogger) *Service {
	return &Service{
		submitter:    submitter,
		states:       states,
		eventService: eventService,
		clock:        clk,
		resolution:   config.Tick(),
		defaultGrace: config.DefaultMisfireGrace,
		validate:     validator.New(),
		logger:       logger,
		state: schedulerState{
			triggers: make(map[string]*triggerEntry),
		},
	}
}

// RegisterTrigger adds a trigger. Registering an identical definition again is a no-op;
// a different definition under an existing ID returns ErrDuplicateTrigger.
func (s *Service) RegisterTrigger(trigger models.Trigger) error {
	if trigger.MisfireGraceSeconds == 0 {
		trigger.MisfireGraceSeconds = s.defaultGrace
	}
	if err := common.ValidateTrigger(s.validate, trigger); err != nil {
		return fmt.Errorf("invalid trigger %s: %w", trigger.ID, err)
	}

	schedule, err := compileSchedule(trigger)
	if err != nil {
		return fmt.Errorf("invalid trigger %s: %w", trigger.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.state.triggers[trigger.ID]; ok {
		if reflect.DeepEqual(existing.trigger, trigger) {
			s.logger.Debug().Str("trigger_id", trigger.ID).Msg("Trigger already registered")
			return nil
		}
		return fmt.Errorf("trigger %s: %w", trigger.ID, interfaces.ErrDuplicateTrigger)
	}

	now := s.clock.Now()
	s.state.triggers[trigger.ID] = &triggerEntry{
		trigger:  trigger,
		schedule: schedule,
		state: models.TriggerState{
			TriggerID:  trigger.ID,
			JobType:    trigger.JobType,
			NextFireAt: schedule.Next(now),
			UpdatedAt:  now,
		},
	}
	s.state.order = append(s.state.order, trigger.ID)

	s.logger.Info().
		Str("trigger_id", trigger.ID).
		Str("job_type", trigger.JobType).
		Str("kind", string(trigger.Kind)).
		Str("schedule", DescribeSchedule(trigger)).
		Bool("enabled", trigger.Enabled).
		Msg("Trigger registered")

	return nil
}

// Start restores persisted trigger state and starts the evaluation loop
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.running {
		return fmt.Errorf("scheduler already running")
	}

	if err := s.restore(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to restore trigger state, next fires computed from now")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.state.running = true
	s.state.cancel = cancel
	s.state.done = done

	ticker := s.clock.Ticker(s.resolution)
	go s.loop(loopCtx, ticker, done)

	s.logger.Info().
		Int("triggers", len(s.state.order)).
		Dur("resolution", s.resolution).
		Msg("Scheduler started")

	return nil
}

// Stop cancels the evaluation loop and waits for it to exit. Jobs already submitted are untouched.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.state.running {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.state.cancel, s.state.done
	s.state.running = false
	s.state.cancel = nil
	s.state.done = nil
	s.mu.Unlock()

	cancel()
	<-done

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning reports whether the evaluation loop is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.running
}

// Triggers returns every registered trigger with its bookkeeping, ordered by ID
func (s *Service) Triggers() []models.TriggerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]models.TriggerStatus, 0, len(s.state.triggers))
	for _, entry := range s.state.triggers {
		statuses = append(statuses, models.TriggerStatus{
			Trigger: entry.trigger,
			State:   entry.state,
		})
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Trigger.ID < statuses[j].Trigger.ID
	})
	return statuses
}

// restore derives each trigger's next fire time from its last persisted decision, so a
// restart does not fire a slot that was already handled. Caller holds s.mu.
func (s *Service) restore(ctx context.Context) error {
	persisted, err := s.states.ListTriggerStates(ctx)
	if err != nil {
		return err
	}

	byID := make(map[string]*models.TriggerState, len(persisted))
	for _, state := range persisted {
		byID[state.TriggerID] = state
	}

	now := s.clock.Now()
	for _, id := range s.state.order {
		entry := s.state.triggers[id]
		entry.state.NextFireAt = entry.schedule.Next(now)

		saved, ok := byID[id]
		if !ok || saved.JobType != entry.trigger.JobType {
			continue
		}

		base := saved.UpdatedAt
		if saved.LastFiredAt != nil && saved.LastFiredAt.After(base) {
			base = *saved.LastFiredAt
		}

		entry.state.LastFiredAt = saved.LastFiredAt
		entry.state.LastJobID = saved.LastJobID
		entry.state.LastDecision = saved.LastDecision
		entry.state.UpdatedAt = saved.UpdatedAt
		if !base.IsZero() {
			entry.state.NextFireAt = entry.schedule.Next(base)
		}

		s.logger.Debug().
			Str("trigger_id", id).
			Str("next_fire_at", entry.state.NextFireAt.Format(time.RFC3339)).
			Msg("Trigger state restored")
	}
	return nil
}

func (s *Service) loop(ctx context.Context, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evaluate(ctx, s.clock.Now())
		}
	}
}

// evaluate fires every enabled trigger whose next fire time is at or before now
func (s *Service) evaluate(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]*triggerEntry, 0)
	for _, id := range s.state.order {
		entry := s.state.triggers[id]
		if !entry.trigger.Enabled || now.Before(entry.state.NextFireAt) {
			continue
		}
		due = append(due, entry)
	}
	s.mu.Unlock()

	for _, entry := range due {
		if ctx.Err() != nil {
			return
		}
		s.fire(ctx, entry, now)
	}
}

// fire decides what to do with one due trigger and records the decision.
// A panic is confined to this trigger.
func (s *Service) fire(ctx context.Context, entry *triggerEntry, now time.Time) {
	var (
		decision models.FireDecision
		job      *models.Job
	)

	err := common.SafeCall("trigger:"+entry.trigger.ID, func() error {
		var err error
		decision, job, err = s.decide(ctx, entry, now)
		return err
	})
	if err != nil {
		decision = models.FireDecisionError
		var panicErr *common.PanicError
		if errors.As(err, &panicErr) {
			s.logger.Error().
				Str("trigger_id", entry.trigger.ID).
				Str("panic", fmt.Sprintf("%v", panicErr.Value)).
				Str("stack", panicErr.Stack).
				Msg("Recovered from panic while firing trigger")
		} else {
			s.logger.Error().
				Err(err).
				Str("trigger_id", entry.trigger.ID).
				Str("job_type", entry.trigger.JobType).
				Msg("Trigger fire failed")
		}
	}

	s.record(entry, decision, job, now)
}

func (s *Service) decide(ctx context.Context, entry *triggerEntry, now time.Time) (models.FireDecision, *models.Job, error) {
	trigger := entry.trigger

	active, err := s.submitter.IsActive(ctx, trigger.JobType)
	if err != nil {
		return models.FireDecisionError, nil, fmt.Errorf("failed to check active jobs: %w", err)
	}
	if active {
		return s.overlapDecision(trigger), nil, nil
	}

	s.mu.Lock()
	scheduledFor := entry.state.NextFireAt
	s.mu.Unlock()

	lateness := now.Sub(scheduledFor)
	if lateness > trigger.MisfireGrace() {
		s.logger.Warn().
			Str("trigger_id", trigger.ID).
			Str("job_type", trigger.JobType).
			Dur("lateness", lateness).
			Dur("grace", trigger.MisfireGrace()).
			Msg("Trigger misfired: fire dropped")
		return models.FireDecisionMisfired, nil, nil
	}

	job, err := s.submitter.Submit(ctx, models.JobRequest{
		JobType:    trigger.JobType,
		Parameters: trigger.Parameters,
		Source:     models.JobSourceTrigger,
		TriggerID:  trigger.ID,
	})
	if errors.Is(err, interfaces.ErrJobActive) {
		return s.overlapDecision(trigger), nil, nil
	}
	if err != nil {
		return models.FireDecisionError, nil, err
	}

	s.logger.Info().
		Str("trigger_id", trigger.ID).
		Str("job_type", trigger.JobType).
		Str("job_id", job.ID).
		Msg("Trigger fired")

	return models.FireDecisionFired, job, nil
}

func (s *Service) overlapDecision(trigger models.Trigger) models.FireDecision {
	if trigger.Coalesce {
		s.logger.Info().
			Str("trigger_id", trigger.ID).
			Str("job_type", trigger.JobType).
			Msg("Trigger coalesced: job of this type still active")
		return models.FireDecisionCoalesced
	}
	s.logger.Warn().
		Str("trigger_id", trigger.ID).
		Str("job_type", trigger.JobType).
		Int("max_instances", trigger.MaxInstances).
		Msg("Trigger skipped: max instances reached")
	return models.FireDecisionSkipped
}

// record stores the decision and moves the trigger to its next slot after now,
// so fires missed while paused collapse into nothing
func (s *Service) record(entry *triggerEntry, decision models.FireDecision, job *models.Job, now time.Time) {
	s.mu.Lock()
	entry.state.LastDecision = decision
	entry.state.UpdatedAt = now
	entry.state.NextFireAt = entry.schedule.Next(now)
	if job != nil {
		firedAt := now
		entry.state.LastFiredAt = &firedAt
		entry.state.LastJobID = job.ID
	}
	snapshot := entry.state
	s.mu.Unlock()

	metrics.TriggerDecisions.WithLabelValues(entry.trigger.ID, string(decision)).Inc()

	writeCtx, cancel := context.WithTimeout(context.Background(), stateWriteTimeout)
	defer cancel()
	if err := s.states.SaveTriggerState(writeCtx, &snapshot); err != nil {
		s.logger.Error().
			Err(err).
			Str("trigger_id", entry.trigger.ID).
			Msg("Failed to persist trigger state")
	}

	if decision == models.FireDecisionFired && s.eventService != nil {
		event := interfaces.Event{
			Type: interfaces.EventTriggerFired,
			Payload: map[string]interface{}{
				"trigger_id": entry.trigger.ID,
				"job_type":   entry.trigger.JobType,
				"job_id":     job.ID,
				"next_fire":  snapshot.NextFireAt.Format(time.RFC3339),
				"timestamp":  now.Format(time.RFC3339),
			},
		}
		if err := s.eventService.Publish(context.Background(), event); err != nil {
			s.logger.Warn().Err(err).Str("trigger_id", entry.trigger.ID).Msg("Failed to publish trigger event")
		}
	}
}

func compileSchedule(trigger models.Trigger) (cron.Schedule, error) {
	switch trigger.Kind {
	case models.TriggerKindInterval:
		if trigger.IntervalSeconds <= 0 {
			return nil, fmt.Errorf("interval_seconds must be positive")
		}
		return common.EverySchedule(time.Duration(trigger.IntervalSeconds) * time.Second), nil
	case models.TriggerKindCron:
		return common.CronParser.Parse(trigger.CronExpression)
	default:
		return nil, fmt.Errorf("unknown trigger kind %q", trigger.Kind)
	}
}

// DescribeSchedule renders a trigger's schedule for logs and status output
func DescribeSchedule(trigger models.Trigger) string {
	if trigger.Kind == models.TriggerKindCron {
		return "cron " + trigger.CronExpression
	}
	return "every " + (time.Duration(trigger.IntervalSeconds) * time.Second).String()
}
