// -----------------------------------------------------------------------
// Healing Engine - remediation, cooldown and recheck cycles
// -----------------------------------------------------------------------

package healing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/metrics"
	"github.com/ternarybob/overseer/internal/models"
)

// writeTimeout bounds the writes that close out a healing run
const writeTimeout = 30 * time.Second

// ActionNone is recorded when a component has no registered action
const ActionNone = "none"

// Rechecker probes a single component again. *health.Monitor satisfies it.
type Rechecker interface {
	Check(ctx context.Context, sweepID, component string) *models.HealthCheck
}

// Engine runs bounded remediation cycles over the non-healthy components of one sweep
type Engine struct {
	registry     *Registry
	rechecker    Rechecker
	checks       interfaces.HealthStorage
	clock        common.Clock
	cooldown     time.Duration
	maxCycles    int
	eventService interfaces.EventService
	logger       arbor.ILogger
}

// NewEngine creates a healing engine. eventService may be nil.
func NewEngine(registry *Registry, rechecker Rechecker, checks interfaces.HealthStorage, clk common.Clock, config common.HealingConfig, eventService interfaces.EventService, logger arbor.ILogger) *Engine {
	maxCycles := config.MaxCycles
	if maxCycles < 1 {
		maxCycles = 1
	}
	return &Engine{
		registry:     registry,
		rechecker:    rechecker,
		checks:       checks,
		clock:        clk,
		cooldown:     config.CooldownDuration(),
		maxCycles:    maxCycles,
		eventService: eventService,
		logger:       logger,
	}
}

// pending is one component still being healed
type pending struct {
	original *models.HealthCheck
	latest   *models.HealthCheck
	actions  []string
}

// Heal remediates the given checks and returns the unresolved subset. Every attempt is
// persisted; resolved components get a fixApplied check and exhausted ones an unresolved check.
// Cancellation during cooldown ends healing with the remaining components unresolved.
func (e *Engine) Heal(ctx context.Context, unhealthy []*models.HealthCheck) ([]*models.HealthCheck, error) {
	if len(unhealthy) == 0 {
		return nil, nil
	}

	sweepID := unhealthy[0].SweepID
	remaining := make([]*pending, 0, len(unhealthy))
	for _, check := range unhealthy {
		remaining = append(remaining, &pending{original: check, latest: check})
	}

	e.logger.Info().
		Str("sweep_id", sweepID).
		Int("components", len(remaining)).
		Int("max_cycles", e.maxCycles).
		Msg("Healing started")

	var (
		errs      []error
		cycles    int
		cancelled bool
	)

	for cycle := 1; cycle <= e.maxCycles && len(remaining) > 0; cycle++ {
		e.logger.Info().
			Str("sweep_id", sweepID).
			Int("cycle", cycle).
			Int("components", len(remaining)).
			Msg("Healing cycle")

		actionTaken := make(map[string]string, len(remaining))
		actionErr := make(map[string]string, len(remaining))
		for _, p := range remaining {
			name, err := e.remediate(ctx, p.original.Component)
			actionTaken[p.original.Component] = name
			p.actions = append(p.actions, name)
			if err != nil {
				actionErr[p.original.Component] = err.Error()
			}
		}

		if err := common.Sleep(ctx, e.clock, e.cooldown); err != nil {
			e.logger.Warn().
				Str("sweep_id", sweepID).
				Int("cycle", cycle).
				Msg("Healing cancelled during cooldown")
			cancelled = true
			break
		}
		cycles = cycle

		still := remaining[:0]
		for _, p := range remaining {
			component := p.original.Component
			recheck := e.rechecker.Check(ctx, sweepID, component)
			succeeded := recheck.IsHealthy()

			attempt := &models.HealingAttempt{
				ID:          uuid.New().String(),
				SweepID:     sweepID,
				Component:   component,
				CycleNumber: cycle,
				ActionTaken: actionTaken[component],
				ActionError: actionErr[component],
				Succeeded:   succeeded,
				RecheckedAt: e.clock.Now(),
			}
			if err := e.checks.SaveHealingAttempt(ctx, attempt); err != nil {
				errs = append(errs, fmt.Errorf("healing attempt for %s: %w", component, err))
			}

			if succeeded {
				recheck.FixApplied = true
				recheck.FixDetails = fmt.Sprintf("%s (cycle %d)", actionTaken[component], cycle)
				if err := e.saveCheck(recheck); err != nil {
					errs = append(errs, err)
				}
				metrics.ComponentStatus.WithLabelValues(component).Set(float64(recheck.Status.Severity()))
				metrics.HealingOutcomes.WithLabelValues(component, "resolved").Inc()
				e.logger.Info().
					Str("component", component).
					Int("cycle", cycle).
					Str("action", actionTaken[component]).
					Msg("Component healed")
				continue
			}

			p.latest = recheck
			still = append(still, p)
		}
		remaining = still
	}

	unresolved := make([]*models.HealthCheck, 0, len(remaining))
	for _, p := range remaining {
		check := e.unresolvedCheck(p, cycles, cancelled)
		if err := e.saveCheck(check); err != nil {
			errs = append(errs, err)
		}
		metrics.ComponentStatus.WithLabelValues(check.Component).Set(float64(check.Status.Severity()))
		metrics.HealingOutcomes.WithLabelValues(check.Component, "unresolved").Inc()
		e.logger.Error().
			Str("component", check.Component).
			Str("status", string(check.Status)).
			Int("cycles", cycles).
			Msg("Component unresolved: manual intervention required")
		unresolved = append(unresolved, check)
	}

	e.logger.Info().
		Str("sweep_id", sweepID).
		Int("cycles", cycles).
		Int("healed", len(unhealthy)-len(unresolved)).
		Int("unresolved", len(unresolved)).
		Msg("Healing completed")

	e.publish(sweepID, cycles, len(unhealthy)-len(unresolved), unresolved)

	return unresolved, errors.Join(errs...)
}

// remediate runs the component's action. A panicking action counts as a failed action.
func (e *Engine) remediate(ctx context.Context, component string) (string, error) {
	action, ok := e.registry.Lookup(component)
	if !ok {
		return ActionNone, nil
	}

	err := common.SafeCall("remediate:"+component, func() error {
		return action.Remediate(ctx, component)
	})
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("component", component).
			Str("action", action.Name()).
			Msg("Remediation action failed")
	}
	return action.Name(), err
}

func (e *Engine) unresolvedCheck(p *pending, cycles int, cancelled bool) *models.HealthCheck {
	details := fmt.Sprintf("unresolved after %d healing cycles: manual intervention required", cycles)
	if cancelled {
		details = fmt.Sprintf("unresolved after %d healing cycles: healing cancelled", cycles)
	}
	if p.latest.Details != "" {
		details += " (" + p.latest.Details + ")"
	}

	check := models.NewHealthCheck(p.original.SweepID, p.original.Component, p.latest.Status, details, e.clock.Now())
	check.ErrorCount = p.original.ErrorCount
	check.Unresolved = true
	check.Metrics = p.latest.Metrics
	if len(p.actions) > 0 {
		check.FixDetails = fmt.Sprintf("attempted: %v", p.actions)
	}
	return check
}

// saveCheck writes with a fresh context so closing records land even when healing was cancelled
func (e *Engine) saveCheck(check *models.HealthCheck) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := e.checks.SaveHealthCheck(ctx, check); err != nil {
		return fmt.Errorf("health check for %s: %w", check.Component, err)
	}
	return nil
}

func (e *Engine) publish(sweepID string, cycles, healed int, unresolved []*models.HealthCheck) {
	if e.eventService == nil {
		return
	}

	names := make([]string, 0, len(unresolved))
	for _, c := range unresolved {
		names = append(names, c.Component)
	}

	event := interfaces.Event{
		Type: interfaces.EventHealingDone,
		Payload: map[string]interface{}{
			"sweep_id":   sweepID,
			"cycles":     cycles,
			"healed":     healed,
			"unresolved": names,
			"timestamp":  e.clock.Now().Format(time.RFC3339),
		},
	}
	if err := e.eventService.Publish(context.Background(), event); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to publish healing event")
	}
}
