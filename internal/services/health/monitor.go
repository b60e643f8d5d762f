// -----------------------------------------------------------------------
// Health Monitor - probes every component and records one check per sweep
// -----------------------------------------------------------------------

package health

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

// Monitor runs health sweeps over a fixed component list
type Monitor struct {
	prober       interfaces.ComponentProber
	checks       interfaces.HealthStorage
	classifier   *Classifier
	components   []string
	timeout      time.Duration
	clock        common.Clock
	eventService interfaces.EventService
	logger       arbor.ILogger
}

// NewMonitor creates a health monitor. eventService may be nil.
func NewMonitor(prober interfaces.ComponentProber, checks interfaces.HealthStorage, classifier *Classifier, components []string, timeout time.Duration, clk common.Clock, eventService interfaces.EventService, logger arbor.ILogger) *Monitor {
	return &Monitor{
		prober:       prober,
		checks:       checks,
		classifier:   classifier,
		components:   append([]string(nil), components...),
		timeout:      timeout,
		clock:        clk,
		eventService: eventService,
		logger:       logger,
	}
}

// Components returns the registered component names in sweep order
func (m *Monitor) Components() []string {
	return append([]string(nil), m.components...)
}

// RunSweep probes every component in sequence, persists one check each and returns the
// non-healthy subset. A store failure for one component does not stop the sweep.
func (m *Monitor) RunSweep(ctx context.Context) ([]*models.HealthCheck, error) {
	sweepID := uuid.New().String()
	started := m.clock.Now()

	m.logger.Info().
		Str("sweep_id", sweepID).
		Int("components", len(m.components)).
		Msg("Health sweep started")

	var (
		unhealthy []*models.HealthCheck
		errs      []error
	)

	for _, component := range m.components {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		check := m.Check(ctx, sweepID, component)
		if err := m.checks.SaveHealthCheck(ctx, check); err != nil {
			m.logger.Error().Err(err).Str("component", component).Msg("Failed to persist health check")
			errs = append(errs, fmt.Errorf("component %s: %w", component, err))
		}
		metrics.ComponentStatus.WithLabelValues(component).Set(float64(check.Status.Severity()))

		if !check.IsHealthy() {
			unhealthy = append(unhealthy, check)
		}
	}

	m.logger.Info().
		Str("sweep_id", sweepID).
		Int("checked", len(m.components)).
		Int("unhealthy", len(unhealthy)).
		Dur("duration", m.clock.Now().Sub(started)).
		Msg("Health sweep completed")

	m.publish(sweepID, len(m.components), unhealthy)

	return unhealthy, errors.Join(errs...)
}

// Check probes one component and classifies the result without persisting it.
// errorCount continues the run of non-healthy checks stored for the component.
func (m *Monitor) Check(ctx context.Context, sweepID, component string) *models.HealthCheck {
	result, err := m.probe(ctx, component)

	var check *models.HealthCheck
	if err != nil {
		m.logger.Warn().Err(err).Str("component", component).Msg("Probe failed")
		check = models.NewHealthCheck(sweepID, component, models.HealthStatusFailed, "probe error: "+err.Error(), m.clock.Now())
	} else {
		status, details := m.classifier.Classify(component, result)
		check = models.NewHealthCheck(sweepID, component, status, details, m.clock.Now())
		check.Metrics = result.Utilization
	}

	if !check.IsHealthy() {
		check.ErrorCount = m.previousErrorCount(ctx, component) + 1
	}

	m.logger.Debug().
		Str("component", component).
		Str("status", string(check.Status)).
		Int("error_count", check.ErrorCount).
		Msg("Component checked")

	return check
}

// probe calls the prober under the per-probe timeout. A prober that ignores its context
// is abandoned when the timeout expires.
func (m *Monitor) probe(ctx context.Context, component string) (models.ProbeResult, error) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	type outcome struct {
		result models.ProbeResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		var result models.ProbeResult
		err := common.SafeCall("probe:"+component, func() error {
			var err error
			result, err = m.prober.Probe(probeCtx, component)
			return err
		})
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-probeCtx.Done():
		return models.ProbeResult{}, fmt.Errorf("probe timed out after %s: %w", m.timeout, probeCtx.Err())
	}
}

func (m *Monitor) previousErrorCount(ctx context.Context, component string) int {
	latest, err := m.checks.LatestHealthCheck(ctx, component)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			m.logger.Warn().Err(err).Str("component", component).Msg("Failed to read previous health check")
		}
		return 0
	}
	if latest.IsHealthy() {
		return 0
	}
	return latest.ErrorCount
}

func (m *Monitor) publish(sweepID string, checked int, unhealthy []*models.HealthCheck) {
	if m.eventService == nil {
		return
	}

	names := make([]string, 0, len(unhealthy))
	for _, c := range unhealthy {
		names = append(names, c.Component)
	}

	event := interfaces.Event{
		Type: interfaces.EventHealthSweepDone,
		Payload: map[string]interface{}{
			"sweep_id":  sweepID,
			"checked":   checked,
			"unhealthy": names,
			"timestamp": m.clock.Now().Format(time.RFC3339),
		},
	}
	if err := m.eventService.Publish(context.Background(), event); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to publish health sweep event")
	}
}
