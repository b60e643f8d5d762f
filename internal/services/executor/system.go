package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/metrics"
	"github.com/ternarybob/overseer/internal/models"
)

// HealthSweeper runs one health sweep and returns the non-healthy checks
type HealthSweeper interface {
	RunSweep(ctx context.Context) ([]*models.HealthCheck, error)
}

// Healer attempts repair of non-healthy components
type Healer interface {
	Heal(ctx context.Context, unhealthy []*models.HealthCheck) ([]*models.HealthCheck, error)
}

// Retrier re-dispatches failed jobs
type Retrier interface {
	RetryFailed(ctx context.Context, window time.Duration, maxRetries int) (models.RetryReport, error)
}

// Purger removes expired records
type Purger interface {
	Purge(ctx context.Context, retention time.Duration) (models.PurgeReport, error)
}

// PerformanceReviewer reviews recent workflow runs and raises alerts
type PerformanceReviewer interface {
	Review(ctx context.Context, window time.Duration) (*models.PerformanceReport, error)
}

// SystemSampler reads host utilization
type SystemSampler func(ctx context.Context, diskPath string) (map[string]float64, error)

// SystemExecutor runs the monitoring and maintenance job types
type SystemExecutor struct {
	monitor      HealthSweeper
	healer       Healer
	retrier      Retrier
	purger       Purger
	reviewer     PerformanceReviewer
	sampler      SystemSampler
	config       *common.Config
	clock        common.Clock
	eventService interfaces.EventService
	logger       arbor.ILogger
}

var _ interfaces.JobExecutor = (*SystemExecutor)(nil)

// NewSystemExecutor creates the system executor. healer may be nil when healing is disabled.
func NewSystemExecutor(monitor HealthSweeper, healer Healer, retrier Retrier, purger Purger, reviewer PerformanceReviewer, sampler SystemSampler, config *common.Config, clk common.Clock, eventService interfaces.EventService, logger arbor.ILogger) *SystemExecutor {
	if sampler == nil {
		sampler = metrics.SampleSystem
	}
	return &SystemExecutor{
		monitor:      monitor,
		healer:       healer,
		retrier:      retrier,
		purger:       purger,
		reviewer:     reviewer,
		sampler:      sampler,
		config:       config,
		clock:        clk,
		eventService: eventService,
		logger:       logger,
	}
}

// JobTypes lists the job types this executor handles
func (e *SystemExecutor) JobTypes() []string {
	return []string{common.JobTypeHealthCheck, common.JobTypeSystemMetrics, common.JobTypeWorkflowPerformance, common.JobTypeRetryFailed, common.JobTypeCleanup}
}

// Execute dispatches to the system task for jobType
func (e *SystemExecutor) Execute(ctx context.Context, jobType string, params map[string]interface{}) (int, error) {
	switch jobType {
	case common.JobTypeHealthCheck:
		return e.healthCheck(ctx)
	case common.JobTypeSystemMetrics:
		return e.sampleSystem(ctx)
	case common.JobTypeWorkflowPerformance:
		return e.reviewPerformance(ctx, params)
	case common.JobTypeRetryFailed:
		return e.retryFailed(ctx, params)
	case common.JobTypeCleanup:
		return e.cleanup(ctx, params)
	default:
		return 0, fmt.Errorf("system executor cannot run job type %s", jobType)
	}
}

// healthCheck sweeps every component and heals what is not healthy.
// The result count is the number of components that remain unresolved.
func (e *SystemExecutor) healthCheck(ctx context.Context) (int, error) {
	unhealthy, err := e.monitor.RunSweep(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Health sweep finished with errors")
	}
	if len(unhealthy) == 0 || e.healer == nil || !e.config.Healing.Enabled {
		return len(unhealthy), nil
	}

	unresolved, healErr := e.healer.Heal(ctx, unhealthy)
	if healErr != nil {
		return len(unresolved), fmt.Errorf("healing: %w", healErr)
	}
	return len(unresolved), nil
}

func (e *SystemExecutor) sampleSystem(ctx context.Context) (int, error) {
	sample, err := e.sampler(ctx, e.diskPath())
	if err != nil {
		return 0, fmt.Errorf("system metrics: %w", err)
	}
	metrics.RecordSystemSample(sample)

	payload := map[string]interface{}{
		"timestamp": e.clock.Now().Format(time.RFC3339),
	}
	for resource, value := range sample {
		payload[resource] = value
	}

	e.logger.Info().
		Float64("cpu", sample[metrics.ResourceCPU]).
		Float64("memory", sample[metrics.ResourceMemory]).
		Float64("disk", sample[metrics.ResourceDisk]).
		Msg("System metrics sampled")

	if e.eventService != nil {
		if err := e.eventService.Publish(ctx, interfaces.Event{Type: interfaces.EventSystemMetricsTaken, Payload: payload}); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to publish system metrics event")
		}
	}
	return len(sample), nil
}

// reviewPerformance counts the alerts raised over the review window
func (e *SystemExecutor) reviewPerformance(ctx context.Context, params map[string]interface{}) (int, error) {
	if e.reviewer == nil {
		return 0, fmt.Errorf("workflow performance review is not configured")
	}
	window := durationParam(params, "window", e.config.Performance.WindowDuration())
	report, err := e.reviewer.Review(ctx, window)
	if err != nil {
		return 0, fmt.Errorf("performance review: %w", err)
	}
	return len(report.Alerts), nil
}

func (e *SystemExecutor) retryFailed(ctx context.Context, params map[string]interface{}) (int, error) {
	window := durationParam(params, "window", e.config.Retry.WindowDuration())
	maxRetries := e.config.Retry.MaxRetries
	if n, ok := toInt(params["max_retries"]); ok && n >= 0 {
		maxRetries = n
	}

	report, err := e.retrier.RetryFailed(ctx, window, maxRetries)
	return len(report.Retried), err
}

func (e *SystemExecutor) cleanup(ctx context.Context, params map[string]interface{}) (int, error) {
	retention := durationParam(params, "retention", e.config.Cleanup.RetentionWindow())
	report, err := e.purger.Purge(ctx, retention)
	return report.Total(), err
}

// diskPath is the first target of the resources component, or the root volume
func (e *SystemExecutor) diskPath() string {
	for _, c := range e.config.Health.Components {
		if c.Probe == "resources" && len(c.Targets) > 0 {
			return c.Targets[0]
		}
	}
	return "/"
}

func durationParam(params map[string]interface{}, key string, def time.Duration) time.Duration {
	s, ok := params[key].(string)
	if !ok {
		return def
	}
	return common.DurationOr(s, def)
}
