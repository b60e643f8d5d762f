// -----------------------------------------------------------------------
// App - composition root for the scheduler, queues, workers and supervisor
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/handlers"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
	"github.com/ternarybob/overseer/internal/queue"
	"github.com/ternarybob/overseer/internal/services/events"
	"github.com/ternarybob/overseer/internal/services/executor"
	"github.com/ternarybob/overseer/internal/services/healing"
	"github.com/ternarybob/overseer/internal/services/health"
	"github.com/ternarybob/overseer/internal/services/jobs"
	"github.com/ternarybob/overseer/internal/services/maintenance"
	"github.com/ternarybob/overseer/internal/services/performance"
	"github.com/ternarybob/overseer/internal/services/probes"
	"github.com/ternarybob/overseer/internal/services/scheduler"
	"github.com/ternarybob/overseer/internal/services/status"
	"github.com/ternarybob/overseer/internal/storage/badger"
	"github.com/ternarybob/overseer/internal/worker"
)

// defaultActionTimeout bounds remediation commands that set no timeout
const defaultActionTimeout = 2 * time.Minute

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	Clock          common.Clock
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService interfaces.EventService

	// Dispatch and execution
	QueueManager *queue.Manager
	Submitter    *jobs.Submitter
	Scheduler    *scheduler.Service
	Pools        []*worker.WorkerPool

	// Supervision
	Monitor        *health.Monitor
	HealingEngine  *healing.Engine
	RetryManager   *maintenance.RetryManager
	CleanupManager *maintenance.CleanupManager
	Performance    *performance.Analyzer

	// Queries and manual entry points
	StatusService *status.Service

	// HTTP handlers
	APIHandler         *handlers.APIHandler
	JobHandler         *handlers.JobHandler
	HealthHandler      *handlers.HealthHandler
	StatsHandler       *handlers.StatsHandler
	MaintenanceHandler *handlers.MaintenanceHandler
	WSHandler          *handlers.WebSocketHandler

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	loops   *errgroup.Group
}

// New initializes the application with the wall clock
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	return NewWithClock(cfg, logger, common.NewClock())
}

// NewWithClock initializes the application on clk. Nothing runs until Start.
func NewWithClock(cfg *common.Config, logger arbor.ILogger, clk common.Clock) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		Clock:  clk,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Int("triggers", len(cfg.Triggers)).
		Int("components", len(cfg.Health.Components)).
		Msg("Application initialization complete")

	return app, nil
}

func (a *App) initDatabase() error {
	storageManager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.StorageManager = storageManager
	return nil
}

func (a *App) initServices() error {
	cfg := a.Config
	jobStorage := a.StorageManager.JobStorage()
	healthStorage := a.StorageManager.HealthStorage()

	// 1. Event bus
	a.EventService = events.NewService(a.Logger)

	// 2. Queues and the no-overlap submit path
	router := queue.NewRouter(cfg.Routing.Table())
	a.QueueManager = queue.NewManager(router, queue.ConfigsFrom(cfg.Queues), a.Clock, a.Logger)
	a.Submitter = jobs.NewSubmitter(jobStorage, a.QueueManager, a.Clock, a.Logger)

	// 3. Scheduler with the configured triggers
	a.Scheduler = scheduler.NewService(a.Submitter, a.StorageManager.TriggerStorage(), a.EventService, a.Clock, cfg.Scheduler, a.Logger)
	for _, trigger := range cfg.Triggers {
		if err := a.Scheduler.RegisterTrigger(trigger); err != nil {
			return fmt.Errorf("trigger %s: %w", trigger.ID, err)
		}
	}

	// 4. Health monitor and healing
	prober, err := probes.NewProber(cfg.Health.Components, cfg.Health.Thresholds, probes.ExecRunner, cfg.Health.Timeout(), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to build probes: %w", err)
	}
	components := make([]string, 0, len(cfg.Health.Components))
	for _, c := range cfg.Health.Components {
		components = append(components, c.Name)
	}
	classifier := health.NewClassifier(cfg.Health.Thresholds, cfg.Health.Components)
	a.Monitor = health.NewMonitor(prober, healthStorage, classifier, components, cfg.Health.Timeout(), a.Clock, a.EventService, a.Logger)
	a.HealingEngine = healing.NewEngine(a.buildRegistry(components), a.Monitor, healthStorage, a.Clock, cfg.Healing, a.EventService, a.Logger)

	// 5. Maintenance
	a.RetryManager = maintenance.NewRetryManager(jobStorage, a.QueueManager, a.Clock, cfg.Retry, a.EventService, a.Logger)
	a.CleanupManager = maintenance.NewCleanupManager(jobStorage, healthStorage, a.Clock, a.EventService, a.Logger)
	a.Performance = performance.NewAnalyzer(jobStorage, performance.ThresholdsFrom(cfg.Performance), a.Clock, a.EventService, a.Logger)

	// 6. Worker pools, one per queue
	a.initPools(router)

	// 7. Status queries
	jobTypes := make([]string, 0)
	for jobType := range cfg.Routing.Table() {
		jobTypes = append(jobTypes, jobType)
	}
	a.StatusService = status.NewService(a.Submitter, jobStorage, healthStorage, a.QueueManager, a.Scheduler, a.Performance, cfg.Performance.WindowDuration(), jobTypes, a.Clock, a.Logger)

	return nil
}

// buildRegistry binds configured remediation commands. Components without one get the log action.
func (a *App) buildRegistry(components []string) *healing.Registry {
	registry := healing.NewRegistry()
	for _, action := range a.Config.Healing.Actions {
		timeout := common.DurationOr(action.Timeout, defaultActionTimeout)
		registry.Register(action.Component, probes.NewCommandAction(action.Name, action.Command, timeout, probes.ExecRunner, a.Logger))
	}

	logAction := healing.NewLogAction(a.Logger)
	for _, component := range components {
		if _, ok := registry.Lookup(component); !ok {
			registry.Register(component, logAction)
		}
	}
	return registry
}

func (a *App) initPools(router *queue.Router) {
	cfg := a.Config
	scraper := executor.NewSimulatedScraper(a.Clock, cfg.Executor, a.Clock.Now().UnixNano(), a.Logger)
	system := executor.NewSystemExecutor(a.Monitor, a.HealingEngine, a.RetryManager, a.CleanupManager, a.Performance, nil, cfg, a.Clock, a.EventService, a.Logger)

	systemTypes := make(map[string]bool)
	for _, jobType := range system.JobTypes() {
		systemTypes[jobType] = true
	}

	limits := worker.LimitsFrom(cfg.Workers)
	for _, name := range models.AllQueues {
		pool := worker.NewWorkerPool(name, a.QueueManager, a.StorageManager.JobStorage(), a.EventService, a.Clock, limits, a.Logger, cfg.Queues.ForQueue(name).Concurrency)
		for _, jobType := range router.JobTypes(name) {
			if systemTypes[jobType] {
				pool.RegisterExecutor(jobType, system)
			} else {
				pool.RegisterExecutor(jobType, scraper)
			}
		}
		a.Pools = append(a.Pools, pool)
	}
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.StatusService, a.Logger)
	a.HealthHandler = handlers.NewHealthHandler(a.StatusService, a.Logger)
	a.StatsHandler = handlers.NewStatsHandler(a.StatusService, a.Logger)
	a.MaintenanceHandler = handlers.NewMaintenanceHandler(a.StatusService, a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Clock, a.Config.WebSocket, a.Logger)
}

// Start recovers orphaned jobs, then starts worker pools, the scheduler and the cadence loops
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return fmt.Errorf("application already started")
	}

	report, err := queue.Recover(ctx, a.StorageManager.JobStorage(), a.QueueManager, a.Clock.Now(), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}
	a.Logger.Info().
		Int("interrupted", report.Interrupted).
		Int("redispatched", report.Redispatched).
		Int("unroutable", report.Unroutable).
		Msg("Job recovery complete")

	for _, pool := range a.Pools {
		pool.Start()
	}

	if a.Config.Scheduler.Enabled {
		if err := a.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.loops = a.startLoops(loopCtx)
	a.started = true
	return nil
}

// Close stops everything in order: cadence loops, scheduler, worker pools, queues, events, storage
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	if a.cancel != nil {
		a.Logger.Info().Msg("Stopping supervisor loops")
		a.cancel()
		if err := a.loops.Wait(); err != nil {
			a.Logger.Warn().Err(err).Msg("Supervisor loop ended with error")
		}
	}

	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}

	// Pools drain in-flight jobs before queues close
	for _, pool := range a.Pools {
		pool.Stop()
	}

	if a.QueueManager != nil {
		a.QueueManager.Close()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
