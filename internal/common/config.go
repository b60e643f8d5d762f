package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/overseer/internal/models"
)

// CronParser parses standard five-field cron expressions (minute, hour, dom, month, dow)
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Queues      QueuesConfig      `toml:"queues"`
	Workers     WorkersConfig     `toml:"workers"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Health      HealthConfig      `toml:"health"`
	Healing     HealingConfig     `toml:"healing"`
	Retry       RetryConfig       `toml:"retry"`
	Cleanup     CleanupConfig     `toml:"cleanup"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Performance PerformanceConfig `toml:"performance"`
	WebSocket   WebSocketConfig   `toml:"websocket"`
	Executor    ExecutorConfig    `toml:"executor"`
	Routing     RoutingConfig     `toml:"routing"`
	Triggers    []models.Trigger  `toml:"triggers"` // Empty = built-in workflow triggers
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// BaseURL returns the HTTP address clients use to reach the server
func (s ServerConfig) BaseURL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for console/file logs
	Dir        string   `toml:"dir"`         // Log directory, relative to the executable when not absolute
}

// QueueConfig sizes one work queue
type QueueConfig struct {
	Concurrency int `toml:"concurrency"` // Worker goroutines for this queue
	Buffer      int `toml:"buffer"`      // Channel capacity; dispatch blocks when full
}

type QueuesConfig struct {
	Scraping    QueueConfig `toml:"scraping"`
	Monitoring  QueueConfig `toml:"monitoring"`
	Maintenance QueueConfig `toml:"maintenance"`
}

// ForQueue returns the configuration of a named queue
func (q QueuesConfig) ForQueue(name models.QueueName) QueueConfig {
	switch name {
	case models.QueueMonitoring:
		return q.Monitoring
	case models.QueueMaintenance:
		return q.Maintenance
	default:
		return q.Scraping
	}
}

// WorkersConfig holds per-job execution limits
type WorkersConfig struct {
	SoftTimeLimit       string `toml:"soft_time_limit"`       // Warning logged after this long, e.g. "300s"
	HardTimeLimit       string `toml:"hard_time_limit"`       // Job abandoned and failed after this long, e.g. "600s"
	OverlapRequeueDelay string `toml:"overlap_requeue_delay"` // Delay before a job blocked by a running sibling is requeued
	StaleGrace          string `toml:"stale_grace"`           // Running this long past the hard limit marks a job stale, e.g. "5m"
	StaleCheckInterval  string `toml:"stale_check_interval"`  // How often running jobs are checked for staleness
}

func (w WorkersConfig) SoftLimit() time.Duration {
	return DurationOr(w.SoftTimeLimit, 300*time.Second)
}

func (w WorkersConfig) HardLimit() time.Duration {
	return DurationOr(w.HardTimeLimit, 600*time.Second)
}

func (w WorkersConfig) RequeueDelay() time.Duration {
	return DurationOr(w.OverlapRequeueDelay, 5*time.Second)
}

// StaleAfter is how long a job may stay running before the stale sweep fails it.
// A live worker always records an outcome by the hard limit.
func (w WorkersConfig) StaleAfter() time.Duration {
	return w.HardLimit() + DurationOr(w.StaleGrace, 5*time.Minute)
}

func (w WorkersConfig) StaleInterval() time.Duration {
	return DurationOr(w.StaleCheckInterval, 5*time.Minute)
}

type SchedulerConfig struct {
	Enabled             bool   `toml:"enabled"`
	Resolution          string `toml:"resolution"`            // How often triggers are evaluated, e.g. "1s"
	DefaultMisfireGrace int    `toml:"default_misfire_grace"` // Seconds, applied to triggers that leave it unset
}

func (s SchedulerConfig) Tick() time.Duration {
	return DurationOr(s.Resolution, time.Second)
}

// ComponentConfig registers one monitored component and how to probe it
type ComponentConfig struct {
	Name          string   `toml:"name" validate:"required"`
	Probe         string   `toml:"probe" validate:"required,oneof=resources http tcp tls process suspicious_processes permissions paths command"`
	Targets       []string `toml:"targets"`        // URLs, host:port pairs, process names or paths depending on the probe
	Command       []string `toml:"command"`        // argv for command probes
	IssueCritical int      `toml:"issue_critical"` // Issue count above which the component is critical (0 = use default)
}

// ThresholdConfig holds classification bands
type ThresholdConfig struct {
	WarningPercent      float64 `toml:"warning_percent"`       // Utilization at or above = warning
	CriticalPercent     float64 `toml:"critical_percent"`      // Utilization above = critical
	DiskWarningPercent  float64 `toml:"disk_warning_percent"`  // Disk has its own warning band
	DiskCriticalPercent float64 `toml:"disk_critical_percent"` // Disk has its own critical band
	IssueCritical       int     `toml:"issue_critical"`        // Default issue count above which a component is critical
	CertWarningDays     int     `toml:"cert_warning_days"`     // TLS certificates expiring sooner are a warning
	CertCriticalDays    int     `toml:"cert_critical_days"`    // TLS certificates expiring sooner are critical
}

type HealthConfig struct {
	Enabled      bool              `toml:"enabled"`
	Interval     string            `toml:"interval"`      // Sweep cadence, e.g. "30m"
	ProbeTimeout string            `toml:"probe_timeout"` // Per-probe timeout
	Thresholds   ThresholdConfig   `toml:"thresholds"`
	Components   []ComponentConfig `toml:"components"` // Empty = built-in component registry
}

func (h HealthConfig) SweepInterval() time.Duration {
	return DurationOr(h.Interval, 30*time.Minute)
}

func (h HealthConfig) Timeout() time.Duration {
	return DurationOr(h.ProbeTimeout, 20*time.Second)
}

// ActionConfig binds a remediation command to a component
type ActionConfig struct {
	Component string   `toml:"component" validate:"required"`
	Name      string   `toml:"name" validate:"required"`
	Command   []string `toml:"command" validate:"required,min=1"`
	Timeout   string   `toml:"timeout"`
}

type HealingConfig struct {
	Enabled   bool           `toml:"enabled"`
	Cooldown  string         `toml:"cooldown"`   // Wait between remediation and recheck, e.g. "30s"
	MaxCycles int            `toml:"max_cycles"` // Remediation cycles per sweep
	Actions   []ActionConfig `toml:"actions"`
}

func (h HealingConfig) CooldownDuration() time.Duration {
	return DurationOr(h.Cooldown, 30*time.Second)
}

type RetryConfig struct {
	Enabled    bool    `toml:"enabled"`
	Interval   string  `toml:"interval"`    // Sweep cadence, e.g. "30m"
	Window     string  `toml:"window"`      // Only jobs started within this window are retried, e.g. "6h"
	MaxRetries int     `toml:"max_retries"` // Per-job retry ceiling
	Delay      string  `toml:"delay"`       // Delay before a retried job is dispatched, e.g. "5m"
	RateLimit  float64 `toml:"rate_limit"`  // Max re-dispatches per second within one sweep
}

func (r RetryConfig) SweepInterval() time.Duration {
	return DurationOr(r.Interval, 30*time.Minute)
}

func (r RetryConfig) WindowDuration() time.Duration {
	return DurationOr(r.Window, 6*time.Hour)
}

func (r RetryConfig) DelayDuration() time.Duration {
	return DurationOr(r.Delay, 5*time.Minute)
}

type CleanupConfig struct {
	Enabled   bool   `toml:"enabled"`
	Schedule  string `toml:"schedule"`  // Cron expression, default daily at 02:00
	Retention string `toml:"retention"` // Records older than this are purged, e.g. "720h"
}

func (c CleanupConfig) RetentionWindow() time.Duration {
	return DurationOr(c.Retention, 30*24*time.Hour)
}

type MetricsConfig struct {
	Enabled  bool   `toml:"enabled"`
	Interval string `toml:"interval"` // System metrics sample cadence, e.g. "15m"
}

func (m MetricsConfig) SampleInterval() time.Duration {
	return DurationOr(m.Interval, 15*time.Minute)
}

// PerformanceConfig drives the periodic workflow performance review
type PerformanceConfig struct {
	Enabled        bool    `toml:"enabled"`
	Interval       string  `toml:"interval"`         // Review cadence, e.g. "2h"
	Window         string  `toml:"window"`           // Jobs created within this window are reviewed, e.g. "24h"
	MinSuccessRate float64 `toml:"min_success_rate"` // Percent; lower rates raise low_success_rate
	MaxAvgDuration string  `toml:"max_avg_duration"` // Longer average completed runs raise slow_performance
}

func (p PerformanceConfig) ReviewInterval() time.Duration {
	return DurationOr(p.Interval, 2*time.Hour)
}

func (p PerformanceConfig) WindowDuration() time.Duration {
	return DurationOr(p.Window, 24*time.Hour)
}

func (p PerformanceConfig) SlowAfter() time.Duration {
	return DurationOr(p.MaxAvgDuration, 300*time.Second)
}

func (p PerformanceConfig) SuccessFloor() float64 {
	if p.MinSuccessRate <= 0 {
		return 80
	}
	return p.MinSuccessRate
}

type WebSocketConfig struct {
	ThrottleInterval string   `toml:"throttle_interval"` // Minimum gap between job status broadcasts
	AllowedEvents    []string `toml:"allowed_events"`    // Empty = broadcast all events
}

// ExecutorConfig tunes the simulated workflow executor
type ExecutorConfig struct {
	MinDuration string  `toml:"min_duration"` // Shortest simulated run
	MaxDuration string  `toml:"max_duration"` // Longest simulated run
	FailureRate float64 `toml:"failure_rate"` // Probability of a simulated failure, 0..1
	MaxResults  int     `toml:"max_results"`  // Upper bound on simulated result count
}

// RoutingConfig is the static job type -> queue table. Empty lists fall back to defaults.
type RoutingConfig struct {
	Scraping    []string `toml:"scraping"`
	Monitoring  []string `toml:"monitoring"`
	Maintenance []string `toml:"maintenance"`
}

// Table flattens the routing lists into a lookup map
func (r RoutingConfig) Table() map[string]models.QueueName {
	table := make(map[string]models.QueueName)
	add := func(types []string, defaults []string, queue models.QueueName) {
		if len(types) == 0 {
			types = defaults
		}
		for _, t := range types {
			table[t] = queue
		}
	}
	add(r.Scraping, WorkflowJobTypes(), models.QueueScraping)
	add(r.Monitoring, []string{JobTypeHealthCheck, JobTypeSystemMetrics, JobTypeWorkflowPerformance}, models.QueueMonitoring)
	add(r.Maintenance, []string{JobTypeCleanup, JobTypeRetryFailed}, models.QueueMaintenance)
	return table
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/overseer",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
			Dir:        "logs",
		},
		Queues: QueuesConfig{
			Scraping:    QueueConfig{Concurrency: 4, Buffer: 100},
			Monitoring:  QueueConfig{Concurrency: 2, Buffer: 20},
			Maintenance: QueueConfig{Concurrency: 1, Buffer: 20},
		},
		Workers: WorkersConfig{
			SoftTimeLimit:       "300s",
			HardTimeLimit:       "600s",
			OverlapRequeueDelay: "5s",
			StaleGrace:          "5m",
			StaleCheckInterval:  "5m",
		},
		Scheduler: SchedulerConfig{
			Enabled:             true,
			Resolution:          "1s",
			DefaultMisfireGrace: 300,
		},
		Health: HealthConfig{
			Enabled:      true,
			Interval:     "30m",
			ProbeTimeout: "20s",
			Thresholds: ThresholdConfig{
				WarningPercent:      75,
				CriticalPercent:     90,
				DiskWarningPercent:  80,
				DiskCriticalPercent: 90,
				IssueCritical:       3,
				CertWarningDays:     30,
				CertCriticalDays:    7,
			},
		},
		Healing: HealingConfig{
			Enabled:   true,
			Cooldown:  "30s",
			MaxCycles: 5,
		},
		Retry: RetryConfig{
			Enabled:    true,
			Interval:   "30m",
			Window:     "6h",
			MaxRetries: 3,
			Delay:      "5m",
			RateLimit:  2,
		},
		Cleanup: CleanupConfig{
			Enabled:   true,
			Schedule:  "0 2 * * *",
			Retention: "720h", // 30 days
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Interval: "15m",
		},
		Performance: PerformanceConfig{
			Enabled:        true,
			Interval:       "2h",
			Window:         "24h",
			MinSuccessRate: 80,
			MaxAvgDuration: "300s",
		},
		WebSocket: WebSocketConfig{
			ThrottleInterval: "100ms",
		},
		Executor: ExecutorConfig{
			MinDuration: "2s",
			MaxDuration: "15s",
			FailureRate: 0.05,
			MaxResults:  50,
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if len(config.Triggers) == 0 {
		config.Triggers = DefaultTriggers()
	}
	if len(config.Health.Components) == 0 {
		config.Health.Components = DefaultComponents()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies OVERSEER_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("OVERSEER_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("OVERSEER_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("OVERSEER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("OVERSEER_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("OVERSEER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("OVERSEER_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Queue concurrency
	envInt("OVERSEER_QUEUE_SCRAPING_CONCURRENCY", &config.Queues.Scraping.Concurrency)
	envInt("OVERSEER_QUEUE_MONITORING_CONCURRENCY", &config.Queues.Monitoring.Concurrency)
	envInt("OVERSEER_QUEUE_MAINTENANCE_CONCURRENCY", &config.Queues.Maintenance.Concurrency)

	// Time limits
	envString("OVERSEER_SOFT_TIME_LIMIT", &config.Workers.SoftTimeLimit)
	envString("OVERSEER_HARD_TIME_LIMIT", &config.Workers.HardTimeLimit)

	// Sweep cadences
	envString("OVERSEER_HEALTH_INTERVAL", &config.Health.Interval)
	envString("OVERSEER_RETRY_INTERVAL", &config.Retry.Interval)
	envString("OVERSEER_CLEANUP_SCHEDULE", &config.Cleanup.Schedule)

	// Policy limits
	envString("OVERSEER_RETENTION", &config.Cleanup.Retention)
	envString("OVERSEER_RETRY_WINDOW", &config.Retry.Window)
	envString("OVERSEER_RETRY_DELAY", &config.Retry.Delay)
	envInt("OVERSEER_RETRY_MAX_RETRIES", &config.Retry.MaxRetries)
	envString("OVERSEER_HEALING_COOLDOWN", &config.Healing.Cooldown)
	envInt("OVERSEER_HEALING_MAX_CYCLES", &config.Healing.MaxCycles)
}

func envString(name string, target *string) {
	if v := os.Getenv(name); v != "" {
		*target = v
	}
}

func envInt(name string, target *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the configuration for values the core cannot run with
func (c *Config) Validate() error {
	for _, q := range models.AllQueues {
		qc := c.Queues.ForQueue(q)
		if qc.Concurrency < 1 {
			return fmt.Errorf("queue %s: concurrency must be at least 1", q)
		}
		if qc.Buffer < 1 {
			return fmt.Errorf("queue %s: buffer must be at least 1", q)
		}
	}

	for name, value := range map[string]string{
		"workers.soft_time_limit":      c.Workers.SoftTimeLimit,
		"workers.hard_time_limit":      c.Workers.HardTimeLimit,
		"workers.stale_grace":          c.Workers.StaleGrace,
		"workers.stale_check_interval": c.Workers.StaleCheckInterval,
		"health.interval":              c.Health.Interval,
		"healing.cooldown":             c.Healing.Cooldown,
		"retry.interval":               c.Retry.Interval,
		"retry.window":                 c.Retry.Window,
		"retry.delay":                  c.Retry.Delay,
		"cleanup.retention":            c.Cleanup.Retention,
		"performance.interval":         c.Performance.Interval,
		"performance.window":           c.Performance.Window,
		"performance.max_avg_duration": c.Performance.MaxAvgDuration,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", name, value, err)
		}
	}

	if c.Workers.HardLimit() < c.Workers.SoftLimit() {
		return fmt.Errorf("workers.hard_time_limit must not be shorter than workers.soft_time_limit")
	}
	if c.Healing.MaxCycles < 1 {
		return fmt.Errorf("healing.max_cycles must be at least 1")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	if err := ValidateCronExpression(c.Cleanup.Schedule); err != nil {
		return fmt.Errorf("cleanup.schedule: %w", err)
	}

	validate := validator.New()
	seen := make(map[string]bool)
	for i := range c.Triggers {
		if err := ValidateTrigger(validate, c.Triggers[i]); err != nil {
			return fmt.Errorf("triggers[%d]: %w", i, err)
		}
		if seen[c.Triggers[i].ID] {
			return fmt.Errorf("triggers[%d]: duplicate trigger id %s", i, c.Triggers[i].ID)
		}
		seen[c.Triggers[i].ID] = true
	}
	for i := range c.Health.Components {
		if err := validate.Struct(c.Health.Components[i]); err != nil {
			return fmt.Errorf("health.components[%d]: %w", i, err)
		}
	}
	for i := range c.Healing.Actions {
		if err := validate.Struct(c.Healing.Actions[i]); err != nil {
			return fmt.Errorf("healing.actions[%d]: %w", i, err)
		}
	}

	return nil
}

// ValidateTrigger checks a trigger definition, including its cron expression
func ValidateTrigger(validate *validator.Validate, trigger models.Trigger) error {
	if err := validate.Struct(trigger); err != nil {
		return err
	}
	if trigger.Kind == models.TriggerKindCron {
		if err := ValidateCronExpression(trigger.CronExpression); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCronExpression validates a five-field cron expression
func ValidateCronExpression(expr string) error {
	if len(strings.Fields(expr)) != 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields, got %q", expr)
	}
	if _, err := CronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// DurationOr parses s, returning fallback when s is empty or invalid
func DurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
