package handlers

import (
	"context"

	"github.com/ternarybob/overseer/internal/models"
)

// StatusService is the manual trigger and query surface the HTTP API exposes
type StatusService interface {
	TriggerJob(ctx context.Context, jobType string, params map[string]interface{}) (string, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*models.Job, error)
	GetLatestHealth(ctx context.Context) ([]*models.HealthCheck, error)
	HealthReport(ctx context.Context) (*models.HealthReport, error)
	GetStatistics(ctx context.Context, period models.StatsPeriod) ([]models.Statistics, error)
	WorkflowStatuses(ctx context.Context) ([]models.WorkflowStatus, error)
	WorkflowPerformance(ctx context.Context) (*models.PerformanceReport, error)
	Triggers() []models.TriggerStatus
}
