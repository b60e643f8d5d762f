package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/handlers"
	"github.com/ternarybob/overseer/internal/httpclient"
	"github.com/ternarybob/overseer/internal/models"
)

// overseerAPI is the slice of the HTTP client the tools use
type overseerAPI interface {
	TriggerJob(ctx context.Context, jobType string, params map[string]interface{}) (*handlers.TriggerResponse, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*models.Job, error)
	HealthReport(ctx context.Context) (*models.HealthReport, error)
	Statistics(ctx context.Context, period models.StatsPeriod) ([]models.Statistics, error)
}

var _ overseerAPI = (*httpclient.Client)(nil)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleTriggerJob implements the trigger_job tool
func handleTriggerJob(api overseerAPI, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobType, err := request.RequireString("job_type")
		if err != nil || jobType == "" {
			return mcp.NewToolResultError("job_type parameter is required"), nil
		}

		var params map[string]interface{}
		if raw, ok := request.GetArguments()["parameters"]; ok && raw != nil {
			obj, ok := raw.(map[string]interface{})
			if !ok {
				return mcp.NewToolResultError("parameters must be an object"), nil
			}
			params = obj
		}

		resp, err := api.TriggerJob(ctx, jobType, params)
		if httpclient.IsConflict(err) {
			return textResult(fmt.Sprintf("A %s job is already scheduled or running; not queued.", jobType)), nil
		}
		if err != nil {
			logger.Error().Err(err).Str("job_type", jobType).Msg("Trigger failed")
			return mcp.NewToolResultError(fmt.Sprintf("Trigger error: %v", err)), nil
		}

		return textResult(fmt.Sprintf("Queued %s as job %s.", resp.JobType, resp.JobID)), nil
	}
}

// handleGetJob implements the get_job tool
func handleGetJob(api overseerAPI, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return mcp.NewToolResultError("job_id parameter is required"), nil
		}

		job, err := api.GetJob(ctx, jobID)
		if err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("GetJob failed")
			return mcp.NewToolResultError(fmt.Sprintf("Job not found: %v", err)), nil
		}
		return textResult(formatJob(job)), nil
	}
}

// handleListRecentJobs implements the list_recent_jobs tool
func handleListRecentJobs(api overseerAPI, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 200 {
			limit = 200
		}

		jobs, err := api.ListRecentJobs(ctx, limit)
		if err != nil {
			logger.Error().Err(err).Msg("List recent jobs failed")
			return mcp.NewToolResultError(fmt.Sprintf("List error: %v", err)), nil
		}
		return textResult(formatJobs(jobs)), nil
	}
}

// handleGetLatestHealth implements the get_latest_health tool
func handleGetLatestHealth(api overseerAPI, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		report, err := api.HealthReport(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Health report failed")
			return mcp.NewToolResultError(fmt.Sprintf("Health error: %v", err)), nil
		}
		return textResult(formatHealthReport(report)), nil
	}
}

// handleGetStatistics implements the get_statistics tool
func handleGetStatistics(api overseerAPI, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		period := models.StatsPeriod(request.GetString("period", ""))
		if period != "" {
			if _, ok := period.Duration(); !ok {
				return mcp.NewToolResultError("period must be one of last_hour, last_24h, last_week, last_month"), nil
			}
		}

		stats, err := api.Statistics(ctx, period)
		if err != nil {
			logger.Error().Err(err).Msg("Statistics failed")
			return mcp.NewToolResultError(fmt.Sprintf("Statistics error: %v", err)), nil
		}
		return textResult(formatStatistics(stats)), nil
	}
}
