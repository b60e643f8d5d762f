package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createTriggerJobTool returns the trigger_job tool definition
func createTriggerJobTool() mcp.Tool {
	return mcp.NewTool("trigger_job",
		mcp.WithDescription("Queue a job now. Refused while a job of the same type is scheduled or running."),
		mcp.WithString("job_type",
			mcp.Required(),
			mcp.Description("Job type, e.g. linkedin_scraping, health_check, cleanup_old_records"),
		),
		mcp.WithObject("parameters",
			mcp.Description("Optional job parameters, e.g. {\"max_results\": 10}"),
		),
	)
}

// createGetJobTool returns the get_job tool definition
func createGetJobTool() mcp.Tool {
	return mcp.NewTool("get_job",
		mcp.WithDescription("Retrieve one job by ID"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID returned by trigger_job"),
		),
	)
}

// createListRecentJobsTool returns the list_recent_jobs tool definition
func createListRecentJobsTool() mcp.Tool {
	return mcp.NewTool("list_recent_jobs",
		mcp.WithDescription("List the newest jobs first"),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20, max: 200)"),
		),
	)
}

// createGetLatestHealthTool returns the get_latest_health tool definition
func createGetLatestHealthTool() mcp.Tool {
	return mcp.NewTool("get_latest_health",
		mcp.WithDescription("Overall health level and the latest check of every component"),
	)
}

// createGetStatisticsTool returns the get_statistics tool definition
func createGetStatisticsTool() mcp.Tool {
	return mcp.NewTool("get_statistics",
		mcp.WithDescription("Job counts, success rate and results per reporting period"),
		mcp.WithString("period",
			mcp.Description("last_hour, last_24h, last_week or last_month (default: all)"),
		),
	)
}
