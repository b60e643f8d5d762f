package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/overseer/internal/models"
)

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// formatJob formats a single job as markdown
func formatJob(job *models.Job) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Job %s\n\n", job.ID))
	sb.WriteString(fmt.Sprintf("**Type:** %s\n", job.JobType))
	sb.WriteString(fmt.Sprintf("**Queue:** %s\n", job.Queue))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", job.Status))
	sb.WriteString(fmt.Sprintf("**Source:** %s\n", job.Source))
	created := job.CreatedAt
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", formatTime(&created)))
	sb.WriteString(fmt.Sprintf("**Started:** %s\n", formatTime(job.StartedAt)))
	sb.WriteString(fmt.Sprintf("**Completed:** %s\n", formatTime(job.CompletedAt)))
	sb.WriteString(fmt.Sprintf("**Results:** %d\n", job.ResultCount))
	sb.WriteString(fmt.Sprintf("**Retries:** %d\n", job.RetryCount))
	if job.LastError != "" {
		sb.WriteString(fmt.Sprintf("**Last error:** %s\n", job.LastError))
	}
	return sb.String()
}

// formatJobs formats recent jobs as a markdown table
func formatJobs(jobs []*models.Job) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Recent Jobs (%d)\n\n", len(jobs)))
	if len(jobs) == 0 {
		sb.WriteString("No jobs found.\n")
		return sb.String()
	}

	sb.WriteString("| ID | Type | Status | Created | Results |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	for _, job := range jobs {
		created := job.CreatedAt
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d |\n", job.ID, job.JobType, job.Status, formatTime(&created), job.ResultCount))
	}
	return sb.String()
}

// formatHealthReport formats the overall level and per-component checks
func formatHealthReport(report *models.HealthReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## System Health: %s\n\n", report.Level))
	if len(report.Unresolved) > 0 {
		sb.WriteString(fmt.Sprintf("**Unresolved:** %s\n\n", strings.Join(report.Unresolved, ", ")))
	}
	if len(report.Checks) == 0 {
		sb.WriteString("No health checks recorded yet.\n")
		return sb.String()
	}

	sb.WriteString("| Component | Status | Details | Checked |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, check := range report.Checks {
		ts := check.Timestamp
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", check.Component, check.Status, check.Details, formatTime(&ts)))
	}
	return sb.String()
}

// formatStatistics formats per-period statistics
func formatStatistics(stats []models.Statistics) string {
	var sb strings.Builder
	sb.WriteString("## Job Statistics\n\n")
	sb.WriteString("| Period | Jobs | Succeeded | Failed | Running | Results | Success |\n")
	sb.WriteString("|---|---|---|---|---|---|---|\n")
	for _, s := range stats {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %d | %.1f%% |\n",
			s.Period, s.TotalJobs, s.SuccessCount, s.FailureCount, s.RunningCount, s.TotalResults, s.SuccessRate))
	}
	return sb.String()
}
