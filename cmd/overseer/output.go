package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/ternarybob/overseer/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

// statusColor paints job statuses, health statuses and health levels
func statusColor(status string) string {
	switch status {
	case string(models.JobStatusCompleted), string(models.HealthStatusHealthy), string(models.HealthLevelOptimal), string(models.HealthLevelGood):
		return color.New(color.FgHiGreen, color.Bold).Sprint(status)
	case string(models.JobStatusRunning), string(models.JobStatusScheduled):
		return color.New(color.FgHiBlue).Sprint(status)
	case string(models.HealthStatusWarning), string(models.HealthLevelAttention):
		return color.New(color.FgHiYellow, color.Bold).Sprint(status)
	case string(models.JobStatusFailed), string(models.HealthStatusCritical), string(models.HealthLevelMaintenance):
		return color.New(color.FgHiRed, color.Bold).Sprint(status)
	default:
		return status
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	if err := table.Append(header); err != nil {
		return fmt.Errorf("failed to append header row: %w", err)
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	return table.Render()
}

func renderJobs(w io.Writer, jobs []*models.Job) error {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		created := job.CreatedAt
		rows = append(rows, []string{
			job.ID,
			job.JobType,
			string(job.Queue),
			statusColor(string(job.Status)),
			formatTime(&created),
			strconv.Itoa(job.ResultCount),
			strconv.Itoa(job.RetryCount),
			job.LastError,
		})
	}
	return renderTable(w, []string{"ID", "Type", "Queue", "Status", "Created", "Results", "Retries", "Last Error"}, rows)
}

func renderHealthChecks(w io.Writer, checks []*models.HealthCheck) error {
	rows := make([][]string, 0, len(checks))
	for _, check := range checks {
		ts := check.Timestamp
		fix := "-"
		if check.FixApplied {
			fix = check.FixDetails
		}
		rows = append(rows, []string{
			check.Component,
			statusColor(string(check.Status)),
			check.Details,
			formatTime(&ts),
			fix,
		})
	}
	return renderTable(w, []string{"Component", "Status", "Details", "Checked", "Fix"}, rows)
}

func renderHealthReport(w io.Writer, report *models.HealthReport) error {
	fmt.Fprintf(w, "Overall: %s\n", statusColor(string(report.Level)))
	if len(report.Unresolved) > 0 {
		fmt.Fprintf(w, "Unresolved: %v\n", report.Unresolved)
	}
	return renderHealthChecks(w, report.Checks)
}

func renderStatistics(w io.Writer, stats []models.Statistics) error {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			string(s.Period),
			strconv.Itoa(s.TotalJobs),
			strconv.Itoa(s.SuccessCount),
			strconv.Itoa(s.FailureCount),
			strconv.Itoa(s.RunningCount),
			strconv.Itoa(s.TotalResults),
			fmt.Sprintf("%.1f%%", s.SuccessRate),
		})
	}
	return renderTable(w, []string{"Period", "Jobs", "Succeeded", "Failed", "Running", "Results", "Success"}, rows)
}

func renderWorkflows(w io.Writer, workflows []models.WorkflowStatus) error {
	rows := make([][]string, 0, len(workflows))
	for _, wf := range workflows {
		last := "-"
		if wf.LastStatus != "" {
			last = statusColor(string(wf.LastStatus))
		}
		rows = append(rows, []string{
			wf.JobType,
			string(wf.Queue),
			wf.Schedule,
			formatTime(wf.LastRun),
			last,
			formatTime(wf.NextRun),
			strconv.Itoa(wf.TotalRuns),
			fmt.Sprintf("%.1f%%", wf.SuccessRate),
			recentDuration(wf.Recent),
			strconv.Itoa(len(wf.Alerts)),
		})
	}
	return renderTable(w, []string{"Workflow", "Queue", "Schedule", "Last Run", "Last Status", "Next Run", "Runs", "Success", "Avg Duration", "Alerts"}, rows)
}

func recentDuration(recent *models.WorkflowPerformance) string {
	if recent == nil || recent.SuccessfulRuns == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1fs", recent.AvgDurationSeconds)
}

func renderPerformanceAlerts(w io.Writer, alerts []models.PerformanceAlert) error {
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []string{
			a.JobType,
			color.YellowString(string(a.Type)),
			fmt.Sprintf("%.1f", a.Value),
			fmt.Sprintf("%.1f", a.Threshold),
		})
	}
	return renderTable(w, []string{"Workflow", "Alert", "Value", "Threshold"}, rows)
}
