package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/overseer/internal/models"
)

func init() {
	color.NoColor = true
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"max_results=10", "region=au", "dry_run=true"})
	require.NoError(t, err)
	assert.Equal(t, float64(10), params["max_results"])
	assert.Equal(t, "au", params["region"])
	assert.Equal(t, true, params["dry_run"])

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, params)
}

func TestRenderJobs(t *testing.T) {
	var buf bytes.Buffer
	err := renderJobs(&buf, []*models.Job{{
		ID:          "job-1",
		JobType:     "linkedin_scraping",
		Queue:       models.QueueScraping,
		Status:      models.JobStatusFailed,
		CreatedAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		ResultCount: 7,
		LastError:   "timeout: hard limit",
	}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "linkedin_scraping")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "timeout: hard limit")
}

func TestRenderWorkflows(t *testing.T) {
	var buf bytes.Buffer
	err := renderWorkflows(&buf, []models.WorkflowStatus{{
		JobType:     "health_check",
		Queue:       models.QueueMonitoring,
		Schedule:    "every 30m0s",
		TotalRuns:   3,
		SuccessRate: 66.7,
	}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "every 30m0s")
	assert.Contains(t, buf.String(), "66.7%")
}

func TestRenderWorkflows_RecentPerformance(t *testing.T) {
	var buf bytes.Buffer
	err := renderWorkflows(&buf, []models.WorkflowStatus{{
		JobType: "linkedin_extractor",
		Queue:   models.QueueScraping,
		Recent:  &models.WorkflowPerformance{JobType: "linkedin_extractor", SuccessfulRuns: 2, AvgDurationSeconds: 450},
		Alerts:  []models.PerformanceAlert{{Type: models.AlertSlowPerformance, JobType: "linkedin_extractor"}},
	}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "450.0s")

	buf.Reset()
	require.NoError(t, renderPerformanceAlerts(&buf, []models.PerformanceAlert{{Type: models.AlertSlowPerformance, JobType: "linkedin_extractor", Value: 450, Threshold: 300}}))
	assert.Contains(t, buf.String(), "slow_performance")
	assert.Contains(t, buf.String(), "300.0")
}

func TestStatusColor(t *testing.T) {
	assert.Equal(t, "completed", statusColor("completed"))
	assert.Equal(t, "unknown", statusColor("unknown"))
}
