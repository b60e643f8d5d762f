package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
)

type fakeStatus struct {
	triggered  []string
	params     []map[string]interface{}
	triggerErr error
	jobs       map[string]*models.Job
	limit      int
	period     models.StatsPeriod
}

func (f *fakeStatus) TriggerJob(ctx context.Context, jobType string, params map[string]interface{}) (string, error) {
	if f.triggerErr != nil {
		return "", f.triggerErr
	}
	f.triggered = append(f.triggered, jobType)
	f.params = append(f.params, params)
	return fmt.Sprintf("job-%d", len(f.triggered)), nil
}

func (f *fakeStatus) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	if job, ok := f.jobs[jobID]; ok {
		return job, nil
	}
	return nil, fmt.Errorf("job %s: %w", jobID, interfaces.ErrJobNotFound)
}

func (f *fakeStatus) ListRecentJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	f.limit = limit
	return []*models.Job{}, nil
}

func (f *fakeStatus) GetLatestHealth(ctx context.Context) ([]*models.HealthCheck, error) {
	return []*models.HealthCheck{{Component: "api", Status: models.HealthStatusHealthy}}, nil
}

func (f *fakeStatus) HealthReport(ctx context.Context) (*models.HealthReport, error) {
	return &models.HealthReport{Level: models.HealthLevelOptimal}, nil
}

func (f *fakeStatus) GetStatistics(ctx context.Context, period models.StatsPeriod) ([]models.Statistics, error) {
	f.period = period
	return []models.Statistics{{Period: models.PeriodLastHour, TotalJobs: 3}}, nil
}

func (f *fakeStatus) WorkflowStatuses(ctx context.Context) ([]models.WorkflowStatus, error) {
	return []models.WorkflowStatus{{JobType: "linkedin_scraping", Queue: models.QueueScraping}}, nil
}

func (f *fakeStatus) WorkflowPerformance(ctx context.Context) (*models.PerformanceReport, error) {
	return &models.PerformanceReport{
		TotalJobs: 4,
		Workflows: []models.WorkflowPerformance{{JobType: "linkedin_scraping", TotalRuns: 4, SuccessfulRuns: 2, SuccessRate: 50}},
		Alerts:    []models.PerformanceAlert{{Type: models.AlertLowSuccessRate, JobType: "linkedin_scraping", Value: 50, Threshold: 80, Severity: "warning"}},
	}, nil
}

func (f *fakeStatus) Triggers() []models.TriggerStatus {
	return []models.TriggerStatus{{Trigger: models.Trigger{ID: "linkedin-hourly"}}}
}

func do(handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestJobHandler_Trigger(t *testing.T) {
	status := &fakeStatus{}
	h := NewJobHandler(status, arbor.NewLogger())

	rec := do(h.TriggerJobHandler, http.MethodPost, "/api/jobs/trigger", `{"job_type":"linkedin_scraping","parameters":{"max_results":10}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp TriggerResponse
	decode(t, rec, &resp)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "scheduled", resp.Status)
	assert.Equal(t, float64(10), status.params[0]["max_results"])
}

func TestJobHandler_TriggerErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "missing type", body: `{}`, want: http.StatusBadRequest},
		{name: "bad json", body: `{`, want: http.StatusBadRequest},
		{name: "active", body: `{"job_type":"a"}`, err: interfaces.ErrJobActive, want: http.StatusConflict},
		{name: "unroutable", body: `{"job_type":"a"}`, err: interfaces.ErrUnroutable, want: http.StatusBadRequest},
		{name: "storage", body: `{"job_type":"a"}`, err: fmt.Errorf("disk full"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewJobHandler(&fakeStatus{triggerErr: tt.err}, arbor.NewLogger())
			rec := do(h.TriggerJobHandler, http.MethodPost, "/api/jobs/trigger", tt.body)
			assert.Equal(t, tt.want, rec.Code)

			var body map[string]string
			decode(t, rec, &body)
			assert.Equal(t, "error", body["status"])
		})
	}
}

func TestJobHandler_MethodNotAllowed(t *testing.T) {
	h := NewJobHandler(&fakeStatus{}, arbor.NewLogger())
	assert.Equal(t, http.StatusMethodNotAllowed, do(h.TriggerJobHandler, http.MethodGet, "/api/jobs/trigger", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h.ListJobsHandler, http.MethodPost, "/api/jobs", "").Code)
}

func TestJobHandler_ListAndGet(t *testing.T) {
	status := &fakeStatus{jobs: map[string]*models.Job{"abc": {ID: "abc", JobType: "health_check"}}}
	h := NewJobHandler(status, arbor.NewLogger())

	rec := do(h.ListJobsHandler, http.MethodGet, "/api/jobs?limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, status.limit)

	do(h.ListJobsHandler, http.MethodGet, "/api/jobs?limit=nope", "")
	assert.Equal(t, 50, status.limit)

	rec = do(h.GetJobHandler, http.MethodGet, "/api/jobs/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var job models.Job
	decode(t, rec, &job)
	assert.Equal(t, "health_check", job.JobType)

	assert.Equal(t, http.StatusNotFound, do(h.GetJobHandler, http.MethodGet, "/api/jobs/missing", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h.GetJobHandler, http.MethodGet, "/api/jobs/", "").Code)
}

func TestHealthHandler(t *testing.T) {
	status := &fakeStatus{}
	h := NewHealthHandler(status, arbor.NewLogger())

	rec := do(h.ReportHandler, http.MethodGet, "/api/health/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.HealthReport
	decode(t, rec, &report)
	assert.Equal(t, models.HealthLevelOptimal, report.Level)

	rec = do(h.LatestHandler, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var checks []models.HealthCheck
	decode(t, rec, &checks)
	require.Len(t, checks, 1)

	rec = do(h.SweepHandler, http.MethodPost, "/api/health/sweep", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{common.JobTypeHealthCheck}, status.triggered)
}

func TestStatsHandler(t *testing.T) {
	status := &fakeStatus{}
	h := NewStatsHandler(status, arbor.NewLogger())

	rec := do(h.StatsHandler, http.MethodGet, "/api/stats?period=last_hour", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PeriodLastHour, status.period)

	assert.Equal(t, http.StatusBadRequest, do(h.StatsHandler, http.MethodGet, "/api/stats?period=forever", "").Code)

	rec = do(h.WorkflowsHandler, http.MethodGet, "/api/workflows", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var workflows []models.WorkflowStatus
	decode(t, rec, &workflows)
	require.Len(t, workflows, 1)
	assert.Equal(t, models.QueueScraping, workflows[0].Queue)

	rec = do(h.PerformanceHandler, http.MethodGet, "/api/workflows/performance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.PerformanceReport
	decode(t, rec, &report)
	require.Len(t, report.Alerts, 1)
	assert.Equal(t, models.AlertLowSuccessRate, report.Alerts[0].Type)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h.PerformanceHandler, http.MethodPost, "/api/workflows/performance", "").Code)

	rec = do(h.TriggersHandler, http.MethodGet, "/api/triggers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "linkedin-hourly")
}

func TestMaintenanceHandler(t *testing.T) {
	status := &fakeStatus{}
	h := NewMaintenanceHandler(status, arbor.NewLogger())

	rec := do(h.RetryHandler, http.MethodPost, "/api/maintenance/retry", `{"window":"2h","max_retries":1}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, common.JobTypeRetryFailed, status.triggered[0])
	assert.Equal(t, "2h", status.params[0]["window"])
	assert.Equal(t, 1, status.params[0]["max_retries"])

	rec = do(h.PurgeHandler, http.MethodPost, "/api/maintenance/purge", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, common.JobTypeCleanup, status.triggered[1])
	assert.Empty(t, status.params[1])

	assert.Equal(t, http.StatusBadRequest, do(h.RetryHandler, http.MethodPost, "/", `{"window":"-1h"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(h.PurgeHandler, http.MethodPost, "/", `{"retention":"soon"}`).Code)
}

func TestAPIHandler(t *testing.T) {
	h := NewAPIHandler(arbor.NewLogger())

	rec := do(h.VersionHandler, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var version map[string]string
	decode(t, rec, &version)
	assert.Equal(t, common.GetVersion(), version["version"])

	assert.Equal(t, http.StatusNotFound, do(h.NotFoundHandler, http.MethodGet, "/nope", "").Code)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusForError(fmt.Errorf("x: %w", interfaces.ErrNotFound)))
	assert.Equal(t, http.StatusConflict, StatusForError(interfaces.ErrJobActive))
	assert.Equal(t, http.StatusInternalServerError, StatusForError(fmt.Errorf("boom")))
}
