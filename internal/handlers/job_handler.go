package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
)

// TriggerRequest is the body of POST /api/jobs/trigger
type TriggerRequest struct {
	JobType    string                 `json:"job_type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// TriggerResponse acknowledges a manual trigger
type TriggerResponse struct {
	JobID   string `json:"job_id"`
	JobType string `json:"job_type"`
	Status  string `json:"status"`
}

// JobHandler serves manual triggers and job queries
type JobHandler struct {
	status StatusService
	logger arbor.ILogger
}

func NewJobHandler(status StatusService, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		status: status,
		logger: logger,
	}
}

// TriggerJobHandler creates a manual job. 409 when a job of the same type is active.
func (h *JobHandler) TriggerJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req TriggerRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.JobType) == "" {
		WriteError(w, http.StatusBadRequest, "job_type is required")
		return
	}

	jobID, err := h.status.TriggerJob(r.Context(), req.JobType, req.Parameters)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_type", req.JobType).Msg("Manual trigger refused")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, TriggerResponse{JobID: jobID, JobType: req.JobType, Status: "scheduled"})
}

// ListJobsHandler returns the newest jobs, ?limit= defaults to 50
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobs, err := h.status.ListRecentJobs(r.Context(), QueryInt(r, "limit", 50))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, jobs)
}

// GetJobHandler returns one job from /api/jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
	if jobID == "" || strings.Contains(jobID, "/") {
		WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.status.GetJob(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}
