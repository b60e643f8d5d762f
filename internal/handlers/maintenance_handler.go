package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
)

// RetryRequest optionally overrides the retry window and ceiling for one sweep
type RetryRequest struct {
	Window     string `json:"window,omitempty"`
	MaxRetries *int   `json:"max_retries,omitempty"`
}

// PurgeRequest optionally overrides the retention for one cleanup run
type PurgeRequest struct {
	Retention string `json:"retention,omitempty"`
}

// MaintenanceHandler queues manual retry and purge runs on the maintenance queue
type MaintenanceHandler struct {
	status StatusService
	logger arbor.ILogger
}

func NewMaintenanceHandler(status StatusService, logger arbor.ILogger) *MaintenanceHandler {
	return &MaintenanceHandler{
		status: status,
		logger: logger,
	}
}

// RetryHandler queues a retry sweep
func (h *MaintenanceHandler) RetryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req RetryRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	params := make(map[string]interface{})
	if req.Window != "" {
		if d, err := time.ParseDuration(req.Window); err != nil || d <= 0 {
			WriteError(w, http.StatusBadRequest, "window must be a positive duration")
			return
		}
		params["window"] = req.Window
	}
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			WriteError(w, http.StatusBadRequest, "max_retries must not be negative")
			return
		}
		params["max_retries"] = *req.MaxRetries
	}

	h.queue(w, r, common.JobTypeRetryFailed, params)
}

// PurgeHandler queues a cleanup run
func (h *MaintenanceHandler) PurgeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req PurgeRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	params := make(map[string]interface{})
	if req.Retention != "" {
		if d, err := time.ParseDuration(req.Retention); err != nil || d <= 0 {
			WriteError(w, http.StatusBadRequest, "retention must be a positive duration")
			return
		}
		params["retention"] = req.Retention
	}

	h.queue(w, r, common.JobTypeCleanup, params)
}

func (h *MaintenanceHandler) queue(w http.ResponseWriter, r *http.Request, jobType string, params map[string]interface{}) {
	jobID, err := h.status.TriggerJob(r.Context(), jobType, params)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_type", jobType).Msg("Maintenance run refused")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, TriggerResponse{JobID: jobID, JobType: jobType, Status: "scheduled"})
}
