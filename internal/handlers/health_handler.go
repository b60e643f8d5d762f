package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
)

// HealthHandler serves component health
type HealthHandler struct {
	status StatusService
	logger arbor.ILogger
}

func NewHealthHandler(status StatusService, logger arbor.ILogger) *HealthHandler {
	return &HealthHandler{
		status: status,
		logger: logger,
	}
}

// LatestHandler returns the latest check per component
func (h *HealthHandler) LatestHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	checks, err := h.status.GetLatestHealth(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load latest health")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, checks)
}

// ReportHandler returns the overall health level
func (h *HealthHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	report, err := h.status.HealthReport(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to build health report")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// SweepHandler queues an immediate health sweep on the monitoring queue
func (h *HealthHandler) SweepHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	jobID, err := h.status.TriggerJob(r.Context(), common.JobTypeHealthCheck, nil)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, TriggerResponse{JobID: jobID, JobType: common.JobTypeHealthCheck, Status: "scheduled"})
}
