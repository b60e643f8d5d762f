package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/models"
)

// StatsHandler serves statistics, workflow and trigger summaries
type StatsHandler struct {
	status StatusService
	logger arbor.ILogger
}

func NewStatsHandler(status StatusService, logger arbor.ILogger) *StatsHandler {
	return &StatsHandler{
		status: status,
		logger: logger,
	}
}

// StatsHandler returns statistics for ?period=, or every standard period
func (h *StatsHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	period := models.StatsPeriod(r.URL.Query().Get("period"))
	if period != "" {
		if _, ok := period.Duration(); !ok {
			WriteError(w, http.StatusBadRequest, "period must be one of last_hour, last_24h, last_week, last_month")
			return
		}
	}

	stats, err := h.status.GetStatistics(r.Context(), period)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute statistics")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// WorkflowsHandler returns per job type status
func (h *StatsHandler) WorkflowsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	statuses, err := h.status.WorkflowStatuses(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute workflow status")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, statuses)
}

// PerformanceHandler returns per workflow figures and alerts over the review window
func (h *StatsHandler) PerformanceHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	report, err := h.status.WorkflowPerformance(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to review workflow performance")
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// TriggersHandler returns every registered trigger and its bookkeeping
func (h *StatsHandler) TriggersHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.status.Triggers())
}
