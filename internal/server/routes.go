package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Jobs
	mux.HandleFunc("/api/jobs/trigger", s.app.JobHandler.TriggerJobHandler)
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)
	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		RouteByMethod(w, r, MethodRouter{"GET": s.app.JobHandler.GetJobHandler})
	})

	// Health
	mux.HandleFunc("/api/health", s.app.HealthHandler.LatestHandler)
	mux.HandleFunc("/api/health/report", s.app.HealthHandler.ReportHandler)
	mux.HandleFunc("/api/health/sweep", s.app.HealthHandler.SweepHandler)

	// Statistics and workflow status
	mux.HandleFunc("/api/stats", s.app.StatsHandler.StatsHandler)
	mux.HandleFunc("/api/workflows", s.app.StatsHandler.WorkflowsHandler)
	mux.HandleFunc("/api/workflows/performance", s.app.StatsHandler.PerformanceHandler)
	mux.HandleFunc("/api/triggers", s.app.StatsHandler.TriggersHandler)

	// Maintenance
	mux.HandleFunc("/api/maintenance/", func(w http.ResponseWriter, r *http.Request) {
		routed := RouteByPathSuffix(w, r, "/api/maintenance", []PathSuffixRouter{
			{Suffix: "/retry", Handler: s.app.MaintenanceHandler.RetryHandler},
			{Suffix: "/purge", Handler: s.app.MaintenanceHandler.PurgeHandler},
		})
		if !routed {
			s.app.APIHandler.NotFoundHandler(w, r)
		}
	})

	// System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
