package common

import (
	"github.com/ternarybob/overseer/internal/models"
)

// System job types run on the monitoring and maintenance queues
const (
	JobTypeHealthCheck   = "health_check"
	JobTypeSystemMetrics = "collect_system_metrics"
	JobTypeCleanup       = "cleanup_old_records"
	JobTypeRetryFailed   = "retry_failed_tasks"

	JobTypeWorkflowPerformance = "monitor_workflow_performance"
)

// defaultMisfireGrace matches the scheduler default of five minutes
const defaultMisfireGrace = 300

type workflowDefault struct {
	jobType string
	minutes int
	cron    string
	params  map[string]interface{}
}

var workflowDefaults = []workflowDefault{
	{jobType: "google_maps_scraper", minutes: 60, params: map[string]interface{}{
		"query": "restaurants", "city": "München", "state": "BY", "max_results": 20,
	}},
	{jobType: "linkedin_extractor", minutes: 180, params: map[string]interface{}{
		"search_terms": []interface{}{"sales manager", "marketing director"}, "location": "Deutschland", "max_results": 25,
	}},
	{jobType: "ecommerce_intelligence", minutes: 120, params: map[string]interface{}{
		"categories": []interface{}{"smartphones", "laptops"}, "max_products": 30,
	}},
	{jobType: "social_media_harvester", minutes: 240, params: map[string]interface{}{
		"platforms": []interface{}{"instagram", "tiktok"}, "categories": []interface{}{"lifestyle", "tech"}, "max_accounts": 20,
	}},
	{jobType: "real_estate_analyzer", cron: "0 */6 * * *", params: map[string]interface{}{
		"cities": []interface{}{"München", "Berlin", "Hamburg"}, "property_types": []interface{}{"wohnung", "haus"}, "max_properties": 15,
	}},
	{jobType: "job_market_intelligence", cron: "0 8 * * *", params: map[string]interface{}{
		"job_titles": []interface{}{"software developer", "data scientist"}, "locations": []interface{}{"München", "Berlin"}, "max_jobs": 25,
	}},
	{jobType: "restaurant_analyzer", minutes: 360, params: map[string]interface{}{
		"cities": []interface{}{"München", "Berlin"}, "cuisines": []interface{}{"italienisch", "asiatisch"}, "max_restaurants": 20,
	}},
	{jobType: "finance_data_collector", minutes: 30, params: map[string]interface{}{
		"symbols": []interface{}{"BMW", "SAP", "SIEMENS"}, "max_stocks": 15,
	}},
	{jobType: "event_scout", cron: "0 9 * * *", params: map[string]interface{}{
		"cities": []interface{}{"München", "Berlin"}, "categories": []interface{}{"business", "technology"}, "max_events": 18,
	}},
	{jobType: "vehicle_market_intel", cron: "0 */12 * * *", params: map[string]interface{}{
		"brands": []interface{}{"BMW", "Mercedes", "Audi"}, "max_vehicles": 12,
	}},
	{jobType: "seo_opportunity_finder", cron: "0 10 * * *", params: map[string]interface{}{
		"industries": []interface{}{"marketing", "ecommerce"}, "max_keywords": 30,
	}},
}

// WorkflowJobTypes returns the built-in scraping workflow job types
func WorkflowJobTypes() []string {
	types := make([]string, 0, len(workflowDefaults))
	for _, w := range workflowDefaults {
		types = append(types, w.jobType)
	}
	return types
}

// DefaultTriggers returns one trigger per built-in workflow
func DefaultTriggers() []models.Trigger {
	triggers := make([]models.Trigger, 0, len(workflowDefaults))
	for _, w := range workflowDefaults {
		t := models.Trigger{
			JobType:             w.jobType,
			MisfireGraceSeconds: defaultMisfireGrace,
			Coalesce:            true,
			MaxInstances:        1,
			Parameters:          w.params,
			Enabled:             true,
		}
		if w.cron != "" {
			t.ID = w.jobType + "_cron"
			t.Kind = models.TriggerKindCron
			t.CronExpression = w.cron
		} else {
			t.ID = w.jobType + "_interval"
			t.Kind = models.TriggerKindInterval
			t.IntervalSeconds = w.minutes * 60
		}
		triggers = append(triggers, t)
	}
	return triggers
}

// DefaultComponents returns the built-in monitored component registry
func DefaultComponents() []ComponentConfig {
	return []ComponentConfig{
		{Name: "backend_api", Probe: "http", Targets: []string{"http://localhost:8001/api/"}},
		{Name: "frontend_expo", Probe: "http", Targets: []string{"http://localhost:3000"}},
		{Name: "mongodb", Probe: "tcp", Targets: []string{"localhost:27017"}},
		{Name: "nginx_proxy", Probe: "process", Targets: []string{"nginx"}},
		{Name: "system_resources", Probe: "resources", Targets: []string{"/"}},
		{Name: "network_connectivity", Probe: "tcp", Targets: []string{"8.8.8.8:53", "1.1.1.1:53"}},
		{Name: "security_status", Probe: "suspicious_processes", Targets: []string{"xmrig", "minerd", "cryptonight"}},
		{Name: "file_permissions", Probe: "permissions", Targets: []string{"/app/backend", "/app/frontend"}},
		{Name: "dependency_integrity", Probe: "command", Command: []string{"pip", "check"}},
		{Name: "code_syntax", Probe: "command", Command: []string{"python3", "-m", "py_compile", "/app/backend/server.py"}},
		{Name: "database_integrity", Probe: "command", Command: []string{"mongosh", "--quiet", "--eval", "db.runCommand({ping: 1}).ok"}},
		{Name: "api_endpoints", Probe: "http", Targets: []string{"http://localhost:8001/api/", "http://localhost:8001/api/status"}},
		{Name: "authentication", Probe: "http", Targets: []string{"http://localhost:8001/api/auth/health"}},
		{Name: "ssl_certificates", Probe: "tls", Targets: []string{"localhost:443"}},
		{Name: "backup_systems", Probe: "paths", Targets: []string{"/app/backups"}},
	}
}
