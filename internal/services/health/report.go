package health

import (
	"time"

	"github.com/ternarybob/overseer/internal/models"
)

// BuildReport derives the overall health level from the latest check of every component.
// Any failed or unresolved component puts the system in maintenance, any critical one needs
// attention, warnings alone are still good.
func BuildReport(checks []*models.HealthCheck, now time.Time) *models.HealthReport {
	report := &models.HealthReport{
		Level:       models.HealthLevelOptimal,
		GeneratedAt: now,
		Counts: map[models.HealthStatus]int{
			models.HealthStatusHealthy:  0,
			models.HealthStatusWarning:  0,
			models.HealthStatusCritical: 0,
			models.HealthStatusFailed:   0,
		},
		Checks: checks,
	}

	for _, check := range checks {
		report.Counts[check.Status]++
		if !check.IsHealthy() {
			report.Unhealthy = append(report.Unhealthy, check.Component)
		}
		if check.Unresolved {
			report.Unresolved = append(report.Unresolved, check.Component)
		}
	}

	switch {
	case report.Counts[models.HealthStatusFailed] > 0 || len(report.Unresolved) > 0:
		report.Level = models.HealthLevelMaintenance
	case report.Counts[models.HealthStatusCritical] > 0:
		report.Level = models.HealthLevelAttention
	case report.Counts[models.HealthStatusWarning] > 0:
		report.Level = models.HealthLevelGood
	}

	return report
}
