package health

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/metrics"
	"github.com/ternarybob/overseer/internal/models"
)

// Classifier turns raw probe readings into the four-state verdict
type Classifier struct {
	thresholds    common.ThresholdConfig
	issueCritical map[string]int
}

// NewClassifier creates a classifier. Per-component issue thresholds override the default.
func NewClassifier(thresholds common.ThresholdConfig, components []common.ComponentConfig) *Classifier {
	issueCritical := make(map[string]int)
	for _, c := range components {
		if c.IssueCritical > 0 {
			issueCritical[c.Name] = c.IssueCritical
		}
	}
	return &Classifier{
		thresholds:    thresholds,
		issueCritical: issueCritical,
	}
}

// Classify returns the status and details for one probe result
func (c *Classifier) Classify(component string, result models.ProbeResult) (models.HealthStatus, string) {
	switch result.Kind {
	case models.ProbeKindUtilization:
		return c.utilization(result)
	case models.ProbeKindConnectivity:
		return c.connectivity(result)
	case models.ProbeKindIssues:
		return c.issues(component, result)
	default:
		if result.Status == "" {
			return models.HealthStatusFailed, joinDetails("probe returned no status", result.Details)
		}
		return result.Status, result.Details
	}
}

// utilization: below warning healthy, warning..critical warning, above critical critical.
// The worst resource decides.
func (c *Classifier) utilization(result models.ProbeResult) (models.HealthStatus, string) {
	if len(result.Utilization) == 0 {
		return models.HealthStatusFailed, joinDetails("no utilization readings", result.Details)
	}

	resources := make([]string, 0, len(result.Utilization))
	for name := range result.Utilization {
		resources = append(resources, name)
	}
	sort.Strings(resources)

	status := models.HealthStatusHealthy
	readings := make([]string, 0, len(resources))
	for _, name := range resources {
		value := result.Utilization[name]
		warning, critical := c.band(name)

		resourceStatus := models.HealthStatusHealthy
		switch {
		case value > critical:
			resourceStatus = models.HealthStatusCritical
		case value >= warning:
			resourceStatus = models.HealthStatusWarning
		}
		if resourceStatus.Severity() > status.Severity() {
			status = resourceStatus
		}
		readings = append(readings, fmt.Sprintf("%s %.1f%%", name, value))
	}

	return status, joinDetails(strings.Join(readings, ", "), result.Details)
}

func (c *Classifier) band(resource string) (warning, critical float64) {
	warning, critical = c.thresholds.WarningPercent, c.thresholds.CriticalPercent
	if resource == metrics.ResourceDisk {
		if c.thresholds.DiskWarningPercent > 0 {
			warning = c.thresholds.DiskWarningPercent
		}
		if c.thresholds.DiskCriticalPercent > 0 {
			critical = c.thresholds.DiskCriticalPercent
		}
	}
	return warning, critical
}

// connectivity: all reachable healthy, some warning, none failed
func (c *Classifier) connectivity(result models.ProbeResult) (models.HealthStatus, string) {
	summary := fmt.Sprintf("%d/%d endpoints reachable", result.Succeeded, result.Attempted)
	switch {
	case result.Attempted > 0 && result.Succeeded >= result.Attempted:
		return models.HealthStatusHealthy, joinDetails(summary, result.Details)
	case result.Succeeded > 0:
		return models.HealthStatusWarning, joinDetails(summary, result.Details)
	default:
		return models.HealthStatusFailed, joinDetails(summary, result.Details)
	}
}

// issues: none healthy, up to the critical threshold warning, above it critical
func (c *Classifier) issues(component string, result models.ProbeResult) (models.HealthStatus, string) {
	limit := c.thresholds.IssueCritical
	if override, ok := c.issueCritical[component]; ok {
		limit = override
	}

	summary := fmt.Sprintf("%d issues found", result.Issues)
	switch {
	case result.Issues <= 0:
		return models.HealthStatusHealthy, joinDetails("no issues found", result.Details)
	case result.Issues <= limit:
		return models.HealthStatusWarning, joinDetails(summary, result.Details)
	default:
		return models.HealthStatusCritical, joinDetails(summary, result.Details)
	}
}

func joinDetails(summary, details string) string {
	if details == "" {
		return summary
	}
	return summary + ": " + details
}
