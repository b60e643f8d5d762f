package probes

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/ternarybob/overseer/internal/metrics"
	"github.com/ternarybob/overseer/internal/models"
)

// Resources samples cpu, memory and disk utilization for the volume holding path
func Resources(path string) Probe {
	return func(ctx context.Context) (models.ProbeResult, error) {
		sample, err := metrics.SampleSystem(ctx, path)
		if err != nil {
			return models.ProbeResult{}, err
		}
		return models.ProbeResult{Kind: models.ProbeKindUtilization, Utilization: sample}, nil
	}
}

// Processes counts how many of the named processes are running
func Processes(names []string) Probe {
	return processProbe(names, runningProcessNames)
}

func processProbe(names []string, list func(ctx context.Context) ([]string, error)) Probe {
	return func(ctx context.Context) (models.ProbeResult, error) {
		running, err := list(ctx)
		if err != nil {
			return models.ProbeResult{}, err
		}

		present := make(map[string]bool, len(running))
		for _, name := range running {
			present[name] = true
		}

		result := models.ProbeResult{Kind: models.ProbeKindConnectivity, Attempted: len(names)}
		var missing []string
		for _, name := range names {
			if present[name] {
				result.Succeeded++
				continue
			}
			missing = append(missing, name)
		}
		if len(missing) > 0 {
			result.Details = "not running: " + strings.Join(missing, ", ")
		}
		return result, nil
	}
}

// SuspiciousProcesses counts running processes whose name contains one of the patterns
func SuspiciousProcesses(patterns []string) Probe {
	return suspiciousProbe(patterns, runningProcessNames)
}

func suspiciousProbe(patterns []string, list func(ctx context.Context) ([]string, error)) Probe {
	return func(ctx context.Context) (models.ProbeResult, error) {
		running, err := list(ctx)
		if err != nil {
			return models.ProbeResult{}, err
		}

		var found []string
		for _, name := range running {
			lower := strings.ToLower(name)
			for _, pattern := range patterns {
				if strings.Contains(lower, strings.ToLower(pattern)) {
					found = append(found, name)
					break
				}
			}
		}

		result := models.ProbeResult{Kind: models.ProbeKindIssues, Issues: len(found)}
		if len(found) > 0 {
			sort.Strings(found)
			result.Details = "suspicious processes: " + strings.Join(found, ", ")
		}
		return result, nil
	}
}

func runningProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Processes exit between listing and inspection
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Permissions counts paths that are missing or writable by everyone
func Permissions(paths []string) Probe {
	return func(ctx context.Context) (models.ProbeResult, error) {
		var issues []string
		for _, path := range paths {
			info, err := os.Stat(path)
			if err != nil {
				issues = append(issues, fmt.Sprintf("%s: %v", path, err))
				continue
			}
			if info.Mode().Perm()&0o002 != 0 {
				issues = append(issues, fmt.Sprintf("%s: world writable (%s)", path, info.Mode().Perm()))
			}
		}
		return models.ProbeResult{
			Kind:    models.ProbeKindIssues,
			Issues:  len(issues),
			Details: strings.Join(issues, "; "),
		}, nil
	}
}

// Paths counts paths that exist
func Paths(paths []string) Probe {
	return func(ctx context.Context) (models.ProbeResult, error) {
		result := models.ProbeResult{Kind: models.ProbeKindConnectivity, Attempted: len(paths)}
		var missing []string
		for _, path := range paths {
			if _, err := os.Stat(path); err != nil {
				missing = append(missing, path)
				continue
			}
			result.Succeeded++
		}
		if len(missing) > 0 {
			result.Details = "missing: " + strings.Join(missing, ", ")
		}
		return result, nil
	}
}
