// -----------------------------------------------------------------------
// Component probes - concrete checks behind the ComponentProber interface
// -----------------------------------------------------------------------

package probes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
)

// Probe checks one component
type Probe func(ctx context.Context) (models.ProbeResult, error)

// Probe kinds accepted in component configuration
const (
	KindResources           = "resources"
	KindHTTP                = "http"
	KindTCP                 = "tcp"
	KindTLS                 = "tls"
	KindProcess             = "process"
	KindSuspiciousProcesses = "suspicious_processes"
	KindPermissions         = "permissions"
	KindPaths               = "paths"
	KindCommand             = "command"
)

// Prober dispatches probes by component name
type Prober struct {
	mu     sync.RWMutex
	probes map[string]Probe
	logger arbor.ILogger
}

var _ interfaces.ComponentProber = (*Prober)(nil)

// NewProber creates a prober with one probe per configured component
func NewProber(components []common.ComponentConfig, thresholds common.ThresholdConfig, runner CommandRunner, timeout time.Duration, logger arbor.ILogger) (*Prober, error) {
	p := &Prober{
		probes: make(map[string]Probe, len(components)),
		logger: logger,
	}

	for _, component := range components {
		probe, err := Build(component, thresholds, runner, timeout)
		if err != nil {
			return nil, fmt.Errorf("component %s: %w", component.Name, err)
		}
		p.Register(component.Name, probe)
	}
	return p, nil
}

// Register binds a probe to a component name, replacing any earlier one
func (p *Prober) Register(component string, probe Probe) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes[component] = probe
}

// Probe runs the probe registered for component
func (p *Prober) Probe(ctx context.Context, component string) (models.ProbeResult, error) {
	p.mu.RLock()
	probe, ok := p.probes[component]
	p.mu.RUnlock()

	if !ok {
		return models.ProbeResult{}, fmt.Errorf("no probe registered for component %s: %w", component, interfaces.ErrNotFound)
	}
	return probe(ctx)
}

// Build creates the probe described by one component configuration
func Build(component common.ComponentConfig, thresholds common.ThresholdConfig, runner CommandRunner, timeout time.Duration) (Probe, error) {
	switch component.Probe {
	case KindResources:
		path := "/"
		if len(component.Targets) > 0 {
			path = component.Targets[0]
		}
		return Resources(path), nil
	case KindHTTP:
		return HTTP(component.Targets, timeout), nil
	case KindTCP:
		return TCP(component.Targets, timeout), nil
	case KindTLS:
		return TLS(component.Targets, timeout, thresholds.CertWarningDays, thresholds.CertCriticalDays), nil
	case KindProcess:
		return Processes(component.Targets), nil
	case KindSuspiciousProcesses:
		return SuspiciousProcesses(component.Targets), nil
	case KindPermissions:
		return Permissions(component.Targets), nil
	case KindPaths:
		return Paths(component.Targets), nil
	case KindCommand:
		if len(component.Command) == 0 {
			return nil, fmt.Errorf("command probe needs a command")
		}
		return Command(runner, component.Command), nil
	default:
		return nil, fmt.Errorf("unknown probe kind %q", component.Probe)
	}
}
