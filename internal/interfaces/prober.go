package interfaces

import (
	"context"

	"github.com/ternarybob/overseer/internal/models"
)

// ComponentProber performs the actual check for one named component
type ComponentProber interface {
	Probe(ctx context.Context, component string) (models.ProbeResult, error)
}

// ProberFunc adapts a function to ComponentProber
type ProberFunc func(ctx context.Context, component string) (models.ProbeResult, error)

// Probe calls f
func (f ProberFunc) Probe(ctx context.Context, component string) (models.ProbeResult, error) {
	return f(ctx, component)
}

// RemediationAction is a named repair step for one component
type RemediationAction interface {
	Name() string
	Remediate(ctx context.Context, component string) error
}
