package healing

import (
	"context"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/interfaces"
)

// Registry maps components to their remediation action
type Registry struct {
	mu      sync.RWMutex
	actions map[string]interfaces.RemediationAction
}

// NewRegistry creates an empty action registry
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]interfaces.RemediationAction)}
}

// Register binds an action to a component, replacing any earlier binding
func (r *Registry) Register(component string, action interfaces.RemediationAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[component] = action
}

// Lookup returns the action for a component
func (r *Registry) Lookup(component string) (interfaces.RemediationAction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	action, ok := r.actions[component]
	return action, ok
}

// Components lists components with a registered action
func (r *Registry) Components() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LogAction only records that remediation was requested. Components bound to it are
// rechecked after the cooldown like any other.
type LogAction struct {
	logger arbor.ILogger
}

// NewLogAction creates a logging no-op action
func NewLogAction(logger arbor.ILogger) *LogAction {
	return &LogAction{logger: logger}
}

func (a *LogAction) Name() string { return "log" }

func (a *LogAction) Remediate(ctx context.Context, component string) error {
	a.logger.Warn().Str("component", component).Msg("No automated remediation configured, waiting for recheck")
	return nil
}
