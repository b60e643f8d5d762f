package probes

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/models"
)

// maxOutput caps command output carried into details and errors
const maxOutput = 500

// CommandRunner runs argv and returns its combined output. Probes and remediation
// actions shell out only through a runner so tests can swap it.
type CommandRunner func(ctx context.Context, argv []string) ([]byte, error)

// ExecRunner runs commands with os/exec
func ExecRunner(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
}

// Command runs argv: exit status zero is healthy, any other exit is critical,
// and a command that cannot start is a probe error
func Command(runner CommandRunner, argv []string) Probe {
	if runner == nil {
		runner = ExecRunner
	}

	return func(ctx context.Context) (models.ProbeResult, error) {
		output, err := runner(ctx, argv)
		if err == nil {
			return models.ProbeResult{Kind: models.ProbeKindVerdict, Status: models.HealthStatusHealthy, Details: truncate(output)}, nil
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			details := fmt.Sprintf("%s exited with %d", argv[0], exitErr.ExitCode())
			if out := truncate(output); out != "" {
				details += ": " + out
			}
			return models.ProbeResult{Kind: models.ProbeKindVerdict, Status: models.HealthStatusCritical, Details: details}, nil
		}
		return models.ProbeResult{}, fmt.Errorf("failed to run %s: %w", argv[0], err)
	}
}

// CommandAction is a remediation step that runs a fixed command
type CommandAction struct {
	name    string
	argv    []string
	timeout time.Duration
	runner  CommandRunner
	logger  arbor.ILogger
}

var _ interfaces.RemediationAction = (*CommandAction)(nil)

// NewCommandAction creates a command remediation action. runner defaults to ExecRunner.
func NewCommandAction(name string, argv []string, timeout time.Duration, runner CommandRunner, logger arbor.ILogger) *CommandAction {
	if runner == nil {
		runner = ExecRunner
	}
	return &CommandAction{
		name:    name,
		argv:    append([]string(nil), argv...),
		timeout: timeout,
		runner:  runner,
		logger:  logger,
	}
}

func (a *CommandAction) Name() string {
	return a.name
}

func (a *CommandAction) Remediate(ctx context.Context, component string) error {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	a.logger.Info().
		Str("component", component).
		Str("action", a.name).
		Strs("command", a.argv).
		Msg("Running remediation command")

	output, err := a.runner(ctx, a.argv)
	if err != nil {
		if out := truncate(output); out != "" {
			return fmt.Errorf("%s: %w: %s", a.name, err, out)
		}
		return fmt.Errorf("%s: %w", a.name, err)
	}
	return nil
}

func truncate(output []byte) string {
	s := strings.TrimSpace(string(output))
	if len(s) > maxOutput {
		return s[:maxOutput] + "..."
	}
	return s
}
