// Package audit collects host and Python/conda environment details into reports.
// Every host command goes through a CommandRunner so probes can be faked in tests.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds a single host command when no timeout is configured.
const DefaultCommandTimeout = 30 * time.Second

// CommandRunner executes a host command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, arguments ...string) (string, error)
}

// CommandError describes a host command that failed to start or exited unsuccessfully.
type CommandError struct {
	Name      string
	Arguments []string
	Stderr    string
	Err       error
}

// Error implements error.
func (commandError *CommandError) Error() string {
	commandLine := strings.TrimSpace(commandError.Name + " " + strings.Join(commandError.Arguments, " "))
	stderr := strings.TrimSpace(commandError.Stderr)
	if stderr == "" {
		return fmt.Sprintf("%s: %v", commandLine, commandError.Err)
	}
	return fmt.Sprintf("%s: %v: %s", commandLine, commandError.Err, firstLine(stderr))
}

// Unwrap exposes the underlying cause.
func (commandError *CommandError) Unwrap() error {
	return commandError.Err
}

// ExecRunner runs commands with os/exec, each bounded by Timeout.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner creates an ExecRunner; a non-positive timeout selects DefaultCommandTimeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &ExecRunner{Timeout: timeout}
}

// Run implements CommandRunner.
func (runner *ExecRunner) Run(ctx context.Context, name string, arguments ...string) (string, error) {
	timeout := runner.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	commandContext, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204
	command := exec.CommandContext(commandContext, name, arguments...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	if runError := command.Run(); runError != nil {
		if contextError := commandContext.Err(); contextError != nil {
			runError = contextError
		}
		return "", &CommandError{Name: name, Arguments: arguments, Stderr: stderr.String(), Err: runError}
	}
	return stdout.String(), nil
}

func firstLine(text string) string {
	if index := strings.IndexByte(text, '\n'); index >= 0 {
		return strings.TrimSpace(text[:index])
	}
	return text
}

var _ CommandRunner = (*ExecRunner)(nil)
