// Package tasks drives the project's maintenance tooling: cleaning,
// documentation, linting, testing and releases.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Runner runs an external command line
type Runner interface {
	Run(ctx context.Context, command string) error
}

// CommandError is returned when an external command exits unsuccessfully
type CommandError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ShellRunner runs commands through sh in the current directory
type ShellRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
	// Echo, when set, receives every command before it runs
	Echo io.Writer
}

// NewShellRunner creates a runner attached to the process's standard streams
func NewShellRunner() *ShellRunner {
	return &ShellRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Stdin:  os.Stdin,
	}
}

// Run executes command with sh -c and waits for it to finish
func (r *ShellRunner) Run(ctx context.Context, command string) error {
	if r.Echo != nil {
		fmt.Fprintln(r.Echo, command)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.Stdin = r.Stdin

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CommandError{Command: command, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return &CommandError{Command: command, ExitCode: -1, Err: err}
	}
	return nil
}

// ExitError aborts a task with a message for the user
type ExitError struct {
	Message string
}

func (e *ExitError) Error() string { return e.Message }
