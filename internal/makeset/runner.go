package makeset

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
)

// CommandRunner executes one shell command line and returns its exit code.
// A non-nil error means the command could not be run or exited non-zero.
type CommandRunner interface {
	Run(ctx context.Context, command string) (exitCode int, err error)
}

// ShellRunner runs commands through `sh -c`, the same contract make uses.
type ShellRunner struct {
	// Dir is the working directory for commands. Empty means the process's.
	Dir string
	// Stdout and Stderr receive command output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes the command line. The context cancels the process.
func (r ShellRunner) Run(ctx context.Context, command string) (int, error) {
	slog.Debug("running command", "command", command, "dir", r.Dir)

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = r.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	return -1, err
}
