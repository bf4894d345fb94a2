package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/apex/log"
)

// CommandError is returned when an external command fails or produces unusable output
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("error in executing %s: %s", e.Command, strings.TrimSpace(e.Message))
}

// CommandResult holds the exit status and captured output of an external command
type CommandResult struct {
	Status int
	Stdout string
	Stderr string
}

// RunCommand runs the command at path with args and waits for it to exit.
//
// A non-zero exit is reported through CommandResult.Status, not as an error; an error
// is only returned when the process could not be started or was interrupted.
func RunCommand(ctx context.Context, path string, args ...string) (*CommandResult, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.WithField("cmd", cmd.String()).Debug("Running")

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %s: %w", path, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return &CommandResult{
		Status: cmd.ProcessState.ExitCode(),
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}, nil
}
