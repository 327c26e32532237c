// Package runner spawns external processes and captures their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

var ErrNonZeroExit = errors.New("command exited with non-zero status")

// Command describes one process invocation.
type Command struct {
	Argv []string
	Dir  string
	Env  map[string]string
	// AllowFailure reports a non-zero exit through Result instead of an error.
	AllowFailure bool
}

// Result holds the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

type Service struct {
	logger *zap.Logger
}

func NewService(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Execute runs the command and waits for it to finish. There is no internal
// timeout; callers that need one wrap ctx. A non-zero exit status is an error
// unless AllowFailure is set.
func (s *Service) Execute(ctx context.Context, command Command) (Result, error) {
	if len(command.Argv) == 0 {
		return Result{}, errors.New("empty command")
	}

	s.logger.Info("launching command",
		zap.Strings("argv", command.Argv),
		zap.String("dir", command.Dir))

	cmd := exec.CommandContext(ctx, command.Argv[0], command.Argv[1:]...)
	cmd.Dir = command.Dir

	if command.Env != nil {
		environ := make([]string, 0, len(command.Env))
		for key, value := range command.Env {
			environ = append(environ, key+"="+value)
		}
		cmd.Env = environ
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if command.AllowFailure {
				s.logger.Warn("command failed, continuing",
					zap.Strings("argv", command.Argv),
					zap.Int("exit_code", result.ExitCode))
				return result, nil
			}
			return result, fmt.Errorf("%w: %d", ErrNonZeroExit, result.ExitCode)
		}
		return result, fmt.Errorf("failed to run command: %w", err)
	}

	return result, nil
}
