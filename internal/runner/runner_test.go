package runner_test

import (
	"context"
	"testing"

	"ifsbench/internal/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestService_Execute(t *testing.T) {
	service := runner.NewService(zap.NewNop())

	result, err := service.Execute(context.Background(), runner.Command{
		Argv: []string{"sh", "-c", "echo out; echo err >&2"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
}

func TestService_Execute_WorkingDirectory(t *testing.T) {
	service := runner.NewService(zap.NewNop())
	dir := t.TempDir()

	result, err := service.Execute(context.Background(), runner.Command{
		Argv: []string{"pwd"},
		Dir:  dir,
	})
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, dir)
}

func TestService_Execute_Environment(t *testing.T) {
	service := runner.NewService(zap.NewNop())

	result, err := service.Execute(context.Background(), runner.Command{
		Argv: []string{"sh", "-c", "echo $IFS_TEST_VALUE"},
		Env:  map[string]string{"IFS_TEST_VALUE": "forty-two"},
	})
	require.NoError(t, err)
	assert.Equal(t, "forty-two\n", result.Stdout)
}

func TestService_Execute_NonZeroExit(t *testing.T) {
	service := runner.NewService(zap.NewNop())

	result, err := service.Execute(context.Background(), runner.Command{
		Argv: []string{"sh", "-c", "exit 3"},
	})
	assert.ErrorIs(t, err, runner.ErrNonZeroExit)
	assert.Equal(t, 3, result.ExitCode)
}

func TestService_Execute_AllowFailure(t *testing.T) {
	service := runner.NewService(zap.NewNop())

	result, err := service.Execute(context.Background(), runner.Command{
		Argv:         []string{"sh", "-c", "exit 3"},
		AllowFailure: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestService_Execute_EmptyCommand(t *testing.T) {
	service := runner.NewService(zap.NewNop())

	_, err := service.Execute(context.Background(), runner.Command{})
	assert.Error(t, err)
}
