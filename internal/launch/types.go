package launch

import (
	"context"
	"fmt"

	"ifsbench/internal"
	"ifsbench/internal/runner"

	"go.uber.org/zap"
)

// Variant selects one of the supported launcher flag vocabularies. The set
// is closed; configuration picks a variant through the "launcher" key.
type Variant string

const (
	// VariantSrun targets Slurm's srun.
	VariantSrun Variant = "srun"
	// VariantAprun targets Cray aprun-style launchers.
	VariantAprun Variant = "aprun"
	// VariantMpirun targets a generic Open MPI style mpirun.
	VariantMpirun Variant = "mpirun"
)

func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case VariantSrun, VariantAprun, VariantMpirun:
		return Variant(s), nil
	}
	return "", fmt.Errorf("%w: %q", internal.ErrUnknownLauncher, s)
}

// DiscriminatorKey is the configuration key that selects the launcher
// variant when an encoder is built from a flat key/value mapping.
const DiscriminatorKey = "launcher"

// FromConfig builds an encoder from a flat configuration mapping using the
// DiscriminatorKey entry to pick the variant.
func FromConfig(logger *zap.Logger, cfg map[string]string) (*Encoder, error) {
	name, ok := cfg[DiscriminatorKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q key", internal.ErrUnknownLauncher, DiscriminatorKey)
	}

	variant, err := ParseVariant(name)
	if err != nil {
		return nil, err
	}

	return New(logger, variant)
}

// LaunchSpec contains all data necessary for launching a command.
type LaunchSpec struct {
	RunDir string
	Cmd    []string
	Env    map[string]string
}

// Launch runs the assembled command through the given runner and waits for
// it to finish.
func (l LaunchSpec) Launch(ctx context.Context, exec *runner.Service, logger *zap.Logger) (runner.Result, error) {
	logger.Info("launching prepared command",
		zap.Strings("cmd", l.Cmd),
		zap.String("run_dir", l.RunDir))

	for key, value := range l.Env {
		logger.Debug("launch environment", zap.String("key", key), zap.String("value", value))
	}

	return exec.Execute(ctx, runner.Command{
		Argv: l.Cmd,
		Dir:  l.RunDir,
		Env:  l.Env,
	})
}
