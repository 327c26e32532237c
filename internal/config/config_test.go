package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"ifsbench/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	cfg := config.Config{RunDir: ".", Profile: "xc40"}
	assert.NoError(t, cfg.Validate())

	cfg = config.Config{Profile: "xc40"}
	assert.ErrorIs(t, cfg.Validate(), config.ErrRunDirRequired)

	cfg = config.Config{RunDir: "."}
	assert.ErrorIs(t, cfg.Validate(), config.ErrProfileRequired)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
profile: xc40
launcher: aprun
run_dir: /scratch/runs
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	base := &config.Config{Launcher: "srun", RunDir: "."}
	logger := config.NewConfigLogger()

	cfg, err := config.FromFile(path, base, logger)
	require.NoError(t, err)

	assert.Equal(t, "xc40", cfg.Profile)
	assert.Equal(t, "aprun", cfg.Launcher)
	assert.Equal(t, "/scratch/runs", cfg.RunDir)
}

func TestFromFile_MissingFileKeepsDefaults(t *testing.T) {
	base := &config.Config{Launcher: "srun", RunDir: "."}
	logger := config.NewConfigLogger()

	cfg, err := config.FromFile(filepath.Join(t.TempDir(), "missing.yaml"), base, logger)
	assert.Error(t, err)
	assert.Equal(t, "srun", cfg.Launcher)
}

func TestConfig_WithOverrides(t *testing.T) {
	cfg := config.Config{Profile: "xc40", Launcher: "srun", RunDir: "."}

	merged, err := cfg.WithOverrides(config.Config{Launcher: "mpirun"})
	require.NoError(t, err)

	assert.Equal(t, "mpirun", merged.Launcher)
	assert.Equal(t, "xc40", merged.Profile)
	assert.Equal(t, ".", merged.RunDir)
}
