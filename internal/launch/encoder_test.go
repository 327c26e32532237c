package launch_test

import (
	"os"
	"testing"

	"ifsbench/internal"
	"ifsbench/internal/env"
	"ifsbench/internal/job"
	"ifsbench/internal/launch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func intPtr(v int) *int {
	return &v
}

func newEncoder(t *testing.T, variant launch.Variant) *launch.Encoder {
	t.Helper()
	encoder, err := launch.New(zap.NewNop(), variant)
	require.NoError(t, err)
	return encoder
}

func TestEncoder_Prepare_Srun(t *testing.T) {
	encoder := newEncoder(t, launch.VariantSrun)

	resolved := job.Resolved{
		Tasks:           185,
		Nodes:           12,
		TasksPerNode:    16,
		Bind:            job.BindThreads,
		DistributeLocal: job.DistributeCyclic,
	}

	spec := encoder.Prepare("/tmp/run", resolved, []string{"./ifs-master"}, launch.PrepareOptions{})

	assert.Equal(t, "/tmp/run", spec.RunDir)
	assert.Equal(t, []string{
		"srun",
		"--nodes=12",
		"--ntasks=185",
		"--ntasks-per-node=16",
		"--cpu-bind=threads",
		// The remote side defaults to "*" when only local placement is set.
		"--distribution=*:cyclic",
		"./ifs-master",
	}, spec.Cmd)
}

func TestEncoder_Prepare_Srun_AllAttributes(t *testing.T) {
	encoder := newEncoder(t, launch.VariantSrun)

	resolved := job.Resolved{
		Tasks:          64,
		Nodes:          4,
		TasksPerNode:   16,
		TasksPerSocket: intPtr(8),
		CPUsPerTask:    intPtr(2),
		ThreadsPerCore: intPtr(2),
		GPUsPerNode:    intPtr(4),
		Account:        "rd",
		Partition:      "compute",
	}

	spec := encoder.Prepare("/tmp/run", resolved, []string{"./ifs-master", "-v"}, launch.PrepareOptions{})

	assert.Equal(t, []string{
		"srun",
		"--nodes=4",
		"--ntasks=64",
		"--ntasks-per-node=16",
		"--ntasks-per-socket=8",
		"--cpus-per-task=2",
		"--ntasks-per-core=2",
		"--gpus-per-node=4",
		"--account=rd",
		"--partition=compute",
		"./ifs-master",
		"-v",
	}, spec.Cmd)
}

func TestEncoder_Prepare_SrunDistribution(t *testing.T) {
	testCases := []struct {
		name   string
		remote job.Distribution
		local  job.Distribution
		want   []string
	}{
		{name: "both unset", want: nil},
		{name: "both set", remote: job.DistributeBlock, local: job.DistributeCyclic, want: []string{"--distribution=block:cyclic"}},
		{name: "remote only", remote: job.DistributeCyclic, want: []string{"--distribution=cyclic:*"}},
		{name: "default renders star", remote: job.DistributeDefault, local: job.DistributeBlock, want: []string{"--distribution=*:block"}},
		// USER on one axis suppresses the combined flag for both axes.
		{name: "user remote suppresses both", remote: job.DistributeUser, local: job.DistributeCyclic, want: nil},
		{name: "user local suppresses both", remote: job.DistributeBlock, local: job.DistributeUser, want: nil},
	}

	encoder := newEncoder(t, launch.VariantSrun)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resolved := job.Resolved{
				Tasks:            4,
				Nodes:            1,
				TasksPerNode:     4,
				DistributeRemote: tc.remote,
				DistributeLocal:  tc.local,
			}

			spec := encoder.Prepare(".", resolved, []string{"exe"}, launch.PrepareOptions{})

			expected := []string{"srun", "--nodes=1", "--ntasks=4", "--ntasks-per-node=4"}
			expected = append(expected, tc.want...)
			expected = append(expected, "exe")
			assert.Equal(t, expected, spec.Cmd)
		})
	}
}

func TestEncoder_Prepare_Aprun(t *testing.T) {
	encoder := newEncoder(t, launch.VariantAprun)

	resolved := job.Resolved{
		Tasks:          64,
		Nodes:          4,
		TasksPerNode:   16,
		CPUsPerTask:    intPtr(2),
		ThreadsPerCore: intPtr(2),
		Bind:           job.BindCores,
		// aprun cannot express distribution; both axes are ignored.
		DistributeRemote: job.DistributeCyclic,
		DistributeLocal:  job.DistributeBlock,
		// Only srun can render these.
		Account:     "rd",
		Partition:   "compute",
		GPUsPerNode: intPtr(4),
	}

	spec := encoder.Prepare(".", resolved, []string{"exe"}, launch.PrepareOptions{})

	assert.Equal(t, []string{
		"aprun",
		"-n", "64",
		"-N", "16",
		"-d", "2",
		"-j", "2",
		"-cc", "cpu",
		"exe",
	}, spec.Cmd)
}

func TestEncoder_Prepare_Mpirun(t *testing.T) {
	encoder := newEncoder(t, launch.VariantMpirun)

	resolved := job.Resolved{
		Tasks:           64,
		Nodes:           4,
		TasksPerNode:    16,
		TasksPerSocket:  intPtr(8),
		CPUsPerTask:     intPtr(2),
		Bind:            job.BindThreads,
		DistributeLocal: job.DistributeCyclic,
	}

	spec := encoder.Prepare(".", resolved, []string{"exe"}, launch.PrepareOptions{})

	assert.Equal(t, []string{
		"mpirun",
		"-n", "64",
		"--npernode", "16",
		"--npersocket", "8",
		"--cpus-per-proc", "2",
		"--bind-to", "hwthread",
		"--map-by", "numa",
		"exe",
	}, spec.Cmd)
}

func TestEncoder_Prepare_MpirunIgnoresRemoteDistribution(t *testing.T) {
	encoder := newEncoder(t, launch.VariantMpirun)

	resolved := job.Resolved{
		Tasks:            4,
		Nodes:            1,
		TasksPerNode:     4,
		DistributeRemote: job.DistributeBlock,
	}

	// Remote placement is not expressible; a warning is logged and the run
	// proceeds without any distribution flag.
	spec := encoder.Prepare(".", resolved, []string{"exe"}, launch.PrepareOptions{})

	assert.Equal(t, []string{"mpirun", "-n", "4", "--npernode", "4", "exe"}, spec.Cmd)
}

func TestEncoder_Prepare_UserBindingEmitsNothing(t *testing.T) {
	for _, variant := range []launch.Variant{launch.VariantSrun, launch.VariantAprun, launch.VariantMpirun} {
		encoder := newEncoder(t, variant)

		resolved := job.Resolved{Tasks: 4, Nodes: 1, TasksPerNode: 4, Bind: job.BindUser}
		spec := encoder.Prepare(".", resolved, []string{"exe"}, launch.PrepareOptions{})

		for _, token := range spec.Cmd {
			assert.NotContains(t, token, "bind", "variant %s", variant)
			assert.NotContains(t, token, "-cc", "variant %s", variant)
		}
	}
}

func TestEncoder_Prepare_CustomFlagsPassedVerbatim(t *testing.T) {
	encoder := newEncoder(t, launch.VariantSrun)

	resolved := job.Resolved{Tasks: 4, Nodes: 1, TasksPerNode: 4}
	spec := encoder.Prepare(".", resolved, []string{"exe"}, launch.PrepareOptions{
		CustomFlags: []string{"--exclusive", "--whatever=yes"},
	})

	assert.Equal(t, []string{
		"srun", "--nodes=1", "--ntasks=4", "--ntasks-per-node=4",
		"--exclusive", "--whatever=yes",
		"exe",
	}, spec.Cmd)
}

func TestEncoder_Prepare_LibraryPaths(t *testing.T) {
	encoder := newEncoder(t, launch.VariantSrun)

	pipeline := env.NewPipeline(zap.NewNop(), map[string]string{
		"LD_LIBRARY_PATH": "/usr/lib",
	})

	resolved := job.Resolved{Tasks: 4, Nodes: 1, TasksPerNode: 4}
	spec := encoder.Prepare(".", resolved, []string{"exe"}, launch.PrepareOptions{
		LibraryPaths: []string{"/opt/ifs/lib"},
		Pipeline:     pipeline,
	})

	sep := string(os.PathListSeparator)
	assert.Equal(t, "/usr/lib"+sep+"/opt/ifs/lib", spec.Env["LD_LIBRARY_PATH"])
}

func TestEncoder_Prepare_Deterministic(t *testing.T) {
	encoder := newEncoder(t, launch.VariantSrun)

	resolved := job.Resolved{
		Tasks:           185,
		Nodes:           12,
		TasksPerNode:    16,
		Bind:            job.BindThreads,
		DistributeLocal: job.DistributeCyclic,
	}

	first := encoder.Prepare(".", resolved, []string{"exe"}, launch.PrepareOptions{})
	for i := 0; i < 10; i++ {
		spec := encoder.Prepare(".", resolved, []string{"exe"}, launch.PrepareOptions{})
		assert.Equal(t, first.Cmd, spec.Cmd)
	}
}

func TestParseVariant(t *testing.T) {
	variant, err := launch.ParseVariant("aprun")
	require.NoError(t, err)
	assert.Equal(t, launch.VariantAprun, variant)

	_, err = launch.ParseVariant("qsub")
	assert.ErrorIs(t, err, internal.ErrUnknownLauncher)
}

func TestFromConfig(t *testing.T) {
	encoder, err := launch.FromConfig(zap.NewNop(), map[string]string{"launcher": "mpirun"})
	require.NoError(t, err)
	assert.Equal(t, launch.VariantMpirun, encoder.Variant())

	_, err = launch.FromConfig(zap.NewNop(), map[string]string{})
	assert.ErrorIs(t, err, internal.ErrUnknownLauncher)

	_, err = launch.FromConfig(zap.NewNop(), map[string]string{"launcher": "qsub"})
	assert.ErrorIs(t, err, internal.ErrUnknownLauncher)
}
