package topology_test

import (
	"os"
	"path/filepath"
	"testing"

	"ifsbench/internal"
	"ifsbench/internal/topology"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTopology_DerivedCounts(t *testing.T) {
	topo := topology.Topology{
		SocketsPerNode: 2,
		CoresPerSocket: 8,
		ThreadsPerCore: 2,
	}

	assert.Equal(t, 16, topo.CoresPerNode())
	assert.Equal(t, 32, topo.ThreadsPerNode())
}

func TestNew_RejectsInvalidTopology(t *testing.T) {
	validate := validator.New()

	testCases := []struct {
		name string
		topo topology.Topology
	}{
		{name: "zero sockets", topo: topology.Topology{CoresPerSocket: 8, ThreadsPerCore: 1}},
		{name: "zero cores", topo: topology.Topology{SocketsPerNode: 2, ThreadsPerCore: 1}},
		{name: "negative gpus", topo: topology.Topology{SocketsPerNode: 2, CoresPerSocket: 8, ThreadsPerCore: 1, GPUsPerNode: -1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := topology.New(validate, tc.topo)
			assert.Error(t, err)
		})
	}
}

func TestService_Get(t *testing.T) {
	service := topology.NewService(zap.NewNop(), validator.New())

	topo, err := service.Get("xc40")
	require.NoError(t, err)
	assert.Equal(t, 36, topo.CoresPerNode())

	_, err = service.Get("no-such-machine")
	assert.ErrorIs(t, err, internal.ErrProfileNotFound)
}

func TestService_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `
workstation:
  sockets_per_node: 1
  cores_per_socket: 12
  threads_per_core: 2
  gpus_per_node: 1
xc40:
  sockets_per_node: 2
  cores_per_socket: 20
  threads_per_core: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	service := topology.NewService(zap.NewNop(), validator.New())
	require.NoError(t, service.LoadFile(path))

	topo, err := service.Get("workstation")
	require.NoError(t, err)
	assert.Equal(t, 12, topo.CoresPerNode())
	assert.Equal(t, 1, topo.GPUsPerNode)

	// File entries override built-in profiles of the same name.
	topo, err = service.Get("xc40")
	require.NoError(t, err)
	assert.Equal(t, 40, topo.CoresPerNode())
}

func TestService_LoadFile_InvalidProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `
broken:
  sockets_per_node: 0
  cores_per_socket: 8
  threads_per_core: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	service := topology.NewService(zap.NewNop(), validator.New())
	assert.Error(t, service.LoadFile(path))
}
