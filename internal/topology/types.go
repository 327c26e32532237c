package topology

// Topology describes the fixed hardware layout of one compute node.
type Topology struct {
	SocketsPerNode int `yaml:"sockets_per_node" json:"sockets_per_node" validate:"required,min=1"`
	CoresPerSocket int `yaml:"cores_per_socket" json:"cores_per_socket" validate:"required,min=1"`
	// ThreadsPerCore is the SMT factor, typically 1, 2 or 4.
	ThreadsPerCore int `yaml:"threads_per_core" json:"threads_per_core" validate:"required,min=1"`
	GPUsPerNode    int `yaml:"gpus_per_node" json:"gpus_per_node" validate:"min=0"`
}

// CoresPerNode is the number of physical cores per node.
func (t Topology) CoresPerNode() int {
	return t.SocketsPerNode * t.CoresPerSocket
}

// ThreadsPerNode is the number of logical cores (hardware threads) per node.
func (t Topology) ThreadsPerNode() int {
	return t.CoresPerNode() * t.ThreadsPerCore
}
