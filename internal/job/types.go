package job

import (
	"fmt"
)

// Binding is the CPU pinning granularity the launch command should request.
type Binding string

const (
	BindNone    Binding = "none"
	BindSockets Binding = "sockets"
	BindCores   Binding = "cores"
	BindThreads Binding = "threads"
	// BindUser indicates that binding is handled by user-supplied flags.
	BindUser Binding = "user"
)

func ParseBinding(s string) (Binding, error) {
	switch Binding(s) {
	case BindNone, BindSockets, BindCores, BindThreads, BindUser:
		return Binding(s), nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("invalid binding strategy: %q", s)
}

// Distribution is a task placement pattern, either across nodes (remote)
// or across sockets within a node (local).
type Distribution string

const (
	DistributeDefault Distribution = "default"
	DistributeBlock   Distribution = "block"
	DistributeCyclic  Distribution = "cyclic"
	// DistributeUser indicates that placement is handled by user-supplied flags.
	DistributeUser Distribution = "user"
)

func ParseDistribution(s string) (Distribution, error) {
	switch Distribution(s) {
	case DistributeDefault, DistributeBlock, DistributeCyclic, DistributeUser:
		return Distribution(s), nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("invalid distribution strategy: %q", s)
}

// Request is a partially specified parallel job setup. Unset numeric
// dimensions are nil and get derived during resolution; set dimensions must
// be positive.
type Request struct {
	Tasks          *int `yaml:"tasks" json:"tasks" validate:"omitnil,min=1"`
	Nodes          *int `yaml:"nodes" json:"nodes" validate:"omitnil,min=1"`
	TasksPerNode   *int `yaml:"tasks_per_node" json:"tasks_per_node" validate:"omitnil,min=1"`
	TasksPerSocket *int `yaml:"tasks_per_socket" json:"tasks_per_socket" validate:"omitnil,min=1"`
	CPUsPerTask    *int `yaml:"cpus_per_task" json:"cpus_per_task" validate:"omitnil,min=1"`
	ThreadsPerCore *int `yaml:"threads_per_core" json:"threads_per_core" validate:"omitnil,min=1"`
	GPUsPerTask    *int `yaml:"gpus_per_task" json:"gpus_per_task" validate:"omitnil,min=0"`

	Account   string `yaml:"account" json:"account" validate:"omitempty,regexp=^[a-zA-Z0-9._-]+$"`
	Partition string `yaml:"partition" json:"partition" validate:"omitempty,regexp=^[a-zA-Z0-9._-]+$"`

	Bind             Binding      `yaml:"bind" json:"bind"`
	DistributeRemote Distribution `yaml:"distribute_remote" json:"distribute_remote"`
	DistributeLocal  Distribution `yaml:"distribute_local" json:"distribute_local"`
}

// Resolved is a fully determined job setup. Tasks, Nodes and TasksPerNode
// are always populated; the remaining dimensions stay nil unless they were
// requested explicitly, so launchers only render flags the user asked for.
type Resolved struct {
	Tasks        int
	Nodes        int
	TasksPerNode int

	TasksPerSocket *int
	CPUsPerTask    *int
	ThreadsPerCore *int
	GPUsPerTask    *int
	// GPUsPerNode is the per-node GPU demand (TasksPerNode * GPUsPerTask),
	// populated whenever GPUs are requested.
	GPUsPerNode *int

	Account   string
	Partition string

	Bind             Binding
	DistributeRemote Distribution
	DistributeLocal  Distribution
}

func intPtr(v int) *int {
	return &v
}
