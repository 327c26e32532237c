package main

import (
	"ifsbench/internal/job"

	"github.com/spf13/cobra"
)

// requestFlags collects the resource request flags shared by the resolve,
// render and run subcommands. Only flags the user actually set end up in the
// request, so the resolver can tell explicit values from derivable ones.
type requestFlags struct {
	tasks          int
	nodes          int
	tasksPerNode   int
	tasksPerSocket int
	cpusPerTask    int
	threadsPerCore int
	gpusPerTask    int

	account   string
	partition string

	bind             string
	distributeRemote string
	distributeLocal  string
}

func addRequestFlags(cmd *cobra.Command, rf *requestFlags) {
	flags := cmd.Flags()
	flags.IntVar(&rf.tasks, "tasks", 0, "total number of MPI tasks")
	flags.IntVar(&rf.nodes, "nodes", 0, "number of nodes")
	flags.IntVar(&rf.tasksPerNode, "tasks-per-node", 0, "tasks per node")
	flags.IntVar(&rf.tasksPerSocket, "tasks-per-socket", 0, "tasks per socket")
	flags.IntVar(&rf.cpusPerTask, "cpus-per-task", 0, "cpus per task")
	flags.IntVar(&rf.threadsPerCore, "threads-per-core", 0, "SMT threads per core")
	flags.IntVar(&rf.gpusPerTask, "gpus-per-task", 0, "GPUs per task")
	flags.StringVar(&rf.account, "account", "", "scheduler account")
	flags.StringVar(&rf.partition, "partition", "", "scheduler partition")
	flags.StringVar(&rf.bind, "bind", "", "binding strategy (none, sockets, cores, threads, user)")
	flags.StringVar(&rf.distributeRemote, "distribute-remote", "", "task distribution across nodes (default, block, cyclic, user)")
	flags.StringVar(&rf.distributeLocal, "distribute-local", "", "task distribution across sockets (default, block, cyclic, user)")
}

func (rf *requestFlags) toRequest(cmd *cobra.Command) (job.Request, error) {
	req := job.Request{
		Account:   rf.account,
		Partition: rf.partition,
	}

	setIfChanged := func(name string, value *int, target **int) {
		if cmd.Flags().Changed(name) {
			*target = value
		}
	}

	setIfChanged("tasks", &rf.tasks, &req.Tasks)
	setIfChanged("nodes", &rf.nodes, &req.Nodes)
	setIfChanged("tasks-per-node", &rf.tasksPerNode, &req.TasksPerNode)
	setIfChanged("tasks-per-socket", &rf.tasksPerSocket, &req.TasksPerSocket)
	setIfChanged("cpus-per-task", &rf.cpusPerTask, &req.CPUsPerTask)
	setIfChanged("threads-per-core", &rf.threadsPerCore, &req.ThreadsPerCore)
	setIfChanged("gpus-per-task", &rf.gpusPerTask, &req.GPUsPerTask)

	bind, err := job.ParseBinding(rf.bind)
	if err != nil {
		return job.Request{}, err
	}
	req.Bind = bind

	remote, err := job.ParseDistribution(rf.distributeRemote)
	if err != nil {
		return job.Request{}, err
	}
	req.DistributeRemote = remote

	local, err := job.ParseDistribution(rf.distributeLocal)
	if err != nil {
		return job.Request{}, err
	}
	req.DistributeLocal = local

	return req, nil
}
