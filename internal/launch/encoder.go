// Package launch renders resolved job layouts into the flag syntax of
// heterogeneous cluster launchers.
package launch

import (
	"strconv"
	"strings"

	"ifsbench/internal/env"
	"ifsbench/internal/job"

	"go.uber.org/zap"
)

// attribute identifies one renderable field of a resolved job.
type attribute int

const (
	attrNodes attribute = iota
	attrTasks
	attrTasksPerNode
	attrTasksPerSocket
	attrCPUsPerTask
	attrThreadsPerCore
	attrGPUsPerNode
	attrAccount
	attrPartition
)

// flagRule maps an attribute to a launcher flag template. Templates use the
// "{}" placeholder; rendered text is split into argv tokens on whitespace.
type flagRule struct {
	attr     attribute
	template string
}

// table is the per-variant configuration that drives the shared encoder
// skeleton: an executable name, an ordered flag vocabulary, a binding table
// and a distribution renderer.
type table struct {
	executable   string
	jobFlags     []flagRule
	bindFlags    map[job.Binding][]string
	distribution func(e *Encoder, r job.Resolved) []string
}

var variantTables = map[Variant]table{
	VariantSrun: {
		executable: "srun",
		jobFlags: []flagRule{
			{attrNodes, "--nodes={}"},
			{attrTasks, "--ntasks={}"},
			{attrTasksPerNode, "--ntasks-per-node={}"},
			{attrTasksPerSocket, "--ntasks-per-socket={}"},
			{attrCPUsPerTask, "--cpus-per-task={}"},
			{attrThreadsPerCore, "--ntasks-per-core={}"},
			{attrGPUsPerNode, "--gpus-per-node={}"},
			{attrAccount, "--account={}"},
			{attrPartition, "--partition={}"},
		},
		bindFlags: map[job.Binding][]string{
			job.BindNone:    {"--cpu-bind=none"},
			job.BindSockets: {"--cpu-bind=sockets"},
			job.BindCores:   {"--cpu-bind=cores"},
			job.BindThreads: {"--cpu-bind=threads"},
			job.BindUser:    {},
		},
		distribution: srunDistribution,
	},
	VariantAprun: {
		executable: "aprun",
		jobFlags: []flagRule{
			{attrTasks, "-n {}"},
			{attrTasksPerNode, "-N {}"},
			{attrTasksPerSocket, "-S {}"},
			{attrCPUsPerTask, "-d {}"},
			{attrThreadsPerCore, "-j {}"},
		},
		bindFlags: map[job.Binding][]string{
			job.BindNone:    {"-cc", "none"},
			job.BindSockets: {"-cc", "numa_node"},
			job.BindCores:   {"-cc", "cpu"},
			job.BindThreads: {"-cc", "depth"},
			job.BindUser:    {},
		},
		// aprun has no task distribution flags; requests are ignored.
		distribution: func(*Encoder, job.Resolved) []string { return nil },
	},
	VariantMpirun: {
		executable: "mpirun",
		jobFlags: []flagRule{
			{attrTasks, "-n {}"},
			{attrTasksPerNode, "--npernode {}"},
			{attrTasksPerSocket, "--npersocket {}"},
			{attrCPUsPerTask, "--cpus-per-proc {}"},
		},
		bindFlags: map[job.Binding][]string{
			job.BindNone:    {"--bind-to", "none"},
			job.BindSockets: {"--bind-to", "socket"},
			job.BindCores:   {"--bind-to", "core"},
			job.BindThreads: {"--bind-to", "hwthread"},
			job.BindUser:    {},
		},
		distribution: mpirunDistribution,
	},
}

// srunDistributionMap renders both axes of srun's combined distribution
// flag. An unset axis falls back to "*".
var srunDistributionMap = map[job.Distribution]string{
	"":                    "*",
	job.DistributeDefault: "*",
	job.DistributeBlock:   "block",
	job.DistributeCyclic:  "cyclic",
}

func srunDistribution(e *Encoder, r job.Resolved) []string {
	if r.DistributeRemote == "" && r.DistributeLocal == "" {
		return nil
	}

	// A user-provided strategy on either axis suppresses the combined flag
	// for both axes; the custom flags are expected to carry it.
	if r.DistributeRemote == job.DistributeUser {
		e.logger.Debug("not applying task distribution options because remote distribution of tasks is set to use user-provided settings")
		return nil
	}
	if r.DistributeLocal == job.DistributeUser {
		e.logger.Debug("not applying task distribution options because local distribution of tasks is set to use user-provided settings")
		return nil
	}

	return []string{
		"--distribution=" + srunDistributionMap[r.DistributeRemote] + ":" + srunDistributionMap[r.DistributeLocal],
	}
}

var mpirunDistributionMap = map[job.Distribution]string{
	job.DistributeBlock:  "core",
	job.DistributeCyclic: "numa",
}

func mpirunDistribution(e *Encoder, r job.Resolved) []string {
	// mpirun cannot express placement across nodes; warn and continue,
	// omitting a placement hint is safe.
	if r.DistributeRemote != "" && r.DistributeRemote != job.DistributeDefault && r.DistributeRemote != job.DistributeUser {
		e.logger.Warn("specified remote distribution option ignored by mpirun launcher",
			zap.String("distribute_remote", string(r.DistributeRemote)))
	}

	if r.DistributeLocal == "" || r.DistributeLocal == job.DistributeDefault || r.DistributeLocal == job.DistributeUser {
		return nil
	}

	return []string{"--map-by", mpirunDistributionMap[r.DistributeLocal]}
}

// PrepareOptions carries the optional inputs of Prepare.
type PrepareOptions struct {
	// LibraryPaths are appended to LD_LIBRARY_PATH through the pipeline.
	LibraryPaths []string
	// Pipeline produces the launch environment. Defaults to an empty
	// pipeline when nil.
	Pipeline *env.Pipeline
	// CustomFlags are appended verbatim, unvalidated.
	CustomFlags []string
}

// Encoder renders a resolved job plus a command line into one launcher's
// flag syntax. Encoders trust their input: Prepare performs no consistency
// checks and will happily render an unresolved job.
type Encoder struct {
	logger  *zap.Logger
	variant Variant
	table   table
}

func New(logger *zap.Logger, variant Variant) (*Encoder, error) {
	tbl, ok := variantTables[variant]
	if !ok {
		_, err := ParseVariant(string(variant))
		return nil, err
	}

	return &Encoder{
		logger:  logger,
		variant: variant,
		table:   tbl,
	}, nil
}

func (e *Encoder) Variant() Variant {
	return e.variant
}

// Prepare assembles the launch command, working directory and environment
// for the given resolved job. It is a pure function of its inputs; no
// process is spawned.
func (e *Encoder) Prepare(runDir string, resolved job.Resolved, cmd []string, opts PrepareOptions) LaunchSpec {
	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = env.NewPipeline(e.logger, nil)
	}

	flags := []string{e.table.executable}

	for _, rule := range e.table.jobFlags {
		value, ok := attributeValue(resolved, rule.attr)
		if !ok {
			continue
		}
		flags = append(flags, renderFlag(rule.template, value)...)
	}

	if resolved.Bind != "" {
		flags = append(flags, e.table.bindFlags[resolved.Bind]...)
	}

	flags = append(flags, e.table.distribution(e, resolved)...)

	flags = append(flags, opts.CustomFlags...)

	for _, path := range opts.LibraryPaths {
		pipeline.Add(env.Handler{Op: env.OpAppend, Key: "LD_LIBRARY_PATH", Value: path})
	}

	flags = append(flags, cmd...)

	return LaunchSpec{
		RunDir: runDir,
		Cmd:    flags,
		Env:    pipeline.Execute(),
	}
}

// attributeValue extracts one renderable field. Tasks, nodes and tasks per
// node are always present on a resolved job; the rest only when the request
// specified them.
func attributeValue(r job.Resolved, a attribute) (string, bool) {
	switch a {
	case attrNodes:
		return strconv.Itoa(r.Nodes), true
	case attrTasks:
		return strconv.Itoa(r.Tasks), true
	case attrTasksPerNode:
		return strconv.Itoa(r.TasksPerNode), true
	case attrTasksPerSocket:
		return optInt(r.TasksPerSocket)
	case attrCPUsPerTask:
		return optInt(r.CPUsPerTask)
	case attrThreadsPerCore:
		return optInt(r.ThreadsPerCore)
	case attrGPUsPerNode:
		return optInt(r.GPUsPerNode)
	case attrAccount:
		return r.Account, r.Account != ""
	case attrPartition:
		return r.Partition, r.Partition != ""
	}
	return "", false
}

func optInt(v *int) (string, bool) {
	if v == nil {
		return "", false
	}
	return strconv.Itoa(*v), true
}

func renderFlag(template, value string) []string {
	return strings.Fields(strings.ReplaceAll(template, "{}", value))
}
