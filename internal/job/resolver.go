package job

import (
	"context"
	"fmt"

	"ifsbench/internal"
	"ifsbench/internal/topology"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Resolver derives every missing dimension of a Request from the dimensions
// given and the target hardware topology. Each resolution is independent;
// nothing is cached between calls.
type Resolver struct {
	logger   *zap.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{
		logger:   logger,
		validate: internal.NewValidator(),
		tracer:   otel.Tracer("job/resolver"),
	}
}

// Resolve completes a partial request against a topology and returns a new,
// fully populated value. The input request is never modified. At least one of
// tasks, tasks_per_node or tasks_per_socket must be given; otherwise
// internal.ErrMissingDimension is returned. Non-positive dimension values are
// rejected with internal.ErrInvalidRequest. Explicit values that exceed the
// node GPU budget yield internal.ErrUnsatisfiableResource instead of being
// silently adjusted.
func (r *Resolver) Resolve(ctx context.Context, req Request, topo topology.Topology) (Resolved, error) {
	traceCtx, span := r.tracer.Start(ctx, "Resolve")
	defer span.End()
	logger := logutil.WithContext(traceCtx, r.logger)

	// A malformed request fails here, before any derivation happens, so a
	// zero or negative dimension can never end up on a launch command.
	if err := internal.ValidateStruct(r.validate, req); err != nil {
		err = fmt.Errorf("%w: %v", internal.ErrInvalidRequest, err)
		span.RecordError(err)
		return Resolved{}, err
	}

	// Defaults used for derivation. They are not materialized on the result
	// unless the caller requested them explicitly.
	cpusPerTask := 1
	if req.CPUsPerTask != nil {
		cpusPerTask = *req.CPUsPerTask
	}

	threadsPerCore := 1
	if req.ThreadsPerCore != nil {
		threadsPerCore = *req.ThreadsPerCore
	}

	// A gpus_per_task of zero is the same as leaving it unset.
	gpusPerTask := 0
	if req.GPUsPerTask != nil {
		gpusPerTask = *req.GPUsPerTask
	}

	resolved := Resolved{
		TasksPerSocket: req.TasksPerSocket,
		CPUsPerTask:    req.CPUsPerTask,
		ThreadsPerCore: req.ThreadsPerCore,
		GPUsPerTask:    req.GPUsPerTask,

		Account:   req.Account,
		Partition: req.Partition,

		Bind:             req.Bind,
		DistributeRemote: req.DistributeRemote,
		DistributeLocal:  req.DistributeLocal,
	}

	tasksPerNode, err := r.resolveTasksPerNode(logger, req, topo, cpusPerTask, gpusPerTask)
	if err != nil {
		span.RecordError(err)
		return Resolved{}, err
	}
	resolved.TasksPerNode = tasksPerNode

	if req.Nodes != nil {
		resolved.Nodes = *req.Nodes
	} else {
		if req.Tasks == nil {
			err := fmt.Errorf("%w: the number of nodes could not be determined", internal.ErrMissingDimension)
			span.RecordError(err)
			return Resolved{}, err
		}

		threadsPerNode := tasksPerNode * threadsPerCore * cpusPerTask
		resolved.Nodes = (*req.Tasks*cpusPerTask + threadsPerNode - 1) / threadsPerNode
	}

	if req.Tasks != nil {
		// Undersubscription is legal, an explicit task count is never
		// rounded up to the node capacity.
		resolved.Tasks = *req.Tasks
	} else {
		resolved.Tasks = resolved.Nodes * resolved.TasksPerNode
	}

	if gpusPerTask > 0 {
		resolved.GPUsPerNode = intPtr(resolved.TasksPerNode * gpusPerTask)
	}

	logger.Debug("resolved job layout",
		zap.Int("tasks", resolved.Tasks),
		zap.Int("nodes", resolved.Nodes),
		zap.Int("tasks_per_node", resolved.TasksPerNode))

	return resolved, nil
}

func (r *Resolver) resolveTasksPerNode(logger *zap.Logger, req Request, topo topology.Topology, cpusPerTask, gpusPerTask int) (int, error) {
	if req.TasksPerNode != nil {
		// An explicit value that does not fit the GPU budget is an error,
		// never silently clamped.
		if gpusPerTask > 0 && *req.TasksPerNode*gpusPerTask > topo.GPUsPerNode {
			return 0, fmt.Errorf(
				"%w: %d tasks per node require %d GPUs but only %d are available",
				internal.ErrUnsatisfiableResource,
				*req.TasksPerNode, *req.TasksPerNode*gpusPerTask, topo.GPUsPerNode,
			)
		}
		return *req.TasksPerNode, nil
	}

	var tasksPerNode int
	switch {
	case req.TasksPerSocket != nil:
		tasksPerNode = *req.TasksPerSocket * topo.SocketsPerNode
	case req.Tasks != nil:
		// Pack as many tasks per node as physical cores allow; SMT is
		// ignored at this stage.
		tasksPerNode = topo.CoresPerNode() / cpusPerTask
	default:
		return 0, fmt.Errorf("%w: the number of tasks per node could not be determined", internal.ErrMissingDimension)
	}

	if gpusPerTask > 0 {
		clamped := topo.GPUsPerNode / gpusPerTask
		if clamped < tasksPerNode {
			logger.Debug("clamping tasks per node to GPU budget",
				zap.Int("tasks_per_node", tasksPerNode),
				zap.Int("clamped", clamped))
			tasksPerNode = clamped
		}
	}

	if tasksPerNode <= 0 {
		return 0, fmt.Errorf("%w: failed to determine the number of tasks per node", internal.ErrUnsatisfiableResource)
	}

	return tasksPerNode, nil
}
