// Package benchmark ties the toolkit together: resolve a resource request
// against a machine profile, render it for a launcher, run it and record
// the outcome.
package benchmark

import (
	"context"
	"time"

	"ifsbench/internal/env"
	"ifsbench/internal/job"
	"ifsbench/internal/launch"
	"ifsbench/internal/runner"
	"ifsbench/internal/runstore"
	"ifsbench/internal/topology"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type TopologyStore interface {
	Get(name string) (topology.Topology, error)
}

type RecordStore interface {
	Save(ctx context.Context, record runstore.Record) error
}

type Service struct {
	logger     *zap.Logger
	tracer     trace.Tracer
	resolver   *job.Resolver
	topologies TopologyStore
	exec       *runner.Service
	// records is optional; a nil store skips persistence.
	records RecordStore
}

func NewService(logger *zap.Logger, resolver *job.Resolver, topologies TopologyStore, exec *runner.Service, records RecordStore) *Service {
	return &Service{
		logger:     logger,
		tracer:     otel.Tracer("benchmark/service"),
		resolver:   resolver,
		topologies: topologies,
		exec:       exec,
		records:    records,
	}
}

// RunOptions describes one benchmark launch.
type RunOptions struct {
	// Label groups runs that should be comparable.
	Label string
	// Profile names the topology profile of the target machine.
	Profile string
	Variant launch.Variant
	Request job.Request

	RunDir  string
	Command []string

	CustomFlags  []string
	LibraryPaths []string
	EnvHandlers  []env.Handler
	// InheritEnv seeds the launch environment with the current process
	// environment instead of an empty one.
	InheritEnv bool
}

type RunResult struct {
	Resolved job.Resolved
	Spec     launch.LaunchSpec
	Result   runner.Result
	RecordID uuid.UUID
}

// Resolve completes a request against a named machine profile.
func (s *Service) Resolve(ctx context.Context, profile string, req job.Request) (job.Resolved, error) {
	traceCtx, span := s.tracer.Start(ctx, "Resolve")
	defer span.End()

	topo, err := s.topologies.Get(profile)
	if err != nil {
		span.RecordError(err)
		return job.Resolved{}, err
	}

	resolved, err := s.resolver.Resolve(traceCtx, req, topo)
	if err != nil {
		span.RecordError(err)
		return job.Resolved{}, err
	}

	return resolved, nil
}

// Render resolves the request and assembles the launch command without
// spawning anything.
func (s *Service) Render(ctx context.Context, opts RunOptions) (launch.LaunchSpec, job.Resolved, error) {
	traceCtx, span := s.tracer.Start(ctx, "Render")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	resolved, err := s.Resolve(traceCtx, opts.Profile, opts.Request)
	if err != nil {
		span.RecordError(err)
		return launch.LaunchSpec{}, job.Resolved{}, err
	}

	encoder, err := launch.New(s.logger, opts.Variant)
	if err != nil {
		span.RecordError(err)
		return launch.LaunchSpec{}, job.Resolved{}, err
	}

	pipeline := env.NewPipeline(s.logger, nil)
	if opts.InheritEnv {
		pipeline = env.NewProcessPipeline(s.logger)
	}
	pipeline.Add(opts.EnvHandlers...)

	spec := encoder.Prepare(opts.RunDir, resolved, opts.Command, launch.PrepareOptions{
		LibraryPaths: opts.LibraryPaths,
		Pipeline:     pipeline,
		CustomFlags:  opts.CustomFlags,
	})

	logger.Info("prepared launch command",
		zap.String("launcher", string(opts.Variant)),
		zap.Strings("cmd", spec.Cmd),
		zap.Int("tasks", resolved.Tasks),
		zap.Int("nodes", resolved.Nodes))

	return spec, resolved, nil
}

// Run performs the full benchmark launch and, when a record store is
// configured, persists the outcome.
func (s *Service) Run(ctx context.Context, opts RunOptions) (RunResult, error) {
	traceCtx, span := s.tracer.Start(ctx, "Run")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	spec, resolved, err := s.Render(traceCtx, opts)
	if err != nil {
		span.RecordError(err)
		return RunResult{}, err
	}

	startedAt := time.Now()

	result, err := spec.Launch(traceCtx, s.exec, s.logger)
	if err != nil {
		span.RecordError(err)
		return RunResult{Resolved: resolved, Spec: spec, Result: result}, err
	}

	runResult := RunResult{
		Resolved: resolved,
		Spec:     spec,
		Result:   result,
	}

	if s.records == nil {
		return runResult, nil
	}

	record := runstore.Record{
		ID:              uuid.New(),
		Label:           opts.Label,
		Command:         spec.Cmd,
		LauncherVariant: string(opts.Variant),
		Tasks:           resolved.Tasks,
		Nodes:           resolved.Nodes,
		TasksPerNode:    resolved.TasksPerNode,
		ExitCode:        result.ExitCode,
		Stdout:          result.Stdout,
		Stderr:          result.Stderr,
		StartedAt:       startedAt,
		Duration:        time.Since(startedAt),
	}

	if err := s.records.Save(traceCtx, record); err != nil {
		// The run itself succeeded; losing the record is not fatal.
		logger.Warn("failed to persist run record", zap.Error(err))
		return runResult, nil
	}

	runResult.RecordID = record.ID
	return runResult, nil
}
