package main

import (
	"fmt"
	"strings"

	"ifsbench/internal/benchmark"
	"ifsbench/internal/job"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newResolveCmd(application *app) *cobra.Command {
	rf := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Derive the complete resource layout for a partial request",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := rf.toRequest(cmd)
			if err != nil {
				return err
			}

			resolved, err := application.benchmark.Resolve(cmd.Context(), application.cfg.Profile, req)
			if err != nil {
				return err
			}

			printResolved(cmd, resolved)
			return nil
		},
	}

	addRequestFlags(cmd, rf)
	return cmd
}

func newRenderCmd(application *app) *cobra.Command {
	rf := &requestFlags{}
	var customFlags []string
	var libraryPaths []string

	cmd := &cobra.Command{
		Use:   "render -- <command> [args...]",
		Short: "Print the launch command without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := runOptions(application, rf, cmd, args, customFlags, libraryPaths)
			if err != nil {
				return err
			}

			spec, resolved, err := application.benchmark.Render(cmd.Context(), opts)
			if err != nil {
				return err
			}

			printResolved(cmd, resolved)
			cmd.Println(strings.Join(spec.Cmd, " "))
			return nil
		},
	}

	addRequestFlags(cmd, rf)
	cmd.Flags().StringArrayVar(&customFlags, "custom-flag", nil, "extra launcher flag, passed through verbatim (repeatable)")
	cmd.Flags().StringArrayVar(&libraryPaths, "library-path", nil, "path appended to LD_LIBRARY_PATH (repeatable)")
	return cmd
}

func newRunCmd(application *app) *cobra.Command {
	rf := &requestFlags{}
	var customFlags []string
	var libraryPaths []string
	var label string
	var inheritEnv bool

	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Resolve, launch and record a benchmark run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := runOptions(application, rf, cmd, args, customFlags, libraryPaths)
			if err != nil {
				return err
			}
			opts.Label = label
			opts.InheritEnv = inheritEnv

			result, err := application.benchmark.Run(cmd.Context(), opts)
			if err != nil {
				application.logger.Error("benchmark run failed",
					zap.Error(err),
					zap.Int("exit_code", result.Result.ExitCode))
				return err
			}

			printResolved(cmd, result.Resolved)
			cmd.Printf("exit code: %d\n", result.Result.ExitCode)
			if result.RecordID != uuid.Nil {
				cmd.Printf("record: %s\n", result.RecordID)
			}
			return nil
		},
	}

	addRequestFlags(cmd, rf)
	cmd.Flags().StringArrayVar(&customFlags, "custom-flag", nil, "extra launcher flag, passed through verbatim (repeatable)")
	cmd.Flags().StringArrayVar(&libraryPaths, "library-path", nil, "path appended to LD_LIBRARY_PATH (repeatable)")
	cmd.Flags().StringVar(&label, "label", "", "label grouping comparable runs")
	cmd.Flags().BoolVar(&inheritEnv, "inherit-env", true, "seed the launch environment from the current process")
	return cmd
}

func runOptions(application *app, rf *requestFlags, cmd *cobra.Command, args, customFlags, libraryPaths []string) (benchmark.RunOptions, error) {
	req, err := rf.toRequest(cmd)
	if err != nil {
		return benchmark.RunOptions{}, err
	}

	variant, err := variantFromConfig(application)
	if err != nil {
		return benchmark.RunOptions{}, err
	}

	return benchmark.RunOptions{
		Profile:      application.cfg.Profile,
		Variant:      variant,
		Request:      req,
		RunDir:       application.cfg.RunDir,
		Command:      args,
		CustomFlags:  customFlags,
		LibraryPaths: libraryPaths,
	}, nil
}

func printResolved(cmd *cobra.Command, resolved job.Resolved) {
	cmd.Println(formatResolved(resolved))
}

func formatResolved(resolved job.Resolved) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tasks: %d\n", resolved.Tasks)
	fmt.Fprintf(&b, "nodes: %d\n", resolved.Nodes)
	fmt.Fprintf(&b, "tasks per node: %d", resolved.TasksPerNode)
	if resolved.CPUsPerTask != nil {
		fmt.Fprintf(&b, "\ncpus per task: %d", *resolved.CPUsPerTask)
	}
	if resolved.ThreadsPerCore != nil {
		fmt.Fprintf(&b, "\nthreads per core: %d", *resolved.ThreadsPerCore)
	}
	if resolved.GPUsPerNode != nil {
		fmt.Fprintf(&b, "\ngpus per node: %d", *resolved.GPUsPerNode)
	}
	return b.String()
}
