package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ifsbench/internal"
	"ifsbench/internal/benchmark"
	"ifsbench/internal/config"
	"ifsbench/internal/job"
	"ifsbench/internal/launch"
	"ifsbench/internal/runner"
	"ifsbench/internal/runstore"
	"ifsbench/internal/topology"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the wired services shared by all subcommands.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	topologies *topology.Service
	benchmark  *benchmark.Service

	dbPool       *pgxpool.Pool
	shutdownOtel func(context.Context) error
}

func (a *app) close() {
	if a.dbPool != nil {
		a.dbPool.Close()
	}

	if a.shutdownOtel != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownOtel(shutdownCtx); err != nil {
			a.logger.Error("Forced to shutdown OpenTelemetry", zap.Error(err))
		}
	}

	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func newRootCmd() *cobra.Command {
	application := &app{}
	overrides := config.Config{}

	rootCmd := &cobra.Command{
		Use:           "ifsbench",
		Short:         "Benchmarking and launch orchestration toolkit for the IFS",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(application, overrides)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			application.close()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&overrides.Debug, "debug", false, "debug mode")
	flags.StringVar(&overrides.Profile, "profile", "", "topology profile of the target machine")
	flags.StringVar(&overrides.ProfilesFile, "profiles-file", "", "YAML file with additional topology profiles")
	flags.StringVar(&overrides.Launcher, "launcher", "", "launcher variant (srun, aprun, mpirun)")
	flags.StringVar(&overrides.RunDir, "run-dir", "", "working directory for launches")
	flags.StringVar(&overrides.DatabaseURL, "database-url", "", "Postgres URL for the run-record store")
	flags.StringVar(&overrides.OtelCollectorUrl, "otel-collector-url", "", "OpenTelemetry collector URL")

	rootCmd.AddCommand(newResolveCmd(application))
	rootCmd.AddCommand(newRenderCmd(application))
	rootCmd.AddCommand(newRunCmd(application))

	return rootCmd
}

func setup(application *app, overrides config.Config) error {
	appMetadata := []zap.Field{
		zap.String("app_name", AppName),
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit_hash", CommitHash),
	}

	cfg, cfgLog := config.Load()

	cfg, err := cfg.WithOverrides(overrides)
	if err != nil {
		return fmt.Errorf("failed to apply flag overrides: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		if errors.Is(err, config.ErrProfileRequired) {
			EarlyApplicationFailed(
				"Topology profile is required",
				"Pass --profile, set IFSBENCH_PROFILE or provide a config file with the profile key.",
			)
		} else {
			EarlyApplicationFailed("Invalid configuration", err.Error())
		}
		return err
	}

	logger, err := initLogger(&cfg, appMetadata)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfgLog.FlushToZap(logger)

	shutdown, err := initOpenTelemetry(AppName, Version, BuildTime, CommitHash, cfg.OtelCollectorUrl)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry", zap.Error(err))
		return err
	}

	validator := internal.NewValidator()

	topologies := topology.NewService(logger, validator)
	if cfg.ProfilesFile != "" {
		if err := topologies.LoadFile(cfg.ProfilesFile); err != nil {
			logger.Error("Failed to load topology profiles", zap.Error(err), zap.String("path", cfg.ProfilesFile))
			return err
		}
	}

	var records benchmark.RecordStore
	if cfg.DatabaseURL != "" {
		dbPool, err := initDatabasePool(cfg.DatabaseURL)
		if err != nil {
			logger.Error("Failed to initialize database pool", zap.Error(err))
			return err
		}
		application.dbPool = dbPool
		records = runstore.NewService(logger, dbPool)
	}

	resolver := job.NewResolver(logger)
	exec := runner.NewService(logger)

	application.cfg = cfg
	application.logger = logger
	application.topologies = topologies
	application.benchmark = benchmark.NewService(logger, resolver, topologies, exec, records)
	application.shutdownOtel = shutdown

	return nil
}

func initDatabasePool(databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, err
	}
	return dbPool, nil
}

func variantFromConfig(application *app) (launch.Variant, error) {
	return launch.ParseVariant(application.cfg.Launcher)
}
