// Package main is the runnerscope entry point. Each subcommand is a separate
// process invocation sharing the document path through configuration: the CI
// orchestrator calls start once at job begin, mark at each phase transition,
// and stop once at job end. The reporting layer reads the finalized document;
// this binary never renders reports.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/runnerscope/runnerscope/internal/collect"
	"github.com/runnerscope/runnerscope/internal/config"
	"github.com/runnerscope/runnerscope/internal/inspect"
	"github.com/runnerscope/runnerscope/internal/logging"
	"github.com/runnerscope/runnerscope/internal/reader"
	"github.com/runnerscope/runnerscope/internal/store"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	var (
		configPath string
		dataFile   string
		interval   time.Duration
	)

	root := &cobra.Command{
		Use:     "runnerscope",
		Short:   "CI runner resource telemetry collector",
		Version: version,
		Long: `runnerscope samples host-level resource metrics (CPU, memory, disk and
network I/O, load, swap, file descriptors, TCP states) at a fixed interval
during a CI job and tags samples with named steps. The collected time series
is persisted as a single JSON document for the reporting step to consume.

Typical workflow:
  runnerscope start &          # begin sampling in the background
  runnerscope mark "build"     # tag the current phase
  runnerscope mark "test"
  runnerscope stop             # finalize the document`,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")
	root.PersistentFlags().StringVar(&dataFile, "data-file", "", "telemetry document path (overrides TELEMETRY_DATA_FILE)")
	root.PersistentFlags().DurationVar(&interval, "interval", 0, "sampling interval (overrides TELEMETRY_INTERVAL)")
	root.SilenceUsage = true

	setup := func() (*collect.Runner, *config.Config, *zap.Logger, error) {
		cfg, err := config.Load(configPath, config.CLIOverrides{
			DataFile: dataFile,
			Interval: interval,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		logger := logging.New(cfg.Logging)
		st := store.New(cfg.DataFile, logger)
		rdr := reader.New(logger)
		return collect.New(cfg, logger, rdr, st), cfg, logger, nil
	}

	root.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Begin sampling until the process is terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runner.Start(ctx)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Finalize the persisted document",
		Long: `Stop closes any open step, captures the final system snapshot, and sets
the run's end time and duration. It operates purely on the document file: it
assumes the sampling process has already been terminated by the job
supervisor and does not signal it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			_, err = runner.Stop()
			return err
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "mark <name>",
		Short: "Mark the beginning of a named step",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			_, err = runner.Mark(strings.Join(args, " "))
			return err
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "snapshot",
		Short: "Collect a few samples synchronously and finalize immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			_, err = runner.Snapshot(ctx)
			return err
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "sample",
		Short: "Print a single sample as JSON without touching the document",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			out, err := json.MarshalIndent(runner.SampleOnce(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	})

	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the document over HTTP for live inspection",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if addr == "" {
				addr = cfg.Inspect.Addr
			}
			st := store.New(cfg.DataFile, logger)
			logger.Info("Serving telemetry document",
				zap.String("addr", addr),
				zap.String("data_file", cfg.DataFile))
			return inspect.NewRouter(st, logger).Run(addr)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
