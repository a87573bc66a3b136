package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"prod-tracker/internal/config"
	"prod-tracker/internal/lib/logger"
	"prod-tracker/internal/lib/timeanchor"
	"prod-tracker/internal/service/snapshot"
	"prod-tracker/internal/storage/mysql"
)

type runOptions struct {
	date       string
	lookback   int
	configPath string
}

// runner один запуск задания, подменяется в тестах
type runner interface {
	Run(ctx context.Context, asOf time.Time, lookbackDays int) snapshot.RunResult
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "snapshot",
		Short:        "Materialize daily production rollups",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(openJob))
	return root
}

func newRunCmd(open func(cfgPath string) (runner, *config.Config, func(), error)) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Recompute daily rollups for a rolling window of local dates",
		Long: `Recompute total target and total actual for every local date in
[date - lookback, date]. Runs are idempotent; a failed date does not stop the others.`,
		Example: `
  # Default window ending today
  snapshot run

  # Backfill two weeks ending on a given date
  snapshot run --date 2026-01-15 --lookback 14 --config ./config/local.yaml
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, cfg, closeFn, err := open(opts.configPath)
			if err != nil {
				return err
			}
			defer closeFn()

			if !cmd.Flags().Changed("lookback") {
				opts.lookback = cfg.Snapshot.LookbackDays
			}

			return runSnapshot(cmd.Context(), cmd.OutOrStdout(), job, timeanchor.SystemClock{}, opts)
		},
	}

	cmd.Flags().StringVar(&opts.date, "date", "", "Last local date of the window, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&opts.lookback, "lookback", snapshot.DefaultLookbackDays, "Number of days before --date to recompute")
	cmd.Flags().StringVar(&opts.configPath, "config", "./config/local.yaml", "Path to config file")

	return cmd
}

func runSnapshot(ctx context.Context, out io.Writer, job runner, clock timeanchor.Clock, opts runOptions) error {
	asOf := timeanchor.Today(clock)
	if opts.date != "" {
		d, err := timeanchor.ParseDate(opts.date)
		if err != nil {
			return err
		}
		asOf = d
	}
	if opts.lookback < 0 {
		return fmt.Errorf("lookback must not be negative")
	}

	res := job.Run(ctx, asOf, opts.lookback)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}

	if len(res.Failed) > 0 {
		return fmt.Errorf("snapshot failed for %d of %d dates", len(res.Failed), len(res.Failed)+len(res.Processed))
	}
	return nil
}

func openJob(cfgPath string) (runner, *config.Config, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, nil, err
	}

	log := logger.Setup(cfg.Env, cfg.ErrorLog)

	storage, err := mysql.New(*cfg)
	if err != nil {
		log.Error("failed to open db", logger.Err(err))
		return nil, nil, nil, err
	}

	log.Info("snapshot job opened", slog.String("db_host", cfg.DBHost))

	return snapshot.NewJob(log, storage, cfg.Snapshot.Workers), cfg, func() { storage.Close() }, nil
}

