package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/boardfeed/internal/scheduler"
	"github.com/amishk599/boardfeed/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run on a schedule",
	Long:  "Run once now and then on schedule.cron (or every schedule.interval); blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg := mustLoadConfig(logger)

	logger.Info("config loaded",
		"site", cfg.Site.URL,
		"interval", cfg.Schedule.Interval.String(),
		"cron", cfg.Schedule.Cron,
		"retention", cfg.Store.Retention.String(),
	)

	lock, err := acquireRunLock(cfg)
	if err != nil {
		exitWith(logger, "failed to acquire run lock", err)
	}
	defer lock.Unlock()

	sqlStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		exitWith(logger, "failed to open store", err)
	}
	defer sqlStore.Close()

	runner, err := buildRunner(cfg, sqlStore, logger)
	if err != nil {
		exitWith(logger, "failed to set up pipeline", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(runner, cfg.Schedule.Interval, logger)
	if cfg.Schedule.Cron != "" {
		if sched, err = sched.WithCron(cfg.Schedule.Cron); err != nil {
			exitWith(logger, "invalid schedule", err)
		}
	}
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
