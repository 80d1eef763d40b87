package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/boardfeed/internal/model"
	"github.com/amishk599/boardfeed/internal/store"
)

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl the board once and write the feed",
	Long:  "One complete run: crawl the listing, fetch descriptions, write the CSV and the feed, record the run and report it.",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not record the run in the store")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg := mustLoadConfig(logger)

	logger.Info("config loaded",
		"site", cfg.Site.URL,
		"mode", cfg.Normalize.Mode,
		"workers", cfg.Detail.Workers,
		"max_pages", cfg.Crawl.MaxPages,
	)

	// In dry-run mode, use a NopStore so nothing is persisted.
	var runStore model.RunStore
	if dryRun {
		logger.Info("dry-run mode enabled, run will not be recorded")
		runStore = store.NewNopStore()
	} else {
		sqlStore, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			exitWith(logger, "failed to open store", err)
		}
		defer sqlStore.Close()
		runStore = sqlStore
	}

	lock, err := acquireRunLock(cfg)
	if err != nil {
		exitWith(logger, "failed to acquire run lock", err)
	}
	defer lock.Unlock()

	runner, err := buildRunner(cfg, runStore, logger)
	if err != nil {
		exitWith(logger, "failed to set up pipeline", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := runner.Run(ctx)
	if err != nil {
		logger.Error("run aborted", "run_id", report.RunID, "error", err)
		return err
	}
	return nil
}
