package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/amishk599/boardfeed/internal/model"
	"github.com/amishk599/boardfeed/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Long:  "Reads the run ledger and prints a table of the most recent runs.",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	sqlStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	runs, err := sqlStore.Runs(runsLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read runs: %v\n", err)
		os.Exit(1)
	}

	printRuns(os.Stdout, runs)
	return nil
}

func printRuns(w io.Writer, runs []model.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Run", "Started", "Duration", "Jobs", "Enriched", "No Desc", "Failures", "Status"})

	aborted := 0
	for _, r := range runs {
		status := "ok"
		if r.Fatal != "" {
			status = "aborted: " + r.Fatal
			aborted++
		}
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
			r.Discovered,
			r.Enriched,
			r.FetchFailures,
			r.FailureCount,
			status,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	fmt.Fprintf(w, "\nTotal: %d runs (%d aborted)\n", len(runs), aborted)
}
