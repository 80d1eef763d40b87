package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/boardfeed/internal/audit"
	"github.com/amishk599/boardfeed/internal/model"
	"github.com/amishk599/boardfeed/internal/store"
)

const auditRunLimit = 50

var (
	auditRunID  int64
	auditLatest bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Browse recorded runs interactively (TUI)",
	Long:  "Shows the run picker TUI, then the split-pane view of the chosen run's jobs and failures.",
	RunE:  runAuditCmd,
}

func init() {
	auditCmd.Flags().Int64Var(&auditRunID, "run", 0, "open this run directly")
	auditCmd.Flags().BoolVar(&auditLatest, "latest", false, "open the most recent run directly")
	rootCmd.AddCommand(auditCmd)
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	// No logger here: any log output before the alt-screen starts corrupts
	// the display.
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

	if auditLatest {
		id, err := sqlStore.LatestRunID()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return nil
		}
		auditRunID = id
	}

	if auditRunID != 0 {
		summary, err := audit.FindRun(sqlStore, auditRunID, 0)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return nil
		}
		showRun(sqlStore, summary)
		return nil
	}

	runAudit(sqlStore)
	return nil
}

func runAudit(r audit.Reader) {
	for {
		runs, err := r.Runs(auditRunLimit)
		if err != nil {
			fmt.Printf("Error reading runs: %v\n", err)
			return
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return
		}

		summary, ok, err := audit.RunPicker(runs)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return
		}
		if !ok {
			return
		}

		if showRun(r, summary) {
			return
		}
		// else: loop → back to picker
	}
}

// showRun loads and displays one run. It reports whether the user asked to quit.
func showRun(r audit.Reader, summary model.RunSummary) bool {
	run, err := audit.RunLoader(fmt.Sprintf("run #%d", summary.ID), func() (audit.Run, error) {
		return audit.LoadRun(r, summary)
	})
	if err != nil {
		fmt.Printf("Error loading run: %v\n", err)
		return false
	}

	wantQuit, err := audit.RunAuditTUI(run)
	if err != nil {
		fmt.Printf("TUI error: %v\n", err)
	}
	return wantQuit
}
