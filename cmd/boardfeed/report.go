package main

import (
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/boardfeed/internal/reporter"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Reporter subcommands",
}

var reportTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a sample run report",
	Long:  "Sends a sample run report through the configured reporter.",
	RunE:  runReportTest,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportTestCmd)
}

func runReportTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg := mustLoadConfig(logger)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	r := setupReporter(cfg, httpClient, logger)

	if err := reporter.SendTestReport(r); err != nil {
		logger.Error("test report failed", "error", err)
		os.Exit(1)
	}
	logger.Info("test report sent successfully")
	return nil
}
