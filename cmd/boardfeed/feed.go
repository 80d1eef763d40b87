package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/boardfeed/internal/feed"
	"github.com/amishk599/boardfeed/internal/normalize"
)

var (
	feedCSV         string
	feedOut         string
	feedMode        string
	feedCleanLabels bool
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Rebuild the feed from a CSV intermediate",
	Long:  "Reads a CSV intermediate written by a previous run, normalizes every raw description and writes the XML feed. No browser is started.",
	RunE:  runFeed,
}

func init() {
	feedCmd.Flags().StringVar(&feedCSV, "csv", "workday_jobs_full.csv", "CSV intermediate to read")
	feedCmd.Flags().StringVar(&feedOut, "out", "jobs_feed.xml", "feed file to write")
	feedCmd.Flags().StringVar(&feedMode, "mode", "text", "description form: text or markup")
	feedCmd.Flags().BoolVar(&feedCleanLabels, "clean-labels", true, "clean posted and location labels")
	rootCmd.AddCommand(feedCmd)
}

func runFeed(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	mode, err := normalize.ParseMode(feedMode)
	if err != nil {
		logger.Error("invalid mode", "error", err)
		os.Exit(1)
	}
	// Header phrases come from the config when there is one.
	var phrases []string
	if cfg, err := loadConfig(cfgPath); err == nil {
		phrases = cfg.Normalize.HeaderPhrases
	} else {
		logger.Debug("no usable config, using default header phrases", "error", err)
	}

	n, err := rebuildFeed(feedCSV, feedOut, normalize.New(mode, phrases), feedCleanLabels, logger)
	if err != nil {
		logger.Error("feed rebuild failed", "error", err)
		return err
	}
	logger.Info("feed written", "jobs", n, "csv", feedCSV, "out", feedOut, "mode", mode.String())
	return nil
}

// rebuildFeed reads csvPath, normalizes each description and writes the
// feed to outPath. It returns the number of records written.
func rebuildFeed(csvPath, outPath string, n *normalize.Normalizer, clean bool, logger *slog.Logger) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	jobs, err := feed.ReadCSV(f)
	if err != nil {
		return 0, err
	}

	for i := range jobs {
		normalized, degraded := n.NormalizeChecked(jobs[i].DescriptionRaw)
		if degraded {
			logger.Warn("description normalized with plain-text fallback", "job_id", jobs[i].JobID)
		}
		jobs[i].DescriptionNormalized = normalized
	}

	records := feed.Records(jobs, clean)
	if err := feed.WriteFile(outPath, func(w io.Writer) error {
		return feed.WriteXML(w, records)
	}); err != nil {
		return 0, fmt.Errorf("write feed: %w", err)
	}
	return len(records), nil
}
