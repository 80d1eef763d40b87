package reporter

import (
	"log/slog"
	"time"

	"github.com/amishk599/boardfeed/internal/model"
)

// Ensure LogReporter implements model.Reporter.
var _ model.Reporter = (*LogReporter)(nil)

// LogReporter writes the run summary and every failure to the logger.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter returns a reporter that logs through slog.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report logs one summary line and one line per failure. Logging does not
// fail, so the error is always nil.
func (r *LogReporter) Report(report model.Report) error {
	for _, f := range report.Failures {
		r.logger.Warn("run failure",
			"stage", string(f.Stage),
			"job_id", f.JobID,
			"link", f.Link,
			"field", f.Field,
			"message", f.Message,
		)
	}

	args := []any{
		"run_id", report.RunID,
		"site", report.Site,
		"expected_total", report.ExpectedTotal,
		"pages", report.Pages,
		"discovered", report.Discovered,
		"enriched", report.Enriched,
		"normalized", report.Normalized,
		"fetch_failures", report.FetchFailures,
		"failures", len(report.Failures),
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	}
	if report.Fatal != "" {
		r.logger.Error("run aborted", append(args, "error", report.Fatal)...)
		return nil
	}
	r.logger.Info("run complete", args...)
	return nil
}
