package audit

import (
	"fmt"

	"github.com/amishk599/boardfeed/internal/model"
)

// Reader is the part of the run ledger the audit view reads from.
type Reader interface {
	Runs(limit int) ([]model.RunSummary, error)
	RunJobs(runID int64) ([]model.EnrichedJob, error)
	RunFailures(runID int64) ([]model.Failure, error)
}

// Run is one stored run loaded for browsing.
type Run struct {
	Summary  model.RunSummary
	Jobs     []model.EnrichedJob
	Failures []model.Failure
}

// LoadRun reads the jobs and failures recorded for summary.
func LoadRun(r Reader, summary model.RunSummary) (Run, error) {
	jobs, err := r.RunJobs(summary.ID)
	if err != nil {
		return Run{}, fmt.Errorf("load jobs of run %d: %w", summary.ID, err)
	}
	failures, err := r.RunFailures(summary.ID)
	if err != nil {
		return Run{}, fmt.Errorf("load failures of run %d: %w", summary.ID, err)
	}
	return Run{Summary: summary, Jobs: jobs, Failures: failures}, nil
}

// FindRun returns the summary with the given id among the most recent limit
// runs. limit <= 0 searches every run.
func FindRun(r Reader, id int64, limit int) (model.RunSummary, error) {
	runs, err := r.Runs(limit)
	if err != nil {
		return model.RunSummary{}, err
	}
	for _, s := range runs {
		if s.ID == id {
			return s, nil
		}
	}
	return model.RunSummary{}, fmt.Errorf("run %d not found", id)
}

// failuresFor returns the failures recorded against jobID.
func failuresFor(failures []model.Failure, jobID string) []model.Failure {
	if jobID == "" || jobID == model.Sentinel {
		return nil
	}
	var out []model.Failure
	for _, f := range failures {
		if f.JobID == jobID {
			out = append(out, f)
		}
	}
	return out
}
