package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/boardfeed/internal/model"
)

// ErrNoRuns is returned when the ledger holds no runs yet.
var ErrNoRuns = errors.New("no runs recorded")

// timeLayout is fixed width so stored timestamps sort and compare as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at     TEXT NOT NULL,
	finished_at    TEXT NOT NULL,
	site           TEXT NOT NULL,
	expected_total INTEGER NOT NULL,
	pages          INTEGER NOT NULL,
	discovered     INTEGER NOT NULL,
	enriched       INTEGER NOT NULL,
	normalized     INTEGER NOT NULL,
	fetch_failures INTEGER NOT NULL,
	fatal          TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS run_jobs (
	run_id                 INTEGER NOT NULL,
	position               INTEGER NOT NULL,
	job_id                 TEXT NOT NULL,
	title                  TEXT NOT NULL,
	location               TEXT NOT NULL,
	employment_type        TEXT NOT NULL,
	posted_label           TEXT NOT NULL,
	detail_link            TEXT NOT NULL,
	description_raw        TEXT NOT NULL,
	description_normalized TEXT NOT NULL,
	fetch_error            TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE TABLE IF NOT EXISTS run_failures (
	run_id  INTEGER NOT NULL,
	seq     INTEGER NOT NULL,
	stage   TEXT NOT NULL,
	job_id  TEXT NOT NULL,
	link    TEXT NOT NULL,
	field   TEXT NOT NULL,
	message TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
`

// SQLiteStore is the run ledger: every run with its jobs and failures.
type SQLiteStore struct {
	db *sql.DB
}

var _ model.RunStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the ledger tables exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SaveRun records a run and its jobs in one transaction and returns the new
// run id.
func (s *SQLiteStore) SaveRun(report model.Report, jobs []model.EnrichedJob) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO runs
		(started_at, finished_at, site, expected_total, pages, discovered, enriched, normalized, fetch_failures, fatal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(report.StartedAt), formatTime(report.FinishedAt), report.Site,
		report.ExpectedTotal, report.Pages, report.Discovered, report.Enriched,
		report.Normalized, report.FetchFailures, report.Fatal,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	jobStmt, err := tx.Prepare(`INSERT INTO run_jobs
		(run_id, position, job_id, title, location, employment_type, posted_label,
		 detail_link, description_raw, description_normalized, fetch_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing job insert: %w", err)
	}
	defer jobStmt.Close()
	for _, j := range jobs {
		if _, err := jobStmt.Exec(runID, j.Position, j.JobID, j.Title, j.Location,
			j.EmploymentType, j.PostedLabel, j.DetailLink, j.DescriptionRaw,
			j.DescriptionNormalized, j.FetchErr); err != nil {
			return 0, fmt.Errorf("inserting job %s: %w", j.JobID, err)
		}
	}

	failStmt, err := tx.Prepare(`INSERT INTO run_failures
		(run_id, seq, stage, job_id, link, field, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing failure insert: %w", err)
	}
	defer failStmt.Close()
	for i, f := range report.Failures {
		if _, err := failStmt.Exec(runID, i, string(f.Stage), f.JobID, f.Link, f.Field, f.Message); err != nil {
			return 0, fmt.Errorf("inserting failure %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return runID, nil
}

// Runs lists the most recent runs, newest first. limit <= 0 lists all.
func (s *SQLiteStore) Runs(limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT r.id, r.started_at, r.finished_at, r.site, r.discovered,
			r.enriched, r.fetch_failures, r.fatal,
			(SELECT COUNT(*) FROM run_failures f WHERE f.run_id = r.id)
		FROM runs r ORDER BY r.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Site, &r.Discovered,
			&r.Enriched, &r.FetchFailures, &r.Fatal, &r.FailureCount); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRunID returns the id of the most recent run.
func (s *SQLiteStore) LatestRunID() (int64, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM runs ORDER BY id DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoRuns
	}
	if err != nil {
		return 0, fmt.Errorf("reading latest run: %w", err)
	}
	return id, nil
}

// RunJobs returns the jobs of one run in discovery order.
func (s *SQLiteStore) RunJobs(runID int64) ([]model.EnrichedJob, error) {
	rows, err := s.db.Query(`SELECT position, job_id, title, location, employment_type,
			posted_label, detail_link, description_raw, description_normalized, fetch_error
		FROM run_jobs WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing jobs of run %d: %w", runID, err)
	}
	defer rows.Close()

	var jobs []model.EnrichedJob
	for rows.Next() {
		var j model.EnrichedJob
		if err := rows.Scan(&j.Position, &j.JobID, &j.Title, &j.Location, &j.EmploymentType,
			&j.PostedLabel, &j.DetailLink, &j.DescriptionRaw, &j.DescriptionNormalized, &j.FetchErr); err != nil {
			return nil, fmt.Errorf("scanning job of run %d: %w", runID, err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// RunFailures returns the failures of one run in the order they happened.
func (s *SQLiteStore) RunFailures(runID int64) ([]model.Failure, error) {
	rows, err := s.db.Query(`SELECT stage, job_id, link, field, message
		FROM run_failures WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing failures of run %d: %w", runID, err)
	}
	defer rows.Close()

	var failures []model.Failure
	for rows.Next() {
		var f model.Failure
		var stage string
		if err := rows.Scan(&stage, &f.JobID, &f.Link, &f.Field, &f.Message); err != nil {
			return nil, fmt.Errorf("scanning failure of run %d: %w", runID, err)
		}
		f.Stage = model.Stage(stage)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// Cleanup deletes runs that started longer ago than olderThan, with their
// jobs and failures.
func (s *SQLiteStore) Cleanup(olderThan time.Duration) error {
	cutoff := formatTime(time.Now().Add(-olderThan))

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin cleanup: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM run_jobs WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)",
		"DELETE FROM run_failures WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)",
		"DELETE FROM runs WHERE started_at < ?",
	} {
		if _, err := tx.Exec(q, cutoff); err != nil {
			return fmt.Errorf("cleaning up runs older than %v: %w", olderThan, err)
		}
	}
	return tx.Commit()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t, nil
}
