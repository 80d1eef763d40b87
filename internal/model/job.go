package model

import (
	"context"
	"time"
)

// Sentinel is the value used for a listing field that could not be read.
const Sentinel = "N/A"

// JobStub is a listing-page record before its description is fetched.
type JobStub struct {
	JobID          string `json:"jobid"`     // R-123 or 123-45, Sentinel when absent
	Title          string `json:"title"`     // job title
	Location       string `json:"location"`  // location text as shown on the listing
	EmploymentType string `json:"time_type"` // full time / part time
	PostedLabel    string `json:"posted_on"` // free text, e.g. "Posted Today"
	DetailLink     string `json:"job_link"`  // absolute detail page URL
}

// EnrichedJob is a stub plus its fetched and normalized description.
type EnrichedJob struct {
	JobStub
	Position              int    // discovery index, 0-based
	DescriptionRaw        string // isolated description markup, empty on fetch failure
	DescriptionNormalized string // text or restricted markup
	FetchErr              string // non-empty when the detail fetch failed
}

// Failure is one itemized failure recorded during a run.
type Failure struct {
	Stage   Stage
	JobID   string
	Link    string
	Field   string
	Message string
}

// Stage names the pipeline step a failure belongs to.
type Stage string

const (
	StageCount      Stage = "count"
	StageListing    Stage = "listing"
	StageField      Stage = "field"
	StagePagination Stage = "pagination"
	StageDetail     Stage = "detail"
	StageNormalize  Stage = "normalize"
	StageSession    Stage = "session"
	StageOutput     Stage = "output"
)

// Report summarizes one pipeline run.
type Report struct {
	RunID         int64
	StartedAt     time.Time
	FinishedAt    time.Time
	Site          string
	ExpectedTotal int
	Pages         int
	Discovered    int
	Enriched      int
	Normalized    int
	FetchFailures int
	Failures      []Failure
	Fatal         string // non-empty when the run aborted
}

// RunSummary is a stored run as listed by the run ledger.
type RunSummary struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    time.Time
	Site          string
	Discovered    int
	Enriched      int
	FetchFailures int
	FailureCount  int
	Fatal         string
}

// StubSource discovers job stubs from a listing site.
type StubSource interface {
	Crawl(ctx context.Context) ([]JobStub, CrawlStats, error)
}

// CrawlStats carries what the crawl observed besides the stubs themselves.
type CrawlStats struct {
	ExpectedTotal int
	Pages         int
	Failures      []Failure
}

// DescriptionFetcher enriches stubs with their detail-page descriptions.
// The returned slice always has one record per stub, in stub order.
type DescriptionFetcher interface {
	Enrich(ctx context.Context, stubs []JobStub) ([]EnrichedJob, []Failure, error)
}

// RunStore persists completed runs.
type RunStore interface {
	SaveRun(report Report, jobs []EnrichedJob) (int64, error)
	Cleanup(olderThan time.Duration) error
}

// Reporter publishes the outcome of a run.
type Reporter interface {
	Report(report Report) error
}
