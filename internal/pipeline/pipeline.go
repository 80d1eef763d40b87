// Package pipeline runs one crawl → enrich → normalize → emit cycle and
// records its outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/amishk599/boardfeed/internal/feed"
	"github.com/amishk599/boardfeed/internal/model"
	"github.com/amishk599/boardfeed/internal/normalize"
)

// Outputs names the files a run writes. Empty paths are skipped.
type Outputs struct {
	CSVPath     string
	FeedPath    string
	StubsPath   string
	CleanLabels bool
}

// Pipeline owns the full run for one listing site:
// crawl → checkpoint → enrich → normalize → csv → feed → store → report.
type Pipeline struct {
	site       string
	source     model.StubSource
	fetcher    model.DescriptionFetcher
	normalizer *normalize.Normalizer
	store      model.RunStore
	reporter   model.Reporter
	outputs    Outputs
	retention  time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// New creates a pipeline wired with all its dependencies.
func New(
	site string,
	source model.StubSource,
	fetcher model.DescriptionFetcher,
	normalizer *normalize.Normalizer,
	store model.RunStore,
	reporter model.Reporter,
	outputs Outputs,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		site:       site,
		source:     source,
		fetcher:    fetcher,
		normalizer: normalizer,
		store:      store,
		reporter:   reporter,
		outputs:    outputs,
		now:        time.Now,
		logger:     logger,
	}
}

// WithRetention makes every run prune stored runs older than d. Zero keeps
// everything.
func (p *Pipeline) WithRetention(d time.Duration) *Pipeline {
	p.retention = d
	return p
}

// Run executes one cycle. Bounded failures end up in the report; the error
// is non-nil only for a fatal condition, after whatever was gathered has
// been written, stored and reported.
func (p *Pipeline) Run(ctx context.Context) (model.Report, error) {
	report := model.Report{Site: p.site, StartedAt: p.now()}

	var fatalStage model.Stage
	stubs, stats, fatal := p.source.Crawl(ctx)
	report.ExpectedTotal = stats.ExpectedTotal
	report.Pages = stats.Pages
	report.Discovered = len(stubs)
	report.Failures = append(report.Failures, stats.Failures...)
	if fatal != nil {
		fatalStage = model.StageSession
		if errors.Is(fatal, model.ErrNoListings) {
			fatalStage = model.StageListing
		}
		fatal = fmt.Errorf("crawl: %w", fatal)
	}

	if len(stubs) > 0 {
		if err := p.write(p.outputs.StubsPath, func(w io.Writer) error {
			return feed.WriteStubs(w, stubs)
		}); err != nil {
			p.logger.Error("writing stub checkpoint", "path", p.outputs.StubsPath, "error", err)
		}
	}

	var jobs []model.EnrichedJob
	if fatal == nil {
		var failures []model.Failure
		var err error
		jobs, failures, err = p.fetcher.Enrich(ctx, stubs)
		report.Failures = append(report.Failures, failures...)
		if err != nil {
			fatal, fatalStage = fmt.Errorf("enrich: %w", err), model.StageSession
		}
	} else {
		jobs = unenriched(stubs)
	}

	for i := range jobs {
		j := &jobs[i]
		normalized, degraded := p.normalizer.NormalizeChecked(j.DescriptionRaw)
		j.DescriptionNormalized = normalized
		if degraded {
			report.Failures = append(report.Failures, model.Failure{
				Stage:   model.StageNormalize,
				JobID:   j.JobID,
				Link:    j.DetailLink,
				Message: "markup could not be walked, used plain-text fallback",
			})
		}
		report.Normalized++
		if j.DescriptionRaw != "" {
			report.Enriched++
		}
	}
	for _, f := range report.Failures {
		if f.Stage == model.StageDetail {
			report.FetchFailures++
		}
	}

	if len(jobs) > 0 || fatal == nil {
		if err := p.emit(jobs); err != nil && fatal == nil {
			fatal, fatalStage = err, model.StageOutput
		}
	}

	if fatal != nil {
		report.Fatal = fatal.Error()
		report.Failures = append(report.Failures, model.Failure{
			Stage:   fatalStage,
			Message: fatal.Error(),
		})
	}
	report.FinishedAt = p.now()
	p.persist(&report, jobs)

	if err := p.reporter.Report(report); err != nil {
		p.logger.Error("reporting run", "run_id", report.RunID, "error", err)
	}
	return report, fatal
}

// emit writes the CSV intermediate and the feed.
func (p *Pipeline) emit(jobs []model.EnrichedJob) error {
	if err := p.write(p.outputs.CSVPath, func(w io.Writer) error {
		return feed.WriteCSV(w, jobs)
	}); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := p.write(p.outputs.FeedPath, func(w io.Writer) error {
		return feed.WriteXML(w, feed.Records(jobs, p.outputs.CleanLabels))
	}); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	p.logger.Info("outputs written",
		"jobs", len(jobs),
		"csv", p.outputs.CSVPath,
		"feed", p.outputs.FeedPath,
	)
	return nil
}

func (p *Pipeline) write(path string, fn func(io.Writer) error) error {
	if path == "" {
		return nil
	}
	return feed.WriteFile(path, fn)
}

func (p *Pipeline) persist(report *model.Report, jobs []model.EnrichedJob) {
	id, err := p.store.SaveRun(*report, jobs)
	if err != nil {
		p.logger.Error("saving run", "error", err)
		return
	}
	report.RunID = id

	if p.retention > 0 {
		if err := p.store.Cleanup(p.retention); err != nil {
			p.logger.Warn("pruning old runs", "error", err)
		}
	}
}

func unenriched(stubs []model.JobStub) []model.EnrichedJob {
	jobs := make([]model.EnrichedJob, len(stubs))
	for i, s := range stubs {
		jobs[i] = model.EnrichedJob{JobStub: s, Position: i}
	}
	return jobs
}
