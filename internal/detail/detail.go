// Package detail visits job detail pages and captures the description
// markup for each stub.
package detail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/boardfeed/internal/browser"
	"github.com/amishk599/boardfeed/internal/model"
	"github.com/amishk599/boardfeed/internal/retry"
)

// DefaultDescriptionSelector matches the Workday description container.
const DefaultDescriptionSelector = "div[data-automation-id='jobPostingDescription']"

var errNoLink = errors.New("stub has no detail link")

// Limiter paces navigations per host.
type Limiter interface {
	WaitURL(ctx context.Context, rawURL string) error
}

// Config controls detail fetching.
type Config struct {
	DescriptionSelector string
	WaitTimeout         time.Duration // wait for the description container
	Policy              retry.Policy  // attempts per job
	Workers             int           // independent browser contexts
}

func (c Config) withDefaults() Config {
	if c.DescriptionSelector == "" {
		c.DescriptionSelector = DefaultDescriptionSelector
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 20 * time.Second
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c
}

// Enricher fetches descriptions for a batch of stubs. It implements
// model.DescriptionFetcher.
type Enricher struct {
	session browser.Session
	limiter Limiter
	cfg     Config
	logger  *slog.Logger
}

var _ model.DescriptionFetcher = (*Enricher)(nil)

// NewEnricher creates an enricher. Each worker opens its own context on
// session.
func NewEnricher(session browser.Session, limiter Limiter, cfg Config, logger *slog.Logger) *Enricher {
	return &Enricher{
		session: session,
		limiter: limiter,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Enrich returns one record per stub, in stub order. A job whose page
// cannot be read keeps an empty description and gets a failure entry. The
// error is non-nil only when the session is lost or ctx ends; the records
// are still returned, and every job no worker reached gets a "not fetched"
// failure.
func (e *Enricher) Enrich(ctx context.Context, stubs []model.JobStub) ([]model.EnrichedJob, []model.Failure, error) {
	jobs := make([]model.EnrichedJob, len(stubs))
	for i, s := range stubs {
		jobs[i] = model.EnrichedJob{JobStub: s, Position: i}
	}
	slots := make([]*model.Failure, len(stubs))
	visited := make([]bool, len(stubs))

	workers := min(e.cfg.Workers, len(stubs))
	if workers == 0 {
		return jobs, nil, nil
	}

	queue := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		for i := range stubs {
			select {
			case queue <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			return e.work(gctx, w, queue, jobs, slots, visited)
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		markUnvisited(jobs, slots, visited, err)
	}

	var failures []model.Failure
	fetched := 0
	for i, f := range slots {
		if f != nil {
			failures = append(failures, *f)
		} else if jobs[i].DescriptionRaw != "" {
			fetched++
		}
	}
	e.logger.Info("descriptions fetched",
		"fetched", fetched,
		"failed", len(failures),
		"total", len(stubs),
	)
	return jobs, failures, err
}

// work drains queue with one browser context. Only session loss ends it
// early.
func (e *Enricher) work(ctx context.Context, id int, queue <-chan int, jobs []model.EnrichedJob, slots []*model.Failure, visited []bool) error {
	session, err := e.session.NewContext(ctx)
	if err != nil {
		return fmt.Errorf("worker %d: open browser context: %w", id, err)
	}
	defer session.Close()

	page, err := session.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("worker %d: open page: %w", id, err)
	}
	defer page.Close()

	for i := range queue {
		visited[i] = true
		job := &jobs[i]
		raw, err := e.fetch(ctx, page, job.JobStub)
		if err != nil {
			job.FetchErr = err.Error()
			slots[i] = &model.Failure{
				Stage:   model.StageDetail,
				JobID:   job.JobID,
				Link:    job.DetailLink,
				Message: err.Error(),
			}
			e.logger.Warn("description fetch failed",
				"job_id", job.JobID,
				"link", job.DetailLink,
				"error", err,
			)
			if browser.IsSessionLost(err) || ctx.Err() != nil {
				return err
			}
			continue
		}

		job.DescriptionRaw = raw
		e.logger.Debug("description fetched",
			"job_id", job.JobID,
			"position", i+1,
			"bytes", len(raw),
		)
	}
	return nil
}

// markUnvisited records a failure for every job that was never handed to a
// worker because the run ended early.
func markUnvisited(jobs []model.EnrichedJob, slots []*model.Failure, visited []bool, cause error) {
	reason := "run cancelled"
	if browser.IsSessionLost(cause) {
		reason = "session lost"
	}
	msg := "not fetched: " + reason
	for i := range jobs {
		if visited[i] {
			continue
		}
		jobs[i].FetchErr = msg
		slots[i] = &model.Failure{
			Stage:   model.StageDetail,
			JobID:   jobs[i].JobID,
			Link:    jobs[i].DetailLink,
			Message: msg,
		}
	}
}

// fetch loads one detail page and returns the isolated description markup.
func (e *Enricher) fetch(ctx context.Context, page browser.Page, stub model.JobStub) (string, error) {
	link := stub.DetailLink
	if link == "" || link == model.Sentinel {
		return "", errNoLink
	}

	var raw string
	err := e.cfg.Policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			e.logger.Debug("retrying description", "job_id", stub.JobID, "attempt", attempt)
		}
		if err := e.limiter.WaitURL(ctx, link); err != nil {
			return err
		}
		if err := page.Navigate(ctx, link); err != nil {
			return permanentIfLost(fmt.Errorf("navigate: %w", err))
		}

		waitCtx, cancel := context.WithTimeout(ctx, e.cfg.WaitTimeout)
		defer cancel()
		el, err := page.WaitFor(waitCtx, e.cfg.DescriptionSelector)
		if err != nil {
			return permanentIfLost(fmt.Errorf("wait for description: %w", err))
		}
		outer, err := el.OuterHTML()
		if err != nil {
			return permanentIfLost(fmt.Errorf("read description: %w", err))
		}
		isolated, err := Isolate(outer, e.cfg.DescriptionSelector)
		if err != nil {
			return retry.Permanent(err)
		}
		raw = isolated
		return nil
	})
	return raw, err
}

func permanentIfLost(err error) error {
	if browser.IsSessionLost(err) {
		return retry.Permanent(err)
	}
	return err
}
