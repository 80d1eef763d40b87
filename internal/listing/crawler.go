// Package listing crawls a paginated job listing in a browser session and
// turns every entry into a model.JobStub.
package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/boardfeed/internal/browser"
	"github.com/amishk599/boardfeed/internal/model"
	"github.com/amishk599/boardfeed/internal/retry"
)

// Selectors locate the parts of a listing page. The defaults match Workday
// career sites.
type Selectors struct {
	Counter        string
	Entry          string
	EntryContainer string
	Location       string
	EmploymentType string
	Posted         string
	NextPage       string
}

// DefaultSelectors returns the Workday selectors.
func DefaultSelectors() Selectors {
	return Selectors{
		Counter:        "p[data-automation-id='jobFoundText']",
		Entry:          "a[data-automation-id='jobTitle']",
		EntryContainer: "li",
		Location:       "div[data-automation-id='locations']",
		EmploymentType: "div[data-automation-id='timeType']",
		Posted:         "div[data-automation-id='postedOn']",
		NextPage:       "button[data-uxi-widget-type='stepToNextButton']",
	}
}

// Config controls one crawl.
type Config struct {
	URL       string
	Selectors Selectors

	WaitTimeout       time.Duration // per wait for the counter or the entries
	CountPolicy       retry.Policy  // attempts to read the counter
	PageChangeTimeout time.Duration
	PageChangePoll    time.Duration
	MaxPages          int         // 0 = unlimited
	Clock             retry.Clock // nil means the wall clock
}

func (c Config) withDefaults() Config {
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 20 * time.Second
	}
	if c.CountPolicy.MaxAttempts == 0 {
		c.CountPolicy = retry.Fixed(10, time.Second)
	}
	if c.PageChangeTimeout <= 0 {
		c.PageChangeTimeout = 10 * time.Second
	}
	if c.PageChangePoll <= 0 {
		c.PageChangePoll = 250 * time.Millisecond
	}
	if c.Clock == nil {
		c.Clock = retry.Wall
	}
	c.CountPolicy.Clock = c.Clock
	return c
}

// pagePolicy polls for a page change every PageChangePoll until
// PageChangeTimeout has passed.
func (c Config) pagePolicy() retry.Policy {
	attempts := int(c.PageChangeTimeout/c.PageChangePoll) + 1
	return retry.Fixed(attempts, c.PageChangePoll).WithClock(c.Clock)
}

// Crawler walks the listing pages of one site. It implements
// model.StubSource.
type Crawler struct {
	session browser.Session
	cfg     Config
	base    *url.URL
	logger  *slog.Logger
}

var _ model.StubSource = (*Crawler)(nil)

// NewCrawler creates a crawler that drives session.
func NewCrawler(session browser.Session, cfg Config, logger *slog.Logger) (*Crawler, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid listing url %q", cfg.URL)
	}
	return &Crawler{
		session: session,
		cfg:     cfg.withDefaults(),
		base:    base,
		logger:  logger,
	}, nil
}

// Crawl collects every reachable stub in discovery order. On a fatal error
// it still returns what was accumulated before it.
func (c *Crawler) Crawl(ctx context.Context) ([]model.JobStub, model.CrawlStats, error) {
	state := NewCrawlState()

	page, err := c.session.NewPage(ctx)
	if err != nil {
		stubs, stats := state.Finish()
		return stubs, stats, fmt.Errorf("open listing page: %w", err)
	}
	defer page.Close()

	c.logger.Info("crawling listing", "url", c.cfg.URL)
	if err := page.Navigate(ctx, c.cfg.URL); err != nil {
		stubs, stats := state.Finish()
		if isFatal(ctx, err) {
			return stubs, stats, fmt.Errorf("navigate to listing: %w", err)
		}
		// An unreachable listing page shows no entries at all.
		return stubs, stats, fmt.Errorf("%w: navigate to listing: %w", model.ErrNoListings, err)
	}

	if err := c.awaitCount(ctx, page, state); err != nil {
		stubs, stats := state.Finish()
		return stubs, stats, err
	}

	for {
		found, err := c.scrapePage(ctx, page, state)
		if err != nil {
			stubs, stats := state.Finish()
			return stubs, stats, err
		}
		if found == 0 {
			break
		}
		if c.cfg.MaxPages > 0 && state.CurrentPage >= c.cfg.MaxPages {
			c.logger.Info("page limit reached", "page", state.CurrentPage)
			break
		}

		advanced, err := c.paginate(ctx, page, state)
		if err != nil {
			stubs, stats := state.Finish()
			return stubs, stats, err
		}
		if !advanced {
			break
		}
		state.CurrentPage++
	}

	stubs, stats := state.Finish()
	if stats.ExpectedTotal > 0 && len(stubs) != stats.ExpectedTotal {
		c.logger.Warn("discovered count differs from advertised total",
			"discovered", len(stubs),
			"expected", stats.ExpectedTotal,
		)
	}
	c.logger.Info("crawl complete",
		"discovered", len(stubs),
		"pages", stats.Pages,
		"failures", len(stats.Failures),
	)
	return stubs, stats, nil
}

// awaitCount reads the advertised total. Only session loss or cancellation
// is returned; any other failure leaves ExpectedTotal at 0.
func (c *Crawler) awaitCount(ctx context.Context, page browser.Page, state *CrawlState) error {
	err := c.cfg.CountPolicy.Do(ctx, func(ctx context.Context, attempt int) error {
		waitCtx, cancel := context.WithTimeout(ctx, c.cfg.WaitTimeout)
		defer cancel()

		el, err := page.WaitFor(waitCtx, c.cfg.Selectors.Counter)
		if err != nil {
			return fatalOr(err)
		}
		text, err := el.Text()
		if err != nil {
			return fatalOr(err)
		}
		total, ok := parseCount(text)
		if !ok {
			c.logger.Debug("counter has no number yet", "text", text, "attempt", attempt)
			return fmt.Errorf("counter text %q has no number", text)
		}
		state.ExpectedTotal = total
		return nil
	})
	if err == nil {
		c.logger.Info("advertised job count", "expected_total", state.ExpectedTotal)
		return nil
	}
	if isFatal(ctx, err) {
		return fmt.Errorf("read job count: %w", err)
	}

	c.logger.Warn("could not read job count, continuing without it", "error", err)
	state.ExpectedTotal = 0
	state.Record(model.Failure{Stage: model.StageCount, Message: err.Error()})
	return nil
}

// scrapePage extracts every entry on the current page and returns how many
// entries it saw.
func (c *Crawler) scrapePage(ctx context.Context, page browser.Page, state *CrawlState) (int, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.WaitTimeout)
	_, err := page.WaitFor(waitCtx, c.cfg.Selectors.Entry)
	cancel()
	if err != nil {
		if isFatal(ctx, err) {
			return 0, fmt.Errorf("wait for entries on page %d: %w", state.CurrentPage, err)
		}
		if state.CurrentPage == 1 {
			return 0, fmt.Errorf("%w: %w", model.ErrNoListings, err)
		}
		c.logger.Warn("no entries on page", "page", state.CurrentPage, "error", err)
		state.Record(pageFailure(model.StageListing, state.CurrentPage, err))
		return 0, nil
	}

	entries, err := page.FindAll(c.cfg.Selectors.Entry)
	if err != nil {
		if isFatal(ctx, err) {
			return 0, fmt.Errorf("list entries on page %d: %w", state.CurrentPage, err)
		}
		state.Record(pageFailure(model.StageListing, state.CurrentPage, err))
		return 0, nil
	}
	if len(entries) == 0 && state.CurrentPage == 1 {
		return 0, model.ErrNoListings
	}

	added := 0
	for _, entry := range entries {
		stub, failures, err := c.extract(entry)
		if err != nil {
			return len(entries), fmt.Errorf("read entry on page %d: %w", state.CurrentPage, err)
		}
		for _, f := range failures {
			c.logger.Warn("listing field missing",
				"job_id", f.JobID,
				"field", f.Field,
				"link", f.Link,
			)
			state.Record(f)
		}
		if !state.Add(stub) {
			c.logger.Debug("duplicate job skipped", "job_id", stub.JobID, "page", state.CurrentPage)
			continue
		}
		added++
	}

	c.logger.Info("listing page scraped",
		"page", state.CurrentPage,
		"entries", len(entries),
		"new", added,
		"total", state.Len(),
	)
	return len(entries), nil
}

// extract builds the stub for one entry. Missing fields default to the
// sentinel and are returned as failures; only session loss is an error.
func (c *Crawler) extract(entry browser.Element) (model.JobStub, []model.Failure, error) {
	sel := c.cfg.Selectors

	link := absent(browser.ErrNotFound)
	if href, ok, err := entry.Attribute("href"); err != nil {
		link = absent(err)
	} else if ok && strings.TrimSpace(href) != "" {
		link = c.resolve(href)
	}

	stub := model.JobStub{
		JobID:      model.Sentinel,
		DetailLink: link.Or(model.Sentinel),
	}
	id := absent(errNoJobID)
	if link.Present {
		id = extractJobID(link.Value)
	}
	stub.JobID = id.Or(model.Sentinel)

	title := textField(entry)

	var container browser.Element
	if el, err := entry.Closest(sel.EntryContainer); err == nil {
		container = el
	} else if browser.IsSessionLost(err) {
		return stub, nil, err
	}

	fields := []struct {
		name string
		f    Field
		dst  *string
	}{
		{"detail_link", link, nil},
		{"job_id", id, nil},
		{"title", title, &stub.Title},
		{"location", textOf(container, sel.Location), &stub.Location},
		{"employment_type", textOf(container, sel.EmploymentType), &stub.EmploymentType},
		{"posted_label", textOf(container, sel.Posted), &stub.PostedLabel},
	}

	var failures []model.Failure
	for _, fd := range fields {
		if browser.IsSessionLost(fd.f.Err) {
			return stub, nil, fd.f.Err
		}
		if fd.dst != nil {
			*fd.dst = fd.f.Or(model.Sentinel)
		}
		if !fd.f.Present {
			failures = append(failures, fieldFailure(stub, fd.name, fd.f))
		}
	}
	return stub, failures, nil
}

func (c *Crawler) resolve(href string) Field {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return absent(err)
	}
	return present(c.base.ResolveReference(ref).String())
}

// paginate moves to the next page. It returns false when there is no next
// page or the page did not change in time.
func (c *Crawler) paginate(ctx context.Context, page browser.Page, state *CrawlState) (bool, error) {
	next, err := page.Find(c.cfg.Selectors.NextPage)
	if err != nil {
		if isFatal(ctx, err) {
			return false, fmt.Errorf("find next page control: %w", err)
		}
		c.logger.Debug("no next page control", "page", state.CurrentPage)
		return false, nil
	}

	enabled, err := isEnabled(next)
	if err != nil {
		if isFatal(ctx, err) {
			return false, fmt.Errorf("inspect next page control: %w", err)
		}
		state.Record(pageFailure(model.StagePagination, state.CurrentPage, err))
		return false, nil
	}
	if !enabled {
		c.logger.Debug("next page control disabled", "page", state.CurrentPage)
		return false, nil
	}

	before, err := firstEntryIdentity(page, c.cfg.Selectors.Entry)
	if err != nil && isFatal(ctx, err) {
		return false, fmt.Errorf("snapshot page %d: %w", state.CurrentPage, err)
	}

	if err := next.Activate(); err != nil {
		if isFatal(ctx, err) {
			return false, fmt.Errorf("activate next page: %w", err)
		}
		c.logger.Warn("next page click failed", "page", state.CurrentPage, "error", err)
		state.Record(pageFailure(model.StagePagination, state.CurrentPage, err))
		return false, nil
	}

	err = c.cfg.pagePolicy().Until(ctx, func(ctx context.Context) (bool, error) {
		after, err := firstEntryIdentity(page, c.cfg.Selectors.Entry)
		if err != nil {
			return false, fatalOr(err)
		}
		return after != "" && after != before, nil
	})
	if err != nil {
		if isFatal(ctx, err) {
			return false, fmt.Errorf("wait for page %d: %w", state.CurrentPage+1, err)
		}
		c.logger.Warn("listing did not change after next page click",
			"page", state.CurrentPage,
			"timeout", c.cfg.PageChangeTimeout,
		)
		state.Record(pageFailure(model.StagePagination, state.CurrentPage,
			fmt.Errorf("%w: page did not change", browser.ErrTimeout)))
		return false, nil
	}
	return true, nil
}

func isEnabled(control browser.Element) (bool, error) {
	if _, disabled, err := control.Attribute("disabled"); err != nil || disabled {
		return false, err
	}
	if v, ok, err := control.Attribute("aria-disabled"); err != nil || (ok && strings.EqualFold(v, "true")) {
		return false, err
	}
	return control.Interactable()
}

// firstEntryIdentity identifies the page by its first entry's link, or its
// text when the link is missing.
func firstEntryIdentity(page browser.Page, selector string) (string, error) {
	el, err := page.Find(selector)
	if err != nil {
		return "", err
	}
	if href, ok, err := el.Attribute("href"); err != nil {
		return "", err
	} else if ok && href != "" {
		return href, nil
	}
	return el.Text()
}

var (
	jobIDPattern = regexp.MustCompile(`R-\d+|\d{3,5}-\d+`)
	countPattern = regexp.MustCompile(`\d[\d,]*`)
	errNoJobID   = errors.New("no job id in link")
)

// extractJobID finds the requisition id in a detail link.
func extractJobID(link string) Field {
	id := jobIDPattern.FindString(link)
	if id == "" {
		return absent(errNoJobID)
	}
	return present(id)
}

// parseCount returns the first integer in text, allowing thousands
// separators.
func parseCount(text string) (int, bool) {
	m := countPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// fatalOr marks session loss as permanent so retry loops stop on it.
func fatalOr(err error) error {
	if browser.IsSessionLost(err) {
		return retry.Permanent(err)
	}
	return err
}

// isFatal reports whether err must end the crawl.
func isFatal(ctx context.Context, err error) bool {
	return browser.IsSessionLost(err) || ctx.Err() != nil
}
