package listing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/amishk599/boardfeed/internal/browser"
	"github.com/amishk599/boardfeed/internal/browser/browsertest"
	"github.com/amishk599/boardfeed/internal/model"
	"github.com/amishk599/boardfeed/internal/retry/retrytest"
)

const (
	listingURL = "https://acme.wd1.myworkdayjobs.com/en-US/Careers"
	nextButton = "button[data-uxi-widget-type='stepToNextButton']"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type entry struct {
	id, title, location, timeType, posted string
	noLink                                bool
}

func job(id string) entry {
	return entry{
		id:       id,
		title:    "Job " + id,
		location: "Denver, CO",
		timeType: "Full time",
		posted:   "Posted Today",
	}
}

func (e entry) html() string {
	var b strings.Builder
	b.WriteString("<li><h3>")
	if e.noLink {
		fmt.Fprintf(&b, `<a data-automation-id="jobTitle">%s</a>`, e.title)
	} else {
		fmt.Fprintf(&b, `<a data-automation-id="jobTitle" href="/en-US/Careers/job/Denver/Role_%s">%s</a>`, e.id, e.title)
	}
	b.WriteString("</h3>")
	if e.location != "" {
		fmt.Fprintf(&b, `<div data-automation-id="locations"><dl><dt>locations</dt> <dd>%s</dd></dl></div>`, e.location)
	}
	if e.timeType != "" {
		fmt.Fprintf(&b, `<div data-automation-id="timeType">%s</div>`, e.timeType)
	}
	if e.posted != "" {
		fmt.Fprintf(&b, `<div data-automation-id="postedOn">%s</div>`, e.posted)
	}
	b.WriteString("</li>")
	return b.String()
}

// listingHTML renders one listing page. next is "" for no control,
// "enabled" or "disabled".
func listingHTML(counter string, entries []entry, next string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if counter != "" {
		fmt.Fprintf(&b, `<p data-automation-id="jobFoundText">%s</p>`, counter)
	}
	b.WriteString("<ul>")
	for _, e := range entries {
		b.WriteString(e.html())
	}
	b.WriteString("</ul>")
	switch next {
	case "enabled":
		b.WriteString(`<button data-uxi-widget-type="stepToNextButton">next</button>`)
	case "disabled":
		b.WriteString(`<button data-uxi-widget-type="stepToNextButton" aria-disabled="true">next</button>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func pageOf(first, n int) []entry {
	out := make([]entry, 0, n)
	for i := first; i < first+n; i++ {
		out = append(out, job(fmt.Sprintf("R-%d", i)))
	}
	return out
}

func newTestCrawler(t *testing.T, site *browsertest.Site, clock *retrytest.Clock) *Crawler {
	t.Helper()
	site.ListingURL = listingURL
	site.NextSelector = nextButton
	c, err := NewCrawler(browsertest.NewSession(site), Config{
		URL:       listingURL,
		Selectors: DefaultSelectors(),
		Clock:     clock,
	}, discardLogger())
	if err != nil {
		t.Fatalf("NewCrawler: %v", err)
	}
	return c
}

func ids(stubs []model.JobStub) []string {
	out := make([]string, len(stubs))
	for i, s := range stubs {
		out[i] = s.JobID
	}
	return out
}

func TestCrawlThreePages(t *testing.T) {
	site := &browsertest.Site{
		Listing: []string{
			listingHTML("60 JOBS FOUND", pageOf(1000, 20), "enabled"),
			listingHTML("60 JOBS FOUND", pageOf(1020, 20), "enabled"),
			listingHTML("60 JOBS FOUND", pageOf(1040, 20), "disabled"),
		},
		SwapAfterPolls: 3,
	}
	clock := retrytest.NewClock(time.Unix(0, 0))
	c := newTestCrawler(t, site, clock)

	stubs, stats, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	if len(stubs) != 60 {
		t.Fatalf("got %d stubs, want 60", len(stubs))
	}
	var want []string
	for i := 1000; i < 1060; i++ {
		want = append(want, fmt.Sprintf("R-%d", i))
	}
	if diff := cmp.Diff(want, ids(stubs)); diff != "" {
		t.Errorf("stub order mismatch (-want +got):\n%s", diff)
	}
	if stats.ExpectedTotal != 60 {
		t.Errorf("ExpectedTotal = %d, want 60", stats.ExpectedTotal)
	}
	if stats.Pages != 3 {
		t.Errorf("Pages = %d, want 3", stats.Pages)
	}
	if len(stats.Failures) != 0 {
		t.Errorf("unexpected failures: %+v", stats.Failures)
	}

	first := stubs[0]
	wantFirst := model.JobStub{
		JobID:          "R-1000",
		Title:          "Job R-1000",
		Location:       "locations Denver, CO",
		EmploymentType: "Full time",
		PostedLabel:    "Posted Today",
		DetailLink:     listingURL + "/job/Denver/Role_R-1000",
	}
	if diff := cmp.Diff(wantFirst, first); diff != "" {
		t.Errorf("first stub mismatch (-want +got):\n%s", diff)
	}
}

func TestCrawlCounterUnavailable(t *testing.T) {
	site := &browsertest.Site{
		Listing: []string{listingHTML("Unable to load", pageOf(1, 5), "")},
	}
	clock := retrytest.NewClock(time.Unix(0, 0))
	c := newTestCrawler(t, site, clock)

	stubs, stats, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if stats.ExpectedTotal != 0 {
		t.Errorf("ExpectedTotal = %d, want 0", stats.ExpectedTotal)
	}
	if len(stubs) != 5 {
		t.Errorf("got %d stubs, want 5", len(stubs))
	}
	if len(stats.Failures) != 1 || stats.Failures[0].Stage != model.StageCount {
		t.Errorf("failures = %+v, want one count failure", stats.Failures)
	}
	// ten attempts, nine one-second pauses between them
	if got := clock.Elapsed(); got != 9*time.Second {
		t.Errorf("counter polling slept %v, want 9s", got)
	}
}

func TestCrawlCounterMissing(t *testing.T) {
	site := &browsertest.Site{
		Listing: []string{listingHTML("", pageOf(1, 2), "")},
	}
	c := newTestCrawler(t, site, retrytest.NewClock(time.Unix(0, 0)))

	stubs, stats, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if stats.ExpectedTotal != 0 || len(stubs) != 2 {
		t.Errorf("ExpectedTotal = %d, stubs = %d; want 0 and 2", stats.ExpectedTotal, len(stubs))
	}
}

func TestCrawlNoListings(t *testing.T) {
	site := &browsertest.Site{
		Listing: []string{listingHTML("0 JOBS FOUND", nil, "")},
	}
	c := newTestCrawler(t, site, retrytest.NewClock(time.Unix(0, 0)))

	stubs, _, err := c.Crawl(context.Background())
	if !errors.Is(err, model.ErrNoListings) {
		t.Fatalf("err = %v, want ErrNoListings", err)
	}
	if len(stubs) != 0 {
		t.Errorf("got %d stubs, want none", len(stubs))
	}
}

func TestCrawlListingUnreachable(t *testing.T) {
	site := &browsertest.Site{
		NavigateErr: map[string]error{listingURL: errors.New("net::ERR_NAME_NOT_RESOLVED")},
	}
	c := newTestCrawler(t, site, retrytest.NewClock(time.Unix(0, 0)))

	_, _, err := c.Crawl(context.Background())
	if !errors.Is(err, model.ErrNoListings) {
		t.Fatalf("err = %v, want ErrNoListings", err)
	}
	if errors.Is(err, browser.ErrSessionLost) {
		t.Error("navigation failure should not read as session loss")
	}
}

func TestCrawlListingNavigateSessionLost(t *testing.T) {
	site := &browsertest.Site{LoseSessionAt: 1}
	c := newTestCrawler(t, site, retrytest.NewClock(time.Unix(0, 0)))

	_, _, err := c.Crawl(context.Background())
	if !errors.Is(err, browser.ErrSessionLost) {
		t.Fatalf("err = %v, want ErrSessionLost", err)
	}
	if errors.Is(err, model.ErrNoListings) {
		t.Error("session loss should not read as no listings")
	}
}

func TestCrawlDropsDuplicates(t *testing.T) {
	page1 := append(pageOf(1, 3), job("R-2"))
	page2 := []entry{job("R-3"), job("R-4")}
	site := &browsertest.Site{
		Listing: []string{
			listingHTML("5 JOBS FOUND", page1, "enabled"),
			listingHTML("5 JOBS FOUND", page2, ""),
		},
	}
	c := newTestCrawler(t, site, retrytest.NewClock(time.Unix(0, 0)))

	stubs, _, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if diff := cmp.Diff([]string{"R-1", "R-2", "R-3", "R-4"}, ids(stubs)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestCrawlMissingFields(t *testing.T) {
	noLocation := job("R-7")
	noLocation.location = ""
	noLink1, noLink2 := job("x"), job("y")
	noLink1.title, noLink1.noLink = "Mystery one", true
	noLink2.title, noLink2.noLink = "Mystery two", true
	site := &browsertest.Site{
		Listing: []string{listingHTML("3 JOBS FOUND", []entry{noLocation, noLink1, noLink2}, "")},
	}
	c := newTestCrawler(t, site, retrytest.NewClock(time.Unix(0, 0)))

	stubs, stats, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	// The second link-less entry shares the sentinel id and is dropped.
	if diff := cmp.Diff([]string{"R-7", model.Sentinel}, ids(stubs)); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}
	if stubs[0].Location != model.Sentinel {
		t.Errorf("Location = %q, want sentinel", stubs[0].Location)
	}
	if stubs[0].Title != "Job R-7" || stubs[0].EmploymentType != "Full time" {
		t.Errorf("other fields lost: %+v", stubs[0])
	}
	if stubs[1].Title != "Mystery one" || stubs[1].DetailLink != model.Sentinel {
		t.Errorf("link-less stub = %+v", stubs[1])
	}

	fields := map[string]int{}
	for _, f := range stats.Failures {
		if f.Stage != model.StageField {
			t.Errorf("unexpected failure stage %q", f.Stage)
		}
		fields[f.Field]++
	}
	want := map[string]int{"location": 1, "detail_link": 2, "job_id": 2}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("field failures mismatch (-want +got):\n%s", diff)
	}
}

func TestCrawlStuckPagination(t *testing.T) {
	site := &browsertest.Site{
		Listing: []string{
			listingHTML("40 JOBS FOUND", pageOf(1, 20), "enabled"),
			listingHTML("40 JOBS FOUND", pageOf(21, 20), ""),
		},
		StuckAfterClick: true,
	}
	clock := retrytest.NewClock(time.Unix(0, 0))
	c := newTestCrawler(t, site, clock)

	stubs, stats, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(stubs) != 20 {
		t.Errorf("got %d stubs, want 20", len(stubs))
	}
	if len(stats.Failures) != 1 || stats.Failures[0].Stage != model.StagePagination {
		t.Errorf("failures = %+v, want one pagination failure", stats.Failures)
	}
	if got := clock.Elapsed(); got != 10*time.Second {
		t.Errorf("page change polling slept %v, want 10s", got)
	}
}

func TestCrawlHiddenNextControl(t *testing.T) {
	page1 := strings.Replace(
		listingHTML("4 JOBS FOUND", pageOf(1, 2), "enabled"),
		`<button data-uxi-widget-type="stepToNextButton">`,
		`<button data-uxi-widget-type="stepToNextButton" hidden>`, 1)
	site := &browsertest.Site{
		Listing: []string{page1, listingHTML("4 JOBS FOUND", pageOf(3, 2), "")},
	}
	c := newTestCrawler(t, site, retrytest.NewClock(time.Unix(0, 0)))

	stubs, _, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(stubs) != 2 {
		t.Errorf("got %d stubs, want 2", len(stubs))
	}
}

func TestCrawlMaxPages(t *testing.T) {
	site := &browsertest.Site{
		Listing: []string{
			listingHTML("4 JOBS FOUND", pageOf(1, 2), "enabled"),
			listingHTML("4 JOBS FOUND", pageOf(3, 2), ""),
		},
	}
	site.ListingURL = listingURL
	site.NextSelector = nextButton
	c, err := NewCrawler(browsertest.NewSession(site), Config{
		URL:       listingURL,
		Selectors: DefaultSelectors(),
		MaxPages:  1,
		Clock:     retrytest.NewClock(time.Unix(0, 0)),
	}, discardLogger())
	if err != nil {
		t.Fatalf("NewCrawler: %v", err)
	}

	stubs, stats, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(stubs) != 2 || stats.Pages != 1 {
		t.Errorf("stubs = %d, pages = %d; want 2 and 1", len(stubs), stats.Pages)
	}
}

func TestCrawlSessionLostKeepsPartialResults(t *testing.T) {
	site := &browsertest.Site{
		Listing: []string{
			listingHTML("40 JOBS FOUND", pageOf(1, 20), "enabled"),
			listingHTML("40 JOBS FOUND", pageOf(21, 20), ""),
		},
		LoseSessionOnClick: 1,
	}
	c := newTestCrawler(t, site, retrytest.NewClock(time.Unix(0, 0)))

	stubs, _, err := c.Crawl(context.Background())
	if !errors.Is(err, browser.ErrSessionLost) {
		t.Fatalf("err = %v, want ErrSessionLost", err)
	}
	if len(stubs) != 20 {
		t.Errorf("got %d stubs, want the 20 from page 1", len(stubs))
	}
}

func TestNewCrawlerRejectsRelativeURL(t *testing.T) {
	_, err := NewCrawler(browsertest.NewSession(&browsertest.Site{}), Config{URL: "/careers"}, discardLogger())
	if err == nil {
		t.Fatal("expected an error for a relative listing url")
	}
}

func TestExtractJobID(t *testing.T) {
	tests := []struct {
		link string
		want Field
	}{
		{"https://x.example/job/Denver/Nurse_R-1042", present("R-1042")},
		{"https://x.example/job/Remote/Analyst_1234-56", present("1234-56")},
		{"https://x.example/job/Remote/Analyst_12-5", absent(errNoJobID)},
		{"https://x.example/job/Remote/Analyst", absent(errNoJobID)},
	}
	for _, tt := range tests {
		got := extractJobID(tt.link)
		if got.Present != tt.want.Present || got.Value != tt.want.Value {
			t.Errorf("extractJobID(%q) = %+v, want %+v", tt.link, got, tt.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		text   string
		want   int
		wantOK bool
	}{
		{"60 JOBS FOUND", 60, true},
		{"1,234 jobs", 1234, true},
		{"Showing 20 of 85", 20, true},
		{"Unable to load", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseCount(tt.text)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseCount(%q) = %d, %v; want %d, %v", tt.text, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCrawlStateFinish(t *testing.T) {
	s := NewCrawlState()
	if !s.Add(model.JobStub{JobID: "R-1"}) || s.Add(model.JobStub{JobID: "R-1"}) {
		t.Fatal("Add should keep the first and drop the repeat")
	}
	s.Record(model.Failure{Stage: model.StageField})

	stubs, stats := s.Finish()
	if len(stubs) != 1 || len(stats.Failures) != 1 || stats.Pages != 1 {
		t.Errorf("Finish = %v, %+v", stubs, stats)
	}
	if again, _ := s.Finish(); len(again) != 0 {
		t.Errorf("second Finish returned %d stubs", len(again))
	}
}
