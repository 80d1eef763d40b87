// Package browsertest is an in-memory browser.Session for tests. Pages are
// plain HTML documents queried with goquery; activating the configured
// next-page control swaps in the following listing page.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/boardfeed/internal/browser"
)

// Site describes everything the fake browser can navigate to.
type Site struct {
	ListingURL   string
	Listing      []string // HTML of each listing page, in pagination order
	NextSelector string   // activating a match advances to the next listing page

	// SwapAfterPolls delays the listing swap after a click by this many
	// document queries, emulating asynchronous content replacement.
	SwapAfterPolls int
	// StuckAfterClick leaves the listing unchanged after a click.
	StuckAfterClick bool

	Details       map[string]string // detail URL → HTML
	NavigateErr   map[string]error  // URL → navigation error
	LoseSessionAt int               // navigation count (1-based) at which the session dies, 0 = never
	// LoseSessionOnClick kills the session when the Nth next-page click
	// (1-based) happens, 0 = never.
	LoseSessionOnClick int

	mu          sync.Mutex
	navigations []string
	contexts    int
	clicks      int
	lost        bool
}

// Navigations returns every URL navigated to, in order.
func (s *Site) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Contexts returns the number of independent contexts opened.
func (s *Site) Contexts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contexts
}

// Session is a fake browser.Session over a Site.
type Session struct {
	site   *Site
	closed bool
}

var _ browser.Session = (*Session)(nil)

// NewSession returns a session over site.
func NewSession(site *Site) *Session {
	return &Session{site: site}
}

func (s *Session) NewPage(_ context.Context) (browser.Page, error) {
	if s.site.isLost() {
		return nil, browser.ErrSessionLost
	}
	return &Page{site: s.site}, nil
}

func (s *Session) NewContext(_ context.Context) (browser.Session, error) {
	s.site.mu.Lock()
	s.site.contexts++
	s.site.mu.Unlock()
	return &Session{site: s.site}, nil
}

func (s *Session) Close() error {
	s.closed = true
	return nil
}

func (s *Site) isLost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

// Page is a fake tab.
type Page struct {
	site *Site

	mu          sync.Mutex
	doc         *goquery.Document
	listingPage int  // index into Site.Listing, -1 when not on the listing
	pendingSwap bool // a click is waiting to replace the listing
	pollsLeft   int
}

var _ browser.Page = (*Page)(nil)

func (p *Page) Navigate(_ context.Context, url string) error {
	s := p.site
	s.mu.Lock()
	if s.lost {
		s.mu.Unlock()
		return browser.ErrSessionLost
	}
	s.navigations = append(s.navigations, url)
	if s.LoseSessionAt > 0 && len(s.navigations) >= s.LoseSessionAt {
		s.lost = true
		s.mu.Unlock()
		return fmt.Errorf("%w: target crashed", browser.ErrSessionLost)
	}
	navErr := s.NavigateErr[url]
	detail, isDetail := s.Details[url]
	s.mu.Unlock()

	if navErr != nil {
		return navErr
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingSwap = false
	switch {
	case url == s.ListingURL && len(s.Listing) > 0:
		p.listingPage = 0
		p.doc = mustParse(s.Listing[0])
	case isDetail:
		p.listingPage = -1
		p.doc = mustParse(detail)
	default:
		p.listingPage = -1
		p.doc = mustParse("<html><body><h1>Not Found</h1></body></html>")
	}
	return nil
}

func (p *Page) WaitFor(_ context.Context, selector string) (browser.Element, error) {
	el, err := p.Find(selector)
	if errors.Is(err, browser.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", browser.ErrTimeout, selector)
	}
	return el, err
}

func (p *Page) Find(selector string) (browser.Element, error) {
	els, err := p.FindAll(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %q", browser.ErrNotFound, selector)
	}
	return els[0], nil
}

func (p *Page) FindAll(selector string) ([]browser.Element, error) {
	if p.site.isLost() {
		return nil, browser.ErrSessionLost
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tick()
	if p.doc == nil {
		return nil, nil
	}
	return p.wrapAll(p.doc.Find(selector)), nil
}

func (p *Page) Close() error { return nil }

// tick advances a pending listing swap by one observation.
func (p *Page) tick() {
	if !p.pendingSwap {
		return
	}
	if p.pollsLeft > 0 {
		p.pollsLeft--
		return
	}
	p.pendingSwap = false
	p.listingPage++
	p.doc = mustParse(p.site.Listing[p.listingPage])
}

func (p *Page) activate(sel *goquery.Selection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listingPage < 0 || p.site.NextSelector == "" || !sel.Is(p.site.NextSelector) {
		return
	}
	s := p.site
	s.mu.Lock()
	s.clicks++
	if s.LoseSessionOnClick > 0 && s.clicks >= s.LoseSessionOnClick {
		s.lost = true
	}
	s.mu.Unlock()
	if p.site.StuckAfterClick || p.listingPage+1 >= len(p.site.Listing) {
		return
	}
	p.pendingSwap = true
	p.pollsLeft = p.site.SwapAfterPolls
}

func (p *Page) wrapAll(sel *goquery.Selection) []browser.Element {
	out := make([]browser.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{sel: s, page: p})
	})
	return out
}

// Element is a fake DOM element.
type Element struct {
	sel  *goquery.Selection
	page *Page
}

var _ browser.Element = (*Element)(nil)

func (e *Element) Text() (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *Element) Attribute(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *Element) OuterHTML() (string, error) {
	return goquery.OuterHtml(e.sel)
}

func (e *Element) Find(selector string) (browser.Element, error) {
	found := e.sel.Find(selector)
	if found.Length() == 0 {
		return nil, fmt.Errorf("%w: %q", browser.ErrNotFound, selector)
	}
	return &Element{sel: found.First(), page: e.page}, nil
}

func (e *Element) FindAll(selector string) ([]browser.Element, error) {
	return e.page.wrapAll(e.sel.Find(selector)), nil
}

func (e *Element) Closest(tag string) (browser.Element, error) {
	found := e.sel.Parent().Closest(tag)
	if found.Length() == 0 {
		return nil, fmt.Errorf("%w: ancestor %s", browser.ErrNotFound, tag)
	}
	return &Element{sel: found, page: e.page}, nil
}

// Interactable is false for elements carrying the hidden attribute.
func (e *Element) Interactable() (bool, error) {
	_, hidden := e.sel.Attr("hidden")
	return !hidden, nil
}

func (e *Element) Activate() error {
	if e.page.site.isLost() {
		return browser.ErrSessionLost
	}
	e.page.activate(e.sel)
	return nil
}

func mustParse(markup string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		panic(fmt.Sprintf("browsertest: parse fixture: %v", err))
	}
	return doc
}
