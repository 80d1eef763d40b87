package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Options controls how the browser is started.
type Options struct {
	Headless        bool
	Bin             string        // chrome binary, empty to let rod locate or download one
	ControlURL      string        // connect to a running browser instead of launching
	PageLoadTimeout time.Duration // bound on each navigation
}

// RodSession is a Session backed by a Chrome DevTools connection.
type RodSession struct {
	browser         *rod.Browser
	launcher        *launcher.Launcher // nil for remote browsers and incognito contexts
	pageLoadTimeout time.Duration
	logger          *slog.Logger
}

var _ Session = (*RodSession)(nil)

// Launch starts (or connects to) a browser and returns its default context.
func Launch(ctx context.Context, opts Options, logger *slog.Logger) (*RodSession, error) {
	controlURL := opts.ControlURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().
			Context(ctx).
			Headless(opts.Headless).
			NoSandbox(true).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("window-size", "1920,1080")
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching browser: %w", err)
		}
		controlURL = u
	} else {
		u, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, fmt.Errorf("resolving browser control url %q: %w", controlURL, err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	timeout := opts.PageLoadTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	logger.Debug("browser ready", "headless", opts.Headless, "remote", opts.ControlURL != "")
	return &RodSession{browser: b, launcher: l, pageLoadTimeout: timeout, logger: logger}, nil
}

func (s *RodSession) NewPage(ctx context.Context) (Page, error) {
	p, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, s.classify(ctx, fmt.Errorf("opening page: %w", err))
	}
	return &rodPage{page: p, session: s}, nil
}

func (s *RodSession) NewContext(ctx context.Context) (Session, error) {
	inc, err := s.browser.Incognito()
	if err != nil {
		return nil, s.classify(ctx, fmt.Errorf("opening browser context: %w", err))
	}
	return &RodSession{browser: inc, pageLoadTimeout: s.pageLoadTimeout, logger: s.logger}, nil
}

// Close disposes the context; for the launching session it also stops the
// browser process.
func (s *RodSession) Close() error {
	err := s.browser.Close()
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
	}
	return err
}

// classify maps a rod error onto the package's sentinel errors.
func (s *RodSession) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if _, verr := (proto.BrowserGetVersion{}).Call(s.browser); verr != nil {
		return fmt.Errorf("%w: %v", ErrSessionLost, err)
	}
	return err
}

type rodPage struct {
	page    *rod.Page
	session *RodSession
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.session.pageLoadTimeout)
	defer cancel()

	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return p.session.classify(ctx, fmt.Errorf("navigating to %s: %w", url, err))
	}
	if err := pg.WaitLoad(); err != nil {
		return p.session.classify(ctx, fmt.Errorf("waiting for %s to load: %w", url, err))
	}
	return nil
}

func (p *rodPage) WaitFor(ctx context.Context, selector string) (Element, error) {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return nil, p.session.classify(ctx, fmt.Errorf("waiting for %q: %w", selector, err))
	}
	// Detach the element from the wait deadline.
	return p.wrap(el.Context(p.page.GetContext())), nil
}

func (p *rodPage) Find(selector string) (Element, error) {
	els, err := p.FindAll(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, selector)
	}
	return els[0], nil
}

func (p *rodPage) FindAll(selector string) ([]Element, error) {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil, p.session.classify(p.page.GetContext(), fmt.Errorf("querying %q: %w", selector, err))
	}
	return p.wrapAll(els), nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

func (p *rodPage) wrap(el *rod.Element) Element {
	return &rodElement{el: el, page: p}
}

func (p *rodPage) wrapAll(els rod.Elements) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, p.wrap(el))
	}
	return out
}

type rodElement struct {
	el   *rod.Element
	page *rodPage
}

func (e *rodElement) fail(err error) error {
	return e.page.session.classify(e.el.GetContext(), err)
}

func (e *rodElement) Text() (string, error) {
	s, err := e.el.Text()
	if err != nil {
		return "", e.fail(err)
	}
	return s, nil
}

func (e *rodElement) Attribute(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, e.fail(err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) OuterHTML() (string, error) {
	s, err := e.el.HTML()
	if err != nil {
		return "", e.fail(err)
	}
	return s, nil
}

func (e *rodElement) Find(selector string) (Element, error) {
	els, err := e.FindAll(selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, selector)
	}
	return els[0], nil
}

func (e *rodElement) FindAll(selector string) ([]Element, error) {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil, e.fail(err)
	}
	return e.page.wrapAll(els), nil
}

func (e *rodElement) Closest(tag string) (Element, error) {
	els, err := e.el.ElementsX("./ancestor::" + strings.ToLower(tag) + "[1]")
	if err != nil {
		return nil, e.fail(err)
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: ancestor %s", ErrNotFound, tag)
	}
	return e.page.wrap(els[0]), nil
}

func (e *rodElement) Interactable() (bool, error) {
	visible, err := e.el.Visible()
	if err != nil {
		return false, e.fail(err)
	}
	if !visible {
		return false, nil
	}
	if _, err := e.el.Interactable(); err != nil {
		if lost := e.fail(err); IsSessionLost(lost) {
			return false, lost
		}
		return false, nil
	}
	return true, nil
}

// Activate clicks through JavaScript so overlays cannot swallow the click.
func (e *rodElement) Activate() error {
	if _, err := e.el.Eval(`() => this.click()`); err != nil {
		return e.fail(err)
	}
	return nil
}
