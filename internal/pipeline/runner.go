package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amishk599/boardfeed/internal/browser"
	"github.com/amishk599/boardfeed/internal/model"
)

// Runner runs one complete cycle.
type Runner interface {
	Run(ctx context.Context) (model.Report, error)
}

var (
	_ Runner = (*Pipeline)(nil)
	_ Runner = (*BrowserRunner)(nil)
)

// BrowserRunner gives every run its own browser session, so a session lost
// in one run does not affect the next.
type BrowserRunner struct {
	open   func(ctx context.Context) (browser.Session, error)
	build  func(session browser.Session) (*Pipeline, error)
	logger *slog.Logger
}

// NewBrowserRunner creates a runner that opens a session with open and wires
// a pipeline around it with build.
func NewBrowserRunner(
	open func(ctx context.Context) (browser.Session, error),
	build func(session browser.Session) (*Pipeline, error),
	logger *slog.Logger,
) *BrowserRunner {
	return &BrowserRunner{open: open, build: build, logger: logger}
}

// Run opens a session, runs the pipeline and closes the session.
func (r *BrowserRunner) Run(ctx context.Context) (model.Report, error) {
	session, err := r.open(ctx)
	if err != nil {
		return model.Report{}, fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn("closing browser", "error", err)
		}
	}()

	p, err := r.build(session)
	if err != nil {
		return model.Report{}, fmt.Errorf("build pipeline: %w", err)
	}
	return p.Run(ctx)
}
