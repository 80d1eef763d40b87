package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/amishk599/boardfeed/internal/browser"
	"github.com/amishk599/boardfeed/internal/config"
	"github.com/amishk599/boardfeed/internal/detail"
	"github.com/amishk599/boardfeed/internal/listing"
	"github.com/amishk599/boardfeed/internal/model"
	"github.com/amishk599/boardfeed/internal/normalize"
	"github.com/amishk599/boardfeed/internal/pipeline"
	"github.com/amishk599/boardfeed/internal/ratelimit"
	"github.com/amishk599/boardfeed/internal/reporter"
	"github.com/amishk599/boardfeed/internal/retry"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "boardfeed",
	Short: "Turn a job board into a clean feed",
	Long:  "boardfeed crawls a JavaScript-rendered job board, fetches every description and writes a CSV intermediate plus an XML job feed.",
	// Default to `run` so that `boardfeed` with no args performs one run.
	RunE:          runRun,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: "+config.EnvPath+" env var or ./"+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
func loadConfig(path string) (*config.Config, error) {
	return config.Load(config.ResolvePath(path))
}

// mustLoadConfig is loadConfig for commands that cannot continue without one.
func mustLoadConfig(logger *slog.Logger) *config.Config {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		exitWith(logger, "failed to load config", err)
	}
	return cfg
}

// exitWith logs msg with err and exits non-zero.
func exitWith(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupReporter(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Reporter {
	switch cfg.Report.Type {
	case "slack":
		logger.Info("using slack reporter")
		return reporter.NewSlackReporter(cfg.Report.WebhookURL, httpClient, logger)
	default:
		return reporter.NewLogReporter(logger)
	}
}

func setupNormalizer(cfg *config.Config) (*normalize.Normalizer, error) {
	mode, err := normalize.ParseMode(cfg.Normalize.Mode)
	if err != nil {
		return nil, err
	}
	return normalize.New(mode, cfg.Normalize.HeaderPhrases), nil
}

// selectors overlays the configured selectors on the Workday defaults.
func selectors(cfg *config.Config) (listing.Selectors, string) {
	s := listing.DefaultSelectors()
	c := cfg.Site.Selectors
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&s.Counter, c.Counter)
	override(&s.Entry, c.Entry)
	override(&s.EntryContainer, c.EntryContainer)
	override(&s.Location, c.Location)
	override(&s.EmploymentType, c.EmploymentType)
	override(&s.Posted, c.Posted)
	override(&s.NextPage, c.NextPage)

	description := detail.DefaultDescriptionSelector
	override(&description, c.Description)
	return s, description
}

func crawlerConfig(cfg *config.Config) listing.Config {
	sel, _ := selectors(cfg)
	return listing.Config{
		URL:               cfg.Site.URL,
		Selectors:         sel,
		WaitTimeout:       cfg.Crawl.WaitTimeout,
		CountPolicy:       retry.Fixed(cfg.Crawl.CountAttempts, cfg.Crawl.CountBackoff),
		PageChangeTimeout: cfg.Crawl.PageChangeTimeout,
		PageChangePoll:    cfg.Crawl.PageChangePoll,
		MaxPages:          cfg.Crawl.MaxPages,
	}
}

func enricherConfig(cfg *config.Config) detail.Config {
	_, description := selectors(cfg)
	return detail.Config{
		DescriptionSelector: description,
		WaitTimeout:         cfg.Detail.WaitTimeout,
		Policy:              retry.Exponential(cfg.Detail.Attempts, cfg.Detail.Backoff),
		Workers:             cfg.Detail.Workers,
	}
}

func setupLimiter(cfg *config.Config, logger *slog.Logger) detail.Limiter {
	if cfg.Detail.RequestsPerSecond <= 0 {
		logger.Info("detail pacing disabled")
		return ratelimit.Unlimited{}
	}
	logger.Info("detail pacing configured",
		"requests_per_second", cfg.Detail.RequestsPerSecond,
		"burst", cfg.Detail.Burst,
	)
	return ratelimit.NewHostLimiter(cfg.Detail.RequestsPerSecond, cfg.Detail.Burst)
}

func outputs(cfg *config.Config) pipeline.Outputs {
	return pipeline.Outputs{
		CSVPath:     cfg.Output.CSV,
		FeedPath:    cfg.Output.Feed,
		StubsPath:   cfg.Output.StubsJSON,
		CleanLabels: cfg.Output.CleanLabels,
	}
}

// buildRunner wires a runner that launches a fresh browser for every run.
func buildRunner(cfg *config.Config, store model.RunStore, logger *slog.Logger) (*pipeline.BrowserRunner, error) {
	normalizer, err := setupNormalizer(cfg)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	rep := setupReporter(cfg, httpClient, logger)
	limiter := setupLimiter(cfg, logger)

	opts := browser.Options{
		Headless:        cfg.Browser.Headless,
		Bin:             cfg.Browser.Bin,
		ControlURL:      cfg.Browser.ControlURL,
		PageLoadTimeout: cfg.Browser.PageLoadTimeout,
	}
	open := func(ctx context.Context) (browser.Session, error) {
		s, err := browser.Launch(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	build := func(session browser.Session) (*pipeline.Pipeline, error) {
		crawler, err := listing.NewCrawler(session, crawlerConfig(cfg), logger)
		if err != nil {
			return nil, err
		}
		enricher := detail.NewEnricher(session, limiter, enricherConfig(cfg), logger)
		p := pipeline.New(cfg.Site.URL, crawler, enricher, normalizer, store, rep, outputs(cfg), logger)
		return p.WithRetention(cfg.Store.Retention), nil
	}
	return pipeline.NewBrowserRunner(open, build, logger), nil
}

// acquireRunLock takes an exclusive lock beside the store so two processes
// never write the same outputs at once.
func acquireRunLock(cfg *config.Config) (*flock.Flock, error) {
	lock := flock.New(cfg.Store.Path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("another boardfeed process holds %s", lock.Path())
	}
	return lock, nil
}
