package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable that points at the config file.
const EnvPath = "BOARDFEED_CONFIG"

// DefaultPath is used when neither a flag nor EnvPath is set.
const DefaultPath = "config.yaml"

// Config is the root configuration for boardfeed.
type Config struct {
	Site      SiteConfig
	Browser   BrowserConfig
	Crawl     CrawlConfig
	Detail    DetailConfig
	Normalize NormalizeConfig
	Output    OutputConfig
	Store     StoreConfig
	Report    ReportConfig
	Schedule  ScheduleConfig
}

// SiteConfig names the listing to crawl. Empty selectors fall back to the
// Workday defaults.
type SiteConfig struct {
	URL       string          `yaml:"url"`
	Selectors SelectorsConfig `yaml:"selectors"`
}

// SelectorsConfig overrides the CSS selectors used on listing and detail pages.
type SelectorsConfig struct {
	Counter        string `yaml:"counter"`
	Entry          string `yaml:"entry"`
	EntryContainer string `yaml:"entry_container"`
	Location       string `yaml:"location"`
	EmploymentType string `yaml:"employment_type"`
	Posted         string `yaml:"posted"`
	NextPage       string `yaml:"next_page"`
	Description    string `yaml:"description"`
}

// BrowserConfig controls how the automation browser is started.
type BrowserConfig struct {
	Headless        bool
	Bin             string // optional browser binary
	ControlURL      string // connect to a running browser instead of launching one
	PageLoadTimeout time.Duration
}

// CrawlConfig bounds every wait on the listing pages.
type CrawlConfig struct {
	WaitTimeout       time.Duration
	CountAttempts     int
	CountBackoff      time.Duration
	PageChangeTimeout time.Duration
	PageChangePoll    time.Duration
	MaxPages          int // 0 = unlimited
}

// DetailConfig controls description fetching.
type DetailConfig struct {
	Workers           int
	WaitTimeout       time.Duration
	Attempts          int
	Backoff           time.Duration
	RequestsPerSecond float64 // per host, 0 disables pacing
	Burst             int
}

// NormalizeConfig selects the description output form.
type NormalizeConfig struct {
	Mode          string   // "text" or "markup"
	HeaderPhrases []string // nil means the built-in list
}

// OutputConfig names the files a run writes.
type OutputConfig struct {
	CSV         string `yaml:"csv"`
	Feed        string `yaml:"feed"`
	StubsJSON   string `yaml:"stubs_json"`
	CleanLabels bool   `yaml:"clean_labels"`
}

// StoreConfig locates the run ledger.
type StoreConfig struct {
	Path      string
	Retention time.Duration // 0 keeps every run
}

// ReportConfig controls which reporter is used and its settings.
type ReportConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// ScheduleConfig controls the start command. Cron, when set, takes
// precedence over Interval.
type ScheduleConfig struct {
	Interval time.Duration
	Cron     string
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Site      SiteConfig         `yaml:"site"`
	Browser   rawBrowserConfig   `yaml:"browser"`
	Crawl     rawCrawlConfig     `yaml:"crawl"`
	Detail    rawDetailConfig    `yaml:"detail"`
	Normalize rawNormalizeConfig `yaml:"normalize"`
	Output    rawOutputConfig    `yaml:"output"`
	Store     rawStoreConfig     `yaml:"store"`
	Report    ReportConfig       `yaml:"report"`
	Schedule  rawScheduleConfig  `yaml:"schedule"`
}

type rawBrowserConfig struct {
	Headless        *bool  `yaml:"headless"`
	Bin             string `yaml:"bin"`
	ControlURL      string `yaml:"control_url"`
	PageLoadTimeout string `yaml:"page_load_timeout"`
}

type rawCrawlConfig struct {
	WaitTimeout       string `yaml:"wait_timeout"`
	CountAttempts     int    `yaml:"count_attempts"`
	CountBackoff      string `yaml:"count_backoff"`
	PageChangeTimeout string `yaml:"page_change_timeout"`
	PageChangePoll    string `yaml:"page_change_poll"`
	MaxPages          int    `yaml:"max_pages"`
}

type rawDetailConfig struct {
	Workers           int      `yaml:"workers"`
	WaitTimeout       string   `yaml:"wait_timeout"`
	Attempts          int      `yaml:"attempts"`
	Backoff           string   `yaml:"backoff"`
	RequestsPerSecond *float64 `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
}

type rawNormalizeConfig struct {
	Mode          string   `yaml:"mode"`
	HeaderPhrases []string `yaml:"header_phrases"`
}

type rawOutputConfig struct {
	CSV         string `yaml:"csv"`
	Feed        string `yaml:"feed"`
	StubsJSON   string `yaml:"stubs_json"`
	CleanLabels *bool  `yaml:"clean_labels"`
}

type rawStoreConfig struct {
	Path      string `yaml:"path"`
	Retention string `yaml:"retention"`
}

type rawScheduleConfig struct {
	Interval string `yaml:"interval"`
	Cron     string `yaml:"cron"`
}

// ResolvePath picks the config file: the flag value, then EnvPath, then
// DefaultPath.
func ResolvePath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
// A .env file next to the config is loaded first; variables already set in
// the environment win.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	p := durationParser{}
	cfg := &Config{
		Site: raw.Site,
		Browser: BrowserConfig{
			Headless:        boolOr(raw.Browser.Headless, true),
			Bin:             raw.Browser.Bin,
			ControlURL:      raw.Browser.ControlURL,
			PageLoadTimeout: p.parse("browser.page_load_timeout", raw.Browser.PageLoadTimeout, 60*time.Second),
		},
		Crawl: CrawlConfig{
			WaitTimeout:       p.parse("crawl.wait_timeout", raw.Crawl.WaitTimeout, 20*time.Second),
			CountAttempts:     intOr(raw.Crawl.CountAttempts, 10),
			CountBackoff:      p.parse("crawl.count_backoff", raw.Crawl.CountBackoff, time.Second),
			PageChangeTimeout: p.parse("crawl.page_change_timeout", raw.Crawl.PageChangeTimeout, 10*time.Second),
			PageChangePoll:    p.parse("crawl.page_change_poll", raw.Crawl.PageChangePoll, 250*time.Millisecond),
			MaxPages:          raw.Crawl.MaxPages,
		},
		Detail: DetailConfig{
			Workers:           intOr(raw.Detail.Workers, 1),
			WaitTimeout:       p.parse("detail.wait_timeout", raw.Detail.WaitTimeout, 20*time.Second),
			Attempts:          intOr(raw.Detail.Attempts, 1),
			Backoff:           p.parse("detail.backoff", raw.Detail.Backoff, 2*time.Second),
			RequestsPerSecond: floatOr(raw.Detail.RequestsPerSecond, 1),
			Burst:             intOr(raw.Detail.Burst, 1),
		},
		Normalize: NormalizeConfig{
			Mode:          strings.ToLower(strings.TrimSpace(stringOr(raw.Normalize.Mode, "text"))),
			HeaderPhrases: raw.Normalize.HeaderPhrases,
		},
		Output: OutputConfig{
			CSV:         stringOr(raw.Output.CSV, "workday_jobs_full.csv"),
			Feed:        stringOr(raw.Output.Feed, "jobs_feed.xml"),
			StubsJSON:   raw.Output.StubsJSON,
			CleanLabels: boolOr(raw.Output.CleanLabels, true),
		},
		Store: StoreConfig{
			Path:      stringOr(raw.Store.Path, "boardfeed.db"),
			Retention: p.parse("store.retention", raw.Store.Retention, 30*24*time.Hour),
		},
		Report: ReportConfig{
			Type:       stringOr(raw.Report.Type, "log"),
			WebhookURL: raw.Report.WebhookURL,
		},
		Schedule: ScheduleConfig{
			Interval: p.parse("schedule.interval", raw.Schedule.Interval, 24*time.Hour),
			Cron:     strings.TrimSpace(raw.Schedule.Cron),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// durationParser keeps the first parse error so Load can parse every
// duration field in one expression.
type durationParser struct {
	err error
}

func (p *durationParser) parse(field, value string, def time.Duration) time.Duration {
	if value == "" || p.err != nil {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.err = fmt.Errorf("parse %s %q: %w", field, value, err)
		return def
	}
	return d
}

func stringOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func intOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Site.URL)
	if cfg.Site.URL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("site.url must be an absolute http(s) url, got %q", cfg.Site.URL)
	}

	positive := []struct {
		name string
		d    time.Duration
	}{
		{"browser.page_load_timeout", cfg.Browser.PageLoadTimeout},
		{"crawl.wait_timeout", cfg.Crawl.WaitTimeout},
		{"crawl.page_change_timeout", cfg.Crawl.PageChangeTimeout},
		{"crawl.page_change_poll", cfg.Crawl.PageChangePoll},
		{"detail.wait_timeout", cfg.Detail.WaitTimeout},
		{"schedule.interval", cfg.Schedule.Interval},
	}
	for _, f := range positive {
		if f.d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", f.name, f.d)
		}
	}
	if cfg.Crawl.PageChangePoll > cfg.Crawl.PageChangeTimeout {
		return fmt.Errorf("crawl.page_change_poll (%v) must not exceed crawl.page_change_timeout (%v)",
			cfg.Crawl.PageChangePoll, cfg.Crawl.PageChangeTimeout)
	}
	if cfg.Crawl.CountAttempts < 1 {
		return fmt.Errorf("crawl.count_attempts must be at least 1, got %d", cfg.Crawl.CountAttempts)
	}
	if cfg.Crawl.MaxPages < 0 {
		return fmt.Errorf("crawl.max_pages must not be negative, got %d", cfg.Crawl.MaxPages)
	}

	if cfg.Detail.Workers < 1 || cfg.Detail.Workers > 16 {
		return fmt.Errorf("detail.workers must be between 1 and 16, got %d", cfg.Detail.Workers)
	}
	if cfg.Detail.Attempts < 1 {
		return fmt.Errorf("detail.attempts must be at least 1, got %d", cfg.Detail.Attempts)
	}
	if cfg.Detail.RequestsPerSecond < 0 {
		return fmt.Errorf("detail.requests_per_second must not be negative, got %v", cfg.Detail.RequestsPerSecond)
	}

	switch cfg.Normalize.Mode {
	case "text", "markup":
	default:
		return fmt.Errorf("normalize.mode must be \"text\" or \"markup\", got %q", cfg.Normalize.Mode)
	}

	if cfg.Store.Retention < 0 {
		return fmt.Errorf("store.retention must not be negative, got %v", cfg.Store.Retention)
	}

	if cfg.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron %q: %w", cfg.Schedule.Cron, err)
		}
	}

	switch cfg.Report.Type {
	case "log":
	case "slack":
		if cfg.Report.WebhookURL == "" {
			return fmt.Errorf("report.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Report.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("report.webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return fmt.Errorf("report.type must be \"log\" or \"slack\", got %q", cfg.Report.Type)
	}

	return nil
}
