package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitewatch/internal/alert"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitewatch"

	// DefaultMaxDepth is how many links away from the start URL are crawled.
	DefaultMaxDepth = 2

	// DefaultRequestDelay is the politeness pause between two fetches.
	DefaultRequestDelay = 1500 * time.Millisecond

	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies sitewatch in server logs.
	DefaultUserAgent = "sitewatch/1.0 (+https://github.com/nao1215/sitewatch)"

	// DefaultConcurrency of 1 selects the sequential crawler.
	DefaultConcurrency = 1

	// DefaultBatchSize is how many sites are crawled at once.
	DefaultBatchSize = 1

	// DefaultMaxBodySize caps the bytes read from one response.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultSchedule runs the monitor once a day.
	DefaultSchedule = "@every 24h"

	// MaxCrawlDepth is the largest accepted MaxDepth.
	MaxCrawlDepth = 10

	// MaxRequestDelay is the largest accepted RequestDelay.
	MaxRequestDelay = 60 * time.Second

	// MaxTimeout is the largest accepted Timeout.
	MaxTimeout = 300 * time.Second
)

// DefaultExcludeExtensions returns the path suffixes skipped by default.
func DefaultExcludeExtensions() []string {
	return []string{".pdf", ".jpg", ".png", ".gif", ".zip"}
}

// Config holds all configuration options for sitewatch.
// It is populated from CLI flags and passed down explicitly.
type Config struct {
	// Targets are the base URLs to crawl.
	Targets []string

	// MaxDepth limits the link distance from the base URL. 0 crawls only
	// the base URL.
	MaxDepth int

	// RequestDelay is the pause between fetches.
	RequestDelay time.Duration

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// AllowedDomains restricts followed links. Empty means the host of
	// each target.
	AllowedDomains []string

	// ExcludeExtensions are path suffixes that are never followed.
	ExcludeExtensions []string

	// MaxPages caps the pages per crawl. 0 means no cap.
	MaxPages int

	// Concurrency is the number of parallel fetches within one crawl.
	Concurrency int

	// BatchSize is the number of sites crawled concurrently.
	BatchSize int

	// MaxBodySize caps the bytes read per response.
	MaxBodySize int64

	// Thresholds configure alert evaluation.
	Thresholds alert.Thresholds

	// WebhookURL receives alerts when set.
	WebhookURL string

	// WebhookSecret signs webhook requests when set.
	WebhookSecret string

	// Schedule is the cron expression used by `monitor --schedule`.
	Schedule string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit path to the YAML configuration file.
	ConfigFilePath string

	// SiteConfigs holds the loaded configuration file, if any.
	SiteConfigs *File

	// Overrides holds the values set explicitly on the command line. They
	// are applied after the configuration file.
	Overrides SiteConfig

	// JSONReport and MarkdownReport select the report format. They are
	// mutually exclusive.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// CSVFile and JSONFile export the snapshot when set.
	CSVFile  string
	JSONFile string

	// DBDir is the directory holding the SQLite database.
	DBDir string

	// SaveToDB stores snapshots for later comparison.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:          DefaultMaxDepth,
		RequestDelay:      DefaultRequestDelay,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		ExcludeExtensions: DefaultExcludeExtensions(),
		Concurrency:       DefaultConcurrency,
		BatchSize:         DefaultBatchSize,
		MaxBodySize:       DefaultMaxBodySize,
		Thresholds:        alert.DefaultThresholds(),
		Schedule:          DefaultSchedule,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for sitewatch.
// On Linux: ~/.local/share/sitewatch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitewatch.
// On Linux: ~/.config/sitewatch
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the global options and returns the first problem found.
// Per-site values are validated by ForSite after merging overrides.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.BatchSize < 1 {
		return ErrInvalidBatchSize
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return c.site("").Validate()
}

// ForSite returns the resolved settings for target. Later layers win:
// the Config values, the configuration file's defaults, the file's entry
// for target, then Overrides. The result is validated.
func (c *Config) ForSite(target string) (Site, error) {
	site := c.site(target)
	if c.SiteConfigs != nil {
		site.apply(c.SiteConfigs.GetSiteConfig(target))
	}
	site.apply(c.Overrides)

	u, err := parseBaseURL(target)
	if err != nil {
		return Site{}, err
	}
	site.BaseURL = u.String()
	if len(site.AllowedDomains) == 0 {
		site.AllowedDomains = []string{strings.ToLower(u.Hostname())}
	}

	if err := site.Validate(); err != nil {
		return Site{}, fmt.Errorf("%s: %w", target, err)
	}
	return site, nil
}

func (c *Config) site(target string) Site {
	return Site{
		BaseURL:           target,
		MaxDepth:          c.MaxDepth,
		RequestDelay:      c.RequestDelay,
		Timeout:           c.Timeout,
		UserAgent:         c.UserAgent,
		AllowedDomains:    append([]string(nil), c.AllowedDomains...),
		ExcludeExtensions: append([]string(nil), c.ExcludeExtensions...),
		MaxPages:          c.MaxPages,
		Concurrency:       c.Concurrency,
		MaxBodySize:       c.MaxBodySize,
		Thresholds:        c.Thresholds,
		WebhookURL:        c.WebhookURL,
	}
}

// parseBaseURL accepts "example.com" as shorthand for "https://example.com".
func parseBaseURL(raw string) (*url.URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, ErrNoTarget
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, ErrInvalidBaseURL
	}
	return u, nil
}
