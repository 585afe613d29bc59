package config

import (
	"strings"
	"time"

	"github.com/nao1215/sitewatch/internal/alert"
)

// Site is the resolved configuration for crawling one site.
type Site struct {
	BaseURL           string
	MaxDepth          int
	RequestDelay      time.Duration
	Timeout           time.Duration
	UserAgent         string
	AllowedDomains    []string
	ExcludeExtensions []string
	MaxPages          int
	Concurrency       int
	MaxBodySize       int64
	Thresholds        alert.Thresholds
	WebhookURL        string
}

// Validate checks every value against its accepted range.
func (s Site) Validate() error {
	if s.MaxDepth < 0 || s.MaxDepth > MaxCrawlDepth {
		return ErrInvalidMaxDepth
	}
	if s.RequestDelay < 0 || s.RequestDelay > MaxRequestDelay {
		return ErrInvalidRequestDelay
	}
	if s.Timeout <= 0 || s.Timeout > MaxTimeout {
		return ErrInvalidTimeout
	}
	if s.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if s.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	t := s.Thresholds
	if t.CriticalBrokenLinks < 0 || t.CriticalRemovedPages < 0 ||
		t.WarningNewPages < 0 || t.WarningDepthIncrease < 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// apply overrides s with the values sc sets.
func (s *Site) apply(sc SiteConfig) {
	if sc.Depth != nil {
		s.MaxDepth = *sc.Depth
	}
	if sc.MaxPages != nil {
		s.MaxPages = *sc.MaxPages
	}
	if sc.RequestDelay != nil {
		s.RequestDelay = *sc.RequestDelay
	}
	if sc.Timeout != nil {
		s.Timeout = *sc.Timeout
	}
	if sc.Concurrency != nil {
		s.Concurrency = *sc.Concurrency
	}
	if sc.UserAgent != "" {
		s.UserAgent = sc.UserAgent
	}
	if len(sc.AllowedDomains) > 0 {
		s.AllowedDomains = sc.AllowedDomains
	}
	if len(sc.ExcludeExtensions) > 0 {
		s.ExcludeExtensions = sc.ExcludeExtensions
	}
	if sc.WebhookURL != "" {
		s.WebhookURL = sc.WebhookURL
	}
	sc.Thresholds.applyTo(&s.Thresholds)
}

// SiteConfig holds overrides for one site, or the defaults for all sites.
// Pointer fields distinguish "not set" from an explicit zero.
type SiteConfig struct {
	Depth             *int              `yaml:"depth,omitempty"`
	MaxPages          *int              `yaml:"max_pages,omitempty"`
	RequestDelay      *time.Duration    `yaml:"request_delay,omitempty"`
	Timeout           *time.Duration    `yaml:"timeout,omitempty"`
	Concurrency       *int              `yaml:"concurrency,omitempty"`
	UserAgent         string            `yaml:"user_agent,omitempty"`
	AllowedDomains    []string          `yaml:"allowed_domains,omitempty"`
	ExcludeExtensions []string          `yaml:"exclude_extensions,omitempty"`
	Thresholds        *ThresholdConfig  `yaml:"thresholds,omitempty"`
	WebhookURL        string            `yaml:"webhook_url,omitempty"`
}

// ThresholdConfig overrides alert thresholds. A nil field keeps the
// inherited value, so an explicit 0 can be configured.
type ThresholdConfig struct {
	CriticalBrokenLinks  *int `yaml:"critical_broken_links,omitempty"`
	CriticalRemovedPages *int `yaml:"critical_removed_pages,omitempty"`
	WarningNewPages      *int `yaml:"warning_new_pages,omitempty"`
	WarningDepthIncrease *int `yaml:"warning_depth_increase,omitempty"`
}

// File represents the structure of the .sitewatch configuration file.
type File struct {
	// Sites maps a site (host or URL) to its overrides.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the defaults merged with the entry for site.
// Entries are matched by exact key first, then by host.
func (cf *File) GetSiteConfig(site string) SiteConfig {
	result := cf.Defaults

	override, ok := cf.Sites[site]
	if !ok {
		override, ok = cf.Sites[siteKey(site)]
	}
	if !ok {
		for k, v := range cf.Sites {
			if siteKey(k) == siteKey(site) {
				override, ok = v, true
				break
			}
		}
	}
	if !ok {
		return result
	}

	if override.Depth != nil {
		result.Depth = override.Depth
	}
	if override.MaxPages != nil {
		result.MaxPages = override.MaxPages
	}
	if override.RequestDelay != nil {
		result.RequestDelay = override.RequestDelay
	}
	if override.Timeout != nil {
		result.Timeout = override.Timeout
	}
	if override.Concurrency != nil {
		result.Concurrency = override.Concurrency
	}
	if override.UserAgent != "" {
		result.UserAgent = override.UserAgent
	}
	if len(override.AllowedDomains) > 0 {
		result.AllowedDomains = override.AllowedDomains
	}
	if len(override.ExcludeExtensions) > 0 {
		result.ExcludeExtensions = override.ExcludeExtensions
	}
	if override.WebhookURL != "" {
		result.WebhookURL = override.WebhookURL
	}
	if override.Thresholds != nil {
		merged := ThresholdConfig{}
		if result.Thresholds != nil {
			merged = *result.Thresholds
		}
		merged.overlay(*override.Thresholds)
		result.Thresholds = &merged
	}

	return result
}

// overlay copies the set fields of src onto tc.
func (tc *ThresholdConfig) overlay(src ThresholdConfig) {
	if src.CriticalBrokenLinks != nil {
		tc.CriticalBrokenLinks = src.CriticalBrokenLinks
	}
	if src.CriticalRemovedPages != nil {
		tc.CriticalRemovedPages = src.CriticalRemovedPages
	}
	if src.WarningNewPages != nil {
		tc.WarningNewPages = src.WarningNewPages
	}
	if src.WarningDepthIncrease != nil {
		tc.WarningDepthIncrease = src.WarningDepthIncrease
	}
}

// applyTo overrides the thresholds in dst that tc sets.
func (tc *ThresholdConfig) applyTo(dst *alert.Thresholds) {
	if tc == nil {
		return
	}
	if tc.CriticalBrokenLinks != nil {
		dst.CriticalBrokenLinks = *tc.CriticalBrokenLinks
	}
	if tc.CriticalRemovedPages != nil {
		dst.CriticalRemovedPages = *tc.CriticalRemovedPages
	}
	if tc.WarningNewPages != nil {
		dst.WarningNewPages = *tc.WarningNewPages
	}
	if tc.WarningDepthIncrease != nil {
		dst.WarningDepthIncrease = *tc.WarningDepthIncrease
	}
}

// siteKey reduces a site to its lowercase host without "www.".
func siteKey(site string) string {
	s := strings.ToLower(strings.TrimSpace(site))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "www.")
}
