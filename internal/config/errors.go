package config

import "errors"

// Configuration validation errors returned by Config.Validate and
// Site.Validate. Callers can match them with errors.Is.
var (
	// ErrNoTarget is returned when no site URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one site URL")

	// ErrInvalidBaseURL is returned when a site URL is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid base url: must be an absolute http or https URL")

	// ErrInvalidMaxDepth is returned when the crawl depth is outside 0..MaxCrawlDepth.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be between 0 and 10")

	// ErrInvalidRequestDelay is returned when the delay is negative or above MaxRequestDelay.
	ErrInvalidRequestDelay = errors.New("invalid request delay: must be between 0s and 60s")

	// ErrInvalidTimeout is returned when the timeout is not in (0, MaxTimeout].
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive and at most 300s")

	// ErrInvalidMaxPages is returned when max pages is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidConcurrency is returned when the per-crawl concurrency is below 1.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be at least 1")

	// ErrInvalidBatchSize is returned when the number of concurrent sites is below 1.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidThreshold is returned when an alert threshold is negative.
	ErrInvalidThreshold = errors.New("invalid alert threshold: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
