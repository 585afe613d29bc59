// Package config provides the configuration of sitewatch: crawl settings,
// alert thresholds, report options and the optional YAML file with
// per-site overrides.
//
// Flags populate a Config. ForSite merges it with the file's defaults and
// the matching site entry into a Site, the fully resolved settings for one
// crawl, and validates the result.
package config
