// Package main provides the entry point for the sitewatch CLI.
//
// sitewatch crawls a website breadth-first, stores a snapshot of every
// crawl, compares consecutive snapshots and raises alerts when a site
// changes beyond configured thresholds.
//
// Usage:
//
//	sitewatch crawl <url>
//	sitewatch compare <url>
//	sitewatch monitor --schedule "@daily" <url>
//
// See --help for all available options.
package main

// main is the entry point for sitewatch.
func main() {
	Execute()
}
