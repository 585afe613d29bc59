// Package report renders comparison results and moves snapshots in and out
// of files.
//
// Change report writers implement Writer:
//   - SimpleWriter: human-readable text for the terminal
//   - MarkdownWriter: Markdown with tables and GitHub alerts
//   - JSONWriter: structured JSON for tool integration
//
// Snapshots are exported to and imported from CSV and JSON with
// ExportSnapshot and ImportSnapshot. Crawl statistics, snapshot history
// and trends are rendered as text tables.
package report
