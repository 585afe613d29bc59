// Package database provides SQLite-based storage for sitewatch.
//
// The SnapshotDB stores:
//   - Crawl snapshots with every page record, in crawl order
//   - A summary of each comparison, used for trend reporting
//
// SQLite (via modernc.org/sqlite) keeps the whole history in a single
// CGO-free file under the XDG data directory.
package database
