// Package model defines the core data structures shared by the crawler,
// the diff engine, the alert evaluator and the storage layer.
//
// This package contains the following main types:
//   - PageRecord: one crawled page
//   - Snapshot: the ordered record of one crawl run
//   - ChangeSet: the categorized difference between two snapshots
//   - AlertEvent: a threshold violation raised from a ChangeSet
//   - CrawlStatistics: derived figures for a snapshot
//   - MonitorRun: the state carried through one monitor pipeline execution
//
// The models are kept in their own package so that crawler, diff, alert,
// report and database can all depend on them without import cycles.
package model
