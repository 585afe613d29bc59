// Package pipeline runs the monitor workflow for a site as a sequence of
// steps: crawl, load the previous snapshot, persist, compare, alert.
//
// Each step receives the MonitorRun and records its results on it. The
// Pipeline stops at the first failing step unless configured otherwise,
// and can raise a "Crawl Failed" alert when a run fails.
//
// BatchProcessor runs independent pipelines for several sites with a
// concurrency limit (errgroup). Scheduler repeats a job on a cron
// expression (robfig/cron) until its context is cancelled.
package pipeline
