package pipeline

import (
	"log/slog"

	"github.com/nao1215/sitewatch/internal/alert"
)

// Store is the persistence used by a monitor pipeline.
// *database.SnapshotDB implements it.
type Store interface {
	SnapshotLoader
	SnapshotSaver
	ComparisonRecorder
}

// MonitorConfig holds the collaborators of a monitor pipeline.
type MonitorConfig struct {
	// Crawler crawls the site. Required.
	Crawler Crawler

	// Store enables comparison with the previous run. Without it the
	// pipeline only crawls and exports.
	Store Store

	// Notifier receives threshold alerts and failure alerts. Optional.
	Notifier alert.Notifier

	// Thresholds configure alert evaluation.
	Thresholds alert.Thresholds

	// ExportPaths are CSV or JSON files the snapshot is written to.
	ExportPaths []string

	// Logger is used by the pipeline and its steps.
	Logger *slog.Logger
}

// MonitorPipeline builds the standard run:
// crawl, export, check reachable, load previous, persist, compare, alert.
// Steps whose collaborator is missing are left out. Exports are written
// before the reachability check so that a failed crawl is still reported.
func MonitorPipeline(cfg MonitorConfig, opts ...Option) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := []Option{WithLogger(logger)}
	if cfg.Notifier != nil {
		base = append(base, WithFailureNotifier(cfg.Notifier))
	}
	p := New(append(base, opts...)...)

	p.AddStep(NewCrawlStep(cfg.Crawler, logger))

	exports := make([]string, 0, len(cfg.ExportPaths))
	for _, path := range cfg.ExportPaths {
		if path != "" {
			exports = append(exports, path)
		}
	}
	if len(exports) > 0 {
		p.AddStep(NewExportStep(exports...))
	}
	p.AddStep(NewReachableStep())

	if cfg.Store != nil {
		p.AddSteps(
			NewLoadPreviousStep(cfg.Store, logger),
			NewPersistStep(cfg.Store),
			NewCompareStep(WithRecorder(cfg.Store), WithCompareLogger(logger)),
		)
		if cfg.Notifier != nil {
			p.AddStep(NewAlertStep(cfg.Notifier, cfg.Thresholds, logger))
		}
	}

	return p
}
