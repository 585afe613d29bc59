package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/sitewatch/internal/alert"
	"github.com/nao1215/sitewatch/internal/crawler"
	"github.com/nao1215/sitewatch/internal/diff"
	"github.com/nao1215/sitewatch/internal/model"
	"github.com/nao1215/sitewatch/internal/report"
)

// ErrSiteUnreachable is returned by ReachableStep when the start URL produced
// no usable response.
var ErrSiteUnreachable = errors.New("site unreachable: start URL could not be fetched")

// Crawler produces a snapshot of a site. *crawler.Spider implements it.
type Crawler interface {
	Crawl(ctx context.Context, startURL string) (*model.Snapshot, error)
}

// SnapshotLoader loads the snapshot preceding a given one.
type SnapshotLoader interface {
	PreviousSnapshot(ctx context.Context, current *model.Snapshot) (*model.Snapshot, error)
}

// SnapshotSaver persists snapshots.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, s *model.Snapshot) error
}

// ComparisonRecorder persists comparison summaries for trend reporting.
type ComparisonRecorder interface {
	SaveComparison(ctx context.Context, cs *model.ChangeSet, at time.Time) error
}

// CrawlStep crawls run.Site and stores the snapshot and its statistics.
type CrawlStep struct {
	crawler Crawler
	logger  *slog.Logger
}

// NewCrawlStep creates a crawl step.
func NewCrawlStep(c Crawler, logger *slog.Logger) *CrawlStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlStep{crawler: c, logger: logger}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl and stores the snapshot, even when the start URL
// failed. A cancelled crawl keeps its partial snapshot on the run and
// returns the context error.
func (s *CrawlStep) Do(ctx context.Context, run *model.MonitorRun) error {
	snapshot, err := s.crawler.Crawl(ctx, run.Site)
	run.Current = snapshot
	if err != nil {
		return fmt.Errorf("crawl %s: %w", run.Site, err)
	}
	if snapshot == nil {
		return fmt.Errorf("crawl %s: no snapshot", run.Site)
	}

	stats := crawler.Statistics(snapshot)
	run.Statistics = &stats

	s.logger.Info("crawl completed",
		"site", run.Site,
		"pages", stats.TotalPages,
		"max_depth", stats.MaxDepthReached,
	)
	return nil
}

// ReachableStep fails the run when the start URL of run.Current could not
// be fetched. Placed before persist and compare, it keeps an outage out of
// the history, where it would later show up as removed pages.
type ReachableStep struct{}

// NewReachableStep creates a step checking that the crawl reached the site.
func NewReachableStep() *ReachableStep {
	return &ReachableStep{}
}

// Name returns the step name.
func (s *ReachableStep) Name() string {
	return "check_reachable"
}

// Do returns ErrSiteUnreachable for an empty snapshot or a failed start page.
func (s *ReachableStep) Do(_ context.Context, run *model.MonitorRun) error {
	if run.Current == nil || run.Current.TotalPages() == 0 || run.Current.Pages[0].Failed() {
		return fmt.Errorf("%w: %s", ErrSiteUnreachable, run.Site)
	}
	return nil
}

// LoadPreviousStep loads the last stored snapshot before run.Current.
type LoadPreviousStep struct {
	store  SnapshotLoader
	logger *slog.Logger
}

// NewLoadPreviousStep creates a step loading the previous snapshot.
func NewLoadPreviousStep(store SnapshotLoader, logger *slog.Logger) *LoadPreviousStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadPreviousStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *LoadPreviousStep) Name() string {
	return "load_previous"
}

// Do sets run.Previous. Its absence is not an error: the first run of a
// site has nothing to compare with.
func (s *LoadPreviousStep) Do(ctx context.Context, run *model.MonitorRun) error {
	if run.Current == nil {
		return errors.New("no current snapshot to compare")
	}
	previous, err := s.store.PreviousSnapshot(ctx, run.Current)
	if err != nil {
		return fmt.Errorf("load previous snapshot: %w", err)
	}
	if previous == nil {
		s.logger.Info("no previous snapshot, this is the baseline", "site", run.Site)
	}
	run.Previous = previous
	return nil
}

// PersistStep stores run.Current.
type PersistStep struct {
	store SnapshotSaver
}

// NewPersistStep creates a step saving the current snapshot.
func NewPersistStep(store SnapshotSaver) *PersistStep {
	return &PersistStep{store: store}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do saves the current snapshot.
func (s *PersistStep) Do(ctx context.Context, run *model.MonitorRun) error {
	if run.Current == nil {
		return errors.New("no current snapshot to persist")
	}
	if err := s.store.SaveSnapshot(ctx, run.Current); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// ExportStep writes run.Current to CSV or JSON files chosen by extension.
type ExportStep struct {
	paths []string
}

// NewExportStep creates a step exporting the current snapshot to paths.
func NewExportStep(paths ...string) *ExportStep {
	return &ExportStep{paths: paths}
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Do writes every export file.
func (s *ExportStep) Do(_ context.Context, run *model.MonitorRun) error {
	if run.Current == nil {
		return errors.New("no current snapshot to export")
	}
	for _, path := range s.paths {
		if path == "" {
			continue
		}
		if err := report.ExportSnapshot(path, run.Current); err != nil {
			return err
		}
	}
	return nil
}

// CompareStep diffs run.Previous against run.Current.
type CompareStep struct {
	recorder ComparisonRecorder
	now      func() time.Time
	logger   *slog.Logger
}

// CompareStepOption configures a CompareStep.
type CompareStepOption func(*CompareStep)

// WithRecorder stores each comparison summary.
func WithRecorder(r ComparisonRecorder) CompareStepOption {
	return func(s *CompareStep) {
		s.recorder = r
	}
}

// WithCompareClock sets the timestamp source for recorded comparisons.
func WithCompareClock(now func() time.Time) CompareStepOption {
	return func(s *CompareStep) {
		s.now = now
	}
}

// WithCompareLogger sets a custom logger for the compare step.
func WithCompareLogger(logger *slog.Logger) CompareStepOption {
	return func(s *CompareStep) {
		s.logger = logger
	}
}

// NewCompareStep creates a compare step.
func NewCompareStep(opts ...CompareStepOption) *CompareStep {
	s := &CompareStep{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CompareStep) Name() string {
	return "compare"
}

// Do sets run.Changes. Without a previous snapshot it does nothing.
func (s *CompareStep) Do(ctx context.Context, run *model.MonitorRun) error {
	if run.Previous == nil {
		return nil
	}

	cs := diff.Compare(run.Previous, run.Current)
	run.Changes = cs

	s.logger.Info("comparison completed",
		"site", run.Site,
		"added", cs.Summary.PagesAdded,
		"removed", cs.Summary.PagesRemoved,
		"new_broken", cs.Summary.NewBrokenLinks,
		"fixed", cs.Summary.FixedLinks,
	)

	if s.recorder != nil {
		if err := s.recorder.SaveComparison(ctx, cs, s.now()); err != nil {
			return fmt.Errorf("record comparison: %w", err)
		}
	}
	return nil
}

// AlertStep evaluates run.Changes and dispatches the resulting events.
type AlertStep struct {
	notifier   alert.Notifier
	thresholds alert.Thresholds
	logger     *slog.Logger
}

// NewAlertStep creates an alert step.
func NewAlertStep(n alert.Notifier, t alert.Thresholds, logger *slog.Logger) *AlertStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertStep{notifier: n, thresholds: t, logger: logger}
}

// Name returns the step name.
func (s *AlertStep) Name() string {
	return "alert"
}

// Do raises alerts. Delivery failures are logged, never returned.
func (s *AlertStep) Do(ctx context.Context, run *model.MonitorRun) error {
	if run.Changes == nil {
		return nil
	}
	run.Alerts = alert.Evaluate(run.Changes, s.thresholds, run.Site)
	if len(run.Alerts) == 0 {
		return nil
	}
	run.Delivered = alert.Dispatch(ctx, s.notifier, run.Alerts, s.logger)
	return nil
}
