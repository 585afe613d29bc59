package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitewatch/internal/model"
)

// Factory builds the pipeline for one site. Each site gets a fresh
// pipeline so that no state is shared between crawls.
type Factory func(site string) (*Pipeline, error)

// BatchProcessor runs monitor pipelines for several sites concurrently.
type BatchProcessor struct {
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of sites processed at once.
// Default is 1.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: 1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs the pipeline of every site and returns one run per
// site, in input order. A failed site does not stop the others; its error
// is recorded on its run. The returned error is non-nil only when the
// batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, sites []string) ([]*model.MonitorRun, error) {
	return bp.process(ctx, sites, nil)
}

// ProcessBatchWithCallback is ProcessBatch with a callback invoked as each
// site completes. The callback may run concurrently for different sites.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	sites []string,
	callback func(run *model.MonitorRun, index int),
) ([]*model.MonitorRun, error) {
	return bp.process(ctx, sites, callback)
}

func (bp *BatchProcessor) process(
	ctx context.Context,
	sites []string,
	callback func(run *model.MonitorRun, index int),
) ([]*model.MonitorRun, error) {
	bp.logger.Info("starting batch processing",
		"total_sites", len(sites),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	// Each goroutine writes only its own index.
	runs := make([]*model.MonitorRun, len(sites))

	g := new(errgroup.Group)
	g.SetLimit(bp.concurrency)

	for i, site := range sites {
		g.Go(func() error {
			run := model.NewMonitorRun(site)
			runs[i] = run

			if err := ctx.Err(); err != nil {
				run.Fail(err)
				return nil
			}

			bp.logger.Info("processing site",
				"site", site,
				"index", i+1,
				"total", len(sites),
			)

			p, err := bp.factory(site)
			if err != nil {
				run.Fail(err)
			} else if err := p.Execute(ctx, run); err != nil {
				bp.logger.Warn("site failed", "site", site, "error", err)
			}

			if callback != nil {
				callback(run, i)
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // Goroutines record errors on their run.

	bp.logger.Info("batch processing complete",
		"total_sites", len(sites),
		"elapsed", time.Since(startTime),
	)

	return runs, ctx.Err()
}
