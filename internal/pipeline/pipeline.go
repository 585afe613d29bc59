package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/sitewatch/internal/alert"
	"github.com/nao1215/sitewatch/internal/model"
)

// Step is one stage of a monitor run. Steps read what earlier steps put on
// the run and add their own results to it.
type Step interface {
	// Do returns an error only when the run cannot continue. Problems the
	// run can live with are logged instead.
	Do(ctx context.Context, run *model.MonitorRun) error

	// Name identifies the step in logs and in MonitorRun.PerformedSteps.
	Name() string
}

// Pipeline runs its steps in order against a MonitorRun.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
	failureNotifier alert.Notifier
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps running the remaining steps after a failure.
// The run still records, and Execute still returns, the first error.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// WithFailureNotifier sends a CRITICAL "Crawl Failed" alert to n when a
// run fails. Cancelled runs do not alert.
func WithFailureNotifier(n alert.Notifier) Option {
	return func(p *Pipeline) {
		p.failureNotifier = n
	}
}

// New creates an empty Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends steps in the given order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps against run and returns the first error.
// The error is also recorded on run.
func (p *Pipeline) Execute(ctx context.Context, run *model.MonitorRun) error {
	err := p.runSteps(ctx, run)
	if err == nil {
		return nil
	}
	run.Fail(err)

	if p.failureNotifier != nil && !errors.Is(err, context.Canceled) {
		// The alert must go out even when the run timed out.
		alert.Dispatch(context.WithoutCancel(ctx), p.failureNotifier,
			[]model.AlertEvent{alert.CrawlFailed(run.Site, err)}, p.logger)
	}
	return err
}

func (p *Pipeline) runSteps(ctx context.Context, run *model.MonitorRun) error {
	var firstErr error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("run cancelled", "site", run.Site, "before", step.Name(), "reason", err)
			return err
		}

		started := time.Now()
		err := step.Do(ctx, run)
		if err == nil {
			p.logger.Debug("step done", "site", run.Site, "step", step.Name(), "elapsed", time.Since(started))
			run.PerformedSteps = append(run.PerformedSteps, step.Name())
			continue
		}

		p.logger.Error("step failed", "site", run.Site, "step", step.Name(), "error", err)
		if !p.continueOnError {
			return err
		}
		if firstErr == nil {
			firstErr = err
			run.Fail(err)
		}
		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}
	return firstErr
}

// StepCount returns the number of steps.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the step names in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}
