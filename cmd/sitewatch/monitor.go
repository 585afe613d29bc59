package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitewatch/internal/alert"
	"github.com/nao1215/sitewatch/internal/config"
	"github.com/nao1215/sitewatch/internal/model"
	"github.com/nao1215/sitewatch/internal/pipeline"
	"github.com/nao1215/sitewatch/internal/report"
)

// Environment variables read when the matching flag is not set.
const (
	envWebhookURL    = "SITEWATCH_WEBHOOK_URL"
	envWebhookSecret = "SITEWATCH_WEBHOOK_SECRET"
)

// NewMonitorCmd creates the monitor command.
func NewMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor [url...]",
		Short: "Crawl websites, compare with the last crawl and send alerts",
		Long: `Monitor crawls each site, compares the result with the previously stored
snapshot and prints a change report. Alerts are raised when a comparison
reaches a threshold:

- CRITICAL when new broken links or removed pages reach their threshold
- WARNING when new pages or pages moved deeper reach their threshold
- CRITICAL "Crawl Failed" when a site cannot be crawled

Alerts are written to the log and, when a webhook URL is configured, posted
to a Slack-compatible incoming webhook. The first run of a site stores a
baseline snapshot.

Thresholds and crawl settings can also come from the configuration file.
Flags given on the command line override it.

Without --schedule the sites are monitored once. With --schedule they are
monitored immediately and then on the given cron schedule until interrupted.

Examples:
  # Monitor a site once
  sitewatch monitor https://example.com

  # Monitor every day at 03:00 and post alerts to a webhook
  sitewatch monitor --schedule "0 3 * * *" --webhook-url https://hooks.slack.com/services/... https://example.com

  # Alert on the first broken link
  sitewatch monitor --critical-broken-links 1 https://example.com

  # Check that the alert channels work
  sitewatch monitor --test-alert https://example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runMonitorCmd,
	}

	addCrawlFlags(cmd)
	addAlertFlags(cmd)

	cmd.Flags().StringP("schedule", "s", "",
		`Cron schedule, e.g. "0 3 * * *" or "@every 24h" (default: run once)`)
	cmd.Flags().Bool("test-alert", false,
		"Send a test alert to the configured channels and exit")

	addReportFlags(cmd)

	return cmd
}

// addAlertFlags registers threshold and webhook flags.
func addAlertFlags(cmd *cobra.Command) {
	t := alert.DefaultThresholds()
	cmd.Flags().Int("critical-broken-links", t.CriticalBrokenLinks,
		"New broken links that raise a CRITICAL alert")
	cmd.Flags().Int("critical-removed-pages", t.CriticalRemovedPages,
		"Removed pages that raise a CRITICAL alert")
	cmd.Flags().Int("warning-new-pages", t.WarningNewPages,
		"New pages that raise a WARNING alert")
	cmd.Flags().Int("warning-depth-increase", t.WarningDepthIncrease,
		"Depth increase of a page that raises a WARNING alert")
	cmd.Flags().String("webhook-url", "",
		"Slack-compatible webhook receiving alerts (env "+envWebhookURL+")")
	cmd.Flags().String("webhook-secret", "",
		"Secret used to sign webhook requests (env "+envWebhookSecret+")")
}

// addReportFlags registers the change report format flags.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false,
		"Output change reports in JSON format (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output change reports in Markdown format (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write change reports to the specified file (creates directories if needed)")
}

// loadAlertFlags reads threshold and webhook flags into cfg.
func loadAlertFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	if cfg.Thresholds.CriticalBrokenLinks, err = flags.GetInt("critical-broken-links"); err != nil {
		return err
	}
	if cfg.Thresholds.CriticalRemovedPages, err = flags.GetInt("critical-removed-pages"); err != nil {
		return err
	}
	if cfg.Thresholds.WarningNewPages, err = flags.GetInt("warning-new-pages"); err != nil {
		return err
	}
	if cfg.Thresholds.WarningDepthIncrease, err = flags.GetInt("warning-depth-increase"); err != nil {
		return err
	}
	return loadWebhookFlags(cmd, cfg)
}

// loadWebhookFlags reads the webhook flags, falling back to the environment.
func loadWebhookFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.WebhookURL, err = cmd.Flags().GetString("webhook-url"); err != nil {
		return err
	}
	if cfg.WebhookURL == "" {
		cfg.WebhookURL = os.Getenv(envWebhookURL)
	}
	if cfg.WebhookSecret, err = cmd.Flags().GetString("webhook-secret"); err != nil {
		return err
	}
	if cfg.WebhookSecret == "" {
		cfg.WebhookSecret = os.Getenv(envWebhookSecret)
	}
	return nil
}

// loadReportFlags reads the report format flags into cfg.
func loadReportFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	cfg.ReportFile, err = cmd.Flags().GetString("output")
	return err
}

// runMonitorCmd executes the monitor command.
func runMonitorCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := loadAlertFlags(cmd, cfg); err != nil {
		return err
	}
	if err := loadReportFlags(cmd, cfg); err != nil {
		return err
	}
	if cfg.Schedule, err = cmd.Flags().GetString("schedule"); err != nil {
		return err
	}
	testAlert, err := cmd.Flags().GetBool("test-alert")
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.Schedule != "" {
		if _, err := pipeline.ParseSchedule(cfg.Schedule); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
	}

	logger := setupLogger(cmd, cfg.Verbose)
	ctx, stop := signalContext(cmd.Context(), logger)
	defer stop()

	if testAlert {
		return sendTestAlerts(ctx, cmd.OutOrStdout(), cfg, logger)
	}
	return runMonitor(ctx, cmd.OutOrStdout(), cfg, logger)
}

// newNotifier returns the alert channels for site: the log, plus the
// webhook when one is configured.
func newNotifier(site config.Site, cfg *config.Config, logger *slog.Logger) alert.Notifier {
	notifiers := alert.MultiNotifier{alert.NewLogNotifier(logger)}
	if site.WebhookURL != "" {
		var opts []alert.WebhookOption
		if cfg.WebhookSecret != "" {
			opts = append(opts, alert.WithSecret(cfg.WebhookSecret))
		}
		notifiers = append(notifiers, alert.NewWebhookNotifier(site.WebhookURL, opts...))
	}
	return notifiers
}

// sendTestAlerts sends an INFO test event through the channels of every site.
func sendTestAlerts(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	sites, err := resolveSites(cfg)
	if err != nil {
		return err
	}

	var errs []error
	for _, site := range sites {
		if err := newNotifier(site, cfg, logger).Notify(ctx, alert.SampleEvent(site.BaseURL)); err != nil {
			fmt.Fprintf(out, "Test alert for %s failed: %v\n", site.BaseURL, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "Test alert for %s sent\n", site.BaseURL)
	}
	return errors.Join(errs...)
}

// runMonitor monitors every target once, or on cfg.Schedule until ctx ends.
func runMonitor(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	resolved, err := resolveSites(cfg)
	if err != nil {
		return err
	}
	sites, urls := siteIndex(resolved)

	db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	output, closeOutput, err := openReportOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeOutput()
	writer := newReportWriter(output, cfg)

	factory := func(target string) (*pipeline.Pipeline, error) {
		site, ok := sites[target]
		if !ok {
			return nil, fmt.Errorf("unknown site %s", target)
		}
		return pipeline.MonitorPipeline(pipeline.MonitorConfig{
			Crawler:    newSpider(site, logger),
			Store:      db,
			Notifier:   newNotifier(site, cfg, logger),
			Thresholds: site.Thresholds,
			Logger:     logger,
		}), nil
	}

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var mu sync.Mutex
	monitorOnce := func(ctx context.Context) ([]*model.MonitorRun, error) {
		return bp.ProcessBatchWithCallback(ctx, urls, func(run *model.MonitorRun, _ int) {
			mu.Lock()
			defer mu.Unlock()
			printMonitorRun(out, writer, run, logger)
		})
	}

	if cfg.Schedule == "" {
		runs, err := monitorOnce(ctx)
		if err != nil {
			return err
		}
		return failedRuns(runs)
	}

	scheduler, err := pipeline.NewScheduler(cfg.Schedule, func(ctx context.Context) {
		if _, err := monitorOnce(ctx); err != nil {
			logger.Warn("monitor run interrupted", "error", err)
		}
		if next, err := pipeline.NextRun(cfg.Schedule, time.Now()); err == nil {
			mu.Lock()
			fmt.Fprintf(out, "Next run at %s\n\n", next.Format(time.DateTime))
			mu.Unlock()
		}
	},
		pipeline.WithRunImmediately(true),
		pipeline.WithSchedulerLogger(logger),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Monitoring %d site(s) on schedule %q. Press Ctrl+C to stop.\n\n", len(urls), cfg.Schedule)
	return scheduler.Run(ctx)
}

// printMonitorRun prints the outcome of one monitor run.
func printMonitorRun(out io.Writer, writer report.Writer, run *model.MonitorRun, logger *slog.Logger) {
	switch {
	case run.Failed():
		fmt.Fprintf(out, "Monitoring %s failed: %v\n\n", run.Site, run.Error)
		return
	case run.Changes == nil:
		pages := 0
		if run.Statistics != nil {
			pages = run.Statistics.TotalPages
		}
		fmt.Fprintf(out, "Baseline snapshot stored for %s (%d pages)\n\n", run.Site, pages)
		return
	}

	cr := report.NewChangeReport(run.Changes, run.Previous, run.Current, time.Now())
	cr.Site = run.Site
	if _, err := writer.Write(cr); err != nil {
		logger.Error("report failed", "site", run.Site, "error", err)
	}
	if len(run.Alerts) > 0 {
		fmt.Fprintf(out, "%d alert(s) raised for %s, %d delivered\n\n", len(run.Alerts), run.Site, run.Delivered)
	}
}

// newReportWriter returns the change report writer selected by cfg.
func newReportWriter(output io.Writer, cfg *config.Config) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// openReportOutput opens path for writing, or returns fallback when path is
// empty. The returned function closes the file.
func openReportOutput(path string, fallback io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return fallback, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports can reveal unpublished pages of a site.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil //nolint:errcheck // Report already written.
}
