package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitewatch/internal/config"
	"github.com/nao1215/sitewatch/internal/crawler"
	"github.com/nao1215/sitewatch/internal/database"
	applog "github.com/nao1215/sitewatch/internal/log"
	"github.com/nao1215/sitewatch/internal/model"
	"github.com/nao1215/sitewatch/internal/pipeline"
	"github.com/nao1215/sitewatch/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl websites and store a snapshot of their structure",
		Long: `Crawl visits a website breadth-first, starting at the given URL, and records
every page: URL, parent page, title, meta description, first heading, depth,
HTTP status and number of outbound links.

Only links on the allowed domains (by default the host of the start URL) are
followed. The snapshot is stored in the local database so that later crawls
can be compared with it, and can be exported to CSV or JSON.

Settings from the configuration file override the flag defaults. Flags given
on the command line override the configuration file.

Examples:
  # Crawl a site with default settings (depth 2, 1.5s between requests)
  sitewatch crawl https://example.com

  # Crawl deeper and stop after 200 pages
  sitewatch crawl -d 3 -p 200 https://example.com

  # Export the snapshot without storing it
  sitewatch crawl --no-save --csv example.csv --json example.json https://example.com

  # Crawl several sites, two at a time
  sitewatch crawl -b 2 https://example.com https://example.org`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	addCrawlFlags(cmd)

	cmd.Flags().String("csv", "", "Export the snapshot to this CSV file")
	cmd.Flags().String("json", "", "Export the snapshot to this JSON file")
	cmd.Flags().Bool("no-save", false, "Do not store the snapshot in the database")

	return cmd
}

// addCrawlFlags registers the flags shared by crawl and monitor.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link distance from the start URL")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Maximum number of pages per crawl (0 means no limit)")
	cmd.Flags().Duration("delay", config.DefaultRequestDelay,
		"Pause between two requests")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().StringSlice("allowed-domains", nil,
		"Domains whose links are followed (default: host of each URL)")
	cmd.Flags().StringSlice("exclude-extensions", config.DefaultExcludeExtensions(),
		"Path extensions that are never followed")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Parallel requests within one crawl (1 crawls sequentially)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sites crawled concurrently")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum bytes read from one response")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitewatch in current or home directory)")
	cmd.Flags().String("db-dir", "",
		"Directory of the snapshot database (default: XDG data directory)")
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if cfg.CSVFile, err = cmd.Flags().GetString("csv"); err != nil {
		return err
	}
	if cfg.JSONFile, err = cmd.Flags().GetString("json"); err != nil {
		return err
	}
	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noSave

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if len(cfg.Targets) > 1 && (cfg.CSVFile != "" || cfg.JSONFile != "") {
		return errors.New("--csv and --json accept a single URL")
	}

	logger := setupLogger(cmd, cfg.Verbose)
	ctx, stop := signalContext(cmd.Context(), logger)
	defer stop()

	return runCrawl(ctx, cmd.OutOrStdout(), cfg, logger)
}

// runCrawl crawls every target and prints its statistics.
func runCrawl(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	resolved, err := resolveSites(cfg)
	if err != nil {
		return err
	}
	sites, urls := siteIndex(resolved)

	db, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	factory := func(target string) (*pipeline.Pipeline, error) {
		site, ok := sites[target]
		if !ok {
			return nil, fmt.Errorf("unknown site %s", target)
		}
		p := pipeline.New(pipeline.WithLogger(logger))
		p.AddStep(pipeline.NewCrawlStep(newSpider(site, logger), logger))
		if cfg.CSVFile != "" || cfg.JSONFile != "" {
			p.AddStep(pipeline.NewExportStep(cfg.CSVFile, cfg.JSONFile))
		}
		p.AddStep(pipeline.NewReachableStep())
		if db != nil {
			p.AddStep(pipeline.NewPersistStep(db))
		}
		return p, nil
	}

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	startTime := time.Now()
	var mu sync.Mutex
	runs, err := bp.ProcessBatchWithCallback(ctx, urls, func(run *model.MonitorRun, _ int) {
		mu.Lock()
		defer mu.Unlock()
		printCrawlRun(out, cfg, run)
	})
	fmt.Fprintf(out, "Completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	if err != nil {
		return err
	}
	return failedRuns(runs)
}

// printCrawlRun prints the outcome of one crawl.
func printCrawlRun(out io.Writer, cfg *config.Config, run *model.MonitorRun) {
	failed := run.Failed()
	if failed {
		fmt.Fprintf(out, "Crawl failed for %s: %v\n", run.Site, run.Error)
	} else if run.Statistics != nil {
		report.WriteStatistics(out, run.Site, *run.Statistics)
	}
	if slices.Contains(run.PerformedSteps, "export") {
		for _, path := range []string{cfg.CSVFile, cfg.JSONFile} {
			if path != "" {
				fmt.Fprintf(out, "Snapshot exported to %s\n", path)
			}
		}
	}
	if !failed && cfg.SaveToDB && run.Current != nil {
		fmt.Fprintf(out, "Snapshot %s saved\n", run.Current.ID)
	}
	fmt.Fprintln(out)
}

// failedRuns returns an error naming how many runs failed.
func failedRuns(runs []*model.MonitorRun) error {
	failed := 0
	for _, run := range runs {
		if run.Failed() {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d sites failed", failed, len(runs))
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the shared crawl flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.RequestDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.AllowedDomains, err = flags.GetStringSlice("allowed-domains"); err != nil {
		return nil, err
	}
	if cfg.ExcludeExtensions, err = flags.GetStringSlice("exclude-extensions"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}
	if cfg.Overrides, err = explicitOverrides(cmd); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args
	return cfg, nil
}

// explicitOverrides collects the per-site flags the user passed on the
// command line, so that they win over the configuration file. Flags left
// at their default do not override it.
func explicitOverrides(cmd *cobra.Command) (config.SiteConfig, error) {
	flags := cmd.Flags()
	var (
		sc  config.SiteConfig
		err error
	)
	if sc.Depth, err = changedInt(cmd, "depth"); err != nil {
		return sc, err
	}
	if sc.MaxPages, err = changedInt(cmd, "max-pages"); err != nil {
		return sc, err
	}
	if sc.Concurrency, err = changedInt(cmd, "concurrency"); err != nil {
		return sc, err
	}
	if flags.Changed("delay") {
		d, err := flags.GetDuration("delay")
		if err != nil {
			return sc, err
		}
		sc.RequestDelay = &d
	}
	if flags.Changed("timeout") {
		d, err := flags.GetDuration("timeout")
		if err != nil {
			return sc, err
		}
		sc.Timeout = &d
	}
	if flags.Changed("user-agent") {
		if sc.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return sc, err
		}
	}
	if flags.Changed("allowed-domains") {
		if sc.AllowedDomains, err = flags.GetStringSlice("allowed-domains"); err != nil {
			return sc, err
		}
	}
	if flags.Changed("exclude-extensions") {
		if sc.ExcludeExtensions, err = flags.GetStringSlice("exclude-extensions"); err != nil {
			return sc, err
		}
	}
	if flags.Changed("webhook-url") {
		if sc.WebhookURL, err = flags.GetString("webhook-url"); err != nil {
			return sc, err
		}
	}

	var tc config.ThresholdConfig
	if tc.CriticalBrokenLinks, err = changedInt(cmd, "critical-broken-links"); err != nil {
		return sc, err
	}
	if tc.CriticalRemovedPages, err = changedInt(cmd, "critical-removed-pages"); err != nil {
		return sc, err
	}
	if tc.WarningNewPages, err = changedInt(cmd, "warning-new-pages"); err != nil {
		return sc, err
	}
	if tc.WarningDepthIncrease, err = changedInt(cmd, "warning-depth-increase"); err != nil {
		return sc, err
	}
	if tc != (config.ThresholdConfig{}) {
		sc.Thresholds = &tc
	}
	return sc, nil
}

// changedInt returns the value of an int flag the user set, or nil.
func changedInt(cmd *cobra.Command, name string) (*int, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// setupLogger creates the structured logger for a command. Secrets such as
// webhook URLs are redacted before they reach the output.
func setupLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	logger := applog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// resolveSites resolves the settings of every target in order. Targets
// with the same base URL are crawled once.
func resolveSites(cfg *config.Config) ([]config.Site, error) {
	sites := make([]config.Site, 0, len(cfg.Targets))
	seen := make(map[string]bool, len(cfg.Targets))
	for _, target := range cfg.Targets {
		site, err := cfg.ForSite(target)
		if err != nil {
			return nil, fmt.Errorf("configuration error: %w", err)
		}
		if seen[site.BaseURL] {
			continue
		}
		seen[site.BaseURL] = true
		sites = append(sites, site)
	}
	return sites, nil
}

// siteIndex keys sites by base URL and returns the URLs in order.
func siteIndex(sites []config.Site) (map[string]config.Site, []string) {
	byURL := make(map[string]config.Site, len(sites))
	urls := make([]string, len(sites))
	for i, site := range sites {
		byURL[site.BaseURL] = site
		urls[i] = site.BaseURL
	}
	return byURL, urls
}

// newSpider builds the crawl engine for site.
func newSpider(site config.Site, logger *slog.Logger) *crawler.Spider {
	fetcher := crawler.NewHTTPFetcher(crawler.FetcherOptions{
		UserAgent:   site.UserAgent,
		Timeout:     site.Timeout,
		MaxBodySize: site.MaxBodySize,
	})
	return crawler.NewSpider(fetcher,
		crawler.WithMaxDepth(site.MaxDepth),
		crawler.WithMaxPages(site.MaxPages),
		crawler.WithDelay(site.RequestDelay),
		crawler.WithAllowedDomains(site.AllowedDomains),
		crawler.WithExcludeExtensions(site.ExcludeExtensions),
		crawler.WithConcurrency(site.Concurrency),
		crawler.WithLogger(logger),
	)
}

// openStore opens the snapshot database, or returns nil when saving is off.
func openStore(cfg *config.Config, logger *slog.Logger) (*database.SnapshotDB, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("database opened", "path", db.Path())
	return db, nil
}

// canonicalSite returns the key under which snapshots of target are stored.
func canonicalSite(target string) (string, error) {
	site, err := config.NewConfig().ForSite(target)
	if err != nil {
		return "", err
	}
	canonical, ok := crawler.NewNormalizer(nil, nil).Canonicalize(site.BaseURL)
	if !ok {
		return "", fmt.Errorf("%w: %s", config.ErrInvalidBaseURL, target)
	}
	return canonical, nil
}
