package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitewatch/internal/alert"
	"github.com/nao1215/sitewatch/internal/config"
	"github.com/nao1215/sitewatch/internal/database"
	"github.com/nao1215/sitewatch/internal/diff"
	"github.com/nao1215/sitewatch/internal/model"
	"github.com/nao1215/sitewatch/internal/report"
)

// sinceLayout is the date format accepted by --since.
const sinceLayout = "2006-01-02"

// NewCompareCmd creates the compare command.
// This command compares stored snapshots or exported snapshot files.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [url]",
		Short: "Compare snapshots of a website",
		Long: `Compare displays the differences between two snapshots of a site:

- New and removed pages
- New broken links (pages that are no longer 200 OK) and fixed links
- Title changes
- Pages that moved deeper or shallower in the site structure
- Pages whose number of outbound links changed significantly

By default the latest stored snapshot is compared with the one before it.
Use 'sitewatch crawl' or 'sitewatch monitor' to store snapshots.

Examples:
  # Compare the latest two snapshots of a site
  sitewatch compare https://example.com

  # List stored snapshots of a site
  sitewatch compare --list https://example.com

  # List all sites in the database
  sitewatch compare --list-sites

  # Compare the latest snapshot with a specific one
  sitewatch compare --with-snapshot-id 0b6f... https://example.com

  # Show what changed since a date
  sitewatch compare --since 2025-01-01 https://example.com

  # Compare two exported snapshot files
  sitewatch compare --files before.csv after.json

  # Show the comparison history of the last 30 days
  sitewatch compare --trend 30 https://example.com`,
		Args: cobra.MaximumNArgs(2),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List stored snapshots of the specified site")
	cmd.Flags().BoolP("list-sites", "L", false,
		"List all sites in the database")
	cmd.Flags().Int("trend", 0,
		"Show comparison history of the last N days")

	// Comparison target flags
	cmd.Flags().StringP("with-snapshot-id", "i", "",
		"Compare with a specific snapshot by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the last snapshot taken on or before this date (format: YYYY-MM-DD)")
	cmd.Flags().Bool("files", false,
		"Compare two exported snapshot files (CSV or JSON) given as arguments")

	// Alerting
	cmd.Flags().Bool("alert", false,
		"Evaluate alert thresholds and send alerts for this comparison")
	cmd.Flags().String("webhook-url", "",
		"Slack-compatible webhook receiving alerts (env "+envWebhookURL+")")
	cmd.Flags().String("webhook-secret", "",
		"Secret used to sign webhook requests (env "+envWebhookSecret+")")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path for alert thresholds")
	cmd.Flags().String("db-dir", "",
		"Directory of the snapshot database (default: XDG data directory)")

	addReportFlags(cmd)

	return cmd
}

// compareOptions holds the parsed flags of the compare command.
type compareOptions struct {
	listSites  bool
	list       bool
	trendDays  int
	snapshotID string
	since      string
	files      bool
	sendAlerts bool
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseCompareFlags(cmd)
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}
	if err := loadReportFlags(cmd, cfg); err != nil {
		return err
	}
	if err := loadWebhookFlags(cmd, cfg); err != nil {
		return err
	}
	if cfg.JSONReport && cfg.MarkdownReport {
		return config.ErrConflictingReportFormats
	}
	if opts.trendDays < 0 {
		return errors.New("--trend must be a positive number of days")
	}
	cfg.Verbose = getVerboseFlag(cmd)

	// Validate arguments before opening the database.
	var site string
	switch {
	case opts.files:
		if len(args) != 2 {
			return errors.New("--files requires two snapshot files")
		}
	case opts.listSites:
		if len(args) != 0 {
			return errors.New("--list-sites takes no arguments")
		}
	default:
		if len(args) != 1 {
			return errors.New("site URL is required (use --list-sites to see available sites)")
		}
		if site, err = canonicalSite(args[0]); err != nil {
			return fmt.Errorf("invalid site URL: %w", err)
		}
	}

	if opts.sendAlerts {
		if err := cfg.Load(); err != nil {
			return err
		}
		if cfg.Overrides, err = explicitOverrides(cmd); err != nil {
			return err
		}
	}

	logger := setupLogger(cmd, cfg.Verbose)
	ctx, stop := signalContext(cmd.Context(), logger)
	defer stop()
	out := cmd.OutOrStdout()

	if opts.files {
		previous, current, err := importSnapshots(args[0], args[1])
		if err != nil {
			return err
		}
		return writeComparison(ctx, out, cfg, opts, previous, current, logger)
	}

	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	switch {
	case opts.listSites:
		return listSites(ctx, out, db)
	case opts.list:
		return listSnapshots(ctx, out, db, site)
	case opts.trendDays > 0:
		return showTrend(ctx, out, db, site, opts.trendDays)
	}

	previous, current, err := selectSnapshots(ctx, db, site, opts)
	if err != nil {
		return err
	}
	return writeComparison(ctx, out, cfg, opts, previous, current, logger)
}

// parseCompareFlags reads the compare-specific flags.
func parseCompareFlags(cmd *cobra.Command) (compareOptions, error) {
	var opts compareOptions
	flags := cmd.Flags()
	var err error
	if opts.listSites, err = flags.GetBool("list-sites"); err != nil {
		return opts, err
	}
	if opts.list, err = flags.GetBool("list"); err != nil {
		return opts, err
	}
	if opts.trendDays, err = flags.GetInt("trend"); err != nil {
		return opts, err
	}
	if opts.snapshotID, err = flags.GetString("with-snapshot-id"); err != nil {
		return opts, err
	}
	if opts.since, err = flags.GetString("since"); err != nil {
		return opts, err
	}
	if opts.files, err = flags.GetBool("files"); err != nil {
		return opts, err
	}
	if opts.sendAlerts, err = flags.GetBool("alert"); err != nil {
		return opts, err
	}
	if opts.snapshotID != "" && opts.since != "" {
		return opts, errors.New("--with-snapshot-id and --since are mutually exclusive")
	}
	return opts, nil
}

// importSnapshots reads two exported snapshot files.
func importSnapshots(previousPath, currentPath string) (*model.Snapshot, *model.Snapshot, error) {
	previous, err := report.ImportSnapshot(previousPath)
	if err != nil {
		return nil, nil, err
	}
	current, err := report.ImportSnapshot(currentPath)
	if err != nil {
		return nil, nil, err
	}
	return previous, current, nil
}

// listSites lists all sites that have snapshots in the database.
func listSites(ctx context.Context, out io.Writer, db *database.SnapshotDB) error {
	sites, err := db.ListSites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	if len(sites) == 0 {
		fmt.Fprintln(out, "No sites found in the database.")
		fmt.Fprintln(out, "\nUse 'sitewatch crawl <url>' to crawl a site.")
		return nil
	}

	report.WriteSiteList(out, sites)
	fmt.Fprintln(out, "\nUse 'sitewatch compare --list <url>' to see the snapshots of a site.")
	return nil
}

// listSnapshots lists the stored snapshots of a site.
func listSnapshots(ctx context.Context, out io.Writer, db *database.SnapshotDB, site string) error {
	snapshots, err := db.ListSnapshots(ctx, site)
	if err != nil {
		return fmt.Errorf("failed to get snapshot history: %w", err)
	}

	if len(snapshots) == 0 {
		fmt.Fprintf(out, "No snapshots found for %s\n", site)
		fmt.Fprintln(out, "\nUse 'sitewatch crawl' to crawl this site.")
		return nil
	}

	report.WriteSnapshotList(out, site, snapshots)
	fmt.Fprintln(out, "\nUse 'sitewatch compare <url>' to compare the latest two snapshots.")
	fmt.Fprintln(out, "Use 'sitewatch compare --with-snapshot-id <id> <url>' to compare with a specific snapshot.")
	return nil
}

// showTrend prints the comparison history of the last days days.
func showTrend(ctx context.Context, out io.Writer, db *database.SnapshotDB, site string, days int) error {
	points, err := db.Trend(ctx, site, days, time.Now())
	if err != nil {
		return fmt.Errorf("failed to get trend: %w", err)
	}

	if len(points) == 0 {
		fmt.Fprintf(out, "No comparisons recorded for %s in the last %d days\n", site, days)
		fmt.Fprintln(out, "\nUse 'sitewatch monitor' to record comparisons.")
		return nil
	}

	report.WriteTrend(out, site, points)
	return nil
}

// selectSnapshots returns the snapshots to compare: the latest one and the
// one chosen by opts.
func selectSnapshots(ctx context.Context, db *database.SnapshotDB, site string, opts compareOptions) (*model.Snapshot, *model.Snapshot, error) {
	current, err := db.LatestSnapshot(ctx, site)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	if current == nil {
		return nil, nil, fmt.Errorf("no snapshots found for %s", site)
	}

	var previous *model.Snapshot
	switch {
	case opts.snapshotID != "":
		previous, err = db.GetSnapshot(ctx, opts.snapshotID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get snapshot %s: %w", opts.snapshotID, err)
		}
		if previous == nil {
			return nil, nil, fmt.Errorf("snapshot %s not found", opts.snapshotID)
		}
		if previous.BaseURL != site {
			return nil, nil, fmt.Errorf("snapshot %s belongs to %s, not %s", opts.snapshotID, previous.BaseURL, site)
		}

	case opts.since != "":
		day, err := time.ParseInLocation(sinceLayout, opts.since, time.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		endOfDay := day.AddDate(0, 0, 1).Add(-time.Nanosecond)
		previous, err = db.SnapshotAt(ctx, site, endOfDay)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get snapshot at %s: %w", opts.since, err)
		}
		if previous == nil {
			return nil, nil, fmt.Errorf("no snapshot of %s taken on or before %s", site, opts.since)
		}
		if previous.ID == current.ID {
			return nil, nil, fmt.Errorf("the latest snapshot was taken on or before %s; nothing to compare", opts.since)
		}

	default:
		previous, err = db.PreviousSnapshot(ctx, current)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get previous snapshot: %w", err)
		}
		if previous == nil {
			return nil, nil, fmt.Errorf("at least 2 snapshots of %s are required for comparison (found 1)", site)
		}
	}

	return previous, current, nil
}

// writeComparison compares previous with current, writes the change report
// and sends alerts when requested.
func writeComparison(
	ctx context.Context,
	out io.Writer,
	cfg *config.Config,
	opts compareOptions,
	previous, current *model.Snapshot,
	logger *slog.Logger,
) error {
	cs := diff.Compare(previous, current)

	output, closeOutput, err := openReportOutput(cfg.ReportFile, out)
	if err != nil {
		return err
	}
	defer closeOutput()

	cr := report.NewChangeReport(cs, previous, current, time.Now())
	if _, err := newReportWriter(output, cfg).Write(cr); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if !opts.sendAlerts {
		return nil
	}

	site, err := cfg.ForSite(cr.Site)
	if err != nil {
		return err
	}
	events := alert.Evaluate(cs, site.Thresholds, cr.Site)
	if len(events) == 0 {
		fmt.Fprintln(out, "No alert thresholds reached.")
		return nil
	}
	delivered := alert.Dispatch(ctx, newNotifier(site, cfg, logger), events, logger)
	fmt.Fprintf(out, "%d alert(s) raised, %d delivered\n", len(events), delivered)
	return nil
}
