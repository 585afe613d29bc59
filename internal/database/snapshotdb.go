package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitewatch/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "sitewatch.db"

// timeLayout is the fixed-width layout used for stored timestamps so that
// text ordering equals chronological ordering.
const timeLayout = "2006-01-02 15:04:05.000000000"

// SnapshotDB provides SQLite-based storage for snapshots and comparisons.
type SnapshotDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures SnapshotDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a SnapshotDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*SnapshotDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Other processes (a scheduled monitor and an interactive compare) may
	// hold the lock briefly; wait for it instead of failing.
	dsn := dbPath + "?mode=rw&_pragma=busy_timeout(5000)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &SnapshotDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Path returns the database file path.
func (sdb *SnapshotDB) Path() string {
	return sdb.dbPath
}

// Close closes the database connection.
func (sdb *SnapshotDB) Close() error {
	return sdb.db.Close()
}

func (sdb *SnapshotDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		base_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT '',
		total_pages INTEGER NOT NULL,
		broken_pages INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_site ON snapshots(base_url, started_at);

	-- Pages keep the crawl order in position
	CREATE TABLE IF NOT EXISTS pages (
		snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		parent_url TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		heading TEXT NOT NULL,
		depth INTEGER NOT NULL,
		status_code INTEGER NOT NULL,
		child_count INTEGER NOT NULL,
		PRIMARY KEY (snapshot_id, position)
	);

	CREATE TABLE IF NOT EXISTS comparisons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		base_url TEXT NOT NULL,
		previous_id TEXT NOT NULL,
		current_id TEXT NOT NULL,
		compared_at TEXT NOT NULL,
		total_pages INTEGER NOT NULL,
		new_broken_links INTEGER NOT NULL,
		pages_added INTEGER NOT NULL,
		pages_removed INTEGER NOT NULL,
		summary_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_comparisons_site ON comparisons(base_url, compared_at);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveSnapshot stores the snapshot and its pages in one transaction.
// Saving a snapshot whose ID already exists replaces it.
func (sdb *SnapshotDB) SaveSnapshot(ctx context.Context, s *model.Snapshot) (err error) {
	if s == nil {
		return errors.New("snapshot is nil")
	}

	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	broken := 0
	for _, p := range s.Pages {
		if !p.IsHealthy() {
			broken++
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM pages WHERE snapshot_id = ?`, s.ID); err != nil {
		return fmt.Errorf("failed to clear pages: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO snapshots (id, base_url, started_at, finished_at, total_pages, broken_pages)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		base_url = excluded.base_url,
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		total_pages = excluded.total_pages,
		broken_pages = excluded.broken_pages
	`, s.ID, s.BaseURL, formatTimestamp(s.StartedAt), formatTimestamp(s.FinishedAt), len(s.Pages), broken)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (snapshot_id, position, url, parent_url, title, description, heading, depth, status_code, child_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range s.Pages {
		if _, err = stmt.ExecContext(ctx, s.ID, i, p.URL, p.ParentURL, p.Title, p.Description,
			p.Heading, p.Depth, p.StatusCode, p.ChildCount); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", p.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// GetSnapshot loads a snapshot by ID. It returns nil, nil when no snapshot
// has that ID.
func (sdb *SnapshotDB) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	return sdb.loadOne(ctx, `
	SELECT id, base_url, started_at, finished_at FROM snapshots WHERE id = ?
	`, id)
}

// LatestSnapshot returns the most recent snapshot of baseURL, or nil, nil
// when the site has none.
func (sdb *SnapshotDB) LatestSnapshot(ctx context.Context, baseURL string) (*model.Snapshot, error) {
	return sdb.loadOne(ctx, `
	SELECT id, base_url, started_at, finished_at FROM snapshots
	WHERE base_url = ?
	ORDER BY started_at DESC
	LIMIT 1
	`, baseURL)
}

// PreviousSnapshot returns the most recent snapshot of current.BaseURL that
// started before current, or nil, nil when there is none.
func (sdb *SnapshotDB) PreviousSnapshot(ctx context.Context, current *model.Snapshot) (*model.Snapshot, error) {
	return sdb.loadOne(ctx, `
	SELECT id, base_url, started_at, finished_at FROM snapshots
	WHERE base_url = ? AND id <> ? AND started_at < ?
	ORDER BY started_at DESC
	LIMIT 1
	`, current.BaseURL, current.ID, formatTimestamp(current.StartedAt))
}

// SnapshotAt returns the most recent snapshot of baseURL that started at or
// before t, or nil, nil when there is none.
func (sdb *SnapshotDB) SnapshotAt(ctx context.Context, baseURL string, t time.Time) (*model.Snapshot, error) {
	return sdb.loadOne(ctx, `
	SELECT id, base_url, started_at, finished_at FROM snapshots
	WHERE base_url = ? AND started_at <= ?
	ORDER BY started_at DESC
	LIMIT 1
	`, baseURL, formatTimestamp(t))
}

func (sdb *SnapshotDB) loadOne(ctx context.Context, query string, args ...any) (*model.Snapshot, error) {
	var s model.Snapshot
	var started, finished string

	err := sdb.db.QueryRowContext(ctx, query, args...).Scan(&s.ID, &s.BaseURL, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	s.StartedAt = parseTimestamp(started)
	s.FinishedAt = parseTimestamp(finished)

	pages, err := sdb.pages(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Pages = pages
	return &s, nil
}

func (sdb *SnapshotDB) pages(ctx context.Context, snapshotID string) ([]model.PageRecord, error) {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT url, parent_url, title, description, heading, depth, status_code, child_count
	FROM pages
	WHERE snapshot_id = ?
	ORDER BY position
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	pages := make([]model.PageRecord, 0)
	for rows.Next() {
		var p model.PageRecord
		if err := rows.Scan(&p.URL, &p.ParentURL, &p.Title, &p.Description, &p.Heading,
			&p.Depth, &p.StatusCode, &p.ChildCount); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// ListSites returns every base URL with at least one stored snapshot.
func (sdb *SnapshotDB) ListSites(ctx context.Context) ([]string, error) {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT DISTINCT base_url FROM snapshots
	ORDER BY base_url
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// SnapshotMetadata contains summary information about a stored snapshot.
// It is used for listing history without loading the pages.
type SnapshotMetadata struct {
	ID          string
	BaseURL     string
	StartedAt   time.Time
	FinishedAt  time.Time
	TotalPages  int
	BrokenPages int
}

// ListSnapshots returns the snapshots of baseURL, newest first.
func (sdb *SnapshotDB) ListSnapshots(ctx context.Context, baseURL string) ([]SnapshotMetadata, error) {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT id, base_url, started_at, finished_at, total_pages, broken_pages
	FROM snapshots
	WHERE base_url = ?
	ORDER BY started_at DESC
	`, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var results []SnapshotMetadata
	for rows.Next() {
		var meta SnapshotMetadata
		var started, finished string
		if err := rows.Scan(&meta.ID, &meta.BaseURL, &started, &finished,
			&meta.TotalPages, &meta.BrokenPages); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.StartedAt = parseTimestamp(started)
		meta.FinishedAt = parseTimestamp(finished)
		results = append(results, meta)
	}
	return results, rows.Err()
}

// SaveComparison records the summary of a comparison performed at at.
func (sdb *SnapshotDB) SaveComparison(ctx context.Context, cs *model.ChangeSet, at time.Time) error {
	if cs == nil {
		return errors.New("change set is nil")
	}

	summaryJSON, err := json.Marshal(cs.Summary)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	_, err = sdb.db.ExecContext(ctx, `
	INSERT INTO comparisons (base_url, previous_id, current_id, compared_at, total_pages,
		new_broken_links, pages_added, pages_removed, summary_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cs.BaseURL, cs.PreviousID, cs.CurrentID, formatTimestamp(at), cs.Summary.CurrentTotal,
		cs.Summary.NewBrokenLinks, cs.Summary.PagesAdded, cs.Summary.PagesRemoved, string(summaryJSON))
	if err != nil {
		return fmt.Errorf("failed to save comparison: %w", err)
	}
	return nil
}

// TrendPoint is one comparison in a site's history.
type TrendPoint struct {
	ComparedAt     time.Time
	TotalPages     int
	NewBrokenLinks int
	PagesAdded     int
	PagesRemoved   int
}

// Date returns the comparison day as YYYY-MM-DD.
func (p TrendPoint) Date() string {
	return p.ComparedAt.Format(time.DateOnly)
}

// Trend returns the comparisons of baseURL recorded within the given number
// of days before now, oldest first.
func (sdb *SnapshotDB) Trend(ctx context.Context, baseURL string, days int, now time.Time) ([]TrendPoint, error) {
	cutoff := now.AddDate(0, 0, -days)

	rows, err := sdb.db.QueryContext(ctx, `
	SELECT compared_at, total_pages, new_broken_links, pages_added, pages_removed
	FROM comparisons
	WHERE base_url = ? AND compared_at >= ?
	ORDER BY compared_at, id
	`, baseURL, formatTimestamp(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query trend: %w", err)
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		var at string
		if err := rows.Scan(&at, &p.TotalPages, &p.NewBrokenLinks, &p.PagesAdded, &p.PagesRemoved); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		p.ComparedAt = parseTimestamp(at)
		points = append(points, p)
	}
	return points, rows.Err()
}

// formatTimestamp stores t in UTC. The zero time is stored as "".
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats accepted when reading.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	time.RFC3339Nano,
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
