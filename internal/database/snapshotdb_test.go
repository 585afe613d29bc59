package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/sitewatch/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *SnapshotDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// newSnapshot builds a snapshot of baseURL started at the given time.
func newSnapshot(baseURL string, at time.Time, pages ...model.PageRecord) *model.Snapshot {
	s := model.NewSnapshot(baseURL)
	s.StartedAt = at
	for _, p := range pages {
		s.Append(p)
	}
	s.Finish(at.Add(time.Minute))
	return s
}

var day = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("reopen keeps data", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		s := newSnapshot("https://example.com", day, model.PageRecord{URL: "https://example.com/", StatusCode: 200})
		if err := db.SaveSnapshot(context.Background(), s); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}
		_ = db.Close()

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()
		got, err := db.GetSnapshot(context.Background(), s.ID)
		if err != nil || got == nil {
			t.Fatalf("expected stored snapshot, got %v, %v", got, err)
		}
	})
}

func TestSaveAndGetSnapshot(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	s := newSnapshot("https://example.com", day,
		model.PageRecord{URL: "https://example.com/", Title: "Home", Description: "Welcome", Heading: "Hi", StatusCode: 200, ChildCount: 2},
		model.PageRecord{URL: "https://example.com/b", ParentURL: "https://example.com/", Title: "B", Depth: 1, StatusCode: 200},
		model.PageRecord{URL: "https://example.com/a", ParentURL: "https://example.com/", Depth: 1, StatusCode: 0},
	)
	if err := db.SaveSnapshot(ctx, s); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	got, err := db.GetSnapshot(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected snapshot, got nil")
	}

	t.Run("metadata round trips", func(t *testing.T) {
		t.Parallel()
		if got.BaseURL != s.BaseURL {
			t.Errorf("BaseURL = %q, want %q", got.BaseURL, s.BaseURL)
		}
		if !got.StartedAt.Equal(s.StartedAt) || !got.FinishedAt.Equal(s.FinishedAt) {
			t.Errorf("timestamps differ: got %v/%v, want %v/%v", got.StartedAt, got.FinishedAt, s.StartedAt, s.FinishedAt)
		}
	})

	t.Run("pages keep crawl order and fields", func(t *testing.T) {
		t.Parallel()
		if len(got.Pages) != len(s.Pages) {
			t.Fatalf("expected %d pages, got %d", len(s.Pages), len(got.Pages))
		}
		for i := range s.Pages {
			if got.Pages[i] != s.Pages[i] {
				t.Errorf("page %d = %+v, want %+v", i, got.Pages[i], s.Pages[i])
			}
		}
	})

	t.Run("unknown id returns nil", func(t *testing.T) {
		t.Parallel()
		missing, err := db.GetSnapshot(ctx, "nope")
		if err != nil || missing != nil {
			t.Errorf("expected nil, nil; got %v, %v", missing, err)
		}
	})
}

func TestSaveSnapshotReplaces(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	s := newSnapshot("https://example.com", day,
		model.PageRecord{URL: "https://example.com/", StatusCode: 200},
		model.PageRecord{URL: "https://example.com/a", StatusCode: 200},
	)
	if err := db.SaveSnapshot(ctx, s); err != nil {
		t.Fatal(err)
	}
	s.Pages = s.Pages[:1]
	if err := db.SaveSnapshot(ctx, s); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetSnapshot(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Pages) != 1 {
		t.Errorf("expected 1 page after replace, got %d", len(got.Pages))
	}
}

func TestSnapshotHistory(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	first := newSnapshot("https://example.com", day)
	second := newSnapshot("https://example.com", day.Add(24*time.Hour),
		model.PageRecord{URL: "https://example.com/", StatusCode: 200},
		model.PageRecord{URL: "https://example.com/x", StatusCode: 404},
	)
	third := newSnapshot("https://example.com", day.Add(48*time.Hour))
	other := newSnapshot("https://other.example.org", day.Add(72*time.Hour))
	for _, s := range []*model.Snapshot{second, first, other, third} {
		if err := db.SaveSnapshot(ctx, s); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}
	}

	t.Run("latest", func(t *testing.T) {
		t.Parallel()
		got, err := db.LatestSnapshot(ctx, "https://example.com")
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != third.ID {
			t.Errorf("expected third snapshot, got %+v", got)
		}
	})

	t.Run("latest for unknown site", func(t *testing.T) {
		t.Parallel()
		got, err := db.LatestSnapshot(ctx, "https://unknown.example")
		if err != nil || got != nil {
			t.Errorf("expected nil, nil; got %v, %v", got, err)
		}
	})

	t.Run("previous", func(t *testing.T) {
		t.Parallel()
		got, err := db.PreviousSnapshot(ctx, third)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != second.ID {
			t.Fatalf("expected second snapshot, got %+v", got)
		}
		if len(got.Pages) != 2 {
			t.Errorf("expected pages to be loaded, got %d", len(got.Pages))
		}

		none, err := db.PreviousSnapshot(ctx, first)
		if err != nil || none != nil {
			t.Errorf("expected no snapshot before the first, got %v, %v", none, err)
		}
	})

	t.Run("snapshot at a point in time", func(t *testing.T) {
		t.Parallel()
		got, err := db.SnapshotAt(ctx, "https://example.com", day.Add(30*time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if got == nil || got.ID != second.ID {
			t.Errorf("expected second snapshot, got %+v", got)
		}
	})

	t.Run("list sites", func(t *testing.T) {
		t.Parallel()
		sites, err := db.ListSites(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(sites) != 2 || sites[0] != "https://example.com" || sites[1] != "https://other.example.org" {
			t.Errorf("unexpected sites %v", sites)
		}
	})

	t.Run("list snapshots newest first", func(t *testing.T) {
		t.Parallel()
		metas, err := db.ListSnapshots(ctx, "https://example.com")
		if err != nil {
			t.Fatal(err)
		}
		if len(metas) != 3 {
			t.Fatalf("expected 3 snapshots, got %d", len(metas))
		}
		if metas[0].ID != third.ID || metas[2].ID != first.ID {
			t.Errorf("unexpected order: %s, %s, %s", metas[0].ID, metas[1].ID, metas[2].ID)
		}
		if metas[1].TotalPages != 2 || metas[1].BrokenPages != 1 {
			t.Errorf("expected 2 pages / 1 broken, got %d / %d", metas[1].TotalPages, metas[1].BrokenPages)
		}
	})
}

func TestTrend(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	now := day.Add(10 * 24 * time.Hour)

	record := func(at time.Time, total, broken, added, removed int) {
		t.Helper()
		cs := model.NewChangeSet()
		cs.BaseURL = "https://example.com"
		cs.Summary = model.ChangeSummary{
			CurrentTotal:   total,
			NewBrokenLinks: broken,
			PagesAdded:     added,
			PagesRemoved:   removed,
		}
		if err := db.SaveComparison(ctx, cs, at); err != nil {
			t.Fatalf("SaveComparison failed: %v", err)
		}
	}

	record(now.Add(-40*24*time.Hour), 10, 0, 0, 0)
	record(now.Add(-2*24*time.Hour), 12, 1, 2, 0)
	record(now.Add(-1*24*time.Hour), 11, 0, 0, 1)

	points, err := db.Trend(ctx, "https://example.com", 30, now)
	if err != nil {
		t.Fatalf("Trend failed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points within 30 days, got %d", len(points))
	}
	if points[0].TotalPages != 12 || points[0].NewBrokenLinks != 1 || points[0].PagesAdded != 2 {
		t.Errorf("unexpected first point %+v", points[0])
	}
	if points[1].PagesRemoved != 1 {
		t.Errorf("unexpected second point %+v", points[1])
	}
	if points[0].Date() != "2026-03-18" {
		t.Errorf("Date() = %q, want 2026-03-18", points[0].Date())
	}

	other, err := db.Trend(ctx, "https://other.example", 30, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("expected no points for other site, got %d", len(other))
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"stored layout", "2026-03-10 09:00:00.000000000", day},
		{"sqlite default", "2026-03-10 09:00:00", day},
		{"rfc3339", "2026-03-10T09:00:00Z", day},
		{"empty", "", time.Time{}},
		{"garbage", "yesterday", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.in); !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if formatTimestamp(time.Time{}) != "" {
		t.Error("zero time should be stored as empty string")
	}
}
