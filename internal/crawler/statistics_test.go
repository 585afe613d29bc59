package crawler

import (
	"testing"

	"github.com/nao1215/sitewatch/internal/model"
)

func TestStatistics(t *testing.T) {
	t.Parallel()

	t.Run("empty snapshot", func(t *testing.T) {
		t.Parallel()

		stats := Statistics(model.NewSnapshot("https://example.com/"))
		if stats.TotalPages != 0 || len(stats.PagesByDepth) != 0 {
			t.Errorf("unexpected stats %+v", stats)
		}
	})

	t.Run("derives figures", func(t *testing.T) {
		t.Parallel()

		snap := model.NewSnapshot("https://example.com/")
		snap.Append(model.PageRecord{URL: "https://example.com/", Depth: 0, ChildCount: 3})
		snap.Append(model.PageRecord{URL: "https://www.example.com/a", Depth: 1, ChildCount: 1})
		snap.Append(model.PageRecord{URL: "https://blog.example.com/b", Depth: 2, ChildCount: 0})
		snap.Append(model.PageRecord{URL: "https://example.com/c", Depth: 1, ChildCount: 0})

		stats := Statistics(snap)
		if stats.TotalPages != 4 {
			t.Errorf("expected 4 pages, got %d", stats.TotalPages)
		}
		if stats.MaxDepthReached != 2 {
			t.Errorf("expected max depth 2, got %d", stats.MaxDepthReached)
		}
		if stats.UniqueDomains != 2 {
			t.Errorf("expected 2 domains, got %d", stats.UniqueDomains)
		}
		if stats.AverageChildrenPerPage != 1 {
			t.Errorf("expected average 1, got %v", stats.AverageChildrenPerPage)
		}

		want := []model.DepthCount{{Depth: 0, Pages: 1}, {Depth: 1, Pages: 2}, {Depth: 2, Pages: 1}}
		if len(stats.PagesByDepth) != len(want) {
			t.Fatalf("unexpected histogram %v", stats.PagesByDepth)
		}
		for i := range want {
			if stats.PagesByDepth[i] != want[i] {
				t.Errorf("bucket %d = %+v, want %+v", i, stats.PagesByDepth[i], want[i])
			}
		}
	})

	t.Run("rounds average to two decimals", func(t *testing.T) {
		t.Parallel()

		snap := model.NewSnapshot("https://example.com/")
		for _, n := range []int{1, 0, 0} {
			snap.Append(model.PageRecord{URL: "https://example.com/", ChildCount: n})
		}
		if got := Statistics(snap).AverageChildrenPerPage; got != 0.33 {
			t.Errorf("expected 0.33, got %v", got)
		}
	})
}
