package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitewatch/internal/model"
)

// fakeFetcher serves canned responses keyed by URL.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]fakePage
	calls []string
}

type fakePage struct {
	status      int
	contentType string
	body        string
	err         error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]fakePage)}
}

// html registers a 200 HTML page linking to hrefs.
func (f *fakeFetcher) html(url string, hrefs ...string) *fakeFetcher {
	var b strings.Builder
	b.WriteString("<html><head><title>" + url + "</title></head><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, h)
	}
	b.WriteString("</body></html>")
	f.pages[url] = fakePage{status: http.StatusOK, contentType: "text/html", body: b.String()}
	return f
}

func (f *fakeFetcher) set(url string, p fakePage) *fakeFetcher {
	f.pages[url] = p
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*FetchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	p, ok := f.pages[url]
	f.mu.Unlock()

	if !ok {
		return &FetchResult{URL: url, StatusCode: http.StatusNotFound, ContentType: "text/html"}, nil
	}
	if p.err != nil {
		return nil, &FetchError{URL: url, StatusCode: p.status, Err: p.err}
	}
	return &FetchResult{URL: url, StatusCode: p.status, ContentType: p.contentType, Body: []byte(p.body)}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSpider(f Fetcher, opts ...SpiderOption) *Spider {
	opts = append([]SpiderOption{WithDelay(0), WithLogger(quietLogger())}, opts...)
	return NewSpider(f, opts...)
}

// site builds a small graph:
//
//	/ -> /a, /b
//	/a -> /b, /c, /
//	/b -> /d
//	/c -> /d
func site() *fakeFetcher {
	return newFakeFetcher().
		html("https://example.com/", "/a", "/b").
		html("https://example.com/a", "/b", "/c", "/").
		html("https://example.com/b", "/d").
		html("https://example.com/c", "/d").
		html("https://example.com/d")
}

func urls(s *model.Snapshot) []string {
	out := make([]string, 0, len(s.Pages))
	for _, p := range s.Pages {
		out = append(out, p.URL)
	}
	return out
}

func TestSpiderCrawl(t *testing.T) {
	t.Parallel()

	t.Run("breadth first order with shortest depth", func(t *testing.T) {
		t.Parallel()

		spider := newTestSpider(site(), WithMaxDepth(5))
		snap, err := spider.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{
			"https://example.com/",
			"https://example.com/a",
			"https://example.com/b",
			"https://example.com/c",
			"https://example.com/d",
		}
		got := urls(snap)
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Fatalf("unexpected order:\n got %v\nwant %v", got, want)
		}

		wantDepth := map[string]int{want[0]: 0, want[1]: 1, want[2]: 1, want[3]: 2, want[4]: 2}
		wantParent := map[string]string{want[0]: "", want[1]: want[0], want[2]: want[0], want[3]: want[1], want[4]: want[2]}
		for _, p := range snap.Pages {
			if p.Depth != wantDepth[p.URL] {
				t.Errorf("%s depth = %d, want %d", p.URL, p.Depth, wantDepth[p.URL])
			}
			if p.ParentURL != wantParent[p.URL] {
				t.Errorf("%s parent = %q, want %q", p.URL, p.ParentURL, wantParent[p.URL])
			}
		}

		a, _ := snap.Lookup("https://example.com/a")
		if a.ChildCount != 3 {
			t.Errorf("expected /a child_count 3, got %d", a.ChildCount)
		}
		if snap.FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set")
		}
	})

	t.Run("invariants hold", func(t *testing.T) {
		t.Parallel()

		const maxDepth = 1
		spider := newTestSpider(site(), WithMaxDepth(maxDepth))
		snap, err := spider.Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		seen := make(map[string]bool)
		index := snap.Index()
		for _, p := range snap.Pages {
			if seen[p.URL] {
				t.Errorf("duplicate url %s", p.URL)
			}
			seen[p.URL] = true
			if p.Depth > maxDepth {
				t.Errorf("%s depth %d exceeds max %d", p.URL, p.Depth, maxDepth)
			}
			if i, ok := index[p.ParentURL]; ok && p.HasParent() {
				if parent := snap.Pages[i]; p.Depth != parent.Depth+1 {
					t.Errorf("%s depth %d, parent depth %d", p.URL, p.Depth, parent.Depth)
				}
			}
		}
		if len(snap.Pages) != 3 {
			t.Errorf("expected 3 pages at depth <= 1, got %v", urls(snap))
		}
	})

	t.Run("max depth zero fetches only the start page", func(t *testing.T) {
		t.Parallel()

		f := site()
		snap, _ := newTestSpider(f, WithMaxDepth(0)).Crawl(context.Background(), "https://example.com/")
		if snap.TotalPages() != 1 || f.callCount() != 1 {
			t.Errorf("expected a single fetch, got pages=%d calls=%d", snap.TotalPages(), f.callCount())
		}
		if snap.Pages[0].ChildCount != 2 {
			t.Errorf("child_count must be recorded even when not enqueued, got %d", snap.Pages[0].ChildCount)
		}
	})

	t.Run("max pages caps the snapshot", func(t *testing.T) {
		t.Parallel()

		f := site()
		snap, _ := newTestSpider(f, WithMaxDepth(5), WithMaxPages(2)).Crawl(context.Background(), "https://example.com/")
		if snap.TotalPages() != 2 {
			t.Errorf("expected 2 pages, got %d", snap.TotalPages())
		}
		if f.callCount() != 2 {
			t.Errorf("expected 2 fetches, got %d", f.callCount())
		}
	})

	t.Run("failed page is isolated", func(t *testing.T) {
		t.Parallel()

		f := site().set("https://example.com/a", fakePage{err: errors.New("connection timed out")})
		snap, err := newTestSpider(f, WithMaxDepth(5)).Crawl(context.Background(), "https://example.com/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		a, ok := snap.Lookup("https://example.com/a")
		if !ok {
			t.Fatal("failed page must still be recorded")
		}
		if a.StatusCode != 0 || a.ChildCount != 0 || a.Title != "" {
			t.Errorf("unexpected failed record %+v", a)
		}
		// /c is reachable only through /a.
		if _, ok := snap.Lookup("https://example.com/c"); ok {
			t.Error("failed page must not contribute frontier entries")
		}
		if _, ok := snap.Lookup("https://example.com/d"); !ok {
			t.Error("crawl must continue past a failed page")
		}
	})

	t.Run("status received before failure is kept", func(t *testing.T) {
		t.Parallel()

		f := site().set("https://example.com/b", fakePage{status: 502, err: errors.New("body read failed")})
		snap, _ := newTestSpider(f).Crawl(context.Background(), "https://example.com/")
		b, _ := snap.Lookup("https://example.com/b")
		if b.StatusCode != 502 {
			t.Errorf("expected status 502, got %d", b.StatusCode)
		}
	})

	t.Run("error pages are parsed", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher().
			html("https://example.com/", "/gone").
			set("https://example.com/gone", fakePage{status: 404, contentType: "text/html", body: `<title>Not Found</title><a href="/home">home</a>`}).
			html("https://example.com/home")
		snap, _ := newTestSpider(f).Crawl(context.Background(), "https://example.com/")

		gone, _ := snap.Lookup("https://example.com/gone")
		if gone.StatusCode != 404 || gone.Title != "Not Found" || gone.ChildCount != 1 {
			t.Errorf("unexpected record %+v", gone)
		}
	})

	t.Run("non html is not parsed", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher().
			html("https://example.com/", "/data.json").
			set("https://example.com/data.json", fakePage{status: 200, contentType: "application/json", body: `{"a": "<a href='/x'>"}`})
		snap, _ := newTestSpider(f).Crawl(context.Background(), "https://example.com/")

		data, _ := snap.Lookup("https://example.com/data.json")
		if data.StatusCode != 200 || data.ChildCount != 0 {
			t.Errorf("unexpected record %+v", data)
		}
	})

	t.Run("filters domains and extensions", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher().
			html("https://example.com/", "https://other.com/", "/doc.PDF", "/ok", "https://www.example.com/www").
			html("https://example.com/ok").
			html("https://www.example.com/www")
		snap, _ := newTestSpider(f).Crawl(context.Background(), "https://example.com/")

		for _, p := range snap.Pages {
			if strings.Contains(p.URL, "other.com") || strings.HasSuffix(strings.ToLower(p.URL), ".pdf") {
				t.Errorf("filtered url %s was crawled", p.URL)
			}
		}
		if snap.TotalPages() != 3 {
			t.Errorf("expected 3 pages, got %v", urls(snap))
		}
	})

	t.Run("duplicate links on a page count once", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher().
			html("https://example.com/", "/x", "/x/", "/x#frag", "/y").
			html("https://example.com/x").
			html("https://example.com/y")
		snap, _ := newTestSpider(f).Crawl(context.Background(), "https://example.com/")
		if snap.Pages[0].ChildCount != 2 {
			t.Errorf("expected child_count 2, got %d", snap.Pages[0].ChildCount)
		}
	})

	t.Run("unreachable start still yields one record", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher().set("https://down.example/", fakePage{err: errors.New("no such host")})
		snap, err := newTestSpider(f).Crawl(context.Background(), "https://down.example/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snap.TotalPages() != 1 || snap.Pages[0].StatusCode != 0 {
			t.Errorf("expected one failed record, got %+v", snap.Pages)
		}
	})

	t.Run("empty start url still yields one record", func(t *testing.T) {
		t.Parallel()

		f := newFakeFetcher().set("", fakePage{err: errors.New("unsupported protocol scheme")})
		snap, err := newTestSpider(f).Crawl(context.Background(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snap.TotalPages() != 1 || snap.Pages[0].StatusCode != 0 {
			t.Errorf("expected one failed record, got %+v", snap.Pages)
		}
	})

	t.Run("sleeps between fetches only", func(t *testing.T) {
		t.Parallel()

		var sleeps []time.Duration
		spider := NewSpider(site(), WithMaxDepth(5), WithDelay(time.Second), WithLogger(quietLogger()))
		spider.sleep = func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}

		snap, _ := spider.Crawl(context.Background(), "https://example.com/")
		if len(sleeps) != snap.TotalPages()-1 {
			t.Errorf("expected %d sleeps, got %d", snap.TotalPages()-1, len(sleeps))
		}
		for _, d := range sleeps {
			if d != time.Second {
				t.Errorf("unexpected sleep %v", d)
			}
		}
	})

	t.Run("cancellation returns partial snapshot", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		spider := NewSpider(site(), WithMaxDepth(5), WithDelay(time.Hour), WithLogger(quietLogger()))
		spider.sleep = func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}

		snap, err := spider.Crawl(ctx, "https://example.com/")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if snap.TotalPages() != 1 {
			t.Errorf("expected 1 page before cancellation, got %d", snap.TotalPages())
		}
	})
}

func TestSpiderConcurrentMatchesSequential(t *testing.T) {
	t.Parallel()

	for _, maxPages := range []int{0, 3} {
		t.Run(fmt.Sprintf("max_pages=%d", maxPages), func(t *testing.T) {
			t.Parallel()

			f := site().set("https://example.com/c", fakePage{err: errors.New("reset by peer")})
			sequential, err := newTestSpider(f, WithMaxDepth(5), WithMaxPages(maxPages)).
				Crawl(context.Background(), "https://example.com/")
			if err != nil {
				t.Fatalf("sequential: %v", err)
			}
			parallel, err := newTestSpider(f, WithMaxDepth(5), WithMaxPages(maxPages), WithConcurrency(4)).
				Crawl(context.Background(), "https://example.com/")
			if err != nil {
				t.Fatalf("parallel: %v", err)
			}

			if len(sequential.Pages) != len(parallel.Pages) {
				t.Fatalf("page count differs: %v vs %v", urls(sequential), urls(parallel))
			}
			for i := range sequential.Pages {
				if sequential.Pages[i] != parallel.Pages[i] {
					t.Errorf("record %d differs:\n seq %+v\n par %+v", i, sequential.Pages[i], parallel.Pages[i])
				}
			}
		})
	}
}

// cancellingFetcher cancels the crawl when it is asked for trigger.
type cancellingFetcher struct {
	*fakeFetcher
	trigger string
	cancel  context.CancelFunc
}

func (f *cancellingFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	if url == f.trigger {
		f.cancel()
		return nil, &FetchError{URL: url, Err: ctx.Err()}
	}
	return f.fakeFetcher.Fetch(ctx, url)
}

func TestSpiderCancelledMidLevel(t *testing.T) {
	t.Parallel()

	crawl := func(t *testing.T, opts ...SpiderOption) *model.Snapshot {
		t.Helper()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f := &cancellingFetcher{fakeFetcher: site(), trigger: "https://example.com/a", cancel: cancel}

		snap, err := newTestSpider(f, append([]SpiderOption{WithMaxDepth(5)}, opts...)...).
			Crawl(ctx, "https://example.com/")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		return snap
	}

	sequential := crawl(t)
	parallel := crawl(t, WithConcurrency(4))

	for name, snap := range map[string]*model.Snapshot{"sequential": sequential, "parallel": parallel} {
		got := urls(snap)
		if len(got) != 1 || got[0] != "https://example.com/" {
			t.Errorf("%s: expected only the start page, got %v", name, got)
		}
		for _, p := range snap.Pages {
			if p.StatusCode == 0 {
				t.Errorf("%s: aborted fetch recorded for %s", name, p.URL)
			}
		}
	}
	if sequential.Pages[0] != parallel.Pages[0] {
		t.Errorf("start record differs:\n seq %+v\n par %+v", sequential.Pages[0], parallel.Pages[0])
	}

	t.Run("cancelled before the first fetch keeps the start URL", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for _, concurrency := range []int{1, 4} {
			snap, err := newTestSpider(site(), WithConcurrency(concurrency)).Crawl(ctx, "https://example.com/")
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("concurrency %d: expected context.Canceled, got %v", concurrency, err)
			}
			if snap.TotalPages() != 1 {
				t.Errorf("concurrency %d: expected the start record, got %v", concurrency, urls(snap))
			}
		}
	})
}

func TestSpiderHTTP(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Home</title><meta name="description" content="Root"></head>
			<body><h1>Hello</h1><a href="/about">About</a><a href="/missing">Missing</a><a href="/report.pdf">PDF</a></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>About</title></head><body><a href="/">home</a></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := NewHTTPFetcher(FetcherOptions{Client: server.Client(), Timeout: 5 * time.Second})
	snap, err := newTestSpider(fetcher).Crawl(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if snap.TotalPages() != 3 {
		t.Fatalf("expected 3 pages, got %v", urls(snap))
	}
	root := snap.Pages[0]
	if root.Title != "Home" || root.Description != "Root" || root.Heading != "Hello" || root.ChildCount != 2 {
		t.Errorf("unexpected root record %+v", root)
	}
	missing, ok := snap.Lookup(server.URL + "/missing")
	if !ok || missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected /missing with 404, got %+v", missing)
	}
}
