package crawler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitewatch/internal/model"
)

// DefaultMaxDepth is the default link distance explored from the start URL.
const DefaultMaxDepth = 2

// DefaultDelay is the default pause between two fetches.
const DefaultDelay = 1500 * time.Millisecond

// DefaultExcludeExtensions lists the path suffixes skipped by default.
var DefaultExcludeExtensions = []string{".pdf", ".jpg", ".png", ".gif", ".zip"}

// Spider crawls a site breadth-first and records every visited page.
//
// A Spider holds only configuration; all per-run state lives inside Crawl,
// so one Spider may run several crawls, sequentially or concurrently.
type Spider struct {
	fetcher Fetcher
	parser  *Parser

	// maxDepth limits how deep to crawl from the starting URL.
	// 0 means only the starting page, 1 means one level of links, etc.
	maxDepth int

	// maxPages caps the number of records in a snapshot. 0 means no cap.
	maxPages int

	// delay is the pause between fetches (per host in parallel mode).
	delay time.Duration

	// allowedDomains restricts followed links. Empty means the start host.
	allowedDomains []string

	excludeExtensions []string

	// concurrency > 1 enables level-parallel crawling.
	concurrency int

	logger *slog.Logger

	// sleep waits between fetches. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	now func() time.Time
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxDepth sets the maximum crawl depth.
// 0 = only the starting page, 1 = starting page plus linked pages, etc.
func WithMaxDepth(depth int) SpiderOption {
	return func(s *Spider) {
		s.maxDepth = depth
	}
}

// WithMaxPages caps the number of pages recorded. 0 disables the cap.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithDelay sets the delay between requests.
func WithDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.delay = d
	}
}

// WithAllowedDomains sets the hosts whose links are followed. Subdomains of
// an allowed domain are allowed too.
func WithAllowedDomains(domains []string) SpiderOption {
	return func(s *Spider) {
		s.allowedDomains = domains
	}
}

// WithExcludeExtensions sets the path suffixes that are never followed.
func WithExcludeExtensions(exts []string) SpiderOption {
	return func(s *Spider) {
		s.excludeExtensions = exts
	}
}

// WithConcurrency sets how many fetches may run at once. Values below 2
// select the sequential crawler.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		s.concurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used for snapshot timestamps.
func WithClock(now func() time.Time) SpiderOption {
	return func(s *Spider) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSpider creates a Spider that fetches pages with fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:           fetcher,
		parser:            NewParser(),
		maxDepth:          DefaultMaxDepth,
		delay:             DefaultDelay,
		excludeExtensions: DefaultExcludeExtensions,
		concurrency:       1,
		logger:            slog.Default(),
		sleep:             sleepContext,
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Crawl crawls from startURL and returns the resulting snapshot.
//
// Crawl always attempts the start URL, so the snapshot holds at least one
// record even when the start URL is malformed or unreachable. Per-page
// failures are recorded, not returned. The only error is ctx.Err() when the
// context ends the crawl early; the partial snapshot is returned with it.
func (s *Spider) Crawl(ctx context.Context, startURL string) (*model.Snapshot, error) {
	normalizer := s.normalizerFor(startURL)

	start, ok := normalizer.Canonicalize(startURL)
	if !ok {
		start = strings.TrimSpace(startURL)
	}

	snapshot := model.NewSnapshot(start)
	snapshot.StartedAt = s.now()

	s.logger.Info("crawl started",
		"url", start,
		"max_depth", s.maxDepth,
		"max_pages", s.maxPages,
		"concurrency", s.concurrency,
	)

	var err error
	if s.concurrency > 1 {
		err = s.crawlLevels(ctx, normalizer, snapshot)
	} else {
		err = s.crawlSequential(ctx, normalizer, snapshot)
	}

	snapshot.Finish(s.now())
	s.logger.Info("crawl finished",
		"url", start,
		"pages", snapshot.TotalPages(),
		"elapsed", snapshot.FinishedAt.Sub(snapshot.StartedAt),
	)
	return snapshot, err
}

// crawlSequential is the single-worker traversal.
func (s *Spider) crawlSequential(ctx context.Context, normalizer *Normalizer, snapshot *model.Snapshot) error {
	queue := &frontier{}
	queue.push(queueItem{url: snapshot.BaseURL})
	visited := make(map[string]struct{})

	for queue.len() > 0 && !s.full(snapshot) {
		item, _ := queue.pop()
		if _, seen := visited[item.url]; seen {
			continue
		}

		if len(visited) > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return err
			}
		}
		visited[item.url] = struct{}{}

		page, links := s.visit(ctx, normalizer, item)
		if err := ctx.Err(); err != nil {
			keepStartRecord(snapshot, page)
			return err
		}
		if item.depth < s.maxDepth {
			for _, link := range links {
				if _, seen := visited[link]; !seen {
					queue.push(queueItem{url: link, parent: item.url, depth: item.depth + 1})
				}
			}
		}
		snapshot.Append(page)
	}
	return nil
}

// crawlLevels processes the frontier one depth at a time, fetching each
// level concurrently and merging results back in frontier order. It records
// the same pages in the same order as crawlSequential.
func (s *Spider) crawlLevels(ctx context.Context, normalizer *Normalizer, snapshot *model.Snapshot) error {
	limiter := NewDomainLimiter(s.delay)
	visited := make(map[string]struct{})
	level := []queueItem{{url: snapshot.BaseURL}}

	for len(level) > 0 && !s.full(snapshot) {
		batch := make([]queueItem, 0, len(level))
		for _, item := range level {
			if s.maxPages > 0 && snapshot.TotalPages()+len(batch) >= s.maxPages {
				break
			}
			if _, seen := visited[item.url]; seen {
				continue
			}
			visited[item.url] = struct{}{}
			batch = append(batch, item)
		}

		pages, links := s.visitAll(ctx, normalizer, limiter, batch)
		if err := ctx.Err(); err != nil {
			if len(pages) > 0 {
				keepStartRecord(snapshot, pages[0])
			}
			return err
		}

		next := make([]queueItem, 0)
		for i, item := range batch {
			if item.depth < s.maxDepth {
				for _, link := range links[i] {
					if _, seen := visited[link]; !seen {
						next = append(next, queueItem{url: link, parent: item.url, depth: item.depth + 1})
					}
				}
			}
			snapshot.Append(pages[i])
		}
		level = next
	}
	return nil
}

// keepStartRecord appends page when snapshot is still empty. Records fetched
// while the context was being cancelled are otherwise dropped, but a
// snapshot always holds its start URL.
func keepStartRecord(snapshot *model.Snapshot, page model.PageRecord) {
	if snapshot.TotalPages() == 0 {
		snapshot.Append(page)
	}
}

// visitAll visits every item of batch with at most s.concurrency fetches in
// flight. Results are indexed like batch.
func (s *Spider) visitAll(ctx context.Context, normalizer *Normalizer, limiter *DomainLimiter, batch []queueItem) ([]model.PageRecord, [][]string) {
	pages := make([]model.PageRecord, len(batch))
	links := make([][]string, len(batch))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, item := range batch {
		g.Go(func() error {
			if err := limiter.Wait(ctx, hostOf(item.url)); err != nil {
				pages[i] = failedRecord(item)
				return nil
			}
			pages[i], links[i] = s.visit(ctx, normalizer, item)
			return nil
		})
	}
	_ = g.Wait()

	return pages, links
}

// visit fetches one URL and builds its record. It never fails: fetch and
// parse errors are logged and reflected in the record.
func (s *Spider) visit(ctx context.Context, normalizer *Normalizer, item queueItem) (model.PageRecord, []string) {
	record := failedRecord(item)

	s.logger.Debug("fetching page", "url", item.url, "depth", item.depth)

	result, err := s.fetcher.Fetch(ctx, item.url)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			record.StatusCode = fetchErr.StatusCode
		}
		s.logger.Warn("fetch failed", "url", item.url, "depth", item.depth, "error", err)
		return record, nil
	}

	record.StatusCode = result.StatusCode
	if !isHTML(result.ContentType) {
		return record, nil
	}

	parsed, err := s.parser.Parse(bytes.NewReader(result.Body), result.ContentType)
	if err != nil {
		s.logger.Warn("parse failed", "url", item.url, "error", err)
		return record, nil
	}

	record.Title = parsed.Title
	record.Description = parsed.Description
	record.Heading = parsed.Heading

	links := make([]string, 0, len(parsed.Links))
	seen := make(map[string]struct{}, len(parsed.Links))
	for _, href := range parsed.Links {
		link, ok := normalizer.Normalize(href, item.url)
		if !ok {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	record.ChildCount = len(links)

	s.logger.Debug("page crawled",
		"url", item.url,
		"status", record.StatusCode,
		"links", record.ChildCount,
	)
	return record, links
}

// full reports whether the page cap has been reached.
func (s *Spider) full(snapshot *model.Snapshot) bool {
	return s.maxPages > 0 && snapshot.TotalPages() >= s.maxPages
}

// normalizerFor builds the run's Normalizer. Without configured domains the
// crawl is confined to the start URL's host.
func (s *Spider) normalizerFor(startURL string) *Normalizer {
	domains := s.allowedDomains
	if len(domains) == 0 {
		if host := hostOf(startURL); host != "" {
			domains = []string{host}
		}
	}
	return NewNormalizer(domains, s.excludeExtensions)
}

func failedRecord(item queueItem) model.PageRecord {
	return model.PageRecord{
		URL:       item.url,
		ParentURL: item.parent,
		Depth:     item.depth,
	}
}

// isHTML reports whether a Content-Type may carry HTML. A missing header is
// treated as HTML and left to the parser.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s != "" && !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
