// Package crawler implements the breadth-first site crawler.
//
// # Components
//
//   - Normalizer: canonicalizes URLs and applies domain/extension filters
//   - Parser: extracts title, description, heading and anchors from HTML
//   - Fetcher: performs one HTTP GET (HTTPFetcher is the default)
//   - Spider: owns the frontier and visited set and produces a Snapshot
//   - DomainLimiter: per-host token bucket used in parallel mode
//
// # Traversal
//
// The Spider dequeues URLs in FIFO order. A URL's depth and parent are fixed
// the first time it is dequeued, so the recorded depth is the shortest
// discovery distance from the start URL. Each URL is fetched at most once per
// run. A page that cannot be fetched is recorded with status 0 and produces
// no children; it never aborts the crawl.
//
// # Politeness
//
// With the default concurrency of 1 the Spider fetches one page at a time and
// waits the configured delay before every fetch after the first. With a
// higher concurrency it processes the frontier one depth level at a time,
// fetching the level in parallel while a per-host rate limiter keeps the
// request rate at one request per delay. Results are merged back in frontier
// order, so both modes produce the same Snapshot.
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(crawler.FetcherOptions{Timeout: 10 * time.Second})
//	spider := crawler.NewSpider(fetcher,
//	    crawler.WithMaxDepth(2),
//	    crawler.WithAllowedDomains([]string{"example.com"}),
//	)
//	snapshot, err := spider.Crawl(ctx, "https://example.com/")
package crawler
