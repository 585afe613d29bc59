package model

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the complete record of one crawl run.
//
// A Snapshot is created empty when a crawl starts, appended to as pages are
// dequeued and treated as immutable once Finish has been called. Consumers
// that need to keep it past the crawl should work on a Clone.
type Snapshot struct {
	// ID uniquely identifies the crawl run.
	ID string `json:"id"`

	// BaseURL is the start URL the crawl was launched from.
	BaseURL string `json:"base_url"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl terminated. Zero while the crawl runs.
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// Pages holds the page records in dequeue order.
	Pages []PageRecord `json:"pages"`
}

// NewSnapshot creates an empty Snapshot for a crawl of baseURL.
func NewSnapshot(baseURL string) *Snapshot {
	return &Snapshot{
		ID:        uuid.NewString(),
		BaseURL:   baseURL,
		StartedAt: time.Now(),
		Pages:     make([]PageRecord, 0),
	}
}

// Append adds a page record to the end of the snapshot.
func (s *Snapshot) Append(p PageRecord) {
	s.Pages = append(s.Pages, p)
}

// Finish marks the snapshot as complete.
func (s *Snapshot) Finish(at time.Time) {
	s.FinishedAt = at
}

// TotalPages returns the number of page records.
func (s *Snapshot) TotalPages() int {
	if s == nil {
		return 0
	}
	return len(s.Pages)
}

// Index maps each URL to its position in Pages.
// For a malformed snapshot with duplicate URLs the last occurrence wins.
func (s *Snapshot) Index() map[string]int {
	idx := make(map[string]int, s.TotalPages())
	if s == nil {
		return idx
	}
	for i, p := range s.Pages {
		idx[p.URL] = i
	}
	return idx
}

// Lookup returns the record for url, if present.
func (s *Snapshot) Lookup(url string) (PageRecord, bool) {
	if s == nil {
		return PageRecord{}, false
	}
	for _, p := range s.Pages {
		if p.URL == url {
			return p, true
		}
	}
	return PageRecord{}, false
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Pages = make([]PageRecord, len(s.Pages))
	copy(c.Pages, s.Pages)
	return &c
}
