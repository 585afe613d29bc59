package model

// PageRecord is a single crawled page.
//
// URL is the canonical URL and is unique within a Snapshot. ParentURL holds
// the page that first discovered this URL; other inbound links are not kept,
// so the site graph stored in a Snapshot is a tree.
type PageRecord struct {
	// URL is the canonical URL of the page.
	URL string `json:"url"`

	// ParentURL is the canonical URL of the first page that linked here.
	// Empty for the start URL.
	ParentURL string `json:"parent_url"`

	// Title is the text of the <title> element.
	Title string `json:"title"`

	// Description is the meta description (or og:description).
	Description string `json:"description"`

	// Heading is the text of the first <h1> element.
	Heading string `json:"heading"`

	// Depth is the shortest discovery distance from the start URL.
	Depth int `json:"depth"`

	// StatusCode is the HTTP status code, or 0 when no response was received.
	StatusCode int `json:"status_code"`

	// ChildCount is the number of distinct outbound links on this page that
	// passed the domain and extension filters.
	ChildCount int `json:"child_count"`
}

// HasParent reports whether the record was discovered from another page.
func (p PageRecord) HasParent() bool {
	return p.ParentURL != ""
}

// IsHealthy reports whether the page answered with 200 OK.
// Every other status, including 0 for network failures, counts as broken.
func (p PageRecord) IsHealthy() bool {
	return p.StatusCode == 200
}

// Failed reports whether the fetch of this page produced no usable response.
func (p PageRecord) Failed() bool {
	return p.StatusCode == 0
}
