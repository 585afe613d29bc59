package model

// CrawlStatistics holds derived figures for one snapshot.
type CrawlStatistics struct {
	TotalPages             int          `json:"total_pages"`
	MaxDepthReached        int          `json:"max_depth_reached"`
	UniqueDomains          int          `json:"unique_domains"`
	AverageChildrenPerPage float64      `json:"average_children_per_page"`
	PagesByDepth           []DepthCount `json:"pages_by_depth"`
}

// DepthCount is one bucket of the pages-by-depth histogram.
type DepthCount struct {
	Depth int `json:"depth"`
	Pages int `json:"pages"`
}
