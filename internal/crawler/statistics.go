package crawler

import (
	"math"
	"sort"
	"strings"

	"github.com/nao1215/sitewatch/internal/model"
)

// Statistics derives summary figures from a snapshot.
// Domains are counted by host with any leading "www." removed.
func Statistics(snapshot *model.Snapshot) model.CrawlStatistics {
	stats := model.CrawlStatistics{
		PagesByDepth: make([]model.DepthCount, 0),
	}
	if snapshot.TotalPages() == 0 {
		return stats
	}

	domains := make(map[string]struct{})
	byDepth := make(map[int]int)
	children := 0

	for _, page := range snapshot.Pages {
		if page.Depth > stats.MaxDepthReached {
			stats.MaxDepthReached = page.Depth
		}
		byDepth[page.Depth]++
		children += page.ChildCount
		if host := strings.ToLower(hostOf(page.URL)); host != "" {
			domains[stripWWW(host)] = struct{}{}
		}
	}

	stats.TotalPages = len(snapshot.Pages)
	stats.UniqueDomains = len(domains)
	stats.AverageChildrenPerPage = math.Round(float64(children)/float64(stats.TotalPages)*100) / 100

	for depth, n := range byDepth {
		stats.PagesByDepth = append(stats.PagesByDepth, model.DepthCount{Depth: depth, Pages: n})
	}
	sort.Slice(stats.PagesByDepth, func(i, j int) bool {
		return stats.PagesByDepth[i].Depth < stats.PagesByDepth[j].Depth
	})

	return stats
}
