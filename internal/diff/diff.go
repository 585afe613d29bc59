package diff

import (
	"math"

	"github.com/nao1215/sitewatch/internal/model"
)

// Compare computes the changes from previous to current.
// A nil snapshot is treated as empty.
func Compare(previous, current *model.Snapshot) *model.ChangeSet {
	cs := model.NewChangeSet()
	if previous != nil {
		cs.PreviousID = previous.ID
	}
	if current != nil {
		cs.CurrentID = current.ID
		cs.BaseURL = current.BaseURL
	}

	prevPages := pagesOf(previous)
	currPages := pagesOf(current)
	prevIndex := previous.Index()
	currIndex := current.Index()

	for _, page := range currPages {
		if _, ok := prevIndex[page.URL]; !ok {
			cs.NewPages = append(cs.NewPages, pageChange(page))
		}
	}
	for _, page := range prevPages {
		if _, ok := currIndex[page.URL]; !ok {
			cs.RemovedPages = append(cs.RemovedPages, pageChange(page))
		}
	}

	// Broken status is judged per snapshot, so a page that is new and
	// already broken is reported as broken too.
	for _, page := range currPages {
		if page.IsHealthy() {
			continue
		}
		if i, ok := prevIndex[page.URL]; ok && !prevPages[i].IsHealthy() {
			continue
		}
		cs.BrokenLinks = append(cs.BrokenLinks, model.BrokenLink{
			URL:        page.URL,
			StatusCode: page.StatusCode,
			Title:      page.Title,
		})
	}

	for _, old := range prevPages {
		if old.IsHealthy() {
			continue
		}
		i, ok := currIndex[old.URL]
		if !ok || !currPages[i].IsHealthy() {
			continue
		}
		cs.FixedLinks = append(cs.FixedLinks, model.FixedLink{
			URL:        old.URL,
			StatusCode: currPages[i].StatusCode,
		})
	}

	for _, now := range currPages {
		i, ok := prevIndex[now.URL]
		if !ok {
			continue
		}
		old := prevPages[i]

		if old.Title != now.Title {
			cs.TitleChanges = append(cs.TitleChanges, model.TitleChange{
				URL:      now.URL,
				OldTitle: old.Title,
				NewTitle: now.Title,
			})
		}
		if old.Depth != now.Depth {
			cs.DepthChanges = append(cs.DepthChanges, model.DepthChange{
				URL:      now.URL,
				OldDepth: old.Depth,
				NewDepth: now.Depth,
				Delta:    now.Depth - old.Depth,
			})
		}
		if delta := now.ChildCount - old.ChildCount; abs(delta) >= model.LinkCountThreshold {
			cs.LinkCountChanges = append(cs.LinkCountChanges, model.LinkCountChange{
				URL:      now.URL,
				OldCount: old.ChildCount,
				NewCount: now.ChildCount,
				Delta:    delta,
			})
		}
	}

	cs.Summary = summarize(cs, len(prevPages), len(currPages))
	return cs
}

func summarize(cs *model.ChangeSet, previousTotal, currentTotal int) model.ChangeSummary {
	net := currentTotal - previousTotal
	return model.ChangeSummary{
		PreviousTotal:    previousTotal,
		CurrentTotal:     currentTotal,
		PagesAdded:       len(cs.NewPages),
		PagesRemoved:     len(cs.RemovedPages),
		NewBrokenLinks:   len(cs.BrokenLinks),
		FixedLinks:       len(cs.FixedLinks),
		TitleChanges:     len(cs.TitleChanges),
		DepthChanges:     len(cs.DepthChanges),
		LinkCountChanges: len(cs.LinkCountChanges),
		NetChange:        net,
		PercentChange:    PercentChange(previousTotal, net),
	}
}

// PercentChange returns net as a percentage of previousTotal rounded to two
// decimals, or 0 when previousTotal is 0.
func PercentChange(previousTotal, net int) float64 {
	if previousTotal == 0 {
		return 0
	}
	return math.Round(float64(net)/float64(previousTotal)*100*100) / 100
}

func pageChange(p model.PageRecord) model.PageChange {
	return model.PageChange{URL: p.URL, Title: p.Title, Depth: p.Depth}
}

func pagesOf(s *model.Snapshot) []model.PageRecord {
	if s == nil {
		return nil
	}
	return s.Pages
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
