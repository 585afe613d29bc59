package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nao1215/sitewatch/internal/database"
	"github.com/nao1215/sitewatch/internal/model"
)

// newTable creates a table writer rendering to output.
func newTable(output io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(output)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// WriteStatistics renders the statistics of a crawl of site.
func WriteStatistics(output io.Writer, site string, stats model.CrawlStatistics) {
	t := newTable(output, "Crawl Statistics: "+site)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Total Pages", stats.TotalPages},
		{"Max Depth Reached", stats.MaxDepthReached},
		{"Unique Domains", stats.UniqueDomains},
		{"Avg Children per Page", fmt.Sprintf("%.2f", stats.AverageChildrenPerPage)},
	})
	t.Render()

	if len(stats.PagesByDepth) == 0 {
		return
	}
	d := newTable(output, "")
	d.AppendHeader(table.Row{"Depth", "Pages"})
	for _, b := range stats.PagesByDepth {
		d.AppendRow(table.Row{b.Depth, b.Pages})
	}
	d.Render()
}

// WriteSnapshotList renders stored snapshots of one site.
func WriteSnapshotList(output io.Writer, site string, snapshots []database.SnapshotMetadata) {
	t := newTable(output, "Snapshots: "+site)
	t.AppendHeader(table.Row{"ID", "Started", "Duration", "Pages", "Broken"})
	for _, s := range snapshots {
		duration := "-"
		if !s.FinishedAt.IsZero() {
			duration = s.FinishedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), duration, s.TotalPages, s.BrokenPages})
	}
	t.Render()
}

// WriteSiteList renders the monitored sites.
func WriteSiteList(output io.Writer, sites []string) {
	t := newTable(output, "Monitored Sites")
	t.AppendHeader(table.Row{"#", "Site"})
	for i, s := range sites {
		t.AppendRow(table.Row{i + 1, s})
	}
	t.Render()
}

// WriteTrend renders the comparison history of site.
func WriteTrend(output io.Writer, site string, points []database.TrendPoint) {
	t := newTable(output, "Trend: "+site)
	t.AppendHeader(table.Row{"Date", "Total Pages", "New Broken", "Added", "Removed"})
	for _, p := range points {
		t.AppendRow(table.Row{p.Date(), p.TotalPages, p.NewBrokenLinks, p.PagesAdded, p.PagesRemoved})
	}
	t.Render()
}
