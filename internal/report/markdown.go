package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitewatch/internal/model"
)

// MarkdownWriter outputs change reports in Markdown format, for sharing in
// issues and pull requests.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the change report in Markdown format.
func (w *MarkdownWriter) Write(report *ChangeReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	cs := report.Changes

	w.writeHeader(md, report)
	w.writeSummary(md, cs)
	w.writeAlert(md, report)

	w.writePages(md, "New Pages", cs.NewPages)
	w.writePages(md, "Removed Pages", cs.RemovedPages)

	if len(cs.BrokenLinks) > 0 {
		rows := make([][]string, 0, len(cs.BrokenLinks))
		for _, l := range cs.BrokenLinks {
			rows = append(rows, []string{statusText(l.StatusCode), l.URL, cell(l.Title)})
		}
		w.writeTable(md, "Broken Links", []string{"Status", "URL", "Title"}, rows)
	}
	if len(cs.FixedLinks) > 0 {
		rows := make([][]string, 0, len(cs.FixedLinks))
		for _, l := range cs.FixedLinks {
			rows = append(rows, []string{l.URL, statusText(l.StatusCode)})
		}
		w.writeTable(md, "Fixed Links", []string{"URL", "Status"}, rows)
	}
	if len(cs.TitleChanges) > 0 {
		rows := make([][]string, 0, len(cs.TitleChanges))
		for _, c := range cs.TitleChanges {
			rows = append(rows, []string{c.URL, cell(c.OldTitle), cell(c.NewTitle)})
		}
		w.writeTable(md, "Title Changes", []string{"URL", "Old Title", "New Title"}, rows)
	}
	if len(cs.DepthChanges) > 0 {
		rows := make([][]string, 0, len(cs.DepthChanges))
		for _, c := range cs.DepthChanges {
			rows = append(rows, []string{c.URL, strconv.Itoa(c.OldDepth), strconv.Itoa(c.NewDepth), fmt.Sprintf("%+d", c.Delta)})
		}
		w.writeTable(md, "Depth Changes", []string{"URL", "Old", "New", "Change"}, rows)
	}
	if len(cs.LinkCountChanges) > 0 {
		rows := make([][]string, 0, len(cs.LinkCountChanges))
		for _, c := range cs.LinkCountChanges {
			rows = append(rows, []string{c.URL, strconv.Itoa(c.OldCount), strconv.Itoa(c.NewCount), fmt.Sprintf("%+d", c.Delta)})
		}
		w.writeTable(md, "Link Count Changes", []string{"URL", "Old", "New", "Change"}, rows)
	}

	md.H2("Recommendations")
	md.PlainText("")
	md.BulletList(recommendations(cs)...)
	md.PlainText("")

	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [sitewatch](https://github.com/nao1215/sitewatch)*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *ChangeReport) {
	md.H1("Website Change Report")
	md.PlainText("")

	rows := [][]string{
		{"Website", report.Site},
		{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if !report.PreviousAt.IsZero() {
		rows = append(rows, []string{"Previous Crawl", report.PreviousAt.Format("2006-01-02 15:04:05 MST")})
	}
	if !report.CurrentAt.IsZero() {
		rows = append(rows, []string{"Current Crawl", report.CurrentAt.Format("2006-01-02 15:04:05 MST")})
	}
	rows = append(rows, []string{"Status", string(report.Assessment)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, cs *model.ChangeSet) {
	s := cs.Summary

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Previous Total Pages", strconv.Itoa(s.PreviousTotal)},
			{"Current Total Pages", strconv.Itoa(s.CurrentTotal)},
			{"Net Change", fmt.Sprintf("%+d (%+.1f%%)", s.NetChange, s.PercentChange)},
			{"Pages Added", strconv.Itoa(s.PagesAdded)},
			{"Pages Removed", strconv.Itoa(s.PagesRemoved)},
			{"New Broken Links", strconv.Itoa(s.NewBrokenLinks)},
			{"Fixed Links", strconv.Itoa(s.FixedLinks)},
			{"Title Changes", strconv.Itoa(s.TitleChanges)},
			{"Depth Changes", strconv.Itoa(s.DepthChanges)},
			{"Link Count Changes", strconv.Itoa(s.LinkCountChanges)},
		},
	})
	md.PlainText("")

	if !cs.IsEmpty() {
		w.writePieChart(md, s)
	}
}

// writePieChart writes a mermaid pie chart of the change categories.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.ChangeSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Change Distribution"),
		piechart.WithShowData(true),
	)

	slices := []struct {
		label string
		n     int
	}{
		{"Added", s.PagesAdded},
		{"Removed", s.PagesRemoved},
		{"Broken", s.NewBrokenLinks},
		{"Fixed", s.FixedLinks},
		{"Title", s.TitleChanges},
		{"Depth", s.DepthChanges},
		{"Links", s.LinkCountChanges},
	}
	for _, sl := range slices {
		if sl.n > 0 {
			chart.LabelAndIntValue(sl.label, uint64(sl.n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *ChangeReport) {
	cs := report.Changes
	switch report.Assessment {
	case model.AssessmentCritical:
		md.Cautionf("%d broken or removed pages. Immediate attention required.",
			len(cs.BrokenLinks)+len(cs.RemovedPages))
	case model.AssessmentWarning:
		md.Warningf("%d broken or removed pages. Review recommended.",
			len(cs.BrokenLinks)+len(cs.RemovedPages))
	case model.AssessmentImproved:
		md.Tip("Positive changes detected.")
	default:
		md.Note("No significant changes.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, title string, pages []model.PageChange) {
	if len(pages) == 0 {
		return
	}
	rows := make([][]string, 0, len(pages))
	for _, p := range pages {
		rows = append(rows, []string{p.URL, cell(p.Title), strconv.Itoa(p.Depth)})
	}
	w.writeTable(md, title, []string{"URL", "Title", "Depth"}, rows)
}

func (w *MarkdownWriter) writeTable(md *markdown.Markdown, title string, header []string, rows [][]string) {
	md.H2f("%s (%d)", title, len(rows))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: header,
		Rows:   rows,
	})
	md.PlainText("")
}

// cell replaces empty values so that table cells never collapse.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	return truncateString(s, 60)
}

func statusText(code int) string {
	if code == 0 {
		return "no response"
	}
	return strconv.Itoa(code)
}
