package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitewatch/internal/model"
)

// Entry limits of the text report.
const (
	majorListLimit = 10
	minorListLimit = 5
)

// SimpleWriter outputs human-readable text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether categories with no entries are shown.
	showEmpty bool

	// verbose lists title and link count changes as well.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables the title and link count sections.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the change report in human-readable format.
func (w *SimpleWriter) Write(report *ChangeReport) (int, error) {
	var sb strings.Builder
	cs := report.Changes

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, cs.Summary)

	w.writeSection(&sb, "NEW PAGES ADDED", len(cs.NewPages), majorListLimit, func(i int) {
		p := cs.NewPages[i]
		fmt.Fprintf(&sb, "  + %s (Depth: %d)\n    %s\n", truncateString(p.Title, 50), p.Depth, truncateString(p.URL, 70))
	})
	w.writeSection(&sb, "PAGES REMOVED", len(cs.RemovedPages), majorListLimit, func(i int) {
		p := cs.RemovedPages[i]
		fmt.Fprintf(&sb, "  - %s (Depth: %d)\n    %s\n", truncateString(p.Title, 50), p.Depth, truncateString(p.URL, 70))
	})
	w.writeSection(&sb, "NEW BROKEN LINKS", len(cs.BrokenLinks), majorListLimit, func(i int) {
		l := cs.BrokenLinks[i]
		fmt.Fprintf(&sb, "  ! [%d] %s\n", l.StatusCode, truncateString(l.URL, 60))
	})
	w.writeSection(&sb, "FIXED LINKS", len(cs.FixedLinks), minorListLimit, func(i int) {
		fmt.Fprintf(&sb, "  * %s\n", truncateString(cs.FixedLinks[i].URL, 60))
	})
	w.writeSection(&sb, "DEPTH CHANGES", len(cs.DepthChanges), minorListLimit, func(i int) {
		c := cs.DepthChanges[i]
		direction := "v"
		if c.Delta > 0 {
			direction = "^"
		}
		fmt.Fprintf(&sb, "  %s %d -> %d: %s\n", direction, c.OldDepth, c.NewDepth, truncateString(c.URL, 50))
	})
	if w.verbose {
		w.writeSection(&sb, "TITLE CHANGES", len(cs.TitleChanges), minorListLimit, func(i int) {
			c := cs.TitleChanges[i]
			fmt.Fprintf(&sb, "  %s\n    %q -> %q\n", truncateString(c.URL, 60), c.OldTitle, c.NewTitle)
		})
		w.writeSection(&sb, "LINK COUNT CHANGES", len(cs.LinkCountChanges), minorListLimit, func(i int) {
			c := cs.LinkCountChanges[i]
			fmt.Fprintf(&sb, "  %+d (%d -> %d): %s\n", c.Delta, c.OldCount, c.NewCount, truncateString(c.URL, 50))
		})
	}

	w.writeAssessment(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *ChangeReport) {
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	sb.WriteString("WEBSITE CHANGE REPORT\n")
	fmt.Fprintf(sb, "Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(sb, "Website: %s\n", report.Site)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, s model.ChangeSummary) {
	writeTitle(sb, "SUMMARY")
	fmt.Fprintf(sb, "Previous Total Pages: %d\n", s.PreviousTotal)
	fmt.Fprintf(sb, "Current Total Pages:  %d\n", s.CurrentTotal)
	fmt.Fprintf(sb, "Net Change:           %+d (%+.1f%%)\n", s.NetChange, s.PercentChange)
	sb.WriteString("\n")
}

// writeSection writes a titled list of at most limit entries, followed by
// "... and N more" when entries were left out.
func (w *SimpleWriter) writeSection(sb *strings.Builder, title string, n, limit int, entry func(i int)) {
	if n == 0 && !w.showEmpty {
		return
	}

	writeTitle(sb, fmt.Sprintf("%s (%d)", title, n))
	if n == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	for i := 0; i < n && i < limit; i++ {
		entry(i)
	}
	if n > limit {
		fmt.Fprintf(sb, "  ... and %d more\n", n-limit)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeAssessment(sb *strings.Builder, report *ChangeReport) {
	writeTitle(sb, "ASSESSMENT")
	fmt.Fprintf(sb, "Status: %s\n\n", assessmentText(report.Assessment))

	writeTitle(sb, "RECOMMENDATIONS")
	for _, rec := range recommendations(report.Changes) {
		fmt.Fprintf(sb, "  * %s\n", rec)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\nEnd of Report\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
}

func writeTitle(sb *strings.Builder, title string) {
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 40))
	sb.WriteString("\n")
}
