package report

import (
	"fmt"
	"io"
	"time"

	"github.com/nao1215/sitewatch/internal/model"
)

// ChangeReport is a ChangeSet together with the context it was computed in.
type ChangeReport struct {
	// Site is the monitored base URL.
	Site string `json:"site"`

	// GeneratedAt is when the comparison was made.
	GeneratedAt time.Time `json:"generated_at"`

	// PreviousAt and CurrentAt are the start times of the compared crawls.
	PreviousAt time.Time `json:"previous_at,omitzero"`
	CurrentAt  time.Time `json:"current_at,omitzero"`

	// Changes is the comparison result.
	Changes *model.ChangeSet `json:"changes"`

	// Assessment is the overall verdict derived from Changes.
	Assessment model.Assessment `json:"assessment"`
}

// NewChangeReport wraps the comparison of previous and current.
// Either snapshot may be nil.
func NewChangeReport(cs *model.ChangeSet, previous, current *model.Snapshot, at time.Time) *ChangeReport {
	if cs == nil {
		cs = model.NewChangeSet()
	}
	r := &ChangeReport{
		Site:        cs.BaseURL,
		GeneratedAt: at,
		Changes:     cs,
		Assessment:  cs.Assess(),
	}
	if previous != nil {
		r.PreviousAt = previous.StartedAt
	}
	if current != nil {
		r.CurrentAt = current.StartedAt
		if r.Site == "" {
			r.Site = current.BaseURL
		}
	}
	return r
}

// Writer defines the interface for change report output.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *ChangeReport) (int, error)
}

// MultiWriter writes to multiple Writers. It stops on the first error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
func (m *MultiWriter) Write(report *ChangeReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// truncateString truncates s to maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// deeper counts depth changes that moved a page further from the root.
func deeper(changes []model.DepthChange) int {
	n := 0
	for _, c := range changes {
		if c.Delta > 0 {
			n++
		}
	}
	return n
}

// recommendations lists follow-up actions for a change set.
func recommendations(cs *model.ChangeSet) []string {
	var recs []string
	if n := len(cs.BrokenLinks); n > 0 {
		recs = append(recs, pluralf(n, "Fix %d broken link", "Fix %d broken links"))
	}
	if n := len(cs.RemovedPages); n > 0 {
		recs = append(recs, pluralf(n, "Review %d removed page for redirects", "Review %d removed pages for redirects"))
	}
	if n := deeper(cs.DepthChanges); n > 0 {
		recs = append(recs, pluralf(n, "%d page moved deeper - consider flattening", "%d pages moved deeper - consider flattening"))
	}
	if len(recs) == 0 {
		recs = append(recs, "No immediate actions required")
	}
	return recs
}

// assessmentText is the status line shown for an assessment.
func assessmentText(a model.Assessment) string {
	switch a {
	case model.AssessmentCritical:
		return "CRITICAL - Immediate attention required"
	case model.AssessmentWarning:
		return "WARNING - Review recommended"
	case model.AssessmentImproved:
		return "IMPROVED - Positive changes detected"
	default:
		return "STABLE - No significant changes"
	}
}

func pluralf(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf(one, n)
	}
	return fmt.Sprintf(many, n)
}
