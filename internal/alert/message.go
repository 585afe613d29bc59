package alert

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nao1215/sitewatch/internal/model"
)

// maxListed is how many entries of the triggering category a message shows.
const maxListed = 5

type category int

const (
	categoryBroken category = iota
	categoryRemoved
	categoryNew
	categoryDepth
)

// formatMessage renders the plain-text body of an alert.
func formatMessage(cs *model.ChangeSet, c category, site string, at time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Website: %s\n", site)
	fmt.Fprintf(&b, "Time: %s\n\n", at.Format(time.DateTime))
	b.WriteString("Summary:\n")
	fmt.Fprintf(&b, "  - Total Pages: %d\n", cs.Summary.CurrentTotal)
	fmt.Fprintf(&b, "  - Net Change: %+d\n\n", cs.Summary.NetChange)

	switch c {
	case categoryBroken:
		b.WriteString("Broken Links:\n")
		for _, l := range head(cs.BrokenLinks) {
			fmt.Fprintf(&b, "  - [%d] %s\n", l.StatusCode, truncate(l.URL, 50))
		}
		writeMore(&b, len(cs.BrokenLinks))
	case categoryRemoved:
		b.WriteString("Removed Pages:\n")
		for _, p := range head(cs.RemovedPages) {
			fmt.Fprintf(&b, "  - %s\n", truncate(label(p), 40))
		}
		writeMore(&b, len(cs.RemovedPages))
	case categoryNew:
		b.WriteString("New Pages:\n")
		for _, p := range head(cs.NewPages) {
			fmt.Fprintf(&b, "  - %s\n", truncate(label(p), 40))
		}
		writeMore(&b, len(cs.NewPages))
	case categoryDepth:
		b.WriteString("Depth Changes:\n")
		for _, d := range head(cs.DepthChanges) {
			fmt.Fprintf(&b, "  - %d -> %d: %s\n", d.OldDepth, d.NewDepth, truncate(d.URL, 40))
		}
		writeMore(&b, len(cs.DepthChanges))
	}

	b.WriteString("\nAction Required: review the change report.")
	return b.String()
}

func head[T any](items []T) []T {
	if len(items) > maxListed {
		return items[:maxListed]
	}
	return items
}

func writeMore(b *strings.Builder, total int) {
	if total > maxListed {
		fmt.Fprintf(b, "  ... and %d more\n", total-maxListed)
	}
}

// label prefers the page title and falls back to the URL.
func label(p model.PageChange) string {
	if p.Title != "" {
		return p.Title
	}
	return p.URL
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
