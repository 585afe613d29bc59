package alert

import (
	"fmt"
	"time"

	"github.com/nao1215/sitewatch/internal/model"
)

// Thresholds configure when Evaluate raises an event. A condition fires
// when its count reaches the threshold, so 0 fires on every comparison.
type Thresholds struct {
	// CriticalBrokenLinks raises CRITICAL when at least this many pages broke.
	CriticalBrokenLinks int `yaml:"critical_broken_links" json:"critical_broken_links"`

	// CriticalRemovedPages raises CRITICAL when at least this many pages vanished.
	CriticalRemovedPages int `yaml:"critical_removed_pages" json:"critical_removed_pages"`

	// WarningNewPages raises WARNING when at least this many pages appeared.
	WarningNewPages int `yaml:"warning_new_pages" json:"warning_new_pages"`

	// WarningDepthIncrease raises WARNING when any page moved at least this
	// many levels deeper.
	WarningDepthIncrease int `yaml:"warning_depth_increase" json:"warning_depth_increase"`
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CriticalBrokenLinks:  5,
		CriticalRemovedPages: 10,
		WarningNewPages:      20,
		WarningDepthIncrease: 2,
	}
}

// Evaluate returns the alert events triggered by cs, critical ones first.
// site is the monitored base URL and is attached to every event.
func Evaluate(cs *model.ChangeSet, t Thresholds, site string) []model.AlertEvent {
	events := make([]model.AlertEvent, 0)
	if cs == nil {
		return events
	}
	now := time.Now()

	newEvent := func(level model.AlertLevel, subject string, category category) model.AlertEvent {
		return model.AlertEvent{
			Level:    level,
			Subject:  subject,
			Message:  formatMessage(cs, category, site, now),
			Site:     site,
			RaisedAt: now,
		}
	}

	if n := len(cs.BrokenLinks); reached(n, t.CriticalBrokenLinks) {
		events = append(events, newEvent(model.AlertCritical,
			fmt.Sprintf("%d New Broken Links Detected", n), categoryBroken))
	}
	if n := len(cs.RemovedPages); reached(n, t.CriticalRemovedPages) {
		events = append(events, newEvent(model.AlertCritical,
			fmt.Sprintf("%d Pages Removed", n), categoryRemoved))
	}
	if n := len(cs.NewPages); reached(n, t.WarningNewPages) {
		events = append(events, newEvent(model.AlertWarning,
			fmt.Sprintf("%d New Pages Added", n), categoryNew))
	}
	if deeper := DeeperPages(cs, t.WarningDepthIncrease); len(deeper) > 0 {
		events = append(events, newEvent(model.AlertWarning,
			fmt.Sprintf("%d Pages Moved Significantly Deeper", len(deeper)), categoryDepth))
	}

	return events
}

// DeeperPages returns the depth changes whose delta is at least minIncrease.
func DeeperPages(cs *model.ChangeSet, minIncrease int) []model.DepthChange {
	if cs == nil {
		return nil
	}
	var deeper []model.DepthChange
	for _, c := range cs.DepthChanges {
		if c.Delta >= minIncrease {
			deeper = append(deeper, c)
		}
	}
	return deeper
}

// CrawlFailed returns the event raised when a monitor run could not crawl.
func CrawlFailed(site string, err error) model.AlertEvent {
	now := time.Now()
	return model.AlertEvent{
		Level:   model.AlertCritical,
		Subject: "Crawl Failed",
		Message: fmt.Sprintf("Website: %s\nTime: %s\n\nThe scheduled crawl failed: %v",
			site, now.Format(time.DateTime), err),
		Site:     site,
		RaisedAt: now,
	}
}

// SampleEvent returns an INFO event used to check notifier configuration.
func SampleEvent(site string) model.AlertEvent {
	now := time.Now()
	return model.AlertEvent{
		Level:   model.AlertInfo,
		Subject: "Test Alert",
		Message: fmt.Sprintf("This is a test alert from sitewatch.\n\nWebsite: %s\nTime: %s\n\n"+
			"If you received this, alerts are working correctly.", site, now.Format(time.DateTime)),
		Site:     site,
		RaisedAt: now,
	}
}

func reached(count, threshold int) bool {
	return count >= threshold
}
