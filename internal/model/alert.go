package model

import (
	"fmt"
	"time"
)

// AlertLevel is the severity of an alert event.
type AlertLevel int

const (
	// AlertInfo is used for informational messages such as test alerts.
	AlertInfo AlertLevel = iota

	// AlertWarning signals noteworthy structural change (many new pages,
	// pages moved deeper).
	AlertWarning

	// AlertCritical signals damage that needs attention (broken links,
	// removed pages, a failed crawl).
	AlertCritical
)

// String returns the upper-case name of the level.
func (l AlertLevel) String() string {
	switch l {
	case AlertInfo:
		return "INFO"
	case AlertWarning:
		return "WARNING"
	case AlertCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the level by name.
func (l AlertLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name.
func (l *AlertLevel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "INFO":
		*l = AlertInfo
	case "WARNING":
		*l = AlertWarning
	case "CRITICAL":
		*l = AlertCritical
	default:
		return fmt.Errorf("unknown alert level %q", string(b))
	}
	return nil
}

// AlertEvent is one alert raised by the evaluator.
type AlertEvent struct {
	Level   AlertLevel `json:"level"`
	Subject string     `json:"subject"`
	Message string     `json:"message"`

	// Site is the monitored base URL.
	Site string `json:"site"`

	// RaisedAt is when the event was created.
	RaisedAt time.Time `json:"raised_at"`
}

// FullSubject returns the subject line used by notifiers,
// e.g. "[CRITICAL] 6 New Broken Links Detected - https://example.com/".
func (e AlertEvent) FullSubject() string {
	if e.Site == "" {
		return fmt.Sprintf("[%s] %s", e.Level, e.Subject)
	}
	return fmt.Sprintf("[%s] %s - %s", e.Level, e.Subject, e.Site)
}
