package model

import "time"

// MonitorRun carries the state of one monitor execution for a site:
// the crawl, the comparison with the previously stored snapshot and the
// alerts raised from it.
type MonitorRun struct {
	// Site is the base URL being monitored.
	Site string `json:"site"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Previous is the last stored snapshot for Site, nil on the first run.
	Previous *Snapshot `json:"-"`

	// Current is the snapshot produced by this run.
	Current *Snapshot `json:"-"`

	// Statistics are computed from Current.
	Statistics *CrawlStatistics `json:"statistics,omitempty"`

	// Changes is nil when there was no previous snapshot.
	Changes *ChangeSet `json:"changes,omitempty"`

	// Alerts are the events raised from Changes.
	Alerts []AlertEvent `json:"alerts,omitempty"`

	// Delivered counts alerts the notifier accepted.
	Delivered int `json:"delivered"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps"`

	// Error is the error that ended the run, if any.
	Error error `json:"-"`

	// ErrorMessage mirrors Error for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// NewMonitorRun creates a run for site starting now.
func NewMonitorRun(site string) *MonitorRun {
	return &MonitorRun{
		Site:           site,
		StartedAt:      time.Now(),
		PerformedSteps: make([]string, 0),
	}
}

// Failed reports whether the run ended with an error.
func (r *MonitorRun) Failed() bool {
	return r.Error != nil
}

// Fail records err as the cause of failure unless one is already set.
func (r *MonitorRun) Fail(err error) {
	if err == nil || r.Error != nil {
		return
	}
	r.Error = err
	r.ErrorMessage = err.Error()
}
