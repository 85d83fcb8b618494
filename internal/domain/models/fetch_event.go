package models

import "time"

// Fetch outcomes recorded on FetchEvent.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeFailure = "failure"
)

// FetchEvent describes one resolved series request. It is telemetry about the
// fetch, not the fetched data.
type FetchEvent struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"ts"`
	Provider   string    `json:"provider"`
	Dataset    string    `json:"dataset"`
	Country    string    `json:"country,omitempty"`
	SourceUsed string    `json:"source_used,omitempty"`
	Outcome    string    `json:"outcome"`
	Points     int       `json:"points"`
	Attempts   int       `json:"attempts"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}
