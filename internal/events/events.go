// Package events defines the change-event and digest-payload values exchanged
// with the data-collection layer, on the metrics.changed topic and the HTTP API.
package events

import (
	"math"
	"time"

	"github.com/kritinkaul/automated-esg-tracker/internal/alerts"
)

// ChangeEvent represents an observed move in a monitored metric for a company.
// It is produced by the data-collection layer and is never persisted here.
type ChangeEvent struct {
	Category      string    `json:"category"`
	Company       string    `json:"company"`
	PreviousValue float64   `json:"previous_value"`
	NewValue      float64   `json:"new_value"`
	ObservedAt    time.Time `json:"observed_at"`
}

// PercentChange computes (new - previous) / previous as a fraction.
// The second return value is false when the previous value is zero or the
// result is not finite; such events carry no meaningful change signal.
func (e *ChangeEvent) PercentChange() (float64, bool) {
	if e.PreviousValue == 0 {
		return 0, false
	}
	change := (e.NewValue - e.PreviousValue) / e.PreviousValue
	if math.IsNaN(change) || math.IsInf(change, 0) {
		return 0, false
	}
	return change, true
}

// CompanyScore pairs a company ticker with its current score for digest sections.
type CompanyScore struct {
	Company string  `json:"company"`
	Score   float64 `json:"score"`
}

// DigestPayload carries the caller-supplied aggregate data for periodic digests.
type DigestPayload struct {
	TopPerformers []CompanyScore `json:"top_performers"`
	WatchList     []CompanyScore `json:"watch_list"`
	Highlights    []string       `json:"highlights"`
}

// DigestRequest is the wire shape for triggering a digest batch.
type DigestRequest struct {
	Cadence string        `json:"cadence"`
	Payload DigestPayload `json:"payload"`
}

// ParsedCategory validates the event category against the closed set.
func (e *ChangeEvent) ParsedCategory() (alerts.Category, error) {
	return alerts.ParseCategory(e.Category)
}
