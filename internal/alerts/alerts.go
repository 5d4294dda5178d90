// Package alerts defines the closed alert category set, digest cadences,
// and delivery outcomes shared by the stores and the alert engine.
package alerts

import "fmt"

// Category is the closed set of alert categories. Using a defined type with
// a parse step keeps typos from silently creating unmatched categories.
type Category string

const (
	CategoryScoreChange Category = "score_change"
	CategoryEmissions   Category = "emissions_threshold"
	CategoryNews        Category = "news"
	CategoryDigest      Category = "periodic_digest"
)

var validCategories = map[Category]struct{}{
	CategoryScoreChange: {},
	CategoryEmissions:   {},
	CategoryNews:        {},
	CategoryDigest:      {},
}

// ParseCategory validates a raw category string.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := validCategories[c]; !ok {
		return "", fmt.Errorf("unknown alert category: %q", s)
	}
	return c, nil
}

// String returns the wire representation of the category.
func (c Category) String() string {
	return string(c)
}

// Cadence is the delivery frequency for periodic digests.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

var validCadences = map[Cadence]struct{}{
	CadenceDaily:   {},
	CadenceWeekly:  {},
	CadenceMonthly: {},
}

// ParseCadence validates a raw cadence string.
func ParseCadence(s string) (Cadence, error) {
	c := Cadence(s)
	if _, ok := validCadences[c]; !ok {
		return "", fmt.Errorf("unknown cadence: %q", s)
	}
	return c, nil
}

func (c Cadence) String() string {
	return string(c)
}

// Outcome is the terminal state of a single notification attempt.
type Outcome string

const (
	OutcomeSent            Outcome = "sent"
	OutcomeSuppressed      Outcome = "suppressed"
	OutcomeTransportFailed Outcome = "transport_failed"
)

// IsTerminal reports whether an outcome string is one of the recorded
// terminal states. Unknown strings are not terminal.
func (o Outcome) IsTerminal() bool {
	switch o {
	case OutcomeSent, OutcomeSuppressed, OutcomeTransportFailed:
		return true
	}
	return false
}

func (o Outcome) String() string {
	return string(o)
}
