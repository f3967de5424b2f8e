// Package crawl defines core types shared across the slot crawler subsystems.
package crawl

import (
	"fmt"
	"time"
)

// DateLayout is the wire format used by the upstream booking form and in all
// externally visible payloads. It doubles as the persisted snapshot key.
const DateLayout = "02/01/2006"

// Date is a single calendar day in the upstream DD/MM/YYYY wire format.
type Date string

// ParseDate validates a DD/MM/YYYY string and returns it as a Date.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date(s), nil
}

// NewDate converts a time.Time to a Date, dropping the time of day.
func NewDate(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Time returns the day as a time.Time at midnight UTC.
func (d Date) Time() (time.Time, error) {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", string(d), err)
	}
	return t, nil
}

// String returns the wire representation.
func (d Date) String() string { return string(d) }

// Before reports whether d falls strictly before t's calendar day.
func (d Date) Before(t time.Time) bool {
	day, err := d.Time()
	if err != nil {
		return false
	}
	cutoff := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.Before(cutoff)
}

// Category identifies one crawlable product on the booking form.
type Category struct {
	// Slug is the stable identifier used in API paths and as the snapshot
	// partition key, e.g. "gorilla".
	Slug string `mapstructure:"slug"`
	// Site is the visible label of the site select option.
	Site string `mapstructure:"site"`
	// Product is the visible label of the product select option.
	Product string `mapstructure:"product"`
}

// OutcomeKind discriminates the query outcome union.
type OutcomeKind int

// Query outcome kinds. Ambiguous is the only retryable kind.
const (
	OutcomeAmbiguous OutcomeKind = iota
	OutcomeAvailable
	OutcomeSoldOut
)

// Outcome is the transient result of a single availability query. It is never
// persisted directly; the runner folds it into a SlotRecord or a retry.
type Outcome struct {
	Kind OutcomeKind
	// Slots holds the raw slot count text when Kind is OutcomeAvailable.
	Slots string
	// Reason explains an ambiguous outcome for logs and diagnostics.
	Reason string
	// Evidence optionally carries the raw DOM captured at classification
	// time for an ambiguous outcome, so unresolved dates can be archived
	// for post-mortem diagnosis.
	Evidence []byte
}

// Available builds an Outcome carrying the populated slot count.
func Available(slots string) Outcome {
	return Outcome{Kind: OutcomeAvailable, Slots: slots}
}

// SoldOut builds the confirmed zero-availability Outcome.
func SoldOut() Outcome {
	return Outcome{Kind: OutcomeSoldOut}
}

// Ambiguous builds an inconclusive Outcome that must be retried.
func Ambiguous(reason string) Outcome {
	return Outcome{Kind: OutcomeAmbiguous, Reason: reason}
}

// Snapshot sentinels stored in a SlotRecord alongside numeric counts. The
// "Sold Out" spelling is the upstream-compatible value consumed by the
// booking API and must not change.
const (
	SlotsSoldOut = "Sold Out"
	SlotsUnknown = "Unknown"
)

// SlotValue translates an Outcome into its snapshot representation.
// Ambiguous outcomes map to Unknown; callers must only pass outcomes that
// have exhausted their retry budget.
func SlotValue(o Outcome) string {
	switch o.Kind {
	case OutcomeAvailable:
		return o.Slots
	case OutcomeSoldOut:
		return SlotsSoldOut
	default:
		return SlotsUnknown
	}
}

// SlotRecord is the durable latest-known availability for one date within a
// product category.
type SlotRecord struct {
	Date      Date      `json:"date"`
	Slots     string    `json:"slots"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunStatus is the lifecycle state of a crawl run.
type RunStatus string

// Run status values persisted by the run tracker.
const (
	RunQueued  RunStatus = "queued"
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Run records one crawl invocation. Created queued, mutated exactly twice
// (to running, then to a terminal status) and never deleted.
type Run struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Status    RunStatus `json:"status"`
	Message   string    `json:"message,omitempty"`
	StartedAt time.Time `json:"started_at"`
}
