package model

import (
	"fmt"
	"strings"
	"time"
)

// DayFormat is the wire/storage layout for observed days.
const DayFormat = "2006-01-02"

// EntityKey identifies what is being measured. For rate data the full tuple
// is populated (dataset, bank, series, term); for yield and interbank data
// only dataset and term (tenor) are set. The composite string form is the
// stable identifier used as the dedup key component.
type EntityKey struct {
	Dataset string `json:"dataset"`
	Bank    string `json:"bank,omitempty"`
	Series  string `json:"series,omitempty"`
	Term    string `json:"term,omitempty"`
}

// String returns the stable composite identifier, e.g.
// "deposit_online|VCB|counter|6m" or "bond_yield|||10y".
func (k EntityKey) String() string {
	return strings.Join([]string{k.Dataset, k.Bank, k.Series, k.Term}, "|")
}

// ParseEntityKey reverses EntityKey.String.
func ParseEntityKey(s string) (EntityKey, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 4 {
		return EntityKey{}, fmt.Errorf("entity key must have 4 segments, got %q", s)
	}
	return EntityKey{Dataset: parts[0], Bank: parts[1], Series: parts[2], Term: parts[3]}, nil
}

// RawObservation is an unresolved, source-attributed data point as fetched.
// At most one row exists per (source_id, entity_key, observed_day).
type RawObservation struct {
	ID            int64     `json:"id"`
	SourceID      int64     `json:"source_id"`
	Entity        EntityKey `json:"entity"`
	ObservedDay   time.Time `json:"observed_day"`
	Value         float64   `json:"value"`
	RawValue      string    `json:"raw_value,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
	ParseWarnings []string  `json:"parse_warnings,omitempty"`
}

// CanonicalObservation is the resolved value for one entity-day, derived
// deterministically from raw observations and source priorities. Exactly one
// exists per (entity_key, observed_day) that has any raw data.
type CanonicalObservation struct {
	Entity          EntityKey `json:"entity"`
	ObservedDay     time.Time `json:"observed_day"`
	Value           float64   `json:"value"`
	WinningSourceID int64     `json:"winning_source_id"`
}

// UpsertResult reports the outcome of a batch observation upsert.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Add merges another result into this one.
func (r *UpsertResult) Add(o UpsertResult) {
	r.Inserted += o.Inserted
	r.Updated += o.Updated
	r.Skipped += o.Skipped
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC date.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DayFormat, s)
}

// FormatDay renders a date as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format(DayFormat)
}
