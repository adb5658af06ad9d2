package model

import "time"

// DriftSignal tracks the structural health of one provider dataset. The
// fingerprint hashes the shape of a response (which entities, which fields),
// not the values, so a change signals a likely upstream layout change rather
// than ordinary data churn.
type DriftSignal struct {
	Provider               string    `json:"provider"`
	Dataset                string    `json:"dataset"`
	Fingerprint            string    `json:"fingerprint"`
	FingerprintChangeCount int       `json:"fingerprint_change_count"`
	LastFetchedAt          time.Time `json:"last_fetched_at"`
	AvgRowCount            float64   `json:"avg_rowcount"`
	ParseFailureCount      int       `json:"parse_failure_count"`
}

// DQStatus is the severity of one data-quality rule outcome.
type DQStatus string

const (
	DQPass  DQStatus = "PASS"
	DQWarn  DQStatus = "WARN"
	DQError DQStatus = "ERROR"
)

// DQRuleResult is one rule outcome for one target date. A DQ run produces
// one result per rule per date; results are never mutated after creation.
type DQRuleResult struct {
	RuleID     string    `json:"rule_id"`
	TargetDate time.Time `json:"target_date"`
	Status     DQStatus  `json:"status"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
