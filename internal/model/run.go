package model

import "time"

// RunStatus is the lifecycle state of an ingest run.
type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusAnomaly RunStatus = "anomaly"
	RunStatusFatal   RunStatus = "fatal"
	RunStatusPartial RunStatus = "partial"
)

// Exit codes for single-provider CLI invocations.
const (
	ExitSuccess = 0
	ExitAnomaly = 2
	ExitFatal   = 3
)

// ExitCode maps a final run status to the process exit convention.
func (s RunStatus) ExitCode() int {
	switch s {
	case RunStatusAnomaly:
		return ExitAnomaly
	case RunStatusFatal, RunStatusPartial:
		return ExitFatal
	default:
		return ExitSuccess
	}
}

// RunKind distinguishes how a run was requested.
type RunKind string

const (
	RunKindDaily    RunKind = "daily"
	RunKindBackfill RunKind = "backfill"
)

// IngestRun is one append-only audit record of a provider run.
type IngestRun struct {
	ID           string     `json:"id"`
	Provider     string     `json:"provider"`
	Kind         RunKind    `json:"kind"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      time.Time  `json:"end_date"`
	Status       RunStatus  `json:"status"`
	// RowsReturned counts everything the provider handed back; it is the
	// anomaly baseline. RowsInserted counts only genuinely new rows.
	RowsReturned int        `json:"rows_returned"`
	RowsInserted int        `json:"rows_inserted"`
	RowsSkipped  int        `json:"rows_skipped"`
	// ProgressDay is the last fully committed day of a backfill; set when a
	// run ends partial so it can be resumed from the next day.
	ProgressDay  *time.Time `json:"progress_day,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

// RunSummary is the caller-facing view returned by trigger endpoints.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	Provider     string    `json:"provider"`
	Status       RunStatus `json:"status"`
	RowsInserted int       `json:"rows_inserted"`
	Error        string    `json:"error,omitempty"`
}
