package model

import "time"

// ProviderCapability is the truthful contract a provider reports about what
// it can do. The orchestrator reads it to reject invalid backfill requests
// before any work starts.
type ProviderCapability struct {
	Provider          string     `json:"provider"`
	FetchLatest       bool       `json:"fetch_latest"`
	FetchHistorical   bool       `json:"fetch_historical"`
	BackfillSupported bool       `json:"backfill_supported"`
	EarliestSuccess   *time.Time `json:"earliest_success_date,omitempty"`
	LatestSuccess     *time.Time `json:"latest_success_date,omitempty"`
	FailureModes      []string   `json:"failure_modes,omitempty"`
}
