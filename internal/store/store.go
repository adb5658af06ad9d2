// Package store provides durable persistence for raw observations, the
// canonical snapshot, ingest run audit records, drift signals, DQ results,
// and alert thresholds. Two backends exist: SQLite (default, pure Go) and
// Postgres (production).
package store

import (
	"context"
	"time"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

// RunFilter specifies criteria for listing ingest runs.
type RunFilter struct {
	Provider string          `json:"provider,omitempty"`
	Status   model.RunStatus `json:"status,omitempty"`
	Kind     model.RunKind   `json:"kind,omitempty"`
	Limit    int             `json:"limit,omitempty"`
}

// Store defines the persistence interface for the ingestion engine.
type Store interface {
	// Sources. Sources are created on first successful fetch and never
	// deleted; only priority is editable afterwards.
	EnsureSource(ctx context.Context, name, url string, kind model.SourceKind, priority int) (*model.Source, error)
	GetSource(ctx context.Context, id int64) (*model.Source, error)
	ListSources(ctx context.Context) ([]model.Source, error)
	UpdateSourcePriority(ctx context.Context, id int64, priority int) error

	// Raw observations. The dedup key is (source_id, entity_key,
	// observed_day); upserting the same key with identical values is a
	// no-op, with differing values an in-place update.
	UpsertObservations(ctx context.Context, obs []model.RawObservation) (model.UpsertResult, error)
	ObservationsForEntityDay(ctx context.Context, entity model.EntityKey, day time.Time) ([]model.RawObservation, error)
	ObservationsForEntityRange(ctx context.Context, entity model.EntityKey, start, end time.Time) ([]model.RawObservation, error)
	ObservationsForDatasetDay(ctx context.Context, dataset string, day time.Time) ([]model.RawObservation, error)

	// Canonical snapshot (materialized "latest" view). Exactly one row per
	// (entity_key, observed_day); rows are derived, never authoritative.
	ReplaceCanonical(ctx context.Context, rows []model.CanonicalObservation) error
	CanonicalForDay(ctx context.Context, dataset string, day time.Time) ([]model.CanonicalObservation, error)

	// Ingest runs (append-only audit log).
	CreateRun(ctx context.Context, run *model.IngestRun) error
	FinalizeRun(ctx context.Context, run *model.IngestRun) error
	GetRun(ctx context.Context, id string) (*model.IngestRun, error)
	ListRuns(ctx context.Context, f RunFilter) ([]model.IngestRun, error)
	LastFinishedRun(ctx context.Context, provider string, kind model.RunKind) (*model.IngestRun, error)
	SuccessBounds(ctx context.Context, provider string) (earliest, latest *time.Time, err error)

	// Drift signals, keyed by (provider, dataset).
	GetDriftSignal(ctx context.Context, providerName, dataset string) (*model.DriftSignal, error)
	SaveDriftSignal(ctx context.Context, sig *model.DriftSignal) error
	ListDriftSignals(ctx context.Context) ([]model.DriftSignal, error)

	// DQ rule results (append-only).
	InsertDQResults(ctx context.Context, results []model.DQRuleResult) error
	ListDQResults(ctx context.Context, start, end time.Time) ([]model.DQRuleResult, error)

	// Alert thresholds (mutable configuration).
	ListAlertThresholds(ctx context.Context) ([]model.AlertThreshold, error)
	UpsertAlertThreshold(ctx context.Context, t model.AlertThreshold) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
