package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/db"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sources (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	url        TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL,
	priority   INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS raw_observations (
	id             BIGSERIAL PRIMARY KEY,
	source_id      BIGINT NOT NULL REFERENCES sources(id),
	entity_key     TEXT NOT NULL,
	observed_day   DATE NOT NULL,
	value          DOUBLE PRECISION NOT NULL,
	raw_value      TEXT NOT NULL DEFAULT '',
	fetched_at     TIMESTAMPTZ NOT NULL,
	parse_warnings JSONB
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_observations_unique_source_day
	ON raw_observations(source_id, entity_key, observed_day);
CREATE INDEX IF NOT EXISTS idx_observations_entity_day
	ON raw_observations(entity_key, observed_day);

CREATE TABLE IF NOT EXISTS canonical_observations (
	entity_key        TEXT NOT NULL,
	observed_day      DATE NOT NULL,
	value             DOUBLE PRECISION NOT NULL,
	winning_source_id BIGINT NOT NULL,
	PRIMARY KEY (entity_key, observed_day)
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id            TEXT PRIMARY KEY,
	provider      TEXT NOT NULL,
	kind          TEXT NOT NULL,
	start_date    DATE NOT NULL,
	end_date      DATE NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	rows_returned INTEGER NOT NULL DEFAULT 0,
	rows_inserted INTEGER NOT NULL DEFAULT 0,
	rows_skipped  INTEGER NOT NULL DEFAULT 0,
	progress_day  DATE,
	error_message TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_provider ON ingest_runs(provider, started_at);

CREATE TABLE IF NOT EXISTS drift_signals (
	provider                 TEXT NOT NULL,
	dataset                  TEXT NOT NULL,
	fingerprint              TEXT NOT NULL,
	fingerprint_change_count INTEGER NOT NULL DEFAULT 0,
	last_fetched_at          TIMESTAMPTZ NOT NULL,
	avg_rowcount             DOUBLE PRECISION NOT NULL DEFAULT 0,
	parse_failure_count      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (provider, dataset)
);

CREATE TABLE IF NOT EXISTS dq_results (
	id          BIGSERIAL PRIMARY KEY,
	rule_id     TEXT NOT NULL,
	target_date DATE NOT NULL,
	status      TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dq_results_date ON dq_results(target_date);

CREATE TABLE IF NOT EXISTS alert_thresholds (
	alert_code TEXT PRIMARY KEY,
	enabled    BOOLEAN NOT NULL DEFAULT true,
	severity   TEXT NOT NULL DEFAULT 'warning',
	params     JSONB
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Sources

func (s *PostgresStore) EnsureSource(ctx context.Context, name, url string, kind model.SourceKind, priority int) (*model.Source, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sources (name, url, kind, priority, created_at) VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (name) DO NOTHING`,
		name, url, string(kind), priority,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: ensure source %s", name)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT id, name, url, kind, priority, created_at FROM sources WHERE name = $1`, name)
	return scanPgSource(row)
}

func (s *PostgresStore) GetSource(ctx context.Context, id int64) (*model.Source, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, url, kind, priority, created_at FROM sources WHERE id = $1`, id)
	return scanPgSource(row)
}

func (s *PostgresStore) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, url, kind, priority, created_at FROM sources ORDER BY priority, name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sources")
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		src, err := scanPgSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list sources iterate")
}

func (s *PostgresStore) UpdateSourcePriority(ctx context.Context, id int64, priority int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sources SET priority = $1 WHERE id = $2`, priority, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update source priority %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(errNotFound, "source %d", id)
	}
	return nil
}

// Raw observations

func (s *PostgresStore) UpsertObservations(ctx context.Context, obs []model.RawObservation) (model.UpsertResult, error) {
	var result model.UpsertResult
	if len(obs) == 0 {
		return result, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, eris.Wrap(err, "postgres: begin upsert tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, o := range obs {
		var warnings []byte
		if len(o.ParseWarnings) > 0 {
			warnings, err = json.Marshal(o.ParseWarnings)
			if err != nil {
				return result, eris.Wrap(err, "postgres: marshal parse warnings")
			}
		}
		day := model.Day(o.ObservedDay)

		tag, err := tx.Exec(ctx,
			`INSERT INTO raw_observations (source_id, entity_key, observed_day, value, raw_value, fetched_at, parse_warnings)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (source_id, entity_key, observed_day) DO NOTHING`,
			o.SourceID, o.Entity.String(), day, o.Value, o.RawValue, o.FetchedAt.UTC(), warnings,
		)
		if err != nil {
			return result, eris.Wrapf(err, "postgres: upsert observation %s/%s", o.Entity, model.FormatDay(day))
		}
		if tag.RowsAffected() == 1 {
			result.Inserted++
			continue
		}

		var existingValue float64
		var existingRaw string
		err = tx.QueryRow(ctx,
			`SELECT value, raw_value FROM raw_observations
			 WHERE source_id = $1 AND entity_key = $2 AND observed_day = $3`,
			o.SourceID, o.Entity.String(), day,
		).Scan(&existingValue, &existingRaw)
		if err != nil {
			return result, eris.Wrapf(err, "postgres: read existing observation %s/%s", o.Entity, model.FormatDay(day))
		}

		if existingValue == o.Value && existingRaw == o.RawValue {
			result.Skipped++
			continue
		}

		_, err = tx.Exec(ctx,
			`UPDATE raw_observations
			 SET value = $1, raw_value = $2, fetched_at = $3, parse_warnings = $4
			 WHERE source_id = $5 AND entity_key = $6 AND observed_day = $7`,
			o.Value, o.RawValue, o.FetchedAt.UTC(), warnings,
			o.SourceID, o.Entity.String(), day,
		)
		if err != nil {
			return result, eris.Wrapf(err, "postgres: update observation %s/%s", o.Entity, model.FormatDay(day))
		}
		result.Updated++
	}

	if err := tx.Commit(ctx); err != nil {
		return model.UpsertResult{}, eris.Wrap(err, "postgres: commit upsert tx")
	}
	return result, nil
}

const pgObservationColumns = `id, source_id, entity_key, observed_day, value, raw_value, fetched_at, parse_warnings`

func (s *PostgresStore) ObservationsForEntityDay(ctx context.Context, entity model.EntityKey, day time.Time) ([]model.RawObservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgObservationColumns+` FROM raw_observations
		 WHERE entity_key = $1 AND observed_day = $2 ORDER BY id`,
		entity.String(), model.Day(day),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: observations for entity day")
	}
	return collectPgObservations(rows)
}

func (s *PostgresStore) ObservationsForEntityRange(ctx context.Context, entity model.EntityKey, start, end time.Time) ([]model.RawObservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgObservationColumns+` FROM raw_observations
		 WHERE entity_key = $1 AND observed_day BETWEEN $2 AND $3
		 ORDER BY observed_day, id`,
		entity.String(), model.Day(start), model.Day(end),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: observations for entity range")
	}
	return collectPgObservations(rows)
}

func (s *PostgresStore) ObservationsForDatasetDay(ctx context.Context, dataset string, day time.Time) ([]model.RawObservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgObservationColumns+` FROM raw_observations
		 WHERE entity_key LIKE $1 AND observed_day = $2 ORDER BY entity_key, id`,
		dataset+"|%", model.Day(day),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: observations for dataset day")
	}
	return collectPgObservations(rows)
}

// Canonical snapshot

func (s *PostgresStore) ReplaceCanonical(ctx context.Context, canon []model.CanonicalObservation) error {
	if len(canon) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(canon))
	for _, c := range canon {
		rows = append(rows, []any{c.Entity.String(), model.Day(c.ObservedDay), c.Value, c.WinningSourceID})
	}

	sql, args := db.UpsertSQL("canonical_observations",
		[]string{"entity_key", "observed_day", "value", "winning_source_id"},
		[]string{"entity_key", "observed_day"},
		rows,
	)
	if _, err := s.pool.Exec(ctx, sql, args...); err != nil {
		return eris.Wrap(err, "postgres: replace canonical")
	}
	return nil
}

func (s *PostgresStore) CanonicalForDay(ctx context.Context, dataset string, day time.Time) ([]model.CanonicalObservation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity_key, observed_day, value, winning_source_id FROM canonical_observations
		 WHERE entity_key LIKE $1 AND observed_day = $2 ORDER BY entity_key`,
		dataset+"|%", model.Day(day),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: canonical for day")
	}
	defer rows.Close()

	var out []model.CanonicalObservation
	for rows.Next() {
		var c model.CanonicalObservation
		var keyStr string
		if err := rows.Scan(&keyStr, &c.ObservedDay, &c.Value, &c.WinningSourceID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan canonical")
		}
		if c.Entity, err = model.ParseEntityKey(keyStr); err != nil {
			return nil, eris.Wrap(err, "postgres: parse canonical entity key")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: canonical iterate")
}

// Ingest runs

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.IngestRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, provider, kind, start_date, end_date, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Provider, string(run.Kind),
		model.Day(run.StartDate), model.Day(run.EndDate),
		string(run.Status), run.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: create run %s", run.ID)
}

func (s *PostgresStore) FinalizeRun(ctx context.Context, run *model.IngestRun) error {
	var progress *time.Time
	if run.ProgressDay != nil {
		d := model.Day(*run.ProgressDay)
		progress = &d
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs
		 SET status = $1, rows_returned = $2, rows_inserted = $3, rows_skipped = $4, progress_day = $5, error_message = $6, ended_at = $7
		 WHERE id = $8`,
		string(run.Status), run.RowsReturned, run.RowsInserted, run.RowsSkipped, progress, run.ErrorMessage, run.EndedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(errNotFound, "run %s", run.ID)
	}
	return nil
}

const pgRunColumns = `id, provider, kind, start_date, end_date, status, rows_returned, rows_inserted, rows_skipped, progress_day, error_message, started_at, ended_at`

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.IngestRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRunColumns+` FROM ingest_runs WHERE id = $1`, id)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, f RunFilter) ([]model.IngestRun, error) {
	query := `SELECT ` + pgRunColumns + ` FROM ingest_runs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if f.Provider != "" {
		query += ` AND provider = ` + arg(f.Provider)
	}
	if f.Status != "" {
		query += ` AND status = ` + arg(string(f.Status))
	}
	if f.Kind != "" {
		query += ` AND kind = ` + arg(string(f.Kind))
	}
	query += ` ORDER BY started_at DESC, id DESC`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []model.IngestRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) LastFinishedRun(ctx context.Context, provider string, kind model.RunKind) (*model.IngestRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRunColumns+` FROM ingest_runs
		 WHERE provider = $1 AND kind = $2 AND ended_at IS NOT NULL
		 ORDER BY started_at DESC, id DESC LIMIT 1`,
		provider, string(kind),
	)
	run, err := scanPgRun(row)
	if err != nil {
		if eris.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

func (s *PostgresStore) SuccessBounds(ctx context.Context, provider string) (*time.Time, *time.Time, error) {
	var earliest, latest *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MIN(start_date), MAX(end_date) FROM ingest_runs
		 WHERE provider = $1 AND status IN ($2, $3)`,
		provider, string(model.RunStatusSuccess), string(model.RunStatusAnomaly),
	).Scan(&earliest, &latest)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "postgres: success bounds for %s", provider)
	}
	return earliest, latest, nil
}

// Drift signals

func (s *PostgresStore) GetDriftSignal(ctx context.Context, providerName, dataset string) (*model.DriftSignal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT provider, dataset, fingerprint, fingerprint_change_count, last_fetched_at, avg_rowcount, parse_failure_count
		 FROM drift_signals WHERE provider = $1 AND dataset = $2`,
		providerName, dataset,
	)
	var sig model.DriftSignal
	err := row.Scan(&sig.Provider, &sig.Dataset, &sig.Fingerprint, &sig.FingerprintChangeCount,
		&sig.LastFetchedAt, &sig.AvgRowCount, &sig.ParseFailureCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get drift signal %s/%s", providerName, dataset)
	}
	return &sig, nil
}

func (s *PostgresStore) SaveDriftSignal(ctx context.Context, sig *model.DriftSignal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO drift_signals (provider, dataset, fingerprint, fingerprint_change_count, last_fetched_at, avg_rowcount, parse_failure_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (provider, dataset) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint,
			fingerprint_change_count = EXCLUDED.fingerprint_change_count,
			last_fetched_at = EXCLUDED.last_fetched_at,
			avg_rowcount = EXCLUDED.avg_rowcount,
			parse_failure_count = EXCLUDED.parse_failure_count`,
		sig.Provider, sig.Dataset, sig.Fingerprint, sig.FingerprintChangeCount,
		sig.LastFetchedAt.UTC(), sig.AvgRowCount, sig.ParseFailureCount,
	)
	return eris.Wrapf(err, "postgres: save drift signal %s/%s", sig.Provider, sig.Dataset)
}

func (s *PostgresStore) ListDriftSignals(ctx context.Context) ([]model.DriftSignal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT provider, dataset, fingerprint, fingerprint_change_count, last_fetched_at, avg_rowcount, parse_failure_count
		 FROM drift_signals ORDER BY provider, dataset`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list drift signals")
	}
	defer rows.Close()

	var out []model.DriftSignal
	for rows.Next() {
		var sig model.DriftSignal
		if err := rows.Scan(&sig.Provider, &sig.Dataset, &sig.Fingerprint, &sig.FingerprintChangeCount,
			&sig.LastFetchedAt, &sig.AvgRowCount, &sig.ParseFailureCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan drift signal")
		}
		out = append(out, sig)
	}
	return out, eris.Wrap(rows.Err(), "postgres: drift signals iterate")
}

// DQ results

func (s *PostgresStore) InsertDQResults(ctx context.Context, results []model.DQRuleResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin dq tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, r := range results {
		_, err := tx.Exec(ctx,
			`INSERT INTO dq_results (rule_id, target_date, status, message, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			r.RuleID, model.Day(r.TargetDate), string(r.Status), r.Message, r.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert dq result %s", r.RuleID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit dq tx")
}

func (s *PostgresStore) ListDQResults(ctx context.Context, start, end time.Time) ([]model.DQRuleResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT rule_id, target_date, status, message, created_at FROM dq_results
		 WHERE target_date BETWEEN $1 AND $2
		 ORDER BY target_date, rule_id, id`,
		model.Day(start), model.Day(end),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dq results")
	}
	defer rows.Close()

	var out []model.DQRuleResult
	for rows.Next() {
		var r model.DQRuleResult
		var status string
		if err := rows.Scan(&r.RuleID, &r.TargetDate, &status, &r.Message, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dq result")
		}
		r.Status = model.DQStatus(status)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: dq results iterate")
}

// Alert thresholds

func (s *PostgresStore) ListAlertThresholds(ctx context.Context) ([]model.AlertThreshold, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT alert_code, enabled, severity, params FROM alert_thresholds ORDER BY alert_code`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list alert thresholds")
	}
	defer rows.Close()

	var out []model.AlertThreshold
	for rows.Next() {
		var t model.AlertThreshold
		var params []byte
		if err := rows.Scan(&t.AlertCode, &t.Enabled, &t.Severity, &params); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alert threshold")
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &t.Params); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal threshold params for %s", t.AlertCode)
			}
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: alert thresholds iterate")
}

func (s *PostgresStore) UpsertAlertThreshold(ctx context.Context, t model.AlertThreshold) error {
	var params []byte
	if t.Params != nil {
		var err error
		params, err = json.Marshal(t.Params)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal threshold params for %s", t.AlertCode)
		}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alert_thresholds (alert_code, enabled, severity, params) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (alert_code) DO UPDATE SET
			enabled = EXCLUDED.enabled, severity = EXCLUDED.severity, params = EXCLUDED.params`,
		t.AlertCode, t.Enabled, t.Severity, params,
	)
	return eris.Wrapf(err, "postgres: upsert alert threshold %s", t.AlertCode)
}

// helpers

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

type pgScannable interface {
	Scan(dest ...any) error
}

func scanPgSource(row pgScannable) (*model.Source, error) {
	var src model.Source
	var kind string
	err := row.Scan(&src.ID, &src.Name, &src.URL, &kind, &src.Priority, &src.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(errNotFound, "source")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan source")
	}
	src.Kind = model.SourceKind(kind)
	return &src, nil
}

func scanPgRun(row pgScannable) (*model.IngestRun, error) {
	var r model.IngestRun
	var kind, status string
	var progress, ended *time.Time

	err := row.Scan(&r.ID, &r.Provider, &kind, &r.StartDate, &r.EndDate, &status,
		&r.RowsReturned, &r.RowsInserted, &r.RowsSkipped, &progress, &r.ErrorMessage, &r.StartedAt, &ended)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(errNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	r.Kind = model.RunKind(kind)
	r.Status = model.RunStatus(status)
	r.ProgressDay = progress
	r.EndedAt = ended
	return &r, nil
}

func collectPgObservations(rows pgx.Rows) ([]model.RawObservation, error) {
	defer rows.Close()

	var out []model.RawObservation
	for rows.Next() {
		var o model.RawObservation
		var keyStr string
		var warnings []byte
		err := rows.Scan(&o.ID, &o.SourceID, &keyStr, &o.ObservedDay, &o.Value, &o.RawValue, &o.FetchedAt, &warnings)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		if o.Entity, err = model.ParseEntityKey(keyStr); err != nil {
			return nil, eris.Wrap(err, "postgres: parse observation entity key")
		}
		if len(warnings) > 0 {
			if err := json.Unmarshal(warnings, &o.ParseWarnings); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal parse warnings")
			}
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: observations iterate")
}
