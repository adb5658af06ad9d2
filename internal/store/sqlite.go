package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// idx_observations_unique_source_day carries source_id on purpose: one raw
// row per source per day is a different invariant from one canonical row per
// day, which the canonical_observations primary key enforces separately.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sources (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	url        TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL,
	priority   INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS raw_observations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id      INTEGER NOT NULL REFERENCES sources(id),
	entity_key     TEXT NOT NULL,
	observed_day   TEXT NOT NULL,
	value          REAL NOT NULL,
	raw_value      TEXT NOT NULL DEFAULT '',
	fetched_at     DATETIME NOT NULL,
	parse_warnings TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_observations_unique_source_day
	ON raw_observations(source_id, entity_key, observed_day);
CREATE INDEX IF NOT EXISTS idx_observations_entity_day
	ON raw_observations(entity_key, observed_day);

CREATE TABLE IF NOT EXISTS canonical_observations (
	entity_key        TEXT NOT NULL,
	observed_day      TEXT NOT NULL,
	value             REAL NOT NULL,
	winning_source_id INTEGER NOT NULL,
	PRIMARY KEY (entity_key, observed_day)
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id            TEXT PRIMARY KEY,
	provider      TEXT NOT NULL,
	kind          TEXT NOT NULL,
	start_date    TEXT NOT NULL,
	end_date      TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	rows_returned INTEGER NOT NULL DEFAULT 0,
	rows_inserted INTEGER NOT NULL DEFAULT 0,
	rows_skipped  INTEGER NOT NULL DEFAULT 0,
	progress_day  TEXT,
	error_message TEXT NOT NULL DEFAULT '',
	started_at    DATETIME NOT NULL,
	ended_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_provider ON ingest_runs(provider, started_at);

CREATE TABLE IF NOT EXISTS drift_signals (
	provider                 TEXT NOT NULL,
	dataset                  TEXT NOT NULL,
	fingerprint              TEXT NOT NULL,
	fingerprint_change_count INTEGER NOT NULL DEFAULT 0,
	last_fetched_at          DATETIME NOT NULL,
	avg_rowcount             REAL NOT NULL DEFAULT 0,
	parse_failure_count      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (provider, dataset)
);

CREATE TABLE IF NOT EXISTS dq_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	rule_id     TEXT NOT NULL,
	target_date TEXT NOT NULL,
	status      TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dq_results_date ON dq_results(target_date);

CREATE TABLE IF NOT EXISTS alert_thresholds (
	alert_code TEXT PRIMARY KEY,
	enabled    INTEGER NOT NULL DEFAULT 1,
	severity   TEXT NOT NULL DEFAULT 'warning',
	params     TEXT
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Sources

func (s *SQLiteStore) EnsureSource(ctx context.Context, name, url string, kind model.SourceKind, priority int) (*model.Source, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (name, url, kind, priority, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		name, url, string(kind), priority, time.Now().UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: ensure source %s", name)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, url, kind, priority, created_at FROM sources WHERE name = ?`, name)
	return scanSource(row)
}

func (s *SQLiteStore) GetSource(ctx context.Context, id int64) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, url, kind, priority, created_at FROM sources WHERE id = ?`, id)
	return scanSource(row)
}

func (s *SQLiteStore) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, url, kind, priority, created_at FROM sources ORDER BY priority, name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sources")
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list sources iterate")
}

func (s *SQLiteStore) UpdateSourcePriority(ctx context.Context, id int64, priority int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET priority = ? WHERE id = ?`, priority, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update source priority %d", id)
	}
	return checkRowsAffected(res, "source", id)
}

// Raw observations

func (s *SQLiteStore) UpsertObservations(ctx context.Context, obs []model.RawObservation) (model.UpsertResult, error) {
	var result model.UpsertResult
	if len(obs) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, o := range obs {
		warnings, err := marshalWarnings(o.ParseWarnings)
		if err != nil {
			return result, err
		}
		day := model.FormatDay(o.ObservedDay)

		res, err := tx.ExecContext(ctx,
			`INSERT INTO raw_observations (source_id, entity_key, observed_day, value, raw_value, fetched_at, parse_warnings)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(source_id, entity_key, observed_day) DO NOTHING`,
			o.SourceID, o.Entity.String(), day, o.Value, o.RawValue, o.FetchedAt.UTC(), warnings,
		)
		if err != nil {
			return result, eris.Wrapf(err, "sqlite: upsert observation %s/%s", o.Entity, day)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return result, eris.Wrap(err, "sqlite: upsert rows affected")
		}
		if n == 1 {
			result.Inserted++
			continue
		}

		// Key exists: rewrite only when the payload actually changed, so
		// repeated runs of the same provider/day stay idempotent.
		var existingValue float64
		var existingRaw string
		err = tx.QueryRowContext(ctx,
			`SELECT value, raw_value FROM raw_observations
			 WHERE source_id = ? AND entity_key = ? AND observed_day = ?`,
			o.SourceID, o.Entity.String(), day,
		).Scan(&existingValue, &existingRaw)
		if err != nil {
			return result, eris.Wrapf(err, "sqlite: read existing observation %s/%s", o.Entity, day)
		}

		if existingValue == o.Value && existingRaw == o.RawValue {
			result.Skipped++
			continue
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE raw_observations
			 SET value = ?, raw_value = ?, fetched_at = ?, parse_warnings = ?
			 WHERE source_id = ? AND entity_key = ? AND observed_day = ?`,
			o.Value, o.RawValue, o.FetchedAt.UTC(), warnings,
			o.SourceID, o.Entity.String(), day,
		)
		if err != nil {
			return result, eris.Wrapf(err, "sqlite: update observation %s/%s", o.Entity, day)
		}
		result.Updated++
	}

	if err := tx.Commit(); err != nil {
		return model.UpsertResult{}, eris.Wrap(err, "sqlite: commit upsert tx")
	}
	return result, nil
}

const observationColumns = `id, source_id, entity_key, observed_day, value, raw_value, fetched_at, parse_warnings`

func (s *SQLiteStore) ObservationsForEntityDay(ctx context.Context, entity model.EntityKey, day time.Time) ([]model.RawObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+observationColumns+` FROM raw_observations
		 WHERE entity_key = ? AND observed_day = ? ORDER BY id`,
		entity.String(), model.FormatDay(day),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: observations for entity day")
	}
	return collectObservations(rows)
}

func (s *SQLiteStore) ObservationsForEntityRange(ctx context.Context, entity model.EntityKey, start, end time.Time) ([]model.RawObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+observationColumns+` FROM raw_observations
		 WHERE entity_key = ? AND observed_day >= ? AND observed_day <= ?
		 ORDER BY observed_day, id`,
		entity.String(), model.FormatDay(start), model.FormatDay(end),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: observations for entity range")
	}
	return collectObservations(rows)
}

func (s *SQLiteStore) ObservationsForDatasetDay(ctx context.Context, dataset string, day time.Time) ([]model.RawObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+observationColumns+` FROM raw_observations
		 WHERE entity_key LIKE ? AND observed_day = ? ORDER BY entity_key, id`,
		dataset+"|%", model.FormatDay(day),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: observations for dataset day")
	}
	return collectObservations(rows)
}

// Canonical snapshot

func (s *SQLiteStore) ReplaceCanonical(ctx context.Context, canon []model.CanonicalObservation) error {
	if len(canon) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin canonical tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, c := range canon {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO canonical_observations (entity_key, observed_day, value, winning_source_id)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(entity_key, observed_day) DO UPDATE
			 SET value = excluded.value, winning_source_id = excluded.winning_source_id`,
			c.Entity.String(), model.FormatDay(c.ObservedDay), c.Value, c.WinningSourceID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: replace canonical %s", c.Entity)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit canonical tx")
}

func (s *SQLiteStore) CanonicalForDay(ctx context.Context, dataset string, day time.Time) ([]model.CanonicalObservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_key, observed_day, value, winning_source_id FROM canonical_observations
		 WHERE entity_key LIKE ? AND observed_day = ? ORDER BY entity_key`,
		dataset+"|%", model.FormatDay(day),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: canonical for day")
	}
	defer rows.Close()

	var out []model.CanonicalObservation
	for rows.Next() {
		var c model.CanonicalObservation
		var keyStr, dayStr string
		if err := rows.Scan(&keyStr, &dayStr, &c.Value, &c.WinningSourceID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan canonical")
		}
		if c.Entity, err = model.ParseEntityKey(keyStr); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse canonical entity key")
		}
		if c.ObservedDay, err = model.ParseDay(dayStr); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse canonical day")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: canonical iterate")
}

// Ingest runs

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.IngestRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, provider, kind, start_date, end_date, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Provider, string(run.Kind),
		model.FormatDay(run.StartDate), model.FormatDay(run.EndDate),
		string(run.Status), run.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: create run %s", run.ID)
}

func (s *SQLiteStore) FinalizeRun(ctx context.Context, run *model.IngestRun) error {
	var progress any
	if run.ProgressDay != nil {
		progress = model.FormatDay(*run.ProgressDay)
	}
	var ended any
	if run.EndedAt != nil {
		ended = run.EndedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs
		 SET status = ?, rows_returned = ?, rows_inserted = ?, rows_skipped = ?, progress_day = ?, error_message = ?, ended_at = ?
		 WHERE id = ?`,
		string(run.Status), run.RowsReturned, run.RowsInserted, run.RowsSkipped, progress, run.ErrorMessage, ended, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

const runColumns = `id, provider, kind, start_date, end_date, status, rows_returned, rows_inserted, rows_skipped, progress_day, error_message, started_at, ended_at`

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.IngestRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM ingest_runs WHERE id = ?`, id)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, f RunFilter) ([]model.IngestRun, error) {
	query := `SELECT ` + runColumns + ` FROM ingest_runs WHERE 1=1`
	var args []any
	if f.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, f.Provider)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	query += ` ORDER BY started_at DESC, id DESC`

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []model.IngestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) LastFinishedRun(ctx context.Context, provider string, kind model.RunKind) (*model.IngestRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM ingest_runs
		 WHERE provider = ? AND kind = ? AND ended_at IS NOT NULL
		 ORDER BY started_at DESC, id DESC LIMIT 1`,
		provider, string(kind),
	)
	run, err := scanRun(row)
	if err != nil {
		if eris.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) SuccessBounds(ctx context.Context, provider string) (*time.Time, *time.Time, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT MIN(start_date), MAX(end_date) FROM ingest_runs
		 WHERE provider = ? AND status IN (?, ?)`,
		provider, string(model.RunStatusSuccess), string(model.RunStatusAnomaly),
	)
	var minStr, maxStr sql.NullString
	if err := row.Scan(&minStr, &maxStr); err != nil {
		return nil, nil, eris.Wrapf(err, "sqlite: success bounds for %s", provider)
	}
	if !minStr.Valid || !maxStr.Valid {
		return nil, nil, nil
	}
	earliest, err := model.ParseDay(minStr.String)
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: parse earliest success")
	}
	latest, err := model.ParseDay(maxStr.String)
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: parse latest success")
	}
	return &earliest, &latest, nil
}

// Drift signals

func (s *SQLiteStore) GetDriftSignal(ctx context.Context, providerName, dataset string) (*model.DriftSignal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT provider, dataset, fingerprint, fingerprint_change_count, last_fetched_at, avg_rowcount, parse_failure_count
		 FROM drift_signals WHERE provider = ? AND dataset = ?`,
		providerName, dataset,
	)
	var sig model.DriftSignal
	err := row.Scan(&sig.Provider, &sig.Dataset, &sig.Fingerprint, &sig.FingerprintChangeCount,
		&sig.LastFetchedAt, &sig.AvgRowCount, &sig.ParseFailureCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get drift signal %s/%s", providerName, dataset)
	}
	return &sig, nil
}

func (s *SQLiteStore) SaveDriftSignal(ctx context.Context, sig *model.DriftSignal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drift_signals (provider, dataset, fingerprint, fingerprint_change_count, last_fetched_at, avg_rowcount, parse_failure_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(provider, dataset) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			fingerprint_change_count = excluded.fingerprint_change_count,
			last_fetched_at = excluded.last_fetched_at,
			avg_rowcount = excluded.avg_rowcount,
			parse_failure_count = excluded.parse_failure_count`,
		sig.Provider, sig.Dataset, sig.Fingerprint, sig.FingerprintChangeCount,
		sig.LastFetchedAt.UTC(), sig.AvgRowCount, sig.ParseFailureCount,
	)
	return eris.Wrapf(err, "sqlite: save drift signal %s/%s", sig.Provider, sig.Dataset)
}

func (s *SQLiteStore) ListDriftSignals(ctx context.Context) ([]model.DriftSignal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, dataset, fingerprint, fingerprint_change_count, last_fetched_at, avg_rowcount, parse_failure_count
		 FROM drift_signals ORDER BY provider, dataset`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list drift signals")
	}
	defer rows.Close()

	var out []model.DriftSignal
	for rows.Next() {
		var sig model.DriftSignal
		if err := rows.Scan(&sig.Provider, &sig.Dataset, &sig.Fingerprint, &sig.FingerprintChangeCount,
			&sig.LastFetchedAt, &sig.AvgRowCount, &sig.ParseFailureCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan drift signal")
		}
		out = append(out, sig)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: drift signals iterate")
}

// DQ results

func (s *SQLiteStore) InsertDQResults(ctx context.Context, results []model.DQRuleResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin dq tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range results {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO dq_results (rule_id, target_date, status, message, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			r.RuleID, model.FormatDay(r.TargetDate), string(r.Status), r.Message, r.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert dq result %s", r.RuleID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit dq tx")
}

func (s *SQLiteStore) ListDQResults(ctx context.Context, start, end time.Time) ([]model.DQRuleResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rule_id, target_date, status, message, created_at FROM dq_results
		 WHERE target_date >= ? AND target_date <= ?
		 ORDER BY target_date, rule_id, id`,
		model.FormatDay(start), model.FormatDay(end),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dq results")
	}
	defer rows.Close()

	var out []model.DQRuleResult
	for rows.Next() {
		var r model.DQRuleResult
		var dayStr string
		if err := rows.Scan(&r.RuleID, &dayStr, &r.Status, &r.Message, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dq result")
		}
		if r.TargetDate, err = model.ParseDay(dayStr); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse dq target date")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: dq results iterate")
}

// Alert thresholds

func (s *SQLiteStore) ListAlertThresholds(ctx context.Context) ([]model.AlertThreshold, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT alert_code, enabled, severity, params FROM alert_thresholds ORDER BY alert_code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list alert thresholds")
	}
	defer rows.Close()

	var out []model.AlertThreshold
	for rows.Next() {
		var t model.AlertThreshold
		var params sql.NullString
		if err := rows.Scan(&t.AlertCode, &t.Enabled, &t.Severity, &params); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alert threshold")
		}
		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &t.Params); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal threshold params for %s", t.AlertCode)
			}
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: alert thresholds iterate")
}

func (s *SQLiteStore) UpsertAlertThreshold(ctx context.Context, t model.AlertThreshold) error {
	var params any
	if t.Params != nil {
		b, err := json.Marshal(t.Params)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal threshold params for %s", t.AlertCode)
		}
		params = string(b)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_thresholds (alert_code, enabled, severity, params) VALUES (?, ?, ?, ?)
		 ON CONFLICT(alert_code) DO UPDATE SET
			enabled = excluded.enabled, severity = excluded.severity, params = excluded.params`,
		t.AlertCode, t.Enabled, t.Severity, params,
	)
	return eris.Wrapf(err, "sqlite: upsert alert threshold %s", t.AlertCode)
}

// helpers

var errNotFound = eris.New("not found")

func checkRowsAffected(res sql.Result, entity string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(errNotFound, "%s %v", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSource(row scannable) (*model.Source, error) {
	var src model.Source
	var kind string
	err := row.Scan(&src.ID, &src.Name, &src.URL, &kind, &src.Priority, &src.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(errNotFound, "source")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan source")
	}
	src.Kind = model.SourceKind(kind)
	return &src, nil
}

func scanRun(row scannable) (*model.IngestRun, error) {
	var r model.IngestRun
	var kind, status, startStr, endStr string
	var progress, errMsg sql.NullString
	var ended sql.NullTime

	err := row.Scan(&r.ID, &r.Provider, &kind, &startStr, &endStr, &status,
		&r.RowsReturned, &r.RowsInserted, &r.RowsSkipped, &progress, &errMsg, &r.StartedAt, &ended)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(errNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Kind = model.RunKind(kind)
	r.Status = model.RunStatus(status)
	if r.StartDate, err = model.ParseDay(startStr); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse run start date")
	}
	if r.EndDate, err = model.ParseDay(endStr); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse run end date")
	}
	if progress.Valid && progress.String != "" {
		d, err := model.ParseDay(progress.String)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: parse run progress day")
		}
		r.ProgressDay = &d
	}
	if errMsg.Valid {
		r.ErrorMessage = errMsg.String
	}
	if ended.Valid {
		t := ended.Time
		r.EndedAt = &t
	}
	return &r, nil
}

func marshalWarnings(warnings []string) (any, error) {
	if len(warnings) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(warnings)
	if err != nil {
		return nil, eris.Wrap(err, "marshal parse warnings")
	}
	return string(b), nil
}

func collectObservations(rows *sql.Rows) ([]model.RawObservation, error) {
	defer rows.Close()

	var out []model.RawObservation
	for rows.Next() {
		var o model.RawObservation
		var keyStr, dayStr string
		var warnings sql.NullString
		err := rows.Scan(&o.ID, &o.SourceID, &keyStr, &dayStr, &o.Value, &o.RawValue, &o.FetchedAt, &warnings)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		if o.Entity, err = model.ParseEntityKey(keyStr); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse observation entity key")
		}
		if o.ObservedDay, err = model.ParseDay(dayStr); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse observation day")
		}
		if warnings.Valid && warnings.String != "" {
			if err := json.Unmarshal([]byte(warnings.String), &o.ParseWarnings); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal parse warnings")
			}
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: observations iterate")
}
