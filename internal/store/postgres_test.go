package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgresEnsureSource(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO sources`).
		WithArgs("timo", "https://timo.vn/rates", "html", 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id, name, url, kind, priority, created_at FROM sources WHERE name`).
		WithArgs("timo").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "url", "kind", "priority", "created_at"}).
			AddRow(int64(3), "timo", "https://timo.vn/rates", "html", 1, created))

	src, err := st.EnsureSource(ctx, "timo", "https://timo.vn/rates", model.SourceKindHTML, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), src.ID)
	assert.Equal(t, model.SourceKindHTML, src.Kind)
	assert.Equal(t, 1, src.Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateSourcePriority(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE sources SET priority`).
		WithArgs(2, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, st.UpdateSourcePriority(ctx, 3, 2))

	mock.ExpectExec(`UPDATE sources SET priority`).
		WithArgs(2, int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := st.UpdateSourcePriority(ctx, 99, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetDriftSignal_NoRows(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT provider, dataset, fingerprint`).
		WithArgs("timo", "deposit_online").
		WillReturnError(pgx.ErrNoRows)

	sig, err := st.GetDriftSignal(context.Background(), "timo", "deposit_online")
	require.NoError(t, err)
	assert.Nil(t, sig)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLastFinishedRun_NoRows(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery(`FROM ingest_runs`).
		WithArgs("timo", "daily").
		WillReturnError(pgx.ErrNoRows)

	run, err := st.LastFinishedRun(context.Background(), "timo", model.RunKindDaily)
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSuccessBounds(t *testing.T) {
	st, mock := newMockStore(t)
	earliest := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT MIN\(start_date\), MAX\(end_date\) FROM ingest_runs`).
		WithArgs("timo", "success", "anomaly").
		WillReturnRows(pgxmock.NewRows([]string{"min", "max"}).AddRow(&earliest, &latest))

	gotEarliest, gotLatest, err := st.SuccessBounds(context.Background(), "timo")
	require.NoError(t, err)
	require.NotNil(t, gotEarliest)
	require.NotNil(t, gotLatest)
	assert.Equal(t, earliest, *gotEarliest)
	assert.Equal(t, latest, *gotLatest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertAlertThreshold(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO alert_thresholds`).
		WithArgs("run_fatal", true, "critical", []byte(`{"min_runs":"2"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.UpsertAlertThreshold(context.Background(), model.AlertThreshold{
		AlertCode: "run_fatal",
		Enabled:   true,
		Severity:  "critical",
		Params:    map[string]string{"min_runs": "2"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
