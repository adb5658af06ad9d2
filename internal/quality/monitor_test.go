package quality

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestMonitor_FirstFetchSeedsSignal(t *testing.T) {
	st := newTestStore(t)
	m := NewMonitor(st)
	ctx := context.Background()

	obs := []model.RawObservation{
		fpObs("timo", "6m", 4.5, "4,5%"),
		fpObs("timo", "12m", 4.9, "4,9%"),
	}
	changed, err := m.RecordFetch(ctx, "timo", "deposit_online", obs, 1)
	require.NoError(t, err)
	assert.False(t, changed)

	sig, err := st.GetDriftSignal(ctx, "timo", "deposit_online")
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, 0, sig.FingerprintChangeCount)
	assert.Equal(t, 1, sig.ParseFailureCount)
	assert.InDelta(t, 2.0, sig.AvgRowCount, 1e-9)
}

func TestMonitor_SameShapeDoesNotFlag(t *testing.T) {
	st := newTestStore(t)
	m := NewMonitor(st)
	ctx := context.Background()

	obs := []model.RawObservation{fpObs("timo", "6m", 4.5, "4,5%")}
	_, err := m.RecordFetch(ctx, "timo", "deposit_online", obs, 0)
	require.NoError(t, err)

	// Same entities, different values: rates moving is not drift.
	obs[0].Value = 4.8
	obs[0].RawValue = "4,8%"
	changed, err := m.RecordFetch(ctx, "timo", "deposit_online", obs, 0)
	require.NoError(t, err)
	assert.False(t, changed)

	sig, err := st.GetDriftSignal(ctx, "timo", "deposit_online")
	require.NoError(t, err)
	assert.Equal(t, 0, sig.FingerprintChangeCount)
}

func TestMonitor_ShapeChangeFlags(t *testing.T) {
	st := newTestStore(t)
	m := NewMonitor(st)
	ctx := context.Background()

	_, err := m.RecordFetch(ctx, "timo", "deposit_online", []model.RawObservation{
		fpObs("timo", "6m", 4.5, "4,5%"),
		fpObs("timo", "12m", 4.9, "4,9%"),
	}, 0)
	require.NoError(t, err)

	// A term column disappeared upstream.
	changed, err := m.RecordFetch(ctx, "timo", "deposit_online", []model.RawObservation{
		fpObs("timo", "6m", 4.5, "4,5%"),
	}, 2)
	require.NoError(t, err)
	assert.True(t, changed)

	sig, err := st.GetDriftSignal(ctx, "timo", "deposit_online")
	require.NoError(t, err)
	assert.Equal(t, 1, sig.FingerprintChangeCount)
	assert.Equal(t, 2, sig.ParseFailureCount)
	// EWMA: 0.7*2 + 0.3*1
	assert.InDelta(t, 1.7, sig.AvgRowCount, 1e-9)
}

func TestMonitor_SignalsPerProviderDataset(t *testing.T) {
	st := newTestStore(t)
	m := NewMonitor(st)
	ctx := context.Background()

	_, err := m.RecordFetch(ctx, "timo", "deposit_online", []model.RawObservation{fpObs("timo", "6m", 4.5, "")}, 0)
	require.NoError(t, err)
	_, err = m.RecordFetch(ctx, "24hmoney", "deposit_online", []model.RawObservation{fpObs("vcb", "6m", 4.6, "")}, 0)
	require.NoError(t, err)

	signals, err := m.Signals(ctx)
	require.NoError(t, err)
	assert.Len(t, signals, 2)
}
