package canon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/store"
)

func newTestCanonicalizer(t *testing.T) (*Canonicalizer, store.Store, *PriorityCache) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	prio := NewPriorityCache(st)
	return New(st, prio), st, prio
}

// Source timo (priority 1) reports 4.5% for (deposit_online, vcb, 6m) on
// 2026-01-06; 24hmoney (priority 2) reports 4.6% for the same key and day.
// The canonical value must be timo's regardless of which row landed first.
func TestResolve_PriorityDeterminism(t *testing.T) {
	c, st, prio := newTestCanonicalizer(t)
	ctx := context.Background()

	timo, err := st.EnsureSource(ctx, "timo", "", model.SourceKindHTML, 1)
	require.NoError(t, err)
	money, err := st.EnsureSource(ctx, "24hmoney", "", model.SourceKindHTML, 2)
	require.NoError(t, err)
	require.NoError(t, prio.Reload(ctx))

	entity := model.EntityKey{Dataset: "deposit_online", Bank: "vcb", Series: "online", Term: "6m"}
	day := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)

	// 24hmoney inserted first, and with a fresher fetched_at.
	now := time.Now().UTC()
	_, err = st.UpsertObservations(ctx, []model.RawObservation{
		{SourceID: money.ID, Entity: entity, ObservedDay: day, Value: 4.6, FetchedAt: now.Add(time.Hour)},
		{SourceID: timo.ID, Entity: entity, ObservedDay: day, Value: 4.5, FetchedAt: now},
	})
	require.NoError(t, err)

	got, err := c.Resolve(ctx, entity, day)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 4.5, got.Value)
	assert.Equal(t, timo.ID, got.WinningSourceID)
}

func TestResolve_NoRows(t *testing.T) {
	c, _, _ := newTestCanonicalizer(t)

	got, err := c.Resolve(context.Background(),
		model.EntityKey{Dataset: "deposit_online", Bank: "vcb", Series: "online", Term: "6m"},
		time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveRange_OneRowPerDay(t *testing.T) {
	c, st, prio := newTestCanonicalizer(t)
	ctx := context.Background()

	timo, err := st.EnsureSource(ctx, "timo", "", model.SourceKindHTML, 1)
	require.NoError(t, err)
	money, err := st.EnsureSource(ctx, "24hmoney", "", model.SourceKindHTML, 2)
	require.NoError(t, err)
	require.NoError(t, prio.Reload(ctx))

	entity := model.EntityKey{Dataset: "deposit_online", Bank: "vcb", Series: "online", Term: "6m"}
	d1 := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	_, err = st.UpsertObservations(ctx, []model.RawObservation{
		{SourceID: timo.ID, Entity: entity, ObservedDay: d1, Value: 4.4, FetchedAt: now},
		{SourceID: money.ID, Entity: entity, ObservedDay: d1, Value: 4.45, FetchedAt: now},
		{SourceID: money.ID, Entity: entity, ObservedDay: d2, Value: 4.6, FetchedAt: now},
	})
	require.NoError(t, err)

	series, err := c.ResolveRange(ctx, entity, d1, d2)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, d1, series[0].ObservedDay)
	assert.Equal(t, 4.4, series[0].Value)
	// Day two only has the lower-ranked source, which still wins alone.
	assert.Equal(t, d2, series[1].ObservedDay)
	assert.Equal(t, 4.6, series[1].Value)
	assert.Equal(t, money.ID, series[1].WinningSourceID)
}

// The snapshot path and the query path must agree row for row, since they
// share the ranking function.
func TestRefreshSnapshot_MatchesQueryPath(t *testing.T) {
	c, st, prio := newTestCanonicalizer(t)
	ctx := context.Background()

	timo, err := st.EnsureSource(ctx, "timo", "", model.SourceKindHTML, 1)
	require.NoError(t, err)
	money, err := st.EnsureSource(ctx, "24hmoney", "", model.SourceKindHTML, 2)
	require.NoError(t, err)
	require.NoError(t, prio.Reload(ctx))

	day := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	banks := []string{"vcb", "mbb", "tcb"}
	var batch []model.RawObservation
	for i, bank := range banks {
		entity := model.EntityKey{Dataset: "deposit_online", Bank: bank, Series: "online", Term: "6m"}
		batch = append(batch,
			model.RawObservation{SourceID: timo.ID, Entity: entity, ObservedDay: day, Value: 4.0 + float64(i)/10, FetchedAt: now},
			model.RawObservation{SourceID: money.ID, Entity: entity, ObservedDay: day, Value: 5.0 + float64(i)/10, FetchedAt: now.Add(time.Hour)},
		)
	}
	_, err = st.UpsertObservations(ctx, batch)
	require.NoError(t, err)

	n, err := c.RefreshSnapshot(ctx, "deposit_online", day)
	require.NoError(t, err)
	assert.Equal(t, len(banks), n)

	snapshot, err := st.CanonicalForDay(ctx, "deposit_online", day)
	require.NoError(t, err)
	queried, err := c.ResolveDatasetDay(ctx, "deposit_online", day)
	require.NoError(t, err)
	require.Equal(t, len(queried), len(snapshot))

	for i := range snapshot {
		assert.Equal(t, queried[i].Entity, snapshot[i].Entity)
		assert.Equal(t, queried[i].Value, snapshot[i].Value)
		assert.Equal(t, queried[i].WinningSourceID, snapshot[i].WinningSourceID)
		// Every winner is timo's row.
		assert.Equal(t, timo.ID, snapshot[i].WinningSourceID)
	}
}

// Exactly one canonical row must exist per entity-day no matter how many
// sources reported.
func TestRefreshSnapshot_CanonicalUniqueness(t *testing.T) {
	c, st, prio := newTestCanonicalizer(t)
	ctx := context.Background()

	timo, err := st.EnsureSource(ctx, "timo", "", model.SourceKindHTML, 1)
	require.NoError(t, err)
	money, err := st.EnsureSource(ctx, "24hmoney", "", model.SourceKindHTML, 2)
	require.NoError(t, err)
	require.NoError(t, prio.Reload(ctx))

	entity := model.EntityKey{Dataset: "deposit_online", Bank: "vcb", Series: "online", Term: "6m"}
	day := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	_, err = st.UpsertObservations(ctx, []model.RawObservation{
		{SourceID: timo.ID, Entity: entity, ObservedDay: day, Value: 4.5, FetchedAt: now},
		{SourceID: money.ID, Entity: entity, ObservedDay: day, Value: 4.6, FetchedAt: now},
	})
	require.NoError(t, err)

	_, err = c.RefreshSnapshot(ctx, "deposit_online", day)
	require.NoError(t, err)
	_, err = c.RefreshSnapshot(ctx, "deposit_online", day)
	require.NoError(t, err)

	rows, err := st.CanonicalForDay(ctx, "deposit_online", day)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPriorityCache_ReloadPicksUpEdits(t *testing.T) {
	c, st, prio := newTestCanonicalizer(t)
	ctx := context.Background()

	timo, err := st.EnsureSource(ctx, "timo", "", model.SourceKindHTML, 1)
	require.NoError(t, err)
	money, err := st.EnsureSource(ctx, "24hmoney", "", model.SourceKindHTML, 2)
	require.NoError(t, err)
	require.NoError(t, prio.Reload(ctx))

	entity := model.EntityKey{Dataset: "deposit_online", Bank: "vcb", Series: "online", Term: "6m"}
	day := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	_, err = st.UpsertObservations(ctx, []model.RawObservation{
		{SourceID: timo.ID, Entity: entity, ObservedDay: day, Value: 4.5, FetchedAt: now},
		{SourceID: money.ID, Entity: entity, ObservedDay: day, Value: 4.6, FetchedAt: now},
	})
	require.NoError(t, err)

	// Flip the ranking and reload: the next resolution sees the edit.
	require.NoError(t, st.UpdateSourcePriority(ctx, timo.ID, 3))
	require.NoError(t, prio.Reload(ctx))

	got, err := c.Resolve(ctx, entity, day)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, money.ID, got.WinningSourceID)
	assert.Equal(t, 4.6, got.Value)
}
