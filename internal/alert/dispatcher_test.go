package alert

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
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

func threshold(code string, params map[string]string) model.AlertThreshold {
	return model.AlertThreshold{AlertCode: code, Enabled: true, Severity: "warning", Params: params}
}

func driftSignal(provider string, changes, parseFailures int) model.DriftSignal {
	return model.DriftSignal{
		Provider:               provider,
		Dataset:                "deposit_online",
		FingerprintChangeCount: changes,
		ParseFailureCount:      parseFailures,
	}
}

func TestEvaluate_DriftFingerprint(t *testing.T) {
	m := &Metrics{
		DriftSignals: []model.DriftSignal{
			driftSignal("timo", 0, 0),
			driftSignal("24hmoney", 2, 0),
		},
	}

	events := Evaluate([]model.AlertThreshold{threshold(CodeDriftFingerprint, nil)}, m)
	require.Len(t, events, 1)
	assert.Equal(t, CodeDriftFingerprint, events[0].AlertCode)
	assert.Contains(t, events[0].Message, "24hmoney")
	assert.Equal(t, 2, events[0].Payload["change_count"])

	// A higher min_changes parameter silences the same signal.
	events = Evaluate([]model.AlertThreshold{
		threshold(CodeDriftFingerprint, map[string]string{"min_changes": "3"}),
	}, m)
	assert.Empty(t, events)
}

func TestEvaluate_ParseFailures(t *testing.T) {
	m := &Metrics{DriftSignals: []model.DriftSignal{driftSignal("timo", 0, 7)}}

	events := Evaluate([]model.AlertThreshold{
		threshold(CodeParseFailures, map[string]string{"max_failures": "5"}),
	}, m)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Message, "7 parse failures")

	events = Evaluate([]model.AlertThreshold{
		threshold(CodeParseFailures, map[string]string{"max_failures": "10"}),
	}, m)
	assert.Empty(t, events)
}

func TestEvaluate_DQAndRuns(t *testing.T) {
	m := &Metrics{
		DQErrors:     []model.DQRuleResult{{RuleID: "value-range:deposit_online", Status: model.DQError}},
		FatalRuns:    []model.IngestRun{{Provider: "sbv_interbank", Status: model.RunStatusFatal}},
		AnomalyRuns:  []model.IngestRun{{Provider: "timo", Status: model.RunStatusAnomaly}},
		LookbackDays: 1,
	}

	events := Evaluate([]model.AlertThreshold{
		threshold(CodeDQError, nil),
		threshold(CodeRunFatal, nil),
		threshold(CodeRunAnomaly, nil),
	}, m)
	require.Len(t, events, 3)

	codes := make(map[string]bool)
	for _, ev := range events {
		codes[ev.AlertCode] = true
	}
	assert.True(t, codes[CodeDQError])
	assert.True(t, codes[CodeRunFatal])
	assert.True(t, codes[CodeRunAnomaly])
}

func TestEvaluate_DisabledThresholdIsIgnored(t *testing.T) {
	m := &Metrics{DriftSignals: []model.DriftSignal{driftSignal("timo", 5, 0)}}
	th := threshold(CodeDriftFingerprint, nil)
	th.Enabled = false
	assert.Empty(t, Evaluate([]model.AlertThreshold{th}, m))
}

func TestEvaluate_MalformedParamFallsBack(t *testing.T) {
	m := &Metrics{DriftSignals: []model.DriftSignal{driftSignal("timo", 1, 0)}}
	events := Evaluate([]model.AlertThreshold{
		threshold(CodeDriftFingerprint, map[string]string{"min_changes": "lots"}),
	}, m)
	assert.Len(t, events, 1)
}

func TestEvaluate_UnknownCodeProducesNothing(t *testing.T) {
	m := &Metrics{DriftSignals: []model.DriftSignal{driftSignal("timo", 5, 5)}}
	assert.Empty(t, Evaluate([]model.AlertThreshold{threshold("pager_storm", nil)}, m))
}

func TestCollector(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC)

	sig := driftSignal("timo", 1, 0)
	sig.Fingerprint = "abc123"
	sig.LastFetchedAt = now
	require.NoError(t, st.SaveDriftSignal(ctx, &sig))

	require.NoError(t, st.InsertDQResults(ctx, []model.DQRuleResult{
		{RuleID: "value-range:deposit_online", TargetDate: model.Day(now), Status: model.DQError, Message: "outlier"},
		{RuleID: "day-gap:deposit_online", TargetDate: model.Day(now), Status: model.DQWarn, Message: "gap"},
		{RuleID: "entity-coverage:deposit_online", TargetDate: model.Day(now), Status: model.DQPass, Message: "ok"},
	}))

	mkRun := func(provider string, status model.RunStatus, started time.Time) {
		run := &model.IngestRun{
			ID:        uuid.New().String(),
			Provider:  provider,
			Kind:      model.RunKindDaily,
			StartDate: model.Day(started),
			EndDate:   model.Day(started),
			Status:    model.RunStatusRunning,
			StartedAt: started,
		}
		require.NoError(t, st.CreateRun(ctx, run))
		run.Status = status
		ended := started.Add(time.Minute)
		run.EndedAt = &ended
		require.NoError(t, st.FinalizeRun(ctx, run))
	}
	mkRun("sbv_interbank", model.RunStatusFatal, now.Add(-time.Hour))
	mkRun("timo", model.RunStatusAnomaly, now.Add(-2*time.Hour))
	// Outside the lookback window.
	mkRun("24hmoney", model.RunStatusFatal, now.AddDate(0, 0, -10))

	c := NewCollector(st)
	c.now = func() time.Time { return now }

	m, err := c.Collect(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, m.DriftSignals, 1)
	assert.Len(t, m.DQErrors, 1)
	assert.Len(t, m.DQWarnings, 1)
	require.Len(t, m.FatalRuns, 1)
	assert.Equal(t, "sbv_interbank", m.FatalRuns[0].Provider)
	require.Len(t, m.AnomalyRuns, 1)
	assert.Equal(t, "timo", m.AnomalyRuns[0].Provider)
}

func TestThresholdCache(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	cache := NewThresholdCache(st)
	require.NoError(t, cache.Reload(ctx))
	assert.Empty(t, cache.Snapshot())

	require.NoError(t, st.UpsertAlertThreshold(ctx, threshold(CodeRunFatal, nil)))
	require.NoError(t, st.UpsertAlertThreshold(ctx, threshold(CodeDQError, map[string]string{"max_errors": "2"})))

	// The cache serves stale data until an explicit reload.
	assert.Empty(t, cache.Snapshot())
	require.NoError(t, cache.Reload(ctx))

	snap := cache.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, CodeDQError, snap[0].AlertCode)
	assert.Equal(t, CodeRunFatal, snap[1].AlertCode)
	assert.Equal(t, "2", snap[0].Params["max_errors"])
}
