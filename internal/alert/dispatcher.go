package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/store"
)

// Metrics is the point-in-time health view fed into Evaluate: drift state
// per provider, DQ failures for the window, and terminal run outcomes.
type Metrics struct {
	DriftSignals []model.DriftSignal  `json:"drift_signals"`
	DQErrors     []model.DQRuleResult `json:"dq_errors"`
	DQWarnings   []model.DQRuleResult `json:"dq_warnings"`
	FatalRuns    []model.IngestRun    `json:"fatal_runs"`
	AnomalyRuns  []model.IngestRun    `json:"anomaly_runs"`
	LookbackDays int                  `json:"lookback_days"`
	CollectedAt  time.Time            `json:"collected_at"`
}

// Collector assembles Metrics from the store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers drift signals, DQ results, and run outcomes over the
// trailing lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackDays int) (*Metrics, error) {
	if lookbackDays <= 0 {
		lookbackDays = 1
	}
	now := c.now().UTC()
	cutoff := model.Day(now.AddDate(0, 0, -lookbackDays))

	m := &Metrics{LookbackDays: lookbackDays, CollectedAt: now}

	signals, err := c.store.ListDriftSignals(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "alert: list drift signals")
	}
	m.DriftSignals = signals

	dq, err := c.store.ListDQResults(ctx, cutoff, model.Day(now))
	if err != nil {
		return nil, eris.Wrap(err, "alert: list dq results")
	}
	for _, r := range dq {
		switch r.Status {
		case model.DQError:
			m.DQErrors = append(m.DQErrors, r)
		case model.DQWarn:
			m.DQWarnings = append(m.DQWarnings, r)
		}
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: 500})
	if err != nil {
		return nil, eris.Wrap(err, "alert: list runs")
	}
	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		switch r.Status {
		case model.RunStatusFatal, model.RunStatusPartial:
			m.FatalRuns = append(m.FatalRuns, r)
		case model.RunStatusAnomaly:
			m.AnomalyRuns = append(m.AnomalyRuns, r)
		}
	}

	return m, nil
}

// Evaluate checks metrics against thresholds and returns the events to
// deliver. It is a pure function: disabled or unknown thresholds produce
// nothing, and nothing is delivered here.
func Evaluate(thresholds []model.AlertThreshold, m *Metrics) []model.AlertEvent {
	var events []model.AlertEvent
	now := m.CollectedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	for _, t := range thresholds {
		if !t.Enabled {
			continue
		}
		switch t.AlertCode {
		case CodeDriftFingerprint:
			minChanges := paramInt(t, "min_changes", 1)
			for _, sig := range m.DriftSignals {
				if sig.FingerprintChangeCount < minChanges {
					continue
				}
				events = append(events, model.AlertEvent{
					AlertCode: t.AlertCode,
					Severity:  t.Severity,
					Message: fmt.Sprintf(
						"provider %s response shape changed %d time(s); scraper for dataset %s may be stale",
						sig.Provider, sig.FingerprintChangeCount, sig.Dataset,
					),
					Payload: map[string]any{
						"provider":     sig.Provider,
						"dataset":      sig.Dataset,
						"change_count": sig.FingerprintChangeCount,
					},
					Timestamp: now,
				})
			}

		case CodeParseFailures:
			maxFailures := paramInt(t, "max_failures", 0)
			for _, sig := range m.DriftSignals {
				if sig.ParseFailureCount <= maxFailures {
					continue
				}
				events = append(events, model.AlertEvent{
					AlertCode: t.AlertCode,
					Severity:  t.Severity,
					Message: fmt.Sprintf(
						"provider %s accumulated %d parse failures (limit %d)",
						sig.Provider, sig.ParseFailureCount, maxFailures,
					),
					Payload: map[string]any{
						"provider":       sig.Provider,
						"dataset":        sig.Dataset,
						"parse_failures": sig.ParseFailureCount,
					},
					Timestamp: now,
				})
			}

		case CodeDQError:
			maxErrors := paramInt(t, "max_errors", 0)
			if len(m.DQErrors) <= maxErrors {
				continue
			}
			events = append(events, model.AlertEvent{
				AlertCode: t.AlertCode,
				Severity:  t.Severity,
				Message: fmt.Sprintf(
					"%d DQ rule(s) reported ERROR in the last %d day(s)",
					len(m.DQErrors), m.LookbackDays,
				),
				Payload: map[string]any{
					"error_count": len(m.DQErrors),
					"warn_count":  len(m.DQWarnings),
					"rules":       ruleIDs(m.DQErrors),
				},
				Timestamp: now,
			})

		case CodeRunFatal:
			if len(m.FatalRuns) == 0 {
				continue
			}
			events = append(events, model.AlertEvent{
				AlertCode: t.AlertCode,
				Severity:  t.Severity,
				Message: fmt.Sprintf(
					"%d ingest run(s) ended fatal or partial in the last %d day(s)",
					len(m.FatalRuns), m.LookbackDays,
				),
				Payload: map[string]any{
					"run_count": len(m.FatalRuns),
					"providers": runProviders(m.FatalRuns),
				},
				Timestamp: now,
			})

		case CodeRunAnomaly:
			minRuns := paramInt(t, "min_runs", 1)
			if len(m.AnomalyRuns) < minRuns {
				continue
			}
			events = append(events, model.AlertEvent{
				AlertCode: t.AlertCode,
				Severity:  t.Severity,
				Message: fmt.Sprintf(
					"%d ingest run(s) flagged anomaly (row count collapse) in the last %d day(s)",
					len(m.AnomalyRuns), m.LookbackDays,
				),
				Payload: map[string]any{
					"run_count": len(m.AnomalyRuns),
					"providers": runProviders(m.AnomalyRuns),
				},
				Timestamp: now,
			})
		}
	}

	return events
}

func ruleIDs(results []model.DQRuleResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.RuleID)
	}
	return out
}

func runProviders(runs []model.IngestRun) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range runs {
		if seen[r.Provider] {
			continue
		}
		seen[r.Provider] = true
		out = append(out, r.Provider)
	}
	return out
}
