// Package ingest schedules and executes provider runs: daily accumulation,
// historical backfill, capability probing. Run outcomes are recorded as
// append-only IngestRun audit rows and classified for the exit-code
// convention (0 success, 2 anomaly, 3 fatal).
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/canon"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/provider"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/quality"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/store"
)

// DefaultAnomalyThreshold is the global row-count collapse threshold: a run
// returning fewer than (1 - threshold) of the previous run's rows is marked
// anomaly.
const DefaultAnomalyThreshold = 0.30

// Config tunes orchestrator behavior.
type Config struct {
	// AnomalyThreshold is the global row-count drop fraction. Zero means
	// DefaultAnomalyThreshold.
	AnomalyThreshold float64 `yaml:"anomaly_threshold" mapstructure:"anomaly_threshold"`
	// AnomalyOverrides sets per-provider thresholds.
	AnomalyOverrides map[string]float64 `yaml:"anomaly_overrides" mapstructure:"anomaly_overrides"`
}

// Orchestrator coordinates provider runs. It is shared by the HTTP handlers
// and the background scheduler, so per-provider mutual exclusion lives here.
type Orchestrator struct {
	store    store.Store
	registry *provider.Registry
	canon    *canon.Canonicalizer
	monitor  *quality.Monitor
	cfg      Config
	locks    *providerLocks
	now      func() time.Time
}

// New creates an Orchestrator.
func New(st store.Store, reg *provider.Registry, c *canon.Canonicalizer, m *quality.Monitor, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:    st,
		registry: reg,
		canon:    c,
		monitor:  m,
		cfg:      cfg,
		locks:    newProviderLocks(),
		now:      time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (o *Orchestrator) WithNow(fn func() time.Time) *Orchestrator {
	o.now = fn
	return o
}

func (o *Orchestrator) threshold(providerName string) float64 {
	if t, ok := o.cfg.AnomalyOverrides[providerName]; ok && t > 0 {
		return t
	}
	if o.cfg.AnomalyThreshold > 0 {
		return o.cfg.AnomalyThreshold
	}
	return DefaultAnomalyThreshold
}

// Daily runs fetchLatest for every registered provider concurrently. One
// provider failing never blocks the others; each outcome is its own
// IngestRun and summary entry.
func (o *Orchestrator) Daily(ctx context.Context) []model.RunSummary {
	providers := o.registry.List()
	summaries := make([]model.RunSummary, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			summaries[i] = o.runDaily(ctx, p)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	return summaries
}

// RunProvider runs the daily fetch for one provider, for CLI-style single
// provider invocations.
func (o *Orchestrator) RunProvider(ctx context.Context, providerName string) (model.RunSummary, error) {
	p := o.registry.Get(providerName)
	if p == nil {
		return model.RunSummary{}, eris.Errorf("ingest: unknown provider %q", providerName)
	}
	return o.runDaily(ctx, p), nil
}

func (o *Orchestrator) runDaily(ctx context.Context, p provider.Provider) model.RunSummary {
	name := p.Name()
	log := zap.L().With(zap.String("provider", name))

	if !o.locks.tryAcquire(name) {
		err := &LockContentionError{Provider: name}
		log.Warn("daily run rejected", zap.Error(err))
		return model.RunSummary{Provider: name, Error: err.Error()}
	}
	defer o.locks.release(name)

	today := model.Day(o.now())
	run := &model.IngestRun{
		ID:        uuid.New().String(),
		Provider:  name,
		Kind:      model.RunKindDaily,
		StartDate: today,
		EndDate:   today,
		Status:    model.RunStatusRunning,
		StartedAt: o.now().UTC(),
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		log.Error("failed to create run record", zap.Error(err))
		return model.RunSummary{Provider: name, Error: err.Error()}
	}

	result, err := p.FetchLatest(ctx, today)
	if err != nil {
		// Nothing was written: transport or parse failure is fatal.
		o.finalize(ctx, run, model.RunStatusFatal, err.Error())
		log.Error("daily fetch failed", zap.Error(err))
		return summaryOf(run)
	}

	o.warnOnDayMismatch(log, today, result.Observations)

	upserted, err := o.persistFetch(ctx, p, result)
	if err != nil {
		o.finalize(ctx, run, model.RunStatusFatal, err.Error())
		log.Error("daily persist failed", zap.Error(err))
		return summaryOf(run)
	}

	run.RowsReturned = len(result.Observations)
	run.RowsInserted = upserted.Inserted
	run.RowsSkipped = upserted.Skipped

	status := model.RunStatusSuccess
	if prev, err := o.store.LastFinishedRun(ctx, name, model.RunKindDaily); err != nil {
		log.Warn("could not load previous run for anomaly check", zap.Error(err))
	} else if o.isAnomaly(name, run.RowsReturned, prev) {
		status = model.RunStatusAnomaly
		log.Warn("row count collapsed versus previous run",
			zap.Int("rows_returned", run.RowsReturned),
			zap.Int("previous", prev.RowsReturned),
			zap.Float64("threshold", o.threshold(name)),
		)
	}

	o.finalize(ctx, run, status, "")
	log.Info("daily run finished",
		zap.String("status", string(status)),
		zap.Int("rows_returned", run.RowsReturned),
		zap.Int("rows_inserted", run.RowsInserted),
	)
	return summaryOf(run)
}

// Backfill runs a historical fetch in per-day chunks. Capability is checked
// up front so providers known to reject historical queries fail fast with
// no run record. Completed chunks are never rolled back; a mid-run failure
// finalizes the run as partial with the progress point recorded.
func (o *Orchestrator) Backfill(ctx context.Context, providerName string, start, end time.Time) (model.RunSummary, error) {
	p := o.registry.Get(providerName)
	if p == nil {
		return model.RunSummary{}, eris.Errorf("ingest: unknown provider %q", providerName)
	}

	start, end = model.Day(start), model.Day(end)
	if end.Before(start) {
		return model.RunSummary{}, eris.New("ingest: backfill end date before start date")
	}

	if caps := p.Capabilities(); !caps.BackfillSupported {
		return model.RunSummary{}, &provider.NotSupportedError{Provider: providerName, Operation: "backfill"}
	}

	if !o.locks.tryAcquire(providerName) {
		return model.RunSummary{}, &LockContentionError{Provider: providerName}
	}
	defer o.locks.release(providerName)

	log := zap.L().With(zap.String("provider", providerName))
	run := &model.IngestRun{
		ID:        uuid.New().String(),
		Provider:  providerName,
		Kind:      model.RunKindBackfill,
		StartDate: start,
		EndDate:   end,
		Status:    model.RunStatusRunning,
		StartedAt: o.now().UTC(),
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return model.RunSummary{}, eris.Wrap(err, "ingest: create backfill run")
	}

	var lastCompleted *time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		result, err := p.Backfill(ctx, day, day)
		if err != nil {
			status := model.RunStatusFatal
			if lastCompleted != nil {
				status = model.RunStatusPartial
				run.ProgressDay = lastCompleted
			}
			o.finalize(ctx, run, status, err.Error())
			log.Error("backfill chunk failed",
				zap.String("day", model.FormatDay(day)),
				zap.Error(err),
			)
			return summaryOf(run), nil
		}

		upserted, err := o.persistFetch(ctx, p, result)
		if err != nil {
			status := model.RunStatusFatal
			if lastCompleted != nil {
				status = model.RunStatusPartial
				run.ProgressDay = lastCompleted
			}
			o.finalize(ctx, run, status, err.Error())
			log.Error("backfill persist failed",
				zap.String("day", model.FormatDay(day)),
				zap.Error(err),
			)
			return summaryOf(run), nil
		}

		run.RowsReturned += len(result.Observations)
		run.RowsInserted += upserted.Inserted
		run.RowsSkipped += upserted.Skipped
		d := day
		lastCompleted = &d
	}

	o.finalize(ctx, run, model.RunStatusSuccess, "")
	log.Info("backfill finished",
		zap.String("start", model.FormatDay(start)),
		zap.String("end", model.FormatDay(end)),
		zap.Int("rows_inserted", run.RowsInserted),
	)
	return summaryOf(run), nil
}

// Probe refreshes and returns every provider's capability report, enriched
// with earliest/latest success dates from the run log.
func (o *Orchestrator) Probe(ctx context.Context) ([]model.ProviderCapability, error) {
	providers := o.registry.List()
	out := make([]model.ProviderCapability, 0, len(providers))
	for _, p := range providers {
		caps := p.Capabilities()
		earliest, latest, err := o.store.SuccessBounds(ctx, p.Name())
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: probe %s", p.Name())
		}
		caps.EarliestSuccess = earliest
		caps.LatestSuccess = latest
		out = append(out, caps)
	}
	return out, nil
}

// persistFetch writes one fetch result: ensures the source row, stamps
// source ids, upserts the batch, feeds the drift monitor, and refreshes the
// canonical snapshot for every day touched.
func (o *Orchestrator) persistFetch(ctx context.Context, p provider.Provider, result *provider.FetchResult) (model.UpsertResult, error) {
	src, err := o.store.EnsureSource(ctx, p.Name(), p.URL(), p.Kind(), model.PriorityUnset)
	if err != nil {
		return model.UpsertResult{}, eris.Wrap(err, "ingest: ensure source")
	}

	obs := make([]model.RawObservation, len(result.Observations))
	copy(obs, result.Observations)
	for i := range obs {
		obs[i].SourceID = src.ID
	}

	upserted, err := o.store.UpsertObservations(ctx, obs)
	if err != nil {
		return model.UpsertResult{}, eris.Wrap(err, "ingest: upsert observations")
	}

	if _, err := o.monitor.RecordFetch(ctx, p.Name(), p.Dataset(), obs, result.ParseFailures); err != nil {
		// Drift bookkeeping must not fail the run; the data is committed.
		zap.L().Warn("drift monitor update failed",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)
	}

	days := make(map[time.Time]bool)
	for _, ob := range obs {
		days[model.Day(ob.ObservedDay)] = true
	}
	for day := range days {
		if _, err := o.canon.RefreshSnapshot(ctx, p.Dataset(), day); err != nil {
			return upserted, eris.Wrap(err, "ingest: refresh canonical snapshot")
		}
	}

	return upserted, nil
}

// isAnomaly applies the row-count collapse rule against the previous
// finished run.
func (o *Orchestrator) isAnomaly(providerName string, returned int, prev *model.IngestRun) bool {
	if prev == nil || prev.RowsReturned <= 0 {
		return false
	}
	floor := float64(prev.RowsReturned) * (1 - o.threshold(providerName))
	return float64(returned) < floor
}

func (o *Orchestrator) warnOnDayMismatch(log *zap.Logger, requested time.Time, obs []model.RawObservation) {
	for _, ob := range obs {
		if !model.Day(ob.ObservedDay).Equal(requested) {
			// Latest-only providers return upstream's "today"; a mismatch
			// is a warning, not an error.
			log.Warn("observed day differs from requested day",
				zap.String("requested", model.FormatDay(requested)),
				zap.String("observed", model.FormatDay(ob.ObservedDay)),
			)
			return
		}
	}
}

func (o *Orchestrator) finalize(ctx context.Context, run *model.IngestRun, status model.RunStatus, errMsg string) {
	run.Status = status
	run.ErrorMessage = errMsg
	ended := o.now().UTC()
	run.EndedAt = &ended
	if err := o.store.FinalizeRun(ctx, run); err != nil {
		zap.L().Error("failed to finalize run",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
}

func summaryOf(run *model.IngestRun) model.RunSummary {
	return model.RunSummary{
		RunID:        run.ID,
		Provider:     run.Provider,
		Status:       run.Status,
		RowsInserted: run.RowsInserted,
		Error:        run.ErrorMessage,
	}
}
