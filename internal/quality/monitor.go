package quality

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/store"
)

// rowcountSmoothing is the EWMA weight of the newest fetch in the rolling
// average row count.
const rowcountSmoothing = 0.3

// Monitor maintains per-provider-dataset drift signals.
type Monitor struct {
	store store.Store
}

// NewMonitor creates a drift monitor backed by the store.
func NewMonitor(st store.Store) *Monitor {
	return &Monitor{store: st}
}

// RecordFetch updates the drift signal after one fetch. It returns true when
// the structural fingerprint changed from the previous fetch, which is
// surfaced to operators as a likely-breaking upstream change.
func (m *Monitor) RecordFetch(ctx context.Context, providerName, dataset string, obs []model.RawObservation, parseFailures int) (bool, error) {
	fp := Fingerprint(obs)
	now := time.Now().UTC()

	sig, err := m.store.GetDriftSignal(ctx, providerName, dataset)
	if err != nil {
		return false, eris.Wrap(err, "quality: load drift signal")
	}

	changed := false
	if sig == nil {
		sig = &model.DriftSignal{
			Provider:    providerName,
			Dataset:     dataset,
			Fingerprint: fp,
			AvgRowCount: float64(len(obs)),
		}
	} else {
		if sig.Fingerprint != fp {
			changed = true
			sig.FingerprintChangeCount++
			sig.Fingerprint = fp
		}
		sig.AvgRowCount = (1-rowcountSmoothing)*sig.AvgRowCount + rowcountSmoothing*float64(len(obs))
	}
	sig.LastFetchedAt = now
	sig.ParseFailureCount += parseFailures

	if err := m.store.SaveDriftSignal(ctx, sig); err != nil {
		return false, eris.Wrap(err, "quality: save drift signal")
	}

	if changed {
		zap.L().Warn("response shape changed, scraper may be stale",
			zap.String("provider", providerName),
			zap.String("dataset", dataset),
			zap.Int("change_count", sig.FingerprintChangeCount),
		)
	}
	return changed, nil
}

// Signals returns all drift signals.
func (m *Monitor) Signals(ctx context.Context) ([]model.DriftSignal, error) {
	return m.store.ListDriftSignals(ctx)
}
