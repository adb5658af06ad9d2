package canon

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/store"
)

// Canonicalizer computes canonical observations from raw observations and
// the priority cache. The "latest" snapshot table and on-demand history
// queries both go through the same Winner/Rank ordering.
type Canonicalizer struct {
	store store.Store
	prio  *PriorityCache
}

// New creates a Canonicalizer.
func New(st store.Store, prio *PriorityCache) *Canonicalizer {
	return &Canonicalizer{store: st, prio: prio}
}

// Resolve computes the canonical observation for one entity-day at query
// time. Returns nil when no raw observation exists for the key.
func (c *Canonicalizer) Resolve(ctx context.Context, entity model.EntityKey, day time.Time) (*model.CanonicalObservation, error) {
	rows, err := c.store.ObservationsForEntityDay(ctx, entity, day)
	if err != nil {
		return nil, eris.Wrap(err, "canon: resolve")
	}
	winner, ok := Winner(rows, c.prio.Priority)
	if !ok {
		return nil, nil
	}
	return &winner, nil
}

// ResolveRange computes the canonical time series for an entity between
// start and end inclusive, one row per day with data.
func (c *Canonicalizer) ResolveRange(ctx context.Context, entity model.EntityKey, start, end time.Time) ([]model.CanonicalObservation, error) {
	rows, err := c.store.ObservationsForEntityRange(ctx, entity, start, end)
	if err != nil {
		return nil, eris.Wrap(err, "canon: resolve range")
	}

	byDay := make(map[string][]model.RawObservation)
	for _, r := range rows {
		k := model.FormatDay(r.ObservedDay)
		byDay[k] = append(byDay[k], r)
	}

	out := make([]model.CanonicalObservation, 0, len(byDay))
	for _, group := range byDay {
		if winner, ok := Winner(group, c.prio.Priority); ok {
			out = append(out, winner)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedDay.Before(out[j].ObservedDay) })
	return out, nil
}

// ResolveDatasetDay computes canonical observations for every entity of a
// dataset on one day.
func (c *Canonicalizer) ResolveDatasetDay(ctx context.Context, dataset string, day time.Time) ([]model.CanonicalObservation, error) {
	rows, err := c.store.ObservationsForDatasetDay(ctx, dataset, day)
	if err != nil {
		return nil, eris.Wrap(err, "canon: resolve dataset day")
	}

	byEntity := make(map[string][]model.RawObservation)
	for _, r := range rows {
		k := r.Entity.String()
		byEntity[k] = append(byEntity[k], r)
	}

	out := make([]model.CanonicalObservation, 0, len(byEntity))
	for _, group := range byEntity {
		if winner, ok := Winner(group, c.prio.Priority); ok {
			out = append(out, winner)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entity.String() < out[j].Entity.String() })
	return out, nil
}

// RefreshSnapshot materializes the canonical rows for a dataset-day into
// the snapshot table used for "latest" dashboard reads. The rows written
// are exactly what ResolveDatasetDay returns.
func (c *Canonicalizer) RefreshSnapshot(ctx context.Context, dataset string, day time.Time) (int, error) {
	canonRows, err := c.ResolveDatasetDay(ctx, dataset, day)
	if err != nil {
		return 0, err
	}
	if len(canonRows) == 0 {
		return 0, nil
	}
	if err := c.store.ReplaceCanonical(ctx, canonRows); err != nil {
		return 0, eris.Wrap(err, "canon: refresh snapshot")
	}
	return len(canonRows), nil
}
