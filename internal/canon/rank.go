// Package canon resolves the single canonical value per entity-day from raw
// observations and source priorities.
package canon

import (
	"sort"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

// PriorityFunc returns the registry priority for a source id. Sources
// without a registry entry must map to model.PriorityUnset.
type PriorityFunc func(sourceID int64) int

// Rank orders candidate rows for one entity-day: priority ascending, then
// fetched_at descending, then row id descending. This is the only ordering
// used anywhere: the snapshot writer and the query-time resolver both call
// it, so the two paths cannot diverge on tie-breaks. Equal priority and
// equal fetched_at fall back to the higher row id, a deterministic but
// arbitrary choice documented as such.
func Rank(rows []model.RawObservation, prio PriorityFunc) []model.RawObservation {
	ranked := make([]model.RawObservation, len(rows))
	copy(ranked, rows)

	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := prio(ranked[i].SourceID), prio(ranked[j].SourceID)
		if pi != pj {
			return pi < pj
		}
		if !ranked[i].FetchedAt.Equal(ranked[j].FetchedAt) {
			return ranked[i].FetchedAt.After(ranked[j].FetchedAt)
		}
		return ranked[i].ID > ranked[j].ID
	})
	return ranked
}

// Winner returns the canonical row for one entity-day's candidates, or
// false when there are none.
func Winner(rows []model.RawObservation, prio PriorityFunc) (model.CanonicalObservation, bool) {
	if len(rows) == 0 {
		return model.CanonicalObservation{}, false
	}
	top := Rank(rows, prio)[0]
	return model.CanonicalObservation{
		Entity:          top.Entity,
		ObservedDay:     model.Day(top.ObservedDay),
		Value:           top.Value,
		WinningSourceID: top.SourceID,
	}, true
}
