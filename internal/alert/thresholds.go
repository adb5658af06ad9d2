// Package alert evaluates monitor and run health output against mutable
// thresholds and emits notification events. Delivery is a collaborator
// behind the Sender interface; evaluation itself is a pure function so it
// can be tested without a store or network.
package alert

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/store"
)

// Well-known alert codes. Thresholds for codes not in this list are ignored
// by Evaluate, so new codes can be configured ahead of a deploy.
const (
	CodeDriftFingerprint = "drift_fingerprint_change"
	CodeParseFailures    = "parse_failures"
	CodeDQError          = "dq_error"
	CodeRunFatal         = "run_fatal"
	CodeRunAnomaly       = "run_anomaly"
)

// ThresholdCache holds alert thresholds behind a lock, refreshable from the
// store. The HTTP layer triggers Reload after threshold edits; the scheduler
// reads whatever was loaded last.
type ThresholdCache struct {
	mu         sync.RWMutex
	store      store.Store
	thresholds map[string]model.AlertThreshold
}

// NewThresholdCache creates an empty cache. Call Reload before first use.
func NewThresholdCache(st store.Store) *ThresholdCache {
	return &ThresholdCache{
		store:      st,
		thresholds: make(map[string]model.AlertThreshold),
	}
}

// Reload replaces the cached thresholds with the store's current rows.
func (c *ThresholdCache) Reload(ctx context.Context) error {
	rows, err := c.store.ListAlertThresholds(ctx)
	if err != nil {
		return eris.Wrap(err, "alert: reload thresholds")
	}

	next := make(map[string]model.AlertThreshold, len(rows))
	for _, t := range rows {
		next[t.AlertCode] = t
	}

	c.mu.Lock()
	c.thresholds = next
	c.mu.Unlock()
	return nil
}

// Snapshot returns the cached thresholds sorted by alert code.
func (c *ThresholdCache) Snapshot() []model.AlertThreshold {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.AlertThreshold, 0, len(c.thresholds))
	for _, t := range c.thresholds {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AlertCode < out[j].AlertCode })
	return out
}

// paramInt reads an integer threshold parameter, falling back when the
// parameter is absent or malformed.
func paramInt(t model.AlertThreshold, key string, fallback int) int {
	raw, ok := t.Params[key]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
