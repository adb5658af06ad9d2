package canon

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/store"
)

// PriorityCache is a read-mostly view of source priorities. Admin edits to
// the sources table take effect for subsequent canonicalization calls after
// Reload; in-flight runs are never restarted.
type PriorityCache struct {
	mu         sync.RWMutex
	store      store.Store
	priorities map[int64]int
}

// NewPriorityCache creates an empty cache; call Reload before first use.
func NewPriorityCache(st store.Store) *PriorityCache {
	return &PriorityCache{
		store:      st,
		priorities: make(map[int64]int),
	}
}

// Reload re-reads all source priorities from the store.
func (c *PriorityCache) Reload(ctx context.Context) error {
	sources, err := c.store.ListSources(ctx)
	if err != nil {
		return eris.Wrap(err, "canon: reload priorities")
	}

	fresh := make(map[int64]int, len(sources))
	for _, s := range sources {
		fresh[s.ID] = s.Priority
	}

	c.mu.Lock()
	c.priorities = fresh
	c.mu.Unlock()
	return nil
}

// Priority returns the registry priority for a source, or
// model.PriorityUnset when the source has no entry.
func (c *PriorityCache) Priority(sourceID int64) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.priorities[sourceID]; ok {
		return p
	}
	return model.PriorityUnset
}
