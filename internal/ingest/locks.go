package ingest

import (
	"fmt"
	"sync"
)

// LockContentionError is returned when a trigger arrives while a run for the
// same provider is already in flight. It is rejected immediately rather than
// queued; the caller may retry later.
type LockContentionError struct {
	Provider string
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("a run for provider %s is already in progress", e.Provider)
}

// providerLocks hands out non-blocking per-provider run locks. It is the
// only cross-run shared mutable resource; different providers run fully
// independently.
type providerLocks struct {
	mu      sync.Mutex
	running map[string]bool
}

func newProviderLocks() *providerLocks {
	return &providerLocks{running: make(map[string]bool)}
}

// tryAcquire takes the lock for a provider, or fails without blocking.
func (l *providerLocks) tryAcquire(provider string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running[provider] {
		return false
	}
	l.running[provider] = true
	return true
}

func (l *providerLocks) release(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.running, provider)
}
