// Package provider defines the contract between the ingestion engine and
// the per-source scraping adapters.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

// ErrNotSupported is returned when an operation is outside a provider's
// declared capabilities. A latest-only provider must return it from
// Backfill rather than silently returning empty or wrong data; the
// orchestrator relies on truthful capability reporting to pick an
// accumulation strategy.
var ErrNotSupported = errors.New("operation not supported by provider")

// NotSupportedError carries the provider and operation for surfacing to the
// caller who triggered the run.
type NotSupportedError struct {
	Provider  string
	Operation string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("provider %s does not support %s", e.Provider, e.Operation)
}

func (e *NotSupportedError) Unwrap() error {
	return ErrNotSupported
}

// FetchResult is what an adapter hands back from one fetch: the parsed
// observations plus the count of rows the upstream presented that could not
// be parsed (recorded, not fatal, when other rows were recoverable).
type FetchResult struct {
	Observations  []model.RawObservation
	ParseFailures int
}

// Provider wraps one external data source. Implementations retry transient
// failures internally (resilience.DoVal); the orchestrator only sees the
// final outcome of an attempt.
type Provider interface {
	// Name returns the stable provider identifier, e.g. "sbv_interbank".
	Name() string

	// Dataset returns the dataset this provider feeds, e.g. "interbank_rate".
	Dataset() string

	// Capabilities reports what this provider can truthfully do.
	Capabilities() model.ProviderCapability

	// URL returns the upstream endpoint, recorded on the source row.
	URL() string

	// Kind returns the wire format served by the upstream.
	Kind() model.SourceKind

	// FetchLatest fetches the provider's current snapshot. Providers
	// without historical access always return upstream's "today" regardless
	// of day; callers treat an observed-day mismatch as a warning.
	FetchLatest(ctx context.Context, day time.Time) (*FetchResult, error)

	// Backfill fetches a historical range inclusive of both endpoints.
	// Providers without historical access return a NotSupportedError.
	Backfill(ctx context.Context, start, end time.Time) (*FetchResult, error)
}

// Registry holds the registered providers behind a lock so the HTTP layer
// and the background scheduler share one instance.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not registered.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered providers sorted by name, so daily runs and
// probe output are stable across invocations.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
