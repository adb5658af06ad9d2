package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string                           { return s.name }
func (s stubProvider) Dataset() string                        { return "deposit_online" }
func (s stubProvider) URL() string                            { return "https://example.vn" }
func (s stubProvider) Kind() model.SourceKind                 { return model.SourceKindHTML }
func (s stubProvider) Capabilities() model.ProviderCapability { return model.ProviderCapability{} }

func (s stubProvider) FetchLatest(context.Context, time.Time) (*FetchResult, error) {
	return &FetchResult{}, nil
}
func (s stubProvider) Backfill(context.Context, time.Time, time.Time) (*FetchResult, error) {
	return nil, &NotSupportedError{Provider: s.name, Operation: "backfill"}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("timo"))
	assert.Empty(t, r.List())

	r.Register(stubProvider{name: "timo"})
	r.Register(stubProvider{name: "24hmoney"})
	r.Register(stubProvider{name: "sbv_interbank"})

	require.NotNil(t, r.Get("timo"))

	names := make([]string, 0, 3)
	for _, p := range r.List() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"24hmoney", "sbv_interbank", "timo"}, names)
}

func TestRegistry_RegisterReplacesByName(t *testing.T) {
	r := NewRegistry()
	r.Register(stubProvider{name: "timo"})
	r.Register(stubProvider{name: "timo"})
	assert.Len(t, r.List(), 1)
}

func TestNotSupportedError(t *testing.T) {
	var err error = &NotSupportedError{Provider: "sbv_interbank", Operation: "backfill"}
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.Contains(t, err.Error(), "sbv_interbank")

	var typed *NotSupportedError
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, "backfill", typed.Operation)
}
