package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

func fpObs(bank, term string, value float64, raw string) model.RawObservation {
	return model.RawObservation{
		Entity: model.EntityKey{
			Dataset: "deposit_online",
			Bank:    bank,
			Series:  "online",
			Term:    term,
		},
		ObservedDay: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Value:       value,
		RawValue:    raw,
	}
}

func TestFingerprint_StableAcrossValueChanges(t *testing.T) {
	a := Fingerprint([]model.RawObservation{
		fpObs("timo", "6m", 4.5, "4,5%"),
		fpObs("timo", "12m", 4.9, "4,9%"),
	})
	b := Fingerprint([]model.RawObservation{
		fpObs("timo", "6m", 4.7, "4,7%"),
		fpObs("timo", "12m", 5.1, "5,1%"),
	})
	assert.Equal(t, a, b)
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := Fingerprint([]model.RawObservation{
		fpObs("timo", "6m", 4.5, "4,5%"),
		fpObs("timo", "12m", 4.9, "4,9%"),
	})
	b := Fingerprint([]model.RawObservation{
		fpObs("timo", "12m", 4.9, "4,9%"),
		fpObs("timo", "6m", 4.5, "4,5%"),
	})
	assert.Equal(t, a, b)
}

func TestFingerprint_MovesWhenEntitySetChanges(t *testing.T) {
	a := Fingerprint([]model.RawObservation{
		fpObs("timo", "6m", 4.5, "4,5%"),
		fpObs("timo", "12m", 4.9, "4,9%"),
	})
	b := Fingerprint([]model.RawObservation{
		fpObs("timo", "6m", 4.5, "4,5%"),
	})
	assert.NotEqual(t, a, b)
}

func TestFingerprint_MovesWhenRawPresenceChanges(t *testing.T) {
	a := Fingerprint([]model.RawObservation{fpObs("timo", "6m", 4.5, "4,5%")})
	b := Fingerprint([]model.RawObservation{fpObs("timo", "6m", 4.5, "")})
	assert.NotEqual(t, a, b)
}

func TestFingerprint_Empty(t *testing.T) {
	assert.NotEmpty(t, Fingerprint(nil))
	assert.Equal(t, Fingerprint(nil), Fingerprint([]model.RawObservation{}))
}
