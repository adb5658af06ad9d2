// Package quality watches what ingestion collects: structural drift in
// provider responses and rule-based data-quality checks over canonical data.
package quality

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

// Fingerprint hashes the structural shape of a fetch response: which entity
// keys appeared and which of them carried a raw value. Values themselves are
// excluded, so ordinary day-to-day data churn keeps the fingerprint stable
// while an upstream layout change (columns renamed, rows dropped) moves it.
func Fingerprint(obs []model.RawObservation) string {
	parts := make([]string, 0, len(obs))
	for _, o := range obs {
		shape := o.Entity.String()
		if o.RawValue != "" {
			shape += "+raw"
		}
		parts = append(parts, shape)
	}
	sort.Strings(parts)

	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])
}
