// Package adapters holds the concrete provider implementations. Each one
// wraps a single upstream (JSON endpoint, HTML table, or XLSX download),
// normalizes its rows into observations, and reports its capabilities
// truthfully so the orchestrator can pick an accumulation strategy.
package adapters

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics folds Vietnamese bank names to plain ASCII. đ/Đ carry no
// combining mark, so they need an explicit replacement.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ReplaceAll(out, "đ", "d")
	out = strings.ReplaceAll(out, "Đ", "D")
	return out
}

// bankCode derives a stable entity-key segment from a display name:
// diacritics stripped, lowercased, runs of non-alphanumerics collapsed to
// single underscores. "Ngân hàng Quân đội" becomes "ngan_hang_quan_doi".
func bankCode(name string) string {
	s := strings.ToLower(stripDiacritics(strings.TrimSpace(name)))
	var b strings.Builder
	lastUnderscore := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// parseRate converts an upstream rate string to a float. Vietnamese sites
// mix decimal commas and points and often append a percent sign; the value
// goes through decimal so "4,25" and "4.25" parse to exactly the same
// number.
func parseRate(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" || s == "-" {
		return 0, eris.Errorf("adapters: empty rate value %q", raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, eris.Wrapf(err, "adapters: parse rate %q", raw)
	}
	f, _ := d.Float64()
	return f, nil
}
