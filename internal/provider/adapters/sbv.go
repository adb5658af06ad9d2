package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/fetcher"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/provider"
)

// DefaultSBVInterbankURL is the central bank's published interbank rate feed.
const DefaultSBVInterbankURL = "https://www.sbv.gov.vn/api/interbank-rates/latest"

// SBVInterbank fetches State Bank of Vietnam interbank rates. The feed only
// exposes the current publication, so history is built by daily
// accumulation; backfill is truthfully unsupported.
type SBVInterbank struct {
	client *fetcher.Client
	url    string
}

// NewSBVInterbank creates the adapter. An empty url selects the default
// endpoint.
func NewSBVInterbank(client *fetcher.Client, url string) *SBVInterbank {
	if url == "" {
		url = DefaultSBVInterbankURL
	}
	return &SBVInterbank{client: client, url: url}
}

func (p *SBVInterbank) Name() string           { return "sbv_interbank" }
func (p *SBVInterbank) Dataset() string        { return "interbank_rate" }
func (p *SBVInterbank) URL() string            { return p.url }
func (p *SBVInterbank) Kind() model.SourceKind { return model.SourceKindJSON }

func (p *SBVInterbank) Capabilities() model.ProviderCapability {
	return model.ProviderCapability{
		Provider:          p.Name(),
		FetchLatest:       true,
		FetchHistorical:   false,
		BackfillSupported: false,
		FailureModes: []string{
			"publication lags the observation day by one or two days",
			"feed schema changes without notice",
		},
	}
}

// sbvPayload is the upstream response shape. Dates use the dd/mm/yyyy
// convention common to Vietnamese government sites.
type sbvPayload struct {
	Date  string `json:"date"`
	Items []struct {
		Term string `json:"term"`
		Rate string `json:"rate"`
	} `json:"items"`
}

// FetchLatest fetches the current publication. The day argument is only a
// hint; the observed day always comes from the payload, and callers handle
// a mismatch as a warning.
func (p *SBVInterbank) FetchLatest(ctx context.Context, day time.Time) (*provider.FetchResult, error) {
	body, err := p.client.Get(ctx, p.url)
	if err != nil {
		return nil, eris.Wrap(err, "sbv_interbank: fetch")
	}

	var payload sbvPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, eris.Wrap(err, "sbv_interbank: decode payload")
	}

	observed, err := time.Parse("02/01/2006", strings.TrimSpace(payload.Date))
	warnDate := ""
	if err != nil {
		observed = model.Day(day)
		warnDate = fmt.Sprintf("unparseable publication date %q, assumed %s", payload.Date, model.FormatDay(observed))
	}

	result := &provider.FetchResult{}
	fetchedAt := time.Now().UTC()
	for _, item := range payload.Items {
		term, ok := normalizeTerm(item.Term)
		if !ok {
			zap.L().Warn("sbv_interbank: unrecognized term", zap.String("term", item.Term))
			result.ParseFailures++
			continue
		}
		value, err := parseRate(item.Rate)
		if err != nil {
			zap.L().Warn("sbv_interbank: bad rate", zap.String("rate", item.Rate), zap.Error(err))
			result.ParseFailures++
			continue
		}

		obs := model.RawObservation{
			Entity: model.EntityKey{
				Dataset: p.Dataset(),
				Bank:    "sbv",
				Series:  "interbank",
				Term:    term,
			},
			ObservedDay: model.Day(observed),
			Value:       value,
			RawValue:    item.Rate,
			FetchedAt:   fetchedAt,
		}
		if warnDate != "" {
			obs.ParseWarnings = append(obs.ParseWarnings, warnDate)
		}
		result.Observations = append(result.Observations, obs)
	}

	return result, nil
}

// Backfill is unsupported: the feed has no historical endpoint.
func (p *SBVInterbank) Backfill(ctx context.Context, start, end time.Time) (*provider.FetchResult, error) {
	return nil, &provider.NotSupportedError{Provider: p.Name(), Operation: "backfill"}
}

// normalizeTerm maps upstream tenor labels to stable entity-key segments:
// "Qua đêm" becomes "on", "1 Tuần" becomes "1w", "3 Tháng" becomes "3m".
func normalizeTerm(raw string) (string, bool) {
	s := strings.ToLower(stripDiacritics(strings.TrimSpace(raw)))
	if s == "" {
		return "", false
	}
	if s == "qua dem" || s == "on" || s == "overnight" {
		return "on", true
	}

	fields := strings.Fields(s)
	if len(fields) != 2 {
		return "", false
	}
	n := fields[0]
	for _, r := range n {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	switch fields[1] {
	case "tuan", "week", "weeks", "w":
		return n + "w", true
	case "thang", "month", "months", "m":
		return n + "m", true
	case "nam", "year", "years", "y":
		return n + "y", true
	}
	return "", false
}
