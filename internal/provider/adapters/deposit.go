package adapters

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/fetcher"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/provider"
)

// DepositRatesOptions configures a deposit-rate table adapter. Several
// aggregator sites publish the same table shape (banks down, terms across),
// so one adapter serves them all.
type DepositRatesOptions struct {
	// Name is the provider identifier, e.g. "timo" or "24hmoney".
	Name string
	// URL is the current-day rate table page.
	URL string
	// ArchiveURL is a historical page template containing one %s that
	// receives a yyyy-mm-dd date. Empty disables backfill.
	ArchiveURL string
	// Series distinguishes rate products, e.g. "online" vs "counter".
	Series string
	// TableSelector locates the rate table. Defaults to "table".
	TableSelector string
}

// DepositRates scrapes a bank deposit rate table: one row per bank, one
// column per term, cells holding percentage strings.
type DepositRates struct {
	client *fetcher.Client
	opts   DepositRatesOptions
}

// NewDepositRates creates the adapter.
func NewDepositRates(client *fetcher.Client, opts DepositRatesOptions) *DepositRates {
	if opts.TableSelector == "" {
		opts.TableSelector = "table"
	}
	return &DepositRates{client: client, opts: opts}
}

func (p *DepositRates) Name() string           { return p.opts.Name }
func (p *DepositRates) Dataset() string        { return "deposit_" + p.opts.Series }
func (p *DepositRates) URL() string            { return p.opts.URL }
func (p *DepositRates) Kind() model.SourceKind { return model.SourceKindHTML }

func (p *DepositRates) Capabilities() model.ProviderCapability {
	return model.ProviderCapability{
		Provider:          p.Name(),
		FetchLatest:       true,
		FetchHistorical:   p.opts.ArchiveURL != "",
		BackfillSupported: p.opts.ArchiveURL != "",
		FailureModes: []string{
			"table markup changes break the selector",
			"banks appear and disappear from the table",
		},
	}
}

// FetchLatest scrapes the current page. The table shows today's rates, so
// the requested day is taken as the observed day.
func (p *DepositRates) FetchLatest(ctx context.Context, day time.Time) (*provider.FetchResult, error) {
	return p.scrape(ctx, p.opts.URL, model.Day(day))
}

// Backfill scrapes the archive page for each day in the range.
func (p *DepositRates) Backfill(ctx context.Context, start, end time.Time) (*provider.FetchResult, error) {
	if p.opts.ArchiveURL == "" {
		return nil, &provider.NotSupportedError{Provider: p.Name(), Operation: "backfill"}
	}

	result := &provider.FetchResult{}
	for day := model.Day(start); !day.After(model.Day(end)); day = day.AddDate(0, 0, 1) {
		url := fmt.Sprintf(p.opts.ArchiveURL, model.FormatDay(day))
		dayResult, err := p.scrape(ctx, url, day)
		if err != nil {
			return nil, err
		}
		result.Observations = append(result.Observations, dayResult.Observations...)
		result.ParseFailures += dayResult.ParseFailures
	}
	return result, nil
}

func (p *DepositRates) scrape(ctx context.Context, url string, day time.Time) (*provider.FetchResult, error) {
	body, err := p.client.Get(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: fetch", p.Name())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "%s: parse html", p.Name())
	}

	table := doc.Find(p.opts.TableSelector).First()
	if table.Length() == 0 {
		return nil, eris.Errorf("%s: rate table not found with selector %q", p.Name(), p.opts.TableSelector)
	}

	// Header row: first cell is the bank column, the rest are terms.
	var terms []string
	table.Find("thead th, tr:first-child th").Each(func(i int, th *goquery.Selection) {
		if i == 0 {
			return
		}
		if term, ok := normalizeTerm(th.Text()); ok {
			terms = append(terms, term)
		} else {
			terms = append(terms, "")
		}
	})
	if len(terms) == 0 {
		return nil, eris.Errorf("%s: rate table has no term header", p.Name())
	}

	result := &provider.FetchResult{}
	fetchedAt := time.Now().UTC()

	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		bank := bankCode(cells.First().Text())
		if bank == "" {
			result.ParseFailures++
			return
		}

		cells.Each(func(i int, td *goquery.Selection) {
			if i == 0 || i > len(terms) || terms[i-1] == "" {
				return
			}
			raw := strings.TrimSpace(td.Text())
			// A dash means the bank does not offer this term.
			if raw == "" || raw == "-" {
				return
			}
			value, err := parseRate(raw)
			if err != nil {
				zap.L().Warn("deposit table cell unparseable",
					zap.String("provider", p.Name()),
					zap.String("bank", bank),
					zap.String("raw", raw),
				)
				result.ParseFailures++
				return
			}

			result.Observations = append(result.Observations, model.RawObservation{
				Entity: model.EntityKey{
					Dataset: p.Dataset(),
					Bank:    bank,
					Series:  p.opts.Series,
					Term:    terms[i-1],
				},
				ObservedDay: day,
				Value:       value,
				RawValue:    raw,
				FetchedAt:   fetchedAt,
			})
		})
	})

	return result, nil
}
