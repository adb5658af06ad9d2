package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/fetcher"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/provider"
)

// DefaultBondAuctionURL is the exchange's auction-results export. The two
// %s verbs receive the from and to dates as yyyy-mm-dd.
const DefaultBondAuctionURL = "https://hnx.vn/co/bond-auction/results.xlsx?from=%s&to=%s"

// BondAuction downloads government bond auction results as an XLSX export.
// The upstream accepts arbitrary date ranges, so both daily accumulation
// and backfill work.
type BondAuction struct {
	client      *fetcher.Client
	urlTemplate string
}

// NewBondAuction creates the adapter. An empty urlTemplate selects the
// default endpoint.
func NewBondAuction(client *fetcher.Client, urlTemplate string) *BondAuction {
	if urlTemplate == "" {
		urlTemplate = DefaultBondAuctionURL
	}
	return &BondAuction{client: client, urlTemplate: urlTemplate}
}

func (p *BondAuction) Name() string           { return "hnx_bond_auction" }
func (p *BondAuction) Dataset() string        { return "bond_auction" }
func (p *BondAuction) URL() string            { return p.urlTemplate }
func (p *BondAuction) Kind() model.SourceKind { return model.SourceKindXLSX }

func (p *BondAuction) Capabilities() model.ProviderCapability {
	return model.ProviderCapability{
		Provider:          p.Name(),
		FetchLatest:       true,
		FetchHistorical:   true,
		BackfillSupported: true,
		FailureModes: []string{
			"no auctions on a given day yields an empty workbook",
			"column layout changes with exchange releases",
		},
	}
}

// FetchLatest downloads the single-day export for the requested day.
func (p *BondAuction) FetchLatest(ctx context.Context, day time.Time) (*provider.FetchResult, error) {
	d := model.Day(day)
	return p.fetchRange(ctx, d, d)
}

// Backfill downloads the export for the whole range in one request.
func (p *BondAuction) Backfill(ctx context.Context, start, end time.Time) (*provider.FetchResult, error) {
	return p.fetchRange(ctx, model.Day(start), model.Day(end))
}

func (p *BondAuction) fetchRange(ctx context.Context, start, end time.Time) (*provider.FetchResult, error) {
	url := fmt.Sprintf(p.urlTemplate, model.FormatDay(start), model.FormatDay(end))
	body, err := p.client.Get(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "hnx_bond_auction: fetch")
	}

	rows, err := fetcher.ReadXLSX(body, fetcher.XLSXOptions{SkipRows: 1})
	if err != nil {
		return nil, eris.Wrap(err, "hnx_bond_auction: read workbook")
	}

	result := &provider.FetchResult{}
	fetchedAt := time.Now().UTC()

	// Columns: auction date, issuer, term, winning yield. Anything after
	// that (volume, bid counts) is ignored.
	for _, row := range rows {
		if len(row) < 4 {
			if len(row) > 0 {
				result.ParseFailures++
			}
			continue
		}

		observed, err := time.Parse("02/01/2006", strings.TrimSpace(row[0]))
		if err != nil {
			zap.L().Warn("hnx_bond_auction: bad auction date", zap.String("raw", row[0]))
			result.ParseFailures++
			continue
		}
		observed = model.Day(observed)
		if observed.Before(start) || observed.After(end) {
			continue
		}

		issuer := bankCode(row[1])
		term, ok := normalizeTerm(row[2])
		if !ok {
			zap.L().Warn("hnx_bond_auction: unrecognized term", zap.String("term", row[2]))
			result.ParseFailures++
			continue
		}
		value, err := parseRate(row[3])
		if err != nil {
			zap.L().Warn("hnx_bond_auction: bad yield", zap.String("raw", row[3]), zap.Error(err))
			result.ParseFailures++
			continue
		}

		result.Observations = append(result.Observations, model.RawObservation{
			Entity: model.EntityKey{
				Dataset: p.Dataset(),
				Bank:    issuer,
				Series:  "auction_yield",
				Term:    term,
			},
			ObservedDay: observed,
			Value:       value,
			RawValue:    row[3],
			FetchedAt:   fetchedAt,
		})
	}

	return result, nil
}
