package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/provider"
)

const depositTable = `<html><body>
<table class="rates">
  <thead>
    <tr><th>Ngân hàng</th><th>1 Tháng</th><th>6 Tháng</th><th>12 Tháng</th></tr>
  </thead>
  <tbody>
    <tr><td>Vietcombank</td><td>1,6%</td><td>2,9%</td><td>4,6%</td></tr>
    <tr><td>Ngân hàng Quân đội</td><td>2,9%</td><td>-</td><td>4,9%</td></tr>
    <tr><td>ACB</td><td>junk</td><td>3,0%</td><td></td></tr>
  </tbody>
</table>
</body></html>`

func depositServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDepositRates_FetchLatest(t *testing.T) {
	srv := depositServer(t, depositTable)
	p := NewDepositRates(testClient(), DepositRatesOptions{
		Name:   "timo",
		URL:    srv.URL,
		Series: "online",
	})

	day := time.Date(2026, 1, 6, 9, 0, 0, 0, time.UTC)
	result, err := p.FetchLatest(context.Background(), day)
	require.NoError(t, err)

	// Dashes and empty cells are offers that do not exist, only "junk" is a
	// parse failure.
	assert.Equal(t, 1, result.ParseFailures)
	require.Len(t, result.Observations, 6)

	byKey := map[string]float64{}
	for _, o := range result.Observations {
		assert.Equal(t, "deposit_online", o.Entity.Dataset)
		assert.Equal(t, "online", o.Entity.Series)
		assert.Equal(t, model.Day(day), o.ObservedDay)
		byKey[o.Entity.Bank+"/"+o.Entity.Term] = o.Value
	}
	assert.InDelta(t, 1.6, byKey["vietcombank/1m"], 1e-9)
	assert.InDelta(t, 4.6, byKey["vietcombank/12m"], 1e-9)
	assert.InDelta(t, 2.9, byKey["ngan_hang_quan_doi/1m"], 1e-9)
	assert.InDelta(t, 4.9, byKey["ngan_hang_quan_doi/12m"], 1e-9)
	assert.InDelta(t, 3.0, byKey["acb/6m"], 1e-9)

	_, hasDash := byKey["ngan_hang_quan_doi/6m"]
	assert.False(t, hasDash)
}

func TestDepositRates_UnrecognizedHeaderColumnIsSkipped(t *testing.T) {
	srv := depositServer(t, `<table>
	  <thead><tr><th>Bank</th><th>6 Tháng</th><th>Khuyến mãi</th></tr></thead>
	  <tbody><tr><td>ACB</td><td>2,9%</td><td>quà tặng</td></tr></tbody>
	</table>`)
	p := NewDepositRates(testClient(), DepositRatesOptions{Name: "timo", URL: srv.URL, Series: "online"})

	result, err := p.FetchLatest(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, result.Observations, 1)
	assert.Equal(t, "6m", result.Observations[0].Entity.Term)
	assert.Equal(t, 0, result.ParseFailures)
}

func TestDepositRates_MissingTableFails(t *testing.T) {
	srv := depositServer(t, `<html><body><p>no rates today</p></body></html>`)
	p := NewDepositRates(testClient(), DepositRatesOptions{Name: "timo", URL: srv.URL, Series: "online"})

	_, err := p.FetchLatest(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate table not found")
}

func TestDepositRates_BackfillDisabledWithoutArchive(t *testing.T) {
	p := NewDepositRates(testClient(), DepositRatesOptions{Name: "timo", URL: "https://timo.vn/rates", Series: "online"})
	caps := p.Capabilities()
	assert.False(t, caps.BackfillSupported)
	assert.False(t, caps.FetchHistorical)

	_, err := p.Backfill(context.Background(), time.Now(), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrNotSupported)
}

func TestDepositRates_BackfillWalksArchiveDays(t *testing.T) {
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Query().Get("date"))
		w.Write([]byte(depositTable)) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewDepositRates(testClient(), DepositRatesOptions{
		Name:       "24hmoney",
		URL:        srv.URL,
		ArchiveURL: srv.URL + "/archive?date=%s",
		Series:     "online",
	})
	assert.True(t, p.Capabilities().BackfillSupported)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	result, err := p.Backfill(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, []string{"2026-01-01", "2026-01-02", "2026-01-03"}, requested)
	// 6 parsed cells per day, observed day stamped from the archive date.
	assert.Len(t, result.Observations, 18)
	days := map[string]int{}
	for _, o := range result.Observations {
		days[model.FormatDay(o.ObservedDay)]++
	}
	assert.Equal(t, map[string]int{"2026-01-01": 6, "2026-01-02": 6, "2026-01-03": 6}, days)
	assert.Equal(t, 3, result.ParseFailures)
}
