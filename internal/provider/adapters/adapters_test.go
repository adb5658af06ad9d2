package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/fetcher"
	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/resilience"
)

// testClient avoids retry backoff so failing-path tests stay fast.
func testClient() *fetcher.Client {
	return fetcher.New(fetcher.Options{Retry: resilience.RetryConfig{MaxAttempts: 1}})
}

func TestBankCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ngân hàng Quân đội", "ngan_hang_quan_doi"},
		{"Vietcombank", "vietcombank"},
		{"  BIDV  ", "bidv"},
		{"VPBank (Online)", "vpbank_online"},
		{"Sacombank - STB", "sacombank_stb"},
		{"Đông Á", "dong_a"},
		{"", ""},
		{"---", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, bankCode(c.in), "bankCode(%q)", c.in)
	}
}

func TestParseRate(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"4,25%", 4.25},
		{"4.25%", 4.25},
		{"4,25", 4.25},
		{" 5,9 % ", 5.9},
		{"0", 0},
		{"12,5", 12.5},
	}
	for _, c := range cases {
		got, err := parseRate(c.in)
		assert.NoError(t, err, "parseRate(%q)", c.in)
		assert.InDelta(t, c.want, got, 1e-9, "parseRate(%q)", c.in)
	}

	for _, bad := range []string{"", "-", "%", "n/a", "4,2,5"} {
		_, err := parseRate(bad)
		assert.Error(t, err, "parseRate(%q)", bad)
	}
}

func TestParseRate_CommaAndPointAgree(t *testing.T) {
	a, err := parseRate("4,25")
	assert.NoError(t, err)
	b, err2 := parseRate("4.25")
	assert.NoError(t, err2)
	assert.Equal(t, a, b)
}

func TestNormalizeTerm(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Qua đêm", "on"},
		{"ON", "on"},
		{"Overnight", "on"},
		{"1 Tuần", "1w"},
		{"2 tuan", "2w"},
		{"1 Tháng", "1m"},
		{"3 thang", "3m"},
		{"6 Months", "6m"},
		{"12 M", "12m"},
		{"1 Năm", "1y"},
		{"5 year", "5y"},
	}
	for _, c := range cases {
		got, ok := normalizeTerm(c.in)
		assert.True(t, ok, "normalizeTerm(%q)", c.in)
		assert.Equal(t, c.want, got, "normalizeTerm(%q)", c.in)
	}

	for _, bad := range []string{"", "lãi suất", "3", "three months", "3 fortnight", "3m 2w"} {
		_, ok := normalizeTerm(bad)
		assert.False(t, ok, "normalizeTerm(%q)", bad)
	}
}

func TestStripDiacritics(t *testing.T) {
	assert.Equal(t, "Ngan hang Quan doi", stripDiacritics("Ngân hàng Quân đội"))
	assert.Equal(t, "Da Nang", stripDiacritics("Đà Nẵng"))
	assert.Equal(t, "plain ascii", stripDiacritics("plain ascii"))
}
