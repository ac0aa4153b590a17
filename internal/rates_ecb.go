package internal

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// DefaultECBURL is the European Central Bank daily reference rate feed (EUR based)
const DefaultECBURL = "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"

// ecbEnvelope mirrors the eurofxref XML layout:
//
//	<Cube><Cube time="2025-01-15"><Cube currency="USD" rate="1.03"/>...</Cube></Cube>
type ecbEnvelope struct {
	Cube struct {
		Day struct {
			Time  string `xml:"time,attr"`
			Rates []struct {
				Currency string `xml:"currency,attr"`
				Rate     string `xml:"rate,attr"`
			} `xml:"Cube"`
		} `xml:"Cube"`
	} `xml:"Cube"`
}

// ECBRates fetches reference rates from the ECB feed.
// Upstream requests are throttled by limiter; wrap in CachedRates for reuse.
type ECBRates struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

func NewECBRates(url string, timeout time.Duration, minInterval time.Duration) *ECBRates {
	if url == "" {
		url = DefaultECBURL
	}
	return &ECBRates{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

func (e *ECBRates) Table(ctx context.Context) (RateTable, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return RateTable{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return RateTable{}, fmt.Errorf("building request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return RateTable{}, fmt.Errorf("fetching rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RateTable{}, fmt.Errorf("fetching rates: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return RateTable{}, fmt.Errorf("reading rates: %w", err)
	}
	return parseECB(body)
}

func (e *ECBRates) Rate(ctx context.Context, from, to CurrencyCode) (decimal.Decimal, error) {
	t, err := e.Table(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return t.Cross(from, to)
}

func parseECB(data []byte) (RateTable, error) {
	var env ecbEnvelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return RateTable{}, fmt.Errorf("parsing rates: %w", err)
	}

	table := RateTable{Base: EUR, Rates: make(map[CurrencyCode]decimal.Decimal)}
	if env.Cube.Day.Time != "" {
		if t, err := time.Parse("2006-01-02", env.Cube.Day.Time); err == nil {
			table.AsOf = t
		}
	}
	for _, r := range env.Cube.Day.Rates {
		v, err := decimal.NewFromString(r.Rate)
		if err != nil || !v.IsPositive() {
			continue
		}
		table.Rates[CurrencyCode(r.Currency)] = v
	}
	if len(table.Rates) == 0 {
		return RateTable{}, fmt.Errorf("parsing rates: no rates in feed")
	}
	return table, nil
}
