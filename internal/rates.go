package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// RateSource returns the exchange rate that converts one unit of from into to
type RateSource interface {
	Rate(ctx context.Context, from, to CurrencyCode) (decimal.Decimal, error)
}

// RateTable holds rates relative to a base currency (base itself is implicitly 1)
type RateTable struct {
	Base  CurrencyCode
	Rates map[CurrencyCode]decimal.Decimal
	AsOf  time.Time
}

// perBase returns how many units of code one unit of Base buys
func (t RateTable) perBase(code CurrencyCode) (decimal.Decimal, bool) {
	if code == t.Base {
		return decimal.NewFromInt(1), true
	}
	r, ok := t.Rates[code]
	if !ok || !r.IsPositive() {
		return decimal.Zero, false
	}
	return r, true
}

// Cross computes the from->to rate through the base currency
func (t RateTable) Cross(from, to CurrencyCode) (decimal.Decimal, error) {
	f, ok := t.perBase(from)
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for %s in %s table", from, t.Base)
	}
	tt, ok := t.perBase(to)
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate for %s in %s table", to, t.Base)
	}
	return tt.Div(f), nil
}

// TableSource is a RateSource that can produce a whole table at once
type TableSource interface {
	Table(ctx context.Context) (RateTable, error)
}

// StaticRates serves a fixed table, typically from the config file
type StaticRates struct {
	table RateTable
}

func NewStaticRates(base CurrencyCode, rates map[CurrencyCode]decimal.Decimal) *StaticRates {
	return &StaticRates{table: RateTable{Base: base, Rates: rates}}
}

func (s *StaticRates) Table(ctx context.Context) (RateTable, error) {
	return s.table, nil
}

func (s *StaticRates) Rate(ctx context.Context, from, to CurrencyCode) (decimal.Decimal, error) {
	return s.table.Cross(from, to)
}

// failureTTL is how long a failed fetch is reported without asking upstream again
const failureTTL = 30 * time.Second

// CachedRates wraps a TableSource and keeps the last table for ttl.
// Concurrent refreshes are collapsed into one upstream fetch, and a failed
// fetch is remembered for failureTTL so one report does not retry per record.
type CachedRates struct {
	source TableSource
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	table     RateTable
	fetchedAt time.Time
	lastErr   error
	failedAt  time.Time
	group     singleflight.Group
}

func NewCachedRates(source TableSource, ttl time.Duration) *CachedRates {
	return &CachedRates{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *CachedRates) cached() (RateTable, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) <= c.ttl {
		return c.table, true, nil
	}
	if c.lastErr != nil && now.Sub(c.failedAt) <= failureTTL {
		return RateTable{}, true, c.lastErr
	}
	return RateTable{}, false, nil
}

func (c *CachedRates) Table(ctx context.Context) (RateTable, error) {
	if t, ok, err := c.cached(); ok {
		return t, err
	}

	v, err, _ := c.group.Do("table", func() (any, error) {
		t, err := c.source.Table(ctx)
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.lastErr = err
			c.failedAt = c.now()
			return RateTable{}, err
		}
		c.table = t
		c.fetchedAt = c.now()
		c.lastErr = nil
		return t, nil
	})
	if err != nil {
		return RateTable{}, err
	}
	return v.(RateTable), nil
}

func (c *CachedRates) Rate(ctx context.Context, from, to CurrencyCode) (decimal.Decimal, error) {
	t, err := c.Table(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return t.Cross(from, to)
}

// NewRateSource builds the rate source selected in cfg
func NewRateSource(cfg RatesConfig) RateSource {
	switch cfg.Source {
	case RatesStatic:
		return NewStaticRates(cfg.Base, cfg.Table)
	default:
		return NewCachedRates(NewECBRates(cfg.URL, cfg.Timeout, time.Second), cfg.CacheTTL)
	}
}
