package internal

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// testRates is an EUR table with exact cross rates: GBP->USD = 1.5, RON->EUR = 0.2
func testRates() *StaticRates {
	return NewStaticRates(EUR, map[CurrencyCode]decimal.Decimal{
		GBP: dec("0.8"),
		USD: dec("1.2"),
		RON: dec("5"),
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sub(name, category string, currency CurrencyCode, amount string) Subscription {
	return Subscription{
		ID:            name + "-id",
		Name:          name,
		Category:      category,
		Currency:      currency,
		Amount:        dec(amount),
		PaymentMethod: "Card",
		BillingCycle:  CycleMonthly,
		Active:        true,
	}
}

func candidate(name, category, currency, amount, method string) NewSubscription {
	a, err := decimal.NewFromString(amount)
	if err != nil {
		a = decimal.Zero
	}
	return NewSubscription{
		Name:          name,
		Category:      category,
		Currency:      currency,
		Amount:        a,
		PaymentMethod: method,
	}
}

// newTestLedger returns a ledger over a CSV store in a temp dir
func newTestLedger(t *testing.T, cfg *BudgetConfig) (*Ledger, *CSVStore) {
	t.Helper()
	store := NewCSVStore(filepath.Join(t.TempDir(), "subscriptions.csv"))
	return NewLedger(store, NewConverter(testRates()), cfg, zerolog.New(io.Discard)), store
}

func budgetConfig(amount string, budgetCurrency, display CurrencyCode) *BudgetConfig {
	cfg := DefaultBudgetConfig()
	cfg.BudgetAmount = dec(amount)
	cfg.BudgetCurrency = budgetCurrency
	cfg.DisplayCurrency = display
	return cfg
}

// failingRates fails every lookup and counts calls
type failingRates struct {
	calls int
}

func (f *failingRates) Rate(ctx context.Context, from, to CurrencyCode) (decimal.Decimal, error) {
	f.calls++
	return decimal.Zero, errors.New("rate service unavailable")
}

// memStore is an in-memory Store with injectable write failures
type memStore struct {
	subs     []Subscription
	loadErr  error
	writeErr error
}

func (m *memStore) Load(ctx context.Context) ([]Subscription, error) {
	if m.loadErr != nil {
		return []Subscription{}, m.loadErr
	}
	out := make([]Subscription, len(m.subs))
	copy(out, m.subs)
	return out, nil
}

func (m *memStore) Append(ctx context.Context, s Subscription) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.subs = append(m.subs, s)
	return nil
}

func (m *memStore) ReplaceAll(ctx context.Context, subs []Subscription) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.subs = append([]Subscription(nil), subs...)
	return nil
}
