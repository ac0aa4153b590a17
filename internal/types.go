package internal

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// BillingCycle is how often a subscription is charged
type BillingCycle string

const (
	CycleMonthly BillingCycle = "Monthly"
	CycleYearly  BillingCycle = "Yearly"
	CycleWeekly  BillingCycle = "Weekly"
)

// BillingCycles lists the supported cycles in display order
var BillingCycles = []BillingCycle{CycleMonthly, CycleYearly, CycleWeekly}

// ParseBillingCycle accepts any casing of a supported cycle. Empty input yields Monthly.
func ParseBillingCycle(s string) (BillingCycle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CycleMonthly, nil
	}
	for _, c := range BillingCycles {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unsupported billing cycle %q", s)
}

// Valid reports whether c is one of the supported cycles
func (c BillingCycle) Valid() bool {
	for _, known := range BillingCycles {
		if c == known {
			return true
		}
	}
	return false
}

// MonthlyFactor converts one charge of this cycle into a monthly equivalent
func (c BillingCycle) MonthlyFactor() decimal.Decimal {
	switch c {
	case CycleYearly:
		return decimal.NewFromInt(1).Div(decimal.NewFromInt(12))
	case CycleWeekly:
		return decimal.NewFromInt(52).Div(decimal.NewFromInt(12))
	default:
		return decimal.NewFromInt(1)
	}
}

// Subscription is a single recurring expense as persisted by a Store
type Subscription struct {
	ID            string
	Name          string
	Category      string
	Currency      CurrencyCode
	Amount        decimal.Decimal
	PaymentMethod string
	BillingCycle  BillingCycle
	Active        bool
	Notes         string
}

// NewSubscription is the unvalidated input to Ledger.Add.
// Currency and BillingCycle are raw strings so that validation can report on them.
type NewSubscription struct {
	Name          string
	Category      string
	Currency      string
	Amount        decimal.Decimal
	AmountText    string // raw amount as entered; when set, Validate parses it in place of Amount
	PaymentMethod string
	BillingCycle  string
	Active        *bool // nil means active
	Notes         string
}

// NormalizedRecord pairs a subscription with its amount in a target currency
type NormalizedRecord struct {
	Subscription Subscription
	Amount       decimal.Decimal // rounded to 2 places in Currency
	Currency     CurrencyCode
	Converted    bool // false when conversion failed and Amount is the original amount
}

// CategoryTotal is the sum of active subscriptions in one category
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// ConversionWarning records a conversion that fell back to the unconverted amount
type ConversionWarning struct {
	Subject string // subscription name, or "budget"
	From    CurrencyCode
	To      CurrencyCode
	Err     error
}

func (w ConversionWarning) String() string {
	return fmt.Sprintf("%s: could not convert %s to %s: %v", w.Subject, w.From, w.To, w.Err)
}

// Snapshot is a point-in-time view of the ledger in one display currency
type Snapshot struct {
	Currency     CurrencyCode
	Records      []NormalizedRecord
	Total        decimal.Decimal // active records only
	MonthlyTotal decimal.Decimal // active records, normalized to a monthly cycle
	Budget       decimal.Decimal // budget expressed in Currency
	Remaining    decimal.Decimal
	PercentUsed  decimal.Decimal
	HasPercent   bool // false when the budget is zero
	Categories   []CategoryTotal
	ActiveCount  int
	PausedCount  int
	Warnings     []ConversionWarning
}

// OverBudget reports whether active expenses exceed the budget
func (s Snapshot) OverBudget() bool {
	return s.Remaining.IsNegative()
}
