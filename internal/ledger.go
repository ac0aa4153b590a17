package internal

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Budget is a spending ceiling in its own currency
type Budget struct {
	Amount   decimal.Decimal
	Currency CurrencyCode
}

// Ledger turns stored subscriptions and the budget config into normalized views.
// All collaborators are passed in; there is no package-level state.
type Ledger struct {
	store Store
	conv  *Converter
	cfg   *BudgetConfig
	log   zerolog.Logger
}

func NewLedger(store Store, conv *Converter, cfg *BudgetConfig, log zerolog.Logger) *Ledger {
	if cfg == nil {
		cfg = DefaultBudgetConfig()
	}
	return &Ledger{
		store: store,
		conv:  conv,
		cfg:   cfg,
		log:   log.With().Str("component", "ledger").Logger(),
	}
}

// Config returns the configuration the ledger currently uses
func (l *Ledger) Config() *BudgetConfig {
	return l.cfg
}

// Reconfigure swaps in a freshly loaded or saved configuration
func (l *Ledger) Reconfigure(cfg *BudgetConfig) {
	if cfg != nil {
		l.cfg = cfg
	}
}

// Load returns all stored records. On a load failure the error is logged and
// returned together with an empty slice, so callers can carry on with no data.
func (l *Ledger) Load(ctx context.Context) ([]Subscription, error) {
	subs, err := l.store.Load(ctx)
	if err != nil {
		l.log.Error().Err(err).Msg("Failed to load subscriptions, continuing with no data")
		return []Subscription{}, err
	}
	l.log.Debug().Int("count", len(subs)).Msg("Loaded subscriptions")
	return subs, nil
}

// Normalize converts every record into target, rounding each amount to 2 places.
// A failed conversion keeps the original amount and yields a warning.
func (l *Ledger) Normalize(ctx context.Context, records []Subscription, target CurrencyCode) ([]NormalizedRecord, []ConversionWarning) {
	out := make([]NormalizedRecord, 0, len(records))
	var warnings []ConversionWarning

	for _, rec := range records {
		converted, err := l.conv.Convert(ctx, rec.Amount, rec.Currency, target)
		if err != nil {
			warnings = append(warnings, l.warn(rec.Name, rec.Currency, target, err))
			out = append(out, NormalizedRecord{
				Subscription: rec,
				Amount:       rec.Amount.Round(2),
				Currency:     rec.Currency,
				Converted:    false,
			})
			continue
		}
		out = append(out, NormalizedRecord{
			Subscription: rec,
			Amount:       converted.Round(2),
			Currency:     target,
			Converted:    true,
		})
	}
	return out, warnings
}

func (l *Ledger) warn(subject string, from, to CurrencyCode, err error) ConversionWarning {
	l.log.Warn().
		Err(err).
		Str("subject", subject).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Conversion failed, using unconverted amount")
	return ConversionWarning{Subject: subject, From: from, To: to, Err: err}
}

// Total sums the normalized amounts
func Total(normalized []NormalizedRecord) decimal.Decimal {
	total := decimal.Zero
	for _, n := range normalized {
		total = total.Add(n.Amount)
	}
	return total
}

// BudgetIn converts the budget into currency. On failure the unconverted
// amount is returned with a warning.
func (l *Ledger) BudgetIn(ctx context.Context, budget Budget, currency CurrencyCode) (decimal.Decimal, []ConversionWarning) {
	converted, err := l.conv.Convert(ctx, budget.Amount, budget.Currency, currency)
	if err != nil {
		return budget.Amount, []ConversionWarning{l.warn("budget", budget.Currency, currency, err)}
	}
	return converted, nil
}

// RemainingBudget converts the budget into the expense currency and subtracts
// the expenses. A negative result means over budget.
func (l *Ledger) RemainingBudget(ctx context.Context, total decimal.Decimal, expenseCurrency CurrencyCode, budget Budget) (decimal.Decimal, []ConversionWarning) {
	available, warnings := l.BudgetIn(ctx, budget, expenseCurrency)
	return available.Sub(total).Round(2), warnings
}

// PercentUsed returns 100*total/budget rounded to 2 places.
// ok is false when the budget is zero and no percentage applies.
func PercentUsed(total, budgetInExpenseCurrency decimal.Decimal) (decimal.Decimal, bool) {
	if budgetInExpenseCurrency.IsZero() {
		return decimal.Zero, false
	}
	return total.Mul(hundred).Div(budgetInExpenseCurrency).Round(2), true
}

// ActiveOnly drops paused subscriptions
func ActiveOnly(records []Subscription) []Subscription {
	out := make([]Subscription, 0, len(records))
	for _, r := range records {
		if r.Active {
			out = append(out, r)
		}
	}
	return out
}

// AggregateByCategory sums active subscriptions per category in target,
// sorted by category name.
func (l *Ledger) AggregateByCategory(ctx context.Context, records []Subscription, target CurrencyCode) ([]CategoryTotal, []ConversionWarning) {
	normalized, warnings := l.Normalize(ctx, ActiveOnly(records), target)
	return sumByCategory(normalized), warnings
}

func sumByCategory(normalized []NormalizedRecord) []CategoryTotal {
	byCategory := make(map[string]*CategoryTotal)
	for _, n := range normalized {
		if !n.Subscription.Active {
			continue
		}
		ct, ok := byCategory[n.Subscription.Category]
		if !ok {
			ct = &CategoryTotal{Category: n.Subscription.Category, Total: decimal.Zero}
			byCategory[n.Subscription.Category] = ct
		}
		ct.Total = ct.Total.Add(n.Amount)
		ct.Count++
	}

	result := make([]CategoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		result = append(result, *ct)
	}
	sort.Slice(result, func(i, j int) bool {
		return strings.ToLower(result[i].Category) < strings.ToLower(result[j].Category)
	})
	return result
}

// Snapshot computes the full view of records in target: every record is
// listed, while totals, categories and budget figures cover active ones only.
func (l *Ledger) Snapshot(ctx context.Context, records []Subscription, target CurrencyCode) Snapshot {
	normalized, warnings := l.Normalize(ctx, records, target)

	var active []NormalizedRecord
	monthly := decimal.Zero
	for _, n := range normalized {
		if !n.Subscription.Active {
			continue
		}
		active = append(active, n)
		monthly = monthly.Add(n.Amount.Mul(n.Subscription.BillingCycle.MonthlyFactor()))
	}

	total := Total(active)
	budget := l.cfg.Budget()
	budgetIn, budgetWarnings := l.BudgetIn(ctx, budget, target)
	warnings = append(warnings, budgetWarnings...)
	percent, hasPercent := PercentUsed(total, budgetIn)

	return Snapshot{
		Currency:     target,
		Records:      normalized,
		Total:        total,
		MonthlyTotal: monthly.Round(2),
		Budget:       budgetIn.Round(2),
		Remaining:    budgetIn.Sub(total).Round(2),
		PercentUsed:  percent,
		HasPercent:   hasPercent,
		Categories:   sumByCategory(active),
		ActiveCount:  len(active),
		PausedCount:  len(normalized) - len(active),
		Warnings:     warnings,
	}
}

// Add validates a candidate, assigns it a new ID and appends it to the store
func (l *Ledger) Add(ctx context.Context, candidate NewSubscription) (Subscription, error) {
	sub, err := Validate(candidate)
	if err != nil {
		return Subscription{}, err
	}
	sub.ID = uuid.NewString()

	if err := l.store.Append(ctx, sub); err != nil {
		l.log.Error().Err(err).Str("name", sub.Name).Msg("Failed to add subscription")
		return Subscription{}, err
	}

	l.log.Info().
		Str("id", sub.ID).
		Str("name", sub.Name).
		Str("amount", sub.Amount.String()).
		Str("currency", string(sub.Currency)).
		Msg("Subscription added")
	return sub, nil
}

// Resolve maps a reference to a subscription ID. A reference is a full ID,
// a unique ID prefix, or a 1-based position in records.
func Resolve(records []Subscription, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", ErrNotFound)
	}

	for _, r := range records {
		if r.ID == ref {
			return r.ID, nil
		}
	}

	if pos, err := strconv.Atoi(ref); err == nil {
		if pos < 1 || pos > len(records) {
			return "", fmt.Errorf("%w: position %d (have %d)", ErrNotFound, pos, len(records))
		}
		return records[pos-1].ID, nil
	}

	var matches []string
	for _, r := range records {
		if strings.HasPrefix(r.ID, ref) {
			matches = append(matches, r.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %q matches %d subscriptions", ErrAmbiguous, ref, len(matches))
	}
}

// Delete removes the subscription with the given ID. Records after it move
// up one position.
func (l *Ledger) Delete(ctx context.Context, id string) (Subscription, error) {
	records, err := l.store.Load(ctx)
	if err != nil {
		return Subscription{}, err
	}

	idx := indexOf(records, id)
	if idx < 0 {
		return Subscription{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	removed := records[idx]

	if ks, ok := l.store.(KeyedStore); ok {
		err = ks.Delete(ctx, id)
	} else {
		remaining := make([]Subscription, 0, len(records)-1)
		remaining = append(remaining, records[:idx]...)
		remaining = append(remaining, records[idx+1:]...)
		err = l.store.ReplaceAll(ctx, remaining)
	}
	if err != nil {
		l.log.Error().Err(err).Str("id", id).Msg("Failed to delete subscription")
		return Subscription{}, err
	}

	l.log.Info().Str("id", id).Str("name", removed.Name).Msg("Subscription deleted")
	return removed, nil
}

// SetActive pauses or resumes the subscription with the given ID
func (l *Ledger) SetActive(ctx context.Context, id string, active bool) (Subscription, error) {
	records, err := l.store.Load(ctx)
	if err != nil {
		return Subscription{}, err
	}

	idx := indexOf(records, id)
	if idx < 0 {
		return Subscription{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated := make([]Subscription, len(records))
	copy(updated, records)
	updated[idx].Active = active

	if ks, ok := l.store.(KeyedStore); ok {
		err = ks.Update(ctx, updated[idx])
	} else {
		err = l.store.ReplaceAll(ctx, updated)
	}
	if err != nil {
		l.log.Error().Err(err).Str("id", id).Msg("Failed to update subscription")
		return Subscription{}, err
	}

	l.log.Info().Str("id", id).Bool("active", active).Msg("Subscription updated")
	return updated[idx], nil
}

func indexOf(records []Subscription, id string) int {
	for i, r := range records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// ImportRejection is a candidate that failed validation during an import
type ImportRejection struct {
	Row  int // 1-based index into the imported candidates
	Name string
	Err  error
}

// Import validates candidates and appends the valid ones in a single rewrite,
// so either all of them are persisted or none are. Invalid candidates are
// reported, not fatal.
func (l *Ledger) Import(ctx context.Context, candidates []NewSubscription, defaults ImportDefaults) ([]Subscription, []ImportRejection, error) {
	var added []Subscription
	var rejected []ImportRejection
	for i, c := range candidates {
		sub, err := Validate(defaults.apply(c))
		if err != nil {
			rejected = append(rejected, ImportRejection{Row: i + 1, Name: c.Name, Err: err})
			continue
		}
		sub.ID = uuid.NewString()
		added = append(added, sub)
	}
	if len(added) == 0 {
		return nil, rejected, nil
	}

	existing, err := l.store.Load(ctx)
	if err != nil {
		return nil, rejected, err
	}
	all := make([]Subscription, 0, len(existing)+len(added))
	all = append(all, existing...)
	all = append(all, added...)
	if err := l.store.ReplaceAll(ctx, all); err != nil {
		l.log.Error().Err(err).Int("count", len(added)).Msg("Failed to import subscriptions")
		return nil, rejected, err
	}

	l.log.Info().Int("added", len(added)).Int("rejected", len(rejected)).Msg("Subscriptions imported")
	return added, rejected, nil
}
