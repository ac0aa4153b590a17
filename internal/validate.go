package internal

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validate checks a candidate subscription and returns the first violated
// constraint. Fields are checked in a fixed order: name, category, currency,
// amount, billing cycle, payment method. On success it returns the
// trimmed, typed record (without ID).
func Validate(c NewSubscription) (Subscription, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return Subscription{}, &ValidationError{Field: "name", Message: "subscription name is required"}
	}

	category := strings.TrimSpace(c.Category)
	if category == "" {
		return Subscription{}, &ValidationError{Field: "category", Message: "category is required"}
	}

	code, err := ParseCurrencyCode(c.Currency)
	if err != nil {
		return Subscription{}, &ValidationError{Field: "currency", Message: err.Error()}
	}

	amount := c.Amount
	if text := strings.TrimSpace(c.AmountText); text != "" {
		amount, err = decimal.NewFromString(text)
		if err != nil {
			return Subscription{}, &ValidationError{Field: "amount", Message: fmt.Sprintf("invalid amount %q", c.AmountText)}
		}
	}
	if !amount.IsPositive() {
		return Subscription{}, &ValidationError{Field: "amount", Message: "amount must be greater than zero"}
	}

	cycle, err := ParseBillingCycle(c.BillingCycle)
	if err != nil {
		return Subscription{}, &ValidationError{Field: "billing_cycle", Message: err.Error()}
	}

	method := strings.TrimSpace(c.PaymentMethod)
	if method == "" {
		return Subscription{}, &ValidationError{Field: "payment_method", Message: "payment method is required"}
	}

	active := true
	if c.Active != nil {
		active = *c.Active
	}

	return Subscription{
		Name:          name,
		Category:      category,
		Currency:      code,
		Amount:        amount,
		PaymentMethod: method,
		BillingCycle:  cycle,
		Active:        active,
		Notes:         c.Notes,
	}, nil
}
