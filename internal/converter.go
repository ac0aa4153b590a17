package internal

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Converter converts amounts between supported currencies using a RateSource.
// It never rounds; rounding happens where amounts are aggregated or displayed.
type Converter struct {
	rates RateSource
}

func NewConverter(rates RateSource) *Converter {
	return &Converter{rates: rates}
}

// Convert returns amount expressed in to. Equal codes return amount untouched
// without consulting the rate source. Failures wrap ErrConversion.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to CurrencyCode) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	if !from.Supported() || !to.Supported() {
		return amount, &ConversionError{From: from, To: to, Err: fmt.Errorf("unsupported currency pair")}
	}
	if c == nil || c.rates == nil {
		return amount, &ConversionError{From: from, To: to, Err: fmt.Errorf("no rate source configured")}
	}

	r, err := c.rates.Rate(ctx, from, to)
	if err != nil {
		return amount, &ConversionError{From: from, To: to, Err: err}
	}
	if !r.IsPositive() {
		return amount, &ConversionError{From: from, To: to, Err: fmt.Errorf("non-positive rate %s", r)}
	}
	return amount.Mul(r), nil
}
