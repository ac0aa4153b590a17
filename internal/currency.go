package internal

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CurrencyCode is an ISO 4217 code from the supported set
type CurrencyCode string

const (
	USD CurrencyCode = "USD"
	GBP CurrencyCode = "GBP"
	EUR CurrencyCode = "EUR"
	RON CurrencyCode = "RON"
)

// SupportedCurrencies is the fixed set of codes the ledger operates over
var SupportedCurrencies = []CurrencyCode{USD, GBP, EUR, RON}

// ParseCurrencyCode normalizes case and checks the code against the supported set
func ParseCurrencyCode(s string) (CurrencyCode, error) {
	code := CurrencyCode(strings.ToUpper(strings.TrimSpace(s)))
	if !code.Supported() {
		return "", fmt.Errorf("unsupported currency %q (supported: %s)", s, supportedList())
	}
	return code, nil
}

// Supported reports whether c is in SupportedCurrencies
func (c CurrencyCode) Supported() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

func supportedList() string {
	codes := make([]string, len(SupportedCurrencies))
	for i, c := range SupportedCurrencies {
		codes[i] = string(c)
	}
	return strings.Join(codes, ", ")
}

// Currency formats amounts of a single currency
type Currency struct {
	Code    CurrencyCode
	unit    currency.Unit
	printer *message.Printer
}

// symbolOverrides provides custom symbols where x/text defaults aren't ideal
var symbolOverrides = map[CurrencyCode]string{
	RON: "lei",
}

// localeForCurrency is the "home" locale used for number formatting
var localeForCurrency = map[CurrencyCode]language.Tag{
	USD: language.AmericanEnglish,
	GBP: language.BritishEnglish,
	EUR: language.German,
	RON: language.Romanian,
}

// GetCurrency returns the formatter for a supported code.
// Unknown codes fall back to English formatting with the code as symbol.
func GetCurrency(code CurrencyCode) Currency {
	unit, err := currency.ParseISO(string(code))
	if err != nil {
		unit = currency.EUR
	}
	tag, ok := localeForCurrency[code]
	if !ok {
		tag = language.English
	}
	return Currency{
		Code:    code,
		unit:    unit,
		printer: message.NewPrinter(tag),
	}
}

func (c Currency) symbol() string {
	if sym, ok := symbolOverrides[c.Code]; ok {
		return sym
	}
	if !c.Code.Supported() {
		return string(c.Code)
	}
	return c.printer.Sprint(currency.NarrowSymbol(c.unit))
}

// isPrefix returns true if the symbol goes before the amount.
// x/text does not expose CLDR symbol placement, so this is kept by hand.
func (c Currency) isPrefix() bool {
	return c.Code == USD || c.Code == GBP
}

// Format renders an amount with two fraction digits and the currency symbol
func (c Currency) Format(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	f, _ := rounded.Float64()
	formatted := c.printer.Sprint(number.Decimal(f, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	sym := c.symbol()

	if c.isPrefix() {
		if rounded.IsNegative() {
			return "-" + sym + strings.TrimPrefix(formatted, "-")
		}
		return sym + formatted
	}
	return formatted + " " + sym
}
