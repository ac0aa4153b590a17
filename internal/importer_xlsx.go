package internal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ImportXLSX reads subscriptions from the first sheet of a workbook.
// The header row is located by a "Subscription" (or "Name") cell; other
// columns are matched by name the same way as the CSV store. Reading stops
// at a "Total" row, so reports exported by this tool can be read back.
func ImportXLSX(path string) ([]NewSubscription, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in file")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet: %w", err)
	}

	// Find header row and column indices
	cols := map[string]int{}
	dataStartRow := -1
	for i, row := range rows {
		for _, cell := range row {
			if normalizeColumn(cell) == "subscription" {
				dataStartRow = i + 1
				break
			}
		}
		if dataStartRow >= 0 {
			for j, cell := range row {
				cols[normalizeColumn(cell)] = j
			}
			break
		}
	}
	if dataStartRow < 0 {
		return nil, fmt.Errorf("could not find header row (Subscription, Currency, Amount)")
	}
	for _, required := range []string{"currency", "amount"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("could not find required column %q", required)
		}
	}

	cell := func(row []string, name string) string {
		j, ok := cols[name]
		if !ok || j >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[j])
	}

	var candidates []NewSubscription
	for i := dataStartRow; i < len(rows); i++ {
		row := rows[i]

		name := cell(row, "subscription")
		amountStr := cell(row, "amount")

		if strings.EqualFold(name, "total") {
			break
		}
		// Skip empty rows
		if name == "" && amountStr == "" {
			continue
		}
		if amountStr == "" {
			continue
		}

		amountStr = strings.ReplaceAll(amountStr, ",", ".")
		c := NewSubscription{
			Name:          name,
			Category:      cell(row, "category"),
			Currency:      cell(row, "currency"),
			PaymentMethod: cell(row, "payment_method"),
			BillingCycle:  cell(row, "billing_cycle"),
			Notes:         cell(row, "notes"),
		}
		if amount, err := decimal.NewFromString(amountStr); err == nil {
			c.Amount = amount
		} else {
			c.AmountText = amountStr // rejected by validation with the raw text
		}
		if v := cell(row, "active"); v != "" {
			if active, err := strconv.ParseBool(v); err == nil {
				c.Active = &active
			}
		}
		candidates = append(candidates, c)
	}

	return candidates, nil
}
