package internal

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// JSONImportFormat is a minimal JSON format for importing subscriptions
// Example:
//
//	{
//	  "subscriptions": [
//	    {"subscription": "Netflix", "category": "Entertainment", "currency": "GBP",
//	     "amount": 9.99, "payment_method": "Card"},
//	    {"subscription": "iCloud+", "category": "Storage", "currency": "USD",
//	     "amount": "2.99", "payment_method": "Card", "billing_cycle": "Monthly", "active": false}
//	  ]
//	}
type JSONImportFormat struct {
	Subscriptions []JSONImportSubscription `json:"subscriptions"`
}

type JSONImportSubscription struct {
	Subscription  string          `json:"subscription"`
	Category      string          `json:"category"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"` // number or string
	PaymentMethod string          `json:"payment_method"`
	BillingCycle  string          `json:"billing_cycle,omitempty"`
	Active        *bool           `json:"active,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// ImportJSON parses a file in JSONImportFormat
func ImportJSON(path string) ([]NewSubscription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var doc JSONImportFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	candidates := make([]NewSubscription, 0, len(doc.Subscriptions))
	for _, s := range doc.Subscriptions {
		candidates = append(candidates, NewSubscription{
			Name:          s.Subscription,
			Category:      s.Category,
			Currency:      s.Currency,
			Amount:        s.Amount,
			PaymentMethod: s.PaymentMethod,
			BillingCycle:  s.BillingCycle,
			Active:        s.Active,
			Notes:         s.Notes,
		})
	}
	return candidates, nil
}
