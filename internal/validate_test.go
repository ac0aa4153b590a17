package internal

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		in        NewSubscription
		wantField string
	}{
		{"valid", candidate("Netflix", "Streaming", "GBP", "9.99", "Card"), ""},
		{"empty name", candidate("", "Streaming", "GBP", "9.99", "Card"), "name"},
		{"blank name", candidate("   ", "Streaming", "GBP", "9.99", "Card"), "name"},
		{"empty category", candidate("Netflix", "", "GBP", "9.99", "Card"), "category"},
		{"unsupported currency", candidate("Netflix", "Streaming", "SEK", "9.99", "Card"), "currency"},
		{"zero amount", candidate("Netflix", "Streaming", "GBP", "0", "Card"), "amount"},
		{"negative amount", candidate("Netflix", "Streaming", "GBP", "-1", "Card"), "amount"},
		{"empty payment method", candidate("Netflix", "Streaming", "GBP", "9.99", " "), "payment_method"},
		{"everything wrong reports name", candidate("", "", "XXX", "0", ""), "name"},
		{"currency before amount", candidate("Netflix", "Streaming", "XXX", "0", ""), "currency"},
		{"amount before payment method", candidate("Netflix", "Streaming", "EUR", "0", ""), "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.in)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Validate() field = %q, want %q (%v)", verr.Field, tt.wantField, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("error does not match ErrValidation")
			}
		})
	}
}

func TestValidate_AmountText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantField string
		wantMsg   string
	}{
		{"parsed", " 12.50 ", "", ""},
		{"garbage", "ten", "amount", `invalid amount "ten"`},
		{"zero", "0", "amount", "amount must be greater than zero"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate("Netflix", "Streaming", "GBP", "0", "Card")
			c.AmountText = tt.text
			got, err := Validate(c)
			if tt.wantField == "" {
				if err != nil || !got.Amount.Equal(dec("12.5")) {
					t.Fatalf("Validate() = %v, %v", got.Amount, err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.wantField || verr.Message != tt.wantMsg {
				t.Errorf("Validate() error = %v, want %s: %s", err, tt.wantField, tt.wantMsg)
			}
		})
	}

	// Currency is still checked first
	c := candidate("Netflix", "Streaming", "XXX", "0", "Card")
	c.AmountText = "ten"
	var verr *ValidationError
	if _, err := Validate(c); !errors.As(err, &verr) || verr.Field != "currency" {
		t.Errorf("Validate() error = %v, want currency violation", err)
	}
}

func TestValidate_BadBillingCycle(t *testing.T) {
	c := candidate("Netflix", "Streaming", "GBP", "9.99", "Card")
	c.BillingCycle = "fortnightly"
	_, err := Validate(c)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "billing_cycle" {
		t.Fatalf("Validate() error = %v, want billing_cycle violation", err)
	}
}

func TestValidate_NormalizesFields(t *testing.T) {
	inactive := false
	c := candidate("  Netflix ", " Streaming", "gbp", "9.99", " Card ")
	c.BillingCycle = "yearly"
	c.Active = &inactive

	got, err := Validate(c)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Netflix" || got.Category != "Streaming" || got.PaymentMethod != "Card" {
		t.Errorf("fields not trimmed: %+v", got)
	}
	if got.Currency != GBP {
		t.Errorf("Currency = %q, want GBP", got.Currency)
	}
	if got.BillingCycle != CycleYearly {
		t.Errorf("BillingCycle = %q, want Yearly", got.BillingCycle)
	}
	if got.Active {
		t.Errorf("Active = true, want false")
	}
	if got.ID != "" {
		t.Errorf("Validate assigned an ID: %q", got.ID)
	}
}

func TestValidate_DefaultsActive(t *testing.T) {
	got, err := Validate(candidate("Spotify", "Music", "EUR", "10.99", "PayPal"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Active {
		t.Errorf("Active = false, want true by default")
	}
	if got.BillingCycle != CycleMonthly {
		t.Errorf("BillingCycle = %q, want Monthly by default", got.BillingCycle)
	}
}
