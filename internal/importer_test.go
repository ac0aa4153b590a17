package internal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImporterRegistry(t *testing.T) {
	sources := AvailableSources()
	want := []string{"csv", "json", "xlsx"}
	if len(sources) != len(want) {
		t.Fatalf("AvailableSources() = %v, want %v", sources, want)
	}
	for i := range want {
		if sources[i] != want[i] {
			t.Errorf("AvailableSources()[%d] = %q, want %q", i, sources[i], want[i])
		}
	}

	if _, err := GetImporter("ofx"); err == nil {
		t.Error("GetImporter(ofx) should fail")
	}
}

func TestDetectSource(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"subs.csv", "csv", false},
		{"/tmp/Export.XLSX", "xlsx", false},
		{"backup.json", "json", false},
		{"notes.txt", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		got, err := DetectSource(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("DetectSource(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("DetectSource(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestImportCSV(t *testing.T) {
	path := writeFile(t, "old.csv", "Subscription,Category,Currency,Amount,Payment Method\n"+
		"Netflix,Streaming,GBP,9.99,Card\n"+
		"\"Gym, downtown\",Health,EUR,30,Direct Debit\n")

	got, err := ImportCSV(path)
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[1].Name != "Gym, downtown" || got[1].PaymentMethod != "Direct Debit" || got[1].AmountText != "30" {
		t.Errorf("candidate = %+v", got[1])
	}
	if got[0].Active != nil {
		t.Errorf("no active column should leave the flag unset")
	}
	sub, err := Validate(got[1])
	if err != nil || !sub.Amount.Equal(dec("30")) {
		t.Errorf("Validate() = %+v, %v", sub, err)
	}
}

func TestImportCSV_BadRowsAreCandidates(t *testing.T) {
	path := writeFile(t, "subs.csv", "id,subscription,category,currency,amount,payment_method,billing_cycle,active,notes\n"+
		"a1,Netflix,Streaming,,9.99,Card,Monthly,true,\n"+
		"a2,Spotify,Music,GBP,4.50,Card,Monthly,false,\n"+
		"a3,Gym,Health,SEK,30,Card,fortnightly,true\n")

	got, err := ImportCSV(path)
	if err != nil {
		t.Fatalf("ImportCSV() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3", len(got))
	}
	if got[0].Currency != "" || got[0].AmountText != "9.99" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Active == nil || *got[1].Active {
		t.Errorf("second should be inactive: %+v", got[1])
	}

	defaults := ImportDefaults{Currency: "EUR"}
	sub, err := Validate(defaults.apply(got[0]))
	if err != nil || sub.Currency != EUR {
		t.Errorf("blank currency with default: %+v, %v", sub, err)
	}
	var verr *ValidationError
	if _, err := Validate(defaults.apply(got[2])); !errors.As(err, &verr) || verr.Field != "currency" {
		t.Errorf("unsupported currency should be a per-row rejection, got %v", err)
	}
}

func TestImportJSON(t *testing.T) {
	path := writeFile(t, "subs.json", `{
  "subscriptions": [
    {"subscription": "Netflix", "category": "Streaming", "currency": "GBP", "amount": 9.99, "payment_method": "Card"},
    {"subscription": "iCloud+", "category": "Storage", "currency": "USD", "amount": "2.99", "payment_method": "Card", "billing_cycle": "Yearly", "active": false}
  ]
}`)

	got, err := ImportJSON(path)
	if err != nil {
		t.Fatalf("ImportJSON() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if !got[0].Amount.Equal(dec("9.99")) || got[0].Active != nil {
		t.Errorf("first = %+v", got[0])
	}
	if !got[1].Amount.Equal(dec("2.99")) || got[1].BillingCycle != "Yearly" || got[1].Active == nil || *got[1].Active {
		t.Errorf("second = %+v", got[1])
	}

	if _, err := ImportJSON(writeFile(t, "bad.json", "{")); err == nil {
		t.Error("ImportJSON(invalid) should fail")
	}
}

func TestImportXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := "Sheet1"
	rows := [][]any{
		{"My subscriptions"},
		{},
		{"Name", "Category", "Currency", "Amount", "Method", "Active"},
		{"Netflix", "Streaming", "GBP", "9,99", "Card", "true"},
		{"", "", "", "", "", ""},
		{"Spotify", "Music", "EUR", 10.99, "PayPal", "false"},
		{"Broken", "Misc", "EUR", "n/a", "Card"},
		{"Total", "", "", 20.98},
		{"After total", "Misc", "EUR", 1},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "subs.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err := ImportXLSX(path)
	if err != nil {
		t.Fatalf("ImportXLSX() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3: %+v", len(got), got)
	}
	if got[0].Name != "Netflix" || !got[0].Amount.Equal(dec("9.99")) || got[0].PaymentMethod != "Card" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Active == nil || *got[1].Active {
		t.Errorf("second should be inactive: %+v", got[1])
	}
	if got[2].AmountText != "n/a" {
		t.Errorf("unparsable amount should be kept as text for validation, got %q", got[2].AmountText)
	}
	if _, err := Validate(got[2]); err == nil || err.Error() != `invalid amount "n/a"` {
		t.Errorf("Validate(unparsable amount) error = %v", err)
	}
}

func TestImportXLSX_NoHeader(t *testing.T) {
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "nothing here")
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := ImportXLSX(path); err == nil {
		t.Error("ImportXLSX without header should fail")
	}
}
