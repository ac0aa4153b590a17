package internal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Importer reads candidate subscriptions from an external file
type Importer interface {
	Import(path string) ([]NewSubscription, error)
}

// ImporterFunc is a function that implements Importer
type ImporterFunc func(path string) ([]NewSubscription, error)

func (f ImporterFunc) Import(path string) ([]NewSubscription, error) {
	return f(path)
}

// importers is the registry of available importers
var importers = map[string]Importer{}

// RegisterImporter registers an importer with the given name
func RegisterImporter(name string, i Importer) {
	importers[name] = i
}

// GetImporter returns the importer for the given source type
func GetImporter(source string) (Importer, error) {
	i, ok := importers[source]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %s (available: %v)", source, AvailableSources())
	}
	return i, nil
}

// AvailableSources returns the registered source types, sorted
func AvailableSources() []string {
	var sources []string
	for name := range importers {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	return sources
}

// DetectSource guesses the source type from the file extension
func DetectSource(path string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if _, ok := importers[ext]; ok {
		return ext, nil
	}
	return "", fmt.Errorf("cannot detect source type of %s (available: %v)", path, AvailableSources())
}

// ImportDefaults fills fields that an import file does not carry
type ImportDefaults struct {
	Category      string
	PaymentMethod string
	Currency      string
}

func (d ImportDefaults) apply(c NewSubscription) NewSubscription {
	if strings.TrimSpace(c.Category) == "" {
		c.Category = d.Category
	}
	if strings.TrimSpace(c.PaymentMethod) == "" {
		c.PaymentMethod = d.PaymentMethod
	}
	if strings.TrimSpace(c.Currency) == "" {
		c.Currency = d.Currency
	}
	return c
}

// ImportCSV reads a data file written by this tool or an earlier version of
// it. Unlike loading the data file, rows are not checked here: currency,
// amount and cycle are passed through as text so that bad rows are rejected
// one at a time and a blank currency can take the import default.
func ImportCSV(path string) ([]NewSubscription, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return []NewSubscription{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformed, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeColumn(h)] = i
	}
	for _, required := range []string{"subscription", "currency", "amount"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformed, required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	candidates := []NewSubscription{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		c := NewSubscription{
			Name:          cell(row, "subscription"),
			Category:      cell(row, "category"),
			Currency:      cell(row, "currency"),
			AmountText:    cell(row, "amount"),
			PaymentMethod: cell(row, "payment_method"),
			BillingCycle:  cell(row, "billing_cycle"),
			Notes:         cell(row, "notes"),
		}
		if strings.TrimSpace(c.AmountText) == "" {
			c.AmountText = "0"
		}
		if v := strings.TrimSpace(cell(row, "active")); v != "" {
			if active, err := strconv.ParseBool(v); err == nil {
				c.Active = &active
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func init() {
	// Register built-in importers
	RegisterImporter("csv", ImporterFunc(ImportCSV))
	RegisterImporter("json", ImporterFunc(ImportJSON))
	RegisterImporter("xlsx", ImporterFunc(ImportXLSX))
}
