package internal

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the durable, ordered collection of subscriptions.
// Implementations do not validate records; that is the ledger's job.
type Store interface {
	// Load returns all records in stored order. A missing backing file is
	// created empty. A malformed one yields an empty slice and an error.
	Load(ctx context.Context) ([]Subscription, error)
	// Append persists one record after the existing ones.
	Append(ctx context.Context, s Subscription) error
	// ReplaceAll rewrites the whole collection.
	ReplaceAll(ctx context.Context, subs []Subscription) error
}

// KeyedStore is implemented by stores that can address a record by ID
// without rewriting the whole collection.
type KeyedStore interface {
	Store
	Update(ctx context.Context, s Subscription) error
	Delete(ctx context.Context, id string) error
}

// ErrMalformed is wrapped by load errors caused by unreadable file contents
var ErrMalformed = errors.New("malformed data file")

// CSVHeader is the canonical column order of the backing file
var CSVHeader = []string{
	"id", "subscription", "category", "currency", "amount",
	"payment_method", "billing_cycle", "active", "notes",
}

// CSVStore keeps subscriptions in a flat CSV file with a header row.
// It assumes a single writer; nothing is locked.
type CSVStore struct {
	path string
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) Load(ctx context.Context) ([]Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := s.writeAll(nil); err != nil {
			return []Subscription{}, &PersistenceError{Op: "load", Path: s.path, Err: err}
		}
		return []Subscription{}, nil
	}
	if err != nil {
		return []Subscription{}, &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	defer f.Close()

	subs, legacy, err := decodeCSV(f)
	if err != nil {
		return []Subscription{}, &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	f.Close()

	// Persist the IDs assigned to legacy rows so later references resolve
	if legacy {
		if err := s.writeAll(subs); err != nil {
			return []Subscription{}, &PersistenceError{Op: "load", Path: s.path, Err: err}
		}
	}
	return subs, nil
}

func (s *CSVStore) Append(ctx context.Context, sub Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	header, err := s.readHeader()
	if err != nil {
		return &PersistenceError{Op: "append", Path: s.path, Err: err}
	}

	// Older files use a different column set; migrate them with a full rewrite
	// so that every row matches the header.
	if header != nil && !isCanonicalHeader(header) {
		existing, err := s.Load(ctx)
		if err != nil {
			return err
		}
		return s.replace("append", append(existing, sub))
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return &PersistenceError{Op: "append", Path: s.path, Err: err}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return &PersistenceError{Op: "append", Path: s.path, Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return &PersistenceError{Op: "append", Path: s.path, Err: err}
	}
	size := info.Size()

	// A hand-edited file may lack the final newline
	if size > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil {
			f.Close()
			return &PersistenceError{Op: "append", Path: s.path, Err: err}
		}
		if last[0] != '\n' {
			if _, err := f.Write([]byte("\n")); err != nil {
				f.Truncate(size)
				f.Close()
				return &PersistenceError{Op: "append", Path: s.path, Err: err}
			}
		}
	}

	w := csv.NewWriter(f)
	if header == nil {
		w.Write(CSVHeader)
	}
	w.Write(encodeRow(sub))
	w.Flush()
	if err := w.Error(); err != nil {
		// Drop whatever part of the row made it to disk
		f.Truncate(size)
		f.Close()
		return &PersistenceError{Op: "append", Path: s.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &PersistenceError{Op: "append", Path: s.path, Err: err}
	}
	return nil
}

func (s *CSVStore) ReplaceAll(ctx context.Context, subs []Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.replace("replace", subs)
}

func (s *CSVStore) replace(op string, subs []Subscription) error {
	if err := s.writeAll(subs); err != nil {
		return &PersistenceError{Op: op, Path: s.path, Err: err}
	}
	return nil
}

// writeAll writes the header and rows to a temp file and renames it over the target
func (s *CSVStore) writeAll(subs []Subscription) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	w := csv.NewWriter(tmp)
	w.Write(CSVHeader)
	for _, sub := range subs {
		w.Write(encodeRow(sub))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		cleanup()
		return fmt.Errorf("writing rows: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing data file: %w", err)
	}
	return nil
}

// readHeader returns the header row, or nil if the file is missing or empty
func (s *CSVStore) readHeader() ([]string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformed, err)
	}
	return header, nil
}

func isCanonicalHeader(header []string) bool {
	if len(header) != len(CSVHeader) {
		return false
	}
	for i := range header {
		if normalizeColumn(header[i]) != CSVHeader[i] {
			return false
		}
	}
	return true
}

// normalizeColumn maps "Payment Method" and similar spellings onto canonical names
func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ReplaceAll(name, " ", "_")
	switch name {
	case "name":
		return "subscription"
	case "method":
		return "payment_method"
	case "cycle":
		return "billing_cycle"
	}
	return name
}

func encodeRow(s Subscription) []string {
	return []string{
		s.ID,
		s.Name,
		s.Category,
		string(s.Currency),
		s.Amount.String(),
		s.PaymentMethod,
		string(s.BillingCycle),
		strconv.FormatBool(s.Active),
		s.Notes,
	}
}

// decodeCSV reads a data file. Columns are located by header name so that
// files written by earlier versions (without id, category, etc.) still load;
// rows without an id get a fresh one. legacy is true when the file should be
// rewritten in the canonical layout.
func decodeCSV(r io.Reader) (subs []Subscription, legacy bool, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if err == io.EOF {
		return []Subscription{}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading header: %v", ErrMalformed, err)
	}

	legacy = !isCanonicalHeader(header)
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeColumn(h)] = i
	}
	for _, required := range []string{"subscription", "currency", "amount"} {
		if _, ok := cols[required]; !ok {
			return nil, false, fmt.Errorf("%w: missing column %q", ErrMalformed, required)
		}
	}

	get := func(row []string, name string) (string, bool) {
		i, ok := cols[name]
		if !ok {
			return "", false
		}
		return row[i], true
	}

	subs = []Subscription{}
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		sub := Subscription{BillingCycle: CycleMonthly, Active: true}
		sub.ID, _ = get(row, "id")
		if sub.ID == "" {
			sub.ID = uuid.NewString()
			legacy = true
		}
		sub.Name, _ = get(row, "subscription")
		sub.Category, _ = get(row, "category")
		sub.PaymentMethod, _ = get(row, "payment_method")
		sub.Notes, _ = get(row, "notes")

		cur, _ := get(row, "currency")
		sub.Currency, err = ParseCurrencyCode(cur)
		if err != nil {
			return nil, false, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}

		amt, _ := get(row, "amount")
		sub.Amount, err = decimal.NewFromString(strings.TrimSpace(amt))
		if err != nil {
			return nil, false, fmt.Errorf("%w: line %d: invalid amount %q", ErrMalformed, line, amt)
		}

		if v, ok := get(row, "billing_cycle"); ok {
			sub.BillingCycle, err = ParseBillingCycle(v)
			if err != nil {
				return nil, false, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
			}
		}
		if v, ok := get(row, "active"); ok && strings.TrimSpace(v) != "" {
			sub.Active, err = strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, false, fmt.Errorf("%w: line %d: invalid active flag %q", ErrMalformed, line, v)
			}
		}

		subs = append(subs, sub)
	}
	return subs, legacy, nil
}

// OpenStore opens the backing store selected in cfg. Callers should close
// the result if it implements io.Closer.
func OpenStore(cfg *BudgetConfig) (Store, error) {
	switch cfg.Store {
	case StoreSQLite:
		s, err := NewSQLiteStore(cfg.DataPath())
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return NewCSVStore(cfg.DataPath()), nil
	}
}
