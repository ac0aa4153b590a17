package internal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies the embedded schema to the database at dbPath
func RunMigrations(dbPath string) error {
	// Separate connection so the migrator can close it without touching the store's pool
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// SQLiteStore keeps subscriptions in a SQLite table ordered by insertion.
// Unlike CSVStore it can update and delete single rows by ID.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, &PersistenceError{Op: "open", Path: dbPath, Err: err}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Path: dbPath, Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "open", Path: dbPath, Err: err}
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "open", Path: dbPath, Err: err}
	}

	return &SQLiteStore{path: dbPath, db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const selectSubscriptions = `
	SELECT id, name, category, currency, amount, payment_method, billing_cycle, active, notes
	FROM subscriptions
	ORDER BY seq`

const insertSubscription = `
	INSERT INTO subscriptions (id, name, category, currency, amount, payment_method, billing_cycle, active, notes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) Load(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, selectSubscriptions)
	if err != nil {
		return []Subscription{}, &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	defer rows.Close()

	subs := []Subscription{}
	for rows.Next() {
		var (
			sub              Subscription
			currency, amount string
			cycle            string
		)
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Category, &currency, &amount,
			&sub.PaymentMethod, &cycle, &sub.Active, &sub.Notes); err != nil {
			return []Subscription{}, &PersistenceError{Op: "load", Path: s.path, Err: err}
		}

		sub.Currency, err = ParseCurrencyCode(currency)
		if err != nil {
			return []Subscription{}, &PersistenceError{Op: "load", Path: s.path, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}
		sub.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return []Subscription{}, &PersistenceError{Op: "load", Path: s.path, Err: fmt.Errorf("%w: invalid amount %q", ErrMalformed, amount)}
		}
		sub.BillingCycle, err = ParseBillingCycle(cycle)
		if err != nil {
			return []Subscription{}, &PersistenceError{Op: "load", Path: s.path, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return []Subscription{}, &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	return subs, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, sub Subscription) error {
	_, err := db.ExecContext(ctx, insertSubscription,
		sub.ID, sub.Name, sub.Category, string(sub.Currency), sub.Amount.String(),
		sub.PaymentMethod, string(sub.BillingCycle), sub.Active, sub.Notes)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, sub Subscription) error {
	if err := insert(ctx, s.db, sub); err != nil {
		return &PersistenceError{Op: "append", Path: s.path, Err: err}
	}
	return nil
}

func (s *SQLiteStore) ReplaceAll(ctx context.Context, subs []Subscription) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "replace", Path: s.path, Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions`); err != nil {
		return &PersistenceError{Op: "replace", Path: s.path, Err: err}
	}
	for _, sub := range subs {
		if err := insert(ctx, tx, sub); err != nil {
			return &PersistenceError{Op: "replace", Path: s.path, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "replace", Path: s.path, Err: err}
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, sub Subscription) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET name = ?, category = ?, currency = ?, amount = ?, payment_method = ?,
		    billing_cycle = ?, active = ?, notes = ?
		WHERE id = ?`,
		sub.Name, sub.Category, string(sub.Currency), sub.Amount.String(), sub.PaymentMethod,
		string(sub.BillingCycle), sub.Active, sub.Notes, sub.ID)
	if err != nil {
		return &PersistenceError{Op: "update", Path: s.path, Err: err}
	}
	return s.requireOneRow(res, "update", sub.ID)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return &PersistenceError{Op: "delete", Path: s.path, Err: err}
	}
	return s.requireOneRow(res, "delete", id)
}

func (s *SQLiteStore) requireOneRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &PersistenceError{Op: op, Path: s.path, Err: err}
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
