package internal

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "subscriptions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_AppendLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	first := sub("Netflix", "Streaming", GBP, "9.99")
	first.Notes = "family, plan"
	second := sub("Domain", "Tools", USD, "12.345")
	second.BillingCycle = CycleYearly
	second.Active = false

	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Netflix", got[0].Name, "insertion order is kept")
	assert.Equal(t, "family, plan", got[0].Notes)
	assert.True(t, got[1].Amount.Equal(dec("12.345")))
	assert.Equal(t, CycleYearly, got[1].BillingCycle)
	assert.False(t, got[1].Active)
}

func TestSQLiteStore_DuplicateIDRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	require.NoError(t, store.Append(ctx, sub("Netflix", "Streaming", GBP, "9.99")))
	err := store.Append(ctx, sub("Netflix", "Streaming", GBP, "9.99"))
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestSQLiteStore_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, store.Append(ctx, sub(name, "Misc", EUR, "1")))
	}
	require.NoError(t, store.ReplaceAll(ctx, []Subscription{sub("C", "Misc", EUR, "1"), sub("A", "Misc", EUR, "1")}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C", got[0].Name)
	assert.Equal(t, "A", got[1].Name)
}

func TestSQLiteStore_ReplaceAllIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	require.NoError(t, store.Append(ctx, sub("A", "Misc", EUR, "1")))

	// The duplicate ID fails the second insert, so the delete is rolled back
	err := store.ReplaceAll(ctx, []Subscription{sub("B", "Misc", EUR, "1"), sub("B", "Misc", EUR, "2")})
	assert.ErrorIs(t, err, ErrPersistence)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Name)
}

func TestSQLiteStore_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	netflix := sub("Netflix", "Streaming", GBP, "9.99")
	require.NoError(t, store.Append(ctx, netflix))
	require.NoError(t, store.Append(ctx, sub("Spotify", "Music", EUR, "10.99")))

	netflix.Active = false
	require.NoError(t, store.Update(ctx, netflix))
	got, _ := store.Load(ctx)
	assert.False(t, got[0].Active)

	require.NoError(t, store.Delete(ctx, netflix.ID))
	got, _ = store.Load(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, "Spotify", got[0].Name)

	assert.ErrorIs(t, store.Delete(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, sub("Ghost", "Misc", EUR, "1")), ErrNotFound)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "subscriptions.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, sub("Netflix", "Streaming", GBP, "9.99")))
	require.NoError(t, store.Close())

	// Migrations run again on open and must be a no-op
	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Netflix-id", got[0].ID)
}

func TestLedger_WithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)
	l := NewLedger(store, NewConverter(testRates()), budgetConfig("50", GBP, USD), zerolog.New(io.Discard))

	var ids []string
	for _, c := range []NewSubscription{
		candidate("Netflix", "Streaming", "GBP", "9.99", "Card"),
		candidate("Spotify", "Music", "GBP", "4.50", "Card"),
		candidate("Gym", "Health", "GBP", "12", "Card"),
	} {
		s, err := l.Add(ctx, c)
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	_, err := l.SetActive(ctx, ids[2], false)
	require.NoError(t, err)
	_, err = l.Delete(ctx, ids[0])
	require.NoError(t, err)

	records, err := l.Load(ctx)
	require.NoError(t, err)
	snap := l.Snapshot(ctx, records, USD)

	assert.Len(t, snap.Records, 2)
	assert.Equal(t, 1, snap.ActiveCount)
	assert.Equal(t, "6.75", snap.Total.StringFixed(2))
	assert.Equal(t, "75.00", snap.Budget.StringFixed(2))
	assert.Equal(t, "68.25", snap.Remaining.StringFixed(2))
}

// noRowCount is a driver result that cannot report affected rows
type noRowCount struct{}

func (noRowCount) LastInsertId() (int64, error) { return 0, nil }
func (noRowCount) RowsAffected() (int64, error) { return 0, errors.New("not supported") }

func TestSQLiteStore_RowsAffectedErrorIsPersistence(t *testing.T) {
	store := newTestSQLiteStore(t)

	err := store.requireOneRow(noRowCount{}, "delete", "a1")
	assert.ErrorIs(t, err, ErrPersistence)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "delete", perr.Op)
}
