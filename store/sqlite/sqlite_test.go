package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commune/points-engine/catalog"
	"github.com/commune/points-engine/ledger"
	"github.com/commune/points-engine/shop"
	"github.com/commune/points-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testAccount(userID string) *ledger.Account {
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	account := ledger.NewAccount(userID, now)
	account.Balance = 75
	account.DailyCounters[ledger.ActionChatMessage] = 15
	at := now.Add(-time.Hour)
	account.LastAttendanceAt = &at
	return account
}

// =============================================================================
// ACCOUNT PERSISTENCE
// =============================================================================

func TestAccount_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	original := testAccount("user-1")
	require.NoError(t, store.SaveAccount(ctx, original))

	loaded, err := store.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, original.UserID, loaded.UserID)
	assert.Equal(t, original.Balance, loaded.Balance)
	assert.Equal(t, int64(15), loaded.DailyCounters[ledger.ActionChatMessage])
	assert.True(t, original.LastDailyResetAt.Equal(loaded.LastDailyResetAt))
	require.NotNil(t, loaded.LastAttendanceAt)
	assert.True(t, original.LastAttendanceAt.Equal(*loaded.LastAttendanceAt))
}

func TestAccount_Missing_ReturnsNil(t *testing.T) {
	store := newTestStore(t)

	account, err := store.GetAccount(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestAccount_Upsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	account := testAccount("user-1")
	require.NoError(t, store.SaveAccount(ctx, account))

	account.Balance = 120
	account.DailyCounters[ledger.ActionPostCreate] = 10
	require.NoError(t, store.SaveAccount(ctx, account))

	loaded, err := store.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(120), loaded.Balance)
	assert.Equal(t, int64(10), loaded.DailyCounters[ledger.ActionPostCreate])
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

func TestEntries_AppendAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	for i, amount := range []int64{20, 5, -10} {
		entry := ledger.Entry{
			ID:           "entry-" + string(rune('a'+i)),
			UserID:       "user-1",
			Amount:       amount,
			BalanceAfter: 0,
			Kind:         ledger.KindAdjustment,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.AppendEntry(ctx, entry))
	}

	entries, err := store.Entries(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, int64(20), entries[0].Amount)
	assert.Equal(t, int64(5), entries[1].Amount)
	assert.Equal(t, int64(-10), entries[2].Amount)
}

func TestEntries_MetadataRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := ledger.Entry{
		ID:            "entry-1",
		UserID:        "user-1",
		Amount:        50,
		BalanceAfter:  50,
		Kind:          ledger.KindAdjustment,
		Description:   "purchase rollback: Gold Badge",
		ReferenceType: "purchase",
		ReferenceID:   "badge-gold",
		Metadata:      map[string]string{"custom": "true"},
		CreatedAt:     time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.AppendEntry(ctx, entry))

	entries, err := store.Entries(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, entry.Description, got.Description)
	assert.Equal(t, entry.ReferenceType, got.ReferenceType)
	assert.Equal(t, entry.ReferenceID, got.ReferenceID)
	assert.Equal(t, "true", got.Metadata["custom"])
}

func TestEntries_ScopedToUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendEntry(ctx, ledger.Entry{ID: "a", UserID: "user-1", Amount: 5, Kind: ledger.KindEarnChat, CreatedAt: now}))
	require.NoError(t, store.AppendEntry(ctx, ledger.Entry{ID: "b", UserID: "user-2", Amount: 20, Kind: ledger.KindEarnAttendance, CreatedAt: now}))

	entries, err := store.Entries(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].ID)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	// GIVEN: A transaction that saves an account and then fails
	// WHEN: WithTx returns the error
	// THEN: Nothing is visible afterwards

	store := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.SaveAccount(ctx, testAccount("user-1")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	account, err := store.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, account, "rolled-back account must not persist")
}

func TestWithTx_CommitOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.SaveAccount(ctx, testAccount("user-1")); err != nil {
			return err
		}
		return tx.AppendEntry(ctx, ledger.Entry{
			ID: "e1", UserID: "user-1", Amount: 75, BalanceAfter: 75,
			Kind: ledger.KindAdjustment, CreatedAt: time.Now(),
		})
	})
	require.NoError(t, err)

	account, err := store.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, account)

	entries, err := store.Entries(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWithTx_ReadsSeeUncommittedWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.SaveAccount(ctx, testAccount("user-1")); err != nil {
			return err
		}
		account, err := tx.GetAccount(ctx, "user-1")
		if err != nil {
			return err
		}
		if account == nil {
			return errors.New("write not visible inside transaction")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestWithTx_WorksWithService(t *testing.T) {
	// The service drives the full award path against real SQL.
	store := newTestStore(t)
	svc := ledger.NewService(store)
	ctx := context.Background()

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	result, err := svc.Award(ctx, "user-1", ledger.ActionDailyAttendance, now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, int64(20), result.TotalPoints)

	again, err := svc.Award(ctx, "user-1", ledger.ActionDailyAttendance, now.Add(time.Hour), time.UTC)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
}

// =============================================================================
// INVENTORY
// =============================================================================

func testLine(userID, itemID string) shop.InventoryLine {
	return shop.InventoryLine{
		UserID:            userID,
		ItemID:            itemID,
		Quantity:          1,
		LastPurchasedAt:   time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
		LastPurchasePrice: 160,
		Category:          "badge",
		Icon:              "badge_gold.png",
		Rarity:            "rare",
	}
}

func TestInventory_InsertFindUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testLine("user-1", "badge-gold")))

	line, err := store.Find(ctx, "user-1", "badge-gold")
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, int64(1), line.Quantity)
	assert.Equal(t, "rare", line.Rarity)

	line.Quantity = 3
	line.LastPurchasePrice = 200
	require.NoError(t, store.Update(ctx, *line))

	updated, err := store.Find(ctx, "user-1", "badge-gold")
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.Quantity)
	assert.Equal(t, int64(200), updated.LastPurchasePrice)
}

func TestInventory_Find_Missing_ReturnsNil(t *testing.T) {
	store := newTestStore(t)

	line, err := store.Find(context.Background(), "user-1", "badge-gold")
	require.NoError(t, err)
	assert.Nil(t, line)
}

func TestInventory_Insert_Duplicate_Fails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testLine("user-1", "badge-gold")))
	assert.Error(t, store.Insert(ctx, testLine("user-1", "badge-gold")))
}

func TestInventory_ListByUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testLine("user-1", "badge-gold")))
	require.NoError(t, store.Insert(ctx, testLine("user-1", "frame-neon")))
	require.NoError(t, store.Insert(ctx, testLine("user-2", "badge-gold")))

	lines, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "badge-gold", lines[0].ItemID)
	assert.Equal(t, "frame-neon", lines[1].ItemID)
}

// =============================================================================
// SAGA INTEGRATION
// =============================================================================

func TestSaga_EndToEndOnSQLite(t *testing.T) {
	// Full purchase path with ledger and inventory in the same database.
	store := newTestStore(t)
	svc := ledger.NewService(store)
	saga := shop.NewSaga(svc, catalog.Default(), store, nil)

	ctx := context.Background()
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	_, err := svc.Award(ctx, "user-1", ledger.ActionDailyAttendance, now, time.UTC)
	require.NoError(t, err)
	_, err = svc.CreditCustom(ctx, "user-1", 180, "seed", now)
	require.NoError(t, err)

	result, err := saga.Purchase(ctx, "user-1", "badge-gold", 1, now)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(160), result.TotalCost)
	assert.Equal(t, int64(40), result.RemainingPoints)

	lines, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "badge-gold", lines[0].ItemID)

	entries, err := store.Entries(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(-160), entries[2].Amount)
	assert.Equal(t, ledger.KindShopPurchase, entries[2].Kind)
	assert.Equal(t, int64(40), entries[2].BalanceAfter)
}
