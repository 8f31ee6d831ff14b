package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mietwerk/bankrecon/internal/models"
)

var (
	userA = uuid.MustParse("aaaaaaaa-1111-2222-3333-444444444444")
	userB = uuid.MustParse("bbbbbbbb-1111-2222-3333-444444444444")
)

func makeTx(user uuid.UUID, day int, amount string, direction models.Direction, fp string) *models.BankTransaction {
	return &models.BankTransaction{
		ID:          uuid.New(),
		UserID:      user,
		BookingDate: time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString(amount),
		Direction:   direction,
		Fingerprint: fp,
		Status:      models.StatusUnmatched,
	}
}

func TestMemoryLedger_FingerprintUniquePerUser(t *testing.T) {
	store := NewMemoryLedger()
	ctx := context.Background()

	require.NoError(t, store.InsertTransaction(ctx, makeTx(userA, 1, "950.00", models.DirectionCredit, "fp-1")))

	err := store.InsertTransaction(ctx, makeTx(userA, 1, "950.00", models.DirectionCredit, "fp-1"))
	assert.ErrorIs(t, err, ErrDuplicateFingerprint)

	assert.NoError(t, store.InsertTransaction(ctx, makeTx(userB, 1, "950.00", models.DirectionCredit, "fp-1")),
		"the same fingerprint is allowed for a different user")
}

func TestMemoryLedger_FindTransactionByFingerprint(t *testing.T) {
	store := NewMemoryLedger()
	ctx := context.Background()

	tx := makeTx(userA, 1, "950.00", models.DirectionCredit, "fp-1")
	require.NoError(t, store.InsertTransaction(ctx, tx))

	found, err := store.FindTransactionByFingerprint(ctx, userA, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, found.ID)

	_, err = store.FindTransactionByFingerprint(ctx, userB, "fp-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryLedger_ListTransactions_Filters(t *testing.T) {
	store := NewMemoryLedger()
	ctx := context.Background()

	require.NoError(t, store.InsertTransaction(ctx, makeTx(userA, 1, "950.00", models.DirectionCredit, "fp-1")))
	require.NoError(t, store.InsertTransaction(ctx, makeTx(userA, 5, "-80.00", models.DirectionDebit, "fp-2")))
	require.NoError(t, store.InsertTransaction(ctx, makeTx(userA, 10, "1200.00", models.DirectionCredit, "fp-3")))
	require.NoError(t, store.InsertTransaction(ctx, makeTx(userB, 1, "42.00", models.DirectionCredit, "fp-4")))

	t.Run("user scoping", func(t *testing.T) {
		_, total, err := store.ListTransactions(ctx, userA, TransactionFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
	})

	t.Run("direction", func(t *testing.T) {
		transactions, total, err := store.ListTransactions(ctx, userA, TransactionFilter{Direction: models.DirectionDebit})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, transactions, 1)
		assert.Equal(t, "fp-2", transactions[0].Fingerprint)
	})

	t.Run("date range", func(t *testing.T) {
		from := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
		to := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
		transactions, _, err := store.ListTransactions(ctx, userA, TransactionFilter{From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, transactions, 1)
		assert.Equal(t, "fp-2", transactions[0].Fingerprint)
	})

	t.Run("limit and offset keep the full total", func(t *testing.T) {
		transactions, total, err := store.ListTransactions(ctx, userA, TransactionFilter{Limit: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.Len(t, transactions, 2)

		transactions, total, err = store.ListTransactions(ctx, userA, TransactionFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		assert.Len(t, transactions, 1)
	})
}

func TestMemoryLedger_SoftDeleteAllocations(t *testing.T) {
	store := NewMemoryLedger()
	ctx := context.Background()

	tx := makeTx(userA, 1, "1000.00", models.DirectionCredit, "fp-1")
	require.NoError(t, store.InsertTransaction(ctx, tx))

	target := uuid.New()
	require.NoError(t, store.InsertAllocations(ctx, []models.BankTransactionAllocation{
		{ID: uuid.New(), UserID: userA, TransactionID: tx.ID, Target: models.TargetRentPayment, TargetID: target, Amount: decimal.RequireFromString("600.00"), CreatedAt: time.Now()},
		{ID: uuid.New(), UserID: userA, TransactionID: tx.ID, Target: models.TargetRentPayment, TargetID: target, Amount: decimal.RequireFromString("400.00"), CreatedAt: time.Now()},
	}))

	deleted, err := store.SoftDeleteAllocationsForTransaction(ctx, userA, tx.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	live, err := store.LiveAllocationsForTransaction(ctx, userA, tx.ID)
	require.NoError(t, err)
	assert.Empty(t, live)

	live, err = store.LiveAllocationsForTarget(ctx, userA, models.TargetRentPayment, target)
	require.NoError(t, err)
	assert.Empty(t, live)

	deleted, err = store.SoftDeleteAllocationsForTransaction(ctx, userA, tx.ID, time.Now())
	require.NoError(t, err)
	assert.Zero(t, deleted, "soft deleting twice finds nothing live")
}

func TestMemoryLedger_GetScopedByUser(t *testing.T) {
	store := NewMemoryLedger()
	ctx := context.Background()

	tx := makeTx(userA, 1, "950.00", models.DirectionCredit, "fp-1")
	require.NoError(t, store.InsertTransaction(ctx, tx))

	_, err := store.GetTransaction(ctx, userB, tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	file := &models.BankImportFile{ID: uuid.New(), UserID: userA, Status: models.ImportCompleted}
	require.NoError(t, store.InsertImportFile(ctx, file))
	_, err = store.GetImportFile(ctx, userB, file.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.RollbackImport(ctx, userB, file.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryLedger_ListActiveTenants(t *testing.T) {
	store := NewMemoryLedger()
	ctx := context.Background()

	store.AddTenant(models.Tenant{ID: uuid.New(), UserID: userA, FirstName: "Max", LastName: "Mustermann", Active: true})
	store.AddTenant(models.Tenant{ID: uuid.New(), UserID: userA, FirstName: "Hans", LastName: "Alt", Active: false})
	store.AddTenant(models.Tenant{ID: uuid.New(), UserID: userB, FirstName: "Erika", LastName: "Musterfrau", Active: true})

	tenants, err := store.ListActiveTenants(ctx, userA)
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, "Mustermann", tenants[0].LastName)
}
