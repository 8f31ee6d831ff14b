package gormledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mietwerk/bankrecon/internal/ledger"
	"mietwerk/bankrecon/internal/models"
)

var testUser = uuid.MustParse("11111111-2222-3333-4444-555555555555")

func openTestLedger(t *testing.T) *GormLedger {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "bankrecon.db"))
	require.NoError(t, err)
	return store
}

func makeTx(fp string) *models.BankTransaction {
	return &models.BankTransaction{
		ID:          uuid.New(),
		UserID:      testUser,
		BookingDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("950.00"),
		Currency:    "EUR",
		Direction:   models.DirectionCredit,
		Fingerprint: fp,
		Status:      models.StatusUnmatched,
	}
}

func TestGormLedger_DuplicateFingerprint(t *testing.T) {
	store := openTestLedger(t)
	ctx := context.Background()

	require.NoError(t, store.InsertTransaction(ctx, makeTx("fp-1")))

	err := store.InsertTransaction(ctx, makeTx("fp-1"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateFingerprint,
		"the unique index violation maps to the ledger's duplicate error")
}

func TestGormLedger_NotFoundTranslation(t *testing.T) {
	store := openTestLedger(t)
	ctx := context.Background()

	_, err := store.GetTransaction(ctx, testUser, uuid.New())
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = store.GetImportFile(ctx, testUser, uuid.New())
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = store.FindTransactionByFingerprint(ctx, testUser, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestGormLedger_TransactionRoundTrip(t *testing.T) {
	store := openTestLedger(t)
	ctx := context.Background()

	tx := makeTx("fp-1")
	tx.CounterpartyName = "Max Mustermann"
	tx.UsageText = "Miete März"
	require.NoError(t, store.InsertTransaction(ctx, tx))

	got, err := store.GetTransaction(ctx, testUser, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "Max Mustermann", got.CounterpartyName)
	assert.Equal(t, "Miete März", got.UsageText)
	assert.True(t, got.Amount.Equal(tx.Amount), "got %s", got.Amount)

	got.Status = models.StatusIgnored
	require.NoError(t, store.UpdateTransaction(ctx, got))

	counts, err := store.CountTransactionsByStatus(ctx, testUser)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.StatusIgnored])
}

func TestGormLedger_ImportFileRowErrors(t *testing.T) {
	store := openTestLedger(t)
	ctx := context.Background()

	file := &models.BankImportFile{
		ID:        uuid.New(),
		UserID:    testUser,
		Filename:  "umsaetze.csv",
		Source:    models.SourceCSV,
		Status:    models.ImportCompleted,
		RowErrors: []string{"row insert (2025-03-01): boom"},
	}
	require.NoError(t, store.InsertImportFile(ctx, file))

	got, err := store.GetImportFile(ctx, testUser, file.ID)
	require.NoError(t, err)
	assert.Equal(t, file.RowErrors, got.RowErrors, "row errors survive the JSON serializer round trip")
}

func TestGormLedger_RollbackImport(t *testing.T) {
	store := openTestLedger(t)
	ctx := context.Background()

	file := &models.BankImportFile{
		ID:       uuid.New(),
		UserID:   testUser,
		Filename: "umsaetze.csv",
		Source:   models.SourceCSV,
		Status:   models.ImportCompleted,
	}
	require.NoError(t, store.InsertImportFile(ctx, file))

	tx := makeTx("fp-1")
	tx.ImportFileID = file.ID
	require.NoError(t, store.InsertTransaction(ctx, tx))

	rent := &models.RentPayment{
		ID:         uuid.New(),
		UserID:     testUser,
		DueDate:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		DueAmount:  decimal.RequireFromString("950.00"),
		PaidAmount: decimal.RequireFromString("950.00"),
		Status:     models.RentPaid,
		Paid:       true,
	}
	require.NoError(t, store.db.Create(rent).Error)

	require.NoError(t, store.InsertAllocations(ctx, []models.BankTransactionAllocation{{
		ID:            uuid.New(),
		UserID:        testUser,
		TransactionID: tx.ID,
		Target:        models.TargetRentPayment,
		TargetID:      rent.ID,
		Amount:        decimal.RequireFromString("950.00"),
		CreatedBy:     models.CreatedByManual,
		CreatedAt:     time.Now(),
	}}))

	result, err := store.RollbackImport(ctx, testUser, file.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedTransactions)
	assert.Equal(t, 1, result.DeletedAllocations)
	assert.Equal(t, 1, result.RecalcedObligations)

	_, err = store.GetTransaction(ctx, testUser, tx.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound, "rollback hard-deletes the file's transactions")

	gotRent, err := store.GetRentPayment(ctx, testUser, rent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RentUnpaid, gotRent.Status)
	assert.True(t, gotRent.PaidAmount.IsZero(), "got %s", gotRent.PaidAmount)
	assert.False(t, gotRent.Paid)

	gotFile, err := store.GetImportFile(ctx, testUser, file.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportRolledBack, gotFile.Status)
	assert.NotNil(t, gotFile.DeletedAt)
}
