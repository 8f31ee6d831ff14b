package importer

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mietwerk/bankrecon/internal/allocation"
	"mietwerk/bankrecon/internal/csvparser"
	"mietwerk/bankrecon/internal/ledger"
	"mietwerk/bankrecon/internal/models"
)

var testUser = uuid.MustParse("11111111-2222-3333-4444-555555555555")

const sampleCSV = `Buchungstag;Betrag;Name;IBAN;Verwendungszweck
01.03.2025;950,00;Max Mustermann;DE89370400440532013000;Miete März
02.03.2025;1200,50;Erika Musterfrau;DE02120300000000202051;Miete und NK
Saldo;;;;
`

func newCSVService(store ledger.Ledger) *Service {
	registry := NewRegistry()
	registry.Register(models.SourceCSV, csvparser.New(csvparser.ColumnMapping{
		BookingDate:      "Buchungstag",
		Amount:           "Betrag",
		CounterpartyName: "Name",
		CounterpartyIBAN: "IBAN",
		UsageText:        "Verwendungszweck",
	}, csvparser.FormatHints{}))
	return NewService(store, registry, nil)
}

func TestService_Import(t *testing.T) {
	store := ledger.NewMemoryLedger()
	service := newCSVService(store)
	ctx := context.Background()

	file, err := service.Import(ctx, testUser, "umsaetze.csv", models.SourceCSV, []byte(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, models.ImportCompleted, file.Status)
	assert.Equal(t, 2, file.TotalRows)
	assert.Equal(t, 2, file.ImportedRows)
	assert.Equal(t, 0, file.DuplicateRows)
	assert.Equal(t, 1, file.SkippedRows)
	assert.Empty(t, file.RowErrors)

	transactions, total, err := store.ListTransactions(ctx, testUser, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, tx := range transactions {
		assert.Equal(t, models.StatusUnmatched, tx.Status)
		assert.Equal(t, file.ID, tx.ImportFileID)
		assert.NotEmpty(t, tx.Fingerprint)
	}
}

func TestService_Import_ReimportIsIdempotent(t *testing.T) {
	store := ledger.NewMemoryLedger()
	service := newCSVService(store)
	ctx := context.Background()

	first, err := service.Import(ctx, testUser, "umsaetze.csv", models.SourceCSV, []byte(sampleCSV))
	require.NoError(t, err)
	require.Equal(t, 2, first.ImportedRows)

	second, err := service.Import(ctx, testUser, "umsaetze-again.csv", models.SourceCSV, []byte(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, models.ImportCompleted, second.Status)
	assert.Equal(t, 0, second.ImportedRows)
	assert.Equal(t, second.TotalRows, second.DuplicateRows, "every row of a re-import is a duplicate")

	_, total, err := store.ListTransactions(ctx, testUser, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestService_Import_OtherUserNotDeduplicated(t *testing.T) {
	store := ledger.NewMemoryLedger()
	service := newCSVService(store)
	ctx := context.Background()

	_, err := service.Import(ctx, testUser, "a.csv", models.SourceCSV, []byte(sampleCSV))
	require.NoError(t, err)

	otherUser := uuid.MustParse("99999999-2222-3333-4444-555555555555")
	file, err := service.Import(ctx, otherUser, "b.csv", models.SourceCSV, []byte(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, file.ImportedRows, "fingerprints are scoped per user")
}

func TestService_Import_ParseFailure(t *testing.T) {
	store := ledger.NewMemoryLedger()
	service := newCSVService(store)
	ctx := context.Background()

	file, err := service.Import(ctx, testUser, "broken.csv", models.SourceCSV, []byte("Datum;Text\n01.03.2025;x\n"))
	require.Error(t, err)
	require.NotNil(t, file)

	assert.Equal(t, models.ImportFailed, file.Status)
	assert.NotEmpty(t, file.ErrorMessage)

	_, total, listErr := store.ListTransactions(ctx, testUser, ledger.TransactionFilter{})
	require.NoError(t, listErr)
	assert.Zero(t, total, "a failed parse persists nothing")

	stored, getErr := store.GetImportFile(ctx, testUser, file.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ImportFailed, stored.Status)
}

func TestService_Import_UnknownSource(t *testing.T) {
	store := ledger.NewMemoryLedger()
	service := newCSVService(store)

	file, err := service.Import(context.Background(), testUser, "statement.sta", models.SourceMT940, []byte("dummy"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parser registered")
	assert.Equal(t, models.ImportFailed, file.Status)
}

func TestService_Rollback(t *testing.T) {
	store := ledger.NewMemoryLedger()
	service := newCSVService(store)
	ctx := context.Background()

	file, err := service.Import(ctx, testUser, "umsaetze.csv", models.SourceCSV, []byte(sampleCSV))
	require.NoError(t, err)

	// Allocate one imported transaction to a rent due so the rollback has an
	// obligation to reset.
	rent := models.RentPayment{
		ID:        uuid.New(),
		UserID:    testUser,
		DueAmount: decimal.RequireFromString("950.00"),
		DueDate:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:    models.RentUnpaid,
	}
	store.AddRentPayment(rent)

	transactions, _, err := store.ListTransactions(ctx, testUser, ledger.TransactionFilter{ImportFileID: &file.ID})
	require.NoError(t, err)
	require.Len(t, transactions, 2)

	allocator := allocation.NewService(store, nil)
	require.NoError(t, allocator.Allocate(ctx, testUser, transactions[1].ID, []allocation.Request{{
		Target:   models.TargetRentPayment,
		TargetID: rent.ID,
		Amount:   decimal.RequireFromString("950.00"),
	}}, models.CreatedByManual))

	paidRent, err := store.GetRentPayment(ctx, testUser, rent.ID)
	require.NoError(t, err)
	require.Equal(t, models.RentPaid, paidRent.Status)

	outcome, err := service.Rollback(ctx, testUser, file.ID)
	require.NoError(t, err)
	require.False(t, outcome.AlreadyDeleted)
	assert.Equal(t, 2, outcome.Result.DeletedTransactions)
	assert.Equal(t, 1, outcome.Result.DeletedAllocations)
	assert.Equal(t, 1, outcome.Result.RecalcedObligations)

	_, total, err := store.ListTransactions(ctx, testUser, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total, "rollback removes every transaction of the file")

	resetRent, err := store.GetRentPayment(ctx, testUser, rent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RentUnpaid, resetRent.Status)
	assert.True(t, resetRent.PaidAmount.IsZero(), "got %s", resetRent.PaidAmount)
	assert.False(t, resetRent.Paid)

	rolled, err := store.GetImportFile(ctx, testUser, file.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ImportRolledBack, rolled.Status)
	assert.NotNil(t, rolled.DeletedAt)
	assert.NotEmpty(t, rolled.RollbackSummary)
}

func TestService_Rollback_Idempotent(t *testing.T) {
	store := ledger.NewMemoryLedger()
	service := newCSVService(store)
	ctx := context.Background()

	file, err := service.Import(ctx, testUser, "umsaetze.csv", models.SourceCSV, []byte(sampleCSV))
	require.NoError(t, err)

	first, err := service.Rollback(ctx, testUser, file.ID)
	require.NoError(t, err)
	assert.False(t, first.AlreadyDeleted)

	second, err := service.Rollback(ctx, testUser, file.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyDeleted)
	assert.Zero(t, second.Result.DeletedTransactions)
}

func TestService_Rollback_UnknownFile(t *testing.T) {
	store := ledger.NewMemoryLedger()
	service := newCSVService(store)

	_, err := service.Rollback(context.Background(), testUser, uuid.New())
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestService_CanRollback(t *testing.T) {
	store := ledger.NewMemoryLedger()
	service := newCSVService(store)
	ctx := context.Background()

	file, err := service.Import(ctx, testUser, "umsaetze.csv", models.SourceCSV, []byte(sampleCSV))
	require.NoError(t, err)

	ok, err := service.CanRollback(ctx, testUser, file.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = service.Rollback(ctx, testUser, file.ID)
	require.NoError(t, err)

	ok, err = service.CanRollback(ctx, testUser, file.ID)
	require.NoError(t, err)
	assert.False(t, ok, "a rolled back file has nothing left to reverse")
}

func TestService_CanRollback_FailedFile(t *testing.T) {
	store := ledger.NewMemoryLedger()
	service := newCSVService(store)
	ctx := context.Background()

	file, err := service.Import(ctx, testUser, "broken.csv", models.SourceCSV, []byte("garbage"))
	require.Error(t, err)

	ok, canErr := service.CanRollback(ctx, testUser, file.ID)
	require.NoError(t, canErr)
	assert.False(t, ok)
}
