// Package ledger defines the persistence boundary of the reconciliation
// core. Every persisted entity crosses it as an explicit typed record; the
// implementation decides how rows are stored. The interface is threaded
// through service constructors so tests can substitute the in-memory fake.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"mietwerk/bankrecon/internal/models"
)

var (
	// ErrNotFound is returned when a referenced row does not exist for the
	// requesting user.
	ErrNotFound = errors.New("ledger: not found")
	// ErrDuplicateFingerprint is returned when inserting a transaction whose
	// fingerprint already exists for the user. It is the authoritative
	// duplicate guard behind the lookup-then-insert fast path.
	ErrDuplicateFingerprint = errors.New("ledger: duplicate fingerprint")
)

// TransactionFilter narrows a transaction listing. Zero values mean "no
// constraint"; Limit of 0 means no pagination.
type TransactionFilter struct {
	Statuses     []models.TransactionStatus
	From         *time.Time
	To           *time.Time
	Direction    models.Direction
	ImportFileID *uuid.UUID
	Limit        int
	Offset       int
}

// RollbackResult summarizes what an import rollback removed and touched.
type RollbackResult struct {
	DeletedAllocations  int
	DeletedTransactions int
	RecalcedObligations int
}

// Ledger is the transactional store the reconciliation core runs against.
// Implementations must execute RollbackImport as a single atomic unit: a
// partially rolled back import must never be observable.
type Ledger interface {
	// Import files.
	InsertImportFile(ctx context.Context, file *models.BankImportFile) error
	GetImportFile(ctx context.Context, userID, fileID uuid.UUID) (*models.BankImportFile, error)
	UpdateImportFile(ctx context.Context, file *models.BankImportFile) error

	// Bank transactions.
	InsertTransaction(ctx context.Context, tx *models.BankTransaction) error
	GetTransaction(ctx context.Context, userID, txID uuid.UUID) (*models.BankTransaction, error)
	FindTransactionByFingerprint(ctx context.Context, userID uuid.UUID, fp string) (*models.BankTransaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, filter TransactionFilter) ([]models.BankTransaction, int64, error)
	UpdateTransaction(ctx context.Context, tx *models.BankTransaction) error
	CountTransactionsByStatus(ctx context.Context, userID uuid.UUID) (map[models.TransactionStatus]int64, error)
	CountTransactionsForImportFile(ctx context.Context, userID, fileID uuid.UUID) (int64, error)

	// Allocations. Soft deletes set the deletion timestamp; rows are never
	// physically removed.
	InsertAllocations(ctx context.Context, allocations []models.BankTransactionAllocation) error
	LiveAllocationsForTransaction(ctx context.Context, userID, txID uuid.UUID) ([]models.BankTransactionAllocation, error)
	LiveAllocationsForTarget(ctx context.Context, userID uuid.UUID, target models.AllocationTarget, targetID uuid.UUID) ([]models.BankTransactionAllocation, error)
	SoftDeleteAllocationsForTransaction(ctx context.Context, userID, txID uuid.UUID, at time.Time) (int, error)

	// Obligations.
	GetRentPayment(ctx context.Context, userID, id uuid.UUID) (*models.RentPayment, error)
	UpdateRentPayment(ctx context.Context, rent *models.RentPayment) error
	GetIncomeEntry(ctx context.Context, userID, id uuid.UUID) (*models.IncomeEntry, error)
	UpdateIncomeEntry(ctx context.Context, entry *models.IncomeEntry) error
	GetExpense(ctx context.Context, userID, id uuid.UUID) (*models.Expense, error)
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// Tenants the suggestion scorer matches against.
	ListActiveTenants(ctx context.Context, userID uuid.UUID) ([]models.Tenant, error)

	// RollbackImport atomically soft-deletes all live allocations created
	// against the file's transactions, recomputes the obligations those
	// allocations touched, hard-deletes the file's transactions and marks
	// the file rolled back.
	RollbackImport(ctx context.Context, userID, fileID uuid.UUID) (RollbackResult, error)
}
