// Package gormledger implements the ledger boundary on SQLite via GORM.
// The per-user fingerprint unique index is the authoritative duplicate
// guard, and RollbackImport runs as one database transaction.
package gormledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mietwerk/bankrecon/internal/ledger"
	"mietwerk/bankrecon/internal/models"
)

// GormLedger is the SQLite-backed Ledger implementation.
type GormLedger struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path and migrates the schema.
func Open(path string) (*GormLedger, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(
		&models.BankImportFile{},
		&models.BankTransaction{},
		&models.BankTransactionAllocation{},
		&models.Tenant{},
		&models.RentPayment{},
		&models.IncomeEntry{},
		&models.Expense{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormLedger{db: db}, nil
}

// NewWithDB wraps an already opened gorm connection. Used by tests that
// share an in-memory database.
func NewWithDB(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ledger.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ledger.ErrDuplicateFingerprint
	default:
		return err
	}
}

// Import files.

func (g *GormLedger) InsertImportFile(ctx context.Context, file *models.BankImportFile) error {
	return translate(g.db.WithContext(ctx).Create(file).Error)
}

func (g *GormLedger) GetImportFile(ctx context.Context, userID, fileID uuid.UUID) (*models.BankImportFile, error) {
	var file models.BankImportFile
	err := g.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", fileID, userID).
		First(&file).Error
	if err != nil {
		return nil, translate(err)
	}
	return &file, nil
}

func (g *GormLedger) UpdateImportFile(ctx context.Context, file *models.BankImportFile) error {
	return translate(g.db.WithContext(ctx).Save(file).Error)
}

// Transactions.

func (g *GormLedger) InsertTransaction(ctx context.Context, tx *models.BankTransaction) error {
	return translate(g.db.WithContext(ctx).Create(tx).Error)
}

func (g *GormLedger) GetTransaction(ctx context.Context, userID, txID uuid.UUID) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	err := g.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", txID, userID).
		First(&tx).Error
	if err != nil {
		return nil, translate(err)
	}
	return &tx, nil
}

func (g *GormLedger) FindTransactionByFingerprint(ctx context.Context, userID uuid.UUID, fp string) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND fingerprint = ?", userID, fp).
		First(&tx).Error
	if err != nil {
		return nil, translate(err)
	}
	return &tx, nil
}

func (g *GormLedger) ListTransactions(ctx context.Context, userID uuid.UUID, filter ledger.TransactionFilter) ([]models.BankTransaction, int64, error) {
	query := g.db.WithContext(ctx).Model(&models.BankTransaction{}).Where("user_id = ?", userID)
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.From != nil {
		query = query.Where("booking_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("booking_date <= ?", *filter.To)
	}
	if filter.Direction != "" {
		query = query.Where("direction = ?", filter.Direction)
	}
	if filter.ImportFileID != nil {
		query = query.Where("import_file_id = ?", *filter.ImportFileID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	query = query.Order("booking_date DESC, id ASC")
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var transactions []models.BankTransaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, translate(err)
	}
	return transactions, total, nil
}

func (g *GormLedger) UpdateTransaction(ctx context.Context, tx *models.BankTransaction) error {
	return translate(g.db.WithContext(ctx).Save(tx).Error)
}

func (g *GormLedger) CountTransactionsByStatus(ctx context.Context, userID uuid.UUID) (map[models.TransactionStatus]int64, error) {
	type row struct {
		Status models.TransactionStatus
		Count  int64
	}
	var rows []row
	err := g.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Select("status, count(*) as count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	counts := make(map[models.TransactionStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (g *GormLedger) CountTransactionsForImportFile(ctx context.Context, userID, fileID uuid.UUID) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("user_id = ? AND import_file_id = ?", userID, fileID).
		Count(&count).Error
	return count, translate(err)
}

// Allocations.

func (g *GormLedger) InsertAllocations(ctx context.Context, allocations []models.BankTransactionAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	return translate(g.db.WithContext(ctx).Create(&allocations).Error)
}

func (g *GormLedger) LiveAllocationsForTransaction(ctx context.Context, userID, txID uuid.UUID) ([]models.BankTransactionAllocation, error) {
	var allocations []models.BankTransactionAllocation
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND transaction_id = ? AND deleted_at IS NULL", userID, txID).
		Order("created_at ASC").
		Find(&allocations).Error
	return allocations, translate(err)
}

func (g *GormLedger) LiveAllocationsForTarget(ctx context.Context, userID uuid.UUID, target models.AllocationTarget, targetID uuid.UUID) ([]models.BankTransactionAllocation, error) {
	var allocations []models.BankTransactionAllocation
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND target = ? AND target_id = ? AND deleted_at IS NULL", userID, target, targetID).
		Order("created_at ASC").
		Find(&allocations).Error
	return allocations, translate(err)
}

func (g *GormLedger) SoftDeleteAllocationsForTransaction(ctx context.Context, userID, txID uuid.UUID, at time.Time) (int, error) {
	result := g.db.WithContext(ctx).Model(&models.BankTransactionAllocation{}).
		Where("user_id = ? AND transaction_id = ? AND deleted_at IS NULL", userID, txID).
		Update("deleted_at", at)
	return int(result.RowsAffected), translate(result.Error)
}

// Obligations.

func (g *GormLedger) GetRentPayment(ctx context.Context, userID, id uuid.UUID) (*models.RentPayment, error) {
	var rent models.RentPayment
	err := g.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&rent).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rent, nil
}

func (g *GormLedger) UpdateRentPayment(ctx context.Context, rent *models.RentPayment) error {
	return translate(g.db.WithContext(ctx).Save(rent).Error)
}

func (g *GormLedger) GetIncomeEntry(ctx context.Context, userID, id uuid.UUID) (*models.IncomeEntry, error) {
	var entry models.IncomeEntry
	err := g.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (g *GormLedger) UpdateIncomeEntry(ctx context.Context, entry *models.IncomeEntry) error {
	return translate(g.db.WithContext(ctx).Save(entry).Error)
}

func (g *GormLedger) GetExpense(ctx context.Context, userID, id uuid.UUID) (*models.Expense, error) {
	var expense models.Expense
	err := g.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&expense).Error
	if err != nil {
		return nil, translate(err)
	}
	return &expense, nil
}

func (g *GormLedger) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	return translate(g.db.WithContext(ctx).Save(expense).Error)
}

func (g *GormLedger) ListActiveTenants(ctx context.Context, userID uuid.UUID) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("last_name ASC").
		Find(&tenants).Error
	return tenants, translate(err)
}

// RollbackImport reverses everything one import file produced, inside a
// single database transaction so partial rollback is never observable.
func (g *GormLedger) RollbackImport(ctx context.Context, userID, fileID uuid.UUID) (ledger.RollbackResult, error) {
	var result ledger.RollbackResult

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var file models.BankImportFile
		if err := tx.Where("id = ? AND user_id = ?", fileID, userID).First(&file).Error; err != nil {
			return translate(err)
		}

		var transactions []models.BankTransaction
		if err := tx.Where("user_id = ? AND import_file_id = ?", userID, fileID).
			Find(&transactions).Error; err != nil {
			return err
		}

		now := time.Now()
		touched := map[models.AllocationTarget]map[uuid.UUID]bool{}

		for i := range transactions {
			var live []models.BankTransactionAllocation
			if err := tx.Where("user_id = ? AND transaction_id = ? AND deleted_at IS NULL",
				userID, transactions[i].ID).Find(&live).Error; err != nil {
				return err
			}
			for j := range live {
				if touched[live[j].Target] == nil {
					touched[live[j].Target] = map[uuid.UUID]bool{}
				}
				touched[live[j].Target][live[j].TargetID] = true
			}
			deleted := tx.Model(&models.BankTransactionAllocation{}).
				Where("user_id = ? AND transaction_id = ? AND deleted_at IS NULL", userID, transactions[i].ID).
				Update("deleted_at", now)
			if deleted.Error != nil {
				return deleted.Error
			}
			result.DeletedAllocations += int(deleted.RowsAffected)
		}

		if len(transactions) > 0 {
			removed := tx.Where("user_id = ? AND import_file_id = ?", userID, fileID).
				Delete(&models.BankTransaction{})
			if removed.Error != nil {
				return removed.Error
			}
			result.DeletedTransactions = int(removed.RowsAffected)
		}

		for target, ids := range touched {
			for id := range ids {
				recalced, err := recalcObligation(tx, userID, target, id)
				if err != nil {
					return err
				}
				if recalced {
					result.RecalcedObligations++
				}
			}
		}

		file.Status = models.ImportRolledBack
		file.DeletedAt = &now
		return tx.Save(&file).Error
	})
	if err != nil {
		return ledger.RollbackResult{}, err
	}
	return result, nil
}

// recalcObligation rederives one obligation's paid state from its remaining
// live allocations, inside the rollback transaction.
func recalcObligation(tx *gorm.DB, userID uuid.UUID, target models.AllocationTarget, targetID uuid.UUID) (bool, error) {
	var live []models.BankTransactionAllocation
	if err := tx.Where("user_id = ? AND target = ? AND target_id = ? AND deleted_at IS NULL",
		userID, target, targetID).Find(&live).Error; err != nil {
		return false, err
	}
	paid := models.SumLiveAllocations(live)

	switch target {
	case models.TargetRentPayment:
		var rent models.RentPayment
		if err := tx.Where("id = ? AND user_id = ?", targetID, userID).First(&rent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		rent.PaidAmount = paid
		rent.Status = models.DeriveRentStatus(paid, rent.DueAmount)
		if rent.Status == models.RentPaid {
			rent.Paid = true
		} else {
			rent.Paid = false
			rent.PaidDate = nil
		}
		return true, tx.Save(&rent).Error
	case models.TargetIncomeEntry:
		var entry models.IncomeEntry
		if err := tx.Where("id = ? AND user_id = ?", targetID, userID).First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		entry.Status = models.DeriveEntryStatus(paid, entry.Amount)
		return true, tx.Save(&entry).Error
	case models.TargetExpense:
		var expense models.Expense
		if err := tx.Where("id = ? AND user_id = ?", targetID, userID).First(&expense).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		expense.Status = models.DeriveEntryStatus(paid, expense.Amount)
		return true, tx.Save(&expense).Error
	}
	return false, nil
}
