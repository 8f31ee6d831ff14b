package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mietwerk/bankrecon/internal/models"
)

// MemoryLedger is an in-memory Ledger for tests and local experimentation.
// It mirrors the semantics of the SQL-backed implementation, including the
// fingerprint uniqueness guard and the atomic rollback.
type MemoryLedger struct {
	mu            sync.Mutex
	importFiles   map[uuid.UUID]*models.BankImportFile
	transactions  map[uuid.UUID]*models.BankTransaction
	allocations   map[uuid.UUID]*models.BankTransactionAllocation
	tenants       map[uuid.UUID]*models.Tenant
	rentPayments  map[uuid.UUID]*models.RentPayment
	incomeEntries map[uuid.UUID]*models.IncomeEntry
	expenses      map[uuid.UUID]*models.Expense
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		importFiles:   map[uuid.UUID]*models.BankImportFile{},
		transactions:  map[uuid.UUID]*models.BankTransaction{},
		allocations:   map[uuid.UUID]*models.BankTransactionAllocation{},
		tenants:       map[uuid.UUID]*models.Tenant{},
		rentPayments:  map[uuid.UUID]*models.RentPayment{},
		incomeEntries: map[uuid.UUID]*models.IncomeEntry{},
		expenses:      map[uuid.UUID]*models.Expense{},
	}
}

// Seed helpers for tests.

// AddTenant stores a tenant.
func (m *MemoryLedger) AddTenant(t models.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = &t
}

// AddRentPayment stores a rent due.
func (m *MemoryLedger) AddRentPayment(r models.RentPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rentPayments[r.ID] = &r
}

// AddIncomeEntry stores an income entry.
func (m *MemoryLedger) AddIncomeEntry(e models.IncomeEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incomeEntries[e.ID] = &e
}

// AddExpense stores an expense.
func (m *MemoryLedger) AddExpense(e models.Expense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[e.ID] = &e
}

// Import files.

func (m *MemoryLedger) InsertImportFile(_ context.Context, file *models.BankImportFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *file
	m.importFiles[file.ID] = &cp
	return nil
}

func (m *MemoryLedger) GetImportFile(_ context.Context, userID, fileID uuid.UUID) (*models.BankImportFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.importFiles[fileID]
	if !ok || f.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryLedger) UpdateImportFile(_ context.Context, file *models.BankImportFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.importFiles[file.ID]; !ok {
		return ErrNotFound
	}
	cp := *file
	cp.UpdatedAt = time.Now()
	m.importFiles[file.ID] = &cp
	return nil
}

// Transactions.

func (m *MemoryLedger) InsertTransaction(_ context.Context, tx *models.BankTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.transactions {
		if existing.UserID == tx.UserID && existing.Fingerprint == tx.Fingerprint {
			return ErrDuplicateFingerprint
		}
	}
	cp := *tx
	m.transactions[tx.ID] = &cp
	return nil
}

func (m *MemoryLedger) GetTransaction(_ context.Context, userID, txID uuid.UUID) (*models.BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[txID]
	if !ok || tx.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (m *MemoryLedger) FindTransactionByFingerprint(_ context.Context, userID uuid.UUID, fp string) (*models.BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.transactions {
		if tx.UserID == userID && tx.Fingerprint == fp {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryLedger) ListTransactions(_ context.Context, userID uuid.UUID, filter TransactionFilter) ([]models.BankTransaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []models.BankTransaction
	for _, tx := range m.transactions {
		if tx.UserID != userID || !matchesFilter(tx, filter) {
			continue
		}
		matched = append(matched, *tx)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].BookingDate.Equal(matched[j].BookingDate) {
			return matched[i].BookingDate.After(matched[j].BookingDate)
		}
		return strings.Compare(matched[i].ID.String(), matched[j].ID.String()) < 0
	})

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func matchesFilter(tx *models.BankTransaction, filter TransactionFilter) bool {
	if len(filter.Statuses) > 0 {
		found := false
		for _, s := range filter.Statuses {
			if tx.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.From != nil && tx.BookingDate.Before(*filter.From) {
		return false
	}
	if filter.To != nil && tx.BookingDate.After(*filter.To) {
		return false
	}
	if filter.Direction != "" && tx.Direction != filter.Direction {
		return false
	}
	if filter.ImportFileID != nil && tx.ImportFileID != *filter.ImportFileID {
		return false
	}
	return true
}

func (m *MemoryLedger) UpdateTransaction(_ context.Context, tx *models.BankTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[tx.ID]; !ok {
		return ErrNotFound
	}
	cp := *tx
	cp.UpdatedAt = time.Now()
	m.transactions[tx.ID] = &cp
	return nil
}

func (m *MemoryLedger) CountTransactionsByStatus(_ context.Context, userID uuid.UUID) (map[models.TransactionStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[models.TransactionStatus]int64{}
	for _, tx := range m.transactions {
		if tx.UserID == userID {
			counts[tx.Status]++
		}
	}
	return counts, nil
}

func (m *MemoryLedger) CountTransactionsForImportFile(_ context.Context, userID, fileID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, tx := range m.transactions {
		if tx.UserID == userID && tx.ImportFileID == fileID {
			count++
		}
	}
	return count, nil
}

// Allocations.

func (m *MemoryLedger) InsertAllocations(_ context.Context, allocations []models.BankTransactionAllocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range allocations {
		cp := allocations[i]
		m.allocations[cp.ID] = &cp
	}
	return nil
}

func (m *MemoryLedger) LiveAllocationsForTransaction(_ context.Context, userID, txID uuid.UUID) ([]models.BankTransactionAllocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveAllocationsForTransactionLocked(userID, txID), nil
}

func (m *MemoryLedger) liveAllocationsForTransactionLocked(userID, txID uuid.UUID) []models.BankTransactionAllocation {
	var result []models.BankTransactionAllocation
	for _, a := range m.allocations {
		if a.UserID == userID && a.TransactionID == txID && a.IsLive() {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (m *MemoryLedger) LiveAllocationsForTarget(_ context.Context, userID uuid.UUID, target models.AllocationTarget, targetID uuid.UUID) ([]models.BankTransactionAllocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveAllocationsForTargetLocked(userID, target, targetID), nil
}

func (m *MemoryLedger) liveAllocationsForTargetLocked(userID uuid.UUID, target models.AllocationTarget, targetID uuid.UUID) []models.BankTransactionAllocation {
	var result []models.BankTransactionAllocation
	for _, a := range m.allocations {
		if a.UserID == userID && a.Target == target && a.TargetID == targetID && a.IsLive() {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (m *MemoryLedger) SoftDeleteAllocationsForTransaction(_ context.Context, userID, txID uuid.UUID, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for _, a := range m.allocations {
		if a.UserID == userID && a.TransactionID == txID && a.IsLive() {
			t := at
			a.DeletedAt = &t
			deleted++
		}
	}
	return deleted, nil
}

// Obligations.

func (m *MemoryLedger) GetRentPayment(_ context.Context, userID, id uuid.UUID) (*models.RentPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rentPayments[id]
	if !ok || r.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryLedger) UpdateRentPayment(_ context.Context, rent *models.RentPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rentPayments[rent.ID]; !ok {
		return ErrNotFound
	}
	cp := *rent
	cp.UpdatedAt = time.Now()
	m.rentPayments[rent.ID] = &cp
	return nil
}

func (m *MemoryLedger) GetIncomeEntry(_ context.Context, userID, id uuid.UUID) (*models.IncomeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.incomeEntries[id]
	if !ok || e.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryLedger) UpdateIncomeEntry(_ context.Context, entry *models.IncomeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.incomeEntries[entry.ID]; !ok {
		return ErrNotFound
	}
	cp := *entry
	cp.UpdatedAt = time.Now()
	m.incomeEntries[entry.ID] = &cp
	return nil
}

func (m *MemoryLedger) GetExpense(_ context.Context, userID, id uuid.UUID) (*models.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[id]
	if !ok || e.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryLedger) UpdateExpense(_ context.Context, expense *models.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expenses[expense.ID]; !ok {
		return ErrNotFound
	}
	cp := *expense
	cp.UpdatedAt = time.Now()
	m.expenses[expense.ID] = &cp
	return nil
}

func (m *MemoryLedger) ListActiveTenants(_ context.Context, userID uuid.UUID) ([]models.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.Tenant
	for _, t := range m.tenants {
		if t.UserID == userID && t.Active {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastName < result[j].LastName
	})
	return result, nil
}

// RollbackImport mirrors the single-transaction rollback of the SQL ledger:
// everything happens under one lock, so no partial state is observable.
func (m *MemoryLedger) RollbackImport(_ context.Context, userID, fileID uuid.UUID) (RollbackResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.importFiles[fileID]
	if !ok || file.UserID != userID {
		return RollbackResult{}, ErrNotFound
	}

	var result RollbackResult
	now := time.Now()
	touched := map[models.AllocationTarget]map[uuid.UUID]bool{}

	for _, tx := range m.transactions {
		if tx.UserID != userID || tx.ImportFileID != fileID {
			continue
		}
		for _, a := range m.allocations {
			if a.UserID == userID && a.TransactionID == tx.ID && a.IsLive() {
				t := now
				a.DeletedAt = &t
				result.DeletedAllocations++
				if touched[a.Target] == nil {
					touched[a.Target] = map[uuid.UUID]bool{}
				}
				touched[a.Target][a.TargetID] = true
			}
		}
		delete(m.transactions, tx.ID)
		result.DeletedTransactions++
	}

	for target, ids := range touched {
		for id := range ids {
			if m.recalcObligationLocked(userID, target, id) {
				result.RecalcedObligations++
			}
		}
	}

	file.Status = models.ImportRolledBack
	file.DeletedAt = &now
	file.UpdatedAt = now
	return result, nil
}

// recalcObligationLocked rederives one obligation's paid state from its
// remaining live allocations. Returns false when the obligation no longer
// exists.
func (m *MemoryLedger) recalcObligationLocked(userID uuid.UUID, target models.AllocationTarget, targetID uuid.UUID) bool {
	paid := models.SumLiveAllocations(m.liveAllocationsForTargetLocked(userID, target, targetID))
	switch target {
	case models.TargetRentPayment:
		rent, ok := m.rentPayments[targetID]
		if !ok {
			return false
		}
		rent.PaidAmount = paid
		rent.Status = models.DeriveRentStatus(paid, rent.DueAmount)
		if rent.Status == models.RentPaid {
			rent.Paid = true
		} else {
			rent.Paid = false
			rent.PaidDate = nil
		}
	case models.TargetIncomeEntry:
		entry, ok := m.incomeEntries[targetID]
		if !ok {
			return false
		}
		entry.Status = models.DeriveEntryStatus(paid, entry.Amount)
	case models.TargetExpense:
		expense, ok := m.expenses[targetID]
		if !ok {
			return false
		}
		expense.Status = models.DeriveEntryStatus(paid, expense.Amount)
	}
	return true
}
