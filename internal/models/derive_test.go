package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDeriveRentStatus(t *testing.T) {
	tests := []struct {
		name     string
		paid     string
		due      string
		expected RentStatus
	}{
		{"nothing paid", "0", "950.00", RentUnpaid},
		{"partially paid", "400.00", "950.00", RentPartial},
		{"exactly paid", "950.00", "950.00", RentPaid},
		{"overpaid", "1000.00", "950.00", RentPaid},
		{"zero due", "0", "0", RentPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveRentStatus(d(tt.paid), d(tt.due)))
		})
	}
}

func TestDeriveEntryStatus(t *testing.T) {
	assert.Equal(t, EntryOpen, DeriveEntryStatus(d("0"), d("-80.00")))
	assert.Equal(t, EntryOpen, DeriveEntryStatus(d("79.99"), d("-80.00")))
	assert.Equal(t, EntryPaid, DeriveEntryStatus(d("80.00"), d("-80.00")), "the entry's own sign does not matter")
	assert.Equal(t, EntryPaid, DeriveEntryStatus(d("80.00"), d("80.00")))
}

func TestSumLiveAllocations(t *testing.T) {
	now := time.Now()
	allocations := []BankTransactionAllocation{
		{Amount: d("600.00")},
		{Amount: d("400.00")},
		{Amount: d("123.45"), DeletedAt: &now},
	}

	sum := SumLiveAllocations(allocations)
	assert.True(t, sum.Equal(d("1000.00")), "soft-deleted rows do not count, got %s", sum)
}

func TestBankImportFile_CanRollback(t *testing.T) {
	now := time.Now()
	assert.True(t, (&BankImportFile{Status: ImportCompleted}).CanRollback())
	assert.False(t, (&BankImportFile{Status: ImportFailed}).CanRollback())
	assert.False(t, (&BankImportFile{Status: ImportRolledBack}).CanRollback())
	assert.False(t, (&BankImportFile{Status: ImportCompleted, DeletedAt: &now}).CanRollback())
}

func TestTenant_FullName(t *testing.T) {
	assert.Equal(t, "Max Mustermann", (&Tenant{FirstName: "Max", LastName: "Mustermann"}).FullName())
	assert.Equal(t, "Mustermann", (&Tenant{LastName: "Mustermann"}).FullName())
}

func TestBankTransaction_Direction(t *testing.T) {
	credit := &BankTransaction{Direction: DirectionCredit, Amount: d("950.00")}
	assert.True(t, credit.IsCredit())
	assert.False(t, credit.IsDebit())

	debit := &BankTransaction{Direction: DirectionDebit, Amount: d("-80.00")}
	assert.True(t, debit.IsDebit())
	assert.True(t, debit.AbsAmount().Equal(d("80.00")))
}
