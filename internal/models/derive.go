package models

import "github.com/shopspring/decimal"

// AllocationTolerance is the cent tolerance applied when comparing an
// allocation sum against a transaction's amount or an obligation's due
// amount.
var AllocationTolerance = decimal.New(1, -2)

// DeriveRentStatus derives a rent due's status from the sum of its live
// allocations versus its due amount. Status is always recomputed from this
// rule, never incremented in place.
func DeriveRentStatus(paidAmount, dueAmount decimal.Decimal) RentStatus {
	switch {
	case paidAmount.GreaterThanOrEqual(dueAmount):
		return RentPaid
	case paidAmount.IsPositive():
		return RentPartial
	default:
		return RentUnpaid
	}
}

// DeriveEntryStatus derives an income or expense entry's status from the sum
// of its live allocations versus the entry's own absolute amount.
func DeriveEntryStatus(paidAmount, entryAmount decimal.Decimal) EntryStatus {
	if paidAmount.GreaterThanOrEqual(entryAmount.Abs()) {
		return EntryPaid
	}
	return EntryOpen
}

// SumLiveAllocations returns the sum of the non-deleted allocations.
func SumLiveAllocations(allocations []BankTransactionAllocation) decimal.Decimal {
	sum := decimal.Zero
	for i := range allocations {
		if allocations[i].IsLive() {
			sum = sum.Add(allocations[i].Amount)
		}
	}
	return sum
}
