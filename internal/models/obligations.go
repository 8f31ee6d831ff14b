package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RentStatus is the payment state of a rent due.
type RentStatus string

const (
	RentUnpaid  RentStatus = "unpaid"
	RentPartial RentStatus = "partial"
	RentPaid    RentStatus = "paid"
)

// EntryStatus is the payment state of a manual income or expense entry.
type EntryStatus string

const (
	EntryOpen EntryStatus = "open"
	EntryPaid EntryStatus = "paid"
)

// Tenant is a known counterparty the suggestion scorer matches against.
type Tenant struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DisplayName string    `json:"display_name,omitempty"`
	IBAN        string    `json:"iban,omitempty"`
	Active      bool      `gorm:"index" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FullName returns "First Last" with surrounding whitespace trimmed.
func (t *Tenant) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// RentPayment is a rent due that incoming transactions can satisfy.
// PaidAmount and Status are derived from the live allocation sum and are
// only ever recomputed, never incremented in place.
type RentPayment struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	TenantID   uuid.UUID       `gorm:"type:uuid;index" json:"tenant_id"`
	Period     string          `json:"period,omitempty"`
	DueDate    time.Time       `json:"due_date"`
	DueAmount  decimal.Decimal `gorm:"type:decimal(14,2)" json:"due_amount"`
	PaidAmount decimal.Decimal `gorm:"type:decimal(14,2)" json:"paid_amount"`
	Status     RentStatus      `gorm:"index" json:"status"`
	Paid       bool            `json:"paid"`
	PaidDate   *time.Time      `json:"paid_date,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// IncomeEntry is a manually recorded expected income.
type IncomeEntry struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2)" json:"amount"`
	Status      EntryStatus     `gorm:"index" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Expense is a manually recorded expected outgoing payment.
type Expense struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;index" json:"user_id"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2)" json:"amount"`
	Status      EntryStatus     `gorm:"index" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
