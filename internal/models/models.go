// Package models provides the data structures used throughout the application.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction represents the money flow direction of a transaction.
type Direction string

const (
	// DirectionCredit indicates incoming money.
	DirectionCredit Direction = "credit"
	// DirectionDebit indicates outgoing money.
	DirectionDebit Direction = "debit"
)

// TransactionStatus is the matching state of a persisted bank transaction.
type TransactionStatus string

const (
	// StatusUnmatched indicates no live allocation, not ignored, no pending suggestion.
	StatusUnmatched TransactionStatus = "unmatched"
	// StatusSuggested indicates a heuristic counterparty candidate awaiting confirmation.
	StatusSuggested TransactionStatus = "suggested"
	// StatusMatchedAuto indicates the transaction was allocated by an automated rule.
	StatusMatchedAuto TransactionStatus = "matched_auto"
	// StatusMatchedManual indicates the transaction was allocated by an operator.
	StatusMatchedManual TransactionStatus = "matched_manual"
	// StatusIgnored indicates the transaction was explicitly excluded from matching.
	StatusIgnored TransactionStatus = "ignored"
)

// ImportStatus is the lifecycle state of an import file.
type ImportStatus string

const (
	ImportPending    ImportStatus = "pending"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
	ImportRolledBack ImportStatus = "rolled_back"
)

// SourceType identifies the format an import file was declared as.
type SourceType string

const (
	SourceCSV     SourceType = "csv"
	SourceCAMT053 SourceType = "camt053"
	SourceMT940   SourceType = "mt940"
)

// AllocationTarget identifies which kind of obligation an allocation satisfies.
type AllocationTarget string

const (
	TargetRentPayment AllocationTarget = "rent_payment"
	TargetIncomeEntry AllocationTarget = "income_entry"
	TargetExpense     AllocationTarget = "expense"
)

// CreatedBy records whether an allocation was made automatically or by an operator.
type CreatedBy string

const (
	CreatedByAuto   CreatedBy = "auto"
	CreatedByManual CreatedBy = "manual"
)

// BankTransaction is a persisted, deduplicated bank statement line.
// Created only by the import orchestrator; the allocation and suggestion
// services mutate status, matched-by and confidence, nothing else.
type BankTransaction struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID         `gorm:"type:uuid;index;uniqueIndex:idx_user_fingerprint" json:"user_id"`
	ImportFileID     uuid.UUID         `gorm:"type:uuid;index" json:"import_file_id"`
	BookingDate      time.Time         `json:"booking_date"`
	ValueDate        *time.Time        `json:"value_date,omitempty"`
	Amount           decimal.Decimal   `gorm:"type:decimal(14,2)" json:"amount"`
	Currency         string            `json:"currency"`
	Direction        Direction         `gorm:"index" json:"direction"`
	CounterpartyName string            `json:"counterparty_name,omitempty"`
	CounterpartyIBAN string            `json:"counterparty_iban,omitempty"`
	UsageText        string            `json:"usage_text,omitempty"`
	EndToEndID       string            `json:"end_to_end_id,omitempty"`
	MandateID        string            `json:"mandate_id,omitempty"`
	BankReference    string            `json:"bank_reference,omitempty"`
	Fingerprint      string            `gorm:"uniqueIndex:idx_user_fingerprint" json:"fingerprint"`
	Status           TransactionStatus `gorm:"index" json:"status"`
	MatchedBy        string            `json:"matched_by,omitempty"`
	Confidence       *float64          `json:"confidence,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// IsCredit returns true if money came in.
func (t *BankTransaction) IsCredit() bool {
	return t.Direction == DirectionCredit
}

// IsDebit returns true if money went out.
func (t *BankTransaction) IsDebit() bool {
	return t.Direction == DirectionDebit
}

// AbsAmount returns the unsigned magnitude of the transaction amount.
func (t *BankTransaction) AbsAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// BankImportFile tracks one uploaded bank export file and its outcome.
type BankImportFile struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID    `gorm:"type:uuid;index" json:"user_id"`
	Filename        string       `json:"filename"`
	Source          SourceType   `json:"source"`
	ByteSize        int64        `json:"byte_size"`
	Status          ImportStatus `gorm:"index" json:"status"`
	TotalRows       int          `json:"total_rows"`
	ImportedRows    int          `json:"imported_rows"`
	DuplicateRows   int          `json:"duplicate_rows"`
	SkippedRows     int          `json:"skipped_rows"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	RowErrors       []string     `gorm:"serializer:json" json:"row_errors,omitempty"`
	RollbackSummary string       `json:"rollback_summary,omitempty"`
	DeletedAt       *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// CanRollback reports whether the file still has anything to reverse.
func (f *BankImportFile) CanRollback() bool {
	return f.Status == ImportCompleted && f.DeletedAt == nil
}

// BankTransactionAllocation attributes (part of) a transaction's amount to one
// obligation. Soft deleted, never hard deleted, so the audit history survives
// undo and rollback.
type BankTransactionAllocation struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID        `gorm:"type:uuid;index" json:"user_id"`
	TransactionID uuid.UUID        `gorm:"type:uuid;index" json:"transaction_id"`
	Target        AllocationTarget `json:"target"`
	TargetID      uuid.UUID        `gorm:"type:uuid;index" json:"target_id"`
	Amount        decimal.Decimal  `gorm:"type:decimal(14,2)" json:"amount"`
	CreatedBy     CreatedBy        `json:"created_by"`
	Notes         string           `json:"notes,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	DeletedAt     *time.Time       `gorm:"index" json:"deleted_at,omitempty"`
}

// IsLive returns true if the allocation has not been soft deleted.
func (a *BankTransactionAllocation) IsLive() bool {
	return a.DeletedAt == nil
}
