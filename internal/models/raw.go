package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawTransaction is the transient, format-independent output of a parser.
// It is consumed immediately by the import orchestrator and never persisted
// as-is; Raw keeps the original row for audit.
type RawTransaction struct {
	BookingDate      time.Time
	ValueDate        *time.Time
	Amount           decimal.Decimal
	Currency         string
	Direction        Direction
	CounterpartyName string
	CounterpartyIBAN string
	UsageText        string
	EndToEndID       string
	MandateID        string
	BankReference    string
	Raw              map[string]string
}

// AbsAmount returns the unsigned magnitude of the raw amount.
func (r *RawTransaction) AbsAmount() decimal.Decimal {
	return r.Amount.Abs()
}
