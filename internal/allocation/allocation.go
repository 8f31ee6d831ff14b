// Package allocation attaches bank transactions to financial obligations
// and keeps both sides' status derived from the live allocation set. The
// allocation sum is always recomputed from a fresh read of live rows, never
// accumulated in place, so concurrent calls cannot drift an obligation's
// paid amount.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"mietwerk/bankrecon/internal/ledger"
	"mietwerk/bankrecon/internal/models"
)

var (
	// ErrNoAllocations is returned when an allocate call carries no targets.
	ErrNoAllocations = errors.New("allocation: no allocation targets given")
	// ErrNothingToUndo is returned when undo finds no live allocations.
	ErrNothingToUndo = errors.New("allocation: no live allocations to undo")
)

// OverAllocationError rejects an allocate call whose requested sum exceeds
// the transaction's unallocated amount. Nothing is written.
type OverAllocationError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *OverAllocationError) Error() string {
	return fmt.Sprintf("allocation: requested %s exceeds available %s",
		e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

// InvalidTransitionError rejects an action the transaction's status does not
// permit, e.g. allocating an ignored transaction.
type InvalidTransitionError struct {
	From   models.TransactionStatus
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("allocation: cannot %s a transaction in status %q", e.Action, e.From)
}

// Request is one target of an allocate call.
type Request struct {
	Target   models.AllocationTarget
	TargetID uuid.UUID
	Amount   decimal.Decimal
	Notes    string
}

// Service is the allocation engine.
type Service struct {
	ledger ledger.Ledger
	log    *logrus.Logger
}

// NewService creates an allocation service against the given ledger.
func NewService(l ledger.Ledger, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{ledger: l, log: log}
}

// Allocate attaches a transaction to one or more obligations and recomputes
// each touched obligation's paid state. The whole call is rejected without
// writes when the requested sum exceeds the transaction's absolute amount
// beyond the cent tolerance.
func (s *Service) Allocate(ctx context.Context, userID, txID uuid.UUID, requests []Request, createdBy models.CreatedBy) error {
	if len(requests) == 0 {
		return ErrNoAllocations
	}

	tx, err := s.ledger.GetTransaction(ctx, userID, txID)
	if err != nil {
		return err
	}
	if tx.Status != models.StatusUnmatched && tx.Status != models.StatusSuggested {
		return &InvalidTransitionError{From: tx.Status, Action: "allocate"}
	}

	total := decimal.Zero
	for i := range requests {
		if !requests[i].Amount.IsPositive() {
			return fmt.Errorf("allocation: amount for target %s must be positive", requests[i].TargetID)
		}
		total = total.Add(requests[i].Amount)
	}
	available := tx.AbsAmount()
	if total.GreaterThan(available.Add(models.AllocationTolerance)) {
		return &OverAllocationError{Requested: total, Available: available}
	}

	now := time.Now()
	allocations := make([]models.BankTransactionAllocation, 0, len(requests))
	for i := range requests {
		allocations = append(allocations, models.BankTransactionAllocation{
			ID:            uuid.New(),
			UserID:        userID,
			TransactionID: txID,
			Target:        requests[i].Target,
			TargetID:      requests[i].TargetID,
			Amount:        requests[i].Amount,
			CreatedBy:     createdBy,
			Notes:         requests[i].Notes,
			CreatedAt:     now,
		})
	}
	if err := s.ledger.InsertAllocations(ctx, allocations); err != nil {
		return fmt.Errorf("inserting allocations: %w", err)
	}

	if createdBy == models.CreatedByAuto {
		tx.Status = models.StatusMatchedAuto
	} else {
		tx.Status = models.StatusMatchedManual
	}
	if err := s.ledger.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("updating transaction status: %w", err)
	}

	for _, key := range distinctTargets(allocations) {
		if err := s.recomputeTarget(ctx, userID, key.target, key.targetID); err != nil {
			return err
		}
	}

	s.log.WithFields(logrus.Fields{
		"transaction": txID,
		"targets":     len(requests),
		"amount":      total.StringFixed(2),
		"createdBy":   createdBy,
	}).Info("Allocated transaction")
	return nil
}

// Undo soft-deletes every live allocation of a transaction, resets it to
// unmatched and recomputes every obligation that lost an allocation.
func (s *Service) Undo(ctx context.Context, userID, txID uuid.UUID) error {
	tx, err := s.ledger.GetTransaction(ctx, userID, txID)
	if err != nil {
		return err
	}

	live, err := s.ledger.LiveAllocationsForTransaction(ctx, userID, txID)
	if err != nil {
		return err
	}
	if len(live) == 0 {
		return ErrNothingToUndo
	}

	if _, err := s.ledger.SoftDeleteAllocationsForTransaction(ctx, userID, txID, time.Now()); err != nil {
		return fmt.Errorf("soft-deleting allocations: %w", err)
	}

	tx.Status = models.StatusUnmatched
	tx.MatchedBy = ""
	tx.Confidence = nil
	if err := s.ledger.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("resetting transaction status: %w", err)
	}

	for _, key := range distinctTargets(live) {
		if err := s.recomputeTarget(ctx, userID, key.target, key.targetID); err != nil {
			return err
		}
	}

	s.log.WithFields(logrus.Fields{
		"transaction": txID,
		"allocations": len(live),
	}).Info("Undid allocation")
	return nil
}

// Ignore excludes a transaction from matching. Only unmatched or suggested
// transactions can be ignored; a matched one must be undone first.
func (s *Service) Ignore(ctx context.Context, userID, txID uuid.UUID) error {
	tx, err := s.ledger.GetTransaction(ctx, userID, txID)
	if err != nil {
		return err
	}
	if tx.Status != models.StatusUnmatched && tx.Status != models.StatusSuggested {
		return &InvalidTransitionError{From: tx.Status, Action: "ignore"}
	}
	tx.Status = models.StatusIgnored
	return s.ledger.UpdateTransaction(ctx, tx)
}

// Unignore returns an ignored transaction to the unmatched pool.
func (s *Service) Unignore(ctx context.Context, userID, txID uuid.UUID) error {
	tx, err := s.ledger.GetTransaction(ctx, userID, txID)
	if err != nil {
		return err
	}
	if tx.Status != models.StatusIgnored {
		return &InvalidTransitionError{From: tx.Status, Action: "unignore"}
	}
	tx.Status = models.StatusUnmatched
	return s.ledger.UpdateTransaction(ctx, tx)
}

type targetKey struct {
	target   models.AllocationTarget
	targetID uuid.UUID
}

func distinctTargets(allocations []models.BankTransactionAllocation) []targetKey {
	seen := map[targetKey]bool{}
	var keys []targetKey
	for i := range allocations {
		key := targetKey{allocations[i].Target, allocations[i].TargetID}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// recomputeTarget rederives one obligation's paid state from the sum of its
// live allocations. This is the only place obligation status is written.
func (s *Service) recomputeTarget(ctx context.Context, userID uuid.UUID, target models.AllocationTarget, targetID uuid.UUID) error {
	live, err := s.ledger.LiveAllocationsForTarget(ctx, userID, target, targetID)
	if err != nil {
		return err
	}
	paid := models.SumLiveAllocations(live)

	switch target {
	case models.TargetRentPayment:
		rent, err := s.ledger.GetRentPayment(ctx, userID, targetID)
		if err != nil {
			return fmt.Errorf("recomputing rent payment %s: %w", targetID, err)
		}
		rent.PaidAmount = paid
		rent.Status = models.DeriveRentStatus(paid, rent.DueAmount)
		if rent.Status == models.RentPaid {
			rent.Paid = true
			if rent.PaidDate == nil {
				now := time.Now()
				rent.PaidDate = &now
			}
		} else {
			rent.Paid = false
			rent.PaidDate = nil
		}
		return s.ledger.UpdateRentPayment(ctx, rent)
	case models.TargetIncomeEntry:
		entry, err := s.ledger.GetIncomeEntry(ctx, userID, targetID)
		if err != nil {
			return fmt.Errorf("recomputing income entry %s: %w", targetID, err)
		}
		entry.Status = models.DeriveEntryStatus(paid, entry.Amount)
		return s.ledger.UpdateIncomeEntry(ctx, entry)
	case models.TargetExpense:
		expense, err := s.ledger.GetExpense(ctx, userID, targetID)
		if err != nil {
			return fmt.Errorf("recomputing expense %s: %w", targetID, err)
		}
		expense.Status = models.DeriveEntryStatus(paid, expense.Amount)
		return s.ledger.UpdateExpense(ctx, expense)
	default:
		return fmt.Errorf("allocation: unknown target type %q", target)
	}
}
