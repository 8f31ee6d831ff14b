// Package suggestion scores unmatched incoming transactions against known
// tenants and flags high-confidence matches for human confirmation. The
// scorer is a deterministic heuristic: a small set of IBAN, name and usage
// text rules where each rule only ever raises a tenant's running score.
// Confirming a suggestion is an ordinary manual allocate call; this engine
// never creates allocations itself.
package suggestion

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mietwerk/bankrecon/internal/ledger"
	"mietwerk/bankrecon/internal/models"
)

// Rule confidences. Heuristic constants carried over from operational
// experience; tunable, not load-bearing business rules.
const (
	scoreIBANExact       = 0.95
	scoreNameExact       = 0.85
	scoreFullNameInUsage = 0.65
	scoreLastNameInName  = 0.6
	scoreLastNameInUsage = 0.4
)

// minLastNameRunes guards the lastname-in-counterparty-name rule against
// trivially short surnames. Counted in runes so that "Öz" stays short even
// though it is three bytes in UTF-8.
const minLastNameRunes = 3

// Config carries the tunable thresholds of the engine.
type Config struct {
	// MinConfidence is the floor below which no suggestion is returned.
	MinConfidence float64
	// PromoteConfidence is the floor above which a batch pass promotes a
	// transaction to suggested.
	PromoteConfidence float64
	// BatchLimit bounds how many unmatched transactions one batch pass scans.
	BatchLimit int
}

// DefaultConfig returns the thresholds the application ships with.
func DefaultConfig() Config {
	return Config{
		MinConfidence:     0.4,
		PromoteConfidence: 0.6,
		BatchLimit:        200,
	}
}

// Candidate is the best-scoring tenant for a transaction.
type Candidate struct {
	TenantID   uuid.UUID
	Confidence float64
}

// BatchResult summarizes one batch suggestion pass.
type BatchResult struct {
	Scanned  int
	Promoted int
}

// Service is the suggestion engine.
type Service struct {
	ledger ledger.Ledger
	config Config
	log    *logrus.Logger
}

// NewService creates a suggestion service against the given ledger.
func NewService(l ledger.Ledger, config Config, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	if config.BatchLimit <= 0 {
		config.BatchLimit = DefaultConfig().BatchLimit
	}
	return &Service{ledger: l, config: config, log: log}
}

// Suggest scores every tenant against the transaction and returns the best
// candidate if its confidence reaches the minimum threshold.
func (s *Service) Suggest(tx *models.BankTransaction, tenants []models.Tenant) (*Candidate, bool) {
	var best *Candidate
	for i := range tenants {
		confidence := scoreTenant(tx, &tenants[i])
		if confidence <= 0 {
			continue
		}
		if best == nil || confidence > best.Confidence {
			best = &Candidate{TenantID: tenants[i].ID, Confidence: confidence}
		}
	}
	if best == nil || best.Confidence < s.config.MinConfidence {
		return nil, false
	}
	return best, true
}

// scoreTenant applies the heuristic rules. Each rule only raises the running
// score, never lowers it.
func scoreTenant(tx *models.BankTransaction, tenant *models.Tenant) float64 {
	score := 0.0
	raise := func(v float64) {
		if v > score {
			score = v
		}
	}

	txIBAN := normalizeIBAN(tx.CounterpartyIBAN)
	if txIBAN != "" && txIBAN == normalizeIBAN(tenant.IBAN) {
		raise(scoreIBANExact)
	}

	name := strings.ToLower(strings.TrimSpace(tx.CounterpartyName))
	usage := strings.ToLower(tx.UsageText)
	fullName := strings.ToLower(tenant.FullName())
	displayName := strings.ToLower(strings.TrimSpace(tenant.DisplayName))
	lastName := strings.ToLower(strings.TrimSpace(tenant.LastName))

	if name != "" && (name == fullName || (displayName != "" && name == displayName)) {
		raise(scoreNameExact)
	}
	if name != "" && utf8.RuneCountInString(lastName) >= minLastNameRunes && strings.Contains(name, lastName) {
		raise(scoreLastNameInName)
	}
	if usage != "" && fullName != "" && strings.Contains(usage, fullName) {
		raise(scoreFullNameInUsage)
	}
	if usage != "" && lastName != "" && strings.Contains(usage, lastName) {
		raise(scoreLastNameInUsage)
	}
	return score
}

func normalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(iban), " ", ""))
}

// RunBatch scores up to BatchLimit unmatched credit transactions and
// promotes those whose best candidate reaches the promotion threshold to
// suggested, stamping the candidate and confidence on the transaction.
// Advisory only: no allocation is created.
func (s *Service) RunBatch(ctx context.Context, userID uuid.UUID) (*BatchResult, error) {
	tenants, err := s.ledger.ListActiveTenants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}

	transactions, _, err := s.ledger.ListTransactions(ctx, userID, ledger.TransactionFilter{
		Statuses:  []models.TransactionStatus{models.StatusUnmatched},
		Direction: models.DirectionCredit,
		Limit:     s.config.BatchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing unmatched transactions: %w", err)
	}

	result := &BatchResult{Scanned: len(transactions)}
	for i := range transactions {
		tx := &transactions[i]
		candidate, ok := s.Suggest(tx, tenants)
		if !ok || candidate.Confidence < s.config.PromoteConfidence {
			continue
		}
		tx.Status = models.StatusSuggested
		tx.MatchedBy = fmt.Sprintf("suggestion:%s", candidate.TenantID)
		confidence := candidate.Confidence
		tx.Confidence = &confidence
		if err := s.ledger.UpdateTransaction(ctx, tx); err != nil {
			return result, fmt.Errorf("promoting transaction %s: %w", tx.ID, err)
		}
		result.Promoted++
	}

	s.log.WithFields(logrus.Fields{
		"scanned":  result.Scanned,
		"promoted": result.Promoted,
	}).Info("Suggestion batch completed")
	return result, nil
}
