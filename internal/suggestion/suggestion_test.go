package suggestion

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mietwerk/bankrecon/internal/ledger"
	"mietwerk/bankrecon/internal/models"
)

var testUser = uuid.MustParse("11111111-2222-3333-4444-555555555555")

func tenant(first, last, iban string) models.Tenant {
	return models.Tenant{
		ID:        uuid.New(),
		UserID:    testUser,
		FirstName: first,
		LastName:  last,
		IBAN:      iban,
		Active:    true,
	}
}

func creditTx(name, iban, usage string) *models.BankTransaction {
	return &models.BankTransaction{
		ID:               uuid.New(),
		UserID:           testUser,
		BookingDate:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Amount:           decimal.RequireFromString("950.00"),
		Direction:        models.DirectionCredit,
		CounterpartyName: name,
		CounterpartyIBAN: iban,
		UsageText:        usage,
		Status:           models.StatusUnmatched,
	}
}

func TestService_Suggest_Rules(t *testing.T) {
	service := NewService(ledger.NewMemoryLedger(), DefaultConfig(), nil)
	mustermann := tenant("Max", "Mustermann", "DE89370400440532013000")

	tests := []struct {
		name       string
		tx         *models.BankTransaction
		confidence float64
	}{
		{
			name:       "iban exact",
			tx:         creditTx("Someone Else", "DE89370400440532013000", ""),
			confidence: 0.95,
		},
		{
			name:       "iban exact ignores spacing and case",
			tx:         creditTx("", "de89 3704 0044 0532 0130 00", ""),
			confidence: 0.95,
		},
		{
			name:       "name exact",
			tx:         creditTx("Max Mustermann", "", ""),
			confidence: 0.85,
		},
		{
			name:       "full name in usage",
			tx:         creditTx("", "", "Miete 4b Max Mustermann"),
			confidence: 0.65,
		},
		{
			name:       "last name in counterparty name",
			tx:         creditTx("Fam. Mustermann", "", ""),
			confidence: 0.6,
		},
		{
			name:       "last name in usage",
			tx:         creditTx("", "", "miete mustermann maerz"),
			confidence: 0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate, ok := service.Suggest(tt.tx, []models.Tenant{mustermann})
			require.True(t, ok)
			assert.Equal(t, mustermann.ID, candidate.TenantID)
			assert.InDelta(t, tt.confidence, candidate.Confidence, 0.001)
		})
	}
}

func TestService_Suggest_BestRuleWins(t *testing.T) {
	service := NewService(ledger.NewMemoryLedger(), DefaultConfig(), nil)
	mustermann := tenant("Max", "Mustermann", "DE89370400440532013000")

	// Matches the IBAN rule and both usage rules; the strongest one decides.
	tx := creditTx("Max Mustermann", "DE89370400440532013000", "Miete Max Mustermann")
	candidate, ok := service.Suggest(tx, []models.Tenant{mustermann})
	require.True(t, ok)
	assert.InDelta(t, 0.95, candidate.Confidence, 0.001)
}

func TestService_Suggest_PicksBestTenant(t *testing.T) {
	service := NewService(ledger.NewMemoryLedger(), DefaultConfig(), nil)
	mustermann := tenant("Max", "Mustermann", "DE89370400440532013000")
	musterfrau := tenant("Erika", "Musterfrau", "DE02120300000000202051")

	tx := creditTx("Erika Musterfrau", "", "miete mustermann")
	candidate, ok := service.Suggest(tx, []models.Tenant{mustermann, musterfrau})
	require.True(t, ok)
	assert.Equal(t, musterfrau.ID, candidate.TenantID, "the exact name beats the usage mention")
	assert.InDelta(t, 0.85, candidate.Confidence, 0.001)
}

func TestService_Suggest_ShortLastNameGuard(t *testing.T) {
	service := NewService(ledger.NewMemoryLedger(), DefaultConfig(), nil)
	shortName := tenant("Li", "Wu", "")

	_, ok := service.Suggest(creditTx("Wunderlich GmbH", "", ""), []models.Tenant{shortName})
	assert.False(t, ok, "two-letter surnames must not match inside unrelated names")

	// "Öz" is three bytes but only two runes; the guard must count runes.
	multibyte := tenant("Ali", "Öz", "")
	_, ok = service.Suggest(creditTx("Özdemir GmbH", "", ""), []models.Tenant{multibyte})
	assert.False(t, ok, "two-rune surnames must not match inside unrelated names")
}

func TestService_Suggest_BelowMinimum(t *testing.T) {
	config := DefaultConfig()
	config.MinConfidence = 0.5
	service := NewService(ledger.NewMemoryLedger(), config, nil)
	mustermann := tenant("Max", "Mustermann", "")

	_, ok := service.Suggest(creditTx("", "", "miete mustermann"), []models.Tenant{mustermann})
	assert.False(t, ok, "a 0.4 usage hit stays below the raised minimum")
}

func TestService_Suggest_DisplayName(t *testing.T) {
	service := NewService(ledger.NewMemoryLedger(), DefaultConfig(), nil)
	firm := tenant("", "", "")
	firm.DisplayName = "Hausmeister Service GmbH"
	firm.LastName = "GmbH"

	candidate, ok := service.Suggest(creditTx("Hausmeister Service GmbH", "", ""), []models.Tenant{firm})
	require.True(t, ok)
	assert.InDelta(t, 0.85, candidate.Confidence, 0.001)
}

func TestService_RunBatch(t *testing.T) {
	store := ledger.NewMemoryLedger()
	service := NewService(store, DefaultConfig(), nil)
	ctx := context.Background()

	mustermann := tenant("Max", "Mustermann", "DE89370400440532013000")
	store.AddTenant(mustermann)

	strong := creditTx("", "DE89370400440532013000", "Miete 4b")
	weak := creditTx("", "", "miete mustermann")
	unrelated := creditTx("Stadtwerke", "", "Abschlag")
	debit := creditTx("", "DE89370400440532013000", "")
	debit.Direction = models.DirectionDebit
	debit.Amount = debit.Amount.Neg()

	for _, tx := range []*models.BankTransaction{strong, weak, unrelated, debit} {
		tx.Fingerprint = uuid.NewString()
		require.NoError(t, store.InsertTransaction(ctx, tx))
	}

	result, err := service.RunBatch(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Scanned, "only unmatched credits are scanned")
	assert.Equal(t, 1, result.Promoted, "only the strong candidate crosses the promotion threshold")

	promoted, err := store.GetTransaction(ctx, testUser, strong.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuggested, promoted.Status)
	assert.Equal(t, "suggestion:"+mustermann.ID.String(), promoted.MatchedBy)
	require.NotNil(t, promoted.Confidence)
	assert.InDelta(t, 0.95, *promoted.Confidence, 0.001)

	untouched, err := store.GetTransaction(ctx, testUser, weak.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnmatched, untouched.Status, "a 0.4 candidate stays below the 0.6 promotion floor")
}

func TestService_RunBatch_NoTenants(t *testing.T) {
	store := ledger.NewMemoryLedger()
	service := NewService(store, DefaultConfig(), nil)
	ctx := context.Background()

	tx := creditTx("Max Mustermann", "", "")
	tx.Fingerprint = uuid.NewString()
	require.NoError(t, store.InsertTransaction(ctx, tx))

	result, err := service.RunBatch(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Zero(t, result.Promoted)
}
