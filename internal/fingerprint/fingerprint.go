// Package fingerprint derives the stable deduplication key for bank
// transactions. Two imports of the same real bank line must collide on this
// key even when they come from different files or export formats.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mietwerk/bankrecon/internal/dateutils"
	"mietwerk/bankrecon/internal/models"
)

// usagePrefixLen bounds how much of the usage text participates in the key.
// Banks pad or truncate remittance text differently between export formats;
// the first 140 characters are stable across the formats we ingest.
const usagePrefixLen = 140

// delimiter joins the key components before hashing. It never occurs in the
// normalized inputs.
const delimiter = "|"

// Compute returns the hex-encoded SHA-256 fingerprint of a transaction's
// defining fields. The result is deterministic: equal inputs always produce
// a byte-identical key.
func Compute(userID uuid.UUID, bookingDate time.Time, amount decimal.Decimal, iban, usageText, reference string) string {
	parts := []string{
		userID.String(),
		dateutils.ToISODate(bookingDate),
		amount.String(),
		strings.ToUpper(strings.TrimSpace(iban)),
		usagePrefix(usageText),
		strings.TrimSpace(reference),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, delimiter)))
	return hex.EncodeToString(sum[:])
}

// ForRaw computes the fingerprint of a parsed raw transaction, preferring the
// bank reference and falling back to the end-to-end id.
func ForRaw(userID uuid.UUID, raw *models.RawTransaction) string {
	ref := raw.BankReference
	if strings.TrimSpace(ref) == "" {
		ref = raw.EndToEndID
	}
	return Compute(userID, raw.BookingDate, raw.Amount, raw.CounterpartyIBAN, raw.UsageText, ref)
}

func usagePrefix(usageText string) string {
	trimmed := strings.TrimSpace(usageText)
	runes := []rune(trimmed)
	if len(runes) > usagePrefixLen {
		return string(runes[:usagePrefixLen])
	}
	return trimmed
}
