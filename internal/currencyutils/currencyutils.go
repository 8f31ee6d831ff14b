// Package currencyutils provides amount parsing for bank export formats.
package currencyutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// symbolRe strips currency symbols and whitespace from amount strings.
var symbolRe = regexp.MustCompile(`[€$£¥₣CHF\s]`)

// ParseAmount parses an amount string whose decimal separator is declared by
// the caller. A comma separator strips thousands dots first; a dot separator
// strips thousands commas first. Apostrophe thousands separators are always
// removed.
func ParseAmount(amountStr string, decimalSep rune) (decimal.Decimal, error) {
	if strings.TrimSpace(amountStr) == "" {
		return decimal.Zero, fmt.Errorf("empty amount string")
	}

	standardized := Standardize(amountStr, decimalSep)
	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	return amount, nil
}

// Standardize converts an amount string with the declared decimal separator
// into a form decimal.NewFromString accepts.
func Standardize(amountStr string, decimalSep rune) string {
	amountStr = symbolRe.ReplaceAllString(amountStr, "")
	amountStr = strings.ReplaceAll(amountStr, "'", "")

	switch decimalSep {
	case ',':
		amountStr = strings.ReplaceAll(amountStr, ".", "")
		amountStr = strings.ReplaceAll(amountStr, ",", ".")
	default:
		amountStr = strings.ReplaceAll(amountStr, ",", "")
	}
	return amountStr
}

// FormatAmount renders a decimal with two decimal places and a currency code,
// e.g. "EUR 1234.56".
func FormatAmount(amount decimal.Decimal, currency string) string {
	formatted := amount.StringFixed(2)
	if currency == "" {
		return formatted
	}
	return fmt.Sprintf("%s %s", currency, formatted)
}

// LooksLikeAmount reports whether a value resembles a monetary amount in
// either separator convention. Used by the CSV auto-detector.
func LooksLikeAmount(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if _, err := ParseAmount(value, ','); err == nil {
		return true
	}
	_, err := ParseAmount(value, '.')
	return err == nil
}
