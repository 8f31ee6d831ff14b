package currencyutils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		sep      rune
		expected string
	}{
		{"german decimal comma", "-950,00", ',', "-950"},
		{"german thousands dot", "1.234,56", ',', "1234.56"},
		{"english decimal dot", "1,234.56", '.', "1234.56"},
		{"swiss apostrophe", "1'234.56", '.', "1234.56"},
		{"euro symbol", "€ 42,50", ',', "42.5"},
		{"chf prefix", "CHF 100.00", '.', "100"},
		{"plain integer", "100", ',', "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := ParseAmount(tt.input, tt.sep)
			require.NoError(t, err)
			expected := decimal.RequireFromString(tt.expected)
			assert.True(t, expected.Equal(amount), "expected %s, got %s", expected, amount)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, input := range []string{"", "  ", "abc"} {
		_, err := ParseAmount(input, ',')
		assert.Error(t, err, "input %q", input)
	}
}

func TestFormatAmount(t *testing.T) {
	amount := decimal.RequireFromString("1234.5")
	assert.Equal(t, "EUR 1234.50", FormatAmount(amount, "EUR"))
	assert.Equal(t, "1234.50", FormatAmount(amount, ""))
}

func TestLooksLikeAmount(t *testing.T) {
	assert.True(t, LooksLikeAmount("-950,00"))
	assert.True(t, LooksLikeAmount("1.234,56"))
	assert.False(t, LooksLikeAmount("Miete März"))
	assert.False(t, LooksLikeAmount(""))
}
