package dateutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBankDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"german", "01.03.2025", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"iso", "2025-03-01", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"us", "03/01/2025", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"whitespace", "  01.03.2025 ", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"two digit year below pivot", "01.03.25", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"two digit year above pivot", "01.03.99", time.Date(1999, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"two digit year at pivot", "01.03.50", time.Date(2050, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, _, err := ParseBankDate(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(parsed), "got %s", parsed)
		})
	}
}

func TestParseBankDate_Invalid(t *testing.T) {
	for _, input := range []string{"", "Saldo", "banana", "99.99.9999"} {
		_, _, err := ParseBankDate(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestLooksLikeDate(t *testing.T) {
	assert.True(t, LooksLikeDate("15.06.2024"))
	assert.False(t, LooksLikeDate("Verwendungszweck"))
}
