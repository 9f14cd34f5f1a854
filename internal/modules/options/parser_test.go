package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avramidis/optsentry/internal/domain"
)

func TestParse_PaddedUnderlying(t *testing.T) {
	parsed, err := Parse("AAPL  241220C00150000")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", parsed.Underlying)
	assert.Equal(t, time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC), parsed.Expiration)
	assert.Equal(t, domain.RightCall, parsed.Right)
	assert.InDelta(t, 150.0, parsed.Strike, 0.0001)
}

func TestParse_CompactPut(t *testing.T) {
	parsed, err := Parse("SPY240315P00500000")
	require.NoError(t, err)

	assert.Equal(t, "SPY", parsed.Underlying)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), parsed.Expiration)
	assert.Equal(t, domain.RightPut, parsed.Right)
	assert.InDelta(t, 500.0, parsed.Strike, 0.0001)
}

func TestParse_FractionalStrike(t *testing.T) {
	parsed, err := Parse("F     250117C00012500")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, parsed.Strike, 0.0001)
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
	}{
		{"plain equity ticker", "AAPL"},
		{"empty string", ""},
		{"bad right", "AAPL241220X00150000"},
		{"strike too short", "AAPL241220C0015000"},
		{"non-digit strike", "AAPL241220C0015000O"},
		{"non-digit date", "AAPL24122OC00150000"},
		{"invalid calendar date", "AAPL241320C00150000"},
		{"missing underlying", "241220C00150000"},
		{"space inside underlying", "BRK B 241220C00150000"},
		{"lowercase underlying", "aapl241220C00150000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.symbol)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotOptionSymbol)
		})
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	exp := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	symbol := Format("aapl", exp, domain.RightCall, 150.0)
	assert.Equal(t, "AAPL241220C00150000", symbol)

	parsed, err := Parse(symbol)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", parsed.Underlying)
	assert.Equal(t, exp, parsed.Expiration)
	assert.InDelta(t, 150.0, parsed.Strike, 0.0001)
}
