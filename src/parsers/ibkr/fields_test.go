package ibkr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/optfolio/src/models"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"plain", "26.5", 26.5, false},
		{"negative", "-3", -3, false},
		{"thousands separators", "1,234.56", 1234.56, false},
		{"parenthesized negative", "(1,250.00)", -1250, false},
		{"quoted", `"2,500"`, 2500, false},
		{"trailing currency code", "1,234.56 USD", 1234.56, false},
		{"empty", "", 0, true},
		{"placeholder dashes", "--", 0, true},
		{"garbage", "abc", 0, true},
		{"embedded garbage", "12x4", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNumber(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate_FallbackChain(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2025-02-07", time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC)},
		{"2025-02-07 15:30:00", time.Date(2025, 2, 7, 15, 30, 0, 0, time.UTC)},
		{"2025-02-07, 15:30:00", time.Date(2025, 2, 7, 15, 30, 0, 0, time.UTC)},
		{"07FEB25", time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC)},
		{"02/28/2025", time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}
}

func TestParseDate_Unparseable(t *testing.T) {
	_, err := ParseDate("not a date")
	assert.Error(t, err)
	_, err = ParseDate("")
	assert.Error(t, err)
}

func TestParseOptionSymbol(t *testing.T) {
	contract, err := ParseOptionSymbol("ASTS 07FEB25 26 C")
	require.NoError(t, err)
	assert.Equal(t, "ASTS", contract.Underlying)
	assert.Equal(t, time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC), contract.Expiry)
	assert.Equal(t, 26.0, contract.Strike)
	assert.Equal(t, "C", contract.Right)

	contract, err = ParseOptionSymbol("SPY 21MAR25 480.5 P")
	require.NoError(t, err)
	assert.Equal(t, 480.5, contract.Strike)
	assert.Equal(t, "P", contract.Right)
}

func TestParseOptionSymbol_NotAnOption(t *testing.T) {
	_, err := ParseOptionSymbol("AAPL")
	assert.Error(t, err)
	_, err = ParseOptionSymbol("EUR.USD")
	assert.Error(t, err)
}

func TestClassifyAsset(t *testing.T) {
	tests := []struct {
		name     string
		category string
		symbol   string
		want     models.AssetClass
	}{
		{"stocks category", "Stocks", "AAPL", models.AssetEquity},
		{"options category", "Equity and Index Options", "ASTS 07FEB25 26 C", models.AssetOption},
		{"forex category", "Forex", "EUR.USD", models.AssetForex},
		{"option by shape", "", "ASTS 07FEB25 26 C", models.AssetOption},
		{"pair by shape", "", "EUR.USD", models.AssetForex},
		{"currency code by shape", "", "EUR", models.AssetForex},
		{"equity by shape", "", "BRK.B", models.AssetEquity},
		{"unknown category falls back to shape", "Bonds???", "AAPL", models.AssetEquity},
		{"unclassifiable", "", "??", models.AssetUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyAsset(tt.category, tt.symbol))
		})
	}
}
