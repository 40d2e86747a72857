package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/optfolio/src/models"
)

var runDate = time.Date(2025, 2, 7, 0, 0, 0, 0, time.UTC)

func shortOpen(symbol string, qty, premiumPerContract, commission float64, line int) models.TradeRecord {
	return models.TradeRecord{
		Symbol:     symbol,
		AssetClass: models.AssetOption,
		Action:     models.ActionSell,
		Quantity:   -qty,
		Proceeds:   qty * premiumPerContract,
		Commission: -commission,
		Currency:   "USD",
		TradeDate:  runDate,
		Line:       line,
	}
}

func buyToClose(symbol string, qty, costPerContract float64, line int) models.TradeRecord {
	return models.TradeRecord{
		Symbol:     symbol,
		AssetClass: models.AssetOption,
		Action:     models.ActionBuy,
		Quantity:   qty,
		Proceeds:   -qty * costPerContract,
		Currency:   "USD",
		TradeDate:  runDate.Add(time.Hour),
		Line:       line,
	}
}

func TestOptionProcessor_OpenShortLegCredit(t *testing.T) {
	p := NewOptionProcessor("USD")
	trades := []models.TradeRecord{
		shortOpen("ASTS 07FEB25 26 C", 2, 130, 2.60, 10),
	}
	positions := []models.PositionRecord{{
		Symbol:     "ASTS 07FEB25 26 C",
		AssetClass: models.AssetOption,
		Quantity:   -2,
		MarkPrice:  1.10,
		Currency:   "USD",
		Origin:     models.OriginOpenPositions,
	}}

	result := p.Process(trades, positions)
	assert.InDelta(t, 257.40, result.Credit.Amount, 0.001) // 260 premium less 2.60 commission
	assert.Equal(t, "USD", result.Credit.Currency)
	require.Len(t, result.Legs, 1)
	assert.Equal(t, -2.0, result.Legs[0].Quantity)
	assert.Equal(t, "ASTS", result.Legs[0].Contract.Underlying)
	assert.Empty(t, result.Warnings)
}

func TestOptionProcessor_ClosedLegContributesNothing(t *testing.T) {
	p := NewOptionProcessor("USD")
	trades := []models.TradeRecord{
		shortOpen("ASTS 07FEB25 26 C", 2, 130, 0, 10),
		buyToClose("ASTS 07FEB25 26 C", 2, 50, 11),
		shortOpen("SPY 21MAR25 480.5 P", 1, 300, 0, 12),
	}
	positions := []models.PositionRecord{{
		Symbol:     "SPY 21MAR25 480.5 P",
		AssetClass: models.AssetOption,
		Quantity:   -1,
		Currency:   "USD",
		Origin:     models.OriginOpenPositions,
	}}

	result := p.Process(trades, positions)
	// Only the SPY leg remains open.
	assert.InDelta(t, 300.0, result.Credit.Amount, 0.001)
	require.Len(t, result.Legs, 1)
	assert.Equal(t, "SPY 21MAR25 480.5 P", result.Legs[0].Symbol)
}

func TestOptionProcessor_ExpirationClosesLeg(t *testing.T) {
	p := NewOptionProcessor("USD")
	trades := []models.TradeRecord{
		shortOpen("ASTS 07FEB25 26 C", 1, 130, 0, 10),
		{
			Symbol:     "ASTS 07FEB25 26 C",
			AssetClass: models.AssetOption,
			Action:     models.ActionExpiration,
			Quantity:   1,
			Currency:   "USD",
			TradeDate:  runDate.Add(2 * time.Hour),
			Line:       11,
		},
	}

	result := p.Process(trades, nil)
	assert.Zero(t, result.Credit.Amount)
	assert.Empty(t, result.Legs)
}

func TestOptionProcessor_CarriedShortPositionValuedAtMark(t *testing.T) {
	p := NewOptionProcessor("USD")
	positions := []models.PositionRecord{{
		Symbol:     "ASTS 07FEB25 26 C",
		AssetClass: models.AssetOption,
		Quantity:   -2,
		MarkPrice:  1.10,
		Currency:   "USD",
		Origin:     models.OriginOpenPositions,
	}}

	result := p.Process(nil, positions)
	assert.InDelta(t, 220.0, result.Credit.Amount, 0.001) // 2 * 1.10 * 100
	require.Len(t, result.Legs, 1)
	assert.Equal(t, -2.0, result.Legs[0].Quantity)
}

func TestOptionProcessor_ForeignCurrencyExcludedWithWarning(t *testing.T) {
	p := NewOptionProcessor("USD")
	tr := shortOpen("DAI 21MAR25 70 P", 1, 200, 0, 10)
	tr.Currency = "EUR"

	result := p.Process([]models.TradeRecord{tr}, nil)
	assert.Zero(t, result.Credit.Amount)
	assert.Empty(t, result.Legs)

	foundExclusion := false
	for _, w := range result.Warnings {
		if w.Kind == models.WarningReconciliation && w.Field == "DAI 21MAR25 70 P" {
			foundExclusion = true
		}
	}
	assert.True(t, foundExclusion, "expected a currency-exclusion warning, got %v", result.Warnings)
}

func TestOptionProcessor_CarriedContractsValuedAlongsideRunTrades(t *testing.T) {
	p := NewOptionProcessor("USD")
	// One contract sold today at $100 premium; the position row reports three
	// short contracts, two of which were carried in from before the run.
	trades := []models.TradeRecord{
		shortOpen("ASTS 07FEB25 26 C", 1, 100, 0, 10),
	}
	positions := []models.PositionRecord{{
		Symbol:        "ASTS 07FEB25 26 C",
		AssetClass:    models.AssetOption,
		Quantity:      -3,
		PriorQuantity: -2,
		MarkPrice:     1.10,
		Currency:      "USD",
		Origin:        models.OriginMTMSummary,
	}}

	result := p.Process(trades, positions)
	// 100 from the traded leg plus 2 * 1.10 * 100 for the carried contracts.
	assert.InDelta(t, 320.0, result.Credit.Amount, 0.001)
	require.Len(t, result.Legs, 2)
	assert.Equal(t, -1.0, result.Legs[0].Quantity)
	assert.Equal(t, -2.0, result.Legs[1].Quantity)
	assert.Empty(t, result.Warnings)
}

func TestOptionProcessor_QuantityGapWithoutPriorIsWarnedAndValued(t *testing.T) {
	p := NewOptionProcessor("USD")
	trades := []models.TradeRecord{
		shortOpen("ASTS 07FEB25 26 C", 1, 100, 0, 10),
	}
	positions := []models.PositionRecord{{
		Symbol:     "ASTS 07FEB25 26 C",
		AssetClass: models.AssetOption,
		Quantity:   -3,
		MarkPrice:  1.10,
		Currency:   "USD",
		Origin:     models.OriginOpenPositions,
		Line:       20,
	}}

	result := p.Process(trades, positions)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "disagrees with net traded quantity")
	// The extra contracts still count rather than being silently dropped.
	assert.InDelta(t, 320.0, result.Credit.Amount, 0.001)
}

func TestOptionProcessor_OpenQuantityAbsentFromPositions(t *testing.T) {
	p := NewOptionProcessor("USD")
	trades := []models.TradeRecord{
		shortOpen("ASTS 07FEB25 26 C", 2, 130, 0, 10),
	}

	result := p.Process(trades, nil)
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, models.WarningReconciliation, result.Warnings[0].Kind)
	assert.Contains(t, result.Warnings[0].Message, "absent from positions")
	// The trade-derived credit still stands.
	assert.InDelta(t, 260.0, result.Credit.Amount, 0.001)
}

func TestOptionProcessor_IgnoresNonOptionRecords(t *testing.T) {
	p := NewOptionProcessor("USD")
	trades := []models.TradeRecord{
		{Symbol: "AAPL", AssetClass: models.AssetEquity, Quantity: 10, TradeDate: runDate},
	}
	positions := []models.PositionRecord{
		{Symbol: "AAPL", AssetClass: models.AssetEquity, Quantity: 10, MarkPrice: 152},
	}

	result := p.Process(trades, positions)
	assert.Zero(t, result.Credit.Amount)
	assert.Empty(t, result.Legs)
	assert.Empty(t, result.Warnings)
}
