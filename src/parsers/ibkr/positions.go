package ibkr

import (
	"time"

	"github.com/username/optfolio/src/models"
	"github.com/username/optfolio/src/parsers"
)

// Open Positions section columns (beyond the shared ones in trades.go).
const (
	colPosQuantity = "Quantity"
	colCostBasis   = "Cost Basis"
	colClosePrice  = "Close Price"
)

// Mark-to-Market Performance Summary columns.
const (
	colPriorQuantity   = "Prior Quantity"
	colCurrentQuantity = "Current Quantity"
	colPriorPrice      = "Prior Price"
	colCurrentPrice    = "Current Price"
)

// parseOpenPositions turns an Open Positions section into PositionRecords.
func (p *IBKRParser) parseOpenPositions(sec parsers.Section, asOf time.Time, data *models.StatementData) {
	rows, skipped, warnings := sectionRows(sec)
	data.LinesSkipped += skipped
	data.Warnings = append(data.Warnings, warnings...)

	for _, row := range rows {
		fail := func(field, msg string) {
			data.Warnings = append(data.Warnings, fieldWarning(sec, row.line, field, msg))
		}

		symbol := row.get(colSymbol)
		if symbol == "" {
			fail(colSymbol, "missing symbol")
			continue
		}
		quantity, err := ParseNumber(row.get(colPosQuantity))
		if err != nil {
			fail(colPosQuantity, err.Error())
			continue
		}
		markPrice, err := ParseNumber(row.get(colClosePrice))
		if err != nil {
			fail(colClosePrice, err.Error())
			continue
		}
		costBasis, err := parseOptionalNumber(row.get(colCostBasis))
		if err != nil {
			fail(colCostBasis, err.Error())
			continue
		}

		data.Positions = append(data.Positions, models.PositionRecord{
			Symbol:     symbol,
			AssetClass: ClassifyAsset(row.get(colAssetCategory), symbol),
			Quantity:   quantity,
			CostBasis:  costBasis,
			MarkPrice:  markPrice,
			Currency:   row.get(colCurrency),
			AsOf:       asOf,
			Origin:     models.OriginOpenPositions,
			Line:       row.line,
		})
		data.RecordsParsed++
	}
}

// parseMTMSummary turns a Mark-to-Market Performance Summary section into
// PositionRecords, except for its Forex rows, whose symbol is a currency code
// and whose current quantity is the cash balance in that currency.
func (p *IBKRParser) parseMTMSummary(sec parsers.Section, asOf time.Time, data *models.StatementData) {
	rows, skipped, warnings := sectionRows(sec)
	data.LinesSkipped += skipped
	data.Warnings = append(data.Warnings, warnings...)

	for _, row := range rows {
		fail := func(field, msg string) {
			data.Warnings = append(data.Warnings, fieldWarning(sec, row.line, field, msg))
		}

		symbol := row.get(colSymbol)
		if symbol == "" {
			fail(colSymbol, "missing symbol")
			continue
		}
		currentQty, err := ParseNumber(row.get(colCurrentQuantity))
		if err != nil {
			fail(colCurrentQuantity, err.Error())
			continue
		}
		currentPrice, err := parseOptionalNumber(row.get(colCurrentPrice))
		if err != nil {
			fail(colCurrentPrice, err.Error())
			continue
		}
		priorQty, err := parseOptionalNumber(row.get(colPriorQuantity))
		if err != nil {
			fail(colPriorQuantity, err.Error())
			continue
		}
		priorPrice, err := parseOptionalNumber(row.get(colPriorPrice))
		if err != nil {
			fail(colPriorPrice, err.Error())
			continue
		}

		category := row.get(colAssetCategory)
		if category == categoryForex {
			data.Forex = append(data.Forex, models.ForexBalance{
				Currency:     symbol,
				Balance:      currentQty,
				PriorBalance: priorQty,
				AsOf:         asOf,
				Source:       models.SourceMTMSummary,
			})
			data.RecordsParsed++
			continue
		}

		data.Positions = append(data.Positions, models.PositionRecord{
			Symbol:        symbol,
			AssetClass:    ClassifyAsset(category, symbol),
			Quantity:      currentQty,
			PriorQuantity: priorQty,
			MarkPrice:     currentPrice,
			PriorPrice:    priorPrice,
			AsOf:          asOf,
			Origin:        models.OriginMTMSummary,
			Line:          row.line,
		})
		data.RecordsParsed++
	}
}
