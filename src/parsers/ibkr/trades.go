package ibkr

import (
	"strings"

	"github.com/username/optfolio/src/models"
	"github.com/username/optfolio/src/parsers"
)

// Trades section columns.
const (
	colAssetCategory = "Asset Category"
	colCurrency      = "Currency"
	colSymbol        = "Symbol"
	colDateTime      = "Date/Time"
	colQuantity      = "Quantity"
	colTradePrice    = "T. Price"
	colProceeds      = "Proceeds"
	colCommission    = "Comm/Fee"
	colCode          = "Code"
)

// parseTrades turns a Trades section into TradeRecords. A malformed line is
// skipped with exactly one field warning; the rest of the section is still
// parsed.
func (p *IBKRParser) parseTrades(sec parsers.Section, data *models.StatementData) {
	rows, skipped, warnings := sectionRows(sec)
	data.LinesSkipped += skipped
	data.Warnings = append(data.Warnings, warnings...)

	for _, row := range rows {
		record, warn := parseTradeRow(sec, row)
		if warn != nil {
			data.Warnings = append(data.Warnings, *warn)
			continue
		}
		data.Trades = append(data.Trades, record)
		data.RecordsParsed++
	}
}

func parseTradeRow(sec parsers.Section, row tableRow) (models.TradeRecord, *models.Warning) {
	fail := func(field, msg string) (models.TradeRecord, *models.Warning) {
		w := fieldWarning(sec, row.line, field, msg)
		return models.TradeRecord{}, &w
	}

	symbol := row.get(colSymbol)
	if symbol == "" {
		return fail(colSymbol, "missing symbol")
	}

	quantity, err := ParseNumber(row.get(colQuantity))
	if err != nil {
		return fail(colQuantity, err.Error())
	}

	price, err := ParseNumber(row.get(colTradePrice))
	if err != nil {
		return fail(colTradePrice, err.Error())
	}

	tradeDate, err := ParseDate(row.get(colDateTime))
	if err != nil {
		return fail(colDateTime, err.Error())
	}

	// Proceeds and commission are absent on some rows (e.g. expirations);
	// absence is valid, a malformed value is not.
	proceeds, err := parseOptionalNumber(row.get(colProceeds))
	if err != nil {
		return fail(colProceeds, err.Error())
	}
	commission, err := parseOptionalNumber(row.get(colCommission))
	if err != nil {
		return fail(colCommission, err.Error())
	}

	return models.TradeRecord{
		Symbol:     symbol,
		AssetClass: ClassifyAsset(row.get(colAssetCategory), symbol),
		Action:     tradeAction(row.get(colCode), quantity),
		Quantity:   quantity,
		Price:      price,
		Proceeds:   proceeds,
		Commission: commission,
		Currency:   row.get(colCurrency),
		TradeDate:  tradeDate,
		Line:       row.line,
	}, nil
}

func parseOptionalNumber(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return ParseNumber(s)
}

// tradeAction maps the statement's Code column to a normalized action,
// falling back to the quantity sign. Codes combine with semicolons
// ("A;O", "Ep;C").
func tradeAction(code string, quantity float64) models.TradeAction {
	for _, c := range strings.Split(code, ";") {
		switch strings.TrimSpace(c) {
		case "A":
			return models.ActionAssignment
		case "Ep":
			return models.ActionExpiration
		}
	}
	if quantity < 0 {
		return models.ActionSell
	}
	return models.ActionBuy
}
