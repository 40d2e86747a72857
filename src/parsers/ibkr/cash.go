package ibkr

import (
	"time"

	"github.com/username/optfolio/src/models"
	"github.com/username/optfolio/src/parsers"
)

// Cash Report section columns.
const (
	colCurrencySummary = "Currency Summary"
	colCashTotal       = "Total"
)

// Rows of interest in the Cash Report. Other summary levels (Starting Cash,
// Commissions, Deposits, ...) are layout for our purposes.
const endingCashRow = "Ending Cash"

// The report also carries a row whose Currency column holds this marker: the
// broker's own converted total. The core never consumes converted totals.
const baseCurrencySummary = "Base Currency Summary"

// parseCashReport extracts one ForexBalance per currency from a Cash Report
// section's Ending Cash rows.
func (p *IBKRParser) parseCashReport(sec parsers.Section, asOf time.Time, data *models.StatementData) {
	rows, skipped, warnings := sectionRows(sec)
	data.LinesSkipped += skipped
	data.Warnings = append(data.Warnings, warnings...)

	for _, row := range rows {
		if row.get(colCurrencySummary) != endingCashRow {
			data.LinesSkipped++
			continue
		}
		currency := row.get(colCurrency)
		if currency == "" || currency == baseCurrencySummary {
			data.LinesSkipped++
			continue
		}

		balance, err := ParseNumber(row.get(colCashTotal))
		if err != nil {
			data.Warnings = append(data.Warnings, fieldWarning(sec, row.line, colCashTotal, err.Error()))
			continue
		}

		data.Forex = append(data.Forex, models.ForexBalance{
			Currency: currency,
			Balance:  balance,
			AsOf:     asOf,
			Source:   models.SourceCashReport,
		})
		data.RecordsParsed++
	}
}
