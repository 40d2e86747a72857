package ibkr

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/username/optfolio/src/models"
	"github.com/username/optfolio/src/parsers"
)

// Row discriminator values in the second statement column.
const (
	discHeader = "Header"
	discData   = "Data"
)

// tableRow is one Data line of a section with its fields mapped by the
// section's Header line column names.
type tableRow struct {
	line   int
	fields map[string]string
}

func (r tableRow) get(name string) string {
	return strings.TrimSpace(r.fields[name])
}

// sectionRows reads a section's lines as a discriminated CSV table: the first
// Header line names the columns, Data lines become rows, and Total/SubTotal
// summary lines are layout, skipped without a warning. Lines that fail CSV
// parsing or precede any Header line produce one field warning each.
func sectionRows(sec parsers.Section) (rows []tableRow, skipped int, warnings []models.Warning) {
	var columns []string

	for _, line := range sec.Lines {
		reader := csv.NewReader(strings.NewReader(line.Text))
		reader.FieldsPerRecord = -1
		record, err := reader.Read()
		if err != nil {
			warnings = append(warnings, fieldWarning(sec, line.Number, "", fmt.Sprintf("malformed CSV line: %v", err)))
			continue
		}
		if len(record) == 0 {
			skipped++
			continue
		}

		disc := strings.TrimSpace(record[0])
		switch {
		case disc == discHeader:
			if columns == nil {
				columns = record[1:]
			}
			// Repeated Header lines introduce summary footers; layout only.
		case disc == discData:
			if columns == nil {
				warnings = append(warnings, fieldWarning(sec, line.Number, "", "data line before section header"))
				continue
			}
			if isSummaryRow(record) {
				skipped++
				continue
			}
			fields := make(map[string]string, len(columns))
			for i, col := range columns {
				if i+1 < len(record) {
					fields[strings.TrimSpace(col)] = record[i+1]
				}
			}
			rows = append(rows, tableRow{line: line.Number, fields: fields})
		default:
			// Total, SubTotal, Notes and similar layout lines.
			skipped++
		}
	}
	return rows, skipped, warnings
}

// isSummaryRow detects Total/Subtotal rows that slip through with a Data
// discriminator in some statement vintages.
func isSummaryRow(record []string) bool {
	for _, f := range record {
		f = strings.TrimSpace(f)
		if strings.EqualFold(f, "Total") || strings.EqualFold(f, "SubTotal") {
			return true
		}
	}
	return false
}

func fieldWarning(sec parsers.Section, line int, field, message string) models.Warning {
	return models.Warning{
		Kind:    models.WarningField,
		Section: sec.Label,
		Line:    line,
		Field:   field,
		Message: message,
	}
}
