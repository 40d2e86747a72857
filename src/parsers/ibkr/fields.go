package ibkr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/username/optfolio/src/models"
)

// dateLayouts is the documented fallback chain for date fields. Formats are
// tried in order; exhausting the chain is a field-level warning, not a hard
// failure.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02, 15:04:05",
	"02Jan06",
	"01/02/2006",
}

// ParseDate parses a statement date field through the fallback chain.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	normalized := normalizeMonthCase(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// normalizeMonthCase rewrites "07FEB25" as "07Feb25" so the 02Jan06 layout
// accepts the statement's upper-case month abbreviations.
func normalizeMonthCase(s string) string {
	re := regexp.MustCompile(`(\d{2})([A-Z]{3})(\d{2})`)
	return re.ReplaceAllStringFunc(s, func(m string) string {
		return m[:3] + strings.ToLower(m[3:5]) + m[5:]
	})
}

// ParseNumber coerces a statement numeric field: thousands separators are
// stripped, parenthesized values are negative, and a trailing currency code
// ("1,234.56 USD") is tolerated and dropped.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" || s == "--" {
		return 0, fmt.Errorf("empty numeric field")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	// Trailing currency suffix.
	if fields := strings.Fields(s); len(fields) == 2 && currencyCodeRe.MatchString(fields[1]) {
		s = fields[0]
	}

	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable number %q", s)
	}
	if negative {
		v = -v
	}
	return v, nil
}

var (
	currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)
	// Option symbols look like "ASTS 07FEB25 26 C".
	optionSymbolRe = regexp.MustCompile(`^(\S+) (\d{2}[A-Z]{3}\d{2}) ([\d.]+) ([CP])$`)
	// Currency pairs look like "EUR.USD".
	currencyPairRe = regexp.MustCompile(`^[A-Z]{3}\.[A-Z]{3}$`)
)

// ParseOptionSymbol decodes an option contract symbol into its parts.
func ParseOptionSymbol(symbol string) (models.OptionContract, error) {
	m := optionSymbolRe.FindStringSubmatch(strings.TrimSpace(symbol))
	if m == nil {
		return models.OptionContract{}, fmt.Errorf("not an option symbol: %q", symbol)
	}
	expiry, err := ParseDate(m[2])
	if err != nil {
		return models.OptionContract{}, fmt.Errorf("option symbol %q: %w", symbol, err)
	}
	strike, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return models.OptionContract{}, fmt.Errorf("option symbol %q: invalid strike %q", symbol, m[3])
	}
	return models.OptionContract{
		Underlying: m[1],
		Expiry:     expiry,
		Strike:     strike,
		Right:      m[4],
	}, nil
}

// Statement asset-category labels.
const (
	categoryStocks  = "Stocks"
	categoryOptions = "Equity and Index Options"
	categoryForex   = "Forex"
)

// ClassifyAsset resolves an asset class from the statement's category column,
// falling back to the identifier's shape when the category is missing or
// unknown. Instruments that resist classification come back AssetUnknown and
// are surfaced as reconciliation warnings downstream, never dropped.
func ClassifyAsset(category, symbol string) models.AssetClass {
	switch category {
	case categoryStocks:
		return models.AssetEquity
	case categoryOptions:
		return models.AssetOption
	case categoryForex:
		return models.AssetForex
	}
	return ClassifySymbol(symbol)
}

// ClassifySymbol classifies an instrument purely by identifier shape.
func ClassifySymbol(symbol string) models.AssetClass {
	symbol = strings.TrimSpace(symbol)
	switch {
	case optionSymbolRe.MatchString(symbol):
		return models.AssetOption
	case currencyPairRe.MatchString(symbol):
		return models.AssetForex
	case currencyCodeRe.MatchString(symbol) && isKnownCurrency(symbol):
		return models.AssetForex
	case equitySymbolRe.MatchString(symbol):
		return models.AssetEquity
	}
	return models.AssetUnknown
}

var equitySymbolRe = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,11}$`)

// isKnownCurrency guards the three-letter forex check so short equity tickers
// are not misread as currencies.
func isKnownCurrency(code string) bool {
	switch code {
	case "USD", "EUR", "GBP", "CHF", "JPY", "CAD", "AUD", "NZD", "SEK", "NOK", "DKK", "HKD", "SGD", "CNH", "PLN", "CZK", "HUF", "MXN", "ILS", "ZAR", "TRY", "KRW", "INR":
		return true
	}
	return false
}
