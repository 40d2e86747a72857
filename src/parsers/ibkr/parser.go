package ibkr

import (
	"io"
	"time"

	"github.com/username/optfolio/src/logger"
	"github.com/username/optfolio/src/models"
	"github.com/username/optfolio/src/parsers"
)

// IBKRParser implements the parsers.Parser interface for IBKR daily activity
// statement CSV exports.
type IBKRParser struct {
	rules []parsers.SectionRule
}

// NewParser creates a new instance of the IBKRParser using the default
// section rule set.
func NewParser() *IBKRParser {
	return &IBKRParser{rules: parsers.DefaultRules}
}

func init() {
	parsers.RegisterParser("ibkr", func() parsers.Parser { return NewParser() })
}

// Parse tokenizes a raw statement into sections and runs the per-kind section
// parsers. A statement with zero recognizable sections fails structurally
// (parsers.ErrNoSections); everything below that is per-line skip-and-warn.
func (p *IBKRParser) Parse(file io.Reader, asOf time.Time) (*models.StatementData, error) {
	sections, err := parsers.Tokenize(file, p.rules)
	if err != nil {
		return nil, err
	}

	data := &models.StatementData{}
	for _, sec := range sections {
		switch sec.Kind {
		case parsers.SectionTrades:
			data.SectionsFound++
			p.parseTrades(sec, data)
		case parsers.SectionPositions:
			data.SectionsFound++
			p.parseOpenPositions(sec, asOf, data)
		case parsers.SectionMTMSummary:
			data.SectionsFound++
			p.parseMTMSummary(sec, asOf, data)
		case parsers.SectionCashForex:
			data.SectionsFound++
			p.parseCashReport(sec, asOf, data)
		default:
			data.SectionsUnknown++
			if logger.L != nil {
				logger.L.Warn("IBKR Parser: unrecognized statement section kept as unknown",
					"label", sec.Label, "startLine", sec.StartLine, "lines", len(sec.Lines))
			}
		}
	}

	return data, nil
}
