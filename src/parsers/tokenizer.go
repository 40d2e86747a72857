package parsers

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// SectionKind labels a recognized statement section.
type SectionKind string

const (
	SectionTrades     SectionKind = "trades"
	SectionPositions  SectionKind = "positions"
	SectionMTMSummary SectionKind = "mtm_summary"
	SectionCashForex  SectionKind = "cash_forex"
	SectionUnknown    SectionKind = "unknown"
)

// ErrNoSections is returned when a statement contains no recognizable section
// headers at all. That is a structural failure: the format is unrecognized and
// proceeding would silently produce an empty result.
var ErrNoSections = errors.New("statement format unrecognized: no known sections found")

// SectionRule maps a section-name label to a SectionKind. Rules are evaluated
// in order and the first match wins; rule order is part of the documented
// format contract. New statement variants extend this list, they never change
// the relative order of existing rules.
type SectionRule struct {
	Kind  SectionKind
	Match func(label string) bool
}

func labelIs(names ...string) func(string) bool {
	return func(label string) bool {
		for _, n := range names {
			if strings.EqualFold(label, n) {
				return true
			}
		}
		return false
	}
}

// DefaultRules is the ordered rule list for IBKR activity statements. More
// specific labels come first: the Mark-to-Market summary and Open Positions
// rules precede the generic Trades rule so a sub-account breakdown nested
// under a summary label can never be claimed by a later rule.
var DefaultRules = []SectionRule{
	{Kind: SectionMTMSummary, Match: labelIs("Mark-to-Market Performance Summary")},
	{Kind: SectionPositions, Match: labelIs("Open Positions", "Positions")},
	{Kind: SectionCashForex, Match: labelIs("Cash Report", "Forex Balances")},
	{Kind: SectionTrades, Match: labelIs("Trades")},
}

// SectionLine is one statement line with its section-name column stripped.
type SectionLine struct {
	Number int // 1-based line number within the raw document
	Text   string
}

// Section is a contiguous labeled region of a statement. Regions whose label
// matches no rule are kept with Kind == SectionUnknown so format drift is
// observable instead of silently dropping data.
type Section struct {
	Kind      SectionKind
	Label     string
	StartLine int
	Lines     []SectionLine
}

// Tokenize splits a raw statement into labeled sections. Every line carries
// its section name in the first CSV column (quoted names may contain commas);
// a section extends while consecutive lines carry the same label. The whole
// document is covered: unmatched labels become unknown sections.
func Tokenize(r io.Reader, rules []SectionRule) ([]Section, error) {
	var sections []Section
	var current *Section

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		label, rest := splitLabel(line)
		if current == nil || current.Label != label {
			sections = append(sections, Section{
				Kind:      kindFor(label, rules),
				Label:     label,
				StartLine: lineNo,
			})
			current = &sections[len(sections)-1]
		}
		current.Lines = append(current.Lines, SectionLine{Number: lineNo, Text: rest})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	recognized := 0
	for _, s := range sections {
		if s.Kind != SectionUnknown {
			recognized++
		}
	}
	if recognized == 0 {
		return nil, ErrNoSections
	}
	return sections, nil
}

// splitLabel extracts the leading section-name column, tolerating quoted
// names that contain commas, and returns the remainder of the line.
func splitLabel(line string) (label, rest string) {
	if strings.HasPrefix(line, `"`) {
		if end := strings.Index(line[1:], `"`); end >= 0 {
			label = line[1 : end+1]
			rest = line[end+2:]
			rest = strings.TrimPrefix(rest, ",")
			return label, rest
		}
	}
	if idx := strings.Index(line, ","); idx >= 0 {
		return line[:idx], line[idx+1:]
	}
	return line, ""
}

func kindFor(label string, rules []SectionRule) SectionKind {
	for _, rule := range rules {
		if rule.Match(label) {
			return rule.Kind
		}
	}
	return SectionUnknown
}
