package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_SplitsContiguousSections(t *testing.T) {
	input := strings.Join([]string{
		"Trades,Header,Symbol,Quantity",
		"Trades,Data,AAPL,10",
		"Open Positions,Header,Symbol,Quantity",
		"Open Positions,Data,AAPL,10",
		"Trades,Data,MSFT,5",
	}, "\n")

	sections, err := Tokenize(strings.NewReader(input), DefaultRules)
	require.NoError(t, err)
	require.Len(t, sections, 3)

	assert.Equal(t, SectionTrades, sections[0].Kind)
	assert.Len(t, sections[0].Lines, 2)
	assert.Equal(t, SectionPositions, sections[1].Kind)
	assert.Equal(t, SectionTrades, sections[2].Kind)
	assert.Len(t, sections[2].Lines, 1)
}

func TestTokenize_SectionNameStripped(t *testing.T) {
	input := "Trades,Header,Symbol\nTrades,Data,AAPL\n"
	sections, err := Tokenize(strings.NewReader(input), DefaultRules)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "Header,Symbol", sections[0].Lines[0].Text)
	assert.Equal(t, 1, sections[0].Lines[0].Number)
	assert.Equal(t, 2, sections[0].Lines[1].Number)
}

func TestTokenize_QuotedSectionName(t *testing.T) {
	input := `"Mark-to-Market Performance Summary",Header,Symbol` + "\n" +
		`"Mark-to-Market Performance Summary",Data,AAPL` + "\n"
	sections, err := Tokenize(strings.NewReader(input), DefaultRules)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, SectionMTMSummary, sections[0].Kind)
	assert.Equal(t, "Mark-to-Market Performance Summary", sections[0].Label)
}

func TestTokenize_UnknownSectionsKept(t *testing.T) {
	input := strings.Join([]string{
		"Trades,Header,Symbol",
		"Trades,Data,AAPL",
		"Dividends,Header,Symbol,Amount",
		"Dividends,Data,AAPL,12.50",
	}, "\n")

	sections, err := Tokenize(strings.NewReader(input), DefaultRules)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, SectionUnknown, sections[1].Kind)
	assert.Equal(t, "Dividends", sections[1].Label)
	assert.Len(t, sections[1].Lines, 2)
}

func TestTokenize_NoRecognizedSections(t *testing.T) {
	input := "Garbage,Header,Foo\nGarbage,Data,Bar\n"
	_, err := Tokenize(strings.NewReader(input), DefaultRules)
	assert.ErrorIs(t, err, ErrNoSections)
}

func TestTokenize_EmptyInput(t *testing.T) {
	_, err := Tokenize(strings.NewReader(""), DefaultRules)
	assert.ErrorIs(t, err, ErrNoSections)
}

func TestTokenize_BlankLinesIgnored(t *testing.T) {
	input := "Trades,Header,Symbol\n\n\nTrades,Data,AAPL\n"
	sections, err := Tokenize(strings.NewReader(input), DefaultRules)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Len(t, sections[0].Lines, 2)
}

func TestDefaultRules_FirstMatchWins(t *testing.T) {
	// The rule list is ordered most specific first; a label must resolve to
	// the same kind regardless of how many later rules could also claim it.
	tests := []struct {
		label string
		kind  SectionKind
	}{
		{"Mark-to-Market Performance Summary", SectionMTMSummary},
		{"Open Positions", SectionPositions},
		{"Positions", SectionPositions},
		{"Cash Report", SectionCashForex},
		{"Forex Balances", SectionCashForex},
		{"Trades", SectionTrades},
		{"Statement", SectionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.kind, kindFor(tt.label, DefaultRules))
		})
	}
}
