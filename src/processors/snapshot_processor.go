package processors

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/username/optfolio/src/models"
	"github.com/username/optfolio/src/utils"
)

// snapshotProcessorImpl implements the SnapshotProcessor interface. It merges
// one run's trades, positions and cash balances into a PortfolioSnapshot,
// cross-checking the sections against each other on the way.
type snapshotProcessorImpl struct {
	cfg     ReconcilerConfig
	options OptionProcessor
}

// NewSnapshotProcessor creates a SnapshotProcessor using the given option
// processor for the options-credit leg of the snapshot.
func NewSnapshotProcessor(cfg ReconcilerConfig, options OptionProcessor) SnapshotProcessor {
	return &snapshotProcessorImpl{cfg: cfg, options: options}
}

// Process builds the snapshot for one statement. It never fails: every
// inconsistency becomes a reconciliation warning and the snapshot is produced
// from best-effort values.
func (p *snapshotProcessorImpl) Process(doc models.StatementDocument, data *models.StatementData) ([]models.PortfolioSnapshot, []models.Warning) {
	var warnings []models.Warning
	base := p.cfg.BaseCurrency

	positions := dedupePositions(data.Positions)

	optResult := p.options.Process(data.Trades, positions)
	warnings = append(warnings, optResult.Warnings...)

	equityValue, optionMarkValue, eqWarnings := p.valuePositions(positions)
	warnings = append(warnings, eqWarnings...)

	forex, fxWarnings := p.mergeForexBalances(data.Forex)
	warnings = append(warnings, fxWarnings...)
	warnings = append(warnings, p.crossCheckForexFlows(data.Trades, forex)...)
	warnings = append(warnings, p.crossCheckEquityTrades(data.Trades, positions)...)

	var baseCash float64
	for _, fb := range forex {
		if fb.Currency == base {
			baseCash = fb.Balance
		}
	}

	nav := utils.RoundFloat(equityValue+optionMarkValue+baseCash, 2)

	snapshot := models.PortfolioSnapshot{
		AccountID:     doc.AccountID,
		AsOf:          doc.PeriodEnd,
		OptionsCredit: optResult.Credit,
		OptionsDebit:  optResult.Debit,
		EquityValue:   models.Money{Amount: utils.RoundFloat(equityValue, 2), Currency: base},
		NetAssetValue: models.Money{Amount: nav, Currency: base},
		ForexBalances: forex,
		OptionLegs:    optResult.Legs,
		GeneratedAt:   time.Now().UTC(),
	}
	return []models.PortfolioSnapshot{snapshot}, warnings
}

// dedupePositions collapses duplicate instrument rows. The Open Positions
// section carries cost basis and wins over a Mark-to-Market row for the same
// symbol.
func dedupePositions(positions []models.PositionRecord) []models.PositionRecord {
	bySymbol := make(map[string]models.PositionRecord)
	order := make([]string, 0, len(positions))
	for _, pos := range positions {
		existing, ok := bySymbol[pos.Symbol]
		if !ok {
			bySymbol[pos.Symbol] = pos
			order = append(order, pos.Symbol)
			continue
		}
		if existing.Origin == models.OriginMTMSummary && pos.Origin == models.OriginOpenPositions {
			bySymbol[pos.Symbol] = pos
		}
	}
	out := make([]models.PositionRecord, 0, len(order))
	for _, sym := range order {
		out = append(out, bySymbol[sym])
	}
	return out
}

// valuePositions sums quantity times mark price over equity positions and,
// separately, over option positions with the contract multiplier applied.
// Positions priced in another currency are excluded with a warning rather
// than converted.
func (p *snapshotProcessorImpl) valuePositions(positions []models.PositionRecord) (equity, options float64, warnings []models.Warning) {
	for _, pos := range positions {
		if pos.Currency != "" && pos.Currency != p.cfg.BaseCurrency {
			warnings = append(warnings, reconWarning(pos.Symbol, pos.Line,
				fmt.Sprintf("position valued in %s excluded from %s totals", pos.Currency, p.cfg.BaseCurrency)))
			continue
		}
		switch pos.AssetClass {
		case models.AssetEquity:
			equity += pos.Quantity * pos.MarkPrice
		case models.AssetOption:
			options += pos.Quantity * pos.MarkPrice * ContractMultiplier
		case models.AssetForex:
			// Cash lives in ForexBalances, not in position value.
		default:
			warnings = append(warnings, reconWarning(pos.Symbol, pos.Line,
				"unclassified instrument excluded from valuation"))
		}
	}
	return equity, options, warnings
}

// mergeForexBalances collapses per-currency balances from the Cash Report and
// the Mark-to-Market summary into one row per currency. The Cash Report figure
// wins; when both sections report the same currency and disagree by more than
// the tolerance, the discrepancy is flagged.
func (p *snapshotProcessorImpl) mergeForexBalances(balances []models.ForexBalance) ([]models.ForexBalance, []models.Warning) {
	var warnings []models.Warning
	byCurrency := make(map[string]models.ForexBalance)
	for _, fb := range balances {
		existing, ok := byCurrency[fb.Currency]
		if !ok {
			byCurrency[fb.Currency] = fb
			continue
		}
		if existing.Source == fb.Source {
			warnings = append(warnings, reconWarning(fb.Currency, 0,
				fmt.Sprintf("duplicate %s balance from %s, keeping the first", fb.Currency, fb.Source)))
			continue
		}
		primary, secondary := existing, fb
		if primary.Source != models.SourceCashReport {
			primary, secondary = fb, existing
		}
		if utils.AbsFloat(primary.Balance-secondary.Balance) > p.cfg.ForexTolerance {
			warnings = append(warnings, reconWarning(fb.Currency, 0,
				fmt.Sprintf("%s balance disagrees between sections: cash report %.2f vs mark-to-market %.2f",
					fb.Currency, primary.Balance, secondary.Balance)))
		}
		// Keep the mark-to-market prior balance alongside the cash report
		// figure so flow cross-checks still have a starting point.
		if primary.PriorBalance == 0 {
			primary.PriorBalance = secondary.PriorBalance
		}
		byCurrency[fb.Currency] = primary
	}

	out := make([]models.ForexBalance, 0, len(byCurrency))
	for _, fb := range byCurrency {
		out = append(out, fb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, warnings
}

// crossCheckForexFlows verifies that each currency's balance moved consistently
// with the run's forex trades: prior balance plus net traded flow should land
// on the current balance, within tolerance. Currencies without a prior balance
// are skipped; there is nothing to check against.
func (p *snapshotProcessorImpl) crossCheckForexFlows(trades []models.TradeRecord, balances []models.ForexBalance) []models.Warning {
	var warnings []models.Warning

	flows := make(map[string]float64)
	for _, tr := range trades {
		if tr.AssetClass != models.AssetForex {
			continue
		}
		parts := strings.SplitN(tr.Symbol, ".", 2)
		if len(parts) != 2 {
			warnings = append(warnings, reconWarning(tr.Symbol, tr.Line,
				"forex trade symbol is not a currency pair"))
			continue
		}
		// Buying B.Q moves quantity units of B in and proceeds units of Q out.
		// Commission is charged in the trade currency.
		flows[parts[0]] += tr.Quantity
		flows[parts[1]] += tr.Proceeds
		if tr.Currency != "" {
			flows[tr.Currency] += tr.Commission
		}
	}

	for _, fb := range balances {
		flow, traded := flows[fb.Currency]
		if !traded || fb.PriorBalance == 0 {
			continue
		}
		expected := fb.PriorBalance + flow
		if utils.AbsFloat(expected-fb.Balance) > p.cfg.ForexTolerance {
			warnings = append(warnings, reconWarning(fb.Currency, 0,
				fmt.Sprintf("%s balance %.2f differs from prior %.2f plus traded flow %.2f",
					fb.Currency, fb.Balance, fb.PriorBalance, flow)))
		}
	}
	return warnings
}

// crossCheckEquityTrades flags equity symbols whose trades leave a net open
// quantity this run but which are absent from the positions sections. Option
// symbols get the same check inside the option processor.
func (p *snapshotProcessorImpl) crossCheckEquityTrades(trades []models.TradeRecord, positions []models.PositionRecord) []models.Warning {
	var warnings []models.Warning

	held := make(map[string]bool, len(positions))
	for _, pos := range positions {
		held[pos.Symbol] = true
	}

	netQty := make(map[string]float64)
	firstLine := make(map[string]int)
	for _, tr := range trades {
		switch tr.AssetClass {
		case models.AssetEquity:
			netQty[tr.Symbol] += tr.Quantity
			if _, ok := firstLine[tr.Symbol]; !ok {
				firstLine[tr.Symbol] = tr.Line
			}
		case models.AssetUnknown:
			warnings = append(warnings, reconWarning(tr.Symbol, tr.Line,
				"unclassified instrument in trades"))
		}
	}

	symbols := make([]string, 0, len(netQty))
	for sym := range netQty {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		if netQty[sym] != 0 && !held[sym] {
			warnings = append(warnings, reconWarning(sym, firstLine[sym],
				fmt.Sprintf("trades leave net quantity %.0f but instrument is absent from positions", netQty[sym])))
		}
	}
	return warnings
}
