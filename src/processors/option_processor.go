package processors

import (
	"fmt"
	"sort"

	"github.com/username/optfolio/src/models"
	"github.com/username/optfolio/src/parsers/ibkr"
	"github.com/username/optfolio/src/utils"
)

// ContractMultiplier is the equity option contract multiplier: one contract
// covers 100 shares, and quoted premiums are per share.
const ContractMultiplier = 100

// optionProcessorImpl implements the OptionProcessor interface.
type optionProcessorImpl struct {
	baseCurrency string
}

// NewOptionProcessor creates a new OptionProcessor reporting credit and debit
// in the given base currency.
func NewOptionProcessor(baseCurrency string) OptionProcessor {
	return &optionProcessorImpl{baseCurrency: baseCurrency}
}

// openLeg tracks one open option position while matching trades.
type openLeg struct {
	quantity       float64 // always positive while matching; side tracked separately
	premiumPerUnit float64 // signed cash per contract at open (positive = received)
	commissionPer  float64
}

// Process computes the options-credit total: the net premium retained from
// currently open short option positions, in the base currency. Trades within
// the run are FIFO-matched so a leg opened and closed in the same statement
// contributes nothing. Contracts carried into the statement, whether the
// symbol traded in the run or not, are valued at their mark price, the best
// available estimate of their retained premium.
func (p *optionProcessorImpl) Process(trades []models.TradeRecord, positions []models.PositionRecord) OptionResult {
	result := OptionResult{
		Credit: models.Money{Currency: p.baseCurrency},
		Debit:  models.Money{Currency: p.baseCurrency},
	}

	tradesBySymbol := make(map[string][]models.TradeRecord)
	for _, tr := range trades {
		if tr.AssetClass != models.AssetOption {
			continue
		}
		if tr.Quantity == 0 {
			result.Warnings = append(result.Warnings, reconWarning(tr.Symbol, tr.Line,
				"option trade has zero quantity, skipped"))
			continue
		}
		tradesBySymbol[tr.Symbol] = append(tradesBySymbol[tr.Symbol], tr)
	}

	positionsBySymbol := make(map[string]models.PositionRecord)
	for _, pos := range positions {
		if pos.AssetClass != models.AssetOption {
			continue
		}
		// Open Positions rows win over Mark-to-Market rows for the same
		// instrument.
		if existing, ok := positionsBySymbol[pos.Symbol]; ok && existing.Origin == models.OriginOpenPositions {
			continue
		}
		positionsBySymbol[pos.Symbol] = pos
	}

	symbols := make(map[string]bool)
	for s := range tradesBySymbol {
		symbols[s] = true
	}
	for s := range positionsBySymbol {
		symbols[s] = true
	}

	// Deterministic iteration order keeps leg ordering and warning ordering
	// stable across runs of the same statement.
	ordered := make([]string, 0, len(symbols))
	for s := range symbols {
		ordered = append(ordered, s)
	}
	sort.Strings(ordered)

	for _, symbol := range ordered {
		p.processSymbol(symbol, tradesBySymbol[symbol], positionsBySymbol, &result)
	}

	result.Credit.Amount = utils.RoundFloat(result.Credit.Amount, 2)
	result.Debit.Amount = utils.RoundFloat(result.Debit.Amount, 2)
	return result
}

func (p *optionProcessorImpl) processSymbol(symbol string, txs []models.TradeRecord, positionsBySymbol map[string]models.PositionRecord, result *OptionResult) {
	contract, err := ibkr.ParseOptionSymbol(symbol)
	if err != nil {
		result.Warnings = append(result.Warnings, reconWarning(symbol, 0,
			fmt.Sprintf("unclassifiable option symbol: %v", err)))
	}

	pos, hasPosition := positionsBySymbol[symbol]

	if len(txs) == 0 {
		// Carried position with no activity this run: estimate retained
		// premium from the mark price.
		p.addCarriedPosition(symbol, contract, pos, result)
		return
	}

	sortTradesByDate(txs)
	shortLegs, longLegs := matchTrades(txs)

	var netOpenQty float64
	for _, leg := range shortLegs {
		netOpenQty -= leg.quantity
	}
	for _, leg := range longLegs {
		netOpenQty += leg.quantity
	}

	currency := txs[0].Currency
	if currency != "" && currency != p.baseCurrency {
		result.Warnings = append(result.Warnings, reconWarning(symbol, txs[0].Line,
			fmt.Sprintf("option premium in %s excluded from %s credit total", currency, p.baseCurrency)))
		return
	}

	for _, leg := range shortLegs {
		premium := leg.quantity*leg.premiumPerUnit - leg.quantity*leg.commissionPer
		result.Credit.Amount += premium
		result.Legs = append(result.Legs, models.OpenOptionLeg{
			Symbol:     symbol,
			Contract:   contract,
			Quantity:   -leg.quantity,
			NetPremium: models.Money{Amount: utils.RoundFloat(premium, 2), Currency: p.baseCurrency},
		})
	}
	for _, leg := range longLegs {
		cost := leg.quantity*-leg.premiumPerUnit + leg.quantity*leg.commissionPer
		result.Debit.Amount += cost
		result.Legs = append(result.Legs, models.OpenOptionLeg{
			Symbol:     symbol,
			Contract:   contract,
			Quantity:   leg.quantity,
			NetPremium: models.Money{Amount: utils.RoundFloat(-cost, 2), Currency: p.baseCurrency},
		})
	}

	// Reconcile against the positions section. The position row is
	// authoritative for the open quantity as of the snapshot date: contracts
	// it reports beyond what the run's trades opened were carried in, and are
	// valued at mark like any other carried position. A gap with no prior
	// quantity to explain it is additionally flagged.
	if !hasPosition {
		if netOpenQty != 0 {
			result.Warnings = append(result.Warnings, reconWarning(symbol, txs[0].Line,
				fmt.Sprintf("trades leave net open quantity %.0f but instrument is absent from positions", netOpenQty)))
		}
		return
	}
	if carried := pos.Quantity - netOpenQty; carried != 0 {
		if pos.PriorQuantity == 0 {
			result.Warnings = append(result.Warnings, reconWarning(symbol, pos.Line,
				fmt.Sprintf("position quantity %.0f disagrees with net traded quantity %.0f", pos.Quantity, netOpenQty)))
		}
		p.valueAtMark(symbol, contract, pos, carried, result)
	}
}

// addCarriedPosition values a position held across the statement boundary at
// its mark price, the statement's own valuation of the open premium.
func (p *optionProcessorImpl) addCarriedPosition(symbol string, contract models.OptionContract, pos models.PositionRecord, result *OptionResult) {
	if pos.Symbol == "" {
		return
	}
	p.valueAtMark(symbol, contract, pos, pos.Quantity, result)
}

// valueAtMark adds qty carried contracts to the totals at the position's mark
// price: short contracts feed the credit, long contracts the debit.
func (p *optionProcessorImpl) valueAtMark(symbol string, contract models.OptionContract, pos models.PositionRecord, qty float64, result *OptionResult) {
	if qty == 0 {
		return
	}
	currency := pos.Currency
	if currency != "" && currency != p.baseCurrency {
		result.Warnings = append(result.Warnings, reconWarning(symbol, pos.Line,
			fmt.Sprintf("option position in %s excluded from %s credit total", currency, p.baseCurrency)))
		return
	}

	markValue := qty * pos.MarkPrice * ContractMultiplier
	if qty < 0 {
		premium := -markValue
		result.Credit.Amount += premium
		result.Legs = append(result.Legs, models.OpenOptionLeg{
			Symbol:     symbol,
			Contract:   contract,
			Quantity:   qty,
			NetPremium: models.Money{Amount: utils.RoundFloat(premium, 2), Currency: p.baseCurrency},
		})
		return
	}
	result.Debit.Amount += markValue
	result.Legs = append(result.Legs, models.OpenOptionLeg{
		Symbol:     symbol,
		Contract:   contract,
		Quantity:   qty,
		NetPremium: models.Money{Amount: utils.RoundFloat(-markValue, 2), Currency: p.baseCurrency},
	})
}

// matchTrades FIFO-matches one symbol's trades: a buy closes open shorts
// before opening a long, a sell closes open longs before opening a short.
// Expirations and assignments close existing legs at zero premium.
func matchTrades(txs []models.TradeRecord) (shorts, longs []*openLeg) {
	closeFIFO := func(legs []*openLeg, qty float64) ([]*openLeg, float64) {
		remaining := qty
		for remaining > 0 && len(legs) > 0 {
			leg := legs[0]
			match := utils.MinFloat(remaining, leg.quantity)
			remaining -= match
			leg.quantity -= match
			if leg.quantity == 0 {
				legs = legs[1:]
			}
		}
		return legs, remaining
	}

	for i := range txs {
		tx := txs[i]
		qty := utils.AbsFloat(tx.Quantity)
		if qty == 0 {
			continue
		}
		perUnit := tx.Proceeds / qty
		commissionPer := utils.AbsFloat(tx.Commission) / qty

		isBuy := tx.Quantity > 0
		if tx.Action == models.ActionExpiration || tx.Action == models.ActionAssignment {
			// Removal of an existing leg; direction comes from the sign.
			isBuy = tx.Quantity > 0
			perUnit = 0
			commissionPer = 0
		}

		if isBuy {
			var remaining float64
			shorts, remaining = closeFIFO(shorts, qty)
			if remaining > 0 {
				longs = append(longs, &openLeg{
					quantity:       remaining,
					premiumPerUnit: perUnit,
					commissionPer:  commissionPer,
				})
			}
		} else {
			var remaining float64
			longs, remaining = closeFIFO(longs, qty)
			if remaining > 0 {
				shorts = append(shorts, &openLeg{
					quantity:       remaining,
					premiumPerUnit: perUnit,
					commissionPer:  commissionPer,
				})
			}
		}
	}
	return shorts, longs
}

func sortTradesByDate(txs []models.TradeRecord) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].TradeDate.Equal(txs[j].TradeDate) {
			return txs[i].Line < txs[j].Line
		}
		return txs[i].TradeDate.Before(txs[j].TradeDate)
	})
}

func reconWarning(symbol string, line int, message string) models.Warning {
	return models.Warning{
		Kind:    models.WarningReconciliation,
		Field:   symbol,
		Line:    line,
		Message: message,
	}
}
