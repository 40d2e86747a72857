package models

import (
	"fmt"
	"time"
)

// Money is an amount tagged with its currency. Aggregations in the reconciler
// go through Add so that mixing currencies is an explicit error instead of a
// silent float addition.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Add returns m plus other. Adding amounts of different currencies fails.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("cannot add %s amount to %s amount", other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// OpenOptionLeg is one open short or long option position with the net premium
// attached to it, kept on the snapshot so dashboards can show per-leg detail.
type OpenOptionLeg struct {
	Symbol     string         `json:"symbol"`
	Contract   OptionContract `json:"contract"`
	Quantity   float64        `json:"quantity"` // signed: negative = short
	NetPremium Money          `json:"net_premium"`
}

// PortfolioSnapshot is the reconciled per-account, per-date aggregate that the
// historical store persists. Uniquely identified by (AccountID, AsOf);
// re-ingesting the same statement replaces the prior row for that key.
type PortfolioSnapshot struct {
	AccountID string    `json:"account_id"`
	AsOf      time.Time `json:"as_of"`

	// OptionsCredit is the net premium retained from currently open short
	// option positions, in the account's base currency. OptionsDebit is the
	// mirror total over open long legs.
	OptionsCredit Money `json:"options_credit"`
	OptionsDebit  Money `json:"options_debit"`

	// EquityValue is quantity times mark price summed over equity positions.
	// NetAssetValue adds base-currency cash on top; other currencies are left
	// to the downstream consumer, never converted here.
	EquityValue   Money `json:"equity_value"`
	NetAssetValue Money `json:"net_asset_value"`

	ForexBalances []ForexBalance  `json:"forex_balances"`
	OptionLegs    []OpenOptionLeg `json:"option_legs"`

	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
}

// SnapshotDateFormat is the canonical as-of date form used for storage keys.
const SnapshotDateFormat = "2006-01-02"

// AsOfDate returns the storage key form of the snapshot date.
func (s *PortfolioSnapshot) AsOfDate() string {
	return s.AsOf.Format(SnapshotDateFormat)
}
