package models

import "time"

// AssetClass identifies the instrument family a record belongs to.
type AssetClass string

const (
	AssetEquity  AssetClass = "equity"
	AssetOption  AssetClass = "option"
	AssetForex   AssetClass = "forex"
	AssetUnknown AssetClass = "unknown"
)

// TradeAction is the normalized action of a trade confirmation row.
type TradeAction string

const (
	ActionBuy        TradeAction = "BUY"
	ActionSell       TradeAction = "SELL"
	ActionAssignment TradeAction = "ASSIGNMENT"
	ActionExpiration TradeAction = "EXPIRATION"
)

// StatementDocument is one raw statement plus its ingestion metadata. It is
// owned by the pipeline for the duration of a single processing run.
type StatementDocument struct {
	AccountID   string    `json:"account_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	IngestedAt  time.Time `json:"ingested_at"`
	Raw         string    `json:"-"`
}

// TradeRecord is one parsed trade confirmation line. Immutable once parsed.
type TradeRecord struct {
	Symbol     string      `json:"symbol"`
	AssetClass AssetClass  `json:"asset_class"`
	Action     TradeAction `json:"action"`
	Quantity   float64     `json:"quantity"`
	Price      float64     `json:"price"`
	Proceeds   float64     `json:"proceeds"`
	Commission float64     `json:"commission"`
	Currency   string      `json:"currency"`
	TradeDate  time.Time   `json:"trade_date"`
	Line       int         `json:"line"` // source line within the statement, for warnings
}

// PositionOrigin records which statement section a position row came from.
// Open Positions rows carry cost basis; Mark-to-Market rows carry prior/current
// quantity and price. When both sections describe the same instrument the
// reconciler prefers the Open Positions row.
type PositionOrigin string

const (
	OriginOpenPositions PositionOrigin = "open_positions"
	OriginMTMSummary    PositionOrigin = "mtm_summary"
)

// PositionRecord is one instrument held as of the statement's period end.
type PositionRecord struct {
	Symbol        string         `json:"symbol"`
	AssetClass    AssetClass     `json:"asset_class"`
	Quantity      float64        `json:"quantity"`
	PriorQuantity float64        `json:"prior_quantity"`
	CostBasis     float64        `json:"cost_basis"`
	MarkPrice     float64        `json:"mark_price"`
	PriorPrice    float64        `json:"prior_price"`
	Currency      string         `json:"currency"`
	AsOf          time.Time      `json:"as_of"`
	Origin        PositionOrigin `json:"origin"`
	Line          int            `json:"line"`
}

// OptionContract is the decoded form of an option symbol such as
// "ASTS 07FEB25 26 C": underlying, expiry, strike and right.
type OptionContract struct {
	Underlying string    `json:"underlying"`
	Expiry     time.Time `json:"expiry"`
	Strike     float64   `json:"strike"`
	Right      string    `json:"right"` // "C" or "P"
}

// BalanceSource records which statement section a forex balance came from.
// When both sections report the same currency the reconciler prefers the Cash
// Report figure and cross-checks the other.
type BalanceSource string

const (
	SourceCashReport BalanceSource = "cash_report"
	SourceMTMSummary BalanceSource = "mtm_summary"
)

// ForexBalance is the cash balance of one currency as of the statement date.
// Balances are never converted or summed across currencies by the core.
type ForexBalance struct {
	Currency     string        `json:"currency"`
	Balance      float64       `json:"balance"`
	PriorBalance float64       `json:"prior_balance,omitempty"`
	AsOf         time.Time     `json:"as_of"`
	Source       BalanceSource `json:"source,omitempty"`
}

// StatementData is everything one statement parsed into: typed per-section
// records plus the per-line warnings collected on the way. It only lives for
// the duration of a run, feeding snapshot construction.
type StatementData struct {
	Trades    []TradeRecord
	Positions []PositionRecord
	Forex     []ForexBalance

	Warnings        []Warning
	SectionsFound   int
	SectionsUnknown int
	RecordsParsed   int
	LinesSkipped    int
}
