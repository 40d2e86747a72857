package processors

import (
	"github.com/username/optfolio/src/models"
)

// OptionResult is the outcome of matching one run's option activity: open
// legs with the premium attached to them and the credit/debit totals in the
// account's base currency.
type OptionResult struct {
	Credit   models.Money
	Debit    models.Money
	Legs     []models.OpenOptionLeg
	Warnings []models.Warning
}

// OptionProcessor matches option trades against option positions and computes
// the options-credit and options-debit totals.
type OptionProcessor interface {
	Process(trades []models.TradeRecord, positions []models.PositionRecord) OptionResult
}

// SnapshotProcessor merges all of one run's records into PortfolioSnapshots,
// one per (account, as-of date). It never fails: every inconsistency becomes
// a reconciliation warning and the snapshot is still produced from best-effort
// values.
type SnapshotProcessor interface {
	Process(doc models.StatementDocument, data *models.StatementData) ([]models.PortfolioSnapshot, []models.Warning)
}

// ReconcilerConfig carries the knobs the reconciler needs. ForexTolerance is
// an absolute amount in the balance's own currency; cross-check discrepancies
// above it are flagged as warnings.
type ReconcilerConfig struct {
	BaseCurrency        string
	ForexTolerance      float64
	ConsolidateAccounts bool
}
