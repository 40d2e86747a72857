package services

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/username/optfolio/src/database"
	"github.com/username/optfolio/src/logger"
	"github.com/username/optfolio/src/models"
	"github.com/username/optfolio/src/utils"
)

// persistRun writes one run's snapshots, forex balances and optional trade
// details in a single transaction. Re-ingesting a statement for an existing
// (account, as-of date) key replaces the snapshot and its balances; trade
// details are append-only and duplicates are ignored.
func persistRun(accountID, runID string, snapshots []models.PortfolioSnapshot, trades []models.TradeRecord) (int, error) {
	rowsWritten := 0
	err := database.WithTransaction(database.DB, func(tx *sql.Tx) error {
		for i := range snapshots {
			n, err := upsertSnapshot(tx, &snapshots[i])
			if err != nil {
				return err
			}
			rowsWritten += n
		}
		if len(trades) > 0 {
			n, err := insertTradeDetails(tx, accountID, runID, trades)
			if err != nil {
				return err
			}
			rowsWritten += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rowsWritten, nil
}

func upsertSnapshot(tx *sql.Tx, snap *models.PortfolioSnapshot) (int, error) {
	var previousRunID string
	err := tx.QueryRow(
		`SELECT run_id FROM portfolio_snapshots WHERE account_id = ? AND as_of_date = ?`,
		snap.AccountID, snap.AsOfDate(),
	).Scan(&previousRunID)
	switch {
	case err == nil:
		logger.L.Info("Replacing existing snapshot",
			"accountID", snap.AccountID, "asOf", snap.AsOfDate(),
			"previousRunID", previousRunID, "runID", snap.RunID)
	case errors.Is(err, sql.ErrNoRows):
		// First snapshot for this key.
	default:
		return 0, fmt.Errorf("checking existing snapshot: %w", err)
	}

	legsJSON, err := json.Marshal(snap.OptionLegs)
	if err != nil {
		return 0, fmt.Errorf("marshaling option legs: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO portfolio_snapshots
			(account_id, as_of_date, options_credit, options_debit,
			 equity_value, net_asset_value, base_currency, option_legs,
			 run_id, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, as_of_date) DO UPDATE SET
			options_credit = excluded.options_credit,
			options_debit = excluded.options_debit,
			equity_value = excluded.equity_value,
			net_asset_value = excluded.net_asset_value,
			base_currency = excluded.base_currency,
			option_legs = excluded.option_legs,
			run_id = excluded.run_id,
			generated_at = excluded.generated_at`,
		snap.AccountID, snap.AsOfDate(),
		snap.OptionsCredit.Amount, snap.OptionsDebit.Amount,
		snap.EquityValue.Amount, snap.NetAssetValue.Amount,
		snap.NetAssetValue.Currency, string(legsJSON),
		snap.RunID, snap.GeneratedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("upserting snapshot: %w", err)
	}
	rows := 1

	_, err = tx.Exec(
		`DELETE FROM forex_balances WHERE account_id = ? AND as_of_date = ?`,
		snap.AccountID, snap.AsOfDate(),
	)
	if err != nil {
		return 0, fmt.Errorf("clearing forex balances: %w", err)
	}
	for _, fb := range snap.ForexBalances {
		_, err = tx.Exec(`
			INSERT INTO forex_balances
				(account_id, as_of_date, currency, balance, source, run_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			snap.AccountID, snap.AsOfDate(), fb.Currency, fb.Balance,
			string(fb.Source), snap.RunID,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting %s balance: %w", fb.Currency, err)
		}
		rows++
	}
	return rows, nil
}

func insertTradeDetails(tx *sql.Tx, accountID, runID string, trades []models.TradeRecord) (int, error) {
	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO trade_details
			(account_id, trade_date, instrument, seq, asset_class, action,
			 quantity, price, proceeds, commission, currency, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing trade insert: %w", err)
	}
	defer stmt.Close()

	rows := 0
	seq := make(map[string]int)
	for _, tr := range trades {
		dateStr := tr.TradeDate.Format(models.SnapshotDateFormat)
		key := dateStr + "|" + tr.Symbol
		res, err := stmt.Exec(
			accountID, dateStr, tr.Symbol, seq[key],
			string(tr.AssetClass), string(tr.Action),
			tr.Quantity, tr.Price, tr.Proceeds, tr.Commission,
			tr.Currency, runID,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting trade (%s %s): %w", dateStr, tr.Symbol, err)
		}
		seq[key]++
		if affected, err := res.RowsAffected(); err == nil {
			rows += int(affected)
		}
	}
	return rows, nil
}

// recordRun writes the run's audit row. It runs outside the data transaction
// so failed runs leave a trace too.
func recordRun(summary *models.ProcessingSummary) error {
	if database.DB == nil {
		return nil
	}
	warningsJSON, err := json.Marshal(summary.Warnings)
	if err != nil {
		return fmt.Errorf("marshaling warnings: %w", err)
	}
	_, err = database.DB.Exec(`
		INSERT INTO processing_runs
			(run_id, account_id, as_of_date, status, error,
			 sections_found, sections_unknown, records_parsed, lines_skipped,
			 rows_written, warning_count, warnings, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, summary.AccountID, summary.AsOfDate,
		string(summary.Status), summary.Error,
		summary.SectionsFound, summary.SectionsUnknown,
		summary.RecordsParsed, summary.LinesSkipped,
		summary.RowsWritten, summary.WarningCount(), string(warningsJSON),
		summary.StartedAt.Format(time.RFC3339), summary.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting run record: %w", err)
	}
	return nil
}

const snapshotColumns = `account_id, as_of_date, options_credit, options_debit,
	equity_value, net_asset_value, base_currency, option_legs, run_id, generated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*models.PortfolioSnapshot, error) {
	var (
		snap        models.PortfolioSnapshot
		asOfDate    string
		credit      float64
		debit       float64
		equity      float64
		nav         float64
		baseCur     string
		legsJSON    sql.NullString
		generatedAt string
	)
	err := row.Scan(&snap.AccountID, &asOfDate, &credit, &debit,
		&equity, &nav, &baseCur, &legsJSON, &snap.RunID, &generatedAt)
	if err != nil {
		return nil, err
	}

	snap.AsOf, err = time.Parse(models.SnapshotDateFormat, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("stored as-of date %q: %w", asOfDate, err)
	}
	if t, err := time.Parse(time.RFC3339, generatedAt); err == nil {
		snap.GeneratedAt = t
	}
	snap.OptionsCredit = models.Money{Amount: credit, Currency: baseCur}
	snap.OptionsDebit = models.Money{Amount: debit, Currency: baseCur}
	snap.EquityValue = models.Money{Amount: equity, Currency: baseCur}
	snap.NetAssetValue = models.Money{Amount: nav, Currency: baseCur}
	if legsJSON.Valid && legsJSON.String != "" {
		if err := json.Unmarshal([]byte(legsJSON.String), &snap.OptionLegs); err != nil {
			return nil, fmt.Errorf("stored option legs: %w", err)
		}
	}
	return &snap, nil
}

func loadForexBalances(accountID, asOfDate string) ([]models.ForexBalance, error) {
	rows, err := database.DB.Query(`
		SELECT currency, balance, source FROM forex_balances
		WHERE account_id = ? AND as_of_date = ?
		ORDER BY currency`,
		accountID, asOfDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	asOf, _ := time.Parse(models.SnapshotDateFormat, asOfDate)
	var balances []models.ForexBalance
	for rows.Next() {
		var fb models.ForexBalance
		var source sql.NullString
		if err := rows.Scan(&fb.Currency, &fb.Balance, &source); err != nil {
			return nil, err
		}
		fb.Source = models.BalanceSource(source.String)
		fb.AsOf = asOf
		balances = append(balances, fb)
	}
	return balances, rows.Err()
}

func loadLatestSnapshot(accountID string) (*models.PortfolioSnapshot, error) {
	row := database.DB.QueryRow(`
		SELECT `+snapshotColumns+` FROM portfolio_snapshots
		WHERE account_id = ?
		ORDER BY as_of_date DESC LIMIT 1`,
		accountID)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no snapshot for account %s", ErrNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}
	snap.ForexBalances, err = loadForexBalances(snap.AccountID, snap.AsOfDate())
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func loadSnapshots(accountID string) ([]models.PortfolioSnapshot, error) {
	rows, err := database.DB.Query(`
		SELECT `+snapshotColumns+` FROM portfolio_snapshots
		WHERE account_id = ?
		ORDER BY as_of_date ASC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []models.PortfolioSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range snapshots {
		snapshots[i].ForexBalances, err = loadForexBalances(snapshots[i].AccountID, snapshots[i].AsOfDate())
		if err != nil {
			return nil, err
		}
	}
	return snapshots, nil
}

// loadConsolidatedSnapshot nets the per-account latest snapshots into one
// view. Totals share the base currency; forex balances are summed per
// currency, never across currencies.
func loadConsolidatedSnapshot() (*models.PortfolioSnapshot, error) {
	rows, err := database.DB.Query(`
		SELECT ` + snapshotColumns + ` FROM portfolio_snapshots s
		WHERE as_of_date = (
			SELECT MAX(as_of_date) FROM portfolio_snapshots
			WHERE account_id = s.account_id
		)
		ORDER BY account_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var latest []models.PortfolioSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		latest = append(latest, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(latest) == 0 {
		return nil, fmt.Errorf("%w: no snapshots stored", ErrNotFound)
	}

	consolidated := models.PortfolioSnapshot{
		AccountID:     "ALL",
		AsOf:          latest[0].AsOf,
		OptionsCredit: models.Money{Currency: latest[0].OptionsCredit.Currency},
		OptionsDebit:  models.Money{Currency: latest[0].OptionsDebit.Currency},
		EquityValue:   models.Money{Currency: latest[0].EquityValue.Currency},
		NetAssetValue: models.Money{Currency: latest[0].NetAssetValue.Currency},
		GeneratedAt:   time.Now().UTC(),
	}
	byCurrency := make(map[string]float64)
	for i := range latest {
		snap := latest[i]
		if snap.AsOf.After(consolidated.AsOf) {
			consolidated.AsOf = snap.AsOf
		}
		// Totals are netted through Money.Add so an account stored under a
		// different base currency fails the read instead of being silently
		// summed into the wrong unit.
		if consolidated.OptionsCredit, err = consolidated.OptionsCredit.Add(snap.OptionsCredit); err != nil {
			return nil, fmt.Errorf("consolidating account %s: %w", snap.AccountID, err)
		}
		if consolidated.OptionsDebit, err = consolidated.OptionsDebit.Add(snap.OptionsDebit); err != nil {
			return nil, fmt.Errorf("consolidating account %s: %w", snap.AccountID, err)
		}
		if consolidated.EquityValue, err = consolidated.EquityValue.Add(snap.EquityValue); err != nil {
			return nil, fmt.Errorf("consolidating account %s: %w", snap.AccountID, err)
		}
		if consolidated.NetAssetValue, err = consolidated.NetAssetValue.Add(snap.NetAssetValue); err != nil {
			return nil, fmt.Errorf("consolidating account %s: %w", snap.AccountID, err)
		}
		consolidated.OptionLegs = append(consolidated.OptionLegs, snap.OptionLegs...)

		balances, err := loadForexBalances(snap.AccountID, snap.AsOfDate())
		if err != nil {
			return nil, err
		}
		for _, fb := range balances {
			byCurrency[fb.Currency] += fb.Balance
		}
	}
	for currency, balance := range byCurrency {
		consolidated.ForexBalances = append(consolidated.ForexBalances, models.ForexBalance{
			Currency: currency,
			Balance:  utils.RoundFloat(balance, 2),
			AsOf:     consolidated.AsOf,
		})
	}
	sort.Slice(consolidated.ForexBalances, func(i, j int) bool {
		return consolidated.ForexBalances[i].Currency < consolidated.ForexBalances[j].Currency
	})
	return &consolidated, nil
}

func loadRun(runID string) (*models.ProcessingSummary, error) {
	var (
		summary      models.ProcessingSummary
		warningsJSON sql.NullString
		startedAt    string
		durationMS   int64
	)
	err := database.DB.QueryRow(`
		SELECT run_id, account_id, as_of_date, status, error,
			sections_found, sections_unknown, records_parsed, lines_skipped,
			rows_written, warnings, started_at, duration_ms
		FROM processing_runs WHERE run_id = ?`,
		runID).Scan(
		&summary.RunID, &summary.AccountID, &summary.AsOfDate,
		&summary.Status, &summary.Error,
		&summary.SectionsFound, &summary.SectionsUnknown,
		&summary.RecordsParsed, &summary.LinesSkipped,
		&summary.RowsWritten, &warningsJSON, &startedAt, &durationMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	if warningsJSON.Valid && warningsJSON.String != "" {
		if err := json.Unmarshal([]byte(warningsJSON.String), &summary.Warnings); err != nil {
			return nil, fmt.Errorf("stored warnings: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		summary.StartedAt = t
	}
	summary.Duration = time.Duration(durationMS) * time.Millisecond
	return &summary, nil
}
