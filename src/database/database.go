package database

import (
	"database/sql"
	"fmt"
	stdlog "log"

	"github.com/username/optfolio/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

// InitDB opens the SQLite database and ensures the schema exists. WAL mode
// keeps readers unblocked during ingestion writes; a busy timeout stops
// overlapping runs from failing fast on the write lock.
func InitDB(databasePath string) {
	connStr := databasePath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Ensuring database schema", "databasePath", databasePath)
	} else {
		stdlog.Println("Ensuring database schema for:", databasePath)
	}

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS portfolio_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		as_of_date TEXT NOT NULL,
		options_credit REAL NOT NULL DEFAULT 0,
		options_debit REAL NOT NULL DEFAULT 0,
		equity_value REAL NOT NULL DEFAULT 0,
		net_asset_value REAL NOT NULL DEFAULT 0,
		base_currency TEXT NOT NULL,
		option_legs TEXT,
		run_id TEXT NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		UNIQUE(account_id, as_of_date)
	);

	CREATE TABLE IF NOT EXISTS forex_balances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		as_of_date TEXT NOT NULL,
		currency TEXT NOT NULL,
		balance REAL NOT NULL,
		source TEXT,
		run_id TEXT NOT NULL,
		UNIQUE(account_id, as_of_date, currency)
	);

	CREATE TABLE IF NOT EXISTS trade_details (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		trade_date TEXT NOT NULL,
		instrument TEXT NOT NULL,
		seq INTEGER NOT NULL,
		asset_class TEXT NOT NULL,
		action TEXT NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		proceeds REAL NOT NULL,
		commission REAL NOT NULL,
		currency TEXT,
		run_id TEXT NOT NULL,
		UNIQUE(account_id, trade_date, instrument, seq)
	);

	CREATE TABLE IF NOT EXISTS processing_runs (
		run_id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		as_of_date TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		sections_found INTEGER NOT NULL DEFAULT 0,
		sections_unknown INTEGER NOT NULL DEFAULT 0,
		records_parsed INTEGER NOT NULL DEFAULT 0,
		lines_skipped INTEGER NOT NULL DEFAULT 0,
		rows_written INTEGER NOT NULL DEFAULT 0,
		warning_count INTEGER NOT NULL DEFAULT 0,
		warnings TEXT,
		started_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_account_date
		ON portfolio_snapshots(account_id, as_of_date);
	CREATE INDEX IF NOT EXISTS idx_runs_account
		ON processing_runs(account_id, started_at);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// WithTransaction executes fn within a transaction, committing on success and
// rolling back on error or panic.
func WithTransaction(db *sql.DB, fn func(*sql.Tx) error) (err error) {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			rollbackErr := tx.Rollback()
			if rollbackErr != nil {
				err = fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rollbackErr)
			} else {
				err = fmt.Errorf("transaction failed: %w", err)
			}
		} else {
			if commitErr := tx.Commit(); commitErr != nil {
				err = fmt.Errorf("failed to commit transaction: %w", commitErr)
			}
		}
	}()

	return fn(tx)
}
