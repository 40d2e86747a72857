package services

import (
	"errors"
	"io"
	"time"

	"github.com/username/optfolio/src/models"
)

var (
	// ErrParsingFailed wraps structural parse failures: unreadable input or a
	// statement with no recognizable sections.
	ErrParsingFailed = errors.New("statement parsing failed")
	// ErrPersistenceFailed wraps database failures during the write phase.
	ErrPersistenceFailed = errors.New("snapshot persistence failed")
	// ErrNotFound is returned by lookups with no matching row.
	ErrNotFound = errors.New("not found")
)

// ProcessStatementRequest carries one statement into the pipeline. AsOf is the
// statement's period-end date; the caller resolves it from the e-mail subject
// or the upload form before invoking the service.
type ProcessStatementRequest struct {
	AccountID string
	Source    string
	AsOf      time.Time
	Statement io.Reader
}

// IngestService is the pipeline entrypoint: parse, reconcile, persist, and
// report. It also serves reads over the historical store.
type IngestService interface {
	ProcessStatement(req ProcessStatementRequest) (*models.ProcessingSummary, error)
	GetSnapshots(accountID string) ([]models.PortfolioSnapshot, error)
	GetLatestSnapshot(accountID string) (*models.PortfolioSnapshot, error)
	GetRun(runID string) (*models.ProcessingSummary, error)
}
