package parsers

import (
	"io"
	"time"

	"github.com/username/optfolio/src/models"
)

// Parser turns one raw statement into typed per-section records. asOf is the
// statement's period end; parsed positions and balances are stamped with it.
// Parsers have no storage side effects.
type Parser interface {
	Parse(file io.Reader, asOf time.Time) (*models.StatementData, error)
}
