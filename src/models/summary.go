package models

import "time"

// WarningKind distinguishes the recoverable anomaly classes. Fatal conditions
// (structural, persistence) are errors, not warnings.
type WarningKind string

const (
	WarningField          WarningKind = "field"
	WarningReconciliation WarningKind = "reconciliation"
)

// Warning is one recoverable anomaly recorded during a run. Warnings never
// abort processing; they are the visible trace of best-effort decisions.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Section string      `json:"section,omitempty"`
	Line    int         `json:"line,omitempty"`
	Field   string      `json:"field,omitempty"`
	Message string      `json:"message"`
}

// RunStatus is the terminal state of one statement's processing run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// ProcessingSummary is the structured result returned per invocation. It is
// the single source of truth for what happened during a run: a run with only
// warnings is still a success, a structural or persistence failure is not.
type ProcessingSummary struct {
	RunID     string    `json:"run_id"`
	AccountID string    `json:"account_id"`
	AsOfDate  string    `json:"as_of_date"`
	Status    RunStatus `json:"status"`
	Error     string    `json:"error,omitempty"`

	SectionsFound   int `json:"sections_found"`
	SectionsUnknown int `json:"sections_unknown"`
	RecordsParsed   int `json:"records_parsed"`
	LinesSkipped    int `json:"lines_skipped"`
	RowsWritten     int `json:"rows_written"`

	Warnings []Warning `json:"warnings"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// WarningCount is a convenience for persistence and logging.
func (s *ProcessingSummary) WarningCount() int {
	return len(s.Warnings)
}
