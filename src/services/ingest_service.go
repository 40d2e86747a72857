package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/optfolio/src/logger"
	"github.com/username/optfolio/src/models"
	"github.com/username/optfolio/src/parsers"
	"github.com/username/optfolio/src/processors"
)

const (
	// Latest-snapshot reads are hot on dashboards; the cache is invalidated on
	// every write for the account.
	ckLatestSnapshot = "snap_latest_%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute

	// DefaultSource is the statement format assumed when a request does not
	// name one.
	DefaultSource = "ibkr"
)

// IngestOptions are the pipeline toggles lifted from configuration.
type IngestOptions struct {
	PersistTradeDetails bool
	ConsolidateAccounts bool
}

type ingestServiceImpl struct {
	snapshotProcessor processors.SnapshotProcessor
	opts              IngestOptions
	snapshotCache     *cache.Cache
}

// NewIngestService wires the pipeline entrypoint.
func NewIngestService(snapshotProcessor processors.SnapshotProcessor, opts IngestOptions, snapshotCache *cache.Cache) IngestService {
	return &ingestServiceImpl{
		snapshotProcessor: snapshotProcessor,
		opts:              opts,
		snapshotCache:     snapshotCache,
	}
}

// ProcessStatement runs one statement through parse, reconcile and persist.
// Parse and persistence failures abort the run; everything else degrades to
// warnings on the returned summary. The run is recorded either way.
func (s *ingestServiceImpl) ProcessStatement(req ProcessStatementRequest) (*models.ProcessingSummary, error) {
	startTime := time.Now()
	source := req.Source
	if source == "" {
		source = DefaultSource
	}

	summary := &models.ProcessingSummary{
		RunID:     uuid.NewString(),
		AccountID: req.AccountID,
		AsOfDate:  req.AsOf.Format(models.SnapshotDateFormat),
		Status:    models.RunSucceeded,
		StartedAt: startTime,
	}
	logger.L.Info("ProcessStatement START",
		"runID", summary.RunID, "accountID", req.AccountID, "asOf", summary.AsOfDate, "source", source)

	parser, err := parsers.GetParser(source)
	if err != nil {
		return s.failRun(summary, startTime, fmt.Errorf("%w: %v", ErrParsingFailed, err))
	}

	data, err := parser.Parse(req.Statement, req.AsOf)
	if err != nil {
		return s.failRun(summary, startTime, fmt.Errorf("%w: %v", ErrParsingFailed, err))
	}

	doc := models.StatementDocument{
		AccountID:  req.AccountID,
		PeriodEnd:  req.AsOf,
		IngestedAt: startTime,
	}
	snapshots, reconWarnings := s.snapshotProcessor.Process(doc, data)
	for i := range snapshots {
		snapshots[i].RunID = summary.RunID
	}

	summary.SectionsFound = data.SectionsFound
	summary.SectionsUnknown = data.SectionsUnknown
	summary.RecordsParsed = data.RecordsParsed
	summary.LinesSkipped = data.LinesSkipped
	summary.Warnings = append(append([]models.Warning{}, data.Warnings...), reconWarnings...)

	var trades []models.TradeRecord
	if s.opts.PersistTradeDetails {
		trades = data.Trades
	}
	rowsWritten, err := persistRun(req.AccountID, summary.RunID, snapshots, trades)
	if err != nil {
		return s.failRun(summary, startTime, fmt.Errorf("%w: %v", ErrPersistenceFailed, err))
	}
	summary.RowsWritten = rowsWritten
	summary.Duration = time.Since(startTime)

	if err := recordRun(summary); err != nil {
		logger.L.Error("Failed to record processing run", "runID", summary.RunID, "error", err)
	}
	s.invalidateSnapshotCache(req.AccountID)

	logger.L.Info("ProcessStatement END",
		"runID", summary.RunID, "accountID", req.AccountID,
		"rowsWritten", rowsWritten, "warnings", summary.WarningCount(),
		"duration", summary.Duration)
	return summary, nil
}

// failRun finalizes a summary for an aborted run, records it, and hands the
// error back to the caller. Nothing from a failed run reaches the snapshot
// tables.
func (s *ingestServiceImpl) failRun(summary *models.ProcessingSummary, startTime time.Time, err error) (*models.ProcessingSummary, error) {
	summary.Status = models.RunFailed
	summary.Error = err.Error()
	summary.Duration = time.Since(startTime)
	logger.L.Error("ProcessStatement FAILED",
		"runID", summary.RunID, "accountID", summary.AccountID, "error", err)
	if recErr := recordRun(summary); recErr != nil {
		logger.L.Error("Failed to record failed run", "runID", summary.RunID, "error", recErr)
	}
	return summary, err
}

func (s *ingestServiceImpl) invalidateSnapshotCache(accountID string) {
	if s.snapshotCache == nil {
		return
	}
	s.snapshotCache.Delete(fmt.Sprintf(ckLatestSnapshot, accountID))
	s.snapshotCache.Delete(fmt.Sprintf(ckLatestSnapshot, ""))
}

// GetLatestSnapshot returns the most recent snapshot for an account. With
// account consolidation enabled, an empty account ID returns the per-account
// latest snapshots netted into one.
func (s *ingestServiceImpl) GetLatestSnapshot(accountID string) (*models.PortfolioSnapshot, error) {
	cacheKey := fmt.Sprintf(ckLatestSnapshot, accountID)
	if s.snapshotCache != nil {
		if cached, found := s.snapshotCache.Get(cacheKey); found {
			snap := cached.(models.PortfolioSnapshot)
			return &snap, nil
		}
	}

	var (
		snap *models.PortfolioSnapshot
		err  error
	)
	if accountID == "" && s.opts.ConsolidateAccounts {
		snap, err = loadConsolidatedSnapshot()
	} else {
		snap, err = loadLatestSnapshot(accountID)
	}
	if err != nil {
		return nil, err
	}

	if s.snapshotCache != nil {
		s.snapshotCache.Set(cacheKey, *snap, DefaultCacheExpiration)
	}
	return snap, nil
}

// GetSnapshots returns an account's snapshot history in as-of date order.
func (s *ingestServiceImpl) GetSnapshots(accountID string) ([]models.PortfolioSnapshot, error) {
	return loadSnapshots(accountID)
}

// GetRun returns the recorded summary of one processing run.
func (s *ingestServiceImpl) GetRun(runID string) (*models.ProcessingSummary, error) {
	return loadRun(runID)
}
