package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/optfolio/src/config"
	"github.com/username/optfolio/src/logger"
	"github.com/username/optfolio/src/models"
	"github.com/username/optfolio/src/services"
)

// stubIngestService records the last request and returns canned responses.
type stubIngestService struct {
	lastRequest services.ProcessStatementRequest
	summary     *models.ProcessingSummary
	err         error
}

func (s *stubIngestService) ProcessStatement(req services.ProcessStatementRequest) (*models.ProcessingSummary, error) {
	s.lastRequest = req
	return s.summary, s.err
}

func (s *stubIngestService) GetSnapshots(accountID string) ([]models.PortfolioSnapshot, error) {
	return nil, nil
}

func (s *stubIngestService) GetLatestSnapshot(accountID string) (*models.PortfolioSnapshot, error) {
	return nil, services.ErrNotFound
}

func (s *stubIngestService) GetRun(runID string) (*models.ProcessingSummary, error) {
	return nil, services.ErrNotFound
}

func setupHandlerTest(t *testing.T) *stubIngestService {
	t.Helper()
	logger.InitLogger("error")
	if config.Cfg == nil {
		config.Cfg = &config.AppConfig{MaxUploadSizeBytes: 10 * 1024 * 1024}
	}
	return &stubIngestService{
		summary: &models.ProcessingSummary{RunID: "run-1", Status: models.RunSucceeded},
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/process-statement", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleProcessStatement_SubjectDate(t *testing.T) {
	stub := setupHandlerTest(t)
	h := NewStatementHandler(stub)

	rec := postJSON(t, h.HandleProcessStatement, `{
		"account_id": "U1234567",
		"csv_content": "Trades,Header,Symbol",
		"subject": "Activity Statement for 02/28/2025"
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "U1234567", stub.lastRequest.AccountID)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), stub.lastRequest.AsOf)

	var summary models.ProcessingSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "run-1", summary.RunID)
}

func TestHandleProcessStatement_ExplicitDateWins(t *testing.T) {
	stub := setupHandlerTest(t)
	h := NewStatementHandler(stub)

	rec := postJSON(t, h.HandleProcessStatement, `{
		"account_id": "U1234567",
		"csv_content": "Trades,Header,Symbol",
		"subject": "Activity Statement for 02/28/2025",
		"as_of_date": "2025-03-01"
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), stub.lastRequest.AsOf)
}

func TestHandleProcessStatement_MissingFields(t *testing.T) {
	stub := setupHandlerTest(t)
	h := NewStatementHandler(stub)

	tests := []struct {
		name string
		body string
	}{
		{"no csv_content", `{"account_id": "U1", "subject": "x 02/28/2025"}`},
		{"no account_id", `{"csv_content": "Trades", "subject": "x 02/28/2025"}`},
		{"no date source", `{"account_id": "U1", "csv_content": "Trades"}`},
		{"bad subject tail", `{"account_id": "U1", "csv_content": "Trades", "subject": "no date here"}`},
		{"not json", `csv_content=Trades`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.HandleProcessStatement, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleProcessStatement_ParseFailurePropagates(t *testing.T) {
	stub := setupHandlerTest(t)
	stub.summary = &models.ProcessingSummary{RunID: "run-2", Status: models.RunFailed, Error: "no known sections"}
	stub.err = services.ErrParsingFailed
	h := NewStatementHandler(stub)

	rec := postJSON(t, h.HandleProcessStatement, `{
		"account_id": "U1234567",
		"csv_content": "Garbage",
		"as_of_date": "2025-03-01"
	}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var summary models.ProcessingSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, models.RunFailed, summary.Status)
}
