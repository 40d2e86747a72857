package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/username/optfolio/src/config"
	"github.com/username/optfolio/src/logger"
	"github.com/username/optfolio/src/models"
	"github.com/username/optfolio/src/security/validation"
	"github.com/username/optfolio/src/services"
	"github.com/username/optfolio/src/utils"
)

type StatementHandler struct {
	ingestService services.IngestService
}

func NewStatementHandler(service services.IngestService) *StatementHandler {
	return &StatementHandler{
		ingestService: service,
	}
}

// processStatementPayload is the JSON body of POST /api/process-statement.
// The statement date comes from AsOfDate when given, otherwise from the tail
// of the e-mail subject line.
type processStatementPayload struct {
	AccountID  string `json:"account_id"`
	CSVContent string `json:"csv_content"`
	Subject    string `json:"subject,omitempty"`
	AsOfDate   string `json:"as_of_date,omitempty"`
	Source     string `json:"source,omitempty"`
}

// HandleProcessStatement ingests a statement delivered inline as JSON, the
// path used by the mail-forwarding integration.
func (h *StatementHandler) HandleProcessStatement(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxUploadSizeBytes)

	var payload processStatementPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.L.Warn("Failed to decode process-statement payload", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Invalid JSON body: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.CSVContent) == "" {
		utils.SendJSONError(w, "csv_content is required", http.StatusBadRequest)
		return
	}
	if payload.AccountID == "" {
		utils.SendJSONError(w, "account_id is required", http.StatusBadRequest)
		return
	}

	asOf, err := resolveAsOfDate(payload.AsOfDate, payload.Subject)
	if err != nil {
		logger.L.Warn("Failed to resolve statement date", "accountID", payload.AccountID, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.process(w, services.ProcessStatementRequest{
		AccountID: payload.AccountID,
		Source:    payload.Source,
		AsOf:      asOf,
		Statement: strings.NewReader(payload.CSVContent),
	})
}

// HandleUploadStatement ingests a statement uploaded as a multipart file.
func (h *StatementHandler) HandleUploadStatement(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := validation.ValidateFileContentByMagicBytes(file); err != nil {
		logger.L.Warn("Statement content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	accountID := r.FormValue("account_id")
	if accountID == "" {
		utils.SendJSONError(w, "account_id is required", http.StatusBadRequest)
		return
	}
	asOf, err := resolveAsOfDate(r.FormValue("as_of_date"), r.FormValue("subject"))
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger.L.Info("Processing statement upload", "accountID", accountID, "filename", fileHeader.Filename)
	h.process(w, services.ProcessStatementRequest{
		AccountID: accountID,
		Source:    r.FormValue("source"),
		AsOf:      asOf,
		Statement: file,
	})
}

func (h *StatementHandler) process(w http.ResponseWriter, req services.ProcessStatementRequest) {
	summary, err := h.ingestService.ProcessStatement(req)
	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			logger.L.Warn("Statement rejected", "accountID", req.AccountID, "error", err)
			status := http.StatusBadRequest
			if summary != nil {
				utils.SendJSON(w, summary, status)
				return
			}
			utils.SendJSONError(w, err.Error(), status)
			return
		}
		logger.L.Error("Internal error processing statement", "accountID", req.AccountID, "error", err)
		utils.SendJSONError(w, "An internal error occurred while processing the statement. Please try again later.", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}

// resolveAsOfDate picks the statement date: an explicit as-of date wins,
// otherwise the e-mail subject must end with one.
func resolveAsOfDate(asOfDate, subject string) (time.Time, error) {
	if asOfDate != "" {
		t, err := time.Parse(models.SnapshotDateFormat, asOfDate)
		if err != nil {
			return time.Time{}, fmt.Errorf("as_of_date must be %s: %q", models.SnapshotDateFormat, asOfDate)
		}
		return t, nil
	}
	if subject != "" {
		return utils.ParseSubjectDate(subject)
	}
	return time.Time{}, fmt.Errorf("either as_of_date or subject is required")
}
