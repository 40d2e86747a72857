package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/username/optfolio/src/logger"
	"github.com/username/optfolio/src/services"
	"github.com/username/optfolio/src/utils"
)

type SnapshotHandler struct {
	ingestService services.IngestService
}

func NewSnapshotHandler(service services.IngestService) *SnapshotHandler {
	return &SnapshotHandler{
		ingestService: service,
	}
}

// HandleGetSnapshots returns an account's snapshot history in date order.
func (h *SnapshotHandler) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		utils.SendJSONError(w, "account_id query parameter is required", http.StatusBadRequest)
		return
	}

	snapshots, err := h.ingestService.GetSnapshots(accountID)
	if err != nil {
		logger.L.Error("Error retrieving snapshots", "accountID", accountID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving snapshots for account %s", accountID), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, snapshots, http.StatusOK)
}

// HandleGetLatestSnapshot returns the most recent snapshot, with ETag support
// so dashboards polling it can skip unchanged payloads.
func (h *SnapshotHandler) HandleGetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")

	snapshot, err := h.ingestService.GetLatestSnapshot(accountID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.L.Error("Error retrieving latest snapshot", "accountID", accountID, "error", err)
		utils.SendJSONError(w, "Error retrieving latest snapshot", http.StatusInternalServerError)
		return
	}

	etag, err := utils.GenerateETag(snapshot)
	if err == nil {
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	utils.SendJSON(w, snapshot, http.StatusOK)
}

// HandleGetRun returns the recorded summary of one processing run.
func (h *SnapshotHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		utils.SendJSONError(w, "run ID is required", http.StatusBadRequest)
		return
	}

	summary, err := h.ingestService.GetRun(runID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.L.Error("Error retrieving run", "runID", runID, "error", err)
		utils.SendJSONError(w, "Error retrieving run", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}

// HandleHealth reports liveness.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
