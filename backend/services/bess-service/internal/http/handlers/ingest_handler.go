package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"bessanalytics/backend/services/bess-service/internal/ingestion"
	"bessanalytics/backend/services/bess-service/internal/models"
)

type ingestResponse struct {
	models.IngestResult
	Error string `json:"error,omitempty"`
}

// Ingest handles POST /api/bess/ingest. On failure the counters of the
// records committed before it are returned alongside the error.
func (h *AssetsHandlers) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(w, r, maxBatchBody)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, ok := body.([]any)
	if !ok {
		writeError(w, http.StatusBadRequest, ingestion.ErrNotArray.Error())
		return
	}

	result, err := h.service.Ingest(r.Context(), records)
	if err != nil {
		status := statusFor(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			h.logger.Error("ingestion failed", zap.Error(err))
			message = "ingestion failed"
		}
		writeJSON(w, status, ingestResponse{IngestResult: result, Error: message})
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{IngestResult: result})
}
