package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"bessanalytics/backend/services/bess-service/internal/ingestion"
	"bessanalytics/backend/services/bess-service/internal/repository"
)

const (
	maxRecordBody = 1 << 20
	maxBatchBody  = 32 << 20
)

var errBadJSON = errors.New("invalid json")

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeBody reads a JSON document keeping numbers as json.Number.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64) (any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return body, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadJSON), errors.Is(err, ingestion.ErrValidation), errors.Is(err, ingestion.ErrNotArray):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrAssetExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err with its mapped status. Internal failures are logged
// and reported with fallback instead of the raw error.
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(fallback, zap.Error(err))
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, err.Error())
}
