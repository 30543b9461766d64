package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"bessanalytics/backend/services/bess-service/internal/models"
	"bessanalytics/backend/services/bess-service/internal/repository"
)

// FleetService is the service surface used by the HTTP handlers.
type FleetService interface {
	ListAssets(ctx context.Context) ([]models.Asset, error)
	Dashboard(ctx context.Context) (models.Dashboard, error)
	Summaries(ctx context.Context, assetIDs []string) ([]models.AssetSummary, error)
	CreateAsset(ctx context.Context, raw any) (models.Asset, error)
	AppendMetric(ctx context.Context, assetID string, raw any) (models.Asset, error)
	Ingest(ctx context.Context, records []any) (models.IngestResult, error)
}

// AssetsHandlers serves the fleet endpoints.
type AssetsHandlers struct {
	service FleetService
	logger  *zap.Logger
}

// NewAssetsHandlers returns handler.
func NewAssetsHandlers(service FleetService, logger *zap.Logger) *AssetsHandlers {
	return &AssetsHandlers{service: service, logger: logger}
}

// List handles GET /api/bess/assets.
func (h *AssetsHandlers) List(w http.ResponseWriter, r *http.Request) {
	assets, err := h.service.ListAssets(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to load assets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": assets})
}

// Create handles POST /api/bess/assets.
func (h *AssetsHandlers) Create(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody(w, r, maxRecordBody)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := h.service.CreateAsset(r.Context(), body)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to create asset")
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// AppendMetric handles POST /api/bess/assets/{assetId}/metrics.
func (h *AssetsHandlers) AppendMetric(w http.ResponseWriter, r *http.Request) {
	assetID := strings.TrimSpace(r.PathValue("assetId"))
	if assetID == "" {
		writeError(w, http.StatusBadRequest, "assetId is required")
		return
	}
	body, err := decodeBody(w, r, maxRecordBody)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	asset, err := h.service.AppendMetric(r.Context(), assetID, body)
	if errors.Is(err, repository.ErrAssetNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("asset %s not found", assetID))
		return
	}
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to append metric")
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// Dashboard handles GET /api/bess/dashboard.
func (h *AssetsHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.Dashboard(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to build dashboard metrics")
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// Summary handles GET /api/bess/telemetry/summary. assetId may repeat or hold a comma separated list.
func (h *AssetsHandlers) Summary(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, value := range r.URL.Query()["assetId"] {
		for _, id := range strings.Split(value, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	summaries, err := h.service.Summaries(r.Context(), ids)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to summarize telemetry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": summaries})
}
