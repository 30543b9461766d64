package repository

import (
	"context"
	"errors"
	"fmt"

	"bessanalytics/backend/services/bess-service/internal/models"
)

var (
	// ErrAssetNotFound is returned when an operation requires an existing asset.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrAssetExists is returned when creating an asset whose id is already stored.
	ErrAssetExists = errors.New("asset already exists")
)

// StoreError wraps a storage-layer failure with the operation that produced it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("repository: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// MergeFunc computes the asset to persist from the currently stored one (nil when absent).
// Returning an error aborts the write and is passed back to the caller unchanged.
// The stored metric sequence must be a prefix of the returned one.
type MergeFunc func(existing *models.Asset) (models.Asset, error)

// Filter narrows ListAssets. An empty AssetIDs slice selects every asset.
type Filter struct {
	AssetIDs []string
}

// Repository is the asset store consumed by ingestion and analytics.
type Repository interface {
	FindAssetByID(ctx context.Context, assetID string) (*models.Asset, error)
	UpsertAsset(ctx context.Context, asset models.Asset) error
	ListAssets(ctx context.Context, filter Filter) ([]models.Asset, error)
	CountAssets(ctx context.Context) (int, error)
	// UpsertWithMerge runs read, merge and write for one asset as a single atomic step.
	UpsertWithMerge(ctx context.Context, assetID string, fn MergeFunc) (models.Asset, error)
}

func idSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// validateMerged checks the append-only contract of a MergeFunc result.
func validateMerged(assetID string, existing *models.Asset, merged models.Asset) error {
	if merged.AssetID != assetID {
		return fmt.Errorf("merge changed asset id from %q to %q", assetID, merged.AssetID)
	}
	if existing == nil {
		return nil
	}
	if len(merged.Metrics) < len(existing.Metrics) {
		return fmt.Errorf("merge removed metrics of asset %s", assetID)
	}
	for i := range existing.Metrics {
		if merged.Metrics[i].Key() != existing.Metrics[i].Key() {
			return fmt.Errorf("merge reordered metrics of asset %s", assetID)
		}
	}
	return nil
}
