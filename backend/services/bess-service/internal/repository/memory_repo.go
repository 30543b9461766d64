package repository

import (
	"context"
	"sort"
	"sync"

	"bessanalytics/backend/services/bess-service/internal/models"
)

// MemoryRepository keeps assets in process memory. It backs tests and the
// memory database driver.
type MemoryRepository struct {
	mu     sync.RWMutex
	assets map[string]models.Asset
}

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{assets: make(map[string]models.Asset)}
}

// FindAssetByID returns a copy of the stored asset or ErrAssetNotFound.
func (r *MemoryRepository) FindAssetByID(ctx context.Context, assetID string) (*models.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("find asset", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	asset, ok := r.assets[assetID]
	if !ok {
		return nil, ErrAssetNotFound
	}
	clone := asset.Clone()
	return &clone, nil
}

// UpsertAsset replaces the stored asset wholesale.
func (r *MemoryRepository) UpsertAsset(ctx context.Context, asset models.Asset) error {
	if err := ctx.Err(); err != nil {
		return storeErr("upsert asset", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[asset.AssetID] = asset.Clone()
	return nil
}

// ListAssets returns copies sorted by asset id.
func (r *MemoryRepository) ListAssets(ctx context.Context, filter Filter) ([]models.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("list assets", err)
	}
	wanted := idSet(filter.AssetIDs)

	r.mu.RLock()
	assets := make([]models.Asset, 0, len(r.assets))
	for id, asset := range r.assets {
		if wanted != nil {
			if _, ok := wanted[id]; !ok {
				continue
			}
		}
		assets = append(assets, asset.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(assets, func(i, j int) bool { return assets[i].AssetID < assets[j].AssetID })
	return assets, nil
}

// CountAssets returns the number of stored assets.
func (r *MemoryRepository) CountAssets(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr("count assets", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets), nil
}

// UpsertWithMerge holds the write lock across read, merge and write.
func (r *MemoryRepository) UpsertWithMerge(ctx context.Context, assetID string, fn MergeFunc) (models.Asset, error) {
	if err := ctx.Err(); err != nil {
		return models.Asset{}, storeErr("upsert with merge", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing *models.Asset
	if stored, ok := r.assets[assetID]; ok {
		clone := stored.Clone()
		existing = &clone
	}

	merged, err := fn(existing)
	if err != nil {
		return models.Asset{}, err
	}
	if existing != nil {
		stored := r.assets[assetID]
		existing = &stored
	}
	if err := validateMerged(assetID, existing, merged); err != nil {
		return models.Asset{}, storeErr("upsert with merge", err)
	}

	r.assets[assetID] = merged.Clone()
	return merged.Clone(), nil
}
