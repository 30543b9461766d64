package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"bessanalytics/backend/services/bess-service/internal/analytics"
	"bessanalytics/backend/services/bess-service/internal/ingestion"
	"bessanalytics/backend/services/bess-service/internal/models"
	"bessanalytics/backend/services/bess-service/internal/repository"
)

// DashboardCache stores the computed dashboard between mutations.
type DashboardCache interface {
	Get(ctx context.Context) (*models.Dashboard, bool, error)
	Set(ctx context.Context, dashboard models.Dashboard) error
	Invalidate(ctx context.Context) error
}

// Feed pushes dashboard updates to live subscribers.
type Feed interface {
	Broadcast(msg []byte) int
	Count() int
}

// Option configures BessService.
type Option func(*BessService)

// WithCache enables dashboard caching.
func WithCache(cache DashboardCache) Option {
	return func(s *BessService) {
		s.cache = cache
	}
}

// WithFeed enables pushing dashboard metrics after every change.
func WithFeed(feed Feed) Option {
	return func(s *BessService) {
		s.feed = feed
	}
}

// BessService exposes fleet queries and ingestion to transports.
type BessService struct {
	repo     repository.Repository
	pipeline *ingestion.Pipeline
	cache    DashboardCache
	feed     Feed
	logger   *zap.Logger
}

// NewBessService returns service instance.
func NewBessService(repo repository.Repository, pipeline *ingestion.Pipeline, logger *zap.Logger, opts ...Option) *BessService {
	s := &BessService{
		repo:     repo,
		pipeline: pipeline,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListAssets returns every asset ordered by id.
func (s *BessService) ListAssets(ctx context.Context) ([]models.Asset, error) {
	return s.repo.ListAssets(ctx, repository.Filter{})
}

// Dashboard returns all assets with fleet metrics, served from cache when possible.
func (s *BessService) Dashboard(ctx context.Context) (models.Dashboard, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		case ok:
			return *cached, nil
		}
	}

	assets, err := s.ListAssets(ctx)
	if err != nil {
		return models.Dashboard{}, err
	}
	dashboard := models.Dashboard{
		Assets:  assets,
		Metrics: analytics.Aggregate(assets),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboard); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return dashboard, nil
}

// FeedSnapshot returns the encoded dashboard metrics pushed to feed subscribers.
func (s *BessService) FeedSnapshot(ctx context.Context) ([]byte, error) {
	dashboard, err := s.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dashboard.Metrics)
}

// Summaries returns telemetry digests, optionally restricted to assetIDs.
func (s *BessService) Summaries(ctx context.Context, assetIDs []string) ([]models.AssetSummary, error) {
	assets, err := s.repo.ListAssets(ctx, repository.Filter{AssetIDs: assetIDs})
	if err != nil {
		return nil, err
	}
	return analytics.Summarize(assets, assetIDs), nil
}

// CreateAsset validates raw and stores it as a new asset.
func (s *BessService) CreateAsset(ctx context.Context, raw any) (models.Asset, error) {
	asset, err := s.pipeline.CreateAsset(ctx, raw)
	if err != nil {
		return models.Asset{}, err
	}
	s.changed(ctx)
	return asset, nil
}

// AppendMetric adds one telemetry sample to an existing asset.
func (s *BessService) AppendMetric(ctx context.Context, assetID string, raw any) (models.Asset, error) {
	asset, _, err := s.pipeline.AppendMetric(ctx, assetID, raw)
	if err != nil {
		return models.Asset{}, err
	}
	s.changed(ctx)
	return asset, nil
}

// Ingest merges a batch of raw records. Partial results are returned with the error.
func (s *BessService) Ingest(ctx context.Context, records []any) (models.IngestResult, error) {
	result, err := s.pipeline.Ingest(ctx, records)
	if result.AssetsProcessed > 0 {
		s.changed(ctx)
	}
	return result, err
}

// IngestFile merges a telemetry file, all or nothing at the validation stage.
func (s *BessService) IngestFile(ctx context.Context, path string) (models.IngestResult, error) {
	result, err := s.pipeline.IngestFile(ctx, path)
	if result.AssetsProcessed > 0 {
		s.changed(ctx)
	}
	return result, err
}

// Seed ingests path when the store holds no assets yet. It reports whether seeding ran.
func (s *BessService) Seed(ctx context.Context, path string) (models.IngestResult, bool, error) {
	if path == "" {
		return models.IngestResult{}, false, nil
	}
	count, err := s.repo.CountAssets(ctx)
	if err != nil {
		return models.IngestResult{}, false, err
	}
	if count > 0 {
		s.logger.Info("store already populated, skipping seed", zap.Int("assets", count))
		return models.IngestResult{}, false, nil
	}

	result, err := s.IngestFile(ctx, path)
	if err != nil {
		return result, true, err
	}
	s.logger.Info("seeded asset store",
		zap.String("path", path),
		zap.Int("assets", result.AssetsProcessed),
		zap.Int("metrics", result.MetricsInserted),
	)
	return result, true, nil
}

func (s *BessService) changed(ctx context.Context) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
		}
	}
	if s.feed == nil || s.feed.Count() == 0 {
		return
	}

	msg, err := s.FeedSnapshot(ctx)
	if err != nil {
		s.logger.Warn("dashboard feed snapshot failed", zap.Error(err))
		return
	}
	delivered := s.feed.Broadcast(msg)
	s.logger.Debug("dashboard update pushed", zap.Int("subscribers", delivered))
}
