package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bessanalytics/backend/services/bess-service/internal/models"
	"bessanalytics/backend/services/bess-service/internal/repository"
)

// AssetStore is the part of the repository the pipeline writes through.
type AssetStore interface {
	UpsertWithMerge(ctx context.Context, assetID string, fn repository.MergeFunc) (models.Asset, error)
}

// Observer receives the outcome of every ingestion run.
type Observer interface {
	ObserveRun(result models.IngestResult, duration time.Duration, err error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMerger replaces the default overwrite merger.
func WithMerger(m *Merger) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.merger = m
		}
	}
}

// WithClock sets the source of lastUpdated instants.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithObserver attaches a run observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// Pipeline normalizes raw records and merges them into the store one at a time.
type Pipeline struct {
	store    AssetStore
	merger   *Merger
	logger   *zap.Logger
	now      func() time.Time
	observer Observer
}

// NewPipeline returns a pipeline writing to store.
func NewPipeline(store AssetStore, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		store:  store,
		merger: NewMerger(nil),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Merger returns the merger in use.
func (p *Pipeline) Merger() *Merger {
	return p.merger
}

// Ingest processes records in order. The first invalid record stops the run;
// records before it stay committed and the partial counters are returned with the error.
func (p *Pipeline) Ingest(ctx context.Context, records []any) (models.IngestResult, error) {
	return p.run(ctx, len(records), func(i int) (models.Asset, error) {
		return NormalizeAsset(records[i])
	})
}

// IngestAssets merges already normalized assets.
func (p *Pipeline) IngestAssets(ctx context.Context, assets []models.Asset) (models.IngestResult, error) {
	return p.run(ctx, len(assets), func(i int) (models.Asset, error) {
		return assets[i], nil
	})
}

// IngestReader decodes a JSON array and ingests it only if every record is valid.
func (p *Pipeline) IngestReader(ctx context.Context, r io.Reader) (models.IngestResult, error) {
	records, err := DecodeRecords(r)
	if err != nil {
		return models.IngestResult{}, err
	}
	assets, err := NormalizeAll(records)
	if err != nil {
		return models.IngestResult{}, err
	}
	return p.IngestAssets(ctx, assets)
}

// IngestFile loads path and ingests it. A malformed record anywhere in the file
// fails the whole file before anything is written.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (models.IngestResult, error) {
	records, err := LoadFile(path)
	if err != nil {
		return models.IngestResult{}, err
	}
	assets, err := NormalizeAll(records)
	if err != nil {
		return models.IngestResult{}, fmt.Errorf("%s: %w", path, err)
	}
	p.logger.Info("telemetry file loaded",
		zap.String("path", path),
		zap.Int("assets", len(assets)),
	)
	return p.IngestAssets(ctx, assets)
}

// CreateAsset stores a new asset from a raw record. It fails with
// repository.ErrAssetExists when the id is already present.
func (p *Pipeline) CreateAsset(ctx context.Context, raw any) (models.Asset, error) {
	start := time.Now()
	asset, err := NormalizeAsset(raw)
	if err != nil {
		p.observe(models.IngestResult{}, start, err)
		return models.Asset{}, err
	}
	p.warnUnknownStatus(p.logger, asset)

	var outcome MergeResult
	stored, err := p.store.UpsertWithMerge(ctx, asset.AssetID, func(existing *models.Asset) (models.Asset, error) {
		if existing != nil {
			return models.Asset{}, repository.ErrAssetExists
		}
		outcome = p.merger.Merge(nil, asset, p.now())
		return outcome.Asset, nil
	})
	if err != nil {
		p.observe(models.IngestResult{}, start, err)
		return models.Asset{}, err
	}

	p.observe(models.IngestResult{AssetsProcessed: 1, NewAssets: 1, MetricsInserted: outcome.MetricsInserted}, start, nil)
	p.logger.Info("asset created",
		zap.String("asset_id", stored.AssetID),
		zap.Int("metrics", len(stored.Metrics)),
	)
	return stored, nil
}

// AppendMetric adds one sample to an existing asset. A sample whose timestamp is
// already stored is ignored. The second return value reports whether it was appended.
func (p *Pipeline) AppendMetric(ctx context.Context, assetID string, raw any) (models.Asset, bool, error) {
	start := time.Now()
	metric, err := NormalizeMetric(raw, assetID)
	if err != nil {
		p.observe(models.IngestResult{}, start, err)
		return models.Asset{}, false, err
	}

	var outcome MergeResult
	stored, err := p.store.UpsertWithMerge(ctx, assetID, func(existing *models.Asset) (models.Asset, error) {
		if existing == nil {
			return models.Asset{}, repository.ErrAssetNotFound
		}
		incoming := *existing
		incoming.Metrics = []models.Metric{metric}
		outcome = p.merger.Merge(existing, incoming, p.now())
		return outcome.Asset, nil
	})
	if err != nil {
		p.observe(models.IngestResult{}, start, err)
		return models.Asset{}, false, err
	}

	p.observe(models.IngestResult{AssetsProcessed: 1, MetricsInserted: outcome.MetricsInserted}, start, nil)
	p.logger.Debug("metric appended",
		zap.String("asset_id", assetID),
		zap.Time("timestamp", metric.Timestamp),
		zap.Bool("duplicate", outcome.MetricsInserted == 0),
	)
	return stored, outcome.MetricsInserted > 0, nil
}

func (p *Pipeline) run(ctx context.Context, n int, next func(i int) (models.Asset, error)) (models.IngestResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))

	var result models.IngestResult
	err := func() error {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("ingestion: record %d: %w", i, err)
			}
			asset, err := next(i)
			if err != nil {
				return fmt.Errorf("ingestion: record %d: %w", i, err)
			}
			outcome, err := p.mergeOne(ctx, asset)
			if err != nil {
				return fmt.Errorf("ingestion: record %d (asset %s): %w", i, asset.AssetID, err)
			}

			result.AssetsProcessed++
			if outcome.Created {
				result.NewAssets++
			}
			result.MetricsInserted += outcome.MetricsInserted

			p.warnUnknownStatus(logger, asset)
			logger.Debug("asset merged",
				zap.String("asset_id", asset.AssetID),
				zap.Bool("created", outcome.Created),
				zap.Int("metrics_inserted", outcome.MetricsInserted),
			)
		}
		return nil
	}()

	p.observe(result, start, err)

	fields := []zap.Field{
		zap.Int("records", n),
		zap.Int("assets_processed", result.AssetsProcessed),
		zap.Int("new_assets", result.NewAssets),
		zap.Int("metrics_inserted", result.MetricsInserted),
		zap.Duration("duration", time.Since(start)),
	}
	switch {
	case err == nil:
		logger.Info("ingestion run finished", fields...)
	case errors.Is(err, ErrValidation):
		logger.Warn("ingestion run rejected record", append(fields, zap.Error(err))...)
	default:
		logger.Error("ingestion run failed", append(fields, zap.Error(err))...)
	}
	return result, err
}

// mergeOne runs the merge inside the store's atomic section. The callback may be
// retried by the store, so the outcome of its last invocation is reported.
func (p *Pipeline) mergeOne(ctx context.Context, asset models.Asset) (MergeResult, error) {
	var outcome MergeResult
	_, err := p.store.UpsertWithMerge(ctx, asset.AssetID, func(existing *models.Asset) (models.Asset, error) {
		outcome = p.merger.Merge(existing, asset, p.now())
		return outcome.Asset, nil
	})
	if err != nil {
		return MergeResult{}, err
	}
	return outcome, nil
}

func (p *Pipeline) warnUnknownStatus(logger *zap.Logger, asset models.Asset) {
	if !models.KnownStatus(asset.Status) {
		logger.Warn("asset reports unknown status",
			zap.String("asset_id", asset.AssetID),
			zap.String("status", asset.Status),
		)
	}
}

func (p *Pipeline) observe(result models.IngestResult, start time.Time, err error) {
	if p.observer != nil {
		p.observer.ObserveRun(result, time.Since(start), err)
	}
}
