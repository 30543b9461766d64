package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"bessanalytics/backend/services/bess-service/internal/models"
)

const (
	metricInsertChunk = 1000
	maxMergeAttempts  = 3
)

const (
	assetColumns = `asset_id, site, region, capacity_mwh, power_rating_mw, round_trip_efficiency, availability, status, last_updated`

	selectAssetQuery = `
		SELECT ` + assetColumns + `
		FROM bess_assets
		WHERE asset_id = $1
	`
	selectAssetForUpdateQuery = selectAssetQuery + `FOR UPDATE
	`
	selectAssetMetricsQuery = `
		SELECT recorded_at, state_of_charge, temperature_c
		FROM bess_metrics
		WHERE asset_id = $1
		ORDER BY position
	`
	countAssetsQuery = `SELECT COUNT(*) FROM bess_assets`

	upsertAssetQuery = `
		INSERT INTO bess_assets (` + assetColumns + `, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (asset_id) DO UPDATE SET
			site = EXCLUDED.site,
			region = EXCLUDED.region,
			capacity_mwh = EXCLUDED.capacity_mwh,
			power_rating_mw = EXCLUDED.power_rating_mw,
			round_trip_efficiency = EXCLUDED.round_trip_efficiency,
			availability = EXCLUDED.availability,
			status = EXCLUDED.status,
			last_updated = EXCLUDED.last_updated,
			updated_at = NOW()
	`
	insertAssetIfAbsentQuery = `
		INSERT INTO bess_assets (` + assetColumns + `, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (asset_id) DO NOTHING
	`
	updateAssetQuery = `
		UPDATE bess_assets
		SET site = $2,
		    region = $3,
		    capacity_mwh = $4,
		    power_rating_mw = $5,
		    round_trip_efficiency = $6,
		    availability = $7,
		    status = $8,
		    last_updated = $9,
		    updated_at = NOW()
		WHERE asset_id = $1
	`
	deleteAssetMetricsQuery = `DELETE FROM bess_metrics WHERE asset_id = $1`
)

//go:embed schema.sql
var schemaSQL string

// errCreateRace signals that another writer inserted the asset between our read and write.
var errCreateRace = errors.New("concurrent asset creation")

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AssetRepository persists assets in Postgres (bess_assets + bess_metrics, see schema.sql).
type AssetRepository struct {
	db *sql.DB
}

// NewAssetRepository returns repository.
func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Migrate creates the tables when they do not exist yet.
func (r *AssetRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaSQL); err != nil {
		return storeErr("migrate", err)
	}
	return nil
}

// FindAssetByID loads an asset with its metrics in insertion order.
func (r *AssetRepository) FindAssetByID(ctx context.Context, assetID string) (*models.Asset, error) {
	asset, err := loadAsset(ctx, r.db, assetID, false)
	if err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			return nil, err
		}
		return nil, storeErr("find asset", err)
	}
	return asset, nil
}

// UpsertAsset writes the asset row and replaces its metric sequence.
func (r *AssetRepository) UpsertAsset(ctx context.Context, asset models.Asset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("upsert asset", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertAssetQuery, assetArgs(asset)...); err != nil {
		return storeErr("upsert asset", err)
	}
	if _, err := tx.ExecContext(ctx, deleteAssetMetricsQuery, asset.AssetID); err != nil {
		return storeErr("upsert asset", err)
	}
	if err := insertMetrics(ctx, tx, asset.AssetID, 0, asset.Metrics); err != nil {
		return storeErr("upsert asset", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("upsert asset", err)
	}
	return nil
}

// ListAssets returns assets ordered by asset id, each with its metrics.
func (r *AssetRepository) ListAssets(ctx context.Context, filter Filter) ([]models.Asset, error) {
	assetsQuery, args := listAssetsQuery(filter.AssetIDs)
	rows, err := r.db.QueryContext(ctx, assetsQuery, args...)
	if err != nil {
		return nil, storeErr("list assets", err)
	}
	defer rows.Close()

	assets := []models.Asset{}
	index := make(map[string]int)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, storeErr("list assets", err)
		}
		index[asset.AssetID] = len(assets)
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list assets", err)
	}
	if len(assets) == 0 {
		return assets, nil
	}

	metricsQuery, args := listMetricsQuery(filter.AssetIDs)
	metricRows, err := r.db.QueryContext(ctx, metricsQuery, args...)
	if err != nil {
		return nil, storeErr("list metrics", err)
	}
	defer metricRows.Close()

	for metricRows.Next() {
		var (
			assetID string
			metric  models.Metric
		)
		if err := metricRows.Scan(&assetID, &metric.Timestamp, &metric.StateOfCharge, &metric.TemperatureC); err != nil {
			return nil, storeErr("list metrics", err)
		}
		i, ok := index[assetID]
		if !ok {
			continue
		}
		metric.Timestamp = models.CanonicalInstant(metric.Timestamp)
		assets[i].Metrics = append(assets[i].Metrics, metric)
	}
	if err := metricRows.Err(); err != nil {
		return nil, storeErr("list metrics", err)
	}
	return assets, nil
}

// CountAssets returns the number of stored assets.
func (r *AssetRepository) CountAssets(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, countAssetsQuery).Scan(&count); err != nil {
		return 0, storeErr("count assets", err)
	}
	return count, nil
}

// UpsertWithMerge locks the asset row for the duration of the merge so concurrent
// ingestions of the same asset serialize. A lost race on first insert is retried.
func (r *AssetRepository) UpsertWithMerge(ctx context.Context, assetID string, fn MergeFunc) (models.Asset, error) {
	var lastErr error
	for attempt := 0; attempt < maxMergeAttempts; attempt++ {
		merged, err := r.mergeOnce(ctx, assetID, fn)
		if errors.Is(err, errCreateRace) {
			lastErr = err
			continue
		}
		return merged, err
	}
	return models.Asset{}, storeErr("upsert with merge", lastErr)
}

func (r *AssetRepository) mergeOnce(ctx context.Context, assetID string, fn MergeFunc) (models.Asset, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Asset{}, storeErr("upsert with merge", err)
	}
	defer tx.Rollback()

	existing, err := loadAsset(ctx, tx, assetID, true)
	if err != nil && !errors.Is(err, ErrAssetNotFound) {
		return models.Asset{}, storeErr("upsert with merge", err)
	}

	var snapshot *models.Asset
	if existing != nil {
		clone := existing.Clone()
		snapshot = &clone
	}
	merged, err := fn(snapshot)
	if err != nil {
		return models.Asset{}, err
	}
	if err := validateMerged(assetID, existing, merged); err != nil {
		return models.Asset{}, storeErr("upsert with merge", err)
	}

	if existing == nil {
		res, err := tx.ExecContext(ctx, insertAssetIfAbsentQuery, assetArgs(merged)...)
		if err != nil {
			return models.Asset{}, storeErr("insert asset", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return models.Asset{}, storeErr("insert asset", err)
		}
		if affected == 0 {
			return models.Asset{}, errCreateRace
		}
		if err := insertMetrics(ctx, tx, assetID, 0, merged.Metrics); err != nil {
			return models.Asset{}, storeErr("insert metrics", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, updateAssetQuery, assetArgs(merged)...); err != nil {
			return models.Asset{}, storeErr("update asset", err)
		}
		offset := len(existing.Metrics)
		if err := insertMetrics(ctx, tx, assetID, offset, merged.Metrics[offset:]); err != nil {
			return models.Asset{}, storeErr("insert metrics", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Asset{}, storeErr("upsert with merge", err)
	}
	return merged, nil
}

func loadAsset(ctx context.Context, q querier, assetID string, forUpdate bool) (*models.Asset, error) {
	query := selectAssetQuery
	if forUpdate {
		query = selectAssetForUpdateQuery
	}

	asset, err := scanAsset(q.QueryRowContext(ctx, query, assetID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}

	rows, err := q.QueryContext(ctx, selectAssetMetricsQuery, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var metric models.Metric
		if err := rows.Scan(&metric.Timestamp, &metric.StateOfCharge, &metric.TemperatureC); err != nil {
			return nil, err
		}
		metric.Timestamp = models.CanonicalInstant(metric.Timestamp)
		asset.Metrics = append(asset.Metrics, metric)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &asset, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(s scanner) (models.Asset, error) {
	var asset models.Asset
	if err := s.Scan(
		&asset.AssetID,
		&asset.Site,
		&asset.Region,
		&asset.CapacityMWh,
		&asset.PowerRatingMW,
		&asset.RoundTripEfficiency,
		&asset.Availability,
		&asset.Status,
		&asset.LastUpdated,
	); err != nil {
		return models.Asset{}, err
	}
	asset.LastUpdated = models.CanonicalInstant(asset.LastUpdated)
	asset.Metrics = []models.Metric{}
	return asset, nil
}

func assetArgs(asset models.Asset) []any {
	return []any{
		asset.AssetID,
		asset.Site,
		asset.Region,
		asset.CapacityMWh,
		asset.PowerRatingMW,
		asset.RoundTripEfficiency,
		asset.Availability,
		asset.Status,
		asset.LastUpdated,
	}
}

// insertMetrics writes metrics with positions starting at offset, in multi-row chunks.
func insertMetrics(ctx context.Context, q querier, assetID string, offset int, metrics []models.Metric) error {
	for start := 0; start < len(metrics); start += metricInsertChunk {
		end := start + metricInsertChunk
		if end > len(metrics) {
			end = len(metrics)
		}
		query, args := insertMetricsQuery(assetID, offset+start, metrics[start:end])
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func insertMetricsQuery(assetID string, offset int, metrics []models.Metric) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO bess_metrics (asset_id, position, recorded_at, state_of_charge, temperature_c) VALUES ")

	args := make([]any, 0, len(metrics)*5)
	for i, metric := range metrics {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5))
		args = append(args,
			assetID,
			offset+i,
			metric.Timestamp,
			metric.StateOfCharge,
			metric.TemperatureC,
		)
	}
	return b.String(), args
}

func listAssetsQuery(ids []string) (string, []any) {
	where, args := inClause("asset_id", ids)
	return "SELECT " + assetColumns + " FROM bess_assets" + where + " ORDER BY asset_id", args
}

func listMetricsQuery(ids []string) (string, []any) {
	where, args := inClause("asset_id", ids)
	return "SELECT asset_id, recorded_at, state_of_charge, temperature_c FROM bess_metrics" + where + " ORDER BY asset_id, position", args
}

func inClause(column string, ids []string) (string, []any) {
	if len(ids) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	return fmt.Sprintf(" WHERE %s IN (%s)", column, strings.Join(placeholders, ",")), args
}
