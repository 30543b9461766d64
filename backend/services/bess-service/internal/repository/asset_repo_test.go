package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"bessanalytics/backend/services/bess-service/internal/models"
)

var assetRowColumns = []string{
	"asset_id", "site", "region", "capacity_mwh", "power_rating_mw",
	"round_trip_efficiency", "availability", "status", "last_updated",
}

func newMockRepo(t *testing.T) (*AssetRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAssetRepository(db), mock
}

func assetRow(asset models.Asset) *sqlmock.Rows {
	return sqlmock.NewRows(assetRowColumns).AddRow(
		asset.AssetID, asset.Site, asset.Region, asset.CapacityMWh, asset.PowerRatingMW,
		asset.RoundTripEfficiency, asset.Availability, asset.Status, asset.LastUpdated,
	)
}

func metricRows(metrics ...models.Metric) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"recorded_at", "state_of_charge", "temperature_c"})
	for _, m := range metrics {
		rows.AddRow(m.Timestamp, m.StateOfCharge, m.TemperatureC)
	}
	return rows
}

func TestAssetRepositoryFindAssetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	stored := testAsset("a1", metricAt(0, 40), metricAt(5, 45))

	mock.ExpectQuery(selectAssetQuery).WithArgs("a1").WillReturnRows(assetRow(stored))
	mock.ExpectQuery(selectAssetMetricsQuery).WithArgs("a1").WillReturnRows(metricRows(stored.Metrics...))

	asset, err := repo.FindAssetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if asset.AssetID != "a1" || len(asset.Metrics) != 2 {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if !asset.Metrics[1].Timestamp.Equal(stored.Metrics[1].Timestamp) {
		t.Fatalf("metric order not preserved: %+v", asset.Metrics)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssetRepositoryFindAssetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(selectAssetQuery).WithArgs("missing").WillReturnRows(sqlmock.NewRows(assetRowColumns))

	_, err := repo.FindAssetByID(context.Background(), "missing")
	if !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestAssetRepositoryFindAssetByIDWrapsDriverError(t *testing.T) {
	repo, mock := newMockRepo(t)
	driverErr := errors.New("connection reset")

	mock.ExpectQuery(selectAssetQuery).WithArgs("a1").WillReturnError(driverErr)

	_, err := repo.FindAssetByID(context.Background(), "a1")
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.Op != "find asset" {
		t.Fatalf("expected StoreError{find asset}, got %v", err)
	}
	if !errors.Is(err, driverErr) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestAssetRepositoryListAssetsGroupsMetrics(t *testing.T) {
	repo, mock := newMockRepo(t)
	ids := []string{"a1", "a2"}
	a1 := testAsset("a1")
	a2 := testAsset("a2")

	assetsQuery, _ := listAssetsQuery(ids)
	metricsQuery, _ := listMetricsQuery(ids)

	mock.ExpectQuery(assetsQuery).WithArgs("a1", "a2").WillReturnRows(
		sqlmock.NewRows(assetRowColumns).
			AddRow(a1.AssetID, a1.Site, a1.Region, a1.CapacityMWh, a1.PowerRatingMW, a1.RoundTripEfficiency, a1.Availability, a1.Status, a1.LastUpdated).
			AddRow(a2.AssetID, a2.Site, a2.Region, a2.CapacityMWh, a2.PowerRatingMW, a2.RoundTripEfficiency, a2.Availability, a2.Status, a2.LastUpdated),
	)
	m0, m1 := metricAt(0, 10), metricAt(1, 20)
	mock.ExpectQuery(metricsQuery).WithArgs("a1", "a2").WillReturnRows(
		sqlmock.NewRows([]string{"asset_id", "recorded_at", "state_of_charge", "temperature_c"}).
			AddRow("a1", m0.Timestamp, m0.StateOfCharge, m0.TemperatureC).
			AddRow("a1", m1.Timestamp, m1.StateOfCharge, m1.TemperatureC),
	)

	assets, err := repo.ListAssets(context.Background(), Filter{AssetIDs: ids})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	if len(assets[0].Metrics) != 2 || len(assets[1].Metrics) != 0 {
		t.Fatalf("metrics grouped incorrectly: %+v", assets)
	}
	if assets[1].Metrics == nil {
		t.Fatalf("asset without metrics must carry an empty slice")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListAssetsQueryWithoutFilter(t *testing.T) {
	query, args := listAssetsQuery(nil)
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
	want := "SELECT " + assetColumns + " FROM bess_assets ORDER BY asset_id"
	if query != want {
		t.Fatalf("query = %q, want %q", query, want)
	}
}

func TestAssetRepositoryCountAssets(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(countAssetsQuery).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountAssets(context.Background())
	if err != nil || count != 7 {
		t.Fatalf("count = %d, %v", count, err)
	}
}

func TestAssetRepositoryUpsertWithMergeAppendsOnlyNewMetrics(t *testing.T) {
	repo, mock := newMockRepo(t)
	stored := testAsset("a1", metricAt(0, 40))
	fresh := metricAt(10, 55)

	mock.ExpectBegin()
	mock.ExpectQuery(selectAssetForUpdateQuery).WithArgs("a1").WillReturnRows(assetRow(stored))
	mock.ExpectQuery(selectAssetMetricsQuery).WithArgs("a1").WillReturnRows(metricRows(stored.Metrics...))
	mock.ExpectExec(updateAssetQuery).
		WithArgs("a1", "Renamed", stored.Region, stored.CapacityMWh, stored.PowerRatingMW,
			stored.RoundTripEfficiency, stored.Availability, stored.Status, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	insert, _ := insertMetricsQuery("a1", 1, []models.Metric{fresh})
	mock.ExpectExec(insert).
		WithArgs("a1", 1, fresh.Timestamp, fresh.StateOfCharge, fresh.TemperatureC).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	merged, err := repo.UpsertWithMerge(context.Background(), "a1", func(existing *models.Asset) (models.Asset, error) {
		if existing == nil {
			t.Fatalf("expected stored asset")
		}
		out := *existing
		out.Site = "Renamed"
		out.Metrics = append(out.Metrics, fresh)
		out.LastUpdated = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		return out, nil
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(merged.Metrics) != 2 {
		t.Fatalf("expected 2 metrics, got %d", len(merged.Metrics))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssetRepositoryUpsertWithMergeRetriesCreateRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := testAsset("a1", metricAt(0, 40))
	incoming := metricAt(3, 60)

	// First attempt: row absent, but another writer inserts it first.
	mock.ExpectBegin()
	mock.ExpectQuery(selectAssetForUpdateQuery).WithArgs("a1").WillReturnRows(sqlmock.NewRows(assetRowColumns))
	mock.ExpectExec(insertAssetIfAbsentQuery).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	// Second attempt sees the competing row.
	mock.ExpectBegin()
	mock.ExpectQuery(selectAssetForUpdateQuery).WithArgs("a1").WillReturnRows(assetRow(created))
	mock.ExpectQuery(selectAssetMetricsQuery).WithArgs("a1").WillReturnRows(metricRows(created.Metrics...))
	mock.ExpectExec(updateAssetQuery).WillReturnResult(sqlmock.NewResult(0, 1))
	insert, _ := insertMetricsQuery("a1", 1, []models.Metric{incoming})
	mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var calls int
	merged, err := repo.UpsertWithMerge(context.Background(), "a1", func(existing *models.Asset) (models.Asset, error) {
		calls++
		if existing == nil {
			return testAsset("a1", incoming), nil
		}
		out := *existing
		out.Metrics = append(out.Metrics, incoming)
		return out, nil
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected merge callback to run twice, ran %d", calls)
	}
	if len(merged.Metrics) != 2 {
		t.Fatalf("expected 2 metrics after retry, got %d", len(merged.Metrics))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssetRepositoryUpsertWithMergeCallbackErrorRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)
	sentinel := errors.New("reject")

	mock.ExpectBegin()
	mock.ExpectQuery(selectAssetForUpdateQuery).WithArgs("a1").WillReturnRows(sqlmock.NewRows(assetRowColumns))
	mock.ExpectRollback()

	_, err := repo.UpsertWithMerge(context.Background(), "a1", func(*models.Asset) (models.Asset, error) {
		return models.Asset{}, sentinel
	})
	if err != sentinel {
		t.Fatalf("expected callback error unchanged, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsertMetricsQueryNumbersPlaceholders(t *testing.T) {
	query, args := insertMetricsQuery("a1", 4, []models.Metric{metricAt(0, 1), metricAt(1, 2)})

	want := "INSERT INTO bess_metrics (asset_id, position, recorded_at, state_of_charge, temperature_c) VALUES ($1,$2,$3,$4,$5),($6,$7,$8,$9,$10)"
	if query != want {
		t.Fatalf("query = %q", query)
	}
	if len(args) != 10 || args[1] != 4 || args[6] != 5 {
		t.Fatalf("unexpected args: %v", args)
	}
}
