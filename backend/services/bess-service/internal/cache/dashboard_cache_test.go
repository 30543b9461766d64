package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"bessanalytics/backend/services/bess-service/internal/models"
)

type fakeKV struct {
	values  map[string]string
	ttls    map[string]time.Duration
	failGet error
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestDashboardCacheRoundTrip(t *testing.T) {
	store := newFakeKV()
	cache := NewDashboardCache(store, 30*time.Second)
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx); ok || err != nil {
		t.Fatalf("expected miss on empty cache, got ok=%v err=%v", ok, err)
	}

	dashboard := models.Dashboard{
		Assets:  []models.Asset{{AssetID: "a1", Metrics: []models.Metric{}}},
		Metrics: models.DashboardMetrics{TotalAssets: 1, TotalCapacityMWh: 12.5},
	}
	if err := cache.Set(ctx, dashboard); err != nil {
		t.Fatalf("set: %v", err)
	}
	if store.ttls[dashboardKey] != 30*time.Second {
		t.Fatalf("ttl = %s", store.ttls[dashboardKey])
	}

	got, ok, err := cache.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Metrics.TotalCapacityMWh != 12.5 || got.Assets[0].AssetID != "a1" {
		t.Fatalf("unexpected cached dashboard: %+v", got)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := cache.Get(ctx); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestDashboardCacheGetError(t *testing.T) {
	store := newFakeKV()
	store.failGet = errors.New("connection refused")
	cache := NewDashboardCache(store, time.Minute)

	if _, ok, err := cache.Get(context.Background()); ok || err == nil {
		t.Fatalf("expected error, got ok=%v err=%v", ok, err)
	}
}

func TestDashboardCacheCorruptEntry(t *testing.T) {
	store := newFakeKV()
	store.values[dashboardKey] = "{not json"
	cache := NewDashboardCache(store, time.Minute)

	if _, ok, err := cache.Get(context.Background()); ok || err == nil {
		t.Fatalf("expected decode error, got ok=%v err=%v", ok, err)
	}
}
