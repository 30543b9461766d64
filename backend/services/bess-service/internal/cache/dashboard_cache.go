package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"bessanalytics/backend/services/bess-service/internal/models"
)

const dashboardKey = "bess:dashboard"

// Client is the subset of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// DashboardCache keeps the last computed dashboard in redis.
type DashboardCache struct {
	client Client
	ttl    time.Duration
}

// NewDashboardCache returns redis-backed dashboard cache.
func NewDashboardCache(client Client, ttl time.Duration) *DashboardCache {
	return &DashboardCache{client: client, ttl: ttl}
}

// Get returns the cached dashboard. A miss is reported as (nil, false, nil).
func (c *DashboardCache) Get(ctx context.Context) (*models.Dashboard, bool, error) {
	result, err := c.client.Get(ctx, dashboardKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var dashboard models.Dashboard
	if err := json.Unmarshal([]byte(result), &dashboard); err != nil {
		return nil, false, err
	}
	return &dashboard, true, nil
}

// Set caches dashboard for the configured TTL.
func (c *DashboardCache) Set(ctx context.Context, dashboard models.Dashboard) error {
	data, err := json.Marshal(dashboard)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, dashboardKey, data, c.ttl).Err()
}

// Invalidate drops the cached dashboard.
func (c *DashboardCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, dashboardKey).Err()
}
