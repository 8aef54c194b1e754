package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	forecastKeyPrefix  = "forecast:item"
	reorderKeyPrefix   = "forecast:reorder"
	forecastScanBatch  = 100
	forecastRootPrefix = "forecast:"
)

// ForecastCache stores forecast results and reorder reports. Keys include
// the registry version current when the entry was computed, so publishing a
// new model misses old entries.
type ForecastCache interface {
	GetForecast(ctx context.Context, itemID string, daysAhead int, modelVersion int64) (*domain.ForecastResult, bool, error)
	SetForecast(ctx context.Context, modelVersion int64, result *domain.ForecastResult) error
	GetReorderReport(ctx context.Context, modelVersion int64) (*domain.ReorderReport, bool, error)
	SetReorderReport(ctx context.Context, modelVersion int64, report *domain.ReorderReport) error
	InvalidateItem(ctx context.Context, itemID string) error
	InvalidateAll(ctx context.Context) error
}

type redisForecastCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopForecastCache struct{}

func NewForecastCache(cfg config.CacheConfig) (ForecastCache, error) {
	if !cfg.Enabled {
		return &noopForecastCache{}, nil
	}

	client, ttl, err := dialRedis(cfg)
	if err != nil {
		return nil, err
	}

	return &redisForecastCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopForecastCache() ForecastCache {
	return &noopForecastCache{}
}

func (c *redisForecastCache) GetForecast(ctx context.Context, itemID string, daysAhead int, modelVersion int64) (*domain.ForecastResult, bool, error) {
	var result domain.ForecastResult
	ok, err := c.get(ctx, buildForecastKey(itemID, daysAhead, modelVersion), &result)
	if !ok || err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

func (c *redisForecastCache) SetForecast(ctx context.Context, modelVersion int64, result *domain.ForecastResult) error {
	return c.set(ctx, buildForecastKey(result.ItemID, result.DaysAhead, modelVersion), result)
}

func (c *redisForecastCache) GetReorderReport(ctx context.Context, modelVersion int64) (*domain.ReorderReport, bool, error) {
	var report domain.ReorderReport
	ok, err := c.get(ctx, buildReorderKey(modelVersion), &report)
	if !ok || err != nil {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *redisForecastCache) SetReorderReport(ctx context.Context, modelVersion int64, report *domain.ReorderReport) error {
	return c.set(ctx, buildReorderKey(modelVersion), report)
}

// InvalidateItem drops the item's forecasts and every reorder report, which
// depend on all items.
func (c *redisForecastCache) InvalidateItem(ctx context.Context, itemID string) error {
	return unlinkPrefixes(ctx, c.client, forecastScanBatch, itemKeyPrefix(itemID), reorderKeyPrefix)
}

func (c *redisForecastCache) InvalidateAll(ctx context.Context) error {
	return unlinkPrefixes(ctx, c.client, forecastScanBatch, forecastRootPrefix)
}

func (c *redisForecastCache) get(ctx context.Context, key string, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *redisForecastCache) set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (n *noopForecastCache) GetForecast(ctx context.Context, itemID string, daysAhead int, modelVersion int64) (*domain.ForecastResult, bool, error) {
	return nil, false, nil
}

func (n *noopForecastCache) SetForecast(ctx context.Context, modelVersion int64, result *domain.ForecastResult) error {
	return nil
}

func (n *noopForecastCache) GetReorderReport(ctx context.Context, modelVersion int64) (*domain.ReorderReport, bool, error) {
	return nil, false, nil
}

func (n *noopForecastCache) SetReorderReport(ctx context.Context, modelVersion int64, report *domain.ReorderReport) error {
	return nil
}

func (n *noopForecastCache) InvalidateItem(ctx context.Context, itemID string) error {
	return nil
}

func (n *noopForecastCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func itemKeyPrefix(itemID string) string {
	return fmt.Sprintf("%s:%s:", forecastKeyPrefix, itemID)
}

func buildForecastKey(itemID string, daysAhead int, modelVersion int64) string {
	return fmt.Sprintf("%sd%d:v%d", itemKeyPrefix(itemID), daysAhead, modelVersion)
}

func buildReorderKey(modelVersion int64) string {
	return fmt.Sprintf("%s:v%d", reorderKeyPrefix, modelVersion)
}
