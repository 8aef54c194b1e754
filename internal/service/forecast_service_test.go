package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/forecast"
	"github.com/andresuchdata/stockcast/internal/repository/memory"
)

type fakeCache struct {
	forecasts   map[string]*domain.ForecastResult
	getErr      error
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{forecasts: make(map[string]*domain.ForecastResult)}
}

func fakeKey(itemID string, days int, version int64) string {
	return fmt.Sprintf("%s/%d/%d", itemID, days, version)
}

func (f *fakeCache) GetForecast(ctx context.Context, itemID string, daysAhead int, modelVersion int64) (*domain.ForecastResult, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	res, ok := f.forecasts[fakeKey(itemID, daysAhead, modelVersion)]
	return res, ok, nil
}

func (f *fakeCache) SetForecast(ctx context.Context, modelVersion int64, result *domain.ForecastResult) error {
	f.forecasts[fakeKey(result.ItemID, result.DaysAhead, modelVersion)] = result
	return nil
}

func (f *fakeCache) GetReorderReport(ctx context.Context, modelVersion int64) (*domain.ReorderReport, bool, error) {
	return nil, false, nil
}

func (f *fakeCache) SetReorderReport(ctx context.Context, modelVersion int64, report *domain.ReorderReport) error {
	return nil
}

func (f *fakeCache) InvalidateItem(ctx context.Context, itemID string) error {
	f.invalidated = append(f.invalidated, itemID)
	return nil
}

func (f *fakeCache) InvalidateAll(ctx context.Context) error {
	f.invalidated = append(f.invalidated, "*")
	return nil
}

type countingRecorder struct {
	hits, misses int
}

func (r *countingRecorder) ObserveCache(hit bool) {
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *countingRecorder) ObserveReorder([]domain.ReorderSummary) {}

var testNow = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, c *fakeCache, rec *countingRecorder) (*ForecastService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.PutItem(domain.Item{ID: "sku-1", CurrentStock: 200, LeadTimeDays: 5, Active: true})
	for w := 0; w < 10; w++ {
		require.NoError(t, store.AppendStockCount(context.Background(), domain.StockCount{
			ItemID:    "sku-1",
			Count:     400 - float64(w)*14,
			CountedAt: testNow.AddDate(0, 0, -7*(9-w)),
		}))
	}

	cfg := config.DefaultForecastConfig()
	registry := forecast.NewRegistry()
	forecaster := forecast.NewForecaster(store, registry, cfg, forecast.WithClock(func() time.Time { return testNow }))

	svc := NewForecastService(Deps{
		Items:       store,
		Registry:    registry,
		Forecaster:  forecaster,
		Cache:       c,
		Recorder:    rec,
		HorizonDays: cfg.HorizonDays,
	})
	return svc, store
}

func TestGetForecastCachesByVersion(t *testing.T) {
	c := newFakeCache()
	rec := &countingRecorder{}
	svc, _ := newTestService(t, c, rec)
	ctx := context.Background()

	first, err := svc.GetForecast(ctx, "sku-1", 14)
	require.NoError(t, err)
	second, err := svc.GetForecast(ctx, "sku-1", 14)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
	assert.Contains(t, c.forecasts, fakeKey("sku-1", 14, 0))
}

func TestGetForecastDefaultsToHorizon(t *testing.T) {
	c := newFakeCache()
	svc, _ := newTestService(t, c, &countingRecorder{})

	res, err := svc.GetForecast(context.Background(), "sku-1", 0)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultForecastConfig().HorizonDays, res.DaysAhead)
}

func TestGetForecastIgnoresCacheErrors(t *testing.T) {
	c := newFakeCache()
	c.getErr = errors.New("connection refused")
	rec := &countingRecorder{}
	svc, _ := newTestService(t, c, rec)

	res, err := svc.GetForecast(context.Background(), "sku-1", 14)
	require.NoError(t, err)
	assert.Equal(t, "sku-1", res.ItemID)
	assert.Equal(t, 1, rec.misses)
}

func TestGetForecastNotFound(t *testing.T) {
	svc, _ := newTestService(t, newFakeCache(), &countingRecorder{})

	_, err := svc.GetForecast(context.Background(), "ghost", 14)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordStockCount(t *testing.T) {
	c := newFakeCache()
	svc, store := newTestService(t, c, &countingRecorder{})
	ctx := context.Background()

	err := svc.RecordStockCount(ctx, domain.StockCount{ItemID: "sku-1", Count: 250, CountedAt: testNow.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, []string{"sku-1"}, c.invalidated)

	counts, err := store.GetStockCounts(ctx, "sku-1", testNow.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, 250.0, counts[0].Count)

	err = svc.RecordStockCount(ctx, domain.StockCount{ItemID: "ghost", Count: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, c.invalidated, 1)
}
