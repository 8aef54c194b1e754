package reorder

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/forecast"
	"github.com/andresuchdata/stockcast/internal/repository/memory"
)

var testNow = time.Date(2025, time.January, 20, 8, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	batches [][]domain.ReorderRecommendation
	err     error
}

func (p *recordingPublisher) PublishReorderAlerts(ctx context.Context, recs []domain.ReorderRecommendation) error {
	p.batches = append(p.batches, recs)
	return p.err
}

type failingSource struct {
	fail map[string]bool
	next ForecastSource
}

func (s failingSource) GenerateForecast(ctx context.Context, itemID string, daysAhead int) (*domain.ForecastResult, error) {
	if s.fail[itemID] {
		return nil, errors.New("history unavailable")
	}
	return s.next.GenerateForecast(ctx, itemID, daysAhead)
}

// addItem stores an item consuming daily units per day for 20 weeks
func addItem(store *memory.Store, id string, stock, daily float64, lead int) {
	store.PutItem(domain.Item{ID: id, Name: "Item " + id, CurrentStock: stock, LeadTimeDays: lead, Active: true})
	start := testNow.AddDate(0, 0, -140)
	for i := 0; i <= 20; i++ {
		_ = store.AppendStockCount(context.Background(), domain.StockCount{
			ItemID:    id,
			Count:     1000 - daily*7*float64(i),
			CountedAt: start.AddDate(0, 0, 7*i),
		})
	}
}

func newRecommender(store *memory.Store, source ForecastSource, pub AlertPublisher) *Recommender {
	cfg := config.DefaultForecastConfig()
	return NewRecommender(store, source, pub, Config{HorizonDays: 42, SafetyDays: cfg.ReorderSafetyDays, Workers: 3}).
		WithClock(func() time.Time { return testNow })
}

func newForecaster(store *memory.Store) *forecast.Forecaster {
	return forecast.NewForecaster(store, forecast.NewRegistry(), config.DefaultForecastConfig(),
		forecast.WithClock(func() time.Time { return testNow }))
}

func TestEvaluate(t *testing.T) {
	item := &domain.Item{ID: "i", LeadTimeDays: 7}

	tests := []struct {
		name    string
		days    *int
		target  int
		stock   float64
		due     bool
		urgency domain.Urgency
		qty     int
	}{
		{name: "no stockout estimate", days: nil},
		{name: "comfortably stocked", days: intPtr(30), stock: 45},
		{name: "inside safety buffer", days: intPtr(9), target: 225, stock: 45, due: true, urgency: domain.UrgencyHigh, qty: 180},
		{name: "buffer edge", days: intPtr(12), target: 50, stock: 40, due: true, urgency: domain.UrgencyHigh, qty: 10},
		{name: "within lead time", days: intPtr(7), target: 60, stock: 14, due: true, urgency: domain.UrgencyCritical, qty: 46},
		{name: "already above target", days: intPtr(3), target: 10, stock: 30, due: true, urgency: domain.UrgencyCritical, qty: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &domain.ForecastResult{CurrentStock: tt.stock, Summary: domain.ForecastSummary{DaysUntilStockout: tt.days, RecommendedTarget: tt.target}}
			rec, ok := Evaluate(item, fc, 5)
			assert.Equal(t, tt.due, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.urgency, rec.Urgency)
			assert.Equal(t, tt.qty, rec.RecommendedOrderQuantity)
			assert.Equal(t, *tt.days, rec.DaysUntilStockout)
		})
	}
}

func intPtr(v int) *int { return &v }

func TestScenarios(t *testing.T) {
	store := memory.NewStore()
	addItem(store, "steady", 45, 1.5, 7)
	addItem(store, "busy", 45, 5, 7)

	report, err := newRecommender(store, newForecaster(store), nil).GetReorderRecommendations(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Recommendations, 1)
	rec := report.Recommendations[0]
	assert.Equal(t, "busy", rec.ItemID)
	assert.Equal(t, 9, rec.DaysUntilStockout)
	assert.Equal(t, domain.UrgencyHigh, rec.Urgency)
	assert.Equal(t, 225, rec.RecommendedTarget)
	assert.Equal(t, 180, rec.RecommendedOrderQuantity)
	assert.Equal(t, 2, report.ItemsChecked)
}

func TestSweepOrdersAndPublishesCritical(t *testing.T) {
	store := memory.NewStore()
	addItem(store, "b", 45, 5, 7)
	addItem(store, "a", 45, 5, 7)
	addItem(store, "c", 20, 5, 7)
	addItem(store, "broken", 20, 5, 7)
	store.PutItem(domain.Item{ID: "idle", CurrentStock: 5, LeadTimeDays: 7, Active: true})

	pub := &recordingPublisher{err: errors.New("broker down")}
	source := failingSource{fail: map[string]bool{"broken": true}, next: newForecaster(store)}

	report, err := newRecommender(store, source, pub).GetReorderRecommendations(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, r := range report.Recommendations {
		ids = append(ids, r.ItemID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Equal(t, domain.UrgencyCritical, report.Recommendations[0].Urgency)
	assert.Equal(t, 5, report.ItemsChecked)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "broken", report.Failures[0].ItemID)

	assert.Equal(t, []domain.ReorderSummary{
		{Urgency: domain.UrgencyCritical, Count: 1},
		{Urgency: domain.UrgencyHigh, Count: 2},
	}, report.Summary)

	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 1)
	assert.Equal(t, "c", pub.batches[0][0].ItemID)
}

func TestSweepIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	for _, id := range []string{"x", "y", "z"} {
		addItem(store, id, 30, 4, 5)
	}
	r := newRecommender(store, newForecaster(store), nil)

	first, err := r.GetReorderRecommendations(context.Background())
	require.NoError(t, err)
	second, err := r.GetReorderRecommendations(context.Background())
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestSweepIsIdempotentWithMovingClock(t *testing.T) {
	store := memory.NewStore()
	for _, id := range []string{"x", "y", "z"} {
		addItem(store, id, 30, 4, 5)
	}

	var ticks atomic.Int64
	clock := func() time.Time {
		return testNow.Add(time.Duration(ticks.Add(1)) * 1234567 * time.Nanosecond)
	}
	source := forecast.NewForecaster(store, forecast.NewRegistry(), config.DefaultForecastConfig(), forecast.WithClock(clock))
	r := newRecommender(store, source, nil).WithClock(clock)

	first, err := r.GetReorderRecommendations(context.Background())
	require.NoError(t, err)
	second, err := r.GetReorderRecommendations(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, first.Recommendations)
	require.NotNil(t, first.Recommendations[0].StockoutDate)
	assert.Equal(t, time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC).AddDate(0, 0, first.Recommendations[0].DaysUntilStockout), *first.Recommendations[0].StockoutDate)
	assert.Equal(t, time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC), first.AsOf)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestSweepWithNoItems(t *testing.T) {
	report, err := newRecommender(memory.NewStore(), newForecaster(memory.NewStore()), nil).GetReorderRecommendations(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, report.Recommendations)
	assert.Empty(t, report.Recommendations)
	assert.Empty(t, report.Failures)
}

func TestSortRecommendationsBreaksTiesByItem(t *testing.T) {
	recs := []domain.ReorderRecommendation{
		{ItemID: "b", DaysUntilStockout: 3},
		{ItemID: "a", DaysUntilStockout: 3},
		{ItemID: "c", DaysUntilStockout: 1},
	}
	SortRecommendations(recs)
	assert.Equal(t, "c", recs[0].ItemID)
	assert.Equal(t, "a", recs[1].ItemID)
	assert.Equal(t, "b", recs[2].ItemID)
}
