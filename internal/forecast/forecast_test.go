package forecast

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/repository/memory"
	"github.com/andresuchdata/stockcast/internal/seqmodel"
)

var testNow = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)

func counts(itemID string, start time.Time, values ...float64) []domain.StockCount {
	out := make([]domain.StockCount, len(values))
	for i, v := range values {
		out[i] = domain.StockCount{ItemID: itemID, Count: v, CountedAt: start.AddDate(0, 0, 7*i)}
	}
	return out
}

// seedItem stores an item whose stock drops by weekly each week for weeks weeks, ending at now.
func seedItem(store *memory.Store, id string, stock, weekly float64, weeks int) {
	store.PutItem(domain.Item{ID: id, Name: id, CurrentStock: stock, LeadTimeDays: 7, Active: true})
	start := testNow.AddDate(0, 0, -7*weeks)
	level := weekly * float64(weeks+1)
	for i := 0; i <= weeks; i++ {
		_ = store.AppendStockCount(context.Background(), domain.StockCount{
			ItemID:    id,
			Count:     level - weekly*float64(i),
			CountedAt: start.AddDate(0, 0, 7*i),
		})
	}
}

func TestAggregateConsumption(t *testing.T) {
	start := testNow.AddDate(0, 0, -28)

	t.Run("decreases become consumption and restocks are ignored", func(t *testing.T) {
		samples := AggregateConsumption(counts("a", start, 100, 80, 120, 110), 0, testNow)
		require.Len(t, samples, 3)
		assert.Equal(t, 20.0, samples[0].Consumption)
		assert.InDelta(t, 20.0/7, samples[0].DailyRate, 1e-9)
		assert.Equal(t, 0.0, samples[1].Consumption)
		assert.Equal(t, 10.0, samples[2].Consumption)
		assert.Equal(t, 7.0, samples[2].DaysBetween)
	})

	t.Run("pairs without a positive gap are skipped", func(t *testing.T) {
		c := []domain.StockCount{
			{Count: 50, CountedAt: start},
			{Count: 40, CountedAt: start},
			{Count: 30, CountedAt: start.AddDate(0, 0, 2)},
		}
		samples := AggregateConsumption(c, 0, testNow)
		require.Len(t, samples, 1)
		assert.Equal(t, 10.0, samples[0].Consumption)
		assert.Equal(t, 5.0, samples[0].DailyRate)
	})

	t.Run("fewer than two counts is empty", func(t *testing.T) {
		assert.Empty(t, AggregateConsumption(nil, 12, testNow))
		assert.Empty(t, AggregateConsumption(counts("a", start, 10), 12, testNow))
	})

	t.Run("lookback drops old counts", func(t *testing.T) {
		old := testNow.AddDate(0, 0, -70)
		samples := AggregateConsumption(counts("a", old, 100, 90, 80, 70, 60, 50, 40, 30, 20, 10), 4, testNow)
		// counts within 28 days: days -28, -21, -14, -7
		require.Len(t, samples, 3)
	})
}

func TestAverageDailyConsumption(t *testing.T) {
	assert.Equal(t, 0.0, AverageDailyConsumption(nil))
	samples := []domain.ConsumptionSample{
		{Consumption: 14, DaysBetween: 7},
		{Consumption: 0, DaysBetween: 7},
	}
	assert.Equal(t, 1.0, AverageDailyConsumption(samples))
}

func TestSeason(t *testing.T) {
	summer := Season{StartMonth: time.April, EndMonth: time.October}
	winter := Season{StartMonth: time.November, EndMonth: time.February}

	tests := []struct {
		name   string
		season Season
		month  time.Month
		want   bool
	}{
		{"start inclusive", summer, time.April, true},
		{"end inclusive", summer, time.October, true},
		{"outside", summer, time.March, false},
		{"wrap start", winter, time.November, true},
		{"wrap end", winter, time.February, true},
		{"wrap outside", winter, time.June, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := time.Date(2025, tt.month, 10, 0, 0, 0, 0, time.UTC)
			assert.Equal(t, tt.want, tt.season.Contains(d))
		})
	}
}

func TestEncoder(t *testing.T) {
	enc := NewEncoder(Season{StartMonth: time.April, EndMonth: time.October})

	t.Run("normalized values stay in range", func(t *testing.T) {
		samples := AggregateConsumption(counts("a", testNow.AddDate(0, 0, -35), 100, 70, 65, 80, 20, 19), 0, testNow)
		vectors, maxC := enc.Encode(samples)
		require.Len(t, vectors, len(samples))
		assert.Equal(t, 60.0, maxC)
		for _, v := range vectors {
			assert.NoError(t, v.Validate())
		}
		assert.Equal(t, 0.5, vectors[0].NormalizedConsumption)
		assert.Equal(t, 1.0, vectors[3].NormalizedConsumption)
	})

	t.Run("all zero consumption encodes as zero", func(t *testing.T) {
		samples := AggregateConsumption(counts("a", testNow.AddDate(0, 0, -21), 10, 10, 12, 12), 0, testNow)
		vectors, maxC := enc.Encode(samples)
		assert.Equal(t, 1.0, maxC)
		for _, v := range vectors {
			assert.Equal(t, 0.0, v.NormalizedConsumption)
		}
	})

	t.Run("season and day of year", func(t *testing.T) {
		may := enc.Vector(0.5, time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, 1.0, may.SeasonIndicator)
		jan1 := enc.Vector(0.5, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, 0.0, jan1.SeasonIndicator)
		assert.Equal(t, 0.0, jan1.NormalizedDayOfYear)
		leap := NormalizedDayOfYear(time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC))
		assert.Less(t, leap, 1.0)
	})
}

func TestBuildTrainingExamples(t *testing.T) {
	series := make([]domain.FeatureVector, 15)
	for i := range series {
		series[i].NormalizedConsumption = float64(i) / 20
	}

	examples := BuildTrainingExamples("x", series, 12)
	require.Len(t, examples, 3)
	assert.Len(t, examples[0].Sequence, 12)
	assert.Equal(t, 12.0/20, examples[0].Target)
	assert.Equal(t, 14.0/20, examples[2].Target)
	assert.Equal(t, "x", examples[2].ItemID)

	assert.Empty(t, BuildTrainingExamples("x", series[:12], 12))
}

func TestProjectWeeksFeedsPredictionsBack(t *testing.T) {
	enc := NewEncoder(Season{StartMonth: time.April, EndMonth: time.October})
	window := []domain.FeatureVector{{NormalizedConsumption: 0.2}, {NormalizedConsumption: 0.4}, {NormalizedConsumption: 0.6}}
	original := append([]domain.FeatureVector(nil), window...)

	var seen [][]domain.FeatureVector
	p := PredictorFunc(func(w []domain.FeatureVector) float64 {
		seen = append(seen, append([]domain.FeatureVector(nil), w...))
		return w[len(w)-1].NormalizedConsumption / 2
	})

	weekly := ProjectWeeks(p, enc, window, 10, testNow, 3)

	require.Len(t, weekly, 3)
	assert.InDelta(t, 3.0, weekly[0], 1e-9)
	assert.InDelta(t, 1.5, weekly[1], 1e-9)
	assert.InDelta(t, 0.75, weekly[2], 1e-9)

	require.Len(t, seen, 3)
	assert.Len(t, seen[1], 3)
	assert.InDelta(t, 0.4, seen[1][0].NormalizedConsumption, 1e-9)
	assert.InDelta(t, 0.3, seen[1][2].NormalizedConsumption, 1e-9)
	assert.Equal(t, NormalizedDayOfYear(WeekDate(testNow, 0)), seen[1][2].NormalizedDayOfYear)
	assert.Equal(t, original, window)
}

func TestProjectWeeksClampsPredictorOutput(t *testing.T) {
	enc := NewEncoder(Season{StartMonth: time.April, EndMonth: time.October})
	p := PredictorFunc(func([]domain.FeatureVector) float64 { return -3 })
	weekly := ProjectWeeks(p, enc, []domain.FeatureVector{{}}, 10, testNow, 2)
	assert.Equal(t, []float64{0, 0}, weekly)
}

func TestBuildPoints(t *testing.T) {
	for _, days := range []int{1, 7, 8, 45, 90} {
		steps := Steps(days)
		assert.Equal(t, int(math.Ceil(float64(days)/7)), steps)

		points := BuildPoints(ConstantWeeks(1.5, steps), 45, testNow)
		require.Len(t, points, steps)
		for i, p := range points {
			assert.Equal(t, i+1, p.WeekIndex)
			assert.Equal(t, testNow.AddDate(0, 0, 7*(i+1)), p.Date)
			assert.Equal(t, 45-p.CumulativeDemand, p.ProjectedStock)
			if i > 0 {
				assert.GreaterOrEqual(t, p.CumulativeDemand, points[i-1].CumulativeDemand)
			}
		}
	}
	assert.Equal(t, 0, Steps(0))
}

func TestSummarize(t *testing.T) {
	planner := StockPlanner{
		Season:           Season{StartMonth: time.April, EndMonth: time.October},
		BaseDaysSupply:   30,
		TargetMultiplier: 1.5,
		SeasonalBuffer:   1.2,
	}

	t.Run("no demand has no stockout", func(t *testing.T) {
		s := planner.Summarize(0, 45, 42, testNow)
		assert.Nil(t, s.DaysUntilStockout)
		assert.Nil(t, s.StockoutDate)
		assert.Equal(t, 0, s.RecommendedMinimum)
		assert.Equal(t, 0, s.RecommendedTarget)
	})

	t.Run("steady demand outside busy season", func(t *testing.T) {
		s := planner.Summarize(1.5*42, 45, 42, testNow)
		require.NotNil(t, s.DaysUntilStockout)
		assert.Equal(t, 1.5, s.AvgDailyDemand)
		assert.Equal(t, 30, *s.DaysUntilStockout)
		assert.Equal(t, time.Date(2025, time.February, 14, 0, 0, 0, 0, time.UTC), *s.StockoutDate)
		assert.Equal(t, 45, s.RecommendedMinimum)
		assert.Equal(t, 68, s.RecommendedTarget)
	})

	t.Run("busy season pads the minimum", func(t *testing.T) {
		june := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
		s := planner.Summarize(2*42, 100, 42, june)
		assert.Equal(t, 72, s.RecommendedMinimum)
		assert.Equal(t, 108, s.RecommendedTarget)
		assert.Equal(t, 50, *s.DaysUntilStockout)
	})

	t.Run("empty stock stocks out today", func(t *testing.T) {
		s := planner.Summarize(42, -5, 42, testNow)
		assert.Equal(t, 0, *s.DaysUntilStockout)
	})
}

func TestDetectAnomalies(t *testing.T) {
	values := []float64{10, 10, 10, 10, 20, 10, 10, 10, 3, 0}
	samples := make([]domain.ConsumptionSample, len(values))
	for i, v := range values {
		samples[i] = domain.ConsumptionSample{Date: testNow.AddDate(0, 0, 7*i), Consumption: v}
	}

	anomalies := DetectAnomalies(samples, AnomalyWindow, AnomalyThreshold)
	require.Len(t, anomalies, 3)
	assert.Equal(t, AnomalySpike, anomalies[0].Kind)
	assert.Equal(t, samples[4].Date, anomalies[0].Date)
	assert.Equal(t, 100.0, anomalies[0].DeviationPct)
	assert.Equal(t, AnomalyDrop, anomalies[1].Kind)
	assert.Equal(t, 3.0, anomalies[1].Consumption)
	assert.Equal(t, AnomalyDrop, anomalies[2].Kind)

	assert.Empty(t, DetectAnomalies(samples[:4], AnomalyWindow, AnomalyThreshold))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := r.Model()
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.Equal(t, int64(0), r.Version())

	model := seqmodel.New(2, 2, rand.New(rand.NewPCG(1, 1)))
	assert.True(t, r.Publish(&Snapshot{Version: 2, Model: model}))
	assert.False(t, r.Publish(&Snapshot{Version: 1, Model: model}))
	assert.Equal(t, int64(2), r.Version())

	snap, err := r.Model()
	require.NoError(t, err)
	_, ok := snap.Norm("missing")
	assert.False(t, ok)
}

func newTestForecaster(store *memory.Store, registry *Registry) *Forecaster {
	return NewForecaster(store, registry, config.DefaultForecastConfig(), WithClock(func() time.Time { return testNow }))
}

func TestGenerateForecastFallback(t *testing.T) {
	store := memory.NewStore()
	seedItem(store, "sku-1", 300, 14, 20)

	f := newTestForecaster(store, NewRegistry())
	res, err := f.GenerateForecast(context.Background(), "sku-1", 42)
	require.NoError(t, err)

	assert.Equal(t, domain.MethodFallback, res.Method)
	assert.False(t, res.InsufficientHistory)
	require.Len(t, res.Predictions, 6)
	assert.InDelta(t, 14.0, res.Predictions[0].PredictedDemand, 1e-9)
	assert.InDelta(t, 2.0, res.Summary.AvgDailyDemand, 1e-9)
	require.NotNil(t, res.Summary.DaysUntilStockout)
	assert.Equal(t, 150, *res.Summary.DaysUntilStockout)
	assert.Equal(t, 60, res.Summary.RecommendedMinimum)
	assert.Equal(t, 90, res.Summary.RecommendedTarget)
}

func TestGenerateForecastDefaultHorizon(t *testing.T) {
	store := memory.NewStore()
	seedItem(store, "sku-1", 300, 14, 20)

	res, err := newTestForecaster(store, NewRegistry()).GenerateForecast(context.Background(), "sku-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 45, res.DaysAhead)
	assert.Len(t, res.Predictions, 7)
}

func TestGenerateForecastWithoutHistory(t *testing.T) {
	store := memory.NewStore()
	store.PutItem(domain.Item{ID: "new", CurrentStock: 10, Active: true})

	res, err := newTestForecaster(store, NewRegistry()).GenerateForecast(context.Background(), "new", 14)
	require.NoError(t, err)
	assert.True(t, res.InsufficientHistory)
	assert.Nil(t, res.Summary.DaysUntilStockout)
	assert.Len(t, res.Predictions, 2)
}

func TestGenerateForecastNotFound(t *testing.T) {
	_, err := newTestForecaster(memory.NewStore(), NewRegistry()).GenerateForecast(context.Background(), "ghost", 14)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerateForecastUsesModel(t *testing.T) {
	store := memory.NewStore()
	seedItem(store, "long", 300, 14, 20)
	seedItem(store, "short", 300, 14, 5)

	registry := NewRegistry()
	registry.Publish(&Snapshot{
		Version:      3,
		WindowLength: 12,
		Model:        seqmodel.New(4, 2, rand.New(rand.NewPCG(5, 5))),
		Norms:        map[string]float64{"long": 28},
	})
	f := newTestForecaster(store, registry)

	res, err := f.GenerateForecast(context.Background(), "long", 42)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodModel, res.Method)
	assert.Equal(t, int64(3), res.ModelVersion)
	require.Len(t, res.Predictions, 6)
	for i, p := range res.Predictions {
		assert.GreaterOrEqual(t, p.PredictedDemand, 0.0)
		assert.LessOrEqual(t, p.PredictedDemand, 28.0)
		if i > 0 {
			assert.GreaterOrEqual(t, p.CumulativeDemand, res.Predictions[i-1].CumulativeDemand)
		}
	}

	res, err = f.GenerateForecast(context.Background(), "short", 42)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodFallback, res.Method)
}

func TestBatchForecastRecordsItemErrors(t *testing.T) {
	store := memory.NewStore()
	seedItem(store, "a", 300, 14, 20)
	seedItem(store, "b", 100, 7, 20)

	entries := newTestForecaster(store, NewRegistry()).BatchForecast(context.Background(), []string{"a", "ghost", "b"}, 42)
	require.Len(t, entries, 3)

	assert.Equal(t, "a", entries[0].ItemID)
	assert.NotNil(t, entries[0].Forecast)
	assert.Empty(t, entries[0].Error)

	assert.Equal(t, "ghost", entries[1].ItemID)
	assert.Nil(t, entries[1].Forecast)
	assert.Contains(t, entries[1].Error, "not found")

	assert.Equal(t, "b", entries[2].ItemID)
	require.NotNil(t, entries[2].Forecast)
	assert.Equal(t, 100, *entries[2].Forecast.Summary.DaysUntilStockout)
}

func TestForecasterAnomalies(t *testing.T) {
	store := memory.NewStore()
	seedItem(store, "a", 300, 14, 10)
	f := newTestForecaster(store, NewRegistry())

	anomalies, err := f.Anomalies(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, anomalies)

	_, err = f.Anomalies(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// seedDaily stores an item counted every day for days days, drawing perDay each day, ending at now.
func seedDaily(store *memory.Store, id string, stock, perDay float64, days int) {
	store.PutItem(domain.Item{ID: id, Name: id, CurrentStock: stock, LeadTimeDays: 7, Active: true})
	start := testNow.AddDate(0, 0, -days)
	level := perDay * float64(days+1)
	for i := 0; i <= days; i++ {
		_ = store.AppendStockCount(context.Background(), domain.StockCount{
			ItemID:    id,
			Count:     level - perDay*float64(i),
			CountedAt: start.AddDate(0, 0, i),
		})
	}
}

func TestWeeklyDemand(t *testing.T) {
	start := testNow.AddDate(0, 0, -28)

	t.Run("weekly counts map one to one", func(t *testing.T) {
		samples := AggregateConsumption(counts("a", start, 100, 80, 120, 110), 0, testNow)
		weeks := WeeklyDemand(samples)
		require.Len(t, weeks, 3)
		for i := range weeks {
			assert.InDelta(t, samples[i].Consumption, weeks[i].Consumption, 1e-9)
			assert.Equal(t, samples[i].Date, weeks[i].Date)
		}
	})

	t.Run("daily counts sum into weeks", func(t *testing.T) {
		c := make([]domain.StockCount, 22)
		for i := range c {
			c[i] = domain.StockCount{Count: 100 - 2*float64(i), CountedAt: start.AddDate(0, 0, i)}
		}
		weeks := WeeklyDemand(AggregateConsumption(c, 0, testNow))
		require.Len(t, weeks, 3)
		for _, w := range weeks {
			assert.InDelta(t, 14.0, w.Consumption, 1e-9)
			assert.InDelta(t, 2.0, w.DailyRate, 1e-9)
		}
		assert.Equal(t, c[21].CountedAt, weeks[2].Date)
	})

	t.Run("irregular gaps are spread by day", func(t *testing.T) {
		c := []domain.StockCount{
			{Count: 100, CountedAt: start},
			{Count: 94, CountedAt: start.AddDate(0, 0, 3)},
			{Count: 72, CountedAt: start.AddDate(0, 0, 14)},
		}
		weeks := WeeklyDemand(AggregateConsumption(c, 0, testNow))
		require.Len(t, weeks, 2)
		assert.InDelta(t, 14.0, weeks[0].Consumption, 1e-9)
		assert.InDelta(t, 14.0, weeks[1].Consumption, 1e-9)
	})

	t.Run("partial leading week is dropped", func(t *testing.T) {
		c := make([]domain.StockCount, 10)
		for i := range c {
			c[i] = domain.StockCount{Count: 100 - 2*float64(i), CountedAt: start.AddDate(0, 0, i)}
		}
		weeks := WeeklyDemand(AggregateConsumption(c, 0, testNow))
		require.Len(t, weeks, 1)
		assert.InDelta(t, 14.0, weeks[0].Consumption, 1e-9)
	})

	t.Run("less than a week is empty", func(t *testing.T) {
		assert.Empty(t, WeeklyDemand(nil))
		assert.Empty(t, WeeklyDemand(AggregateConsumption(counts("a", start, 10, 5)[:1], 0, testNow)))
		short := []domain.StockCount{{Count: 10, CountedAt: start}, {Count: 4, CountedAt: start.AddDate(0, 0, 3)}}
		assert.Empty(t, WeeklyDemand(AggregateConsumption(short, 0, testNow)))
	})
}

func TestModelAndFallbackAgreeOnUnitsForDailyCounts(t *testing.T) {
	store := memory.NewStore()
	seedDaily(store, "daily", 100, 2, 140)
	f := newTestForecaster(store, NewRegistry())

	samples, err := f.History(context.Background(), "daily", testNow)
	require.NoError(t, err)
	weeks := WeeklyDemand(samples)
	require.GreaterOrEqual(t, len(weeks), 12)

	vectors, scale := f.Encoder().Encode(weeks)
	assert.InDelta(t, 14.0, scale, 1e-9)

	repeatLast := PredictorFunc(func(w []domain.FeatureVector) float64 {
		return w[len(w)-1].NormalizedConsumption
	})
	model := ProjectWeeks(repeatLast, f.Encoder(), vectors[len(vectors)-12:], scale, testNow, 3)
	fallback := ConstantWeeks(AverageDailyConsumption(samples), 3)

	require.Len(t, model, 3)
	for i := range model {
		assert.InDelta(t, 14.0, model[i], 1e-9)
		assert.InDelta(t, fallback[i], model[i], 1e-9)
	}
}

func TestGenerateForecastUsesModelForDailyCounts(t *testing.T) {
	store := memory.NewStore()
	seedDaily(store, "daily", 100, 2, 140)

	registry := NewRegistry()
	registry.Publish(&Snapshot{
		Version:      1,
		WindowLength: 12,
		Model:        seqmodel.New(4, 2, rand.New(rand.NewPCG(5, 5))),
	})

	res, err := newTestForecaster(store, registry).GenerateForecast(context.Background(), "daily", 21)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodModel, res.Method)
	require.Len(t, res.Predictions, 3)
	for _, p := range res.Predictions {
		assert.LessOrEqual(t, p.PredictedDemand, 14.0+1e-9)
	}
}
