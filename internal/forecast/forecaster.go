// Package forecast turns stock count history into weekly demand forecasts.
package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/repository"
)

// Recorder receives forecast timings
type Recorder interface {
	ObserveForecast(method domain.ForecastMethod, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveForecast(domain.ForecastMethod, time.Duration) {}

type Forecaster struct {
	items    repository.InventoryRepository
	registry *Registry
	encoder  *Encoder
	planner  StockPlanner
	cfg      config.ForecastConfig
	recorder Recorder
	now      func() time.Time
}

type Option func(*Forecaster)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(f *Forecaster) { f.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(f *Forecaster) {
		if r != nil {
			f.recorder = r
		}
	}
}

func NewForecaster(items repository.InventoryRepository, registry *Registry, cfg config.ForecastConfig, opts ...Option) *Forecaster {
	season := SeasonFromConfig(cfg)
	f := &Forecaster{
		items:    items,
		registry: registry,
		encoder:  NewEncoder(season),
		planner: StockPlanner{
			Season:           season,
			BaseDaysSupply:   cfg.BaseDaysSupply,
			TargetMultiplier: cfg.TargetMultiplier,
			SeasonalBuffer:   cfg.SeasonalBuffer,
		},
		cfg:      cfg,
		recorder: noopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SeasonFromConfig reads the busy season month range
func SeasonFromConfig(cfg config.ForecastConfig) Season {
	return Season{StartMonth: time.Month(cfg.BusySeasonStart), EndMonth: time.Month(cfg.BusySeasonEnd)}
}

func (f *Forecaster) Encoder() *Encoder {
	return f.encoder
}

// History loads the item's consumption samples over the long history window
func (f *Forecaster) History(ctx context.Context, itemID string, now time.Time) ([]domain.ConsumptionSample, error) {
	since := now.AddDate(0, 0, -daysPerWeek*f.cfg.HistoryWeeks)
	counts, err := f.items.GetStockCounts(ctx, itemID, since)
	if err != nil {
		return nil, fmt.Errorf("load stock counts for %s: %w", itemID, err)
	}
	return AggregateConsumption(counts, f.cfg.HistoryWeeks, now), nil
}

// GenerateForecast projects demand for one item over daysAhead days
// (the configured horizon when daysAhead <= 0). A missing item returns
// an error wrapping domain.ErrNotFound.
func (f *Forecaster) GenerateForecast(ctx context.Context, itemID string, daysAhead int) (*domain.ForecastResult, error) {
	start := time.Now()
	if daysAhead <= 0 {
		daysAhead = f.cfg.HorizonDays
	}

	item, err := f.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	now := f.now()
	samples, err := f.History(ctx, itemID, now)
	if err != nil {
		return nil, err
	}

	steps := Steps(daysAhead)
	result := &domain.ForecastResult{
		ItemID:       item.ID,
		CurrentStock: item.CurrentStock,
		DaysAhead:    daysAhead,
		GeneratedAt:  now,
	}

	var weekly []float64
	weeks := WeeklyDemand(samples)
	snap, modelErr := f.registry.Model()
	switch {
	case modelErr == nil && len(weeks) >= f.cfg.WindowLength:
		scale, ok := snap.Norm(itemID)
		if !ok {
			scale = MaxConsumption(weeks)
		}
		vectors := f.encodeScaled(weeks, scale)
		window := vectors[len(vectors)-f.cfg.WindowLength:]

		weekly = ProjectWeeks(snap.Model, f.encoder, window, scale, now, steps)
		result.Method = domain.MethodModel
		result.ModelVersion = snap.Version
	default:
		if modelErr != nil {
			log.Debug().Str("item_id", itemID).Err(modelErr).Msg("forecast: using fallback predictor")
		}
		recent := trailing(samples, now, f.cfg.LookbackWeeks)
		weekly = ConstantWeeks(AverageDailyConsumption(recent), steps)
		result.Method = domain.MethodFallback
		result.InsufficientHistory = len(samples) == 0
	}

	result.Predictions = BuildPoints(weekly, item.CurrentStock, now)
	cumulative := 0.0
	if n := len(result.Predictions); n > 0 {
		cumulative = result.Predictions[n-1].CumulativeDemand
	}
	result.Summary = f.planner.Summarize(cumulative, item.CurrentStock, daysAhead, now)

	f.recorder.ObserveForecast(result.Method, time.Since(start))
	return result, nil
}

// BatchForecast forecasts every item concurrently. A failing item is
// recorded in its entry and never aborts the batch. Entries keep the order
// of itemIDs.
func (f *Forecaster) BatchForecast(ctx context.Context, itemIDs []string, daysAhead int) []domain.BatchForecastEntry {
	entries := make([]domain.BatchForecastEntry, len(itemIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, f.cfg.Workers))
	for i, id := range itemIDs {
		g.Go(func() error {
			entries[i].ItemID = id
			res, err := f.GenerateForecast(gctx, id, daysAhead)
			if err != nil {
				log.Warn().Str("item_id", id).Err(err).Msg("forecast: batch item failed")
				entries[i].Error = err.Error()
				return nil
			}
			entries[i].Forecast = res
			return nil
		})
	}
	_ = g.Wait()

	return entries
}

// Anomalies flags unusual consumption in the item's history
func (f *Forecaster) Anomalies(ctx context.Context, itemID string) ([]domain.ConsumptionAnomaly, error) {
	if _, err := f.items.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	samples, err := f.History(ctx, itemID, f.now())
	if err != nil {
		return nil, err
	}
	return DetectAnomalies(samples, AnomalyWindow, AnomalyThreshold), nil
}

func (f *Forecaster) encodeScaled(samples []domain.ConsumptionSample, scale float64) []domain.FeatureVector {
	vectors := make([]domain.FeatureVector, 0, len(samples))
	for _, s := range samples {
		vectors = append(vectors, f.encoder.Vector(s.Consumption/scale, s.Date))
	}
	return vectors
}

// trailing keeps the samples dated within the last weeks before now
func trailing(samples []domain.ConsumptionSample, now time.Time, weeks int) []domain.ConsumptionSample {
	cutoff := now.AddDate(0, 0, -daysPerWeek*weeks)
	for i, s := range samples {
		if !s.Date.Before(cutoff) {
			return samples[i:]
		}
	}
	return nil
}
