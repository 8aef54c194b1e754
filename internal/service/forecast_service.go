package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stockcast/internal/cache"
	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/export"
	"github.com/andresuchdata/stockcast/internal/forecast"
	"github.com/andresuchdata/stockcast/internal/reorder"
	"github.com/andresuchdata/stockcast/internal/repository"
	"github.com/andresuchdata/stockcast/internal/training"
	"github.com/andresuchdata/stockcast/internal/vendor"
)

// Recorder receives cache and reorder observations
type Recorder interface {
	ObserveCache(hit bool)
	ObserveReorder(summary []domain.ReorderSummary)
}

type noopRecorder struct{}

func (noopRecorder) ObserveCache(bool) {}
func (noopRecorder) ObserveReorder([]domain.ReorderSummary) {}

// Deps bundles the engine components behind the service
type Deps struct {
	Items       repository.InventoryRepository
	Registry    *forecast.Registry
	Forecaster  *forecast.Forecaster
	Recommender *reorder.Recommender
	Scorer      *vendor.Scorer
	Optimizer   *vendor.Optimizer
	Metrics     *vendor.MetricsUpdater
	Trainer     *training.Trainer
	Cache       cache.ForecastCache
	Recorder    Recorder
	HorizonDays int
}

type ForecastService struct {
	items       repository.InventoryRepository
	registry    *forecast.Registry
	forecaster  *forecast.Forecaster
	recommender *reorder.Recommender
	scorer      *vendor.Scorer
	optimizer   *vendor.Optimizer
	metrics     *vendor.MetricsUpdater
	trainer     *training.Trainer
	cache       cache.ForecastCache
	recorder    Recorder
	horizonDays int
}

func NewForecastService(d Deps) *ForecastService {
	if d.Cache == nil {
		d.Cache = cache.NewNoopForecastCache()
	}
	if d.Recorder == nil {
		d.Recorder = noopRecorder{}
	}
	s := &ForecastService{
		items:       d.Items,
		registry:    d.Registry,
		forecaster:  d.Forecaster,
		recommender: d.Recommender,
		scorer:      d.Scorer,
		optimizer:   d.Optimizer,
		metrics:     d.Metrics,
		trainer:     d.Trainer,
		cache:       d.Cache,
		recorder:    d.Recorder,
		horizonDays: d.HorizonDays,
	}
	if s.trainer != nil {
		s.trainer.OnPublish(func(snap *forecast.Snapshot) {
			if err := s.cache.InvalidateAll(context.Background()); err != nil {
				log.Warn().Err(err).Int64("version", snap.Version).Msg("forecast: cache invalidation after publish failed")
			}
		})
	}
	return s
}

func (s *ForecastService) GetForecast(ctx context.Context, itemID string, daysAhead int) (*domain.ForecastResult, error) {
	if daysAhead <= 0 {
		daysAhead = s.horizonDays
	}
	version := s.registry.Version()

	if result, ok, err := s.cache.GetForecast(ctx, itemID, daysAhead, version); err == nil && ok {
		s.recorder.ObserveCache(true)
		return result, nil
	} else if err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("forecast: cache get failed")
	}
	s.recorder.ObserveCache(false)

	result, err := s.forecaster.GenerateForecast(ctx, itemID, daysAhead)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetForecast(ctx, version, result); err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("forecast: cache set failed")
	}
	return result, nil
}

func (s *ForecastService) BatchForecast(ctx context.Context, itemIDs []string, daysAhead int) []domain.BatchForecastEntry {
	return s.forecaster.BatchForecast(ctx, itemIDs, daysAhead)
}

func (s *ForecastService) Anomalies(ctx context.Context, itemID string) ([]domain.ConsumptionAnomaly, error) {
	return s.forecaster.Anomalies(ctx, itemID)
}

// GetReorderReport returns the reorder sweep for the current model. Alerts
// are published only when the sweep actually runs, not on cache hits.
func (s *ForecastService) GetReorderReport(ctx context.Context) (*domain.ReorderReport, error) {
	version := s.registry.Version()

	if report, ok, err := s.cache.GetReorderReport(ctx, version); err == nil && ok {
		s.recorder.ObserveCache(true)
		return report, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("reorder: cache get failed")
	}
	s.recorder.ObserveCache(false)

	report, err := s.recommender.GetReorderRecommendations(ctx)
	if err != nil {
		return nil, err
	}
	s.recorder.ObserveReorder(report.Summary)

	if err := s.cache.SetReorderReport(ctx, version, report); err != nil {
		log.Warn().Err(err).Msg("reorder: cache set failed")
	}
	return report, nil
}

// RecordStockCount stores a new physical count and drops the item's cached forecasts
func (s *ForecastService) RecordStockCount(ctx context.Context, count domain.StockCount) error {
	if _, err := s.items.GetItem(ctx, count.ItemID); err != nil {
		return err
	}
	if count.CountedAt.IsZero() {
		count.CountedAt = time.Now().UTC()
	}
	if err := s.items.AppendStockCount(ctx, count); err != nil {
		return fmt.Errorf("append stock count: %w", err)
	}
	if err := s.cache.InvalidateItem(ctx, count.ItemID); err != nil {
		log.Warn().Err(err).Str("item_id", count.ItemID).Msg("forecast: cache invalidation failed")
	}
	return nil
}

func (s *ForecastService) FindBestVendor(ctx context.Context, itemID string, qty float64, pref domain.PreferenceProfile) ([]domain.VendorOption, error) {
	return s.scorer.FindBestVendor(ctx, itemID, qty, pref)
}

func (s *ForecastService) OptimizeBulkOrder(ctx context.Context, lines []domain.OrderLine, pref domain.PreferenceProfile) (*domain.BulkOrderPlan, error) {
	return s.optimizer.OptimizeBulkOrder(ctx, lines, pref)
}

// RefreshVendorMetrics recomputes lead time and on-time figures from orders
// delivered since the given time.
func (s *ForecastService) RefreshVendorMetrics(ctx context.Context, since time.Time) ([]domain.VendorMetrics, error) {
	return s.metrics.Update(ctx, since)
}

func (s *ForecastService) StartTraining(ctx context.Context) (string, error) {
	return s.trainer.StartAsync(ctx)
}

func (s *ForecastService) TrainingStatus() training.RunStatus {
	return s.trainer.Status()
}

func (s *ForecastService) ModelInfo() *forecast.Snapshot {
	return s.registry.Current()
}

// ExportWorkbook writes the reorder report, plus the forecasts behind each
// recommendation, as an xlsx workbook.
func (s *ForecastService) ExportWorkbook(ctx context.Context, w io.Writer) error {
	report, err := s.GetReorderReport(ctx)
	if err != nil {
		return err
	}

	forecasts := make([]*domain.ForecastResult, 0, len(report.Recommendations))
	for _, rec := range report.Recommendations {
		fc, err := s.GetForecast(ctx, rec.ItemID, s.horizonDays)
		if err != nil {
			log.Warn().Err(err).Str("item_id", rec.ItemID).Msg("export: forecast skipped")
			continue
		}
		forecasts = append(forecasts, fc)
	}
	return export.WriteWorkbook(w, report, forecasts)
}
