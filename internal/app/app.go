// Package app wires the forecasting engine from configuration and repositories.
package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/andresuchdata/stockcast/internal/cache"
	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/events"
	"github.com/andresuchdata/stockcast/internal/forecast"
	"github.com/andresuchdata/stockcast/internal/metrics"
	"github.com/andresuchdata/stockcast/internal/reorder"
	"github.com/andresuchdata/stockcast/internal/repository"
	"github.com/andresuchdata/stockcast/internal/service"
	"github.com/andresuchdata/stockcast/internal/training"
	"github.com/andresuchdata/stockcast/internal/vendor"
)

type Repos struct {
	Items   repository.InventoryRepository
	Vendors repository.VendorRepository
	Orders  repository.OrderRepository
}

// Options carries the optional infrastructure. Zero values fall back to
// no-op or in-process implementations.
type Options struct {
	Cache     cache.ForecastCache
	Publisher events.ReorderPublisher
	Snapshots training.SnapshotStore
	Metrics   *metrics.Recorder
	Clock     func() time.Time
}

type Engine struct {
	Registry   *forecast.Registry
	Forecaster *forecast.Forecaster
	Trainer    *training.Trainer
	Service    *service.ForecastService
	Metrics    *metrics.Recorder
	Publisher  events.ReorderPublisher
}

func New(cfg *config.Config, repos Repos, opts Options) *Engine {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NoopPublisher{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	registry := forecast.NewRegistry()
	forecaster := forecast.NewForecaster(repos.Items, registry, cfg.Forecast,
		forecast.WithClock(opts.Clock),
		forecast.WithRecorder(opts.Metrics),
	)

	recommender := reorder.NewRecommender(repos.Items, forecaster, opts.Publisher, reorder.Config{
		HorizonDays: cfg.Forecast.HorizonDays,
		SafetyDays:  cfg.Forecast.ReorderSafetyDays,
		Workers:     cfg.Forecast.Workers,
	}).WithClock(opts.Clock)

	trainer := training.NewTrainer(repos.Items, forecaster, registry, opts.Snapshots, cfg.Training, cfg.Forecast).
		WithClock(opts.Clock).
		WithRecorder(opts.Metrics)

	svc := service.NewForecastService(service.Deps{
		Items:       repos.Items,
		Registry:    registry,
		Forecaster:  forecaster,
		Recommender: recommender,
		Scorer:      vendor.NewScorer(repos.Items, repos.Vendors),
		Optimizer:   vendor.NewOptimizer(repos.Vendors),
		Metrics:     vendor.NewMetricsUpdater(repos.Orders, repos.Vendors),
		Trainer:     trainer,
		Cache:       opts.Cache,
		Recorder:    opts.Metrics,
		HorizonDays: cfg.Forecast.HorizonDays,
	})

	return &Engine{
		Registry:   registry,
		Forecaster: forecaster,
		Trainer:    trainer,
		Service:    svc,
		Metrics:    opts.Metrics,
		Publisher:  opts.Publisher,
	}
}
