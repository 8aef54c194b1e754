package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/andresuchdata/stockcast/internal/api"
	"github.com/andresuchdata/stockcast/internal/app"
	"github.com/andresuchdata/stockcast/internal/cache"
	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/events"
	"github.com/andresuchdata/stockcast/internal/metrics"
	"github.com/andresuchdata/stockcast/internal/modelstore"
	"github.com/andresuchdata/stockcast/internal/repository/postgres"
	"github.com/andresuchdata/stockcast/internal/training"
	"github.com/andresuchdata/stockcast/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.Setup(cfg.Server.Mode, os.Stdout)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	forecastCache, err := cache.NewForecastCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Redis unavailable, forecasts are not cached")
		forecastCache = cache.NewNoopForecastCache()
	}

	publisher, err := events.NewReorderPublisher(cfg.Events)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to create reorder publisher")
	}
	defer publisher.Close()

	snapshots, err := modelstore.FromConfig(cfg.Storage)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to open model store")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := app.Repos{
		Items:   postgres.NewInventoryRepository(db),
		Vendors: postgres.NewVendorRepository(db),
		Orders:  postgres.NewOrderRepository(db),
	}
	engine := app.New(cfg, store, app.Options{
		Cache:     forecastCache,
		Publisher: publisher,
		Snapshots: snapshots,
		Metrics:   metrics.New(registry),
	})

	ctx := context.Background()
	if err := engine.Trainer.Restore(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Stored model not restored, forecasts use the fallback predictor")
	}

	var scheduler *training.Scheduler
	if cfg.Training.Schedule != "" {
		scheduler, err = training.NewScheduler(engine.Trainer, cfg.Training.Schedule)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to schedule training")
		}
		scheduler.Start()
		logger.Log.Info().Str("schedule", cfg.Training.Schedule).Msg("Training scheduled")
	}

	router := api.NewRouter(&api.Services{
		ForecastService: engine.Service,
		Gatherer:        registry,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Int64("model_version", engine.Registry.Version()).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Log.Warn().Msg("Training still running at shutdown")
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
