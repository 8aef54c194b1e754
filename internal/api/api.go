// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andresuchdata/stockcast/internal/api/handlers"
	"github.com/andresuchdata/stockcast/internal/api/middleware"
	"github.com/andresuchdata/stockcast/internal/service"
)

type Services struct {
	ForecastService *service.ForecastService
	// Gatherer backs /metrics; nil skips the route
	Gatherer prometheus.Gatherer
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if services == nil {
		return router
	}

	if services.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(services.Gatherer, promhttp.HandlerOpts{})))
	}

	apiGroup := router.Group("/api/v1")

	if services.ForecastService != nil {
		forecastHandler := handlers.NewForecastHandler(services.ForecastService)
		forecastGroup := apiGroup.Group("/forecast")
		{
			forecastGroup.GET("/items/:id", forecastHandler.GetForecast)
			forecastGroup.GET("/items/:id/anomalies", forecastHandler.GetAnomalies)
			forecastGroup.POST("/items/:id/counts", forecastHandler.RecordStockCount)
			forecastGroup.POST("/batch", forecastHandler.BatchForecast)
			forecastGroup.GET("/reorder", forecastHandler.GetReorderReport)
			forecastGroup.GET("/reorder/export", forecastHandler.ExportReorder)
		}

		vendorHandler := handlers.NewVendorHandler(services.ForecastService)
		vendorGroup := apiGroup.Group("/vendors")
		{
			vendorGroup.POST("/best", vendorHandler.FindBestVendor)
			vendorGroup.POST("/optimize", vendorHandler.OptimizeOrder)
			vendorGroup.POST("/metrics/refresh", vendorHandler.RefreshMetrics)
		}

		trainingHandler := handlers.NewTrainingHandler(services.ForecastService)
		trainingGroup := apiGroup.Group("/training")
		{
			trainingGroup.POST("/run", trainingHandler.StartTraining)
			trainingGroup.GET("/status", trainingHandler.GetStatus)
			trainingGroup.GET("/model", trainingHandler.GetModel)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
