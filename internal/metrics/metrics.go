// Package metrics exposes forecasting and training figures to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/andresuchdata/stockcast/internal/domain"
)

// Recorder implements forecast.Recorder and the training/reorder hooks.
type Recorder struct {
	forecasts       *prometheus.CounterVec
	forecastLatency *prometheus.HistogramVec
	trainingRuns    *prometheus.CounterVec
	trainingSeconds prometheus.Histogram
	trainingLoss    *prometheus.GaugeVec
	modelVersion    prometheus.Gauge
	reorderItems    *prometheus.GaugeVec
	cacheLookups    *prometheus.CounterVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		forecasts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_forecasts_total",
				Help: "Forecasts generated, by predictor method",
			},
			[]string{"method"},
		),
		forecastLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_forecast_duration_seconds",
				Help:    "Time to produce one item forecast",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		trainingRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_training_runs_total",
				Help: "Training runs by outcome",
			},
			[]string{"outcome"},
		),
		trainingSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stockcast_training_duration_seconds",
				Help:    "Wall time of training runs",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		),
		trainingLoss: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_training_loss",
				Help: "Loss of the last published model",
			},
			[]string{"split"},
		),
		modelVersion: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "stockcast_model_version",
				Help: "Version of the model currently serving forecasts",
			},
		),
		reorderItems: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_reorder_items",
				Help: "Items flagged by the last reorder sweep",
			},
			[]string{"urgency"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_forecast_cache_lookups_total",
				Help: "Forecast cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

func (r *Recorder) ObserveForecast(method domain.ForecastMethod, elapsed time.Duration) {
	r.forecasts.WithLabelValues(string(method)).Inc()
	r.forecastLatency.WithLabelValues(string(method)).Observe(elapsed.Seconds())
}

// ObserveTraining records a finished run. outcome is one of the training states.
func (r *Recorder) ObserveTraining(outcome string, elapsed time.Duration) {
	r.trainingRuns.WithLabelValues(outcome).Inc()
	r.trainingSeconds.Observe(elapsed.Seconds())
}

// SetModel records the published model version and its losses
func (r *Recorder) SetModel(version int64, trainLoss, validationLoss float64) {
	r.modelVersion.Set(float64(version))
	r.trainingLoss.WithLabelValues("train").Set(trainLoss)
	r.trainingLoss.WithLabelValues("validation").Set(validationLoss)
}

func (r *Recorder) ObserveReorder(summary []domain.ReorderSummary) {
	for _, s := range summary {
		r.reorderItems.WithLabelValues(string(s.Urgency)).Set(float64(s.Count))
	}
}

func (r *Recorder) ObserveCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}
