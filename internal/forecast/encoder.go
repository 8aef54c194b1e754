package forecast

import (
	"math"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
)

// daysPerYear is not leap-year adjusted
const daysPerYear = 365.0

// Encoder converts consumption samples into feature vectors
type Encoder struct {
	Season Season
}

func NewEncoder(season Season) *Encoder {
	return &Encoder{Season: season}
}

// MaxConsumption returns the largest consumption in the window, never below 1
func MaxConsumption(samples []domain.ConsumptionSample) float64 {
	maxC := 0.0
	for _, s := range samples {
		maxC = math.Max(maxC, s.Consumption)
	}
	return math.Max(1, maxC)
}

// Encode builds one feature vector per sample and returns the normalization
// scalar used for the consumption feature.
func (e *Encoder) Encode(samples []domain.ConsumptionSample) ([]domain.FeatureVector, float64) {
	maxC := MaxConsumption(samples)
	vectors := make([]domain.FeatureVector, 0, len(samples))
	for _, s := range samples {
		vectors = append(vectors, e.Vector(s.Consumption/maxC, s.Date))
	}
	return vectors, maxC
}

// Vector builds a feature vector for a normalized consumption observed at date
func (e *Encoder) Vector(normalized float64, date time.Time) domain.FeatureVector {
	return domain.FeatureVector{
		NormalizedConsumption: clamp01(normalized),
		SeasonIndicator:       e.Season.Indicator(date),
		NormalizedDayOfYear:   NormalizedDayOfYear(date),
	}
}

// NormalizedDayOfYear maps a date onto [0,1) as dayOfYear/365. Day 366 of a
// leap year is folded onto the last regular day.
func NormalizedDayOfYear(t time.Time) float64 {
	doy := t.YearDay() - 1
	if doy >= daysPerYear {
		doy = daysPerYear - 1
	}
	return float64(doy) / daysPerYear
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
