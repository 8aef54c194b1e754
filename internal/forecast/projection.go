package forecast

import (
	"math"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
)

const daysPerWeek = 7

// Predictor maps a feature window to the next normalized demand value
type Predictor interface {
	Predict(window []domain.FeatureVector) float64
}

// PredictorFunc adapts a plain function to Predictor
type PredictorFunc func(window []domain.FeatureVector) float64

func (f PredictorFunc) Predict(window []domain.FeatureVector) float64 {
	return f(window)
}

// Steps returns the number of weekly steps covering daysAhead
func Steps(daysAhead int) int {
	if daysAhead <= 0 {
		return 0
	}
	return int(math.Ceil(float64(daysAhead) / daysPerWeek))
}

// WeekDate returns the date of the zero-based step i
func WeekDate(start time.Time, i int) time.Time {
	return start.AddDate(0, 0, daysPerWeek*(i+1))
}

// ProjectWeeks runs the predictor steps times. After every step the oldest
// vector leaves the window and a vector built from the prediction and the
// step's date joins it, so each week feeds the next. Returned values are
// weekly demand in real units (prediction * scale). The input window is not
// modified.
func ProjectWeeks(p Predictor, enc *Encoder, window []domain.FeatureVector, scale float64, start time.Time, steps int) []float64 {
	cur := make([]domain.FeatureVector, len(window))
	copy(cur, window)

	weekly := make([]float64, 0, steps)
	for i := 0; i < steps; i++ {
		normalized := clamp01(p.Predict(cur))
		weekly = append(weekly, normalized*scale)

		next := enc.Vector(normalized, WeekDate(start, i))
		if len(cur) > 0 {
			cur = append(cur[1:], next)
		}
	}
	return weekly
}

// ConstantWeeks is the fallback projection: the same weekly demand every step
func ConstantWeeks(avgDaily float64, steps int) []float64 {
	weekly := make([]float64, steps)
	for i := range weekly {
		weekly[i] = math.Max(0, avgDaily) * daysPerWeek
	}
	return weekly
}

// BuildPoints accumulates weekly demand into forecast points
func BuildPoints(weekly []float64, currentStock float64, start time.Time) []domain.ForecastPoint {
	points := make([]domain.ForecastPoint, 0, len(weekly))
	cumulative := 0.0
	for i, demand := range weekly {
		cumulative += demand
		points = append(points, domain.ForecastPoint{
			WeekIndex:        i + 1,
			Date:             WeekDate(start, i),
			PredictedDemand:  demand,
			CumulativeDemand: cumulative,
			ProjectedStock:   currentStock - cumulative,
		})
	}
	return points
}

// StockPlanner turns projected demand into stocking figures
type StockPlanner struct {
	Season           Season
	BaseDaysSupply   float64
	TargetMultiplier float64
	SeasonalBuffer   float64
}

// Summarize derives the forecast summary from the cumulative demand over
// daysAhead days as seen on date now.
func (sp StockPlanner) Summarize(cumulative, currentStock float64, daysAhead int, now time.Time) domain.ForecastSummary {
	summary := domain.ForecastSummary{TotalPredictedDemand: cumulative}

	// 1. Average daily demand over the requested horizon
	if daysAhead > 0 {
		summary.AvgDailyDemand = cumulative / float64(daysAhead)
	}

	// 2. Days until stockout, undefined without demand
	if summary.AvgDailyDemand > 0 {
		days := int(math.Floor(math.Max(0, currentStock) / summary.AvgDailyDemand))
		stockout := StartOfDay(now).AddDate(0, 0, days)
		summary.DaysUntilStockout = &days
		summary.StockoutDate = &stockout
	}

	// 3. Minimum stock covers the base supply, padded in busy season
	buffer := 1.0
	if sp.Season.Contains(now) {
		buffer = sp.SeasonalBuffer
	}
	summary.RecommendedMinimum = ceilUnits(summary.AvgDailyDemand * sp.BaseDaysSupply * buffer)

	// 4. Target stock
	summary.RecommendedTarget = ceilUnits(float64(summary.RecommendedMinimum) * sp.TargetMultiplier)

	return summary
}

// ceilUnits rounds up to whole units, ignoring float noise below 1e-9
func ceilUnits(v float64) int {
	return int(math.Ceil(v - 1e-9))
}

// StartOfDay drops the clock time from t, keeping its location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
