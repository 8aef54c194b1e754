package domain

import (
	"fmt"
	"time"
)

// ConsumptionSample is the net decrease in stock between two consecutive counts
type ConsumptionSample struct {
	Date        time.Time `json:"date"`
	Consumption float64   `json:"consumption"`
	DailyRate   float64   `json:"daily_rate"`
	DaysBetween float64   `json:"days_between"`
}

// FeatureVector is one encoded time step fed to the sequence predictor
type FeatureVector struct {
	NormalizedConsumption float64 `json:"normalized_consumption"`
	SeasonIndicator       float64 `json:"season_indicator"`
	NormalizedDayOfYear   float64 `json:"normalized_day_of_year"`
}

// Validate checks the encoded ranges
func (f FeatureVector) Validate() error {
	if f.NormalizedConsumption < 0 || f.NormalizedConsumption > 1 {
		return fmt.Errorf("normalized consumption %v out of [0,1]", f.NormalizedConsumption)
	}
	if f.SeasonIndicator != 0 && f.SeasonIndicator != 1 {
		return fmt.Errorf("season indicator must be 0 or 1, got %v", f.SeasonIndicator)
	}
	if f.NormalizedDayOfYear < 0 || f.NormalizedDayOfYear >= 1 {
		return fmt.Errorf("normalized day of year %v out of [0,1)", f.NormalizedDayOfYear)
	}
	return nil
}

// Values returns the vector as model inputs in a fixed order
func (f FeatureVector) Values() [3]float64 {
	return [3]float64{f.NormalizedConsumption, f.SeasonIndicator, f.NormalizedDayOfYear}
}

// TrainingExample is a sliding window over one item's feature series
type TrainingExample struct {
	ItemID   string          `json:"item_id"`
	Sequence []FeatureVector `json:"sequence"`
	Target   float64         `json:"target"`
}

// ForecastMethod identifies which predictor produced a forecast
type ForecastMethod string

const (
	MethodModel    ForecastMethod = "model"
	MethodFallback ForecastMethod = "fallback"
)

// ForecastPoint is one projected week
type ForecastPoint struct {
	WeekIndex        int       `json:"week_index"`
	Date             time.Time `json:"date"`
	PredictedDemand  float64   `json:"predicted_demand"`
	CumulativeDemand float64   `json:"cumulative_demand"`
	ProjectedStock   float64   `json:"projected_stock"`
}

// ForecastSummary aggregates a forecast into stocking figures
type ForecastSummary struct {
	TotalPredictedDemand float64    `json:"total_predicted_demand"`
	AvgDailyDemand       float64    `json:"avg_daily_demand"`
	DaysUntilStockout    *int       `json:"days_until_stockout"`
	RecommendedMinimum   int        `json:"recommended_minimum"`
	RecommendedTarget    int        `json:"recommended_target"`
	StockoutDate         *time.Time `json:"stockout_date"`
}

// ForecastResult is the report returned for a single item
type ForecastResult struct {
	ItemID              string          `json:"item_id"`
	Method              ForecastMethod  `json:"method"`
	CurrentStock        float64         `json:"current_stock"`
	DaysAhead           int             `json:"days_ahead"`
	ModelVersion        int64           `json:"model_version,omitempty"`
	InsufficientHistory bool            `json:"insufficient_history"`
	Predictions         []ForecastPoint `json:"predictions"`
	Summary             ForecastSummary `json:"summary"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

// BatchForecastEntry carries either a forecast or the error raised for one item
type BatchForecastEntry struct {
	ItemID   string          `json:"item_id"`
	Forecast *ForecastResult `json:"forecast,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// ConsumptionAnomaly flags a sample that deviates from its trailing average
type ConsumptionAnomaly struct {
	Date          time.Time `json:"date"`
	Consumption   float64   `json:"consumption"`
	MovingAverage float64   `json:"moving_average"`
	DeviationPct  float64   `json:"deviation_pct"`
	Kind          string    `json:"kind"` // "spike" or "drop"
}
