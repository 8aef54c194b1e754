package forecast

import (
	"math"

	"github.com/andresuchdata/stockcast/internal/domain"
)

const (
	AnomalyWindow    = 4
	AnomalyThreshold = 0.4

	AnomalySpike = "spike"
	AnomalyDrop  = "drop"
)

// DetectAnomalies compares every sample with the moving average of the
// window samples before it and flags deviations larger than threshold
// (a fraction of the average). Windows averaging zero are skipped.
func DetectAnomalies(samples []domain.ConsumptionSample, window int, threshold float64) []domain.ConsumptionAnomaly {
	anomalies := []domain.ConsumptionAnomaly{}
	if window <= 0 || len(samples) <= window {
		return anomalies
	}

	for i := window; i < len(samples); i++ {
		var sum float64
		for _, s := range samples[i-window : i] {
			sum += s.Consumption
		}
		mean := sum / float64(window)
		if mean <= 0 {
			continue
		}

		current := samples[i].Consumption
		deviation := current - mean
		if math.Abs(deviation) <= mean*threshold {
			continue
		}

		kind := AnomalySpike
		if deviation < 0 {
			kind = AnomalyDrop
		}
		anomalies = append(anomalies, domain.ConsumptionAnomaly{
			Date:          samples[i].Date,
			Consumption:   current,
			MovingAverage: mean,
			DeviationPct:  deviation / mean * 100,
			Kind:          kind,
		})
	}
	return anomalies
}
