package forecast

import (
	"math"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
)

const hoursPerDay = 24.0

// AggregateConsumption turns raw stock counts (ordered by date) into
// consumption samples, one per consecutive pair with a positive time gap.
// Only net decreases count as consumption; increases are restocks.
// Counts older than lookbackWeeks before now are ignored when lookbackWeeks > 0.
// Fewer than two counts in the window yields an empty result.
func AggregateConsumption(counts []domain.StockCount, lookbackWeeks int, now time.Time) []domain.ConsumptionSample {
	window := counts
	if lookbackWeeks > 0 {
		cutoff := now.AddDate(0, 0, -7*lookbackWeeks)
		window = make([]domain.StockCount, 0, len(counts))
		for _, c := range counts {
			if c.CountedAt.Before(cutoff) {
				continue
			}
			window = append(window, c)
		}
	}

	if len(window) < 2 {
		return nil
	}

	samples := make([]domain.ConsumptionSample, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		prev, cur := window[i-1], window[i]
		days := cur.CountedAt.Sub(prev.CountedAt).Hours() / hoursPerDay
		if days <= 0 {
			continue
		}
		consumption := math.Max(0, prev.Count-cur.Count)
		samples = append(samples, domain.ConsumptionSample{
			Date:        cur.CountedAt,
			Consumption: consumption,
			DailyRate:   consumption / days,
			DaysBetween: days,
		})
	}

	return samples
}

// AverageDailyConsumption returns total consumption divided by the total
// days the samples span. Zero when there is nothing to average.
func AverageDailyConsumption(samples []domain.ConsumptionSample) float64 {
	var total, days float64
	for _, s := range samples {
		total += s.Consumption
		days += s.DaysBetween
	}
	if days <= 0 {
		return 0
	}
	return total / days
}

// WeeklyDemand folds consumption samples into consecutive 7-day periods
// ending at the last sample date. Each sample's consumption is spread evenly
// over the days it covers, so counts taken daily, weekly or irregularly all
// yield demand per week. A leading period only partly covered by samples is
// dropped.
func WeeklyDemand(samples []domain.ConsumptionSample) []domain.ConsumptionSample {
	if len(samples) == 0 {
		return nil
	}

	end := samples[len(samples)-1].Date
	coverageStart := sampleStart(samples[0])
	span := end.Sub(coverageStart).Hours() / hoursPerDay
	periods := int(math.Floor(span/daysPerWeek + 1e-9))
	if periods <= 0 {
		return nil
	}

	weeks := make([]domain.ConsumptionSample, periods)
	for i := range weeks {
		periodEnd := end.AddDate(0, 0, -daysPerWeek*(periods-1-i))
		weeks[i] = domain.ConsumptionSample{Date: periodEnd, DaysBetween: daysPerWeek}
	}

	for _, s := range samples {
		from, to := sampleStart(s), s.Date
		for i := range weeks {
			periodEnd := weeks[i].Date
			periodStart := periodEnd.AddDate(0, 0, -daysPerWeek)
			if !periodEnd.After(from) || !periodStart.Before(to) {
				continue
			}
			lo, hi := from, to
			if periodStart.After(lo) {
				lo = periodStart
			}
			if periodEnd.Before(hi) {
				hi = periodEnd
			}
			weeks[i].Consumption += s.DailyRate * hi.Sub(lo).Hours() / hoursPerDay
		}
	}

	for i := range weeks {
		weeks[i].DailyRate = weeks[i].Consumption / daysPerWeek
	}
	return weeks
}

func sampleStart(s domain.ConsumptionSample) time.Time {
	return s.Date.Add(-time.Duration(s.DaysBetween * hoursPerDay * float64(time.Hour)))
}
