// Package reorder sweeps active items and flags the ones that will run out
// before a new order could arrive.
package reorder

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/forecast"
	"github.com/andresuchdata/stockcast/internal/repository"
)

// ForecastSource produces a forecast for one item
type ForecastSource interface {
	GenerateForecast(ctx context.Context, itemID string, daysAhead int) (*domain.ForecastResult, error)
}

// AlertPublisher hands critical recommendations to the notification side
type AlertPublisher interface {
	PublishReorderAlerts(ctx context.Context, recs []domain.ReorderRecommendation) error
}

type Config struct {
	HorizonDays int
	SafetyDays  int
	Workers     int
}

type Recommender struct {
	items     repository.InventoryRepository
	forecasts ForecastSource
	publisher AlertPublisher
	cfg       Config
	now       func() time.Time
}

func NewRecommender(items repository.InventoryRepository, forecasts ForecastSource, publisher AlertPublisher, cfg Config) *Recommender {
	return &Recommender{
		items:     items,
		forecasts: forecasts,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithClock overrides time.Now for report timestamps
func (r *Recommender) WithClock(now func() time.Time) *Recommender {
	r.now = now
	return r
}

// GetReorderRecommendations forecasts every active item and keeps the ones
// due for reorder, soonest stockout first. Items whose forecast fails are
// listed in Failures and do not stop the sweep.
func (r *Recommender) GetReorderRecommendations(ctx context.Context) (*domain.ReorderReport, error) {
	items, err := r.items.ListActiveItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active items: %w", err)
	}

	var (
		mu       sync.Mutex
		recs     []domain.ReorderRecommendation
		failures []domain.ItemError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.cfg.Workers))
	for _, item := range items {
		g.Go(func() error {
			fc, err := r.forecasts.GenerateForecast(gctx, item.ID, r.cfg.HorizonDays)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Str("item_id", item.ID).Err(err).Msg("reorder: forecast failed")
				failures = append(failures, domain.ItemError{ItemID: item.ID, Error: err.Error()})
				return nil
			}
			if rec, ok := Evaluate(item, fc, r.cfg.SafetyDays); ok {
				recs = append(recs, rec)
			}
			return nil
		})
	}
	_ = g.Wait()

	SortRecommendations(recs)
	sort.Slice(failures, func(i, j int) bool { return failures[i].ItemID < failures[j].ItemID })

	report := &domain.ReorderReport{
		Recommendations: nonNil(recs),
		Summary:         summarize(recs),
		Failures:        nonNil(failures),
		ItemsChecked:    len(items),
		AsOf:            forecast.StartOfDay(r.now()),
	}

	if r.publisher != nil {
		if critical := Critical(recs); len(critical) > 0 {
			if err := r.publisher.PublishReorderAlerts(ctx, critical); err != nil {
				log.Error().Err(err).Int("alerts", len(critical)).Msg("reorder: publish alerts failed")
			}
		}
	}

	return report, nil
}

// Evaluate decides whether an item is due for reorder. Items without a
// stockout estimate are never due. The order quantity is clamped at zero.
func Evaluate(item *domain.Item, fc *domain.ForecastResult, safetyDays int) (domain.ReorderRecommendation, bool) {
	days := fc.Summary.DaysUntilStockout
	if days == nil || *days > item.LeadTimeDays+safetyDays {
		return domain.ReorderRecommendation{}, false
	}

	urgency := domain.UrgencyHigh
	if *days <= item.LeadTimeDays {
		urgency = domain.UrgencyCritical
	}

	qty := int(math.Max(0, math.Ceil(float64(fc.Summary.RecommendedTarget)-fc.CurrentStock)))

	return domain.ReorderRecommendation{
		ItemID:                   item.ID,
		ItemName:                 item.Name,
		Urgency:                  urgency,
		DaysUntilStockout:        *days,
		LeadTimeDays:             item.LeadTimeDays,
		CurrentStock:             fc.CurrentStock,
		RecommendedTarget:        fc.Summary.RecommendedTarget,
		RecommendedOrderQuantity: qty,
		StockoutDate:             fc.Summary.StockoutDate,
		Method:                   fc.Method,
	}, true
}

// SortRecommendations orders by days until stockout, then item id
func SortRecommendations(recs []domain.ReorderRecommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].DaysUntilStockout != recs[j].DaysUntilStockout {
			return recs[i].DaysUntilStockout < recs[j].DaysUntilStockout
		}
		return recs[i].ItemID < recs[j].ItemID
	})
}

// Critical filters the critical recommendations
func Critical(recs []domain.ReorderRecommendation) []domain.ReorderRecommendation {
	var out []domain.ReorderRecommendation
	for _, rec := range recs {
		if rec.Urgency == domain.UrgencyCritical {
			out = append(out, rec)
		}
	}
	return out
}

func summarize(recs []domain.ReorderRecommendation) []domain.ReorderSummary {
	counts := map[domain.Urgency]int{}
	for _, rec := range recs {
		counts[rec.Urgency]++
	}
	return []domain.ReorderSummary{
		{Urgency: domain.UrgencyCritical, Count: counts[domain.UrgencyCritical]},
		{Urgency: domain.UrgencyHigh, Count: counts[domain.UrgencyHigh]},
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
