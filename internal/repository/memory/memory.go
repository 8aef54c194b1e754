// Package memory provides map-backed repositories for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/andresuchdata/stockcast/internal/repository"
)

// Store implements every repository interface over in-process maps
type Store struct {
	mu      sync.RWMutex
	items   map[string]domain.Item
	counts  map[string][]domain.StockCount
	vendors map[string]domain.Vendor
	tiers   []domain.PriceTier
	orders  []domain.DeliveredOrder
}

func NewStore() *Store {
	return &Store{
		items:   make(map[string]domain.Item),
		counts:  make(map[string][]domain.StockCount),
		vendors: make(map[string]domain.Vendor),
	}
}

func (s *Store) PutItem(item domain.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

func (s *Store) PutVendor(v domain.Vendor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendors[v.ID] = v
}

func (s *Store) PutPriceTier(t domain.PriceTier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers = append(s.tiers, t)
}

func (s *Store) PutDeliveredOrder(o domain.DeliveredOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
}

func (s *Store) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, domain.ItemNotFound(itemID)
	}
	return &item, nil
}

func (s *Store) ListActiveItems(ctx context.Context) ([]*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []*domain.Item
	for _, item := range s.items {
		if !item.Active {
			continue
		}
		item := item
		items = append(items, &item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) GetStockCounts(ctx context.Context, itemID string, since time.Time) ([]domain.StockCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StockCount
	for _, c := range s.counts[itemID] {
		if c.CountedAt.Before(since) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CountedAt.Before(out[j].CountedAt) })
	return out, nil
}

func (s *Store) AppendStockCount(ctx context.Context, count domain.StockCount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[count.ItemID] = append(s.counts[count.ItemID], count)
	return nil
}

func (s *Store) GetVendor(ctx context.Context, vendorID string) (*domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vendors[vendorID]
	if !ok {
		return nil, domain.VendorNotFound(vendorID)
	}
	return &v, nil
}

func (s *Store) ListActiveVendors(ctx context.Context) ([]*domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var vendors []*domain.Vendor
	for _, v := range s.vendors {
		if !v.Active {
			continue
		}
		v := v
		vendors = append(vendors, &v)
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i].ID < vendors[j].ID })
	return vendors, nil
}

func (s *Store) GetPriceTiers(ctx context.Context, itemIDs []string) ([]domain.PriceTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}
	var out []domain.PriceTier
	for _, t := range s.tiers {
		if len(wanted) > 0 && !wanted[t.ItemID] {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) UpdateVendorMetrics(ctx context.Context, m domain.VendorMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vendors[m.VendorID]
	if !ok {
		return domain.VendorNotFound(m.VendorID)
	}
	updated := m.UpdatedAt
	v.AvgLeadTimeDays = m.AvgLeadTimeDays
	v.OnTimeRate = m.OnTimeRate
	v.MetricsUpdatedAt = &updated
	s.vendors[m.VendorID] = v
	return nil
}

func (s *Store) GetDeliveredOrders(ctx context.Context, since time.Time) ([]domain.DeliveredOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DeliveredOrder
	for _, o := range s.orders {
		if o.DeliveredAt.Before(since) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

var (
	_ repository.InventoryRepository = (*Store)(nil)
	_ repository.VendorRepository    = (*Store)(nil)
	_ repository.OrderRepository     = (*Store)(nil)
)
