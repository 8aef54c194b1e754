// internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/stockcast/internal/domain"
)

// InventoryRepository reads items and their stock-count history
type InventoryRepository interface {
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
	ListActiveItems(ctx context.Context) ([]*domain.Item, error)
	// GetStockCounts returns counts for the item at or after since, ordered by date ascending
	GetStockCounts(ctx context.Context, itemID string, since time.Time) ([]domain.StockCount, error)
	AppendStockCount(ctx context.Context, count domain.StockCount) error
}

// VendorRepository reads vendors, their price tiers and performance figures
type VendorRepository interface {
	GetVendor(ctx context.Context, vendorID string) (*domain.Vendor, error)
	ListActiveVendors(ctx context.Context) ([]*domain.Vendor, error)
	// GetPriceTiers returns every tier of the given items, or all tiers when itemIDs is empty
	GetPriceTiers(ctx context.Context, itemIDs []string) ([]domain.PriceTier, error)
	UpdateVendorMetrics(ctx context.Context, metrics domain.VendorMetrics) error
}

// OrderRepository reads delivered purchase orders
type OrderRepository interface {
	GetDeliveredOrders(ctx context.Context, since time.Time) ([]domain.DeliveredOrder, error)
}
