// internal/domain/models.go
package domain

import "time"

// Item represents an inventory item tracked by the forecasting engine
type Item struct {
	ID                string    `json:"id" db:"id"`
	SKU               string    `json:"sku" db:"sku"`
	Name              string    `json:"name" db:"name"`
	CurrentStock      float64   `json:"current_stock" db:"current_stock"`
	MinimumStock      float64   `json:"minimum_stock" db:"minimum_stock"`
	LeadTimeDays      int       `json:"lead_time_days" db:"lead_time_days"`
	Active            bool      `json:"active" db:"active"`
	PreferredVendorID *string   `json:"preferred_vendor_id,omitempty" db:"preferred_vendor_id"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// StockCount is a point-in-time physical count of an item
type StockCount struct {
	ItemID    string    `json:"item_id" db:"item_id"`
	Count     float64   `json:"count" db:"count"`
	CountedAt time.Time `json:"counted_at" db:"counted_at"`
}

// Vendor represents a supplier that can fulfil purchase orders
type Vendor struct {
	ID               string     `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	Active           bool       `json:"active" db:"active"`
	LeadTimeDays     int        `json:"lead_time_days" db:"lead_time_days"`
	AvgLeadTimeDays  float64    `json:"avg_lead_time_days" db:"avg_lead_time_days"`
	OnTimeRate       float64    `json:"on_time_rate" db:"on_time_rate"` // Percentage (0-100)
	MetricsUpdatedAt *time.Time `json:"metrics_updated_at,omitempty" db:"metrics_updated_at"`
}

// EffectiveLeadTime returns the measured average lead time when known,
// otherwise the quoted lead time.
func (v Vendor) EffectiveLeadTime() float64 {
	if v.AvgLeadTimeDays > 0 {
		return v.AvgLeadTimeDays
	}
	return float64(v.LeadTimeDays)
}

// ReliabilityPercent returns the on-time rate clamped to 0-100. Vendors
// without delivery history are treated as fully reliable.
func (v Vendor) ReliabilityPercent() float64 {
	if v.MetricsUpdatedAt == nil {
		return 100
	}
	switch {
	case v.OnTimeRate < 0:
		return 0
	case v.OnTimeRate > 100:
		return 100
	}
	return v.OnTimeRate
}

// PriceTier is a volume-discount price offered by a vendor for an item
type PriceTier struct {
	VendorID    string     `json:"vendor_id" db:"vendor_id"`
	ItemID      string     `json:"item_id" db:"item_id"`
	UnitPrice   float64    `json:"unit_price" db:"unit_price"`
	MinQuantity float64    `json:"min_quantity" db:"min_quantity"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// Expired reports whether the tier is no longer valid at now
func (p PriceTier) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// DeliveredOrder is a purchase order that has been received
type DeliveredOrder struct {
	ID           string    `json:"id" db:"id"`
	VendorID     string    `json:"vendor_id" db:"vendor_id"`
	OrderedAt    time.Time `json:"ordered_at" db:"ordered_at"`
	ExpectedAt   time.Time `json:"expected_at" db:"expected_at"`
	DeliveredAt  time.Time `json:"delivered_at" db:"delivered_at"`
	TotalAmount  float64   `json:"total_amount" db:"total_amount"`
	ItemQuantity float64   `json:"item_quantity" db:"item_quantity"`
}

// VendorMetrics holds performance figures derived from delivered orders
type VendorMetrics struct {
	VendorID        string    `json:"vendor_id" db:"vendor_id"`
	AvgLeadTimeDays float64   `json:"avg_lead_time_days" db:"avg_lead_time_days"`
	OnTimeRate      float64   `json:"on_time_rate" db:"on_time_rate"`
	DeliveredOrders int       `json:"delivered_orders" db:"delivered_orders"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
