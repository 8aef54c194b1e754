package domain

import "time"

// ReorderRecommendation is a purchase suggestion for an item nearing stockout
type ReorderRecommendation struct {
	ItemID                   string         `json:"item_id"`
	ItemName                 string         `json:"item_name"`
	Urgency                  Urgency        `json:"urgency"`
	DaysUntilStockout        int            `json:"days_until_stockout"`
	LeadTimeDays             int            `json:"lead_time_days"`
	CurrentStock             float64        `json:"current_stock"`
	RecommendedTarget        int            `json:"recommended_target"`
	RecommendedOrderQuantity int            `json:"recommended_order_quantity"`
	StockoutDate             *time.Time     `json:"stockout_date,omitempty"`
	Method                   ForecastMethod `json:"method"`
}

// ItemError records a per-item failure inside a batch operation
type ItemError struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// ReorderSummary counts recommendations per urgency
type ReorderSummary struct {
	Urgency Urgency `json:"urgency"`
	Count   int     `json:"count"`
}

// ReorderReport is the output of a reorder sweep across active items
type ReorderReport struct {
	Recommendations []ReorderRecommendation `json:"recommendations"`
	Summary         []ReorderSummary        `json:"summary"`
	Failures        []ItemError             `json:"failures"`
	ItemsChecked    int                     `json:"items_checked"`
	AsOf            time.Time               `json:"as_of"`
}
