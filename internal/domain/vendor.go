package domain

// VendorOption is a scored vendor candidate. Scores are only comparable
// within the invocation that produced them.
type VendorOption struct {
	VendorID           string  `json:"vendor_id"`
	VendorName         string  `json:"vendor_name"`
	UnitPrice          float64 `json:"unit_price"`
	TotalCost          float64 `json:"total_cost"`
	LeadTimeDays       float64 `json:"lead_time_days"`
	ReliabilityPercent float64 `json:"reliability_percent"`
	PriceScore         float64 `json:"price_score"`
	SpeedScore         float64 `json:"speed_score"`
	ReliabilityScore   float64 `json:"reliability_score"`
	CompositeScore     float64 `json:"composite_score"`
}

// OrderLine is one requested item in a bulk order
type OrderLine struct {
	ItemID   string  `json:"item_id" validate:"required"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
}

// PricedLine is an order line priced at a vendor's selected tier
type PricedLine struct {
	ItemID    string  `json:"item_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineCost  float64 `json:"line_cost"`
}

// VendorPlan is a single-vendor candidate covering every requested item
type VendorPlan struct {
	VendorOption
	Lines []PricedLine `json:"lines"`
}

// SubOrder is the portion of a split order assigned to one vendor
type SubOrder struct {
	VendorID     string       `json:"vendor_id"`
	VendorName   string       `json:"vendor_name"`
	LeadTimeDays float64      `json:"lead_time_days"`
	Lines        []PricedLine `json:"lines"`
	TotalCost    float64      `json:"total_cost"`
}

// BulkOrderPlan is either a ranked single-vendor plan or a split order
type BulkOrderPlan struct {
	Preference         PreferenceProfile `json:"preference"`
	SplitOrderRequired bool              `json:"split_order_required"`
	Recommended        *VendorPlan       `json:"recommended,omitempty"`
	Candidates         []VendorPlan      `json:"candidates,omitempty"`
	SubOrders          []SubOrder        `json:"sub_orders,omitempty"`
	TotalCost          float64           `json:"total_cost"`
}
