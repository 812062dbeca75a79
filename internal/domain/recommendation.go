package domain

import "github.com/shopspring/decimal"

// RecommendationPreviewLine is the per-(vendor, store, sku) output of a dry-run
// generation, before anything is written to a purchase order.
type RecommendationPreviewLine struct {
	VendorID              int64           `json:"vendor_id"`
	StoreID               int64           `json:"store_id"`
	SKU                   string          `json:"sku"`
	AvgWeeklyUnits        decimal.Decimal `json:"avg_weekly_units"`
	EffectiveReorderLevel int             `json:"effective_reorder_level"`
	EffectiveStockUpLevel int             `json:"effective_stock_up_level"`
	RoundedRecommendedQty int             `json:"rounded_recommended_qty"`
	ConfidenceScore       decimal.Decimal `json:"confidence_score"`
	ConfidenceState       ConfidenceState `json:"confidence_state"`
	ParSource             ParLevelSource  `json:"par_source"`
}
