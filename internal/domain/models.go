package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store represents a store location receiving replenishment.
type Store struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Vendor represents a supplier purchase orders are raised against.
type Vendor struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// VendorSkuConfig maps a SKU to the vendor that owns it for ordering,
// with the pack and minimum-order constraints applied during rounding.
type VendorSkuConfig struct {
	ID              int64           `json:"id" db:"id"`
	VendorID        int64           `json:"vendor_id" db:"vendor_id"`
	SKU             string          `json:"sku" db:"sku"`
	UnitCost        decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	PackSize        int             `json:"pack_size" db:"pack_size"`
	MinOrderQty     int             `json:"min_order_qty" db:"min_order_qty"`
	IsDefaultVendor bool            `json:"is_default_vendor" db:"is_default_vendor"`
	Active          bool            `json:"active" db:"active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderingMathSetting holds the single global row of math defaults.
type OrderingMathSetting struct {
	ID                         int64     `json:"id" db:"id"`
	DefaultReorderWeeks        int       `json:"default_reorder_weeks" db:"default_reorder_weeks"`
	DefaultStockUpWeeks        int       `json:"default_stock_up_weeks" db:"default_stock_up_weeks"`
	DefaultHistoryLookbackDays int       `json:"default_history_lookback_days" db:"default_history_lookback_days"`
	CreatedAt                  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at" db:"updated_at"`
}

// VendorOrderingSetting overrides the global math defaults for one vendor.
type VendorOrderingSetting struct {
	VendorID            int64     `json:"vendor_id" db:"vendor_id"`
	ReorderWeeks        int       `json:"reorder_weeks" db:"reorder_weeks"`
	StockUpWeeks        int       `json:"stock_up_weeks" db:"stock_up_weeks"`
	HistoryLookbackDays int       `json:"history_lookback_days" db:"history_lookback_days"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// ParLevel stores per-(vendor, optional store, sku) ordering floors and
// ceilings. Manual values are human-set; suggested values are the engine's
// latest statistical output and only inform the human.
type ParLevel struct {
	ID                    int64            `json:"id" db:"id"`
	SKU                   string           `json:"sku" db:"sku"`
	VendorID              *int64           `json:"vendor_id" db:"vendor_id"`
	StoreID               *int64           `json:"store_id" db:"store_id"`
	ManualParLevel        *int             `json:"manual_par_level" db:"manual_par_level"`
	ManualStockUpLevel    *int             `json:"manual_stock_up_level" db:"manual_stock_up_level"`
	SuggestedParLevel     *int             `json:"suggested_par_level" db:"suggested_par_level"`
	SuggestedStockUpLevel *int             `json:"suggested_stock_up_level" db:"suggested_stock_up_level"`
	ParSource             ParLevelSource   `json:"par_source" db:"par_source"`
	ConfidenceScore       *decimal.Decimal `json:"confidence_score" db:"confidence_score"`
	ConfidenceState       ConfidenceState  `json:"confidence_state" db:"confidence_state"`
	LockedManual          bool             `json:"locked_manual" db:"locked_manual"`
	UpdatedByPrincipalID  *int64           `json:"updated_by_principal_id" db:"updated_by_principal_id"`
	CreatedAt             time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at" db:"updated_at"`
}

// PurchaseOrder is one vendor's order for a generation batch.
type PurchaseOrder struct {
	ID                     int64               `json:"id" db:"id"`
	VendorID               int64               `json:"vendor_id" db:"vendor_id"`
	Status                 PurchaseOrderStatus `json:"status" db:"status"`
	BatchRef               string              `json:"batch_ref" db:"batch_ref"`
	ReorderWeeks           int                 `json:"reorder_weeks" db:"reorder_weeks"`
	StockUpWeeks           int                 `json:"stock_up_weeks" db:"stock_up_weeks"`
	HistoryLookbackDays    int                 `json:"history_lookback_days" db:"history_lookback_days"`
	Notes                  *string             `json:"notes" db:"notes"`
	ExportPath             *string             `json:"export_path" db:"export_path"`
	CreatedByPrincipalID   int64               `json:"created_by_principal_id" db:"created_by_principal_id"`
	SubmittedByPrincipalID *int64              `json:"submitted_by_principal_id" db:"submitted_by_principal_id"`
	OrderedAt              *time.Time          `json:"ordered_at" db:"ordered_at"`
	SubmittedAt            *time.Time          `json:"submitted_at" db:"submitted_at"`
	CreatedAt              time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at" db:"updated_at"`
}

// PurchaseOrderSummary is a list-view projection joined with vendor name.
type PurchaseOrderSummary struct {
	ID          int64               `json:"id" db:"id"`
	VendorID    int64               `json:"vendor_id" db:"vendor_id"`
	VendorName  string              `json:"vendor_name" db:"vendor_name"`
	Status      PurchaseOrderStatus `json:"status" db:"status"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	SubmittedAt *time.Time          `json:"submitted_at" db:"submitted_at"`
	OrderedAt   *time.Time          `json:"ordered_at" db:"ordered_at"`
}

// PurchaseOrderLine aggregates one SKU across all stores on an order.
type PurchaseOrderLine struct {
	ID                int64            `json:"id" db:"id"`
	PurchaseOrderID   int64            `json:"purchase_order_id" db:"purchase_order_id"`
	SKU               string           `json:"sku" db:"sku"`
	ItemName          string           `json:"item_name" db:"item_name"`
	UnitCost          *decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	SuggestedQty      int              `json:"suggested_qty" db:"suggested_qty"`
	OrderedQty        int              `json:"ordered_qty" db:"ordered_qty"`
	ReceivedQtyTotal  int              `json:"received_qty_total" db:"received_qty_total"`
	InTransitQty      int              `json:"in_transit_qty" db:"in_transit_qty"`
	ConfidenceScore   decimal.Decimal  `json:"confidence_score" db:"confidence_score"`
	ConfidenceState   ConfidenceState  `json:"confidence_state" db:"confidence_state"`
	ParSource         ParLevelSource   `json:"par_source" db:"par_source"`
	ManualParLevel    *int             `json:"manual_par_level" db:"manual_par_level"`
	SuggestedParLevel *int             `json:"suggested_par_level" db:"suggested_par_level"`
	Removed           bool             `json:"removed" db:"removed"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// PurchaseOrderStoreAllocation is the per-store split of a line's aggregate
// quantity. VarianceQty tracks allocated minus expected.
type PurchaseOrderStoreAllocation struct {
	ID                  int64     `json:"id" db:"id"`
	PurchaseOrderLineID int64     `json:"purchase_order_line_id" db:"purchase_order_line_id"`
	StoreID             int64     `json:"store_id" db:"store_id"`
	ExpectedQty         int       `json:"expected_qty" db:"expected_qty"`
	AllocatedQty        int       `json:"allocated_qty" db:"allocated_qty"`
	ManualParLevel      *int      `json:"manual_par_level" db:"manual_par_level"`
	StoreReceivedQty    *int      `json:"store_received_qty" db:"store_received_qty"`
	VarianceQty         int       `json:"variance_qty" db:"variance_qty"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
