package repository

import (
	"context"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/ordering"
)

// VendorSKU keys par levels and vendor SKU mappings.
type VendorSKU struct {
	VendorID int64
	SKU      string
}

// VendorStoreSKU keys open in-transit quantities.
type VendorStoreSKU struct {
	VendorID int64
	StoreID  int64
	SKU      string
}

// OrderingRepository exposes the read-side data the recommendation generator
// needs. It never mutates anything.
type OrderingRepository interface {
	// ActiveStoreIDs lists every active store, ascending by id.
	ActiveStoreIDs(ctx context.Context) ([]int64, error)

	// SelectedVendorSKUs returns the active, default-vendor SKU mappings for
	// the given vendors, grouped by vendor.
	SelectedVendorSKUs(ctx context.Context, vendorIDs []int64) (map[int64][]domain.VendorSkuConfig, error)

	// OpenInTransit sums allocated quantities per (vendor, store, sku)
	// across orders in IN_TRANSIT or RECEIVED_SPLIT_PENDING whose lines are
	// not removed.
	OpenInTransit(ctx context.Context, vendorIDs []int64) (map[VendorStoreSKU]int, error)

	// ParLevels returns stored par levels per (vendor, sku).
	ParLevels(ctx context.Context, vendorIDs []int64) (map[VendorSKU]domain.ParLevel, error)

	// MathDefaults returns the global math parameter row, creating the
	// default row on first use.
	MathDefaults(ctx context.Context) (ordering.Params, error)

	// VendorMathParams returns the vendor-level override, or nil when the
	// vendor has none.
	VendorMathParams(ctx context.Context, vendorID int64) (*ordering.Params, error)
}
