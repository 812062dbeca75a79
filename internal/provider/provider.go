// Package provider defines the external data contracts the engine consumes:
// sales history and current on-hand stock. Concrete implementations (POS
// backed, order-history backed, static) are injected at startup.
package provider

import (
	"context"

	"github.com/shopspring/decimal"
)

// SalesHistoryProvider returns a daily units-sold series for a
// (vendor, store, sku) tuple, most-recent-last, at most lookbackDays long.
type SalesHistoryProvider interface {
	DailyUnits(ctx context.Context, vendorID, storeID int64, sku string, lookbackDays int) ([]decimal.Decimal, error)
}

// OnHandProvider returns current stock for a (store, sku) tuple. Unknown or
// negative stock is treated as zero by the engine.
type OnHandProvider interface {
	OnHand(ctx context.Context, storeID int64, sku string) (decimal.Decimal, error)
}
