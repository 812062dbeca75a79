package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// InventoryProvider reads current stock from the store_inventory snapshot
// table. A missing row means the store has never stocked the sku.
type InventoryProvider struct {
	db *sqlx.DB
}

func NewInventoryProvider(db *sqlx.DB) *InventoryProvider {
	return &InventoryProvider{db: db}
}

func (p *InventoryProvider) OnHand(ctx context.Context, storeID int64, sku string) (decimal.Decimal, error) {
	var onHand decimal.Decimal
	err := p.db.GetContext(ctx, &onHand,
		`SELECT on_hand_qty FROM store_inventory WHERE store_id = $1 AND sku = $2`,
		storeID, sku,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load on-hand stock: %w", err)
	}
	return onHand, nil
}
