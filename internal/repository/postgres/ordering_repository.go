package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/ordering"
	"github.com/andresuchdata/replenish/internal/repository"
)

type orderingRepository struct {
	db *DB
}

func NewOrderingRepository(db *DB) repository.OrderingRepository {
	return &orderingRepository{db: db}
}

func (r *orderingRepository) ActiveStoreIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	query := `SELECT id FROM stores WHERE active = TRUE ORDER BY id ASC`
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list active stores: %w", err)
	}
	return ids, nil
}

func (r *orderingRepository) SelectedVendorSKUs(ctx context.Context, vendorIDs []int64) (map[int64][]domain.VendorSkuConfig, error) {
	if len(vendorIDs) == 0 {
		return map[int64][]domain.VendorSkuConfig{}, nil
	}

	query := `
		SELECT id, vendor_id, sku, unit_cost, pack_size, min_order_qty,
		       is_default_vendor, active, created_at, updated_at
		FROM vendor_sku_configs
		WHERE vendor_id = ANY($1)
		  AND active = TRUE
		  AND is_default_vendor = TRUE
		ORDER BY vendor_id ASC, sku ASC
	`

	var rows []domain.VendorSkuConfig
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(vendorIDs)); err != nil {
		return nil, fmt.Errorf("failed to list vendor sku configs: %w", err)
	}

	byVendor := make(map[int64][]domain.VendorSkuConfig)
	for _, row := range rows {
		byVendor[row.VendorID] = append(byVendor[row.VendorID], row)
	}
	return byVendor, nil
}

type inTransitRow struct {
	VendorID int64  `db:"vendor_id"`
	StoreID  int64  `db:"store_id"`
	SKU      string `db:"sku"`
	Qty      int    `db:"open_in_transit_qty"`
}

func (r *orderingRepository) OpenInTransit(ctx context.Context, vendorIDs []int64) (map[repository.VendorStoreSKU]int, error) {
	if len(vendorIDs) == 0 {
		return map[repository.VendorStoreSKU]int{}, nil
	}

	query := `
		SELECT po.vendor_id, a.store_id, l.sku,
		       COALESCE(SUM(a.allocated_qty), 0) AS open_in_transit_qty
		FROM purchase_orders po
		JOIN purchase_order_lines l ON l.purchase_order_id = po.id
		JOIN purchase_order_store_allocations a ON a.purchase_order_line_id = l.id
		WHERE po.vendor_id = ANY($1)
		  AND po.status IN ('IN_TRANSIT', 'RECEIVED_SPLIT_PENDING')
		  AND l.removed = FALSE
		GROUP BY po.vendor_id, a.store_id, l.sku
	`

	var rows []inTransitRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(vendorIDs)); err != nil {
		return nil, fmt.Errorf("failed to sum open in-transit quantities: %w", err)
	}

	out := make(map[repository.VendorStoreSKU]int, len(rows))
	for _, row := range rows {
		out[repository.VendorStoreSKU{VendorID: row.VendorID, StoreID: row.StoreID, SKU: row.SKU}] = row.Qty
	}
	return out, nil
}

func (r *orderingRepository) ParLevels(ctx context.Context, vendorIDs []int64) (map[repository.VendorSKU]domain.ParLevel, error) {
	if len(vendorIDs) == 0 {
		return map[repository.VendorSKU]domain.ParLevel{}, nil
	}

	query := `
		SELECT id, sku, vendor_id, store_id, manual_par_level, manual_stock_up_level,
		       suggested_par_level, suggested_stock_up_level, par_source,
		       confidence_score, confidence_state, locked_manual,
		       updated_by_principal_id, created_at, updated_at
		FROM par_levels
		WHERE vendor_id = ANY($1)
	`

	var rows []domain.ParLevel
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(vendorIDs)); err != nil {
		return nil, fmt.Errorf("failed to list par levels: %w", err)
	}

	out := make(map[repository.VendorSKU]domain.ParLevel, len(rows))
	for _, row := range rows {
		if row.VendorID == nil {
			continue
		}
		out[repository.VendorSKU{VendorID: *row.VendorID, SKU: row.SKU}] = row
	}
	return out, nil
}

func (r *orderingRepository) MathDefaults(ctx context.Context) (ordering.Params, error) {
	query := `
		SELECT default_reorder_weeks, default_stock_up_weeks, default_history_lookback_days
		FROM ordering_math_settings
		WHERE id = 1
	`

	var row struct {
		ReorderWeeks        int `db:"default_reorder_weeks"`
		StockUpWeeks        int `db:"default_stock_up_weeks"`
		HistoryLookbackDays int `db:"default_history_lookback_days"`
	}
	err := r.db.GetContext(ctx, &row, query)
	if errors.Is(err, sql.ErrNoRows) {
		insert := `
			INSERT INTO ordering_math_settings (id, default_reorder_weeks, default_stock_up_weeks, default_history_lookback_days)
			VALUES (1, 5, 10, 120)
			ON CONFLICT (id) DO NOTHING
		`
		if _, err := r.db.ExecContext(ctx, insert); err != nil {
			return ordering.Params{}, fmt.Errorf("failed to seed math defaults: %w", err)
		}
		return ordering.Params{ReorderWeeks: 5, StockUpWeeks: 10, HistoryLookbackDays: 120}, nil
	}
	if err != nil {
		return ordering.Params{}, fmt.Errorf("failed to load math defaults: %w", err)
	}
	return ordering.Params{
		ReorderWeeks:        row.ReorderWeeks,
		StockUpWeeks:        row.StockUpWeeks,
		HistoryLookbackDays: row.HistoryLookbackDays,
	}, nil
}

func (r *orderingRepository) VendorMathParams(ctx context.Context, vendorID int64) (*ordering.Params, error) {
	query := `
		SELECT reorder_weeks, stock_up_weeks, history_lookback_days
		FROM vendor_ordering_settings
		WHERE vendor_id = $1
	`

	var row struct {
		ReorderWeeks        int `db:"reorder_weeks"`
		StockUpWeeks        int `db:"stock_up_weeks"`
		HistoryLookbackDays int `db:"history_lookback_days"`
	}
	err := r.db.GetContext(ctx, &row, query, vendorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vendor ordering settings: %w", err)
	}
	return &ordering.Params{
		ReorderWeeks:        row.ReorderWeeks,
		StockUpWeeks:        row.StockUpWeeks,
		HistoryLookbackDays: row.HistoryLookbackDays,
	}, nil
}
