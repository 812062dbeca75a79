package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/repository"
)

// advisoryLockClass namespaces the per-vendor generation lock.
const advisoryLockClass = 4217

type purchaseOrderRepository struct {
	db *DB
}

func NewPurchaseOrderRepository(db *DB) repository.PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

func (r *purchaseOrderRepository) InTx(ctx context.Context, fn func(ctx context.Context, store repository.PurchaseOrderStore) error) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(ctx, &purchaseOrderStore{tx: tx})
	})
}

func (r *purchaseOrderRepository) GetOrder(ctx context.Context, orderID int64) (*domain.PurchaseOrder, error) {
	return getOrder(ctx, r.db, orderID)
}

func (r *purchaseOrderRepository) OrderSummaries(ctx context.Context, limit int) ([]domain.PurchaseOrderSummary, error) {
	query := `
		SELECT po.id, po.vendor_id, v.name AS vendor_name, po.status,
		       po.created_at, po.submitted_at, po.ordered_at
		FROM purchase_orders po
		JOIN vendors v ON v.id = po.vendor_id
		ORDER BY po.created_at DESC
		LIMIT $1
	`

	var summaries []domain.PurchaseOrderSummary
	if err := r.db.SelectContext(ctx, &summaries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	return summaries, nil
}

func (r *purchaseOrderRepository) OrderLines(ctx context.Context, orderID int64) ([]domain.PurchaseOrderLine, error) {
	return orderLines(ctx, r.db, orderID)
}

func (r *purchaseOrderRepository) AllocationsByOrder(ctx context.Context, orderID int64) (map[int64][]domain.PurchaseOrderStoreAllocation, error) {
	return allocationsByOrder(ctx, r.db, orderID)
}

func (r *purchaseOrderRepository) VendorName(ctx context.Context, vendorID int64) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name, `SELECT name FROM vendors WHERE id = $1`, vendorID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("vendor %d: %w", vendorID, repository.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load vendor name: %w", err)
	}
	return name, nil
}

// purchaseOrderStore is the transactional implementation.
type purchaseOrderStore struct {
	tx *sqlx.Tx
}

func (s *purchaseOrderStore) LockVendor(ctx context.Context, vendorID int64) error {
	_, err := s.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1::int, $2::int)`, advisoryLockClass, vendorID)
	if err != nil {
		return fmt.Errorf("failed to acquire vendor lock: %w", err)
	}
	return nil
}

func (s *purchaseOrderStore) CreateOrder(ctx context.Context, po *domain.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (
			vendor_id, status, batch_ref, reorder_weeks, stock_up_weeks,
			history_lookback_days, notes, created_by_principal_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := s.tx.QueryRowContext(ctx, query,
		po.VendorID, po.Status, po.BatchRef, po.ReorderWeeks, po.StockUpWeeks,
		po.HistoryLookbackDays, po.Notes, po.CreatedByPrincipalID, po.CreatedAt, po.UpdatedAt,
	).Scan(&po.ID)
	if err != nil {
		return fmt.Errorf("failed to insert purchase order: %w", err)
	}
	return nil
}

func (s *purchaseOrderStore) CreateLine(ctx context.Context, line *domain.PurchaseOrderLine) error {
	query := `
		INSERT INTO purchase_order_lines (
			purchase_order_id, sku, item_name, unit_cost, suggested_qty, ordered_qty,
			received_qty_total, in_transit_qty, confidence_score, confidence_state,
			par_source, manual_par_level, suggested_par_level, removed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`
	err := s.tx.QueryRowContext(ctx, query,
		line.PurchaseOrderID, line.SKU, line.ItemName, line.UnitCost, line.SuggestedQty,
		line.OrderedQty, line.ReceivedQtyTotal, line.InTransitQty, line.ConfidenceScore,
		line.ConfidenceState, line.ParSource, line.ManualParLevel, line.SuggestedParLevel,
		line.Removed, line.CreatedAt, line.UpdatedAt,
	).Scan(&line.ID)
	if err != nil {
		return fmt.Errorf("failed to insert purchase order line: %w", err)
	}
	return nil
}

func (s *purchaseOrderStore) CreateAllocation(ctx context.Context, alloc *domain.PurchaseOrderStoreAllocation) error {
	query := `
		INSERT INTO purchase_order_store_allocations (
			purchase_order_line_id, store_id, expected_qty, allocated_qty,
			manual_par_level, variance_qty, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.tx.QueryRowContext(ctx, query,
		alloc.PurchaseOrderLineID, alloc.StoreID, alloc.ExpectedQty, alloc.AllocatedQty,
		alloc.ManualParLevel, alloc.VarianceQty, alloc.CreatedAt, alloc.UpdatedAt,
	).Scan(&alloc.ID)
	if err != nil {
		return fmt.Errorf("failed to insert store allocation: %w", err)
	}
	return nil
}

func (s *purchaseOrderStore) GetOrder(ctx context.Context, orderID int64) (*domain.PurchaseOrder, error) {
	return getOrder(ctx, s.tx, orderID)
}

func (s *purchaseOrderStore) OrderLines(ctx context.Context, orderID int64) ([]domain.PurchaseOrderLine, error) {
	return orderLines(ctx, s.tx, orderID)
}

func (s *purchaseOrderStore) AllocationsByOrder(ctx context.Context, orderID int64) (map[int64][]domain.PurchaseOrderStoreAllocation, error) {
	return allocationsByOrder(ctx, s.tx, orderID)
}

func (s *purchaseOrderStore) UpdateOrder(ctx context.Context, po *domain.PurchaseOrder) error {
	query := `
		UPDATE purchase_orders SET
			status = $2, notes = $3, export_path = $4,
			submitted_by_principal_id = $5, ordered_at = $6, submitted_at = $7, updated_at = $8
		WHERE id = $1
	`
	_, err := s.tx.ExecContext(ctx, query,
		po.ID, po.Status, po.Notes, po.ExportPath,
		po.SubmittedByPrincipalID, po.OrderedAt, po.SubmittedAt, po.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update purchase order: %w", err)
	}
	return nil
}

func (s *purchaseOrderStore) UpdateLine(ctx context.Context, line *domain.PurchaseOrderLine) error {
	query := `
		UPDATE purchase_order_lines SET
			ordered_qty = $2, received_qty_total = $3, in_transit_qty = $4,
			manual_par_level = $5, removed = $6, updated_at = $7
		WHERE id = $1
	`
	_, err := s.tx.ExecContext(ctx, query,
		line.ID, line.OrderedQty, line.ReceivedQtyTotal, line.InTransitQty,
		line.ManualParLevel, line.Removed, line.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update purchase order line: %w", err)
	}
	return nil
}

func (s *purchaseOrderStore) UpdateAllocation(ctx context.Context, alloc *domain.PurchaseOrderStoreAllocation) error {
	query := `
		UPDATE purchase_order_store_allocations SET
			allocated_qty = $2, manual_par_level = $3, store_received_qty = $4,
			variance_qty = $5, updated_at = $6
		WHERE id = $1
	`
	_, err := s.tx.ExecContext(ctx, query,
		alloc.ID, alloc.AllocatedQty, alloc.ManualParLevel, alloc.StoreReceivedQty,
		alloc.VarianceQty, alloc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update store allocation: %w", err)
	}
	return nil
}

func (s *purchaseOrderStore) DeleteOrder(ctx context.Context, orderID int64) error {
	_, err := s.tx.ExecContext(ctx, `DELETE FROM purchase_orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete purchase order: %w", err)
	}
	return nil
}

func (s *purchaseOrderStore) GetParLevel(ctx context.Context, vendorID int64, sku string) (*domain.ParLevel, error) {
	query := `
		SELECT id, sku, vendor_id, store_id, manual_par_level, manual_stock_up_level,
		       suggested_par_level, suggested_stock_up_level, par_source,
		       confidence_score, confidence_state, locked_manual,
		       updated_by_principal_id, created_at, updated_at
		FROM par_levels
		WHERE vendor_id = $1 AND sku = $2
	`
	var par domain.ParLevel
	err := s.tx.GetContext(ctx, &par, query, vendorID, sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load par level: %w", err)
	}
	return &par, nil
}

func (s *purchaseOrderStore) UpsertParLevel(ctx context.Context, par *domain.ParLevel) error {
	query := `
		INSERT INTO par_levels (
			sku, vendor_id, store_id, manual_par_level, manual_stock_up_level,
			suggested_par_level, suggested_stock_up_level, par_source,
			confidence_score, confidence_state, locked_manual,
			updated_by_principal_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (vendor_id, sku) DO UPDATE SET
			manual_par_level = EXCLUDED.manual_par_level,
			manual_stock_up_level = EXCLUDED.manual_stock_up_level,
			suggested_par_level = EXCLUDED.suggested_par_level,
			suggested_stock_up_level = EXCLUDED.suggested_stock_up_level,
			par_source = EXCLUDED.par_source,
			confidence_score = EXCLUDED.confidence_score,
			confidence_state = EXCLUDED.confidence_state,
			locked_manual = EXCLUDED.locked_manual,
			updated_by_principal_id = EXCLUDED.updated_by_principal_id,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`
	err := s.tx.QueryRowContext(ctx, query,
		par.SKU, par.VendorID, par.StoreID, par.ManualParLevel, par.ManualStockUpLevel,
		par.SuggestedParLevel, par.SuggestedStockUpLevel, par.ParSource,
		par.ConfidenceScore, par.ConfidenceState, par.LockedManual,
		par.UpdatedByPrincipalID, par.CreatedAt, par.UpdatedAt,
	).Scan(&par.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert par level: %w", err)
	}
	return nil
}

// Shared row loaders work against either the pool or a transaction.

func getOrder(ctx context.Context, q sqlx.QueryerContext, orderID int64) (*domain.PurchaseOrder, error) {
	query := `
		SELECT id, vendor_id, status, batch_ref, reorder_weeks, stock_up_weeks,
		       history_lookback_days, notes, export_path, created_by_principal_id,
		       submitted_by_principal_id, ordered_at, submitted_at, created_at, updated_at
		FROM purchase_orders
		WHERE id = $1
	`
	var po domain.PurchaseOrder
	err := sqlx.GetContext(ctx, q, &po, query, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("purchase order %d: %w", orderID, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase order: %w", err)
	}
	return &po, nil
}

func orderLines(ctx context.Context, q sqlx.QueryerContext, orderID int64) ([]domain.PurchaseOrderLine, error) {
	query := `
		SELECT id, purchase_order_id, sku, item_name, unit_cost, suggested_qty,
		       ordered_qty, received_qty_total, in_transit_qty, confidence_score,
		       confidence_state, par_source, manual_par_level, suggested_par_level,
		       removed, created_at, updated_at
		FROM purchase_order_lines
		WHERE purchase_order_id = $1
		ORDER BY confidence_state ASC, item_name ASC
	`
	var lines []domain.PurchaseOrderLine
	if err := sqlx.SelectContext(ctx, q, &lines, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to list purchase order lines: %w", err)
	}
	return lines, nil
}

func allocationsByOrder(ctx context.Context, q sqlx.QueryerContext, orderID int64) (map[int64][]domain.PurchaseOrderStoreAllocation, error) {
	query := `
		SELECT a.id, a.purchase_order_line_id, a.store_id, a.expected_qty,
		       a.allocated_qty, a.manual_par_level, a.store_received_qty,
		       a.variance_qty, a.created_at, a.updated_at
		FROM purchase_order_store_allocations a
		JOIN purchase_order_lines l ON l.id = a.purchase_order_line_id
		WHERE l.purchase_order_id = $1
		ORDER BY a.purchase_order_line_id ASC, a.store_id ASC
	`
	var allocs []domain.PurchaseOrderStoreAllocation
	if err := sqlx.SelectContext(ctx, q, &allocs, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to list store allocations: %w", err)
	}

	out := make(map[int64][]domain.PurchaseOrderStoreAllocation)
	for _, alloc := range allocs {
		out[alloc.PurchaseOrderLineID] = append(out[alloc.PurchaseOrderLineID], alloc)
	}
	return out, nil
}
