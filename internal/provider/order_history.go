package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// OrderHistoryProvider derives a daily demand series from previously
// submitted purchase order lines. It is the fallback history source when no
// POS sales feed is wired.
type OrderHistoryProvider struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewOrderHistoryProvider(db *sqlx.DB) *OrderHistoryProvider {
	return &OrderHistoryProvider{db: db, now: time.Now}
}

type dailyQtyRow struct {
	Day time.Time       `db:"day"`
	Qty decimal.Decimal `db:"qty"`
}

// DailyUnits buckets ordered quantities of past submitted orders by day and
// zero-fills the window. An empty result stays empty so downstream
// confidence scoring sees "no history" rather than a flat zero series.
func (p *OrderHistoryProvider) DailyUnits(ctx context.Context, vendorID, storeID int64, sku string, lookbackDays int) ([]decimal.Decimal, error) {
	from := p.now().UTC().AddDate(0, 0, -lookbackDays)

	query := `
		SELECT
			date_trunc('day', COALESCE(po.submitted_at, po.created_at)) AS day,
			COALESCE(SUM(a.allocated_qty), 0) AS qty
		FROM purchase_order_lines l
		JOIN purchase_orders po ON po.id = l.purchase_order_id
		JOIN purchase_order_store_allocations a ON a.purchase_order_line_id = l.id
		WHERE po.vendor_id = $1
		  AND a.store_id = $2
		  AND l.sku = $3
		  AND l.removed = FALSE
		  AND po.status IN ('IN_TRANSIT', 'RECEIVED_SPLIT_PENDING', 'SENT_TO_STORES', 'COMPLETED')
		  AND COALESCE(po.submitted_at, po.created_at) >= $4
		GROUP BY day
		ORDER BY day
	`

	var rows []dailyQtyRow
	if err := p.db.SelectContext(ctx, &rows, query, vendorID, storeID, sku, from); err != nil {
		return nil, fmt.Errorf("failed to load order history: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	byDay := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		byDay[row.Day.Format("2006-01-02")] = row.Qty
	}

	out := make([]decimal.Decimal, 0, lookbackDays)
	for i := 0; i < lookbackDays; i++ {
		day := from.AddDate(0, 0, i).Format("2006-01-02")
		if qty, ok := byDay[day]; ok {
			out = append(out, qty)
		} else {
			out = append(out, decimal.Zero)
		}
	}
	return out, nil
}
