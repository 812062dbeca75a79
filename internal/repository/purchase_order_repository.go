package repository

import (
	"context"
	"errors"

	"github.com/andresuchdata/replenish/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// PurchaseOrderStore is the transactional view of purchase order state. All
// mutations run through it so that one lifecycle operation commits or rolls
// back as a unit.
type PurchaseOrderStore interface {
	// LockVendor takes a per-vendor advisory lock for the duration of the
	// transaction, closing the double-generate race.
	LockVendor(ctx context.Context, vendorID int64) error

	CreateOrder(ctx context.Context, po *domain.PurchaseOrder) error
	CreateLine(ctx context.Context, line *domain.PurchaseOrderLine) error
	CreateAllocation(ctx context.Context, alloc *domain.PurchaseOrderStoreAllocation) error

	GetOrder(ctx context.Context, orderID int64) (*domain.PurchaseOrder, error)
	OrderLines(ctx context.Context, orderID int64) ([]domain.PurchaseOrderLine, error)
	AllocationsByOrder(ctx context.Context, orderID int64) (map[int64][]domain.PurchaseOrderStoreAllocation, error)

	UpdateOrder(ctx context.Context, po *domain.PurchaseOrder) error
	UpdateLine(ctx context.Context, line *domain.PurchaseOrderLine) error
	UpdateAllocation(ctx context.Context, alloc *domain.PurchaseOrderStoreAllocation) error
	DeleteOrder(ctx context.Context, orderID int64) error

	GetParLevel(ctx context.Context, vendorID int64, sku string) (*domain.ParLevel, error)
	UpsertParLevel(ctx context.Context, par *domain.ParLevel) error
}

// PurchaseOrderRepository wraps transactional mutation and the read-side
// queries that do not need a transaction.
type PurchaseOrderRepository interface {
	// InTx runs fn inside one database transaction.
	InTx(ctx context.Context, fn func(ctx context.Context, store PurchaseOrderStore) error) error

	GetOrder(ctx context.Context, orderID int64) (*domain.PurchaseOrder, error)
	OrderSummaries(ctx context.Context, limit int) ([]domain.PurchaseOrderSummary, error)
	OrderLines(ctx context.Context, orderID int64) ([]domain.PurchaseOrderLine, error)
	AllocationsByOrder(ctx context.Context, orderID int64) (map[int64][]domain.PurchaseOrderStoreAllocation, error)
	VendorName(ctx context.Context, vendorID int64) (string, error)
}
