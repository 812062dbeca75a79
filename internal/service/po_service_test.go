package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/provider"
	"github.com/andresuchdata/replenish/internal/repository"
)

// memOrderRepo is an in-memory PurchaseOrderRepository. Transactions are not
// isolated; each test exercises one flow at a time.
type memOrderRepo struct {
	nextID        int64
	orders        map[int64]*domain.PurchaseOrder
	lines         map[int64]*domain.PurchaseOrderLine
	allocs        map[int64]*domain.PurchaseOrderStoreAllocation
	pars          map[repository.VendorSKU]*domain.ParLevel
	vendorNames   map[int64]string
	lockedVendors []int64
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders:      make(map[int64]*domain.PurchaseOrder),
		lines:       make(map[int64]*domain.PurchaseOrderLine),
		allocs:      make(map[int64]*domain.PurchaseOrderStoreAllocation),
		pars:        make(map[repository.VendorSKU]*domain.ParLevel),
		vendorNames: map[int64]string{1: "Acme Foods", 2: "Bulk Supply"},
	}
}

func (m *memOrderRepo) nextSeq() int64 {
	m.nextID++
	return m.nextID
}

func (m *memOrderRepo) InTx(ctx context.Context, fn func(ctx context.Context, store repository.PurchaseOrderStore) error) error {
	return fn(ctx, m)
}

func (m *memOrderRepo) LockVendor(_ context.Context, vendorID int64) error {
	m.lockedVendors = append(m.lockedVendors, vendorID)
	return nil
}

func (m *memOrderRepo) CreateOrder(_ context.Context, po *domain.PurchaseOrder) error {
	po.ID = m.nextSeq()
	clone := *po
	m.orders[po.ID] = &clone
	return nil
}

func (m *memOrderRepo) CreateLine(_ context.Context, line *domain.PurchaseOrderLine) error {
	line.ID = m.nextSeq()
	clone := *line
	m.lines[line.ID] = &clone
	return nil
}

func (m *memOrderRepo) CreateAllocation(_ context.Context, alloc *domain.PurchaseOrderStoreAllocation) error {
	alloc.ID = m.nextSeq()
	clone := *alloc
	m.allocs[alloc.ID] = &clone
	return nil
}

func (m *memOrderRepo) GetOrder(_ context.Context, orderID int64) (*domain.PurchaseOrder, error) {
	po, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("purchase order %d: %w", orderID, repository.ErrNotFound)
	}
	clone := *po
	return &clone, nil
}

func (m *memOrderRepo) OrderSummaries(_ context.Context, limit int) ([]domain.PurchaseOrderSummary, error) {
	var out []domain.PurchaseOrderSummary
	for _, po := range m.orders {
		if len(out) >= limit {
			break
		}
		out = append(out, domain.PurchaseOrderSummary{
			ID:         po.ID,
			VendorID:   po.VendorID,
			VendorName: m.vendorNames[po.VendorID],
			Status:     po.Status,
			CreatedAt:  po.CreatedAt,
		})
	}
	return out, nil
}

func (m *memOrderRepo) OrderLines(_ context.Context, orderID int64) ([]domain.PurchaseOrderLine, error) {
	var out []domain.PurchaseOrderLine
	for id := int64(1); id <= m.nextID; id++ {
		if line, ok := m.lines[id]; ok && line.PurchaseOrderID == orderID {
			out = append(out, *line)
		}
	}
	return out, nil
}

func (m *memOrderRepo) AllocationsByOrder(_ context.Context, orderID int64) (map[int64][]domain.PurchaseOrderStoreAllocation, error) {
	out := make(map[int64][]domain.PurchaseOrderStoreAllocation)
	for id := int64(1); id <= m.nextID; id++ {
		alloc, ok := m.allocs[id]
		if !ok {
			continue
		}
		line, ok := m.lines[alloc.PurchaseOrderLineID]
		if !ok || line.PurchaseOrderID != orderID {
			continue
		}
		out[alloc.PurchaseOrderLineID] = append(out[alloc.PurchaseOrderLineID], *alloc)
	}
	return out, nil
}

func (m *memOrderRepo) VendorName(_ context.Context, vendorID int64) (string, error) {
	name, ok := m.vendorNames[vendorID]
	if !ok {
		return "", fmt.Errorf("vendor %d: %w", vendorID, repository.ErrNotFound)
	}
	return name, nil
}

func (m *memOrderRepo) UpdateOrder(_ context.Context, po *domain.PurchaseOrder) error {
	if _, ok := m.orders[po.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *po
	m.orders[po.ID] = &clone
	return nil
}

func (m *memOrderRepo) UpdateLine(_ context.Context, line *domain.PurchaseOrderLine) error {
	if _, ok := m.lines[line.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *line
	m.lines[line.ID] = &clone
	return nil
}

func (m *memOrderRepo) UpdateAllocation(_ context.Context, alloc *domain.PurchaseOrderStoreAllocation) error {
	if _, ok := m.allocs[alloc.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *alloc
	m.allocs[alloc.ID] = &clone
	return nil
}

func (m *memOrderRepo) DeleteOrder(_ context.Context, orderID int64) error {
	delete(m.orders, orderID)
	for id, line := range m.lines {
		if line.PurchaseOrderID == orderID {
			delete(m.lines, id)
		}
	}
	return nil
}

func (m *memOrderRepo) GetParLevel(_ context.Context, vendorID int64, sku string) (*domain.ParLevel, error) {
	par, ok := m.pars[repository.VendorSKU{VendorID: vendorID, SKU: sku}]
	if !ok {
		return nil, nil
	}
	clone := *par
	return &clone, nil
}

func (m *memOrderRepo) UpsertParLevel(_ context.Context, par *domain.ParLevel) error {
	if par.ID == 0 {
		par.ID = m.nextSeq()
	}
	vendorID := int64(0)
	if par.VendorID != nil {
		vendorID = *par.VendorID
	}
	clone := *par
	m.pars[repository.VendorSKU{VendorID: vendorID, SKU: par.SKU}] = &clone
	return nil
}

func newTestPOService(t *testing.T, orders *memOrderRepo, orderingRepo *fakeOrderingRepo, providers *provider.StaticProvider) *POService {
	t.Helper()
	gen := NewGenerationService(orderingRepo, providers, providers, decimal.Decimal{})
	svc := NewPOService(orders, orderingRepo, gen, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	svc.newBatchRef = func() string { return "batch-test-1" }
	return svc
}

func TestGeneratePersistsDraftOrders(t *testing.T) {
	orderingRepo := newFakeOrderingRepo()
	orderingRepo.stores = []int64{10, 20}
	orderingRepo.addSKU(1, "SKU-1", 1, 0)

	providers := provider.NewStaticProvider()
	for _, storeID := range []int64{10, 20} {
		providers.SetHistory(storeID, "SKU-1", steadySeries(120, 1))
		providers.SetOnHand(storeID, "SKU-1", decimal.NewFromInt(10))
	}

	orders := newMemOrderRepo()
	svc := newTestPOService(t, orders, orderingRepo, providers)

	created, err := svc.Generate(context.Background(), GenerateOrdersInput{
		VendorIDs:            []int64{1},
		CreatedByPrincipalID: 42,
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	po := created[0]
	assert.Equal(t, domain.StatusDraft, po.Status)
	assert.Equal(t, "batch-test-1", po.BatchRef)
	assert.Equal(t, 5, po.ReorderWeeks)
	assert.Equal(t, int64(42), po.CreatedByPrincipalID)
	assert.Equal(t, []int64{1}, orders.lockedVendors)

	lines, err := orders.OrderLines(context.Background(), po.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	// 60 per store, aggregated across both stores.
	assert.Equal(t, 120, lines[0].OrderedQty)
	assert.Equal(t, 120, lines[0].SuggestedQty)
	require.NotNil(t, lines[0].SuggestedParLevel)
	assert.Equal(t, 35, *lines[0].SuggestedParLevel)
	require.NotNil(t, lines[0].UnitCost)

	allocations, err := orders.AllocationsByOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.Len(t, allocations[lines[0].ID], 2)
	for _, alloc := range allocations[lines[0].ID] {
		assert.Equal(t, 60, alloc.ExpectedQty)
		assert.Equal(t, 60, alloc.AllocatedQty)
	}

	// Suggested par is written back without touching manual values.
	par := orders.pars[repository.VendorSKU{VendorID: 1, SKU: "SKU-1"}]
	require.NotNil(t, par)
	assert.Nil(t, par.ManualParLevel)
	require.NotNil(t, par.SuggestedParLevel)
	assert.Equal(t, 35, *par.SuggestedParLevel)
}

func TestGeneratePreconditions(t *testing.T) {
	orderingRepo := newFakeOrderingRepo()
	providers := provider.NewStaticProvider()
	orders := newMemOrderRepo()
	svc := newTestPOService(t, orders, orderingRepo, providers)

	_, err := svc.Generate(context.Background(), GenerateOrdersInput{})
	var precond *PreconditionError
	require.ErrorAs(t, err, &precond)

	_, err = svc.Generate(context.Background(), GenerateOrdersInput{VendorIDs: []int64{1}})
	require.ErrorAs(t, err, &precond)
	assert.Empty(t, orders.orders)
}

func seedDraftOrder(t *testing.T, orders *memOrderRepo, state domain.ConfidenceState) (*domain.PurchaseOrder, *domain.PurchaseOrderLine) {
	t.Helper()
	ctx := context.Background()
	po := &domain.PurchaseOrder{
		VendorID:  1,
		Status:    domain.StatusDraft,
		BatchRef:  "batch-seeded",
		CreatedAt: time.Now(),
	}
	require.NoError(t, orders.CreateOrder(ctx, po))

	line := &domain.PurchaseOrderLine{
		PurchaseOrderID: po.ID,
		SKU:             "SKU-1",
		ItemName:        "SKU-1",
		SuggestedQty:    30,
		OrderedQty:      30,
		ConfidenceScore: decimal.RequireFromString("0.50"),
		ConfidenceState: state,
		ParSource:       domain.ParSourceManual,
	}
	require.NoError(t, orders.CreateLine(ctx, line))
	return po, line
}

func TestSubmitLowConfidenceGate(t *testing.T) {
	orders := newMemOrderRepo()
	svc := newTestPOService(t, orders, newFakeOrderingRepo(), provider.NewStaticProvider())
	po, line := seedDraftOrder(t, orders, domain.ConfidenceLow)

	_, err := svc.Submit(context.Background(), po.ID, 7)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)

	// Resolving the manual par unblocks the submit.
	manual := 25
	_, err = svc.SaveLines(context.Background(), SaveLinesInput{
		OrderID:           po.ID,
		ManualParByLineID: map[int64]*int{line.ID: &manual},
	})
	require.NoError(t, err)

	submitted, err := svc.Submit(context.Background(), po.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInTransit, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
	require.NotNil(t, submitted.SubmittedByPrincipalID)
	assert.Equal(t, int64(7), *submitted.SubmittedByPrincipalID)

	// The human decision is persisted as the locked par level.
	par := orders.pars[repository.VendorSKU{VendorID: 1, SKU: "SKU-1"}]
	require.NotNil(t, par)
	require.NotNil(t, par.ManualParLevel)
	assert.Equal(t, 25, *par.ManualParLevel)
	assert.True(t, par.LockedManual)

	// In-transit is locked from the ordered quantity.
	stored := orders.lines[line.ID]
	assert.Equal(t, 30, stored.InTransitQty)
}

func TestSubmitRejectsEmptyOrder(t *testing.T) {
	orders := newMemOrderRepo()
	svc := newTestPOService(t, orders, newFakeOrderingRepo(), provider.NewStaticProvider())
	po, line := seedDraftOrder(t, orders, domain.ConfidenceNormal)

	_, err := svc.SaveLines(context.Background(), SaveLinesInput{
		OrderID:        po.ID,
		RemovedLineIDs: []int64{line.ID},
	})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), po.ID, 7)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
}

func TestSaveLinesAllocationEditRecomputesAggregate(t *testing.T) {
	orders := newMemOrderRepo()
	svc := newTestPOService(t, orders, newFakeOrderingRepo(), provider.NewStaticProvider())
	po, line := seedDraftOrder(t, orders, domain.ConfidenceNormal)

	ctx := context.Background()
	allocA := &domain.PurchaseOrderStoreAllocation{PurchaseOrderLineID: line.ID, StoreID: 10, ExpectedQty: 10, AllocatedQty: 10}
	allocB := &domain.PurchaseOrderStoreAllocation{PurchaseOrderLineID: line.ID, StoreID: 20, ExpectedQty: 20, AllocatedQty: 20}
	require.NoError(t, orders.CreateAllocation(ctx, allocA))
	require.NoError(t, orders.CreateAllocation(ctx, allocB))

	newQty := 25
	directQty := 99
	_, err := svc.SaveLines(ctx, SaveLinesInput{
		OrderID: po.ID,
		// The direct edit loses to the recomputed allocation sum.
		OrderedQtyByLineID: map[int64]int{line.ID: directQty},
		AllocationEdits: []AllocationEdit{
			{AllocationID: allocA.ID, AllocatedQty: &newQty},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 45, orders.lines[line.ID].OrderedQty)
	assert.Equal(t, 25, orders.allocs[allocA.ID].AllocatedQty)
	assert.Equal(t, 15, orders.allocs[allocA.ID].VarianceQty)
}

func TestSaveLinesRejectsNonDraft(t *testing.T) {
	orders := newMemOrderRepo()
	svc := newTestPOService(t, orders, newFakeOrderingRepo(), provider.NewStaticProvider())
	po, line := seedDraftOrder(t, orders, domain.ConfidenceNormal)
	orders.orders[po.ID].Status = domain.StatusInTransit

	_, err := svc.SaveLines(context.Background(), SaveLinesInput{
		OrderID:            po.ID,
		OrderedQtyByLineID: map[int64]int{line.ID: 5},
	})
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, 30, orders.lines[line.ID].OrderedQty)
}

func TestDeleteOnlyDraft(t *testing.T) {
	orders := newMemOrderRepo()
	svc := newTestPOService(t, orders, newFakeOrderingRepo(), provider.NewStaticProvider())
	po, _ := seedDraftOrder(t, orders, domain.ConfidenceNormal)

	orders.orders[po.ID].Status = domain.StatusInTransit
	err := svc.Delete(context.Background(), po.ID)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)

	orders.orders[po.ID].Status = domain.StatusDraft
	require.NoError(t, svc.Delete(context.Background(), po.ID))
	assert.Empty(t, orders.orders)
}

func TestAdvanceFollowsStatusChain(t *testing.T) {
	orders := newMemOrderRepo()
	svc := newTestPOService(t, orders, newFakeOrderingRepo(), provider.NewStaticProvider())
	po, _ := seedDraftOrder(t, orders, domain.ConfidenceNormal)
	orders.orders[po.ID].Status = domain.StatusInTransit

	// Skipping a state is rejected.
	_, err := svc.Advance(context.Background(), po.ID, domain.StatusCompleted)
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)

	for _, next := range []domain.PurchaseOrderStatus{
		domain.StatusReceivedSplitPending,
		domain.StatusSentToStores,
		domain.StatusCompleted,
	} {
		advanced, err := svc.Advance(context.Background(), po.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, advanced.Status)
	}

	_, err = svc.Advance(context.Background(), po.ID, domain.StatusDraft)
	require.ErrorAs(t, err, &stateErr)
}

func TestDetailSplitsLinesByConfidence(t *testing.T) {
	orders := newMemOrderRepo()
	svc := newTestPOService(t, orders, newFakeOrderingRepo(), provider.NewStaticProvider())
	po, _ := seedDraftOrder(t, orders, domain.ConfidenceNormal)

	lowLine := &domain.PurchaseOrderLine{
		PurchaseOrderID: po.ID,
		SKU:             "SKU-LOW",
		ItemName:        "SKU-LOW",
		OrderedQty:      5,
		ConfidenceState: domain.ConfidenceLow,
	}
	require.NoError(t, orders.CreateLine(context.Background(), lowLine))

	detail, err := svc.Detail(context.Background(), po.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Foods", detail.VendorName)
	require.Len(t, detail.NormalLines, 1)
	require.Len(t, detail.LowConfidenceLines, 1)
	assert.Equal(t, "SKU-LOW", detail.LowConfidenceLines[0].SKU)
}

func TestDetailNotFound(t *testing.T) {
	orders := newMemOrderRepo()
	svc := newTestPOService(t, orders, newFakeOrderingRepo(), provider.NewStaticProvider())

	_, err := svc.Detail(context.Background(), 404)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRenderOrderCSV(t *testing.T) {
	lines := []domain.PurchaseOrderLine{
		{ID: 1, SKU: "SKU-1", ItemName: "Beans", OrderedQty: 12, ConfidenceState: domain.ConfidenceNormal},
		{ID: 2, SKU: "SKU-2", ItemName: "Rice", OrderedQty: 4, ConfidenceState: domain.ConfidenceLow, Removed: true},
	}
	allocations := map[int64][]domain.PurchaseOrderStoreAllocation{
		1: {
			{PurchaseOrderLineID: 1, StoreID: 10, AllocatedQty: 8},
			{PurchaseOrderLineID: 1, StoreID: 20, AllocatedQty: 4},
		},
	}

	data, err := renderOrderCSV(lines, allocations)
	require.NoError(t, err)

	expected := "SKU,Item Name,Ordered Qty,Confidence,Store ID,Allocated Qty\n" +
		"SKU-1,Beans,12,NORMAL,10,8\n" +
		"SKU-1,Beans,12,NORMAL,20,4\n"
	assert.Equal(t, expected, string(data))
}
