package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/ordering"
	"github.com/andresuchdata/replenish/internal/repository"
	"github.com/andresuchdata/replenish/internal/storage"
)

// POService owns the purchase order lifecycle: it is the only component
// that creates or mutates orders, lines, allocations, and par levels.
type POService struct {
	orders       repository.PurchaseOrderRepository
	orderingRepo repository.OrderingRepository
	gen          *GenerationService
	exports      storage.ObjectStorage
	now          func() time.Time
	newBatchRef  func() string
}

func NewPOService(
	orders repository.PurchaseOrderRepository,
	orderingRepo repository.OrderingRepository,
	gen *GenerationService,
	exports storage.ObjectStorage,
) *POService {
	return &POService{
		orders:       orders,
		orderingRepo: orderingRepo,
		gen:          gen,
		exports:      exports,
		now:          time.Now,
		newBatchRef:  uuid.NewString,
	}
}

// GenerateOrdersInput selects vendors for a generation batch.
type GenerateOrdersInput struct {
	VendorIDs            []int64
	CreatedByPrincipalID int64
	Overrides            *ordering.Overrides
	IncludeZeroQty       bool
}

// Generate runs a vendor-scoped recommendation pass and persists one draft
// order per vendor, one line per (vendor, sku) aggregated across stores,
// and one allocation per contributing store. Touched par levels get their
// suggested values written back even before human review.
func (s *POService) Generate(ctx context.Context, in GenerateOrdersInput) ([]*domain.PurchaseOrder, error) {
	if len(in.VendorIDs) == 0 {
		return nil, preconditionErrorf("select at least one vendor")
	}

	skusByVendor, err := s.orderingRepo.SelectedVendorSKUs(ctx, in.VendorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load vendor sku mappings: %w", err)
	}
	total := 0
	unitCosts := make(map[repository.VendorSKU]decimal.Decimal)
	for vendorID, rows := range skusByVendor {
		total += len(rows)
		for _, row := range rows {
			unitCosts[repository.VendorSKU{VendorID: vendorID, SKU: row.SKU}] = row.UnitCost
		}
	}
	if total == 0 {
		return nil, preconditionErrorf("no sku mappings resolved for selected vendors")
	}

	lines, err := s.gen.GenerateVendorScoped(ctx, GenerationRequest{
		VendorIDs:      in.VendorIDs,
		Overrides:      in.Overrides,
		IncludeZeroQty: in.IncludeZeroQty,
	})
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, preconditionErrorf("no demand generated for selected vendors")
	}

	grouped := groupByVendorSKU(lines)
	batchRef := s.newBatchRef()
	now := s.now()

	var created []*domain.PurchaseOrder
	err = s.orders.InTx(ctx, func(ctx context.Context, store repository.PurchaseOrderStore) error {
		for _, vendorID := range in.VendorIDs {
			skuGroups := grouped[vendorID]
			if len(skuGroups) == 0 {
				continue
			}
			if err := store.LockVendor(ctx, vendorID); err != nil {
				return fmt.Errorf("failed to lock vendor %d: %w", vendorID, err)
			}

			params, err := s.gen.resolveVendorParams(ctx, vendorID, in.Overrides)
			if err != nil {
				return err
			}

			po := &domain.PurchaseOrder{
				VendorID:             vendorID,
				Status:               domain.StatusDraft,
				BatchRef:             batchRef,
				ReorderWeeks:         params.ReorderWeeks,
				StockUpWeeks:         params.StockUpWeeks,
				HistoryLookbackDays:  params.HistoryLookbackDays,
				CreatedByPrincipalID: in.CreatedByPrincipalID,
				CreatedAt:            now,
				UpdatedAt:            now,
			}
			if err := store.CreateOrder(ctx, po); err != nil {
				return fmt.Errorf("failed to create order for vendor %d: %w", vendorID, err)
			}

			for _, group := range skuGroups {
				aggregate := group.totalRoundedQty()
				if aggregate <= 0 && !in.IncludeZeroQty {
					continue
				}
				line := s.buildOrderLine(po.ID, group, unitCosts, now)
				if err := store.CreateLine(ctx, line); err != nil {
					return fmt.Errorf("failed to create line for sku %s: %w", group.sku, err)
				}
				for _, rec := range group.perStore {
					alloc := &domain.PurchaseOrderStoreAllocation{
						PurchaseOrderLineID: line.ID,
						StoreID:             rec.StoreID,
						ExpectedQty:         rec.Result.RoundedRecommendedQty,
						AllocatedQty:        rec.Result.RoundedRecommendedQty,
						CreatedAt:           now,
						UpdatedAt:           now,
					}
					if err := store.CreateAllocation(ctx, alloc); err != nil {
						return fmt.Errorf("failed to create allocation for sku %s store %d: %w", group.sku, rec.StoreID, err)
					}
				}
				if err := s.writeBackSuggestion(ctx, store, vendorID, line, in.CreatedByPrincipalID, now); err != nil {
					return err
				}
			}
			created = append(created, po)
		}
		if len(created) == 0 {
			return preconditionErrorf("no demand generated for selected vendors")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("batch_ref", batchRef).
		Int("orders", len(created)).
		Msg("generated draft purchase orders")
	return created, nil
}

// skuGroup collects one vendor+sku's per-store recommendations.
type skuGroup struct {
	vendorID int64
	sku      string
	perStore []RecommendationLine
}

func (g *skuGroup) totalRoundedQty() int {
	total := 0
	for _, rec := range g.perStore {
		total += rec.Result.RoundedRecommendedQty
	}
	return total
}

func groupByVendorSKU(lines []RecommendationLine) map[int64][]*skuGroup {
	index := make(map[repository.VendorSKU]*skuGroup)
	byVendor := make(map[int64][]*skuGroup)
	for _, line := range lines {
		key := repository.VendorSKU{VendorID: line.VendorID, SKU: line.SKU}
		group, ok := index[key]
		if !ok {
			group = &skuGroup{vendorID: line.VendorID, sku: line.SKU}
			index[key] = group
			byVendor[line.VendorID] = append(byVendor[line.VendorID], group)
		}
		group.perStore = append(group.perStore, line)
	}
	for _, groups := range byVendor {
		sort.Slice(groups, func(i, j int) bool { return groups[i].sku < groups[j].sku })
	}
	return byVendor
}

// buildOrderLine aggregates a sku group into one order line. Confidence is
// taken conservatively: the lowest store score wins, and any LOW store
// marks the whole line LOW.
func (s *POService) buildOrderLine(orderID int64, group *skuGroup, unitCosts map[repository.VendorSKU]decimal.Decimal, now time.Time) *domain.PurchaseOrderLine {
	aggregate := group.totalRoundedQty()

	first := group.perStore[0].Result
	score := first.ConfidenceScore
	state := first.ConfidenceState
	suggestedPar := first.SuggestedReorderLevel
	for _, rec := range group.perStore[1:] {
		if rec.Result.ConfidenceScore.LessThan(score) {
			score = rec.Result.ConfidenceScore
		}
		if rec.Result.ConfidenceState == domain.ConfidenceLow {
			state = domain.ConfidenceLow
		}
		if rec.Result.SuggestedReorderLevel > suggestedPar {
			suggestedPar = rec.Result.SuggestedReorderLevel
		}
	}

	line := &domain.PurchaseOrderLine{
		PurchaseOrderID:   orderID,
		SKU:               group.sku,
		ItemName:          group.sku,
		SuggestedQty:      aggregate,
		OrderedQty:        aggregate,
		InTransitQty:      aggregate,
		ConfidenceScore:   score,
		ConfidenceState:   state,
		ParSource:         first.ParSource,
		SuggestedParLevel: &suggestedPar,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if cost, ok := unitCosts[repository.VendorSKU{VendorID: group.vendorID, SKU: group.sku}]; ok {
		line.UnitCost = &cost
	}
	if first.ParSource == domain.ParSourceManual && first.EffectiveReorderLevel != first.SuggestedReorderLevel {
		manual := first.EffectiveReorderLevel
		line.ManualParLevel = &manual
	}
	return line
}

// writeBackSuggestion records the latest statistical suggestion on the par
// level row without touching human-set values.
func (s *POService) writeBackSuggestion(ctx context.Context, store repository.PurchaseOrderStore, vendorID int64, line *domain.PurchaseOrderLine, principalID int64, now time.Time) error {
	par, err := store.GetParLevel(ctx, vendorID, line.SKU)
	if err != nil {
		return fmt.Errorf("failed to load par level for sku %s: %w", line.SKU, err)
	}
	if par == nil {
		vendor := vendorID
		par = &domain.ParLevel{
			SKU:       line.SKU,
			VendorID:  &vendor,
			ParSource: domain.ParSourceManual,
			CreatedAt: now,
		}
	}
	par.SuggestedParLevel = line.SuggestedParLevel
	score := line.ConfidenceScore
	par.ConfidenceScore = &score
	par.ConfidenceState = line.ConfidenceState
	par.UpdatedByPrincipalID = &principalID
	par.UpdatedAt = now
	if err := store.UpsertParLevel(ctx, par); err != nil {
		return fmt.Errorf("failed to write back par suggestion for sku %s: %w", line.SKU, err)
	}
	return nil
}

// OrderDetail is the read-model for one order with lines grouped by
// confidence.
type OrderDetail struct {
	Order              *domain.PurchaseOrder                           `json:"order"`
	VendorName         string                                          `json:"vendor_name"`
	NormalLines        []domain.PurchaseOrderLine                      `json:"normal_lines"`
	LowConfidenceLines []domain.PurchaseOrderLine                      `json:"low_confidence_lines"`
	AllocationsByLine  map[int64][]domain.PurchaseOrderStoreAllocation `json:"allocations_by_line"`
}

func (s *POService) List(ctx context.Context, limit int) ([]domain.PurchaseOrderSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.orders.OrderSummaries(ctx, limit)
}

func (s *POService) Detail(ctx context.Context, orderID int64) (*OrderDetail, error) {
	po, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	vendorName, err := s.orders.VendorName(ctx, po.VendorID)
	if err != nil {
		return nil, err
	}
	lines, err := s.orders.OrderLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	allocations, err := s.orders.AllocationsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	detail := &OrderDetail{
		Order:             po,
		VendorName:        vendorName,
		AllocationsByLine: allocations,
	}
	for _, line := range lines {
		if line.ConfidenceState == domain.ConfidenceLow {
			detail.LowConfidenceLines = append(detail.LowConfidenceLines, line)
		} else {
			detail.NormalLines = append(detail.NormalLines, line)
		}
	}
	return detail, nil
}

// AllocationEdit adjusts one store allocation on a draft order.
type AllocationEdit struct {
	AllocationID   int64
	AllocatedQty   *int
	ManualParLevel *int
}

// SaveLinesInput carries draft edits. RemovedLineIDs fully replaces the
// removed set, matching form-style submission.
type SaveLinesInput struct {
	OrderID            int64
	OrderedQtyByLineID map[int64]int
	RemovedLineIDs     []int64
	ManualParByLineID  map[int64]*int
	AllocationEdits    []AllocationEdit
}

// SaveLines applies draft-only edits to lines and allocations. Any explicit
// allocation quantity edit recomputes the parent line's aggregate ordered
// quantity from the sum of its allocations.
func (s *POService) SaveLines(ctx context.Context, in SaveLinesInput) (*domain.PurchaseOrder, error) {
	var updated *domain.PurchaseOrder
	err := s.orders.InTx(ctx, func(ctx context.Context, store repository.PurchaseOrderStore) error {
		po, err := store.GetOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if !po.Status.Mutable() {
			return stateErrorf("only draft orders can be edited")
		}

		lines, err := store.OrderLines(ctx, in.OrderID)
		if err != nil {
			return err
		}
		allocations, err := store.AllocationsByOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}

		removed := make(map[int64]bool, len(in.RemovedLineIDs))
		for _, id := range in.RemovedLineIDs {
			removed[id] = true
		}

		now := s.now()

		// Apply allocation edits first so recomputed aggregates win over
		// direct quantity edits on the same line.
		touchedLines := make(map[int64]bool)
		allocByID := make(map[int64]*domain.PurchaseOrderStoreAllocation)
		for lineID := range allocations {
			for i := range allocations[lineID] {
				alloc := &allocations[lineID][i]
				allocByID[alloc.ID] = alloc
			}
		}
		for _, edit := range in.AllocationEdits {
			alloc, ok := allocByID[edit.AllocationID]
			if !ok {
				return fmt.Errorf("allocation %d: %w", edit.AllocationID, repository.ErrNotFound)
			}
			if edit.AllocatedQty != nil {
				if *edit.AllocatedQty < 0 {
					return &ordering.ConfigError{Reason: "allocated quantity cannot be negative"}
				}
				alloc.AllocatedQty = *edit.AllocatedQty
				touchedLines[alloc.PurchaseOrderLineID] = true
			}
			if edit.ManualParLevel != nil {
				alloc.ManualParLevel = edit.ManualParLevel
			}
			alloc.VarianceQty = alloc.AllocatedQty - alloc.ExpectedQty
			alloc.UpdatedAt = now
			if err := store.UpdateAllocation(ctx, alloc); err != nil {
				return fmt.Errorf("failed to update allocation %d: %w", alloc.ID, err)
			}
		}

		for i := range lines {
			line := &lines[i]
			if qty, ok := in.OrderedQtyByLineID[line.ID]; ok && !touchedLines[line.ID] {
				if qty < 0 {
					return &ordering.ConfigError{Reason: "ordered quantity cannot be negative"}
				}
				line.OrderedQty = qty
			}
			if touchedLines[line.ID] {
				sum := 0
				for _, alloc := range allocations[line.ID] {
					sum += alloc.AllocatedQty
				}
				line.OrderedQty = sum
			}
			line.Removed = removed[line.ID]
			if manual, ok := in.ManualParByLineID[line.ID]; ok {
				line.ManualParLevel = manual
			}
			line.InTransitQty = line.OrderedQty - line.ReceivedQtyTotal
			if line.InTransitQty < 0 {
				line.InTransitQty = 0
			}
			line.UpdatedAt = now
			if err := store.UpdateLine(ctx, line); err != nil {
				return fmt.Errorf("failed to update line %d: %w", line.ID, err)
			}
		}

		po.UpdatedAt = now
		if err := store.UpdateOrder(ctx, po); err != nil {
			return fmt.Errorf("failed to update order %d: %w", po.ID, err)
		}
		updated = po
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Submit transitions a draft order to IN_TRANSIT. It refuses empty orders
// and LOW-confidence lines without a resolved manual par level, locks in
// in-transit quantities, and persists human-confirmed par levels so this
// cycle's decision becomes next cycle's floor.
func (s *POService) Submit(ctx context.Context, orderID, actorPrincipalID int64) (*domain.PurchaseOrder, error) {
	var submitted *domain.PurchaseOrder
	err := s.orders.InTx(ctx, func(ctx context.Context, store repository.PurchaseOrderStore) error {
		po, err := store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if po.Status != domain.StatusDraft {
			return stateErrorf("only draft orders can be submitted")
		}

		all, err := store.OrderLines(ctx, orderID)
		if err != nil {
			return err
		}
		allocations, err := store.AllocationsByOrder(ctx, orderID)
		if err != nil {
			return err
		}

		var lines []domain.PurchaseOrderLine
		for _, line := range all {
			if !line.Removed {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			return stateErrorf("cannot submit an empty order")
		}

		for _, line := range lines {
			if line.ConfidenceState != domain.ConfidenceLow {
				continue
			}
			if !manualParResolved(line, allocations[line.ID]) {
				return stateErrorf("low confidence line %s requires manual par level before submit", line.SKU)
			}
		}

		now := s.now()
		for i := range lines {
			line := &lines[i]
			line.InTransitQty = line.OrderedQty - line.ReceivedQtyTotal
			if line.InTransitQty < 0 {
				line.InTransitQty = 0
			}
			line.UpdatedAt = now
			if err := store.UpdateLine(ctx, line); err != nil {
				return fmt.Errorf("failed to update line %d: %w", line.ID, err)
			}
			if err := s.writeBackConfirmedPar(ctx, store, po.VendorID, line, actorPrincipalID, now); err != nil {
				return err
			}
		}

		po.Status = domain.StatusInTransit
		po.OrderedAt = &now
		po.SubmittedAt = &now
		po.SubmittedByPrincipalID = &actorPrincipalID
		po.UpdatedAt = now
		if err := store.UpdateOrder(ctx, po); err != nil {
			return fmt.Errorf("failed to update order %d: %w", po.ID, err)
		}
		submitted = po
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.exportSubmittedOrder(ctx, submitted)
	return submitted, nil
}

// manualParResolved checks the LOW-confidence submit gate. Store-scoped
// allocations each need a par resolved at allocation or line level; lines
// without allocations only need the line-level value.
func manualParResolved(line domain.PurchaseOrderLine, allocations []domain.PurchaseOrderStoreAllocation) bool {
	if len(allocations) == 0 {
		return line.ManualParLevel != nil
	}
	for _, alloc := range allocations {
		if alloc.ManualParLevel == nil && line.ManualParLevel == nil {
			return false
		}
	}
	return true
}

func (s *POService) writeBackConfirmedPar(ctx context.Context, store repository.PurchaseOrderStore, vendorID int64, line *domain.PurchaseOrderLine, actorPrincipalID int64, now time.Time) error {
	par, err := store.GetParLevel(ctx, vendorID, line.SKU)
	if err != nil {
		return fmt.Errorf("failed to load par level for sku %s: %w", line.SKU, err)
	}
	if par == nil {
		vendor := vendorID
		par = &domain.ParLevel{
			SKU:       line.SKU,
			VendorID:  &vendor,
			CreatedAt: now,
		}
	}
	par.ManualParLevel = line.ManualParLevel
	par.SuggestedParLevel = line.SuggestedParLevel
	par.ParSource = line.ParSource
	score := line.ConfidenceScore
	par.ConfidenceScore = &score
	par.ConfidenceState = line.ConfidenceState
	par.LockedManual = line.ParSource == domain.ParSourceManual
	par.UpdatedByPrincipalID = &actorPrincipalID
	par.UpdatedAt = now
	if err := store.UpsertParLevel(ctx, par); err != nil {
		return fmt.Errorf("failed to persist par level for sku %s: %w", line.SKU, err)
	}
	return nil
}

// Delete removes a draft order entirely. Non-draft orders are immutable.
func (s *POService) Delete(ctx context.Context, orderID int64) error {
	return s.orders.InTx(ctx, func(ctx context.Context, store repository.PurchaseOrderStore) error {
		po, err := store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !po.Status.Mutable() {
			return stateErrorf("only draft orders can be deleted")
		}
		return store.DeleteOrder(ctx, orderID)
	})
}

// Advance moves an order along the post-submit chain (receive, send to
// stores, complete) or cancels a draft. Skipping states is rejected.
func (s *POService) Advance(ctx context.Context, orderID int64, next domain.PurchaseOrderStatus) (*domain.PurchaseOrder, error) {
	var advanced *domain.PurchaseOrder
	err := s.orders.InTx(ctx, func(ctx context.Context, store repository.PurchaseOrderStore) error {
		po, err := store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !po.Status.CanTransitionTo(next) {
			return stateErrorf("cannot transition order from %s to %s", po.Status, next)
		}
		po.Status = next
		po.UpdatedAt = s.now()
		if err := store.UpdateOrder(ctx, po); err != nil {
			return fmt.Errorf("failed to update order %d: %w", po.ID, err)
		}
		advanced = po
		return nil
	})
	if err != nil {
		return nil, err
	}
	return advanced, nil
}

// exportSubmittedOrder renders the order to CSV and uploads it. Export
// failure never fails the submit; the order is already IN_TRANSIT.
func (s *POService) exportSubmittedOrder(ctx context.Context, po *domain.PurchaseOrder) {
	if s.exports == nil || po == nil {
		return
	}

	lines, err := s.orders.OrderLines(ctx, po.ID)
	if err != nil {
		log.Error().Err(err).Int64("order_id", po.ID).Msg("failed to load lines for export")
		return
	}
	allocations, err := s.orders.AllocationsByOrder(ctx, po.ID)
	if err != nil {
		log.Error().Err(err).Int64("order_id", po.ID).Msg("failed to load allocations for export")
		return
	}

	data, err := renderOrderCSV(lines, allocations)
	if err != nil {
		log.Error().Err(err).Int64("order_id", po.ID).Msg("failed to render order export")
		return
	}

	key := fmt.Sprintf("orders/%s/po_%d.csv", po.BatchRef, po.ID)
	if err := s.exports.UploadObject(ctx, key, data, "text/csv"); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to upload order export")
		return
	}

	err = s.orders.InTx(ctx, func(ctx context.Context, store repository.PurchaseOrderStore) error {
		current, err := store.GetOrder(ctx, po.ID)
		if err != nil {
			return err
		}
		current.ExportPath = &key
		current.UpdatedAt = s.now()
		return store.UpdateOrder(ctx, current)
	})
	if err != nil {
		log.Error().Err(err).Int64("order_id", po.ID).Msg("failed to record export path")
	}
}

func renderOrderCSV(lines []domain.PurchaseOrderLine, allocations map[int64][]domain.PurchaseOrderStoreAllocation) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"SKU", "Item Name", "Ordered Qty", "Confidence", "Store ID", "Allocated Qty"}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	for _, line := range lines {
		if line.Removed {
			continue
		}
		allocs := allocations[line.ID]
		if len(allocs) == 0 {
			record := []string{line.SKU, line.ItemName, strconv.Itoa(line.OrderedQty), string(line.ConfidenceState), "", ""}
			if err := writer.Write(record); err != nil {
				return nil, err
			}
			continue
		}
		for _, alloc := range allocs {
			record := []string{
				line.SKU,
				line.ItemName,
				strconv.Itoa(line.OrderedQty),
				string(line.ConfidenceState),
				strconv.FormatInt(alloc.StoreID, 10),
				strconv.Itoa(alloc.AllocatedQty),
			}
			if err := writer.Write(record); err != nil {
				return nil, err
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
