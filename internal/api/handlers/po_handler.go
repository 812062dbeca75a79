// internal/api/handlers/po_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/replenish/internal/cache"
	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/ordering"
	"github.com/andresuchdata/replenish/internal/repository"
	"github.com/andresuchdata/replenish/internal/service"
)

type POHandler struct {
	poService    *service.POService
	genService   *service.GenerationService
	previewCache cache.RecommendationPreviewCache
}

func NewPOHandler(poService *service.POService, genService *service.GenerationService, previewCache cache.RecommendationPreviewCache) *POHandler {
	if previewCache == nil {
		previewCache = cache.NewNoopRecommendationPreviewCache()
	}
	return &POHandler{
		poService:    poService,
		genService:   genService,
		previewCache: previewCache,
	}
}

type generateRequest struct {
	VendorIDs           []int64 `json:"vendor_ids" binding:"required"`
	PrincipalID         int64   `json:"principal_id"`
	ReorderWeeks        *int    `json:"reorder_weeks"`
	StockUpWeeks        *int    `json:"stock_up_weeks"`
	HistoryLookbackDays *int    `json:"history_lookback_days"`
	IncludeZeroQty      bool    `json:"include_zero_qty"`
}

func (r *generateRequest) overrides() *ordering.Overrides {
	if r.ReorderWeeks == nil && r.StockUpWeeks == nil && r.HistoryLookbackDays == nil {
		return nil
	}
	return &ordering.Overrides{
		ReorderWeeks:        r.ReorderWeeks,
		StockUpWeeks:        r.StockUpWeeks,
		HistoryLookbackDays: r.HistoryLookbackDays,
	}
}

func (r *generateRequest) cacheKey() string {
	var params ordering.Params
	if r.ReorderWeeks != nil {
		params.ReorderWeeks = *r.ReorderWeeks
	}
	if r.StockUpWeeks != nil {
		params.StockUpWeeks = *r.StockUpWeeks
	}
	if r.HistoryLookbackDays != nil {
		params.HistoryLookbackDays = *r.HistoryLookbackDays
	}
	return cache.PreviewKey(r.VendorIDs, params, r.IncludeZeroQty)
}

// PreviewRecommendations runs a dry generation pass without persisting
// anything. Results are cached per input set.
func (h *POHandler) PreviewRecommendations(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	key := req.cacheKey()
	if cached, ok, err := h.previewCache.GetPreview(c.Request.Context(), key); err != nil {
		log.Warn().Err(err).Msg("preview cache read failed")
	} else if ok {
		c.JSON(http.StatusOK, gin.H{"lines": cached, "cached": true})
		return
	}

	lines, err := h.genService.GenerateVendorScoped(c.Request.Context(), service.GenerationRequest{
		VendorIDs:      req.VendorIDs,
		Overrides:      req.overrides(),
		IncludeZeroQty: req.IncludeZeroQty,
	})
	if err != nil {
		h.respondError(c, err, "failed to generate preview")
		return
	}

	preview := make([]domain.RecommendationPreviewLine, 0, len(lines))
	for _, line := range lines {
		preview = append(preview, domain.RecommendationPreviewLine{
			VendorID:              line.VendorID,
			StoreID:               line.StoreID,
			SKU:                   line.SKU,
			AvgWeeklyUnits:        line.Result.AvgWeeklyUnits,
			EffectiveReorderLevel: line.Result.EffectiveReorderLevel,
			EffectiveStockUpLevel: line.Result.EffectiveStockUpLevel,
			RoundedRecommendedQty: line.Result.RoundedRecommendedQty,
			ConfidenceScore:       line.Result.ConfidenceScore,
			ConfidenceState:       line.Result.ConfidenceState,
			ParSource:             line.Result.ParSource,
		})
	}

	if err := h.previewCache.SetPreview(c.Request.Context(), key, preview); err != nil {
		log.Warn().Err(err).Msg("preview cache write failed")
	}

	c.JSON(http.StatusOK, gin.H{"lines": preview, "cached": false})
}

// GenerateOrders persists one draft purchase order per selected vendor.
func (h *POHandler) GenerateOrders(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	orders, err := h.poService.Generate(c.Request.Context(), service.GenerateOrdersInput{
		VendorIDs:            req.VendorIDs,
		CreatedByPrincipalID: req.PrincipalID,
		Overrides:            req.overrides(),
		IncludeZeroQty:       req.IncludeZeroQty,
	})
	if err != nil {
		h.respondError(c, err, "failed to generate purchase orders")
		return
	}

	if err := h.previewCache.InvalidateAll(c.Request.Context()); err != nil {
		log.Warn().Err(err).Msg("preview cache invalidation failed")
	}

	c.JSON(http.StatusCreated, gin.H{"orders": orders})
}

// ListOrders returns order summaries, newest first.
func (h *POHandler) ListOrders(c *gin.Context) {
	limit := parsePositiveIntWithDefault(c.Query("limit"), 100)

	summaries, err := h.poService.List(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err, "failed to list purchase orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": summaries})
}

// GetOrder returns one order with its lines split by confidence state.
func (h *POHandler) GetOrder(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	detail, err := h.poService.Detail(c.Request.Context(), orderID)
	if err != nil {
		h.respondError(c, err, "failed to load purchase order")
		return
	}

	c.JSON(http.StatusOK, detail)
}

type allocationEditRequest struct {
	AllocationID   int64 `json:"allocation_id" binding:"required"`
	AllocatedQty   *int  `json:"allocated_qty"`
	ManualParLevel *int  `json:"manual_par_level"`
}

type saveLinesRequest struct {
	OrderedQtyByLineID map[int64]int           `json:"ordered_qty_by_line_id"`
	RemovedLineIDs     []int64                 `json:"removed_line_ids"`
	ManualParByLineID  map[int64]*int          `json:"manual_par_by_line_id"`
	AllocationEdits    []allocationEditRequest `json:"allocation_edits"`
}

// SaveLines applies draft edits: quantities, removals, manual pars, and
// per-store allocation changes.
func (h *POHandler) SaveLines(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	var req saveLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	edits := make([]service.AllocationEdit, 0, len(req.AllocationEdits))
	for _, edit := range req.AllocationEdits {
		edits = append(edits, service.AllocationEdit{
			AllocationID:   edit.AllocationID,
			AllocatedQty:   edit.AllocatedQty,
			ManualParLevel: edit.ManualParLevel,
		})
	}

	po, err := h.poService.SaveLines(c.Request.Context(), service.SaveLinesInput{
		OrderID:            orderID,
		OrderedQtyByLineID: req.OrderedQtyByLineID,
		RemovedLineIDs:     req.RemovedLineIDs,
		ManualParByLineID:  req.ManualParByLineID,
		AllocationEdits:    edits,
	})
	if err != nil {
		h.respondError(c, err, "failed to save purchase order lines")
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": po})
}

type submitRequest struct {
	PrincipalID int64 `json:"principal_id"`
}

// SubmitOrder moves a draft order to IN_TRANSIT.
func (h *POHandler) SubmitOrder(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	po, err := h.poService.Submit(c.Request.Context(), orderID, req.PrincipalID)
	if err != nil {
		h.respondError(c, err, "failed to submit purchase order")
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": po})
}

// DeleteOrder removes a draft order.
func (h *POHandler) DeleteOrder(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	if err := h.poService.Delete(c.Request.Context(), orderID); err != nil {
		h.respondError(c, err, "failed to delete purchase order")
		return
	}

	c.Status(http.StatusNoContent)
}

type advanceRequest struct {
	Status string `json:"status" binding:"required"`
}

// AdvanceStatus moves an order one step along its lifecycle.
func (h *POHandler) AdvanceStatus(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	next, err := domain.ParsePurchaseOrderStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status value"})
		return
	}

	po, err := h.poService.Advance(c.Request.Context(), orderID, next)
	if err != nil {
		h.respondError(c, err, "failed to advance purchase order")
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": po})
}

func (h *POHandler) orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return 0, false
	}
	return id, true
}

// respondError maps domain failures onto HTTP status codes: bad inputs are
// 400, missing rows 404, and lifecycle violations 409.
func (h *POHandler) respondError(c *gin.Context, err error, fallback string) {
	var configErr *ordering.ConfigError
	var precondErr *service.PreconditionError
	var stateErr *service.StateError

	switch {
	case errors.As(err, &configErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": configErr.Error()})
	case errors.As(err, &precondErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": precondErr.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "purchase order not found"})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": stateErr.Error()})
	default:
		log.Error().Err(err).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if fallback <= 0 {
		fallback = 100
	}
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}
