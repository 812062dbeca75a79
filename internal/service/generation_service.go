package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/replenish/internal/domain"
	"github.com/andresuchdata/replenish/internal/ordering"
	"github.com/andresuchdata/replenish/internal/provider"
	"github.com/andresuchdata/replenish/internal/repository"
)

// RecommendationLine is one (vendor, store, sku) recommendation produced by
// a generation pass. It is transient: nothing is persisted at this stage.
type RecommendationLine struct {
	VendorID int64               `json:"vendor_id"`
	StoreID  int64               `json:"store_id"`
	SKU      string              `json:"sku"`
	Result   ordering.LineResult `json:"result"`
}

// GenerationRequest scopes a recommendation pass to a vendor set.
type GenerationRequest struct {
	VendorIDs      []int64
	Overrides      *ordering.Overrides
	IncludeZeroQty bool
}

// recommendWorkers bounds concurrent per-sku evaluation so a wide catalog
// does not flood the providers.
const recommendWorkers = 8

type GenerationService struct {
	repo                repository.OrderingRepository
	history             provider.SalesHistoryProvider
	onHand              provider.OnHandProvider
	confidenceThreshold decimal.Decimal
}

func NewGenerationService(
	repo repository.OrderingRepository,
	history provider.SalesHistoryProvider,
	onHand provider.OnHandProvider,
	confidenceThreshold decimal.Decimal,
) *GenerationService {
	if confidenceThreshold.IsZero() {
		confidenceThreshold = ordering.DefaultConfidenceThreshold
	}
	return &GenerationService{
		repo:                repo,
		history:             history,
		onHand:              onHand,
		confidenceThreshold: confidenceThreshold,
	}
}

// resolveVendorParams layers the vendor override (if any) onto the global
// defaults, then the per-call overrides on top.
func (s *GenerationService) resolveVendorParams(ctx context.Context, vendorID int64, overrides *ordering.Overrides) (ordering.Params, error) {
	defaults, err := s.repo.MathDefaults(ctx)
	if err != nil {
		return ordering.Params{}, fmt.Errorf("failed to load math defaults: %w", err)
	}
	vendorParams, err := s.repo.VendorMathParams(ctx, vendorID)
	if err != nil {
		return ordering.Params{}, fmt.Errorf("failed to load vendor math params: %w", err)
	}
	if vendorParams != nil {
		defaults = *vendorParams
	}
	return ordering.ResolveParams(defaults, overrides)
}

// GenerateVendorScoped computes recommendations for the selected vendors
// only, never touching the rest of the catalog. It is read-only: in-transit
// and par data are consumed, not mutated.
func (s *GenerationService) GenerateVendorScoped(ctx context.Context, req GenerationRequest) ([]RecommendationLine, error) {
	if len(req.VendorIDs) == 0 {
		return nil, nil
	}

	storeIDs, err := s.repo.ActiveStoreIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active stores: %w", err)
	}
	if len(storeIDs) == 0 {
		return nil, nil
	}

	byVendor, err := s.repo.SelectedVendorSKUs(ctx, req.VendorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load vendor sku mappings: %w", err)
	}
	inTransit, err := s.repo.OpenInTransit(ctx, req.VendorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load open in-transit quantities: %w", err)
	}
	parLevels, err := s.repo.ParLevels(ctx, req.VendorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load par levels: %w", err)
	}

	var (
		mu      sync.Mutex
		results []RecommendationLine
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(recommendWorkers)

	for _, vendorID := range req.VendorIDs {
		skuRows := byVendor[vendorID]
		if len(skuRows) == 0 {
			continue
		}
		params, err := s.resolveVendorParams(ctx, vendorID, req.Overrides)
		if err != nil {
			return nil, err
		}

		for _, skuRow := range skuRows {
			skuRow := skuRow
			par, hasPar := parLevels[repository.VendorSKU{VendorID: vendorID, SKU: skuRow.SKU}]
			group.Go(func() error {
				for _, storeID := range storeIDs {
					line, err := s.recommendOne(groupCtx, params, skuRow, storeID, inTransit, par, hasPar)
					if err != nil {
						return err
					}
					if !req.IncludeZeroQty && line.Result.RoundedRecommendedQty <= 0 {
						continue
					}
					mu.Lock()
					results = append(results, line)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.VendorID != b.VendorID {
			return a.VendorID < b.VendorID
		}
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		return a.StoreID < b.StoreID
	})

	log.Debug().
		Ints64("vendor_ids", req.VendorIDs).
		Int("lines", len(results)).
		Msg("generated vendor-scoped recommendations")
	return results, nil
}

func (s *GenerationService) recommendOne(
	ctx context.Context,
	params ordering.Params,
	skuRow domain.VendorSkuConfig,
	storeID int64,
	inTransit map[repository.VendorStoreSKU]int,
	par domain.ParLevel,
	hasPar bool,
) (RecommendationLine, error) {
	history, err := s.history.DailyUnits(ctx, skuRow.VendorID, storeID, skuRow.SKU, params.HistoryLookbackDays)
	if err != nil {
		return RecommendationLine{}, fmt.Errorf("history load failed for sku %s: %w", skuRow.SKU, err)
	}
	onHand, err := s.onHand.OnHand(ctx, storeID, skuRow.SKU)
	if err != nil {
		return RecommendationLine{}, fmt.Errorf("on-hand load failed for sku %s: %w", skuRow.SKU, err)
	}

	input := ordering.LineInput{
		SKU:                 skuRow.SKU,
		OnHand:              onHand,
		InTransitQty:        inTransit[repository.VendorStoreSKU{VendorID: skuRow.VendorID, StoreID: storeID, SKU: skuRow.SKU}],
		History:             history,
		PackSize:            skuRow.PackSize,
		MinOrderQty:         skuRow.MinOrderQty,
		ParSource:           domain.ParSourceManual,
		ConfidenceThreshold: s.confidenceThreshold,
	}
	if hasPar {
		input.ManualParLevel = par.ManualParLevel
		input.ParSource = par.ParSource
	}

	result, err := ordering.ComputeLineRecommendation(input, params)
	if err != nil {
		return RecommendationLine{}, err
	}

	// Floor-stock safeguard: an item that is completely out of stock must
	// never be silently skipped.
	if onHand.Sign() <= 0 && result.RoundedRecommendedQty < 1 {
		if result.RawRecommendedQty < 1 {
			result.RawRecommendedQty = 1
		}
		result.RoundedRecommendedQty = 1
	}

	return RecommendationLine{
		VendorID: skuRow.VendorID,
		StoreID:  storeID,
		SKU:      skuRow.SKU,
		Result:   result,
	}, nil
}
