package ordering

import (
	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenish/internal/domain"
)

var seven = decimal.NewFromInt(7)

// LineInput is everything the math needs for one (store, sku) decision.
type LineInput struct {
	SKU                 string
	OnHand              decimal.Decimal
	InTransitQty        int
	History             []decimal.Decimal
	PackSize            int
	MinOrderQty         int
	ManualParLevel      *int
	ParSource           domain.ParLevelSource
	ConfidenceThreshold decimal.Decimal
}

// LineResult carries everything downstream display and persistence need.
type LineResult struct {
	SKU                   string
	AvgWeeklyUnits        decimal.Decimal
	SuggestedReorderLevel int
	SuggestedStockUpLevel int
	EffectiveReorderLevel int
	EffectiveStockUpLevel int
	RawRecommendedQty     int
	RoundedRecommendedQty int
	ConfidenceScore       decimal.Decimal
	ConfidenceState       domain.ConfidenceState
	ParSource             domain.ParLevelSource
}

// ceilNonNegative rounds a decimal up to the nearest integer, clamping at 0.
func ceilNonNegative(value decimal.Decimal) int {
	if value.Sign() <= 0 {
		return 0
	}
	return int(value.Ceil().IntPart())
}

// roundUpToPack rounds qty up to the next pack multiple. Zero stays zero.
func roundUpToPack(qty, packSize int) int {
	if qty <= 0 {
		return 0
	}
	if packSize <= 1 {
		return qty
	}
	packs := (qty + packSize - 1) / packSize
	return packs * packSize
}

// ComputeLineRecommendation is the pure per-line math: trim history to the
// lookback window, average over the full window, project reorder/stock-up
// targets, apply the manual par floor, subtract stock already here or on the
// way, and round to pack constraints. Identical inputs always yield
// identical outputs.
func ComputeLineRecommendation(in LineInput, params Params) (LineResult, error) {
	if err := params.Validate(); err != nil {
		return LineResult{}, err
	}
	if in.PackSize < 1 {
		return LineResult{}, configErrorf("pack size must be at least 1")
	}
	if in.MinOrderQty < 0 {
		return LineResult{}, configErrorf("min order quantity cannot be negative")
	}

	trimmed := in.History
	if len(trimmed) > params.HistoryLookbackDays {
		trimmed = trimmed[len(trimmed)-params.HistoryLookbackDays:]
	}

	// Average over the full trimmed window, not just days with sales, so
	// sparse demand is not amplified.
	total := decimal.Zero
	for _, units := range trimmed {
		total = total.Add(units)
	}
	days := len(trimmed)
	if days < 1 {
		days = 1
	}
	avgDaily := total.Div(decimal.NewFromInt(int64(days)))
	avgWeekly := avgDaily.Mul(seven).Round(4)

	suggestedReorder := ceilNonNegative(avgWeekly.Mul(decimal.NewFromInt(int64(params.ReorderWeeks))))
	suggestedStockUp := ceilNonNegative(avgWeekly.Mul(decimal.NewFromInt(int64(params.StockUpWeeks))))
	effectiveReorder := suggestedReorder
	effectiveStockUp := suggestedStockUp

	if in.ParSource == domain.ParSourceManual && in.ManualParLevel != nil {
		manual := *in.ManualParLevel
		if manual < 0 {
			manual = 0
		}
		// The manual par is the reorder floor; the statistical suggestion
		// may raise, never lower, the stock-up ceiling.
		effectiveReorder = manual
		effectiveStockUp = suggestedStockUp
		if manual > effectiveStockUp {
			effectiveStockUp = manual
		}
	}

	currentTotal := ceilNonNegative(in.OnHand)
	if in.InTransitQty > 0 {
		currentTotal += in.InTransitQty
	}

	raw := effectiveStockUp - currentTotal
	if raw < 0 {
		raw = 0
	}
	if raw < in.MinOrderQty {
		raw = in.MinOrderQty
	}
	rounded := roundUpToPack(raw, in.PackSize)

	threshold := in.ConfidenceThreshold
	if threshold.IsZero() {
		threshold = DefaultConfidenceThreshold
	}
	score := ConfidenceScore(trimmed, params.HistoryLookbackDays)

	return LineResult{
		SKU:                   in.SKU,
		AvgWeeklyUnits:        avgWeekly,
		SuggestedReorderLevel: suggestedReorder,
		SuggestedStockUpLevel: suggestedStockUp,
		EffectiveReorderLevel: effectiveReorder,
		EffectiveStockUpLevel: effectiveStockUp,
		RawRecommendedQty:     raw,
		RoundedRecommendedQty: rounded,
		ConfidenceScore:       score,
		ConfidenceState:       ClassifyConfidence(score, threshold),
		ParSource:             in.ParSource,
	}, nil
}
