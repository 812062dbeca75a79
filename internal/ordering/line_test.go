package ordering

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenish/internal/domain"
)

var testParams = Params{ReorderWeeks: 5, StockUpWeeks: 10, HistoryLookbackDays: 120}

func TestManualParTakesPrecedenceAsReorderFloor(t *testing.T) {
	line := LineInput{
		SKU:            "SKU-1",
		OnHand:         decimal.Zero,
		History:        repeat("0.5", 120), // avg weekly 3.5
		PackSize:       1,
		ManualParLevel: intPtr(50),
		ParSource:      domain.ParSourceManual,
	}

	result, err := ComputeLineRecommendation(line, testParams)
	require.NoError(t, err)
	assert.Equal(t, 18, result.SuggestedReorderLevel)
	assert.Equal(t, 35, result.SuggestedStockUpLevel)
	assert.Equal(t, 50, result.EffectiveReorderLevel)
	// Manual par above the suggestion raises the ceiling.
	assert.Equal(t, 50, result.EffectiveStockUpLevel)
	assert.Equal(t, 50, result.RoundedRecommendedQty)
}

func TestSuggestionCanRaiseButNotLowerManualCeiling(t *testing.T) {
	line := LineInput{
		SKU:            "SKU-1",
		OnHand:         decimal.Zero,
		History:        repeat("1", 120), // stock-up target 70
		PackSize:       1,
		ManualParLevel: intPtr(20),
		ParSource:      domain.ParSourceManual,
	}

	result, err := ComputeLineRecommendation(line, testParams)
	require.NoError(t, err)
	assert.Equal(t, 20, result.EffectiveReorderLevel)
	assert.Equal(t, 70, result.EffectiveStockUpLevel)
}

func TestInTransitIsSubtractedBeforeRounding(t *testing.T) {
	line := LineInput{
		SKU:          "SKU-2",
		OnHand:       decimal.NewFromInt(10),
		InTransitQty: 20,
		History:      repeat("1", 120), // avg weekly 7, stock-up target 70
		PackSize:     5,
	}

	result, err := ComputeLineRecommendation(line, testParams)
	require.NoError(t, err)
	assert.Equal(t, 70, result.SuggestedStockUpLevel)
	assert.Equal(t, 40, result.RawRecommendedQty) // 70 - (10 + 20)
	assert.Equal(t, 40, result.RoundedRecommendedQty)
}

func TestPackRoundingAndMinimumOrderQty(t *testing.T) {
	line := LineInput{
		SKU:            "SKU-3",
		OnHand:         decimal.NewFromInt(60),
		History:        repeat("1", 120), // stock-up target 70
		PackSize:       6,
		MinOrderQty:    11,
		ManualParLevel: intPtr(65),
		ParSource:      domain.ParSourceManual,
	}

	result, err := ComputeLineRecommendation(line, testParams)
	require.NoError(t, err)
	assert.Equal(t, 11, result.RawRecommendedQty)
	assert.Equal(t, 12, result.RoundedRecommendedQty)
}

func TestAboveStockUpLevelDoesNotOrder(t *testing.T) {
	line := LineInput{
		SKU:            "SKU-6",
		OnHand:         decimal.NewFromInt(6),
		History:        repeat("0.1", 120), // reorder ~4, stock-up ~7 -> manual 5 caps lower
		PackSize:       1,
		ManualParLevel: intPtr(3),
		ParSource:      domain.ParSourceManual,
	}

	result, err := ComputeLineRecommendation(line, testParams)
	require.NoError(t, err)
	assert.Equal(t, 3, result.EffectiveReorderLevel)
	assert.Equal(t, 7, result.EffectiveStockUpLevel)
	assert.Equal(t, 1, result.RawRecommendedQty)

	// Fully stocked past the ceiling orders nothing at all.
	line.OnHand = decimal.NewFromInt(9)
	result, err = ComputeLineRecommendation(line, testParams)
	require.NoError(t, err)
	assert.Equal(t, 0, result.RawRecommendedQty)
	assert.Equal(t, 0, result.RoundedRecommendedQty)
}

func TestAverageUsesFullLookbackWindow(t *testing.T) {
	params := Params{ReorderWeeks: 5, StockUpWeeks: 10, HistoryLookbackDays: 10}
	// 2 sale days of 3 and 4 units across a 10-day window.
	history := repeat("0", 10)
	history[2] = decimal.NewFromInt(3)
	history[7] = decimal.NewFromInt(4)

	result, err := ComputeLineRecommendation(LineInput{SKU: "SKU-5", History: history, PackSize: 1}, params)
	require.NoError(t, err)
	// avg_daily = (3+4)/10 = 0.7 => avg_weekly = 4.9
	assert.True(t, result.AvgWeeklyUnits.Equal(decimal.RequireFromString("4.9")), "got %s", result.AvgWeeklyUnits)
}

func TestEmptyHistoryYieldsZeroQtyLowConfidence(t *testing.T) {
	result, err := ComputeLineRecommendation(LineInput{SKU: "SKU-4", PackSize: 1}, testParams)
	require.NoError(t, err)
	assert.True(t, result.AvgWeeklyUnits.IsZero())
	assert.Equal(t, 0, result.RoundedRecommendedQty)
	assert.True(t, result.ConfidenceScore.IsZero())
	assert.Equal(t, domain.ConfidenceLow, result.ConfidenceState)
}

func TestLowSignalHistoryYieldsLowConfidence(t *testing.T) {
	result, err := ComputeLineRecommendation(LineInput{
		SKU:      "SKU-4",
		History:  repeat("0", 10),
		PackSize: 1,
	}, testParams)
	require.NoError(t, err)
	assert.True(t, result.ConfidenceScore.LessThan(DefaultConfidenceThreshold))
	assert.Equal(t, domain.ConfidenceLow, result.ConfidenceState)
}

func TestNegativeOnHandTreatedAsZero(t *testing.T) {
	line := LineInput{
		SKU:      "SKU-7",
		OnHand:   decimal.NewFromInt(-5),
		History:  repeat("1", 120),
		PackSize: 1,
	}

	result, err := ComputeLineRecommendation(line, testParams)
	require.NoError(t, err)
	assert.Equal(t, 70, result.RawRecommendedQty)
}

func TestRoundedQtyIsPackMultiple(t *testing.T) {
	for _, packSize := range []int{1, 2, 6, 12, 24} {
		line := LineInput{
			SKU:      "SKU-8",
			History:  repeat("1.3", 90),
			PackSize: packSize,
		}
		result, err := ComputeLineRecommendation(line, testParams)
		require.NoError(t, err)
		assert.Zero(t, result.RoundedRecommendedQty%packSize)
		assert.GreaterOrEqual(t, result.RoundedRecommendedQty, result.RawRecommendedQty)
	}
}

func TestComputeLineRecommendationIsPure(t *testing.T) {
	line := LineInput{
		SKU:          "SKU-9",
		OnHand:       decimal.RequireFromString("3.5"),
		InTransitQty: 2,
		History:      repeat("0.25", 45),
		PackSize:     4,
		MinOrderQty:  2,
	}

	first, err := ComputeLineRecommendation(line, testParams)
	require.NoError(t, err)
	second, err := ComputeLineRecommendation(line, testParams)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLinePreconditionValidation(t *testing.T) {
	_, err := ComputeLineRecommendation(LineInput{SKU: "SKU-10", PackSize: 0}, testParams)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = ComputeLineRecommendation(LineInput{SKU: "SKU-10", PackSize: 1, MinOrderQty: -1}, testParams)
	require.Error(t, err)

	_, err = ComputeLineRecommendation(LineInput{SKU: "SKU-10", PackSize: 1}, Params{ReorderWeeks: 5, StockUpWeeks: 4, HistoryLookbackDays: 120})
	require.Error(t, err)
}
