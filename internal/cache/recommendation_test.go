package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenish/internal/ordering"
)

func TestPreviewKeyStability(t *testing.T) {
	params := ordering.Params{ReorderWeeks: 5, StockUpWeeks: 10, HistoryLookbackDays: 120}

	a := PreviewKey([]int64{1, 2, 3}, params, false)
	b := PreviewKey([]int64{3, 1, 2}, params, false)
	assert.Equal(t, a, b, "vendor order must not change the key")

	c := PreviewKey([]int64{1, 2, 3}, params, true)
	assert.NotEqual(t, a, c, "include-zero flag must change the key")

	other := params
	other.HistoryLookbackDays = 60
	d := PreviewKey([]int64{1, 2, 3}, other, false)
	assert.NotEqual(t, a, d, "different params must change the key")
}

func TestNoopCacheMisses(t *testing.T) {
	c := NewNoopRecommendationPreviewCache()
	ctx := context.Background()

	lines, ok, err := c.GetPreview(ctx, "any")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, lines)

	require.NoError(t, c.SetPreview(ctx, "any", nil))
	require.NoError(t, c.InvalidateAll(ctx))
}
