package ordering

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestResolveParamsUsesDefaults(t *testing.T) {
	defaults := Params{ReorderWeeks: 5, StockUpWeeks: 10, HistoryLookbackDays: 120}

	resolved, err := ResolveParams(defaults, nil)
	require.NoError(t, err)
	assert.Equal(t, defaults, resolved)
}

func TestResolveParamsAppliesOverrides(t *testing.T) {
	defaults := Params{ReorderWeeks: 5, StockUpWeeks: 10, HistoryLookbackDays: 120}
	overrides := &Overrides{
		ReorderWeeks:        intPtr(4),
		StockUpWeeks:        intPtr(9),
		HistoryLookbackDays: intPtr(60),
	}

	resolved, err := ResolveParams(defaults, overrides)
	require.NoError(t, err)
	assert.Equal(t, Params{ReorderWeeks: 4, StockUpWeeks: 9, HistoryLookbackDays: 60}, resolved)
}

func TestResolveParamsMergesFieldByField(t *testing.T) {
	defaults := Params{ReorderWeeks: 5, StockUpWeeks: 10, HistoryLookbackDays: 120}
	overrides := &Overrides{StockUpWeeks: intPtr(12)}

	resolved, err := ResolveParams(defaults, overrides)
	require.NoError(t, err)
	assert.Equal(t, Params{ReorderWeeks: 5, StockUpWeeks: 12, HistoryLookbackDays: 120}, resolved)
}

func TestResolveParamsValidation(t *testing.T) {
	cases := []struct {
		name   string
		params Params
	}{
		{"zero reorder weeks", Params{ReorderWeeks: 0, StockUpWeeks: 10, HistoryLookbackDays: 120}},
		{"stock-up equal to reorder", Params{ReorderWeeks: 5, StockUpWeeks: 5, HistoryLookbackDays: 120}},
		{"stock-up below reorder", Params{ReorderWeeks: 5, StockUpWeeks: 4, HistoryLookbackDays: 120}},
		{"lookback too short", Params{ReorderWeeks: 5, StockUpWeeks: 10, HistoryLookbackDays: 6}},
		{"lookback too long", Params{ReorderWeeks: 5, StockUpWeeks: 10, HistoryLookbackDays: 731}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveParams(tc.params, nil)
			require.Error(t, err)

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestResolveParamsValidatesAfterMerge(t *testing.T) {
	defaults := Params{ReorderWeeks: 5, StockUpWeeks: 10, HistoryLookbackDays: 120}
	// Raising reorder weeks past the default stock-up horizon must fail.
	_, err := ResolveParams(defaults, &Overrides{ReorderWeeks: intPtr(10)})
	require.Error(t, err)
}
