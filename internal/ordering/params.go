package ordering

import "fmt"

// Params is the resolved math parameter triple used by line recommendations.
type Params struct {
	ReorderWeeks        int `json:"reorder_weeks"`
	StockUpWeeks        int `json:"stock_up_weeks"`
	HistoryLookbackDays int `json:"history_lookback_days"`
}

// Overrides carries optional per-field parameter overrides. A nil field
// inherits from the layer below (vendor override, then global default).
type Overrides struct {
	ReorderWeeks        *int `json:"reorder_weeks"`
	StockUpWeeks        *int `json:"stock_up_weeks"`
	HistoryLookbackDays *int `json:"history_lookback_days"`
}

// ConfigError reports invalid math or line configuration. It is rejected
// before any computation runs.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the parameter invariants: a positive reorder horizon, a
// stock-up horizon strictly above it, and a lookback window of 7..730 days.
func (p Params) Validate() error {
	if p.ReorderWeeks <= 0 {
		return configErrorf("reorder weeks must be greater than zero")
	}
	if p.StockUpWeeks <= p.ReorderWeeks {
		return configErrorf("stock-up weeks must be greater than reorder weeks")
	}
	if p.HistoryLookbackDays < 7 || p.HistoryLookbackDays > 730 {
		return configErrorf("history lookback days must be between 7 and 730")
	}
	return nil
}

// Merge layers overrides on top of p, field by field. The receiver is the
// lower-precedence layer.
func (p Params) Merge(o *Overrides) Params {
	if o == nil {
		return p
	}
	merged := p
	if o.ReorderWeeks != nil {
		merged.ReorderWeeks = *o.ReorderWeeks
	}
	if o.StockUpWeeks != nil {
		merged.StockUpWeeks = *o.StockUpWeeks
	}
	if o.HistoryLookbackDays != nil {
		merged.HistoryLookbackDays = *o.HistoryLookbackDays
	}
	return merged
}

// ResolveParams merges per-call overrides onto defaults and validates the
// result. Validation always runs, even when no overrides are given.
func ResolveParams(defaults Params, overrides *Overrides) (Params, error) {
	resolved := defaults.Merge(overrides)
	if err := resolved.Validate(); err != nil {
		return Params{}, err
	}
	return resolved, nil
}
