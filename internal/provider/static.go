package provider

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// StaticProvider serves history and on-hand data from in-memory maps. Used
// in tests and demo seeding where no POS feed exists.
type StaticProvider struct {
	History map[string][]decimal.Decimal
	Stock   map[string]decimal.Decimal
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		History: make(map[string][]decimal.Decimal),
		Stock:   make(map[string]decimal.Decimal),
	}
}

func key(storeID int64, sku string) string {
	return fmt.Sprintf("%d:%s", storeID, sku)
}

func (p *StaticProvider) DailyUnits(_ context.Context, _ int64, storeID int64, sku string, lookbackDays int) ([]decimal.Decimal, error) {
	series := p.History[key(storeID, sku)]
	if len(series) > lookbackDays {
		series = series[len(series)-lookbackDays:]
	}
	return series, nil
}

func (p *StaticProvider) OnHand(_ context.Context, storeID int64, sku string) (decimal.Decimal, error) {
	return p.Stock[key(storeID, sku)], nil
}

// SetHistory registers a daily units series for a (store, sku).
func (p *StaticProvider) SetHistory(storeID int64, sku string, series []decimal.Decimal) {
	p.History[key(storeID, sku)] = series
}

// SetOnHand registers current stock for a (store, sku).
func (p *StaticProvider) SetOnHand(storeID int64, sku string, qty decimal.Decimal) {
	p.Stock[key(storeID, sku)] = qty
}
