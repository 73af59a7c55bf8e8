package market

import (
	"strings"

	"github.com/shopspring/decimal"
)

type AssetKind string

const (
	Perp       AssetKind = "PERP"
	PerpOption AssetKind = "PERP_OPTION"
)

type MarginKind string

const (
	Cross    MarginKind = "CROSS"
	Isolated MarginKind = "ISOLATED"
)

// Rule holds the trading rules of one symbol. Increments keep their wire
// string form since precision is derived from the digits after the point.
type Rule struct {
	Symbol             string
	BaseCurrency       string
	QuoteCurrency      string
	SettlementCurrency string
	OrderSizeIncrement string
	PriceTickSize      string
	MinNotional        float64
	MaxOrderSize       float64
	PositionLimit      float64
	AssetKind          AssetKind
	MarginKind         MarginKind
}

// Fallbacks used when a symbol has no rule.
const (
	FallbackQuantityPrecision = 3
	FallbackMinQuantity       = 0.001
	FallbackPricePrecision    = 2
)

// Precision counts the digits after the decimal point of an increment.
// Integral increments ("1", "10") have precision 0.
func Precision(increment string) int {
	s := strings.TrimSpace(increment)
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return len(s) - i - 1
}

// MinQuantity is the smallest order size the market accepts.
func MinQuantity(r *Rule) float64 {
	if r == nil {
		return FallbackMinQuantity
	}
	inc, err := decimal.NewFromString(r.OrderSizeIncrement)
	if err != nil || !inc.IsPositive() {
		return FallbackMinQuantity
	}
	return inc.InexactFloat64()
}

func quantityRounding(r *Rule) (int32, decimal.Decimal) {
	if r == nil {
		return FallbackQuantityPrecision, decimal.NewFromFloat(FallbackMinQuantity)
	}
	inc, err := decimal.NewFromString(r.OrderSizeIncrement)
	if err != nil || !inc.IsPositive() {
		return FallbackQuantityPrecision, decimal.NewFromFloat(FallbackMinQuantity)
	}
	return int32(Precision(r.OrderSizeIncrement)), inc
}

func roundQuantity(r *Rule, qty float64) (decimal.Decimal, int32) {
	p, minQty := quantityRounding(r)
	q := decimal.NewFromFloat(qty).Shift(p).Floor().Shift(-p)
	if q.LessThan(minQty) {
		q = minQty
	}
	return q, p
}

// RoundQuantity truncates qty to the market precision and clamps it up to the
// minimum size: max(min, floor(qty*10^p)/10^p).
func RoundQuantity(r *Rule, qty float64) float64 {
	q, _ := roundQuantity(r, qty)
	return q.InexactFloat64()
}

// FormatQuantity renders RoundQuantity with exactly p digits after the point.
func FormatQuantity(r *Rule, qty float64) string {
	q, p := roundQuantity(r, qty)
	return q.StringFixed(p)
}

func roundPrice(r *Rule, price float64) (decimal.Decimal, int32) {
	px := decimal.NewFromFloat(price)
	if r != nil {
		tick, err := decimal.NewFromString(r.PriceTickSize)
		if err == nil && tick.IsPositive() {
			p := int32(Precision(r.PriceTickSize))
			return px.Div(tick).Floor().Mul(tick), p
		}
	}
	p := int32(FallbackPricePrecision)
	return px.Shift(p).Floor().Shift(-p), p
}

// RoundPrice truncates price down to the nearest tick.
func RoundPrice(r *Rule, price float64) float64 {
	px, _ := roundPrice(r, price)
	return px.InexactFloat64()
}

// FormatPrice renders RoundPrice at the tick's own precision.
func FormatPrice(r *Rule, price float64) string {
	px, p := roundPrice(r, price)
	return px.StringFixed(p)
}
