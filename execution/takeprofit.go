package execution

import (
	"math"

	"github.com/rustyeddy/flashscalper/journal"
)

// TakeProfitROE picks the target ROE (percent of margin) for a new position.
// A configured high-confidence override wins over the ATR target.
func TakeProfitROE(cfg TakeProfitConfig, sig Signal, leverage float64) float64 {
	if sig.Confidence >= highConfidence && cfg.HighConfidenceROE > 0 {
		return cfg.HighConfidenceROE
	}
	roe := cfg.BaseROE
	if cfg.DynamicATR && sig.Indicators != nil && sig.Indicators.ATRPercent != nil && leverage > 0 {
		roe = math.Max(cfg.BaseROE, *sig.Indicators.ATRPercent*cfg.ATRMultiplier/leverage)
	}
	return roe
}

// TakeProfitPrice converts a target ROE into a price for a position
// entered at entry.
func TakeProfitPrice(side journal.Side, entry, roe, leverage float64) float64 {
	if leverage <= 0 {
		leverage = 1
	}
	move := roe / 100 / leverage
	if side == journal.Short {
		return entry * (1 - move)
	}
	return entry * (1 + move)
}
