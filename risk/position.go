package risk

// Thresholds on confidence normalized to [-1, 1].
const (
	confidenceBoostFrom  = 0.4
	confidenceReduceFrom = 0.2
	confidenceReduceAbs  = 65

	winRateLow       = 0.4
	winRateBoost     = 1.15
	winRateReduction = 0.80

	DefaultWinRateHighThreshold = 0.65
)

// NormalizeConfidence maps a 0-100 confidence onto [-1, 1].
func NormalizeConfidence(confidence float64) float64 {
	return (confidence - 50) / 50
}

// ConfidenceMultiplier scales size toward ConfidenceBoostMax for strong
// signals and down by ConfidenceReduction for weak ones.
func ConfidenceMultiplier(cfg SizingConfig, confidence float64) float64 {
	n := NormalizeConfidence(confidence)
	switch {
	case n > confidenceBoostFrom && cfg.ConfidenceBoostMax > 0:
		return 1 + (cfg.ConfidenceBoostMax-1)*(n-confidenceBoostFrom)/(1-confidenceBoostFrom)
	case n < confidenceReduceFrom && confidence < confidenceReduceAbs && cfg.ConfidenceReduction > 0:
		return cfg.ConfidenceReduction
	}
	return 1
}

// WinRateMultiplier rewards a hot streak and shrinks size after a cold one.
func WinRateMultiplier(cfg SizingConfig, winRate float64) float64 {
	high := cfg.WinRateHighThreshold
	if high <= 0 {
		high = DefaultWinRateHighThreshold
	}
	switch {
	case winRate >= high:
		return winRateBoost
	case winRate < winRateLow:
		return winRateReduction
	}
	return 1
}

// PositionSize turns account state into a target notional and quantity.
// It is pure: the same inputs always give the same result.
func PositionSize(cfg SizingConfig, in SizingInputs) Sizing {
	var notional float64
	if cfg.FixedNotionalUSD > 0 {
		notional = cfg.FixedNotionalUSD
	} else {
		notional = cfg.BasePercent / 100 * (in.Equity - in.Exposure)
		if cfg.ConfidenceSizing {
			notional *= ConfidenceMultiplier(cfg, in.Confidence)
		}
		if cfg.WinRateSizing && in.WinRate != nil {
			notional *= WinRateMultiplier(cfg, *in.WinRate)
		}
		notional = clamp(notional, cfg.MinPositionUSD, cfg.MaxPositionUSD)
	}

	s := Sizing{Notional: notional}
	if in.Price > 0 {
		s.Quantity = notional / in.Price
	}
	return s
}

func clamp(x, lo, hi float64) float64 {
	if hi > 0 && x > hi {
		x = hi
	}
	if x < lo {
		x = lo
	}
	return x
}
