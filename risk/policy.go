package risk

// SizingConfig drives PositionSize. Percent fields are in percent units (10 = 10%).
type SizingConfig struct {
	FixedNotionalUSD float64 // > 0 bypasses every other rule

	BasePercent    float64 // of equity not already committed
	MinPositionUSD float64
	MaxPositionUSD float64

	ConfidenceSizing    bool
	ConfidenceBoostMax  float64 // multiplier at confidence 100, e.g. 1.5
	ConfidenceReduction float64 // multiplier for weak signals, e.g. 0.7

	WinRateSizing        bool
	WinRateHighThreshold float64 // 0.65
}

type SizingInputs struct {
	Equity     float64
	Exposure   float64 // margin already committed to open positions
	Price      float64
	Confidence float64 // 0-100

	WinRate *float64 // nil when there is no history
}

type Sizing struct {
	Notional float64
	Quantity float64
}

// GateConfig drives CanOpen.
type GateConfig struct {
	MaxPositions       int
	MaxExposurePercent float64 // of equity, 50 = 50%
}

type GateInputs struct {
	Equity          float64
	CurrentExposure float64
	EstimatedMargin float64
	OpenPositions   int
}
