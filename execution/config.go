package execution

import (
	"time"

	"github.com/rustyeddy/flashscalper/journal"
	"github.com/rustyeddy/flashscalper/risk"
)

const (
	DefaultLimitGrace = 3 * time.Second

	// a limit price is used only this close to mark (0.5%)
	limitProximity = 0.005

	supportOffset    = 1.001
	resistanceOffset = 0.999

	highConfidence = 75.0
)

type TakeProfitConfig struct {
	BaseROE           float64 // percent of margin
	DynamicATR        bool
	ATRMultiplier     float64
	HighConfidenceROE float64 // 0 disables the override
}

type Config struct {
	AgentID      string
	Leverage     float64
	Sizing       risk.SizingConfig
	Gate         risk.GateConfig
	TakeProfit   TakeProfitConfig
	PaperOnError bool
	LimitGrace   time.Duration
	MaxHold      time.Duration
	// WinRateWindow is how many recent close trades feed the win-rate
	// adjustment when the caller does not supply one.
	WinRateWindow int
}

// Indicators is the optional indicator snapshot attached to a signal.
type Indicators struct {
	ATRPercent *float64
	RSI        *float64
}

// Signal asks for a new position.
type Signal struct {
	Symbol     string
	Direction  journal.Side
	Confidence float64
	Score      float64
	Reasons    []string
	LLMAgreed  bool
	Support    *float64
	Resistance *float64
	Indicators *Indicators
}

// AccountState is the caller's view of the account at signal time.
type AccountState struct {
	Equity        float64
	Exposure      float64
	OpenPositions int
	WinRate       *float64
}
