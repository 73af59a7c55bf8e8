package journal

import (
	"context"
	"errors"
	"time"
)

type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

type TradeType string

const (
	Open  TradeType = "open"
	Close TradeType = "close"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

var ErrNotFound = errors.New("journal: not found")

// SignalMeta is what the originating signal said, kept for later analysis.
type SignalMeta struct {
	Confidence float64  `json:"confidence"`
	Score      float64  `json:"score"`
	Reasons    []string `json:"reasons"`
	LLMAgreed  bool     `json:"llm_agreed"`
}

// Position is an open or closed exposure. MarginUsed is always
// Size*EntryPrice/Leverage.
type Position struct {
	ID      string `json:"id"`
	AgentID string `json:"agent_id"`
	Symbol  string `json:"symbol"`
	Side    Side   `json:"side"`

	Size         float64 `json:"size"`
	EntryPrice   float64 `json:"entry_price"`
	CurrentPrice float64 `json:"current_price"`
	Leverage     float64 `json:"leverage"`
	MarginUsed   float64 `json:"margin_used"`

	UnrealizedPnL float64 `json:"unrealized_pnl"`
	UnrealizedROE float64 `json:"unrealized_roe"`
	HighWaterROE  float64 `json:"high_water_roe"`
	LowWaterROE   float64 `json:"low_water_roe"`

	StopLoss       *float64 `json:"stop_loss,omitempty"`
	TakeProfit     *float64 `json:"take_profit,omitempty"`
	TakeProfitROE  float64  `json:"take_profit_roe"`
	TrailingActive bool     `json:"trailing_active"`
	TrailingStop   *float64 `json:"trailing_stop,omitempty"`

	Signal SignalMeta `json:"signal"`

	OpenedAt           time.Time     `json:"opened_at"`
	MaxHold            time.Duration `json:"max_hold"`
	PartialProfitTaken bool          `json:"partial_profit_taken"`

	Paper    bool       `json:"paper"`
	OrderID  string     `json:"order_id"`
	Status   Status     `json:"status"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

func (p Position) IsLong() bool { return p.Side == Long }

// Trade is a write-once ledger entry. Close trades carry realized P&L, open
// trades carry zero.
type Trade struct {
	ID          string    `json:"id"`
	PositionID  string    `json:"position_id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Type        TradeType `json:"type"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	RealizedPnL float64   `json:"realized_pnl"`
	Fees        float64   `json:"fees"`
	Reason      string    `json:"reason"`
	ExecutedAt  time.Time `json:"executed_at"`
	Paper       bool      `json:"paper"`
}

// Journal is the sink the execution layer writes to.
type Journal interface {
	RecordPosition(ctx context.Context, p Position) error
	RecordTrade(ctx context.Context, t Trade) error
	ClosePosition(ctx context.Context, id string, exitPrice float64, closedAt time.Time) error
	Close() error
}

// Store is a Journal that can also be read back.
type Store interface {
	Journal
	Position(ctx context.Context, id string) (Position, error)
	OpenPositions(ctx context.Context) ([]Position, error)
	// RecentWinRate is the share of the last n close trades with positive
	// P&L. ok is false when there are no close trades yet.
	RecentWinRate(ctx context.Context, n int) (rate float64, ok bool, err error)
}

func winRate(pnls []float64) (float64, bool) {
	if len(pnls) == 0 {
		return 0, false
	}
	wins := 0
	for _, p := range pnls {
		if p > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(pnls)), true
}
