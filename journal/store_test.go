package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

func fp(v float64) *float64 { return &v }

func samplePosition(id string, opened time.Time) Position {
	return Position{
		ID:            id,
		AgentID:       "agent-1",
		Symbol:        "BTC-USD-PERP",
		Side:          Long,
		Size:          0.25,
		EntryPrice:    42000.5,
		CurrentPrice:  42000.5,
		Leverage:      5,
		MarginUsed:    2100.025,
		StopLoss:      fp(41000),
		TakeProfit:    fp(43000),
		TakeProfitROE: 12.5,
		Signal: SignalMeta{
			Confidence: 82,
			Score:      0.75,
			Reasons:    []string{"rsi oversold", "volume spike"},
			LLMAgreed:  true,
		},
		OpenedAt: opened,
		MaxHold:  30 * time.Minute,
		Paper:    true,
		OrderID:  "ord-" + id,
		Status:   StatusOpen,
	}
}

func closeTrade(id string, pnl float64, at time.Time) Trade {
	return Trade{
		ID:          id,
		PositionID:  "p-" + id,
		Symbol:      "ETH-USD-PERP",
		Side:        Short,
		Type:        Close,
		Quantity:    1,
		Price:       3000,
		RealizedPnL: pnl,
		Reason:      "take_profit",
		ExecutedAt:  at,
	}
}

// exerciseStore runs the contract every readable store must satisfy. The
// store must start empty.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("position round trip", func(t *testing.T) {
		want := samplePosition("rt", t0)
		require.NoError(t, s.RecordPosition(ctx, want))

		got, err := s.Position(ctx, "rt")
		require.NoError(t, err)
		assert.Equal(t, want.Symbol, got.Symbol)
		assert.Equal(t, want.Side, got.Side)
		assert.InDelta(t, want.Size, got.Size, 1e-12)
		assert.InDelta(t, want.EntryPrice, got.EntryPrice, 1e-9)
		assert.InDelta(t, want.MarginUsed, got.MarginUsed, 1e-9)
		require.NotNil(t, got.StopLoss)
		assert.InDelta(t, 41000.0, *got.StopLoss, 1e-9)
		assert.Nil(t, got.TrailingStop)
		assert.Equal(t, want.Signal.Reasons, got.Signal.Reasons)
		assert.True(t, got.Signal.LLMAgreed)
		assert.True(t, got.OpenedAt.Equal(t0))
		assert.Equal(t, 30*time.Minute, got.MaxHold)
		assert.True(t, got.Paper)
		assert.Equal(t, StatusOpen, got.Status)
		assert.Nil(t, got.ClosedAt)
	})

	t.Run("missing position", func(t *testing.T) {
		_, err := s.Position(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.ClosePosition(ctx, "nope", 1, t0), ErrNotFound)
	})

	t.Run("close removes from open set", func(t *testing.T) {
		require.NoError(t, s.RecordPosition(ctx, samplePosition("a", t0.Add(time.Minute))))
		require.NoError(t, s.RecordPosition(ctx, samplePosition("b", t0.Add(2*time.Minute))))

		closedAt := t0.Add(time.Hour)
		require.NoError(t, s.ClosePosition(ctx, "a", 42500, closedAt))

		open, err := s.OpenPositions(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(open))
		for _, p := range open {
			ids = append(ids, p.ID)
		}
		assert.Equal(t, []string{"rt", "b"}, ids)

		got, err := s.Position(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, StatusClosed, got.Status)
		assert.InDelta(t, 42500.0, got.CurrentPrice, 1e-9)
		require.NotNil(t, got.ClosedAt)
		assert.True(t, got.ClosedAt.Equal(closedAt))
	})

	t.Run("win rate", func(t *testing.T) {
		_, ok, err := s.RecentWinRate(ctx, 10)
		require.NoError(t, err)
		assert.False(t, ok, "no close trades yet")

		open := Trade{ID: "o1", PositionID: "p", Symbol: "X", Side: Long, Type: Open, Quantity: 1, Price: 1, ExecutedAt: t0}
		require.NoError(t, s.RecordTrade(ctx, open))

		pnls := []float64{-5, 10, 3, -1, 8}
		for i, pnl := range pnls {
			require.NoError(t, s.RecordTrade(ctx, closeTrade(fmt.Sprintf("c%d", i), pnl, t0.Add(time.Duration(i)*time.Minute))))
		}

		rate, ok, err := s.RecentWinRate(ctx, 10)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.InDelta(t, 3.0/5.0, rate, 1e-12)

		// newest three: 3, -1, 8
		rate, ok, err = s.RecentWinRate(ctx, 3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.InDelta(t, 2.0/3.0, rate, 1e-12)
	})
}

func TestWinRate(t *testing.T) {
	t.Parallel()

	_, ok := winRate(nil)
	assert.False(t, ok)

	rate, ok := winRate([]float64{1, 0, -1, 2})
	assert.True(t, ok)
	assert.Equal(t, 0.5, rate, "zero P&L is not a win")
}
