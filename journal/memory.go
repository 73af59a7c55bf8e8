package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory keeps everything in process. Values are copied in and out.
type Memory struct {
	mu        sync.RWMutex
	positions map[string]Position
	trades    []Trade
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{positions: make(map[string]Position)}
}

func (m *Memory) RecordPosition(_ context.Context, p Position) error {
	if p.Status == "" {
		p.Status = StatusOpen
	}
	m.mu.Lock()
	m.positions[p.ID] = clonePosition(p)
	m.mu.Unlock()
	return nil
}

func (m *Memory) RecordTrade(_ context.Context, t Trade) error {
	m.mu.Lock()
	m.trades = append(m.trades, t)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ClosePosition(_ context.Context, id string, exitPrice float64, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[id]
	if !ok {
		return fmt.Errorf("position %q: %w", id, ErrNotFound)
	}
	p.Status = StatusClosed
	p.CurrentPrice = exitPrice
	p.ClosedAt = &closedAt
	m.positions[id] = p
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Position(_ context.Context, id string) (Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.positions[id]
	if !ok {
		return Position{}, fmt.Errorf("position %q: %w", id, ErrNotFound)
	}
	return clonePosition(p), nil
}

func (m *Memory) OpenPositions(_ context.Context) ([]Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Position
	for _, p := range m.positions {
		if p.Status == StatusOpen {
			out = append(out, clonePosition(p))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].OpenedAt.Before(out[k].OpenedAt) })
	return out, nil
}

func (m *Memory) RecentWinRate(_ context.Context, n int) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pnls []float64
	for i := len(m.trades) - 1; i >= 0 && len(pnls) < n; i-- {
		if m.trades[i].Type == Close {
			pnls = append(pnls, m.trades[i].RealizedPnL)
		}
	}
	rate, ok := winRate(pnls)
	return rate, ok, nil
}

// Trades returns a copy of every recorded trade in insertion order.
func (m *Memory) Trades() []Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Trade, len(m.trades))
	copy(out, m.trades)
	return out
}

func clonePosition(p Position) Position {
	if p.Signal.Reasons != nil {
		p.Signal.Reasons = append([]string(nil), p.Signal.Reasons...)
	}
	p.StopLoss = cloneFloat(p.StopLoss)
	p.TakeProfit = cloneFloat(p.TakeProfit)
	p.TrailingStop = cloneFloat(p.TrailingStop)
	if p.ClosedAt != nil {
		c := *p.ClosedAt
		p.ClosedAt = &c
	}
	return p
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
