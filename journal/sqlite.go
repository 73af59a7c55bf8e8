package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite has a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

const positionColumns = `id, agent_id, symbol, side, size, entry_price, current_price, leverage, margin_used,
	unrealized_pnl, unrealized_roe, high_water_roe, low_water_roe, stop_loss, take_profit, take_profit_roe,
	trailing_active, trailing_stop, confidence, score, reasons, llm_agreed, opened_at, max_hold_seconds,
	partial_profit_taken, paper, order_id, status, closed_at`

func (j *SQLite) RecordPosition(ctx context.Context, p Position) error {
	reasons, err := encodeReasons(p.Signal.Reasons)
	if err != nil {
		return err
	}
	if p.Status == "" {
		p.Status = StatusOpen
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO positions (`+positionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AgentID, p.Symbol, string(p.Side), p.Size, p.EntryPrice, p.CurrentPrice, p.Leverage, p.MarginUsed,
		p.UnrealizedPnL, p.UnrealizedROE, p.HighWaterROE, p.LowWaterROE,
		nullFloat(p.StopLoss), nullFloat(p.TakeProfit), p.TakeProfitROE,
		p.TrailingActive, nullFloat(p.TrailingStop),
		p.Signal.Confidence, p.Signal.Score, reasons, p.Signal.LLMAgreed,
		p.OpenedAt.UTC(), int64(p.MaxHold/time.Second), p.PartialProfitTaken,
		p.Paper, p.OrderID, string(p.Status), nullTime(p.ClosedAt),
	)
	return err
}

func (j *SQLite) RecordTrade(ctx context.Context, t Trade) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trades
		(id, position_id, symbol, side, type, quantity, price, realized_pnl, fees, reason, executed_at, paper)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.PositionID, t.Symbol, string(t.Side), string(t.Type),
		t.Quantity, t.Price, t.RealizedPnL, t.Fees, t.Reason, t.ExecutedAt.UTC(), t.Paper,
	)
	return err
}

// ClosePosition marks the position closed at exitPrice. The realized P&L
// lives on the matching close trade, not here.
func (j *SQLite) ClosePosition(ctx context.Context, id string, exitPrice float64, closedAt time.Time) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE positions SET status = ?, current_price = ?, closed_at = ?
		WHERE id = ?`,
		string(StatusClosed), exitPrice, closedAt.UTC(), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("position %q: %w", id, ErrNotFound)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (Position, error) {
	var (
		p                    Position
		side, status         string
		reasons              string
		stop, take, trailing sql.NullFloat64
		closed               sql.NullTime
		holdSeconds          int64
	)
	err := row.Scan(
		&p.ID, &p.AgentID, &p.Symbol, &side, &p.Size, &p.EntryPrice, &p.CurrentPrice, &p.Leverage, &p.MarginUsed,
		&p.UnrealizedPnL, &p.UnrealizedROE, &p.HighWaterROE, &p.LowWaterROE,
		&stop, &take, &p.TakeProfitROE, &p.TrailingActive, &trailing,
		&p.Signal.Confidence, &p.Signal.Score, &reasons, &p.Signal.LLMAgreed,
		&p.OpenedAt, &holdSeconds, &p.PartialProfitTaken,
		&p.Paper, &p.OrderID, &status, &closed,
	)
	if err != nil {
		return Position{}, err
	}

	p.Side = Side(side)
	p.Status = Status(status)
	p.StopLoss = floatPtr(stop)
	p.TakeProfit = floatPtr(take)
	p.TrailingStop = floatPtr(trailing)
	p.MaxHold = time.Duration(holdSeconds) * time.Second
	if closed.Valid {
		c := closed.Time
		p.ClosedAt = &c
	}
	if err := json.Unmarshal([]byte(reasons), &p.Signal.Reasons); err != nil {
		return Position{}, fmt.Errorf("position %s reasons: %w", p.ID, err)
	}
	return p, nil
}

func encodeReasons(r []string) (string, error) {
	if r == nil {
		r = []string{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
