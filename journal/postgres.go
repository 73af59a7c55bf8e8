package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Postgres stores the journal in PostgreSQL. Money and size columns are
// NUMERIC and cross the wire as decimal strings.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to dsn and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) RecordPosition(ctx context.Context, p Position) error {
	reasons, err := encodeReasons(p.Signal.Reasons)
	if err != nil {
		return err
	}
	if p.Status == "" {
		p.Status = StatusOpen
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO positions (`+positionColumns+`)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC,
		         $10::NUMERIC, $11::NUMERIC, $12::NUMERIC, $13::NUMERIC, $14::NUMERIC, $15::NUMERIC, $16::NUMERIC,
		         $17, $18::NUMERIC, $19::NUMERIC, $20::NUMERIC, $21::JSONB, $22, $23, $24,
		         $25, $26, $27, $28, $29)
		 ON CONFLICT (id) DO UPDATE SET
		         size = EXCLUDED.size, current_price = EXCLUDED.current_price, margin_used = EXCLUDED.margin_used,
		         unrealized_pnl = EXCLUDED.unrealized_pnl, unrealized_roe = EXCLUDED.unrealized_roe,
		         high_water_roe = EXCLUDED.high_water_roe, low_water_roe = EXCLUDED.low_water_roe,
		         stop_loss = EXCLUDED.stop_loss, take_profit = EXCLUDED.take_profit,
		         trailing_active = EXCLUDED.trailing_active, trailing_stop = EXCLUDED.trailing_stop,
		         partial_profit_taken = EXCLUDED.partial_profit_taken,
		         status = EXCLUDED.status, closed_at = EXCLUDED.closed_at`,
		p.ID, p.AgentID, p.Symbol, string(p.Side),
		dec(p.Size), dec(p.EntryPrice), dec(p.CurrentPrice), dec(p.Leverage), dec(p.MarginUsed),
		dec(p.UnrealizedPnL), dec(p.UnrealizedROE), dec(p.HighWaterROE), dec(p.LowWaterROE),
		decPtr(p.StopLoss), decPtr(p.TakeProfit), dec(p.TakeProfitROE),
		p.TrailingActive, decPtr(p.TrailingStop),
		dec(p.Signal.Confidence), dec(p.Signal.Score), reasons, p.Signal.LLMAgreed,
		p.OpenedAt.UTC(), int64(p.MaxHold/time.Second), p.PartialProfitTaken,
		p.Paper, p.OrderID, string(p.Status), p.ClosedAt,
	)
	return err
}

func (s *Postgres) RecordTrade(ctx context.Context, t Trade) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, position_id, symbol, side, type, quantity, price, realized_pnl, fees, reason, executed_at, paper)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC, $10, $11, $12)`,
		t.ID, t.PositionID, t.Symbol, string(t.Side), string(t.Type),
		dec(t.Quantity), dec(t.Price), dec(t.RealizedPnL), dec(t.Fees),
		t.Reason, t.ExecutedAt.UTC(), t.Paper,
	)
	return err
}

func (s *Postgres) ClosePosition(ctx context.Context, id string, exitPrice float64, closedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE positions SET status = $1, current_price = $2::NUMERIC, closed_at = $3 WHERE id = $4`,
		string(StatusClosed), dec(exitPrice), closedAt.UTC(), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

const pgPositionSelect = `SELECT id, agent_id, symbol, side,
	size::TEXT, entry_price::TEXT, current_price::TEXT, leverage::TEXT, margin_used::TEXT,
	unrealized_pnl::TEXT, unrealized_roe::TEXT, high_water_roe::TEXT, low_water_roe::TEXT,
	stop_loss::TEXT, take_profit::TEXT, take_profit_roe::TEXT, trailing_active, trailing_stop::TEXT,
	confidence::TEXT, score::TEXT, reasons::TEXT, llm_agreed, opened_at, max_hold_seconds,
	partial_profit_taken, paper, order_id, status, closed_at
	FROM positions`

func (s *Postgres) Position(ctx context.Context, id string) (Position, error) {
	p, err := scanPgPosition(s.pool.QueryRow(ctx, pgPositionSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Position{}, fmt.Errorf("position %q: %w", id, ErrNotFound)
		}
		return Position{}, fmt.Errorf("get position %s: %w", id, err)
	}
	return p, nil
}

func (s *Postgres) OpenPositions(ctx context.Context) ([]Position, error) {
	rows, err := s.pool.Query(ctx, pgPositionSelect+` WHERE status = $1 ORDER BY opened_at ASC`, string(StatusOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		p, err := scanPgPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) RecentWinRate(ctx context.Context, n int) (float64, bool, error) {
	if n <= 0 {
		return 0, false, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT realized_pnl::TEXT FROM trades WHERE type = $1 ORDER BY executed_at DESC LIMIT $2`,
		string(Close), n)
	if err != nil {
		return 0, false, err
	}
	defer rows.Close()

	var pnls []float64
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return 0, false, err
		}
		pnls = append(pnls, undec(v))
	}
	if err := rows.Err(); err != nil {
		return 0, false, err
	}
	rate, ok := winRate(pnls)
	return rate, ok, nil
}

func scanPgPosition(row pgx.Row) (Position, error) {
	var (
		p                                         Position
		side, status, reasons                     string
		size, entry, current, leverage, margin    string
		upnl, uroe, high, low, tpROE, conf, score string
		stop, take, trailing                      *string
		holdSeconds                               int64
		closed                                    *time.Time
	)
	err := row.Scan(
		&p.ID, &p.AgentID, &p.Symbol, &side,
		&size, &entry, &current, &leverage, &margin,
		&upnl, &uroe, &high, &low,
		&stop, &take, &tpROE, &p.TrailingActive, &trailing,
		&conf, &score, &reasons, &p.Signal.LLMAgreed, &p.OpenedAt, &holdSeconds,
		&p.PartialProfitTaken, &p.Paper, &p.OrderID, &status, &closed,
	)
	if err != nil {
		return Position{}, err
	}

	p.Side = Side(side)
	p.Status = Status(status)
	p.Size, p.EntryPrice, p.CurrentPrice = undec(size), undec(entry), undec(current)
	p.Leverage, p.MarginUsed = undec(leverage), undec(margin)
	p.UnrealizedPnL, p.UnrealizedROE = undec(upnl), undec(uroe)
	p.HighWaterROE, p.LowWaterROE = undec(high), undec(low)
	p.StopLoss, p.TakeProfit, p.TrailingStop = undecPtr(stop), undecPtr(take), undecPtr(trailing)
	p.TakeProfitROE = undec(tpROE)
	p.Signal.Confidence, p.Signal.Score = undec(conf), undec(score)
	p.MaxHold = time.Duration(holdSeconds) * time.Second
	p.ClosedAt = closed
	if err := json.Unmarshal([]byte(reasons), &p.Signal.Reasons); err != nil {
		return Position{}, fmt.Errorf("position %s reasons: %w", p.ID, err)
	}
	return p, nil
}

func dec(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func decPtr(v *float64) *string {
	if v == nil {
		return nil
	}
	s := dec(*v)
	return &s
}

func undec(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func undecPtr(s *string) *float64 {
	if s == nil {
		return nil
	}
	v := undec(*s)
	return &v
}
