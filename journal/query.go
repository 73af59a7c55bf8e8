package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Position returns a single position by ID.
func (j *SQLite) Position(ctx context.Context, id string) (Position, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = ?`, id)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Position{}, fmt.Errorf("position %q: %w", id, ErrNotFound)
		}
		return Position{}, err
	}
	return p, nil
}

// OpenPositions returns every position not yet closed, oldest first.
func (j *SQLite) OpenPositions(ctx context.Context) ([]Position, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+positionColumns+`
		FROM positions
		WHERE status = ?
		ORDER BY opened_at ASC`, string(StatusOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (j *SQLite) RecentWinRate(ctx context.Context, n int) (float64, bool, error) {
	if n <= 0 {
		return 0, false, nil
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT realized_pnl
		FROM trades
		WHERE type = ?
		ORDER BY executed_at DESC
		LIMIT ?`, string(Close), n)
	if err != nil {
		return 0, false, err
	}
	defer rows.Close()

	var pnls []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return 0, false, err
		}
		pnls = append(pnls, v)
	}
	if err := rows.Err(); err != nil {
		return 0, false, err
	}
	rate, ok := winRate(pnls)
	return rate, ok, nil
}
