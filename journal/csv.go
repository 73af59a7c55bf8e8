package journal

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CSV is an append-only journal. positions.csv is an event log: one "open"
// row per recorded position and one "close" row per ClosePosition.
type CSV struct {
	mu        sync.Mutex
	positions *csv.Writer
	trades    *csv.Writer
	pf, tf    *os.File
}

var _ Journal = (*CSV)(nil)

var (
	positionHeader = []string{"event", "id", "agent_id", "symbol", "side", "size", "entry_price", "leverage",
		"margin_used", "stop_loss", "take_profit", "confidence", "reasons", "paper", "order_id", "time", "exit_price"}
	tradeHeader = []string{"id", "position_id", "symbol", "side", "type", "quantity", "price",
		"realized_pnl", "fees", "reason", "executed_at", "paper"}
)

// NewCSV opens (or creates) positions.csv and trades.csv under dir. Headers
// are written only to new files.
func NewCSV(dir string) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	pf, pw, err := openAppend(filepath.Join(dir, "positions.csv"), positionHeader)
	if err != nil {
		return nil, err
	}
	tf, tw, err := openAppend(filepath.Join(dir, "trades.csv"), tradeHeader)
	if err != nil {
		_ = pf.Close()
		return nil, err
	}
	return &CSV{positions: pw, trades: tw, pf: pf, tf: tf}, nil
}

func openAppend(path string, header []string) (*os.File, *csv.Writer, error) {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	st, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, nil, err
	}
	w := csv.NewWriter(fh)
	if st.Size() == 0 {
		if err := writeRow(w, header); err != nil {
			_ = fh.Close()
			return nil, nil, err
		}
	}
	return fh, w, nil
}

func writeRow(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSV) RecordPosition(_ context.Context, p Position) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return writeRow(j.positions, []string{
		"open",
		p.ID,
		p.AgentID,
		p.Symbol,
		string(p.Side),
		f(p.Size),
		f(p.EntryPrice),
		f(p.Leverage),
		f(p.MarginUsed),
		optional(p.StopLoss),
		optional(p.TakeProfit),
		f(p.Signal.Confidence),
		strings.Join(p.Signal.Reasons, "; "),
		strconv.FormatBool(p.Paper),
		p.OrderID,
		p.OpenedAt.UTC().Format(time.RFC3339),
		"",
	})
}

func (j *CSV) ClosePosition(_ context.Context, id string, exitPrice float64, closedAt time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	row := make([]string, len(positionHeader))
	row[0] = "close"
	row[1] = id
	row[15] = closedAt.UTC().Format(time.RFC3339)
	row[16] = f(exitPrice)
	return writeRow(j.positions, row)
}

func (j *CSV) RecordTrade(_ context.Context, t Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return writeRow(j.trades, []string{
		t.ID,
		t.PositionID,
		t.Symbol,
		string(t.Side),
		string(t.Type),
		f(t.Quantity),
		f(t.Price),
		f(t.RealizedPnL),
		f(t.Fees),
		t.Reason,
		t.ExecutedAt.UTC().Format(time.RFC3339),
		strconv.FormatBool(t.Paper),
	})
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.positions.Flush()
	if err := j.positions.Error(); err != nil {
		return err
	}
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	if err := j.pf.Close(); err != nil {
		return err
	}
	return j.tf.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return f(*v)
}
