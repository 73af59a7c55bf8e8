package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j, path
}

func TestSQLiteStore(t *testing.T) {
	j, _ := newTestSQLite(t)
	exerciseStore(t, j)
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('positions','trades')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	assert.True(t, found["positions"])
	assert.True(t, found["trades"])
}

func TestSQLiteRecordTradePersists(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)

	rec := closeTrade("T1", -12.5, t0)
	rec.Fees = 0.42
	rec.Paper = true
	require.NoError(t, j.RecordTrade(context.Background(), rec))
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		id, side, typ, reason string
		pnl, fees             float64
		paper                 bool
	)
	err = db.QueryRow(`SELECT id, side, type, realized_pnl, fees, reason, paper FROM trades LIMIT 1`).
		Scan(&id, &side, &typ, &pnl, &fees, &reason, &paper)
	require.NoError(t, err)

	assert.Equal(t, "T1", id)
	assert.Equal(t, "short", side)
	assert.Equal(t, "close", typ)
	assert.InDelta(t, -12.5, pnl, 1e-9)
	assert.InDelta(t, 0.42, fees, 1e-9)
	assert.Equal(t, "take_profit", reason)
	assert.True(t, paper)
}

func TestSQLiteRecordPositionUpserts(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()

	p := samplePosition("u1", t0)
	require.NoError(t, j.RecordPosition(ctx, p))
	p.PartialProfitTaken = true
	p.Size = 0.125
	require.NoError(t, j.RecordPosition(ctx, p))

	got, err := j.Position(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.PartialProfitTaken)
	assert.InDelta(t, 0.125, got.Size, 1e-12)
}

func TestSQLiteEmptyReasons(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	ctx := context.Background()

	p := samplePosition("r0", t0)
	p.Signal.Reasons = nil
	require.NoError(t, j.RecordPosition(ctx, p))

	got, err := j.Position(ctx, "r0")
	require.NoError(t, err)
	assert.Empty(t, got.Signal.Reasons)
}
