package journal

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, [][]string{positionHeader}, readCSV(t, filepath.Join(dir, "positions.csv")))
	assert.Equal(t, [][]string{tradeHeader}, readCSV(t, filepath.Join(dir, "trades.csv")))
}

func TestCSVJournalRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, j.RecordPosition(ctx, samplePosition("P1", t0)))
	require.NoError(t, j.RecordTrade(ctx, closeTrade("T1", -12.5, t0)))
	require.NoError(t, j.ClosePosition(ctx, "P1", 42100.25, t0))
	require.NoError(t, j.Close())

	positions := readCSV(t, filepath.Join(dir, "positions.csv"))
	require.Len(t, positions, 3)
	open := positions[1]
	assert.Equal(t, "open", open[0])
	assert.Equal(t, "P1", open[1])
	assert.Equal(t, "long", open[4])
	assert.Equal(t, "0.250000", open[5])
	assert.Equal(t, "41000.000000", open[9])
	assert.Equal(t, "rsi oversold; volume spike", open[12])
	assert.Equal(t, "true", open[13])
	assert.Equal(t, "2025-03-04T05:06:07Z", open[15])

	closed := positions[2]
	assert.Equal(t, "close", closed[0])
	assert.Equal(t, "P1", closed[1])
	assert.Equal(t, "42100.250000", closed[16])

	trades := readCSV(t, filepath.Join(dir, "trades.csv"))
	require.Len(t, trades, 2)
	assert.Equal(t, []string{"T1", "p-T1", "ETH-USD-PERP", "short", "close", "1.000000", "3000.000000",
		"-12.500000", "0.000000", "take_profit", "2025-03-04T05:06:07Z", "false"}, trades[1])
}

func TestCSVJournalAppends(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	for _, id := range []string{"T1", "T2"} {
		j, err := NewCSV(dir)
		require.NoError(t, err)
		require.NoError(t, j.RecordTrade(ctx, closeTrade(id, 1, t0)))
		require.NoError(t, j.Close())
	}

	trades := readCSV(t, filepath.Join(dir, "trades.csv"))
	require.Len(t, trades, 3, "one header and two rows")
	assert.Equal(t, "T1", trades[1][0])
	assert.Equal(t, "T2", trades[2][0])
}
