package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSVRows(t *testing.T, path string) [][]string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	trades := readCSVRows(t, tradesPath)
	require.Len(t, trades, 1)
	assert.Equal(t, []string{"run_id", "trade_id", "symbol", "side", "size", "notional", "entry_price", "exit_price", "pnl_pct", "pnl_usd", "confidence", "open_time", "close_time", "reason"}, trades[0])

	equity := readCSVRows(t, equityPath)
	require.Len(t, equity, 1)
	assert.Equal(t, []string{"run_id", "time", "balance", "equity", "open_positions"}, equity[0])
}

func TestCSVJournalRecordTrade(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)

	closeT := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
	rec := sampleTrade("R1", "T1", closeT)
	require.NoError(t, j.RecordTrade(rec))
	require.NoError(t, j.Close())

	rows := readCSVRows(t, tradesPath)
	require.Len(t, rows, 2)

	want := []string{
		"R1",
		"T1",
		"BTC",
		"LONG",
		"12.487500",
		"1250.000000",
		"100.100000",
		"109.890000",
		"48.900000",
		"121.400000",
		"85.000000",
		"2024-01-02T04:00:00Z",
		"2024-01-02T12:00:00Z",
		"take_profit",
	}
	assert.Equal(t, want, rows[1])
}

func TestCSVJournalRecordEquity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)

	ts := time.Date(2024, 2, 3, 4, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordEquity(EquitySnapshot{
		RunID:         "R1",
		Time:          ts,
		Balance:       999.25,
		Equity:        1003.5,
		OpenPositions: 2,
	}))
	require.NoError(t, j.Close())

	rows := readCSVRows(t, equityPath)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"R1", "2024-02-03T04:00:00Z", "999.250000", "1003.500000", "2"}, rows[1])
}

func TestNewCSVBadPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewCSV(filepath.Join(dir, "missing", "t.csv"), filepath.Join(dir, "e.csv"))
	assert.Error(t, err)
}
