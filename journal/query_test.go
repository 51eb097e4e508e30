package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTrade(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	closeT := time.Date(2024, 4, 10, 15, 30, 0, 0, time.UTC)
	want := sampleTrade("R1", "T123", closeT)
	require.NoError(t, j.RecordTrade(want))

	got, err := j.GetTrade(context.Background(), "R1", "T123")
	require.NoError(t, err)

	assert.Equal(t, want.TradeID, got.TradeID)
	assert.Equal(t, want.Side, got.Side)
	assert.InDelta(t, want.Notional, got.Notional, 1e-9)
	assert.InDelta(t, want.EntryPrice, got.EntryPrice, 1e-9)
	assert.InDelta(t, want.ExitPrice, got.ExitPrice, 1e-9)
	assert.InDelta(t, want.PnLPct, got.PnLPct, 1e-9)
	assert.InDelta(t, want.Confidence, got.Confidence, 1e-9)
	assert.True(t, got.OpenTime.Equal(want.OpenTime))
	assert.True(t, got.CloseTime.Equal(want.CloseTime))
	assert.Equal(t, want.Reason, got.Reason)
}

func TestGetTradeNotFound(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	_, err := j.GetTrade(context.Background(), "R1", "nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "not found")
}

func TestListTradesByRun(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	base := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(sampleTrade("R1", "B", base.Add(8*time.Hour))))
	require.NoError(t, j.RecordTrade(sampleTrade("R1", "A", base.Add(4*time.Hour))))
	require.NoError(t, j.RecordTrade(sampleTrade("R2", "C", base)))

	got, err := j.ListTradesByRun(context.Background(), "R1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].TradeID)
	assert.Equal(t, "B", got[1].TradeID)
}

func TestListTradesClosedBetween(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	defer j.Close()

	base := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"T1", "T2", "T3"} {
		require.NoError(t, j.RecordTrade(sampleTrade("R1", id, base.Add(time.Duration(i)*24*time.Hour))))
	}

	got, err := j.ListTradesClosedBetween(context.Background(), base, base.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "T1", got[0].TradeID)
	assert.Equal(t, "T2", got[1].TradeID)
}

func TestNopJournal(t *testing.T) {
	t.Parallel()

	var j Journal = Nop{}
	assert.NoError(t, j.RecordTrade(TradeRecord{}))
	assert.NoError(t, j.RecordEquity(EquitySnapshot{}))
	assert.NoError(t, j.Close())
}
