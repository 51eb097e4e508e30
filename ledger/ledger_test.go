package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/perptrader/journal"
	"github.com/rustyeddy/perptrader/risk"
)

type testJournal struct {
	mu     sync.Mutex
	trades []journal.TradeRecord
	equity []journal.EquitySnapshot
	err    error
}

func (j *testJournal) RecordTrade(rec journal.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.trades = append(j.trades, rec)
	return j.err
}

func (j *testJournal) RecordEquity(rec journal.EquitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.equity = append(j.equity, rec)
	return j.err
}

func (j *testJournal) Close() error { return nil }

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func exampleConfig() Config {
	return Config{
		InitialBalance: 1000,
		FeeRate:        0.0006,
		Slippage:       0.001,
		Sizing:         risk.Policy{MaxPositionPct: 25, Leverage: 5},
		RunID:          "run-1",
		Seed:           1,
	}
}

func newLedger(t *testing.T) (*Ledger, *testJournal) {
	t.Helper()
	j := &testJournal{}
	return New(exampleConfig(), j, zerolog.Nop()), j
}

func TestOpenWorkedExample(t *testing.T) {
	t.Parallel()

	l, _ := newLedger(t)

	ok, err := l.Open("BTC", Long, 100, 80, t0)
	require.NoError(t, err)
	require.True(t, ok)

	p, ok := l.Position("BTC")
	require.True(t, ok)
	assert.InDelta(t, 250.0, p.Margin, 1e-9)
	assert.InDelta(t, 1250.0, p.Notional, 1e-9)
	assert.InDelta(t, 100.1, p.EntryPrice, 1e-9)
	assert.InDelta(t, 1250.0/100.1, p.Size, 1e-12)
	assert.InDelta(t, 12.4875, p.Size, 1e-4)
	assert.Equal(t, 0.0, p.HighestPnLPct)
	assert.InDelta(t, 999.25, l.Balance(), 1e-9)
}

func TestOpenScaledCutsMarginAndNotional(t *testing.T) {
	t.Parallel()

	l, _ := newLedger(t)

	ok, err := l.OpenScaled("ETH", Long, 100, 80, 0.5, t0)
	require.NoError(t, err)
	require.True(t, ok)

	p, _ := l.Position("ETH")
	assert.InDelta(t, 125.0, p.Margin, 1e-9)
	assert.InDelta(t, 625.0, p.Notional, 1e-9)
	assert.InDelta(t, 999.625, l.Balance(), 1e-9)

	for _, scale := range []float64{0, -1, 1.5} {
		_, err := l.OpenScaled("SOL", Long, 100, 80, scale, t0)
		assert.Error(t, err, "scale %v", scale)
	}
	_, open := l.Position("SOL")
	assert.False(t, open)
}

func TestOpenShortAppliesSlippageDown(t *testing.T) {
	t.Parallel()

	l, _ := newLedger(t)
	ok, err := l.Open("ETH", Short, 100, risk.NoConfidence, t0)
	require.NoError(t, err)
	require.True(t, ok)

	p, _ := l.Position("ETH")
	assert.InDelta(t, 99.9, p.EntryPrice, 1e-9)
	assert.Equal(t, Short, p.Side)
}

func TestOpenRejectsBadInput(t *testing.T) {
	t.Parallel()

	l, _ := newLedger(t)
	_, err := l.Open("BTC", Long, 0, 80, t0)
	assert.Error(t, err)
	_, err = l.Open("BTC", Side("FLAT"), 100, 80, t0)
	assert.Error(t, err)

	broke := New(Config{Sizing: risk.Policy{MaxPositionPct: 25, Leverage: 5}}, nil, zerolog.Nop())
	ok, err := broke.Open("BTC", Long, 100, 80, t0)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
}

func TestAtMostOnePositionPerSymbol(t *testing.T) {
	t.Parallel()

	l, _ := newLedger(t)

	ok, err := l.Open("BTC", Long, 100, 80, t0)
	require.NoError(t, err)
	require.True(t, ok)
	before := l.Balance()

	ok, err = l.Open("BTC", Short, 120, 90, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, l.Balance())

	p, _ := l.Position("BTC")
	assert.Equal(t, Long, p.Side)
	assert.Len(t, l.Positions(), 1)

	ok, err = l.Open("ETH", Long, 50, 80, t0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, l.Positions(), 2)
}

func TestRoundTripBalanceIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		side  Side
		entry float64
		exit  float64
	}{
		{"long win", Long, 100, 110},
		{"long loss", Long, 100, 95},
		{"short win", Short, 100, 90},
		{"short loss", Short, 100, 104},
		{"same price", Long, 100, 100},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l, _ := newLedger(t)
			before := l.Balance()

			_, err := l.Open("BTC", tt.side, tt.entry, 80, t0)
			require.NoError(t, err)
			p, _ := l.Position("BTC")
			entryFee := p.Notional * 0.0006

			tr, err := l.Close("BTC", tt.exit, t0.Add(4*time.Hour), ReasonSignal)
			require.NoError(t, err)
			require.NotNil(t, tr)

			exitFee := tr.Size * tr.ExitPrice * 0.0006
			gross := RawPnL(tt.side, tr.EntryPrice, tr.ExitPrice, tr.Size)

			assert.InDelta(t, gross-exitFee, tr.PnLUSD, 1e-9)
			assert.InDelta(t, before-entryFee+gross-exitFee, l.Balance(), 1e-9)
			assert.Equal(t, 4*time.Hour, tr.Duration)

			_, open := l.Position("BTC")
			assert.False(t, open)
		})
	}
}

func TestCloseLeveragedPnLPct(t *testing.T) {
	t.Parallel()

	l, _ := newLedger(t)
	_, err := l.Open("BTC", Long, 100, 80, t0)
	require.NoError(t, err)

	tr, err := l.Close("BTC", 110, t0.Add(time.Hour), ReasonTakeProfit)
	require.NoError(t, err)

	// entry 100.1, exit 109.89, leverage 5
	want := (109.89 - 100.1) / 100.1 * 100 * 5
	assert.InDelta(t, want, tr.PnLPct, 1e-9)
	assert.InDelta(t, 109.89, tr.ExitPrice, 1e-9)
	assert.Equal(t, ReasonTakeProfit, tr.Reason)
}

func TestCloseWithoutPosition(t *testing.T) {
	t.Parallel()

	l, j := newLedger(t)
	tr, err := l.Close("BTC", 100, t0, ReasonSignal)
	assert.NoError(t, err)
	assert.Nil(t, tr)
	assert.Empty(t, l.Trades())
	assert.Empty(t, j.trades)
}

func TestEquityUsesKnownPricesOnly(t *testing.T) {
	t.Parallel()

	l, _ := newLedger(t)
	_, err := l.Open("BTC", Long, 100, 80, t0)
	require.NoError(t, err)
	_, err = l.Open("ETH", Short, 50, 80, t0)
	require.NoError(t, err)

	btc, _ := l.Position("BTC")
	eth, _ := l.Position("ETH")
	bal := l.Balance()

	got := l.Equity(map[string]float64{"BTC": 105})
	assert.InDelta(t, bal+(105-btc.EntryPrice)*btc.Size, got, 1e-9)

	got = l.Equity(map[string]float64{"BTC": 105, "ETH": 45})
	assert.InDelta(t, bal+(105-btc.EntryPrice)*btc.Size+(eth.EntryPrice-45)*eth.Size, got, 1e-9)

	assert.Len(t, l.Positions(), 2)
	assert.InDelta(t, bal, l.Equity(nil), 1e-12)
}

func TestRecordEquityAndJournal(t *testing.T) {
	t.Parallel()

	l, j := newLedger(t)
	_, err := l.Open("BTC", Long, 100, 80, t0)
	require.NoError(t, err)

	pt, err := l.RecordEquity(t0, map[string]float64{"BTC": 100})
	require.NoError(t, err)
	assert.True(t, pt.Time.Equal(t0))

	_, err = l.Close("BTC", 101, t0.Add(time.Hour), ReasonStopLoss)
	require.NoError(t, err)

	curve := l.EquityCurve()
	require.Len(t, curve, 1)
	assert.Equal(t, pt, curve[0])

	require.Len(t, j.equity, 1)
	assert.Equal(t, "run-1", j.equity[0].RunID)
	assert.Equal(t, 1, j.equity[0].OpenPositions)

	require.Len(t, j.trades, 1)
	assert.Equal(t, "stop_loss", j.trades[0].Reason)
	assert.Equal(t, l.Trades()[0].ID, j.trades[0].TradeID)
}

func TestJournalErrorIsReturned(t *testing.T) {
	t.Parallel()

	j := &testJournal{err: errors.New("disk full")}
	l := New(exampleConfig(), j, zerolog.Nop())

	_, err := l.Open("BTC", Long, 100, 80, t0)
	require.NoError(t, err)

	tr, err := l.Close("BTC", 100, t0, ReasonSignal)
	require.Error(t, err)
	require.NotNil(t, tr)
	assert.Len(t, l.Trades(), 1)
}

func TestRaiseHighWater(t *testing.T) {
	t.Parallel()

	l, _ := newLedger(t)
	_, ok := l.RaiseHighWater("BTC", 5)
	assert.False(t, ok)

	_, err := l.Open("BTC", Long, 100, 80, t0)
	require.NoError(t, err)

	h, ok := l.RaiseHighWater("BTC", 4)
	assert.True(t, ok)
	assert.Equal(t, 4.0, h)

	h, _ = l.RaiseHighWater("BTC", 2)
	assert.Equal(t, 4.0, h)

	h, _ = l.RaiseHighWater("BTC", -3)
	assert.Equal(t, 4.0, h)

	_, err = l.Close("BTC", 100, t0, ReasonSignal)
	require.NoError(t, err)
	_, ok = l.RaiseHighWater("BTC", 1)
	assert.False(t, ok)
}

func TestTradeIDsAreDeterministic(t *testing.T) {
	t.Parallel()

	run := func() []Trade {
		l := New(exampleConfig(), nil, zerolog.Nop())
		for i := 0; i < 3; i++ {
			ts := t0.Add(time.Duration(i) * time.Hour)
			_, err := l.Open("BTC", Long, 100, 80, ts)
			require.NoError(t, err)
			_, err = l.Close("BTC", 101, ts.Add(time.Minute), ReasonSignal)
			require.NoError(t, err)
		}
		return l.Trades()
	}

	a, b := run(), run()
	assert.Equal(t, a, b)
	assert.NotEqual(t, a[0].ID, a[1].ID)
}

func TestConcurrentOpensKeepOnePosition(t *testing.T) {
	t.Parallel()

	l, _ := newLedger(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	opened := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Open("BTC", Long, 100, 80, t0)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
	assert.Len(t, l.Positions(), 1)
}
