package replay

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/perptrader/exits"
	"github.com/rustyeddy/perptrader/indicators"
	"github.com/rustyeddy/perptrader/ledger"
	"github.com/rustyeddy/perptrader/market"
	"github.com/rustyeddy/perptrader/risk"
	"github.com/rustyeddy/perptrader/signal"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(i int) time.Time { return t0.Add(time.Duration(i) * 4 * time.Hour) }

// scripted returns preset signals keyed by symbol and tick index.
type scripted struct {
	sigs  map[string]map[time.Time]signal.Signal
	fails map[string]bool
}

func (s scripted) Signal(_ context.Context, sym string, snap indicators.Snapshot) (signal.Signal, error) {
	if s.fails[sym] {
		return signal.Signal{}, errors.New("oracle down")
	}
	if sig, ok := s.sigs[sym][snap.Time]; ok {
		return sig, nil
	}
	return signal.Signal{Action: signal.Nothing, Confidence: 50}, nil
}

func flat(n int, price float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{Time: at(i), Open: price, High: price, Low: price, Close: price}
	}
	return out
}

func newRunner(src signal.Source, opts Options) *Runner {
	l := ledger.New(ledger.Config{
		InitialBalance: 1000,
		Sizing:         risk.Policy{MaxPositionPct: 10, Leverage: 10},
	}, nil, zerolog.Nop())

	m := exits.NewMonitor(exits.Rules{StopLossPct: 3, TakeProfitPct: 10}, l, zerolog.Nop())
	return &Runner{Ledger: l, Exits: m, Source: src, Options: opts, Log: zerolog.Nop()}
}

func buy(c float64) signal.Signal  { return signal.Signal{Action: signal.Buy, Confidence: c} }
func sell(c float64) signal.Signal { return signal.Signal{Action: signal.Sell, Confidence: c} }

func TestRunRequiresComponents(t *testing.T) {
	t.Parallel()

	_, err := (&Runner{}).Run(context.Background(), nil)
	assert.EqualError(t, err, "replay: Ledger is required")
}

func TestRunSignalReversalAndEndOfReplay(t *testing.T) {
	t.Parallel()

	src := scripted{sigs: map[string]map[time.Time]signal.Signal{
		"BTC": {
			at(1): buy(80),
			at(3): sell(90), // closes the long, no reopen on the same tick
			at(4): sell(90), // opens a short
		},
	}}
	r := newRunner(src, Options{MinConfidence: 70})

	res, err := r.Run(context.Background(), map[string][]market.Candle{"BTC": flat(6, 100)})
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, ledger.Long, res.Trades[0].Side)
	assert.Equal(t, ledger.ReasonSignal, res.Trades[0].Reason)
	assert.Equal(t, at(1), res.Trades[0].OpenTime)
	assert.Equal(t, at(3), res.Trades[0].CloseTime)

	assert.Equal(t, ledger.Short, res.Trades[1].Side)
	assert.Equal(t, ledger.ReasonEndOfReplay, res.Trades[1].Reason)
	assert.Equal(t, at(4), res.Trades[1].OpenTime)
	assert.Equal(t, at(5), res.Trades[1].CloseTime)

	assert.Len(t, res.Equity, 6)
	assert.Equal(t, 6, res.Ticks)
	assert.Empty(t, r.Ledger.Positions())
	assert.InDelta(t, 1000.0, res.FinalBalance, 1e-9)
}

func TestRunHonoursMinConfidenceAndLongOnly(t *testing.T) {
	t.Parallel()

	src := scripted{sigs: map[string]map[time.Time]signal.Signal{
		"BTC": {at(1): buy(60), at(2): sell(95)},
	}}

	r := newRunner(src, Options{MinConfidence: 70, LongOnly: true})
	res, err := r.Run(context.Background(), map[string][]market.Candle{"BTC": flat(4, 100)})
	require.NoError(t, err)
	assert.Empty(t, res.Trades)

	r = newRunner(src, Options{MinConfidence: 70})
	res, err = r.Run(context.Background(), map[string][]market.Candle{"BTC": flat(4, 100)})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, ledger.Short, res.Trades[0].Side)
}

func TestRunStopLossThenReentrySameTick(t *testing.T) {
	t.Parallel()

	candles := flat(4, 100)
	candles[2].Close = 99 // -1% at 10x is -10%
	candles[3].Close = 99

	src := scripted{sigs: map[string]map[time.Time]signal.Signal{
		"BTC": {at(0): buy(80), at(2): buy(80)},
	}}
	r := newRunner(src, Options{MinConfidence: 70})

	res, err := r.Run(context.Background(), map[string][]market.Candle{"BTC": candles})
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, ledger.ReasonStopLoss, res.Trades[0].Reason)
	assert.Equal(t, at(2), res.Trades[0].CloseTime)
	assert.Equal(t, at(2), res.Trades[1].OpenTime)
	assert.Equal(t, ledger.ReasonEndOfReplay, res.Trades[1].Reason)
}

func TestRunDataGapsAndCarryForward(t *testing.T) {
	t.Parallel()

	btc := flat(4, 100)
	eth := []market.Candle{
		{Time: at(0), Close: 50},
		{Time: at(1), Close: 0},          // bad price
		{Time: at(2), Close: math.NaN()}, // bad price
		// at(3) missing entirely
	}
	src := scripted{sigs: map[string]map[time.Time]signal.Signal{
		"ETH": {at(0): buy(80)},
	}}
	r := newRunner(src, Options{MinConfidence: 70})

	res, err := r.Run(context.Background(), map[string][]market.Candle{"BTC": btc, "ETH": eth})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Gaps)
	require.Len(t, res.Equity, 4)
	for _, pt := range res.Equity {
		assert.InDelta(t, 1000.0, pt.Equity, 1e-9)
	}

	require.Len(t, res.Trades, 1)
	assert.Equal(t, ledger.ReasonEndOfReplay, res.Trades[0].Reason)
	assert.Equal(t, 50.0, res.Trades[0].ExitPrice)
	assert.Equal(t, at(3), res.Trades[0].CloseTime)
	assert.Equal(t, []string{"BTC", "ETH"}, res.Symbols)
}

func TestRunSignalFailureSkipsSymbol(t *testing.T) {
	t.Parallel()

	src := scripted{
		sigs:  map[string]map[time.Time]signal.Signal{"BTC": {at(0): buy(80)}, "ETH": {at(0): buy(80)}},
		fails: map[string]bool{"ETH": true},
	}
	r := newRunner(src, Options{MinConfidence: 70})

	res, err := r.Run(context.Background(), map[string][]market.Candle{"BTC": flat(2, 100), "ETH": flat(2, 10)})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, "BTC", res.Trades[0].Symbol)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRunner(signal.Simulated{}, Options{MinConfidence: 70})
	_, err := r.Run(ctx, map[string][]market.Candle{"BTC": flat(3, 100)})
	assert.ErrorIs(t, err, context.Canceled)
}

func wave(n int, base, amp, period float64, phase float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		p := base + amp*math.Sin(float64(i)/period+phase) + float64(i)*0.05
		out[i] = market.Candle{
			Time:  at(i),
			Open:  p,
			High:  p * 1.01,
			Low:   p * 0.99,
			Close: p,
		}
	}
	return out
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()

	series := map[string][]market.Candle{
		"BTC": wave(400, 100, 20, 9, 0),
		"ETH": wave(380, 50, 12, 6, 1.3),
		"SOL": wave(350, 20, 6, 4, 2.1),
	}

	run := func() ([]byte, []byte, int) {
		l := ledger.New(ledger.Config{
			InitialBalance: 1000,
			FeeRate:        0.0006,
			Slippage:       0.001,
			Sizing: risk.Policy{
				UseDynamicSizing: true,
				MinConfidence:    70,
				MinSizePct:       10,
				MaxSizePct:       30,
				MaxPositionPct:   40,
				Leverage:         20,
			},
			Seed: 7,
		}, nil, zerolog.Nop())
		m := exits.NewMonitor(exits.Rules{
			StopLossPct:           3,
			TakeProfitPct:         10,
			Trailing:              true,
			TrailingActivationPct: 3,
			TrailingDistancePct:   2,
		}, l, zerolog.Nop())
		r := &Runner{Ledger: l, Exits: m, Source: signal.Simulated{}, Options: Options{MinConfidence: 70}, Log: zerolog.Nop()}

		res, err := r.Run(context.Background(), series)
		require.NoError(t, err)

		trades, err := json.Marshal(res.Trades)
		require.NoError(t, err)
		equity, err := json.Marshal(res.Equity)
		require.NoError(t, err)
		return trades, equity, len(res.Trades)
	}

	t1, e1, n := run()
	t2, e2, _ := run()
	assert.Greater(t, n, 0)
	assert.Equal(t, string(t1), string(t2))
	assert.Equal(t, string(e1), string(e2))
}
