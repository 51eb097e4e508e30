// Package replay drives the ledger, exit monitor and a signal source over
// historical multi-symbol candles in strict time order.
package replay

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/perptrader/exits"
	"github.com/rustyeddy/perptrader/indicators"
	"github.com/rustyeddy/perptrader/ledger"
	"github.com/rustyeddy/perptrader/market"
	"github.com/rustyeddy/perptrader/signal"
)

type Options struct {
	MinConfidence float64 // 70
	LongOnly      bool
}

// Runner replays candles through the decision engine. It runs on the
// calling goroutine; symbols within a timestamp are handled in sorted
// order so identical inputs give identical outputs.
type Runner struct {
	Ledger  *ledger.Ledger
	Exits   *exits.Monitor
	Source  signal.Source
	Options Options
	Log     zerolog.Logger
}

type Result struct {
	Symbols []string
	Start   time.Time
	End     time.Time
	Ticks   int // master timestamps processed
	Gaps    int // symbol ticks skipped for a missing or bad price

	InitialBalance float64
	FinalBalance   float64
	Trades         []ledger.Trade
	Equity         []ledger.EquityPoint
}

type symbolData struct {
	candles []market.Candle
	snaps   []indicators.Snapshot
	index   map[int64]int
}

func prepare(series map[string][]market.Candle) map[string]*symbolData {
	out := make(map[string]*symbolData, len(series))
	for sym, in := range series {
		candles := market.Sort(append([]market.Candle(nil), in...))
		d := &symbolData{
			candles: candles,
			snaps:   indicators.Compute(candles),
			index:   make(map[int64]int, len(candles)),
		}
		for i, c := range candles {
			d.index[c.Time.UnixNano()] = i
		}
		out[sym] = d
	}
	return out
}

// Run executes the replay loop:
//  1. merge every symbol's timestamps into one master timeline
//  2. per timestamp and symbol: exits, then signal reversal or entry
//  3. one equity point per timestamp, carrying forward stale prices
//  4. close whatever is still open with end_of_replay
func (r *Runner) Run(ctx context.Context, series map[string][]market.Candle) (Result, error) {
	if r.Ledger == nil {
		return Result{}, fmt.Errorf("replay: Ledger is required")
	}
	if r.Exits == nil {
		return Result{}, fmt.Errorf("replay: Exits is required")
	}
	if r.Source == nil {
		return Result{}, fmt.Errorf("replay: Source is required")
	}

	symbols := market.Symbols(series)
	data := prepare(series)
	timeline := market.Timeline(series)

	res := Result{
		Symbols:        symbols,
		InitialBalance: r.Ledger.InitialBalance(),
	}
	if len(timeline) > 0 {
		res.Start = timeline[0]
		res.End = timeline[len(timeline)-1]
	}

	last := make(map[string]float64, len(symbols))

	for _, ts := range timeline {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("replay: stopped at %s: %w", ts.Format(time.RFC3339), err)
		}

		for _, sym := range symbols {
			d := data[sym]
			i, ok := d.index[ts.UnixNano()]
			if !ok {
				continue
			}

			price := d.candles[i].Close
			if !validPrice(price) {
				res.Gaps++
				r.Log.Debug().Str("symbol", sym).Time("time", ts).Float64("price", price).Msg("data gap")
				continue
			}
			last[sym] = price

			if err := r.step(ctx, sym, price, ts, d.snaps[i]); err != nil {
				return res, err
			}
		}

		if _, err := r.Ledger.RecordEquity(ts, last); err != nil {
			return res, err
		}
		res.Ticks++
	}

	for _, p := range r.Ledger.Positions() {
		if _, err := r.Ledger.Close(p.Symbol, last[p.Symbol], res.End, ledger.ReasonEndOfReplay); err != nil {
			return res, err
		}
	}

	res.FinalBalance = r.Ledger.Balance()
	res.Trades = r.Ledger.Trades()
	res.Equity = r.Ledger.EquityCurve()

	r.Log.Info().
		Int("ticks", res.Ticks).
		Int("gaps", res.Gaps).
		Int("trades", len(res.Trades)).
		Float64("final_balance", res.FinalBalance).
		Msg("replay finished")

	return res, nil
}

func (r *Runner) step(ctx context.Context, sym string, price float64, ts time.Time, snap indicators.Snapshot) error {
	if _, err := r.Exits.Check(sym, price, ts); err != nil {
		return err
	}

	sig, err := r.Source.Signal(ctx, sym, snap)
	if err != nil {
		r.Log.Warn().Err(err).Str("symbol", sym).Time("time", ts).Msg("signal failed, skipping")
		return nil
	}

	if p, open := r.Ledger.Position(sym); open {
		if reverses(p.Side, sig.Action) {
			_, err := r.Ledger.Close(sym, price, ts, ledger.ReasonSignal)
			return err
		}
		return nil
	}

	if sig.Confidence < r.Options.MinConfidence {
		return nil
	}

	var side ledger.Side
	switch {
	case sig.Action == signal.Buy:
		side = ledger.Long
	case sig.Action == signal.Sell && !r.Options.LongOnly:
		side = ledger.Short
	default:
		return nil
	}

	_, err = r.Ledger.Open(sym, side, price, sig.Confidence, ts)
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		r.Log.Warn().Str("symbol", sym).Float64("balance", r.Ledger.Balance()).Msg("balance exhausted, entry skipped")
		return nil
	}
	return err
}

func reverses(side ledger.Side, a signal.Action) bool {
	return (side == ledger.Long && a == signal.Sell) || (side == ledger.Short && a == signal.Buy)
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
