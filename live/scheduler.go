// Package live runs the decision engine against fresh market data on a
// steady or volatility-adapted interval, routing orders through a gateway
// before booking them in the ledger.
package live

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/perptrader/exits"
	"github.com/rustyeddy/perptrader/gateway"
	"github.com/rustyeddy/perptrader/indicators"
	"github.com/rustyeddy/perptrader/internal/retry"
	"github.com/rustyeddy/perptrader/ledger"
	"github.com/rustyeddy/perptrader/market"
	"github.com/rustyeddy/perptrader/risk"
	"github.com/rustyeddy/perptrader/signal"
	"github.com/rustyeddy/perptrader/status"
)

type Options struct {
	Symbols       []string
	Timeframe     string
	LookbackDays  int
	Interval      time.Duration
	MinConfidence float64
	LongOnly      bool
	Retry         retry.Policy
	Adaptive      AdaptiveInterval // replaces Interval when enabled
}

// Scheduler processes one symbol's full cycle before starting the next.
// Failures are per symbol: they are logged and the cycle moves on.
type Scheduler struct {
	Provider market.Provider
	Source   signal.Source
	Gateway  gateway.Gateway
	Ledger   *ledger.Ledger
	Exits    *exits.Monitor
	Guard    *risk.Guard  // optional
	Feed     *status.Feed // optional
	Options  Options
	Log      zerolog.Logger

	now    func() time.Time
	cycle  int
	prices map[string]float64
	atrPct map[string]float64 // latest ATR as % of close, by upper-case symbol
}

// CycleResult reports what one pass over the symbols did.
type CycleResult struct {
	Cycle   int
	Opened  []string
	Closed  []ledger.Trade
	Errors  map[string]string // symbol -> stage: error
	Stopped bool              // ctx ended part way through
}

func (s *Scheduler) validate() error {
	switch {
	case s.Provider == nil:
		return fmt.Errorf("live: Provider is required")
	case s.Source == nil:
		return fmt.Errorf("live: Source is required")
	case s.Gateway == nil:
		return fmt.Errorf("live: Gateway is required")
	case s.Ledger == nil:
		return fmt.Errorf("live: Ledger is required")
	case s.Exits == nil:
		return fmt.Errorf("live: Exits is required")
	case len(s.Options.Symbols) == 0:
		return fmt.Errorf("live: no symbols configured")
	}
	return nil
}

func (s *Scheduler) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Run executes cycles until ctx is done. Cancellation is checked between
// cycles and between symbols, never during a ledger mutation.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.validate(); err != nil {
		return err
	}
	s.Log.Info().
		Strs("symbols", s.Options.Symbols).
		Dur("interval", s.baseInterval()).
		Bool("adaptive", s.Options.Adaptive.Enabled).
		Msg("live loop starting")

	for {
		res := s.RunCycle(ctx)
		if res.Stopped {
			break
		}
		interval := s.nextInterval()

		s.Log.Info().
			Int("cycle", res.Cycle).
			Int("opened", len(res.Opened)).
			Int("closed", len(res.Closed)).
			Int("errors", len(res.Errors)).
			Float64("balance", s.Ledger.Balance()).
			Dur("next_in", interval).
			Msg("cycle complete")

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.Log.Info().Msg("live loop stopped")
			return nil
		case <-timer.C:
		}
	}

	s.Log.Info().Msg("live loop stopped")
	return nil
}

func (s *Scheduler) baseInterval() time.Duration {
	if s.Options.Interval <= 0 {
		return 30 * time.Minute
	}
	return s.Options.Interval
}

// nextInterval is the wait before the next cycle. With the adaptive
// ladder on it follows the proxy symbol's last ATR reading; a proxy that
// is not traded or not yet warmed up gives the ladder's normal step.
func (s *Scheduler) nextInterval() time.Duration {
	a := s.Options.Adaptive
	if !a.Enabled {
		return s.baseInterval()
	}
	pct, ok := s.atrPct[a.proxy()]
	d := a.Pick(pct, ok)
	if d <= 0 {
		d = s.baseInterval()
	}
	s.Log.Debug().
		Str("proxy", a.proxy()).
		Float64("atr_pct", pct).
		Bool("measured", ok).
		Dur("interval", d).
		Msg("adaptive interval")
	return d
}

// RunCycle makes one pass over every symbol.
func (s *Scheduler) RunCycle(ctx context.Context) CycleResult {
	start := time.Now()
	if s.prices == nil {
		s.prices = make(map[string]float64)
	}
	if s.atrPct == nil {
		s.atrPct = make(map[string]float64)
	}
	s.cycle++
	res := CycleResult{Cycle: s.cycle, Errors: map[string]string{}}

	var m *status.Metrics
	if s.Feed != nil {
		m = s.Feed.Metrics()
	}
	if s.Guard != nil {
		// anchors the day's starting equity before any trading this cycle
		s.Guard.Evaluate(s.account(s.clock()))
	}

	for _, sym := range s.Options.Symbols {
		if ctx.Err() != nil {
			res.Stopped = true
			break
		}
		stage, err := s.cycleSymbol(ctx, sym, &res)
		if err != nil {
			res.Errors[sym] = stage + ": " + err.Error()
			if m != nil {
				m.Errors.WithLabelValues(sym, stage).Inc()
			}
			s.Log.Warn().Err(err).Str("symbol", sym).Str("stage", stage).Msg("symbol skipped this cycle")
		}
	}

	now := s.clock()
	if _, err := s.Ledger.RecordEquity(now, s.prices); err != nil {
		s.Log.Error().Err(err).Msg("record equity")
	}
	if s.Feed != nil {
		s.Feed.Publish(s.Ledger, s.prices, res.Cycle, res.Errors, now)
	}
	if m != nil {
		m.Cycles.Inc()
		m.CycleSeconds.Observe(time.Since(start).Seconds())
		for _, t := range res.Closed {
			m.Trades.WithLabelValues(t.Symbol, string(t.Reason)).Inc()
		}
	}
	return res
}

// marker is implemented by gateways that track a mark price.
type marker interface {
	Mark(symbol string, price float64)
}

func (s *Scheduler) cycleSymbol(ctx context.Context, sym string, res *CycleResult) (string, error) {
	var candles []market.Candle
	err := retry.Do(ctx, s.Options.Retry, func(ctx context.Context) error {
		var err error
		candles, err = s.Provider.FetchOHLCV(ctx, sym, s.Options.LookbackDays, s.Options.Timeframe)
		return err
	})
	if err != nil {
		return "fetch", err
	}

	snap, ok := indicators.Last(market.Sort(candles))
	if !ok {
		return "fetch", errors.New("no candles")
	}
	price := snap.Close
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return "fetch", fmt.Errorf("bad price %v", price)
	}
	s.prices[sym] = price
	if snap.ATR.OK {
		s.atrPct[strings.ToUpper(sym)] = 100 * snap.ATR.V / price
	}
	if mk, ok := s.Gateway.(marker); ok {
		mk.Mark(sym, price)
	}

	now := s.clock()

	if d, open := s.Exits.Decide(sym, price); open && d.Close {
		t, err := s.close(ctx, sym, price, now, d.Reason)
		if err != nil {
			return "exit", err
		}
		res.Closed = append(res.Closed, *t)
	}

	sig, err := s.Source.Signal(ctx, sym, snap)
	if err != nil {
		return "signal", err
	}
	if s.Feed != nil && s.Feed.Metrics() != nil {
		s.Feed.Metrics().Signals.WithLabelValues(sym, string(sig.Action)).Inc()
	}
	s.Log.Info().
		Str("symbol", sym).
		Str("action", string(sig.Action)).
		Float64("confidence", sig.Confidence).
		Float64("price", price).
		Msg("signal")

	if p, open := s.Ledger.Position(sym); open {
		if (p.Side == ledger.Long && sig.Action == signal.Sell) || (p.Side == ledger.Short && sig.Action == signal.Buy) {
			t, err := s.close(ctx, sym, price, now, ledger.ReasonSignal)
			if err != nil {
				return "close", err
			}
			res.Closed = append(res.Closed, *t)
		}
		return "", nil
	}

	if sig.Confidence < s.Options.MinConfidence {
		return "", nil
	}
	var side ledger.Side
	switch {
	case sig.Action == signal.Buy:
		side = ledger.Long
	case sig.Action == signal.Sell && !s.Options.LongOnly:
		side = ledger.Short
	default:
		return "", nil
	}

	scale := 1.0
	if s.Guard != nil {
		d := s.Guard.Evaluate(s.entryAccount(sym, now))
		if !d.Allowed || d.SizeFactor <= 0 {
			for _, v := range d.Violations {
				s.Log.Warn().Str("symbol", sym).Str("code", v.Code).Msg(v.Msg)
			}
			return "", nil
		}
		if d.SizeFactor < 1 {
			s.Log.Info().
				Str("symbol", sym).
				Float64("size_factor", d.SizeFactor).
				Msg("correlated holding, entry size reduced")
			scale = d.SizeFactor
		}
	}

	if err := s.open(ctx, sym, side, price, sig.Confidence, scale, now); err != nil {
		return "open", err
	}
	res.Opened = append(res.Opened, sym)
	return "", nil
}

func (s *Scheduler) account(now time.Time) risk.AccountSnapshot {
	return risk.AccountSnapshot{
		Time:          now,
		Equity:        s.Ledger.Equity(s.prices),
		OpenPositions: len(s.Ledger.Positions()),
	}
}

// entryAccount adds what the correlation check needs for an entry in sym.
func (s *Scheduler) entryAccount(sym string, now time.Time) risk.AccountSnapshot {
	positions := s.Ledger.Positions()
	acct := risk.AccountSnapshot{
		Time:          now,
		Equity:        s.Ledger.Equity(s.prices),
		OpenPositions: len(positions),
		Symbol:        sym,
		Balance:       s.Ledger.Balance(),
		Exposures:     make([]risk.Exposure, 0, len(positions)),
	}
	for _, p := range positions {
		acct.Exposures = append(acct.Exposures, risk.Exposure{Symbol: p.Symbol, Margin: p.Margin})
	}
	return acct
}

func (s *Scheduler) open(ctx context.Context, sym string, side ledger.Side, price, confidence, scale float64, now time.Time) error {
	sz := s.Ledger.Size(confidence)
	sz.Notional *= scale
	if sz.Notional <= 0 {
		return ledger.ErrInsufficientBalance
	}

	var fill gateway.Fill
	err := retry.Do(ctx, s.Options.Retry, func(ctx context.Context) error {
		var err error
		fill, err = s.Gateway.PlaceOrder(ctx, gateway.OrderRequest{
			Symbol:   sym,
			Side:     side,
			Size:     sz.Notional / price,
			Price:    price,
			Leverage: s.Ledger.Leverage(),
		})
		if errors.Is(err, gateway.ErrPositionOpen) || errors.Is(err, gateway.ErrSizeTooSmall) {
			return &retry.Permanent{Err: err}
		}
		return err
	})
	if err != nil {
		return err
	}

	fillPrice, _ := fill.Price.Float64()
	if fillPrice <= 0 || math.IsInf(fillPrice, 0) {
		// the exchange has filled; book it at the price we asked for
		s.Log.Warn().
			Str("symbol", sym).
			Str("order_id", fill.OrderID).
			Str("fill_price", fill.Price.String()).
			Float64("price", price).
			Msg("gateway returned no usable fill price")
		fillPrice = price
	}
	if _, err := s.Ledger.OpenScaled(sym, side, fillPrice, confidence, scale, now); err != nil {
		return err
	}
	s.Log.Info().
		Str("symbol", sym).
		Str("side", string(side)).
		Str("order_id", fill.OrderID).
		Str("size", fill.Size.String()).
		Float64("price", fillPrice).
		Msg("position opened")
	return nil
}

// close flattens the exchange first, then books the close in the ledger.
// A position the exchange no longer has is still closed in the ledger.
func (s *Scheduler) close(ctx context.Context, sym string, price float64, now time.Time, reason ledger.Reason) (*ledger.Trade, error) {
	err := retry.Do(ctx, s.Options.Retry, func(ctx context.Context) error {
		_, err := s.Gateway.ClosePosition(ctx, sym, price)
		if errors.Is(err, gateway.ErrNoPosition) {
			return &retry.Permanent{Err: err}
		}
		return err
	})
	if err != nil && !errors.Is(err, gateway.ErrNoPosition) {
		return nil, err
	}

	t, err := s.Ledger.Close(sym, price, now, reason)
	if err != nil {
		return t, err
	}
	if t == nil {
		return nil, fmt.Errorf("no ledger position for %s", sym)
	}
	s.Log.Info().
		Str("symbol", sym).
		Str("reason", string(reason)).
		Float64("pnl_usd", t.PnLUSD).
		Float64("pnl_pct", t.PnLPct).
		Msg("position closed")
	return t, nil
}
