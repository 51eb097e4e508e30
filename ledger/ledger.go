package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/perptrader/internal/id"
	"github.com/rustyeddy/perptrader/journal"
	"github.com/rustyeddy/perptrader/risk"
)

// ErrInsufficientBalance is returned by Open when sizing yields no notional.
var ErrInsufficientBalance = errors.New("ledger: insufficient balance")

type Config struct {
	InitialBalance float64
	FeeRate        float64 // 0.0006
	Slippage       float64 // 0.001
	Sizing         risk.Policy

	RunID string
	Seed  int64 // trade ID sequence seed
}

// Ledger is safe for concurrent use. Every read and mutation takes the
// same lock, so operations are linearizable.
type Ledger struct {
	mu        sync.Mutex
	cfg       Config
	balance   float64
	positions map[string]*Position
	trades    []Trade
	equity    []EquityPoint
	ids       *id.Sequence
	journal   journal.Journal
	log       zerolog.Logger
}

func New(cfg Config, j journal.Journal, log zerolog.Logger) *Ledger {
	if j == nil {
		j = journal.Nop{}
	}
	return &Ledger{
		cfg:       cfg,
		balance:   cfg.InitialBalance,
		positions: make(map[string]*Position),
		ids:       id.NewSequence(cfg.Seed),
		journal:   j,
		log:       log,
	}
}

func (l *Ledger) Leverage() float64 { return l.cfg.Sizing.Leverage }

func (l *Ledger) InitialBalance() float64 { return l.cfg.InitialBalance }

func (l *Ledger) Balance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Size is the margin and notional Open would use for confidence at the
// current balance.
func (l *Ledger) Size(confidence float64) risk.Sizing {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg.Sizing.Size(confidence, l.balance)
}

// Open opens a position sized from confidence and the current balance.
// It returns false without error when symbol already has a position.
func (l *Ledger) Open(symbol string, side Side, price, confidence float64, ts time.Time) (bool, error) {
	return l.OpenScaled(symbol, side, price, confidence, 1, ts)
}

// OpenScaled is Open with margin and notional multiplied by scale, which
// must be in (0, 1].
func (l *Ledger) OpenScaled(symbol string, side Side, price, confidence, scale float64, ts time.Time) (bool, error) {
	if scale <= 0 || scale > 1 {
		return false, fmt.Errorf("ledger: open %s: scale must be in (0, 1], got %v", symbol, scale)
	}
	if price <= 0 {
		return false, fmt.Errorf("ledger: open %s: price must be positive, got %v", symbol, price)
	}
	if side != Long && side != Short {
		return false, fmt.Errorf("ledger: open %s: bad side %q", symbol, side)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.positions[symbol]; ok {
		return false, nil
	}

	sz := l.cfg.Sizing.Size(confidence, l.balance)
	sz.Margin *= scale
	sz.Notional *= scale
	if sz.Notional <= 0 {
		return false, fmt.Errorf("open %s: %w", symbol, ErrInsufficientBalance)
	}

	entry := entryPrice(side, price, l.cfg.Slippage)
	fee := sz.Notional * l.cfg.FeeRate
	l.balance -= fee

	p := &Position{
		ID:         l.ids.Next(ts),
		Symbol:     symbol,
		Side:       side,
		Size:       sz.Notional / entry,
		EntryPrice: entry,
		Margin:     sz.Margin,
		Notional:   sz.Notional,
		OpenTime:   ts,
		Confidence: confidence,
	}
	l.positions[symbol] = p

	l.log.Debug().
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("entry", entry).
		Float64("size", p.Size).
		Float64("notional", p.Notional).
		Float64("fee", fee).
		Float64("balance", l.balance).
		Msg("position opened")

	return true, nil
}

// Close closes symbol's position at price. It returns nil without error
// when nothing is open.
func (l *Ledger) Close(symbol string, price float64, ts time.Time, reason Reason) (*Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[symbol]
	if !ok {
		return nil, nil
	}
	if price <= 0 {
		return nil, fmt.Errorf("ledger: close %s: price must be positive, got %v", symbol, price)
	}

	t := l.closeLocked(p, price, ts, reason)
	if err := l.journal.RecordTrade(l.tradeRecord(t)); err != nil {
		return &t, fmt.Errorf("ledger: journal trade %s: %w", t.ID, err)
	}
	return &t, nil
}

func (l *Ledger) closeLocked(p *Position, price float64, ts time.Time, reason Reason) Trade {
	exit := exitPrice(p.Side, price, l.cfg.Slippage)
	fee := p.Size * exit * l.cfg.FeeRate
	pnlUSD := RawPnL(p.Side, p.EntryPrice, exit, p.Size) - fee

	t := Trade{
		ID:         p.ID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exit,
		Size:       p.Size,
		Notional:   p.Notional,
		PnLPct:     PnLPct(p.Side, p.EntryPrice, exit, l.cfg.Sizing.Leverage),
		PnLUSD:     pnlUSD,
		OpenTime:   p.OpenTime,
		CloseTime:  ts,
		Duration:   ts.Sub(p.OpenTime),
		Confidence: p.Confidence,
		Reason:     reason,
	}

	l.balance += pnlUSD
	l.trades = append(l.trades, t)
	delete(l.positions, p.Symbol)

	l.log.Debug().
		Str("symbol", p.Symbol).
		Str("reason", string(reason)).
		Float64("exit", exit).
		Float64("pnl_pct", t.PnLPct).
		Float64("pnl_usd", pnlUSD).
		Float64("balance", l.balance).
		Msg("position closed")

	return t
}

func (l *Ledger) tradeRecord(t Trade) journal.TradeRecord {
	return journal.TradeRecord{
		RunID:      l.cfg.RunID,
		TradeID:    t.ID,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Size:       t.Size,
		Notional:   t.Notional,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		PnLPct:     t.PnLPct,
		PnLUSD:     t.PnLUSD,
		Confidence: t.Confidence,
		OpenTime:   t.OpenTime,
		CloseTime:  t.CloseTime,
		Reason:     string(t.Reason),
	}
}

// Equity is balance plus unrealized P&L of every open position with a
// known price. Positions without a price still stay open.
func (l *Ledger) Equity(prices map[string]float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.equityLocked(prices)
}

func (l *Ledger) equityLocked(prices map[string]float64) float64 {
	eq := l.balance
	for sym, p := range l.positions {
		px, ok := prices[sym]
		if !ok || px <= 0 {
			continue
		}
		eq += p.Unrealized(px)
	}
	return eq
}

// RecordEquity appends one equity point at ts.
func (l *Ledger) RecordEquity(ts time.Time, prices map[string]float64) (EquityPoint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pt := EquityPoint{Time: ts, Equity: l.equityLocked(prices)}
	l.equity = append(l.equity, pt)

	err := l.journal.RecordEquity(journal.EquitySnapshot{
		RunID:         l.cfg.RunID,
		Time:          ts,
		Balance:       l.balance,
		Equity:        pt.Equity,
		OpenPositions: len(l.positions),
	})
	if err != nil {
		return pt, fmt.Errorf("ledger: journal equity: %w", err)
	}
	return pt, nil
}

// RaiseHighWater sets symbol's highest pnl to max(current, pnlPct) and
// returns the result. It reports false when no position is open.
func (l *Ledger) RaiseHighWater(symbol string, pnlPct float64) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[symbol]
	if !ok {
		return 0, false
	}
	if pnlPct > p.HighestPnLPct {
		p.HighestPnLPct = pnlPct
	}
	return p.HighestPnLPct, true
}

// Position returns a copy of symbol's open position.
func (l *Ledger) Position(symbol string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of every open position sorted by symbol.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (l *Ledger) Trades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Trade(nil), l.trades...)
}

func (l *Ledger) EquityCurve() []EquityPoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]EquityPoint(nil), l.equity...)
}
