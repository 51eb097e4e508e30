// Package exits decides when an open position closes on stop-loss,
// take-profit or trailing-stop.
package exits

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/perptrader/ledger"
)

// Rules are expressed in leveraged pnl percent.
type Rules struct {
	StopLossPct   float64 // 3
	TakeProfitPct float64 // 10

	Trailing              bool
	TrailingActivationPct float64 // 3
	TrailingDistancePct   float64 // 2
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Close   bool
	Reason  ledger.Reason
	PnLPct  float64
	Highest float64 // high-water after this tick
}

// Evaluate applies the rules to one tick. The high-water mark is raised
// before any trigger is checked. Precedence is trailing stop, then stop
// loss, then take profit; at most one reason is returned.
func Evaluate(r Rules, pnlPct, highest float64) Decision {
	d := Decision{PnLPct: pnlPct, Highest: highest}

	if r.Trailing {
		if pnlPct > d.Highest {
			d.Highest = pnlPct
		}
		if d.Highest >= r.TrailingActivationPct && pnlPct <= d.Highest-r.TrailingDistancePct {
			d.Close, d.Reason = true, ledger.ReasonTrailingStop
			return d
		}
	}

	switch {
	case pnlPct <= -r.StopLossPct:
		d.Close, d.Reason = true, ledger.ReasonStopLoss
	case pnlPct >= r.TakeProfitPct:
		d.Close, d.Reason = true, ledger.ReasonTakeProfit
	}
	return d
}

// Monitor runs Evaluate against positions held in a ledger.
type Monitor struct {
	rules  Rules
	ledger *ledger.Ledger
	log    zerolog.Logger
}

func NewMonitor(r Rules, l *ledger.Ledger, log zerolog.Logger) *Monitor {
	return &Monitor{rules: r, ledger: l, log: log}
}

func (m *Monitor) Rules() Rules { return m.rules }

// Decide evaluates symbol's open position at price without closing it.
// With trailing enabled the position's high-water mark is raised first.
// It reports false when nothing is open.
func (m *Monitor) Decide(symbol string, price float64) (Decision, bool) {
	p, ok := m.ledger.Position(symbol)
	if !ok {
		return Decision{}, false
	}

	d := Evaluate(m.rules, p.PnLPct(price, m.ledger.Leverage()), p.HighestPnLPct)
	if m.rules.Trailing {
		m.ledger.RaiseHighWater(symbol, d.Highest)
	}
	return d, true
}

// Check evaluates symbol's open position at price and closes it when a
// trigger fires. It returns nil when nothing is open or nothing fired.
func (m *Monitor) Check(symbol string, price float64, ts time.Time) (*ledger.Trade, error) {
	d, ok := m.Decide(symbol, price)
	if !ok || !d.Close {
		return nil, nil
	}

	t, err := m.ledger.Close(symbol, price, ts, d.Reason)
	if err != nil {
		return t, fmt.Errorf("exits: close %s: %w", symbol, err)
	}

	m.log.Info().
		Str("symbol", symbol).
		Str("reason", string(d.Reason)).
		Float64("pnl_pct", d.PnLPct).
		Float64("highest", d.Highest).
		Msg("exit triggered")

	return t, nil
}
