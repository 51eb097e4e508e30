// Package ledger owns open positions, the account balance, the trade log
// and the equity curve.
package ledger

import "time"

type Side string

const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// Reason is why a position was closed.
type Reason string

const (
	ReasonStopLoss     Reason = "stop_loss"
	ReasonTakeProfit   Reason = "take_profit"
	ReasonTrailingStop Reason = "trailing_stop"
	ReasonSignal       Reason = "signal"
	ReasonEndOfReplay  Reason = "end_of_replay"
)

type Position struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Size          float64   `json:"size"`
	EntryPrice    float64   `json:"entry_price"`
	Margin        float64   `json:"margin"`
	Notional      float64   `json:"notional"`
	OpenTime      time.Time `json:"open_time"`
	Confidence    float64   `json:"confidence"`
	HighestPnLPct float64   `json:"highest_pnl_pct"`
}

type Trade struct {
	ID         string        `json:"id"`
	Symbol     string        `json:"symbol"`
	Side       Side          `json:"side"`
	EntryPrice float64       `json:"entry_price"`
	ExitPrice  float64       `json:"exit_price"`
	Size       float64       `json:"size"`
	Notional   float64       `json:"notional"`
	PnLPct     float64       `json:"pnl_pct"`
	PnLUSD     float64       `json:"pnl_usd"`
	OpenTime   time.Time     `json:"open_time"`
	CloseTime  time.Time     `json:"close_time"`
	Duration   time.Duration `json:"duration"`
	Confidence float64       `json:"confidence"`
	Reason     Reason        `json:"reason"`
}

type EquityPoint struct {
	Time   time.Time `json:"timestamp"`
	Equity float64   `json:"equity"`
}

// PnLPct is the leveraged percentage move from entry to price.
func PnLPct(side Side, entry, price, leverage float64) float64 {
	if entry == 0 {
		return 0
	}
	move := (price - entry) / entry
	if side == Short {
		move = -move
	}
	return move * 100 * leverage
}

// RawPnL is the unlevered price delta times size. Leverage is already in
// size through the larger notional, so it is not applied again.
func RawPnL(side Side, entry, price, size float64) float64 {
	if side == Short {
		return (entry - price) * size
	}
	return (price - entry) * size
}

// PnLPct returns the position's leveraged percentage move at price.
func (p Position) PnLPct(price, leverage float64) float64 {
	return PnLPct(p.Side, p.EntryPrice, price, leverage)
}

// Unrealized returns raw P&L at price with no fee and no slippage.
func (p Position) Unrealized(price float64) float64 {
	return RawPnL(p.Side, p.EntryPrice, price, p.Size)
}

func entryPrice(side Side, price, slippage float64) float64 {
	if side == Short {
		return price * (1 - slippage)
	}
	return price * (1 + slippage)
}

func exitPrice(side Side, price, slippage float64) float64 {
	if side == Short {
		return price * (1 + slippage)
	}
	return price * (1 - slippage)
}
