package indicators

import (
	"fmt"

	"github.com/rustyeddy/perptrader/market"
)

// RSI is the relative strength index over a simple rolling mean of gains
// and losses. It needs period+1 closes.
type RSI struct {
	period int
	gains  *window
	losses *window
	prev   float64
	seen   bool
}

func NewRSI(period int) *RSI {
	return &RSI{
		period: period,
		gains:  newWindow(period),
		losses: newWindow(period),
	}
}

func (r *RSI) Name() string { return fmt.Sprintf("RSI(%d)", r.period) }
func (r *RSI) Warmup() int { return r.period + 1 }
func (r *RSI) Ready() bool { return r.gains.full() }

func (r *RSI) Reset() {
	r.gains.reset()
	r.losses.reset()
	r.prev = 0
	r.seen = false
}

func (r *RSI) Update(c market.Candle) {
	if !r.seen {
		r.prev = c.Close
		r.seen = true
		return
	}

	delta := c.Close - r.prev
	r.prev = c.Close

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}
	r.gains.push(gain)
	r.losses.push(loss)
}

// Value is 100 when the window has no losses and 50 when it has no
// movement at all.
func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	g, l := r.gains.mean(), r.losses.mean()
	switch {
	case g == 0 && l == 0:
		return 50
	case l == 0:
		return 100
	}
	rs := g / l
	return 100 - 100/(1+rs)
}
