package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/perptrader/market"
)

// ATR is a streaming average true range: a simple rolling mean of the
// true range. The first candle's true range is its high-low span.
type ATR struct {
	period  int
	w       *window
	prev    market.Candle
	hasPrev bool
}

func NewATR(period int) *ATR {
	return &ATR{period: period, w: newWindow(period)}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR(%d)", a.period) }
func (a *ATR) Warmup() int { return a.period }
func (a *ATR) Ready() bool { return a.w.full() }

func (a *ATR) Reset() {
	a.w.reset()
	a.hasPrev = false
}

func (a *ATR) Update(c market.Candle) {
	tr := c.High - c.Low
	if a.hasPrev {
		tr = trueRange(c, a.prev)
	}
	a.w.push(tr)
	a.prev = c
	a.hasPrev = true
}

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.w.mean()
}

// trueRange calculates the True Range for a candle given the previous candle
func trueRange(current, previous market.Candle) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)

	return math.Max(highLow, math.Max(highClose, lowClose))
}
