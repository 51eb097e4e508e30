package indicators

import (
	"fmt"

	"github.com/rustyeddy/perptrader/market"
)

// Bollinger bands: SMA(period) ± k sample standard deviations.
type Bollinger struct {
	k   float64
	sma *SMA
}

func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{k: k, sma: NewSMA(period)}
}

func (b *Bollinger) Name() string { return fmt.Sprintf("BB(%d,%g)", b.sma.period, b.k) }
func (b *Bollinger) Warmup() int { return b.sma.Warmup() }
func (b *Bollinger) Reset() { b.sma.Reset() }
func (b *Bollinger) Ready() bool { return b.sma.Ready() }

func (b *Bollinger) Update(c market.Candle) { b.sma.Update(c) }

// Value returns the middle band.
func (b *Bollinger) Value() float64 { return b.sma.Value() }

func (b *Bollinger) Upper() float64 {
	if !b.Ready() {
		return 0
	}
	return b.sma.Value() + b.k*b.sma.StdDev()
}

func (b *Bollinger) Lower() float64 {
	if !b.Ready() {
		return 0
	}
	return b.sma.Value() - b.k*b.sma.StdDev()
}
