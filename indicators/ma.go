package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/perptrader/market"
)

// SMA is a streaming simple moving average of closes.
type SMA struct {
	period int
	w      *window
}

func NewSMA(period int) *SMA {
	return &SMA{period: period, w: newWindow(period)}
}

func (m *SMA) Name() string { return fmt.Sprintf("SMA(%d)", m.period) }
func (m *SMA) Warmup() int { return m.period }
func (m *SMA) Reset() { m.w.reset() }
func (m *SMA) Ready() bool { return m.w.full() }

func (m *SMA) Update(c market.Candle) { m.w.push(c.Close) }

func (m *SMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.w.mean()
}

// StdDev returns the sample standard deviation of the window.
func (m *SMA) StdDev() float64 {
	n := len(m.w.vals)
	if !m.Ready() || n < 2 {
		return 0
	}
	mean := m.w.mean()
	ss := 0.0
	for _, v := range m.w.vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// EMA is a streaming exponential moving average of closes. It is seeded
// with the first close and has a value from the first update on, the
// recursive (non-adjusted) form used by most charting packages.
type EMA struct {
	period int
	alpha  float64
	ema    float64
	count  int
}

func NewEMA(period int) *EMA {
	return &EMA{period: period, alpha: 2.0 / float64(period+1)}
}

func (e *EMA) Name() string { return fmt.Sprintf("EMA(%d)", e.period) }
func (e *EMA) Warmup() int { return 1 }
func (e *EMA) Ready() bool { return e.count > 0 }

func (e *EMA) Reset() {
	e.ema = 0
	e.count = 0
}

func (e *EMA) Update(c market.Candle) { e.push(c.Close) }

func (e *EMA) push(v float64) {
	if e.count == 0 {
		e.ema = v
	} else {
		e.ema = e.alpha*v + (1-e.alpha)*e.ema
	}
	e.count++
}

func (e *EMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}
