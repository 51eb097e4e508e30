package indicators

import (
	"fmt"

	"github.com/rustyeddy/perptrader/market"
)

// MACD tracks fast EMA minus slow EMA and an EMA of that difference.
type MACD struct {
	fast, slow, sig int

	fastEMA *EMA
	slowEMA *EMA
	signal  *EMA
	line    float64
}

func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:    fast,
		slow:    slow,
		sig:     signal,
		fastEMA: NewEMA(fast),
		slowEMA: NewEMA(slow),
		signal:  NewEMA(signal),
	}
}

func (m *MACD) Name() string { return fmt.Sprintf("MACD(%d,%d,%d)", m.fast, m.slow, m.sig) }
func (m *MACD) Warmup() int { return 1 }
func (m *MACD) Ready() bool { return m.signal.Ready() }

func (m *MACD) Reset() {
	m.fastEMA.Reset()
	m.slowEMA.Reset()
	m.signal.Reset()
	m.line = 0
}

func (m *MACD) Update(c market.Candle) {
	m.fastEMA.Update(c)
	m.slowEMA.Update(c)
	m.line = m.fastEMA.Value() - m.slowEMA.Value()
	m.signal.push(m.line)
}

// Value returns the MACD line.
func (m *MACD) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.line
}

// Signal returns the signal line.
func (m *MACD) Signal() float64 { return m.signal.Value() }

// Histogram returns MACD minus signal.
func (m *MACD) Histogram() float64 { return m.Value() - m.Signal() }
