// Package indicators provides streaming technical indicators over market
// candles and the per-candle Snapshot consumed by signal sources.
package indicators

import "github.com/rustyeddy/perptrader/market"

// Indicator computes a single streaming value from candles.
// It is deterministic and safe to use in live and replay.
type Indicator interface {
	// Name returns a stable identifier like "SMA(20)" or "RSI(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closed candle.
	Update(c market.Candle)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current value, or 0 before Ready().
	Value() float64
}

// Value is an indicator reading. OK is false while the indicator is still
// warming up.
type Value struct {
	V  float64 `json:"v"`
	OK bool    `json:"ok"`
}

func valueOf(in Indicator) Value {
	if !in.Ready() {
		return Value{}
	}
	return Value{V: in.Value(), OK: true}
}

// Or returns the reading, or def when it is not ready.
func (v Value) Or(def float64) float64 {
	if !v.OK {
		return def
	}
	return v.V
}

// window is a fixed-length FIFO of the most recent samples.
type window struct {
	size int
	vals []float64
}

func newWindow(size int) *window {
	return &window{size: size, vals: make([]float64, 0, size)}
}

func (w *window) push(v float64) {
	w.vals = append(w.vals, v)
	if len(w.vals) > w.size {
		w.vals = w.vals[1:]
	}
}

func (w *window) full() bool { return len(w.vals) >= w.size }

func (w *window) mean() float64 {
	if len(w.vals) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range w.vals {
		s += v
	}
	return s / float64(len(w.vals))
}

func (w *window) reset() {
	w.vals = w.vals[:0]
}
