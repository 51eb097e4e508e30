package indicators

import (
	"time"

	"github.com/rustyeddy/perptrader/market"
)

// Periods used for every Snapshot.
const (
	RSIPeriod  = 14
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
	BBPeriod   = 20
	BBStdDev   = 2.0
	ATRPeriod  = 14
	ADXPeriod  = 14
	SMAShort   = 20
	SMAMedium  = 50
	SMALong    = 200
)

// Snapshot is the full indicator state after one candle. Readings that are
// still warming up have OK=false; nothing is backfilled.
type Snapshot struct {
	Time  time.Time `json:"time"`
	Close float64   `json:"close"`

	RSI        Value `json:"rsi"`
	MACD       Value `json:"macd"`
	MACDSignal Value `json:"macd_signal"`
	SMA20      Value `json:"sma20"`
	SMA50      Value `json:"sma50"`
	SMA200     Value `json:"sma200"`
	BBUpper    Value `json:"bb_upper"`
	BBMiddle   Value `json:"bb_middle"`
	BBLower    Value `json:"bb_lower"`
	ATR        Value `json:"atr"`
	ADX        Value `json:"adx"`
}

// Engine feeds candles through every indicator and emits Snapshots.
type Engine struct {
	rsi    *RSI
	macd   *MACD
	sma20  *SMA
	sma50  *SMA
	sma200 *SMA
	bb     *Bollinger
	atr    *ATR
	adx    *ADX
}

func NewEngine() *Engine {
	return &Engine{
		rsi:    NewRSI(RSIPeriod),
		macd:   NewMACD(MACDFast, MACDSlow, MACDSignal),
		sma20:  NewSMA(SMAShort),
		sma50:  NewSMA(SMAMedium),
		sma200: NewSMA(SMALong),
		bb:     NewBollinger(BBPeriod, BBStdDev),
		atr:    NewATR(ATRPeriod),
		adx:    NewADX(ADXPeriod),
	}
}

func (e *Engine) all() []Indicator {
	return []Indicator{e.rsi, e.macd, e.sma20, e.sma50, e.sma200, e.bb, e.atr, e.adx}
}

func (e *Engine) Reset() {
	for _, in := range e.all() {
		in.Reset()
	}
}

// Update consumes the next candle and returns the resulting Snapshot.
func (e *Engine) Update(c market.Candle) Snapshot {
	for _, in := range e.all() {
		in.Update(c)
	}

	s := Snapshot{
		Time:     c.Time,
		Close:    c.Close,
		RSI:      valueOf(e.rsi),
		MACD:     valueOf(e.macd),
		SMA20:    valueOf(e.sma20),
		SMA50:    valueOf(e.sma50),
		SMA200:   valueOf(e.sma200),
		BBMiddle: valueOf(e.bb),
		ATR:      valueOf(e.atr),
		ADX:      valueOf(e.adx),
	}
	if e.macd.Ready() {
		s.MACDSignal = Value{V: e.macd.Signal(), OK: true}
	}
	if e.bb.Ready() {
		s.BBUpper = Value{V: e.bb.Upper(), OK: true}
		s.BBLower = Value{V: e.bb.Lower(), OK: true}
	}
	return s
}

// Compute returns one Snapshot per candle. Candles must be sorted.
func Compute(candles []market.Candle) []Snapshot {
	e := NewEngine()
	out := make([]Snapshot, len(candles))
	for i, c := range candles {
		out[i] = e.Update(c)
	}
	return out
}

// Last returns the Snapshot for the final candle, or false if there are
// no candles.
func Last(candles []market.Candle) (Snapshot, bool) {
	if len(candles) == 0 {
		return Snapshot{}, false
	}
	snaps := Compute(candles)
	return snaps[len(snaps)-1], true
}
