package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/perptrader/market"
)

// ADX implements Wilder's Average Directional Index (trend strength).
// Usage:
//
//	adx := indicators.NewADX(14)
//	adx.Update(candle)
//	if adx.Ready() && adx.Value() >= 25 { ... }
type ADX struct {
	Period int

	prev     market.Candle
	havePrev bool

	// Wilder-smoothed values after warmup
	tr    float64
	pdm   float64
	mdm   float64
	pdi   float64
	mdi   float64
	adx   float64
	dxSum float64

	// count of candles processed (including the first prev seed)
	count int
	ready bool
}

func NewADX(period int) *ADX {
	return &ADX{Period: period}
}

func (a *ADX) Name() string { return fmt.Sprintf("ADX(%d)", a.Period) }

// Warmup is 2*Period candles after the initial seed: Period to initialise
// smoothed TR/+DM/-DM, then Period DX values to initialise ADX.
func (a *ADX) Warmup() int { return 2*a.Period + 1 }

func (a *ADX) Ready() bool { return a.ready }

func (a *ADX) Reset() { *a = ADX{Period: a.Period} }

func (a *ADX) Value() float64 {
	if !a.ready {
		return 0
	}
	return a.adx
}

// PlusDI and MinusDI return the last directional indicators.
func (a *ADX) PlusDI() float64 { return a.pdi }
func (a *ADX) MinusDI() float64 { return a.mdi }

func (a *ADX) Update(c market.Candle) {
	if !a.havePrev {
		a.prev = c
		a.havePrev = true
		a.count = 1
		return
	}

	upMove := c.High - a.prev.High
	downMove := a.prev.Low - c.Low

	var pdm, mdm float64
	if upMove > downMove && upMove > 0 {
		pdm = upMove
	}
	if downMove > upMove && downMove > 0 {
		mdm = downMove
	}

	tr := trueRange(c, a.prev)
	a.prev = c
	a.count++

	p := float64(a.Period)

	// Phase A: simple averages seed Wilder smoothing.
	if a.count <= a.Period+1 {
		a.tr += tr
		a.pdm += pdm
		a.mdm += mdm
		if a.count == a.Period+1 {
			a.tr /= p
			a.pdm /= p
			a.mdm /= p
		}
		return
	}

	a.tr = (a.tr*(p-1) + tr) / p
	a.pdm = (a.pdm*(p-1) + pdm) / p
	a.mdm = (a.mdm*(p-1) + mdm) / p

	a.pdi, a.mdi = 0, 0
	if a.tr > 0 {
		a.pdi = 100 * a.pdm / a.tr
		a.mdi = 100 * a.mdm / a.tr
	}

	dx := 0.0
	if den := a.pdi + a.mdi; den != 0 {
		dx = 100 * math.Abs(a.pdi-a.mdi) / den
	}

	// Phase B: seed ADX with the average of the first Period DX values.
	if !a.ready {
		a.dxSum += dx
		if a.count == 2*a.Period+1 {
			a.adx = a.dxSum / p
			a.ready = true
		}
		return
	}

	a.adx = (a.adx*(p-1) + dx) / p
}
