// Package risk turns signal confidence into position size and decides
// whether new entries are allowed.
package risk

// NoConfidence marks a signal without a confidence score. Size falls back
// to MaxPositionPct for it.
const NoConfidence = -1

// Policy is the static sizing configuration.
type Policy struct {
	UseDynamicSizing bool

	MinConfidence float64 // 70
	MinSizePct    float64 // 10
	MaxSizePct    float64 // 30

	MaxPositionPct float64 // 40, used when dynamic sizing is off
	Leverage       float64 // 20
}

// Sizing is the result of Size.
type Sizing struct {
	Pct      float64 // percent of balance committed as margin
	Margin   float64
	Notional float64
}

// Ratio maps confidence onto [0,1] between MinConfidence and 100. When
// MinConfidence is 100 or more the range is empty and the ratio is 0.
func (p Policy) Ratio(confidence float64) float64 {
	span := 100 - p.MinConfidence
	if span <= 0 {
		return 0
	}
	return clamp((confidence-p.MinConfidence)/span, 0, 1)
}

// PositionPct returns the percent of balance to commit for confidence.
func (p Policy) PositionPct(confidence float64) float64 {
	if !p.UseDynamicSizing || confidence < 0 {
		return p.MaxPositionPct
	}
	return p.MinSizePct + (p.MaxSizePct-p.MinSizePct)*p.Ratio(confidence)
}

// Size converts confidence and balance into margin and notional.
func (p Policy) Size(confidence, balance float64) Sizing {
	pct := p.PositionPct(confidence)
	margin := balance * pct / 100
	return Sizing{
		Pct:      pct,
		Margin:   margin,
		Notional: margin * p.Leverage,
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
