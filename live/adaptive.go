package live

import (
	"strings"
	"time"
)

// AdaptiveInterval picks the wait between cycles from the proxy symbol's
// ATR as a percent of its close. Busy markets are scanned more often.
type AdaptiveInterval struct {
	Enabled bool
	Symbol  string // volatility proxy, BTC when empty

	HighATRPct float64 // 3.0: above this use Fast
	LowATRPct  float64 // 1.5: below this use Slow

	Fast   time.Duration // 15m
	Normal time.Duration // 30m
	Slow   time.Duration // 60m
}

// DefaultAdaptiveInterval returns the disabled 15m / 30m / 60m ladder.
func DefaultAdaptiveInterval() AdaptiveInterval {
	return AdaptiveInterval{
		Symbol:     "BTC",
		HighATRPct: 3.0,
		LowATRPct:  1.5,
		Fast:       15 * time.Minute,
		Normal:     30 * time.Minute,
		Slow:       60 * time.Minute,
	}
}

func (a AdaptiveInterval) proxy() string {
	if a.Symbol == "" {
		return "BTC"
	}
	return strings.ToUpper(a.Symbol)
}

// Pick maps an ATR percent to an interval. Without a reading it returns
// Normal.
func (a AdaptiveInterval) Pick(atrPct float64, ok bool) time.Duration {
	switch {
	case !ok:
		return a.Normal
	case atrPct > a.HighATRPct:
		return a.Fast
	case atrPct < a.LowATRPct:
		return a.Slow
	default:
		return a.Normal
	}
}
