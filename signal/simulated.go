package signal

import (
	"context"
	"fmt"
	"math"

	"github.com/rustyeddy/perptrader/indicators"
)

// Simulated scores indicator snapshots with a fixed heuristic. It needs no
// network and is fully deterministic, so replay uses it.
type Simulated struct{}

func (Simulated) Signal(_ context.Context, _ string, snap indicators.Snapshot) (Signal, error) {
	return Score(snap), nil
}

// Ask lets Simulated stand in as a live oracle.
func (s Simulated) Ask(ctx context.Context, symbol string, snap indicators.Snapshot) (Signal, error) {
	return s.Signal(ctx, symbol, snap)
}

// Score starts at 50 and adds RSI, MACD and moving average votes. Readings
// still warming up count as neutral: RSI 50, MACD diff 0, averages equal to
// the close.
func Score(snap indicators.Snapshot) Signal {
	price := snap.Close
	rsi := snap.RSI.Or(50)
	macdDiff := 0.0
	if snap.MACD.OK && snap.MACDSignal.OK {
		macdDiff = snap.MACD.V - snap.MACDSignal.V
	}

	score := 50.0

	switch {
	case rsi < 25:
		score += 25
	case rsi < 35:
		score += 15
	case rsi > 75:
		score -= 25
	case rsi > 65:
		score -= 15
	}

	if macdDiff > 0 {
		score += 15
	} else {
		score -= 15
	}

	score += above(price, snap.SMA20.Or(price), 8, -5)
	score += above(price, snap.SMA50.Or(price), 7, -5)
	score += above(price, snap.SMA200.Or(price), 10, -8)

	score = math.Max(0, math.Min(100, score))

	switch {
	case score >= 65:
		return Signal{
			Action:     Buy,
			Confidence: confidence(score - 65),
			Rationale:  fmt.Sprintf("score %.0f", score),
		}
	case score <= 35:
		return Signal{
			Action:     Sell,
			Confidence: confidence(35 - score),
			Rationale:  fmt.Sprintf("score %.0f", score),
		}
	default:
		return Signal{Action: Nothing, Confidence: 50, Rationale: fmt.Sprintf("score %.0f", score)}
	}
}

func above(price, avg, up, down float64) float64 {
	if price > avg {
		return up
	}
	return down
}

func confidence(excess float64) float64 {
	return math.Min(95, 70+math.Floor(excess*25/35))
}
