// Package market holds the normalised OHLCV record every other package
// consumes, plus the providers that produce it.
package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Candle is one OHLCV bar. Time is the bar's open time in UTC.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Valid reports whether the candle carries a usable closing price.
func (c Candle) Valid() bool {
	return !c.Time.IsZero() && c.Close > 0
}

// Provider fetches historical candles for one symbol. Results are sorted by
// time; gaps are allowed.
type Provider interface {
	FetchOHLCV(ctx context.Context, symbol string, lookbackDays int, timeframe string) ([]Candle, error)
}

// Sort orders candles by time and drops duplicate timestamps, keeping the
// last one seen.
func Sort(candles []Candle) []Candle {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time.Before(candles[j].Time)
	})

	out := candles[:0]
	for _, c := range candles {
		if n := len(out); n > 0 && out[n-1].Time.Equal(c.Time) {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// Timeline merges the timestamps of every series into one sorted,
// de-duplicated sequence.
func Timeline(series map[string][]Candle) []time.Time {
	seen := make(map[int64]time.Time)
	for _, candles := range series {
		for _, c := range candles {
			seen[c.Time.UnixNano()] = c.Time
		}
	}

	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Symbols returns the keys of series in sorted order.
func Symbols(series map[string][]Candle) []string {
	out := make([]string, 0, len(series))
	for s := range series {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ParseTimeframe converts timeframes like "15m", "1h", "4H" or "1d" into a
// duration.
func ParseTimeframe(tf string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(tf))
	if len(s) < 2 {
		return 0, fmt.Errorf("bad timeframe %q", tf)
	}

	var n int
	if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("bad timeframe %q", tf)
	}

	switch s[len(s)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("bad timeframe %q", tf)
	}
}
