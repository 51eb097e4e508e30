// Package status publishes the live loop's state: a JSON summary shaped
// like the replay report, and Prometheus metrics.
package status

import (
	"sync"
	"time"

	"github.com/rustyeddy/perptrader/ledger"
	"github.com/rustyeddy/perptrader/report"
)

type Snapshot struct {
	Updated      time.Time          `json:"updated"`
	Cycle        int                `json:"cycle"`
	Summary      report.Summary     `json:"summary"`
	CloseReasons map[string]int     `json:"close_reasons"`
	Positions    []ledger.Position  `json:"positions"`
	Prices       map[string]float64 `json:"prices"`
	Errors       map[string]string  `json:"errors,omitempty"`
}

// Feed holds the latest Snapshot. Metrics may be nil.
type Feed struct {
	mu      sync.RWMutex
	snap    Snapshot
	metrics *Metrics
}

func NewFeed(m *Metrics) *Feed {
	return &Feed{
		metrics: m,
		snap: Snapshot{
			CloseReasons: map[string]int{},
			Positions:    []ledger.Position{},
			Prices:       map[string]float64{},
		},
	}
}

func (f *Feed) Metrics() *Metrics { return f.metrics }

// Publish rebuilds the snapshot from the ledger.
func (f *Feed) Publish(l *ledger.Ledger, prices map[string]float64, cycle int, errs map[string]string, now time.Time) Snapshot {
	trades := l.Trades()
	positions := l.Positions()
	balance := l.Balance()
	equity := l.Equity(prices)

	px := make(map[string]float64, len(prices))
	for k, v := range prices {
		px[k] = v
	}

	snap := Snapshot{
		Updated:      now.UTC(),
		Cycle:        cycle,
		Summary:      report.Summarize(trades, l.EquityCurve(), l.InitialBalance(), balance),
		CloseReasons: report.CloseReasons(trades),
		Positions:    positions,
		Prices:       px,
	}
	if len(errs) > 0 {
		snap.Errors = make(map[string]string, len(errs))
		for k, v := range errs {
			snap.Errors[k] = v
		}
	}

	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()

	if m := f.metrics; m != nil {
		m.Equity.Set(equity)
		m.Balance.Set(balance)
		m.OpenPositions.Set(float64(len(positions)))
	}
	return snap
}

func (f *Feed) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap
}
