// Package report turns a trade log and equity curve into the summary
// document written at the end of every replay run.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/rustyeddy/perptrader/ledger"
)

// NoTrades is the Error value of a report generated from an empty trade log.
const NoTrades = "No trades executed"

// ErrEmptyReport is returned when saving a report that carries no results.
var ErrEmptyReport = errors.New("report: " + NoTrades)

// Ratio is a float that serialises +Inf as the JSON string "Infinity".
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	v := float64(r)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(v):
		return []byte(`null`), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"Infinity"`:
		*r = Ratio(math.Inf(1))
		return nil
	case `"-Infinity"`:
		*r = Ratio(math.Inf(-1))
		return nil
	case `null`:
		*r = Ratio(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("report: bad ratio %s: %w", b, err)
	}
	*r = Ratio(v)
	return nil
}

func (r Ratio) String() string {
	if math.IsInf(float64(r), 1) {
		return "inf"
	}
	return strconv.FormatFloat(float64(r), 'f', 2, 64)
}

type Summary struct {
	InitialBalance float64 `json:"initial_balance"`
	FinalBalance   float64 `json:"final_balance"`
	TotalPnL       float64 `json:"total_pnl"`
	ROI            float64 `json:"roi_pct"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	ProfitFactor   Ratio   `json:"profit_factor"`
	MaxDrawdown    float64 `json:"max_drawdown_pct"`
	AvgPnL         float64 `json:"avg_pnl"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
}

// Run describes the replay that produced a report.
type Run struct {
	ID        string          `json:"id"`
	Mode      string          `json:"mode"`
	Created   time.Time       `json:"created"`
	Symbols   []string        `json:"symbols"`
	Timeframe string          `json:"timeframe"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Report is the document persisted once per run. When Error is set the
// other fields are empty and must not be read.
type Report struct {
	Error        string               `json:"error,omitempty"`
	Run          *Run                 `json:"run,omitempty"`
	Summary      *Summary             `json:"summary,omitempty"`
	CloseReasons map[string]int       `json:"close_reasons,omitempty"`
	Trades       []ledger.Trade       `json:"trades,omitempty"`
	Equity       []ledger.EquityPoint `json:"equity_curve,omitempty"`
}

func (r Report) Empty() bool { return r.Error != "" || r.Summary == nil }

// Generate builds a report. An empty trade log yields a report whose only
// field is Error.
func Generate(trades []ledger.Trade, equity []ledger.EquityPoint, initial, final float64) Report {
	if len(trades) == 0 {
		return Report{Error: NoTrades}
	}

	s := Summarize(trades, equity, initial, final)
	return Report{
		Summary:      &s,
		CloseReasons: CloseReasons(trades),
		Trades:       trades,
		Equity:       equity,
	}
}

// Summarize computes the summary statistics. It never divides by zero: with
// no trades the trade ratios stay 0, and profit factor is +Inf when nothing
// was lost.
func Summarize(trades []ledger.Trade, equity []ledger.EquityPoint, initial, final float64) Summary {
	s := Summary{
		InitialBalance: initial,
		FinalBalance:   final,
		TotalTrades:    len(trades),
		MaxDrawdown:    MaxDrawdown(equity),
	}
	if initial != 0 {
		s.ROI = (final - initial) / initial * 100
	}

	var grossProfit, grossLoss float64
	for _, t := range trades {
		s.TotalPnL += t.PnLUSD
		switch {
		case t.PnLUSD > 0:
			s.WinningTrades++
			grossProfit += t.PnLUSD
		case t.PnLUSD < 0:
			s.LosingTrades++
			grossLoss += -t.PnLUSD
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
		s.AvgPnL = s.TotalPnL / float64(s.TotalTrades)
	}
	if s.WinningTrades > 0 {
		s.AvgWin = grossProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = -grossLoss / float64(s.LosingTrades)
	}

	switch {
	case grossLoss > 0:
		s.ProfitFactor = Ratio(grossProfit / grossLoss)
	case s.TotalTrades > 0:
		s.ProfitFactor = Ratio(math.Inf(1))
	}
	return s
}

// MaxDrawdown returns the deepest (equity-peak)/peak*100 along the curve.
// The result is zero or negative.
func MaxDrawdown(equity []ledger.EquityPoint) float64 {
	var peak, worst float64
	for i, pt := range equity {
		if i == 0 || pt.Equity > peak {
			peak = pt.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (pt.Equity - peak) / peak * 100; dd < worst {
			worst = dd
		}
	}
	return worst
}

// CloseReasons counts trades by close reason.
func CloseReasons(trades []ledger.Trade) map[string]int {
	out := make(map[string]int)
	for _, t := range trades {
		out[string(t.Reason)]++
	}
	return out
}

type reasonCount struct {
	Reason string
	Count  int
}

// sortedReasons orders a close-reason histogram by count, then name.
func sortedReasons(m map[string]int) []reasonCount {
	out := make([]reasonCount, 0, len(m))
	for r, n := range m {
		out = append(out, reasonCount{r, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}
