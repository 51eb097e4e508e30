// Package journal records closed trades, equity points and run metadata
// to SQLite or CSV. It is an audit trail; the replay report stays the
// artifact of record.
package journal

import "time"

type TradeRecord struct {
	RunID      string
	TradeID    string
	Symbol     string
	Side       string
	Size       float64
	Notional   float64
	EntryPrice float64
	ExitPrice  float64
	PnLPct     float64
	PnLUSD     float64
	Confidence float64
	OpenTime   time.Time
	CloseTime  time.Time
	Reason     string
}

type EquitySnapshot struct {
	RunID         string
	Time          time.Time
	Balance       float64
	Equity        float64
	OpenPositions int
}

// RunRecord describes one replay or live session.
type RunRecord struct {
	RunID        string
	Mode         string // "replay" or "live"
	Created      time.Time
	Symbols      string // comma separated
	Timeframe    string
	Start        time.Time
	End          time.Time
	StartBalance float64
	EndBalance   float64
	Trades       int
	ReportPath   string
	Config       []byte
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error { return nil }
