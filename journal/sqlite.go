package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, trade_id, symbol, side, size, notional, entry_price, exit_price,
		 pnl_pct, pnl_usd, confidence, open_time, close_time, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.TradeID, t.Symbol, t.Side, t.Size, t.Notional, t.EntryPrice, t.ExitPrice,
		t.PnLPct, t.PnLUSD, t.Confidence, t.OpenTime.UTC(), t.CloseTime.UTC(), t.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, balance, equity, open_positions)
		VALUES (?, ?, ?, ?, ?)`,
		e.RunID, e.Time.UTC(), e.Balance, e.Equity, e.OpenPositions,
	)
	return err
}

// RecordRun inserts or replaces the run row.
func (j *SQLite) RecordRun(ctx context.Context, r RunRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(run_id, mode, created, symbols, timeframe, start_time, end_time,
		 start_balance, end_balance, trades, report_path, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Mode, r.Created.UTC(), r.Symbols, r.Timeframe, r.Start.UTC(), r.End.UTC(),
		r.StartBalance, r.EndBalance, r.Trades, r.ReportPath, r.Config,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
