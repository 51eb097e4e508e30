package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/perptrader/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the SQLite trade journal",
	Long: `Query runs and trades recorded in the SQLite journal.

Subcommands:
  runs   - List recent runs
  trades - List the trades of one run
  trade  - Show a single trade
  day    - List trades closed on a specific day

Examples:
  perptrader journal runs -n 10
  perptrader journal trades 01HZX3...
  perptrader journal day 2024-01-15`,
}

var journalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalRuns,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades <run-id>",
	Short: "List the trades of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrades,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <run-id> <trade-id>",
	Short: "Show a single trade",
	Args:  cobra.ExactArgs(2),
	RunE:  runJournalTrade,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day (UTC)",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var (
	journalDBPath string
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalRunsCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalTradeCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./perptrader.db", "path to SQLite journal DB")
	journalRunsCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of runs to list (0 = all)")
}

func runJournalRuns(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	runs, err := j.ListRuns(cmd.Context(), journalLimit)
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}
	fmt.Fprintf(w, "%-26s  %-6s  %-19s  %-12s  %10s  %10s  %6s\n", "RUN", "MODE", "CREATED", "SYMBOLS", "START", "END", "TRADES")
	for _, r := range runs {
		fmt.Fprintf(w, "%-26s  %-6s  %-19s  %-12s  %10.2f  %10.2f  %6d\n",
			r.RunID, r.Mode, r.Created.UTC().Format(time.DateTime), r.Symbols, r.StartBalance, r.EndBalance, r.Trades)
	}
	return nil
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	recs, err := j.ListTradesByRun(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	printTrades(cmd.OutOrStdout(), recs)
	return nil
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetTrade(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Trade:      %s\n", rec.TradeID)
	fmt.Fprintf(w, "Run:        %s\n", rec.RunID)
	fmt.Fprintf(w, "Symbol:     %s %s\n", rec.Symbol, rec.Side)
	fmt.Fprintf(w, "Size:       %.6f (notional $%.2f)\n", rec.Size, rec.Notional)
	fmt.Fprintf(w, "Entry:      %.4f @ %s\n", rec.EntryPrice, rec.OpenTime.UTC().Format(time.DateTime))
	fmt.Fprintf(w, "Exit:       %.4f @ %s\n", rec.ExitPrice, rec.CloseTime.UTC().Format(time.DateTime))
	fmt.Fprintf(w, "P&L:        $%.2f (%.2f%%)\n", rec.PnLUSD, rec.PnLPct)
	fmt.Fprintf(w, "Confidence: %.0f\n", rec.Confidence)
	fmt.Fprintf(w, "Reason:     %s\n", rec.Reason)
	return nil
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	start, end, err := dayBounds(time.UTC, args[0])
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}

	recs, err := j.ListTradesClosedBetween(cmd.Context(), start, end)
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}
	printTrades(cmd.OutOrStdout(), recs)
	return nil
}

func printTrades(w io.Writer, recs []journal.TradeRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "no trades")
		return
	}
	fmt.Fprintf(w, "%-26s  %-6s  %-5s  %12s  %12s  %10s  %8s  %s\n", "TRADE", "SYMBOL", "SIDE", "ENTRY", "EXIT", "PNL_USD", "PNL_%", "REASON")
	for _, r := range recs {
		fmt.Fprintf(w, "%-26s  %-6s  %-5s  %12.4f  %12.4f  %10.2f  %8.2f  %s\n",
			r.TradeID, r.Symbol, r.Side, r.EntryPrice, r.ExitPrice, r.PnLUSD, r.PnLPct, r.Reason)
	}
}

func dayBounds(loc *time.Location, day string) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", day, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end := start.Add(24 * time.Hour)
	return start, end, nil
}
