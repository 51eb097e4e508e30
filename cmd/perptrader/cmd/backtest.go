package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/perptrader/exits"
	"github.com/rustyeddy/perptrader/internal/id"
	"github.com/rustyeddy/perptrader/journal"
	"github.com/rustyeddy/perptrader/ledger"
	"github.com/rustyeddy/perptrader/replay"
	"github.com/rustyeddy/perptrader/report"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical candles through the decision engine",
	Long: `Backtest fetches OHLCV history for every configured symbol, merges the
series into one timeline and replays it tick by tick: exits first, then
signal reversals and entries. Positions still open at the end are closed
with reason end_of_replay.

The report is saved as backtest_YYYYMMDD_HHMMSS.json under report.dir.
Nothing is saved when no trades were executed.

Example:
  perptrader backtest -c perptrader.yaml --symbols BTC,ETH --days 30 --org`,
	RunE: runBacktest,
}

var (
	btSymbols  []string
	btDays     int
	btProvider string
	btDataDir  string
	btSeed     int64
	btOutDir   string
	btOrg      bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringSliceVarP(&btSymbols, "symbols", "s", nil, "symbols to replay (default market.symbols)")
	backtestCmd.Flags().IntVarP(&btDays, "days", "d", 0, "lookback in days (default market.lookback_days)")
	backtestCmd.Flags().StringVar(&btProvider, "provider", "", "market provider: csv or hyperliquid")
	backtestCmd.Flags().StringVar(&btDataDir, "data", "", "CSV directory for the csv provider")
	backtestCmd.Flags().Int64Var(&btSeed, "seed", 1, "seed for trade IDs; equal seeds give identical reports")
	backtestCmd.Flags().StringVarP(&btOutDir, "out", "o", "", "report directory (default report.dir)")
	backtestCmd.Flags().BoolVar(&btOrg, "org", false, "also write an Org-mode report")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(btSymbols) > 0 {
		cfg.Market.Symbols = btSymbols
	}
	if btDays > 0 {
		cfg.Market.LookbackDays = btDays
	}
	if btProvider != "" {
		cfg.Market.Provider = btProvider
	}
	if btDataDir != "" {
		cfg.Market.DataDir = btDataDir
	}
	if btOutDir != "" {
		cfg.Report.Dir = btOutDir
	}
	cfg.Report.Org = cfg.Report.Org || btOrg
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := newLogger(cmd, cfg)

	ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	series, err := fetchSeries(ctx, provider, cfg, log)
	if err != nil {
		return err
	}
	src, err := newSource(cfg, log)
	if err != nil {
		return err
	}

	j, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer j.Close()

	runID := id.New()
	created := time.Now().UTC()
	log = log.With().Str("run_id", runID).Logger()

	l := ledger.New(cfg.Ledger(runID, btSeed), j, log)
	runner := &replay.Runner{
		Ledger:  l,
		Exits:   exits.NewMonitor(cfg.ExitRules(), l, log),
		Source:  src,
		Options: cfg.ReplayOptions(),
		Log:     log,
	}

	res, err := runner.Run(ctx, series)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	rec := journal.RunRecord{
		RunID:        runID,
		Mode:         "replay",
		Created:      created,
		Symbols:      strings.Join(res.Symbols, ","),
		Timeframe:    cfg.Market.Timeframe,
		Start:        res.Start,
		End:          res.End,
		StartBalance: res.InitialBalance,
		EndBalance:   res.FinalBalance,
		Trades:       len(res.Trades),
		Config:       cfgJSON,
	}

	rep := report.Generate(res.Trades, res.Equity, res.InitialBalance, res.FinalBalance)
	if rep.Empty() {
		recordRun(ctx, j, rec, log)
		fmt.Fprintln(cmd.OutOrStdout(), rep.Error)
		return nil
	}
	rep.Run = &report.Run{
		ID:        runID,
		Mode:      "replay",
		Created:   created,
		Symbols:   res.Symbols,
		Timeframe: cfg.Market.Timeframe,
		Start:     res.Start,
		End:       res.End,
		Config:    cfgJSON,
	}

	path := filepath.Join(cfg.Report.Dir, report.FileName(created))
	if err := report.Save(path, rep); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	rec.ReportPath = path
	recordRun(ctx, j, rec, log)

	if cfg.Report.Org {
		orgPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".org"
		if err := report.WriteOrg(orgPath, rep); err != nil {
			return fmt.Errorf("write org report: %w", err)
		}
		log.Info().Str("path", orgPath).Msg("org report written")
	}

	if err := report.Print(cmd.OutOrStdout(), rep); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nReport: %s\n", path)
	return nil
}
