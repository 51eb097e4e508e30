package cmd

import (
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/perptrader/market"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download candles into the CSV data directory",
	Long: `Fetch pulls OHLCV history from the configured HTTP provider and writes one
<SYMBOL>_<timeframe>.csv file per symbol. The files can then be replayed
offline with market.provider set to csv.

Example:
  perptrader fetch --symbols BTC,ETH,SOL --days 180 --timeframe 4h --data ./data`,
	RunE: runFetch,
}

var (
	fetchSymbols   []string
	fetchDays      int
	fetchTimeframe string
	fetchDataDir   string
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringSliceVarP(&fetchSymbols, "symbols", "s", nil, "symbols to download (default market.symbols)")
	fetchCmd.Flags().IntVarP(&fetchDays, "days", "d", 0, "lookback in days (default market.lookback_days)")
	fetchCmd.Flags().StringVarP(&fetchTimeframe, "timeframe", "t", "", "candle timeframe (default market.timeframe)")
	fetchCmd.Flags().StringVar(&fetchDataDir, "data", "", "output directory (default market.data_dir)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(fetchSymbols) > 0 {
		cfg.Market.Symbols = fetchSymbols
	}
	if fetchDays > 0 {
		cfg.Market.LookbackDays = fetchDays
	}
	if fetchTimeframe != "" {
		cfg.Market.Timeframe = fetchTimeframe
	}
	if fetchDataDir != "" {
		cfg.Market.DataDir = fetchDataDir
	}
	if cfg.Market.Provider == "csv" {
		// reading our own output back makes no sense
		cfg.Market.Provider = "hyperliquid"
	}
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

	out := market.NewCSVProvider(cfg.Market.DataDir)
	for _, sym := range market.Symbols(series) {
		path, err := out.SaveCSV(sym, cfg.Market.Timeframe, series[sym])
		if err != nil {
			return fmt.Errorf("save %s: %w", sym, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d candles -> %s\n", sym, len(series[sym]), path)
	}
	return nil
}
