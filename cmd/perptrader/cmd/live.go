package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/perptrader/exits"
	"github.com/rustyeddy/perptrader/gateway"
	"github.com/rustyeddy/perptrader/internal/id"
	"github.com/rustyeddy/perptrader/journal"
	"github.com/rustyeddy/perptrader/ledger"
	"github.com/rustyeddy/perptrader/live"
	"github.com/rustyeddy/perptrader/report"
	"github.com/rustyeddy/perptrader/risk"
	"github.com/rustyeddy/perptrader/status"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Run the periodic decision loop against the paper gateway",
	Long: `Live runs one cycle per live.interval. Each cycle walks the configured
symbols in order: fetch candles, check exits, ask the signal source, then
close on reversal or open a new position if the risk guard allows it.
With live.adaptive_interval enabled (or --adaptive) the wait between
cycles follows the proxy symbol's ATR instead of live.interval.

Orders go to an in-memory paper gateway. Ctrl-C stops the loop between
symbols; open positions are kept in the report as unrealized equity.

Examples:
  perptrader live -c perptrader.yaml
  perptrader live --once --status-addr :9090
  perptrader live --adaptive -s BTC,ETH,SOL`,
	RunE: runLive,
}

var (
	liveOnce       bool
	liveStatusAddr string
	liveSymbols    []string
	liveInterval   time.Duration
	liveAdaptive   bool
)

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().BoolVar(&liveOnce, "once", false, "run a single cycle and exit")
	liveCmd.Flags().StringVar(&liveStatusAddr, "status-addr", "", "serve /status and /metrics on this address (default live.status_addr)")
	liveCmd.Flags().StringSliceVarP(&liveSymbols, "symbols", "s", nil, "symbols to trade (default market.symbols)")
	liveCmd.Flags().DurationVar(&liveInterval, "interval", 0, "time between cycles (default live.interval)")
	liveCmd.Flags().BoolVar(&liveAdaptive, "adaptive", false, "pick the interval from volatility (default live.adaptive_interval.enabled)")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(liveSymbols) > 0 {
		cfg.Market.Symbols = liveSymbols
	}
	if liveInterval > 0 {
		cfg.Live.Interval = liveInterval.String()
	}
	if liveStatusAddr != "" {
		cfg.Live.StatusAddr = liveStatusAddr
	}
	if liveAdaptive {
		cfg.Live.AdaptiveInterval.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runID := id.New()
	created := time.Now().UTC()
	log := newLogger(cmd, cfg).With().Str("run_id", runID).Logger()

	ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(cfg)
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

	l := ledger.New(cfg.Ledger(runID, created.UnixNano()), j, log)
	feed := status.NewFeed(status.NewMetrics())
	sched := &live.Scheduler{
		Provider: provider,
		Source:   src,
		Gateway:  gateway.NewPaper(cfg.Live.LotDecimals),
		Ledger:   l,
		Exits:    exits.NewMonitor(cfg.ExitRules(), l, log),
		Guard:    risk.NewGuard(cfg.Guard()),
		Feed:     feed,
		Options: live.Options{
			Symbols:       cfg.Market.Symbols,
			Timeframe:     cfg.Market.Timeframe,
			LookbackDays:  cfg.Market.LookbackDays,
			Interval:      cfg.Interval(),
			MinConfidence: cfg.Signal.MinConfidence,
			LongOnly:      cfg.Signal.LongOnly,
			Retry:         cfg.Retry(),
			Adaptive:      cfg.Adaptive(),
		},
		Log: log,
	}

	if liveOnce {
		res := sched.RunCycle(ctx)
		for sym, msg := range res.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", sym, msg)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		loopCtx, cancelLoop := context.WithCancel(gctx)
		defer cancelLoop()

		if cfg.Live.StatusAddr != "" {
			g.Go(func() error {
				log.Info().Str("addr", cfg.Live.StatusAddr).Msg("status server listening")
				return status.Serve(loopCtx, cfg.Live.StatusAddr, feed)
			})
		}
		g.Go(func() error {
			defer cancelLoop()
			return sched.Run(loopCtx)
		})
		if err := g.Wait(); err != nil {
			return err
		}
	}

	snap := feed.Snapshot()
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	recordRun(context.Background(), j, journal.RunRecord{
		RunID:        runID,
		Mode:         "live",
		Created:      created,
		Symbols:      strings.Join(cfg.Market.Symbols, ","),
		Timeframe:    cfg.Market.Timeframe,
		Start:        created,
		End:          time.Now().UTC(),
		StartBalance: l.InitialBalance(),
		EndBalance:   l.Balance(),
		Trades:       len(l.Trades()),
		Config:       cfgJSON,
	}, log)

	rep := report.Generate(l.Trades(), l.EquityCurve(), l.InitialBalance(), l.Balance())
	if rep.Empty() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (cycles: %d, open positions: %d)\n", rep.Error, snap.Cycle, len(snap.Positions))
		return nil
	}
	return report.Print(cmd.OutOrStdout(), rep)
}
