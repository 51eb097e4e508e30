package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/perptrader/config"
	"github.com/rustyeddy/perptrader/hyperliquid"
	"github.com/rustyeddy/perptrader/internal/retry"
	"github.com/rustyeddy/perptrader/journal"
	"github.com/rustyeddy/perptrader/market"
	"github.com/rustyeddy/perptrader/signal"
)

func newProvider(cfg *config.Config) (market.Provider, error) {
	switch cfg.Market.Provider {
	case "csv":
		return market.NewCSVProvider(cfg.Market.DataDir), nil
	case "hyperliquid":
		return hyperliquid.New(hyperliquid.Config{
			BaseURL: cfg.Market.BaseURL,
			Timeout: cfg.Retry().Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown market provider %q", cfg.Market.Provider)
	}
}

// fetchSeries loads every configured symbol. Symbols that fail after
// retries are left out; it is an error only when none load.
func fetchSeries(ctx context.Context, p market.Provider, cfg *config.Config, log zerolog.Logger) (map[string][]market.Candle, error) {
	series := make(map[string][]market.Candle, len(cfg.Market.Symbols))
	for _, sym := range cfg.Market.Symbols {
		var candles []market.Candle
		err := retry.Do(ctx, cfg.Retry(), func(ctx context.Context) error {
			var err error
			candles, err = p.FetchOHLCV(ctx, sym, cfg.Market.LookbackDays, cfg.Market.Timeframe)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("symbol", sym).Msg("no data, symbol skipped")
			continue
		}
		if len(candles) == 0 {
			log.Warn().Str("symbol", sym).Msg("empty series, symbol skipped")
			continue
		}
		log.Info().Str("symbol", sym).Int("candles", len(candles)).Msg("loaded")
		series[sym] = candles
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("no market data for %s", strings.Join(cfg.Market.Symbols, ","))
	}
	return series, nil
}

// newSource builds the signal source named by signal.source.
func newSource(cfg *config.Config, log zerolog.Logger) (signal.Source, error) {
	switch cfg.Signal.Source {
	case "simulated":
		return signal.Simulated{}, nil
	case "swarm":
		voters := make([]signal.Voter, 0, len(cfg.Signal.Voters))
		for _, v := range cfg.Signal.Voters {
			key := ""
			if v.APIKeyEnv != "" {
				key = os.Getenv(v.APIKeyEnv)
				if key == "" {
					log.Warn().Str("voter", v.Name).Str("env", v.APIKeyEnv).Msg("api key not set")
				}
			}
			voters = append(voters, signal.NewHTTPVoter(signal.HTTPVoterConfig{
				Name:    v.Name,
				URL:     v.URL,
				APIKey:  key,
				Timeout: v.TimeoutDuration(),
			}))
		}
		swarm := &signal.Swarm{
			Voters:  voters,
			Timeout: cfg.SwarmTimeout(),
			Log:     log,
		}
		return signal.NewLive(swarm, cfg.Retry(), log), nil
	default:
		return nil, fmt.Errorf("unknown signal source %q", cfg.Signal.Source)
	}
}

func openJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "", "none":
		return journal.Nop{}, nil
	case "csv":
		j, err := journal.NewCSV(cfg.Journal.TradesFile, cfg.Journal.EquityFile)
		if err != nil {
			return nil, fmt.Errorf("open csv journal: %w", err)
		}
		return j, nil
	case "sqlite":
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Journal.Type)
	}
}

type runRecorder interface {
	RecordRun(ctx context.Context, r journal.RunRecord) error
}

// recordRun stores run metadata when the journal keeps it.
func recordRun(ctx context.Context, j journal.Journal, r journal.RunRecord, log zerolog.Logger) {
	rr, ok := j.(runRecorder)
	if !ok {
		return
	}
	if err := rr.RecordRun(ctx, r); err != nil {
		log.Error().Err(err).Str("run_id", r.RunID).Msg("record run")
	}
}
