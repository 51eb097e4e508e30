package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, 1000.0, cfg.Account.Balance)
	assert.Equal(t, 20.0, cfg.Risk.Leverage)
	assert.Equal(t, 70.0, cfg.Signal.MinConfidence)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Market.Symbols)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"negative balance", func(c *Config) { c.Account.Balance = -5 }, "account.balance must be positive"},
		{"bad provider", func(c *Config) { c.Market.Provider = "binance" }, "market.provider must be"},
		{"csv without dir", func(c *Config) { c.Market.Provider = "csv"; c.Market.DataDir = "" }, "market.data_dir required"},
		{"no symbols", func(c *Config) { c.Market.Symbols = nil }, "market.symbols is required"},
		{"blank symbol", func(c *Config) { c.Market.Symbols = []string{"BTC", " "} }, "empty names"},
		{"bad timeframe", func(c *Config) { c.Market.Timeframe = "4y" }, "market.timeframe"},
		{"low leverage", func(c *Config) { c.Risk.Leverage = 0.5 }, "risk.leverage must be at least 1"},
		{"max position", func(c *Config) { c.Risk.MaxPositionPct = 150 }, "risk.max_position_pct"},
		{"dynamic range", func(c *Config) { c.Risk.MinSizePct = 40 }, "risk.min_size_pct"},
		{"static sizing ignores range", func(c *Config) { c.Risk.UseDynamicSizing = false; c.Risk.MinSizePct = 40 }, ""},
		{"dynamic band above 100", func(c *Config) { c.Risk.MaxSizePct = 120 }, "risk.min_size_pct"},
		{"correlation reduction", func(c *Config) {
			c.Risk.Correlation.Enabled = true
			c.Risk.Correlation.ReductionPct = 100
		}, "risk.correlation.reduction_pct"},
		{"correlation max exposure", func(c *Config) {
			c.Risk.Correlation.Enabled = true
			c.Risk.Correlation.MaxGroupExposurePct = 0
		}, "risk.correlation.max_group_exposure_pct"},
		{"correlation empty group", func(c *Config) {
			c.Risk.Correlation.Enabled = true
			c.Risk.Correlation.Groups = map[string][]string{"majors": nil}
		}, "risk.correlation.groups.majors"},
		{"correlation off ignores values", func(c *Config) { c.Risk.Correlation.MaxGroupExposurePct = 0 }, ""},
		{"daily usd", func(c *Config) { c.Risk.DailyLoss.LimitUSD = 0 }, "risk.daily_loss.limit_usd"},
		{"daily pct", func(c *Config) { c.Risk.DailyLoss.UsePct = true; c.Risk.DailyLoss.LimitPct = 0 }, "risk.daily_loss.limit_pct"},
		{"stop loss", func(c *Config) { c.Exits.StopLossPct = 0 }, "exits.stop_loss_pct must be positive"},
		{"take profit", func(c *Config) { c.Exits.TakeProfitPct = -1 }, "exits.take_profit_pct must be positive"},
		{"trailing", func(c *Config) { c.Exits.TrailingDistancePct = 0 }, "trailing_distance_pct"},
		{"fee", func(c *Config) { c.Costs.FeeRate = 1 }, "costs.fee_rate"},
		{"slippage", func(c *Config) { c.Costs.Slippage = -0.1 }, "costs.slippage"},
		{"min confidence", func(c *Config) { c.Signal.MinConfidence = 101 }, "signal.min_confidence"},
		{"source", func(c *Config) { c.Signal.Source = "oracle" }, "signal.source must be"},
		{"swarm without voters", func(c *Config) { c.Signal.Source = "swarm" }, "signal.voters required"},
		{"voter url", func(c *Config) {
			c.Signal.Source = "swarm"
			c.Signal.Voters = []VoterConfig{{Name: "a"}}
		}, "signal.voters[0].url is required"},
		{"swarm timeout", func(c *Config) { c.Signal.SwarmTimeout = "soon" }, "signal.swarm_timeout"},
		{"interval", func(c *Config) { c.Live.Interval = "" }, "live.interval must be a positive duration"},
		{"retries", func(c *Config) { c.Live.Retries = -1 }, "live.retries"},
		{"adaptive thresholds", func(c *Config) {
			c.Live.AdaptiveInterval.Enabled = true
			c.Live.AdaptiveInterval.HighATRPct = 1
		}, "live.adaptive_interval thresholds"},
		{"adaptive step", func(c *Config) {
			c.Live.AdaptiveInterval.Enabled = true
			c.Live.AdaptiveInterval.Slow = "later"
		}, "live.adaptive_interval.slow"},
		{"adaptive on", func(c *Config) { c.Live.AdaptiveInterval.Enabled = true }, ""},
		{"journal type", func(c *Config) { c.Journal.Type = "postgres" }, "journal.type must be"},
		{"journal csv", func(c *Config) { c.Journal.Type = "csv" }, "journal trades_file and equity_file required"},
		{"journal sqlite", func(c *Config) { c.Journal.DBPath = "" }, "journal db_path required"},
		{"journal none", func(c *Config) { c.Journal.Type = "none" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Signal.LongOnly = true
			cfg.Market.Symbols = []string{"SOL"}
			path := filepath.Join(tmpDir, "test"+tt.ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk:\n  leverage: 5\nmarket:\n  symbols: [SOL]\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.Risk.Leverage)
	assert.Equal(t, []string{"SOL"}, cfg.Market.Symbols)
	assert.Equal(t, 3.0, cfg.Exits.StopLossPct)
	assert.Equal(t, "4h", cfg.Market.Timeframe)
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  balance: -1\n"), 0o644))
	_, err = LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account.balance must be positive")
}

func TestConverters(t *testing.T) {
	cfg := Default()

	p := cfg.Policy()
	assert.True(t, p.UseDynamicSizing)
	assert.Equal(t, 70.0, p.MinConfidence)
	assert.Equal(t, 40.0, p.MaxPositionPct)

	l := cfg.Ledger("RUN", 9)
	assert.Equal(t, 1000.0, l.InitialBalance)
	assert.Equal(t, 0.0006, l.FeeRate)
	assert.Equal(t, "RUN", l.RunID)
	assert.Equal(t, int64(9), l.Seed)
	assert.Equal(t, p, l.Sizing)

	r := cfg.ExitRules()
	assert.True(t, r.Trailing)
	assert.Equal(t, 3.0, r.TrailingActivationPct)

	g := cfg.Guard()
	assert.True(t, g.Enabled)
	assert.Equal(t, 50.0, g.DailyLossLimitUSD)
	assert.False(t, g.Correlation.Enabled)
	assert.Equal(t, 50.0, g.Correlation.ReductionPct)
	assert.Equal(t, 60.0, g.Correlation.MaxGroupExposurePct)
	assert.Nil(t, g.Correlation.Groups)

	a := cfg.Adaptive()
	assert.False(t, a.Enabled)
	assert.Equal(t, "BTC", a.Symbol)
	assert.Equal(t, 15*time.Minute, a.Fast)
	assert.Equal(t, 30*time.Minute, a.Normal)
	assert.Equal(t, time.Hour, a.Slow)

	rp := cfg.Retry()
	assert.Equal(t, 4, rp.Attempts)
	assert.Equal(t, 30*time.Second, rp.Timeout)
	assert.Equal(t, 2*time.Second, rp.Delay)

	assert.Equal(t, 30*time.Minute, cfg.Interval())
	assert.Equal(t, time.Minute, cfg.SwarmTimeout())
	assert.Equal(t, "info", cfg.LoggingOptions().Level)
	assert.Equal(t, 70.0, cfg.ReplayOptions().MinConfidence)
}

func TestSet(t *testing.T) {
	tests := []struct {
		key, value string
		check      func(t *testing.T, c *Config)
		errMsg     string
	}{
		{key: "exits.stop_loss_pct", value: "5", check: func(t *testing.T, c *Config) {
			assert.Equal(t, 5.0, c.Exits.StopLossPct)
		}},
		{key: "signal.long_only", value: "true", check: func(t *testing.T, c *Config) {
			assert.True(t, c.Signal.LongOnly)
		}},
		{key: "market.symbols", value: "[BTC, SOL, HYPE]", check: func(t *testing.T, c *Config) {
			assert.Equal(t, []string{"BTC", "SOL", "HYPE"}, c.Market.Symbols)
		}},
		{key: "risk.daily_loss.limit_usd", value: "75.5", check: func(t *testing.T, c *Config) {
			assert.Equal(t, 75.5, c.Risk.DailyLoss.LimitUSD)
		}},
		{key: "live.interval", value: "15m", check: func(t *testing.T, c *Config) {
			assert.Equal(t, 15*time.Minute, c.Interval())
		}},
		{key: "risk.correlation.enabled", value: "true", check: func(t *testing.T, c *Config) {
			assert.True(t, c.Guard().Correlation.Enabled)
		}},
		{key: "live.adaptive_interval.high_atr_pct", value: "4", check: func(t *testing.T, c *Config) {
			assert.Equal(t, 4.0, c.Adaptive().HighATRPct)
		}},
		{key: "exits.nope", value: "1", errMsg: `unknown key "exits.nope"`},
		{key: "exits", value: "1", errMsg: "is a section"},
		{key: "account.balance.x", value: "1", errMsg: "is not a section"},
		{key: "risk.leverage", value: "abc", errMsg: "risk.leverage"},
		{key: "risk.leverage", value: "0", errMsg: "risk.leverage must be at least 1"},
		{key: "", value: "1", errMsg: "key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			base := Default()
			got, err := Set(base, tt.key, tt.value)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
			assert.Equal(t, Default(), base, "input must not change")
		})
	}
}
