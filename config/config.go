package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/perptrader/exits"
	"github.com/rustyeddy/perptrader/internal/logging"
	"github.com/rustyeddy/perptrader/internal/retry"
	"github.com/rustyeddy/perptrader/ledger"
	"github.com/rustyeddy/perptrader/live"
	"github.com/rustyeddy/perptrader/market"
	"github.com/rustyeddy/perptrader/replay"
	"github.com/rustyeddy/perptrader/risk"
)

// Config is the complete bot configuration. It is read once per process
// and handed to each component by value.
type Config struct {
	Account AccountConfig `json:"account" yaml:"account"`
	Market  MarketConfig  `json:"market" yaml:"market"`
	Risk    RiskConfig    `json:"risk" yaml:"risk"`
	Exits   ExitsConfig   `json:"exits" yaml:"exits"`
	Costs   CostsConfig   `json:"costs" yaml:"costs"`
	Signal  SignalConfig  `json:"signal" yaml:"signal"`
	Live    LiveConfig    `json:"live" yaml:"live"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Report  ReportConfig  `json:"report" yaml:"report"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

type AccountConfig struct {
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

// MarketConfig selects where candles come from.
type MarketConfig struct {
	Provider     string   `json:"provider" yaml:"provider"` // "csv" or "hyperliquid"
	DataDir      string   `json:"data_dir" yaml:"data_dir"`
	BaseURL      string   `json:"base_url" yaml:"base_url"`
	Symbols      []string `json:"symbols" yaml:"symbols"`
	Timeframe    string   `json:"timeframe" yaml:"timeframe"`
	LookbackDays int      `json:"lookback_days" yaml:"lookback_days"`
}

// RiskConfig holds position sizing and the daily loss guard.
type RiskConfig struct {
	UseDynamicSizing bool    `json:"use_dynamic_sizing" yaml:"use_dynamic_sizing"`
	MinSizePct       float64 `json:"min_size_pct" yaml:"min_size_pct"`
	MaxSizePct       float64 `json:"max_size_pct" yaml:"max_size_pct"`
	MaxPositionPct   float64 `json:"max_position_pct" yaml:"max_position_pct"`
	Leverage         float64 `json:"leverage" yaml:"leverage"`

	DailyLoss   DailyLossConfig   `json:"daily_loss" yaml:"daily_loss"`
	Correlation CorrelationConfig `json:"correlation" yaml:"correlation"`
}

type DailyLossConfig struct {
	Enabled          bool    `json:"enabled" yaml:"enabled"`
	LimitUSD         float64 `json:"limit_usd" yaml:"limit_usd"`
	LimitPct         float64 `json:"limit_pct" yaml:"limit_pct"`
	UsePct           bool    `json:"use_pct" yaml:"use_pct"`
	MaxOpenPositions int     `json:"max_open_positions" yaml:"max_open_positions"`
}

// CorrelationConfig cuts or blocks entries into groups of symbols that
// move together. Groups replaces the built-in groups when set.
type CorrelationConfig struct {
	Enabled             bool                `json:"enabled" yaml:"enabled"`
	ReductionPct        float64             `json:"reduction_pct" yaml:"reduction_pct"`
	MaxGroupExposurePct float64             `json:"max_group_exposure_pct" yaml:"max_group_exposure_pct"`
	Groups              map[string][]string `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// ExitsConfig percentages are leveraged P&L percentages.
type ExitsConfig struct {
	StopLossPct           float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct         float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
	TrailingStop          bool    `json:"trailing_stop" yaml:"trailing_stop"`
	TrailingActivationPct float64 `json:"trailing_activation_pct" yaml:"trailing_activation_pct"`
	TrailingDistancePct   float64 `json:"trailing_distance_pct" yaml:"trailing_distance_pct"`
}

type CostsConfig struct {
	FeeRate  float64 `json:"fee_rate" yaml:"fee_rate"` // 0.0006 = 0.06%
	Slippage float64 `json:"slippage" yaml:"slippage"` // 0.001 = 0.1%
}

// SignalConfig picks the signal source. "simulated" scores indicators
// locally; "swarm" polls the configured voters.
type SignalConfig struct {
	Source        string        `json:"source" yaml:"source"`
	MinConfidence float64       `json:"min_confidence" yaml:"min_confidence"`
	LongOnly      bool          `json:"long_only" yaml:"long_only"`
	SwarmTimeout  string        `json:"swarm_timeout" yaml:"swarm_timeout"`
	Voters        []VoterConfig `json:"voters,omitempty" yaml:"voters,omitempty"`
}

// VoterConfig names an HTTP voter. The API key is read from the
// environment variable APIKeyEnv so secrets stay out of config files.
type VoterConfig struct {
	Name      string `json:"name" yaml:"name"`
	URL       string `json:"url" yaml:"url"`
	APIKeyEnv string `json:"api_key_env" yaml:"api_key_env"`
	Timeout   string `json:"timeout" yaml:"timeout"`
}

type LiveConfig struct {
	Interval      string `json:"interval" yaml:"interval"`             // between cycles, e.g. "30m"
	SymbolTimeout string `json:"symbol_timeout" yaml:"symbol_timeout"` // per external call
	Retries       int    `json:"retries" yaml:"retries"`
	RetryDelay    string `json:"retry_delay" yaml:"retry_delay"`
	LotDecimals   int32  `json:"lot_decimals" yaml:"lot_decimals"`
	StatusAddr    string `json:"status_addr" yaml:"status_addr"` // empty disables the status server

	AdaptiveInterval AdaptiveIntervalConfig `json:"adaptive_interval" yaml:"adaptive_interval"`
}

// AdaptiveIntervalConfig scans faster when the proxy symbol's ATR, as a
// percent of price, is above HighATRPct and slower below LowATRPct.
type AdaptiveIntervalConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Symbol     string  `json:"symbol" yaml:"symbol"`
	HighATRPct float64 `json:"high_atr_pct" yaml:"high_atr_pct"`
	LowATRPct  float64 `json:"low_atr_pct" yaml:"low_atr_pct"`
	Fast       string  `json:"fast" yaml:"fast"`
	Normal     string  `json:"normal" yaml:"normal"`
	Slow       string  `json:"slow" yaml:"slow"`
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file" yaml:"trades_file"`
	EquityFile string `json:"equity_file" yaml:"equity_file"`
	DBPath     string `json:"db_path" yaml:"db_path"`
}

type ReportConfig struct {
	Dir string `json:"dir" yaml:"dir"`
	Org bool   `json:"org" yaml:"org"`
}

type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML or JSON on top of Default, so omitted fields keep
// their default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return cfg, nil
}

// SaveToFile saves configuration as YAML for .yaml/.yml paths and JSON
// otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Market.Symbols = append([]string(nil), c.Market.Symbols...)
	out.Signal.Voters = append([]VoterConfig(nil), c.Signal.Voters...)
	return &out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}

	switch c.Market.Provider {
	case "csv":
		if c.Market.DataDir == "" {
			return fmt.Errorf("market.data_dir required for csv provider")
		}
	case "hyperliquid":
	default:
		return fmt.Errorf("market.provider must be 'csv' or 'hyperliquid'")
	}
	if len(c.Market.Symbols) == 0 {
		return fmt.Errorf("market.symbols is required")
	}
	for _, s := range c.Market.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("market.symbols must not contain empty names")
		}
	}
	if _, err := market.ParseTimeframe(c.Market.Timeframe); err != nil {
		return fmt.Errorf("market.timeframe: %w", err)
	}
	if c.Market.LookbackDays < 0 {
		return fmt.Errorf("market.lookback_days must not be negative")
	}

	if c.Risk.Leverage < 1 {
		return fmt.Errorf("risk.leverage must be at least 1")
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 100 {
		return fmt.Errorf("risk.max_position_pct must be between 0 and 100")
	}
	if c.Risk.UseDynamicSizing {
		if c.Risk.MinSizePct <= 0 || c.Risk.MaxSizePct > 100 || c.Risk.MinSizePct > c.Risk.MaxSizePct {
			return fmt.Errorf("risk.min_size_pct and risk.max_size_pct must satisfy 0 < min <= max <= 100")
		}
	}
	if d := c.Risk.DailyLoss; d.Enabled {
		if d.UsePct && (d.LimitPct <= 0 || d.LimitPct > 100) {
			return fmt.Errorf("risk.daily_loss.limit_pct must be between 0 and 100")
		}
		if !d.UsePct && d.LimitUSD <= 0 {
			return fmt.Errorf("risk.daily_loss.limit_usd must be positive")
		}
	}

	if cc := c.Risk.Correlation; cc.Enabled {
		if cc.ReductionPct < 0 || cc.ReductionPct >= 100 {
			return fmt.Errorf("risk.correlation.reduction_pct must be between 0 and 100")
		}
		if cc.MaxGroupExposurePct <= 0 {
			return fmt.Errorf("risk.correlation.max_group_exposure_pct must be positive")
		}
		for name, members := range cc.Groups {
			if len(members) == 0 {
				return fmt.Errorf("risk.correlation.groups.%s must not be empty", name)
			}
		}
	}

	if c.Exits.StopLossPct <= 0 {
		return fmt.Errorf("exits.stop_loss_pct must be positive")
	}
	if c.Exits.TakeProfitPct <= 0 {
		return fmt.Errorf("exits.take_profit_pct must be positive")
	}
	if c.Exits.TrailingStop && (c.Exits.TrailingActivationPct <= 0 || c.Exits.TrailingDistancePct <= 0) {
		return fmt.Errorf("exits trailing_activation_pct and trailing_distance_pct must be positive when trailing_stop is on")
	}

	if c.Costs.FeeRate < 0 || c.Costs.FeeRate >= 1 {
		return fmt.Errorf("costs.fee_rate must be between 0 and 1")
	}
	if c.Costs.Slippage < 0 || c.Costs.Slippage >= 1 {
		return fmt.Errorf("costs.slippage must be between 0 and 1")
	}

	if c.Signal.MinConfidence < 0 || c.Signal.MinConfidence > 100 {
		return fmt.Errorf("signal.min_confidence must be between 0 and 100")
	}
	switch c.Signal.Source {
	case "simulated":
	case "swarm":
		if len(c.Signal.Voters) == 0 {
			return fmt.Errorf("signal.voters required for swarm source")
		}
		for i, v := range c.Signal.Voters {
			if v.URL == "" {
				return fmt.Errorf("signal.voters[%d].url is required", i)
			}
			if _, err := duration(v.Timeout); err != nil {
				return fmt.Errorf("signal.voters[%d].timeout: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("signal.source must be 'simulated' or 'swarm'")
	}
	if _, err := duration(c.Signal.SwarmTimeout); err != nil {
		return fmt.Errorf("signal.swarm_timeout: %w", err)
	}

	if d, err := duration(c.Live.Interval); err != nil || d <= 0 {
		return fmt.Errorf("live.interval must be a positive duration")
	}
	if _, err := duration(c.Live.SymbolTimeout); err != nil {
		return fmt.Errorf("live.symbol_timeout: %w", err)
	}
	if _, err := duration(c.Live.RetryDelay); err != nil {
		return fmt.Errorf("live.retry_delay: %w", err)
	}
	if c.Live.Retries < 0 {
		return fmt.Errorf("live.retries must not be negative")
	}
	if c.Live.LotDecimals < 0 {
		return fmt.Errorf("live.lot_decimals must not be negative")
	}
	if a := c.Live.AdaptiveInterval; a.Enabled {
		if a.LowATRPct <= 0 || a.HighATRPct < a.LowATRPct {
			return fmt.Errorf("live.adaptive_interval thresholds must satisfy 0 < low_atr_pct <= high_atr_pct")
		}
		for _, step := range []struct{ name, v string }{{"fast", a.Fast}, {"normal", a.Normal}, {"slow", a.Slow}} {
			if d, err := duration(step.v); err != nil || d <= 0 {
				return fmt.Errorf("live.adaptive_interval.%s must be a positive duration", step.name)
			}
		}
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}
	return nil
}

// duration parses a Go duration string; empty means zero.
func duration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func mustDuration(s string) time.Duration {
	d, _ := duration(s)
	return d
}

// Default mirrors the parameters the bot has traded with: 20x leverage,
// 3% stop, 10% take profit, trailing at 3/2 and confidence-scaled sizing
// between 10% and 30% of balance.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Currency: "USD",
			Balance:  1000,
		},
		Market: MarketConfig{
			Provider:     "hyperliquid",
			DataDir:      "./data",
			BaseURL:      "https://api.hyperliquid.xyz",
			Symbols:      []string{"BTC", "ETH"},
			Timeframe:    "4h",
			LookbackDays: 90,
		},
		Risk: RiskConfig{
			UseDynamicSizing: true,
			MinSizePct:       10,
			MaxSizePct:       30,
			MaxPositionPct:   40,
			Leverage:         20,
			DailyLoss: DailyLossConfig{
				Enabled:  true,
				LimitUSD: 50,
				LimitPct: 10,
			},
			Correlation: CorrelationConfig{
				ReductionPct:        50,
				MaxGroupExposurePct: 60,
			},
		},
		Exits: ExitsConfig{
			StopLossPct:           3,
			TakeProfitPct:         10,
			TrailingStop:          true,
			TrailingActivationPct: 3,
			TrailingDistancePct:   2,
		},
		Costs: CostsConfig{
			FeeRate:  0.0006,
			Slippage: 0.001,
		},
		Signal: SignalConfig{
			Source:        "simulated",
			MinConfidence: 70,
			SwarmTimeout:  "60s",
		},
		Live: LiveConfig{
			Interval:      "30m",
			SymbolTimeout: "30s",
			Retries:       3,
			RetryDelay:    "2s",
			LotDecimals:   4,
			AdaptiveInterval: AdaptiveIntervalConfig{
				Symbol:     "BTC",
				HighATRPct: 3.0,
				LowATRPct:  1.5,
				Fast:       "15m",
				Normal:     "30m",
				Slow:       "60m",
			},
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./perptrader.db",
		},
		Report: ReportConfig{
			Dir: "./results",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

func (c *Config) Policy() risk.Policy {
	return risk.Policy{
		UseDynamicSizing: c.Risk.UseDynamicSizing,
		MinConfidence:    c.Signal.MinConfidence,
		MinSizePct:       c.Risk.MinSizePct,
		MaxSizePct:       c.Risk.MaxSizePct,
		MaxPositionPct:   c.Risk.MaxPositionPct,
		Leverage:         c.Risk.Leverage,
	}
}

func (c *Config) Guard() risk.GuardConfig {
	d := c.Risk.DailyLoss
	return risk.GuardConfig{
		Enabled:           d.Enabled,
		DailyLossLimitUSD: d.LimitUSD,
		DailyLossLimitPct: d.LimitPct,
		UsePct:            d.UsePct,
		MaxOpenPositions:  d.MaxOpenPositions,
		Correlation: risk.CorrelationConfig{
			Enabled:             c.Risk.Correlation.Enabled,
			ReductionPct:        c.Risk.Correlation.ReductionPct,
			MaxGroupExposurePct: c.Risk.Correlation.MaxGroupExposurePct,
			Groups:              c.Risk.Correlation.Groups,
		},
	}
}

func (c *Config) ExitRules() exits.Rules {
	return exits.Rules{
		StopLossPct:           c.Exits.StopLossPct,
		TakeProfitPct:         c.Exits.TakeProfitPct,
		Trailing:              c.Exits.TrailingStop,
		TrailingActivationPct: c.Exits.TrailingActivationPct,
		TrailingDistancePct:   c.Exits.TrailingDistancePct,
	}
}

// Ledger returns the ledger settings for one run.
func (c *Config) Ledger(runID string, seed int64) ledger.Config {
	return ledger.Config{
		InitialBalance: c.Account.Balance,
		FeeRate:        c.Costs.FeeRate,
		Slippage:       c.Costs.Slippage,
		Sizing:         c.Policy(),
		RunID:          runID,
		Seed:           seed,
	}
}

func (c *Config) ReplayOptions() replay.Options {
	return replay.Options{
		MinConfidence: c.Signal.MinConfidence,
		LongOnly:      c.Signal.LongOnly,
	}
}

// Retry is the policy for oracle, gateway and provider calls.
func (c *Config) Retry() retry.Policy {
	return retry.Policy{
		Attempts: c.Live.Retries + 1,
		Timeout:  mustDuration(c.Live.SymbolTimeout),
		Delay:    mustDuration(c.Live.RetryDelay),
		Backoff:  2,
		MaxDelay: time.Minute,
	}
}

func (c *Config) Interval() time.Duration { return mustDuration(c.Live.Interval) }

func (c *Config) SwarmTimeout() time.Duration { return mustDuration(c.Signal.SwarmTimeout) }

func (v VoterConfig) TimeoutDuration() time.Duration { return mustDuration(v.Timeout) }

func (c *Config) LoggingOptions() logging.Options {
	l := c.Logging
	return logging.Options{
		Level:      l.Level,
		Format:     l.Format,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// Adaptive returns the volatility ladder for the live loop.
func (c *Config) Adaptive() live.AdaptiveInterval {
	a := c.Live.AdaptiveInterval
	return live.AdaptiveInterval{
		Enabled:    a.Enabled,
		Symbol:     a.Symbol,
		HighATRPct: a.HighATRPct,
		LowATRPct:  a.LowATRPct,
		Fast:       mustDuration(a.Fast),
		Normal:     mustDuration(a.Normal),
		Slow:       mustDuration(a.Slow),
	}
}
