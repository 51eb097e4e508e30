package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/perptrader/config"
	"github.com/rustyeddy/perptrader/internal/logging"
)

var (
	configPath string
	storePath  string
	envFile    string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "perptrader",
	Short: "Leveraged perpetual futures decision and risk engine",
	Long: `Perptrader replays and paper trades leveraged perpetual futures.

It provides tools for:
  - Replaying multi-symbol OHLCV history through the decision engine
  - Running a periodic live loop against a paper gateway
  - Downloading candles from Hyperliquid into CSV files
  - Reports as JSON, Org-mode and terminal tables
  - A versioned configuration store

Configuration is read from --config, then from the store at --store if it
holds a version, then from built-in defaults.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnv,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "./perptrader.config", "path to the config store")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with voter API keys")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override logging.format (json, console)")
}

// loadEnv reads the dotenv file if there is one. A missing file is fine.
func loadEnv(cmd *cobra.Command, args []string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// loadConfig resolves the active configuration.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}

	if _, err := os.Stat(storePath); err == nil {
		s, err := config.OpenStore(storePath)
		if err != nil {
			return nil, err
		}
		defer s.Close()

		v, err := s.Current()
		switch {
		case err == nil:
			return v.Config, nil
		case !errors.Is(err, config.ErrNotFound):
			return nil, err
		}
	}
	return config.Default(), nil
}

// newLogger writes to the command's stderr so logs never mix with the
// report printed on stdout.
func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	opts := cfg.LoggingOptions()
	if logLevel != "" {
		opts.Level = logLevel
	}
	if logFormat != "" {
		opts.Format = logFormat
	}
	return logging.NewWithWriter(cmd.ErrOrStderr(), opts)
}
