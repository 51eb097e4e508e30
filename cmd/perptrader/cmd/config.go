package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/perptrader/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate, validate and store configuration",
	Long: `Manage configuration files and the versioned config store.

Every change to the store writes a new version; older versions are kept
and can be restored with rollback.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file
  show     - Print the active configuration as YAML
  set      - Change one key in the store (e.g. exits.stop_loss_pct 4)
  import   - Store a configuration file as a new version
  history  - List stored versions
  rollback - Make an older version current again

Examples:
  perptrader config init -o perptrader.yaml
  perptrader config validate -f perptrader.yaml
  perptrader config import -f perptrader.yaml
  perptrader config set risk.leverage 10
  perptrader config set market.symbols "[BTC, ETH, SOL]"`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings. The format
follows the extension: .json writes JSON, anything else YAML.

Example:
  perptrader config init -o perptrader.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one key in the config store",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Store a configuration file as a new version",
	Args:  cobra.NoArgs,
	RunE:  runConfigImport,
}

var configHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored config versions",
	Args:  cobra.NoArgs,
	RunE:  runConfigHistory,
}

var configRollbackCmd = &cobra.Command{
	Use:   "rollback <version>",
	Short: "Make an older config version current",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigRollback,
}

var (
	configInitOutput   string
	configValidatePath string
	configImportPath   string
	configNote         string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configImportCmd)
	configCmd.AddCommand(configHistoryCmd)
	configCmd.AddCommand(configRollbackCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "perptrader.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
	configImportCmd.Flags().StringVarP(&configImportPath, "file", "f", "", "path to config file (required)")
	configImportCmd.MarkFlagRequired("file")
	configCmd.PersistentFlags().StringVarP(&configNote, "note", "m", "", "note stored with the new version")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(w, "\nEdit the file and run with:")
	fmt.Fprintf(w, "  perptrader backtest -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(w, "  Account: $%.2f %s\n", cfg.Account.Balance, cfg.Account.Currency)
	fmt.Fprintf(w, "  Market: %s %v %s\n", cfg.Market.Provider, cfg.Market.Symbols, cfg.Market.Timeframe)
	fmt.Fprintf(w, "  Risk: %.0fx leverage, SL %.1f%% / TP %.1f%%\n", cfg.Risk.Leverage, cfg.Exits.StopLossPct, cfg.Exits.TakeProfitPct)
	fmt.Fprintf(w, "  Signal: %s (min confidence %.0f)\n", cfg.Signal.Source, cfg.Signal.MinConfidence)
	fmt.Fprintf(w, "  Journal: %s\n", cfg.Journal.Type)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	s, err := config.OpenStore(storePath)
	if err != nil {
		return err
	}
	defer s.Close()

	note := configNote
	if note == "" {
		note = fmt.Sprintf("set %s=%s", args[0], args[1])
	}
	v, err := s.Update(note, func(c *config.Config) error {
		next, err := config.Set(c, args[0], args[1])
		if err != nil {
			return err
		}
		*c = *next
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s (version %d)\n", args[0], args[1], v.Number)
	return nil
}

func runConfigImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configImportPath)
	if err != nil {
		return err
	}
	s, err := config.OpenStore(storePath)
	if err != nil {
		return err
	}
	defer s.Close()

	note := configNote
	if note == "" {
		note = "import " + configImportPath
	}
	v, err := s.Put(cfg, note)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %s as version %d\n", configImportPath, v.Number)
	return nil
}

func runConfigHistory(cmd *cobra.Command, args []string) error {
	s, err := config.OpenStore(storePath)
	if err != nil {
		return err
	}
	defer s.Close()

	versions, err := s.History()
	if err != nil {
		return err
	}
	cur, err := s.Current()
	if err != nil && len(versions) > 0 {
		return err
	}

	w := cmd.OutOrStdout()
	if len(versions) == 0 {
		fmt.Fprintln(w, "store is empty")
		return nil
	}
	for _, v := range versions {
		mark := " "
		if v.Number == cur.Number {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %4d  %s  %s\n", mark, v.Number, v.Created.Format(time.DateTime), v.Note)
	}
	return nil
}

func runConfigRollback(cmd *cobra.Command, args []string) error {
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("bad version %q", args[0])
	}
	s, err := config.OpenStore(storePath)
	if err != nil {
		return err
	}
	defer s.Close()

	old, err := s.Get(n)
	if err != nil {
		return fmt.Errorf("version %d: %w", n, err)
	}
	note := configNote
	if note == "" {
		note = fmt.Sprintf("rollback to %d", n)
	}
	v, err := s.Put(old.Config, note)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Version %d restored as version %d\n", n, v.Number)
	return nil
}
