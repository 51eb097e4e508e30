package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/perptrader/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Display saved replay reports",
	Long: `Render a saved JSON report in the terminal or convert it to Org-mode.

Subcommands:
  show  - Print the performance tables of a report
  org   - Write the report as an Org-mode document

Examples:
  perptrader report show results/backtest_20240101_120000.json
  perptrader report org results/backtest_20240101_120000.json -o notes/run.org`,
}

var reportShowCmd = &cobra.Command{
	Use:   "show <report.json>",
	Short: "Print a saved report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportShow,
}

var reportOrgCmd = &cobra.Command{
	Use:   "org <report.json>",
	Short: "Convert a saved report to Org-mode",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportOrg,
}

var reportOrgOutput string

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportOrgCmd)

	reportOrgCmd.Flags().StringVarP(&reportOrgOutput, "output", "o", "", "output .org file (default: stdout)")
}

func runReportShow(cmd *cobra.Command, args []string) error {
	r, err := report.Load(args[0])
	if err != nil {
		return err
	}
	if r.Empty() {
		fmt.Fprintln(cmd.OutOrStdout(), r.Error)
		return nil
	}
	if r.Run != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s (%s) %s\n\n", r.Run.ID, r.Run.Mode, r.Run.Created.Format("2006-01-02 15:04:05"))
	}
	return report.Print(cmd.OutOrStdout(), r)
}

func runReportOrg(cmd *cobra.Command, args []string) error {
	r, err := report.Load(args[0])
	if err != nil {
		return err
	}
	if reportOrgOutput == "" {
		return report.RenderOrg(cmd.OutOrStdout(), r)
	}
	if err := report.WriteOrg(reportOrgOutput, r); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", reportOrgOutput)
	return nil
}
