package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var borderStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("62")).
	Padding(0, 1)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))

var (
	profitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func signed(v float64) lipgloss.Style {
	if v < 0 {
		return lossStyle
	}
	return profitStyle
}

func row(label, value string, style lipgloss.Style) string {
	return labelStyle.Render(fmt.Sprintf("%-16s", label)) + style.Render(value)
}

// Print renders a terminal summary of r.
func Print(w io.Writer, r Report) error {
	if r.Empty() {
		_, err := fmt.Fprintln(w, warnStyle.Render("no report: "+r.Error))
		return err
	}
	s := r.Summary

	ddStyle := warnStyle
	if s.MaxDrawdown < -10 {
		ddStyle = lossStyle
	}

	perf := strings.Join([]string{
		titleStyle.Render("PERFORMANCE"),
		row("Initial Balance", fmt.Sprintf("$%.2f", s.InitialBalance), lipgloss.NewStyle()),
		row("Final Balance", fmt.Sprintf("$%.2f", s.FinalBalance), lipgloss.NewStyle()),
		row("Total P&L", fmt.Sprintf("$%.2f (%+.2f%%)", s.TotalPnL, s.ROI), signed(s.TotalPnL).Bold(true)),
		row("Max Drawdown", fmt.Sprintf("%.2f%%", s.MaxDrawdown), ddStyle),
	}, "\n")

	stats := strings.Join([]string{
		titleStyle.Render("TRADE STATISTICS"),
		row("Total Trades", fmt.Sprintf("%d", s.TotalTrades), lipgloss.NewStyle()),
		row("Winning", fmt.Sprintf("%d (%.1f%%)", s.WinningTrades, s.WinRate), profitStyle),
		row("Losing", fmt.Sprintf("%d", s.LosingTrades), lossStyle),
		row("Profit Factor", s.ProfitFactor.String(), lipgloss.NewStyle()),
		row("Avg Win", fmt.Sprintf("$%.2f", s.AvgWin), profitStyle),
		row("Avg Loss", fmt.Sprintf("$%.2f", s.AvgLoss), lossStyle),
	}, "\n")

	reasons := []string{titleStyle.Render("CLOSE REASONS")}
	for _, rc := range sortedReasons(r.CloseReasons) {
		reasons = append(reasons, row(rc.Reason, fmt.Sprintf("%d", rc.Count), lipgloss.NewStyle()))
	}

	sections := []string{
		borderStyle.Render(perf),
		borderStyle.Render(stats),
		borderStyle.Render(strings.Join(reasons, "\n")),
	}
	if r.Run != nil && r.Run.ID != "" {
		sections = append([]string{labelStyle.Render("run " + r.Run.ID)}, sections...)
	}

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, sections...))
	return err
}
