package report

import (
	"bytes"
	"io"
	"os"
	"strings"
	"text/template"
	"time"
)

var orgFuncs = template.FuncMap{
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"join":    strings.Join,
	"reasons": sortedReasons,
}

// RenderOrg writes r as an Org-mode run log entry.
func RenderOrg(w io.Writer, r Report) error {
	if r.Empty() {
		return ErrEmptyReport
	}
	if r.Run == nil {
		r.Run = &Run{}
	}

	t, err := template.New("run").Funcs(orgFuncs).Parse(OrgTemplate)
	if err != nil {
		return err
	}
	return t.Execute(w, r)
}

// WriteOrg renders r into the file at path.
func WriteOrg(path string, r Report) error {
	buf := new(bytes.Buffer)
	if err := RenderOrg(buf, r); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

const OrgTemplate = `
* {{if .Run.Mode}}{{.Run.Mode}}{{else}}backtest{{end}}: {{if .Run.Symbols}}{{join .Run.Symbols " "}}{{else}}(symbols?){{end}} {{if .Run.Timeframe}}{{.Run.Timeframe}}{{else}}(timeframe?){{end}}
:PROPERTIES:
:RUN_ID:      {{if .Run.ID}}{{.Run.ID}}{{else}}(run-id?){{end}}
:TIMEFRAME:   {{if .Run.Timeframe}}{{.Run.Timeframe}}{{else}}(timeframe?){{end}}
:START_DATE:  {{.Run.Start.Format "2006-01-02"}}
:END_DATE:    {{.Run.End.Format "2006-01-02"}}
:START_BAL:   {{printf "%.2f" .Summary.InitialBalance}}
:END_BAL:     {{printf "%.2f" .Summary.FinalBalance}}
:NET_PL:      {{printf "%.2f" .Summary.TotalPnL}}
:ROI_PCT:     {{printf "%.2f" .Summary.ROI}}
:MAX_DD_PCT:  {{printf "%.2f" .Summary.MaxDrawdown}}
:TRADES:      {{.Summary.TotalTrades}}
:WINS:        {{.Summary.WinningTrades}}
:LOSSES:      {{.Summary.LosingTrades}}
:WIN_RATE:    {{printf "%.2f" .Summary.WinRate}}
:PROFIT_FAC:  {{.Summary.ProfitFactor}}
:CREATED:     [{{(orTime .Run.Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- Net P/L:          *{{printf "%.2f" .Summary.TotalPnL}}*
- ROI:              *{{printf "%.2f" .Summary.ROI}}%*
- Max Drawdown:     *{{printf "%.2f" .Summary.MaxDrawdown}}%*
- Win Rate:         *{{printf "%.2f" .Summary.WinRate}}%*
- Profit Factor:    *{{.Summary.ProfitFactor}}*
- Avg Win / Loss:   *{{printf "%.2f" .Summary.AvgWin}} / {{printf "%.2f" .Summary.AvgLoss}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Summary.WinningTrades}} |
| Losses  | {{.Summary.LosingTrades}} |
| Total   | {{.Summary.TotalTrades}} |

** Close Reasons
| Reason | Count |
|--------+-------|
{{- range reasons .CloseReasons }}
| {{.Reason}} | {{.Count}} |
{{- end }}
`
