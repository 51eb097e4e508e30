package status

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are registered on their own registry so tests and multiple
// schedulers never collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	Equity        prometheus.Gauge
	Balance       prometheus.Gauge
	OpenPositions prometheus.Gauge
	Cycles        prometheus.Counter
	CycleSeconds  prometheus.Histogram
	Signals       *prometheus.CounterVec // symbol, action
	Trades        *prometheus.CounterVec // symbol, reason
	Errors        *prometheus.CounterVec // symbol, stage
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perptrader_equity_usd", Help: "Balance plus unrealized P&L",
		}),
		Balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perptrader_balance_usd", Help: "Realized account balance",
		}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perptrader_open_positions", Help: "Positions currently open in the ledger",
		}),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perptrader_cycles_total", Help: "Completed live decision cycles",
		}),
		CycleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "perptrader_cycle_seconds",
			Help:    "Wall time of one live decision cycle",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		Signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "perptrader_signals_total", Help: "Signals received"},
			[]string{"symbol", "action"},
		),
		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "perptrader_trades_total", Help: "Positions closed"},
			[]string{"symbol", "reason"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "perptrader_errors_total", Help: "Per-symbol failures by stage"},
			[]string{"symbol", "stage"},
		),
	}
	m.Registry.MustRegister(
		m.Equity, m.Balance, m.OpenPositions,
		m.Cycles, m.CycleSeconds,
		m.Signals, m.Trades, m.Errors,
	)
	return m
}
