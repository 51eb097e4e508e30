package risk

import (
	"fmt"
	"sync"
	"time"
)

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	DayStart float64 // equity at the start of the UTC day
	DayLoss  float64 // DayStart minus current equity, positive when losing

	SizeFactor float64 // multiplier for the entry size, 1 unless correlated
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// GuardConfig configures the entry circuit breakers.
type GuardConfig struct {
	Enabled bool

	DailyLossLimitUSD float64 // 50
	DailyLossLimitPct float64 // 10
	UsePct            bool

	MaxOpenPositions int // 0 = unlimited

	Correlation CorrelationConfig
}

// AccountSnapshot is what the guard needs to know about the account.
// Symbol, Balance and Exposures are only read by the correlation check,
// which is skipped when Symbol is empty.
type AccountSnapshot struct {
	Time          time.Time
	Equity        float64
	OpenPositions int

	Symbol    string
	Balance   float64
	Exposures []Exposure
}

// Guard blocks new entries once the day's loss limit is hit. Exits are not
// its concern. The day's starting equity resets on the first evaluation of
// each UTC day.
type Guard struct {
	cfg GuardConfig

	mu       sync.Mutex
	day      string
	dayStart float64
}

func NewGuard(cfg GuardConfig) *Guard {
	return &Guard{cfg: cfg}
}

func (g *Guard) Evaluate(acct AccountSnapshot) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := acct.Time.UTC().Format(time.DateOnly)
	if day != g.day {
		g.day = day
		g.dayStart = acct.Equity
	}

	d := Decision{
		Allowed:    true,
		DayStart:   g.dayStart,
		DayLoss:    g.dayStart - acct.Equity,
		SizeFactor: 1,
	}
	if g.cfg.Enabled {
		g.checkLimits(&d, acct)
	}
	if g.cfg.Correlation.Enabled && acct.Symbol != "" {
		g.cfg.Correlation.check(&d, acct.Symbol, acct.Balance, acct.Exposures)
	}
	return d
}

func (g *Guard) checkLimits(d *Decision, acct AccountSnapshot) {
	if g.cfg.UsePct {
		if g.dayStart > 0 {
			lossPct := 100 * d.DayLoss / g.dayStart
			if lossPct >= g.cfg.DailyLossLimitPct {
				d.add("DAILY_LOSS_LIMIT",
					fmt.Sprintf("day loss %.2f%% >= limit %.2f%%", lossPct, g.cfg.DailyLossLimitPct))
			}
		}
	} else if d.DayLoss >= g.cfg.DailyLossLimitUSD {
		d.add("DAILY_LOSS_LIMIT",
			fmt.Sprintf("day loss %.2f >= limit %.2f", d.DayLoss, g.cfg.DailyLossLimitUSD))
	}

	if g.cfg.MaxOpenPositions > 0 && acct.OpenPositions >= g.cfg.MaxOpenPositions {
		d.add("TOO_MANY_OPEN_POSITIONS",
			fmt.Sprintf("open positions %d >= max %d", acct.OpenPositions, g.cfg.MaxOpenPositions))
	}
}
