package risk

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultCorrelationGroups are the symbol clusters that tend to move
// together. A symbol may sit in more than one group.
var DefaultCorrelationGroups = map[string][]string{
	"btc_ecosystem":   {"BTC", "WBTC", "RUNE", "STX"},
	"eth_ecosystem":   {"ETH", "WETH", "stETH", "ARB", "OP", "MATIC", "BASE"},
	"meme_coins":      {"DOGE", "SHIB", "PEPE", "kPEPE", "FLOKI", "BONK", "WIF"},
	"ai_tokens":       {"FET", "AGIX", "OCEAN", "RNDR", "TAO"},
	"sol_ecosystem":   {"SOL", "JTO", "PYTH", "JUP", "RAY"},
	"defi_blue_chips": {"UNI", "AAVE", "MKR", "LINK", "SNX"},
	"alt_l1s":         {"AVAX", "NEAR", "SUI", "APT", "SEI", "INJ"},
	"xrp_ecosystem":   {"XRP", "XLM", "HBAR"},
}

// CorrelationConfig limits exposure to groups of correlated symbols.
type CorrelationConfig struct {
	Enabled bool

	ReductionPct        float64 // 50: size cut when a group member is already held
	MaxGroupExposurePct float64 // 60: group margin as % of balance that blocks entries

	Groups map[string][]string // nil = DefaultCorrelationGroups
}

// Exposure is one open position's committed margin.
type Exposure struct {
	Symbol string
	Margin float64
}

func (c CorrelationConfig) groups() map[string][]string {
	if c.Groups == nil {
		return DefaultCorrelationGroups
	}
	return c.Groups
}

// GroupsOf returns the names of the groups symbol belongs to, sorted.
// Matching ignores case.
func (c CorrelationConfig) GroupsOf(symbol string) []string {
	var out []string
	for name, members := range c.groups() {
		for _, m := range members {
			if strings.EqualFold(m, symbol) {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// check blocks an entry when any of symbol's groups already
// holds MaxGroupExposurePct of balance, and otherwise cuts the size when
// another member of a group is open.
func (c CorrelationConfig) check(d *Decision, symbol string, balance float64, held []Exposure) {
	groups := c.GroupsOf(symbol)
	if len(groups) == 0 {
		return
	}

	correlated := false
	for _, g := range groups {
		var margin float64
		for _, e := range held {
			if strings.EqualFold(e.Symbol, symbol) || !contains(c.GroupsOf(e.Symbol), g) {
				continue
			}
			margin += e.Margin
			correlated = true
		}
		if margin <= 0 || balance <= 0 {
			continue
		}
		pct := 100 * margin / balance
		if pct >= c.MaxGroupExposurePct {
			d.add("CORRELATED_EXPOSURE",
				fmt.Sprintf("%s exposure %.2f%% >= max %.2f%%", g, pct, c.MaxGroupExposurePct))
			d.SizeFactor = 0
			return
		}
	}

	if correlated {
		d.SizeFactor = clamp(1-c.ReductionPct/100, 0, 1)
	}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
