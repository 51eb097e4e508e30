// Package signal produces (action, confidence) pairs per symbol per tick.
package signal

import (
	"context"
	"fmt"
	"strings"

	"github.com/rustyeddy/perptrader/indicators"
)

type Action string

const (
	Buy     Action = "BUY"
	Sell    Action = "SELL"
	Nothing Action = "NOTHING"
)

// ParseAction accepts any case and surrounding space. Anything else is an
// error.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToUpper(strings.TrimSpace(s))); a {
	case Buy, Sell, Nothing:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

type Signal struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// Source is what the replay engine and live scheduler consume.
type Source interface {
	Signal(ctx context.Context, symbol string, snap indicators.Snapshot) (Signal, error)
}

// Oracle is an external signal producer. It is the live counterpart of
// Source and may be slow or fail.
type Oracle interface {
	Ask(ctx context.Context, symbol string, snap indicators.Snapshot) (Signal, error)
}
