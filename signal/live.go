package signal

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/perptrader/indicators"
	"github.com/rustyeddy/perptrader/internal/retry"
)

// Live asks an oracle for a signal with a bounded timeout and retry count.
type Live struct {
	oracle Oracle
	policy retry.Policy
	log    zerolog.Logger
}

func NewLive(o Oracle, p retry.Policy, log zerolog.Logger) *Live {
	return &Live{oracle: o, policy: p, log: log}
}

func (l *Live) Signal(ctx context.Context, symbol string, snap indicators.Snapshot) (Signal, error) {
	var out Signal
	attempt := 0
	err := retry.Do(ctx, l.policy, func(ctx context.Context) error {
		attempt++
		s, err := l.oracle.Ask(ctx, symbol, snap)
		if err != nil {
			l.log.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt).Msg("oracle failed")
			return err
		}
		a, err := ParseAction(string(s.Action))
		if err != nil {
			return &retry.Permanent{Err: err}
		}
		s.Action = a
		out = s
		return nil
	})
	if err != nil {
		return Signal{}, fmt.Errorf("signal %s: %w", symbol, err)
	}
	return out, nil
}
