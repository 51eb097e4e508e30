package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/perptrader/indicators"
)

// Voter is one member of a Swarm.
type Voter interface {
	Oracle
	Name() string
}

// Vote is one voter's outcome. Err is set when the voter abstained.
type Vote struct {
	Voter  string
	Signal Signal
	Err    error
}

// Swarm fans a question out to every voter at once and takes a majority
// vote over whatever answers arrive within Timeout. Failed or late voters
// abstain. A tie for the top count is NOTHING.
type Swarm struct {
	Voters  []Voter
	Timeout time.Duration
	Log     zerolog.Logger
}

func (s *Swarm) Ask(ctx context.Context, symbol string, snap indicators.Snapshot) (Signal, error) {
	votes := s.Poll(ctx, symbol, snap)
	if err := ctx.Err(); err != nil {
		return Signal{}, err
	}
	return Consensus(votes), nil
}

// Poll collects one Vote per voter. It never returns an error: voter
// failures are recorded on their Vote.
func (s *Swarm) Poll(ctx context.Context, symbol string, snap indicators.Snapshot) []Vote {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	votes := make([]Vote, len(s.Voters))
	g, gctx := errgroup.WithContext(ctx)

	for i, v := range s.Voters {
		g.Go(func() error {
			sig, err := ask(gctx, v, symbol, snap)
			if err == nil {
				sig.Action, err = ParseAction(string(sig.Action))
			}
			votes[i] = Vote{Voter: v.Name(), Signal: sig, Err: err}
			if err != nil {
				s.Log.Debug().Err(err).Str("voter", v.Name()).Str("symbol", symbol).Msg("voter abstained")
			}
			// Abstentions are recorded on the vote, not returned.
			return nil
		})
	}
	_ = g.Wait()
	return votes
}

// ask returns when the voter answers or ctx is done, whichever is first,
// so a voter ignoring its context cannot stall the swarm.
func ask(ctx context.Context, v Voter, symbol string, snap indicators.Snapshot) (Signal, error) {
	type result struct {
		sig Signal
		err error
	}
	ch := make(chan result, 1)
	go func() {
		sig, err := v.Ask(ctx, symbol, snap)
		ch <- result{sig, err}
	}()

	select {
	case r := <-ch:
		return r.sig, r.err
	case <-ctx.Done():
		return Signal{}, fmt.Errorf("voter %s: %w", v.Name(), ctx.Err())
	}
}

// Consensus counts BUY, SELL and NOTHING over votes without errors.
// Confidence is the winning share of counted votes as a floored percent.
// No votes yields NOTHING with confidence 0.
func Consensus(votes []Vote) Signal {
	counts := map[Action]int{}
	total := 0
	for _, v := range votes {
		if v.Err != nil {
			continue
		}
		counts[v.Signal.Action]++
		total++
	}
	if total == 0 {
		return Signal{Action: Nothing, Confidence: 0, Rationale: "no votes"}
	}

	best, bestN, tie := Nothing, -1, false
	for _, a := range []Action{Buy, Sell, Nothing} {
		n := counts[a]
		switch {
		case n > bestN:
			best, bestN, tie = a, n, false
		case n == bestN:
			tie = true
		}
	}

	conf := float64(bestN * 100 / total)
	rationale := fmt.Sprintf("%d/%d voters", bestN, total)
	if tie {
		return Signal{Action: Nothing, Confidence: conf, Rationale: "tie: " + rationale}
	}
	return Signal{Action: best, Confidence: conf, Rationale: rationale}
}
