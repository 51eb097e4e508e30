// Package retry runs blocking calls with a per-attempt timeout and a
// bounded number of exponentially spaced retries.
package retry

import (
	"context"
	"errors"
	"time"
)

type Policy struct {
	Attempts int           // total tries, at least 1
	Timeout  time.Duration // per attempt; 0 = none
	Delay    time.Duration // wait before the second attempt
	Backoff  float64       // delay multiplier per retry; <1 means 2
	MaxDelay time.Duration // 0 = uncapped
}

// Permanent wraps an error that must not be retried.
type Permanent struct{ Err error }

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Do calls fn until it succeeds, returns a Permanent error, the attempts
// run out, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff
	if backoff < 1 {
		backoff = 2
	}

	delay := p.Delay
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if werr := wait(ctx, delay); werr != nil {
				return errors.Join(err, werr)
			}
			delay = time.Duration(float64(delay) * backoff)
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}

		err = attempt(ctx, p.Timeout, fn)
		if err == nil {
			return nil
		}
		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func attempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
