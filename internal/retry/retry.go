// Package retry provides the one bounded retry policy used across the run:
// websocket connect, contract master download, and entry-price confirmation
// all wait the same way instead of growing their own ad hoc loops.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy holds bounded retry parameters. Zero value is invalid; use New.
type Policy struct {
	MaxAttempts int           // total attempts, >= 1
	Delay       time.Duration // delay between attempts
	Multiplier  int           // 0 or 1 = fixed delay, >1 = exponential backoff
}

// New returns a fixed-delay policy.
func New(maxAttempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, Delay: delay, Multiplier: 1}
}

// WithBackoff returns a copy of p with exponential backoff enabled.
func (p Policy) WithBackoff(multiplier int) Policy {
	p.Multiplier = multiplier
	return p
}

// Do runs fn up to MaxAttempts times, sleeping Delay between attempts.
// Returns nil on the first success. The sleep is cancellable: if ctx is
// done the last error (or ctx.Err) is returned immediately.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: invalid policy: max attempts %d", p.MaxAttempts)
	}
	delay := p.Delay
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == p.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if p.Multiplier > 1 {
			delay *= time.Duration(p.Multiplier)
		}
	}
	return fmt.Errorf("retry: %d attempts exhausted: %w", p.MaxAttempts, err)
}
