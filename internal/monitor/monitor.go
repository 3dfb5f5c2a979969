// Package monitor owns the single simulated position from entry to exit.
//
// The state machine is AWAITING_ENTRY -> OPEN -> CLOSED. Entry waits for the
// first tradable price under a bounded retry policy; the OPEN loop polls the
// quote table on a fixed interval and applies the exit rules in a fixed
// priority: time cutoff first, then missing-quote skip, then target, then
// stoploss. Time-exit before P&L is deliberate -- the session boundary is a
// hard market constraint and wins even when target qualifies on the same tick.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bn-breakoutv1/internal/model"
	"bn-breakoutv1/internal/quotefeed"
	"bn-breakoutv1/internal/retry"
)

// ErrEntryFailed means no tradable price arrived within the bounded entry
// retries. Terminal for the run; no priced TradeOutcome is produced.
var ErrEntryFailed = errors.New("monitor: entry price unconfirmed")

// QuoteSource provides quotes to the monitor (satisfied by *quotefeed.Adapter).
type QuoteSource interface {
	Latest(ctx context.Context, symbol string, timeout time.Duration) (model.Quote, error)
	LastQuote(symbol string) (model.Quote, bool)
}

// Config holds monitor timing knobs. Zero values take the defaults.
type Config struct {
	PollInterval time.Duration // OPEN loop tick, default 1s
	QuoteTimeout time.Duration // per-iteration quote wait, default 500ms
	EntryTimeout time.Duration // per-attempt entry quote wait, default 5s
	EntryRetry   retry.Policy  // default 5 attempts, 2s apart
	Now          func() time.Time
}

func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.QuoteTimeout == 0 {
		c.QuoteTimeout = 500 * time.Millisecond
	}
	if c.EntryTimeout == 0 {
		c.EntryTimeout = 5 * time.Second
	}
	if c.EntryRetry.MaxAttempts == 0 {
		c.EntryRetry = retry.New(5, 2*time.Second)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// EntrySpec describes the position to open and its exit thresholds.
// All prices are paise.
type EntrySpec struct {
	Symbol      string
	Strike      int64
	Direction   model.Direction
	LotSize     int64
	TargetPnL   int64
	StoplossPnL int64
	Cutoff      time.Time
}

// Monitor runs one position lifecycle.
type Monitor struct {
	quotes QuoteSource
	cfg    Config

	// OnPoll, if set, observes every evaluated OPEN iteration (metrics).
	OnPoll func(pnl int64, q model.Quote)

	// OnMiss, if set, observes OPEN iterations skipped for lack of a quote.
	OnMiss func()

	// OnEntryAttempt, if set, observes each entry price fetch attempt.
	OnEntryAttempt func()
}

// New creates a monitor over a quote source.
func New(quotes QuoteSource, cfg Config) *Monitor {
	cfg.applyDefaults()
	return &Monitor{quotes: quotes, cfg: cfg}
}

// Run drives the position from entry to exit and returns exactly one
// TradeOutcome. On entry failure or cancellation no outcome is produced and
// the error says why; a produced outcome always carries one of the three
// enumerated exit reasons.
func (m *Monitor) Run(ctx context.Context, spec EntrySpec) (model.TradeOutcome, error) {
	entry, err := m.awaitEntry(ctx, spec.Symbol)
	if err != nil {
		if ctx.Err() != nil {
			return model.TradeOutcome{}, ctx.Err()
		}
		return model.TradeOutcome{}, fmt.Errorf("%w: %v", ErrEntryFailed, err)
	}

	pos := model.Position{
		Symbol:      spec.Symbol,
		Strike:      spec.Strike,
		Direction:   spec.Direction,
		LotSize:     spec.LotSize,
		EntryPrice:  entry.Price,
		TargetPnL:   spec.TargetPnL,
		StoplossPnL: spec.StoplossPnL,
		Cutoff:      spec.Cutoff,
		OpenedAt:    m.cfg.Now(),
	}
	log.Printf("[monitor] OPEN %s %s entry=%s lot=%d target=%s stoploss=%s cutoff=%s",
		pos.Direction, pos.Symbol, model.FormatPaise(pos.EntryPrice), pos.LotSize,
		model.FormatPaise(pos.TargetPnL), model.FormatPaise(pos.StoplossPnL),
		pos.Cutoff.Format("15:04"))

	return m.watch(ctx, pos)
}

// awaitEntry polls for the first tradable price under the entry retry policy.
func (m *Monitor) awaitEntry(ctx context.Context, symbol string) (model.Quote, error) {
	var q model.Quote
	err := m.cfg.EntryRetry.Do(ctx, func() error {
		if m.OnEntryAttempt != nil {
			m.OnEntryAttempt()
		}
		var err error
		q, err = m.quotes.Latest(ctx, symbol, m.cfg.EntryTimeout)
		if err != nil {
			log.Printf("[monitor] waiting for entry price of %s: %v", symbol, err)
		}
		return err
	})
	return q, err
}

// watch is the OPEN loop. Exit rules are evaluated in fixed priority order
// on every iteration; a transient missing quote only skips the iteration,
// never closes the position.
func (m *Monitor) watch(ctx context.Context, pos model.Position) (model.TradeOutcome, error) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		now := m.cfg.Now()

		// 1. Hard session boundary. Checked before P&L so a tick that
		// qualifies for both records TIME_EXIT.
		if !now.Before(pos.Cutoff) {
			exitPrice := pos.EntryPrice // never leave the exit price undefined
			note := "time exit; no quote at cutoff, exit at entry price"
			if q, ok := m.quotes.LastQuote(pos.Symbol); ok {
				exitPrice = q.Price
				note = "time exit at cutoff"
			}
			return m.close(pos, exitPrice, model.ExitTime, note), nil
		}

		// 2. Quote availability. Absence is expected and recoverable.
		q, err := m.quotes.Latest(ctx, pos.Symbol, m.cfg.QuoteTimeout)
		switch {
		case errors.Is(err, quotefeed.ErrNoQuote):
			if m.OnMiss != nil {
				m.OnMiss()
			}
			log.Printf("[monitor] no quote for %s, retrying next tick", pos.Symbol)
		case err != nil:
			if ctx.Err() != nil {
				return model.TradeOutcome{}, ctx.Err()
			}
			log.Printf("[monitor] quote fetch failed for %s: %v", pos.Symbol, err)
		default:
			// 3-5. P&L against thresholds.
			pnl := pos.PnL(q.Price)
			if m.OnPoll != nil {
				m.OnPoll(pnl, q)
			}
			if pnl >= pos.TargetPnL {
				return m.close(pos, q.Price, model.ExitTargetHit, "profit target reached"), nil
			}
			if pnl <= -pos.StoplossPnL {
				return m.close(pos, q.Price, model.ExitStoplossHit, "stoploss breached"), nil
			}
		}

		// 6. Remain OPEN until the next tick.
		select {
		case <-ctx.Done():
			return model.TradeOutcome{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Monitor) close(pos model.Position, exitPrice int64, reason model.ExitReason, note string) model.TradeOutcome {
	out := model.TradeOutcome{
		Position:    pos,
		ExitPrice:   exitPrice,
		ExitReason:  reason,
		RealizedPnL: pos.PnL(exitPrice),
		ClosedAt:    m.cfg.Now(),
		Note:        note,
	}
	log.Printf("[monitor] CLOSED %s %s exit=%s pnl=%s",
		out.ExitReason, pos.Symbol, model.FormatPaise(out.ExitPrice), model.FormatPaise(out.RealizedPnL))
	return out
}
