package model

import "time"

// ExitReason tells why a position was squared off.
type ExitReason string

const (
	ExitTargetHit   ExitReason = "TARGET_HIT"
	ExitStoplossHit ExitReason = "STOPLOSS_HIT"
	ExitTime        ExitReason = "TIME_EXIT"
)

// TradeOutcome is the final record of one position. Created exactly once,
// immutable, appended to the trade log -- never read back by the run.
type TradeOutcome struct {
	Position    Position   `json:"position"`
	ExitPrice   int64      `json:"exit_price"` // paise
	ExitReason  ExitReason `json:"exit_reason"`
	RealizedPnL int64      `json:"realized_pnl"` // paise
	ClosedAt    time.Time  `json:"closed_at"`
	Note        string     `json:"note"`
}
