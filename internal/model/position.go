package model

import "time"

// Position is the single simulated position a run owns from entry to exit.
// Immutable after creation; P&L is derived, never stored back.
type Position struct {
	Symbol      string    `json:"symbol"`
	Strike      int64     `json:"strike"` // paise
	Direction   Direction `json:"direction"`
	LotSize     int64     `json:"lot_size"`
	EntryPrice  int64     `json:"entry_price"`  // paise
	TargetPnL   int64     `json:"target_pnl"`   // paise, per position
	StoplossPnL int64     `json:"stoploss_pnl"` // paise, per position (positive number)
	Cutoff      time.Time `json:"cutoff"`       // hard time-exit boundary
	OpenedAt    time.Time `json:"opened_at"`
}

// PnL computes running profit/loss in paise for the given last price.
func (p *Position) PnL(lastPrice int64) int64 {
	if p.Direction == DirectionLong {
		return (lastPrice - p.EntryPrice) * p.LotSize
	}
	return (p.EntryPrice - lastPrice) * p.LotSize
}
