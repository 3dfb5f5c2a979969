package model

import (
	"fmt"
	"strings"
	"time"
)

// StrategyConfig holds the day's strategy parameters. One active row lives in
// the config store; the run loads it once and treats it as read-only.
type StrategyConfig struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	ReferencePrice int64     `json:"reference_price"` // previous close, paise
	LotSize        int64     `json:"lot_size"`
	TargetPnL      int64     `json:"target_pnl"`   // paise
	StoplossPnL    int64     `json:"stoploss_pnl"` // paise
	WindowStart    TimeOfDay `json:"window_start"`
	WindowEnd      TimeOfDay `json:"window_end"` // time-exit cutoff
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// TimeOfDay is a wall-clock time without a date, e.g. the 09:45 cutoff.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// On anchors the time-of-day onto the date of t, in t's location.
func (td TimeOfDay) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), td.Hour, td.Minute, 0, 0, t.Location())
}

// Minutes returns the time-of-day as minutes since midnight.
func (td TimeOfDay) Minutes() int {
	return td.Hour*60 + td.Minute
}

func (td TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", td.Hour, td.Minute)
}

// ParseTimeOfDay parses "HH:MM" wall-clock strings.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("bad time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}
