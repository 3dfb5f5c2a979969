package model

import "time"

// Quote is the latest observed price for one instrument symbol.
// Price is stored as int64 in paise (1 INR = 100 paise) to avoid float drift.
// A symbol has at most one current Quote; later ticks overwrite earlier ones.
type Quote struct {
	Symbol     string    `json:"symbol"`
	Price      int64     `json:"price"`       // paise (LTP)
	ReceivedAt time.Time `json:"received_at"` // local receive timestamp
}
