package model

import "time"

// Instrument represents a tradeable contract from the NFO contract master.
type Instrument struct {
	Token          string    `json:"token"`
	Exchange       string    `json:"exchange"`
	TradingSymbol  string    `json:"trading_symbol"`
	Name           string    `json:"name"`            // underlying, e.g. BANKNIFTY
	InstrumentType string    `json:"instrument_type"` // OPTIDX, FUTIDX
	Expiry         time.Time `json:"expiry"`
	Strike         int64     `json:"strike"` // paise
	OptionType     string    `json:"option_type"` // CE, PE, "" for futures
	LotSize        int       `json:"lot_size"`
}

// Key returns a unique key for this instrument: "exchange:token".
func (i *Instrument) Key() string {
	return i.Exchange + ":" + i.Token
}
