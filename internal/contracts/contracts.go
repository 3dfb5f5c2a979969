// Package contracts resolves human trading symbols against the exchange
// contract master. The master is a CSV published daily by the broker; the
// resolver loads it once per run and answers symbol/token lookups and
// nearest-expiry queries from memory.
package contracts

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"bn-breakoutv1/internal/model"
)

// ErrInstrumentNotFound means a symbol could not be resolved against the
// contract master. Trading an unresolved instrument is unsafe; callers abort.
var ErrInstrumentNotFound = errors.New("instrument not found in contract master")

const (
	// Contract master column headers (Alice Blue NFO CSV).
	colExchange      = "Exch"
	colToken         = "Token"
	colSymbol        = "Symbol"
	colTradingSymbol = "Trading Symbol"
	colInstrument    = "Instrument Type"
	colExpiry        = "Expiry Date"
	colOptionType    = "Option Type"
	colStrike        = "Strike Price"
	colLotSize       = "Lot Size"
)

// Table is the in-memory contract master.
type Table struct {
	byTradingSymbol map[string]model.Instrument
	instruments     []model.Instrument
}

// Load parses contract master CSV bytes into a Table.
// Rows with unparseable expiry or strike are skipped with a log line rather
// than failing the whole load; the master routinely carries junk rows.
func Load(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("contracts: read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{colToken, colSymbol, colTradingSymbol, colInstrument} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("contracts: missing column %q in contract master", required)
		}
	}

	t := &Table{byTradingSymbol: make(map[string]model.Instrument)}
	skipped := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("contracts: read row: %w", err)
		}
		inst, ok := parseRow(rec, idx)
		if !ok {
			skipped++
			continue
		}
		t.instruments = append(t.instruments, inst)
		t.byTradingSymbol[strings.ToUpper(inst.TradingSymbol)] = inst
	}
	if skipped > 0 {
		log.Printf("[contracts] skipped %d unparseable rows", skipped)
	}
	if len(t.instruments) == 0 {
		return nil, errors.New("contracts: contract master is empty")
	}
	log.Printf("[contracts] loaded %d instruments", len(t.instruments))
	return t, nil
}

func parseRow(rec []string, idx map[string]int) (model.Instrument, bool) {
	field := func(name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	inst := model.Instrument{
		Token:          field(colToken),
		Exchange:       field(colExchange),
		TradingSymbol:  field(colTradingSymbol),
		Name:           field(colSymbol),
		InstrumentType: field(colInstrument),
		OptionType:     field(colOptionType),
	}
	if inst.Token == "" || inst.TradingSymbol == "" {
		return model.Instrument{}, false
	}
	if s := field(colExpiry); s != "" {
		exp, err := parseExpiry(s)
		if err != nil {
			return model.Instrument{}, false
		}
		inst.Expiry = exp
	}
	if s := field(colStrike); s != "" {
		p, err := model.ParsePaise(s)
		if err != nil {
			return model.Instrument{}, false
		}
		inst.Strike = p
	}
	if s := field(colLotSize); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			inst.LotSize = n
		}
	}
	return inst, true
}

// parseExpiry accepts the date formats the master has been observed to use.
func parseExpiry(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "02-Jan-2006", "02Jan2006", "2 Jan 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("contracts: unparseable expiry %q", s)
}

// Resolve maps a trading symbol to its instrument. Lookup is case-insensitive.
func (t *Table) Resolve(tradingSymbol string) (model.Instrument, error) {
	inst, ok := t.byTradingSymbol[strings.ToUpper(tradingSymbol)]
	if !ok {
		return model.Instrument{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, tradingSymbol)
	}
	return inst, nil
}

// NearestExpiry returns the earliest expiry on or after today for the given
// underlying and instrument type (e.g. BANKNIFTY OPTIDX).
func (t *Table) NearestExpiry(underlying, instrumentType string, today time.Time) (time.Time, error) {
	// Anchor on today's calendar date in its own zone; expiries parse as UTC
	// midnights, and a bare Truncate would shift the boundary for IST callers.
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	var nearest time.Time
	for _, inst := range t.instruments {
		if inst.Name != underlying || inst.InstrumentType != instrumentType {
			continue
		}
		if inst.Expiry.Before(day) {
			continue
		}
		if nearest.IsZero() || inst.Expiry.Before(nearest) {
			nearest = inst.Expiry
		}
	}
	if nearest.IsZero() {
		return time.Time{}, fmt.Errorf("%w: no %s %s expiries on or after %s",
			ErrInstrumentNotFound, underlying, instrumentType, day.Format("2006-01-02"))
	}
	return nearest, nil
}

// OptionSymbol composes the deterministic trading symbol for an index option:
// {underlying}{DDMMMYY}{strike-in-rupees}{CE|PE}, e.g. BANKNIFTY28AUG2557300CE.
func OptionSymbol(underlying string, expiry time.Time, strikePaise int64, optionType string) string {
	expStr := strings.ToUpper(expiry.Format("02Jan06"))
	return fmt.Sprintf("%s%s%d%s", underlying, expStr, strikePaise/100, optionType)
}
