// Package selector derives the day's trade direction and option strike from
// the previous session's closing price. Pure computation, no I/O.
package selector

import (
	"errors"
	"fmt"
	"time"

	"bn-breakoutv1/internal/contracts"
	"bn-breakoutv1/internal/model"
)

// ErrInvalidInput means a non-positive price or rounding step was supplied.
// This indicates misconfiguration and is fatal at the call site.
var ErrInvalidInput = errors.New("selector: invalid input")

// Input holds the selection parameters. All prices are paise.
type Input struct {
	CurrentPrice   int64 // live underlying/future price
	ReferencePrice int64 // previous session close
	StrikeRounding int64 // strike step, e.g. 100 rupees = 10000 paise
	Underlying     string
	Expiry         time.Time
}

// Selection is the chosen direction, strike and option symbol.
type Selection struct {
	Direction model.Direction
	Strike    int64 // paise
	Symbol    string
}

// Select picks the trade for the day.
//
// Direction: current above reference means LONG, otherwise SHORT. A delta of
// exactly zero resolves to SHORT ("not greater than zero") -- deliberate
// boundary, covered by tests.
//
// Strike: reference price rounded to the nearest rounding step, half-up.
// 57250 with a 100 step rounds to 57300. Integer arithmetic, so the midpoint
// behavior is exact, not a float accident.
func Select(in Input) (Selection, error) {
	if in.CurrentPrice <= 0 || in.ReferencePrice <= 0 || in.StrikeRounding <= 0 {
		return Selection{}, fmt.Errorf("%w: current=%d reference=%d rounding=%d",
			ErrInvalidInput, in.CurrentPrice, in.ReferencePrice, in.StrikeRounding)
	}
	if in.Underlying == "" {
		return Selection{}, fmt.Errorf("%w: empty underlying", ErrInvalidInput)
	}

	direction := model.DirectionShort
	if in.CurrentPrice-in.ReferencePrice > 0 {
		direction = model.DirectionLong
	}

	strike := roundHalfUp(in.ReferencePrice, in.StrikeRounding)

	return Selection{
		Direction: direction,
		Strike:    strike,
		Symbol:    contracts.OptionSymbol(in.Underlying, in.Expiry, strike, direction.OptionType()),
	}, nil
}

// roundHalfUp rounds v to the nearest multiple of step, ties away from zero.
func roundHalfUp(v, step int64) int64 {
	return (v + step/2) / step * step
}
