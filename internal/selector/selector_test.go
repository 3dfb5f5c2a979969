package selector

import (
	"errors"
	"testing"
	"time"

	"bn-breakoutv1/internal/model"
)

var expiry = time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)

func input(current, reference int64) Input {
	return Input{
		CurrentPrice:   current,
		ReferencePrice: reference,
		StrikeRounding: 10000, // 100 rupees
		Underlying:     "BANKNIFTY",
		Expiry:         expiry,
	}
}

func TestSelect_DirectionTieBreak(t *testing.T) {
	cases := []struct {
		name      string
		current   int64
		reference int64
		want      model.Direction
	}{
		{"above reference", 5580000, 5571800, model.DirectionLong},
		{"below reference", 5560000, 5571800, model.DirectionShort},
		{"exactly equal resolves SHORT", 10000000, 10000000, model.DirectionShort},
		{"one paisa above resolves LONG", 10000001, 10000000, model.DirectionLong},
		{"one paisa below resolves SHORT", 9999999, 10000000, model.DirectionShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := Select(input(tc.current, tc.reference))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sel.Direction != tc.want {
				t.Errorf("direction = %s, want %s", sel.Direction, tc.want)
			}
		})
	}
}

func TestSelect_StrikeRoundingHalfUp(t *testing.T) {
	cases := []struct {
		name      string
		reference int64
		want      int64
	}{
		{"exact multiple stays", 5720000, 5720000},
		{"below midpoint rounds down", 5724900, 5720000},
		{"midpoint rounds up", 5725000, 5730000}, // pinned half-up convention
		{"above midpoint rounds up", 5725100, 5730000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := Select(input(tc.reference+100, tc.reference))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sel.Strike != tc.want {
				t.Errorf("strike = %d, want %d", sel.Strike, tc.want)
			}
		})
	}
}

func TestSelect_SymbolComposition(t *testing.T) {
	sel, err := Select(input(5730000, 5725000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// LONG view buys the call at the rounded strike.
	if sel.Symbol != "BANKNIFTY28AUG2657300CE" {
		t.Errorf("symbol = %q, want BANKNIFTY28AUG2657300CE", sel.Symbol)
	}

	sel, err = Select(input(5725000, 5725000)) // tie -> SHORT -> put
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sel.Symbol != "BANKNIFTY28AUG2657300PE" {
		t.Errorf("symbol = %q, want BANKNIFTY28AUG2657300PE", sel.Symbol)
	}
}

func TestSelect_InvalidInputs(t *testing.T) {
	bad := []Input{
		{CurrentPrice: 0, ReferencePrice: 100, StrikeRounding: 100, Underlying: "BANKNIFTY"},
		{CurrentPrice: 100, ReferencePrice: -1, StrikeRounding: 100, Underlying: "BANKNIFTY"},
		{CurrentPrice: 100, ReferencePrice: 100, StrikeRounding: 0, Underlying: "BANKNIFTY"},
		{CurrentPrice: 100, ReferencePrice: 100, StrikeRounding: 100, Underlying: ""},
	}
	for i, in := range bad {
		if _, err := Select(in); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}
