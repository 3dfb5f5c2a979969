package model

// Direction is the derived trade direction for the day.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// OptionType maps the direction to the option leg that expresses it:
// a long view buys a call, a short view buys a put.
func (d Direction) OptionType() string {
	if d == DirectionLong {
		return "CE"
	}
	return "PE"
}

// Valid reports whether d is one of the two enumerated directions.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}
