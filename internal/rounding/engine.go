package rounding

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Strategy selects the grid a raw adjusted price snaps onto.
type Strategy string

const (
	// StrategyNone keeps the raw value, rounded to two decimal places.
	StrategyNone Strategy = "none"
	// StrategyHundred snaps prices to multiples of 100.
	StrategyHundred Strategy = "round-100"
	// StrategyFiveHundred snaps prices to multiples of 500.
	StrategyFiveHundred Strategy = "round-500"
	// StrategyThousand snaps prices to multiples of 1000.
	StrategyThousand Strategy = "round-1000"
)

// Direction controls which way a value moves onto the grid.
type Direction string

const (
	// DirectionNearest picks the closest grid point; ties round half-up.
	DirectionNearest Direction = "nearest"
	// DirectionUp always moves to the next grid point above.
	DirectionUp Direction = "up"
	// DirectionDown always moves to the next grid point below.
	DirectionDown Direction = "down"
)

// Policy combines a strategy with a direction.
type Policy struct {
	Strategy  Strategy  `json:"strategy"`
	Direction Direction `json:"direction"`
}

// Unit returns the grid size for the strategy. Zero means no grid applies.
func (s Strategy) Unit() decimal.Decimal {
	switch s {
	case StrategyHundred:
		return decimal.NewFromInt(100)
	case StrategyFiveHundred:
		return decimal.NewFromInt(500)
	case StrategyThousand:
		return decimal.NewFromInt(1000)
	default:
		return decimal.Zero
	}
}

// ParseStrategy validates and normalises a strategy string.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case StrategyNone, "":
		return StrategyNone, nil
	case StrategyHundred:
		return StrategyHundred, nil
	case StrategyFiveHundred:
		return StrategyFiveHundred, nil
	case StrategyThousand:
		return StrategyThousand, nil
	default:
		return "", fmt.Errorf("rounding: unknown strategy %q", value)
	}
}

// ParseDirection validates and normalises a direction string.
func ParseDirection(value string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(value))) {
	case DirectionNearest, "":
		return DirectionNearest, nil
	case DirectionUp:
		return DirectionUp, nil
	case DirectionDown:
		return DirectionDown, nil
	default:
		return "", fmt.Errorf("rounding: unknown direction %q", value)
	}
}

// Apply rounds value according to the policy. StrategyNone rounds to two
// decimal places and ignores the direction. Grid strategies divide by the
// unit, round the quotient per the direction, and scale back. Midpoint ties
// under DirectionNearest resolve half-up: decimal.Round rounds half away
// from zero, which is half-up on the non-negative price domain.
func Apply(value decimal.Decimal, p Policy) decimal.Decimal {
	unit := p.Strategy.Unit()
	if unit.IsZero() {
		return value.Round(2)
	}
	q := value.Div(unit)
	switch p.Direction {
	case DirectionUp:
		q = q.Ceil()
	case DirectionDown:
		q = q.Floor()
	default:
		q = q.Round(0)
	}
	return q.Mul(unit)
}

// Apply is a convenience method mirroring the package-level function.
func (p Policy) Apply(value decimal.Decimal) decimal.Decimal {
	return Apply(value, p)
}
