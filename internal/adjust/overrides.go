package adjust

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OverrideSet holds per-session manual prices keyed by item id. It lives only
// for the duration of one adjustment workflow: nothing here touches durable
// state until Service.Apply commits, and abandoning the session discards it.
type OverrideSet struct {
	prices map[uuid.UUID]decimal.Decimal
}

// NewOverrideSet returns an empty override set.
func NewOverrideSet() *OverrideSet {
	return &OverrideSet{prices: make(map[uuid.UUID]decimal.Decimal)}
}

// SetAbsolute stores an operator-supplied absolute price for the item.
func (o *OverrideSet) SetAbsolute(itemID uuid.UUID, price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: price %s is negative", ErrInvalidOverride, price)
	}
	o.prices[itemID] = price
	return nil
}

// SetFromPercent derives an absolute override by applying percent to the
// item's original price, rounded to the nearest whole currency unit
// (half-up), and stores it. The derived value is returned.
func (o *OverrideSet) SetFromPercent(itemID uuid.UUID, percent, originalPrice decimal.Decimal) (decimal.Decimal, error) {
	factor := decimal.NewFromInt(1).Add(percent.Div(decimal.NewFromInt(100)))
	value := originalPrice.Mul(factor).Round(0)
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: percent %s yields negative price %s", ErrInvalidOverride, percent, value)
	}
	o.prices[itemID] = value
	return value, nil
}

// Clear removes the override for the item, if any.
func (o *OverrideSet) Clear(itemID uuid.UUID) {
	delete(o.prices, itemID)
}

// Get returns the override for the item and whether one exists.
func (o *OverrideSet) Get(itemID uuid.UUID) (decimal.Decimal, bool) {
	if o == nil {
		return decimal.Zero, false
	}
	v, ok := o.prices[itemID]
	return v, ok
}

// Len reports how many overrides are set.
func (o *OverrideSet) Len() int {
	if o == nil {
		return 0
	}
	return len(o.prices)
}
