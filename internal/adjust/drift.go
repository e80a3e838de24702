package adjust

import "github.com/shopspring/decimal"

// Observe folds one committed event into the running drift summary. Counters
// only ever grow with the event count; FirstAdjustmentAt is set once and
// LastAdjustmentAt always refreshes.
func (d *CumulativeDrift) Observe(event AdjustmentEvent) {
	d.AdjustmentCount++
	d.OfficialInflation = d.OfficialInflation.Add(event.IndexRate)
	d.ActualAdjustment = d.ActualAdjustment.Add(event.AvgPercentChange)
	d.Drift = d.ActualAdjustment.Sub(d.OfficialInflation)
	if d.FirstAdjustmentAt.IsZero() || event.AppliedAt.Before(d.FirstAdjustmentAt) {
		d.FirstAdjustmentAt = event.AppliedAt
	}
	if event.AppliedAt.After(d.LastAdjustmentAt) {
		d.LastAdjustmentAt = event.AppliedAt
	}
}

// FoldEvents derives the drift summary from the full event history starting
// from the empty state. This is the authoritative computation; the stored
// drift row is an incremental cache that must always match it. Returns nil
// when the history is empty.
func FoldEvents(events []AdjustmentEvent) *CumulativeDrift {
	if len(events) == 0 {
		return nil
	}
	d := &CumulativeDrift{
		OfficialInflation: decimal.Zero,
		ActualAdjustment:  decimal.Zero,
		Drift:             decimal.Zero,
	}
	for _, event := range events {
		d.Observe(event)
	}
	return d
}

// Equal reports whether two drift summaries agree. Decimal fields compare by
// value, not representation.
func (d *CumulativeDrift) Equal(other *CumulativeDrift) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.AdjustmentCount == other.AdjustmentCount &&
		d.OfficialInflation.Equal(other.OfficialInflation) &&
		d.ActualAdjustment.Equal(other.ActualAdjustment) &&
		d.Drift.Equal(other.Drift) &&
		d.FirstAdjustmentAt.Equal(other.FirstAdjustmentAt) &&
		d.LastAdjustmentAt.Equal(other.LastAdjustmentAt)
}
