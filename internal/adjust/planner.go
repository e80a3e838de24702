package adjust

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-tarif/internal/rounding"
)

var hundred = decimal.NewFromInt(100)

// ComputePreview produces one preview line per active item. It is pure and
// deterministic: identical inputs always yield identical lines with no side
// effects, so callers may invoke it on every input change.
//
// Per item: excluded lines (scope mismatch, foreign currency) keep their
// original price with zero percent change. Included lines get
// original × (1 + rate/100) snapped onto the rounding grid; when a positive
// rate would still land below the original the direction flips to up so a
// raise never lowers a price. An operator override replaces the computed
// value verbatim and bypasses that guarantee.
func ComputePreview(items []PriceItem, rate decimal.Decimal, scope ScopeFilter, specialty string, policy rounding.Policy, overrides *OverrideSet) []PreviewLine {
	lines := make([]PreviewLine, 0, len(items))
	for _, item := range items {
		if !item.Active {
			continue
		}
		line := PreviewLine{
			ItemID:        item.ID,
			Name:          item.Name,
			OriginalPrice: item.Price,
		}
		if reason := excludeReason(item, scope, specialty); reason != "" {
			line.Excluded = true
			line.ExcludedReason = reason
			line.AdjustedPrice = item.Price
			line.Difference = decimal.Zero
			line.PercentChange = decimal.Zero
			lines = append(lines, line)
			continue
		}

		adjusted := adjustPrice(item.Price, rate, policy)
		if override, ok := overrides.Get(item.ID); ok {
			adjusted = override
			line.HasOverride = true
		}

		line.AdjustedPrice = adjusted
		line.Difference = adjusted.Sub(item.Price)
		if item.Price.IsZero() {
			line.PercentChange = decimal.Zero
		} else {
			line.PercentChange = line.Difference.Div(item.Price).Mul(hundred)
		}
		lines = append(lines, line)
	}
	return lines
}

// adjustPrice applies the rate and rounding policy with the anti-regression
// guarantee: rate > 0 must never produce a price below the original. A zero
// rate is a no-op, grid included, so prices off the grid stay where they are.
func adjustPrice(price, rate decimal.Decimal, policy rounding.Policy) decimal.Decimal {
	if rate.IsZero() {
		return price
	}
	raw := price.Mul(decimal.NewFromInt(1).Add(rate.Div(hundred)))
	rounded := rounding.Apply(raw, policy)
	if rate.IsPositive() && rounded.LessThan(price) {
		rounded = rounding.Apply(raw, rounding.Policy{Strategy: policy.Strategy, Direction: rounding.DirectionUp})
	}
	return rounded
}

func excludeReason(item PriceItem, scope ScopeFilter, specialty string) string {
	switch scope {
	case ScopeServices:
		if item.Type != ItemTypeService {
			return ExcludedScopeFilter
		}
	case ScopeProducts:
		if item.Type != ItemTypeProduct {
			return ExcludedScopeFilter
		}
	case ScopeSpecialty:
		if item.Specialty == "" || item.Specialty != specialty {
			return ExcludedScopeFilter
		}
	}
	if item.Currency == CurrencyForeign {
		return ExcludedForeignCurrency
	}
	return ""
}

// Summarize folds preview lines into the session summary. The realized
// average covers included lines with a non-zero original price; zero-priced
// items appear in the preview but never move the aggregate. RoundingDrift is
// the gap between that average and the official rate.
func Summarize(lines []PreviewLine, rate decimal.Decimal) PreviewResult {
	result := PreviewResult{
		Lines:            lines,
		AvgPercentChange: decimal.Zero,
		RoundingDrift:    decimal.Zero,
		TotalBefore:      decimal.Zero,
		TotalAfter:       decimal.Zero,
	}
	var pctSum decimal.Decimal
	var pctCount int64
	for _, line := range lines {
		if line.Excluded {
			continue
		}
		result.IncludedCount++
		result.TotalBefore = result.TotalBefore.Add(line.OriginalPrice)
		result.TotalAfter = result.TotalAfter.Add(line.AdjustedPrice)
		if line.OriginalPrice.IsZero() {
			continue
		}
		pctSum = pctSum.Add(line.PercentChange)
		pctCount++
	}
	if pctCount > 0 {
		result.AvgPercentChange = pctSum.Div(decimal.NewFromInt(pctCount))
		result.RoundingDrift = result.AvgPercentChange.Sub(rate)
	}
	return result
}
