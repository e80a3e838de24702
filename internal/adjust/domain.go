package adjust

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-tarif/internal/rounding"
)

// ItemType distinguishes sellable services from physical products.
type ItemType string

const (
	ItemTypeService ItemType = "service"
	ItemTypeProduct ItemType = "product"
)

// Currency tells whether the item is priced in the organization's local
// currency or a foreign one. Foreign prices move with the exchange rate and
// never through the index engine.
type Currency string

const (
	CurrencyLocal   Currency = "local"
	CurrencyForeign Currency = "foreign"
)

// ScopeFilter narrows which catalog subset an adjustment touches.
type ScopeFilter string

const (
	ScopeAll       ScopeFilter = "ALL"
	ScopeServices  ScopeFilter = "SERVICES"
	ScopeProducts  ScopeFilter = "PRODUCTS"
	ScopeSpecialty ScopeFilter = "SPECIALTY"
)

// ParseScope validates and normalises a scope string.
func ParseScope(value string) (ScopeFilter, error) {
	switch ScopeFilter(strings.ToUpper(strings.TrimSpace(value))) {
	case ScopeAll, "":
		return ScopeAll, nil
	case ScopeServices:
		return ScopeServices, nil
	case ScopeProducts:
		return ScopeProducts, nil
	case ScopeSpecialty:
		return ScopeSpecialty, nil
	default:
		return "", fmt.Errorf("adjust: unknown scope %q", value)
	}
}

// PriceItem is one sellable entry of the organization's price book.
type PriceItem struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Type      ItemType        `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Currency  Currency        `json:"currency"`
	Specialty string          `json:"specialty,omitempty"`
	Active    bool            `json:"active"`
}

// IndexRate is a published inflation/cost index observation. Snapshots are
// immutable: whatever rate is selected at apply time is what history records.
type IndexRate struct {
	Source      string          `json:"source"`
	Label       string          `json:"label"`
	Period      string          `json:"period"`
	Rate        decimal.Decimal `json:"rate"`
	Recommended bool            `json:"recommended"`
}

// RateSpec is the resolved rate snapshot a preview or apply runs against.
// Custom rates carry the SourceCustom marker so history can tell them apart
// from official index observations.
type RateSpec struct {
	Source string          `json:"source"`
	Label  string          `json:"label,omitempty"`
	Period string          `json:"period,omitempty"`
	Rate   decimal.Decimal `json:"rate"`
}

// SourceCustom marks operator-entered rates in history records.
const SourceCustom = "custom"

// Exclusion reasons surfaced on preview lines.
const (
	ExcludedScopeFilter     = "scope filter"
	ExcludedForeignCurrency = "adjusts via exchange rate, not index"
)

// PreviewLine is the ephemeral per-item result of a preview computation. It
// is recomputed on every input change and never persisted.
type PreviewLine struct {
	ItemID         uuid.UUID       `json:"itemId"`
	Name           string          `json:"name"`
	OriginalPrice  decimal.Decimal `json:"originalPrice"`
	AdjustedPrice  decimal.Decimal `json:"adjustedPrice"`
	Difference     decimal.Decimal `json:"difference"`
	PercentChange  decimal.Decimal `json:"percentChange"`
	Excluded       bool            `json:"excluded"`
	ExcludedReason string          `json:"excludedReason,omitempty"`
	HasOverride    bool            `json:"hasOverride"`
}

// PreviewResult aggregates preview lines with the session summary.
type PreviewResult struct {
	Lines            []PreviewLine   `json:"lines"`
	IncludedCount    int             `json:"includedCount"`
	AvgPercentChange decimal.Decimal `json:"avgPercentChange"`
	RoundingDrift    decimal.Decimal `json:"roundingDrift"`
	TotalBefore      decimal.Decimal `json:"totalBefore"`
	TotalAfter       decimal.Decimal `json:"totalAfter"`
}

// AdjustmentEvent is the append-only history record of one committed
// adjustment. Created exactly once per apply and immutable thereafter.
// AvgPercentChange freezes the realized mean percent over included
// non-zero-priced lines so drift folds never re-read mutated catalog rows.
type AdjustmentEvent struct {
	ID                uuid.UUID          `json:"id"`
	OrgID             uuid.UUID          `json:"orgId"`
	IndexSource       string             `json:"indexSource"`
	IndexLabel        string             `json:"indexLabel,omitempty"`
	IndexPeriod       string             `json:"indexPeriod,omitempty"`
	IndexRate         decimal.Decimal    `json:"indexRate"`
	Scope             ScopeFilter        `json:"scope"`
	SpecialtyFilter   string             `json:"specialtyFilter,omitempty"`
	RoundingStrategy  rounding.Strategy  `json:"roundingStrategy"`
	RoundingDirection rounding.Direction `json:"roundingDirection"`
	ItemsAffected     int                `json:"itemsAffected"`
	TotalValueBefore  decimal.Decimal    `json:"totalValueBefore"`
	TotalValueAfter   decimal.Decimal    `json:"totalValueAfter"`
	AvgPercentChange  decimal.Decimal    `json:"avgPercentChange"`
	AppliedAt         time.Time          `json:"appliedAt"`
	AppliedBy         string             `json:"appliedBy"`
	Notes             string             `json:"notes,omitempty"`
}

// CumulativeDrift is the running gap between the official index rates ever
// applied and the average adjustments actually realized after rounding and
// overrides. It is a rebuildable cache over the event history.
type CumulativeDrift struct {
	AdjustmentCount   int             `json:"adjustmentCount"`
	OfficialInflation decimal.Decimal `json:"officialInflation"`
	ActualAdjustment  decimal.Decimal `json:"actualAdjustment"`
	Drift             decimal.Decimal `json:"drift"`
	FirstAdjustmentAt time.Time       `json:"firstAdjustmentAt"`
	LastAdjustmentAt  time.Time       `json:"lastAdjustmentAt"`
}

// PriceChange is one catalog mutation the applier commits.
type PriceChange struct {
	ItemID   uuid.UUID
	NewPrice decimal.Decimal
}

// Sentinel errors of the core. All are local and recoverable; storage
// failures surface as *PersistenceError instead.
var (
	ErrNoItemsToAdjust = errors.New("adjust: no items to adjust")
	ErrInvalidOverride = errors.New("adjust: invalid override")
	ErrUnknownIndex    = errors.New("adjust: unknown index")
)

// PersistenceError wraps a storage failure during apply. The operation rolled
// back completely and may be retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("adjust: persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
