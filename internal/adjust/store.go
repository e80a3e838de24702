package adjust

import (
	"context"

	"github.com/google/uuid"
)

// ApplyRecord bundles everything one apply commits: the catalog mutations,
// the immutable history event, and the refreshed drift cache row. Stores
// must treat the three as a single transaction: either all land or none.
type ApplyRecord struct {
	Changes []PriceChange
	Event   AdjustmentEvent
	Drift   CumulativeDrift
}

// Store is the durable collaborator surface the core consumes: the price
// catalog, the append-only event history, and the drift cache.
type Store interface {
	// ListActiveItems returns the organization's active price book.
	ListActiveItems(ctx context.Context, orgID uuid.UUID) ([]PriceItem, error)
	// ListEvents returns up to limit events, most recent first.
	ListEvents(ctx context.Context, orgID uuid.UUID, limit int) ([]AdjustmentEvent, error)
	// ListAllEvents returns the full history in applied order, for folds.
	ListAllEvents(ctx context.Context, orgID uuid.UUID) ([]AdjustmentEvent, error)
	// GetDrift returns the cached drift row, or nil when none exists yet.
	GetDrift(ctx context.Context, orgID uuid.UUID) (*CumulativeDrift, error)
	// Apply commits the record atomically.
	Apply(ctx context.Context, orgID uuid.UUID, record ApplyRecord) error
	// ReplaceDrift overwrites the cached drift row, used by verification
	// when the cache diverged from the event fold.
	ReplaceDrift(ctx context.Context, orgID uuid.UUID, drift CumulativeDrift) error
}

// IndexProvider supplies the published index observations an organization
// can adjust against. Implemented by internal/index.
type IndexProvider interface {
	LatestIndices(ctx context.Context, orgID uuid.UUID) ([]IndexRate, error)
}
