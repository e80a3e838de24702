package adjust

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-tarif/internal/obs"
	"github.com/noah-isme/backend-tarif/internal/rounding"
)

// Locker serializes applies per organization. Satisfied by lock.Locker.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// TaskEnqueuer schedules the post-apply drift verification job.
type TaskEnqueuer interface {
	EnqueueDriftVerify(ctx context.Context, orgID, eventID uuid.UUID) error
}

// RateInput names the rate a preview or apply runs against: either a custom
// operator-entered rate or a reference to a published index observation.
type RateInput struct {
	Custom *decimal.Decimal
	Source string
	Period string
}

// OverrideSpec is one requested manual price correction.
type OverrideSpec struct {
	ItemID  uuid.UUID
	Price   *decimal.Decimal
	Percent *decimal.Decimal
}

// PreviewInput carries everything a preview computation needs.
type PreviewInput struct {
	Rate      RateInput
	Scope     ScopeFilter
	Specialty string
	Policy    rounding.Policy
	Overrides []OverrideSpec
}

// ApplyInput extends PreviewInput with commit metadata.
type ApplyInput struct {
	PreviewInput
	AppliedBy string
	Notes     string
}

// DriftVerification reports the outcome of comparing the cached drift row
// against a fold over the full event history.
type DriftVerification struct {
	OrgID    uuid.UUID        `json:"orgId"`
	Match    bool             `json:"match"`
	Repaired bool             `json:"repaired"`
	Expected *CumulativeDrift `json:"expected,omitempty"`
	Stored   *CumulativeDrift `json:"stored,omitempty"`
}

// Service orchestrates previews, atomic applies, history reads, and drift
// tracking for one deployment. Preview is pure and lock-free; Apply holds a
// per-organization lock for its whole critical section.
type Service struct {
	Store   Store
	Indices IndexProvider
	Locker  Locker
	LockTTL time.Duration
	Cache   *Cache
	Tasks   TaskEnqueuer
	Logger  zerolog.Logger
	Now     func() time.Time
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ResolveRate turns a rate input into an immutable rate snapshot. Custom
// rates pass through unguarded, negative values included; index references
// resolve against the latest published observations.
func (s *Service) ResolveRate(ctx context.Context, orgID uuid.UUID, in RateInput) (RateSpec, error) {
	if in.Custom != nil {
		return RateSpec{Source: SourceCustom, Rate: *in.Custom}, nil
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		return RateSpec{}, fmt.Errorf("%w: no source given", ErrUnknownIndex)
	}
	if s.Indices == nil {
		return RateSpec{}, fmt.Errorf("%w: index provider not configured", ErrUnknownIndex)
	}
	indices, err := s.Indices.LatestIndices(ctx, orgID)
	if err != nil {
		return RateSpec{}, fmt.Errorf("resolve rate: %w", err)
	}
	for _, idx := range indices {
		if idx.Source != source {
			continue
		}
		if in.Period != "" && idx.Period != in.Period {
			continue
		}
		return RateSpec{Source: idx.Source, Label: idx.Label, Period: idx.Period, Rate: idx.Rate}, nil
	}
	return RateSpec{}, fmt.Errorf("%w: %s %s", ErrUnknownIndex, source, in.Period)
}

// Preview computes the full preview for the organization's catalog. It has
// no side effects and can be called on every input change.
func (s *Service) Preview(ctx context.Context, orgID uuid.UUID, in PreviewInput) (PreviewResult, error) {
	start := time.Now()
	rate, err := s.ResolveRate(ctx, orgID, in.Rate)
	if err != nil {
		return PreviewResult{}, err
	}
	items, err := s.Store.ListActiveItems(ctx, orgID)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("list items: %w", err)
	}
	overrides, err := buildOverrides(items, in.Overrides)
	if err != nil {
		return PreviewResult{}, err
	}
	lines := ComputePreview(items, rate.Rate, in.Scope, in.Specialty, in.Policy, overrides)
	result := Summarize(lines, rate.Rate)
	obs.ObservePreview(time.Since(start), len(lines))
	return result, nil
}

// Apply commits a previewed adjustment: it recomputes the preview from the
// current catalog under the organization's apply lock, then mutates the
// catalog, appends one immutable history event, and refreshes the drift
// cache as a single transaction. Any storage failure rolls the whole
// operation back and surfaces as a retryable *PersistenceError.
func (s *Service) Apply(ctx context.Context, orgID uuid.UUID, in ApplyInput) (AdjustmentEvent, error) {
	rate, err := s.ResolveRate(ctx, orgID, in.Rate)
	if err != nil {
		return AdjustmentEvent{}, err
	}

	var event AdjustmentEvent
	run := func(ctx context.Context) error {
		items, err := s.Store.ListActiveItems(ctx, orgID)
		if err != nil {
			return &PersistenceError{Op: "list items", Err: err}
		}
		overrides, err := buildOverrides(items, in.Overrides)
		if err != nil {
			return err
		}
		lines := ComputePreview(items, rate.Rate, in.Scope, in.Specialty, in.Policy, overrides)
		summary := Summarize(lines, rate.Rate)
		if summary.IncludedCount == 0 {
			return ErrNoItemsToAdjust
		}

		event = AdjustmentEvent{
			ID:                uuid.New(),
			OrgID:             orgID,
			IndexSource:       rate.Source,
			IndexLabel:        rate.Label,
			IndexPeriod:       rate.Period,
			IndexRate:         rate.Rate,
			Scope:             in.Scope,
			SpecialtyFilter:   in.Specialty,
			RoundingStrategy:  in.Policy.Strategy,
			RoundingDirection: in.Policy.Direction,
			ItemsAffected:     summary.IncludedCount,
			TotalValueBefore:  summary.TotalBefore,
			TotalValueAfter:   summary.TotalAfter,
			AvgPercentChange:  summary.AvgPercentChange,
			AppliedAt:         s.now().UTC(),
			AppliedBy:         in.AppliedBy,
			Notes:             in.Notes,
		}

		drift, err := s.currentDrift(ctx, orgID)
		if err != nil {
			return &PersistenceError{Op: "read drift", Err: err}
		}
		drift.Observe(event)

		changes := make([]PriceChange, 0, summary.IncludedCount)
		for _, line := range lines {
			if line.Excluded {
				continue
			}
			changes = append(changes, PriceChange{ItemID: line.ItemID, NewPrice: line.AdjustedPrice})
		}

		if err := s.Store.Apply(ctx, orgID, ApplyRecord{Changes: changes, Event: event, Drift: drift}); err != nil {
			if _, ok := err.(*PersistenceError); ok {
				return err
			}
			return &PersistenceError{Op: "commit", Err: err}
		}
		return nil
	}

	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, applyLockKey(orgID), s.lockTTL(), run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		obs.RecordApply("error", 0)
		return AdjustmentEvent{}, err
	}

	obs.RecordApply("ok", event.ItemsAffected)
	s.Cache.InvalidateDrift(ctx, orgID)
	if s.Tasks != nil {
		if err := s.Tasks.EnqueueDriftVerify(ctx, orgID, event.ID); err != nil {
			s.Logger.Warn().Err(err).Str("org_id", orgID.String()).Msg("enqueue drift verification")
		}
	}
	return event, nil
}

// History returns the most recent adjustment events, newest first.
func (s *Service) History(ctx context.Context, orgID uuid.UUID, limit int) ([]AdjustmentEvent, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	events, err := s.Store.ListEvents(ctx, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Drift returns the cumulative drift summary, or nil when the organization
// has never applied an adjustment. Reads go through the Redis cache, then
// the stored row, then a fold over history.
func (s *Service) Drift(ctx context.Context, orgID uuid.UUID) (*CumulativeDrift, error) {
	if cached, ok := s.Cache.GetDrift(ctx, orgID); ok {
		return cached, nil
	}
	drift, err := s.Store.GetDrift(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("get drift: %w", err)
	}
	if drift == nil {
		events, err := s.Store.ListAllEvents(ctx, orgID)
		if err != nil {
			return nil, fmt.Errorf("fold events: %w", err)
		}
		drift = FoldEvents(events)
	}
	if drift != nil {
		s.Cache.SetDrift(ctx, orgID, drift)
		obs.SetDriftGauge(orgID.String(), drift.Drift.InexactFloat64())
	}
	return drift, nil
}

// VerifyDrift folds the full event history and compares the result with the
// cached drift row, repairing the cache when they diverge. The fold is
// authoritative; the incremental row is only an optimization.
func (s *Service) VerifyDrift(ctx context.Context, orgID uuid.UUID) (DriftVerification, error) {
	result := DriftVerification{OrgID: orgID}
	events, err := s.Store.ListAllEvents(ctx, orgID)
	if err != nil {
		obs.RecordDriftVerify("error")
		return result, fmt.Errorf("fold events: %w", err)
	}
	expected := FoldEvents(events)
	stored, err := s.Store.GetDrift(ctx, orgID)
	if err != nil {
		obs.RecordDriftVerify("error")
		return result, fmt.Errorf("get drift: %w", err)
	}
	result.Expected = expected
	result.Stored = stored

	if expected.Equal(stored) {
		result.Match = true
		obs.RecordDriftVerify("match")
		return result, nil
	}

	repaired := CumulativeDrift{
		OfficialInflation: decimal.Zero,
		ActualAdjustment:  decimal.Zero,
		Drift:             decimal.Zero,
	}
	if expected != nil {
		repaired = *expected
	}
	if err := s.Store.ReplaceDrift(ctx, orgID, repaired); err != nil {
		obs.RecordDriftVerify("error")
		return result, fmt.Errorf("replace drift: %w", err)
	}
	s.Cache.InvalidateDrift(ctx, orgID)
	result.Repaired = true
	obs.RecordDriftVerify("repaired")
	s.Logger.Warn().
		Str("org_id", orgID.String()).
		Int("event_count", len(events)).
		Msg("drift cache diverged from event fold, repaired")
	return result, nil
}

func (s *Service) currentDrift(ctx context.Context, orgID uuid.UUID) (CumulativeDrift, error) {
	drift, err := s.Store.GetDrift(ctx, orgID)
	if err != nil {
		return CumulativeDrift{}, err
	}
	if drift == nil {
		events, err := s.Store.ListAllEvents(ctx, orgID)
		if err != nil {
			return CumulativeDrift{}, err
		}
		drift = FoldEvents(events)
	}
	if drift == nil {
		return CumulativeDrift{
			OfficialInflation: decimal.Zero,
			ActualAdjustment:  decimal.Zero,
			Drift:             decimal.Zero,
		}, nil
	}
	return *drift, nil
}

func buildOverrides(items []PriceItem, specs []OverrideSpec) (*OverrideSet, error) {
	set := NewOverrideSet()
	if len(specs) == 0 {
		return set, nil
	}
	byID := make(map[uuid.UUID]PriceItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	for _, spec := range specs {
		item, ok := byID[spec.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %s not in catalog", ErrInvalidOverride, spec.ItemID)
		}
		switch {
		case spec.Price != nil:
			if err := set.SetAbsolute(spec.ItemID, *spec.Price); err != nil {
				return nil, err
			}
		case spec.Percent != nil:
			if _, err := set.SetFromPercent(spec.ItemID, *spec.Percent, item.Price); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: item %s has neither price nor percent", ErrInvalidOverride, spec.ItemID)
		}
	}
	return set, nil
}

func applyLockKey(orgID uuid.UUID) string {
	return "adjust:apply:" + orgID.String()
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 30 * time.Second
	}
	return s.LockTTL
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
