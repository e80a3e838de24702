package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-tarif/internal/adjust"
	"github.com/noah-isme/backend-tarif/internal/rounding"
)

// AdjustStore persists the price catalog, the adjustment event history, and
// the per-organization drift row in Postgres. Money and percent columns are
// numeric; values cross the wire as strings so no float ever touches them.
type AdjustStore struct {
	Pool *pgxpool.Pool
}

// NewAdjustStore constructs a store backed by the provided pool.
func NewAdjustStore(pool *pgxpool.Pool) *AdjustStore {
	return &AdjustStore{Pool: pool}
}

// ListActiveItems returns the organization's active price book ordered by name.
func (s *AdjustStore) ListActiveItems(ctx context.Context, orgID uuid.UUID) ([]adjust.PriceItem, error) {
	rows, err := s.Pool.Query(ctx, `
SELECT id, name, item_type, price::text, currency, specialty, active
FROM price_items
WHERE org_id = $1 AND active
ORDER BY name, id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []adjust.PriceItem
	for rows.Next() {
		var (
			item  adjust.PriceItem
			price string
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Type, &price, &item.Currency, &item.Specialty, &item.Active); err != nil {
			return nil, err
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price for %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListEvents returns up to limit events, most recent first.
func (s *AdjustStore) ListEvents(ctx context.Context, orgID uuid.UUID, limit int) ([]adjust.AdjustmentEvent, error) {
	rows, err := s.Pool.Query(ctx, eventSelect+`
WHERE org_id = $1
ORDER BY applied_at DESC, id DESC
LIMIT $2`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListAllEvents returns the full history in applied order, oldest first.
func (s *AdjustStore) ListAllEvents(ctx context.Context, orgID uuid.UUID) ([]adjust.AdjustmentEvent, error) {
	rows, err := s.Pool.Query(ctx, eventSelect+`
WHERE org_id = $1
ORDER BY applied_at ASC, id ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetDrift returns the stored drift row, or nil when the organization has
// never applied an adjustment.
func (s *AdjustStore) GetDrift(ctx context.Context, orgID uuid.UUID) (*adjust.CumulativeDrift, error) {
	row := s.Pool.QueryRow(ctx, `
SELECT adjustment_count, official_inflation::text, actual_adjustment::text, drift::text,
       first_adjustment_at, last_adjustment_at
FROM org_drift
WHERE org_id = $1`, orgID)
	drift, err := scanDrift(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return drift, nil
}

// Apply commits the catalog mutations, the history event, and the drift row
// in one transaction.
func (s *AdjustStore) Apply(ctx context.Context, orgID uuid.UUID, record adjust.ApplyRecord) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, change := range record.Changes {
		batch.Queue(`
UPDATE price_items SET price = $3::numeric, updated_at = now()
WHERE org_id = $1 AND id = $2`, orgID, change.ItemID, change.NewPrice.String())
	}
	results := tx.SendBatch(ctx, batch)
	for _, change := range record.Changes {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return fmt.Errorf("update price %s: %w", change.ItemID, err)
		}
		if tag.RowsAffected() == 0 {
			_ = results.Close()
			return fmt.Errorf("update price %s: item disappeared", change.ItemID)
		}
	}
	if err := results.Close(); err != nil {
		return err
	}

	event := record.Event
	if _, err := tx.Exec(ctx, `
INSERT INTO adjustment_events (
  id, org_id, index_source, index_label, index_period, index_rate,
  scope, specialty_filter, rounding_strategy, rounding_direction,
  items_affected, total_value_before, total_value_after, avg_percent_change,
  applied_at, applied_by, notes
) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12::numeric, $13::numeric, $14::numeric, $15, $16, $17)`,
		event.ID, event.OrgID, event.IndexSource, event.IndexLabel, event.IndexPeriod, event.IndexRate.String(),
		string(event.Scope), event.SpecialtyFilter, string(event.RoundingStrategy), string(event.RoundingDirection),
		event.ItemsAffected, event.TotalValueBefore.String(), event.TotalValueAfter.String(), event.AvgPercentChange.String(),
		event.AppliedAt, event.AppliedBy, event.Notes,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := upsertDrift(ctx, tx, orgID, record.Drift); err != nil {
		return fmt.Errorf("upsert drift: %w", err)
	}

	return tx.Commit(ctx)
}

// ReplaceDrift overwrites the drift row outside of an apply, used by the
// verification job when the incremental row diverged from the event fold.
func (s *AdjustStore) ReplaceDrift(ctx context.Context, orgID uuid.UUID, drift adjust.CumulativeDrift) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := upsertDrift(ctx, tx, orgID, drift); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func upsertDrift(ctx context.Context, tx pgx.Tx, orgID uuid.UUID, drift adjust.CumulativeDrift) error {
	var first, last any
	if !drift.FirstAdjustmentAt.IsZero() {
		first = drift.FirstAdjustmentAt
	}
	if !drift.LastAdjustmentAt.IsZero() {
		last = drift.LastAdjustmentAt
	}
	_, err := tx.Exec(ctx, `
INSERT INTO org_drift (
  org_id, adjustment_count, official_inflation, actual_adjustment, drift,
  first_adjustment_at, last_adjustment_at, updated_at
) VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, now())
ON CONFLICT (org_id) DO UPDATE SET
  adjustment_count = EXCLUDED.adjustment_count,
  official_inflation = EXCLUDED.official_inflation,
  actual_adjustment = EXCLUDED.actual_adjustment,
  drift = EXCLUDED.drift,
  first_adjustment_at = EXCLUDED.first_adjustment_at,
  last_adjustment_at = EXCLUDED.last_adjustment_at,
  updated_at = now()`,
		orgID, drift.AdjustmentCount,
		drift.OfficialInflation.String(), drift.ActualAdjustment.String(), drift.Drift.String(),
		first, last,
	)
	return err
}

const eventSelect = `
SELECT id, org_id, index_source, index_label, index_period, index_rate::text,
       scope, specialty_filter, rounding_strategy, rounding_direction,
       items_affected, total_value_before::text, total_value_after::text, avg_percent_change::text,
       applied_at, applied_by, notes
FROM adjustment_events`

func scanEvents(rows pgx.Rows) ([]adjust.AdjustmentEvent, error) {
	var events []adjust.AdjustmentEvent
	for rows.Next() {
		var (
			event                adjust.AdjustmentEvent
			scope, strategy, dir string
			rate, before, after  string
			avgChange            string
		)
		if err := rows.Scan(
			&event.ID, &event.OrgID, &event.IndexSource, &event.IndexLabel, &event.IndexPeriod, &rate,
			&scope, &event.SpecialtyFilter, &strategy, &dir,
			&event.ItemsAffected, &before, &after, &avgChange,
			&event.AppliedAt, &event.AppliedBy, &event.Notes,
		); err != nil {
			return nil, err
		}
		event.Scope = adjust.ScopeFilter(scope)
		event.RoundingStrategy = rounding.Strategy(strategy)
		event.RoundingDirection = rounding.Direction(dir)
		var err error
		if event.IndexRate, err = decimal.NewFromString(rate); err != nil {
			return nil, err
		}
		if event.TotalValueBefore, err = decimal.NewFromString(before); err != nil {
			return nil, err
		}
		if event.TotalValueAfter, err = decimal.NewFromString(after); err != nil {
			return nil, err
		}
		if event.AvgPercentChange, err = decimal.NewFromString(avgChange); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanDrift(row pgx.Row) (*adjust.CumulativeDrift, error) {
	var (
		drift                 adjust.CumulativeDrift
		official, actual, gap string
		first, last           *time.Time
	)
	if err := row.Scan(&drift.AdjustmentCount, &official, &actual, &gap, &first, &last); err != nil {
		return nil, err
	}
	var err error
	if drift.OfficialInflation, err = decimal.NewFromString(official); err != nil {
		return nil, err
	}
	if drift.ActualAdjustment, err = decimal.NewFromString(actual); err != nil {
		return nil, err
	}
	if drift.Drift, err = decimal.NewFromString(gap); err != nil {
		return nil, err
	}
	if first != nil {
		drift.FirstAdjustmentAt = *first
	}
	if last != nil {
		drift.LastAdjustmentAt = *last
	}
	return &drift, nil
}
