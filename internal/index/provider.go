package index

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-tarif/internal/adjust"
)

// PGProvider serves the latest published index observations from Postgres.
// Rows without an organization are global and visible to every deployment;
// per-organization rows shadow nothing and simply add to the list.
type PGProvider struct {
	Pool *pgxpool.Pool
}

// NewPGProvider constructs a provider backed by the provided pool.
func NewPGProvider(pool *pgxpool.Pool) *PGProvider {
	return &PGProvider{Pool: pool}
}

// LatestIndices returns the most recent observation per source, global rows
// included.
func (p *PGProvider) LatestIndices(ctx context.Context, orgID uuid.UUID) ([]adjust.IndexRate, error) {
	rows, err := p.Pool.Query(ctx, `
SELECT DISTINCT ON (source) source, label, period, rate::text, recommended
FROM adjustment_indices
WHERE org_id = $1 OR org_id IS NULL
ORDER BY source, published_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indices []adjust.IndexRate
	for rows.Next() {
		var (
			idx  adjust.IndexRate
			rate string
		)
		if err := rows.Scan(&idx.Source, &idx.Label, &idx.Period, &rate, &idx.Recommended); err != nil {
			return nil, err
		}
		if idx.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return indices, rows.Err()
}
