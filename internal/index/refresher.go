package index

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-tarif/internal/resilience"
)

// feedObservation is one entry of the upstream index feed.
type feedObservation struct {
	Source      string `json:"source"`
	Label       string `json:"label"`
	Period      string `json:"period"`
	Rate        string `json:"rate"`
	Recommended bool   `json:"recommended"`
}

// Refresher periodically pulls official index observations from an upstream
// feed and upserts them as global rows. The HTTP client carries a circuit
// breaker so a flapping feed cannot pile up retries.
type Refresher struct {
	Pool     *pgxpool.Pool
	Client   resilience.HTTPClient
	FeedURL  string
	Interval time.Duration
	Logger   zerolog.Logger
}

// Run refreshes on the configured interval until the context is cancelled.
// The first refresh happens immediately.
func (r *Refresher) Run(ctx context.Context) error {
	if strings.TrimSpace(r.FeedURL) == "" {
		return fmt.Errorf("index: feed url not configured")
	}
	interval := r.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	if err := r.RefreshOnce(ctx); err != nil {
		r.Logger.Warn().Err(err).Msg("initial index refresh failed")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.Logger.Warn().Err(err).Msg("index refresh failed")
			}
		}
	}
}

// RefreshOnce fetches the feed and upserts every observation it carries.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	req, err := http.NewRequest(http.MethodGet, r.FeedURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.Client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("fetch index feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch index feed: %s", resp.Status)
	}

	var observations []feedObservation
	if err := json.NewDecoder(resp.Body).Decode(&observations); err != nil {
		return fmt.Errorf("decode index feed: %w", err)
	}

	stored := 0
	for _, obs := range observations {
		source := strings.TrimSpace(obs.Source)
		period := strings.TrimSpace(obs.Period)
		if source == "" || period == "" {
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(obs.Rate))
		if err != nil {
			r.Logger.Warn().Str("source", source).Str("period", period).Msg("index feed entry with unparsable rate, skipped")
			continue
		}
		if err := r.upsert(ctx, source, obs.Label, period, rate, obs.Recommended); err != nil {
			return fmt.Errorf("store index %s %s: %w", source, period, err)
		}
		stored++
	}
	r.Logger.Info().Int("observations", stored).Msg("index feed refreshed")
	return nil
}

func (r *Refresher) upsert(ctx context.Context, source, label, period string, rate decimal.Decimal, recommended bool) error {
	_, err := r.Pool.Exec(ctx, `
INSERT INTO adjustment_indices (org_id, source, label, period, rate, recommended, published_at)
VALUES (NULL, $1, $2, $3, $4::numeric, $5, now())
ON CONFLICT (source, period) WHERE org_id IS NULL DO UPDATE SET
  label = EXCLUDED.label,
  rate = EXCLUDED.rate,
  recommended = EXCLUDED.recommended,
  published_at = now()`,
		source, label, period, rate.String(), recommended)
	return err
}
