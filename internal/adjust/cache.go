package adjust

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache keeps the drift summary in Redis so repeated dashboard reads skip
// the database. A nil cache is valid and disables caching entirely.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a drift cache with the provided TTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func driftKey(orgID uuid.UUID) string {
	return "adjust:drift:" + orgID.String()
}

// GetDrift returns the cached summary and whether the key existed. Cache
// errors degrade to a miss.
func (c *Cache) GetDrift(ctx context.Context, orgID uuid.UUID) (*CumulativeDrift, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, driftKey(orgID)).Bytes()
	if err != nil {
		return nil, false
	}
	var drift CumulativeDrift
	if err := json.Unmarshal(data, &drift); err != nil {
		return nil, false
	}
	return &drift, true
}

// SetDrift stores the summary with the configured TTL, best effort.
func (c *Cache) SetDrift(ctx context.Context, orgID uuid.UUID, drift *CumulativeDrift) {
	if c == nil || c.client == nil || drift == nil {
		return
	}
	data, err := json.Marshal(drift)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, driftKey(orgID), data, c.ttl).Err()
}

// InvalidateDrift drops the cached summary after an apply or repair.
func (c *Cache) InvalidateDrift(ctx context.Context, orgID uuid.UUID) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, driftKey(orgID)).Err()
}
