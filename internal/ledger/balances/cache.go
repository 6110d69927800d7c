package balances

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds tenant-wide ledger aggregates in Redis. It is advisory:
// correctness-sensitive reads go straight to the projection service and
// staleness after a missed invalidation is bounded by the TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func summaryKey(tenantID int64) string {
	return fmt.Sprintf("ledger:summary:%d", tenantID)
}

// Get loads the cached summary. The second return reports a hit.
func (c *Cache) Get(ctx context.Context, tenantID int64) (TenantSummary, bool, error) {
	if c == nil || c.client == nil {
		return TenantSummary{}, false, nil
	}
	raw, err := c.client.Get(ctx, summaryKey(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return TenantSummary{}, false, nil
	}
	if err != nil {
		return TenantSummary{}, false, err
	}
	var summary TenantSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return TenantSummary{}, false, err
	}
	return summary, true, nil
}

// Set stores the summary under the cache TTL.
func (c *Cache) Set(ctx context.Context, tenantID int64, summary TenantSummary) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, summaryKey(tenantID), raw, c.ttl).Err()
}

// Invalidate drops the tenant's cached aggregate. Called after every
// successful posting or reversal.
func (c *Cache) Invalidate(ctx context.Context, tenantID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, summaryKey(tenantID)).Err()
}
