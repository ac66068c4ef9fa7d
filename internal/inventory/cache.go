package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "sitestock:stock"

// Cache keeps warehouse stock snapshots in Redis. Each warehouse has its own
// version counter; bumping it orphans every snapshot built under the old one.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client redis.UniversalClient, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func versionKey(warehouseID int64) string {
	return fmt.Sprintf("%s:%d:version", cacheKeyPrefix, warehouseID)
}

// Version returns the current snapshot version of a warehouse.
func (c *Cache) Version(ctx context.Context, warehouseID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(warehouseID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return ver, err
}

// Stock returns the cached snapshot for the filter or fills it with load.
// Concurrent misses for the same key share one load.
func (c *Cache) Stock(ctx context.Context, filter StockFilter, load func(context.Context) ([]Stock, error)) ([]Stock, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	ver, err := c.Version(ctx, filter.WarehouseID)
	if err != nil {
		return load(ctx)
	}
	key := fmt.Sprintf("%s:%d:%d:v%d", cacheKeyPrefix, filter.WarehouseID, filter.MaterialID, ver)
	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var stock []Stock
		if err := json.Unmarshal(raw, &stock); err == nil {
			return stock, nil
		}
	}
	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		stock, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(stock); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		return stock, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Stock), nil
}

// Bump invalidates every snapshot of the warehouse.
func (c *Cache) Bump(ctx context.Context, warehouseID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(warehouseID)).Err()
}

// HandleStockChanged bumps the warehouse version.
func (c *Cache) HandleStockChanged(ctx context.Context, evt StockChangedEvent) error {
	return c.Bump(ctx, evt.WarehouseID)
}
