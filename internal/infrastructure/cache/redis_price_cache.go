package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/blingsync/backend/internal/domain/pricing"
)

const priceKeyPrefix = "price:"

// RedisPriceCache implements pricing.PriceCache on Redis. Suitable for
// distributed deployments where multiple instances share the cache. Each
// product additionally carries an index set of its live keys so invalidation
// can drop every fingerprint at once.
type RedisPriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPriceCache creates a Redis-backed price cache with an existing
// client. The client is shared; Close is the owner's responsibility.
func NewRedisPriceCache(client *redis.Client, ttl time.Duration) *RedisPriceCache {
	return &RedisPriceCache{client: client, ttl: ttl}
}

// Get returns the cached price for (tenant, product, fingerprint), or nil.
func (c *RedisPriceCache) Get(ctx context.Context, tenantID, productID uuid.UUID, fingerprint string) (*pricing.CachedPrice, error) {
	raw, err := c.client.Get(ctx, c.key(tenantID, productID, fingerprint)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached price: %w", err)
	}

	var price pricing.CachedPrice
	if err := json.Unmarshal(raw, &price); err != nil {
		// A corrupt entry is treated as a miss; it ages out via TTL.
		return nil, nil
	}
	return &price, nil
}

// Set stores a computed price and registers its key in the product index.
func (c *RedisPriceCache) Set(ctx context.Context, tenantID uuid.UUID, price *pricing.CachedPrice) error {
	raw, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("failed to marshal cached price: %w", err)
	}

	key := c.key(tenantID, price.ProductID, price.Fingerprint)
	index := c.indexKey(tenantID, price.ProductID)

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, raw, c.ttl)
	pipe.SAdd(ctx, index, key)
	pipe.Expire(ctx, index, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store cached price: %w", err)
	}
	return nil
}

// Invalidate drops all cached prices for a product, across fingerprints.
func (c *RedisPriceCache) Invalidate(ctx context.Context, tenantID, productID uuid.UUID) error {
	index := c.indexKey(tenantID, productID)

	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to list cached price keys: %w", err)
	}

	keys = append(keys, index)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached prices: %w", err)
	}
	return nil
}

func (c *RedisPriceCache) key(tenantID, productID uuid.UUID, fingerprint string) string {
	return priceKeyPrefix + tenantID.String() + ":" + productID.String() + ":" + fingerprint
}

func (c *RedisPriceCache) indexKey(tenantID, productID uuid.UUID) string {
	return priceKeyPrefix + "keys:" + tenantID.String() + ":" + productID.String()
}

// Ensure RedisPriceCache implements pricing.PriceCache
var _ pricing.PriceCache = (*RedisPriceCache)(nil)
