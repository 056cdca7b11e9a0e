package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blingsync/backend/internal/domain/pricing"
)

// priceEntry is one cached effective price with expiration
type priceEntry struct {
	price     pricing.CachedPrice
	expiresAt time.Time
}

// InMemoryPriceCache implements pricing.PriceCache with a TTL map. Suitable
// for single-instance deployments and testing; construct one per need, there
// is no package-level instance.
type InMemoryPriceCache struct {
	mu        sync.RWMutex
	entries   map[string]priceEntry
	ttl       time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// InMemoryOption configures an InMemoryPriceCache
type InMemoryOption func(*InMemoryPriceCache)

// WithClock overrides the time source, used by tests to control expiry
func WithClock(now func() time.Time) InMemoryOption {
	return func(c *InMemoryPriceCache) {
		c.now = now
	}
}

// NewInMemoryPriceCache creates a price cache with the given TTL and starts
// its cleanup goroutine.
func NewInMemoryPriceCache(ttl time.Duration, opts ...InMemoryOption) *InMemoryPriceCache {
	cache := &InMemoryPriceCache{
		entries:  make(map[string]priceEntry),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(cache)
	}

	cache.wg.Add(1)
	go cache.cleanupLoop()

	return cache
}

// Get returns the cached price for (tenant, product, fingerprint), or nil.
func (c *InMemoryPriceCache) Get(ctx context.Context, tenantID, productID uuid.UUID, fingerprint string) (*pricing.CachedPrice, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[priceKey(tenantID, productID, fingerprint)]
	if !exists || c.now().After(e.expiresAt) {
		return nil, nil
	}
	copied := e.price
	return &copied, nil
}

// Set stores a computed price with the cache's TTL.
func (c *InMemoryPriceCache) Set(ctx context.Context, tenantID uuid.UUID, price *pricing.CachedPrice) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[priceKey(tenantID, price.ProductID, price.Fingerprint)] = priceEntry{
		price:     *price,
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

// Invalidate drops all cached prices for a product, across fingerprints.
func (c *InMemoryPriceCache) Invalidate(ctx context.Context, tenantID, productID uuid.UUID) error {
	prefix := productPrefix(tenantID, productID)

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *InMemoryPriceCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

// Size returns the number of entries (for testing/monitoring)
func (c *InMemoryPriceCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryPriceCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryPriceCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func priceKey(tenantID, productID uuid.UUID, fingerprint string) string {
	return productPrefix(tenantID, productID) + fingerprint
}

func productPrefix(tenantID, productID uuid.UUID) string {
	return tenantID.String() + ":" + productID.String() + ":"
}

// Ensure InMemoryPriceCache implements pricing.PriceCache
var _ pricing.PriceCache = (*InMemoryPriceCache)(nil)
