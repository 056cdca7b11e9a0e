package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blingsync/backend/internal/domain/pricing"
)

func cachedPrice(productID uuid.UUID, fingerprint string) *pricing.CachedPrice {
	return &pricing.CachedPrice{
		ProductID:      productID,
		EffectivePrice: decimal.RequireFromString("110.00"),
		Fingerprint:    fingerprint,
		ComputedAt:     time.Now(),
	}
}

func TestInMemoryPriceCacheSetGet(t *testing.T) {
	cache := NewInMemoryPriceCache(time.Minute)
	defer cache.Close()

	tenantID := uuid.New()
	productID := uuid.New()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, tenantID, cachedPrice(productID, "fp1")))

	got, err := cache.Get(ctx, tenantID, productID, "fp1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "110", got.EffectivePrice.String())

	// Different fingerprint misses
	miss, err := cache.Get(ctx, tenantID, productID, "fp2")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestInMemoryPriceCacheExpiry(t *testing.T) {
	now := time.Now()
	current := now
	cache := NewInMemoryPriceCache(time.Minute, WithClock(func() time.Time { return current }))
	defer cache.Close()

	tenantID := uuid.New()
	productID := uuid.New()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, tenantID, cachedPrice(productID, "fp1")))

	current = now.Add(2 * time.Minute)
	got, err := cache.Get(ctx, tenantID, productID, "fp1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInMemoryPriceCacheInvalidateDropsAllFingerprints(t *testing.T) {
	cache := NewInMemoryPriceCache(time.Minute)
	defer cache.Close()

	tenantID := uuid.New()
	productID := uuid.New()
	otherProduct := uuid.New()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, tenantID, cachedPrice(productID, "fp1")))
	require.NoError(t, cache.Set(ctx, tenantID, cachedPrice(productID, "fp2")))
	require.NoError(t, cache.Set(ctx, tenantID, cachedPrice(otherProduct, "fp1")))

	require.NoError(t, cache.Invalidate(ctx, tenantID, productID))

	got, err := cache.Get(ctx, tenantID, productID, "fp1")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = cache.Get(ctx, tenantID, productID, "fp2")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Other products keep their entries
	kept, err := cache.Get(ctx, tenantID, otherProduct, "fp1")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestInMemoryPriceCacheIsTenantScoped(t *testing.T) {
	cache := NewInMemoryPriceCache(time.Minute)
	defer cache.Close()

	tenantA := uuid.New()
	tenantB := uuid.New()
	productID := uuid.New()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, tenantA, cachedPrice(productID, "fp1")))

	got, err := cache.Get(ctx, tenantB, productID, "fp1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
