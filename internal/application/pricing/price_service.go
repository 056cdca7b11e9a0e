package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/blingsync/backend/internal/domain/pricing"
)

// PriceService computes effective prices through the tenant's policy chain,
// memoizing results in the injected cache. The cache is keyed by product and
// policy-set fingerprint, so configuration changes miss naturally.
type PriceService struct {
	policies pricing.PolicyRepository
	cache    pricing.PriceCache
	logger   *zap.Logger
}

// NewPriceService creates a new PriceService
func NewPriceService(policies pricing.PolicyRepository, cache pricing.PriceCache, logger *zap.Logger) *PriceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceService{
		policies: policies,
		cache:    cache,
		logger:   logger,
	}
}

// EffectivePrice computes the effective price for a product from a base price
// and optional cost, applying the tenant's applicable policies in priority
// order. Cache failures degrade to recomputation, never to an error.
func (s *PriceService) EffectivePrice(ctx context.Context, tenantID, productID uuid.UUID, categoryID *uuid.UUID, basePrice decimal.Decimal, costPrice *decimal.Decimal) (decimal.Decimal, error) {
	applicable, err := s.policies.FindApplicable(ctx, tenantID, productID, categoryID)
	if err != nil {
		return decimal.Zero, err
	}
	fingerprint := pricing.FingerprintPolicies(applicable)

	if cached, cacheErr := s.cache.Get(ctx, tenantID, productID, fingerprint); cacheErr == nil && cached != nil {
		return cached.EffectivePrice, nil
	} else if cacheErr != nil {
		s.logger.Warn("Price cache read failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("product_id", productID.String()),
			zap.Error(cacheErr),
		)
	}

	price, err := pricing.ComputePrice(basePrice, costPrice, applicable)
	if err != nil {
		return decimal.Zero, err
	}

	if cacheErr := s.cache.Set(ctx, tenantID, &pricing.CachedPrice{
		ProductID:      productID,
		EffectivePrice: price,
		Fingerprint:    fingerprint,
		ComputedAt:     time.Now(),
	}); cacheErr != nil {
		s.logger.Warn("Price cache write failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("product_id", productID.String()),
			zap.Error(cacheErr),
		)
	}
	return price, nil
}

// InvalidateProduct drops cached prices for a product after its inputs change.
func (s *PriceService) InvalidateProduct(ctx context.Context, tenantID, productID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, tenantID, productID); err != nil {
		s.logger.Warn("Price cache invalidation failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("product_id", productID.String()),
			zap.Error(err),
		)
	}
}
