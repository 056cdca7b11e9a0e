package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blingsync/backend/internal/domain/pricing"
	"github.com/blingsync/backend/internal/infrastructure/persistence/models"
)

// GormPolicyRepository implements pricing.PolicyRepository using GORM
type GormPolicyRepository struct {
	db *gorm.DB
}

// NewGormPolicyRepository creates a new GormPolicyRepository
func NewGormPolicyRepository(db *gorm.DB) *GormPolicyRepository {
	return &GormPolicyRepository{db: db}
}

// FindApplicable returns the active policies that apply to a product: its
// product-scoped rows, its category's rows and the tenant-wide rows, ordered
// by priority.
func (r *GormPolicyRepository) FindApplicable(ctx context.Context, tenantID, productID uuid.UUID, categoryID *uuid.UUID) ([]pricing.PricePolicy, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true)

	if categoryID != nil {
		query = query.Where(
			"(scope = ? AND product_id = ?) OR (scope = ? AND category_id = ?) OR scope = ?",
			string(pricing.PolicyScopeProduct), productID,
			string(pricing.PolicyScopeCategory), *categoryID,
			string(pricing.PolicyScopeTenant),
		)
	} else {
		query = query.Where(
			"(scope = ? AND product_id = ?) OR scope = ?",
			string(pricing.PolicyScopeProduct), productID,
			string(pricing.PolicyScopeTenant),
		)
	}

	var rows []models.PricePolicyModel
	if err := query.Order("priority ASC, created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	policies := make([]pricing.PricePolicy, 0, len(rows))
	for i := range rows {
		policies = append(policies, *rows[i].ToDomain())
	}
	return policies, nil
}

// FindByTenant returns all policies for a tenant
func (r *GormPolicyRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]pricing.PricePolicy, error) {
	var rows []models.PricePolicyModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("priority ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	policies := make([]pricing.PricePolicy, 0, len(rows))
	for i := range rows {
		policies = append(policies, *rows[i].ToDomain())
	}
	return policies, nil
}

// Save creates or updates a policy
func (r *GormPolicyRepository) Save(ctx context.Context, policy *pricing.PricePolicy) error {
	return r.db.WithContext(ctx).Save(models.PricePolicyModelFromDomain(policy)).Error
}

// Delete deletes a policy within a tenant
func (r *GormPolicyRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.PricePolicyModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pricing.ErrPolicyNotFound
	}
	return nil
}

// Ensure GormPolicyRepository implements pricing.PolicyRepository
var _ pricing.PolicyRepository = (*GormPolicyRepository)(nil)
