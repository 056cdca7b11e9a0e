package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/blingsync/backend/internal/domain/pricing"
)

// CreatePolicyCommand is the input for creating a price policy.
type CreatePolicyCommand struct {
	TenantID   uuid.UUID
	Scope      pricing.PolicyScope
	ProductID  *uuid.UUID
	CategoryID *uuid.UUID
	Type       pricing.PolicyType
	Value      decimal.Decimal
	Priority   int
}

// UpdatePolicyCommand is the input for updating a price policy.
type UpdatePolicyCommand struct {
	TenantID uuid.UUID
	PolicyID uuid.UUID
	Value    *decimal.Decimal
	Priority *int
	Active   *bool
}

// PolicyService manages a tenant's price policy configuration. Every write
// invalidates nothing directly: cache keys embed the policy-set fingerprint,
// so changed configuration misses on the next read.
type PolicyService struct {
	policies pricing.PolicyRepository
	logger   *zap.Logger
}

// NewPolicyService creates a new PolicyService
func NewPolicyService(policies pricing.PolicyRepository, logger *zap.Logger) *PolicyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{policies: policies, logger: logger}
}

// Create validates and persists a new policy.
func (s *PolicyService) Create(ctx context.Context, cmd CreatePolicyCommand) (*pricing.PricePolicy, error) {
	now := time.Now()
	policy := &pricing.PricePolicy{
		ID:         uuid.New(),
		TenantID:   cmd.TenantID,
		Scope:      cmd.Scope,
		ProductID:  cmd.ProductID,
		CategoryID: cmd.CategoryID,
		Type:       cmd.Type,
		Value:      cmd.Value,
		Priority:   cmd.Priority,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if err := s.policies.Save(ctx, policy); err != nil {
		return nil, err
	}
	s.logger.Info("Price policy created",
		zap.String("policy_id", policy.ID.String()),
		zap.String("tenant_id", policy.TenantID.String()),
		zap.String("type", policy.Type.String()),
	)
	return policy, nil
}

// Update applies partial changes to an existing policy.
func (s *PolicyService) Update(ctx context.Context, cmd UpdatePolicyCommand) (*pricing.PricePolicy, error) {
	existing, err := s.findForTenant(ctx, cmd.TenantID, cmd.PolicyID)
	if err != nil {
		return nil, err
	}
	if cmd.Value != nil {
		existing.Value = *cmd.Value
	}
	if cmd.Priority != nil {
		existing.Priority = *cmd.Priority
	}
	if cmd.Active != nil {
		existing.Active = *cmd.Active
	}
	existing.UpdatedAt = time.Now()
	if err := existing.Validate(); err != nil {
		return nil, err
	}
	if err := s.policies.Save(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Delete removes a policy.
func (s *PolicyService) Delete(ctx context.Context, tenantID, policyID uuid.UUID) error {
	return s.policies.Delete(ctx, tenantID, policyID)
}

// List returns all policies for a tenant in application order.
func (s *PolicyService) List(ctx context.Context, tenantID uuid.UUID) ([]pricing.PricePolicy, error) {
	policies, err := s.policies.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return pricing.SortPolicies(policies), nil
}

func (s *PolicyService) findForTenant(ctx context.Context, tenantID, policyID uuid.UUID) (*pricing.PricePolicy, error) {
	policies, err := s.policies.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range policies {
		if policies[i].ID == policyID {
			return &policies[i], nil
		}
	}
	return nil, pricing.ErrPolicyNotFound
}
