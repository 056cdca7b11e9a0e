package pricing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Policy Errors
// ---------------------------------------------------------------------------

var (
	// ErrMissingCost indicates a fixed_margin policy was applied without a cost price
	ErrMissingCost = errors.New("pricing: fixed_margin policy requires a cost price")
	// ErrInvalidPolicyConfiguration indicates a policy row failed load-time validation
	ErrInvalidPolicyConfiguration = errors.New("pricing: invalid policy configuration")
	// ErrPolicyNotFound indicates the policy does not exist
	ErrPolicyNotFound = errors.New("pricing: policy not found")
)

// ---------------------------------------------------------------------------
// PolicyType
// ---------------------------------------------------------------------------

// PolicyType represents the kind of price transformation a policy applies
type PolicyType string

const (
	// PolicyTypeMarkup adds value% to the running price
	PolicyTypeMarkup PolicyType = "MARKUP"
	// PolicyTypeDiscount subtracts value% from the running price
	PolicyTypeDiscount PolicyType = "DISCOUNT"
	// PolicyTypeFixedMargin derives the price from cost: cost / (1 - value/100)
	PolicyTypeFixedMargin PolicyType = "FIXED_MARGIN"
	// PolicyTypeMinimumPrice clamps the running price to at least value
	PolicyTypeMinimumPrice PolicyType = "MINIMUM_PRICE"
	// PolicyTypeMaximumPrice clamps the running price to at most value
	PolicyTypeMaximumPrice PolicyType = "MAXIMUM_PRICE"
)

// IsValid returns true if the policy type is valid
func (t PolicyType) IsValid() bool {
	switch t {
	case PolicyTypeMarkup, PolicyTypeDiscount, PolicyTypeFixedMargin,
		PolicyTypeMinimumPrice, PolicyTypeMaximumPrice:
		return true
	default:
		return false
	}
}

// String returns the string representation of PolicyType
func (t PolicyType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// PolicyScope
// ---------------------------------------------------------------------------

// PolicyScope represents what a policy applies to. Exactly one scope is set
// per policy row.
type PolicyScope string

const (
	// PolicyScopeProduct applies to a single product
	PolicyScopeProduct PolicyScope = "PRODUCT"
	// PolicyScopeCategory applies to every product in a category
	PolicyScopeCategory PolicyScope = "CATEGORY"
	// PolicyScopeTenant applies tenant-wide
	PolicyScopeTenant PolicyScope = "TENANT"
)

// IsValid returns true if the scope is valid
func (s PolicyScope) IsValid() bool {
	switch s {
	case PolicyScopeProduct, PolicyScopeCategory, PolicyScopeTenant:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// PricePolicy
// ---------------------------------------------------------------------------

// PricePolicy is one configured price transformation. Policies compose in
// ascending Priority order, each operating on the output of the previous one.
type PricePolicy struct {
	// ID is the unique identifier of the policy
	ID uuid.UUID
	// TenantID is the tenant this policy belongs to
	TenantID uuid.UUID
	// Scope says what the policy applies to
	Scope PolicyScope
	// ProductID is set when Scope is PRODUCT
	ProductID *uuid.UUID
	// CategoryID is set when Scope is CATEGORY
	CategoryID *uuid.UUID
	// Type is the transformation kind
	Type PolicyType
	// Value is the percentage (markup, discount, fixed_margin) or absolute
	// amount (minimum_price, maximum_price)
	Value decimal.Decimal
	// Priority orders application; lower runs first
	Priority int
	// Active toggles the policy without deleting it
	Active bool
	// CreatedAt is when the policy was created
	CreatedAt time.Time
	// UpdatedAt is when the policy was last updated
	UpdatedAt time.Time
}

// Validate checks the policy row at load time so malformed configuration
// fails before any price computation uses it.
func (p *PricePolicy) Validate() error {
	if !p.Type.IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidPolicyConfiguration, p.Type)
	}
	if !p.Scope.IsValid() {
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidPolicyConfiguration, p.Scope)
	}
	switch p.Scope {
	case PolicyScopeProduct:
		if p.ProductID == nil || p.CategoryID != nil {
			return fmt.Errorf("%w: product scope requires exactly a product id", ErrInvalidPolicyConfiguration)
		}
	case PolicyScopeCategory:
		if p.CategoryID == nil || p.ProductID != nil {
			return fmt.Errorf("%w: category scope requires exactly a category id", ErrInvalidPolicyConfiguration)
		}
	case PolicyScopeTenant:
		if p.ProductID != nil || p.CategoryID != nil {
			return fmt.Errorf("%w: tenant scope must not reference a product or category", ErrInvalidPolicyConfiguration)
		}
	}
	switch p.Type {
	case PolicyTypeMarkup, PolicyTypeDiscount:
		if p.Value.IsNegative() {
			return fmt.Errorf("%w: percentage must not be negative", ErrInvalidPolicyConfiguration)
		}
	case PolicyTypeFixedMargin:
		if p.Value.IsNegative() || p.Value.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: margin must be in [0, 100)", ErrInvalidPolicyConfiguration)
		}
	case PolicyTypeMinimumPrice, PolicyTypeMaximumPrice:
		if p.Value.IsNegative() {
			return fmt.Errorf("%w: clamp price must not be negative", ErrInvalidPolicyConfiguration)
		}
	}
	return nil
}

// SortPolicies orders policies by ascending priority, preserving the given
// order between equal priorities.
func SortPolicies(policies []PricePolicy) []PricePolicy {
	sorted := make([]PricePolicy, len(policies))
	copy(sorted, policies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// FingerprintPolicies computes a stable fingerprint of a policy set in its
// application order. Used as part of price cache keys so a configuration
// change naturally misses the cache.
func FingerprintPolicies(policies []PricePolicy) string {
	sorted := SortPolicies(policies)
	h := sha256.New()
	for _, p := range sorted {
		fmt.Fprintf(h, "%s|%s|%s|%d;", p.ID, p.Type, p.Value.String(), p.Priority)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
