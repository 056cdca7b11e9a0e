package pricing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Conflict Errors
// ---------------------------------------------------------------------------

var (
	// ErrInvalidBaseline indicates the local price is zero and no percentage
	// difference can be computed
	ErrInvalidBaseline = errors.New("pricing: local price is zero, cannot compute difference percent")
	// ErrConflictNotFound indicates the conflict does not exist
	ErrConflictNotFound = errors.New("pricing: conflict not found")
	// ErrConflictAlreadyResolved indicates the conflict is immutable
	ErrConflictAlreadyResolved = errors.New("pricing: conflict already resolved")
	// ErrInvalidResolution indicates an unknown or incomplete resolution request
	ErrInvalidResolution = errors.New("pricing: invalid resolution")
)

// ---------------------------------------------------------------------------
// ConflictType
// ---------------------------------------------------------------------------

// ConflictType classifies why local and remote prices disagree
type ConflictType string

const (
	// ConflictTypeConcurrentModification means both sides changed since the
	// last reconciliation
	ConflictTypeConcurrentModification ConflictType = "CONCURRENT_MODIFICATION"
	// ConflictTypePolicyMismatch means recomputing local policies from the
	// current Bling cost lands closer to the remote price than to the stored
	// local price
	ConflictTypePolicyMismatch ConflictType = "POLICY_MISMATCH"
	// ConflictTypeDataInconsistency covers everything else, including
	// conflicts that cannot be classified
	ConflictTypeDataInconsistency ConflictType = "DATA_INCONSISTENCY"
)

// IsValid returns true if the conflict type is valid
func (t ConflictType) IsValid() bool {
	switch t {
	case ConflictTypeConcurrentModification, ConflictTypePolicyMismatch, ConflictTypeDataInconsistency:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// ResolutionType
// ---------------------------------------------------------------------------

// ResolutionType records which side (or which manual value) won a conflict
type ResolutionType string

const (
	// ResolutionTypeBling means the remote Bling price won
	ResolutionTypeBling ResolutionType = "BLING"
	// ResolutionTypeLocal means the stored local price won
	ResolutionTypeLocal ResolutionType = "LOCAL"
	// ResolutionTypeCustom means an operator supplied the final price
	ResolutionTypeCustom ResolutionType = "CUSTOM"
)

// IsValid returns true if the resolution type is valid
func (t ResolutionType) IsValid() bool {
	switch t {
	case ResolutionTypeBling, ResolutionTypeLocal, ResolutionTypeCustom:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// PriceConflict
// ---------------------------------------------------------------------------

// PriceConflict is one detected, tolerance-exceeding disagreement between the
// Bling price and the local price for an entity. Once resolved, the
// resolution fields are immutable.
type PriceConflict struct {
	// ID is the unique identifier of the conflict
	ID uuid.UUID
	// TenantID is the tenant this conflict belongs to
	TenantID uuid.UUID
	// EntityType discriminates what kind of entity conflicted (e.g. "product")
	EntityType string
	// EntityID identifies the conflicting entity
	EntityID uuid.UUID
	// SyncJobID references the job that detected the conflict, when any
	SyncJobID *uuid.UUID
	// BlingPrice is the remote price at detection time
	BlingPrice decimal.Decimal
	// LocalPrice is the stored local price at detection time
	LocalPrice decimal.Decimal
	// Difference is BlingPrice - LocalPrice
	Difference decimal.Decimal
	// DifferencePercent is |Difference| / LocalPrice * 100
	DifferencePercent decimal.Decimal
	// Type classifies the disagreement
	Type ConflictType
	// Resolved is true once a resolution has been committed
	Resolved bool
	// ResolutionType is set once resolved
	ResolutionType ResolutionType
	// ResolutionPrice is the authoritative price once resolved
	ResolutionPrice decimal.Decimal
	// ResolvedBy identifies the actor for manual resolutions
	ResolvedBy *uuid.UUID
	// ResolvedAt is when the conflict was resolved
	ResolvedAt *time.Time
	// CreatedAt is when the conflict was detected
	CreatedAt time.Time
}

// NewPriceConflict builds an unresolved conflict for an entity. The
// difference fields are derived so the Difference = Bling - Local invariant
// always holds.
func NewPriceConflict(tenantID uuid.UUID, entityType string, entityID uuid.UUID, localPrice, blingPrice decimal.Decimal, conflictType ConflictType) (*PriceConflict, error) {
	if localPrice.IsZero() {
		return nil, ErrInvalidBaseline
	}
	difference := blingPrice.Sub(localPrice)
	return &PriceConflict{
		ID:                uuid.New(),
		TenantID:          tenantID,
		EntityType:        entityType,
		EntityID:          entityID,
		BlingPrice:        blingPrice,
		LocalPrice:        localPrice,
		Difference:        difference,
		DifferencePercent: difference.Abs().Div(localPrice).Mul(oneHundred).Round(4),
		Type:              conflictType,
		Resolved:          false,
		CreatedAt:         time.Now(),
	}, nil
}

// Resolve commits a resolution. A resolved conflict is immutable; calling
// Resolve again returns ErrConflictAlreadyResolved.
func (c *PriceConflict) Resolve(resolutionType ResolutionType, price decimal.Decimal, resolvedBy *uuid.UUID) error {
	if c.Resolved {
		return ErrConflictAlreadyResolved
	}
	if !resolutionType.IsValid() {
		return ErrInvalidResolution
	}
	if price.IsNegative() {
		return ErrInvalidResolution
	}
	now := time.Now()
	c.Resolved = true
	c.ResolutionType = resolutionType
	c.ResolutionPrice = price
	c.ResolvedBy = resolvedBy
	c.ResolvedAt = &now
	return nil
}
