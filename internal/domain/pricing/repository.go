package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Repository ports
// ---------------------------------------------------------------------------

// PolicyRepository defines the persistence port for price policies. Policies
// are written by tenant configuration and read-only to the engine.
type PolicyRepository interface {
	// FindApplicable returns the active policies that apply to a product,
	// combining product, category and tenant-wide scopes
	FindApplicable(ctx context.Context, tenantID, productID uuid.UUID, categoryID *uuid.UUID) ([]PricePolicy, error)

	// FindByTenant returns all policies for a tenant
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]PricePolicy, error)

	// Save creates or updates a policy
	Save(ctx context.Context, policy *PricePolicy) error

	// Delete deletes a policy
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// ConflictFilter defines filter criteria for listing conflicts
type ConflictFilter struct {
	// Resolved filters by resolution state (optional)
	Resolved *bool
	// Type filters by conflict type (optional)
	Type *ConflictType
	// EntityType filters by entity discriminator (optional)
	EntityType string
	// Page number (1-indexed)
	Page int
	// Page size
	PageSize int
}

// ConflictRepository defines the persistence port for price conflicts.
type ConflictRepository interface {
	// Save creates a conflict row
	Save(ctx context.Context, conflict *PriceConflict) error

	// FindByID finds a conflict by ID
	FindByID(ctx context.Context, id uuid.UUID) (*PriceConflict, error)

	// FindAll lists conflicts for a tenant
	FindAll(ctx context.Context, tenantID uuid.UUID, filter ConflictFilter) ([]PriceConflict, int64, error)

	// MarkResolved persists the resolution fields of an already-resolved
	// conflict. Fails if the stored row is already resolved.
	MarkResolved(ctx context.Context, conflict *PriceConflict) error
}

// HistoryRepository defines the persistence port for the price history ledger.
type HistoryRepository interface {
	// Append adds a ledger entry
	Append(ctx context.Context, entry *PriceHistory) error

	// FindByProduct lists entries for a product, newest first
	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, limit int) ([]PriceHistory, error)

	// LastChange returns the most recent entry for a product, or nil
	LastChange(ctx context.Context, tenantID, productID uuid.UUID) (*PriceHistory, error)
}

// ConflictWriter commits a resolved conflict and its matching history entry
// atomically: both rows or neither.
type ConflictWriter interface {
	// CommitResolution writes the conflict and history entry in one transaction
	CommitResolution(ctx context.Context, conflict *PriceConflict, entry *PriceHistory) error
}

// ---------------------------------------------------------------------------
// Price cache port
// ---------------------------------------------------------------------------

// CachedPrice is one memoized effective price. Safe to drop at any time;
// never a source of truth.
type CachedPrice struct {
	ProductID      uuid.UUID       `json:"product_id"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	Fingerprint    string          `json:"fingerprint"`
	ComputedAt     time.Time       `json:"computed_at"`
}

// PriceCache memoizes computed effective prices, keyed by product and
// policy-set fingerprint. Implementations are injectable so tests construct
// isolated instances; there is no package-level singleton.
type PriceCache interface {
	// Get returns the cached price for (tenant, product, fingerprint), or nil
	Get(ctx context.Context, tenantID, productID uuid.UUID, fingerprint string) (*CachedPrice, error)

	// Set stores a computed price with the cache's TTL
	Set(ctx context.Context, tenantID uuid.UUID, price *CachedPrice) error

	// Invalidate drops all cached prices for a product
	Invalidate(ctx context.Context, tenantID, productID uuid.UUID) error
}
