package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/blingsync/backend/internal/domain/pricing"
)

// Configuration is the per-tenant sync configuration. The orchestrator takes
// a snapshot at job creation; jobs never observe mid-run edits.
type Configuration struct {
	// TenantID is the tenant this configuration belongs to
	TenantID uuid.UUID
	// BatchSize is how many entities one Bling page fetch requests
	BatchSize int
	// SyncInterval is how often the scheduler triggers sync jobs
	SyncInterval time.Duration
	// ConflictResolution is the default strategy for price conflicts
	ConflictResolution pricing.ResolutionStrategy
	// PriceTolerancePercent absorbs rounding/timing noise between systems
	PriceTolerancePercent decimal.Decimal
	// AutoMarkup applies MarkupPercentage on top of imported Bling prices
	AutoMarkup bool
	// MarkupPercentage is the automatic markup applied when AutoMarkup is set
	MarkupPercentage decimal.Decimal
	// MaxRetries bounds re-queueing of failed jobs
	MaxRetries int
	// UpdatedAt is when the configuration was last edited
	UpdatedAt time.Time
}

// DefaultConfiguration returns the configuration applied to tenants that
// have not customized sync behavior.
func DefaultConfiguration(tenantID uuid.UUID) Configuration {
	return Configuration{
		TenantID:              tenantID,
		BatchSize:             100,
		SyncInterval:          15 * time.Minute,
		ConflictResolution:    pricing.StrategyBlingWins,
		PriceTolerancePercent: decimal.RequireFromString("0.5"),
		AutoMarkup:            false,
		MarkupPercentage:      decimal.Zero,
		MaxRetries:            DefaultMaxRetries,
	}
}

// Normalize fills unset fields with defaults so a partially configured
// tenant still gets sane behavior.
func (c *Configuration) Normalize() {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchSize > 500 {
		c.BatchSize = 500
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = 15 * time.Minute
	}
	if !c.ConflictResolution.IsValid() {
		c.ConflictResolution = pricing.StrategyBlingWins
	}
	if c.PriceTolerancePercent.IsNegative() {
		c.PriceTolerancePercent = decimal.Zero
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

// ConfigurationRepository defines the persistence port for tenant sync
// configurations.
type ConfigurationRepository interface {
	// FindByTenant returns the tenant's configuration, or
	// ErrConfigurationNotFound
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*Configuration, error)

	// Save creates or updates the tenant's configuration
	Save(ctx context.Context, config *Configuration) error
}
