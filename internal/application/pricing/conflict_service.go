package pricing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/blingsync/backend/internal/domain/pricing"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// ResolveConflictCommand is the input for a manual conflict resolution.
type ResolveConflictCommand struct {
	TenantID   uuid.UUID
	ConflictID uuid.UUID
	// Resolution picks the winning side; CUSTOM requires CustomPrice
	Resolution pricing.ResolutionType
	// CustomPrice is the operator-supplied price for CUSTOM resolutions
	CustomPrice *decimal.Decimal
	// ResolvedBy identifies the operator
	ResolvedBy uuid.UUID
	// CorrelationID ties the resulting ledger entry to the request
	CorrelationID string
}

// ConflictService lists pending price conflicts and applies manual
// resolutions. Resolution commits the conflict row and the matching history
// entry in one transaction, then writes the authoritative price to the local
// catalog and drops cached prices for the entity.
type ConflictService struct {
	conflicts pricing.ConflictRepository
	writer    pricing.ConflictWriter
	store     syncdomain.LocalStore
	cache     pricing.PriceCache
	logger    *zap.Logger
}

// NewConflictService creates a new ConflictService
func NewConflictService(
	conflicts pricing.ConflictRepository,
	writer pricing.ConflictWriter,
	store syncdomain.LocalStore,
	cache pricing.PriceCache,
	logger *zap.Logger,
) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{
		conflicts: conflicts,
		writer:    writer,
		store:     store,
		cache:     cache,
		logger:    logger,
	}
}

// List returns conflicts for a tenant with pagination.
func (s *ConflictService) List(ctx context.Context, tenantID uuid.UUID, filter pricing.ConflictFilter) ([]pricing.PriceConflict, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.conflicts.FindAll(ctx, tenantID, filter)
}

// Get returns one conflict, scoped to the tenant.
func (s *ConflictService) Get(ctx context.Context, tenantID, conflictID uuid.UUID) (*pricing.PriceConflict, error) {
	conflict, err := s.conflicts.FindByID(ctx, conflictID)
	if err != nil {
		return nil, err
	}
	if conflict.TenantID != tenantID {
		return nil, pricing.ErrConflictNotFound
	}
	return conflict, nil
}

// Resolve applies a manual resolution to a pending conflict.
func (s *ConflictService) Resolve(ctx context.Context, cmd ResolveConflictCommand) (*pricing.PriceConflict, error) {
	conflict, err := s.Get(ctx, cmd.TenantID, cmd.ConflictID)
	if err != nil {
		return nil, err
	}

	finalPrice, err := resolutionPrice(conflict, cmd)
	if err != nil {
		return nil, err
	}

	resolvedBy := cmd.ResolvedBy
	if err := conflict.Resolve(cmd.Resolution, finalPrice, &resolvedBy); err != nil {
		return nil, err
	}

	entry := pricing.NewPriceHistory(
		conflict.TenantID, conflict.EntityID,
		conflict.LocalPrice, finalPrice,
		pricing.ChangeSourceManual, cmd.CorrelationID,
	)
	entry.ConflictID = &conflict.ID

	if err := s.writer.CommitResolution(ctx, conflict, entry); err != nil {
		return nil, err
	}

	if !finalPrice.Equal(conflict.LocalPrice) {
		if err := s.store.CommitPrice(ctx, conflict.TenantID, conflict.EntityID, finalPrice); err != nil {
			// The ledger already holds the resolution; surface the commit
			// failure so the operator retries.
			return nil, err
		}
	}
	if err := s.cache.Invalidate(ctx, conflict.TenantID, conflict.EntityID); err != nil {
		s.logger.Warn("Price cache invalidation failed",
			zap.String("tenant_id", conflict.TenantID.String()),
			zap.String("entity_id", conflict.EntityID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("Conflict resolved manually",
		zap.String("conflict_id", conflict.ID.String()),
		zap.String("tenant_id", conflict.TenantID.String()),
		zap.String("resolution", string(cmd.Resolution)),
		zap.String("final_price", finalPrice.String()),
	)
	return conflict, nil
}

// resolutionPrice maps the requested resolution onto a concrete price.
func resolutionPrice(conflict *pricing.PriceConflict, cmd ResolveConflictCommand) (decimal.Decimal, error) {
	switch cmd.Resolution {
	case pricing.ResolutionTypeBling:
		return conflict.BlingPrice, nil
	case pricing.ResolutionTypeLocal:
		return conflict.LocalPrice, nil
	case pricing.ResolutionTypeCustom:
		if cmd.CustomPrice == nil {
			return decimal.Zero, pricing.ErrInvalidResolution
		}
		if cmd.CustomPrice.IsNegative() {
			return decimal.Zero, pricing.ErrInvalidResolution
		}
		return *cmd.CustomPrice, nil
	default:
		return decimal.Zero, pricing.ErrInvalidResolution
	}
}
