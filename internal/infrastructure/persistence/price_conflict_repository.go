package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blingsync/backend/internal/domain/pricing"
	"github.com/blingsync/backend/internal/infrastructure/persistence/models"
)

// GormConflictRepository implements pricing.ConflictRepository using GORM
type GormConflictRepository struct {
	db *gorm.DB
}

// NewGormConflictRepository creates a new GormConflictRepository
func NewGormConflictRepository(db *gorm.DB) *GormConflictRepository {
	return &GormConflictRepository{db: db}
}

// Save creates a conflict row
func (r *GormConflictRepository) Save(ctx context.Context, conflict *pricing.PriceConflict) error {
	return r.db.WithContext(ctx).Create(models.PriceConflictModelFromDomain(conflict)).Error
}

// FindByID finds a conflict by ID
func (r *GormConflictRepository) FindByID(ctx context.Context, id uuid.UUID) (*pricing.PriceConflict, error) {
	var model models.PriceConflictModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pricing.ErrConflictNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists conflicts for a tenant with optional filters, newest first
func (r *GormConflictRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter pricing.ConflictFilter) ([]pricing.PriceConflict, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PriceConflictModel{}).
		Where("tenant_id = ?", tenantID)

	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", string(*filter.Type))
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var rows []models.PriceConflictModel
	if err := query.
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	conflicts := make([]pricing.PriceConflict, 0, len(rows))
	for i := range rows {
		conflicts = append(conflicts, *rows[i].ToDomain())
	}
	return conflicts, total, nil
}

// MarkResolved persists the resolution fields of an already-resolved conflict.
// The resolved = false guard makes a second resolution attempt lose even if
// two operators race on the same conflict.
func (r *GormConflictRepository) MarkResolved(ctx context.Context, conflict *pricing.PriceConflict) error {
	return markResolved(r.db.WithContext(ctx), conflict)
}

// markResolved runs the guarded resolution update on the given handle so the
// conflict writer can reuse it inside a transaction.
func markResolved(tx *gorm.DB, conflict *pricing.PriceConflict) error {
	result := tx.
		Model(&models.PriceConflictModel{}).
		Where("id = ? AND resolved = ?", conflict.ID, false).
		Updates(map[string]interface{}{
			"resolved":         true,
			"resolution_type":  string(conflict.ResolutionType),
			"resolution_price": conflict.ResolutionPrice,
			"resolved_by":      conflict.ResolvedBy,
			"resolved_at":      conflict.ResolvedAt,
			"sync_job_id":      conflict.SyncJobID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pricing.ErrConflictAlreadyResolved
	}
	return nil
}

// Ensure GormConflictRepository implements pricing.ConflictRepository
var _ pricing.ConflictRepository = (*GormConflictRepository)(nil)

// GormConflictWriter implements pricing.ConflictWriter. The conflict
// resolution and its history entry commit in one transaction: both rows or
// neither.
type GormConflictWriter struct {
	db *gorm.DB
}

// NewGormConflictWriter creates a new GormConflictWriter
func NewGormConflictWriter(db *gorm.DB) *GormConflictWriter {
	return &GormConflictWriter{db: db}
}

// CommitResolution writes the conflict and history entry in one transaction.
// A conflict row that does not exist yet (synchronous resolution during a
// sync run) is inserted; an existing row is flipped to resolved.
func (w *GormConflictWriter) CommitResolution(ctx context.Context, conflict *pricing.PriceConflict, entry *pricing.PriceHistory) error {
	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.PriceConflictModel{}).
			Where("id = ?", conflict.ID).
			Count(&count).Error; err != nil {
			return err
		}

		if count == 0 {
			if err := tx.Create(models.PriceConflictModelFromDomain(conflict)).Error; err != nil {
				return err
			}
		} else if err := markResolved(tx, conflict); err != nil {
			return err
		}

		return tx.Create(models.PriceHistoryModelFromDomain(entry)).Error
	})
}

// Ensure GormConflictWriter implements pricing.ConflictWriter
var _ pricing.ConflictWriter = (*GormConflictWriter)(nil)
