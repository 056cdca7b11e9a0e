package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blingsync/backend/internal/domain/pricing"
	"github.com/blingsync/backend/internal/infrastructure/persistence/models"
)

// GormHistoryRepository implements pricing.HistoryRepository using GORM. The
// price_history table is an append-only ledger.
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a new GormHistoryRepository
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// Append adds a ledger entry
func (r *GormHistoryRepository) Append(ctx context.Context, entry *pricing.PriceHistory) error {
	return r.db.WithContext(ctx).Create(models.PriceHistoryModelFromDomain(entry)).Error
}

// FindByProduct lists entries for a product, newest first
func (r *GormHistoryRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID, limit int) ([]pricing.PriceHistory, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.PriceHistoryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]pricing.PriceHistory, 0, len(rows))
	for i := range rows {
		entries = append(entries, *rows[i].ToDomain())
	}
	return entries, nil
}

// LastChange returns the most recent entry for a product, or nil when the
// product has no history yet
func (r *GormHistoryRepository) LastChange(ctx context.Context, tenantID, productID uuid.UUID) (*pricing.PriceHistory, error) {
	var model models.PriceHistoryModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormHistoryRepository implements pricing.HistoryRepository
var _ pricing.HistoryRepository = (*GormHistoryRepository)(nil)
