package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	syncdomain "github.com/blingsync/backend/internal/domain/sync"
	"github.com/blingsync/backend/internal/infrastructure/persistence/models"
)

// GormLocalStore implements sync.LocalStore over the synced_entities table.
// It never writes the committed price outside CommitPrice; upserts from
// remote data only touch descriptive fields.
type GormLocalStore struct {
	db *gorm.DB
}

// NewGormLocalStore creates a new GormLocalStore
func NewGormLocalStore(db *gorm.DB) *GormLocalStore {
	return &GormLocalStore{db: db}
}

// FindByRemoteID finds the local entity mapped to a Bling id, or nil
func (s *GormLocalStore) FindByRemoteID(ctx context.Context, tenantID uuid.UUID, jobType syncdomain.JobType, remoteID string) (*syncdomain.LocalEntity, error) {
	var model models.SyncedEntityModel
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND remote_id = ?", tenantID, jobType.String(), remoteID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpsertFromRemote creates or updates the local entity from a remote record.
// The committed price column is deliberately left alone; only reconciliation
// writes it, through CommitPrice.
func (s *GormLocalStore) UpsertFromRemote(ctx context.Context, tenantID uuid.UUID, jobType syncdomain.JobType, remote syncdomain.RemoteEntity) (*syncdomain.LocalEntity, error) {
	now := time.Now()

	var model models.SyncedEntityModel
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND remote_id = ?", tenantID, jobType.String(), remote.RemoteID).
		First(&model).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		model = models.SyncedEntityModel{
			ID:             uuid.New(),
			TenantID:       tenantID,
			EntityType:     jobType.String(),
			RemoteID:       remote.RemoteID,
			SKU:            remote.SKU,
			Name:           remote.Name,
			CostPrice:      remote.CostPrice,
			RemoteSyncedAt: now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if createErr := s.db.WithContext(ctx).Create(&model).Error; createErr != nil {
			return nil, createErr
		}
		return model.ToDomain(), nil
	}
	if err != nil {
		return nil, err
	}

	result := s.db.WithContext(ctx).
		Model(&models.SyncedEntityModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"sku":              remote.SKU,
			"name":             remote.Name,
			"cost_price":       remote.CostPrice,
			"remote_synced_at": now,
			"updated_at":       now,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	model.SKU = remote.SKU
	model.Name = remote.Name
	model.CostPrice = remote.CostPrice
	model.RemoteSyncedAt = now
	model.UpdatedAt = now
	return model.ToDomain(), nil
}

// CommitPrice writes the authoritative price decided by reconciliation
func (s *GormLocalStore) CommitPrice(ctx context.Context, tenantID, entityID uuid.UUID, price decimal.Decimal) error {
	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.SyncedEntityModel{}).
		Where("tenant_id = ? AND id = ?", tenantID, entityID).
		Updates(map[string]interface{}{
			"price":            price,
			"price_updated_at": now,
			"updated_at":       now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListForExport returns local entities modified since the given time, oldest
// modification first so export batches page deterministically
func (s *GormLocalStore) ListForExport(ctx context.Context, tenantID uuid.UUID, jobType syncdomain.JobType, since time.Time, limit, offset int) ([]syncdomain.LocalEntity, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []models.SyncedEntityModel
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND entity_type = ? AND updated_at > ?", tenantID, jobType.String(), since).
		Order("updated_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entities := make([]syncdomain.LocalEntity, 0, len(rows))
	for i := range rows {
		entities = append(entities, *rows[i].ToDomain())
	}
	return entities, nil
}

// Ensure GormLocalStore implements sync.LocalStore
var _ syncdomain.LocalStore = (*GormLocalStore)(nil)
