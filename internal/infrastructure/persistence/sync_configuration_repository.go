package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	syncdomain "github.com/blingsync/backend/internal/domain/sync"
	"github.com/blingsync/backend/internal/infrastructure/persistence/models"
)

// GormConfigurationRepository implements sync.ConfigurationRepository using GORM
type GormConfigurationRepository struct {
	db *gorm.DB
}

// NewGormConfigurationRepository creates a new GormConfigurationRepository
func NewGormConfigurationRepository(db *gorm.DB) *GormConfigurationRepository {
	return &GormConfigurationRepository{db: db}
}

// FindByTenant returns the tenant's configuration, or ErrConfigurationNotFound
func (r *GormConfigurationRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*syncdomain.Configuration, error) {
	var model models.SyncConfigurationModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncdomain.ErrConfigurationNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates the tenant's configuration (one row per tenant)
func (r *GormConfigurationRepository) Save(ctx context.Context, config *syncdomain.Configuration) error {
	model := models.SyncConfigurationModelFromDomain(config)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// Ensure GormConfigurationRepository implements sync.ConfigurationRepository
var _ syncdomain.ConfigurationRepository = (*GormConfigurationRepository)(nil)
