package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blingsync/backend/internal/domain/credential"
	"github.com/blingsync/backend/internal/infrastructure/persistence/models"
)

// GormConnectionRepository implements credential.ConnectionRepository using GORM
type GormConnectionRepository struct {
	db *gorm.DB
}

// NewGormConnectionRepository creates a new GormConnectionRepository
func NewGormConnectionRepository(db *gorm.DB) *GormConnectionRepository {
	return &GormConnectionRepository{db: db}
}

// Save creates a new connection. The partial unique index on
// (tenant_id, client_id) WHERE status IN ('PENDING','ACTIVE') enforces the
// one-active-connection invariant; a violation maps to
// ErrConnectionAlreadyActive.
func (r *GormConnectionRepository) Save(ctx context.Context, conn *credential.Connection) error {
	model := models.ERPConnectionModelFromDomain(conn)
	if model.Version == 0 {
		model.Version = 1
		conn.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return credential.ErrConnectionAlreadyActive
		}
		return err
	}
	return nil
}

// FindByID finds a connection by its ID
func (r *GormConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*credential.Connection, error) {
	var model models.ERPConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, credential.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByTenantAndClient finds the single active connection for a
// (tenant, client id) pair
func (r *GormConnectionRepository) FindActiveByTenantAndClient(ctx context.Context, tenantID uuid.UUID, clientID string) (*credential.Connection, error) {
	var model models.ERPConnectionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND client_id = ? AND status = ?", tenantID, clientID, credential.ConnectionStatusActive.String()).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, credential.ErrConnectionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByTenant finds all connections for a tenant
func (r *GormConnectionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]credential.Connection, error) {
	var rows []models.ERPConnectionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	connections := make([]credential.Connection, 0, len(rows))
	for i := range rows {
		connections = append(connections, *rows[i].ToDomain())
	}
	return connections, nil
}

// FindActive lists ACTIVE connections across all tenants
func (r *GormConnectionRepository) FindActive(ctx context.Context) ([]credential.Connection, error) {
	var rows []models.ERPConnectionModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", credential.ConnectionStatusActive.String()).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	connections := make([]credential.Connection, 0, len(rows))
	for i := range rows {
		connections = append(connections, *rows[i].ToDomain())
	}
	return connections, nil
}

// UpdateVersioned persists the connection only if the stored version still
// matches. On success conn.Version is advanced to the stored value.
func (r *GormConnectionRepository) UpdateVersioned(ctx context.Context, conn *credential.Connection) error {
	model := models.ERPConnectionModelFromDomain(conn)

	result := r.db.WithContext(ctx).
		Model(&models.ERPConnectionModel{}).
		Where("id = ? AND version = ?", conn.ID, conn.Version).
		Updates(map[string]interface{}{
			"encrypted_client_secret": model.EncryptedClientSecret,
			"encrypted_access_token":  model.EncryptedAccessToken,
			"encrypted_refresh_token": model.EncryptedRefreshToken,
			"token_expires_at":        model.TokenExpiresAt,
			"scopes":                  model.Scopes,
			"status":                  model.Status,
			"error_count":             model.ErrorCount,
			"version":                 conn.Version + 1,
			"updated_at":              model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return credential.ErrVersionConflict
	}
	conn.Version++
	return nil
}

// TouchLastSync updates last_sync_at without bumping the version
func (r *GormConnectionRepository) TouchLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.ERPConnectionModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sync_at": at,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return credential.ErrConnectionNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a postgres unique constraint error
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "duplicate key value")
}

// Ensure GormConnectionRepository implements credential.ConnectionRepository
var _ credential.ConnectionRepository = (*GormConnectionRepository)(nil)
