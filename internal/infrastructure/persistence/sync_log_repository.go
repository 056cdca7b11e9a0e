package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	syncdomain "github.com/blingsync/backend/internal/domain/sync"
	"github.com/blingsync/backend/internal/infrastructure/persistence/models"
)

// GormLogRepository implements sync.LogRepository using GORM. The sync_logs
// table is append-only; nothing here updates or deletes rows.
type GormLogRepository struct {
	db *gorm.DB
}

// NewGormLogRepository creates a new GormLogRepository
func NewGormLogRepository(db *gorm.DB) *GormLogRepository {
	return &GormLogRepository{db: db}
}

// Append adds a log entry
func (r *GormLogRepository) Append(ctx context.Context, entry *syncdomain.LogEntry) error {
	return r.db.WithContext(ctx).Create(models.SyncLogModelFromDomain(entry)).Error
}

// FindByJob lists entries for a job run, oldest first
func (r *GormLogRepository) FindByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]syncdomain.LogEntry, error) {
	var rows []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND job_id = ?", tenantID, jobID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]syncdomain.LogEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *rows[i].ToDomain())
	}
	return entries, nil
}

// Ensure GormLogRepository implements sync.LogRepository
var _ syncdomain.LogRepository = (*GormLogRepository)(nil)
