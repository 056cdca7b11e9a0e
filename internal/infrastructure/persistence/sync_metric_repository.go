package persistence

import (
	"context"

	"gorm.io/gorm"

	syncdomain "github.com/blingsync/backend/internal/domain/sync"
	"github.com/blingsync/backend/internal/infrastructure/persistence/models"
)

// GormMetricRepository implements sync.MetricRepository using GORM
type GormMetricRepository struct {
	db *gorm.DB
}

// NewGormMetricRepository creates a new GormMetricRepository
func NewGormMetricRepository(db *gorm.DB) *GormMetricRepository {
	return &GormMetricRepository{db: db}
}

// Record adds a metric row for a terminal job
func (r *GormMetricRepository) Record(ctx context.Context, metric *syncdomain.Metric) error {
	return r.db.WithContext(ctx).Create(models.SyncMetricModelFromDomain(metric)).Error
}

// Ensure GormMetricRepository implements sync.MetricRepository
var _ syncdomain.MetricRepository = (*GormMetricRepository)(nil)
