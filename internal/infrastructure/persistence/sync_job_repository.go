package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	syncdomain "github.com/blingsync/backend/internal/domain/sync"
	"github.com/blingsync/backend/internal/infrastructure/persistence/models"
)

// GormJobRepository implements sync.JobRepository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// nonTerminalStatuses are the statuses that block a new job of the same type
var nonTerminalStatuses = []string{
	syncdomain.JobStatusPending.String(),
	syncdomain.JobStatusProcessing.String(),
}

// Create persists a new pending job. The active-job check and the insert run
// in one transaction; the partial unique index on (tenant_id, type) over
// non-terminal rows backstops the race between two concurrent creates.
func (r *GormJobRepository) Create(ctx context.Context, job *syncdomain.SyncJob) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.SyncJobModel{}).
			Where("tenant_id = ? AND type = ? AND status IN ?", job.TenantID, job.Type.String(), nonTerminalStatuses).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return syncdomain.ErrJobAlreadyRunning
		}
		if err := tx.Create(models.SyncJobModelFromDomain(job)).Error; err != nil {
			if isUniqueViolation(err) {
				return syncdomain.ErrJobAlreadyRunning
			}
			return err
		}
		return nil
	})
}

// FindByID finds a job by ID
func (r *GormJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.SyncJob, error) {
	var model models.SyncJobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncdomain.ErrJobNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a job by ID within a tenant
func (r *GormJobRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*syncdomain.SyncJob, error) {
	var model models.SyncJobModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, syncdomain.ErrJobNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Claim atomically transitions the job from PENDING to PROCESSING. The
// conditional UPDATE guarantees exactly one of N concurrent claimers sees
// RowsAffected == 1; everyone else gets ErrJobNotClaimable.
func (r *GormJobRepository) Claim(ctx context.Context, id uuid.UUID) (*syncdomain.SyncJob, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.SyncJobModel{}).
		Where("id = ? AND status = ?", id, syncdomain.JobStatusPending.String()).
		Updates(map[string]interface{}{
			"status":                    syncdomain.JobStatusProcessing.String(),
			"started_at":                now,
			"next_retry_at":             nil,
			"error":                     "",
			"progress_total":            0,
			"progress_succeeded":        0,
			"progress_failed":           0,
			"progress_conflict_pending": 0,
			"updated_at":                now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, syncdomain.ErrJobNotClaimable
	}
	return r.FindByID(ctx, id)
}

// Update persists job mutations made by the owning worker
func (r *GormJobRepository) Update(ctx context.Context, job *syncdomain.SyncJob) error {
	job.UpdatedAt = time.Now()
	model := models.SyncJobModelFromDomain(job)
	result := r.db.WithContext(ctx).
		Model(&models.SyncJobModel{}).
		Where("id = ?", job.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return syncdomain.ErrJobNotFound
	}
	return nil
}

// HasActive reports whether a PENDING or PROCESSING job of the given type
// exists for the tenant
func (r *GormJobRepository) HasActive(ctx context.Context, tenantID uuid.UUID, jobType syncdomain.JobType) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SyncJobModel{}).
		Where("tenant_id = ? AND type = ? AND status IN ?", tenantID, jobType.String(), nonTerminalStatuses).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindDue returns jobs ready to run: pending jobs whose NextRetryAt is unset
// or has passed, plus failed jobs with retries remaining whose NextRetryAt
// has passed
func (r *GormJobRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]syncdomain.SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.SyncJobModel
	if err := r.db.WithContext(ctx).
		Where(
			"(status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)) OR (status = ? AND retry_count < max_retries AND next_retry_at <= ?)",
			syncdomain.JobStatusPending.String(), now,
			syncdomain.JobStatusFailed.String(), now,
		).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	jobs := make([]syncdomain.SyncJob, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, *rows[i].ToDomain())
	}
	return jobs, nil
}

// FindAll lists jobs for a tenant with optional type and status filters
func (r *GormJobRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter syncdomain.JobFilter) ([]syncdomain.SyncJob, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.SyncJobModel{}).
		Where("tenant_id = ?", tenantID)

	if filter.Type != nil {
		query = query.Where("type = ?", filter.Type.String())
	}
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
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

	var rows []models.SyncJobModel
	if err := query.
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	jobs := make([]syncdomain.SyncJob, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, *rows[i].ToDomain())
	}
	return jobs, total, nil
}

// Ensure GormJobRepository implements sync.JobRepository
var _ syncdomain.JobRepository = (*GormJobRepository)(nil)
