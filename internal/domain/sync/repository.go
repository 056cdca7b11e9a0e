package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobFilter defines filter criteria for listing jobs
type JobFilter struct {
	// Type filters by job type (optional)
	Type *JobType
	// Status filters by status (optional)
	Status *JobStatus
	// Page number (1-indexed)
	Page int
	// Page size
	PageSize int
}

// JobRepository defines the persistence port for sync jobs.
type JobRepository interface {
	// Create persists a new pending job. Fails with ErrJobAlreadyRunning when
	// a non-terminal job of the same (tenant, type) exists.
	Create(ctx context.Context, job *SyncJob) error

	// FindByID finds a job by ID
	FindByID(ctx context.Context, id uuid.UUID) (*SyncJob, error)

	// FindByIDForTenant finds a job by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*SyncJob, error)

	// Claim atomically transitions the job from PENDING to PROCESSING via a
	// conditional update. Exactly one of N concurrent claimers succeeds; the
	// rest get ErrJobNotClaimable.
	Claim(ctx context.Context, id uuid.UUID) (*SyncJob, error)

	// Update persists job mutations made by the owning worker
	Update(ctx context.Context, job *SyncJob) error

	// HasActive reports whether a PENDING or PROCESSING job of the given type
	// exists for the tenant
	HasActive(ctx context.Context, tenantID uuid.UUID, jobType JobType) (bool, error)

	// FindDue returns jobs ready to run, oldest first: pending jobs whose
	// NextRetryAt is unset or has passed, and failed jobs with retries
	// remaining whose NextRetryAt has passed (the dispatcher requeues those)
	FindDue(ctx context.Context, now time.Time, limit int) ([]SyncJob, error)

	// FindAll lists jobs for a tenant
	FindAll(ctx context.Context, tenantID uuid.UUID, filter JobFilter) ([]SyncJob, int64, error)
}

// LogRepository defines the persistence port for the sync_logs ledger.
type LogRepository interface {
	// Append adds a log entry
	Append(ctx context.Context, entry *LogEntry) error

	// FindByJob lists entries for a job run, oldest first
	FindByJob(ctx context.Context, tenantID, jobID uuid.UUID) ([]LogEntry, error)
}

// MetricRepository defines the persistence port for the sync_metrics ledger.
type MetricRepository interface {
	// Record adds a metric row for a terminal job
	Record(ctx context.Context, metric *Metric) error
}
