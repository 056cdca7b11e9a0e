package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/blingsync/backend/internal/domain/credential"
	"github.com/blingsync/backend/internal/domain/pricing"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// CreateJobCommand is the input for creating a sync job.
type CreateJobCommand struct {
	TenantID     uuid.UUID
	ConnectionID uuid.UUID
	Type         syncdomain.JobType
	Direction    syncdomain.JobDirection
	// Trigger records what enqueued the job; empty means manual
	Trigger syncdomain.JobTrigger
}

// UpdateConfigurationCommand is the input for editing a tenant's sync
// configuration. Nil fields keep their stored values.
type UpdateConfigurationCommand struct {
	TenantID              uuid.UUID
	BatchSize             *int
	SyncIntervalMinutes   *int
	ConflictResolution    *pricing.ResolutionStrategy
	PriceTolerancePercent *decimal.Decimal
	AutoMarkup            *bool
	MarkupPercentage      *decimal.Decimal
	MaxRetries            *int
}

// JobService manages the sync job queue: creation with per-tenant type
// exclusivity, cancellation, listing and tenant configuration.
type JobService struct {
	jobs        syncdomain.JobRepository
	configs     syncdomain.ConfigurationRepository
	connections credential.ConnectionRepository
	logger      *zap.Logger
}

// NewJobService creates a new JobService
func NewJobService(
	jobs syncdomain.JobRepository,
	configs syncdomain.ConfigurationRepository,
	connections credential.ConnectionRepository,
	logger *zap.Logger,
) *JobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{
		jobs:        jobs,
		configs:     configs,
		connections: connections,
		logger:      logger,
	}
}

// Create enqueues a pending sync job with a configuration snapshot. At most
// one non-terminal job per (tenant, type) exists at a time.
func (s *JobService) Create(ctx context.Context, cmd CreateJobCommand) (*syncdomain.SyncJob, error) {
	if !cmd.Type.IsValid() {
		return nil, errors.New("sync: invalid job type")
	}
	if !cmd.Direction.IsValid() {
		return nil, errors.New("sync: invalid job direction")
	}
	if cmd.Trigger == "" {
		cmd.Trigger = syncdomain.TriggerManual
	}
	if !cmd.Trigger.IsValid() {
		return nil, errors.New("sync: invalid job trigger")
	}

	conn, err := s.connections.FindByID(ctx, cmd.ConnectionID)
	if err != nil {
		return nil, err
	}
	if conn.TenantID != cmd.TenantID {
		return nil, credential.ErrConnectionNotFound
	}
	switch conn.Status {
	case credential.ConnectionStatusRevoked:
		return nil, credential.ErrConnectionRevoked
	case credential.ConnectionStatusExpired:
		return nil, credential.ErrConnectionExpired
	}

	config := s.configuration(ctx, cmd.TenantID)
	job := syncdomain.NewSyncJob(cmd.TenantID, cmd.ConnectionID, cmd.Type, cmd.Direction, config)
	job.Trigger = cmd.Trigger
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	s.logger.Info("Sync job created",
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("job_type", job.Type.String()),
		zap.String("direction", string(job.Direction)),
		zap.String("trigger", string(job.Trigger)),
	)
	return job, nil
}

// TriggerScheduled enqueues the periodic product import for a connection.
// Interval syncs always pull PRODUCTS from Bling; other entity families run
// on demand or via webhooks.
func (s *JobService) TriggerScheduled(ctx context.Context, tenantID, connectionID uuid.UUID) (*syncdomain.SyncJob, error) {
	return s.Create(ctx, CreateJobCommand{
		TenantID:     tenantID,
		ConnectionID: connectionID,
		Type:         syncdomain.JobTypeProducts,
		Direction:    syncdomain.DirectionImport,
		Trigger:      syncdomain.TriggerScheduled,
	})
}

// Cancel requests cancellation of a job. Pending jobs cancel immediately;
// processing jobs are observed by their worker at the next batch boundary.
func (s *JobService) Cancel(ctx context.Context, tenantID, jobID uuid.UUID) (*syncdomain.SyncJob, error) {
	job, err := s.jobs.FindByIDForTenant(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.Cancel(); err != nil {
		return nil, err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, err
	}
	s.logger.Info("Sync job cancelled",
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", tenantID.String()),
	)
	return job, nil
}

// Get returns one job scoped to the tenant.
func (s *JobService) Get(ctx context.Context, tenantID, jobID uuid.UUID) (*syncdomain.SyncJob, error) {
	return s.jobs.FindByIDForTenant(ctx, tenantID, jobID)
}

// List returns jobs for a tenant with pagination.
func (s *JobService) List(ctx context.Context, tenantID uuid.UUID, filter syncdomain.JobFilter) ([]syncdomain.SyncJob, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.jobs.FindAll(ctx, tenantID, filter)
}

// Configuration returns the tenant's sync configuration, defaulted and
// normalized.
func (s *JobService) Configuration(ctx context.Context, tenantID uuid.UUID) syncdomain.Configuration {
	return s.configuration(ctx, tenantID)
}

// UpdateConfiguration applies partial edits to the tenant configuration.
// Running jobs keep their snapshot; only future jobs observe the change.
func (s *JobService) UpdateConfiguration(ctx context.Context, cmd UpdateConfigurationCommand) (*syncdomain.Configuration, error) {
	config := s.configuration(ctx, cmd.TenantID)

	if cmd.BatchSize != nil {
		config.BatchSize = *cmd.BatchSize
	}
	if cmd.SyncIntervalMinutes != nil {
		config.SyncInterval = time.Duration(*cmd.SyncIntervalMinutes) * time.Minute
	}
	if cmd.ConflictResolution != nil {
		if !cmd.ConflictResolution.IsValid() {
			return nil, errors.New("sync: invalid conflict resolution strategy")
		}
		config.ConflictResolution = *cmd.ConflictResolution
	}
	if cmd.PriceTolerancePercent != nil {
		if cmd.PriceTolerancePercent.IsNegative() {
			return nil, errors.New("sync: price tolerance must not be negative")
		}
		config.PriceTolerancePercent = *cmd.PriceTolerancePercent
	}
	if cmd.AutoMarkup != nil {
		config.AutoMarkup = *cmd.AutoMarkup
	}
	if cmd.MarkupPercentage != nil {
		if cmd.MarkupPercentage.IsNegative() {
			return nil, errors.New("sync: markup percentage must not be negative")
		}
		config.MarkupPercentage = *cmd.MarkupPercentage
	}
	if cmd.MaxRetries != nil {
		config.MaxRetries = *cmd.MaxRetries
	}
	config.Normalize()

	if err := s.configs.Save(ctx, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (s *JobService) configuration(ctx context.Context, tenantID uuid.UUID) syncdomain.Configuration {
	config, err := s.configs.FindByTenant(ctx, tenantID)
	if err != nil || config == nil {
		defaulted := syncdomain.DefaultConfiguration(tenantID)
		return defaulted
	}
	copied := *config
	copied.Normalize()
	return copied
}
