package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blingsync/backend/internal/domain/credential"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// SyncTrigger enqueues the periodic sync job for a connection. Implemented
// by the sync job service, which enforces per-tenant type exclusivity.
type SyncTrigger interface {
	TriggerScheduled(ctx context.Context, tenantID, connectionID uuid.UUID) (*syncdomain.SyncJob, error)
}

// SchedulerConfig holds configuration for the interval scheduler
type SchedulerConfig struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// ScanInterval is how often the scheduler checks tenants for due syncs
	ScanInterval time.Duration
}

// DefaultSchedulerConfig returns default configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:      true,
		ScanInterval: time.Minute,
	}
}

// Validate validates the configuration
func (c *SchedulerConfig) Validate() error {
	if c.ScanInterval <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Scheduler triggers sync jobs on each tenant's configured interval. A
// connection is due when its last successful sync is older than the tenant's
// SyncInterval; connections that have never synced are due immediately. The
// job service absorbs double triggers, so overlapping scans are harmless.
type Scheduler struct {
	config      SchedulerConfig
	connections credential.ConnectionRepository
	configs     syncdomain.ConfigurationRepository
	trigger     SyncTrigger
	logger      *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new interval scheduler
func NewScheduler(
	config SchedulerConfig,
	connections credential.ConnectionRepository,
	configs syncdomain.ConfigurationRepository,
	trigger SyncTrigger,
	logger *zap.Logger,
) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config:      config,
		connections: connections,
		configs:     configs,
		trigger:     trigger,
		logger:      logger,
	}, nil
}

// Start starts the scan loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.scanLoop(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Duration("scan_interval", s.config.ScanInterval),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) scanLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

// scan triggers a sync for every active connection whose tenant interval has
// elapsed since the last successful sync
func (s *Scheduler) scan(ctx context.Context) {
	conns, err := s.connections.FindActive(ctx)
	if err != nil {
		s.logger.Error("Failed to list active connections for scheduling", zap.Error(err))
		return
	}

	now := time.Now()
	for i := range conns {
		conn := &conns[i]

		if !s.isDue(ctx, conn, now) {
			continue
		}

		job, err := s.trigger.TriggerScheduled(ctx, conn.TenantID, conn.ID)
		switch {
		case err == nil:
			s.logger.Info("Scheduled sync job triggered",
				zap.String("job_id", job.ID.String()),
				zap.String("tenant_id", conn.TenantID.String()),
				zap.String("connection_id", conn.ID.String()),
			)
		case errors.Is(err, syncdomain.ErrJobAlreadyRunning):
			// A previous run is still in flight; the next scan retries
			s.logger.Debug("Scheduled sync skipped, job already active",
				zap.String("tenant_id", conn.TenantID.String()),
			)
		default:
			s.logger.Warn("Failed to trigger scheduled sync",
				zap.String("tenant_id", conn.TenantID.String()),
				zap.String("connection_id", conn.ID.String()),
				zap.Error(err),
			)
		}
	}
}

func (s *Scheduler) isDue(ctx context.Context, conn *credential.Connection, now time.Time) bool {
	interval := syncdomain.DefaultConfiguration(conn.TenantID).SyncInterval
	if config, err := s.configs.FindByTenant(ctx, conn.TenantID); err == nil && config != nil {
		copied := *config
		copied.Normalize()
		interval = copied.SyncInterval
	}

	if conn.LastSyncAt == nil {
		return true
	}
	return now.Sub(*conn.LastSyncAt) >= interval
}
