package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// JobRunner runs one claimed sync job to completion. Implemented by the sync
// orchestrator; the claim inside Run makes duplicate dispatch harmless.
type JobRunner interface {
	Run(ctx context.Context, jobID uuid.UUID) error
}

// DispatcherConfig holds configuration for the sync job dispatcher
type DispatcherConfig struct {
	// Enabled indicates if the dispatcher is enabled
	Enabled bool
	// PollInterval is how often the dispatcher scans for due jobs
	PollInterval time.Duration
	// Workers is the number of concurrent job executors
	Workers int
	// DispatchLimit caps how many due jobs one scan picks up
	DispatchLimit int
	// JobTimeout is the maximum time a job run may take
	JobTimeout time.Duration
}

// DefaultDispatcherConfig returns default configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Enabled:       true,
		PollInterval:  30 * time.Second,
		Workers:       4,
		DispatchLimit: 20,
		JobTimeout:    15 * time.Minute,
	}
}

// Validate validates the configuration
func (c *DispatcherConfig) Validate() error {
	if c.PollInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.Workers <= 0 {
		return ErrInvalidConfig
	}
	if c.DispatchLimit <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Dispatcher scans for due sync jobs and feeds them to a worker pool. Jobs
// that failed with retries remaining are requeued once their backoff delay
// has passed. Multiple dispatcher instances are safe: the orchestrator's
// atomic claim lets exactly one worker win each job.
type Dispatcher struct {
	config DispatcherConfig
	jobs   syncdomain.JobRepository
	runner JobRunner
	logger *zap.Logger

	queue     chan uuid.UUID
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewDispatcher creates a new sync job dispatcher
func NewDispatcher(config DispatcherConfig, jobs syncdomain.JobRepository, runner JobRunner, logger *zap.Logger) (*Dispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		config: config,
		jobs:   jobs,
		runner: runner,
		logger: logger,
		queue:  make(chan uuid.UUID, config.DispatchLimit*2),
	}, nil
}

// Start starts the poll loop and the worker pool
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = true
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	d.wg.Add(1)
	go d.pollLoop(ctx)

	d.logger.Info("Sync dispatcher started",
		zap.Int("workers", d.config.Workers),
		zap.Duration("poll_interval", d.config.PollInterval),
		zap.Duration("job_timeout", d.config.JobTimeout),
	)
	return nil
}

// Stop gracefully stops the dispatcher
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = false
	d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Sync dispatcher stopped gracefully")
		return nil
	case <-ctx.Done():
		d.logger.Warn("Sync dispatcher stop timed out")
		return ctx.Err()
	}
}

// pollLoop scans for due jobs on every tick
func (d *Dispatcher) pollLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	// One immediate scan so a restart picks up backlog without waiting
	d.dispatchDue(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.dispatchDue(ctx)
		}
	}
}

// dispatchDue finds due jobs, requeues retry-due failures and enqueues
// everything claimable
func (d *Dispatcher) dispatchDue(ctx context.Context) {
	due, err := d.jobs.FindDue(ctx, time.Now(), d.config.DispatchLimit)
	if err != nil {
		d.logger.Error("Failed to scan for due sync jobs", zap.Error(err))
		return
	}

	for i := range due {
		job := due[i]

		if job.Status == syncdomain.JobStatusFailed {
			if err := job.Requeue(); err != nil {
				continue
			}
			if err := d.jobs.Update(ctx, &job); err != nil {
				d.logger.Error("Failed to requeue sync job",
					zap.String("job_id", job.ID.String()),
					zap.Error(err),
				)
				continue
			}
			d.logger.Info("Sync job requeued for retry",
				zap.String("job_id", job.ID.String()),
				zap.Int("retry_count", job.RetryCount),
			)
		}

		select {
		case d.queue <- job.ID:
		default:
			// Queue full: the job stays due and the next tick picks it up
			d.logger.Debug("Dispatch queue full, deferring job",
				zap.String("job_id", job.ID.String()),
			)
			return
		}
	}
}

// Submit enqueues a job for immediate execution, ahead of the next poll tick
func (d *Dispatcher) Submit(jobID uuid.UUID) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return ErrDispatcherNotRunning
	}
	d.mu.Unlock()

	select {
	case d.queue <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// worker runs jobs from the queue
func (d *Dispatcher) worker(ctx context.Context, workerID int) {
	defer d.wg.Done()

	d.logger.Debug("Sync worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("Sync worker stopping", zap.Int("worker_id", workerID))
			return
		case jobID := <-d.queue:
			d.runJob(ctx, jobID, workerID)
		}
	}
}

// runJob executes one job with a bounded timeout
func (d *Dispatcher) runJob(ctx context.Context, jobID uuid.UUID, workerID int) {
	jobCtx, cancel := context.WithTimeout(ctx, d.config.JobTimeout)
	defer cancel()

	err := d.runner.Run(jobCtx, jobID)
	switch {
	case err == nil:
		return
	case errors.Is(err, syncdomain.ErrJobNotClaimable):
		// Another worker won the claim, or the job was cancelled first
		d.logger.Debug("Sync job already claimed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", jobID.String()),
		)
	case errors.Is(err, syncdomain.ErrJobNotFound):
		d.logger.Warn("Dispatched sync job no longer exists",
			zap.String("job_id", jobID.String()),
		)
	default:
		// Run failures were already persisted on the job row; this is the
		// dispatcher-level trace only.
		d.logger.Error("Sync job run returned error",
			zap.Int("worker_id", workerID),
			zap.String("job_id", jobID.String()),
			zap.Error(err),
		)
	}
}
