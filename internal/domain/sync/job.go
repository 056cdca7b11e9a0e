package sync

import (
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Sync Errors
// ---------------------------------------------------------------------------

var (
	// ErrJobNotFound indicates the job does not exist
	ErrJobNotFound = errors.New("sync: job not found")
	// ErrJobAlreadyRunning indicates another job of the same type is already
	// processing for the tenant
	ErrJobAlreadyRunning = errors.New("sync: job of this type already running for tenant")
	// ErrJobNotClaimable indicates the job was claimed by another worker or
	// is no longer pending
	ErrJobNotClaimable = errors.New("sync: job is not claimable")
	// ErrJobTerminal indicates the job is in a terminal state
	ErrJobTerminal = errors.New("sync: job is in a terminal state")
	// ErrRetriesExhausted indicates retry_count reached max_retries
	ErrRetriesExhausted = errors.New("sync: retries exhausted")
	// ErrConfigurationNotFound indicates the tenant has no sync configuration
	ErrConfigurationNotFound = errors.New("sync: configuration not found")
)

// ---------------------------------------------------------------------------
// JobType / JobDirection / JobStatus
// ---------------------------------------------------------------------------

// JobType represents the entity family a sync job processes
type JobType string

const (
	JobTypeProducts  JobType = "PRODUCTS"
	JobTypeOrders    JobType = "ORDERS"
	JobTypeContacts  JobType = "CONTACTS"
	JobTypeInventory JobType = "INVENTORY"
)

// IsValid returns true if the job type is valid
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeProducts, JobTypeOrders, JobTypeContacts, JobTypeInventory:
		return true
	default:
		return false
	}
}

// String returns the string representation of JobType
func (t JobType) String() string {
	return string(t)
}

// JobDirection represents the direction of data flow for a job
type JobDirection string

const (
	// DirectionImport pulls entities from Bling into the local store
	DirectionImport JobDirection = "IMPORT"
	// DirectionExport pushes local entities to Bling
	DirectionExport JobDirection = "EXPORT"
	// DirectionBidirectional does both in one run
	DirectionBidirectional JobDirection = "BIDIRECTIONAL"
)

// IsValid returns true if the direction is valid
func (d JobDirection) IsValid() bool {
	switch d {
	case DirectionImport, DirectionExport, DirectionBidirectional:
		return true
	default:
		return false
	}
}

// JobTrigger records what caused a job to be enqueued. Webhook-triggered jobs
// tag their price ledger entries with the webhook source.
type JobTrigger string

const (
	// TriggerManual means an operator enqueued the job via the API
	TriggerManual JobTrigger = "MANUAL"
	// TriggerScheduled means the interval scheduler enqueued the job
	TriggerScheduled JobTrigger = "SCHEDULED"
	// TriggerWebhook means a Bling entity-change notification enqueued the job
	TriggerWebhook JobTrigger = "WEBHOOK"
)

// IsValid returns true if the trigger is valid
func (t JobTrigger) IsValid() bool {
	switch t {
	case TriggerManual, TriggerScheduled, TriggerWebhook:
		return true
	default:
		return false
	}
}

// JobStatus represents the lifecycle status of a sync job
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

// IsValid returns true if the status is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

// Progress counts processed items for a job. ConflictPending items are
// neither successes nor failures; they await manual resolution.
type Progress struct {
	Total           int `json:"total"`
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
	ConflictPending int `json:"conflict_pending"`
}

// ---------------------------------------------------------------------------
// Backoff
// ---------------------------------------------------------------------------

// Retry backoff constants: delay = base * 2^retryCount + jitter(0, base),
// capped at maxRetryDelay.
const (
	// DefaultRetryBase is the base delay for the first retry
	DefaultRetryBase = 30 * time.Second
	// MaxRetryDelay caps the exponential growth
	MaxRetryDelay = 30 * time.Minute
	// DefaultMaxRetries bounds how often a failed job is re-queued
	DefaultMaxRetries = 3
)

// NextRetryDelay computes the exponential backoff delay with jitter for the
// given retry count (0-indexed: the first retry uses retryCount 0).
func NextRetryDelay(retryCount int, base time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultRetryBase
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= MaxRetryDelay {
			delay = MaxRetryDelay
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(base)))
	if delay+jitter > MaxRetryDelay {
		return MaxRetryDelay
	}
	return delay + jitter
}

// ---------------------------------------------------------------------------
// SyncJob
// ---------------------------------------------------------------------------

// SyncJob represents one run of a sync task for one tenant. It is mutated
// exclusively by the orchestrator worker that claimed it; a job never leaves
// a terminal state.
type SyncJob struct {
	// ID is the unique identifier of the job
	ID uuid.UUID
	// TenantID is the tenant this job belongs to
	TenantID uuid.UUID
	// ConnectionID references the ERP connection the job uses
	ConnectionID uuid.UUID
	// Type is the entity family being synced
	Type JobType
	// Direction is the data flow direction
	Direction JobDirection
	// Trigger records what enqueued the job
	Trigger JobTrigger
	// Status is the lifecycle status
	Status JobStatus
	// Progress counts processed items
	Progress Progress
	// RetryCount counts completed retry attempts; never exceeds MaxRetries
	RetryCount int
	// MaxRetries bounds re-queueing of failed runs
	MaxRetries int
	// NextRetryAt is set only while status is FAILED with retries remaining
	NextRetryAt *time.Time
	// Error holds the fatal error of the last failed run
	Error string
	// Config is the per-job snapshot of the tenant configuration; a mid-job
	// configuration edit cannot change in-flight behavior
	Config Configuration
	// CorrelationID ties logs, history and conflicts to this run
	CorrelationID string
	// StartedAt is when a worker claimed the job
	StartedAt *time.Time
	// CompletedAt is when the job reached a terminal state
	CompletedAt *time.Time
	// CreatedAt is when the job was created
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated
	UpdatedAt time.Time
}

// NewSyncJob creates a pending job with a configuration snapshot. The trigger
// defaults to manual; callers acting on behalf of the scheduler or a webhook
// set it explicitly.
func NewSyncJob(tenantID, connectionID uuid.UUID, jobType JobType, direction JobDirection, config Configuration) *SyncJob {
	now := time.Now()
	return &SyncJob{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ConnectionID:  connectionID,
		Type:          jobType,
		Direction:     direction,
		Trigger:       TriggerManual,
		Status:        JobStatusPending,
		MaxRetries:    config.MaxRetries,
		Config:        config,
		CorrelationID: uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsTerminal returns true once the job can never transition again:
// completed, cancelled, or failed with retries exhausted.
func (j *SyncJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusCancelled:
		return true
	case JobStatusFailed:
		return j.RetryCount >= j.MaxRetries
	default:
		return false
	}
}

// Start marks the job as claimed by a worker. Progress restarts from zero:
// a retried run re-walks the pages, it never continues earlier counters.
func (j *SyncJob) Start() error {
	if j.Status != JobStatusPending {
		return ErrJobNotClaimable
	}
	now := time.Now()
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	j.NextRetryAt = nil
	j.Error = ""
	j.Progress = Progress{}
	j.UpdatedAt = now
	return nil
}

// Complete marks the job as successfully finished. Item-level failures in
// Progress.Failed do not prevent completion.
func (j *SyncJob) Complete() error {
	if j.Status != JobStatusProcessing {
		return ErrJobTerminal
	}
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// Fail records a fatal error. If retries remain the job re-enters PENDING
// with NextRetryAt set per exponential backoff; otherwise it becomes
// terminally FAILED.
func (j *SyncJob) Fail(errMsg string, retryBase time.Duration) {
	now := time.Now()
	j.Error = errMsg
	j.UpdatedAt = now

	if j.RetryCount < j.MaxRetries {
		delay := NextRetryDelay(j.RetryCount, retryBase)
		j.RetryCount++
		next := now.Add(delay)
		j.Status = JobStatusFailed
		j.NextRetryAt = &next
		return
	}

	j.Status = JobStatusFailed
	j.NextRetryAt = nil
	j.CompletedAt = &now
}

// Requeue moves a failed-with-retries-remaining job back to PENDING so a
// worker can claim it once NextRetryAt passes.
func (j *SyncJob) Requeue() error {
	if j.Status != JobStatusFailed || j.IsTerminal() {
		return ErrJobTerminal
	}
	j.Status = JobStatusPending
	j.UpdatedAt = time.Now()
	return nil
}

// Cancel marks the job cancelled. Observed cooperatively by workers at batch
// boundaries; terminal jobs cannot be cancelled.
func (j *SyncJob) Cancel() error {
	if j.IsTerminal() {
		return ErrJobTerminal
	}
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}
