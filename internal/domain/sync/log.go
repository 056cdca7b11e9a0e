package sync

import (
	"time"

	"github.com/google/uuid"
)

// LogStatus summarizes the outcome recorded in a sync log entry
type LogStatus string

const (
	LogStatusSuccess LogStatus = "SUCCESS"
	LogStatusPartial LogStatus = "PARTIAL"
	LogStatusFailed  LogStatus = "FAILED"
	LogStatusSkipped LogStatus = "SKIPPED"
)

// IsValid returns true if the log status is valid
func (s LogStatus) IsValid() bool {
	switch s {
	case LogStatusSuccess, LogStatusPartial, LogStatusFailed, LogStatusSkipped:
		return true
	default:
		return false
	}
}

// LogEntry is one append-only sync_logs row. Every failure produces an entry
// carrying enough detail to reconstruct root cause; nothing is silently
// dropped.
type LogEntry struct {
	// ID is the unique identifier of the entry
	ID uuid.UUID
	// TenantID is the tenant this entry belongs to
	TenantID uuid.UUID
	// JobID references the sync job run
	JobID uuid.UUID
	// EntityType names the kind of entity processed, when item-level
	EntityType string
	// EntityID identifies the entity processed, when item-level
	EntityID string
	// Status summarizes the recorded outcome
	Status LogStatus
	// Message is a human-readable description or error message
	Message string
	// CorrelationID ties the entry to the job run
	CorrelationID string
	// CreatedAt is when the entry was written
	CreatedAt time.Time
}

// NewLogEntry creates a sync log entry for a job run.
func NewLogEntry(tenantID, jobID uuid.UUID, status LogStatus, message, correlationID string) *LogEntry {
	return &LogEntry{
		ID:            uuid.New(),
		TenantID:      tenantID,
		JobID:         jobID,
		Status:        status,
		Message:       message,
		CorrelationID: correlationID,
		CreatedAt:     time.Now(),
	}
}

// WithEntity attaches item-level entity identifiers to the entry.
func (e *LogEntry) WithEntity(entityType, entityID string) *LogEntry {
	e.EntityType = entityType
	e.EntityID = entityID
	return e
}

// Metric is one aggregated sync_metrics row, written when a job reaches a
// terminal state. Mirrored to the telemetry meter for dashboards.
type Metric struct {
	// ID is the unique identifier of the metric row
	ID uuid.UUID
	// TenantID is the tenant this metric belongs to
	TenantID uuid.UUID
	// JobID references the job run
	JobID uuid.UUID
	// JobType is the entity family synced
	JobType JobType
	// Duration is how long the run took
	Duration time.Duration
	// ItemsTotal, ItemsSucceeded, ItemsFailed, ConflictsPending mirror job progress
	ItemsTotal       int
	ItemsSucceeded   int
	ItemsFailed      int
	ConflictsPending int
	// ConflictsResolved counts synchronously resolved conflicts
	ConflictsResolved int
	// CreatedAt is when the metric was recorded
	CreatedAt time.Time
}
