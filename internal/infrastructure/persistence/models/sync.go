package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/blingsync/backend/internal/domain/pricing"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// configSnapshot is the JSON shape of the per-job configuration snapshot.
// Durations are stored in seconds so the column stays readable in psql.
type configSnapshot struct {
	BatchSize             int             `json:"batch_size"`
	SyncIntervalSeconds   int64           `json:"sync_interval_seconds"`
	ConflictResolution    string          `json:"conflict_resolution"`
	PriceTolerancePercent decimal.Decimal `json:"price_tolerance_percent"`
	AutoMarkup            bool            `json:"auto_markup"`
	MarkupPercentage      decimal.Decimal `json:"markup_percentage"`
	MaxRetries            int             `json:"max_retries"`
}

// SyncJobModel is the persistence model for the SyncJob domain entity.
type SyncJobModel struct {
	ID                      uuid.UUID  `gorm:"type:uuid;primary_key"`
	TenantID                uuid.UUID  `gorm:"type:uuid;not null;index:idx_sync_jobs_tenant,priority:1"`
	ConnectionID            uuid.UUID  `gorm:"type:uuid;not null;index"`
	Type                    string     `gorm:"type:varchar(20);not null;index:idx_sync_jobs_tenant_type,priority:2"`
	Direction               string     `gorm:"type:varchar(20);not null"`
	TriggeredBy             string     `gorm:"type:varchar(20);not null;default:MANUAL;column:triggered_by"`
	Status                  string     `gorm:"type:varchar(20);not null;index:idx_sync_jobs_status,priority:1"`
	ProgressTotal           int        `gorm:"not null;default:0"`
	ProgressSucceeded       int        `gorm:"not null;default:0"`
	ProgressFailed          int        `gorm:"not null;default:0"`
	ProgressConflictPending int        `gorm:"not null;default:0"`
	RetryCount              int        `gorm:"not null;default:0"`
	MaxRetries              int        `gorm:"not null;default:3"`
	NextRetryAt             *time.Time `gorm:"index"`
	Error                   string     `gorm:"type:text"`
	ConfigJSON              string     `gorm:"type:jsonb;column:config"`
	CorrelationID           string     `gorm:"type:varchar(64);not null;index"`
	StartedAt               *time.Time `gorm:""`
	CompletedAt             *time.Time `gorm:""`
	CreatedAt               time.Time  `gorm:"not null"`
	UpdatedAt               time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncJobModel) TableName() string {
	return "sync_jobs"
}

// ToDomain converts the persistence model to a domain SyncJob entity.
func (m *SyncJobModel) ToDomain() *syncdomain.SyncJob {
	job := &syncdomain.SyncJob{
		ID:           m.ID,
		TenantID:     m.TenantID,
		ConnectionID: m.ConnectionID,
		Type:         syncdomain.JobType(m.Type),
		Direction:    syncdomain.JobDirection(m.Direction),
		Trigger:      syncdomain.JobTrigger(m.TriggeredBy),
		Status:       syncdomain.JobStatus(m.Status),
		Progress: syncdomain.Progress{
			Total:           m.ProgressTotal,
			Succeeded:       m.ProgressSucceeded,
			Failed:          m.ProgressFailed,
			ConflictPending: m.ProgressConflictPending,
		},
		RetryCount:    m.RetryCount,
		MaxRetries:    m.MaxRetries,
		NextRetryAt:   m.NextRetryAt,
		Error:         m.Error,
		CorrelationID: m.CorrelationID,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}

	if m.ConfigJSON != "" {
		var snap configSnapshot
		if err := json.Unmarshal([]byte(m.ConfigJSON), &snap); err == nil {
			job.Config = syncdomain.Configuration{
				TenantID:              m.TenantID,
				BatchSize:             snap.BatchSize,
				SyncInterval:          time.Duration(snap.SyncIntervalSeconds) * time.Second,
				ConflictResolution:    pricing.ResolutionStrategy(snap.ConflictResolution),
				PriceTolerancePercent: snap.PriceTolerancePercent,
				AutoMarkup:            snap.AutoMarkup,
				MarkupPercentage:      snap.MarkupPercentage,
				MaxRetries:            snap.MaxRetries,
			}
		}
	}
	return job
}

// FromDomain populates the persistence model from a domain SyncJob entity.
func (m *SyncJobModel) FromDomain(job *syncdomain.SyncJob) {
	m.ID = job.ID
	m.TenantID = job.TenantID
	m.ConnectionID = job.ConnectionID
	m.Type = job.Type.String()
	m.Direction = string(job.Direction)
	m.TriggeredBy = string(job.Trigger)
	m.Status = job.Status.String()
	m.ProgressTotal = job.Progress.Total
	m.ProgressSucceeded = job.Progress.Succeeded
	m.ProgressFailed = job.Progress.Failed
	m.ProgressConflictPending = job.Progress.ConflictPending
	m.RetryCount = job.RetryCount
	m.MaxRetries = job.MaxRetries
	m.NextRetryAt = job.NextRetryAt
	m.Error = job.Error
	m.CorrelationID = job.CorrelationID
	m.StartedAt = job.StartedAt
	m.CompletedAt = job.CompletedAt
	m.CreatedAt = job.CreatedAt
	m.UpdatedAt = job.UpdatedAt

	snap := configSnapshot{
		BatchSize:             job.Config.BatchSize,
		SyncIntervalSeconds:   int64(job.Config.SyncInterval / time.Second),
		ConflictResolution:    string(job.Config.ConflictResolution),
		PriceTolerancePercent: job.Config.PriceTolerancePercent,
		AutoMarkup:            job.Config.AutoMarkup,
		MarkupPercentage:      job.Config.MarkupPercentage,
		MaxRetries:            job.Config.MaxRetries,
	}
	if jsonBytes, err := json.Marshal(snap); err == nil {
		m.ConfigJSON = string(jsonBytes)
	}
}

// SyncJobModelFromDomain creates a new persistence model from a domain SyncJob entity.
func SyncJobModelFromDomain(job *syncdomain.SyncJob) *SyncJobModel {
	m := &SyncJobModel{}
	m.FromDomain(job)
	return m
}

// SyncLogModel is the persistence model for the append-only sync log ledger.
type SyncLogModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_logs_tenant_job,priority:1"`
	JobID         uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_logs_tenant_job,priority:2"`
	EntityType    string    `gorm:"type:varchar(50)"`
	EntityID      string    `gorm:"type:varchar(100)"`
	Status        string    `gorm:"type:varchar(20);not null"`
	Message       string    `gorm:"type:text"`
	CorrelationID string    `gorm:"type:varchar(64);not null;index"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain LogEntry.
func (m *SyncLogModel) ToDomain() *syncdomain.LogEntry {
	return &syncdomain.LogEntry{
		ID:            m.ID,
		TenantID:      m.TenantID,
		JobID:         m.JobID,
		EntityType:    m.EntityType,
		EntityID:      m.EntityID,
		Status:        syncdomain.LogStatus(m.Status),
		Message:       m.Message,
		CorrelationID: m.CorrelationID,
		CreatedAt:     m.CreatedAt,
	}
}

// SyncLogModelFromDomain creates a new persistence model from a domain LogEntry.
func SyncLogModelFromDomain(entry *syncdomain.LogEntry) *SyncLogModel {
	return &SyncLogModel{
		ID:            entry.ID,
		TenantID:      entry.TenantID,
		JobID:         entry.JobID,
		EntityType:    entry.EntityType,
		EntityID:      entry.EntityID,
		Status:        string(entry.Status),
		Message:       entry.Message,
		CorrelationID: entry.CorrelationID,
		CreatedAt:     entry.CreatedAt,
	}
}

// SyncMetricModel is the persistence model for per-run sync metrics.
type SyncMetricModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_metrics_tenant,priority:1"`
	JobID             uuid.UUID `gorm:"type:uuid;not null;index"`
	JobType           string    `gorm:"type:varchar(20);not null"`
	DurationMillis    int64     `gorm:"not null;default:0"`
	ItemsTotal        int       `gorm:"not null;default:0"`
	ItemsSucceeded    int       `gorm:"not null;default:0"`
	ItemsFailed       int       `gorm:"not null;default:0"`
	ConflictsPending  int       `gorm:"not null;default:0"`
	ConflictsResolved int       `gorm:"not null;default:0"`
	CreatedAt         time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncMetricModel) TableName() string {
	return "sync_metrics"
}

// ToDomain converts the persistence model to a domain Metric.
func (m *SyncMetricModel) ToDomain() *syncdomain.Metric {
	return &syncdomain.Metric{
		ID:                m.ID,
		TenantID:          m.TenantID,
		JobID:             m.JobID,
		JobType:           syncdomain.JobType(m.JobType),
		Duration:          time.Duration(m.DurationMillis) * time.Millisecond,
		ItemsTotal:        m.ItemsTotal,
		ItemsSucceeded:    m.ItemsSucceeded,
		ItemsFailed:       m.ItemsFailed,
		ConflictsPending:  m.ConflictsPending,
		ConflictsResolved: m.ConflictsResolved,
		CreatedAt:         m.CreatedAt,
	}
}

// SyncMetricModelFromDomain creates a new persistence model from a domain Metric.
func SyncMetricModelFromDomain(metric *syncdomain.Metric) *SyncMetricModel {
	return &SyncMetricModel{
		ID:                metric.ID,
		TenantID:          metric.TenantID,
		JobID:             metric.JobID,
		JobType:           metric.JobType.String(),
		DurationMillis:    metric.Duration.Milliseconds(),
		ItemsTotal:        metric.ItemsTotal,
		ItemsSucceeded:    metric.ItemsSucceeded,
		ItemsFailed:       metric.ItemsFailed,
		ConflictsPending:  metric.ConflictsPending,
		ConflictsResolved: metric.ConflictsResolved,
		CreatedAt:         metric.CreatedAt,
	}
}

// SyncConfigurationModel is the persistence model for per-tenant sync
// configuration. One row per tenant.
type SyncConfigurationModel struct {
	TenantID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	BatchSize             int             `gorm:"not null;default:100"`
	SyncIntervalSeconds   int64           `gorm:"not null;default:900"`
	ConflictResolution    string          `gorm:"type:varchar(30);not null"`
	PriceTolerancePercent decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	AutoMarkup            bool            `gorm:"not null;default:false"`
	MarkupPercentage      decimal.Decimal `gorm:"type:decimal(8,4);not null;default:0"`
	MaxRetries            int             `gorm:"not null;default:3"`
	UpdatedAt             time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncConfigurationModel) TableName() string {
	return "sync_configurations"
}

// ToDomain converts the persistence model to a domain Configuration.
func (m *SyncConfigurationModel) ToDomain() *syncdomain.Configuration {
	return &syncdomain.Configuration{
		TenantID:              m.TenantID,
		BatchSize:             m.BatchSize,
		SyncInterval:          time.Duration(m.SyncIntervalSeconds) * time.Second,
		ConflictResolution:    pricing.ResolutionStrategy(m.ConflictResolution),
		PriceTolerancePercent: m.PriceTolerancePercent,
		AutoMarkup:            m.AutoMarkup,
		MarkupPercentage:      m.MarkupPercentage,
		MaxRetries:            m.MaxRetries,
		UpdatedAt:             m.UpdatedAt,
	}
}

// SyncConfigurationModelFromDomain creates a new persistence model from a domain Configuration.
func SyncConfigurationModelFromDomain(config *syncdomain.Configuration) *SyncConfigurationModel {
	return &SyncConfigurationModel{
		TenantID:              config.TenantID,
		BatchSize:             config.BatchSize,
		SyncIntervalSeconds:   int64(config.SyncInterval / time.Second),
		ConflictResolution:    string(config.ConflictResolution),
		PriceTolerancePercent: config.PriceTolerancePercent,
		AutoMarkup:            config.AutoMarkup,
		MarkupPercentage:      config.MarkupPercentage,
		MaxRetries:            config.MaxRetries,
		UpdatedAt:             config.UpdatedAt,
	}
}
