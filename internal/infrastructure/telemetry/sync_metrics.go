package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// SyncMetricsConfig provides dependencies for sync metrics.
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// SyncMetrics records terminal sync job outcomes to OpenTelemetry. It
// implements the orchestrator's Telemetry port.
type SyncMetrics struct {
	logger *zap.Logger

	jobsTotal         *Counter
	itemsTotal        *Counter
	conflictsPending  *Counter
	conflictsResolved *Counter
	jobDuration       *Histogram
}

// NewSyncMetrics creates sync metrics instruments on the given meter.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, fmt.Errorf("failed to create sync metrics: meter cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	jobsTotal, err := NewCounter(cfg.Meter,
		"sync_jobs_total",
		"Total number of finished sync job runs by type and status",
		"{job}",
	)
	if err != nil {
		return nil, err
	}

	itemsTotal, err := NewCounter(cfg.Meter,
		"sync_items_total",
		"Total number of items processed by sync jobs, by result",
		"{item}",
	)
	if err != nil {
		return nil, err
	}

	conflictsPending, err := NewCounter(cfg.Meter,
		"sync_conflicts_pending_total",
		"Total number of price conflicts deferred for manual resolution",
		"{conflict}",
	)
	if err != nil {
		return nil, err
	}

	conflictsResolved, err := NewCounter(cfg.Meter,
		"sync_conflicts_resolved_total",
		"Total number of price conflicts resolved during sync",
		"{conflict}",
	)
	if err != nil {
		return nil, err
	}

	jobDuration, err := NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "sync_job_duration_seconds",
		Description: "Duration of sync job runs in seconds",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		logger:            cfg.Logger,
		jobsTotal:         jobsTotal,
		itemsTotal:        itemsTotal,
		conflictsPending:  conflictsPending,
		conflictsResolved: conflictsResolved,
		jobDuration:       jobDuration,
	}, nil
}

// RecordJob records one terminal job run.
func (m *SyncMetrics) RecordJob(ctx context.Context, met *syncdomain.Metric, status syncdomain.JobStatus) {
	if met == nil {
		return
	}

	typeAttr := AttrJobType.String(met.JobType.String())
	statusAttr := AttrJobStatus.String(status.String())
	tenantAttr := AttrTenantID.String(met.TenantID.String())

	m.jobsTotal.Inc(ctx, typeAttr, statusAttr, tenantAttr)
	m.jobDuration.RecordDuration(ctx, met.Duration, typeAttr, statusAttr)

	if met.ItemsSucceeded > 0 {
		m.itemsTotal.Add(ctx, int64(met.ItemsSucceeded), typeAttr, tenantAttr, AttrItemResult.String("succeeded"))
	}
	if met.ItemsFailed > 0 {
		m.itemsTotal.Add(ctx, int64(met.ItemsFailed), typeAttr, tenantAttr, AttrItemResult.String("failed"))
	}
	if met.ConflictsPending > 0 {
		m.conflictsPending.Add(ctx, int64(met.ConflictsPending), typeAttr, tenantAttr)
	}
	if met.ConflictsResolved > 0 {
		m.conflictsResolved.Add(ctx, int64(met.ConflictsResolved), typeAttr, tenantAttr)
	}
}
