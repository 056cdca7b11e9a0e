package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/blingsync/backend/internal/domain/credential"
	"github.com/blingsync/backend/internal/domain/pricing"
	"github.com/blingsync/backend/internal/domain/shared"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// Telemetry mirrors terminal job outcomes to the metrics backend.
type Telemetry interface {
	// RecordJob records one terminal job run
	RecordJob(ctx context.Context, metric *syncdomain.Metric, status syncdomain.JobStatus)
}

// NopTelemetry discards all recordings.
type NopTelemetry struct{}

func (NopTelemetry) RecordJob(ctx context.Context, metric *syncdomain.Metric, status syncdomain.JobStatus) {
}

// OrchestratorDeps bundles the collaborators a sync worker needs.
type OrchestratorDeps struct {
	Jobs        syncdomain.JobRepository
	Logs        syncdomain.LogRepository
	Metrics     syncdomain.MetricRepository
	Connections credential.ConnectionRepository
	Vault       credential.Vault
	Gateway     syncdomain.Gateway
	Store       syncdomain.LocalStore
	Policies    pricing.PolicyRepository
	History     pricing.HistoryRepository
	Conflicts   pricing.ConflictRepository
	Writer      pricing.ConflictWriter
	Cache       pricing.PriceCache
	Telemetry   Telemetry
	Logger      *zap.Logger
	// RetryBase overrides the backoff base, mainly for tests
	RetryBase time.Duration
}

// Orchestrator executes sync jobs: it claims a pending job, walks the Bling
// API page by page, reconciles prices item by item and drives the job to a
// terminal state. Item-level failures are absorbed and logged; only systemic
// failures (connection loss, ERP outage) fail the whole run.
type Orchestrator struct {
	deps      OrchestratorDeps
	logger    *zap.Logger
	retryBase time.Duration
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Telemetry == nil {
		deps.Telemetry = NopTelemetry{}
	}
	if deps.RetryBase <= 0 {
		deps.RetryBase = syncdomain.DefaultRetryBase
	}
	return &Orchestrator{
		deps:      deps,
		logger:    deps.Logger,
		retryBase: deps.RetryBase,
	}
}

// Run claims and executes one job. Exactly one of N concurrent Run calls for
// the same job proceeds past the claim; the rest return ErrJobNotClaimable.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.deps.Jobs.Claim(ctx, jobID)
	if err != nil {
		return err
	}

	logger := o.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("job_type", job.Type.String()),
		zap.String("correlation_id", job.CorrelationID),
	)
	logger.Info("Sync job started", zap.String("direction", string(job.Direction)))

	token, err := o.deps.Vault.GetValidToken(ctx, job.ConnectionID)
	if err != nil {
		return o.failJob(ctx, job, fmt.Errorf("acquire token: %w", err), logger)
	}

	runErr := o.execute(ctx, job, token, logger)
	if runErr != nil {
		return o.failJob(ctx, job, runErr, logger)
	}

	// A cancellation observed mid-run already drove the job terminal.
	if job.Status == syncdomain.JobStatusCancelled {
		o.finish(ctx, job, logger)
		return nil
	}

	if err := job.Complete(); err != nil {
		return err
	}
	if err := o.deps.Jobs.Update(ctx, job); err != nil {
		return err
	}
	o.appendLog(ctx, job, completionStatus(job), fmt.Sprintf(
		"sync completed: %d total, %d succeeded, %d failed, %d conflicts pending",
		job.Progress.Total, job.Progress.Succeeded, job.Progress.Failed, job.Progress.ConflictPending,
	), "", "")
	o.finish(ctx, job, logger)
	return nil
}

// execute runs the directional phases of the job.
func (o *Orchestrator) execute(ctx context.Context, job *syncdomain.SyncJob, token string, logger *zap.Logger) error {
	if job.Direction == syncdomain.DirectionImport || job.Direction == syncdomain.DirectionBidirectional {
		if err := o.runImport(ctx, job, token, logger); err != nil {
			return err
		}
		if job.Status == syncdomain.JobStatusCancelled {
			return nil
		}
	}
	if job.Direction == syncdomain.DirectionExport || job.Direction == syncdomain.DirectionBidirectional {
		if err := o.runExport(ctx, job, token, logger); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Import
// ---------------------------------------------------------------------------

func (o *Orchestrator) runImport(ctx context.Context, job *syncdomain.SyncJob, token string, logger *zap.Logger) error {
	page := 1
	for {
		if cancelled, err := o.checkCancelled(ctx, job); err != nil {
			return err
		} else if cancelled {
			logger.Info("Sync job cancelled at batch boundary", zap.Int("page", page))
			return nil
		}

		batch, err := o.deps.Gateway.FetchPage(ctx, token, job.Type, page, job.Config.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch page %d: %w", page, err)
		}

		for _, rejection := range batch.Malformed {
			job.Progress.Total++
			job.Progress.Failed++
			o.appendLog(ctx, job, syncdomain.LogStatusFailed, rejection.Reason, entityTypeFor(job.Type), rejection.RemoteID)
			logger.Warn("Malformed entity rejected",
				zap.String("remote_id", rejection.RemoteID),
				zap.String("reason", rejection.Reason),
			)
		}

		for _, remote := range batch.Items {
			job.Progress.Total++
			if err := o.processImportItem(ctx, job, remote); err != nil {
				job.Progress.Failed++
				o.appendLog(ctx, job, syncdomain.LogStatusFailed, err.Error(), entityTypeFor(job.Type), remote.RemoteID)
				logger.Warn("Item import failed",
					zap.String("remote_id", remote.RemoteID),
					zap.Error(err),
				)
			}
		}

		// Persist progress so observers see the job advance batch by batch.
		if err := o.deps.Jobs.Update(ctx, job); err != nil {
			return err
		}

		if !batch.HasMore {
			return nil
		}
		page = batch.NextPage
	}
}

// processImportItem maps one remote entity into the local store and, for
// priced families, reconciles its price through the policy chain.
func (o *Orchestrator) processImportItem(ctx context.Context, job *syncdomain.SyncJob, remote syncdomain.RemoteEntity) error {
	existing, err := o.deps.Store.FindByRemoteID(ctx, job.TenantID, job.Type, remote.RemoteID)
	if err != nil {
		return err
	}

	local, err := o.deps.Store.UpsertFromRemote(ctx, job.TenantID, job.Type, remote)
	if err != nil {
		return err
	}

	if !remote.Priced {
		job.Progress.Succeeded++
		return nil
	}

	policies, err := o.deps.Policies.FindApplicable(ctx, job.TenantID, local.ID, local.CategoryID)
	if err != nil {
		return err
	}
	effective, err := o.effectivePrice(job, remote, policies)
	if err != nil {
		return err
	}

	// First import, or a local price never committed: the policy-adjusted
	// remote price becomes the local price without conflict detection.
	if existing == nil || local.Price.IsZero() {
		if err := o.commitPrice(ctx, job, local, effective, nil); err != nil {
			return err
		}
		job.Progress.Succeeded++
		return nil
	}

	baseline, err := o.baselineFor(ctx, job, local, remote, effective)
	if err != nil {
		return err
	}

	eval, err := pricing.Evaluate(
		job.TenantID, entityTypeFor(job.Type), local.ID,
		local.Price, effective,
		job.Config.PriceTolerancePercent, job.Config.ConflictResolution,
		baseline,
	)
	if err != nil {
		return err
	}

	switch eval.Decision {
	case pricing.DecisionNoConflict:
		job.Progress.Succeeded++
		return nil

	case pricing.DecisionResolved:
		eval.Conflict.SyncJobID = &job.ID
		entry := pricing.NewPriceHistory(
			job.TenantID, local.ID,
			local.Price, eval.FinalPrice,
			changeSourceFor(job), job.CorrelationID,
		)
		entry.SyncJobID = &job.ID
		entry.ConflictID = &eval.Conflict.ID
		if err := o.deps.Writer.CommitResolution(ctx, eval.Conflict, entry); err != nil {
			return err
		}
		if eval.PriceChanged {
			if err := o.deps.Store.CommitPrice(ctx, job.TenantID, local.ID, eval.FinalPrice); err != nil {
				return err
			}
			o.invalidate(ctx, job.TenantID, local.ID)
		}
		job.Progress.Succeeded++
		return nil

	case pricing.DecisionPending:
		eval.Conflict.SyncJobID = &job.ID
		if err := o.deps.Conflicts.Save(ctx, eval.Conflict); err != nil {
			return err
		}
		job.Progress.ConflictPending++
		o.appendLog(ctx, job, syncdomain.LogStatusSkipped,
			fmt.Sprintf("price conflict pending manual resolution: local %s, bling %s",
				eval.Conflict.LocalPrice.String(), eval.Conflict.BlingPrice.String()),
			entityTypeFor(job.Type), local.ID.String())
		return nil

	default:
		return pricing.ErrInvalidResolution
	}
}

// effectivePrice runs the remote price through the tenant's automatic markup
// and policy chain, yielding the price the local catalog should carry.
func (o *Orchestrator) effectivePrice(job *syncdomain.SyncJob, remote syncdomain.RemoteEntity, policies []pricing.PricePolicy) (decimal.Decimal, error) {
	base := remote.Price
	if job.Config.AutoMarkup && job.Config.MarkupPercentage.IsPositive() {
		base = base.Mul(decimal.NewFromInt(1).Add(job.Config.MarkupPercentage.Div(decimal.NewFromInt(100))))
	}
	return pricing.ComputePrice(base, remote.CostPrice, policies)
}

// commitPrice writes an authoritative price with its ledger entry and drops
// cached prices for the entity.
func (o *Orchestrator) commitPrice(ctx context.Context, job *syncdomain.SyncJob, local *syncdomain.LocalEntity, price decimal.Decimal, conflictID *uuid.UUID) error {
	if err := o.deps.Store.CommitPrice(ctx, job.TenantID, local.ID, price); err != nil {
		return err
	}
	entry := pricing.NewPriceHistory(
		job.TenantID, local.ID,
		local.Price, price,
		changeSourceFor(job), job.CorrelationID,
	)
	entry.SyncJobID = &job.ID
	entry.ConflictID = conflictID
	if err := o.deps.History.Append(ctx, entry); err != nil {
		return err
	}
	o.invalidate(ctx, job.TenantID, local.ID)
	return nil
}

// changeSourceFor maps the job's trigger onto the ledger change source.
// Webhook-spawned runs tag their entries with the webhook source; scheduled
// and manual runs are ordinary sync commits.
func changeSourceFor(job *syncdomain.SyncJob) pricing.ChangeSource {
	if job.Trigger == syncdomain.TriggerWebhook {
		return pricing.ChangeSourceWebhook
	}
	return pricing.ChangeSourceBlingSync
}

// baselineFor reconstructs the reconciliation baseline from the price history
// ledger. No history means no baseline: the conflict stays unclassifiable.
func (o *Orchestrator) baselineFor(ctx context.Context, job *syncdomain.SyncJob, local *syncdomain.LocalEntity, remote syncdomain.RemoteEntity, effective decimal.Decimal) (pricing.Baseline, error) {
	last, err := o.deps.History.LastChange(ctx, job.TenantID, local.ID)
	if err != nil {
		return pricing.Baseline{}, err
	}
	if last == nil {
		return pricing.Baseline{Known: false}, nil
	}
	baseline := pricing.Baseline{
		Known:         true,
		LocalChanged:  !local.Price.Equal(last.NewPrice),
		RemoteChanged: !effective.Equal(last.NewPrice),
	}
	if remote.CostPrice != nil {
		baseline.PolicyRecomputedPrice = &effective
	}
	return baseline, nil
}

// ---------------------------------------------------------------------------
// Export
// ---------------------------------------------------------------------------

func (o *Orchestrator) runExport(ctx context.Context, job *syncdomain.SyncJob, token string, logger *zap.Logger) error {
	since := o.exportWatermark(ctx, job)
	offset := 0
	for {
		if cancelled, err := o.checkCancelled(ctx, job); err != nil {
			return err
		} else if cancelled {
			logger.Info("Sync job cancelled at batch boundary", zap.Int("offset", offset))
			return nil
		}

		items, err := o.deps.Store.ListForExport(ctx, job.TenantID, job.Type, since, job.Config.BatchSize, offset)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		result, err := o.deps.Gateway.Push(ctx, token, job.Type, items)
		if err != nil {
			return fmt.Errorf("push batch at offset %d: %w", offset, err)
		}

		job.Progress.Total += len(items)
		job.Progress.Succeeded += result.Accepted
		job.Progress.Failed += len(result.Rejected)
		for _, rejection := range result.Rejected {
			o.appendLog(ctx, job, syncdomain.LogStatusFailed, rejection.Reason, entityTypeFor(job.Type), rejection.RemoteID)
		}

		if err := o.deps.Jobs.Update(ctx, job); err != nil {
			return err
		}
		if len(items) < job.Config.BatchSize {
			return nil
		}
		offset += len(items)
	}
}

// exportWatermark picks the modified-since cutoff for exports: the
// connection's last successful sync, or the epoch for a first export.
func (o *Orchestrator) exportWatermark(ctx context.Context, job *syncdomain.SyncJob) time.Time {
	conn, err := o.deps.Connections.FindByID(ctx, job.ConnectionID)
	if err != nil || conn.LastSyncAt == nil {
		return time.Time{}
	}
	return *conn.LastSyncAt
}

// ---------------------------------------------------------------------------
// Lifecycle helpers
// ---------------------------------------------------------------------------

// checkCancelled reloads the job at a batch boundary and honors cancellation
// cooperatively. Progress made so far is preserved.
func (o *Orchestrator) checkCancelled(ctx context.Context, job *syncdomain.SyncJob) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, shared.Retryable(err)
	}
	stored, err := o.deps.Jobs.FindByID(ctx, job.ID)
	if err != nil {
		return false, err
	}
	if stored.Status == syncdomain.JobStatusCancelled {
		job.Status = syncdomain.JobStatusCancelled
		job.CompletedAt = stored.CompletedAt
		return true, nil
	}
	return false, nil
}

// failJob records a fatal run failure, scheduling a retry when the error is
// retryable and retries remain.
func (o *Orchestrator) failJob(ctx context.Context, job *syncdomain.SyncJob, runErr error, logger *zap.Logger) error {
	if !isRetryableRunError(runErr) {
		// Non-retryable failures burn the remaining attempts.
		job.RetryCount = job.MaxRetries
	}
	job.Fail(runErr.Error(), o.retryBase)
	if err := o.deps.Jobs.Update(ctx, job); err != nil {
		return err
	}
	o.appendLog(ctx, job, syncdomain.LogStatusFailed, runErr.Error(), "", "")
	logger.Error("Sync job failed",
		zap.Error(runErr),
		zap.Int("retry_count", job.RetryCount),
		zap.Bool("terminal", job.IsTerminal()),
	)
	if job.IsTerminal() {
		o.finish(ctx, job, logger)
	}
	return runErr
}

// finish records the terminal metric row and mirrors it to telemetry.
func (o *Orchestrator) finish(ctx context.Context, job *syncdomain.SyncJob, logger *zap.Logger) {
	duration := time.Duration(0)
	if job.StartedAt != nil && job.CompletedAt != nil {
		duration = job.CompletedAt.Sub(*job.StartedAt)
	}
	metric := &syncdomain.Metric{
		ID:               uuid.New(),
		TenantID:         job.TenantID,
		JobID:            job.ID,
		JobType:          job.Type,
		Duration:         duration,
		ItemsTotal:       job.Progress.Total,
		ItemsSucceeded:   job.Progress.Succeeded,
		ItemsFailed:      job.Progress.Failed,
		ConflictsPending: job.Progress.ConflictPending,
		CreatedAt:        time.Now(),
	}
	if err := o.deps.Metrics.Record(ctx, metric); err != nil {
		logger.Warn("Failed to record sync metric", zap.Error(err))
	}
	o.deps.Telemetry.RecordJob(ctx, metric, job.Status)

	if job.Status == syncdomain.JobStatusCompleted {
		if err := o.deps.Connections.TouchLastSync(ctx, job.ConnectionID, time.Now()); err != nil {
			logger.Warn("Failed to touch connection last sync", zap.Error(err))
		}
	}
	logger.Info("Sync job finished",
		zap.String("status", job.Status.String()),
		zap.Duration("duration", duration),
		zap.Int("total", job.Progress.Total),
		zap.Int("succeeded", job.Progress.Succeeded),
		zap.Int("failed", job.Progress.Failed),
		zap.Int("conflicts_pending", job.Progress.ConflictPending),
	)
}

// appendLog writes a sync log entry; log persistence failures never fail the run.
func (o *Orchestrator) appendLog(ctx context.Context, job *syncdomain.SyncJob, status syncdomain.LogStatus, message, entityType, entityID string) {
	entry := syncdomain.NewLogEntry(job.TenantID, job.ID, status, message, job.CorrelationID)
	if entityType != "" {
		entry = entry.WithEntity(entityType, entityID)
	}
	if err := o.deps.Logs.Append(ctx, entry); err != nil {
		o.logger.Warn("Failed to append sync log",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}

// invalidate drops cached prices for an entity; cache failures never fail
// the run, the stale entry expires on its TTL.
func (o *Orchestrator) invalidate(ctx context.Context, tenantID, productID uuid.UUID) {
	if err := o.deps.Cache.Invalidate(ctx, tenantID, productID); err != nil {
		o.logger.Warn("Failed to invalidate cached price",
			zap.String("tenant_id", tenantID.String()),
			zap.String("product_id", productID.String()),
			zap.Error(err),
		)
	}
}

// isRetryableRunError decides whether a fatal run error should consume one
// retry or exhaust them all.
func isRetryableRunError(err error) bool {
	if shared.IsRetryable(err) {
		return true
	}
	switch {
	case errors.Is(err, syncdomain.ErrERPUnavailable),
		errors.Is(err, syncdomain.ErrERPRateLimited),
		errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		return false
	}
}

// completionStatus summarizes the run for the final log entry.
func completionStatus(job *syncdomain.SyncJob) syncdomain.LogStatus {
	if job.Progress.Failed > 0 || job.Progress.ConflictPending > 0 {
		return syncdomain.LogStatusPartial
	}
	return syncdomain.LogStatusSuccess
}

// entityTypeFor maps a job type to the entity discriminator used in logs,
// conflicts and history.
func entityTypeFor(jobType syncdomain.JobType) string {
	switch jobType {
	case syncdomain.JobTypeProducts:
		return "product"
	case syncdomain.JobTypeOrders:
		return "order"
	case syncdomain.JobTypeContacts:
		return "contact"
	case syncdomain.JobTypeInventory:
		return "inventory"
	default:
		return "unknown"
	}
}
