package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	syncapp "github.com/blingsync/backend/internal/application/sync"
	"github.com/blingsync/backend/internal/domain/pricing"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
	"github.com/blingsync/backend/internal/interfaces/http/dto"
)

// JobService is the application port the sync job endpoints consume
type JobService interface {
	Create(ctx context.Context, cmd syncapp.CreateJobCommand) (*syncdomain.SyncJob, error)
	Cancel(ctx context.Context, tenantID, jobID uuid.UUID) (*syncdomain.SyncJob, error)
	Get(ctx context.Context, tenantID, jobID uuid.UUID) (*syncdomain.SyncJob, error)
	List(ctx context.Context, tenantID uuid.UUID, filter syncdomain.JobFilter) ([]syncdomain.SyncJob, int64, error)
	Configuration(ctx context.Context, tenantID uuid.UUID) syncdomain.Configuration
	UpdateConfiguration(ctx context.Context, cmd syncapp.UpdateConfigurationCommand) (*syncdomain.Configuration, error)
}

// SyncJobHandler handles sync job and sync configuration endpoints
type SyncJobHandler struct {
	BaseHandler
	jobs JobService
}

// NewSyncJobHandler creates a new SyncJobHandler
func NewSyncJobHandler(jobs JobService) *SyncJobHandler {
	return &SyncJobHandler{jobs: jobs}
}

// RegisterRoutes registers the sync endpoints
func (h *SyncJobHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sync := rg.Group("/sync")
	{
		sync.POST("/jobs", h.Create)
		sync.GET("/jobs", h.List)
		sync.GET("/jobs/:id", h.Get)
		sync.POST("/jobs/:id/cancel", h.Cancel)
		sync.GET("/configuration", h.GetConfiguration)
		sync.PUT("/configuration", h.UpdateConfiguration)
	}
}

// CreateJobRequest represents a request to enqueue a sync job
type CreateJobRequest struct {
	ConnectionID string `json:"connection_id" binding:"required,uuid"`
	Type         string `json:"type" binding:"required,oneof=PRODUCTS ORDERS CONTACTS INVENTORY products orders contacts inventory"`
	Direction    string `json:"direction" binding:"required,oneof=IMPORT EXPORT BIDIRECTIONAL import export bidirectional"`
}

// JobResponse represents a sync job in API responses
type JobResponse struct {
	ID           string              `json:"id"`
	TenantID     string              `json:"tenant_id"`
	ConnectionID string              `json:"connection_id"`
	Type         string              `json:"type"`
	Direction    string              `json:"direction"`
	Trigger      string              `json:"trigger"`
	Status       string              `json:"status"`
	Progress     syncdomain.Progress `json:"progress"`
	RetryCount   int                 `json:"retry_count"`
	MaxRetries   int                 `json:"max_retries"`
	NextRetryAt  *time.Time          `json:"next_retry_at,omitempty"`
	Error        string              `json:"error,omitempty"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func newJobResponse(job *syncdomain.SyncJob) JobResponse {
	return JobResponse{
		ID:           job.ID.String(),
		TenantID:     job.TenantID.String(),
		ConnectionID: job.ConnectionID.String(),
		Type:         job.Type.String(),
		Direction:    string(job.Direction),
		Trigger:      string(job.Trigger),
		Status:       job.Status.String(),
		Progress:     job.Progress,
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
		NextRetryAt:  job.NextRetryAt,
		Error:        job.Error,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

// Create enqueues a new sync job
func (h *SyncJobHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	connectionID, err := uuid.Parse(req.ConnectionID)
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), syncapp.CreateJobCommand{
		TenantID:     tenantID,
		ConnectionID: connectionID,
		Type:         syncdomain.JobType(strings.ToUpper(req.Type)),
		Direction:    syncdomain.JobDirection(strings.ToUpper(req.Direction)),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, newJobResponse(job))
}

// List returns the tenant's sync jobs with optional type/status filters
func (h *SyncJobHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var list dto.ListRequest
	if err := c.ShouldBindQuery(&list); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	list.Normalize()

	filter := syncdomain.JobFilter{Page: list.Page, PageSize: list.PageSize}
	if typeParam := c.Query("type"); typeParam != "" {
		jobType := syncdomain.JobType(strings.ToUpper(typeParam))
		if !jobType.IsValid() {
			h.BadRequest(c, "Invalid job type filter")
			return
		}
		filter.Type = &jobType
	}
	if statusParam := c.Query("status"); statusParam != "" {
		status := syncdomain.JobStatus(strings.ToUpper(statusParam))
		if !status.IsValid() {
			h.BadRequest(c, "Invalid job status filter")
			return
		}
		filter.Status = &status
	}

	jobs, total, err := h.jobs.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		responses = append(responses, newJobResponse(&jobs[i]))
	}
	h.SuccessWithMeta(c, responses, total, filter.Page, filter.PageSize)
}

// Get returns one sync job
func (h *SyncJobHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	jobID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newJobResponse(job))
}

// Cancel requests cancellation of a sync job
func (h *SyncJobHandler) Cancel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	jobID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	job, err := h.jobs.Cancel(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newJobResponse(job))
}

// ConfigurationResponse represents the tenant sync configuration
type ConfigurationResponse struct {
	TenantID              string `json:"tenant_id"`
	BatchSize             int    `json:"batch_size"`
	SyncIntervalMinutes   int    `json:"sync_interval_minutes"`
	ConflictResolution    string `json:"conflict_resolution"`
	PriceTolerancePercent string `json:"price_tolerance_percent"`
	AutoMarkup            bool   `json:"auto_markup"`
	MarkupPercentage      string `json:"markup_percentage"`
	MaxRetries            int    `json:"max_retries"`
}

func newConfigurationResponse(config *syncdomain.Configuration) ConfigurationResponse {
	return ConfigurationResponse{
		TenantID:              config.TenantID.String(),
		BatchSize:             config.BatchSize,
		SyncIntervalMinutes:   int(config.SyncInterval / time.Minute),
		ConflictResolution:    string(config.ConflictResolution),
		PriceTolerancePercent: config.PriceTolerancePercent.String(),
		AutoMarkup:            config.AutoMarkup,
		MarkupPercentage:      config.MarkupPercentage.String(),
		MaxRetries:            config.MaxRetries,
	}
}

// GetConfiguration returns the tenant's sync configuration
func (h *SyncJobHandler) GetConfiguration(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	config := h.jobs.Configuration(c.Request.Context(), tenantID)
	h.Success(c, newConfigurationResponse(&config))
}

// UpdateConfigurationRequest applies partial edits to the sync configuration
type UpdateConfigurationRequest struct {
	BatchSize             *int     `json:"batch_size" binding:"omitempty,min=1,max=500"`
	SyncIntervalMinutes   *int     `json:"sync_interval_minutes" binding:"omitempty,min=1"`
	ConflictResolution    *string  `json:"conflict_resolution" binding:"omitempty,oneof=BLING_WINS LOCAL_WINS CUSTOM"`
	PriceTolerancePercent *float64 `json:"price_tolerance_percent" binding:"omitempty,gte=0"`
	AutoMarkup            *bool    `json:"auto_markup"`
	MarkupPercentage      *float64 `json:"markup_percentage" binding:"omitempty,gte=0"`
	MaxRetries            *int     `json:"max_retries" binding:"omitempty,min=0,max=10"`
}

// UpdateConfiguration edits the tenant's sync configuration. Running jobs
// keep their snapshot; only future jobs observe the change.
func (h *SyncJobHandler) UpdateConfiguration(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req UpdateConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cmd := syncapp.UpdateConfigurationCommand{
		TenantID:            tenantID,
		BatchSize:           req.BatchSize,
		SyncIntervalMinutes: req.SyncIntervalMinutes,
		AutoMarkup:          req.AutoMarkup,
		MaxRetries:          req.MaxRetries,
	}
	if req.ConflictResolution != nil {
		strategy := pricing.ResolutionStrategy(*req.ConflictResolution)
		cmd.ConflictResolution = &strategy
	}
	if req.PriceTolerancePercent != nil {
		tolerance := decimal.NewFromFloat(*req.PriceTolerancePercent)
		cmd.PriceTolerancePercent = &tolerance
	}
	if req.MarkupPercentage != nil {
		markup := decimal.NewFromFloat(*req.MarkupPercentage)
		cmd.MarkupPercentage = &markup
	}

	config, err := h.jobs.UpdateConfiguration(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newConfigurationResponse(config))
}
