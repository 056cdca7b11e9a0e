package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	syncapp "github.com/blingsync/backend/internal/application/sync"
	"github.com/blingsync/backend/internal/domain/credential"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// WebhookHandler accepts Bling entity-change notifications and enqueues a
// targeted sync job. The tenant is derived from the connection the webhook
// names, not from auth claims: Bling calls this endpoint, not an operator.
type WebhookHandler struct {
	BaseHandler
	jobs        JobService
	connections credential.ConnectionRepository
	logger      *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(jobs JobService, connections credential.ConnectionRepository, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{jobs: jobs, connections: connections, logger: logger}
}

// RegisterRoutes registers the webhook endpoint
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/bling", h.Receive)
}

// BlingWebhookRequest is the notification payload Bling delivers
type BlingWebhookRequest struct {
	ConnectionID string `json:"connection_id" binding:"required,uuid"`
	EntityType   string `json:"entity_type" binding:"required"`
	EntityID     string `json:"entity_id"`
	Event        string `json:"event"`
}

// WebhookResponse reports what the notification triggered
type WebhookResponse struct {
	Queued bool         `json:"queued"`
	Reason string       `json:"reason,omitempty"`
	Job    *JobResponse `json:"job,omitempty"`
}

// webhookJobTypes maps Bling entity names onto sync job types
var webhookJobTypes = map[string]syncdomain.JobType{
	"produto":   syncdomain.JobTypeProducts,
	"product":   syncdomain.JobTypeProducts,
	"pedido":    syncdomain.JobTypeOrders,
	"order":     syncdomain.JobTypeOrders,
	"contato":   syncdomain.JobTypeContacts,
	"contact":   syncdomain.JobTypeContacts,
	"estoque":   syncdomain.JobTypeInventory,
	"inventory": syncdomain.JobTypeInventory,
}

// Receive enqueues an import job for the changed entity family. A job of the
// same type already running absorbs the notification: its run will observe
// the change.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var req BlingWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	jobType, ok := webhookJobTypes[strings.ToLower(req.EntityType)]
	if !ok {
		h.BadRequest(c, "Unknown entity type")
		return
	}

	connectionID, err := uuid.Parse(req.ConnectionID)
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}
	conn, err := h.connections.FindByID(c.Request.Context(), connectionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), syncapp.CreateJobCommand{
		TenantID:     conn.TenantID,
		ConnectionID: conn.ID,
		Type:         jobType,
		Direction:    syncdomain.DirectionImport,
		Trigger:      syncdomain.TriggerWebhook,
	})
	if err != nil {
		if errors.Is(err, syncdomain.ErrJobAlreadyRunning) {
			h.Success(c, WebhookResponse{
				Queued: false,
				Reason: "a job of this type is already queued or running",
			})
			return
		}
		h.HandleError(c, err)
		return
	}

	h.logger.Info("Webhook enqueued sync job",
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", conn.TenantID.String()),
		zap.String("entity_type", req.EntityType),
		zap.String("entity_id", req.EntityID),
	)

	jobResponse := newJobResponse(job)
	h.Accepted(c, WebhookResponse{Queued: true, Job: &jobResponse})
}
