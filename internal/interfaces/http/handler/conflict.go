package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pricingapp "github.com/blingsync/backend/internal/application/pricing"
	"github.com/blingsync/backend/internal/domain/pricing"
	"github.com/blingsync/backend/internal/interfaces/http/dto"
	"github.com/blingsync/backend/internal/interfaces/http/middleware"
)

// ConflictService is the application port the conflict endpoints consume
type ConflictService interface {
	List(ctx context.Context, tenantID uuid.UUID, filter pricing.ConflictFilter) ([]pricing.PriceConflict, int64, error)
	Get(ctx context.Context, tenantID, conflictID uuid.UUID) (*pricing.PriceConflict, error)
	Resolve(ctx context.Context, cmd pricingapp.ResolveConflictCommand) (*pricing.PriceConflict, error)
}

// ConflictHandler handles price conflict endpoints
type ConflictHandler struct {
	BaseHandler
	conflicts ConflictService
}

// NewConflictHandler creates a new ConflictHandler
func NewConflictHandler(conflicts ConflictService) *ConflictHandler {
	return &ConflictHandler{conflicts: conflicts}
}

// RegisterRoutes registers the conflict endpoints
func (h *ConflictHandler) RegisterRoutes(rg *gin.RouterGroup) {
	conflicts := rg.Group("/price-conflicts")
	{
		conflicts.GET("", h.List)
		conflicts.GET("/:id", h.Get)
		conflicts.POST("/:id/resolve", h.Resolve)
	}
}

// ConflictResponse represents a price conflict in API responses
type ConflictResponse struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	EntityType        string     `json:"entity_type"`
	EntityID          string     `json:"entity_id"`
	SyncJobID         *string    `json:"sync_job_id,omitempty"`
	BlingPrice        string     `json:"bling_price"`
	LocalPrice        string     `json:"local_price"`
	Difference        string     `json:"difference"`
	DifferencePercent string     `json:"difference_percent"`
	Type              string     `json:"type"`
	Resolved          bool       `json:"resolved"`
	ResolutionType    string     `json:"resolution_type,omitempty"`
	ResolutionPrice   string     `json:"resolution_price,omitempty"`
	ResolvedBy        *string    `json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func newConflictResponse(conflict *pricing.PriceConflict) ConflictResponse {
	resp := ConflictResponse{
		ID:                conflict.ID.String(),
		TenantID:          conflict.TenantID.String(),
		EntityType:        conflict.EntityType,
		EntityID:          conflict.EntityID.String(),
		BlingPrice:        conflict.BlingPrice.String(),
		LocalPrice:        conflict.LocalPrice.String(),
		Difference:        conflict.Difference.String(),
		DifferencePercent: conflict.DifferencePercent.String(),
		Type:              string(conflict.Type),
		Resolved:          conflict.Resolved,
		ResolvedAt:        conflict.ResolvedAt,
		CreatedAt:         conflict.CreatedAt,
	}
	if conflict.SyncJobID != nil {
		jobID := conflict.SyncJobID.String()
		resp.SyncJobID = &jobID
	}
	if conflict.Resolved {
		resp.ResolutionType = string(conflict.ResolutionType)
		resp.ResolutionPrice = conflict.ResolutionPrice.String()
	}
	if conflict.ResolvedBy != nil {
		resolvedBy := conflict.ResolvedBy.String()
		resp.ResolvedBy = &resolvedBy
	}
	return resp
}

// List returns the tenant's price conflicts with optional filters
func (h *ConflictHandler) List(c *gin.Context) {
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

	filter := pricing.ConflictFilter{
		EntityType: c.Query("entity_type"),
		Page:       list.Page,
		PageSize:   list.PageSize,
	}
	if resolvedParam := c.Query("resolved"); resolvedParam != "" {
		resolved, err := strconv.ParseBool(resolvedParam)
		if err != nil {
			h.BadRequest(c, "Invalid resolved filter")
			return
		}
		filter.Resolved = &resolved
	}
	if typeParam := c.Query("type"); typeParam != "" {
		conflictType := pricing.ConflictType(strings.ToUpper(typeParam))
		if !conflictType.IsValid() {
			h.BadRequest(c, "Invalid conflict type filter")
			return
		}
		filter.Type = &conflictType
	}

	conflicts, total, err := h.conflicts.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]ConflictResponse, 0, len(conflicts))
	for i := range conflicts {
		responses = append(responses, newConflictResponse(&conflicts[i]))
	}
	h.SuccessWithMeta(c, responses, total, filter.Page, filter.PageSize)
}

// Get returns one conflict
func (h *ConflictHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	conflictID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid conflict ID")
		return
	}

	conflict, err := h.conflicts.Get(c.Request.Context(), tenantID, conflictID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newConflictResponse(conflict))
}

// ResolveConflictRequest represents a manual conflict resolution
type ResolveConflictRequest struct {
	Resolution  string   `json:"resolution" binding:"required,oneof=BLING LOCAL CUSTOM bling local custom"`
	CustomPrice *float64 `json:"custom_price" binding:"omitempty,gte=0"`
}

// Resolve applies a manual resolution to a pending conflict
func (h *ConflictHandler) Resolve(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	conflictID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid conflict ID")
		return
	}

	var req ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cmd := pricingapp.ResolveConflictCommand{
		TenantID:      tenantID,
		ConflictID:    conflictID,
		Resolution:    pricing.ResolutionType(strings.ToUpper(req.Resolution)),
		CorrelationID: middleware.GetRequestID(c),
	}
	if userID, ok := middleware.GetUserID(c); ok {
		cmd.ResolvedBy = userID
	}
	if req.CustomPrice != nil {
		price := decimal.NewFromFloat(*req.CustomPrice)
		cmd.CustomPrice = &price
	}

	conflict, err := h.conflicts.Resolve(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newConflictResponse(conflict))
}
