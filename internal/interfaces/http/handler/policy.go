package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pricingapp "github.com/blingsync/backend/internal/application/pricing"
	"github.com/blingsync/backend/internal/domain/pricing"
)

// PolicyService is the application port the policy endpoints consume
type PolicyService interface {
	Create(ctx context.Context, cmd pricingapp.CreatePolicyCommand) (*pricing.PricePolicy, error)
	Update(ctx context.Context, cmd pricingapp.UpdatePolicyCommand) (*pricing.PricePolicy, error)
	Delete(ctx context.Context, tenantID, policyID uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID) ([]pricing.PricePolicy, error)
}

// PriceCalculator computes the effective price a product would sell at under
// the tenant's current policy chain
type PriceCalculator interface {
	EffectivePrice(ctx context.Context, tenantID, productID uuid.UUID, categoryID *uuid.UUID, basePrice decimal.Decimal, costPrice *decimal.Decimal) (decimal.Decimal, error)
}

// PolicyHandler handles price policy endpoints
type PolicyHandler struct {
	BaseHandler
	policies PolicyService
	prices   PriceCalculator
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(policies PolicyService, prices PriceCalculator) *PolicyHandler {
	return &PolicyHandler{policies: policies, prices: prices}
}

// RegisterRoutes registers the policy endpoints
func (h *PolicyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	policies := rg.Group("/price-policies")
	{
		policies.POST("", h.Create)
		policies.GET("", h.List)
		policies.POST("/preview", h.Preview)
		policies.PUT("/:id", h.Update)
		policies.DELETE("/:id", h.Delete)
	}
}

// CreatePolicyRequest represents a request to create a price policy
type CreatePolicyRequest struct {
	Scope      string  `json:"scope" binding:"required,oneof=PRODUCT CATEGORY TENANT product category tenant"`
	ProductID  *string `json:"product_id" binding:"omitempty,uuid"`
	CategoryID *string `json:"category_id" binding:"omitempty,uuid"`
	Type       string  `json:"type" binding:"required,oneof=MARKUP DISCOUNT FIXED_MARGIN MINIMUM_PRICE MAXIMUM_PRICE markup discount fixed_margin minimum_price maximum_price"`
	Value      float64 `json:"value" binding:"gte=0"`
	Priority   int     `json:"priority"`
}

// UpdatePolicyRequest represents a partial policy update
type UpdatePolicyRequest struct {
	Value    *float64 `json:"value" binding:"omitempty,gte=0"`
	Priority *int     `json:"priority"`
	Active   *bool    `json:"active"`
}

// PolicyResponse represents a price policy in API responses
type PolicyResponse struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Scope      string    `json:"scope"`
	ProductID  *string   `json:"product_id,omitempty"`
	CategoryID *string   `json:"category_id,omitempty"`
	Type       string    `json:"type"`
	Value      string    `json:"value"`
	Priority   int       `json:"priority"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newPolicyResponse(policy *pricing.PricePolicy) PolicyResponse {
	resp := PolicyResponse{
		ID:        policy.ID.String(),
		TenantID:  policy.TenantID.String(),
		Scope:     string(policy.Scope),
		Type:      policy.Type.String(),
		Value:     policy.Value.String(),
		Priority:  policy.Priority,
		Active:    policy.Active,
		CreatedAt: policy.CreatedAt,
		UpdatedAt: policy.UpdatedAt,
	}
	if policy.ProductID != nil {
		productID := policy.ProductID.String()
		resp.ProductID = &productID
	}
	if policy.CategoryID != nil {
		categoryID := policy.CategoryID.String()
		resp.CategoryID = &categoryID
	}
	return resp
}

// Create creates a new price policy
func (h *PolicyHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cmd := pricingapp.CreatePolicyCommand{
		TenantID: tenantID,
		Scope:    pricing.PolicyScope(strings.ToUpper(req.Scope)),
		Type:     pricing.PolicyType(strings.ToUpper(req.Type)),
		Value:    decimal.NewFromFloat(req.Value),
		Priority: req.Priority,
	}
	if req.ProductID != nil {
		productID, err := uuid.Parse(*req.ProductID)
		if err != nil {
			h.BadRequest(c, "Invalid product ID")
			return
		}
		cmd.ProductID = &productID
	}
	if req.CategoryID != nil {
		categoryID, err := uuid.Parse(*req.CategoryID)
		if err != nil {
			h.BadRequest(c, "Invalid category ID")
			return
		}
		cmd.CategoryID = &categoryID
	}

	policy, err := h.policies.Create(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, newPolicyResponse(policy))
}

// List returns the tenant's policies in application order
func (h *PolicyHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	policies, err := h.policies.List(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]PolicyResponse, 0, len(policies))
	for i := range policies {
		responses = append(responses, newPolicyResponse(&policies[i]))
	}
	h.Success(c, responses)
}

// Update applies partial changes to a policy
func (h *PolicyHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	policyID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid policy ID")
		return
	}

	var req UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cmd := pricingapp.UpdatePolicyCommand{
		TenantID: tenantID,
		PolicyID: policyID,
		Priority: req.Priority,
		Active:   req.Active,
	}
	if req.Value != nil {
		value := decimal.NewFromFloat(*req.Value)
		cmd.Value = &value
	}

	policy, err := h.policies.Update(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newPolicyResponse(policy))
}

// PreviewPriceRequest asks what a product would sell at under the current
// policy chain
type PreviewPriceRequest struct {
	ProductID  string   `json:"product_id" binding:"required,uuid"`
	CategoryID *string  `json:"category_id" binding:"omitempty,uuid"`
	BasePrice  float64  `json:"base_price" binding:"required,gt=0"`
	CostPrice  *float64 `json:"cost_price" binding:"omitempty,gt=0"`
}

// PreviewPriceResponse carries the computed effective price
type PreviewPriceResponse struct {
	ProductID      string `json:"product_id"`
	BasePrice      string `json:"base_price"`
	EffectivePrice string `json:"effective_price"`
}

// Preview computes the effective price for a product without persisting
// anything. Useful to validate a policy chain before a sync run applies it.
func (h *PolicyHandler) Preview(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req PreviewPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		h.BadRequest(c, "Invalid product ID")
		return
	}
	var categoryID *uuid.UUID
	if req.CategoryID != nil {
		id, err := uuid.Parse(*req.CategoryID)
		if err != nil {
			h.BadRequest(c, "Invalid category ID")
			return
		}
		categoryID = &id
	}
	var costPrice *decimal.Decimal
	if req.CostPrice != nil {
		cost := decimal.NewFromFloat(*req.CostPrice)
		costPrice = &cost
	}

	basePrice := decimal.NewFromFloat(req.BasePrice)
	effective, err := h.prices.EffectivePrice(c.Request.Context(), tenantID, productID, categoryID, basePrice, costPrice)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, PreviewPriceResponse{
		ProductID:      productID.String(),
		BasePrice:      basePrice.String(),
		EffectivePrice: effective.String(),
	})
}

// Delete removes a policy
func (h *PolicyHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	policyID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid policy ID")
		return
	}

	if err := h.policies.Delete(c.Request.Context(), tenantID, policyID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
