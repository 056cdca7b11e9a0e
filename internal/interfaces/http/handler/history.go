package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blingsync/backend/internal/domain/pricing"
)

// HistoryHandler handles price history ledger endpoints
type HistoryHandler struct {
	BaseHandler
	history pricing.HistoryRepository
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(history pricing.HistoryRepository) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// RegisterRoutes registers the history endpoints
func (h *HistoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/products/:id/price-history", h.ListByProduct)
}

// HistoryEntryResponse represents one ledger entry in API responses
type HistoryEntryResponse struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	SyncJobID     *string   `json:"sync_job_id,omitempty"`
	ConflictID    *string   `json:"conflict_id,omitempty"`
	OldPrice      string    `json:"old_price"`
	NewPrice      string    `json:"new_price"`
	Source        string    `json:"source"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newHistoryEntryResponse(entry *pricing.PriceHistory) HistoryEntryResponse {
	resp := HistoryEntryResponse{
		ID:            entry.ID.String(),
		ProductID:     entry.ProductID.String(),
		OldPrice:      entry.OldPrice.String(),
		NewPrice:      entry.NewPrice.String(),
		Source:        string(entry.Source),
		CorrelationID: entry.CorrelationID,
		CreatedAt:     entry.CreatedAt,
	}
	if entry.SyncJobID != nil {
		jobID := entry.SyncJobID.String()
		resp.SyncJobID = &jobID
	}
	if entry.ConflictID != nil {
		conflictID := entry.ConflictID.String()
		resp.ConflictID = &conflictID
	}
	return resp
}

// ListByProduct returns the product's price changes, newest first
func (h *HistoryHandler) ListByProduct(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	productID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid product ID")
		return
	}

	limit := 50
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			h.BadRequest(c, "Invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.history.FindByProduct(c.Request.Context(), tenantID, productID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]HistoryEntryResponse, 0, len(entries))
	for i := range entries {
		responses = append(responses, newHistoryEntryResponse(&entries[i]))
	}
	h.Success(c, responses)
}
