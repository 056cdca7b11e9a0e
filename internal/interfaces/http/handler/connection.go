package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	credentialapp "github.com/blingsync/backend/internal/application/credential"
	"github.com/blingsync/backend/internal/domain/credential"
)

// ConnectionService is the application port the connection endpoints consume
type ConnectionService interface {
	Register(ctx context.Context, cmd credentialapp.RegisterConnectionCommand) (*credential.Connection, error)
	Activate(ctx context.Context, cmd credentialapp.ActivateConnectionCommand) (*credential.Connection, error)
	Revoke(ctx context.Context, tenantID, connectionID uuid.UUID) error
	Get(ctx context.Context, tenantID, connectionID uuid.UUID) (*credential.Connection, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]credential.Connection, error)
	Health(ctx context.Context, tenantID uuid.UUID) ([]credentialapp.ConnectionHealth, error)
}

// ConnectionHandler handles ERP connection endpoints. Secrets and tokens are
// write-only: they never appear in responses.
type ConnectionHandler struct {
	BaseHandler
	connections ConnectionService
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connections ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

// RegisterRoutes registers the connection endpoints
func (h *ConnectionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	connections := rg.Group("/connections")
	{
		connections.POST("", h.Register)
		connections.GET("", h.List)
		connections.GET("/health", h.Health)
		connections.GET("/:id", h.Get)
		connections.POST("/:id/activate", h.Activate)
		connections.POST("/:id/revoke", h.Revoke)
	}
}

// RegisterConnectionRequest represents a request to register an ERP connection
type RegisterConnectionRequest struct {
	ClientID     string `json:"client_id" binding:"required,min=1,max=200"`
	ClientSecret string `json:"client_secret" binding:"required,min=1"`
}

// ActivateConnectionRequest stores the OAuth token set on a connection
type ActivateConnectionRequest struct {
	AccessToken      string   `json:"access_token" binding:"required"`
	RefreshToken     string   `json:"refresh_token"`
	ExpiresInSeconds int      `json:"expires_in" binding:"required,min=1"`
	Scopes           []string `json:"scopes"`
}

// ConnectionResponse represents a connection in API responses
type ConnectionResponse struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	ClientID       string     `json:"client_id"`
	Status         string     `json:"status"`
	Scopes         []string   `json:"scopes,omitempty"`
	ErrorCount     int        `json:"error_count"`
	TokenExpiresAt time.Time  `json:"token_expires_at"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func newConnectionResponse(conn *credential.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:             conn.ID.String(),
		TenantID:       conn.TenantID.String(),
		ClientID:       conn.ClientID,
		Status:         conn.Status.String(),
		Scopes:         conn.Scopes,
		ErrorCount:     conn.ErrorCount,
		TokenExpiresAt: conn.TokenExpiresAt,
		LastSyncAt:     conn.LastSyncAt,
		CreatedAt:      conn.CreatedAt,
		UpdatedAt:      conn.UpdatedAt,
	}
}

// ConnectionHealthResponse represents the per-connection health summary
type ConnectionHealthResponse struct {
	ConnectionID   string     `json:"connection_id"`
	ClientID       string     `json:"client_id"`
	Status         string     `json:"status"`
	ErrorCount     int        `json:"error_count"`
	TokenExpiresAt time.Time  `json:"token_expires_at"`
	TokenExpired   bool       `json:"token_expired"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
}

// Register creates a pending connection holding the encrypted client secret
func (h *ConnectionHandler) Register(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req RegisterConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	conn, err := h.connections.Register(c.Request.Context(), credentialapp.RegisterConnectionCommand{
		TenantID:     tenantID,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, newConnectionResponse(conn))
}

// Activate stores the token set from a completed OAuth handshake
func (h *ConnectionHandler) Activate(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	connectionID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	var req ActivateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	conn, err := h.connections.Activate(c.Request.Context(), credentialapp.ActivateConnectionCommand{
		TenantID:     tenantID,
		ConnectionID: connectionID,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresIn:    time.Duration(req.ExpiresInSeconds) * time.Second,
		Scopes:       req.Scopes,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newConnectionResponse(conn))
}

// Revoke marks the connection revoked
func (h *ConnectionHandler) Revoke(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	connectionID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	if err := h.connections.Revoke(c.Request.Context(), tenantID, connectionID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Get returns one connection
func (h *ConnectionHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}
	connectionID, err := parseIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	conn, err := h.connections.Get(c.Request.Context(), tenantID, connectionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newConnectionResponse(conn))
}

// List returns the tenant's connections
func (h *ConnectionHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	conns, err := h.connections.List(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]ConnectionResponse, 0, len(conns))
	for i := range conns {
		responses = append(responses, newConnectionResponse(&conns[i]))
	}
	h.Success(c, responses)
}

// Health aggregates status, failure counters and token expiry per connection
func (h *ConnectionHandler) Health(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	health, err := h.connections.Health(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]ConnectionHealthResponse, 0, len(health))
	for _, entry := range health {
		responses = append(responses, ConnectionHealthResponse{
			ConnectionID:   entry.ConnectionID.String(),
			ClientID:       entry.ClientID,
			Status:         entry.Status.String(),
			ErrorCount:     entry.ErrorCount,
			TokenExpiresAt: entry.TokenExpiresAt,
			TokenExpired:   entry.TokenExpired,
			LastSyncAt:     entry.LastSyncAt,
		})
	}
	h.Success(c, responses)
}
