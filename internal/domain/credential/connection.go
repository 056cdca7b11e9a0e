package credential

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Credential Errors
// ---------------------------------------------------------------------------

var (
	// ErrConnectionNotFound indicates the connection does not exist
	ErrConnectionNotFound = errors.New("credential: connection not found")
	// ErrConnectionExpired indicates the connection credentials expired and
	// cannot be refreshed (invalid_grant or refresh token missing)
	ErrConnectionExpired = errors.New("credential: connection expired")
	// ErrConnectionRevoked indicates the tenant revoked the connection
	ErrConnectionRevoked = errors.New("credential: connection revoked")
	// ErrRefreshFailed indicates a token refresh attempt failed transiently
	ErrRefreshFailed = errors.New("credential: token refresh failed")
	// ErrConnectionAlreadyActive indicates another active connection exists
	// for the same (tenant, client id) pair
	ErrConnectionAlreadyActive = errors.New("credential: active connection already exists for tenant and client")
	// ErrInvalidStatusTransition indicates an illegal connection status change
	ErrInvalidStatusTransition = errors.New("credential: invalid status transition")
	// ErrVersionConflict indicates a concurrent update won the optimistic race
	ErrVersionConflict = errors.New("credential: connection modified concurrently")
)

// ---------------------------------------------------------------------------
// ConnectionStatus
// ---------------------------------------------------------------------------

// ConnectionStatus represents the lifecycle status of an ERP connection
type ConnectionStatus string

const (
	// ConnectionStatusPending indicates the OAuth handshake has not completed
	ConnectionStatusPending ConnectionStatus = "PENDING"
	// ConnectionStatusActive indicates the connection holds usable credentials
	ConnectionStatusActive ConnectionStatus = "ACTIVE"
	// ConnectionStatusExpired indicates refresh failed terminally
	ConnectionStatusExpired ConnectionStatus = "EXPIRED"
	// ConnectionStatusRevoked indicates the tenant explicitly revoked access
	ConnectionStatusRevoked ConnectionStatus = "REVOKED"
)

// IsValid returns true if the status is valid
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionStatusPending, ConnectionStatusActive, ConnectionStatusExpired, ConnectionStatusRevoked:
		return true
	default:
		return false
	}
}

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no token operation can move the connection back
// to ACTIVE without tenant re-authorization.
func (s ConnectionStatus) IsTerminal() bool {
	return s == ConnectionStatusRevoked
}

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

// Connection represents a tenant's OAuth connection to the Bling ERP.
// Secret and token fields hold opaque ciphertext; encryption happens at the
// vault boundary and the key is managed outside this subsystem.
type Connection struct {
	// ID is the unique identifier of the connection
	ID uuid.UUID
	// TenantID is the tenant this connection belongs to
	TenantID uuid.UUID
	// ClientID is the OAuth client id registered with Bling
	ClientID string
	// EncryptedClientSecret is the encrypted OAuth client secret
	EncryptedClientSecret string
	// EncryptedAccessToken is the encrypted current access token
	EncryptedAccessToken string
	// EncryptedRefreshToken is the encrypted current refresh token
	EncryptedRefreshToken string
	// TokenExpiresAt is when the access token expires
	TokenExpiresAt time.Time
	// Scopes holds the granted OAuth scopes
	Scopes []string
	// Status is the connection lifecycle status
	Status ConnectionStatus
	// ErrorCount counts consecutive transient refresh failures
	ErrorCount int
	// LastSyncAt is when a sync job last used this connection
	LastSyncAt *time.Time
	// Version is the optimistic concurrency token
	Version int64
	// CreatedAt is when the connection was created
	CreatedAt time.Time
	// UpdatedAt is when the connection was last updated
	UpdatedAt time.Time
}

// NewConnection creates a pending connection for a tenant and OAuth client.
func NewConnection(tenantID uuid.UUID, clientID, encryptedClientSecret string) *Connection {
	now := time.Now()
	return &Connection{
		ID:                    uuid.New(),
		TenantID:              tenantID,
		ClientID:              clientID,
		EncryptedClientSecret: encryptedClientSecret,
		Status:                ConnectionStatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// TokenExpiresWithin returns true if the access token expires inside the
// given safety window (or has already expired).
func (c *Connection) TokenExpiresWithin(window time.Duration) bool {
	return !time.Now().Add(window).Before(c.TokenExpiresAt)
}

// HasRefreshToken returns true if a refresh token is stored.
func (c *Connection) HasRefreshToken() bool {
	return c.EncryptedRefreshToken != ""
}

// Activate stores freshly issued tokens and moves the connection to ACTIVE.
// Allowed from PENDING, ACTIVE and EXPIRED (re-authorization); never from REVOKED.
func (c *Connection) Activate(encryptedAccessToken, encryptedRefreshToken string, expiresAt time.Time, scopes []string) error {
	if c.Status == ConnectionStatusRevoked {
		return ErrInvalidStatusTransition
	}
	c.EncryptedAccessToken = encryptedAccessToken
	c.EncryptedRefreshToken = encryptedRefreshToken
	c.TokenExpiresAt = expiresAt
	if scopes != nil {
		c.Scopes = scopes
	}
	c.Status = ConnectionStatusActive
	c.ErrorCount = 0
	c.UpdatedAt = time.Now()
	return nil
}

// MarkExpired records a terminal refresh failure. Revoked connections stay revoked.
func (c *Connection) MarkExpired() error {
	if c.Status == ConnectionStatusRevoked {
		return ErrInvalidStatusTransition
	}
	c.Status = ConnectionStatusExpired
	c.UpdatedAt = time.Now()
	return nil
}

// Revoke moves the connection to REVOKED. Only explicit tenant action calls this.
func (c *Connection) Revoke() {
	c.Status = ConnectionStatusRevoked
	c.UpdatedAt = time.Now()
}

// RecordTransientFailure increments the consecutive failure counter without
// changing status.
func (c *Connection) RecordTransientFailure() {
	c.ErrorCount++
	c.UpdatedAt = time.Now()
}

// TouchSync records that a sync job used this connection.
func (c *Connection) TouchSync(at time.Time) {
	c.LastSyncAt = &at
	c.UpdatedAt = time.Now()
}
