package credential

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ConnectionRepository defines the persistence port for Connection entities.
// All mutating operations are single-row updates; UpdateVersioned enforces
// optimistic concurrency via the Version column.
type ConnectionRepository interface {
	// Save creates a new connection
	Save(ctx context.Context, conn *Connection) error

	// FindByID finds a connection by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Connection, error)

	// FindActiveByTenantAndClient finds the single active connection for a
	// (tenant, client id) pair
	FindActiveByTenantAndClient(ctx context.Context, tenantID uuid.UUID, clientID string) (*Connection, error)

	// FindByTenant finds all connections for a tenant
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]Connection, error)

	// FindActive lists ACTIVE connections across all tenants. Used by the
	// interval scheduler to decide which tenants are due for a sync.
	FindActive(ctx context.Context) ([]Connection, error)

	// UpdateVersioned persists the connection only if the stored Version still
	// matches conn.Version; on success the Version is incremented. Returns
	// shared.ErrConcurrencyConflict semantics via ErrVersionConflict.
	UpdateVersioned(ctx context.Context, conn *Connection) error

	// TouchLastSync updates last_sync_at without bumping the version
	TouchLastSync(ctx context.Context, id uuid.UUID, at time.Time) error
}

// TokenSet is a decrypted OAuth token pair returned by the provider.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
}

// TokenProvider exchanges a refresh token for a new token set against the
// ERP's OAuth endpoint. Implemented by the Bling adapter.
type TokenProvider interface {
	// RefreshToken exchanges refreshToken for a fresh token set.
	// A provider rejection (invalid_grant) is returned as ErrConnectionExpired;
	// transport failures are returned retryable.
	RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*TokenSet, error)
}

// Cipher encrypts and decrypts credential material. The key lives outside
// this subsystem.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Vault is the credential lifecycle service consumed by the orchestrator.
type Vault interface {
	// GetValidToken returns a usable decrypted access token, transparently
	// refreshing when the token is inside the expiry safety window.
	GetValidToken(ctx context.Context, connectionID uuid.UUID) (string, error)

	// Refresh forces a token refresh for the connection.
	Refresh(ctx context.Context, connectionID uuid.UUID) error

	// Revoke marks the connection revoked; subsequent GetValidToken calls
	// fail immediately without network I/O.
	Revoke(ctx context.Context, connectionID uuid.UUID) error
}
