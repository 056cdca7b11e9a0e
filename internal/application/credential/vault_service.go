package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/blingsync/backend/internal/domain/credential"
	"github.com/blingsync/backend/internal/domain/shared"
)

// DefaultRefreshWindow is how close to expiry a token may get before
// GetValidToken refreshes it proactively.
const DefaultRefreshWindow = 5 * time.Minute

// maxRefreshAttempts bounds re-reads of a refresh that keeps losing the
// optimistic concurrency race against another writer.
const maxRefreshAttempts = 3

// VaultService implements credential.Vault. Token refreshes are serialized
// per connection through a singleflight group: concurrent callers for the
// same connection share one network refresh.
type VaultService struct {
	connections   credential.ConnectionRepository
	provider      credential.TokenProvider
	cipher        credential.Cipher
	refreshWindow time.Duration
	logger        *zap.Logger

	refreshGroup singleflight.Group
}

// VaultOption is a functional option for configuring the vault
type VaultOption func(*VaultService)

// WithRefreshWindow overrides the expiry safety window
func WithRefreshWindow(window time.Duration) VaultOption {
	return func(v *VaultService) {
		v.refreshWindow = window
	}
}

// WithVaultLogger sets the logger
func WithVaultLogger(logger *zap.Logger) VaultOption {
	return func(v *VaultService) {
		v.logger = logger
	}
}

// NewVaultService creates a new VaultService
func NewVaultService(connections credential.ConnectionRepository, provider credential.TokenProvider, cipher credential.Cipher, opts ...VaultOption) *VaultService {
	v := &VaultService{
		connections:   connections,
		provider:      provider,
		cipher:        cipher,
		refreshWindow: DefaultRefreshWindow,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// GetValidToken returns a usable decrypted access token for the connection,
// refreshing transparently when the token is inside the safety window.
func (v *VaultService) GetValidToken(ctx context.Context, connectionID uuid.UUID) (string, error) {
	conn, err := v.connections.FindByID(ctx, connectionID)
	if err != nil {
		return "", err
	}

	switch conn.Status {
	case credential.ConnectionStatusRevoked:
		// No network I/O for revoked connections.
		return "", credential.ErrConnectionRevoked
	case credential.ConnectionStatusExpired:
		return "", credential.ErrConnectionExpired
	}

	if conn.EncryptedAccessToken != "" && !conn.TokenExpiresWithin(v.refreshWindow) {
		return v.cipher.Decrypt(conn.EncryptedAccessToken)
	}

	token, err, _ := v.refreshGroup.Do(connectionID.String(), func() (any, error) {
		return v.refreshLocked(ctx, connectionID)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// Refresh forces a serialized token refresh for the connection.
func (v *VaultService) Refresh(ctx context.Context, connectionID uuid.UUID) error {
	_, err, _ := v.refreshGroup.Do(connectionID.String(), func() (any, error) {
		return v.refreshLocked(ctx, connectionID)
	})
	return err
}

// Revoke marks the connection revoked.
func (v *VaultService) Revoke(ctx context.Context, connectionID uuid.UUID) error {
	conn, err := v.connections.FindByID(ctx, connectionID)
	if err != nil {
		return err
	}
	if conn.Status == credential.ConnectionStatusRevoked {
		return nil
	}
	conn.Revoke()
	if err := v.connections.UpdateVersioned(ctx, conn); err != nil {
		return err
	}
	v.logger.Info("Connection revoked",
		zap.String("connection_id", connectionID.String()),
		zap.String("tenant_id", conn.TenantID.String()),
	)
	return nil
}

// refreshLocked performs one refresh. Runs inside the singleflight group, so
// at most one instance executes per connection at a time; a lost version race
// against another writer re-reads the row and retries here, never back
// through the group.
func (v *VaultService) refreshLocked(ctx context.Context, connectionID uuid.UUID) (string, error) {
	for attempt := 0; attempt < maxRefreshAttempts; attempt++ {
		token, err := v.refreshOnce(ctx, connectionID)
		if errors.Is(err, credential.ErrVersionConflict) {
			continue
		}
		return token, err
	}
	return "", shared.Retryable(fmt.Errorf("%w: repeated version conflicts", credential.ErrRefreshFailed))
}

func (v *VaultService) refreshOnce(ctx context.Context, connectionID uuid.UUID) (string, error) {
	conn, err := v.connections.FindByID(ctx, connectionID)
	if err != nil {
		return "", err
	}

	switch conn.Status {
	case credential.ConnectionStatusRevoked:
		return "", credential.ErrConnectionRevoked
	case credential.ConnectionStatusExpired:
		return "", credential.ErrConnectionExpired
	}

	// A waiter queued behind a finished refresh sees fresh tokens already.
	if conn.EncryptedAccessToken != "" && !conn.TokenExpiresWithin(v.refreshWindow) {
		return v.cipher.Decrypt(conn.EncryptedAccessToken)
	}

	if !conn.HasRefreshToken() {
		if markErr := conn.MarkExpired(); markErr == nil {
			_ = v.connections.UpdateVersioned(ctx, conn)
		}
		return "", credential.ErrConnectionExpired
	}

	clientSecret, err := v.cipher.Decrypt(conn.EncryptedClientSecret)
	if err != nil {
		return "", fmt.Errorf("decrypt client secret: %w", err)
	}
	refreshToken, err := v.cipher.Decrypt(conn.EncryptedRefreshToken)
	if err != nil {
		return "", fmt.Errorf("decrypt refresh token: %w", err)
	}

	tokens, err := v.provider.RefreshToken(ctx, conn.ClientID, clientSecret, refreshToken)
	if err != nil {
		return "", v.handleRefreshFailure(ctx, conn, err)
	}

	encAccess, err := v.cipher.Encrypt(tokens.AccessToken)
	if err != nil {
		return "", fmt.Errorf("encrypt access token: %w", err)
	}
	encRefresh, err := v.cipher.Encrypt(tokens.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("encrypt refresh token: %w", err)
	}

	if err := conn.Activate(encAccess, encRefresh, tokens.ExpiresAt, tokens.Scopes); err != nil {
		return "", err
	}
	if err := v.connections.UpdateVersioned(ctx, conn); err != nil {
		if errors.Is(err, credential.ErrVersionConflict) {
			// Another writer updated the row; use whatever it stored if
			// usable, otherwise let refreshLocked run another attempt.
			reloaded, findErr := v.connections.FindByID(ctx, connectionID)
			if findErr != nil {
				return "", findErr
			}
			if reloaded.EncryptedAccessToken != "" && !reloaded.TokenExpiresWithin(v.refreshWindow) {
				return v.cipher.Decrypt(reloaded.EncryptedAccessToken)
			}
			return "", credential.ErrVersionConflict
		}
		return "", err
	}

	v.logger.Info("Token refreshed",
		zap.String("connection_id", conn.ID.String()),
		zap.String("tenant_id", conn.TenantID.String()),
		zap.Time("expires_at", tokens.ExpiresAt),
	)
	return tokens.AccessToken, nil
}

// handleRefreshFailure maps provider failures onto connection state.
// invalid_grant expires the connection terminally; transport failures only
// bump the error counter and stay retryable.
func (v *VaultService) handleRefreshFailure(ctx context.Context, conn *credential.Connection, err error) error {
	if errors.Is(err, credential.ErrConnectionExpired) {
		if markErr := conn.MarkExpired(); markErr == nil {
			_ = v.connections.UpdateVersioned(ctx, conn)
		}
		v.logger.Warn("Refresh rejected by provider, connection expired",
			zap.String("connection_id", conn.ID.String()),
			zap.String("tenant_id", conn.TenantID.String()),
		)
		return credential.ErrConnectionExpired
	}

	conn.RecordTransientFailure()
	_ = v.connections.UpdateVersioned(ctx, conn)
	v.logger.Warn("Transient refresh failure",
		zap.String("connection_id", conn.ID.String()),
		zap.Int("error_count", conn.ErrorCount),
		zap.Error(err),
	)
	return shared.Retryable(fmt.Errorf("%w: %v", credential.ErrRefreshFailed, err))
}

// Ensure VaultService implements credential.Vault
var _ credential.Vault = (*VaultService)(nil)
