package credential

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blingsync/backend/internal/domain/credential"
)

// RegisterConnectionCommand is the input for registering a new ERP connection.
type RegisterConnectionCommand struct {
	TenantID     uuid.UUID
	ClientID     string
	ClientSecret string
}

// ActivateConnectionCommand stores the token set obtained from the OAuth
// authorization flow on a pending or re-authorizing connection.
type ActivateConnectionCommand struct {
	TenantID     uuid.UUID
	ConnectionID uuid.UUID
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Scopes       []string
}

// ConnectionHealth is the per-connection health summary.
type ConnectionHealth struct {
	ConnectionID   uuid.UUID
	ClientID       string
	Status         credential.ConnectionStatus
	ErrorCount     int
	TokenExpiresAt time.Time
	TokenExpired   bool
	LastSyncAt     *time.Time
}

// ConnectionService manages ERP connection registration and lifecycle.
// Secrets and tokens are encrypted before they reach the repository; token
// refresh lives in VaultService.
type ConnectionService struct {
	connections credential.ConnectionRepository
	cipher      credential.Cipher
	vault       credential.Vault
	logger      *zap.Logger
}

// NewConnectionService creates a new ConnectionService
func NewConnectionService(
	connections credential.ConnectionRepository,
	cipher credential.Cipher,
	vault credential.Vault,
	logger *zap.Logger,
) *ConnectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionService{
		connections: connections,
		cipher:      cipher,
		vault:       vault,
		logger:      logger,
	}
}

// Register creates a pending connection holding the encrypted client secret.
// At most one non-revoked connection per (tenant, client id) exists.
func (s *ConnectionService) Register(ctx context.Context, cmd RegisterConnectionCommand) (*credential.Connection, error) {
	encryptedSecret, err := s.cipher.Encrypt(cmd.ClientSecret)
	if err != nil {
		return nil, err
	}
	conn := credential.NewConnection(cmd.TenantID, cmd.ClientID, encryptedSecret)
	if err := s.connections.Save(ctx, conn); err != nil {
		return nil, err
	}
	s.logger.Info("ERP connection registered",
		zap.String("connection_id", conn.ID.String()),
		zap.String("tenant_id", conn.TenantID.String()),
		zap.String("client_id", conn.ClientID),
	)
	return conn, nil
}

// Activate stores the token set from a completed OAuth handshake and moves
// the connection to ACTIVE.
func (s *ConnectionService) Activate(ctx context.Context, cmd ActivateConnectionCommand) (*credential.Connection, error) {
	conn, err := s.findForTenant(ctx, cmd.TenantID, cmd.ConnectionID)
	if err != nil {
		return nil, err
	}

	encryptedAccess, err := s.cipher.Encrypt(cmd.AccessToken)
	if err != nil {
		return nil, err
	}
	encryptedRefresh := ""
	if cmd.RefreshToken != "" {
		encryptedRefresh, err = s.cipher.Encrypt(cmd.RefreshToken)
		if err != nil {
			return nil, err
		}
	}

	if err := conn.Activate(encryptedAccess, encryptedRefresh, time.Now().Add(cmd.ExpiresIn), cmd.Scopes); err != nil {
		return nil, err
	}
	if err := s.connections.UpdateVersioned(ctx, conn); err != nil {
		return nil, err
	}

	s.logger.Info("ERP connection activated",
		zap.String("connection_id", conn.ID.String()),
		zap.String("tenant_id", conn.TenantID.String()),
	)
	return conn, nil
}

// Revoke marks the connection revoked via the vault.
func (s *ConnectionService) Revoke(ctx context.Context, tenantID, connectionID uuid.UUID) error {
	if _, err := s.findForTenant(ctx, tenantID, connectionID); err != nil {
		return err
	}
	return s.vault.Revoke(ctx, connectionID)
}

// Get returns one connection scoped to the tenant.
func (s *ConnectionService) Get(ctx context.Context, tenantID, connectionID uuid.UUID) (*credential.Connection, error) {
	return s.findForTenant(ctx, tenantID, connectionID)
}

// List returns all connections for a tenant.
func (s *ConnectionService) List(ctx context.Context, tenantID uuid.UUID) ([]credential.Connection, error) {
	return s.connections.FindByTenant(ctx, tenantID)
}

// Health aggregates connection status, failure counters and token expiry for
// the tenant.
func (s *ConnectionService) Health(ctx context.Context, tenantID uuid.UUID) ([]ConnectionHealth, error) {
	conns, err := s.connections.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	health := make([]ConnectionHealth, 0, len(conns))
	now := time.Now()
	for i := range conns {
		conn := &conns[i]
		health = append(health, ConnectionHealth{
			ConnectionID:   conn.ID,
			ClientID:       conn.ClientID,
			Status:         conn.Status,
			ErrorCount:     conn.ErrorCount,
			TokenExpiresAt: conn.TokenExpiresAt,
			TokenExpired:   !conn.TokenExpiresAt.After(now),
			LastSyncAt:     conn.LastSyncAt,
		})
	}
	return health, nil
}

func (s *ConnectionService) findForTenant(ctx context.Context, tenantID, connectionID uuid.UUID) (*credential.Connection, error) {
	conn, err := s.connections.FindByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.TenantID != tenantID {
		return nil, credential.ErrConnectionNotFound
	}
	return conn, nil
}
