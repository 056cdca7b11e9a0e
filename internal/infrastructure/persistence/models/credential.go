package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blingsync/backend/internal/domain/credential"
)

// ERPConnectionModel is the persistence model for the Connection domain entity.
// Secret and token columns hold ciphertext produced by the credential cipher.
type ERPConnectionModel struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primary_key"`
	TenantID              uuid.UUID  `gorm:"type:uuid;not null;index:idx_erp_connections_tenant,priority:1"`
	ClientID              string     `gorm:"type:varchar(100);not null"`
	EncryptedClientSecret string     `gorm:"type:text;not null"`
	EncryptedAccessToken  string     `gorm:"type:text"`
	EncryptedRefreshToken string     `gorm:"type:text"`
	TokenExpiresAt        time.Time  `gorm:""`
	Scopes                string     `gorm:"type:text"`
	Status                string     `gorm:"type:varchar(20);not null;index"`
	ErrorCount            int        `gorm:"not null;default:0"`
	LastSyncAt            *time.Time `gorm:""`
	Version               int64      `gorm:"not null;default:1"`
	CreatedAt             time.Time  `gorm:"not null"`
	UpdatedAt             time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ERPConnectionModel) TableName() string {
	return "erp_connections"
}

// ToDomain converts the persistence model to a domain Connection entity.
func (m *ERPConnectionModel) ToDomain() *credential.Connection {
	conn := &credential.Connection{
		ID:                    m.ID,
		TenantID:              m.TenantID,
		ClientID:              m.ClientID,
		EncryptedClientSecret: m.EncryptedClientSecret,
		EncryptedAccessToken:  m.EncryptedAccessToken,
		EncryptedRefreshToken: m.EncryptedRefreshToken,
		TokenExpiresAt:        m.TokenExpiresAt,
		Status:                credential.ConnectionStatus(m.Status),
		ErrorCount:            m.ErrorCount,
		LastSyncAt:            m.LastSyncAt,
		Version:               m.Version,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
	if m.Scopes != "" {
		conn.Scopes = strings.Fields(m.Scopes)
	}
	return conn
}

// FromDomain populates the persistence model from a domain Connection entity.
func (m *ERPConnectionModel) FromDomain(conn *credential.Connection) {
	m.ID = conn.ID
	m.TenantID = conn.TenantID
	m.ClientID = conn.ClientID
	m.EncryptedClientSecret = conn.EncryptedClientSecret
	m.EncryptedAccessToken = conn.EncryptedAccessToken
	m.EncryptedRefreshToken = conn.EncryptedRefreshToken
	m.TokenExpiresAt = conn.TokenExpiresAt
	m.Scopes = strings.Join(conn.Scopes, " ")
	m.Status = conn.Status.String()
	m.ErrorCount = conn.ErrorCount
	m.LastSyncAt = conn.LastSyncAt
	m.Version = conn.Version
	m.CreatedAt = conn.CreatedAt
	m.UpdatedAt = conn.UpdatedAt
}

// ERPConnectionModelFromDomain creates a new persistence model from a domain Connection entity.
func ERPConnectionModelFromDomain(conn *credential.Connection) *ERPConnectionModel {
	m := &ERPConnectionModel{}
	m.FromDomain(conn)
	return m
}
