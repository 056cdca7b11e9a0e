package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/blingsync/backend/internal/domain/pricing"
)

// PricePolicyModel is the persistence model for the PricePolicy domain entity.
type PricePolicyModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_price_policies_tenant,priority:1"`
	Scope      string          `gorm:"type:varchar(20);not null"`
	ProductID  *uuid.UUID      `gorm:"type:uuid;index"`
	CategoryID *uuid.UUID      `gorm:"type:uuid;index"`
	Type       string          `gorm:"type:varchar(20);not null"`
	Value      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Priority   int             `gorm:"not null;default:0"`
	Active     bool            `gorm:"not null;default:true"`
	CreatedAt  time.Time       `gorm:"not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PricePolicyModel) TableName() string {
	return "price_policies"
}

// ToDomain converts the persistence model to a domain PricePolicy entity.
func (m *PricePolicyModel) ToDomain() *pricing.PricePolicy {
	return &pricing.PricePolicy{
		ID:         m.ID,
		TenantID:   m.TenantID,
		Scope:      pricing.PolicyScope(m.Scope),
		ProductID:  m.ProductID,
		CategoryID: m.CategoryID,
		Type:       pricing.PolicyType(m.Type),
		Value:      m.Value,
		Priority:   m.Priority,
		Active:     m.Active,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain PricePolicy entity.
func (m *PricePolicyModel) FromDomain(policy *pricing.PricePolicy) {
	m.ID = policy.ID
	m.TenantID = policy.TenantID
	m.Scope = string(policy.Scope)
	m.ProductID = policy.ProductID
	m.CategoryID = policy.CategoryID
	m.Type = policy.Type.String()
	m.Value = policy.Value
	m.Priority = policy.Priority
	m.Active = policy.Active
	m.CreatedAt = policy.CreatedAt
	m.UpdatedAt = policy.UpdatedAt
}

// PricePolicyModelFromDomain creates a new persistence model from a domain PricePolicy entity.
func PricePolicyModelFromDomain(policy *pricing.PricePolicy) *PricePolicyModel {
	m := &PricePolicyModel{}
	m.FromDomain(policy)
	return m
}

// PriceConflictModel is the persistence model for the PriceConflict domain entity.
type PriceConflictModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_price_conflicts_tenant,priority:1"`
	EntityType        string          `gorm:"type:varchar(50);not null"`
	EntityID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	SyncJobID         *uuid.UUID      `gorm:"type:uuid;index"`
	BlingPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LocalPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Difference        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DifferencePercent decimal.Decimal `gorm:"type:decimal(10,4);not null"`
	Type              string          `gorm:"type:varchar(30);not null"`
	Resolved          bool            `gorm:"not null;default:false;index:idx_price_conflicts_resolved,priority:2"`
	ResolutionType    string          `gorm:"type:varchar(20)"`
	ResolutionPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ResolvedBy        *uuid.UUID      `gorm:"type:uuid"`
	ResolvedAt        *time.Time      `gorm:""`
	CreatedAt         time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PriceConflictModel) TableName() string {
	return "price_conflicts"
}

// ToDomain converts the persistence model to a domain PriceConflict entity.
func (m *PriceConflictModel) ToDomain() *pricing.PriceConflict {
	return &pricing.PriceConflict{
		ID:                m.ID,
		TenantID:          m.TenantID,
		EntityType:        m.EntityType,
		EntityID:          m.EntityID,
		SyncJobID:         m.SyncJobID,
		BlingPrice:        m.BlingPrice,
		LocalPrice:        m.LocalPrice,
		Difference:        m.Difference,
		DifferencePercent: m.DifferencePercent,
		Type:              pricing.ConflictType(m.Type),
		Resolved:          m.Resolved,
		ResolutionType:    pricing.ResolutionType(m.ResolutionType),
		ResolutionPrice:   m.ResolutionPrice,
		ResolvedBy:        m.ResolvedBy,
		ResolvedAt:        m.ResolvedAt,
		CreatedAt:         m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain PriceConflict entity.
func (m *PriceConflictModel) FromDomain(conflict *pricing.PriceConflict) {
	m.ID = conflict.ID
	m.TenantID = conflict.TenantID
	m.EntityType = conflict.EntityType
	m.EntityID = conflict.EntityID
	m.SyncJobID = conflict.SyncJobID
	m.BlingPrice = conflict.BlingPrice
	m.LocalPrice = conflict.LocalPrice
	m.Difference = conflict.Difference
	m.DifferencePercent = conflict.DifferencePercent
	m.Type = string(conflict.Type)
	m.Resolved = conflict.Resolved
	m.ResolutionType = string(conflict.ResolutionType)
	m.ResolutionPrice = conflict.ResolutionPrice
	m.ResolvedBy = conflict.ResolvedBy
	m.ResolvedAt = conflict.ResolvedAt
	m.CreatedAt = conflict.CreatedAt
}

// PriceConflictModelFromDomain creates a new persistence model from a domain PriceConflict entity.
func PriceConflictModelFromDomain(conflict *pricing.PriceConflict) *PriceConflictModel {
	m := &PriceConflictModel{}
	m.FromDomain(conflict)
	return m
}

// PriceHistoryModel is the persistence model for the append-only price history
// ledger. Rows are never updated or deleted.
type PriceHistoryModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_price_history_tenant_product,priority:1"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_price_history_tenant_product,priority:2"`
	SyncJobID     *uuid.UUID      `gorm:"type:uuid;index"`
	ConflictID    *uuid.UUID      `gorm:"type:uuid;index"`
	OldPrice      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	NewPrice      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Source        string          `gorm:"type:varchar(20);not null"`
	CorrelationID string          `gorm:"type:varchar(64);not null;index"`
	CreatedAt     time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PriceHistoryModel) TableName() string {
	return "price_history"
}

// ToDomain converts the persistence model to a domain PriceHistory entry.
func (m *PriceHistoryModel) ToDomain() *pricing.PriceHistory {
	return &pricing.PriceHistory{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ProductID:     m.ProductID,
		SyncJobID:     m.SyncJobID,
		ConflictID:    m.ConflictID,
		OldPrice:      m.OldPrice,
		NewPrice:      m.NewPrice,
		Source:        pricing.ChangeSource(m.Source),
		CorrelationID: m.CorrelationID,
		CreatedAt:     m.CreatedAt,
	}
}

// PriceHistoryModelFromDomain creates a new persistence model from a domain PriceHistory entry.
func PriceHistoryModelFromDomain(entry *pricing.PriceHistory) *PriceHistoryModel {
	return &PriceHistoryModel{
		ID:            entry.ID,
		TenantID:      entry.TenantID,
		ProductID:     entry.ProductID,
		SyncJobID:     entry.SyncJobID,
		ConflictID:    entry.ConflictID,
		OldPrice:      entry.OldPrice,
		NewPrice:      entry.NewPrice,
		Source:        string(entry.Source),
		CorrelationID: entry.CorrelationID,
		CreatedAt:     entry.CreatedAt,
	}
}
