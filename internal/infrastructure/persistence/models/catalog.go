package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// SyncedEntityModel is the persistence model for locally stored catalog
// entities mapped to Bling records. One table covers every entity family;
// EntityType discriminates.
type SyncedEntityModel struct {
	ID             uuid.UUID        `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID        `gorm:"type:uuid;not null;index:idx_synced_entities_remote,priority:1"`
	EntityType     string           `gorm:"type:varchar(20);not null;index:idx_synced_entities_remote,priority:2"`
	RemoteID       string           `gorm:"type:varchar(100);not null;index:idx_synced_entities_remote,priority:3"`
	SKU            string           `gorm:"type:varchar(100);index"`
	Name           string           `gorm:"type:varchar(255);not null"`
	CategoryID     *uuid.UUID       `gorm:"type:uuid;index"`
	Price          decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	CostPrice      *decimal.Decimal `gorm:"type:decimal(18,4)"`
	PriceUpdatedAt time.Time        `gorm:""`
	RemoteSyncedAt time.Time        `gorm:""`
	CreatedAt      time.Time        `gorm:"not null"`
	UpdatedAt      time.Time        `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncedEntityModel) TableName() string {
	return "synced_entities"
}

// ToDomain converts the persistence model to a domain LocalEntity.
func (m *SyncedEntityModel) ToDomain() *syncdomain.LocalEntity {
	return &syncdomain.LocalEntity{
		ID:             m.ID,
		RemoteID:       m.RemoteID,
		SKU:            m.SKU,
		Name:           m.Name,
		CategoryID:     m.CategoryID,
		Price:          m.Price,
		CostPrice:      m.CostPrice,
		PriceUpdatedAt: m.PriceUpdatedAt,
	}
}
