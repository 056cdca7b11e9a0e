package pricing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChangeSource tags where a committed price change originated
type ChangeSource string

const (
	// ChangeSourceBlingSync means a sync job committed the change
	ChangeSourceBlingSync ChangeSource = "BLING_SYNC"
	// ChangeSourceManual means an operator committed the change
	ChangeSourceManual ChangeSource = "MANUAL"
	// ChangeSourceWebhook means a webhook-triggered sync committed the change
	ChangeSourceWebhook ChangeSource = "WEBHOOK"
)

// IsValid returns true if the change source is valid
func (s ChangeSource) IsValid() bool {
	switch s {
	case ChangeSourceBlingSync, ChangeSourceManual, ChangeSourceWebhook:
		return true
	default:
		return false
	}
}

// PriceHistory is one append-only ledger entry for a committed price change.
// Entries for one product are strictly ordered by commit time; later entries
// see earlier committed prices as their OldPrice baseline.
type PriceHistory struct {
	// ID is the unique identifier of the entry
	ID uuid.UUID
	// TenantID is the tenant this entry belongs to
	TenantID uuid.UUID
	// ProductID is the product whose price changed
	ProductID uuid.UUID
	// SyncJobID references the job that committed the change, when any
	SyncJobID *uuid.UUID
	// ConflictID references the conflict that produced the change, when any
	ConflictID *uuid.UUID
	// OldPrice is the committed price before the change
	OldPrice decimal.Decimal
	// NewPrice is the committed price after the change
	NewPrice decimal.Decimal
	// Source tags where the change originated
	Source ChangeSource
	// CorrelationID ties the entry to the request or job run that caused it
	CorrelationID string
	// CreatedAt is when the change was committed
	CreatedAt time.Time
}

// NewPriceHistory creates a ledger entry for a committed price change.
func NewPriceHistory(tenantID, productID uuid.UUID, oldPrice, newPrice decimal.Decimal, source ChangeSource, correlationID string) *PriceHistory {
	return &PriceHistory{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ProductID:     productID,
		OldPrice:      oldPrice,
		NewPrice:      newPrice,
		Source:        source,
		CorrelationID: correlationID,
		CreatedAt:     time.Now(),
	}
}
