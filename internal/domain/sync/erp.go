package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// ERP Gateway Errors
// ---------------------------------------------------------------------------

var (
	// ErrERPUnavailable indicates a transient transport or 5xx failure
	ErrERPUnavailable = errors.New("sync: erp temporarily unavailable")
	// ErrERPRateLimited indicates the ERP throttled the request
	ErrERPRateLimited = errors.New("sync: erp rate limited")
	// ErrERPInvalidResponse indicates the ERP returned a malformed payload
	ErrERPInvalidResponse = errors.New("sync: invalid erp response")
	// ErrEntityInvalid indicates a single malformed entity; the item is
	// skipped and the job continues
	ErrEntityInvalid = errors.New("sync: malformed entity")
)

// ---------------------------------------------------------------------------
// Remote entity shapes
// ---------------------------------------------------------------------------

// RemoteEntity is one record fetched from Bling, mapped to the neutral shape
// the item pipeline consumes. Pricing fields are set only for priced entity
// families (products, inventory).
type RemoteEntity struct {
	// RemoteID is the entity id on the Bling side
	RemoteID string
	// SKU is the stock keeping unit code, when the family has one
	SKU string
	// Name is the display name
	Name string
	// Price is the remote selling price; zero when the family is unpriced
	Price decimal.Decimal
	// CostPrice is the remote cost price, when exposed
	CostPrice *decimal.Decimal
	// Priced is true when Price carries meaning for this family
	Priced bool
	// UpdatedAt is the remote modification timestamp
	UpdatedAt time.Time
}

// Page is one batch of remote entities.
type Page struct {
	// Items holds the fetched entities in source order
	Items []RemoteEntity
	// Malformed holds entities the adapter could not map into RemoteEntity;
	// they count as item failures so no fetched entity vanishes unlogged
	Malformed []PushRejection
	// HasMore indicates another page exists
	HasMore bool
	// NextPage is the next page number when HasMore is true
	NextPage int
}

// PushResult summarizes an export batch.
type PushResult struct {
	Accepted int
	Rejected []PushRejection
}

// PushRejection is one entity the ERP refused.
type PushRejection struct {
	RemoteID string
	SKU      string
	Reason   string
}

// Gateway is the port to the Bling ERP API. Every call carries a bounded
// timeout; timeouts surface as retryable ErrERPUnavailable.
type Gateway interface {
	// FetchPage pulls one batch of entities of the given family
	FetchPage(ctx context.Context, accessToken string, jobType JobType, page, pageSize int) (*Page, error)

	// Push sends local entities of the given family to Bling
	Push(ctx context.Context, accessToken string, jobType JobType, items []LocalEntity) (*PushResult, error)
}

// ---------------------------------------------------------------------------
// Local store port
// ---------------------------------------------------------------------------

// LocalEntity is the local record an item maps to. Owned by the catalog
// collaborator; this subsystem reads it and commits authoritative prices.
type LocalEntity struct {
	// ID is the local entity id
	ID uuid.UUID
	// RemoteID is the mapped Bling id, empty before first import
	RemoteID string
	// SKU is the stock keeping unit code
	SKU string
	// Name is the display name
	Name string
	// CategoryID is the local category, when any
	CategoryID *uuid.UUID
	// Price is the committed local price
	Price decimal.Decimal
	// CostPrice is the local cost price, when known
	CostPrice *decimal.Decimal
	// PriceUpdatedAt is when the local price last changed
	PriceUpdatedAt time.Time
}

// LocalStore is the narrow interface to the tenant's local catalog. The sync
// engine never touches catalog internals beyond these operations.
type LocalStore interface {
	// FindByRemoteID finds the local entity mapped to a Bling id, or nil
	FindByRemoteID(ctx context.Context, tenantID uuid.UUID, jobType JobType, remoteID string) (*LocalEntity, error)

	// UpsertFromRemote creates or updates the local entity from a remote
	// record, without touching the committed price
	UpsertFromRemote(ctx context.Context, tenantID uuid.UUID, jobType JobType, remote RemoteEntity) (*LocalEntity, error)

	// CommitPrice writes the authoritative price decided by reconciliation
	CommitPrice(ctx context.Context, tenantID, entityID uuid.UUID, price decimal.Decimal) error

	// ListForExport returns local entities modified since the given time
	ListForExport(ctx context.Context, tenantID uuid.UUID, jobType JobType, since time.Time, limit, offset int) ([]LocalEntity, error)
}
