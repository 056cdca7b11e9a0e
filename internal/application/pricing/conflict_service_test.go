package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blingsync/backend/internal/domain/pricing"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// MockConflictRepository is a mock implementation of pricing.ConflictRepository
type MockConflictRepository struct {
	mock.Mock
}

func (m *MockConflictRepository) Save(ctx context.Context, conflict *pricing.PriceConflict) error {
	args := m.Called(ctx, conflict)
	return args.Error(0)
}

func (m *MockConflictRepository) FindByID(ctx context.Context, id uuid.UUID) (*pricing.PriceConflict, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.PriceConflict), args.Error(1)
}

func (m *MockConflictRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter pricing.ConflictFilter) ([]pricing.PriceConflict, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]pricing.PriceConflict), args.Get(1).(int64), args.Error(2)
}

func (m *MockConflictRepository) MarkResolved(ctx context.Context, conflict *pricing.PriceConflict) error {
	args := m.Called(ctx, conflict)
	return args.Error(0)
}

// MockConflictWriter is a mock implementation of pricing.ConflictWriter
type MockConflictWriter struct {
	mock.Mock
}

func (m *MockConflictWriter) CommitResolution(ctx context.Context, conflict *pricing.PriceConflict, entry *pricing.PriceHistory) error {
	args := m.Called(ctx, conflict, entry)
	return args.Error(0)
}

// MockLocalStore is a mock implementation of sync.LocalStore
type MockLocalStore struct {
	mock.Mock
}

func (m *MockLocalStore) FindByRemoteID(ctx context.Context, tenantID uuid.UUID, jobType syncdomain.JobType, remoteID string) (*syncdomain.LocalEntity, error) {
	args := m.Called(ctx, tenantID, jobType, remoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncdomain.LocalEntity), args.Error(1)
}

func (m *MockLocalStore) UpsertFromRemote(ctx context.Context, tenantID uuid.UUID, jobType syncdomain.JobType, remote syncdomain.RemoteEntity) (*syncdomain.LocalEntity, error) {
	args := m.Called(ctx, tenantID, jobType, remote)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncdomain.LocalEntity), args.Error(1)
}

func (m *MockLocalStore) CommitPrice(ctx context.Context, tenantID, entityID uuid.UUID, price decimal.Decimal) error {
	args := m.Called(ctx, tenantID, entityID, price)
	return args.Error(0)
}

func (m *MockLocalStore) ListForExport(ctx context.Context, tenantID uuid.UUID, jobType syncdomain.JobType, since time.Time, limit, offset int) ([]syncdomain.LocalEntity, error) {
	args := m.Called(ctx, tenantID, jobType, since, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]syncdomain.LocalEntity), args.Error(1)
}

// MockPriceCache is a mock implementation of pricing.PriceCache
type MockPriceCache struct {
	mock.Mock
}

func (m *MockPriceCache) Get(ctx context.Context, tenantID, productID uuid.UUID, fingerprint string) (*pricing.CachedPrice, error) {
	args := m.Called(ctx, tenantID, productID, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.CachedPrice), args.Error(1)
}

func (m *MockPriceCache) Set(ctx context.Context, tenantID uuid.UUID, price *pricing.CachedPrice) error {
	args := m.Called(ctx, tenantID, price)
	return args.Error(0)
}

func (m *MockPriceCache) Invalidate(ctx context.Context, tenantID, productID uuid.UUID) error {
	args := m.Called(ctx, tenantID, productID)
	return args.Error(0)
}

func newPendingConflict(t *testing.T, tenantID uuid.UUID) *pricing.PriceConflict {
	t.Helper()
	conflict, err := pricing.NewPriceConflict(
		tenantID, "product", uuid.New(),
		decimal.NewFromInt(100), decimal.NewFromInt(110),
		pricing.ConflictTypeConcurrentModification,
	)
	require.NoError(t, err)
	return conflict
}

func newConflictService(conflicts *MockConflictRepository, writer *MockConflictWriter, store *MockLocalStore, cache *MockPriceCache) *ConflictService {
	return NewConflictService(conflicts, writer, store, cache, nil)
}

func TestResolveConflictBlingWins(t *testing.T) {
	tenantID := uuid.New()
	conflict := newPendingConflict(t, tenantID)
	operator := uuid.New()

	conflicts := new(MockConflictRepository)
	writer := new(MockConflictWriter)
	store := new(MockLocalStore)
	cache := new(MockPriceCache)

	conflicts.On("FindByID", mock.Anything, conflict.ID).Return(conflict, nil)
	writer.On("CommitResolution", mock.Anything, conflict, mock.MatchedBy(func(e *pricing.PriceHistory) bool {
		return e.ConflictID != nil && *e.ConflictID == conflict.ID &&
			e.Source == pricing.ChangeSourceManual &&
			e.NewPrice.Equal(decimal.NewFromInt(110))
	})).Return(nil)
	store.On("CommitPrice", mock.Anything, tenantID, conflict.EntityID, decimal.NewFromInt(110)).Return(nil)
	cache.On("Invalidate", mock.Anything, tenantID, conflict.EntityID).Return(nil)

	svc := newConflictService(conflicts, writer, store, cache)
	resolved, err := svc.Resolve(context.Background(), ResolveConflictCommand{
		TenantID:   tenantID,
		ConflictID: conflict.ID,
		Resolution: pricing.ResolutionTypeBling,
		ResolvedBy: operator,
	})

	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, pricing.ResolutionTypeBling, resolved.ResolutionType)
	assert.True(t, resolved.ResolutionPrice.Equal(decimal.NewFromInt(110)))
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, operator, *resolved.ResolvedBy)
	writer.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestResolveConflictLocalWinsSkipsCommit(t *testing.T) {
	tenantID := uuid.New()
	conflict := newPendingConflict(t, tenantID)

	conflicts := new(MockConflictRepository)
	writer := new(MockConflictWriter)
	store := new(MockLocalStore)
	cache := new(MockPriceCache)

	conflicts.On("FindByID", mock.Anything, conflict.ID).Return(conflict, nil)
	writer.On("CommitResolution", mock.Anything, conflict, mock.Anything).Return(nil)
	cache.On("Invalidate", mock.Anything, tenantID, conflict.EntityID).Return(nil)

	svc := newConflictService(conflicts, writer, store, cache)
	resolved, err := svc.Resolve(context.Background(), ResolveConflictCommand{
		TenantID:   tenantID,
		ConflictID: conflict.ID,
		Resolution: pricing.ResolutionTypeLocal,
		ResolvedBy: uuid.New(),
	})

	require.NoError(t, err)
	assert.True(t, resolved.ResolutionPrice.Equal(conflict.LocalPrice))
	// Local price did not change; the catalog is untouched
	store.AssertNotCalled(t, "CommitPrice")
}

func TestResolveConflictCustomRequiresPrice(t *testing.T) {
	tenantID := uuid.New()
	conflict := newPendingConflict(t, tenantID)

	conflicts := new(MockConflictRepository)
	conflicts.On("FindByID", mock.Anything, conflict.ID).Return(conflict, nil)

	svc := newConflictService(conflicts, new(MockConflictWriter), new(MockLocalStore), new(MockPriceCache))
	_, err := svc.Resolve(context.Background(), ResolveConflictCommand{
		TenantID:   tenantID,
		ConflictID: conflict.ID,
		Resolution: pricing.ResolutionTypeCustom,
		ResolvedBy: uuid.New(),
	})

	assert.ErrorIs(t, err, pricing.ErrInvalidResolution)
	assert.False(t, conflict.Resolved)
}

func TestResolveConflictCustomPrice(t *testing.T) {
	tenantID := uuid.New()
	conflict := newPendingConflict(t, tenantID)
	custom := decimal.RequireFromString("105.50")

	conflicts := new(MockConflictRepository)
	writer := new(MockConflictWriter)
	store := new(MockLocalStore)
	cache := new(MockPriceCache)

	conflicts.On("FindByID", mock.Anything, conflict.ID).Return(conflict, nil)
	writer.On("CommitResolution", mock.Anything, conflict, mock.Anything).Return(nil)
	store.On("CommitPrice", mock.Anything, tenantID, conflict.EntityID, custom).Return(nil)
	cache.On("Invalidate", mock.Anything, tenantID, conflict.EntityID).Return(nil)

	svc := newConflictService(conflicts, writer, store, cache)
	resolved, err := svc.Resolve(context.Background(), ResolveConflictCommand{
		TenantID:    tenantID,
		ConflictID:  conflict.ID,
		Resolution:  pricing.ResolutionTypeCustom,
		CustomPrice: &custom,
		ResolvedBy:  uuid.New(),
	})

	require.NoError(t, err)
	assert.Equal(t, pricing.ResolutionTypeCustom, resolved.ResolutionType)
	assert.True(t, resolved.ResolutionPrice.Equal(custom))
}

func TestResolveConflictAlreadyResolved(t *testing.T) {
	tenantID := uuid.New()
	conflict := newPendingConflict(t, tenantID)
	require.NoError(t, conflict.Resolve(pricing.ResolutionTypeBling, conflict.BlingPrice, nil))

	conflicts := new(MockConflictRepository)
	conflicts.On("FindByID", mock.Anything, conflict.ID).Return(conflict, nil)

	svc := newConflictService(conflicts, new(MockConflictWriter), new(MockLocalStore), new(MockPriceCache))
	_, err := svc.Resolve(context.Background(), ResolveConflictCommand{
		TenantID:   tenantID,
		ConflictID: conflict.ID,
		Resolution: pricing.ResolutionTypeLocal,
		ResolvedBy: uuid.New(),
	})

	assert.ErrorIs(t, err, pricing.ErrConflictAlreadyResolved)
}

func TestResolveConflictWrongTenant(t *testing.T) {
	conflict := newPendingConflict(t, uuid.New())

	conflicts := new(MockConflictRepository)
	conflicts.On("FindByID", mock.Anything, conflict.ID).Return(conflict, nil)

	svc := newConflictService(conflicts, new(MockConflictWriter), new(MockLocalStore), new(MockPriceCache))
	_, err := svc.Resolve(context.Background(), ResolveConflictCommand{
		TenantID:   uuid.New(),
		ConflictID: conflict.ID,
		Resolution: pricing.ResolutionTypeBling,
		ResolvedBy: uuid.New(),
	})

	assert.ErrorIs(t, err, pricing.ErrConflictNotFound)
}
