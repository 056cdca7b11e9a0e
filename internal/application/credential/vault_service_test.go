package credential

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blingsync/backend/internal/domain/credential"
	"github.com/blingsync/backend/internal/domain/shared"
)

// MockConnectionRepository is a mock implementation of credential.ConnectionRepository
type MockConnectionRepository struct {
	mock.Mock
}

func (m *MockConnectionRepository) Save(ctx context.Context, conn *credential.Connection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*credential.Connection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.Connection), args.Error(1)
}

func (m *MockConnectionRepository) FindActiveByTenantAndClient(ctx context.Context, tenantID uuid.UUID, clientID string) (*credential.Connection, error) {
	args := m.Called(ctx, tenantID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.Connection), args.Error(1)
}

func (m *MockConnectionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]credential.Connection, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]credential.Connection), args.Error(1)
}

func (m *MockConnectionRepository) FindActive(ctx context.Context) ([]credential.Connection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]credential.Connection), args.Error(1)
}

func (m *MockConnectionRepository) UpdateVersioned(ctx context.Context, conn *credential.Connection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockConnectionRepository) TouchLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockTokenProvider is a mock implementation of credential.TokenProvider
type MockTokenProvider struct {
	mock.Mock
}

func (m *MockTokenProvider) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*credential.TokenSet, error) {
	args := m.Called(ctx, clientID, clientSecret, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.TokenSet), args.Error(1)
}

// identityCipher passes plaintext through with a marker prefix, making
// encrypted and decrypted values distinguishable in assertions.
type identityCipher struct{}

func (identityCipher) Encrypt(plaintext string) (string, error) {
	return "enc:" + plaintext, nil
}

func (identityCipher) Decrypt(ciphertext string) (string, error) {
	if len(ciphertext) > 4 && ciphertext[:4] == "enc:" {
		return ciphertext[4:], nil
	}
	return ciphertext, nil
}

func newActiveConnection(expiresIn time.Duration) *credential.Connection {
	conn := credential.NewConnection(uuid.New(), "client-1", "enc:secret-1")
	_ = conn.Activate("enc:access-1", "enc:refresh-1", time.Now().Add(expiresIn), []string{"produtos"})
	return conn
}

func TestGetValidTokenReturnsCachedTokenOutsideWindow(t *testing.T) {
	conn := newActiveConnection(time.Hour)
	repo := new(MockConnectionRepository)
	provider := new(MockTokenProvider)
	repo.On("FindByID", mock.Anything, conn.ID).Return(conn, nil)

	vault := NewVaultService(repo, provider, identityCipher{})
	token, err := vault.GetValidToken(context.Background(), conn.ID)

	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	provider.AssertNotCalled(t, "RefreshToken")
}

func TestGetValidTokenRefreshesInsideWindow(t *testing.T) {
	conn := newActiveConnection(time.Minute)
	repo := new(MockConnectionRepository)
	provider := new(MockTokenProvider)
	repo.On("FindByID", mock.Anything, conn.ID).Return(conn, nil)
	repo.On("UpdateVersioned", mock.Anything, conn).Return(nil)
	provider.On("RefreshToken", mock.Anything, "client-1", "secret-1", "refresh-1").
		Return(&credential.TokenSet{
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			ExpiresAt:    time.Now().Add(6 * time.Hour),
		}, nil)

	vault := NewVaultService(repo, provider, identityCipher{})
	token, err := vault.GetValidToken(context.Background(), conn.ID)

	require.NoError(t, err)
	assert.Equal(t, "access-2", token)
	assert.Equal(t, "enc:access-2", conn.EncryptedAccessToken)
	assert.Equal(t, "enc:refresh-2", conn.EncryptedRefreshToken)
	assert.Equal(t, credential.ConnectionStatusActive, conn.Status)
	provider.AssertNumberOfCalls(t, "RefreshToken", 1)
}

func TestGetValidTokenRevokedFailsWithoutNetwork(t *testing.T) {
	conn := newActiveConnection(time.Minute)
	conn.Revoke()
	repo := new(MockConnectionRepository)
	provider := new(MockTokenProvider)
	repo.On("FindByID", mock.Anything, conn.ID).Return(conn, nil)

	vault := NewVaultService(repo, provider, identityCipher{})
	_, err := vault.GetValidToken(context.Background(), conn.ID)

	assert.ErrorIs(t, err, credential.ErrConnectionRevoked)
	provider.AssertNotCalled(t, "RefreshToken")
}

func TestGetValidTokenInvalidGrantExpiresConnection(t *testing.T) {
	conn := newActiveConnection(time.Minute)
	repo := new(MockConnectionRepository)
	provider := new(MockTokenProvider)
	repo.On("FindByID", mock.Anything, conn.ID).Return(conn, nil)
	repo.On("UpdateVersioned", mock.Anything, conn).Return(nil)
	provider.On("RefreshToken", mock.Anything, "client-1", "secret-1", "refresh-1").
		Return(nil, credential.ErrConnectionExpired)

	vault := NewVaultService(repo, provider, identityCipher{})
	_, err := vault.GetValidToken(context.Background(), conn.ID)

	assert.ErrorIs(t, err, credential.ErrConnectionExpired)
	assert.Equal(t, credential.ConnectionStatusExpired, conn.Status)
	assert.False(t, shared.IsRetryable(err))
}

func TestGetValidTokenTransientFailureIsRetryable(t *testing.T) {
	conn := newActiveConnection(time.Minute)
	repo := new(MockConnectionRepository)
	provider := new(MockTokenProvider)
	repo.On("FindByID", mock.Anything, conn.ID).Return(conn, nil)
	repo.On("UpdateVersioned", mock.Anything, conn).Return(nil)
	provider.On("RefreshToken", mock.Anything, "client-1", "secret-1", "refresh-1").
		Return(nil, assert.AnError)

	vault := NewVaultService(repo, provider, identityCipher{})
	_, err := vault.GetValidToken(context.Background(), conn.ID)

	require.Error(t, err)
	assert.ErrorIs(t, err, credential.ErrRefreshFailed)
	assert.True(t, shared.IsRetryable(err))
	assert.Equal(t, credential.ConnectionStatusActive, conn.Status)
	assert.Equal(t, 1, conn.ErrorCount)
}

func TestGetValidTokenMissingRefreshTokenExpires(t *testing.T) {
	conn := credential.NewConnection(uuid.New(), "client-1", "enc:secret-1")
	repo := new(MockConnectionRepository)
	provider := new(MockTokenProvider)
	repo.On("FindByID", mock.Anything, conn.ID).Return(conn, nil)
	repo.On("UpdateVersioned", mock.Anything, conn).Return(nil)

	vault := NewVaultService(repo, provider, identityCipher{})
	_, err := vault.GetValidToken(context.Background(), conn.ID)

	assert.ErrorIs(t, err, credential.ErrConnectionExpired)
	provider.AssertNotCalled(t, "RefreshToken")
}

func TestRevokeIsIdempotent(t *testing.T) {
	conn := newActiveConnection(time.Hour)
	repo := new(MockConnectionRepository)
	provider := new(MockTokenProvider)
	repo.On("FindByID", mock.Anything, conn.ID).Return(conn, nil)
	repo.On("UpdateVersioned", mock.Anything, conn).Return(nil).Once()

	vault := NewVaultService(repo, provider, identityCipher{})
	require.NoError(t, vault.Revoke(context.Background(), conn.ID))
	require.NoError(t, vault.Revoke(context.Background(), conn.ID))

	assert.Equal(t, credential.ConnectionStatusRevoked, conn.Status)
	repo.AssertNumberOfCalls(t, "UpdateVersioned", 1)
}

// memConnectionRepo is a race-safe in-memory repository used by the
// concurrency test, where testify expectation bookkeeping would get in the way.
type memConnectionRepo struct {
	mu   sync.Mutex
	conn credential.Connection
}

func (r *memConnectionRepo) Save(ctx context.Context, conn *credential.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn = *conn
	return nil
}

func (r *memConnectionRepo) FindByID(ctx context.Context, id uuid.UUID) (*credential.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn.ID != id {
		return nil, credential.ErrConnectionNotFound
	}
	copied := r.conn
	return &copied, nil
}

func (r *memConnectionRepo) FindActiveByTenantAndClient(ctx context.Context, tenantID uuid.UUID, clientID string) (*credential.Connection, error) {
	return nil, credential.ErrConnectionNotFound
}

func (r *memConnectionRepo) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]credential.Connection, error) {
	return nil, nil
}

func (r *memConnectionRepo) FindActive(ctx context.Context) ([]credential.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return []credential.Connection{r.conn}, nil
}

func (r *memConnectionRepo) UpdateVersioned(ctx context.Context, conn *credential.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn.Version != conn.Version {
		return credential.ErrVersionConflict
	}
	conn.Version++
	r.conn = *conn
	return nil
}

func (r *memConnectionRepo) TouchLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

// racingConnectionRepo simulates another writer winning the version race:
// UpdateVersioned fails with ErrVersionConflict while conflicts last, and
// installs swapTo as the row the other writer stored.
type racingConnectionRepo struct {
	mu        sync.Mutex
	conn      credential.Connection
	swapTo    *credential.Connection
	conflicts int // UpdateVersioned failures remaining; negative means always
}

func (r *racingConnectionRepo) Save(ctx context.Context, conn *credential.Connection) error {
	return nil
}

func (r *racingConnectionRepo) FindByID(ctx context.Context, id uuid.UUID) (*credential.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn.ID != id {
		return nil, credential.ErrConnectionNotFound
	}
	copied := r.conn
	return &copied, nil
}

func (r *racingConnectionRepo) FindActiveByTenantAndClient(ctx context.Context, tenantID uuid.UUID, clientID string) (*credential.Connection, error) {
	return nil, credential.ErrConnectionNotFound
}

func (r *racingConnectionRepo) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]credential.Connection, error) {
	return nil, nil
}

func (r *racingConnectionRepo) FindActive(ctx context.Context) ([]credential.Connection, error) {
	return nil, nil
}

func (r *racingConnectionRepo) UpdateVersioned(ctx context.Context, conn *credential.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflicts != 0 {
		if r.conflicts > 0 {
			r.conflicts--
		}
		if r.swapTo != nil {
			r.conn = *r.swapTo
		}
		return credential.ErrVersionConflict
	}
	r.conn = *conn
	return nil
}

func (r *racingConnectionRepo) TouchLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

func TestRefreshLosingVersionRaceUsesOtherWritersToken(t *testing.T) {
	stale := newActiveConnection(time.Minute)

	other := *stale
	_ = other.Activate("enc:access-other", "enc:refresh-other", time.Now().Add(6*time.Hour), []string{"produtos"})
	other.Version = stale.Version + 1

	repo := &racingConnectionRepo{conn: *stale, swapTo: &other, conflicts: 1}
	provider := &countingProvider{}
	vault := NewVaultService(repo, provider, identityCipher{})

	token, err := vault.GetValidToken(context.Background(), stale.ID)

	require.NoError(t, err)
	assert.Equal(t, "access-other", token)
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestGetValidTokenSurvivesPersistentVersionConflict(t *testing.T) {
	stale := newActiveConnection(time.Minute)

	// The competing writer keeps the token inside the refresh window, so a
	// reload never yields a usable token and attempts must bottom out.
	repo := &racingConnectionRepo{conn: *stale, conflicts: -1}
	provider := &countingProvider{}
	vault := NewVaultService(repo, provider, identityCipher{})

	type result struct {
		token string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, err := vault.GetValidToken(context.Background(), stale.ID)
		done <- result{token, err}
	}()

	select {
	case res := <-done:
		require.Error(t, res.err)
		assert.ErrorIs(t, res.err, credential.ErrRefreshFailed)
		assert.True(t, shared.IsRetryable(res.err))
	case <-time.After(3 * time.Second):
		t.Fatal("GetValidToken did not return under persistent version conflicts")
	}
}

// countingProvider counts refresh calls and delays long enough that
// concurrent callers overlap.
type countingProvider struct {
	calls atomic.Int32
}

func (p *countingProvider) RefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*credential.TokenSet, error) {
	p.calls.Add(1)
	time.Sleep(30 * time.Millisecond)
	return &credential.TokenSet{
		AccessToken:  "access-fresh",
		RefreshToken: "refresh-fresh",
		ExpiresAt:    time.Now().Add(6 * time.Hour),
	}, nil
}

func TestConcurrentGetValidTokenRefreshesOnce(t *testing.T) {
	conn := newActiveConnection(time.Minute)
	repo := &memConnectionRepo{conn: *conn}
	provider := &countingProvider{}

	vault := NewVaultService(repo, provider, identityCipher{})

	const callers = 10
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = vault.GetValidToken(context.Background(), conn.ID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "access-fresh", tokens[i])
	}
	assert.Equal(t, int32(1), provider.calls.Load())
}
