package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blingsync/backend/internal/domain/credential"
	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// stubConnections serves FindActive from a fixed slice
type stubConnections struct {
	active []credential.Connection
}

func (s *stubConnections) Save(ctx context.Context, conn *credential.Connection) error { return nil }

func (s *stubConnections) FindByID(ctx context.Context, id uuid.UUID) (*credential.Connection, error) {
	return nil, credential.ErrConnectionNotFound
}

func (s *stubConnections) FindActiveByTenantAndClient(ctx context.Context, tenantID uuid.UUID, clientID string) (*credential.Connection, error) {
	return nil, credential.ErrConnectionNotFound
}

func (s *stubConnections) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]credential.Connection, error) {
	return nil, nil
}

func (s *stubConnections) FindActive(ctx context.Context) ([]credential.Connection, error) {
	return s.active, nil
}

func (s *stubConnections) UpdateVersioned(ctx context.Context, conn *credential.Connection) error {
	return nil
}

func (s *stubConnections) TouchLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

// stubConfigs serves per-tenant configurations from a map
type stubConfigs struct {
	configs map[uuid.UUID]syncdomain.Configuration
}

func (s *stubConfigs) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*syncdomain.Configuration, error) {
	config, ok := s.configs[tenantID]
	if !ok {
		return nil, syncdomain.ErrConfigurationNotFound
	}
	return &config, nil
}

func (s *stubConfigs) Save(ctx context.Context, config *syncdomain.Configuration) error {
	s.configs[config.TenantID] = *config
	return nil
}

// recordingTrigger records which connections were triggered
type recordingTrigger struct {
	mu       sync.Mutex
	err      error
	triggers []uuid.UUID
	done     chan struct{}
	want     int
}

func newRecordingTrigger(want int) *recordingTrigger {
	return &recordingTrigger{done: make(chan struct{}), want: want}
}

func (r *recordingTrigger) TriggerScheduled(ctx context.Context, tenantID, connectionID uuid.UUID) (*syncdomain.SyncJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, connectionID)
	if len(r.triggers) == r.want {
		close(r.done)
	}
	if r.err != nil {
		return nil, r.err
	}
	return syncdomain.NewSyncJob(tenantID, connectionID, syncdomain.JobTypeProducts, syncdomain.DirectionImport, syncdomain.DefaultConfiguration(tenantID)), nil
}

func (r *recordingTrigger) triggered() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uuid.UUID, len(r.triggers))
	copy(out, r.triggers)
	return out
}

func testSchedulerConfig() SchedulerConfig {
	cfg := DefaultSchedulerConfig()
	cfg.ScanInterval = 10 * time.Millisecond
	return cfg
}

func activeConnection(tenantID uuid.UUID, lastSync *time.Time) credential.Connection {
	conn := credential.NewConnection(tenantID, "client-"+uuid.NewString()[:8], "ciphertext")
	conn.Status = credential.ConnectionStatusActive
	conn.LastSyncAt = lastSync
	return *conn
}

func TestSchedulerTriggersNeverSyncedConnection(t *testing.T) {
	tenantID := uuid.New()
	conn := activeConnection(tenantID, nil)

	trigger := newRecordingTrigger(1)
	sched, err := NewScheduler(
		testSchedulerConfig(),
		&stubConnections{active: []credential.Connection{conn}},
		&stubConfigs{configs: map[uuid.UUID]syncdomain.Configuration{}},
		trigger,
		zap.NewNop(),
	)
	require.NoError(t, err)

	require.NoError(t, sched.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sched.Stop(ctx)
	}()

	select {
	case <-trigger.done:
	case <-time.After(2 * time.Second):
		t.Fatal("never-synced connection was not triggered")
	}

	assert.Contains(t, trigger.triggered(), conn.ID)
}

func TestSchedulerHonorsTenantInterval(t *testing.T) {
	dueTenant := uuid.New()
	freshTenant := uuid.New()

	staleSync := time.Now().Add(-2 * time.Hour)
	recentSync := time.Now().Add(-30 * time.Minute)

	due := activeConnection(dueTenant, &staleSync)
	fresh := activeConnection(freshTenant, &recentSync)

	interval := syncdomain.DefaultConfiguration(dueTenant)
	interval.SyncInterval = time.Hour
	freshInterval := syncdomain.DefaultConfiguration(freshTenant)
	freshInterval.SyncInterval = time.Hour

	trigger := newRecordingTrigger(1)
	sched, err := NewScheduler(
		testSchedulerConfig(),
		&stubConnections{active: []credential.Connection{due, fresh}},
		&stubConfigs{configs: map[uuid.UUID]syncdomain.Configuration{
			dueTenant:   interval,
			freshTenant: freshInterval,
		}},
		trigger,
		zap.NewNop(),
	)
	require.NoError(t, err)

	require.NoError(t, sched.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sched.Stop(ctx)
	}()

	select {
	case <-trigger.done:
	case <-time.After(2 * time.Second):
		t.Fatal("stale connection was not triggered")
	}

	triggered := trigger.triggered()
	assert.Contains(t, triggered, due.ID)
	assert.NotContains(t, triggered, fresh.ID)
}

func TestSchedulerAbsorbsActiveJob(t *testing.T) {
	tenantID := uuid.New()
	conn := activeConnection(tenantID, nil)

	trigger := newRecordingTrigger(2)
	trigger.err = syncdomain.ErrJobAlreadyRunning

	sched, err := NewScheduler(
		testSchedulerConfig(),
		&stubConnections{active: []credential.Connection{conn}},
		&stubConfigs{configs: map[uuid.UUID]syncdomain.Configuration{}},
		trigger,
		zap.NewNop(),
	)
	require.NoError(t, err)

	require.NoError(t, sched.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sched.Stop(ctx)
	}()

	// The scheduler keeps retrying on later scans instead of giving up
	select {
	case <-trigger.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler stopped scanning after ErrJobAlreadyRunning")
	}
}

func TestSchedulerConfigValidation(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cfg.ScanInterval = 0

	_, err := NewScheduler(cfg, &stubConnections{}, &stubConfigs{}, newRecordingTrigger(1), zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
