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

	syncdomain "github.com/blingsync/backend/internal/domain/sync"
)

// stubJobs is an in-memory JobRepository serving the dispatcher paths
type stubJobs struct {
	mu      sync.Mutex
	due     []syncdomain.SyncJob
	updated []syncdomain.SyncJob
}

func (s *stubJobs) Create(ctx context.Context, job *syncdomain.SyncJob) error { return nil }

func (s *stubJobs) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.SyncJob, error) {
	return nil, syncdomain.ErrJobNotFound
}

func (s *stubJobs) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*syncdomain.SyncJob, error) {
	return nil, syncdomain.ErrJobNotFound
}

func (s *stubJobs) Claim(ctx context.Context, id uuid.UUID) (*syncdomain.SyncJob, error) {
	return nil, syncdomain.ErrJobNotClaimable
}

func (s *stubJobs) Update(ctx context.Context, job *syncdomain.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, *job)
	return nil
}

func (s *stubJobs) HasActive(ctx context.Context, tenantID uuid.UUID, jobType syncdomain.JobType) (bool, error) {
	return false, nil
}

func (s *stubJobs) FindDue(ctx context.Context, now time.Time, limit int) ([]syncdomain.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := s.due
	s.due = nil
	return due, nil
}

func (s *stubJobs) FindAll(ctx context.Context, tenantID uuid.UUID, filter syncdomain.JobFilter) ([]syncdomain.SyncJob, int64, error) {
	return nil, 0, nil
}

func (s *stubJobs) updatedJobs() []syncdomain.SyncJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]syncdomain.SyncJob, len(s.updated))
	copy(out, s.updated)
	return out
}

// recordingRunner records which job IDs were run
type recordingRunner struct {
	mu   sync.Mutex
	runs []uuid.UUID
	done chan struct{}
	want int
}

func newRecordingRunner(want int) *recordingRunner {
	return &recordingRunner{done: make(chan struct{}), want: want}
}

func (r *recordingRunner) Run(ctx context.Context, jobID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, jobID)
	if len(r.runs) == r.want {
		close(r.done)
	}
	return nil
}

func (r *recordingRunner) ranJobs() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uuid.UUID, len(r.runs))
	copy(out, r.runs)
	return out
}

func testConfig() DispatcherConfig {
	cfg := DefaultDispatcherConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.Workers = 2
	return cfg
}

func pendingJob(tenantID uuid.UUID) syncdomain.SyncJob {
	return *syncdomain.NewSyncJob(tenantID, uuid.New(), syncdomain.JobTypeProducts, syncdomain.DirectionImport, syncdomain.DefaultConfiguration(tenantID))
}

func TestDispatcherRunsDueJobs(t *testing.T) {
	tenantID := uuid.New()
	first := pendingJob(tenantID)
	second := pendingJob(tenantID)

	jobs := &stubJobs{due: []syncdomain.SyncJob{first, second}}
	runner := newRecordingRunner(2)

	dispatcher, err := NewDispatcher(testConfig(), jobs, runner, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, dispatcher.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = dispatcher.Stop(ctx)
	}()

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("due jobs were not dispatched")
	}

	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, runner.ranJobs())
}

func TestDispatcherRequeuesRetryableFailures(t *testing.T) {
	tenantID := uuid.New()
	failed := pendingJob(tenantID)
	failed.Status = syncdomain.JobStatusProcessing
	failed.Fail("erp unavailable", time.Millisecond)
	require.Equal(t, syncdomain.JobStatusFailed, failed.Status)
	require.False(t, failed.IsTerminal())

	jobs := &stubJobs{due: []syncdomain.SyncJob{failed}}
	runner := newRecordingRunner(1)

	dispatcher, err := NewDispatcher(testConfig(), jobs, runner, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, dispatcher.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = dispatcher.Stop(ctx)
	}()

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("failed job was not redispatched")
	}

	updated := jobs.updatedJobs()
	require.Len(t, updated, 1)
	assert.Equal(t, syncdomain.JobStatusPending, updated[0].Status)
	assert.Equal(t, failed.ID, updated[0].ID)
}

func TestDispatcherSubmitRejectsWhenStopped(t *testing.T) {
	dispatcher, err := NewDispatcher(testConfig(), &stubJobs{}, newRecordingRunner(1), zap.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, dispatcher.Submit(uuid.New()), ErrDispatcherNotRunning)
}

func TestDispatcherConfigValidation(t *testing.T) {
	cfg := DefaultDispatcherConfig()
	cfg.Workers = 0

	_, err := NewDispatcher(cfg, &stubJobs{}, newRecordingRunner(1), zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
